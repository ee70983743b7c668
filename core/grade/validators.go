package grade

import (
	"fmt"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/gradedesk/core"
)

var (
	gradeTag  = "grade"
	gradeText = fmt.Sprintf("grade must be between %g and %g", MinGrade, MaxGrade)

	dupSubjectTag  = "nodupsubject"
	dupSubjectText = "a subject may only appear once per term"

	dupTermTag  = "nodupterm"
	dupTermText = "a term may only appear once per import"
)

func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(gradeTag, gradeValidation)
	core.RegisterCustomTranslation(validate, translator, gradeTag, gradeText)

	validate.RegisterStructValidation(termGradeInputStructValidation, TermGradeInput{})
	validate.RegisterStructValidation(updateTermGradeStructValidation, UpdateTermGrade{})
	validate.RegisterStructValidation(importStructValidation, Import{})
	core.RegisterCustomTranslation(validate, translator, dupSubjectTag, dupSubjectText)
	core.RegisterCustomTranslation(validate, translator, dupTermTag, dupTermText)
}

// Custom Validators

func gradeValidation(fl validator.FieldLevel) bool {
	return ValidGrade(fl.Field().Float())
}

func termGradeInputStructValidation(sl validator.StructLevel) {
	if tg, ok := sl.Current().Interface().(TermGradeInput); ok {
		if hasDuplicateSubject(tg.GradeOfSubject) {
			sl.ReportError(tg.GradeOfSubject, "gradeOfSubject", "GradeOfSubject", dupSubjectTag, "")
		}
	}
}

func updateTermGradeStructValidation(sl validator.StructLevel) {
	if utg, ok := sl.Current().Interface().(UpdateTermGrade); ok {
		if hasDuplicateSubject(utg.GradeOfSubject) {
			sl.ReportError(utg.GradeOfSubject, "gradeOfSubject", "GradeOfSubject", dupSubjectTag, "")
		}
	}
}

func importStructValidation(sl validator.StructLevel) {
	if imp, ok := sl.Current().Interface().(Import); ok {
		seen := make(map[string]bool, len(imp.TermGrades))
		for _, tg := range imp.TermGrades {
			if seen[tg.Term] {
				sl.ReportError(imp.TermGrades, "termGrades", "TermGrades", dupTermTag, "")
				return
			}
			seen[tg.Term] = true
		}
	}
}

func hasDuplicateSubject(inputs []SubjectGradeInput) bool {
	seen := make(map[string]bool, len(inputs))
	for _, in := range inputs {
		if seen[in.SubjectID] {
			return true
		}
		seen[in.SubjectID] = true
	}
	return false
}
