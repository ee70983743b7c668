package grade

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/trezcool/gradedesk/core"
	"github.com/trezcool/gradedesk/core/term"
)

var (
	// errors
	ErrStudentNotFound   = errors.New("student not found")
	ErrStudentExists     = errors.New("a student with this id already exists")
	ErrSubjectExists     = errors.New("a subject with this id already exists")
	ErrTermGradeNotFound = errors.New("term grade not found")

	// RosterOrderings are the fields a roster may be ordered by.
	RosterOrderings = []string{"student_id", "name", "credits_earned", "credits_owed"}
)

type (
	Repository interface {
		CreateStudent(ctx context.Context, st Student) (Student, error)
		GetStudent(ctx context.Context, id string) (Student, error)
		// QueryStudents returns the students of classID ordered by id.
		QueryStudents(ctx context.Context, classID string) ([]Student, error)
		CreateSubject(ctx context.Context, sub Subject) (Subject, error)
		QuerySubjects(ctx context.Context) ([]Subject, error)
		// QueryTermGrades returns the term grades of the given students with term and subject details filled in.
		QueryTermGrades(ctx context.Context, studentIDs ...string) ([]TermGrade, error)
		GetTermGrade(ctx context.Context, id string) (TermGrade, error)
		// SaveTermGrades upserts every write of one student atomically, creating missing TermGrades.
		// Subjects of an existing TermGrade that are not part of a write are left untouched.
		SaveTermGrades(ctx context.Context, studentID string, writes []TermGradeWrite) error
		// ReplaceTermGrade replaces the full subject grade list of a TermGrade.
		ReplaceTermGrade(ctx context.Context, id string, grades []GradeWrite) error
	}

	TermGradeWrite struct {
		TermID string
		Note   *string // nil keeps the stored note
		Grades []GradeWrite
	}

	GradeWrite struct {
		SubjectID string
		Grade     float64
		Status    string
	}

	// TermCatalog is the part of the term service imports are checked against.
	TermCatalog interface {
		GetByID(ctx context.Context, id string) (term.Term, error)
		Suggest(ctx context.Context, input string, n int) ([]string, error)
	}

	Service struct {
		repo  Repository
		terms TermCatalog
	}
)

func NewService(repo Repository, terms TermCatalog) *Service {
	return &Service{repo: repo, terms: terms}
}

func (svc *Service) CreateStudent(ctx context.Context, ns NewStudent) (Student, error) {
	st, err := svc.repo.CreateStudent(ctx, Student{
		ID:              ns.ID,
		Name:            ns.Name,
		ClassID:         ns.ClassID,
		CreditsRequired: ns.CreditsRequired,
	})
	if errors.Cause(err) == ErrStudentExists {
		return Student{}, core.NewValidationError(err, core.FieldError{Field: "id", Error: err.Error()})
	}
	return st, err
}

func (svc *Service) CreateSubject(ctx context.Context, ns NewSubject) (Subject, error) {
	sub, err := svc.repo.CreateSubject(ctx, Subject{ID: ns.ID, Name: ns.Name, Credits: ns.Credits})
	if errors.Cause(err) == ErrSubjectExists {
		return Subject{}, core.NewValidationError(err, core.FieldError{Field: "id", Error: err.Error()})
	}
	return sub, err
}

func (svc *Service) QuerySubjects(ctx context.Context) ([]Subject, error) {
	return svc.repo.QuerySubjects(ctx)
}

// ClassRoster returns the records of every student of classID, ordered by student id unless orderings say otherwise.
func (svc *Service) ClassRoster(ctx context.Context, classID string, orderings ...core.Ordering) ([]GradeRecord, error) {
	students, err := svc.repo.QueryStudents(ctx, core.CleanString(classID))
	if err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	if len(students) == 0 {
		return []GradeRecord{}, nil
	}

	ids := make([]string, 0, len(students))
	for _, st := range students {
		ids = append(ids, st.ID)
	}
	termGrades, err := svc.repo.QueryTermGrades(ctx, ids...)
	if err != nil {
		return nil, errors.Wrap(err, "querying term grades")
	}
	byStudent := make(map[string][]TermGrade, len(students))
	for _, tg := range termGrades {
		byStudent[tg.StudentID] = append(byStudent[tg.StudentID], tg)
	}

	records := make([]GradeRecord, 0, len(students))
	for _, st := range students {
		records = append(records, newGradeRecord(st, byStudent[st.ID]))
	}
	sortRecords(records, orderings)
	return records, nil
}

func (svc *Service) StudentRecord(ctx context.Context, studentID string) (GradeRecord, error) {
	st, err := svc.repo.GetStudent(ctx, core.CleanString(studentID))
	if err != nil {
		return GradeRecord{}, err
	}
	termGrades, err := svc.repo.QueryTermGrades(ctx, st.ID)
	if err != nil {
		return GradeRecord{}, errors.Wrap(err, "querying term grades")
	}
	return newGradeRecord(st, termGrades), nil
}

// ImportGrades writes all of one student's changed term/subject grades.
// Nothing is written unless every term, subject and grade of imp checks out.
func (svc *Service) ImportGrades(ctx context.Context, studentID string, imp Import) error {
	studentID = core.CleanString(studentID)
	if _, err := svc.repo.GetStudent(ctx, studentID); err != nil {
		return err
	}
	if len(imp.TermGrades) == 0 {
		return core.NewValidationError(nil, core.FieldError{Field: "termGrades", Error: "at least one term is required"})
	}
	subjects, err := svc.subjectIndex(ctx)
	if err != nil {
		return err
	}

	var fldErrs []core.FieldError
	writes := make([]TermGradeWrite, 0, len(imp.TermGrades))
	for i, tg := range imp.TermGrades {
		field := fmt.Sprintf("termGrades[%d]", i)
		t, err := svc.terms.GetByID(ctx, tg.Term)
		if err != nil {
			if errors.Cause(err) != term.ErrNotFound {
				return errors.Wrap(err, "finding term")
			}
			fldErrs = append(fldErrs, core.FieldError{Field: field + ".term", Error: svc.unknownTermText(ctx, tg.Term)})
			continue
		}
		grades, errs := checkInputs(field+".gradeOfSubject", tg.GradeOfSubject, subjects)
		fldErrs = append(fldErrs, errs...)
		if len(grades) == 0 && len(errs) == 0 {
			fldErrs = append(fldErrs, core.FieldError{Field: field + ".gradeOfSubject", Error: "at least one subject is required"})
		}
		writes = append(writes, TermGradeWrite{TermID: t.ID, Note: tg.Note, Grades: grades})
	}
	if len(fldErrs) > 0 {
		return core.NewValidationError(nil, fldErrs...)
	}

	return errors.Wrap(svc.repo.SaveTermGrades(ctx, studentID, writes), "saving term grades")
}

// UpdateTermGrade replaces the full subject grade list of one TermGrade.
func (svc *Service) UpdateTermGrade(ctx context.Context, termGradeID string, inputs []SubjectGradeInput) (TermGrade, error) {
	id := core.CleanString(termGradeID)
	if _, err := svc.repo.GetTermGrade(ctx, id); err != nil {
		return TermGrade{}, err
	}
	subjects, err := svc.subjectIndex(ctx)
	if err != nil {
		return TermGrade{}, err
	}
	grades, fldErrs := checkInputs("gradeOfSubject", inputs, subjects)
	if len(fldErrs) > 0 {
		return TermGrade{}, core.NewValidationError(nil, fldErrs...)
	}

	if err := svc.repo.ReplaceTermGrade(ctx, id, grades); err != nil {
		return TermGrade{}, errors.Wrap(err, "replacing term grade")
	}
	return svc.repo.GetTermGrade(ctx, id)
}

func (svc *Service) subjectIndex(ctx context.Context) (map[string]Subject, error) {
	subjects, err := svc.repo.QuerySubjects(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying subjects")
	}
	index := make(map[string]Subject, len(subjects))
	for _, sub := range subjects {
		index[sub.ID] = sub
	}
	return index, nil
}

func (svc *Service) unknownTermText(ctx context.Context, input string) string {
	suggestions, err := svc.terms.Suggest(ctx, input, 1)
	if err != nil || len(suggestions) == 0 {
		return "unknown term"
	}
	return fmt.Sprintf("unknown term; did you mean %s?", suggestions[0])
}

func checkInputs(field string, inputs []SubjectGradeInput, subjects map[string]Subject) ([]GradeWrite, []core.FieldError) {
	var fldErrs []core.FieldError
	grades := make([]GradeWrite, 0, len(inputs))
	seen := make(map[string]bool, len(inputs))
	for j, in := range inputs {
		subField := fmt.Sprintf("%s[%d]", field, j)
		subjectID := core.CleanString(in.SubjectID)
		switch {
		case subjects[subjectID].ID == "":
			fldErrs = append(fldErrs, core.FieldError{Field: subField + ".subjectId", Error: "unknown subject"})
		case seen[subjectID]:
			fldErrs = append(fldErrs, core.FieldError{Field: subField + ".subjectId", Error: dupSubjectText})
		case !ValidGrade(in.Grade):
			fldErrs = append(fldErrs, core.FieldError{Field: subField + ".grade", Error: gradeText})
		default:
			grades = append(grades, GradeWrite{SubjectID: subjectID, Grade: in.Grade, Status: StatusFinalized})
		}
		seen[subjectID] = true
	}
	return grades, fldErrs
}

func sortRecords(records []GradeRecord, orderings []core.Ordering) {
	sort.SliceStable(records, func(i, j int) bool {
		for _, ord := range orderings {
			c := compareRecords(records[i], records[j], ord.Field)
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return records[i].Student.ID < records[j].Student.ID
	})
}

func compareRecords(a, b GradeRecord, field string) int {
	switch field {
	case "student_id":
		return strings.Compare(a.Student.ID, b.Student.ID)
	case "name":
		return strings.Compare(strings.ToLower(a.Student.Name), strings.ToLower(b.Student.Name))
	case "credits_earned":
		return a.CreditsEarned - b.CreditsEarned
	case "credits_owed":
		return a.CreditsOwed - b.CreditsOwed
	}
	return 0
}
