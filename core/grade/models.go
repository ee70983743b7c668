package grade

import (
	"math"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/gradedesk/core"
)

const (
	MinGrade  = 0.0
	MaxGrade  = 10.0
	PassGrade = 5.0

	StatusDraft     = "draft"
	StatusFinalized = "finalized"
)

// ValidGrade reports whether g is a finite grade within [MinGrade, MaxGrade].
func ValidGrade(g float64) bool {
	return !math.IsNaN(g) && g >= MinGrade && g <= MaxGrade
}

// ClampGrade forces g into [MinGrade, MaxGrade].
func ClampGrade(g float64) float64 {
	switch {
	case math.IsNaN(g), g < MinGrade:
		return MinGrade
	case g > MaxGrade:
		return MaxGrade
	default:
		return g
	}
}

type Student struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	ClassID         string `json:"class_id"`
	CreditsRequired int    `json:"credits_required"`
}

type Subject struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Credits int    `json:"credits"`
}

// SubjectGrade is a committed grade.
type SubjectGrade struct {
	SubjectID   string  `json:"subject_id"`
	SubjectName string  `json:"subject_name"`
	Credits     int     `json:"credits"`
	Grade       float64 `json:"grade"`
	Status      string  `json:"status"`
}

type TermRef struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	StartsOn time.Time `json:"starts_on"`
}

// TermGrade is one term's worth of subject grades for a student.
type TermGrade struct {
	ID        string         `json:"id"`
	StudentID string         `json:"student_id"`
	Term      TermRef        `json:"term"`
	Grades    []SubjectGrade `json:"grades"`
	Note      *string        `json:"note,omitempty"`
}

func (tg TermGrade) Grade(subjectID string) (SubjectGrade, bool) {
	for _, g := range tg.Grades {
		if g.SubjectID == subjectID {
			return g, true
		}
	}
	return SubjectGrade{}, false
}

// GradeRecord is one student's full academic record.
type GradeRecord struct {
	Student         Student     `json:"student"`
	TermGrades      []TermGrade `json:"term_grades"`
	CreditsRequired int         `json:"credits_required"`
	CreditsEarned   int         `json:"credits_earned"`
	CreditsOwed     int         `json:"credits_owed"`
}

// Committed returns the most recent committed grade of subjectID, whichever term it was recorded in.
func (r GradeRecord) Committed(subjectID string) (SubjectGrade, TermGrade, bool) {
	var (
		found   bool
		sg      SubjectGrade
		current TermGrade
	)
	for _, tg := range r.TermGrades {
		g, ok := tg.Grade(subjectID)
		if !ok {
			continue
		}
		if !found || tg.Term.StartsOn.After(current.Term.StartsOn) {
			found, sg, current = true, g, tg
		}
	}
	return sg, current, found
}

// TermGrade returns the student's TermGrade for termID.
func (r GradeRecord) TermGrade(termID string) (TermGrade, bool) {
	for _, tg := range r.TermGrades {
		if tg.Term.ID == termID {
			return tg, true
		}
	}
	return TermGrade{}, false
}

// newGradeRecord orders the term grades and computes the credit counters.
func newGradeRecord(st Student, termGrades []TermGrade) GradeRecord {
	if termGrades == nil {
		termGrades = []TermGrade{}
	}
	sort.SliceStable(termGrades, func(i, j int) bool {
		return termGrades[i].Term.StartsOn.Before(termGrades[j].Term.StartsOn)
	})

	type attempt struct {
		best    float64
		credits int
	}
	attempts := make(map[string]*attempt)
	for i := range termGrades {
		grades := termGrades[i].Grades
		sort.Slice(grades, func(a, b int) bool { return grades[a].SubjectID < grades[b].SubjectID })
		for _, g := range grades {
			if at, ok := attempts[g.SubjectID]; ok {
				at.best = math.Max(at.best, g.Grade)
			} else {
				attempts[g.SubjectID] = &attempt{best: g.Grade, credits: g.Credits}
			}
		}
	}

	rec := GradeRecord{
		Student:         st,
		TermGrades:      termGrades,
		CreditsRequired: st.CreditsRequired,
	}
	for _, at := range attempts {
		if at.best >= PassGrade {
			rec.CreditsEarned += at.credits
		} else {
			rec.CreditsOwed += at.credits
		}
	}
	return rec
}

// SubjectGradeInput is one {subjectId, grade} tuple of the write APIs.
type SubjectGradeInput struct {
	SubjectID string  `json:"subjectId" validate:"required"`
	Grade     float64 `json:"grade" validate:"grade"`
}

// TermGradeInput groups a student's changed subject grades for one term.
type TermGradeInput struct {
	Term           string              `json:"term" validate:"required"`
	GradeOfSubject []SubjectGradeInput `json:"gradeOfSubject" validate:"required,min=1,dive"`
	// Note replaces the advisory note of the TermGrade when set.
	Note *string `json:"note,omitempty" validate:"omitempty,max=500"`
}

// Import is the "import grades" payload for one student.
type Import struct {
	TermGrades []TermGradeInput `json:"termGrades" validate:"required,min=1,dive"`
}

func (imp *Import) Validate(validate *validator.Validate) error {
	for i := range imp.TermGrades {
		tg := &imp.TermGrades[i]
		tg.Term = core.CleanString(tg.Term)
		cleanInputs(tg.GradeOfSubject)
	}
	return validate.Struct(imp)
}

// UpdateTermGrade is the "update single grade" payload: the full replacement list for one TermGrade.
type UpdateTermGrade struct {
	GradeOfSubject []SubjectGradeInput `json:"gradeOfSubject" validate:"dive"`
}

func (utg *UpdateTermGrade) Validate(validate *validator.Validate) error {
	cleanInputs(utg.GradeOfSubject)
	return validate.Struct(utg)
}

func cleanInputs(inputs []SubjectGradeInput) {
	for i := range inputs {
		inputs[i].SubjectID = core.CleanString(inputs[i].SubjectID)
	}
}

type NewStudent struct {
	ID              string `json:"id" validate:"required,ident"`
	Name            string `json:"name" validate:"required"`
	ClassID         string `json:"class_id" validate:"required,ident"`
	CreditsRequired int    `json:"credits_required" validate:"gte=0"`
}

func (ns *NewStudent) Validate(validate *validator.Validate) error {
	ns.ID = core.CleanString(ns.ID)
	ns.Name = core.CleanString(ns.Name)
	ns.ClassID = core.CleanString(ns.ClassID)
	return validate.Struct(ns)
}

type NewSubject struct {
	ID      string `json:"id" validate:"required,ident"`
	Name    string `json:"name" validate:"required"`
	Credits int    `json:"credits" validate:"gt=0"`
}

func (ns *NewSubject) Validate(validate *validator.Validate) error {
	ns.ID = core.CleanString(ns.ID)
	ns.Name = core.CleanString(ns.Name)
	return validate.Struct(ns)
}
