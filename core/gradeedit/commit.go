package gradeedit

import (
	"context"
	"fmt"
	"sort"

	"github.com/pkg/errors"

	"github.com/trezcool/gradedesk/core"
	"github.com/trezcool/gradedesk/core/grade"
	"github.com/trezcool/gradedesk/core/term"
)

type (
	// GradeWriter is the pair of committed-grade write APIs.
	GradeWriter interface {
		ImportGrades(ctx context.Context, studentID string, imp grade.Import) error
		UpdateTermGrade(ctx context.Context, termGradeID string, inputs []grade.SubjectGradeInput) (grade.TermGrade, error)
	}

	RosterReader interface {
		ClassRoster(ctx context.Context, classID string, orderings ...core.Ordering) ([]grade.GradeRecord, error)
		StudentRecord(ctx context.Context, studentID string) (grade.GradeRecord, error)
	}

	Catalog interface {
		QueryTerms(ctx context.Context) ([]term.Term, error)
		QuerySubjects(ctx context.Context) ([]grade.Subject, error)
	}

	// Backend is everything an edit session needs from the grade store.
	Backend interface {
		GradeWriter
		RosterReader
		Catalog
	}
)

type localBackend struct {
	*grade.Service
	terms *term.Service
}

// NewLocalBackend serves sessions from in-process services.
func NewLocalBackend(grades *grade.Service, terms *term.Service) Backend {
	return localBackend{Service: grades, terms: terms}
}

func (b localBackend) QueryTerms(ctx context.Context) ([]term.Term, error) {
	return b.terms.QueryAll(ctx)
}

// Scope is the roster a session edits: a whole class or a single student.
type Scope struct {
	ClassID   string `json:"class_id,omitempty"`
	StudentID string `json:"student_id,omitempty"`
}

// Fetch loads the records of the scope.
func (sc Scope) Fetch(ctx context.Context, r RosterReader) ([]grade.GradeRecord, error) {
	if sc.ClassID != "" {
		return r.ClassRoster(ctx, sc.ClassID)
	}
	rec, err := r.StudentRecord(ctx, sc.StudentID)
	if err != nil {
		return nil, err
	}
	return []grade.GradeRecord{rec}, nil
}

type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

type Notification struct {
	Level     Level  `json:"level"`
	Message   string `json:"message"`
	StudentID string `json:"student_id,omitempty"`
}

// StudentImport is the import payload of one student.
type StudentImport struct {
	StudentID string
	Import    grade.Import
}

// GroupEdits groups edits by student, then by term. Students and terms are sorted, subjects within a term too.
func GroupEdits(edits []Edit) []StudentImport {
	byStudent := make(map[string]map[string][]grade.SubjectGradeInput)
	for _, e := range edits {
		terms, ok := byStudent[e.StudentID]
		if !ok {
			terms = make(map[string][]grade.SubjectGradeInput)
			byStudent[e.StudentID] = terms
		}
		terms[e.TermID] = append(terms[e.TermID], grade.SubjectGradeInput{SubjectID: e.SubjectID, Grade: e.Grade})
	}

	imports := make([]StudentImport, 0, len(byStudent))
	for studentID, terms := range byStudent {
		si := StudentImport{StudentID: studentID}
		for termID, inputs := range terms {
			sort.Slice(inputs, func(i, j int) bool { return inputs[i].SubjectID < inputs[j].SubjectID })
			si.Import.TermGrades = append(si.Import.TermGrades, grade.TermGradeInput{Term: termID, GradeOfSubject: inputs})
		}
		sort.Slice(si.Import.TermGrades, func(i, j int) bool {
			return si.Import.TermGrades[i].Term < si.Import.TermGrades[j].Term
		})
		imports = append(imports, si)
	}
	sort.Slice(imports, func(i, j int) bool { return imports[i].StudentID < imports[j].StudentID })
	return imports
}

// CommitResult reports what a commit did.
type CommitResult struct {
	Submitted     []string       `json:"submitted"`
	Failed        []string       `json:"failed"`
	Refetched     bool           `json:"refetched"`
	Notifications []Notification `json:"notifications"`
}

// Committer writes buffered edits through a Backend.
type Committer struct {
	Backend Backend
	Log     core.Logger
}

// Commit writes the buffer one student at a time and refetches the scope.
// After a successful refetch the edits of the students that were written are dropped; the rest stay for a retry.
// A failed refetch keeps the whole buffer.
func (c Committer) Commit(ctx context.Context, buf *Buffer, currentTermID string, scope Scope) (CommitResult, []grade.GradeRecord) {
	res := CommitResult{Submitted: []string{}, Failed: []string{}}
	if currentTermID == "" {
		res.notify(LevelError, "", "select a term before saving")
		return res, nil
	}
	if buf.Len() == 0 {
		res.notify(LevelInfo, "", "no changes to save")
		return res, nil
	}

	for _, si := range GroupEdits(buf.Edits()) {
		if err := c.Backend.ImportGrades(ctx, si.StudentID, si.Import); err != nil {
			res.Failed = append(res.Failed, si.StudentID)
			res.notify(LevelError, si.StudentID, failureText(si.StudentID, err))
			if !core.IsValidationError(err) && c.Log != nil {
				c.Log.Error("committing grades", errors.Wrapf(err, "student %s", si.StudentID))
			}
			continue
		}
		res.Submitted = append(res.Submitted, si.StudentID)
		res.notify(LevelSuccess, si.StudentID, fmt.Sprintf("grades of %s saved", si.StudentID))
	}

	records, err := scope.Fetch(ctx, c.Backend)
	if err != nil {
		res.notify(LevelError, "", "saved grades could not be reloaded; pending changes were kept")
		if c.Log != nil {
			c.Log.Error("refetching roster", errors.Wrap(err, "after commit"))
		}
		return res, nil
	}
	res.Refetched = true
	buf.ClearStudents(res.Submitted...)
	return res, records
}

// Discard drops every pending edit without touching the backend.
func Discard(buf *Buffer) Notification {
	n := buf.Len()
	buf.ClearAll()
	return Notification{Level: LevelInfo, Message: fmt.Sprintf("%d pending change(s) discarded", n)}
}

func (res *CommitResult) notify(level Level, studentID, msg string) {
	res.Notifications = append(res.Notifications, Notification{Level: level, Message: msg, StudentID: studentID})
}

func failureText(studentID string, err error) string {
	if msg := errors.Cause(err).Error(); msg != "" {
		return fmt.Sprintf("grades of %s not saved: %s", studentID, msg)
	}
	return fmt.Sprintf("grades of %s not saved", studentID)
}
