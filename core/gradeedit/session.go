package gradeedit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/gradedesk/core"
	"github.com/trezcool/gradedesk/core/grade"
	"github.com/trezcool/gradedesk/core/term"
)

var (
	ErrNoTermSelected   = errors.New("select a term before entering grades")
	ErrCellNotFound     = errors.New("no such student or subject in this session")
	ErrNoCommittedGrade = errors.New("this cell has no committed grade")
	ErrAlreadyCommitted = errors.New("this cell already has a committed grade")
)

// Session is one user's grid of grades: the selected term, the pending edits and the last fetched roster.
// All methods are safe for concurrent use; backend calls are made while holding the session lock,
// so a session never has two writes in flight.
type Session struct {
	ID      string    `json:"id"`
	OwnerID string    `json:"owner_id"`
	Scope   Scope     `json:"scope"`
	Created time.Time `json:"created"`

	mu            sync.Mutex
	backend       Backend
	committer     Committer
	buffer        *Buffer
	currentTermID string
	terms         []term.Term
	subjects      []grade.Subject
	records       []grade.GradeRecord
	notifications []Notification
	lastUsed      time.Time
}

// NewSession loads the catalog and the roster of scope.
func NewSession(ctx context.Context, id, ownerID string, scope Scope, backend Backend, log core.Logger) (*Session, error) {
	now := time.Now()
	sess := &Session{
		ID:        id,
		OwnerID:   ownerID,
		Scope:     scope,
		Created:   now,
		backend:   backend,
		committer: Committer{Backend: backend, Log: log},
		buffer:    NewBuffer(),
		lastUsed:  now,
	}

	var err error
	if sess.terms, err = backend.QueryTerms(ctx); err != nil {
		return nil, errors.Wrap(err, "querying terms")
	}
	if sess.subjects, err = backend.QuerySubjects(ctx); err != nil {
		return nil, errors.Wrap(err, "querying subjects")
	}
	if sess.records, err = scope.Fetch(ctx, backend); err != nil {
		return nil, errors.Wrap(err, "fetching roster")
	}
	return sess, nil
}

// SelectTerm sets the term new edits are filed under. An empty id deselects.
func (s *Session) SelectTerm(termID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	termID = core.CleanString(termID)
	if termID != "" && s.termName(termID) == "" {
		return core.NewValidationError(term.ErrNotFound, core.FieldError{Field: "term_id", Error: "unknown term"})
	}
	s.currentTermID = termID
	return nil
}

// Type applies a typed cell value: blank clears the cell's edit, a valid grade is buffered under the current term.
// Nothing is buffered on error.
func (s *Session) Type(studentID, subjectID, raw string) (ResolvedCell, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	rec, err := s.cell(studentID, subjectID)
	if err != nil {
		return ResolvedCell{}, err
	}
	if s.currentTermID == "" {
		return ResolvedCell{}, ErrNoTermSelected
	}
	g, empty, err := ParseGrade(raw)
	if err != nil {
		return ResolvedCell{}, err
	}

	key := Key{StudentID: studentID, SubjectID: subjectID, TermID: s.currentTermID}
	if empty {
		s.buffer.Clear(key)
	} else {
		s.buffer.Set(key, g)
	}
	return Resolve(rec, s.buffer, s.currentTermID, subjectID), nil
}

// Click performs the click action of a cell. Only reassignment changes state; the dialog actions are
// returned for the caller to open.
func (s *Session) Click(studentID, subjectID string) (ResolvedCell, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	rec, err := s.cell(studentID, subjectID)
	if err != nil {
		return ResolvedCell{}, err
	}
	cell := Resolve(rec, s.buffer, s.currentTermID, subjectID)
	if cell.Action != ActionReassign {
		return cell, nil
	}

	old := Key{StudentID: studentID, SubjectID: subjectID, TermID: cell.EditTermID}
	s.buffer.Reassign(old, s.currentTermID)
	moved := Resolve(rec, s.buffer, s.currentTermID, subjectID)
	moved.Action = ActionReassign
	return moved, nil
}

// UpdateCommitted overwrites the committed grade of a cell in the term it was recorded in.
func (s *Session) UpdateCommitted(ctx context.Context, studentID, subjectID string, g float64) (ResolvedCell, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	rec, err := s.cell(studentID, subjectID)
	if err != nil {
		return ResolvedCell{}, err
	}
	if !grade.ValidGrade(g) {
		return ResolvedCell{}, core.NewValidationError(nil, core.FieldError{Field: "grade", Error: gradeRangeText})
	}
	_, tg, ok := rec.Committed(subjectID)
	if !ok {
		return ResolvedCell{}, core.NewValidationError(ErrNoCommittedGrade, core.FieldError{Field: "grade", Error: ErrNoCommittedGrade.Error()})
	}

	inputs := make([]grade.SubjectGradeInput, 0, len(tg.Grades))
	for _, sg := range tg.Grades {
		in := grade.SubjectGradeInput{SubjectID: sg.SubjectID, Grade: sg.Grade}
		if sg.SubjectID == subjectID {
			in.Grade = g
		}
		inputs = append(inputs, in)
	}
	if _, err := s.backend.UpdateTermGrade(ctx, tg.ID, inputs); err != nil {
		s.notify(LevelError, studentID, failureText(studentID, err))
		return ResolvedCell{}, err
	}
	s.notify(LevelSuccess, studentID, fmt.Sprintf("grade of %s in %s updated", studentID, subjectID))
	return s.refetchCell(ctx, studentID, subjectID)
}

// SubmitDeferred records a first grade for a cell straight away, in the given term.
func (s *Session) SubmitDeferred(ctx context.Context, studentID, subjectID, termID string, g float64) (ResolvedCell, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	rec, err := s.cell(studentID, subjectID)
	if err != nil {
		return ResolvedCell{}, err
	}
	termID = core.CleanString(termID)
	var fldErrs []core.FieldError
	if s.termName(termID) == "" {
		fldErrs = append(fldErrs, core.FieldError{Field: "term_id", Error: "unknown term"})
	}
	if !grade.ValidGrade(g) {
		fldErrs = append(fldErrs, core.FieldError{Field: "grade", Error: gradeRangeText})
	}
	if len(fldErrs) > 0 {
		return ResolvedCell{}, core.NewValidationError(nil, fldErrs...)
	}
	if _, _, ok := rec.Committed(subjectID); ok {
		return ResolvedCell{}, core.NewValidationError(ErrAlreadyCommitted, core.FieldError{Field: "grade", Error: ErrAlreadyCommitted.Error()})
	}

	imp := grade.Import{TermGrades: []grade.TermGradeInput{{
		Term:           termID,
		GradeOfSubject: []grade.SubjectGradeInput{{SubjectID: subjectID, Grade: g}},
	}}}
	if err := s.backend.ImportGrades(ctx, studentID, imp); err != nil {
		s.notify(LevelError, studentID, failureText(studentID, err))
		return ResolvedCell{}, err
	}
	s.notify(LevelSuccess, studentID, fmt.Sprintf("grade of %s in %s saved", studentID, subjectID))
	return s.refetchCell(ctx, studentID, subjectID)
}

// Refresh refetches the catalog and the roster. Pending edits are kept.
func (s *Session) Refresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	terms, err := s.backend.QueryTerms(ctx)
	if err != nil {
		return errors.Wrap(err, "querying terms")
	}
	subjects, err := s.backend.QuerySubjects(ctx)
	if err != nil {
		return errors.Wrap(err, "querying subjects")
	}
	records, err := s.Scope.Fetch(ctx, s.backend)
	if err != nil {
		return errors.Wrap(err, "fetching roster")
	}
	s.terms, s.subjects, s.records = terms, subjects, records
	return nil
}

func (s *Session) Commit(ctx context.Context) CommitResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	res, records := s.committer.Commit(ctx, s.buffer, s.currentTermID, s.Scope)
	if res.Refetched {
		s.records = records
	}
	s.notifications = res.Notifications
	return res
}

func (s *Session) Discard() Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	n := Discard(s.buffer)
	s.notifications = []Notification{n}
	return n
}

type (
	// View is a snapshot of a session as a front end draws it.
	View struct {
		ID            string          `json:"id"`
		Scope         Scope           `json:"scope"`
		CurrentTermID string          `json:"current_term_id"`
		Terms         []term.Term     `json:"terms"`
		Subjects      []grade.Subject `json:"subjects"`
		PendingEdits  []Edit          `json:"pending_edits"`
		Rows          []RowView       `json:"rows"`
		Notifications []Notification  `json:"notifications"`
	}

	RowView struct {
		Student         grade.Student `json:"student"`
		CreditsRequired int           `json:"credits_required"`
		CreditsEarned   int           `json:"credits_earned"`
		CreditsOwed     int           `json:"credits_owed"`
		Cells           []CellView    `json:"cells"`
	}
)

// View renders the grid with r, one cell per student and catalog subject.
// The notifications of the last action are handed out once.
func (s *Session) View(r CellRenderer) View {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	v := View{
		ID:            s.ID,
		Scope:         s.Scope,
		CurrentTermID: s.currentTermID,
		Terms:         s.terms,
		Subjects:      s.subjects,
		PendingEdits:  s.buffer.Edits(),
		Rows:          make([]RowView, 0, len(s.records)),
		Notifications: s.notifications,
	}
	if v.Notifications == nil {
		v.Notifications = []Notification{}
	}
	s.notifications = nil

	for _, rec := range s.records {
		row := RowView{
			Student:         rec.Student,
			CreditsRequired: rec.CreditsRequired,
			CreditsEarned:   rec.CreditsEarned,
			CreditsOwed:     rec.CreditsOwed,
			Cells:           make([]CellView, 0, len(s.subjects)),
		}
		for _, sub := range s.subjects {
			row.Cells = append(row.Cells, r.RenderCell(Resolve(rec, s.buffer, s.currentTermID, sub.ID)))
		}
		v.Rows = append(v.Rows, row)
	}
	return v
}

// Renderer returns the default renderer with the session's term names.
func (s *Session) Renderer() DefaultRenderer {
	s.mu.Lock()
	names := make(map[string]string, len(s.terms))
	for _, t := range s.terms {
		names[t.ID] = t.Name
	}
	s.mu.Unlock()
	return DefaultRenderer{TermName: func(id string) string { return names[id] }}
}

func (s *Session) LastUsed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

func (s *Session) touch() {
	s.lastUsed = time.Now()
}

func (s *Session) notify(level Level, studentID, msg string) {
	s.notifications = append(s.notifications, Notification{Level: level, Message: msg, StudentID: studentID})
}

// cell returns the record of studentID if both the student and the subject belong to the session.
func (s *Session) cell(studentID, subjectID string) (grade.GradeRecord, error) {
	known := false
	for _, sub := range s.subjects {
		if sub.ID == subjectID {
			known = true
			break
		}
	}
	if known {
		for _, rec := range s.records {
			if rec.Student.ID == studentID {
				return rec, nil
			}
		}
	}
	return grade.GradeRecord{}, ErrCellNotFound
}

// refetchCell reloads the roster after a direct write. A failed reload is reported but does not fail the write.
func (s *Session) refetchCell(ctx context.Context, studentID, subjectID string) (ResolvedCell, error) {
	if records, err := s.Scope.Fetch(ctx, s.backend); err != nil {
		s.notify(LevelError, "", "saved grades could not be reloaded")
		if s.committer.Log != nil {
			s.committer.Log.Error("refetching roster", errors.Wrap(err, "after direct write"))
		}
	} else {
		s.records = records
	}
	rec, err := s.cell(studentID, subjectID)
	if err != nil {
		return ResolvedCell{}, err
	}
	return Resolve(rec, s.buffer, s.currentTermID, subjectID), nil
}

func (s *Session) termName(id string) string {
	for _, t := range s.terms {
		if t.ID == id {
			return t.Name
		}
	}
	return ""
}
