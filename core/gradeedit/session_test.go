package gradeedit_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/gradedesk/core"
	"github.com/trezcool/gradedesk/core/grade"
	"github.com/trezcool/gradedesk/core/gradeedit"
	"github.com/trezcool/gradedesk/tests"
)

// recordingBackend counts writes and can be told to fail them.
type recordingBackend struct {
	gradeedit.Backend
	imports     []string
	updates     []string
	failImport  map[string]error
	failRefetch error
}

func (b *recordingBackend) ImportGrades(ctx context.Context, studentID string, imp grade.Import) error {
	b.imports = append(b.imports, studentID)
	if err := b.failImport[studentID]; err != nil {
		return err
	}
	return b.Backend.ImportGrades(ctx, studentID, imp)
}

func (b *recordingBackend) UpdateTermGrade(ctx context.Context, id string, inputs []grade.SubjectGradeInput) (grade.TermGrade, error) {
	b.updates = append(b.updates, id)
	return b.Backend.UpdateTermGrade(ctx, id, inputs)
}

func (b *recordingBackend) ClassRoster(ctx context.Context, classID string, orderings ...core.Ordering) ([]grade.GradeRecord, error) {
	if b.failRefetch != nil {
		return nil, b.failRefetch
	}
	return b.Backend.ClassRoster(ctx, classID, orderings...)
}

func (b *recordingBackend) writes() int {
	return len(b.imports) + len(b.updates)
}

func setup(t *testing.T) (*gradeedit.Session, *recordingBackend) {
	f := testutil.NewFixture()
	testutil.CreateTerm(t, f.TermRepo, "T1", "Spring 2024", 2024, time.February)
	testutil.CreateTerm(t, f.TermRepo, "T2", "Fall 2024", 2024, time.September)
	testutil.CreateSubject(t, f.GradeRepo, "M1", "Mathematics", 4)
	testutil.CreateSubject(t, f.GradeRepo, "P1", "Physics", 3)
	testutil.CreateStudent(t, f.GradeRepo, "S1", "An", "10A", 120)
	testutil.CreateStudent(t, f.GradeRepo, "S2", "Binh", "10A", 120)
	testutil.SaveGrades(t, f.GradeRepo, "S2", "T1", map[string]float64{"P1": 6})

	backend := &recordingBackend{
		Backend:    gradeedit.NewLocalBackend(f.GradeSvc, f.TermSvc),
		failImport: make(map[string]error),
	}
	sess, err := gradeedit.NewSession(context.Background(), "sid", "t1", gradeedit.Scope{ClassID: "10A"}, backend, nil)
	require.NoError(t, err)
	return sess, backend
}

func cellOf(t *testing.T, sess *gradeedit.Session, studentID, subjectID string) gradeedit.CellView {
	for _, row := range sess.View(sess.Renderer()).Rows {
		if row.Student.ID != studentID {
			continue
		}
		for _, c := range row.Cells {
			if c.SubjectID == subjectID {
				return c
			}
		}
	}
	t.Fatalf("no cell %s/%s", studentID, subjectID)
	return gradeedit.CellView{}
}

func pending(sess *gradeedit.Session) []gradeedit.Edit {
	return sess.View(gradeedit.DefaultRenderer{}).PendingEdits
}

func TestSession_singleEditRoundTrip(t *testing.T) {
	sess, backend := setup(t)
	require.NoError(t, sess.SelectTerm("T1"))

	cell, err := sess.Type("S1", "M1", "8.5")
	require.NoError(t, err)
	assert.Equal(t, gradeedit.StateCurrentEdit, cell.State)
	assert.Equal(t, 8.5, *cell.Value)

	res := sess.Commit(context.Background())
	assert.Equal(t, []string{"S1"}, backend.imports)
	assert.Equal(t, []string{"S1"}, res.Submitted)
	assert.True(t, res.Refetched)
	assert.Empty(t, pending(sess))

	got := cellOf(t, sess, "S1", "M1")
	assert.Equal(t, gradeedit.StateNormal, got.State)
	assert.Equal(t, "8.5", got.Text)
	require.NotNil(t, got.Committed)
	assert.Equal(t, "T1", got.Committed.TermID)
}

func TestSession_termReassignment(t *testing.T) {
	sess, backend := setup(t)
	require.NoError(t, sess.SelectTerm("T1"))
	_, err := sess.Type("S1", "M1", "7")
	require.NoError(t, err)

	require.NoError(t, sess.SelectTerm("T2"))
	c := cellOf(t, sess, "S1", "M1")
	assert.Equal(t, gradeedit.StateOtherEdit, c.State)
	assert.Equal(t, "T1", c.EditTermID)
	assert.Equal(t, gradeedit.ActionReassign, c.Action)
	assert.Equal(t, "pending for Spring 2024; click to move to Fall 2024", c.Badge)

	cell, err := sess.Click("S1", "M1")
	require.NoError(t, err)
	assert.Equal(t, gradeedit.ActionReassign, cell.Action)
	assert.Equal(t, gradeedit.StateCurrentEdit, cell.State)
	assert.Equal(t, []gradeedit.Edit{
		{Key: gradeedit.Key{StudentID: "S1", SubjectID: "M1", TermID: "T2"}, Grade: 7},
	}, pending(sess))
	assert.Zero(t, backend.writes())
}

func TestSession_newTermReplacesEdit(t *testing.T) {
	sess, _ := setup(t)
	require.NoError(t, sess.SelectTerm("T1"))
	_, err := sess.Type("S1", "M1", "7")
	require.NoError(t, err)
	require.NoError(t, sess.SelectTerm("T2"))
	_, err = sess.Type("S1", "M1", "9")
	require.NoError(t, err)

	assert.Equal(t, []gradeedit.Edit{
		{Key: gradeedit.Key{StudentID: "S1", SubjectID: "M1", TermID: "T2"}, Grade: 9},
	}, pending(sess))
}

func TestSession_Type(t *testing.T) {
	sess, _ := setup(t)

	tests := []struct {
		name      string
		term      string
		studentID string
		subjectID string
		raw       string
		wantErr   func(error) bool
	}{
		{
			name: "no term selected", studentID: "S1", subjectID: "M1", raw: "8",
			wantErr: func(err error) bool { return errors.Cause(err) == gradeedit.ErrNoTermSelected },
		},
		{name: "out of range", term: "T1", studentID: "S1", subjectID: "M1", raw: "11", wantErr: core.IsValidationError},
		{name: "not a number", term: "T1", studentID: "S1", subjectID: "M1", raw: "eight", wantErr: core.IsValidationError},
		{
			name: "unknown subject", term: "T1", studentID: "S1", subjectID: "X9", raw: "8",
			wantErr: func(err error) bool { return errors.Cause(err) == gradeedit.ErrCellNotFound },
		},
		{
			name: "student outside roster", term: "T1", studentID: "S9", subjectID: "M1", raw: "8",
			wantErr: func(err error) bool { return errors.Cause(err) == gradeedit.ErrCellNotFound },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, sess.SelectTerm(tt.term))
			_, err := sess.Type(tt.studentID, tt.subjectID, tt.raw)
			if !tt.wantErr(err) {
				t.Errorf("Type() error = %v", err)
			}
			assert.Empty(t, pending(sess), "nothing is buffered")
		})
	}

	t.Run("blank clears", func(t *testing.T) {
		require.NoError(t, sess.SelectTerm("T1"))
		_, err := sess.Type("S1", "M1", "4")
		require.NoError(t, err)
		_, err = sess.Type("S1", "M1", " ")
		require.NoError(t, err)
		assert.Empty(t, pending(sess))
	})
}

func TestSession_SelectTerm(t *testing.T) {
	sess, _ := setup(t)
	assert.True(t, core.IsValidationError(sess.SelectTerm("T9")))
	assert.NoError(t, sess.SelectTerm(" T2 "))
	assert.Equal(t, "T2", sess.View(gradeedit.DefaultRenderer{}).CurrentTermID)
	assert.NoError(t, sess.SelectTerm(""))
	assert.Equal(t, "", sess.View(gradeedit.DefaultRenderer{}).CurrentTermID)
}

func TestSession_noTermClicks(t *testing.T) {
	sess, backend := setup(t)

	cell, err := sess.Click("S2", "P1")
	require.NoError(t, err)
	assert.Equal(t, gradeedit.ActionUpdateDialog, cell.Action)

	cell, err = sess.Click("S1", "P1")
	require.NoError(t, err)
	assert.Equal(t, gradeedit.ActionDeferredDialog, cell.Action)
	assert.Equal(t, gradeedit.AddAffordance, cellOf(t, sess, "S1", "P1").Text)

	assert.Empty(t, pending(sess))
	assert.Zero(t, backend.writes())
}

func TestSession_UpdateCommitted(t *testing.T) {
	sess, backend := setup(t)
	ctx := context.Background()

	cell, err := sess.UpdateCommitted(ctx, "S2", "P1", 4.5)
	require.NoError(t, err)
	assert.Len(t, backend.updates, 1)
	assert.Equal(t, 4.5, *cell.Value)
	assert.Equal(t, gradeedit.TierError, cell.Tier)

	_, err = sess.UpdateCommitted(ctx, "S1", "P1", 5)
	assert.True(t, core.IsValidationError(err), "no committed grade to update")
	_, err = sess.UpdateCommitted(ctx, "S2", "P1", 10.5)
	assert.True(t, core.IsValidationError(err))
	assert.Len(t, backend.updates, 1)
}

func TestSession_SubmitDeferred(t *testing.T) {
	sess, backend := setup(t)
	ctx := context.Background()

	cell, err := sess.SubmitDeferred(ctx, "S1", "P1", "T2", 9)
	require.NoError(t, err)
	assert.Equal(t, []string{"S1"}, backend.imports)
	require.NotNil(t, cell.Committed)
	assert.Equal(t, "T2", cell.Committed.TermID)
	assert.Equal(t, gradeedit.ActionUpdateDialog, cell.Action)

	_, err = sess.SubmitDeferred(ctx, "S1", "P1", "T2", 8)
	assert.True(t, core.IsValidationError(err), "cell already committed")
	_, err = sess.SubmitDeferred(ctx, "S1", "M1", "T9", 8)
	assert.True(t, core.IsValidationError(err))
	assert.Len(t, backend.imports, 1)
}

func TestSession_Commit(t *testing.T) {
	ctx := context.Background()

	t.Run("no term selected", func(t *testing.T) {
		sess, backend := setup(t)
		require.NoError(t, sess.SelectTerm("T1"))
		_, err := sess.Type("S1", "M1", "8")
		require.NoError(t, err)
		require.NoError(t, sess.SelectTerm(""))

		res := sess.Commit(ctx)
		assert.Zero(t, backend.writes())
		require.Len(t, res.Notifications, 1)
		assert.Equal(t, gradeedit.LevelError, res.Notifications[0].Level)
		assert.Len(t, pending(sess), 1)
	})

	t.Run("empty buffer", func(t *testing.T) {
		sess, backend := setup(t)
		require.NoError(t, sess.SelectTerm("T1"))

		res := sess.Commit(ctx)
		assert.Zero(t, backend.writes())
		require.Len(t, res.Notifications, 1)
		assert.Equal(t, gradeedit.LevelInfo, res.Notifications[0].Level)
	})

	t.Run("failed student keeps its edits", func(t *testing.T) {
		sess, backend := setup(t)
		backend.failImport["S1"] = errors.New("backend says no")
		require.NoError(t, sess.SelectTerm("T1"))
		for _, c := range []struct{ st, sub, raw string }{{"S1", "M1", "8"}, {"S2", "M1", "3"}, {"S1", "P1", "5"}} {
			_, err := sess.Type(c.st, c.sub, c.raw)
			require.NoError(t, err)
		}

		res := sess.Commit(ctx)
		assert.Equal(t, []string{"S1", "S2"}, backend.imports, "one write per student, in order")
		assert.Equal(t, []string{"S2"}, res.Submitted)
		assert.Equal(t, []string{"S1"}, res.Failed)
		assert.Equal(t, []gradeedit.Notification{
			{Level: gradeedit.LevelError, StudentID: "S1", Message: "grades of S1 not saved: backend says no"},
			{Level: gradeedit.LevelSuccess, StudentID: "S2", Message: "grades of S2 saved"},
		}, res.Notifications)
		assert.Equal(t, []gradeedit.Edit{
			{Key: gradeedit.Key{StudentID: "S1", SubjectID: "M1", TermID: "T1"}, Grade: 8},
			{Key: gradeedit.Key{StudentID: "S1", SubjectID: "P1", TermID: "T1"}, Grade: 5},
		}, pending(sess))
		assert.Equal(t, "3.0", cellOf(t, sess, "S2", "M1").Text)
	})

	t.Run("refetch failure clears nothing", func(t *testing.T) {
		sess, backend := setup(t)
		require.NoError(t, sess.SelectTerm("T1"))
		_, err := sess.Type("S1", "M1", "8")
		require.NoError(t, err)
		backend.failRefetch = errors.New("connection reset")

		res := sess.Commit(ctx)
		assert.False(t, res.Refetched)
		assert.Equal(t, []string{"S1"}, res.Submitted)
		assert.Len(t, pending(sess), 1)
		assert.Equal(t, gradeedit.StateCurrentEdit, cellOf(t, sess, "S1", "M1").State)
	})
}

func TestSession_Discard(t *testing.T) {
	sess, backend := setup(t)
	require.NoError(t, sess.SelectTerm("T1"))
	_, err := sess.Type("S1", "M1", "8")
	require.NoError(t, err)
	_, err = sess.Type("S2", "P1", "2")
	require.NoError(t, err)

	n := sess.Discard()
	assert.Equal(t, gradeedit.LevelInfo, n.Level)
	assert.Empty(t, pending(sess))
	assert.Zero(t, backend.writes())
	assert.Equal(t, "6.0", cellOf(t, sess, "S2", "P1").Text)
}

func TestGroupEdits(t *testing.T) {
	edits := []gradeedit.Edit{
		{Key: gradeedit.Key{StudentID: "S2", SubjectID: "P1", TermID: "T2"}, Grade: 6},
		{Key: gradeedit.Key{StudentID: "S1", SubjectID: "P1", TermID: "T1"}, Grade: 5},
		{Key: gradeedit.Key{StudentID: "S1", SubjectID: "M1", TermID: "T1"}, Grade: 8},
		{Key: gradeedit.Key{StudentID: "S1", SubjectID: "C1", TermID: "T2"}, Grade: 9},
	}

	assert.Equal(t, []gradeedit.StudentImport{
		{StudentID: "S1", Import: grade.Import{TermGrades: []grade.TermGradeInput{
			{Term: "T1", GradeOfSubject: []grade.SubjectGradeInput{{SubjectID: "M1", Grade: 8}, {SubjectID: "P1", Grade: 5}}},
			{Term: "T2", GradeOfSubject: []grade.SubjectGradeInput{{SubjectID: "C1", Grade: 9}}},
		}}},
		{StudentID: "S2", Import: grade.Import{TermGrades: []grade.TermGradeInput{
			{Term: "T2", GradeOfSubject: []grade.SubjectGradeInput{{SubjectID: "P1", Grade: 6}}},
		}}},
	}, gradeedit.GroupEdits(edits))
	assert.Empty(t, gradeedit.GroupEdits(nil))
}
