package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/trezcool/gradedesk/core/grade"
	"github.com/trezcool/gradedesk/core/term"
	"github.com/trezcool/gradedesk/storage/database/inmem"
)

// Fixture is an in-memory database with the services on top of it.
type Fixture struct {
	DB        *inmemdb.DB
	TermRepo  term.Repository
	GradeRepo grade.Repository
	TermSvc   *term.Service
	GradeSvc  *grade.Service
}

func NewFixture() *Fixture {
	db := inmemdb.Open()
	f := &Fixture{
		DB:        db,
		TermRepo:  inmemdb.NewTermRepository(db),
		GradeRepo: inmemdb.NewGradeRepository(db),
	}
	f.TermSvc = term.NewService(f.TermRepo)
	f.GradeSvc = grade.NewService(f.GradeRepo, f.TermSvc)
	return f
}

// CreateTerm adds a term starting on the first of month of year.
func CreateTerm(t *testing.T, repo term.Repository, id, name string, year int, month time.Month) term.Term {
	starts := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	tm, err := repo.CreateTerm(context.Background(), term.Term{
		ID:       id,
		Name:     name,
		StartsOn: starts,
		EndsOn:   starts.AddDate(0, 5, 0),
	})
	if err != nil {
		t.Fatalf("CreateTerm() failed: %v", err)
	}
	return tm
}

func CreateSubject(t *testing.T, repo grade.Repository, id, name string, credits int) grade.Subject {
	sub, err := repo.CreateSubject(context.Background(), grade.Subject{ID: id, Name: name, Credits: credits})
	if err != nil {
		t.Fatalf("CreateSubject() failed: %v", err)
	}
	return sub
}

func CreateStudent(t *testing.T, repo grade.Repository, id, name, classID string, creditsRequired int) grade.Student {
	st, err := repo.CreateStudent(context.Background(), grade.Student{
		ID:              id,
		Name:            name,
		ClassID:         classID,
		CreditsRequired: creditsRequired,
	})
	if err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	return st
}

// SaveGrades writes finalized grades, keyed by subject id, of one student in one term.
func SaveGrades(t *testing.T, repo grade.Repository, studentID, termID string, grades map[string]float64) {
	w := grade.TermGradeWrite{TermID: termID}
	for subjectID, g := range grades {
		w.Grades = append(w.Grades, grade.GradeWrite{SubjectID: subjectID, Grade: g, Status: grade.StatusFinalized})
	}
	if err := repo.SaveTermGrades(context.Background(), studentID, []grade.TermGradeWrite{w}); err != nil {
		t.Fatalf("SaveGrades() failed: %v", err)
	}
}
