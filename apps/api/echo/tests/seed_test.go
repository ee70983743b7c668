package tests

import (
	"context"
	"testing"
	"time"

	"github.com/trezcool/gradedesk/core/grade"
	"github.com/trezcool/gradedesk/tests"
)

// seed fills f with two terms, two subjects, two students of 10A and one of 10B.
// Binh already has a Physics grade in Spring 2024.
func seed(t *testing.T, f *testutil.Fixture) {
	testutil.CreateTerm(t, f.TermRepo, "T1", "Spring 2024", 2024, time.February)
	testutil.CreateTerm(t, f.TermRepo, "T2", "Fall 2024", 2024, time.September)
	testutil.CreateSubject(t, f.GradeRepo, "M1", "Mathematics", 4)
	testutil.CreateSubject(t, f.GradeRepo, "P1", "Physics", 3)
	testutil.CreateStudent(t, f.GradeRepo, "S1", "An", "10A", 120)
	testutil.CreateStudent(t, f.GradeRepo, "S2", "Binh", "10A", 120)
	testutil.CreateStudent(t, f.GradeRepo, "S3", "Chi", "10B", 120)
	testutil.SaveGrades(t, f.GradeRepo, "S2", "T1", map[string]float64{"P1": 6})
}

func studentRecord(t *testing.T, f *testutil.Fixture, studentID string) grade.GradeRecord {
	rec, err := f.GradeSvc.StudentRecord(context.Background(), studentID)
	if err != nil {
		t.Fatalf("StudentRecord() failed: %v", err)
	}
	return rec
}

func committedGrade(t *testing.T, f *testutil.Fixture, studentID, subjectID string) (grade.SubjectGrade, grade.TermGrade, bool) {
	return studentRecord(t, f, studentID).Committed(subjectID)
}
