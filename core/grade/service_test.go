package grade_test

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/gradedesk/core"
	"github.com/trezcool/gradedesk/core/grade"
	"github.com/trezcool/gradedesk/tests"
)

func seed(t *testing.T) *testutil.Fixture {
	f := testutil.NewFixture()
	testutil.CreateTerm(t, f.TermRepo, "2023-2024-HK2", "Spring 2024", 2024, time.February)
	testutil.CreateTerm(t, f.TermRepo, "2024-2025-HK1", "Fall 2024", 2024, time.September)
	testutil.CreateSubject(t, f.GradeRepo, "MATH", "Mathematics", 4)
	testutil.CreateSubject(t, f.GradeRepo, "PHYS", "Physics", 3)
	testutil.CreateSubject(t, f.GradeRepo, "LIT", "Literature", 2)
	testutil.CreateStudent(t, f.GradeRepo, "s2", "Binh", "10A", 120)
	testutil.CreateStudent(t, f.GradeRepo, "s1", "An", "10A", 120)
	testutil.CreateStudent(t, f.GradeRepo, "s3", "Chi", "10B", 120)
	return f
}

func fieldNames(t *testing.T, err error) []string {
	var vErr *core.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("error = %v, want validation error", err)
	}
	names := make([]string, 0, len(vErr.Fields))
	for _, fe := range vErr.Fields {
		names = append(names, fe.Field)
	}
	return names
}

func TestGradeRecord_counters(t *testing.T) {
	f := seed(t)
	testutil.SaveGrades(t, f.GradeRepo, "s1", "2023-2024-HK2", map[string]float64{"MATH": 4, "PHYS": 3.5, "LIT": 9})
	testutil.SaveGrades(t, f.GradeRepo, "s1", "2024-2025-HK1", map[string]float64{"MATH": 7})

	rec, err := f.GradeSvc.StudentRecord(context.Background(), "s1")
	require.NoError(t, err)

	// MATH passed on retake, PHYS still owed
	assert.Equal(t, 6, rec.CreditsEarned)
	assert.Equal(t, 3, rec.CreditsOwed)
	assert.Equal(t, 120, rec.CreditsRequired)
	require.Len(t, rec.TermGrades, 2)
	assert.Equal(t, "2023-2024-HK2", rec.TermGrades[0].Term.ID)

	sg, tg, ok := rec.Committed("MATH")
	require.True(t, ok)
	assert.Equal(t, 7.0, sg.Grade)
	assert.Equal(t, "2024-2025-HK1", tg.Term.ID)

	_, _, ok = rec.Committed("CHEM")
	assert.False(t, ok)

	if _, err = f.GradeSvc.StudentRecord(context.Background(), "nobody"); errors.Cause(err) != grade.ErrStudentNotFound {
		t.Errorf("StudentRecord() error = %v, want %v", err, grade.ErrStudentNotFound)
	}
}

func TestService_ClassRoster(t *testing.T) {
	f := seed(t)
	testutil.SaveGrades(t, f.GradeRepo, "s2", "2024-2025-HK1", map[string]float64{"MATH": 9})
	ctx := context.Background()

	tests := []struct {
		name      string
		classID   string
		orderings []core.Ordering
		want      []string
	}{
		{name: "by id", classID: "10A", want: []string{"s1", "s2"}},
		{name: "by -credits_earned", classID: "10A", orderings: core.ParseOrderings("-credits_earned", grade.RosterOrderings...), want: []string{"s2", "s1"}},
		{name: "by name", classID: " 10A ", orderings: core.ParseOrderings("name", grade.RosterOrderings...), want: []string{"s1", "s2"}},
		{name: "unknown class", classID: "12Z", want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := f.GradeSvc.ClassRoster(ctx, tt.classID, tt.orderings...)
			require.NoError(t, err)
			ids := make([]string, 0, len(records))
			for _, rec := range records {
				ids = append(ids, rec.Student.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestService_ImportGrades(t *testing.T) {
	f := seed(t)
	ctx := context.Background()
	testutil.SaveGrades(t, f.GradeRepo, "s1", "2024-2025-HK1", map[string]float64{"LIT": 6})

	note := "retake"
	imp := grade.Import{TermGrades: []grade.TermGradeInput{
		{Term: "2024-2025-HK1", GradeOfSubject: []grade.SubjectGradeInput{{SubjectID: "MATH", Grade: 8.5}}},
		{Term: "2023-2024-HK2", Note: &note, GradeOfSubject: []grade.SubjectGradeInput{{SubjectID: "PHYS", Grade: 4}, {SubjectID: "MATH", Grade: 3}}},
	}}
	require.NoError(t, f.GradeSvc.ImportGrades(ctx, "s1", imp))

	rec, err := f.GradeSvc.StudentRecord(ctx, "s1")
	require.NoError(t, err)
	fall, ok := rec.TermGrade("2024-2025-HK1")
	require.True(t, ok)
	assert.Equal(t, []grade.SubjectGrade{
		{SubjectID: "LIT", SubjectName: "Literature", Credits: 2, Grade: 6, Status: grade.StatusFinalized},
		{SubjectID: "MATH", SubjectName: "Mathematics", Credits: 4, Grade: 8.5, Status: grade.StatusFinalized},
	}, fall.Grades, "untouched subjects are kept")
	assert.Nil(t, fall.Note)

	spring, ok := rec.TermGrade("2023-2024-HK2")
	require.True(t, ok)
	assert.Len(t, spring.Grades, 2)
	require.NotNil(t, spring.Note)
	assert.Equal(t, "retake", *spring.Note)
}

func TestService_ImportGrades_invalid(t *testing.T) {
	f := seed(t)
	ctx := context.Background()

	tests := []struct {
		name      string
		studentID string
		imp       grade.Import
		wantErr   error
		wantFlds  []string
	}{
		{name: "unknown student", studentID: "nobody", imp: grade.Import{}, wantErr: grade.ErrStudentNotFound},
		{name: "no terms", studentID: "s1", imp: grade.Import{}, wantFlds: []string{"termGrades"}},
		{
			name: "unknown term and subject", studentID: "s1",
			imp: grade.Import{TermGrades: []grade.TermGradeInput{
				{Term: "2024-2025-HKI", GradeOfSubject: []grade.SubjectGradeInput{{SubjectID: "MATH", Grade: 5}}},
				{Term: "2024-2025-HK1", GradeOfSubject: []grade.SubjectGradeInput{{SubjectID: "CHEM", Grade: 5}}},
			}},
			wantFlds: []string{"termGrades[0].term", "termGrades[1].gradeOfSubject[0].subjectId"},
		},
		{
			name: "out of range", studentID: "s1",
			imp: grade.Import{TermGrades: []grade.TermGradeInput{
				{Term: "2024-2025-HK1", GradeOfSubject: []grade.SubjectGradeInput{{SubjectID: "MATH", Grade: 10.5}}},
			}},
			wantFlds: []string{"termGrades[0].gradeOfSubject[0].grade"},
		},
		{
			name: "duplicate subject", studentID: "s1",
			imp: grade.Import{TermGrades: []grade.TermGradeInput{
				{Term: "2024-2025-HK1", GradeOfSubject: []grade.SubjectGradeInput{{SubjectID: "MATH", Grade: 5}, {SubjectID: "MATH", Grade: 6}}},
			}},
			wantFlds: []string{"termGrades[0].gradeOfSubject[1].subjectId"},
		},
		{
			name: "empty group", studentID: "s1",
			imp:      grade.Import{TermGrades: []grade.TermGradeInput{{Term: "2024-2025-HK1"}}},
			wantFlds: []string{"termGrades[0].gradeOfSubject"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.GradeSvc.ImportGrades(ctx, tt.studentID, tt.imp)
			if tt.wantErr != nil {
				if errors.Cause(err) != tt.wantErr {
					t.Errorf("ImportGrades() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			assert.Equal(t, tt.wantFlds, fieldNames(t, err))
		})
	}

	rec, err := f.GradeSvc.StudentRecord(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, rec.TermGrades, "nothing is written on failure")
}

func TestService_ImportGrades_suggestsTerm(t *testing.T) {
	f := seed(t)
	imp := grade.Import{TermGrades: []grade.TermGradeInput{
		{Term: "2024-2025-HKI", GradeOfSubject: []grade.SubjectGradeInput{{SubjectID: "MATH", Grade: 5}}},
	}}
	err := f.GradeSvc.ImportGrades(context.Background(), "s1", imp)

	var vErr *core.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "unknown term; did you mean 2024-2025-HK1?", vErr.Fields[0].Error)
}

func TestService_UpdateTermGrade(t *testing.T) {
	f := seed(t)
	ctx := context.Background()
	testutil.SaveGrades(t, f.GradeRepo, "s1", "2024-2025-HK1", map[string]float64{"MATH": 4, "LIT": 6})
	rec, err := f.GradeSvc.StudentRecord(ctx, "s1")
	require.NoError(t, err)
	tgID := rec.TermGrades[0].ID

	tg, err := f.GradeSvc.UpdateTermGrade(ctx, tgID, []grade.SubjectGradeInput{{SubjectID: "MATH", Grade: 5.5}})
	require.NoError(t, err)
	assert.Equal(t, []grade.SubjectGrade{
		{SubjectID: "MATH", SubjectName: "Mathematics", Credits: 4, Grade: 5.5, Status: grade.StatusFinalized},
	}, tg.Grades, "the list is replaced as a whole")

	_, err = f.GradeSvc.UpdateTermGrade(ctx, "missing", nil)
	if errors.Cause(err) != grade.ErrTermGradeNotFound {
		t.Errorf("UpdateTermGrade() error = %v, want %v", err, grade.ErrTermGradeNotFound)
	}

	_, err = f.GradeSvc.UpdateTermGrade(ctx, tgID, []grade.SubjectGradeInput{{SubjectID: "MATH", Grade: -1}})
	assert.Equal(t, []string{"gradeOfSubject[0].grade"}, fieldNames(t, err))
}

func TestImport_Validate(t *testing.T) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	grade.InitValidators(validate, translator)

	tests := []struct {
		name    string
		imp     grade.Import
		wantErr bool
	}{
		{
			name: "valid",
			imp: grade.Import{TermGrades: []grade.TermGradeInput{
				{Term: " 2024-2025-HK1 ", GradeOfSubject: []grade.SubjectGradeInput{{SubjectID: "MATH", Grade: 10}}},
			}},
		},
		{name: "empty", imp: grade.Import{}, wantErr: true},
		{
			name: "grade above max",
			imp: grade.Import{TermGrades: []grade.TermGradeInput{
				{Term: "t", GradeOfSubject: []grade.SubjectGradeInput{{SubjectID: "MATH", Grade: 11}}},
			}},
			wantErr: true,
		},
		{
			name: "duplicate subject",
			imp: grade.Import{TermGrades: []grade.TermGradeInput{
				{Term: "t", GradeOfSubject: []grade.SubjectGradeInput{{SubjectID: "MATH", Grade: 1}, {SubjectID: " MATH", Grade: 2}}},
			}},
			wantErr: true,
		},
		{
			name: "duplicate term",
			imp: grade.Import{TermGrades: []grade.TermGradeInput{
				{Term: "t", GradeOfSubject: []grade.SubjectGradeInput{{SubjectID: "MATH", Grade: 1}}},
				{Term: "t ", GradeOfSubject: []grade.SubjectGradeInput{{SubjectID: "PHYS", Grade: 1}}},
			}},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.imp.Validate(validate); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
