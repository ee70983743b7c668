package tests

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/gradedesk/core/auth"
	"github.com/trezcool/gradedesk/core/grade"
)

func Test_gradeApi_classRoster(t *testing.T) {
	app, f := setup(t)
	seed(t, f)

	s1, s2 := studentRecord(t, f, "S1"), studentRecord(t, f, "S2")
	instructorToken := getToken(t, "t1", auth.RoleInstructor)

	runHTTPTests(t, app, []httpTest{
		{name: "Auth required", path: "/v1/classes/10A/grades", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Staff required", path: "/v1/classes/10A/grades", token: getToken(t, "S1", auth.RoleStudent),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{name: "Roster", path: "/v1/classes/10A/grades", token: instructorToken, wantData: marchallObj(t, []grade.GradeRecord{s1, s2})},
		{
			name: "Roster (admin, ordered)", path: "/v1/classes/10A/grades?ordering=-credits_earned,name",
			token: getToken(t, "root", auth.RoleAdmin), wantData: marchallObj(t, []grade.GradeRecord{s2, s1}),
		},
		{name: "Unknown class", path: "/v1/classes/12C/grades", token: instructorToken, wantData: []byte(`[]`)},
	})
}

func Test_gradeApi_classRosterExport(t *testing.T) {
	app, f := setup(t)
	seed(t, f)

	runHTTPTests(t, app, []httpTest{
		{
			name: "Staff required", path: "/v1/classes/10A/grades/export", token: getToken(t, "S1", auth.RoleStudent),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
	})

	req, rec := newAuthRequest(http.MethodGet, "/v1/classes/10A/grades/export", getToken(t, "t1", auth.RoleInstructor))
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, `attachment; filename="grades-10A.xlsx"`, rec.Header().Get("Content-Disposition"))

	wb, err := excelize.OpenReader(rec.Body)
	require.NoError(t, err)
	defer wb.Close()
	rows, err := wb.GetRows("Grades")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Student ID", "Name", "Class", "Mathematics", "Physics", "Credits earned", "Credits owed"}, rows[0])
	physics, err := wb.GetCellValue("Grades", "E3")
	require.NoError(t, err)
	assert.Equal(t, "6", physics)
}

func Test_gradeApi_studentRecord(t *testing.T) {
	app, f := setup(t)
	seed(t, f)

	studentToken := getToken(t, "S1", auth.RoleStudent)
	instructorToken := getToken(t, "t1", auth.RoleInstructor)

	runHTTPTests(t, app, []httpTest{
		{name: "Own record", path: "/v1/students/me/grades", token: studentToken, wantData: marchallObj(t, studentRecord(t, f, "S1"))},
		{
			name: "Own record (staff)", path: "/v1/students/me/grades", token: instructorToken,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{name: "Record", path: "/v1/students/S2/grades", token: instructorToken, wantData: marchallObj(t, studentRecord(t, f, "S2"))},
		{
			name: "Record (student)", path: "/v1/students/S2/grades", token: studentToken,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "Unknown student", path: "/v1/students/S9/grades", token: instructorToken,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "student not found"}),
		},
	})
}

func Test_gradeApi_gradesImport(t *testing.T) {
	app, f := setup(t)
	seed(t, f)

	studentToken := getToken(t, "S1", auth.RoleStudent)
	instructorToken := getToken(t, "t1", auth.RoleInstructor)
	valid := []byte(`{"termGrades": [{"term": "T1", "gradeOfSubject": [{"subjectId": "M1", "grade": 8.5}]}]}`)

	runHTTPTests(t, app, []httpTest{
		{
			name: "Someone else's grades", method: http.MethodPost, path: "/v1/students/S2/grades/import", token: studentToken,
			body: valid, wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "Grade out of range", method: http.MethodPost, path: "/v1/students/S1/grades/import", token: studentToken,
			body:     []byte(`{"termGrades": [{"term": "T1", "gradeOfSubject": [{"subjectId": "M1", "grade": 11}]}]}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"termGrades[0].gradeOfSubject[0].grade": "grade must be between 0 and 10"}`),
		},
		{
			name: "Empty import", method: http.MethodPost, path: "/v1/students/S1/grades/import", token: studentToken,
			body: []byte(`{"termGrades": []}`), wantCode: http.StatusBadRequest,
		},
		{
			name: "Unknown term", method: http.MethodPost, path: "/v1/students/S1/grades/import", token: instructorToken,
			body:     []byte(`{"termGrades": [{"term": "T9", "gradeOfSubject": [{"subjectId": "M1", "grade": 8}]}]}`),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "Unknown student", method: http.MethodPost, path: "/v1/students/S9/grades/import", token: instructorToken,
			body: valid, wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "student not found"}),
		},
		{name: "Own grades", method: http.MethodPost, path: "/v1/students/S1/grades/import", token: studentToken, body: valid},
	})

	sg, tg, ok := committedGrade(t, f, "S1", "M1")
	require.True(t, ok)
	assert.Equal(t, 8.5, sg.Grade)
	assert.Equal(t, "T1", tg.Term.ID)
}

func Test_gradeApi_termGradeUpdate(t *testing.T) {
	app, f := setup(t)
	seed(t, f)

	tg, ok := studentRecord(t, f, "S2").TermGrade("T1")
	require.True(t, ok)
	path := "/v1/term-grades/" + tg.ID
	instructorToken := getToken(t, "t1", auth.RoleInstructor)

	runHTTPTests(t, app, []httpTest{
		{
			name: "Staff required", method: http.MethodPut, path: path, token: getToken(t, "S2", auth.RoleStudent),
			body: []byte(`{"gradeOfSubject": []}`), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "Duplicate subject", method: http.MethodPut, path: path, token: instructorToken,
			body:     []byte(`{"gradeOfSubject": [{"subjectId": "P1", "grade": 7}, {"subjectId": "P1", "grade": 8}]}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"gradeOfSubject": "a subject may only appear once per term"}`),
		},
		{
			name: "Unknown term grade", method: http.MethodPut, path: "/v1/term-grades/nope", token: instructorToken,
			body:     []byte(`{"gradeOfSubject": [{"subjectId": "P1", "grade": 7}]}`),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "term grade not found"}),
		},
	})

	t.Run("Replace", func(t *testing.T) {
		body := []byte(`{"gradeOfSubject": [{"subjectId": "P1", "grade": 7.5}, {"subjectId": "M1", "grade": 9}]}`)
		req, rec := newAuthRequest(http.MethodPut, path, instructorToken, body)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var got grade.TermGrade
		unmarchall(t, rec, &got)
		assert.Equal(t, tg.ID, got.ID)
		require.Len(t, got.Grades, 2)
		assert.Equal(t, "M1", got.Grades[0].SubjectID)
		assert.Equal(t, 9.0, got.Grades[0].Grade)
		assert.Equal(t, 7.5, got.Grades[1].Grade)

		rec2, err := f.GradeSvc.StudentRecord(context.Background(), "S2")
		require.NoError(t, err)
		assert.Equal(t, 7, rec2.CreditsEarned)
	})
}
