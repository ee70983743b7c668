package sqlxrepos

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/gradedesk/core/grade"
)

type (
	studentRow struct {
		ID              string `db:"id"`
		Name            string `db:"name"`
		ClassID         string `db:"class_id"`
		CreditsRequired int    `db:"credits_required"`
	}

	subjectRow struct {
		ID      string `db:"id"`
		Name    string `db:"name"`
		Credits int    `db:"credits"`
	}

	termGradeRow struct {
		ID           string      `db:"id"`
		StudentID    string      `db:"student_id"`
		TermID       string      `db:"term_id"`
		TermName     string      `db:"term_name"`
		TermStartsOn time.Time   `db:"term_starts_on"`
		Note         null.String `db:"note"`
	}

	subjectGradeRow struct {
		TermGradeID string  `db:"term_grade_id"`
		SubjectID   string  `db:"subject_id"`
		SubjectName string  `db:"subject_name"`
		Credits     int     `db:"credits"`
		Grade       float64 `db:"grade"`
		Status      string  `db:"status"`
	}
)

func (r studentRow) student() grade.Student {
	return grade.Student{ID: r.ID, Name: r.Name, ClassID: r.ClassID, CreditsRequired: r.CreditsRequired}
}

const (
	termGradeSelect = `
		SELECT tg.id, tg.student_id, tg.term_id, t.name AS term_name, t.starts_on AS term_starts_on, tg.note
		FROM term_grade tg JOIN term t ON t.id = tg.term_id`
	subjectGradeSelect = `
		SELECT sg.term_grade_id, sg.subject_id, s.name AS subject_name, s.credits, sg.grade, sg.status
		FROM subject_grade sg JOIN subject s ON s.id = sg.subject_id`
)

type gradeRepository struct {
	db *sqlx.DB
}

var _ grade.Repository = (*gradeRepository)(nil)

func NewGradeRepository(db *sqlx.DB) grade.Repository {
	return &gradeRepository{db: db}
}

func (repo *gradeRepository) CreateStudent(ctx context.Context, st grade.Student) (grade.Student, error) {
	row := studentRow{ID: st.ID, Name: st.Name, ClassID: st.ClassID, CreditsRequired: st.CreditsRequired}
	_, err := repo.db.NamedExecContext(ctx, `
		INSERT INTO student (id, name, class_id, credits_required)
		VALUES (:id, :name, :class_id, :credits_required)`, row)
	if isUniqueViolation(err) {
		return grade.Student{}, grade.ErrStudentExists
	}
	return row.student(), errors.Wrap(err, "inserting student")
}

func (repo *gradeRepository) GetStudent(ctx context.Context, id string) (grade.Student, error) {
	var row studentRow
	err := repo.db.GetContext(ctx, &row, `SELECT id, name, class_id, credits_required FROM student WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return grade.Student{}, grade.ErrStudentNotFound
	}
	if err != nil {
		return grade.Student{}, errors.Wrap(err, "selecting student")
	}
	return row.student(), nil
}

func (repo *gradeRepository) QueryStudents(ctx context.Context, classID string) ([]grade.Student, error) {
	var rows []studentRow
	err := repo.db.SelectContext(ctx, &rows, `
		SELECT id, name, class_id, credits_required FROM student WHERE class_id = $1 ORDER BY id`, classID)
	if err != nil {
		return nil, errors.Wrap(err, "selecting students")
	}
	students := make([]grade.Student, 0, len(rows))
	for _, r := range rows {
		students = append(students, r.student())
	}
	return students, nil
}

func (repo *gradeRepository) CreateSubject(ctx context.Context, sub grade.Subject) (grade.Subject, error) {
	row := subjectRow{ID: sub.ID, Name: sub.Name, Credits: sub.Credits}
	_, err := repo.db.NamedExecContext(ctx, `INSERT INTO subject (id, name, credits) VALUES (:id, :name, :credits)`, row)
	if isUniqueViolation(err) {
		return grade.Subject{}, grade.ErrSubjectExists
	}
	return sub, errors.Wrap(err, "inserting subject")
}

func (repo *gradeRepository) QuerySubjects(ctx context.Context) ([]grade.Subject, error) {
	var rows []subjectRow
	if err := repo.db.SelectContext(ctx, &rows, `SELECT id, name, credits FROM subject ORDER BY id`); err != nil {
		return nil, errors.Wrap(err, "selecting subjects")
	}
	subjects := make([]grade.Subject, 0, len(rows))
	for _, r := range rows {
		subjects = append(subjects, grade.Subject{ID: r.ID, Name: r.Name, Credits: r.Credits})
	}
	return subjects, nil
}

func (repo *gradeRepository) QueryTermGrades(ctx context.Context, studentIDs ...string) ([]grade.TermGrade, error) {
	if len(studentIDs) == 0 {
		return []grade.TermGrade{}, nil
	}
	var rows []termGradeRow
	err := repo.db.SelectContext(ctx, &rows,
		termGradeSelect+` WHERE tg.student_id = ANY($1) ORDER BY tg.student_id, t.starts_on`, pq.Array(studentIDs))
	if err != nil {
		return nil, errors.Wrap(err, "selecting term grades")
	}
	return repo.withGrades(ctx, rows)
}

func (repo *gradeRepository) GetTermGrade(ctx context.Context, id string) (grade.TermGrade, error) {
	if _, err := uuid.Parse(id); err != nil {
		return grade.TermGrade{}, grade.ErrTermGradeNotFound
	}
	var row termGradeRow
	err := repo.db.GetContext(ctx, &row, termGradeSelect+` WHERE tg.id = $1`, id)
	if err == sql.ErrNoRows {
		return grade.TermGrade{}, grade.ErrTermGradeNotFound
	}
	if err != nil {
		return grade.TermGrade{}, errors.Wrap(err, "selecting term grade")
	}
	termGrades, err := repo.withGrades(ctx, []termGradeRow{row})
	if err != nil {
		return grade.TermGrade{}, err
	}
	return termGrades[0], nil
}

func (repo *gradeRepository) SaveTermGrades(ctx context.Context, studentID string, writes []grade.TermGradeWrite) (err error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, w := range writes {
		var tgID string
		err = tx.GetContext(ctx, &tgID, `
			INSERT INTO term_grade (id, student_id, term_id, note) VALUES ($1, $2, $3, $4)
			ON CONFLICT (student_id, term_id) DO UPDATE SET note = COALESCE(EXCLUDED.note, term_grade.note)
			RETURNING id`,
			uuid.NewString(), studentID, w.TermID, null.StringFromPtr(w.Note))
		if err != nil {
			return errors.Wrap(err, "upserting term grade")
		}
		for _, g := range w.Grades {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO subject_grade (term_grade_id, subject_id, grade, status) VALUES ($1, $2, $3, $4)
				ON CONFLICT (term_grade_id, subject_id) DO UPDATE SET grade = EXCLUDED.grade, status = EXCLUDED.status`,
				tgID, g.SubjectID, g.Grade, g.Status)
			if err != nil {
				return errors.Wrap(err, "upserting subject grade")
			}
		}
	}
	return errors.Wrap(tx.Commit(), "committing term grades")
}

func (repo *gradeRepository) ReplaceTermGrade(ctx context.Context, id string, grades []grade.GradeWrite) (err error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM subject_grade WHERE term_grade_id = $1`, id); err != nil {
		return errors.Wrap(err, "deleting subject grades")
	}
	for _, g := range grades {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO subject_grade (term_grade_id, subject_id, grade, status) VALUES ($1, $2, $3, $4)`,
			id, g.SubjectID, g.Grade, g.Status)
		if err != nil {
			return errors.Wrap(err, "inserting subject grade")
		}
	}
	return errors.Wrap(tx.Commit(), "committing term grade")
}

// withGrades loads the subject grades of rows and assembles the term grades, keeping the order of rows.
func (repo *gradeRepository) withGrades(ctx context.Context, rows []termGradeRow) ([]grade.TermGrade, error) {
	termGrades := make([]grade.TermGrade, 0, len(rows))
	if len(rows) == 0 {
		return termGrades, nil
	}
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}

	var gradeRows []subjectGradeRow
	err := repo.db.SelectContext(ctx, &gradeRows,
		subjectGradeSelect+` WHERE sg.term_grade_id = ANY($1::uuid[]) ORDER BY sg.subject_id`, pq.Array(ids))
	if err != nil {
		return nil, errors.Wrap(err, "selecting subject grades")
	}
	byTermGrade := make(map[string][]grade.SubjectGrade, len(rows))
	for _, g := range gradeRows {
		byTermGrade[g.TermGradeID] = append(byTermGrade[g.TermGradeID], grade.SubjectGrade{
			SubjectID:   g.SubjectID,
			SubjectName: g.SubjectName,
			Credits:     g.Credits,
			Grade:       g.Grade,
			Status:      g.Status,
		})
	}

	for _, r := range rows {
		grades := byTermGrade[r.ID]
		if grades == nil {
			grades = []grade.SubjectGrade{}
		}
		sort.Slice(grades, func(i, j int) bool { return grades[i].SubjectID < grades[j].SubjectID })
		termGrades = append(termGrades, grade.TermGrade{
			ID:        r.ID,
			StudentID: r.StudentID,
			Term:      grade.TermRef{ID: r.TermID, Name: r.TermName, StartsOn: r.TermStartsOn.UTC()},
			Grades:    grades,
			Note:      r.Note.Ptr(),
		})
	}
	return termGrades, nil
}
