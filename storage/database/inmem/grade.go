package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/gradedesk/core/grade"
	"github.com/trezcool/gradedesk/core/term"
)

type gradeRepository struct {
	db *DB
}

var _ grade.Repository = (*gradeRepository)(nil)

func NewGradeRepository(db *DB) grade.Repository {
	return &gradeRepository{db: db}
}

func (repo *gradeRepository) CreateStudent(_ context.Context, st grade.Student) (grade.Student, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.students[st.ID]; ok {
		return grade.Student{}, grade.ErrStudentExists
	}
	repo.db.students[st.ID] = &st
	return st, nil
}

func (repo *gradeRepository) GetStudent(_ context.Context, id string) (grade.Student, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if st, ok := repo.db.students[id]; ok {
		return *st, nil
	}
	return grade.Student{}, grade.ErrStudentNotFound
}

func (repo *gradeRepository) QueryStudents(_ context.Context, classID string) ([]grade.Student, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	students := make([]grade.Student, 0)
	for _, st := range repo.db.students {
		if st.ClassID == classID {
			students = append(students, *st)
		}
	}
	sort.Slice(students, func(i, j int) bool { return students[i].ID < students[j].ID })
	return students, nil
}

func (repo *gradeRepository) CreateSubject(_ context.Context, sub grade.Subject) (grade.Subject, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.subjects[sub.ID]; ok {
		return grade.Subject{}, grade.ErrSubjectExists
	}
	repo.db.subjects[sub.ID] = &sub
	return sub, nil
}

func (repo *gradeRepository) QuerySubjects(context.Context) ([]grade.Subject, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	subjects := make([]grade.Subject, 0, len(repo.db.subjects))
	for _, sub := range repo.db.subjects {
		subjects = append(subjects, *sub)
	}
	sort.Slice(subjects, func(i, j int) bool { return subjects[i].ID < subjects[j].ID })
	return subjects, nil
}

func (repo *gradeRepository) QueryTermGrades(_ context.Context, studentIDs ...string) ([]grade.TermGrade, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	wanted := make(map[string]bool, len(studentIDs))
	for _, id := range studentIDs {
		wanted[id] = true
	}
	termGrades := make([]grade.TermGrade, 0)
	for _, row := range repo.db.termGrades {
		if wanted[row.studentID] {
			termGrades = append(termGrades, repo.termGrade(row))
		}
	}
	sort.Slice(termGrades, func(i, j int) bool {
		a, b := termGrades[i], termGrades[j]
		if a.StudentID != b.StudentID {
			return a.StudentID < b.StudentID
		}
		return a.Term.StartsOn.Before(b.Term.StartsOn)
	})
	return termGrades, nil
}

func (repo *gradeRepository) GetTermGrade(_ context.Context, id string) (grade.TermGrade, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if row, ok := repo.db.termGrades[id]; ok {
		return repo.termGrade(row), nil
	}
	return grade.TermGrade{}, grade.ErrTermGradeNotFound
}

func (repo *gradeRepository) SaveTermGrades(_ context.Context, studentID string, writes []grade.TermGradeWrite) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	// check everything first so a failed save leaves no partial writes
	if _, ok := repo.db.students[studentID]; !ok {
		return grade.ErrStudentNotFound
	}
	for _, w := range writes {
		if _, ok := repo.db.terms[w.TermID]; !ok {
			return term.ErrNotFound
		}
	}

	for _, w := range writes {
		row := repo.findTermGrade(studentID, w.TermID)
		if row == nil {
			row = &termGradeRow{
				id:        uuid.NewString(),
				studentID: studentID,
				termID:    w.TermID,
				grades:    make(map[string]subjectGradeRow),
			}
			repo.db.termGrades[row.id] = row
		}
		if w.Note != nil {
			note := *w.Note
			row.note = &note
		}
		for _, g := range w.Grades {
			row.grades[g.SubjectID] = subjectGradeRow{grade: g.Grade, status: g.Status}
		}
	}
	return nil
}

func (repo *gradeRepository) ReplaceTermGrade(_ context.Context, id string, grades []grade.GradeWrite) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	row, ok := repo.db.termGrades[id]
	if !ok {
		return grade.ErrTermGradeNotFound
	}
	row.grades = make(map[string]subjectGradeRow, len(grades))
	for _, g := range grades {
		row.grades[g.SubjectID] = subjectGradeRow{grade: g.Grade, status: g.Status}
	}
	return nil
}

func (repo *gradeRepository) findTermGrade(studentID, termID string) *termGradeRow {
	for _, row := range repo.db.termGrades {
		if row.studentID == studentID && row.termID == termID {
			return row
		}
	}
	return nil
}

// termGrade joins a row with its term and subjects. The caller holds the lock.
func (repo *gradeRepository) termGrade(row *termGradeRow) grade.TermGrade {
	tg := grade.TermGrade{
		ID:        row.id,
		StudentID: row.studentID,
		Term:      grade.TermRef{ID: row.termID},
		Grades:    make([]grade.SubjectGrade, 0, len(row.grades)),
	}
	if t, ok := repo.db.terms[row.termID]; ok {
		tg.Term.Name = t.Name
		tg.Term.StartsOn = t.StartsOn
	}
	if row.note != nil {
		note := *row.note
		tg.Note = &note
	}
	for subjectID, g := range row.grades {
		sg := grade.SubjectGrade{SubjectID: subjectID, Grade: g.grade, Status: g.status}
		if sub, ok := repo.db.subjects[subjectID]; ok {
			sg.SubjectName = sub.Name
			sg.Credits = sub.Credits
		}
		tg.Grades = append(tg.Grades, sg)
	}
	sort.Slice(tg.Grades, func(i, j int) bool { return tg.Grades[i].SubjectID < tg.Grades[j].SubjectID })
	return tg
}
