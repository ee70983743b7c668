package inmemdb

import (
	"sync"

	"github.com/trezcool/gradedesk/core/grade"
	"github.com/trezcool/gradedesk/core/term"
)

type (
	// DB is a process-local stand-in for the postgres schema. Repositories join across its tables,
	// so one lock guards them all.
	DB struct {
		mutex      sync.RWMutex
		terms      map[string]*term.Term
		students   map[string]*grade.Student
		subjects   map[string]*grade.Subject
		termGrades map[string]*termGradeRow
	}

	termGradeRow struct {
		id        string
		studentID string
		termID    string
		note      *string
		grades    map[string]subjectGradeRow
	}

	subjectGradeRow struct {
		grade  float64
		status string
	}
)

func Open() *DB {
	return &DB{
		terms:      make(map[string]*term.Term),
		students:   make(map[string]*grade.Student),
		subjects:   make(map[string]*grade.Subject),
		termGrades: make(map[string]*termGradeRow),
	}
}
