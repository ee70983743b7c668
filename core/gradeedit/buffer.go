package gradeedit

import (
	"sort"

	"github.com/trezcool/gradedesk/core/grade"
)

// Key identifies a pending edit. The term is part of the key because a cell may be edited
// against different candidate terms before commit.
type Key struct {
	StudentID string `json:"student_id"`
	SubjectID string `json:"subject_id"`
	TermID    string `json:"term_id"`
}

func (k Key) cell() cellRef {
	return cellRef{studentID: k.StudentID, subjectID: k.SubjectID}
}

// Edit is an uncommitted grade value.
type Edit struct {
	Key
	Grade float64 `json:"grade"`
}

type (
	cellRef struct {
		studentID string
		subjectID string
	}

	pending struct {
		termID string
		grade  float64
	}
)

// Buffer holds pending grade edits. Edits are stored per (student, subject) cell, so at most one
// edit per cell exists across all terms.
// A Buffer is not safe for concurrent use; Session serializes access to it.
type Buffer struct {
	edits map[cellRef]pending
}

func NewBuffer() *Buffer {
	return &Buffer{edits: make(map[cellRef]pending)}
}

// Set inserts or overwrites the edit for key. An edit of the same cell filed under another term is replaced.
func (b *Buffer) Set(key Key, g float64) {
	b.edits[key.cell()] = pending{termID: key.TermID, grade: grade.ClampGrade(g)}
}

// Clear removes exactly key; an edit of the same cell under another term is kept.
func (b *Buffer) Clear(key Key) {
	if p, ok := b.edits[key.cell()]; ok && p.termID == key.TermID {
		delete(b.edits, key.cell())
	}
}

// Reassign moves the edit stored under oldKey to newTermID, keeping its value.
// It reports false if oldKey holds no edit.
func (b *Buffer) Reassign(oldKey Key, newTermID string) bool {
	p, ok := b.edits[oldKey.cell()]
	if !ok || p.termID != oldKey.TermID {
		return false
	}
	p.termID = newTermID
	b.edits[oldKey.cell()] = p
	return true
}

func (b *Buffer) ClearAll() {
	b.edits = make(map[cellRef]pending)
}

// ClearStudents drops every edit of the given students.
func (b *Buffer) ClearStudents(studentIDs ...string) {
	drop := make(map[string]bool, len(studentIDs))
	for _, id := range studentIDs {
		drop[id] = true
	}
	for ref := range b.edits {
		if drop[ref.studentID] {
			delete(b.edits, ref)
		}
	}
}

func (b *Buffer) Get(key Key) (float64, bool) {
	p, ok := b.edits[key.cell()]
	if !ok || p.termID != key.TermID {
		return 0, false
	}
	return p.grade, true
}

// FindOtherTerm returns the edit of the (student, subject) cell if it is filed under a term other than excludeTermID.
func (b *Buffer) FindOtherTerm(studentID, subjectID, excludeTermID string) (Edit, bool) {
	p, ok := b.edits[cellRef{studentID: studentID, subjectID: subjectID}]
	if !ok || p.termID == excludeTermID {
		return Edit{}, false
	}
	return Edit{Key: Key{StudentID: studentID, SubjectID: subjectID, TermID: p.termID}, Grade: p.grade}, true
}

func (b *Buffer) Len() int {
	return len(b.edits)
}

// Edits returns every pending edit ordered by student then subject.
func (b *Buffer) Edits() []Edit {
	edits := make([]Edit, 0, len(b.edits))
	for ref, p := range b.edits {
		edits = append(edits, Edit{
			Key:   Key{StudentID: ref.studentID, SubjectID: ref.subjectID, TermID: p.termID},
			Grade: p.grade,
		})
	}
	sort.Slice(edits, func(i, j int) bool {
		if edits[i].StudentID != edits[j].StudentID {
			return edits[i].StudentID < edits[j].StudentID
		}
		return edits[i].SubjectID < edits[j].SubjectID
	})
	return edits
}
