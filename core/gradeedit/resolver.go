package gradeedit

import "github.com/trezcool/gradedesk/core/grade"

type (
	CellState string
	Tier      string
	Action    string
)

const (
	StateCurrentEdit CellState = "current_edit"
	StateOtherEdit   CellState = "other_edit"
	StateNormal      CellState = "normal"

	TierSuccess Tier = "success"
	TierWarning Tier = "warning"
	TierError   Tier = "error"
	TierNeutral Tier = "neutral"

	ActionNone           Action = "none"
	ActionInlineEdit     Action = "inline_edit"
	ActionReassign       Action = "reassign"
	ActionUpdateDialog   Action = "update_dialog"
	ActionDeferredDialog Action = "deferred_dialog"

	successFloor = 8.0
	warningFloor = 6.5
	errorCeil    = 5.0
)

// TierOf color-codes a grade. Grades in [5, 6.5) have no tier of their own and are neutral.
func TierOf(g float64) Tier {
	switch {
	case g >= successFloor:
		return TierSuccess
	case g >= warningFloor:
		return TierWarning
	case g < errorCeil:
		return TierError
	default:
		return TierNeutral
	}
}

// Committed is the committed grade shown by a cell.
type Committed struct {
	Grade       float64 `json:"grade"`
	Status      string  `json:"status"`
	TermID      string  `json:"term_id"`
	TermName    string  `json:"term_name"`
	TermGradeID string  `json:"term_grade_id"`
}

// ResolvedCell is what a (student, subject) cell shows and what clicking it does.
type ResolvedCell struct {
	StudentID     string     `json:"student_id"`
	SubjectID     string     `json:"subject_id"`
	State         CellState  `json:"state"`
	Value         *float64   `json:"value"`
	EditTermID    string     `json:"edit_term_id,omitempty"`
	CurrentTermID string     `json:"current_term_id,omitempty"`
	Committed     *Committed `json:"committed,omitempty"`
	Tier          Tier       `json:"tier"`
	Editable      bool       `json:"editable"`
	Action        Action     `json:"action"`
}

// Resolve merges the committed record with the pending edits for one cell.
// currentTermID is empty when no term is selected.
func Resolve(rec grade.GradeRecord, buf *Buffer, currentTermID, subjectID string) ResolvedCell {
	studentID := rec.Student.ID
	cell := ResolvedCell{
		StudentID:     studentID,
		SubjectID:     subjectID,
		CurrentTermID: currentTermID,
		Tier:          TierNeutral,
		Action:        ActionNone,
	}
	if sg, tg, ok := rec.Committed(subjectID); ok {
		cell.Committed = &Committed{
			Grade:       sg.Grade,
			Status:      sg.Status,
			TermID:      tg.Term.ID,
			TermName:    tg.Term.Name,
			TermGradeID: tg.ID,
		}
	}

	if currentTermID != "" {
		if g, ok := buf.Get(Key{StudentID: studentID, SubjectID: subjectID, TermID: currentTermID}); ok {
			cell.State = StateCurrentEdit
			cell.EditTermID = currentTermID
			cell.setValue(g)
			cell.Editable = true
			cell.Action = ActionInlineEdit
			return cell
		}
	}

	if other, ok := buf.FindOtherTerm(studentID, subjectID, currentTermID); ok {
		cell.State = StateOtherEdit
		cell.EditTermID = other.TermID
		cell.setValue(other.Grade)
		if currentTermID != "" {
			cell.Action = ActionReassign
		}
		return cell
	}

	cell.State = StateNormal
	if cell.Committed != nil {
		cell.setValue(cell.Committed.Grade)
	}
	switch {
	case currentTermID != "":
		cell.Editable = true
		cell.Action = ActionInlineEdit
	case cell.Committed != nil:
		cell.Action = ActionUpdateDialog
	default:
		cell.Action = ActionDeferredDialog
	}
	return cell
}

func (c *ResolvedCell) setValue(g float64) {
	c.Value = &g
	c.Tier = TierOf(g)
}
