package gradeedit

import (
	"fmt"
	"strconv"
)

// CellRenderer turns a resolved cell into whatever a front end draws.
type CellRenderer interface {
	RenderCell(c ResolvedCell) CellView
}

type CellView struct {
	StudentID  string     `json:"student_id"`
	SubjectID  string     `json:"subject_id"`
	Text       string     `json:"text"`
	Value      *float64   `json:"value"`
	State      CellState  `json:"state"`
	Tier       Tier       `json:"tier"`
	Badge      string     `json:"badge,omitempty"`
	EditTermID string     `json:"edit_term_id,omitempty"`
	Committed  *Committed `json:"committed,omitempty"`
	Editable   bool       `json:"editable"`
	Action     Action     `json:"action"`
}

// AddAffordance is the text of an empty cell that opens the deferred grade dialog.
const AddAffordance = "+"

// DefaultRenderer renders cells for the JSON API.
type DefaultRenderer struct {
	// TermName maps a term id to its display name. The id is shown when nil.
	TermName func(id string) string
}

var _ CellRenderer = DefaultRenderer{}

func (r DefaultRenderer) RenderCell(c ResolvedCell) CellView {
	v := CellView{
		StudentID:  c.StudentID,
		SubjectID:  c.SubjectID,
		Value:      c.Value,
		State:      c.State,
		Tier:       c.Tier,
		EditTermID: c.EditTermID,
		Committed:  c.Committed,
		Editable:   c.Editable,
		Action:     c.Action,
	}
	switch {
	case c.Value != nil:
		v.Text = FormatGrade(*c.Value)
	case c.Action == ActionDeferredDialog:
		v.Text = AddAffordance
	}

	switch c.State {
	case StateCurrentEdit:
		v.Badge = fmt.Sprintf("unsaved, term=%s", r.termName(c.EditTermID))
	case StateOtherEdit:
		if c.CurrentTermID != "" {
			v.Badge = fmt.Sprintf("pending for %s; click to move to %s", r.termName(c.EditTermID), r.termName(c.CurrentTermID))
		} else {
			v.Badge = fmt.Sprintf("pending for %s", r.termName(c.EditTermID))
		}
	}
	return v
}

func (r DefaultRenderer) termName(id string) string {
	if r.TermName == nil {
		return id
	}
	if name := r.TermName(id); name != "" {
		return name
	}
	return id
}

// FormatGrade formats g with one decimal.
func FormatGrade(g float64) string {
	return strconv.FormatFloat(g, 'f', 1, 64)
}
