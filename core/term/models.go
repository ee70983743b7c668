package term

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/gradedesk/core"
)

// Term is an academic semester/period grades are scoped to.
type Term struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	StartsOn time.Time `json:"starts_on"`
	EndsOn   time.Time `json:"ends_on"`
}

// NewTerm contains information needed to add a Term to the catalog.
type NewTerm struct {
	ID       string    `json:"id" validate:"required,ident"`
	Name     string    `json:"name" validate:"required"`
	StartsOn time.Time `json:"starts_on" validate:"required"`
	EndsOn   time.Time `json:"ends_on" validate:"required,gtfield=StartsOn"`
}

func (nt *NewTerm) Validate(validate *validator.Validate) error {
	nt.ID = core.CleanString(nt.ID)
	nt.Name = core.CleanString(nt.Name)
	return validate.Struct(nt)
}
