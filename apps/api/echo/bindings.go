package echoapi

import (
	"encoding/json"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/gradedesk/core"
)

var orderingParam = "ordering"

func bindOrderings(ctx echo.Context, allowed ...string) []core.Ordering {
	return core.ParseOrderings(ctx.QueryParam(orderingParam), allowed...)
}

// cellValue is a typed cell value. Clients may send it as a JSON string or number; null means blank.
type cellValue string

func (v *cellValue) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*v = ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*v = cellValue(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*v = cellValue(s)
	return nil
}

func (v cellValue) String() string {
	return string(v)
}
