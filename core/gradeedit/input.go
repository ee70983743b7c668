package gradeedit

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/trezcool/gradedesk/core"
	"github.com/trezcool/gradedesk/core/grade"
)

var (
	gradeRangeText = fmt.Sprintf("grade must be a number between %g and %g", grade.MinGrade, grade.MaxGrade)
	gradeRegex     = regexp.MustCompile(`^[+-]?(\d+([.,]\d*)?|[.,]\d+)$`)
)

// ParseGrade reads a typed cell value. It reports empty for blank input, which clears the cell.
// Only plain decimals are accepted, with a dot or a comma.
func ParseGrade(raw string) (g float64, empty bool, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, true, nil
	}
	invalid := core.NewValidationError(nil, core.FieldError{Field: "value", Error: gradeRangeText})
	if !gradeRegex.MatchString(raw) {
		return 0, false, invalid
	}
	g, err = strconv.ParseFloat(strings.Replace(raw, ",", ".", 1), 64)
	if err != nil || !grade.ValidGrade(g) {
		return 0, false, invalid
	}
	if g == 0 {
		g = 0 // drop the sign of -0
	}
	return g, false, nil
}
