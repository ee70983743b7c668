package spreadsheet

import (
	"io"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/gradedesk/core/grade"
)

const (
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	rosterSheet = "Grades"
)

// WriteRoster writes a class gradebook as an xlsx workbook: one row per student, one column per subject
// holding the most recent committed grade, then the credit counters.
func WriteRoster(w io.Writer, subjects []grade.Subject, records []grade.GradeRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", rosterSheet); err != nil {
		return errors.Wrap(err, "naming sheet")
	}

	headers := []interface{}{"Student ID", "Name", "Class"}
	for _, sub := range subjects {
		headers = append(headers, sub.Name)
	}
	headers = append(headers, "Credits earned", "Credits owed")
	if err := setRow(f, 1, headers); err != nil {
		return err
	}

	for i, rec := range records {
		row := []interface{}{rec.Student.ID, rec.Student.Name, rec.Student.ClassID}
		for _, sub := range subjects {
			if sg, _, ok := rec.Committed(sub.ID); ok {
				row = append(row, sg.Grade)
			} else {
				row = append(row, nil)
			}
		}
		row = append(row, rec.CreditsEarned, rec.CreditsOwed)
		if err := setRow(f, i+2, row); err != nil {
			return err
		}
	}

	if err := f.SetPanes(rosterSheet, &excelize.Panes{
		Freeze:      true,
		XSplit:      2,
		YSplit:      1,
		TopLeftCell: "C2",
		ActivePane:  "bottomRight",
	}); err != nil {
		return errors.Wrap(err, "freezing header")
	}

	if err := f.Write(w); err != nil {
		return errors.Wrap(err, "writing workbook")
	}
	return nil
}

func setRow(f *excelize.File, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return errors.Wrap(err, "naming cell")
	}
	if err = f.SetSheetRow(rosterSheet, cell, &values); err != nil {
		return errors.Wrapf(err, "writing row %d", row)
	}
	return nil
}
