// Package exportsvc renders attendance reports as Excel workbooks.
package exportsvc

import (
	"bytes"
	"fmt"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/kahero/campushub/core/attendance"
	"github.com/kahero/campushub/core/event"
)

const sheetName = "Attendance"

type WorkbookExporter struct{}

var _ attendance.Exporter = (*WorkbookExporter)(nil) // interface compliance check

func NewWorkbookExporter() *WorkbookExporter {
	return &WorkbookExporter{}
}

// EventReportWorkbook renders a summary block followed by one row per
// attendance record, ordered as given.
func (WorkbookExporter) EventReportWorkbook(evt event.Event, rpt attendance.Report, rows []attendance.ReportRow) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	f.SetSheetName("Sheet1", sheetName)

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, errors.Wrap(err, "creating style")
	}

	summary := [][2]interface{}{
		{"Event", evt.Name},
		{"Type", evt.Type},
		{"Date", evt.StartsAt.Format("2006-01-02")},
		{"Venue", evt.Venue},
		{"Total Registered", rpt.TotalRegistered},
		{"Total Present", rpt.TotalPresent},
		{"Total Absent", rpt.TotalAbsent},
		{"Attendance", rpt.AttendancePercentage.String() + "%"},
	}
	for i, kv := range summary {
		row := i + 1
		if err = f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), kv[0]); err != nil {
			return nil, errors.Wrap(err, "writing summary")
		}
		if err = f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), kv[1]); err != nil {
			return nil, errors.Wrap(err, "writing summary")
		}
	}
	if err = f.SetCellStyle(sheetName, "A1", fmt.Sprintf("A%d", len(summary)), bold); err != nil {
		return nil, errors.Wrap(err, "styling summary")
	}

	headerRow := len(summary) + 2
	headers := []string{"USN", "Student Name", "Department", "Status", "Marked At", "Remarks"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, headerRow)
		if err = f.SetCellValue(sheetName, cell, h); err != nil {
			return nil, errors.Wrap(err, "writing header")
		}
	}
	first, _ := excelize.CoordinatesToCellName(1, headerRow)
	last, _ := excelize.CoordinatesToCellName(len(headers), headerRow)
	if err = f.SetCellStyle(sheetName, first, last, bold); err != nil {
		return nil, errors.Wrap(err, "styling header")
	}

	for i, row := range rows {
		values := []interface{}{
			row.USN,
			row.StudentName,
			row.Department,
			row.Status,
			row.MarkedAt.Format("2006-01-02 15:04"),
			row.Remarks,
		}
		for j, v := range values {
			cell, _ := excelize.CoordinatesToCellName(j+1, headerRow+1+i)
			if err = f.SetCellValue(sheetName, cell, v); err != nil {
				return nil, errors.Wrap(err, "writing row")
			}
		}
	}

	if err = f.SetColWidth(sheetName, "A", "F", 22); err != nil {
		return nil, errors.Wrap(err, "sizing columns")
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, errors.Wrap(err, "writing workbook")
	}
	return buf, nil
}
