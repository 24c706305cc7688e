package exportsvc

import (
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kahero/campushub/core/attendance"
	"github.com/kahero/campushub/core/event"
)

func TestEventReportWorkbook(t *testing.T) {
	evt := event.Event{
		Name:     "Tech Talk",
		Type:     event.TypeNormal,
		StartsAt: time.Date(2021, 3, 14, 10, 0, 0, 0, time.UTC),
		Venue:    "Auditorium",
	}
	rpt := attendance.Report{
		TotalRegistered:      2,
		TotalPresent:         1,
		TotalAbsent:          1,
		AttendancePercentage: 5000,
	}
	rows := []attendance.ReportRow{
		{USN: "1AB21CS001", StudentName: "Asha Rao", Department: "CSE", Status: attendance.StatusPresent, MarkedAt: evt.StartsAt},
		{USN: "1AB21CS002", StudentName: "Ravi Kumar", Department: "CSE", Status: attendance.StatusAbsent, MarkedAt: evt.StartsAt},
	}

	buf, err := NewWorkbookExporter().EventReportWorkbook(evt, rpt, rows)
	if err != nil {
		t.Fatalf("EventReportWorkbook() error = %v", err)
	}

	f, err := excelize.OpenReader(buf)
	if err != nil {
		t.Fatalf("opening workbook: %v", err)
	}
	if got, _ := f.GetCellValue(sheetName, "B1"); got != "Tech Talk" {
		t.Errorf("B1 = %q", got)
	}
	if got, _ := f.GetCellValue(sheetName, "B8"); got != "50.00%" {
		t.Errorf("B8 = %q", got)
	}
	if got, _ := f.GetCellValue(sheetName, "A11"); got != "1AB21CS001" {
		t.Errorf("A11 = %q", got)
	}
}
