package attendance

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/kahero/campushub/core"
)

// Attendance statuses.
const (
	StatusPresent = "PRESENT"
	StatusAbsent  = "ABSENT"
)

// Record is one student's attendance at one event. At most one record
// exists per (event, student) pair; re-marking rewrites it in place and
// the score ledger carries the full history.
type Record struct {
	ID        string    `json:"id"`
	EventID   string    `json:"event_id"`
	StudentID string    `json:"student_id"`
	MarkedBy  *string   `json:"marked_by,omitempty"` // club member ID
	Status    string    `json:"status"`
	Remarks   string    `json:"remarks,omitempty"`
	MarkedAt  time.Time `json:"marked_at"` // UTC
}

func (r *Record) Present() bool {
	return r.Status == StatusPresent
}

// Mark contains information needed to record a student's attendance.
type Mark struct {
	StudentID string `json:"student_id" validate:"required"`
	Status    string `json:"status" validate:"required,oneof=PRESENT ABSENT"`
	Remarks   string `json:"remarks"`
}

func (m *Mark) Validate(validate *validator.Validate) error {
	m.Remarks = core.CleanString(m.Remarks)
	return validate.Struct(m)
}

// Summary is the live attendance breakdown of an event.
type Summary struct {
	TotalRegistered int `json:"total_registered"`
	TotalPresent    int `json:"total_present"`
	TotalAbsent     int `json:"total_absent"`
	NotMarked       int `json:"not_marked"`
}

// Report is a snapshot of an event's attendance taken when the event ends.
type Report struct {
	ID                   string     `json:"id"`
	EventID              string     `json:"event_id"`
	TotalRegistered      int        `json:"total_registered"`
	TotalPresent         int        `json:"total_present"`
	TotalAbsent          int        `json:"total_absent"`
	AttendancePercentage core.Score `json:"attendance_percentage"`
	GeneratedAt          time.Time  `json:"generated_at"` // UTC
	SentTo               string     `json:"sent_to,omitempty"`
}

// newReport computes the percentage snapshot from a summary.
func newReport(eventID string, sum Summary, now time.Time) Report {
	rpt := Report{
		EventID:         eventID,
		TotalRegistered: sum.TotalRegistered,
		TotalPresent:    sum.TotalPresent,
		TotalAbsent:     sum.TotalAbsent,
		GeneratedAt:     now,
	}
	if sum.TotalRegistered > 0 {
		rpt.AttendancePercentage = core.Score(int64(sum.TotalPresent) * 10000 / int64(sum.TotalRegistered))
	}
	return rpt
}

// ReportRow is one line of the detailed report sheet sent to the club's
// faculty in charge.
type ReportRow struct {
	USN         string
	StudentName string
	Department  string
	Status      string
	MarkedAt    time.Time
	Remarks     string
}
