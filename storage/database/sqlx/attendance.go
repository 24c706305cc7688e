package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/kahero/campushub/core"
	"github.com/kahero/campushub/core/attendance"
)

const (
	recordColumns = `id, event_id, student_id, marked_by, status, remarks, marked_at`
	reportColumns = `id, event_id, total_registered, total_present, total_absent,
		attendance_percentage, generated_at, sent_to`
)

type recordRow struct {
	ID        string         `db:"id"`
	EventID   string         `db:"event_id"`
	StudentID string         `db:"student_id"`
	MarkedBy  sql.NullString `db:"marked_by"`
	Status    string         `db:"status"`
	Remarks   string         `db:"remarks"`
	MarkedAt  time.Time      `db:"marked_at"`
}

func (r recordRow) toModel() attendance.Record {
	rec := attendance.Record{
		ID:        r.ID,
		EventID:   r.EventID,
		StudentID: r.StudentID,
		Status:    r.Status,
		Remarks:   r.Remarks,
		MarkedAt:  r.MarkedAt,
	}
	if r.MarkedBy.Valid {
		rec.MarkedBy = &r.MarkedBy.String
	}
	return rec
}

type reportRow struct {
	ID                   string     `db:"id"`
	EventID              string     `db:"event_id"`
	TotalRegistered      int        `db:"total_registered"`
	TotalPresent         int        `db:"total_present"`
	TotalAbsent          int        `db:"total_absent"`
	AttendancePercentage core.Score `db:"attendance_percentage"`
	GeneratedAt          time.Time  `db:"generated_at"`
	SentTo               string     `db:"sent_to"`
}

func (r reportRow) toModel() attendance.Report {
	return attendance.Report{
		ID:                   r.ID,
		EventID:              r.EventID,
		TotalRegistered:      r.TotalRegistered,
		TotalPresent:         r.TotalPresent,
		TotalAbsent:          r.TotalAbsent,
		AttendancePercentage: r.AttendancePercentage,
		GeneratedAt:          r.GeneratedAt,
		SentTo:               r.SentTo,
	}
}

type attendanceRepository struct {
	execHolder
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(exec core.DBExecutor) attendance.Repository {
	return &attendanceRepository{execHolder{exec: exec}}
}

func (repo attendanceRepository) CreateRecord(ctx context.Context, rec attendance.Record, exec ...core.DBExecutor) (attendance.Record, error) {
	rec.ID = uuid.New().String()
	q := `INSERT INTO attendance_record (id, event_id, student_id, marked_by, status, remarks, marked_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := execCtx(ctx, repo.getExec(exec), q,
		rec.ID, rec.EventID, rec.StudentID, rec.MarkedBy, rec.Status, rec.Remarks, rec.MarkedAt.UTC(),
	)
	if err != nil {
		return attendance.Record{}, errors.Wrap(err, "inserting attendance record")
	}
	return rec, nil
}

func (repo attendanceRepository) GetRecord(ctx context.Context, eventID, studentID string, exec ...core.DBExecutor) (attendance.Record, error) {
	var rows []recordRow
	q := `SELECT ` + recordColumns + ` FROM attendance_record
		WHERE event_id = ? AND student_id = ? LIMIT 1`
	if err := selectCtx(ctx, repo.getExec(exec), &rows, q, eventID, studentID); err != nil {
		return attendance.Record{}, errors.Wrap(err, "finding attendance record")
	}
	if len(rows) == 0 {
		return attendance.Record{}, attendance.ErrNotFound
	}
	return rows[0].toModel(), nil
}

func (repo attendanceRepository) UpdateRecord(ctx context.Context, rec attendance.Record, exec ...core.DBExecutor) (attendance.Record, error) {
	q := `UPDATE attendance_record
		SET marked_by = ?, status = ?, remarks = ?, marked_at = ?
		WHERE id = ?`
	affected, err := execCtx(ctx, repo.getExec(exec), q,
		rec.MarkedBy, rec.Status, rec.Remarks, rec.MarkedAt.UTC(), rec.ID,
	)
	if err != nil {
		return attendance.Record{}, errors.Wrap(err, "updating attendance record")
	}
	if affected == 0 {
		return attendance.Record{}, attendance.ErrNotFound
	}
	return rec, nil
}

func (repo attendanceRepository) QueryRecords(ctx context.Context, eventID string, exec ...core.DBExecutor) ([]attendance.Record, error) {
	return repo.queryRecords(ctx, exec, ` WHERE event_id = ?`, eventID)
}

func (repo attendanceRepository) QueryRecordsByStudent(ctx context.Context, studentID string, exec ...core.DBExecutor) ([]attendance.Record, error) {
	return repo.queryRecords(ctx, exec, ` WHERE student_id = ?`, studentID)
}

func (repo attendanceRepository) queryRecords(ctx context.Context, exec []core.DBExecutor, where string, args ...interface{}) ([]attendance.Record, error) {
	var rows []recordRow
	q := `SELECT ` + recordColumns + ` FROM attendance_record` + where + ` ORDER BY marked_at`
	if err := selectCtx(ctx, repo.getExec(exec), &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying attendance records")
	}
	recs := make([]attendance.Record, 0, len(rows))
	for _, row := range rows {
		recs = append(recs, row.toModel())
	}
	return recs, nil
}

func (repo attendanceRepository) CountByStatus(ctx context.Context, eventID, status string, exec ...core.DBExecutor) (int, error) {
	q := `SELECT COUNT(*) FROM attendance_record WHERE event_id = ? AND status = ?`
	count, err := countCtx(ctx, repo.getExec(exec), q, eventID, status)
	return count, errors.Wrap(err, "counting attendance records")
}

func (repo attendanceRepository) CreateReport(ctx context.Context, rpt attendance.Report, exec ...core.DBExecutor) (attendance.Report, error) {
	rpt.ID = uuid.New().String()
	q := `INSERT INTO event_report (id, event_id, total_registered, total_present, total_absent,
			attendance_percentage, generated_at, sent_to)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := execCtx(ctx, repo.getExec(exec), q,
		rpt.ID, rpt.EventID, rpt.TotalRegistered, rpt.TotalPresent, rpt.TotalAbsent,
		rpt.AttendancePercentage, rpt.GeneratedAt.UTC(), rpt.SentTo,
	)
	if err != nil {
		return attendance.Report{}, errors.Wrap(err, "inserting event report")
	}
	return rpt, nil
}

func (repo attendanceRepository) GetLatestReport(ctx context.Context, eventID string, exec ...core.DBExecutor) (attendance.Report, error) {
	var rows []reportRow
	q := `SELECT ` + reportColumns + ` FROM event_report
		WHERE event_id = ? ORDER BY generated_at DESC LIMIT 1`
	if err := selectCtx(ctx, repo.getExec(exec), &rows, q, eventID); err != nil {
		return attendance.Report{}, errors.Wrap(err, "finding event report")
	}
	if len(rows) == 0 {
		return attendance.Report{}, attendance.ErrNoReport
	}
	return rows[0].toModel(), nil
}

func (repo attendanceRepository) SetReportSentTo(ctx context.Context, reportID, sentTo string, exec ...core.DBExecutor) error {
	_, err := execCtx(ctx, repo.getExec(exec),
		`UPDATE event_report SET sent_to = ? WHERE id = ?`, sentTo, reportID)
	return errors.Wrap(err, "updating event report")
}

func (repo attendanceRepository) ReportRows(ctx context.Context, eventID string, exec ...core.DBExecutor) ([]attendance.ReportRow, error) {
	var rows []struct {
		USN       string    `db:"usn"`
		FirstName string    `db:"first_name"`
		LastName  string    `db:"last_name"`
		Dept      string    `db:"department"`
		Status    string    `db:"status"`
		MarkedAt  time.Time `db:"marked_at"`
		Remarks   string    `db:"remarks"`
	}
	q := `SELECT UPPER(s.usn) AS usn, s.first_name, s.last_name, s.department,
			r.status, r.marked_at, r.remarks
		FROM attendance_record r
		JOIN student s ON s.id = r.student_id
		WHERE r.event_id = ?
		ORDER BY UPPER(s.usn)`
	if err := selectCtx(ctx, repo.getExec(exec), &rows, q, eventID); err != nil {
		return nil, errors.Wrap(err, "querying report rows")
	}

	out := make([]attendance.ReportRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, attendance.ReportRow{
			USN:         row.USN,
			StudentName: row.FirstName + " " + row.LastName,
			Department:  row.Dept,
			Status:      row.Status,
			MarkedAt:    row.MarkedAt,
			Remarks:     row.Remarks,
		})
	}
	return out, nil
}
