package dummydb

import (
	"context"
	"sort"
	"strings"

	"github.com/kahero/campushub/core"
	"github.com/kahero/campushub/core/attendance"
)

type attendanceRepository struct {
	db *DB
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db *DB) attendance.Repository {
	return &attendanceRepository{db: db}
}

func (repo *attendanceRepository) CreateRecord(_ context.Context, rec attendance.Record, _ ...core.DBExecutor) (attendance.Record, error) {
	repo.db.records.Lock()
	defer repo.db.records.Unlock()

	rec.ID = newID()
	repo.db.records.table[rec.ID] = &rec
	return rec, nil
}

func (repo *attendanceRepository) GetRecord(_ context.Context, eventID, studentID string, _ ...core.DBExecutor) (attendance.Record, error) {
	repo.db.records.RLock()
	defer repo.db.records.RUnlock()

	for _, rec := range repo.db.records.table {
		if rec.EventID == eventID && rec.StudentID == studentID {
			return *rec, nil
		}
	}
	return attendance.Record{}, attendance.ErrNotFound
}

func (repo *attendanceRepository) UpdateRecord(_ context.Context, rec attendance.Record, _ ...core.DBExecutor) (attendance.Record, error) {
	repo.db.records.Lock()
	defer repo.db.records.Unlock()

	if _, ok := repo.db.records.table[rec.ID]; !ok {
		return attendance.Record{}, attendance.ErrNotFound
	}
	repo.db.records.table[rec.ID] = &rec
	return rec, nil
}

func (repo *attendanceRepository) QueryRecords(_ context.Context, eventID string, _ ...core.DBExecutor) ([]attendance.Record, error) {
	repo.db.records.RLock()
	defer repo.db.records.RUnlock()

	var recs []attendance.Record
	for _, rec := range repo.db.records.table {
		if rec.EventID == eventID {
			recs = append(recs, *rec)
		}
	}
	return recs, nil
}

func (repo *attendanceRepository) QueryRecordsByStudent(_ context.Context, studentID string, _ ...core.DBExecutor) ([]attendance.Record, error) {
	repo.db.records.RLock()
	defer repo.db.records.RUnlock()

	var recs []attendance.Record
	for _, rec := range repo.db.records.table {
		if rec.StudentID == studentID {
			recs = append(recs, *rec)
		}
	}
	return recs, nil
}

func (repo *attendanceRepository) CountByStatus(_ context.Context, eventID, status string, _ ...core.DBExecutor) (int, error) {
	repo.db.records.RLock()
	defer repo.db.records.RUnlock()

	var count int
	for _, rec := range repo.db.records.table {
		if rec.EventID == eventID && rec.Status == status {
			count++
		}
	}
	return count, nil
}

func (repo *attendanceRepository) CreateReport(_ context.Context, rpt attendance.Report, _ ...core.DBExecutor) (attendance.Report, error) {
	repo.db.reports.Lock()
	defer repo.db.reports.Unlock()

	rpt.ID = newID()
	repo.db.reports.reports = append(repo.db.reports.reports, rpt)
	return rpt, nil
}

func (repo *attendanceRepository) GetLatestReport(_ context.Context, eventID string, _ ...core.DBExecutor) (attendance.Report, error) {
	repo.db.reports.RLock()
	defer repo.db.reports.RUnlock()

	for i := len(repo.db.reports.reports) - 1; i >= 0; i-- {
		if repo.db.reports.reports[i].EventID == eventID {
			return repo.db.reports.reports[i], nil
		}
	}
	return attendance.Report{}, attendance.ErrNoReport
}

func (repo *attendanceRepository) SetReportSentTo(_ context.Context, reportID, sentTo string, _ ...core.DBExecutor) error {
	repo.db.reports.Lock()
	defer repo.db.reports.Unlock()

	for i := range repo.db.reports.reports {
		if repo.db.reports.reports[i].ID == reportID {
			repo.db.reports.reports[i].SentTo = sentTo
			return nil
		}
	}
	return attendance.ErrNoReport
}

func (repo *attendanceRepository) ReportRows(_ context.Context, eventID string, _ ...core.DBExecutor) ([]attendance.ReportRow, error) {
	repo.db.students.RLock()
	defer repo.db.students.RUnlock()
	repo.db.records.RLock()
	defer repo.db.records.RUnlock()

	var rows []attendance.ReportRow
	for _, rec := range repo.db.records.table {
		if rec.EventID != eventID {
			continue
		}
		row := attendance.ReportRow{
			Status:   rec.Status,
			MarkedAt: rec.MarkedAt,
			Remarks:  rec.Remarks,
		}
		if std, ok := repo.db.students.table[rec.StudentID]; ok {
			row.USN = strings.ToUpper(std.USN)
			row.StudentName = std.FullName()
			row.Department = std.Department
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].USN < rows[j].USN })
	return rows, nil
}
