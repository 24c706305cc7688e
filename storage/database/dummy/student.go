package dummydb

import (
	"context"
	"strings"

	"github.com/kahero/campushub/core"
	"github.com/kahero/campushub/core/attendance"
	"github.com/kahero/campushub/core/student"
)

type studentRepository struct {
	db *DB
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(db *DB) student.Repository {
	return &studentRepository{db: db}
}

func (repo *studentRepository) query() []student.Student {
	students := make([]student.Student, 0, len(repo.db.students.table))
	for _, std := range repo.db.students.table {
		students = append(students, *std)
	}
	return students
}

func (repo *studentRepository) CheckUniqueness(_ context.Context, usn, email string, excluded []student.Student, _ ...core.DBExecutor) error {
	repo.db.students.RLock()
	defer repo.db.students.RUnlock()

	for _, std := range repo.query() {
		if isExcludedStudent(std, excluded) {
			continue
		}
		if strings.EqualFold(std.USN, usn) {
			return student.ErrUSNExists
		}
		if strings.EqualFold(std.Email, email) {
			return student.ErrEmailExists
		}
	}
	return nil
}

func (repo *studentRepository) CreateStudent(_ context.Context, std student.Student, _ ...core.DBExecutor) (student.Student, error) {
	repo.db.students.Lock()
	defer repo.db.students.Unlock()

	std.ID = newID()
	repo.db.students.table[std.ID] = &std
	return std, nil
}

func (repo *studentRepository) GetStudent(_ context.Context, filter student.GetFilter, _ ...core.DBExecutor) (student.Student, error) {
	repo.db.students.RLock()
	defer repo.db.students.RUnlock()

	if filter.ID != "" {
		if std, ok := repo.db.students.table[filter.ID]; ok {
			return *std, nil
		}
		return student.Student{}, student.ErrNotFound
	}
	for _, std := range repo.query() {
		switch {
		case filter.USN != "" && strings.EqualFold(std.USN, filter.USN):
			return std, nil
		case filter.Email != "" && strings.EqualFold(std.Email, filter.Email):
			return std, nil
		case filter.USNOrEmail != "" &&
			(strings.EqualFold(std.USN, filter.USNOrEmail) || strings.EqualFold(std.Email, filter.USNOrEmail)):
			return std, nil
		}
	}
	return student.Student{}, student.ErrNotFound
}

func (repo *studentRepository) GetStudentForUpdate(ctx context.Context, id string, _ core.DBExecutor) (student.Student, error) {
	return repo.GetStudent(ctx, student.GetFilter{ID: id})
}

func (repo *studentRepository) QueryStudents(_ context.Context, filter *student.QueryFilter, _ []core.DBOrdering, _ ...core.DBExecutor) ([]student.Student, error) {
	repo.db.students.RLock()
	defer repo.db.students.RUnlock()

	students := repo.query()
	if filter == nil {
		return students, nil
	}

	if filter.Search != "" {
		var filtered []student.Student
		for _, std := range students {
			if containsFold(std.USN, filter.Search) ||
				containsFold(std.FirstName, filter.Search) ||
				containsFold(std.LastName, filter.Search) ||
				containsFold(std.Email, filter.Search) {
				filtered = append(filtered, std)
			}
		}
		students = filtered
	}
	if students != nil && filter.Department != "" {
		var filtered []student.Student
		for _, std := range students {
			if strings.EqualFold(std.Department, filter.Department) {
				filtered = append(filtered, std)
			}
		}
		students = filtered
	}
	if students != nil && filter.Semester != 0 {
		var filtered []student.Student
		for _, std := range students {
			if std.Semester == filter.Semester {
				filtered = append(filtered, std)
			}
		}
		students = filtered
	}
	if students != nil && filter.IsActive != nil {
		var filtered []student.Student
		for _, std := range students {
			if std.Active() == *filter.IsActive {
				filtered = append(filtered, std)
			}
		}
		students = filtered
	}
	if students != nil && !filter.CreatedFrom.IsZero() {
		var filtered []student.Student
		from := filter.CreatedFrom.UTC()
		for _, std := range students {
			if !std.CreatedAt.Before(from) {
				filtered = append(filtered, std)
			}
		}
		students = filtered
	}
	if students != nil && !filter.CreatedTo.IsZero() {
		var filtered []student.Student
		to := filter.CreatedTo.UTC()
		for _, std := range students {
			if !std.CreatedAt.After(to) {
				filtered = append(filtered, std)
			}
		}
		students = filtered
	}
	return students, nil
}

func (repo *studentRepository) UpdateStudent(_ context.Context, std student.Student, isActive *bool, _ ...core.DBExecutor) (student.Student, error) {
	repo.db.students.Lock()
	defer repo.db.students.Unlock()

	// only save set fields
	orig, ok := repo.db.students.table[std.ID]
	if !ok {
		return student.Student{}, student.ErrNotFound
	}
	if std.FirstName != "" {
		orig.FirstName = std.FirstName
	}
	if std.LastName != "" {
		orig.LastName = std.LastName
	}
	if std.Email != "" {
		orig.Email = std.Email
	}
	if std.Phone != "" {
		orig.Phone = std.Phone
	}
	if std.Department != "" {
		orig.Department = std.Department
	}
	if std.Semester != 0 {
		orig.Semester = std.Semester
	}
	if std.DateOfBirth != nil {
		orig.DateOfBirth = std.DateOfBirth
	}
	if std.Gender != "" {
		orig.Gender = std.Gender
	}
	if std.Address != "" {
		orig.Address = std.Address
	}
	if std.PasswordHash != nil {
		orig.PasswordHash = std.PasswordHash
	}
	if isActive != nil {
		orig.SetActive(*isActive)
	}
	if !std.LastLogin.IsZero() {
		orig.LastLogin = std.LastLogin
	}
	if !std.UpdatedAt.IsZero() {
		orig.UpdatedAt = std.UpdatedAt
	}
	return *orig, nil
}

func (repo *studentRepository) UpdateStudentScore(_ context.Context, id string, score core.Score, _ ...core.DBExecutor) error {
	repo.db.students.Lock()
	defer repo.db.students.Unlock()

	std, ok := repo.db.students.table[id]
	if !ok {
		return student.ErrNotFound
	}
	std.SocialScore = score
	return nil
}

func (repo *studentRepository) UpdateStudentActivityPoints(_ context.Context, id string, points int, _ ...core.DBExecutor) error {
	repo.db.students.Lock()
	defer repo.db.students.Unlock()

	std, ok := repo.db.students.table[id]
	if !ok {
		return student.ErrNotFound
	}
	std.TotalActivityPoints = points
	return nil
}

func (repo *studentRepository) AppendScoreLog(_ context.Context, entry student.ScoreLogEntry, _ ...core.DBExecutor) (student.ScoreLogEntry, error) {
	repo.db.scoreLogs.Lock()
	defer repo.db.scoreLogs.Unlock()

	entry.ID = newID()
	repo.db.scoreLogs.entries = append(repo.db.scoreLogs.entries, entry)
	return entry, nil
}

func (repo *studentRepository) GetScoreLogs(_ context.Context, studentID string, _ ...core.DBExecutor) ([]student.ScoreLogEntry, error) {
	repo.db.scoreLogs.RLock()
	defer repo.db.scoreLogs.RUnlock()

	// newest first
	var logs []student.ScoreLogEntry
	for i := len(repo.db.scoreLogs.entries) - 1; i >= 0; i-- {
		if repo.db.scoreLogs.entries[i].StudentID == studentID {
			logs = append(logs, repo.db.scoreLogs.entries[i])
		}
	}
	return logs, nil
}

func (repo *studentRepository) GetLatestScoreLogForEvent(_ context.Context, studentID, eventID string, _ ...core.DBExecutor) (student.ScoreLogEntry, error) {
	repo.db.scoreLogs.RLock()
	defer repo.db.scoreLogs.RUnlock()

	for i := len(repo.db.scoreLogs.entries) - 1; i >= 0; i-- {
		entry := repo.db.scoreLogs.entries[i]
		if entry.StudentID == studentID && entry.EventID != nil && *entry.EventID == eventID {
			return entry, nil
		}
	}
	return student.ScoreLogEntry{}, student.ErrNoScoreLog
}

func (repo *studentRepository) SumActivityPoints(_ context.Context, studentID string, _ ...core.DBExecutor) (int, error) {
	repo.db.events.RLock()
	defer repo.db.events.RUnlock()
	repo.db.records.RLock()
	defer repo.db.records.RUnlock()

	var total int
	for _, rec := range repo.db.records.table {
		if rec.StudentID != studentID || rec.Status != attendance.StatusPresent {
			continue
		}
		if evt, ok := repo.db.events.table[rec.EventID]; ok && evt.PointBearing() {
			total += evt.ActivityPoints
		}
	}
	return total, nil
}

func (repo *studentRepository) DeleteStudentsByID(_ context.Context, ids []string, _ ...core.DBExecutor) error {
	repo.db.students.Lock()
	defer repo.db.students.Unlock()
	for _, id := range ids {
		delete(repo.db.students.table, id)
	}
	return nil
}

func isExcludedStudent(std student.Student, excluded []student.Student) bool {
	for i := range excluded {
		if excluded[i].ID == std.ID {
			return true
		}
	}
	return false
}
