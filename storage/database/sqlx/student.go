package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/kahero/campushub/core"
	"github.com/kahero/campushub/core/scoring"
	"github.com/kahero/campushub/core/student"
)

const (
	studentColumns = `id, usn, first_name, last_name, email, phone, department, semester, date_of_birth,
		gender, address, max_event_registrations, social_score, total_activity_points, is_active,
		password_hash, created_at, updated_at, last_login`

	scoreLogColumns = `id, student_id, delta, new_score, reason, event_id, remark, created_at`
)

type studentRow struct {
	ID                    string       `db:"id"`
	USN                   string       `db:"usn"`
	FirstName             string       `db:"first_name"`
	LastName              string       `db:"last_name"`
	Email                 string       `db:"email"`
	Phone                 string       `db:"phone"`
	Department            string       `db:"department"`
	Semester              int          `db:"semester"`
	DateOfBirth           sql.NullTime `db:"date_of_birth"`
	Gender                string       `db:"gender"`
	Address               string       `db:"address"`
	MaxEventRegistrations int          `db:"max_event_registrations"`
	SocialScore           core.Score   `db:"social_score"`
	TotalActivityPoints   int          `db:"total_activity_points"`
	IsActive              bool         `db:"is_active"`
	PasswordHash          []byte       `db:"password_hash"`
	CreatedAt             time.Time    `db:"created_at"`
	UpdatedAt             time.Time    `db:"updated_at"`
	LastLogin             sql.NullTime `db:"last_login"`
}

func (r studentRow) toModel() student.Student {
	std := student.Student{
		ID:                    r.ID,
		USN:                   r.USN,
		FirstName:             r.FirstName,
		LastName:              r.LastName,
		Email:                 r.Email,
		Phone:                 r.Phone,
		Department:            r.Department,
		Semester:              r.Semester,
		Gender:                r.Gender,
		Address:               r.Address,
		MaxEventRegistrations: r.MaxEventRegistrations,
		SocialScore:           r.SocialScore,
		TotalActivityPoints:   r.TotalActivityPoints,
		PasswordHash:          r.PasswordHash,
		CreatedAt:             r.CreatedAt,
		UpdatedAt:             r.UpdatedAt,
	}
	std.SetActive(r.IsActive)
	if r.DateOfBirth.Valid {
		dob := r.DateOfBirth.Time
		std.DateOfBirth = &dob
	}
	if r.LastLogin.Valid {
		std.LastLogin = r.LastLogin.Time
	}
	return std
}

type scoreLogRow struct {
	ID        string         `db:"id"`
	StudentID string         `db:"student_id"`
	Delta     core.Score     `db:"delta"`
	NewScore  core.Score     `db:"new_score"`
	Reason    string         `db:"reason"`
	EventID   sql.NullString `db:"event_id"`
	Remark    string         `db:"remark"`
	CreatedAt time.Time      `db:"created_at"`
}

func (r scoreLogRow) toModel() student.ScoreLogEntry {
	entry := student.ScoreLogEntry{
		ID:        r.ID,
		StudentID: r.StudentID,
		Delta:     r.Delta,
		NewScore:  r.NewScore,
		Reason:    scoring.Reason(r.Reason),
		Remark:    r.Remark,
		CreatedAt: r.CreatedAt,
	}
	if r.EventID.Valid {
		eventID := r.EventID.String
		entry.EventID = &eventID
	}
	return entry
}

type studentRepository struct {
	execHolder
}

var _ student.Repository = (*studentRepository)(nil) // interface compliance check

func NewStudentRepository(exec core.DBExecutor) student.Repository {
	return &studentRepository{execHolder{exec: exec}}
}

func (repo studentRepository) CheckUniqueness(ctx context.Context, usn, email string, excluded []student.Student, exec ...core.DBExecutor) error {
	q := `SELECT usn, email FROM student WHERE (LOWER(usn) = LOWER(?) OR LOWER(email) = LOWER(?))`
	args := []interface{}{usn, email}
	if len(excluded) > 0 {
		ids := make([]string, 0, len(excluded))
		for _, std := range excluded {
			ids = append(ids, std.ID)
		}
		q += ` AND id <> ALL(?)`
		args = append(args, pq.Array(ids))
	}

	var rows []struct {
		USN   string `db:"usn"`
		Email string `db:"email"`
	}
	if err := selectCtx(ctx, repo.getExec(exec), &rows, q, args...); err != nil {
		return errors.Wrap(err, "checking student uniqueness")
	}
	for _, row := range rows {
		if strings.EqualFold(row.USN, usn) {
			return student.ErrUSNExists
		}
		if strings.EqualFold(row.Email, email) {
			return student.ErrEmailExists
		}
	}
	return nil
}

func (repo studentRepository) CreateStudent(ctx context.Context, std student.Student, exec ...core.DBExecutor) (student.Student, error) {
	std.ID = uuid.New().String()
	q := `INSERT INTO student (id, usn, first_name, last_name, email, phone, department, semester,
			date_of_birth, gender, address, max_event_registrations, social_score,
			total_activity_points, is_active, password_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := execCtx(ctx, repo.getExec(exec), q,
		std.ID, std.USN, std.FirstName, std.LastName, std.Email, std.Phone, std.Department, std.Semester,
		std.DateOfBirth, std.Gender, std.Address, std.MaxEventRegistrations, std.SocialScore,
		std.TotalActivityPoints, std.Active(), std.PasswordHash, std.CreatedAt.UTC(), std.UpdatedAt.UTC(),
	)
	if err != nil {
		switch constraint, _ := violatedConstraint(err); constraint {
		case "student_usn_key":
			return student.Student{}, student.ErrUSNExists
		case "student_email_key":
			return student.Student{}, student.ErrEmailExists
		}
		return student.Student{}, errors.Wrap(err, "inserting student")
	}
	return std, nil
}

func (repo studentRepository) GetStudent(ctx context.Context, filter student.GetFilter, exec ...core.DBExecutor) (student.Student, error) {
	var where whereClause
	switch {
	case filter.ID != "":
		if _, err := uuid.Parse(filter.ID); err != nil {
			return student.Student{}, student.ErrNotFound
		}
		where.add(`id = ?`, filter.ID)
	case filter.USN != "":
		where.add(`LOWER(usn) = LOWER(?)`, filter.USN)
	case filter.Email != "":
		where.add(`LOWER(email) = LOWER(?)`, filter.Email)
	case filter.USNOrEmail != "":
		where.add(`(LOWER(usn) = LOWER(?) OR LOWER(email) = LOWER(?))`, filter.USNOrEmail, filter.USNOrEmail)
	default:
		return student.Student{}, student.ErrNotFound
	}

	var rows []studentRow
	q := `SELECT ` + studentColumns + ` FROM student` + where.String() + ` LIMIT 1`
	if err := selectCtx(ctx, repo.getExec(exec), &rows, q, where.args...); err != nil {
		return student.Student{}, errors.Wrap(err, "finding student")
	}
	if len(rows) == 0 {
		return student.Student{}, student.ErrNotFound
	}
	return rows[0].toModel(), nil
}

func (repo studentRepository) GetStudentForUpdate(ctx context.Context, id string, exec core.DBExecutor) (student.Student, error) {
	if _, err := uuid.Parse(id); err != nil {
		return student.Student{}, student.ErrNotFound
	}
	var rows []studentRow
	q := `SELECT ` + studentColumns + ` FROM student WHERE id = ? FOR UPDATE`
	if err := selectCtx(ctx, exec, &rows, q, id); err != nil {
		return student.Student{}, errors.Wrap(err, "locking student")
	}
	if len(rows) == 0 {
		return student.Student{}, student.ErrNotFound
	}
	return rows[0].toModel(), nil
}

func (repo studentRepository) QueryStudents(ctx context.Context, filter *student.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]student.Student, error) {
	var where whereClause
	if filter != nil {
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			where.add(`(usn ILIKE ? OR first_name ILIKE ? OR last_name ILIKE ? OR email ILIKE ?)`, val, val, val, val)
		}
		if filter.Department != "" {
			where.add(`LOWER(department) = LOWER(?)`, filter.Department)
		}
		if filter.Semester != 0 {
			where.add(`semester = ?`, filter.Semester)
		}
		if filter.IsActive != nil {
			where.add(`is_active = ?`, *filter.IsActive)
		}
		if !filter.CreatedFrom.IsZero() {
			where.add(`created_at >= ?`, filter.CreatedFrom.UTC())
		}
		if !filter.CreatedTo.IsZero() {
			where.add(`created_at <= ?`, filter.CreatedTo.UTC())
		}
	}

	var rows []studentRow
	q := `SELECT ` + studentColumns + ` FROM student` + where.String() + orderBy(ordering, "created_at DESC")
	if err := selectCtx(ctx, repo.getExec(exec), &rows, q, where.args...); err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	students := make([]student.Student, 0, len(rows))
	for _, row := range rows {
		students = append(students, row.toModel())
	}
	return students, nil
}

func (repo studentRepository) UpdateStudent(ctx context.Context, std student.Student, isActive *bool, exec ...core.DBExecutor) (student.Student, error) {
	sets := []string{"updated_at = ?"}
	args := []interface{}{std.UpdatedAt.UTC()}
	addSet := func(col string, val interface{}) {
		sets = append(sets, col+" = ?")
		args = append(args, val)
	}

	if std.FirstName != "" {
		addSet("first_name", std.FirstName)
	}
	if std.LastName != "" {
		addSet("last_name", std.LastName)
	}
	if std.Email != "" {
		addSet("email", std.Email)
	}
	if std.Phone != "" {
		addSet("phone", std.Phone)
	}
	if std.Department != "" {
		addSet("department", std.Department)
	}
	if std.Semester != 0 {
		addSet("semester", std.Semester)
	}
	if std.DateOfBirth != nil {
		addSet("date_of_birth", *std.DateOfBirth)
	}
	if std.Gender != "" {
		addSet("gender", std.Gender)
	}
	if std.Address != "" {
		addSet("address", std.Address)
	}
	if std.PasswordHash != nil {
		addSet("password_hash", std.PasswordHash)
	}
	if isActive != nil {
		addSet("is_active", *isActive)
	}
	if !std.LastLogin.IsZero() {
		addSet("last_login", std.LastLogin.UTC())
	}

	q := `UPDATE student SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`
	args = append(args, std.ID)
	affected, err := execCtx(ctx, repo.getExec(exec), q, args...)
	if err != nil {
		if constraint, ok := violatedConstraint(err); ok && constraint == "student_email_key" {
			return student.Student{}, student.ErrEmailExists
		}
		return student.Student{}, errors.Wrap(err, "updating student")
	}
	if affected == 0 {
		return student.Student{}, student.ErrNotFound
	}
	return repo.GetStudent(ctx, student.GetFilter{ID: std.ID}, exec...)
}

func (repo studentRepository) UpdateStudentScore(ctx context.Context, id string, score core.Score, exec ...core.DBExecutor) error {
	affected, err := execCtx(ctx, repo.getExec(exec), `UPDATE student SET social_score = ? WHERE id = ?`, score, id)
	if err != nil {
		return errors.Wrap(err, "updating social score")
	}
	if affected == 0 {
		return student.ErrNotFound
	}
	return nil
}

func (repo studentRepository) UpdateStudentActivityPoints(ctx context.Context, id string, points int, exec ...core.DBExecutor) error {
	affected, err := execCtx(ctx, repo.getExec(exec), `UPDATE student SET total_activity_points = ? WHERE id = ?`, points, id)
	if err != nil {
		return errors.Wrap(err, "updating activity points")
	}
	if affected == 0 {
		return student.ErrNotFound
	}
	return nil
}

func (repo studentRepository) AppendScoreLog(ctx context.Context, entry student.ScoreLogEntry, exec ...core.DBExecutor) (student.ScoreLogEntry, error) {
	entry.ID = uuid.New().String()
	q := `INSERT INTO score_log (id, student_id, delta, new_score, reason, event_id, remark, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := execCtx(ctx, repo.getExec(exec), q,
		entry.ID, entry.StudentID, entry.Delta, entry.NewScore, string(entry.Reason), entry.EventID, entry.Remark, entry.CreatedAt.UTC(),
	)
	if err != nil {
		return student.ScoreLogEntry{}, errors.Wrap(err, "inserting score log")
	}
	return entry, nil
}

func (repo studentRepository) GetScoreLogs(ctx context.Context, studentID string, exec ...core.DBExecutor) ([]student.ScoreLogEntry, error) {
	var rows []scoreLogRow
	q := `SELECT ` + scoreLogColumns + ` FROM score_log WHERE student_id = ? ORDER BY seq DESC`
	if err := selectCtx(ctx, repo.getExec(exec), &rows, q, studentID); err != nil {
		return nil, errors.Wrap(err, "querying score logs")
	}
	logs := make([]student.ScoreLogEntry, 0, len(rows))
	for _, row := range rows {
		logs = append(logs, row.toModel())
	}
	return logs, nil
}

func (repo studentRepository) GetLatestScoreLogForEvent(ctx context.Context, studentID, eventID string, exec ...core.DBExecutor) (student.ScoreLogEntry, error) {
	var rows []scoreLogRow
	q := `SELECT ` + scoreLogColumns + ` FROM score_log WHERE student_id = ? AND event_id = ? ORDER BY seq DESC LIMIT 1`
	if err := selectCtx(ctx, repo.getExec(exec), &rows, q, studentID, eventID); err != nil {
		return student.ScoreLogEntry{}, errors.Wrap(err, "querying score logs")
	}
	if len(rows) == 0 {
		return student.ScoreLogEntry{}, student.ErrNoScoreLog
	}
	return rows[0].toModel(), nil
}

func (repo studentRepository) SumActivityPoints(ctx context.Context, studentID string, exec ...core.DBExecutor) (int, error) {
	q := `SELECT COALESCE(SUM(e.activity_points), 0)
		FROM attendance_record ar
		JOIN event e ON e.id = ar.event_id
		WHERE ar.student_id = ? AND ar.status = 'PRESENT' AND e.type = 'ACTIVITY_POINTS'`
	total, err := countCtx(ctx, repo.getExec(exec), q, studentID)
	if err != nil {
		return 0, errors.Wrap(err, "summing activity points")
	}
	return total, nil
}

func (repo studentRepository) DeleteStudentsByID(ctx context.Context, ids []string, exec ...core.DBExecutor) error {
	_, err := execCtx(ctx, repo.getExec(exec), `DELETE FROM student WHERE id = ANY(?)`, pq.Array(ids))
	return errors.Wrap(err, "deleting students")
}
