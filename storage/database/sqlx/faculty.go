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
	"github.com/kahero/campushub/core/faculty"
)

const facultyColumns = `id, code, first_name, last_name, email, phone, department, is_active,
	password_hash, created_at, updated_at, last_login`

type facultyRow struct {
	ID           string       `db:"id"`
	Code         string       `db:"code"`
	FirstName    string       `db:"first_name"`
	LastName     string       `db:"last_name"`
	Email        string       `db:"email"`
	Phone        string       `db:"phone"`
	Department   string       `db:"department"`
	IsActive     bool         `db:"is_active"`
	PasswordHash []byte       `db:"password_hash"`
	CreatedAt    time.Time    `db:"created_at"`
	UpdatedAt    time.Time    `db:"updated_at"`
	LastLogin    sql.NullTime `db:"last_login"`
}

func (r facultyRow) toModel() faculty.Faculty {
	fac := faculty.Faculty{
		ID:           r.ID,
		Code:         r.Code,
		FirstName:    r.FirstName,
		LastName:     r.LastName,
		Email:        r.Email,
		Phone:        r.Phone,
		Department:   r.Department,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	fac.SetActive(r.IsActive)
	if r.LastLogin.Valid {
		fac.LastLogin = r.LastLogin.Time
	}
	return fac
}

type facultyRepository struct {
	execHolder
}

var _ faculty.Repository = (*facultyRepository)(nil) // interface compliance check

func NewFacultyRepository(exec core.DBExecutor) faculty.Repository {
	return &facultyRepository{execHolder{exec: exec}}
}

func (repo facultyRepository) CheckUniqueness(ctx context.Context, code, email string, excluded []faculty.Faculty, exec ...core.DBExecutor) error {
	q := `SELECT code, email FROM faculty WHERE (LOWER(code) = LOWER(?) OR LOWER(email) = LOWER(?))`
	args := []interface{}{code, email}
	if len(excluded) > 0 {
		ids := make([]string, 0, len(excluded))
		for _, fac := range excluded {
			ids = append(ids, fac.ID)
		}
		q += ` AND id <> ALL(?)`
		args = append(args, pq.Array(ids))
	}

	var rows []struct {
		Code  string `db:"code"`
		Email string `db:"email"`
	}
	if err := selectCtx(ctx, repo.getExec(exec), &rows, q, args...); err != nil {
		return errors.Wrap(err, "checking faculty uniqueness")
	}
	for _, row := range rows {
		if strings.EqualFold(row.Code, code) {
			return faculty.ErrCodeExists
		}
		if strings.EqualFold(row.Email, email) {
			return faculty.ErrEmailExists
		}
	}
	return nil
}

func (repo facultyRepository) CreateFaculty(ctx context.Context, fac faculty.Faculty, exec ...core.DBExecutor) (faculty.Faculty, error) {
	fac.ID = uuid.New().String()
	q := `INSERT INTO faculty (id, code, first_name, last_name, email, phone, department, is_active,
			password_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := execCtx(ctx, repo.getExec(exec), q,
		fac.ID, fac.Code, fac.FirstName, fac.LastName, fac.Email, fac.Phone, fac.Department, fac.Active(),
		fac.PasswordHash, fac.CreatedAt.UTC(), fac.UpdatedAt.UTC(),
	)
	if err != nil {
		switch constraint, _ := violatedConstraint(err); constraint {
		case "faculty_code_key":
			return faculty.Faculty{}, faculty.ErrCodeExists
		case "faculty_email_key":
			return faculty.Faculty{}, faculty.ErrEmailExists
		}
		return faculty.Faculty{}, errors.Wrap(err, "inserting faculty")
	}
	return fac, nil
}

func (repo facultyRepository) GetFaculty(ctx context.Context, filter faculty.GetFilter, exec ...core.DBExecutor) (faculty.Faculty, error) {
	var where whereClause
	switch {
	case filter.ID != "":
		if _, err := uuid.Parse(filter.ID); err != nil {
			return faculty.Faculty{}, faculty.ErrNotFound
		}
		where.add(`id = ?`, filter.ID)
	case filter.Code != "":
		where.add(`LOWER(code) = LOWER(?)`, filter.Code)
	case filter.Email != "":
		where.add(`LOWER(email) = LOWER(?)`, filter.Email)
	case filter.CodeOrEmail != "":
		where.add(`(LOWER(code) = LOWER(?) OR LOWER(email) = LOWER(?))`, filter.CodeOrEmail, filter.CodeOrEmail)
	default:
		return faculty.Faculty{}, faculty.ErrNotFound
	}

	var rows []facultyRow
	q := `SELECT ` + facultyColumns + ` FROM faculty` + where.String() + ` LIMIT 1`
	if err := selectCtx(ctx, repo.getExec(exec), &rows, q, where.args...); err != nil {
		return faculty.Faculty{}, errors.Wrap(err, "finding faculty")
	}
	if len(rows) == 0 {
		return faculty.Faculty{}, faculty.ErrNotFound
	}
	return rows[0].toModel(), nil
}

func (repo facultyRepository) QueryFaculty(ctx context.Context, filter *faculty.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]faculty.Faculty, error) {
	var where whereClause
	if filter != nil {
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			where.add(`(code ILIKE ? OR first_name ILIKE ? OR last_name ILIKE ? OR email ILIKE ?)`, val, val, val, val)
		}
		if filter.Department != "" {
			where.add(`LOWER(department) = LOWER(?)`, filter.Department)
		}
		if filter.IsActive != nil {
			where.add(`is_active = ?`, *filter.IsActive)
		}
	}

	var rows []facultyRow
	q := `SELECT ` + facultyColumns + ` FROM faculty` + where.String() + orderBy(ordering, "created_at DESC")
	if err := selectCtx(ctx, repo.getExec(exec), &rows, q, where.args...); err != nil {
		return nil, errors.Wrap(err, "querying faculty")
	}
	members := make([]faculty.Faculty, 0, len(rows))
	for _, row := range rows {
		members = append(members, row.toModel())
	}
	return members, nil
}

func (repo facultyRepository) UpdateFaculty(ctx context.Context, fac faculty.Faculty, isActive *bool, exec ...core.DBExecutor) (faculty.Faculty, error) {
	sets := []string{"updated_at = ?"}
	args := []interface{}{fac.UpdatedAt.UTC()}
	addSet := func(col string, val interface{}) {
		sets = append(sets, col+" = ?")
		args = append(args, val)
	}

	if fac.FirstName != "" {
		addSet("first_name", fac.FirstName)
	}
	if fac.LastName != "" {
		addSet("last_name", fac.LastName)
	}
	if fac.Email != "" {
		addSet("email", fac.Email)
	}
	if fac.Phone != "" {
		addSet("phone", fac.Phone)
	}
	if fac.Department != "" {
		addSet("department", fac.Department)
	}
	if fac.PasswordHash != nil {
		addSet("password_hash", fac.PasswordHash)
	}
	if isActive != nil {
		addSet("is_active", *isActive)
	}
	if !fac.LastLogin.IsZero() {
		addSet("last_login", fac.LastLogin.UTC())
	}

	q := `UPDATE faculty SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`
	args = append(args, fac.ID)
	affected, err := execCtx(ctx, repo.getExec(exec), q, args...)
	if err != nil {
		if constraint, ok := violatedConstraint(err); ok && constraint == "faculty_email_key" {
			return faculty.Faculty{}, faculty.ErrEmailExists
		}
		return faculty.Faculty{}, errors.Wrap(err, "updating faculty")
	}
	if affected == 0 {
		return faculty.Faculty{}, faculty.ErrNotFound
	}
	return repo.GetFaculty(ctx, faculty.GetFilter{ID: fac.ID}, exec...)
}

func (repo facultyRepository) DeleteFacultyByID(ctx context.Context, ids []string, exec ...core.DBExecutor) error {
	_, err := execCtx(ctx, repo.getExec(exec), `DELETE FROM faculty WHERE id = ANY(?)`, pq.Array(ids))
	return errors.Wrap(err, "deleting faculty")
}
