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
	"github.com/kahero/campushub/core/club"
)

const (
	clubColumns = `id, name, description, faculty_id, head_student_id, email, established_date,
		is_active, created_at, updated_at`
	roleColumns = `id, name, description, can_create_events, can_edit_events, can_delete_events,
		can_start_events, can_end_events, can_mark_attendance, can_add_members, can_remove_members,
		can_view_reports`
)

// memberColumns joins club_member (m) with club_role (r).
const memberColumns = `m.id, m.club_id, m.student_id, m.role_id, m.login_id, m.club_password_hash,
	m.is_active, m.joined_at,
	r.name AS role_name, r.description AS role_description,
	r.can_create_events, r.can_edit_events, r.can_delete_events,
	r.can_start_events, r.can_end_events, r.can_mark_attendance,
	r.can_add_members, r.can_remove_members, r.can_view_reports`

const memberFrom = ` FROM club_member m JOIN club_role r ON r.id = m.role_id`

type clubRow struct {
	ID              string         `db:"id"`
	Name            string         `db:"name"`
	Description     string         `db:"description"`
	FacultyID       sql.NullString `db:"faculty_id"`
	HeadStudentID   sql.NullString `db:"head_student_id"`
	Email           string         `db:"email"`
	EstablishedDate sql.NullTime   `db:"established_date"`
	IsActive        bool           `db:"is_active"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

func (r clubRow) toModel() club.Club {
	cl := club.Club{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Email:       r.Email,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	cl.SetActive(r.IsActive)
	if r.FacultyID.Valid {
		cl.FacultyID = &r.FacultyID.String
	}
	if r.HeadStudentID.Valid {
		cl.HeadStudentID = &r.HeadStudentID.String
	}
	if r.EstablishedDate.Valid {
		cl.EstablishedDate = &r.EstablishedDate.Time
	}
	return cl
}

type roleRow struct {
	ID                string `db:"id"`
	Name              string `db:"name"`
	Description       string `db:"description"`
	CanCreateEvents   bool   `db:"can_create_events"`
	CanEditEvents     bool   `db:"can_edit_events"`
	CanDeleteEvents   bool   `db:"can_delete_events"`
	CanStartEvents    bool   `db:"can_start_events"`
	CanEndEvents      bool   `db:"can_end_events"`
	CanMarkAttendance bool   `db:"can_mark_attendance"`
	CanAddMembers     bool   `db:"can_add_members"`
	CanRemoveMembers  bool   `db:"can_remove_members"`
	CanViewReports    bool   `db:"can_view_reports"`
}

func (r roleRow) toModel() club.Role {
	return club.Role{
		ID:                r.ID,
		Name:              r.Name,
		Description:       r.Description,
		CanCreateEvents:   r.CanCreateEvents,
		CanEditEvents:     r.CanEditEvents,
		CanDeleteEvents:   r.CanDeleteEvents,
		CanStartEvents:    r.CanStartEvents,
		CanEndEvents:      r.CanEndEvents,
		CanMarkAttendance: r.CanMarkAttendance,
		CanAddMembers:     r.CanAddMembers,
		CanRemoveMembers:  r.CanRemoveMembers,
		CanViewReports:    r.CanViewReports,
	}
}

type memberRow struct {
	ID               string    `db:"id"`
	ClubID           string    `db:"club_id"`
	StudentID        string    `db:"student_id"`
	RoleID           string    `db:"role_id"`
	LoginID          string    `db:"login_id"`
	ClubPasswordHash []byte    `db:"club_password_hash"`
	IsActive         bool      `db:"is_active"`
	JoinedAt         time.Time `db:"joined_at"`

	RoleName          string `db:"role_name"`
	RoleDescription   string `db:"role_description"`
	CanCreateEvents   bool   `db:"can_create_events"`
	CanEditEvents     bool   `db:"can_edit_events"`
	CanDeleteEvents   bool   `db:"can_delete_events"`
	CanStartEvents    bool   `db:"can_start_events"`
	CanEndEvents      bool   `db:"can_end_events"`
	CanMarkAttendance bool   `db:"can_mark_attendance"`
	CanAddMembers     bool   `db:"can_add_members"`
	CanRemoveMembers  bool   `db:"can_remove_members"`
	CanViewReports    bool   `db:"can_view_reports"`
}

func (r memberRow) toModel() club.Member {
	mbr := club.Member{
		ID:               r.ID,
		ClubID:           r.ClubID,
		StudentID:        r.StudentID,
		RoleID:           r.RoleID,
		LoginID:          r.LoginID,
		ClubPasswordHash: r.ClubPasswordHash,
		JoinedAt:         r.JoinedAt,
		Role: club.Role{
			ID:                r.RoleID,
			Name:              r.RoleName,
			Description:       r.RoleDescription,
			CanCreateEvents:   r.CanCreateEvents,
			CanEditEvents:     r.CanEditEvents,
			CanDeleteEvents:   r.CanDeleteEvents,
			CanStartEvents:    r.CanStartEvents,
			CanEndEvents:      r.CanEndEvents,
			CanMarkAttendance: r.CanMarkAttendance,
			CanAddMembers:     r.CanAddMembers,
			CanRemoveMembers:  r.CanRemoveMembers,
			CanViewReports:    r.CanViewReports,
		},
	}
	mbr.SetActive(r.IsActive)
	return mbr
}

type clubRepository struct {
	execHolder
}

var _ club.Repository = (*clubRepository)(nil) // interface compliance check

func NewClubRepository(exec core.DBExecutor) club.Repository {
	return &clubRepository{execHolder{exec: exec}}
}

func (repo clubRepository) CheckNameUniqueness(ctx context.Context, name string, excluded []club.Club, exec ...core.DBExecutor) error {
	q := `SELECT id FROM club WHERE LOWER(name) = LOWER(?)`
	args := []interface{}{name}
	if len(excluded) > 0 {
		ids := make([]string, 0, len(excluded))
		for _, cl := range excluded {
			ids = append(ids, cl.ID)
		}
		q += ` AND id <> ALL(?)`
		args = append(args, pq.Array(ids))
	}
	count, err := countCtx(ctx, repo.getExec(exec), `SELECT COUNT(*) FROM (`+q+`) dup`, args...)
	if err != nil {
		return errors.Wrap(err, "checking club name uniqueness")
	}
	if count > 0 {
		return club.ErrNameExists
	}
	return nil
}

func (repo clubRepository) CreateClub(ctx context.Context, cl club.Club, exec ...core.DBExecutor) (club.Club, error) {
	cl.ID = uuid.New().String()
	q := `INSERT INTO club (id, name, description, faculty_id, head_student_id, email,
			established_date, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := execCtx(ctx, repo.getExec(exec), q,
		cl.ID, cl.Name, cl.Description, cl.FacultyID, cl.HeadStudentID, cl.Email,
		cl.EstablishedDate, cl.Active(), cl.CreatedAt.UTC(), cl.UpdatedAt.UTC(),
	)
	if err != nil {
		if constraint, ok := violatedConstraint(err); ok && constraint == "club_name_key" {
			return club.Club{}, club.ErrNameExists
		}
		return club.Club{}, errors.Wrap(err, "inserting club")
	}
	return cl, nil
}

func (repo clubRepository) GetClubByID(ctx context.Context, id string, exec ...core.DBExecutor) (club.Club, error) {
	if _, err := uuid.Parse(id); err != nil {
		return club.Club{}, club.ErrNotFound
	}
	var rows []clubRow
	q := `SELECT ` + clubColumns + ` FROM club WHERE id = ? LIMIT 1`
	if err := selectCtx(ctx, repo.getExec(exec), &rows, q, id); err != nil {
		return club.Club{}, errors.Wrap(err, "finding club")
	}
	if len(rows) == 0 {
		return club.Club{}, club.ErrNotFound
	}
	return rows[0].toModel(), nil
}

func (repo clubRepository) QueryClubs(ctx context.Context, filter *club.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]club.Club, error) {
	var where whereClause
	if filter != nil {
		if filter.Search != "" {
			where.add(`name ILIKE ?`, "%"+filter.Search+"%")
		}
		if filter.FacultyID != "" {
			where.add(`faculty_id = ?`, filter.FacultyID)
		}
		if filter.IsActive != nil {
			where.add(`is_active = ?`, *filter.IsActive)
		}
	}

	var rows []clubRow
	q := `SELECT ` + clubColumns + ` FROM club` + where.String() + orderBy(ordering, "created_at DESC")
	if err := selectCtx(ctx, repo.getExec(exec), &rows, q, where.args...); err != nil {
		return nil, errors.Wrap(err, "querying clubs")
	}
	clubs := make([]club.Club, 0, len(rows))
	for _, row := range rows {
		clubs = append(clubs, row.toModel())
	}
	return clubs, nil
}

func (repo clubRepository) UpdateClub(ctx context.Context, cl club.Club, isActive *bool, exec ...core.DBExecutor) (club.Club, error) {
	sets := []string{"updated_at = ?"}
	args := []interface{}{cl.UpdatedAt.UTC()}
	addSet := func(col string, val interface{}) {
		sets = append(sets, col+" = ?")
		args = append(args, val)
	}

	if cl.Name != "" {
		addSet("name", cl.Name)
	}
	if cl.Description != "" {
		addSet("description", cl.Description)
	}
	if cl.FacultyID != nil {
		addSet("faculty_id", *cl.FacultyID)
	}
	if cl.HeadStudentID != nil {
		addSet("head_student_id", *cl.HeadStudentID)
	}
	if cl.Email != "" {
		addSet("email", cl.Email)
	}
	if cl.EstablishedDate != nil {
		addSet("established_date", *cl.EstablishedDate)
	}
	if isActive != nil {
		addSet("is_active", *isActive)
	}

	q := `UPDATE club SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`
	args = append(args, cl.ID)
	affected, err := execCtx(ctx, repo.getExec(exec), q, args...)
	if err != nil {
		if constraint, ok := violatedConstraint(err); ok && constraint == "club_name_key" {
			return club.Club{}, club.ErrNameExists
		}
		return club.Club{}, errors.Wrap(err, "updating club")
	}
	if affected == 0 {
		return club.Club{}, club.ErrNotFound
	}
	return repo.GetClubByID(ctx, cl.ID, exec...)
}

func (repo clubRepository) DeleteClubsByID(ctx context.Context, ids []string, exec ...core.DBExecutor) error {
	_, err := execCtx(ctx, repo.getExec(exec), `DELETE FROM club WHERE id = ANY(?)`, pq.Array(ids))
	return errors.Wrap(err, "deleting clubs")
}

func (repo clubRepository) QueryRoles(ctx context.Context, exec ...core.DBExecutor) ([]club.Role, error) {
	var rows []roleRow
	q := `SELECT ` + roleColumns + ` FROM club_role ORDER BY name`
	if err := selectCtx(ctx, repo.getExec(exec), &rows, q); err != nil {
		return nil, errors.Wrap(err, "querying roles")
	}
	roles := make([]club.Role, 0, len(rows))
	for _, row := range rows {
		roles = append(roles, row.toModel())
	}
	return roles, nil
}

func (repo clubRepository) GetRoleByID(ctx context.Context, id string, exec ...core.DBExecutor) (club.Role, error) {
	if _, err := uuid.Parse(id); err != nil {
		return club.Role{}, club.ErrRoleNotFound
	}
	var rows []roleRow
	q := `SELECT ` + roleColumns + ` FROM club_role WHERE id = ? LIMIT 1`
	if err := selectCtx(ctx, repo.getExec(exec), &rows, q, id); err != nil {
		return club.Role{}, errors.Wrap(err, "finding role")
	}
	if len(rows) == 0 {
		return club.Role{}, club.ErrRoleNotFound
	}
	return rows[0].toModel(), nil
}

func (repo clubRepository) CreateMember(ctx context.Context, mbr club.Member, exec ...core.DBExecutor) (club.Member, error) {
	mbr.ID = uuid.New().String()
	q := `INSERT INTO club_member (id, club_id, student_id, role_id, login_id, club_password_hash,
			is_active, joined_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := execCtx(ctx, repo.getExec(exec), q,
		mbr.ID, mbr.ClubID, mbr.StudentID, mbr.RoleID, mbr.LoginID, mbr.ClubPasswordHash,
		mbr.Active(), mbr.JoinedAt.UTC(),
	)
	if err != nil {
		switch constraint, _ := violatedConstraint(err); constraint {
		case "club_member_membership_key":
			return club.Member{}, club.ErrAlreadyMember
		case "club_member_login_id_key":
			return club.Member{}, club.ErrLoginIDExists
		}
		return club.Member{}, errors.Wrap(err, "inserting club member")
	}
	return repo.GetMemberByID(ctx, mbr.ID, exec...)
}

func (repo clubRepository) GetMemberByID(ctx context.Context, id string, exec ...core.DBExecutor) (club.Member, error) {
	if _, err := uuid.Parse(id); err != nil {
		return club.Member{}, club.ErrMemberNotFound
	}
	return repo.getMember(ctx, exec, ` WHERE m.id = ?`, id)
}

func (repo clubRepository) GetMemberByLoginID(ctx context.Context, loginID string, exec ...core.DBExecutor) (club.Member, error) {
	return repo.getMember(ctx, exec, ` WHERE m.login_id = LOWER(?)`, loginID)
}

func (repo clubRepository) GetMembership(ctx context.Context, clubID, studentID string, exec ...core.DBExecutor) (club.Member, error) {
	return repo.getMember(ctx, exec, ` WHERE m.club_id = ? AND m.student_id = ?`, clubID, studentID)
}

func (repo clubRepository) getMember(ctx context.Context, exec []core.DBExecutor, where string, args ...interface{}) (club.Member, error) {
	var rows []memberRow
	q := `SELECT ` + memberColumns + memberFrom + where + ` LIMIT 1`
	if err := selectCtx(ctx, repo.getExec(exec), &rows, q, args...); err != nil {
		return club.Member{}, errors.Wrap(err, "finding club member")
	}
	if len(rows) == 0 {
		return club.Member{}, club.ErrMemberNotFound
	}
	return rows[0].toModel(), nil
}

func (repo clubRepository) QueryMembers(ctx context.Context, clubID string, exec ...core.DBExecutor) ([]club.Member, error) {
	return repo.queryMembers(ctx, exec, ` WHERE m.club_id = ?`, clubID)
}

func (repo clubRepository) QueryMembershipsByStudent(ctx context.Context, studentID string, exec ...core.DBExecutor) ([]club.Member, error) {
	return repo.queryMembers(ctx, exec, ` WHERE m.student_id = ?`, studentID)
}

func (repo clubRepository) queryMembers(ctx context.Context, exec []core.DBExecutor, where string, args ...interface{}) ([]club.Member, error) {
	var rows []memberRow
	q := `SELECT ` + memberColumns + memberFrom + where + ` ORDER BY m.joined_at`
	if err := selectCtx(ctx, repo.getExec(exec), &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying club members")
	}
	members := make([]club.Member, 0, len(rows))
	for _, row := range rows {
		members = append(members, row.toModel())
	}
	return members, nil
}

func (repo clubRepository) UpdateMember(ctx context.Context, mbr club.Member, isActive *bool, exec ...core.DBExecutor) (club.Member, error) {
	var sets []string
	var args []interface{}
	addSet := func(col string, val interface{}) {
		sets = append(sets, col+" = ?")
		args = append(args, val)
	}

	if mbr.RoleID != "" {
		addSet("role_id", mbr.RoleID)
	}
	if mbr.LoginID != "" {
		addSet("login_id", mbr.LoginID)
	}
	if mbr.ClubPasswordHash != nil {
		addSet("club_password_hash", mbr.ClubPasswordHash)
	}
	if isActive != nil {
		addSet("is_active", *isActive)
	}
	if len(sets) == 0 {
		return repo.GetMemberByID(ctx, mbr.ID, exec...)
	}

	q := `UPDATE club_member SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`
	args = append(args, mbr.ID)
	affected, err := execCtx(ctx, repo.getExec(exec), q, args...)
	if err != nil {
		if constraint, ok := violatedConstraint(err); ok && constraint == "club_member_login_id_key" {
			return club.Member{}, club.ErrLoginIDExists
		}
		return club.Member{}, errors.Wrap(err, "updating club member")
	}
	if affected == 0 {
		return club.Member{}, club.ErrMemberNotFound
	}
	return repo.GetMemberByID(ctx, mbr.ID, exec...)
}

func (repo clubRepository) DeleteMember(ctx context.Context, id string, exec ...core.DBExecutor) error {
	_, err := execCtx(ctx, repo.getExec(exec), `DELETE FROM club_member WHERE id = ?`, id)
	return errors.Wrap(err, "deleting club member")
}
