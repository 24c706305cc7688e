package club

import (
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/kahero/campushub/core"
)

// Permission names checked against a member's ClubRole.
const (
	PermCreateEvents   = "create_events"
	PermEditEvents     = "edit_events"
	PermDeleteEvents   = "delete_events"
	PermStartEvents    = "start_events"
	PermEndEvents      = "end_events"
	PermMarkAttendance = "mark_attendance"
	PermAddMembers     = "add_members"
	PermRemoveMembers  = "remove_members"
	PermViewReports    = "view_reports"
)

type Club struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Description     string     `json:"description,omitempty"`
	FacultyID       *string    `json:"faculty_id,omitempty"` // faculty in charge
	HeadStudentID   *string    `json:"head_student_id,omitempty"`
	Email           string     `json:"email,omitempty"`
	EstablishedDate *time.Time `json:"established_date,omitempty"`
	IsActive        *bool      `json:"is_active"`
	CreatedAt       time.Time  `json:"created_at"` // UTC
	UpdatedAt       time.Time  `json:"updated_at"` // UTC
}

func (c *Club) SetActive(active bool) {
	c.IsActive = &active
}

func (c *Club) Active() bool {
	return c.IsActive != nil && *c.IsActive
}

// Role defines per-club permissions. Roles are shared across clubs;
// the defaults are seeded by migration.
type Role struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Description       string `json:"description,omitempty"`
	CanCreateEvents   bool   `json:"can_create_events"`
	CanEditEvents     bool   `json:"can_edit_events"`
	CanDeleteEvents   bool   `json:"can_delete_events"`
	CanStartEvents    bool   `json:"can_start_events"`
	CanEndEvents      bool   `json:"can_end_events"`
	CanMarkAttendance bool   `json:"can_mark_attendance"`
	CanAddMembers     bool   `json:"can_add_members"`
	CanRemoveMembers  bool   `json:"can_remove_members"`
	CanViewReports    bool   `json:"can_view_reports"`
}

// Has reports whether the role grants the named permission.
func (r Role) Has(perm string) bool {
	switch perm {
	case PermCreateEvents:
		return r.CanCreateEvents
	case PermEditEvents:
		return r.CanEditEvents
	case PermDeleteEvents:
		return r.CanDeleteEvents
	case PermStartEvents:
		return r.CanStartEvents
	case PermEndEvents:
		return r.CanEndEvents
	case PermMarkAttendance:
		return r.CanMarkAttendance
	case PermAddMembers:
		return r.CanAddMembers
	case PermRemoveMembers:
		return r.CanRemoveMembers
	case PermViewReports:
		return r.CanViewReports
	}
	return false
}

// Member ties a student to a club with a role. Members holding an
// operational role get dedicated club credentials (LoginID + password)
// distinct from the student's own account.
type Member struct {
	ID               string    `json:"id"`
	ClubID           string    `json:"club_id"`
	StudentID        string    `json:"student_id"`
	RoleID           string    `json:"role_id"`
	Role             Role      `json:"role"`
	LoginID          string    `json:"login_id,omitempty"`
	ClubPasswordHash []byte    `json:"-"`
	IsActive         *bool     `json:"is_active"`
	JoinedAt         time.Time `json:"joined_at"` // UTC
}

func (m *Member) SetClubPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	m.ClubPasswordHash = hash
	return nil
}

func (m *Member) CheckClubPassword(pwd string) error {
	if len(m.ClubPasswordHash) == 0 {
		return bcrypt.ErrMismatchedHashAndPassword
	}
	return bcrypt.CompareHashAndPassword(m.ClubPasswordHash, []byte(pwd))
}

func (m *Member) SetActive(active bool) {
	m.IsActive = &active
}

func (m *Member) Active() bool {
	return m.IsActive != nil && *m.IsActive
}

// HasPermission checks the member's role for the named permission;
// inactive members hold no permissions.
func (m *Member) HasPermission(perm string) bool {
	if !m.Active() {
		return false
	}
	return m.Role.Has(perm)
}

// NewClub contains information needed to register a new Club.
type NewClub struct {
	Name            string     `json:"name" validate:"required"`
	Description     string     `json:"description"`
	FacultyID       *string    `json:"faculty_id"`
	HeadStudentID   *string    `json:"head_student_id"`
	Email           string     `json:"email" validate:"omitempty,email"`
	EstablishedDate *time.Time `json:"established_date"`
}

func (nc *NewClub) Validate(validate *validator.Validate, svc Service) error {
	nc.Name = core.CleanString(nc.Name)
	nc.Email = core.CleanString(nc.Email, true /* lower */)

	if err := validate.Struct(nc); err != nil {
		return err
	}
	return svc.CheckNameUniqueness(nc.Name)
}

// UpdateClub defines what information may be provided to modify an existing Club.
type UpdateClub struct {
	Name            string     `json:"name"`
	Description     string     `json:"description"`
	FacultyID       *string    `json:"faculty_id"`
	HeadStudentID   *string    `json:"head_student_id"`
	Email           string     `json:"email" validate:"omitempty,email"`
	EstablishedDate *time.Time `json:"established_date"`
	IsActive        *bool      `json:"is_active"`
}

func (uc *UpdateClub) Validate(orig Club, validate *validator.Validate, svc Service) error {
	if name := core.CleanString(uc.Name); name != "" {
		uc.Name = name
	} else {
		uc.Name = orig.Name
	}
	if email := core.CleanString(uc.Email, true /* lower */); email != "" {
		uc.Email = email
	} else {
		uc.Email = orig.Email
	}

	if err := validate.Struct(uc); err != nil {
		return err
	}
	if uc.Name != orig.Name {
		return svc.CheckNameUniqueness(uc.Name)
	}
	return nil
}

// NewMember contains information needed to add a student to a club.
// LoginID and Password are only required for operational roles.
type NewMember struct {
	StudentID string `json:"student_id" validate:"required"`
	RoleID    string `json:"role_id" validate:"required"`
	LoginID   string `json:"login_id" validate:"omitempty,min=4,alphanum_"`
	Password  string `json:"password" validate:"required_with=LoginID,omitempty,min=8"`
}

func (nm *NewMember) Validate(validate *validator.Validate) error {
	nm.LoginID = core.CleanString(nm.LoginID, true /* lower */)
	return validate.Struct(nm)
}

type QueryFilter struct {
	Search    string `query:"search"`
	FacultyID string `query:"faculty_id"`
	IsActive  *bool  `query:"is_active"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.FacultyID == "" && qf.IsActive == nil
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}
