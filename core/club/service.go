package club

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/kahero/campushub/core"
)

var (
	// errors
	ErrNotFound        = errors.New("club not found")
	ErrMemberNotFound  = errors.New("club member not found")
	ErrRoleNotFound    = errors.New("club role not found")
	ErrNameExists      = errors.New("a club with this name already exists")
	ErrAlreadyMember   = errors.New("student is already a member of this club")
	ErrLoginIDExists   = errors.New("this club login ID is already taken")
	ErrLoginIDRequired = errors.New("this role requires club login credentials")
)

type (
	Repository interface {
		CheckNameUniqueness(ctx context.Context, name string, excluded []Club, exec ...core.DBExecutor) error
		CreateClub(ctx context.Context, cl Club, exec ...core.DBExecutor) (Club, error)
		GetClubByID(ctx context.Context, id string, exec ...core.DBExecutor) (Club, error)
		// QueryClubs applies AND on available QueryFilter fields.
		// QueryFilter.Search matches the club name, case-insensitive.
		QueryClubs(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Club, error)
		UpdateClub(ctx context.Context, cl Club, isActive *bool, exec ...core.DBExecutor) (Club, error)
		DeleteClubsByID(ctx context.Context, ids []string, exec ...core.DBExecutor) error

		QueryRoles(ctx context.Context, exec ...core.DBExecutor) ([]Role, error)
		GetRoleByID(ctx context.Context, id string, exec ...core.DBExecutor) (Role, error)

		CreateMember(ctx context.Context, mbr Member, exec ...core.DBExecutor) (Member, error)
		GetMemberByID(ctx context.Context, id string, exec ...core.DBExecutor) (Member, error)
		GetMemberByLoginID(ctx context.Context, loginID string, exec ...core.DBExecutor) (Member, error)
		GetMembership(ctx context.Context, clubID, studentID string, exec ...core.DBExecutor) (Member, error)
		QueryMembers(ctx context.Context, clubID string, exec ...core.DBExecutor) ([]Member, error)
		QueryMembershipsByStudent(ctx context.Context, studentID string, exec ...core.DBExecutor) ([]Member, error)
		UpdateMember(ctx context.Context, mbr Member, isActive *bool, exec ...core.DBExecutor) (Member, error)
		DeleteMember(ctx context.Context, id string, exec ...core.DBExecutor) error
	}

	Service interface {
		CheckNameUniqueness(name string, excluded ...Club) error
		Create(ctx context.Context, nc NewClub) (Club, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Club, error)
		GetByID(ctx context.Context, id string) (Club, error)
		Update(ctx context.Context, id string, uc UpdateClub) (Club, error)
		Delete(ctx context.Context, ids ...string) error

		Roles(ctx context.Context) ([]Role, error)

		AddMember(ctx context.Context, clubID string, nm NewMember) (Member, error)
		RemoveMember(ctx context.Context, clubID, memberID string) error
		Members(ctx context.Context, clubID string) ([]Member, error)
		MembershipsOf(ctx context.Context, studentID string) ([]Member, error)
		GetMembership(ctx context.Context, clubID, studentID string) (Member, error)
		// Authenticate logs an operational member in with their club
		// credentials and returns the membership with role loaded.
		Authenticate(ctx context.Context, loginID, password string) (Member, error)
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil) // interface compliance check

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) CheckNameUniqueness(name string, excluded ...Club) error {
	if err := svc.repo.CheckNameUniqueness(context.Background(), name, excluded); err != nil {
		if errors.Cause(err) == ErrNameExists {
			return core.NewValidationError(err, core.FieldError{Field: "name", Error: err.Error()})
		}
		return err
	}
	return nil
}

func (svc *service) Create(ctx context.Context, nc NewClub) (Club, error) {
	now := time.Now().UTC()
	cl := Club{
		Name:            nc.Name,
		Description:     nc.Description,
		FacultyID:       nc.FacultyID,
		HeadStudentID:   nc.HeadStudentID,
		Email:           nc.Email,
		EstablishedDate: nc.EstablishedDate,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	cl.SetActive(true)
	return svc.repo.CreateClub(ctx, cl)
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Club, error) {
	return svc.repo.QueryClubs(ctx, filter, ordering)
}

func (svc *service) GetByID(ctx context.Context, id string) (Club, error) {
	return svc.repo.GetClubByID(ctx, id)
}

func (svc *service) Update(ctx context.Context, id string, uc UpdateClub) (Club, error) {
	cl := Club{
		ID:              id,
		Name:            uc.Name,
		Description:     uc.Description,
		FacultyID:       uc.FacultyID,
		HeadStudentID:   uc.HeadStudentID,
		Email:           uc.Email,
		EstablishedDate: uc.EstablishedDate,
		UpdatedAt:       time.Now().UTC(),
	}
	return svc.repo.UpdateClub(ctx, cl, uc.IsActive)
}

func (svc *service) Delete(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteClubsByID(ctx, ids)
}

func (svc *service) Roles(ctx context.Context) ([]Role, error) {
	return svc.repo.QueryRoles(ctx)
}

func (svc *service) AddMember(ctx context.Context, clubID string, nm NewMember) (Member, error) {
	if _, err := svc.repo.GetClubByID(ctx, clubID); err != nil {
		return Member{}, err
	}
	role, err := svc.repo.GetRoleByID(ctx, nm.RoleID)
	if err != nil {
		return Member{}, err
	}

	// operational roles need club credentials to exercise their permissions
	operational := role.CanCreateEvents || role.CanEditEvents || role.CanDeleteEvents ||
		role.CanStartEvents || role.CanEndEvents || role.CanMarkAttendance ||
		role.CanAddMembers || role.CanRemoveMembers || role.CanViewReports
	if operational && nm.LoginID == "" {
		return Member{}, core.NewValidationError(ErrLoginIDRequired,
			core.FieldError{Field: "login_id", Error: ErrLoginIDRequired.Error()})
	}

	mbr := Member{
		ClubID:    clubID,
		StudentID: nm.StudentID,
		RoleID:    nm.RoleID,
		Role:      role,
		LoginID:   nm.LoginID,
		JoinedAt:  time.Now().UTC(),
	}
	mbr.SetActive(true)
	if nm.Password != "" {
		if err = mbr.SetClubPassword(nm.Password); err != nil {
			return Member{}, errors.Wrap(err, "hashing club password")
		}
	}

	mbr, err = svc.repo.CreateMember(ctx, mbr)
	if err != nil {
		switch errors.Cause(err) {
		case ErrAlreadyMember:
			return Member{}, core.NewValidationError(err, core.FieldError{Field: "student_id", Error: err.Error()})
		case ErrLoginIDExists:
			return Member{}, core.NewValidationError(err, core.FieldError{Field: "login_id", Error: err.Error()})
		}
		return Member{}, err
	}
	return mbr, nil
}

func (svc *service) RemoveMember(ctx context.Context, clubID, memberID string) error {
	mbr, err := svc.repo.GetMemberByID(ctx, memberID)
	if err != nil {
		return err
	}
	if mbr.ClubID != clubID {
		return ErrMemberNotFound
	}
	return svc.repo.DeleteMember(ctx, memberID)
}

func (svc *service) Members(ctx context.Context, clubID string) ([]Member, error) {
	return svc.repo.QueryMembers(ctx, clubID)
}

func (svc *service) MembershipsOf(ctx context.Context, studentID string) ([]Member, error) {
	return svc.repo.QueryMembershipsByStudent(ctx, studentID)
}

func (svc *service) GetMembership(ctx context.Context, clubID, studentID string) (Member, error) {
	return svc.repo.GetMembership(ctx, clubID, studentID)
}

func (svc *service) Authenticate(ctx context.Context, loginID, password string) (Member, error) {
	mbr, err := svc.repo.GetMemberByLoginID(ctx, core.CleanString(loginID, true /* lower */))
	if err != nil {
		return Member{}, err
	}
	if !mbr.Active() {
		return Member{}, ErrMemberNotFound
	}
	if err = mbr.CheckClubPassword(password); err != nil {
		return Member{}, ErrMemberNotFound
	}
	return mbr, nil
}
