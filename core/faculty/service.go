package faculty

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/kahero/campushub/core"
)

var (
	// errors
	ErrNotFound    = errors.New("faculty not found")
	ErrEmailExists = errors.New("a faculty member with this email already exists")
	ErrCodeExists  = errors.New("a faculty member with this code already exists")
)

type (
	Repository interface {
		CheckUniqueness(ctx context.Context, code, email string, excluded []Faculty, exec ...core.DBExecutor) error
		CreateFaculty(ctx context.Context, fac Faculty, exec ...core.DBExecutor) (Faculty, error)
		GetFaculty(ctx context.Context, filter GetFilter, exec ...core.DBExecutor) (Faculty, error)
		// QueryFaculty applies AND on available QueryFilter fields.
		// QueryFilter.Search matches one of Code, FirstName, LastName or Email.
		QueryFaculty(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Faculty, error)
		UpdateFaculty(ctx context.Context, fac Faculty, isActive *bool, exec ...core.DBExecutor) (Faculty, error)
		DeleteFacultyByID(ctx context.Context, ids []string, exec ...core.DBExecutor) error
	}

	Service interface {
		CheckUniqueness(code, email string, excluded ...Faculty) error
		Create(ctx context.Context, nf NewFaculty) (Faculty, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Faculty, error)
		GetByID(ctx context.Context, id string) (Faculty, error)
		GetByCode(ctx context.Context, code string) (Faculty, error)
		GetByEmail(ctx context.Context, email string) (Faculty, error)
		GetByCodeOrEmail(ctx context.Context, code string) (Faculty, error)
		Update(ctx context.Context, id string, uf UpdateFaculty) (Faculty, error)
		SetLastLogin(ctx context.Context, fac Faculty) error
		Delete(ctx context.Context, ids ...string) error
	}

	service struct {
		repo Repository
	}
)

var _ Service = (*service)(nil) // interface compliance check

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (svc *service) CheckUniqueness(code, email string, excluded ...Faculty) error {
	if err := svc.repo.CheckUniqueness(context.Background(), code, email, excluded); err != nil {
		var field string
		switch errors.Cause(err) {
		case ErrCodeExists:
			field = "code"
		case ErrEmailExists:
			field = "email"
		default:
			return err
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

func (svc *service) Create(ctx context.Context, nf NewFaculty) (Faculty, error) {
	now := time.Now().UTC()
	fac := Faculty{
		Code:       nf.Code,
		FirstName:  nf.FirstName,
		LastName:   nf.LastName,
		Email:      nf.Email,
		Phone:      nf.Phone,
		Department: nf.Department,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	fac.SetActive(true)
	if err := fac.SetPassword(nf.Password); err != nil {
		return Faculty{}, errors.Wrap(err, "hashing password")
	}
	return svc.repo.CreateFaculty(ctx, fac)
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Faculty, error) {
	return svc.repo.QueryFaculty(ctx, filter, ordering)
}

func (svc *service) GetByID(ctx context.Context, id string) (Faculty, error) {
	return svc.repo.GetFaculty(ctx, GetFilter{ID: id})
}

func (svc *service) GetByCode(ctx context.Context, code string) (Faculty, error) {
	return svc.repo.GetFaculty(ctx, GetFilter{Code: core.CleanString(code, true /* lower */)})
}

func (svc *service) GetByEmail(ctx context.Context, email string) (Faculty, error) {
	return svc.repo.GetFaculty(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

func (svc *service) GetByCodeOrEmail(ctx context.Context, code string) (Faculty, error) {
	return svc.repo.GetFaculty(ctx, GetFilter{CodeOrEmail: core.CleanString(code, true /* lower */)})
}

func (svc *service) Update(ctx context.Context, id string, uf UpdateFaculty) (Faculty, error) {
	fac := Faculty{
		ID:         id,
		FirstName:  uf.FirstName,
		LastName:   uf.LastName,
		Email:      uf.Email,
		Phone:      uf.Phone,
		Department: uf.Department,
		UpdatedAt:  time.Now().UTC(),
	}
	if uf.Password != "" {
		if err := fac.SetPassword(uf.Password); err != nil {
			return Faculty{}, errors.Wrap(err, "hashing password")
		}
	}
	return svc.repo.UpdateFaculty(ctx, fac, uf.IsActive)
}

func (svc *service) SetLastLogin(ctx context.Context, fac Faculty) error {
	fac.LastLogin = time.Now().UTC()
	_, err := svc.repo.UpdateFaculty(ctx, fac, nil)
	return err
}

func (svc *service) Delete(ctx context.Context, ids ...string) error {
	return svc.repo.DeleteFacultyByID(ctx, ids)
}
