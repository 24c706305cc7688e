package faculty

import (
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/kahero/campushub/core"
)

type Faculty struct {
	ID           string    `json:"id"`
	Code         string    `json:"code"` // unique staff code, alphanumeric
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone,omitempty"`
	Department   string    `json:"department,omitempty"`
	IsActive     *bool     `json:"is_active"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
	LastLogin    time.Time `json:"last_login"` // UTC
}

func (f *Faculty) FullName() string {
	return f.FirstName + " " + f.LastName
}

func (f *Faculty) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	f.PasswordHash = hash
	return nil
}

func (f *Faculty) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(f.PasswordHash, []byte(pwd))
}

func (f *Faculty) SetActive(active bool) {
	f.IsActive = &active
}

func (f *Faculty) Active() bool {
	return f.IsActive != nil && *f.IsActive
}

// NewFaculty contains information needed to register a new Faculty member.
type NewFaculty struct {
	Code            string `json:"code" validate:"required,alphanum"`
	FirstName       string `json:"first_name" validate:"required"`
	LastName        string `json:"last_name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Phone           string `json:"phone" validate:"omitempty,phone"`
	Department      string `json:"department"`
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (nf *NewFaculty) Validate(validate *validator.Validate, svc Service) error {
	nf.Code = core.CleanString(nf.Code, true /* lower */)
	nf.FirstName = core.CleanString(nf.FirstName)
	nf.LastName = core.CleanString(nf.LastName)
	nf.Email = core.CleanString(nf.Email, true /* lower */)

	if err := validate.Struct(nf); err != nil {
		return err
	}
	return svc.CheckUniqueness(nf.Code, nf.Email)
}

// UpdateFaculty defines what information may be provided to modify an
// existing Faculty member. Code is immutable.
type UpdateFaculty struct {
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Email           string `json:"email" validate:"omitempty,email"`
	Phone           string `json:"phone" validate:"omitempty,phone"`
	Department      string `json:"department"`
	IsActive        *bool  `json:"is_active"`
	Password        string `json:"password" validate:"omitempty,min=8"`
	PasswordConfirm string `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`
}

func (uf *UpdateFaculty) Validate(orig Faculty, validate *validator.Validate, svc Service) error {
	if name := core.CleanString(uf.FirstName); name != "" {
		uf.FirstName = name
	} else {
		uf.FirstName = orig.FirstName
	}
	if name := core.CleanString(uf.LastName); name != "" {
		uf.LastName = name
	} else {
		uf.LastName = orig.LastName
	}
	if email := core.CleanString(uf.Email, true /* lower */); email != "" {
		uf.Email = email
	} else {
		uf.Email = orig.Email
	}

	if err := validate.Struct(uf); err != nil {
		return err
	}
	return svc.CheckUniqueness(orig.Code, uf.Email, orig)
}

type QueryFilter struct {
	Search     string `query:"search"`
	Department string `query:"department"`
	IsActive   *bool  `query:"is_active"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Department == "" && qf.IsActive == nil
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Department = core.CleanString(qf.Department)
}

// GetFilter selects a single faculty member; exactly one selector should be set.
type GetFilter struct {
	ID          string
	Code        string
	Email       string
	CodeOrEmail string
}
