package student

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/kahero/campushub/core"
	"github.com/kahero/campushub/core/scoring"
)

// EligibilityThreshold is the minimum social score required to register
// for an activity-points event.
const EligibilityThreshold core.Score = 9800 // 98.00%

// DefaultMaxEventRegistrations caps concurrently active event registrations.
const DefaultMaxEventRegistrations = 10

const (
	GenderMale   = "Male"
	GenderFemale = "Female"
	GenderOther  = "Other"
)

type Student struct {
	ID                    string     `json:"id"`
	USN                   string     `json:"usn"` // University Seat Number
	FirstName             string     `json:"first_name"`
	LastName              string     `json:"last_name"`
	Email                 string     `json:"email"`
	Phone                 string     `json:"phone,omitempty"`
	Department            string     `json:"department,omitempty"`
	Semester              int        `json:"semester,omitempty"`
	DateOfBirth           *time.Time `json:"date_of_birth,omitempty"`
	Gender                string     `json:"gender,omitempty"`
	Address               string     `json:"address,omitempty"`
	MaxEventRegistrations int        `json:"max_event_registrations"`
	SocialScore           core.Score `json:"social_score"`
	TotalActivityPoints   int        `json:"total_activity_points"`
	IsActive              *bool      `json:"is_active"`
	PasswordHash          []byte     `json:"-"`
	CreatedAt             time.Time  `json:"created_at"` // UTC
	UpdatedAt             time.Time  `json:"updated_at"` // UTC
	LastLogin             time.Time  `json:"last_login"` // UTC
}

func (s *Student) FullName() string {
	return s.FirstName + " " + s.LastName
}

func (s *Student) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	s.PasswordHash = hash
	return nil
}

func (s *Student) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(s.PasswordHash, []byte(pwd))
}

func (s *Student) SetActive(active bool) {
	s.IsActive = &active
}

func (s *Student) Active() bool {
	return s.IsActive != nil && *s.IsActive
}

// CanRegisterForPointEvent is the eligibility gate for activity-points
// events: true iff the social score is at least the threshold.
func (s *Student) CanRegisterForPointEvent() bool {
	return s.SocialScore >= EligibilityThreshold
}

// EligibilityDeficit reports how far the score is below the threshold;
// zero when eligible.
func (s *Student) EligibilityDeficit() core.Score {
	if s.CanRegisterForPointEvent() {
		return 0
	}
	return EligibilityThreshold - s.SocialScore
}

// ScoreLogEntry is one immutable row of the social score ledger. Entries
// are only ever appended; Delta always holds the effective (post-clamp)
// change so that the ledger replays exactly to NewScore.
type ScoreLogEntry struct {
	ID        string         `json:"id"`
	StudentID string         `json:"student_id"`
	Delta     core.Score     `json:"delta"`
	NewScore  core.Score     `json:"new_score"`
	Reason    scoring.Reason `json:"reason"`
	EventID   *string        `json:"event_id,omitempty"`
	Remark    string         `json:"remark,omitempty"`
	CreatedAt time.Time      `json:"created_at"` // UTC
}

// Eligibility is the registration-gate view returned to callers for display.
type Eligibility struct {
	Eligible bool       `json:"eligible"`
	Score    core.Score `json:"social_score"`
	Required core.Score `json:"required"`
	Deficit  core.Score `json:"deficit"`
	Message  string     `json:"message,omitempty"`
}

func newEligibility(s Student) Eligibility {
	e := Eligibility{
		Eligible: s.CanRegisterForPointEvent(),
		Score:    s.SocialScore,
		Required: EligibilityThreshold,
		Deficit:  s.EligibilityDeficit(),
	}
	if !e.Eligible {
		e.Message = fmt.Sprintf(
			"Your social score (%s%%) does not meet the required criteria (%s%%). "+
				"Please participate in non-activity point events to increase your social score.",
			e.Score, e.Required,
		)
	}
	return e
}

// NewStudent contains information needed to register a new Student.
type NewStudent struct {
	USN             string     `json:"usn" validate:"required,usn"`
	FirstName       string     `json:"first_name" validate:"required"`
	LastName        string     `json:"last_name" validate:"required"`
	Email           string     `json:"email" validate:"required,email"`
	Phone           string     `json:"phone" validate:"omitempty,phone"`
	Department      string     `json:"department"`
	Semester        int        `json:"semester" validate:"omitempty,min=1,max=8"`
	DateOfBirth     *time.Time `json:"date_of_birth"`
	Gender          string     `json:"gender" validate:"omitempty,oneof=Male Female Other"`
	Address         string     `json:"address"`
	Password        string     `json:"password" validate:"required"`
	PasswordConfirm string     `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (ns *NewStudent) Validate(validate *validator.Validate, svc Service) error {
	ns.USN = core.CleanString(ns.USN, true /* lower */)
	ns.FirstName = core.CleanString(ns.FirstName)
	ns.LastName = core.CleanString(ns.LastName)
	ns.Email = core.CleanString(ns.Email, true /* lower */)

	if err := validate.Struct(ns); err != nil {
		return err
	}
	return svc.CheckUniqueness(ns.USN, ns.Email)
}

// UpdateStudent defines what information may be provided to modify an
// existing Student. USN is immutable after registration.
type UpdateStudent struct {
	FirstName       string     `json:"first_name"`
	LastName        string     `json:"last_name"`
	Email           string     `json:"email" validate:"omitempty,email"`
	Phone           string     `json:"phone" validate:"omitempty,phone"`
	Department      string     `json:"department"`
	Semester        int        `json:"semester" validate:"omitempty,min=1,max=8"`
	DateOfBirth     *time.Time `json:"date_of_birth"`
	Gender          string     `json:"gender" validate:"omitempty,oneof=Male Female Other"`
	Address         string     `json:"address"`
	IsActive        *bool      `json:"is_active"`
	Password        string     `json:"password" validate:"omitempty"`
	PasswordConfirm string     `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`
}

func (us *UpdateStudent) Validate(orig Student, validate *validator.Validate, svc Service) error {
	if name := core.CleanString(us.FirstName); name != "" {
		us.FirstName = name
	} else {
		us.FirstName = orig.FirstName
	}
	if name := core.CleanString(us.LastName); name != "" {
		us.LastName = name
	} else {
		us.LastName = orig.LastName
	}
	if email := core.CleanString(us.Email, true /* lower */); email != "" {
		us.Email = email
	} else {
		us.Email = orig.Email
	}

	if err := validate.Struct(us); err != nil {
		return err
	}
	return svc.CheckUniqueness(orig.USN, us.Email, orig)
}

type ResetStudentPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp ResetStudentPassword) Validate(validate *validator.Validate) error {
	return validate.Struct(rp)
}

// ManualAdjustment is an administrative absolute reset of a social score.
type ManualAdjustment struct {
	NewScore core.Score `json:"new_score"`
	Remark   string     `json:"remark" validate:"required"`
}

func (ma *ManualAdjustment) Validate(validate *validator.Validate) error {
	ma.Remark = core.CleanString(ma.Remark)
	if err := validate.Struct(ma); err != nil {
		return err
	}
	if ma.NewScore < core.MinScore || ma.NewScore > core.MaxScore {
		return core.NewValidationError(nil, core.FieldError{
			Field: "new_score", Error: "score must be between 0.00 and 100.00",
		})
	}
	return nil
}

type QueryFilter struct {
	Search      string    `query:"search"`
	Department  string    `query:"department"`
	Semester    int       `query:"semester"`
	IsActive    *bool     `query:"is_active"`
	CreatedFrom time.Time `query:"created_from"`
	CreatedTo   time.Time `query:"created_to"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Department == "" && qf.Semester == 0 &&
		qf.IsActive == nil && qf.CreatedFrom.IsZero() && qf.CreatedTo.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Department = core.CleanString(qf.Department)
}

// GetFilter selects a single student; exactly one selector should be set.
type GetFilter struct {
	ID         string
	USN        string
	Email      string
	USNOrEmail string
}
