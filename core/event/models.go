package event

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/kahero/campushub/core"
)

// Event lifecycle statuses.
const (
	StatusScheduled = "SCHEDULED"
	StatusOngoing   = "ONGOING"
	StatusCompleted = "COMPLETED"
	StatusCancelled = "CANCELLED"
)

// Event types. Activity-points events pay out activity points to present
// students and gate registration on the social score; normal events feed
// the social score instead.
const (
	TypeNormal         = "NORMAL"
	TypeActivityPoints = "ACTIVITY_POINTS"
)

// Registration statuses.
const (
	RegistrationRegistered = "REGISTERED"
	RegistrationCancelled  = "CANCELLED"
)

type Event struct {
	ID              string     `json:"id"`
	ClubID          string     `json:"club_id"`
	Name            string     `json:"name"`
	Description     string     `json:"description,omitempty"`
	Type            string     `json:"type"`
	ActivityPoints  int        `json:"activity_points,omitempty"` // 1..100, only for ACTIVITY_POINTS
	StartsAt        time.Time  `json:"starts_at"`                 // UTC
	EndsAt          *time.Time `json:"ends_at,omitempty"`         // UTC
	Venue           string     `json:"venue,omitempty"`
	MaxParticipants int        `json:"max_participants,omitempty"` // 0 = unlimited
	Status          string     `json:"status"`
	CreatedBy       *string    `json:"created_by,omitempty"` // club member ID
	LastEditedBy    *string    `json:"last_edited_by,omitempty"`
	LastEditedAt    *time.Time `json:"last_edited_at,omitempty"`
	StartedBy       *string    `json:"started_by,omitempty"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	EndedBy         *string    `json:"ended_by,omitempty"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"` // UTC
	UpdatedAt       time.Time  `json:"updated_at"` // UTC
}

// PointBearing reports whether present students earn activity points.
func (e *Event) PointBearing() bool {
	return e.Type == TypeActivityPoints && e.ActivityPoints > 0
}

// AcceptsRegistrations reports whether new registrations are open: the
// event must still be scheduled and not lie in the past. Capacity is
// checked against the live registration count, not here.
func (e *Event) AcceptsRegistrations(now time.Time) bool {
	return e.Status == StatusScheduled && !e.StartsAt.Before(now)
}

type Registration struct {
	ID                 string     `json:"id"`
	EventID            string     `json:"event_id"`
	StudentID          string     `json:"student_id"`
	Status             string     `json:"status"`
	RegisteredAt       time.Time  `json:"registered_at"` // UTC
	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CancellationReason string     `json:"cancellation_reason,omitempty"`
}

// EditHistoryEntry records a single field change made to an event.
type EditHistoryEntry struct {
	ID       string    `json:"id"`
	EventID  string    `json:"event_id"`
	EditedBy *string   `json:"edited_by,omitempty"` // club member ID
	Field    string    `json:"field"`
	OldValue string    `json:"old_value,omitempty"`
	NewValue string    `json:"new_value,omitempty"`
	EditedAt time.Time `json:"edited_at"` // UTC
}

// NewEvent contains information needed to schedule a new Event.
type NewEvent struct {
	Name            string     `json:"name" validate:"required"`
	Description     string     `json:"description"`
	Type            string     `json:"type" validate:"required,oneof=NORMAL ACTIVITY_POINTS"`
	ActivityPoints  int        `json:"activity_points"`
	StartsAt        time.Time  `json:"starts_at" validate:"required"`
	EndsAt          *time.Time `json:"ends_at"`
	Venue           string     `json:"venue"`
	MaxParticipants int        `json:"max_participants" validate:"omitempty,min=1"`
}

func (ne *NewEvent) Validate(validate *validator.Validate) error {
	ne.Name = core.CleanString(ne.Name)
	ne.Venue = core.CleanString(ne.Venue)

	if err := validate.Struct(ne); err != nil {
		return err
	}
	return validateActivityPoints(ne.Type, ne.ActivityPoints)
}

// UpdateEvent defines what information may be provided to modify an
// existing Event. Type is immutable once scheduled.
type UpdateEvent struct {
	Name            string     `json:"name"`
	Description     string     `json:"description"`
	ActivityPoints  int        `json:"activity_points"`
	StartsAt        *time.Time `json:"starts_at"`
	EndsAt          *time.Time `json:"ends_at"`
	Venue           string     `json:"venue"`
	MaxParticipants int        `json:"max_participants" validate:"omitempty,min=1"`
}

func (ue *UpdateEvent) Validate(orig Event, validate *validator.Validate) error {
	if name := core.CleanString(ue.Name); name != "" {
		ue.Name = name
	} else {
		ue.Name = orig.Name
	}
	ue.Venue = core.CleanString(ue.Venue)

	if err := validate.Struct(ue); err != nil {
		return err
	}
	points := ue.ActivityPoints
	if points == 0 {
		points = orig.ActivityPoints
	}
	return validateActivityPoints(orig.Type, points)
}

// validateActivityPoints enforces the type/points pairing: activity-points
// events carry 1..100 points, normal events carry none.
func validateActivityPoints(typ string, points int) error {
	switch typ {
	case TypeActivityPoints:
		if points < 1 || points > 100 {
			return core.NewValidationError(nil, core.FieldError{
				Field: "activity_points", Error: "activity points must be between 1 and 100",
			})
		}
	case TypeNormal:
		if points != 0 {
			return core.NewValidationError(nil, core.FieldError{
				Field: "activity_points", Error: "activity points cannot be set for normal events",
			})
		}
	}
	return nil
}

type CancelRegistration struct {
	Reason string `json:"reason"`
}

type QueryFilter struct {
	Search   string    `query:"search"`
	ClubID   string    `query:"club_id"`
	Type     string    `query:"type"`
	Status   string    `query:"status"`
	DateFrom time.Time `query:"date_from"`
	DateTo   time.Time `query:"date_to"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.ClubID == "" && qf.Type == "" && qf.Status == "" &&
		qf.DateFrom.IsZero() && qf.DateTo.IsZero()
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Type = strings.ToUpper(core.CleanString(qf.Type))
	qf.Status = strings.ToUpper(core.CleanString(qf.Status))
}
