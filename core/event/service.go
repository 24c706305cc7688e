package event

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/kahero/campushub/core"
	"github.com/kahero/campushub/core/student"
)

var (
	// errors
	ErrNotFound             = errors.New("event not found")
	ErrRegistrationNotFound = errors.New("registration not found")
	ErrInvalidTransition    = errors.New("event status does not allow this operation")
	ErrRegistrationClosed   = errors.New("event is not open for registration")
	ErrEventFull            = errors.New("event has reached maximum participants")
	ErrAlreadyRegistered    = errors.New("student is already registered for this event")
	ErrRegistrationLimit    = errors.New("student has reached the maximum number of active event registrations")
	ErrNotEligible          = errors.New("student does not meet the social score criteria for activity point events")

	NowFunc = time.Now // mockable
)

type (
	Repository interface {
		CreateEvent(ctx context.Context, evt Event, exec ...core.DBExecutor) (Event, error)
		GetEventByID(ctx context.Context, id string, exec ...core.DBExecutor) (Event, error)
		// QueryEvents applies AND on available QueryFilter fields.
		// QueryFilter.Search matches the event name, case-insensitive.
		QueryEvents(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Event, error)
		UpdateEvent(ctx context.Context, evt Event, exec ...core.DBExecutor) (Event, error)
		DeleteEvent(ctx context.Context, id string, exec ...core.DBExecutor) error

		AppendEditHistory(ctx context.Context, entries []EditHistoryEntry, exec ...core.DBExecutor) error
		GetEditHistory(ctx context.Context, eventID string, exec ...core.DBExecutor) ([]EditHistoryEntry, error)

		CreateRegistration(ctx context.Context, reg Registration, exec ...core.DBExecutor) (Registration, error)
		GetRegistration(ctx context.Context, eventID, studentID string, exec ...core.DBExecutor) (Registration, error)
		UpdateRegistration(ctx context.Context, reg Registration, exec ...core.DBExecutor) (Registration, error)
		QueryRegistrations(ctx context.Context, eventID string, exec ...core.DBExecutor) ([]Registration, error)
		QueryRegistrationsByStudent(ctx context.Context, studentID string, exec ...core.DBExecutor) ([]Registration, error)
		// CountActiveRegistrations counts REGISTERED rows for an event.
		CountActiveRegistrations(ctx context.Context, eventID string, exec ...core.DBExecutor) (int, error)
		// CountStudentActiveRegistrations counts a student's REGISTERED rows
		// on events that are not yet completed or cancelled.
		CountStudentActiveRegistrations(ctx context.Context, studentID string, exec ...core.DBExecutor) (int, error)
	}

	Service interface {
		Create(ctx context.Context, clubID, memberID string, ne NewEvent) (Event, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Event, error)
		GetByID(ctx context.Context, id string) (Event, error)
		Update(ctx context.Context, id, memberID string, ue UpdateEvent) (Event, error)
		Start(ctx context.Context, id, memberID string) (Event, error)
		End(ctx context.Context, id, memberID string) (Event, error)
		// EndTx is End inside a caller-owned transaction, for flows that
		// complete an event and snapshot its attendance atomically.
		EndTx(ctx context.Context, tx core.DBExecutor, id, memberID string) (Event, error)
		Cancel(ctx context.Context, id, memberID string) (Event, error)
		Delete(ctx context.Context, id string) error
		EditHistory(ctx context.Context, eventID string) ([]EditHistoryEntry, error)

		Register(ctx context.Context, eventID, studentID string) (Registration, error)
		GetRegistration(ctx context.Context, eventID, studentID string) (Registration, error)
		CancelRegistration(ctx context.Context, eventID, studentID, reason string) (Registration, error)
		Registrations(ctx context.Context, eventID string) ([]Registration, error)
		RegistrationsOf(ctx context.Context, studentID string) ([]Registration, error)
	}

	service struct {
		repo       Repository
		studentSvc student.Service
	}
)

var _ Service = (*service)(nil) // interface compliance check

func NewService(repo Repository, studentSvc student.Service) Service {
	return &service{
		repo:       repo,
		studentSvc: studentSvc,
	}
}

func (svc *service) Create(ctx context.Context, clubID, memberID string, ne NewEvent) (Event, error) {
	now := NowFunc().UTC()
	evt := Event{
		ClubID:          clubID,
		Name:            ne.Name,
		Description:     ne.Description,
		Type:            ne.Type,
		ActivityPoints:  ne.ActivityPoints,
		StartsAt:        ne.StartsAt.UTC(),
		Venue:           ne.Venue,
		MaxParticipants: ne.MaxParticipants,
		Status:          StatusScheduled,
		CreatedBy:       &memberID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if ne.EndsAt != nil {
		endsAt := ne.EndsAt.UTC()
		evt.EndsAt = &endsAt
	}
	return svc.repo.CreateEvent(ctx, evt)
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Event, error) {
	return svc.repo.QueryEvents(ctx, filter, ordering)
}

func (svc *service) GetByID(ctx context.Context, id string) (Event, error) {
	return svc.repo.GetEventByID(ctx, id)
}

// Update edits a scheduled or ongoing event and records each changed field
// in the edit history.
func (svc *service) Update(ctx context.Context, id, memberID string, ue UpdateEvent) (Event, error) {
	evt, err := svc.repo.GetEventByID(ctx, id)
	if err != nil {
		return Event{}, err
	}
	if evt.Status == StatusCompleted || evt.Status == StatusCancelled {
		return Event{}, ErrInvalidTransition
	}

	now := NowFunc().UTC()
	edits := make([]EditHistoryEntry, 0, 4)
	addEdit := func(field, oldVal, newVal string) {
		edits = append(edits, EditHistoryEntry{
			EventID:  evt.ID,
			EditedBy: &memberID,
			Field:    field,
			OldValue: oldVal,
			NewValue: newVal,
			EditedAt: now,
		})
	}

	if ue.Name != evt.Name {
		addEdit("name", evt.Name, ue.Name)
		evt.Name = ue.Name
	}
	if ue.Description != "" && ue.Description != evt.Description {
		addEdit("description", evt.Description, ue.Description)
		evt.Description = ue.Description
	}
	if ue.ActivityPoints != 0 && ue.ActivityPoints != evt.ActivityPoints {
		addEdit("activity_points", fmt.Sprintf("%d", evt.ActivityPoints), fmt.Sprintf("%d", ue.ActivityPoints))
		evt.ActivityPoints = ue.ActivityPoints
	}
	if ue.StartsAt != nil && !ue.StartsAt.UTC().Equal(evt.StartsAt) {
		addEdit("starts_at", evt.StartsAt.Format(time.RFC3339), ue.StartsAt.UTC().Format(time.RFC3339))
		startsAt := ue.StartsAt.UTC()
		evt.StartsAt = startsAt
	}
	if ue.EndsAt != nil {
		oldVal := ""
		if evt.EndsAt != nil {
			oldVal = evt.EndsAt.Format(time.RFC3339)
		}
		endsAt := ue.EndsAt.UTC()
		if evt.EndsAt == nil || !endsAt.Equal(*evt.EndsAt) {
			addEdit("ends_at", oldVal, endsAt.Format(time.RFC3339))
			evt.EndsAt = &endsAt
		}
	}
	if ue.Venue != "" && ue.Venue != evt.Venue {
		addEdit("venue", evt.Venue, ue.Venue)
		evt.Venue = ue.Venue
	}
	if ue.MaxParticipants != 0 && ue.MaxParticipants != evt.MaxParticipants {
		addEdit("max_participants", fmt.Sprintf("%d", evt.MaxParticipants), fmt.Sprintf("%d", ue.MaxParticipants))
		evt.MaxParticipants = ue.MaxParticipants
	}

	if len(edits) == 0 {
		return evt, nil
	}
	evt.LastEditedBy = &memberID
	evt.LastEditedAt = &now
	evt.UpdatedAt = now

	evt, err = svc.repo.UpdateEvent(ctx, evt)
	if err != nil {
		return Event{}, err
	}
	if err = svc.repo.AppendEditHistory(ctx, edits); err != nil {
		return Event{}, errors.Wrap(err, "recording edit history")
	}
	return evt, nil
}

func (svc *service) Start(ctx context.Context, id, memberID string) (Event, error) {
	evt, err := svc.repo.GetEventByID(ctx, id)
	if err != nil {
		return Event{}, err
	}
	if evt.Status != StatusScheduled {
		return Event{}, ErrInvalidTransition
	}
	now := NowFunc().UTC()
	evt.Status = StatusOngoing
	evt.StartedBy = &memberID
	evt.StartedAt = &now
	evt.UpdatedAt = now
	return svc.repo.UpdateEvent(ctx, evt)
}

func (svc *service) End(ctx context.Context, id, memberID string) (Event, error) {
	return svc.end(ctx, id, memberID)
}

func (svc *service) EndTx(ctx context.Context, tx core.DBExecutor, id, memberID string) (Event, error) {
	return svc.end(ctx, id, memberID, tx)
}

func (svc *service) end(ctx context.Context, id, memberID string, exec ...core.DBExecutor) (Event, error) {
	evt, err := svc.repo.GetEventByID(ctx, id, exec...)
	if err != nil {
		return Event{}, err
	}
	if evt.Status != StatusOngoing {
		return Event{}, ErrInvalidTransition
	}
	now := NowFunc().UTC()
	evt.Status = StatusCompleted
	evt.EndedBy = &memberID
	evt.EndedAt = &now
	evt.UpdatedAt = now
	return svc.repo.UpdateEvent(ctx, evt, exec...)
}

func (svc *service) Cancel(ctx context.Context, id, memberID string) (Event, error) {
	evt, err := svc.repo.GetEventByID(ctx, id)
	if err != nil {
		return Event{}, err
	}
	if evt.Status != StatusScheduled {
		return Event{}, ErrInvalidTransition
	}
	now := NowFunc().UTC()
	evt.Status = StatusCancelled
	evt.LastEditedBy = &memberID
	evt.LastEditedAt = &now
	evt.UpdatedAt = now
	return svc.repo.UpdateEvent(ctx, evt)
}

func (svc *service) Delete(ctx context.Context, id string) error {
	evt, err := svc.repo.GetEventByID(ctx, id)
	if err != nil {
		return err
	}
	if evt.Status != StatusScheduled && evt.Status != StatusCancelled {
		return ErrInvalidTransition
	}
	return svc.repo.DeleteEvent(ctx, id)
}

func (svc *service) EditHistory(ctx context.Context, eventID string) ([]EditHistoryEntry, error) {
	if _, err := svc.repo.GetEventByID(ctx, eventID); err != nil {
		return nil, err
	}
	return svc.repo.GetEditHistory(ctx, eventID)
}

// Register signs a student up for an event. Activity-points events are
// gated on the social score; all registrations respect the event capacity
// and the student's active registration cap. A previously cancelled
// registration is reactivated.
func (svc *service) Register(ctx context.Context, eventID, studentID string) (Registration, error) {
	evt, err := svc.repo.GetEventByID(ctx, eventID)
	if err != nil {
		return Registration{}, err
	}
	if !evt.AcceptsRegistrations(NowFunc().UTC()) {
		return Registration{}, ErrRegistrationClosed
	}

	std, err := svc.studentSvc.GetByID(ctx, studentID)
	if err != nil {
		return Registration{}, err
	}
	if evt.PointBearing() && !std.CanRegisterForPointEvent() {
		return Registration{}, ErrNotEligible
	}

	active, err := svc.repo.CountStudentActiveRegistrations(ctx, studentID)
	if err != nil {
		return Registration{}, errors.Wrap(err, "counting student registrations")
	}
	if std.MaxEventRegistrations > 0 && active >= std.MaxEventRegistrations {
		return Registration{}, ErrRegistrationLimit
	}

	if evt.MaxParticipants > 0 {
		count, err := svc.repo.CountActiveRegistrations(ctx, eventID)
		if err != nil {
			return Registration{}, errors.Wrap(err, "counting event registrations")
		}
		if count >= evt.MaxParticipants {
			return Registration{}, ErrEventFull
		}
	}

	// reactivate a cancelled registration rather than insert a duplicate
	if reg, err := svc.repo.GetRegistration(ctx, eventID, studentID); err == nil {
		if reg.Status == RegistrationRegistered {
			return Registration{}, ErrAlreadyRegistered
		}
		reg.Status = RegistrationRegistered
		reg.RegisteredAt = NowFunc().UTC()
		reg.CancelledAt = nil
		reg.CancellationReason = ""
		return svc.repo.UpdateRegistration(ctx, reg)
	} else if errors.Cause(err) != ErrRegistrationNotFound {
		return Registration{}, err
	}

	reg := Registration{
		EventID:      eventID,
		StudentID:    studentID,
		Status:       RegistrationRegistered,
		RegisteredAt: NowFunc().UTC(),
	}
	return svc.repo.CreateRegistration(ctx, reg)
}

func (svc *service) GetRegistration(ctx context.Context, eventID, studentID string) (Registration, error) {
	return svc.repo.GetRegistration(ctx, eventID, studentID)
}

func (svc *service) CancelRegistration(ctx context.Context, eventID, studentID, reason string) (Registration, error) {
	reg, err := svc.repo.GetRegistration(ctx, eventID, studentID)
	if err != nil {
		return Registration{}, err
	}
	if reg.Status != RegistrationRegistered {
		return Registration{}, ErrRegistrationNotFound
	}
	evt, err := svc.repo.GetEventByID(ctx, eventID)
	if err != nil {
		return Registration{}, err
	}
	if evt.Status != StatusScheduled {
		return Registration{}, ErrInvalidTransition
	}
	now := NowFunc().UTC()
	reg.Status = RegistrationCancelled
	reg.CancelledAt = &now
	reg.CancellationReason = core.CleanString(reason)
	return svc.repo.UpdateRegistration(ctx, reg)
}

func (svc *service) Registrations(ctx context.Context, eventID string) ([]Registration, error) {
	return svc.repo.QueryRegistrations(ctx, eventID)
}

func (svc *service) RegistrationsOf(ctx context.Context, studentID string) ([]Registration, error) {
	return svc.repo.QueryRegistrationsByStudent(ctx, studentID)
}
