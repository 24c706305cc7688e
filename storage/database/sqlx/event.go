package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/kahero/campushub/core"
	"github.com/kahero/campushub/core/event"
)

const (
	eventColumns = `id, club_id, name, description, type, activity_points, starts_at, ends_at,
		venue, max_participants, status, created_by, last_edited_by, last_edited_at,
		started_by, started_at, ended_by, ended_at, created_at, updated_at`
	registrationColumns = `id, event_id, student_id, status, registered_at, cancelled_at,
		cancellation_reason`
	editHistoryColumns = `id, event_id, edited_by, field, old_value, new_value, edited_at`
)

type eventRow struct {
	ID              string         `db:"id"`
	ClubID          string         `db:"club_id"`
	Name            string         `db:"name"`
	Description     string         `db:"description"`
	Type            string         `db:"type"`
	ActivityPoints  int            `db:"activity_points"`
	StartsAt        time.Time      `db:"starts_at"`
	EndsAt          sql.NullTime   `db:"ends_at"`
	Venue           string         `db:"venue"`
	MaxParticipants int            `db:"max_participants"`
	Status          string         `db:"status"`
	CreatedBy       sql.NullString `db:"created_by"`
	LastEditedBy    sql.NullString `db:"last_edited_by"`
	LastEditedAt    sql.NullTime   `db:"last_edited_at"`
	StartedBy       sql.NullString `db:"started_by"`
	StartedAt       sql.NullTime   `db:"started_at"`
	EndedBy         sql.NullString `db:"ended_by"`
	EndedAt         sql.NullTime   `db:"ended_at"`
	CreatedAt       time.Time      `db:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

func (r eventRow) toModel() event.Event {
	evt := event.Event{
		ID:              r.ID,
		ClubID:          r.ClubID,
		Name:            r.Name,
		Description:     r.Description,
		Type:            r.Type,
		ActivityPoints:  r.ActivityPoints,
		StartsAt:        r.StartsAt,
		Venue:           r.Venue,
		MaxParticipants: r.MaxParticipants,
		Status:          r.Status,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
	if r.EndsAt.Valid {
		evt.EndsAt = &r.EndsAt.Time
	}
	if r.CreatedBy.Valid {
		evt.CreatedBy = &r.CreatedBy.String
	}
	if r.LastEditedBy.Valid {
		evt.LastEditedBy = &r.LastEditedBy.String
	}
	if r.LastEditedAt.Valid {
		evt.LastEditedAt = &r.LastEditedAt.Time
	}
	if r.StartedBy.Valid {
		evt.StartedBy = &r.StartedBy.String
	}
	if r.StartedAt.Valid {
		evt.StartedAt = &r.StartedAt.Time
	}
	if r.EndedBy.Valid {
		evt.EndedBy = &r.EndedBy.String
	}
	if r.EndedAt.Valid {
		evt.EndedAt = &r.EndedAt.Time
	}
	return evt
}

type registrationRow struct {
	ID                 string       `db:"id"`
	EventID            string       `db:"event_id"`
	StudentID          string       `db:"student_id"`
	Status             string       `db:"status"`
	RegisteredAt       time.Time    `db:"registered_at"`
	CancelledAt        sql.NullTime `db:"cancelled_at"`
	CancellationReason string       `db:"cancellation_reason"`
}

func (r registrationRow) toModel() event.Registration {
	reg := event.Registration{
		ID:                 r.ID,
		EventID:            r.EventID,
		StudentID:          r.StudentID,
		Status:             r.Status,
		RegisteredAt:       r.RegisteredAt,
		CancellationReason: r.CancellationReason,
	}
	if r.CancelledAt.Valid {
		reg.CancelledAt = &r.CancelledAt.Time
	}
	return reg
}

type editHistoryRow struct {
	ID       string         `db:"id"`
	EventID  string         `db:"event_id"`
	EditedBy sql.NullString `db:"edited_by"`
	Field    string         `db:"field"`
	OldValue string         `db:"old_value"`
	NewValue string         `db:"new_value"`
	EditedAt time.Time      `db:"edited_at"`
}

func (r editHistoryRow) toModel() event.EditHistoryEntry {
	entry := event.EditHistoryEntry{
		ID:       r.ID,
		EventID:  r.EventID,
		Field:    r.Field,
		OldValue: r.OldValue,
		NewValue: r.NewValue,
		EditedAt: r.EditedAt,
	}
	if r.EditedBy.Valid {
		entry.EditedBy = &r.EditedBy.String
	}
	return entry
}

type eventRepository struct {
	execHolder
}

var _ event.Repository = (*eventRepository)(nil) // interface compliance check

func NewEventRepository(exec core.DBExecutor) event.Repository {
	return &eventRepository{execHolder{exec: exec}}
}

func (repo eventRepository) CreateEvent(ctx context.Context, evt event.Event, exec ...core.DBExecutor) (event.Event, error) {
	evt.ID = uuid.New().String()
	q := `INSERT INTO event (id, club_id, name, description, type, activity_points, starts_at,
			ends_at, venue, max_participants, status, created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := execCtx(ctx, repo.getExec(exec), q,
		evt.ID, evt.ClubID, evt.Name, evt.Description, evt.Type, evt.ActivityPoints, evt.StartsAt.UTC(),
		evt.EndsAt, evt.Venue, evt.MaxParticipants, evt.Status, evt.CreatedBy,
		evt.CreatedAt.UTC(), evt.UpdatedAt.UTC(),
	)
	if err != nil {
		return event.Event{}, errors.Wrap(err, "inserting event")
	}
	return evt, nil
}

func (repo eventRepository) GetEventByID(ctx context.Context, id string, exec ...core.DBExecutor) (event.Event, error) {
	if _, err := uuid.Parse(id); err != nil {
		return event.Event{}, event.ErrNotFound
	}
	var rows []eventRow
	q := `SELECT ` + eventColumns + ` FROM event WHERE id = ? LIMIT 1`
	if err := selectCtx(ctx, repo.getExec(exec), &rows, q, id); err != nil {
		return event.Event{}, errors.Wrap(err, "finding event")
	}
	if len(rows) == 0 {
		return event.Event{}, event.ErrNotFound
	}
	return rows[0].toModel(), nil
}

func (repo eventRepository) QueryEvents(ctx context.Context, filter *event.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]event.Event, error) {
	var where whereClause
	if filter != nil {
		if filter.Search != "" {
			where.add(`name ILIKE ?`, "%"+filter.Search+"%")
		}
		if filter.ClubID != "" {
			where.add(`club_id = ?`, filter.ClubID)
		}
		if filter.Type != "" {
			where.add(`type = ?`, filter.Type)
		}
		if filter.Status != "" {
			where.add(`status = ?`, filter.Status)
		}
		if !filter.DateFrom.IsZero() {
			where.add(`starts_at >= ?`, filter.DateFrom.UTC())
		}
		if !filter.DateTo.IsZero() {
			where.add(`starts_at <= ?`, filter.DateTo.UTC())
		}
	}

	var rows []eventRow
	q := `SELECT ` + eventColumns + ` FROM event` + where.String() + orderBy(ordering, "starts_at DESC")
	if err := selectCtx(ctx, repo.getExec(exec), &rows, q, where.args...); err != nil {
		return nil, errors.Wrap(err, "querying events")
	}
	events := make([]event.Event, 0, len(rows))
	for _, row := range rows {
		events = append(events, row.toModel())
	}
	return events, nil
}

// UpdateEvent saves the whole row; the service loads the event before
// mutating it, so every column is authoritative here.
func (repo eventRepository) UpdateEvent(ctx context.Context, evt event.Event, exec ...core.DBExecutor) (event.Event, error) {
	q := `UPDATE event
		SET name = ?, description = ?, activity_points = ?, starts_at = ?, ends_at = ?, venue = ?,
			max_participants = ?, status = ?, last_edited_by = ?, last_edited_at = ?,
			started_by = ?, started_at = ?, ended_by = ?, ended_at = ?, updated_at = ?
		WHERE id = ?`
	affected, err := execCtx(ctx, repo.getExec(exec), q,
		evt.Name, evt.Description, evt.ActivityPoints, evt.StartsAt.UTC(), evt.EndsAt, evt.Venue,
		evt.MaxParticipants, evt.Status, evt.LastEditedBy, evt.LastEditedAt,
		evt.StartedBy, evt.StartedAt, evt.EndedBy, evt.EndedAt, evt.UpdatedAt.UTC(),
		evt.ID,
	)
	if err != nil {
		return event.Event{}, errors.Wrap(err, "updating event")
	}
	if affected == 0 {
		return event.Event{}, event.ErrNotFound
	}
	return evt, nil
}

func (repo eventRepository) DeleteEvent(ctx context.Context, id string, exec ...core.DBExecutor) error {
	_, err := execCtx(ctx, repo.getExec(exec), `DELETE FROM event WHERE id = ?`, id)
	return errors.Wrap(err, "deleting event")
}

func (repo eventRepository) AppendEditHistory(ctx context.Context, entries []event.EditHistoryEntry, exec ...core.DBExecutor) error {
	for _, entry := range entries {
		q := `INSERT INTO event_edit_history (id, event_id, edited_by, field, old_value, new_value, edited_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`
		_, err := execCtx(ctx, repo.getExec(exec), q,
			uuid.New().String(), entry.EventID, entry.EditedBy, entry.Field,
			entry.OldValue, entry.NewValue, entry.EditedAt.UTC(),
		)
		if err != nil {
			return errors.Wrap(err, "inserting edit history")
		}
	}
	return nil
}

func (repo eventRepository) GetEditHistory(ctx context.Context, eventID string, exec ...core.DBExecutor) ([]event.EditHistoryEntry, error) {
	var rows []editHistoryRow
	q := `SELECT ` + editHistoryColumns + ` FROM event_edit_history WHERE event_id = ? ORDER BY edited_at DESC`
	if err := selectCtx(ctx, repo.getExec(exec), &rows, q, eventID); err != nil {
		return nil, errors.Wrap(err, "querying edit history")
	}
	entries := make([]event.EditHistoryEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, row.toModel())
	}
	return entries, nil
}

func (repo eventRepository) CreateRegistration(ctx context.Context, reg event.Registration, exec ...core.DBExecutor) (event.Registration, error) {
	reg.ID = uuid.New().String()
	q := `INSERT INTO event_registration (id, event_id, student_id, status, registered_at)
		VALUES (?, ?, ?, ?, ?)`
	_, err := execCtx(ctx, repo.getExec(exec), q,
		reg.ID, reg.EventID, reg.StudentID, reg.Status, reg.RegisteredAt.UTC(),
	)
	if err != nil {
		if constraint, ok := violatedConstraint(err); ok && constraint == "event_registration_key" {
			return event.Registration{}, event.ErrAlreadyRegistered
		}
		return event.Registration{}, errors.Wrap(err, "inserting registration")
	}
	return reg, nil
}

func (repo eventRepository) GetRegistration(ctx context.Context, eventID, studentID string, exec ...core.DBExecutor) (event.Registration, error) {
	var rows []registrationRow
	q := `SELECT ` + registrationColumns + ` FROM event_registration
		WHERE event_id = ? AND student_id = ? LIMIT 1`
	if err := selectCtx(ctx, repo.getExec(exec), &rows, q, eventID, studentID); err != nil {
		return event.Registration{}, errors.Wrap(err, "finding registration")
	}
	if len(rows) == 0 {
		return event.Registration{}, event.ErrRegistrationNotFound
	}
	return rows[0].toModel(), nil
}

func (repo eventRepository) UpdateRegistration(ctx context.Context, reg event.Registration, exec ...core.DBExecutor) (event.Registration, error) {
	q := `UPDATE event_registration
		SET status = ?, cancelled_at = ?, cancellation_reason = ?
		WHERE id = ?`
	affected, err := execCtx(ctx, repo.getExec(exec), q,
		reg.Status, reg.CancelledAt, reg.CancellationReason, reg.ID,
	)
	if err != nil {
		return event.Registration{}, errors.Wrap(err, "updating registration")
	}
	if affected == 0 {
		return event.Registration{}, event.ErrRegistrationNotFound
	}
	return reg, nil
}

func (repo eventRepository) QueryRegistrations(ctx context.Context, eventID string, exec ...core.DBExecutor) ([]event.Registration, error) {
	return repo.queryRegistrations(ctx, exec, ` WHERE event_id = ?`, eventID)
}

func (repo eventRepository) QueryRegistrationsByStudent(ctx context.Context, studentID string, exec ...core.DBExecutor) ([]event.Registration, error) {
	return repo.queryRegistrations(ctx, exec, ` WHERE student_id = ?`, studentID)
}

func (repo eventRepository) queryRegistrations(ctx context.Context, exec []core.DBExecutor, where string, args ...interface{}) ([]event.Registration, error) {
	var rows []registrationRow
	q := `SELECT ` + registrationColumns + ` FROM event_registration` + where + ` ORDER BY registered_at`
	if err := selectCtx(ctx, repo.getExec(exec), &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying registrations")
	}
	regs := make([]event.Registration, 0, len(rows))
	for _, row := range rows {
		regs = append(regs, row.toModel())
	}
	return regs, nil
}

func (repo eventRepository) CountActiveRegistrations(ctx context.Context, eventID string, exec ...core.DBExecutor) (int, error) {
	q := `SELECT COUNT(*) FROM event_registration WHERE event_id = ? AND status = ?`
	count, err := countCtx(ctx, repo.getExec(exec), q, eventID, event.RegistrationRegistered)
	return count, errors.Wrap(err, "counting registrations")
}

func (repo eventRepository) CountStudentActiveRegistrations(ctx context.Context, studentID string, exec ...core.DBExecutor) (int, error) {
	q := `SELECT COUNT(*) FROM event_registration r
		JOIN event e ON e.id = r.event_id
		WHERE r.student_id = ? AND r.status = ? AND e.status NOT IN (?, ?)`
	count, err := countCtx(ctx, repo.getExec(exec), q,
		studentID, event.RegistrationRegistered, event.StatusCompleted, event.StatusCancelled)
	return count, errors.Wrap(err, "counting student registrations")
}
