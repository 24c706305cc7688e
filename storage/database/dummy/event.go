package dummydb

import (
	"context"

	"github.com/kahero/campushub/core"
	"github.com/kahero/campushub/core/event"
)

type eventRepository struct {
	db *DB
}

var _ event.Repository = (*eventRepository)(nil) // interface compliance check

func NewEventRepository(db *DB) event.Repository {
	return &eventRepository{db: db}
}

func (repo *eventRepository) queryEvents() []event.Event {
	events := make([]event.Event, 0, len(repo.db.events.table))
	for _, evt := range repo.db.events.table {
		events = append(events, *evt)
	}
	return events
}

func (repo *eventRepository) CreateEvent(_ context.Context, evt event.Event, _ ...core.DBExecutor) (event.Event, error) {
	repo.db.events.Lock()
	defer repo.db.events.Unlock()

	evt.ID = newID()
	repo.db.events.table[evt.ID] = &evt
	return evt, nil
}

func (repo *eventRepository) GetEventByID(_ context.Context, id string, _ ...core.DBExecutor) (event.Event, error) {
	repo.db.events.RLock()
	defer repo.db.events.RUnlock()

	if evt, ok := repo.db.events.table[id]; ok {
		return *evt, nil
	}
	return event.Event{}, event.ErrNotFound
}

func (repo *eventRepository) QueryEvents(_ context.Context, filter *event.QueryFilter, _ []core.DBOrdering, _ ...core.DBExecutor) ([]event.Event, error) {
	repo.db.events.RLock()
	defer repo.db.events.RUnlock()

	events := repo.queryEvents()
	if filter == nil {
		return events, nil
	}

	if filter.Search != "" {
		var filtered []event.Event
		for _, evt := range events {
			if containsFold(evt.Name, filter.Search) {
				filtered = append(filtered, evt)
			}
		}
		events = filtered
	}
	if events != nil && filter.ClubID != "" {
		var filtered []event.Event
		for _, evt := range events {
			if evt.ClubID == filter.ClubID {
				filtered = append(filtered, evt)
			}
		}
		events = filtered
	}
	if events != nil && filter.Type != "" {
		var filtered []event.Event
		for _, evt := range events {
			if evt.Type == filter.Type {
				filtered = append(filtered, evt)
			}
		}
		events = filtered
	}
	if events != nil && filter.Status != "" {
		var filtered []event.Event
		for _, evt := range events {
			if evt.Status == filter.Status {
				filtered = append(filtered, evt)
			}
		}
		events = filtered
	}
	if events != nil && !filter.DateFrom.IsZero() {
		var filtered []event.Event
		from := filter.DateFrom.UTC()
		for _, evt := range events {
			if !evt.StartsAt.Before(from) {
				filtered = append(filtered, evt)
			}
		}
		events = filtered
	}
	if events != nil && !filter.DateTo.IsZero() {
		var filtered []event.Event
		to := filter.DateTo.UTC()
		for _, evt := range events {
			if !evt.StartsAt.After(to) {
				filtered = append(filtered, evt)
			}
		}
		events = filtered
	}
	return events, nil
}

func (repo *eventRepository) UpdateEvent(_ context.Context, evt event.Event, _ ...core.DBExecutor) (event.Event, error) {
	repo.db.events.Lock()
	defer repo.db.events.Unlock()

	if _, ok := repo.db.events.table[evt.ID]; !ok {
		return event.Event{}, event.ErrNotFound
	}
	repo.db.events.table[evt.ID] = &evt
	return evt, nil
}

func (repo *eventRepository) DeleteEvent(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.events.Lock()
	defer repo.db.events.Unlock()
	delete(repo.db.events.table, id)
	return nil
}

func (repo *eventRepository) AppendEditHistory(_ context.Context, entries []event.EditHistoryEntry, _ ...core.DBExecutor) error {
	repo.db.editHistory.Lock()
	defer repo.db.editHistory.Unlock()

	for _, entry := range entries {
		entry.ID = newID()
		repo.db.editHistory.entries = append(repo.db.editHistory.entries, entry)
	}
	return nil
}

func (repo *eventRepository) GetEditHistory(_ context.Context, eventID string, _ ...core.DBExecutor) ([]event.EditHistoryEntry, error) {
	repo.db.editHistory.RLock()
	defer repo.db.editHistory.RUnlock()

	// newest first
	var entries []event.EditHistoryEntry
	for i := len(repo.db.editHistory.entries) - 1; i >= 0; i-- {
		if repo.db.editHistory.entries[i].EventID == eventID {
			entries = append(entries, repo.db.editHistory.entries[i])
		}
	}
	return entries, nil
}

func (repo *eventRepository) CreateRegistration(_ context.Context, reg event.Registration, _ ...core.DBExecutor) (event.Registration, error) {
	repo.db.registrations.Lock()
	defer repo.db.registrations.Unlock()

	for _, existing := range repo.db.registrations.table {
		if existing.EventID == reg.EventID && existing.StudentID == reg.StudentID {
			return event.Registration{}, event.ErrAlreadyRegistered
		}
	}

	reg.ID = newID()
	repo.db.registrations.table[reg.ID] = &reg
	return reg, nil
}

func (repo *eventRepository) GetRegistration(_ context.Context, eventID, studentID string, _ ...core.DBExecutor) (event.Registration, error) {
	repo.db.registrations.RLock()
	defer repo.db.registrations.RUnlock()

	for _, reg := range repo.db.registrations.table {
		if reg.EventID == eventID && reg.StudentID == studentID {
			return *reg, nil
		}
	}
	return event.Registration{}, event.ErrRegistrationNotFound
}

func (repo *eventRepository) UpdateRegistration(_ context.Context, reg event.Registration, _ ...core.DBExecutor) (event.Registration, error) {
	repo.db.registrations.Lock()
	defer repo.db.registrations.Unlock()

	if _, ok := repo.db.registrations.table[reg.ID]; !ok {
		return event.Registration{}, event.ErrRegistrationNotFound
	}
	repo.db.registrations.table[reg.ID] = &reg
	return reg, nil
}

func (repo *eventRepository) QueryRegistrations(_ context.Context, eventID string, _ ...core.DBExecutor) ([]event.Registration, error) {
	repo.db.registrations.RLock()
	defer repo.db.registrations.RUnlock()

	var regs []event.Registration
	for _, reg := range repo.db.registrations.table {
		if reg.EventID == eventID {
			regs = append(regs, *reg)
		}
	}
	return regs, nil
}

func (repo *eventRepository) QueryRegistrationsByStudent(_ context.Context, studentID string, _ ...core.DBExecutor) ([]event.Registration, error) {
	repo.db.registrations.RLock()
	defer repo.db.registrations.RUnlock()

	var regs []event.Registration
	for _, reg := range repo.db.registrations.table {
		if reg.StudentID == studentID {
			regs = append(regs, *reg)
		}
	}
	return regs, nil
}

func (repo *eventRepository) CountActiveRegistrations(_ context.Context, eventID string, _ ...core.DBExecutor) (int, error) {
	repo.db.registrations.RLock()
	defer repo.db.registrations.RUnlock()

	var count int
	for _, reg := range repo.db.registrations.table {
		if reg.EventID == eventID && reg.Status == event.RegistrationRegistered {
			count++
		}
	}
	return count, nil
}

func (repo *eventRepository) CountStudentActiveRegistrations(_ context.Context, studentID string, _ ...core.DBExecutor) (int, error) {
	repo.db.events.RLock()
	defer repo.db.events.RUnlock()
	repo.db.registrations.RLock()
	defer repo.db.registrations.RUnlock()

	var count int
	for _, reg := range repo.db.registrations.table {
		if reg.StudentID != studentID || reg.Status != event.RegistrationRegistered {
			continue
		}
		evt, ok := repo.db.events.table[reg.EventID]
		if !ok {
			continue
		}
		if evt.Status != event.StatusCompleted && evt.Status != event.StatusCancelled {
			count++
		}
	}
	return count, nil
}
