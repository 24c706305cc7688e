package event_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/kahero/campushub/core"
	"github.com/kahero/campushub/core/event"
	"github.com/kahero/campushub/core/student"
	dummydb "github.com/kahero/campushub/storage/database/dummy"
)

type testEnv struct {
	stdRepo    student.Repository
	studentSvc student.Service
	eventSvc   event.Service
}

func setup(t *testing.T) *testEnv {
	t.Helper()

	db, err := dummydb.Open()
	if err != nil {
		t.Fatal(err)
	}
	conn := dummydb.NewConn()
	stdRepo := dummydb.NewStudentRepository(db)
	studentSvc := student.NewService(conn, stdRepo, nil, &core.Config{})

	return &testEnv{
		stdRepo:    stdRepo,
		studentSvc: studentSvc,
		eventSvc:   event.NewService(dummydb.NewEventRepository(db), studentSvc),
	}
}

var studentSeq int

func (env *testEnv) newStudent(t *testing.T, ctx context.Context, score core.Score, maxRegistrations int) student.Student {
	t.Helper()
	studentSeq++
	std := student.Student{
		USN:                   fmt.Sprintf("1ab21cs%03d", studentSeq),
		FirstName:             "Asha",
		LastName:              "Rao",
		Email:                 fmt.Sprintf("asha.rao%d@test.com", studentSeq),
		SocialScore:           score,
		MaxEventRegistrations: maxRegistrations,
	}
	std.SetActive(true)
	std, err := env.stdRepo.CreateStudent(ctx, std)
	if err != nil {
		t.Fatal(err)
	}
	return std
}

func (env *testEnv) newEvent(t *testing.T, ctx context.Context, typ string, points, maxParticipants int) event.Event {
	t.Helper()
	evt, err := env.eventSvc.Create(ctx, "club-test", "mbr-test", event.NewEvent{
		Name:            "Tech Talk",
		Type:            typ,
		ActivityPoints:  points,
		StartsAt:        time.Now().Add(time.Hour),
		Venue:           "Auditorium",
		MaxParticipants: maxParticipants,
	})
	if err != nil {
		t.Fatal(err)
	}
	return evt
}

func TestServiceRegisterEligibilityGate(t *testing.T) {
	ctx := context.Background()
	env := setup(t)

	pointEvt := env.newEvent(t, ctx, event.TypeActivityPoints, 30, 0)
	normalEvt := env.newEvent(t, ctx, event.TypeNormal, 0, 0)

	tests := []struct {
		name    string
		score   core.Score
		eventID string
		wantErr error
	}{
		{name: "point event at threshold", score: 9800, eventID: pointEvt.ID},
		{name: "point event just below threshold", score: 9799, eventID: pointEvt.ID, wantErr: event.ErrNotEligible},
		{name: "point event far below threshold", score: 9000, eventID: pointEvt.ID, wantErr: event.ErrNotEligible},
		{name: "normal event has no gate", score: 9000, eventID: normalEvt.ID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			std := env.newStudent(t, ctx, tt.score, 0)

			_, err := env.eventSvc.Register(ctx, tt.eventID, std.ID)
			if errors.Cause(err) != tt.wantErr {
				t.Errorf("Register() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestServiceRegisterCapacity(t *testing.T) {
	ctx := context.Background()
	env := setup(t)

	evt := env.newEvent(t, ctx, event.TypeNormal, 0, 1)
	std1 := env.newStudent(t, ctx, 10000, 0)
	std2 := env.newStudent(t, ctx, 10000, 0)

	if _, err := env.eventSvc.Register(ctx, evt.ID, std1.ID); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if _, err := env.eventSvc.Register(ctx, evt.ID, std2.ID); errors.Cause(err) != event.ErrEventFull {
		t.Errorf("Register() error = %v, want %v", err, event.ErrEventFull)
	}

	// a cancelled registration frees the slot
	if _, err := env.eventSvc.CancelRegistration(ctx, evt.ID, std1.ID, "clash"); err != nil {
		t.Fatalf("CancelRegistration() error = %v", err)
	}
	if _, err := env.eventSvc.Register(ctx, evt.ID, std2.ID); err != nil {
		t.Errorf("Register() error = %v", err)
	}
}

func TestServiceRegisterLimit(t *testing.T) {
	ctx := context.Background()
	env := setup(t)

	std := env.newStudent(t, ctx, 10000, 1)
	evt1 := env.newEvent(t, ctx, event.TypeNormal, 0, 0)
	evt2 := env.newEvent(t, ctx, event.TypeNormal, 0, 0)

	if _, err := env.eventSvc.Register(ctx, evt1.ID, std.ID); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if _, err := env.eventSvc.Register(ctx, evt2.ID, std.ID); errors.Cause(err) != event.ErrRegistrationLimit {
		t.Errorf("Register() error = %v, want %v", err, event.ErrRegistrationLimit)
	}

	if _, err := env.eventSvc.CancelRegistration(ctx, evt1.ID, std.ID, ""); err != nil {
		t.Fatalf("CancelRegistration() error = %v", err)
	}
	if _, err := env.eventSvc.Register(ctx, evt2.ID, std.ID); err != nil {
		t.Errorf("Register() error = %v", err)
	}
}

func TestServiceRegisterDuplicateAndReactivate(t *testing.T) {
	ctx := context.Background()
	env := setup(t)

	evt := env.newEvent(t, ctx, event.TypeNormal, 0, 0)
	std := env.newStudent(t, ctx, 10000, 0)

	reg, err := env.eventSvc.Register(ctx, evt.ID, std.ID)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if _, err = env.eventSvc.Register(ctx, evt.ID, std.ID); errors.Cause(err) != event.ErrAlreadyRegistered {
		t.Errorf("Register() error = %v, want %v", err, event.ErrAlreadyRegistered)
	}

	cancelled, err := env.eventSvc.CancelRegistration(ctx, evt.ID, std.ID, "clash")
	if err != nil {
		t.Fatalf("CancelRegistration() error = %v", err)
	}
	if cancelled.Status != event.RegistrationCancelled {
		t.Errorf("Status = %s, want %s", cancelled.Status, event.RegistrationCancelled)
	}
	if cancelled.CancelledAt == nil || cancelled.CancellationReason != "clash" {
		t.Errorf("cancellation not recorded: %+v", cancelled)
	}

	// re-registering reactivates the row instead of inserting a duplicate
	reactivated, err := env.eventSvc.Register(ctx, evt.ID, std.ID)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if reactivated.ID != reg.ID {
		t.Errorf("reactivated ID = %s, want %s", reactivated.ID, reg.ID)
	}
	if reactivated.Status != event.RegistrationRegistered || reactivated.CancelledAt != nil {
		t.Errorf("reactivation incomplete: %+v", reactivated)
	}
}

func TestServiceLifecycle(t *testing.T) {
	ctx := context.Background()
	env := setup(t)

	evt := env.newEvent(t, ctx, event.TypeNormal, 0, 0)
	std := env.newStudent(t, ctx, 10000, 0)

	evt, err := env.eventSvc.Start(ctx, evt.ID, "mbr-test")
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if evt.Status != event.StatusOngoing || evt.StartedAt == nil {
		t.Errorf("Start() event = %+v", evt)
	}
	if _, err = env.eventSvc.Start(ctx, evt.ID, "mbr-test"); errors.Cause(err) != event.ErrInvalidTransition {
		t.Errorf("Start() twice error = %v, want %v", err, event.ErrInvalidTransition)
	}

	// registration closes once the event is underway
	if _, err = env.eventSvc.Register(ctx, evt.ID, std.ID); errors.Cause(err) != event.ErrRegistrationClosed {
		t.Errorf("Register() error = %v, want %v", err, event.ErrRegistrationClosed)
	}

	if _, err = env.eventSvc.Cancel(ctx, evt.ID, "mbr-test"); errors.Cause(err) != event.ErrInvalidTransition {
		t.Errorf("Cancel() ongoing error = %v, want %v", err, event.ErrInvalidTransition)
	}

	evt, err = env.eventSvc.End(ctx, evt.ID, "mbr-test")
	if err != nil {
		t.Fatalf("End() error = %v", err)
	}
	if evt.Status != event.StatusCompleted || evt.EndedAt == nil {
		t.Errorf("End() event = %+v", evt)
	}

	if err = env.eventSvc.Delete(ctx, evt.ID); errors.Cause(err) != event.ErrInvalidTransition {
		t.Errorf("Delete() completed error = %v, want %v", err, event.ErrInvalidTransition)
	}
}

func TestServiceUpdateEditHistory(t *testing.T) {
	ctx := context.Background()
	env := setup(t)

	evt := env.newEvent(t, ctx, event.TypeNormal, 0, 0)

	updated, err := env.eventSvc.Update(ctx, evt.ID, "mbr-edit", event.UpdateEvent{
		Name:  "Tech Talk v2",
		Venue: "Seminar Hall",
	})
	if err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	if updated.Name != "Tech Talk v2" || updated.Venue != "Seminar Hall" {
		t.Errorf("Update() event = %+v", updated)
	}
	if updated.LastEditedBy == nil || *updated.LastEditedBy != "mbr-edit" {
		t.Errorf("LastEditedBy = %v, want mbr-edit", updated.LastEditedBy)
	}

	entries, err := env.eventSvc.EditHistory(ctx, evt.ID)
	if err != nil {
		t.Fatalf("EditHistory() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("EditHistory() entries = %d, want 2", len(entries))
	}
	byField := make(map[string]event.EditHistoryEntry, len(entries))
	for _, entry := range entries {
		byField[entry.Field] = entry
	}
	if entry := byField["name"]; entry.OldValue != "Tech Talk" || entry.NewValue != "Tech Talk v2" {
		t.Errorf("name edit = %+v", entry)
	}
	if entry := byField["venue"]; entry.OldValue != "Auditorium" || entry.NewValue != "Seminar Hall" {
		t.Errorf("venue edit = %+v", entry)
	}

	// identical update records nothing
	if _, err = env.eventSvc.Update(ctx, evt.ID, "mbr-edit", event.UpdateEvent{Name: "Tech Talk v2"}); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	entries, _ = env.eventSvc.EditHistory(ctx, evt.ID)
	if len(entries) != 2 {
		t.Errorf("EditHistory() entries = %d, want 2 (no-op update)", len(entries))
	}

	// completed events are immutable
	if _, err = env.eventSvc.Start(ctx, evt.ID, "mbr-test"); err != nil {
		t.Fatal(err)
	}
	if _, err = env.eventSvc.End(ctx, evt.ID, "mbr-test"); err != nil {
		t.Fatal(err)
	}
	if _, err = env.eventSvc.Update(ctx, evt.ID, "mbr-edit", event.UpdateEvent{Name: "Late edit"}); errors.Cause(err) != event.ErrInvalidTransition {
		t.Errorf("Update() completed error = %v, want %v", err, event.ErrInvalidTransition)
	}
}
