package student

import (
	"context"
	"database/sql"
	"strconv"
	"testing"
	"time"

	"github.com/kahero/campushub/core"
	"github.com/kahero/campushub/core/scoring"
)

// fakeDB satisfies core.DB without touching a real database; the fake repo
// ignores executors entirely.
type (
	fakeDB struct{ core.DBExecutor }
	fakeTx struct{ core.DBExecutor }
)

func (fakeDB) BeginTx(context.Context, *sql.TxOptions) (core.DBTransactor, error) {
	return fakeTx{}, nil
}
func (fakeTx) Commit() error   { return nil }
func (fakeTx) Rollback() error { return nil }

type fakeRepo struct {
	Repository // panic on anything not faked below

	students  map[string]Student
	logs      []ScoreLogEntry
	pointsSum int
}

func newFakeRepo(students ...Student) *fakeRepo {
	repo := &fakeRepo{students: make(map[string]Student)}
	for _, std := range students {
		repo.students[std.ID] = std
	}
	return repo
}

func (r *fakeRepo) GetStudent(_ context.Context, filter GetFilter, _ ...core.DBExecutor) (Student, error) {
	if std, ok := r.students[filter.ID]; ok {
		return std, nil
	}
	return Student{}, ErrNotFound
}

func (r *fakeRepo) GetStudentForUpdate(_ context.Context, id string, _ core.DBExecutor) (Student, error) {
	if std, ok := r.students[id]; ok {
		return std, nil
	}
	return Student{}, ErrNotFound
}

func (r *fakeRepo) UpdateStudentScore(_ context.Context, id string, score core.Score, _ ...core.DBExecutor) error {
	std, ok := r.students[id]
	if !ok {
		return ErrNotFound
	}
	std.SocialScore = score
	r.students[id] = std
	return nil
}

func (r *fakeRepo) UpdateStudentActivityPoints(_ context.Context, id string, points int, _ ...core.DBExecutor) error {
	std, ok := r.students[id]
	if !ok {
		return ErrNotFound
	}
	std.TotalActivityPoints = points
	r.students[id] = std
	return nil
}

func (r *fakeRepo) AppendScoreLog(_ context.Context, entry ScoreLogEntry, _ ...core.DBExecutor) (ScoreLogEntry, error) {
	entry.ID = strconv.Itoa(len(r.logs) + 1)
	r.logs = append(r.logs, entry)
	return entry, nil
}

func (r *fakeRepo) GetScoreLogs(_ context.Context, studentID string, _ ...core.DBExecutor) ([]ScoreLogEntry, error) {
	logs := make([]ScoreLogEntry, 0, len(r.logs))
	for i := len(r.logs) - 1; i >= 0; i-- { // newest first
		if r.logs[i].StudentID == studentID {
			logs = append(logs, r.logs[i])
		}
	}
	return logs, nil
}

func (r *fakeRepo) GetLatestScoreLogForEvent(_ context.Context, studentID, eventID string, _ ...core.DBExecutor) (ScoreLogEntry, error) {
	for i := len(r.logs) - 1; i >= 0; i-- {
		entry := r.logs[i]
		if entry.StudentID == studentID && entry.EventID != nil && *entry.EventID == eventID {
			return entry, nil
		}
	}
	return ScoreLogEntry{}, ErrNoScoreLog
}

func (r *fakeRepo) SumActivityPoints(_ context.Context, _ string, _ ...core.DBExecutor) (int, error) {
	return r.pointsSum, nil
}

func newTestStudent(id string, score core.Score) Student {
	now := time.Now().UTC()
	std := Student{
		ID:          id,
		USN:         "1ab20cs001",
		FirstName:   "Asha",
		LastName:    "Rao",
		Email:       "asha@test.test",
		SocialScore: score,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	std.SetActive(true)
	return std
}

func TestServiceApplyScoreDelta(t *testing.T) {
	ctx := context.Background()
	eventID := "evt-1"

	tests := []struct {
		name          string
		startScore    core.Score
		delta         core.Score
		reason        scoring.Reason
		wantScore     core.Score
		wantEffective core.Score
	}{
		{
			name:          "absence penalty",
			startScore:    10000,
			delta:         scoring.AbsencePenalty,
			reason:        scoring.ReasonAbsentFromEvent,
			wantScore:     9500,
			wantEffective: -500,
		},
		{
			name:          "presence reward",
			startScore:    9500,
			delta:         scoring.PresenceReward,
			reason:        scoring.ReasonPresentAtNonActivityEvent,
			wantScore:     9750,
			wantEffective: 250,
		},
		{
			name:          "penalty clamped at floor",
			startScore:    300,
			delta:         scoring.AbsencePenalty,
			reason:        scoring.ReasonAbsentFromEvent,
			wantScore:     0,
			wantEffective: -300,
		},
		{
			name:          "penalty at floor is a no-op entry",
			startScore:    0,
			delta:         scoring.AbsencePenalty,
			reason:        scoring.ReasonAbsentFromEvent,
			wantScore:     0,
			wantEffective: 0,
		},
		{
			name:          "reward clamped at ceiling",
			startScore:    9900,
			delta:         scoring.PresenceReward,
			reason:        scoring.ReasonPresentAtNonActivityEvent,
			wantScore:     10000,
			wantEffective: 100,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeRepo(newTestStudent("std-1", tt.startScore))
			svc := NewService(fakeDB{}, repo, nil, &core.Config{})

			entry, err := svc.ApplyScoreDelta(ctx, "std-1", tt.delta, tt.reason, &eventID, "")
			if err != nil {
				t.Fatalf("ApplyScoreDelta() error = %v", err)
			}
			if entry.Delta != tt.wantEffective {
				t.Errorf("entry.Delta = %s, want %s", entry.Delta, tt.wantEffective)
			}
			if entry.NewScore != tt.wantScore {
				t.Errorf("entry.NewScore = %s, want %s", entry.NewScore, tt.wantScore)
			}
			if entry.Reason != tt.reason {
				t.Errorf("entry.Reason = %s, want %s", entry.Reason, tt.reason)
			}
			if got := repo.students["std-1"].SocialScore; got != tt.wantScore {
				t.Errorf("stored score = %s, want %s", got, tt.wantScore)
			}
			if len(repo.logs) != 1 {
				t.Errorf("ledger entries = %d, want 1", len(repo.logs))
			}
		})
	}
}

// A student at 100.00 missing an event then attending two non-activity
// events lands back at exactly 100.00, never above.
func TestServiceScoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo(newTestStudent("std-1", 10000))
	svc := NewService(fakeDB{}, repo, nil, &core.Config{})

	steps := []struct {
		delta  core.Score
		reason scoring.Reason
		want   core.Score
	}{
		{scoring.AbsencePenalty, scoring.ReasonAbsentFromEvent, 9500},
		{scoring.PresenceReward, scoring.ReasonPresentAtNonActivityEvent, 9750},
		{scoring.PresenceReward, scoring.ReasonPresentAtNonActivityEvent, 10000},
	}
	for i, step := range steps {
		entry, err := svc.ApplyScoreDelta(ctx, "std-1", step.delta, step.reason, nil, "")
		if err != nil {
			t.Fatalf("step %d: ApplyScoreDelta() error = %v", i, err)
		}
		if entry.NewScore != step.want {
			t.Fatalf("step %d: NewScore = %s, want %s", i, entry.NewScore, step.want)
		}
	}

	// ledger replays to the final score
	var replay core.Score = 10000
	for _, entry := range repo.logs {
		replay += entry.Delta
	}
	if replay != 10000 {
		t.Errorf("ledger replay = %s, want 100.00", replay)
	}

	history, err := svc.ScoreHistory(ctx, "std-1")
	if err != nil {
		t.Fatalf("ScoreHistory() error = %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("history length = %d, want 3", len(history))
	}
	// newest first
	if history[0].NewScore != 10000 || history[2].NewScore != 9500 {
		t.Errorf("history not newest first: %v", history)
	}
}

func TestServiceAdjustScore(t *testing.T) {
	ctx := context.Background()
	repo := newFakeRepo(newTestStudent("std-1", 9500))
	svc := NewService(fakeDB{}, repo, nil, &core.Config{})

	entry, err := svc.AdjustScore(ctx, "std-1", ManualAdjustment{NewScore: 8000, Remark: "disciplinary review"})
	if err != nil {
		t.Fatalf("AdjustScore() error = %v", err)
	}
	if entry.Delta != -1500 {
		t.Errorf("entry.Delta = %s, want -15.00", entry.Delta)
	}
	if entry.NewScore != 8000 {
		t.Errorf("entry.NewScore = %s, want 80.00", entry.NewScore)
	}
	if entry.Reason != scoring.ReasonManualAdjustment {
		t.Errorf("entry.Reason = %s, want %s", entry.Reason, scoring.ReasonManualAdjustment)
	}
	if entry.Remark != "disciplinary review" {
		t.Errorf("entry.Remark = %q", entry.Remark)
	}
}

func TestServiceReverseEventScore(t *testing.T) {
	ctx := context.Background()
	eventID := "evt-1"

	t.Run("reverses effective delta", func(t *testing.T) {
		repo := newFakeRepo(newTestStudent("std-1", 300))
		svc := NewService(fakeDB{}, repo, nil, &core.Config{}).(*service)

		// clamped at the floor: only -3.00 was effective
		if _, err := svc.ApplyScoreDelta(ctx, "std-1", scoring.AbsencePenalty, scoring.ReasonAbsentFromEvent, &eventID, ""); err != nil {
			t.Fatalf("ApplyScoreDelta() error = %v", err)
		}
		entry, reversed, err := svc.ReverseEventScoreTx(ctx, fakeTx{}, "std-1", eventID, "attendance corrected")
		if err != nil {
			t.Fatalf("ReverseEventScoreTx() error = %v", err)
		}
		if !reversed {
			t.Fatal("expected a reversal")
		}
		if entry.Delta != 300 {
			t.Errorf("entry.Delta = %s, want 3.00 (negated effective delta)", entry.Delta)
		}
		if got := repo.students["std-1"].SocialScore; got != 300 {
			t.Errorf("score = %s, want 3.00 (back to start)", got)
		}
	})

	t.Run("no-op without prior effect", func(t *testing.T) {
		repo := newFakeRepo(newTestStudent("std-1", 9700))
		svc := NewService(fakeDB{}, repo, nil, &core.Config{}).(*service)

		_, reversed, err := svc.ReverseEventScoreTx(ctx, fakeTx{}, "std-1", eventID, "")
		if err != nil {
			t.Fatalf("ReverseEventScoreTx() error = %v", err)
		}
		if reversed {
			t.Error("expected no reversal")
		}
		if len(repo.logs) != 0 {
			t.Errorf("ledger entries = %d, want 0", len(repo.logs))
		}
	})
}

func TestServiceCheckEligibility(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name         string
		score        core.Score
		wantEligible bool
		wantDeficit  core.Score
	}{
		{name: "at threshold", score: 9800, wantEligible: true},
		{name: "above threshold", score: 10000, wantEligible: true},
		{name: "just below threshold", score: 9799, wantEligible: false, wantDeficit: 1},
		{name: "far below threshold", score: 9000, wantEligible: false, wantDeficit: 800},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newFakeRepo(newTestStudent("std-1", tt.score))
			svc := NewService(fakeDB{}, repo, nil, &core.Config{})

			elig, err := svc.CheckEligibility(ctx, "std-1")
			if err != nil {
				t.Fatalf("CheckEligibility() error = %v", err)
			}
			if elig.Eligible != tt.wantEligible {
				t.Errorf("Eligible = %v, want %v", elig.Eligible, tt.wantEligible)
			}
			if elig.Deficit != tt.wantDeficit {
				t.Errorf("Deficit = %s, want %s", elig.Deficit, tt.wantDeficit)
			}
			if !tt.wantEligible && elig.Message == "" {
				t.Error("want an explanatory message for ineligible students")
			}
		})
	}
}

func TestServiceActivityPoints(t *testing.T) {
	ctx := context.Background()

	t.Run("credit and debit", func(t *testing.T) {
		repo := newFakeRepo(newTestStudent("std-1", 10000))
		svc := NewService(fakeDB{}, repo, nil, &core.Config{}).(*service)

		if err := svc.CreditActivityPointsTx(ctx, fakeTx{}, "std-1", 30); err != nil {
			t.Fatalf("CreditActivityPointsTx() error = %v", err)
		}
		if got := repo.students["std-1"].TotalActivityPoints; got != 30 {
			t.Errorf("total = %d, want 30", got)
		}
		if err := svc.CreditActivityPointsTx(ctx, fakeTx{}, "std-1", -50); err != nil {
			t.Fatalf("CreditActivityPointsTx() error = %v", err)
		}
		if got := repo.students["std-1"].TotalActivityPoints; got != 0 {
			t.Errorf("total = %d, want 0 (never negative)", got)
		}
	})

	t.Run("recompute from attendance", func(t *testing.T) {
		std := newTestStudent("std-1", 10000)
		std.TotalActivityPoints = 7 // stale cache
		repo := newFakeRepo(std)
		repo.pointsSum = 42
		svc := NewService(fakeDB{}, repo, nil, &core.Config{})

		total, err := svc.RecomputeActivityPoints(ctx, "std-1")
		if err != nil {
			t.Fatalf("RecomputeActivityPoints() error = %v", err)
		}
		if total != 42 {
			t.Errorf("total = %d, want 42", total)
		}
		if got := repo.students["std-1"].TotalActivityPoints; got != 42 {
			t.Errorf("stored total = %d, want 42", got)
		}
	})
}
