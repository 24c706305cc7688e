package scoring

import (
	"testing"

	"github.com/kahero/campushub/core"
)

func TestDecide(t *testing.T) {
	tests := []struct {
		name         string
		present      bool
		pointBearing bool
		wantAffected bool
		wantDelta    core.Score
		wantReason   Reason
	}{
		{
			name:         "absent from normal event",
			present:      false,
			pointBearing: false,
			wantAffected: true,
			wantDelta:    -500,
			wantReason:   ReasonAbsentFromEvent,
		},
		{
			name:         "absent from activity event",
			present:      false,
			pointBearing: true,
			wantAffected: true,
			wantDelta:    -500,
			wantReason:   ReasonAbsentFromEvent,
		},
		{
			name:         "present at normal event",
			present:      true,
			pointBearing: false,
			wantAffected: true,
			wantDelta:    250,
			wantReason:   ReasonPresentAtNonActivityEvent,
		},
		{
			name:         "present at activity event pays points only",
			present:      true,
			pointBearing: true,
			wantAffected: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outcome, affected := Decide(tt.present, tt.pointBearing)
			if affected != tt.wantAffected {
				t.Fatalf("Decide() affected = %v, want %v", affected, tt.wantAffected)
			}
			if !affected {
				return
			}
			if outcome.Delta != tt.wantDelta {
				t.Errorf("Decide() delta = %s, want %s", outcome.Delta, tt.wantDelta)
			}
			if outcome.Reason != tt.wantReason {
				t.Errorf("Decide() reason = %s, want %s", outcome.Reason, tt.wantReason)
			}
		})
	}
}
