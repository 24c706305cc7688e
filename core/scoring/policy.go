// Package scoring holds the social score policy: the pure mapping from an
// attendance outcome to a score delta and its ledger reason code.
package scoring

import "github.com/kahero/campushub/core"

// Reason codes recorded on score ledger entries.
type Reason string

const (
	ReasonAbsentFromEvent           Reason = "ABSENT_FROM_EVENT"
	ReasonPresentAtNonActivityEvent Reason = "PRESENT_AT_NON_ACTIVITY_EVENT"
	ReasonManualAdjustment          Reason = "MANUAL_ADJUSTMENT"
)

// Policy deltas. An absence is penalised for any event; presence is only
// rewarded at non-activity events (activity events pay out in activity
// points instead, never in social score).
const (
	AbsencePenalty core.Score = -500 // -5.00%
	PresenceReward core.Score = 250  // +2.50%
)

type Outcome struct {
	Delta  core.Score
	Reason Reason
}

// Decide maps an attendance outcome to a social score outcome.
// The second return value reports whether the score is affected at all;
// a present mark at a point-bearing event has no social score effect.
func Decide(present, pointBearing bool) (Outcome, bool) {
	if !present {
		return Outcome{Delta: AbsencePenalty, Reason: ReasonAbsentFromEvent}, true
	}
	if !pointBearing {
		return Outcome{Delta: PresenceReward, Reason: ReasonPresentAtNonActivityEvent}, true
	}
	return Outcome{}, false
}
