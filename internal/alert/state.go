package alert

import (
	"sync"
	"time"

	"github.com/smartsensor/gateway/internal/model"
)

// ruleState is the per-(device_id, rule_id) sliding-window state spec.md
// §4.7 requires: whatever the predicate needs to remember between
// frames, plus the open Alert if one is currently firing.
type ruleState struct {
	mu sync.Mutex

	alert *model.Alert

	// falseSinceSet/falseSince track how long the predicate has been
	// continuously false, for hold-down resolution.
	falseSinceSet bool
	falseSince    time.Time

	hasLast       bool
	lastValue     float64
	lastTimestamp time.Time

	history []model.Reading // bounded ring for PredicateAnomaly

	lastDispatchAt time.Time

	// missingTimer implements missing_data's timer wheel entry: reset on
	// every frame, firing if none arrives within ForDuration.
	missingTimer *time.Timer
}

func newRuleState() *ruleState {
	return &ruleState{}
}

func (s *ruleState) appendHistory(r model.Reading) {
	s.history = append(s.history, r)
	if len(s.history) > historyWindow {
		s.history = s.history[len(s.history)-historyWindow:]
	}
}

func (s *ruleState) stopMissingTimer() {
	if s.missingTimer != nil {
		s.missingTimer.Stop()
		s.missingTimer = nil
	}
}
