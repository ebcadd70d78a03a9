package alert

import (
	"math"

	"github.com/smartsensor/gateway/internal/model"
)

// evalResult carries both the predicate's truth value and the value to
// record on the Alert (last_value/threshold), since rate_of_change
// reports the computed rate rather than the raw reading value.
type evalResult struct {
	fired bool
	value float64
}

// evaluate runs rule's predicate against r given the per-(device,rule)
// state accumulated so far. missing_data is handled separately by its
// timer, not here: a frame arriving is itself missing_data's "all clear"
// signal, applied by the caller resetting the timer before evaluate runs.
func evaluate(rule Rule, st *ruleState, r model.Reading) evalResult {
	switch rule.Kind {
	case PredicateThresholdAbove:
		return evalResult{fired: r.Value > rule.Threshold, value: r.Value}
	case PredicateThresholdBelow:
		return evalResult{fired: r.Value < rule.Threshold, value: r.Value}
	case PredicateRateOfChange:
		return evalRateOfChange(rule, st, r)
	case PredicateAnomaly:
		return evalResult{value: r.Value} // filled in by the caller via a registered predicate
	default:
		return evalResult{}
	}
}

func evalRateOfChange(rule Rule, st *ruleState, r model.Reading) evalResult {
	if !st.hasLast {
		return evalResult{value: 0}
	}
	elapsed := r.IngestTimestamp.Sub(st.lastTimestamp)
	if elapsed <= 0 {
		return evalResult{value: 0}
	}
	delta := r.Value - st.lastValue
	rate := delta / elapsed.Seconds() * rule.RateWindow.Seconds()
	return evalResult{fired: math.Abs(rate) > rule.RateLimit, value: rate}
}
