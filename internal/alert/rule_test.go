package alert

import (
	"errors"
	"testing"
	"time"
)

func TestRule_ValidateRejectsMissingID(t *testing.T) {
	r := Rule{Sensor: "pressure", Kind: PredicateThresholdAbove, Scope: Scope{Devices: []string{"*"}}}
	if err := r.Validate(); !errors.Is(err, ErrInvalidRule) {
		t.Fatalf("expected ErrInvalidRule, got %v", err)
	}
}

func TestRule_ValidateRejectsEmptyScope(t *testing.T) {
	r := Rule{ID: "r1", Sensor: "pressure", Kind: PredicateThresholdAbove}
	if err := r.Validate(); !errors.Is(err, ErrInvalidRule) {
		t.Fatalf("expected ErrInvalidRule, got %v", err)
	}
}

func TestRule_ValidateRequiresRateWindowForRateOfChange(t *testing.T) {
	r := Rule{ID: "r1", Sensor: "pressure", Kind: PredicateRateOfChange, Scope: Scope{Devices: []string{"*"}}}
	if err := r.Validate(); !errors.Is(err, ErrInvalidRule) {
		t.Fatalf("expected ErrInvalidRule for missing rate_window, got %v", err)
	}
	r.RateWindow = time.Second
	if err := r.Validate(); err != nil {
		t.Fatalf("unexpected error once rate_window is set: %v", err)
	}
}

func TestRule_ValidateRequiresForDurationForMissingData(t *testing.T) {
	r := Rule{ID: "r1", Sensor: "pressure", Kind: PredicateMissingData, Scope: Scope{Devices: []string{"*"}}}
	if err := r.Validate(); !errors.Is(err, ErrInvalidRule) {
		t.Fatalf("expected ErrInvalidRule for missing for_duration, got %v", err)
	}
}

func TestScope_MatchesWildcard(t *testing.T) {
	s := Scope{Devices: []string{"*"}}
	if !s.Matches("anything", nil) {
		t.Fatal("expected wildcard scope to match any device")
	}
}

func TestScope_MatchesTag(t *testing.T) {
	s := Scope{Tag: "fleet-a"}
	if !s.Matches("HK_1", []string{"fleet-a", "other"}) {
		t.Fatal("expected tag scope to match device carrying that tag")
	}
	if s.Matches("HK_2", []string{"fleet-b"}) {
		t.Fatal("expected tag scope to reject device without that tag")
	}
}
