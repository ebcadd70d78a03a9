package alert

import "errors"

var (
	// ErrInvalidRule is returned by LoadRules when a rule fails validation.
	ErrInvalidRule = errors.New("alert: invalid rule")

	// ErrDeadLettered is returned (wrapped) when a dispatch adapter
	// exhausts its retry budget for a given alert.
	ErrDeadLettered = errors.New("alert: dispatch dead-lettered")
)
