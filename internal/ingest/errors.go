package ingest

import "errors"

var (
	// ErrRateLimited is returned by the HTTP front-end when a per-device
	// or per-source-IP fixed-window counter has reached its limit for the
	// current window. The limiter is not a token bucket: a key's count
	// resets only when its window expires, with no gradual refill.
	ErrRateLimited = errors.New("ingest: rate limited")

	// ErrForbiddenDevice is returned when a frame's device_id falls
	// outside the caller's bearer-token scope.
	ErrForbiddenDevice = errors.New("ingest: device outside authorized scope")

	// ErrBackpressure is surfaced to HTTP callers as 503 Retry-After when
	// the pipeline cannot accept a batch within the request deadline.
	ErrBackpressure = errors.New("ingest: pipeline backpressure")
)
