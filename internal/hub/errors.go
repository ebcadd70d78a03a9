package hub

import "errors"

var (
	// ErrUnauthorized is returned when the handshake's auth token is
	// missing or invalid.
	ErrUnauthorized = errors.New("hub: unauthorized")

	// ErrForbiddenScope is returned when a non-admin principal requests a
	// filter covering devices outside their tenant.
	ErrForbiddenScope = errors.New("hub: filter outside authorized scope")

	// ErrSlowSubscriber is the close reason sent to a client disconnected
	// under drop_policy=disconnect.
	ErrSlowSubscriber = errors.New("hub: subscriber too slow")

	errShuttingDown = errors.New("hub: server shutting down")
)
