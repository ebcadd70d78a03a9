package pipeline

import "errors"

// ErrClosed is returned by Submit once the pipeline has begun shutting
// down and is no longer accepting new work.
var ErrClosed = errors.New("pipeline: closed")
