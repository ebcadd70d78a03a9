package sink

import "errors"

// Domain errors for the sink package. Check with errors.Is.
var (
	// ErrWouldBlock is returned by Append when the write-ahead buffer is at
	// capacity. The pipeline shard offering the Reading must back off
	// rather than drop it.
	ErrWouldBlock = errors.New("sink: write-ahead buffer full")

	// ErrClosed is returned by Append once the sink has been shut down.
	ErrClosed = errors.New("sink: closed")
)
