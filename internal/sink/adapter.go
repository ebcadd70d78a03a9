package sink

import (
	"context"

	"github.com/smartsensor/gateway/internal/model"
)

// Adapter is the pluggable backend a Sink flushes batches to. A single
// Append call represents one flush attempt; a non-nil error causes the
// Sink to retry the same batch with backoff rather than advance past it.
type Adapter interface {
	Append(ctx context.Context, readings []model.Reading) error
	Close() error
}
