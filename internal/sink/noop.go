package sink

import (
	"context"

	"github.com/smartsensor/gateway/internal/model"
)

// NoopAdapter discards every batch. Used in tests and in configurations
// where durable storage is intentionally disabled.
type NoopAdapter struct{}

func (NoopAdapter) Append(context.Context, []model.Reading) error { return nil }
func (NoopAdapter) Close() error                                  { return nil }
