package sink

import (
	"context"
	"errors"
	"fmt"

	"github.com/smartsensor/gateway/internal/model"
)

// CompositeAdapter fans a single batch out to every wrapped adapter. It
// exists because the pipeline is wired to exactly one Sink; writing to
// more than one destination (e.g. SQLite for the admin API plus a
// line-protocol TSDB for dashboards) composes at the adapter layer rather
// than threading multiple sinks through the pipeline.
//
// Append only returns once every adapter has been tried; a batch is
// considered durably accepted only if every wrapped adapter succeeded, so
// the Sink's retry loop can retry the whole batch without double-writing
// to adapters that already succeeded being a correctness problem (writes
// here are expected to be idempotent-by-content, e.g. an upsert or a
// time-series point with the same timestamp).
type CompositeAdapter struct {
	adapters []Adapter
}

// NewCompositeAdapter wraps one or more adapters.
func NewCompositeAdapter(adapters ...Adapter) *CompositeAdapter {
	return &CompositeAdapter{adapters: adapters}
}

func (c *CompositeAdapter) Append(ctx context.Context, readings []model.Reading) error {
	var errs []error
	for _, a := range c.adapters {
		if err := a.Append(ctx, readings); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("composite sink: %w", errors.Join(errs...))
	}
	return nil
}

func (c *CompositeAdapter) Close() error {
	var errs []error
	for _, a := range c.adapters {
		if err := a.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
