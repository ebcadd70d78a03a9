package sink

import (
	"context"
	"errors"
	"testing"

	"github.com/smartsensor/gateway/internal/model"
)

func TestCompositeAdapter_FanOut(t *testing.T) {
	a := &recordingAdapter{}
	b := &recordingAdapter{}
	c := NewCompositeAdapter(a, b)

	readings := []model.Reading{testReading("HK_1")}
	if err := c.Append(context.Background(), readings); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if a.total() != 1 || b.total() != 1 {
		t.Errorf("expected both adapters to receive the batch, got a=%d b=%d", a.total(), b.total())
	}
}

func TestCompositeAdapter_AggregatesErrors(t *testing.T) {
	a := &recordingAdapter{appendErr: errors.New("a failed")}
	b := &recordingAdapter{appendErr: errors.New("b failed")}
	c := NewCompositeAdapter(a, b)

	err := c.Append(context.Background(), []model.Reading{testReading("HK_1")})
	if err == nil {
		t.Fatal("expected aggregated error from both failing adapters")
	}
}

func TestCompositeAdapter_Close(t *testing.T) {
	a := &recordingAdapter{}
	b := &recordingAdapter{}
	c := NewCompositeAdapter(a, b)
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
