package registry

import (
	"sync"
	"testing"

	"github.com/smartsensor/gateway/internal/model"
)

func TestShard_ConcurrentReadsDuringWrite(t *testing.T) {
	sh := newShard()
	sh.publish("HK_1", func(_ *deviceState) *deviceState {
		return &deviceState{device: model.Device{DeviceID: "HK_1"}}
	})

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			sh.publish("HK_1", func(cur *deviceState) *deviceState {
				next := *cur
				next.device.HealthScore = i
				return &next
			})
		}
		close(stop)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				if _, ok := sh.get("HK_1"); !ok {
					t.Error("reader should never observe a missing entry mid-write")
					return
				}
			}
		}
	}()

	wg.Wait()
}

func TestShard_PublishDelete(t *testing.T) {
	sh := newShard()
	sh.publish("HK_1", func(_ *deviceState) *deviceState {
		return &deviceState{device: model.Device{DeviceID: "HK_1"}}
	})
	sh.publish("HK_1", func(_ *deviceState) *deviceState { return nil })

	if _, ok := sh.get("HK_1"); ok {
		t.Error("expected entry removed after delete publish")
	}
}
