package codec

import (
	"encoding/json"

	"github.com/smartsensor/gateway/internal/model"
)

// SubscriberFrame is the canonical JSON shape streamed to WebSocket
// subscribers for a single Reading.
type SubscriberFrame struct {
	Type            string  `json:"type"`
	DeviceID        string  `json:"device_id"`
	SensorKind      string  `json:"sensor_kind"`
	Position        string  `json:"position,omitempty"`
	Value           float64 `json:"value"`
	Unit            string  `json:"unit"`
	DeviceTimestamp string  `json:"device_timestamp"`
	IngestTimestamp string  `json:"ingest_timestamp"`
	Quality         string  `json:"quality"`
}

// EncodeSubscriberFrame serializes a Reading into the canonical
// subscriber wire frame. Encoding the same Reading twice yields
// byte-identical output (Go's encoding/json emits struct fields in a
// fixed order), satisfying the round-trip property required of the
// codec.
func EncodeSubscriberFrame(r model.Reading) ([]byte, error) {
	frame := SubscriberFrame{
		Type:            "reading",
		DeviceID:        r.DeviceID,
		SensorKind:      string(r.SensorKind),
		Position:        string(r.Position),
		Value:           r.Value,
		Unit:            r.Unit,
		DeviceTimestamp: r.DeviceTimestamp.UTC().Format(timeFormat),
		IngestTimestamp: r.IngestTimestamp.UTC().Format(timeFormat),
		Quality:         string(r.Quality),
	}
	return json.Marshal(frame)
}

const timeFormat = "2006-01-02T15:04:05.999999999Z07:00" // time.RFC3339Nano
