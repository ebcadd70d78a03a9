package sink

import (
	"context"
	"fmt"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/smartsensor/gateway/internal/model"
)

// InfluxAdapter writes readings to a real InfluxDB 2.x server using the
// official client, for deployments that already run InfluxDB rather than
// a bare line-protocol-speaking VictoriaMetrics endpoint.
type InfluxAdapter struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
}

// NewInfluxAdapter connects to an InfluxDB server. org and bucket select
// the destination; token authenticates the write.
func NewInfluxAdapter(url, token, org, bucket string) *InfluxAdapter {
	client := influxdb2.NewClient(url, token)
	return &InfluxAdapter{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
	}
}

func (a *InfluxAdapter) Append(ctx context.Context, readings []model.Reading) error {
	if len(readings) == 0 {
		return nil
	}

	points := make([]*write.Point, 0, len(readings))
	for _, r := range readings {
		tags := map[string]string{
			"device_id": r.DeviceID,
			"quality":   string(r.Quality),
		}
		if r.Position != "" && r.Position != model.PositionNone {
			tags["position"] = string(r.Position)
		}
		fields := map[string]interface{}{"value": r.Value}
		if r.Quality == model.QualityInvalid {
			fields["raw_value"] = r.RawValue
		}
		points = append(points, influxdb2.NewPoint(string(r.SensorKind), tags, fields, r.IngestTimestamp))
	}

	if err := a.writeAPI.WritePoint(ctx, points...); err != nil {
		return fmt.Errorf("writing influx batch: %w", err)
	}
	return nil
}

func (a *InfluxAdapter) Close() error {
	a.client.Close()
	return nil
}
