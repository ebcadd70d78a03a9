package sink

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/smartsensor/gateway/internal/model"
)

// LineProtocolAdapter writes readings to a VictoriaMetrics (or any
// InfluxDB line-protocol-compatible) endpoint via a raw HTTP POST to
// /write. One HTTP request per Append call; batching and retry are the
// Sink's responsibility, not this adapter's.
type LineProtocolAdapter struct {
	url        string
	httpClient *http.Client
}

// NewLineProtocolAdapter targets the given /write endpoint.
func NewLineProtocolAdapter(url string) *LineProtocolAdapter {
	return &LineProtocolAdapter{
		url:        strings.TrimRight(url, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (a *LineProtocolAdapter) Append(ctx context.Context, readings []model.Reading) error {
	if len(readings) == 0 {
		return nil
	}

	var b strings.Builder
	for i, r := range readings {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(readingLine(r))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url+"/write", bytes.NewBufferString(b.String()))
	if err != nil {
		return fmt.Errorf("building line protocol request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("posting line protocol batch: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // best effort
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("line protocol write: status %d", resp.StatusCode)
	}
	return nil
}

func (a *LineProtocolAdapter) Close() error { return nil }

// readingLine renders one Reading as a line-protocol point:
// measurement,tag=val,... field=val,... timestamp_ns
func readingLine(r model.Reading) string {
	tags := map[string]string{
		"device_id": r.DeviceID,
		"quality":   string(r.Quality),
	}
	if r.Position != "" && r.Position != model.PositionNone {
		tags["position"] = string(r.Position)
	}

	fields := map[string]float64{
		"value": r.Value,
	}
	if r.Quality == model.QualityInvalid {
		fields["raw_value"] = r.RawValue
	}

	return formatLineProtocol(string(r.SensorKind), tags, fields, r.IngestTimestamp)
}

// formatLineProtocol builds a single line-protocol point string, escaping
// tag keys/values and the measurement name per the wire format's rules.
func formatLineProtocol(measurement string, tags map[string]string, fields map[string]float64, t time.Time) string {
	var b strings.Builder
	b.WriteString(escapeMeasurement(measurement))

	tagKeys := make([]string, 0, len(tags))
	for k := range tags {
		tagKeys = append(tagKeys, k)
	}
	sort.Strings(tagKeys)
	for _, k := range tagKeys {
		b.WriteByte(',')
		b.WriteString(escapeTag(k))
		b.WriteByte('=')
		b.WriteString(escapeTag(tags[k]))
	}

	fieldKeys := make([]string, 0, len(fields))
	for k := range fields {
		fieldKeys = append(fieldKeys, k)
	}
	sort.Strings(fieldKeys)
	b.WriteByte(' ')
	for i, k := range fieldKeys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(escapeTag(k))
		b.WriteString(fmt.Sprintf("=%g", fields[k]))
	}

	b.WriteByte(' ')
	b.WriteString(fmt.Sprintf("%d", t.UnixNano()))
	return b.String()
}

// escapeTag escapes special characters in tag keys/values per line
// protocol's rules: commas, equals signs, and spaces are backslash-escaped;
// newlines are stripped to prevent line injection.
func escapeTag(s string) string {
	s = strings.ReplaceAll(s, "\n", "")
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, " ", "\\ ")
	s = strings.ReplaceAll(s, ",", "\\,")
	s = strings.ReplaceAll(s, "=", "\\=")
	return s
}

// escapeMeasurement escapes special characters in measurement names.
func escapeMeasurement(s string) string {
	s = strings.ReplaceAll(s, "\n", "")
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, " ", "\\ ")
	s = strings.ReplaceAll(s, ",", "\\,")
	return s
}
