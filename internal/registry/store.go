package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/smartsensor/gateway/internal/dbx"
	"github.com/smartsensor/gateway/internal/model"
)

// SQLStore persists device records with the gateway's dbx.DB wrapper. It
// implements Store.
type SQLStore struct {
	db *dbx.DB
}

// NewSQLStore wraps an open database connection.
func NewSQLStore(db *dbx.DB) *SQLStore {
	return &SQLStore{db: db}
}

// Upsert inserts or replaces a device record.
func (s *SQLStore) Upsert(ctx context.Context, d model.Device) error {
	tagsJSON, err := json.Marshal(d.Tags)
	if err != nil {
		return fmt.Errorf("marshaling device tags: %w", err)
	}

	query := `
		INSERT INTO devices (
			device_id, kind, credentials_fingerprint, known_since, last_seen_at,
			firmware_version, health_score, slug, tags
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(device_id) DO UPDATE SET
			kind = excluded.kind,
			credentials_fingerprint = excluded.credentials_fingerprint,
			last_seen_at = excluded.last_seen_at,
			firmware_version = excluded.firmware_version,
			health_score = excluded.health_score,
			slug = excluded.slug,
			tags = excluded.tags`

	_, err = s.db.ExecContext(ctx, query,
		d.DeviceID, string(d.Kind), d.CredentialsFingerprint,
		d.KnownSince.UTC(), d.LastSeenAt.UTC(),
		d.FirmwareVersion, d.HealthScore, d.Slug, string(tagsJSON),
	)
	if err != nil {
		return fmt.Errorf("upserting device: %w", err)
	}
	return nil
}

// Delete removes a device record. Deleting an already-absent device is not
// an error; the registry has already confirmed presence before calling.
func (s *SQLStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM devices WHERE device_id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting device: %w", err)
	}
	return nil
}

// List loads every persisted device, for registry warm-start.
func (s *SQLStore) List(ctx context.Context) ([]model.Device, error) {
	query := `
		SELECT device_id, kind, credentials_fingerprint, known_since, last_seen_at,
			firmware_version, health_score, slug, tags
		FROM devices
		ORDER BY device_id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only cursor

	var out []model.Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning device row: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating device rows: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDevice(row rowScanner) (model.Device, error) {
	var d model.Device
	var kind, firmware, tagsJSON sql.NullString
	var knownSince, lastSeenAt time.Time

	err := row.Scan(
		&d.DeviceID, &kind, &d.CredentialsFingerprint, &knownSince, &lastSeenAt,
		&firmware, &d.HealthScore, &d.Slug, &tagsJSON,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Device{}, ErrNotFound
		}
		return model.Device{}, err
	}

	d.Kind = model.DeviceKind(kind.String)
	d.FirmwareVersion = firmware.String
	d.KnownSince = knownSince
	d.LastSeenAt = lastSeenAt

	if tagsJSON.Valid && tagsJSON.String != "" {
		if err := json.Unmarshal([]byte(tagsJSON.String), &d.Tags); err != nil {
			return model.Device{}, fmt.Errorf("unmarshaling device tags: %w", err)
		}
	}
	return d, nil
}
