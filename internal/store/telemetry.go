package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// InsertNodeReadings appends one row per sample. Pure insert: no upsert, no
// dedup by timestamp (at-least-once is the ingestion contract).
func (s *Store) InsertNodeReadings(ctx context.Context, readings []NodeReading) error {
	if len(readings) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin insert node readings: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO node_readings (id, device_key, sample, source_ts, ingested_at)
		 VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert node readings: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for i := range readings {
		r := &readings[i]
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		r.IngestedAt = now

		sample, err := marshalJSON(r.Sample)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, r.ID, r.DeviceKey, sample,
			r.SourceTS.UTC().Format(time.RFC3339), now.Format(time.RFC3339)); err != nil {
			return fmt.Errorf("insert node reading: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit node readings: %w", err)
	}
	return nil
}

// LatestNodeReading returns the most recent live reading for a device,
// ordered by the source-reported timestamp.
func (s *Store) LatestNodeReading(ctx context.Context, deviceKey string) (NodeReading, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, device_key, sample, source_ts, ingested_at FROM node_readings
		 WHERE device_key = ? AND deleted = 0
		 ORDER BY source_ts DESC LIMIT 1`, deviceKey)
	return scanNodeReading(row)
}

// ListNodeReadings returns live readings newest first, optionally filtered by
// device, with the total count for pagination controls.
func (s *Store) ListNodeReadings(ctx context.Context, deviceKey string, page, limit int) ([]NodeReading, int, error) {
	page, limit = normalizePage(page, limit)

	where := `deleted = 0`
	args := []any{}
	if deviceKey != "" {
		where += ` AND device_key = ?`
		args = append(args, deviceKey)
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM node_readings WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count node readings: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, device_key, sample, source_ts, ingested_at FROM node_readings
		 WHERE `+where+` ORDER BY source_ts DESC LIMIT ? OFFSET ?`,
		append(args, limit, (page-1)*limit)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list node readings: %w", err)
	}
	defer rows.Close()

	var out []NodeReading
	for rows.Next() {
		r, err := scanNodeReading(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, r)
	}
	return out, total, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNodeReading(row rowScanner) (NodeReading, error) {
	var (
		r                     NodeReading
		sample, src, ingested string
	)
	if err := row.Scan(&r.ID, &r.DeviceKey, &sample, &src, &ingested); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return NodeReading{}, ErrNotFound
		}
		return NodeReading{}, fmt.Errorf("scan node reading: %w", err)
	}
	if err := unmarshalJSON(sample, &r.Sample); err != nil {
		return NodeReading{}, err
	}
	var err error
	if r.SourceTS, err = time.Parse(time.RFC3339, src); err != nil {
		return NodeReading{}, fmt.Errorf("parse source_ts: %w", err)
	}
	if r.IngestedAt, err = time.Parse(time.RFC3339, ingested); err != nil {
		return NodeReading{}, fmt.Errorf("parse ingested_at: %w", err)
	}
	return r, nil
}

// InsertOutdoorReading appends exactly one merged outdoor sample.
func (s *Store) InsertOutdoorReading(ctx context.Context, r *OutdoorReading) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.IngestedAt = time.Now().UTC()

	measurements, err := marshalJSON(r.Measurements)
	if err != nil {
		return err
	}
	metadata, err := marshalJSON(r.Metadata)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO outdoor_readings (id, recorded_at, measurements, metadata, ingested_at)
		 VALUES (?, ?, ?, ?, ?)`,
		r.ID, r.RecordedAt, measurements, metadata, r.IngestedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert outdoor reading: %w", err)
	}
	return nil
}

// LatestOutdoorReading returns the most recent live outdoor sample.
func (s *Store) LatestOutdoorReading(ctx context.Context) (OutdoorReading, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, recorded_at, measurements, metadata, ingested_at FROM outdoor_readings
		 WHERE deleted = 0 ORDER BY recorded_at DESC LIMIT 1`)
	return scanOutdoorReading(row)
}

// ListOutdoorReadings returns live outdoor samples newest first.
func (s *Store) ListOutdoorReadings(ctx context.Context, page, limit int) ([]OutdoorReading, int, error) {
	page, limit = normalizePage(page, limit)

	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM outdoor_readings WHERE deleted = 0`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count outdoor readings: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, recorded_at, measurements, metadata, ingested_at FROM outdoor_readings
		 WHERE deleted = 0 ORDER BY recorded_at DESC LIMIT ? OFFSET ?`,
		limit, (page-1)*limit)
	if err != nil {
		return nil, 0, fmt.Errorf("list outdoor readings: %w", err)
	}
	defer rows.Close()

	var out []OutdoorReading
	for rows.Next() {
		r, err := scanOutdoorReading(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, r)
	}
	return out, total, rows.Err()
}

func scanOutdoorReading(row rowScanner) (OutdoorReading, error) {
	var (
		r                                OutdoorReading
		measurements, metadata, ingested string
	)
	if err := row.Scan(&r.ID, &r.RecordedAt, &measurements, &metadata, &ingested); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return OutdoorReading{}, ErrNotFound
		}
		return OutdoorReading{}, fmt.Errorf("scan outdoor reading: %w", err)
	}
	if err := unmarshalJSON(measurements, &r.Measurements); err != nil {
		return OutdoorReading{}, err
	}
	if err := unmarshalJSON(metadata, &r.Metadata); err != nil {
		return OutdoorReading{}, err
	}
	var err error
	if r.IngestedAt, err = time.Parse(time.RFC3339, ingested); err != nil {
		return OutdoorReading{}, fmt.Errorf("parse ingested_at: %w", err)
	}
	return r, nil
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	return page, limit
}
