package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// InsertRecommendation appends a new recommendation row. Rows are never
// updated afterwards.
func (s *Store) InsertRecommendation(ctx context.Context, r *Recommendation) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.CreatedAt = time.Now().UTC()
	if r.RecheckMinutes < 1 {
		r.RecheckMinutes = 5
	}

	payload, err := marshalJSON(r.Payload)
	if err != nil {
		return err
	}
	snapshot, err := marshalJSON(r.Snapshot)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO recommendations (id, room_id, user_id, payload, snapshot, recheck_minutes, computed_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.RoomID, r.UserID, payload, snapshot, r.RecheckMinutes,
		r.ComputedAt, r.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert recommendation: %w", err)
	}
	return nil
}

// LatestRecommendation returns the newest live row matching the given keys.
// Empty keys are not filtered on; at least one must be supplied by callers.
func (s *Store) LatestRecommendation(ctx context.Context, roomID, userID string) (Recommendation, error) {
	where, args := recommendationFilter(roomID, userID)
	row := s.db.QueryRowContext(ctx,
		`SELECT id, room_id, user_id, payload, snapshot, recheck_minutes, computed_at, created_at
		 FROM recommendations WHERE `+where+` ORDER BY computed_at DESC LIMIT 1`, args...)
	return scanRecommendation(row)
}

// ListRecommendations returns live rows newest first with the total count.
func (s *Store) ListRecommendations(ctx context.Context, roomID, userID string, page, limit int) ([]Recommendation, int, error) {
	page, limit = normalizePage(page, limit)
	where, args := recommendationFilter(roomID, userID)

	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM recommendations WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count recommendations: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, room_id, user_id, payload, snapshot, recheck_minutes, computed_at, created_at
		 FROM recommendations WHERE `+where+` ORDER BY computed_at DESC LIMIT ? OFFSET ?`,
		append(args, limit, (page-1)*limit)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list recommendations: %w", err)
	}
	defer rows.Close()

	var out []Recommendation
	for rows.Next() {
		r, err := scanRecommendation(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, r)
	}
	return out, total, rows.Err()
}

// SoftDeleteRecommendation marks a row deleted; repeated deletes report
// ErrNotFound.
func (s *Store) SoftDeleteRecommendation(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE recommendations SET deleted = 1 WHERE id = ? AND deleted = 0`, id)
	if err != nil {
		return fmt.Errorf("soft delete recommendation: %w", err)
	}
	return requireRow(res)
}

func recommendationFilter(roomID, userID string) (string, []any) {
	where := `deleted = 0`
	args := []any{}
	if roomID != "" {
		where += ` AND room_id = ?`
		args = append(args, roomID)
	}
	if userID != "" {
		where += ` AND user_id = ?`
		args = append(args, userID)
	}
	return where, args
}

func scanRecommendation(row rowScanner) (Recommendation, error) {
	var (
		r                          Recommendation
		payload, snapshot, created string
	)
	if err := row.Scan(&r.ID, &r.RoomID, &r.UserID, &payload, &snapshot,
		&r.RecheckMinutes, &r.ComputedAt, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Recommendation{}, ErrNotFound
		}
		return Recommendation{}, fmt.Errorf("scan recommendation: %w", err)
	}
	if err := unmarshalJSON(payload, &r.Payload); err != nil {
		return Recommendation{}, err
	}
	if err := unmarshalJSON(snapshot, &r.Snapshot); err != nil {
		return Recommendation{}, err
	}
	var err error
	if r.CreatedAt, err = time.Parse(time.RFC3339, created); err != nil {
		return Recommendation{}, fmt.Errorf("parse created_at: %w", err)
	}
	return r, nil
}
