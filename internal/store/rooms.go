package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateRoom inserts a new room, assigning an ID and creation time.
func (s *Store) CreateRoom(ctx context.Context, r *Room) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.CreatedAt = time.Now().UTC()

	devices, err := marshalJSONList(r.Devices)
	if err != nil {
		return err
	}
	appliances, err := marshalJSONList(r.Appliances)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO rooms (id, user_id, name, length, width, height, occupancy, devices, appliances, doors, windows, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.UserID, r.Name, r.Length, r.Width, r.Height, r.Occupancy,
		devices, appliances, r.Doors, r.Windows, r.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert room: %w", err)
	}
	return nil
}

// GetRoom returns a live room by ID.
func (s *Store) GetRoom(ctx context.Context, id string) (Room, error) {
	var (
		r                            Room
		devices, appliances, created string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, length, width, height, occupancy, devices, appliances, doors, windows, created_at
		 FROM rooms WHERE id = ? AND deleted = 0`, id).
		Scan(&r.ID, &r.UserID, &r.Name, &r.Length, &r.Width, &r.Height, &r.Occupancy,
			&devices, &appliances, &r.Doors, &r.Windows, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Room{}, ErrNotFound
		}
		return Room{}, fmt.Errorf("scan room: %w", err)
	}
	if err := unmarshalJSON(devices, &r.Devices); err != nil {
		return Room{}, err
	}
	if err := unmarshalJSON(appliances, &r.Appliances); err != nil {
		return Room{}, err
	}
	if r.CreatedAt, err = time.Parse(time.RFC3339, created); err != nil {
		return Room{}, fmt.Errorf("parse room created_at: %w", err)
	}
	return r, nil
}

// SoftDeleteRoom marks a room deleted.
func (s *Store) SoftDeleteRoom(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE rooms SET deleted = 1 WHERE id = ? AND deleted = 0`, id)
	if err != nil {
		return fmt.Errorf("soft delete room: %w", err)
	}
	return requireRow(res)
}
