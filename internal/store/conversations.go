package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateConversation starts a new thread with its first exchange(s).
func (s *Store) CreateConversation(ctx context.Context, c *Conversation) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt = time.Now().UTC()

	exchanges, err := json.Marshal(c.Exchanges)
	if err != nil {
		return fmt.Errorf("encode exchanges: %w", err)
	}

	var roomID sql.NullString
	if c.RoomID != "" {
		roomID = sql.NullString{String: c.RoomID, Valid: true}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO conversations (id, user_id, room_id, exchanges, last_activity_at, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, roomID, string(exchanges), c.LastActivityAt,
		c.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	return nil
}

// AppendExchange pushes one entry onto a live thread and bumps its activity
// timestamp in a single statement, so concurrent appends to the same thread
// serialize without losing entries. Returns the updated thread.
func (s *Store) AppendExchange(ctx context.Context, id string, entry JSONMap, lastActivityAt string) (Conversation, error) {
	encoded, err := json.Marshal(entry)
	if err != nil {
		return Conversation{}, fmt.Errorf("encode exchange: %w", err)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE conversations
		 SET exchanges = json_insert(exchanges, '$[#]', json(?)), last_activity_at = ?
		 WHERE id = ? AND deleted = 0`,
		string(encoded), lastActivityAt, id)
	if err != nil {
		return Conversation{}, fmt.Errorf("append exchange: %w", err)
	}
	if err := requireRow(res); err != nil {
		return Conversation{}, err
	}
	return s.GetConversation(ctx, id)
}

// GetConversation returns a live thread by ID.
func (s *Store) GetConversation(ctx context.Context, id string) (Conversation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, room_id, exchanges, last_activity_at, created_at
		 FROM conversations WHERE id = ? AND deleted = 0`, id)
	return scanConversation(row)
}

// ListConversations returns live threads for a user, optionally scoped to a
// room, most recently active first.
func (s *Store) ListConversations(ctx context.Context, userID, roomID string, page, limit int) ([]Conversation, int, error) {
	page, limit = normalizePage(page, limit)

	where := `user_id = ? AND deleted = 0`
	args := []any{userID}
	if roomID != "" {
		where += ` AND room_id = ?`
		args = append(args, roomID)
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM conversations WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count conversations: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, room_id, exchanges, last_activity_at, created_at
		 FROM conversations WHERE `+where+` ORDER BY last_activity_at DESC LIMIT ? OFFSET ?`,
		append(args, limit, (page-1)*limit)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var out []Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

// SoftDeleteConversation marks a thread deleted and returns it; repeated
// deletes report ErrNotFound.
func (s *Store) SoftDeleteConversation(ctx context.Context, id string) (Conversation, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET deleted = 1 WHERE id = ? AND deleted = 0`, id)
	if err != nil {
		return Conversation{}, fmt.Errorf("soft delete conversation: %w", err)
	}
	if err := requireRow(res); err != nil {
		return Conversation{}, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, room_id, exchanges, last_activity_at, created_at
		 FROM conversations WHERE id = ?`, id)
	c, err := scanConversation(row)
	if err != nil {
		return Conversation{}, err
	}
	c.Deleted = true
	return c, nil
}

func scanConversation(row rowScanner) (Conversation, error) {
	var (
		c                  Conversation
		roomID             sql.NullString
		exchanges, created string
	)
	if err := row.Scan(&c.ID, &c.UserID, &roomID, &exchanges, &c.LastActivityAt, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Conversation{}, ErrNotFound
		}
		return Conversation{}, fmt.Errorf("scan conversation: %w", err)
	}
	if roomID.Valid {
		c.RoomID = roomID.String
	}
	if err := unmarshalJSON(exchanges, &c.Exchanges); err != nil {
		return Conversation{}, err
	}
	var err error
	if c.CreatedAt, err = time.Parse(time.RFC3339, created); err != nil {
		return Conversation{}, fmt.Errorf("parse created_at: %w", err)
	}
	return c, nil
}
