package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// CreateUser inserts a new user, assigning an ID and creation time.
func (s *Store) CreateUser(ctx context.Context, u *User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.CreatedAt = time.Now().UTC()

	health, err := marshalJSONList(u.HealthIssues)
	if err != nil {
		return err
	}
	questionnaire, err := marshalJSONList(u.Questionnaire)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, age, gender, ethnicity, health_issues, questionnaire, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Name, u.Email, u.Age, u.Gender, u.Ethnicity,
		health, questionnaire, u.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUser returns a live user by ID.
func (s *Store) GetUser(ctx context.Context, id string) (User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, name, email, age, gender, ethnicity, health_issues, questionnaire, created_at
		 FROM users WHERE id = ? AND deleted = 0`, id))
}

// GetUserByEmail returns a live user by email address.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		`SELECT id, name, email, age, gender, ethnicity, health_issues, questionnaire, created_at
		 FROM users WHERE email = ? AND deleted = 0`, email))
}

func (s *Store) scanUser(row *sql.Row) (User, error) {
	var (
		u                              User
		health, questionnaire, created string
	)
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Age, &u.Gender, &u.Ethnicity,
		&health, &questionnaire, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("scan user: %w", err)
	}
	if err := unmarshalJSON(health, &u.HealthIssues); err != nil {
		return User{}, err
	}
	if err := unmarshalJSON(questionnaire, &u.Questionnaire); err != nil {
		return User{}, err
	}
	if u.CreatedAt, err = time.Parse(time.RFC3339, created); err != nil {
		return User{}, fmt.Errorf("parse user created_at: %w", err)
	}
	return u, nil
}

// SoftDeleteUser marks a user deleted. Deleting an absent or already-deleted
// user reports ErrNotFound.
func (s *Store) SoftDeleteUser(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET deleted = 1 WHERE id = ? AND deleted = 0`, id)
	if err != nil {
		return fmt.Errorf("soft delete user: %w", err)
	}
	return requireRow(res)
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
