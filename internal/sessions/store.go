package sessions

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"admin-console/internal/models"
)

// ErrSessionNotFound reports an unknown or revoked token.
var ErrSessionNotFound = errors.New("session not found")

// Store defines console session persistence.
type Store interface {
	Create(ctx context.Context, token, adminID, nickname string) (models.Session, error)
	Get(ctx context.Context, token string) (models.Session, error)
	Touch(ctx context.Context, token string) error
	Delete(ctx context.Context, token string) error
}

// SQLStore is a sqlx-backed implementation.
type SQLStore struct {
	db *sqlx.DB
}

// NewSQLStore constructs a SQLStore.
func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db}
}

// Create persists a session for the backend-issued token.
func (s *SQLStore) Create(ctx context.Context, token, adminID, nickname string) (models.Session, error) {
	var session models.Session
	err := s.db.QueryRowxContext(ctx, `INSERT INTO sessions (token, admin_id, nickname) VALUES ($1, $2, $3)
        ON CONFLICT (token) DO UPDATE SET last_seen = NOW()
        RETURNING token, admin_id, nickname, created_at, last_seen`, token, adminID, nickname).
		StructScan(&session)
	return session, err
}

// Get resolves a bearer token into a session.
func (s *SQLStore) Get(ctx context.Context, token string) (models.Session, error) {
	var session models.Session
	err := s.db.GetContext(ctx, &session, `SELECT token, admin_id, nickname, created_at, last_seen FROM sessions WHERE token=$1`, token)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Session{}, ErrSessionNotFound
	}
	return session, err
}

// Touch refreshes the session's last_seen timestamp.
func (s *SQLStore) Touch(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE sessions SET last_seen = NOW() WHERE token=$1`, token)
	return err
}

// Delete revokes a session.
func (s *SQLStore) Delete(ctx context.Context, token string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE token=$1`, token)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrSessionNotFound
	}
	return nil
}
