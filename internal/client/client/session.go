package client

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/client/client/migrations"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// Session is what the CLI remembers between invocations.
type Session struct {
	Email string
	Tokens
}

// SessionStore keeps at most one Session in SQLite.
type SessionStore struct {
	db *sql.DB
}

func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, ".")
}

// OpenSessionStore opens dsn with the modernc SQLite driver and migrates it.
func OpenSessionStore(ctx context.Context, dsn string) (*SessionStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("session store migration error: %w", err)
	}
	return &SessionStore{db: db}, nil
}

func (s *SessionStore) Close() error {
	return s.db.Close()
}

// Load returns ErrNoSession when nothing is stored.
func (s *SessionStore) Load(ctx context.Context) (*Session, error) {
	var (
		sess Session
		exp  int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT email, access_token, refresh_token, expires_at FROM session WHERE id = 1`,
	).Scan(&sess.Email, &sess.AccessToken, &sess.RefreshToken, &exp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	sess.ExpiresAt = time.Unix(exp, 0).UTC()
	return &sess, nil
}

func (s *SessionStore) Save(ctx context.Context, sess *Session) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO session (id, email, access_token, refresh_token, expires_at) VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			email = excluded.email,
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expires_at = excluded.expires_at
	`, sess.Email, sess.AccessToken, sess.RefreshToken, sess.ExpiresAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func (s *SessionStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM session`); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}
