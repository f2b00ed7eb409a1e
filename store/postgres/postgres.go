// Package postgres provides a core.Store backend on PostgreSQL via pgx.
// Schema ownership stays with the host; Migrate creates the three tables
// when the host has none of its own.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hupe1980/agentdispatch/core"
)

// Store implements core.Store on a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

var _ core.Store = (*Store)(nil)

// New creates a Postgres-backed store from an existing pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Migrate creates the chat_sessions, chat_messages and notifications tables
// when they do not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS chat_sessions (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS chat_messages (
	id         TEXT PRIMARY KEY,
	session_id TEXT NOT NULL,
	user_id    TEXT NOT NULL,
	role       TEXT NOT NULL,
	agent      TEXT,
	content    TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS notifications (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	kind       TEXT NOT NULL,
	job_id     TEXT NOT NULL,
	agent      TEXT NOT NULL,
	title      TEXT NOT NULL,
	body       TEXT,
	created_at TIMESTAMPTZ NOT NULL
);`)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// GetOrCreateSession resolves the session row, inserting one when absent.
func (s *Store) GetOrCreateSession(ctx context.Context, userID, sessionID string) (*core.ChatSession, error) {
	if sessionID != "" {
		var sess core.ChatSession
		err := s.pool.QueryRow(ctx,
			`SELECT id, user_id, created_at FROM chat_sessions WHERE id = $1`, sessionID,
		).Scan(&sess.ID, &sess.UserID, &sess.CreatedAt)
		if err == nil {
			return &sess, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("load session: %w", err)
		}
	}

	sess := &core.ChatSession{ID: sessionID, UserID: userID, CreatedAt: time.Now().UTC()}
	if sess.ID == "" {
		sess.ID = core.NewID()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO chat_sessions (id, user_id, created_at) VALUES ($1, $2, $3) ON CONFLICT (id) DO NOTHING`,
		sess.ID, sess.UserID, sess.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return sess, nil
}

// SaveMessage inserts one chat message row.
func (s *Store) SaveMessage(ctx context.Context, msg core.StoredMessage) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO chat_messages (id, session_id, user_id, role, agent, content, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		msg.ID, msg.SessionID, msg.UserID, msg.Role, msg.Agent, msg.Content, msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save message: %w", err)
	}
	return nil
}

// SaveNotification inserts one notification row.
func (s *Store) SaveNotification(ctx context.Context, n core.Notification) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO notifications (id, user_id, kind, job_id, agent, title, body, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		n.ID, n.UserID, string(n.Kind), n.JobID, n.Agent, n.Title, n.Body, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save notification: %w", err)
	}
	return nil
}
