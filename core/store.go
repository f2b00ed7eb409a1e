package core

import (
	"context"
	"time"
)

// ChatSession groups the messages of one conversation.
type ChatSession struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// StoredMessage is a durably persisted chat message (user or assistant).
type StoredMessage struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"` // "user" or "assistant"
	Agent     string    `json:"agent,omitempty"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// NotificationKind distinguishes durable job outcome notifications.
type NotificationKind string

const (
	// NotificationJobCompleted records a successful job outcome.
	NotificationJobCompleted NotificationKind = "job_completed"
	// NotificationJobFailed records a failed job outcome.
	NotificationJobFailed NotificationKind = "job_failed"
)

// Notification is the durable record written for every terminal job event,
// independent of whether the transient chat delivery succeeded.
type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	Kind      NotificationKind `json:"kind"`
	JobID     string           `json:"job_id"`
	Agent     string           `json:"agent"`
	Title     string           `json:"title"`
	Body      string           `json:"body,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// Store is the durable persistence collaborator (sessions, messages,
// notifications). The core treats it as an opaque async CRUD surface.
//
// Failure policy: non-critical writes (message persistence) are logged and
// swallowed by the orchestrator: a failed SaveMessage never blocks sending
// the message to the user.
//
// The in-memory implementation lives in the store package; Redis and
// Postgres backends live in store/redis and store/postgres. Add further
// backends in sub-packages without changing calling code.
type Store interface {
	// GetOrCreateSession resolves sessionID, creating a fresh session when
	// sessionID is empty or unknown.
	GetOrCreateSession(ctx context.Context, userID, sessionID string) (*ChatSession, error)
	SaveMessage(ctx context.Context, msg StoredMessage) error
	SaveNotification(ctx context.Context, n Notification) error
}
