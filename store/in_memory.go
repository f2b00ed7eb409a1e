// Package store houses concrete implementations of the core.Store durable
// persistence contract. The in-memory store here suits tests and ephemeral
// demo processes; network-backed implementations live in sub-packages
// (store/redis, store/postgres). Add further backends in sub-packages
// without changing any calling code; only the wiring layer decides which
// implementation to instantiate.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/hupe1980/agentdispatch/core"
)

// InMemory is a volatile core.Store implementation holding sessions,
// messages and notifications in process-local maps. Safe for concurrent use.
type InMemory struct {
	mu            sync.RWMutex
	sessions      map[string]*core.ChatSession
	messages      map[string][]core.StoredMessage // by session id
	notifications map[string][]core.Notification  // by user id
}

var _ core.Store = (*InMemory)(nil)

// NewInMemory constructs an empty in-memory store.
func NewInMemory() *InMemory {
	return &InMemory{
		sessions:      make(map[string]*core.ChatSession),
		messages:      make(map[string][]core.StoredMessage),
		notifications: make(map[string][]core.Notification),
	}
}

// GetOrCreateSession resolves the session, creating one when sessionID is
// empty or unknown.
func (s *InMemory) GetOrCreateSession(_ context.Context, userID, sessionID string) (*core.ChatSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sessionID != "" {
		if sess, ok := s.sessions[sessionID]; ok {
			cp := *sess
			return &cp, nil
		}
	}
	sess := &core.ChatSession{ID: core.NewID(), UserID: userID, CreatedAt: time.Now().UTC()}
	if sessionID != "" {
		sess.ID = sessionID
	}
	s.sessions[sess.ID] = sess
	cp := *sess
	return &cp, nil
}

// SaveMessage appends the message to its session's history.
func (s *InMemory) SaveMessage(_ context.Context, msg core.StoredMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[msg.SessionID] = append(s.messages[msg.SessionID], msg)
	return nil
}

// SaveNotification appends the notification to the user's list.
func (s *InMemory) SaveNotification(_ context.Context, n core.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications[n.UserID] = append(s.notifications[n.UserID], n)
	return nil
}

// Messages returns a copy of the session's message history.
func (s *InMemory) Messages(sessionID string) []core.StoredMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.messages[sessionID]
	out := make([]core.StoredMessage, len(msgs))
	copy(out, msgs)
	return out
}

// Notifications returns a copy of the user's notifications.
func (s *InMemory) Notifications(userID string) []core.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ns := s.notifications[userID]
	out := make([]core.Notification, len(ns))
	copy(out, ns)
	return out
}
