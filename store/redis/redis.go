// Package redis provides a core.Store backend on Redis. Sessions are hashes,
// messages and notifications are JSON entries on per-session / per-user
// lists. Suitable when the host already runs Redis for its transport layer
// and wants durable-enough chat history without a relational schema.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	r "github.com/redis/go-redis/v9"

	"github.com/hupe1980/agentdispatch/core"
)

// Options configures the Redis store.
type Options struct {
	// KeyPrefix namespaces all keys. Defaults to "agentdispatch".
	KeyPrefix string
	// MessageCap bounds each session's message list (LTRIM). 0 keeps all.
	MessageCap int64
}

// Store implements core.Store on a Redis client.
type Store struct {
	rdb  *r.Client
	opts Options
}

var _ core.Store = (*Store)(nil)

// New creates a Redis-backed store from an existing client.
func New(rdb *r.Client, optFns ...func(o *Options)) *Store {
	opts := Options{KeyPrefix: "agentdispatch"}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Store{rdb: rdb, opts: opts}
}

// WithKeyPrefix overrides the key namespace.
func WithKeyPrefix(prefix string) func(o *Options) {
	return func(o *Options) { o.KeyPrefix = prefix }
}

// WithMessageCap bounds per-session message history.
func WithMessageCap(cap int64) func(o *Options) {
	return func(o *Options) { o.MessageCap = cap }
}

func (s *Store) key(parts ...string) string {
	k := s.opts.KeyPrefix
	for _, p := range parts {
		k += ":" + p
	}
	return k
}

// GetOrCreateSession resolves the session hash, creating it when absent.
func (s *Store) GetOrCreateSession(ctx context.Context, userID, sessionID string) (*core.ChatSession, error) {
	if sessionID != "" {
		vals, err := s.rdb.HGetAll(ctx, s.key("session", sessionID)).Result()
		if err != nil {
			return nil, fmt.Errorf("load session: %w", err)
		}
		if len(vals) > 0 {
			created, _ := time.Parse(time.RFC3339Nano, vals["created_at"])
			return &core.ChatSession{ID: sessionID, UserID: vals["user_id"], CreatedAt: created}, nil
		}
	}

	sess := &core.ChatSession{ID: sessionID, UserID: userID, CreatedAt: time.Now().UTC()}
	if sess.ID == "" {
		sess.ID = core.NewID()
	}
	err := s.rdb.HSet(ctx, s.key("session", sess.ID),
		"user_id", sess.UserID,
		"created_at", sess.CreatedAt.Format(time.RFC3339Nano),
	).Err()
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return sess, nil
}

// SaveMessage pushes the message onto the session's list, trimming to the
// configured cap.
func (s *Store) SaveMessage(ctx context.Context, msg core.StoredMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	key := s.key("messages", msg.SessionID)
	pipe := s.rdb.TxPipeline()
	pipe.LPush(ctx, key, data)
	if s.opts.MessageCap > 0 {
		pipe.LTrim(ctx, key, 0, s.opts.MessageCap-1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("save message: %w", err)
	}
	return nil
}

// SaveNotification pushes the notification onto the user's list.
func (s *Store) SaveNotification(ctx context.Context, n core.Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	if err := s.rdb.LPush(ctx, s.key("notifications", n.UserID), data).Err(); err != nil {
		return fmt.Errorf("save notification: %w", err)
	}
	return nil
}
