// Package followup bridges an asynchronous job's "I need more input" signal
// to the next inbound chat message from the same user, without threading job
// ids through the chat transport. It keeps at most one short-lived
// confirmation context per user.
package followup

import (
	"errors"
	"regexp"
	"sync"
	"time"

	"github.com/hupe1980/agentdispatch/core"
	"github.com/hupe1980/agentdispatch/logging"
)

// DefaultTTL is how long a pending confirmation stays matchable.
const DefaultTTL = 10 * time.Minute

// ErrConfirmationPending is returned by Set when the user already has a live
// unexpired confirmation context. The caller decides whether to drop the new
// confirmation or retry after the old one resolves; the tracker never
// silently discards a pending confirmation.
var ErrConfirmationPending = errors.New("a pending confirmation already exists for this user")

// timePattern accepts time-like tokens: "3pm", "10:30", "10:30 am".
var timePattern = regexp.MustCompile(`(?i)\b\d{1,2}:\d{2}\s*(?:am|pm)?\b|\b\d{1,2}\s*(?:am|pm)\b`)

// Context is one pending confirmation awaiting the user's next message.
type Context struct {
	UserID           string
	Agent            string
	ConfirmationType core.ConfirmationType
	OriginalRequest  string
	JobID            string
	CreatedAt        time.Time
}

// Tracker holds the per-user confirmation contexts. Safe for concurrent use.
type Tracker struct {
	mu      sync.Mutex
	entries map[string]*Context
	ttl     time.Duration
	now     func() time.Time
	logger  logging.Logger
}

// Options configures a Tracker.
type Options struct {
	// TTL after which an entry expires. Values < 1 fall back to DefaultTTL.
	TTL time.Duration
	// Clock overrides the time source (tests).
	Clock func() time.Time
	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

// WithTTL overrides the expiry window.
func WithTTL(ttl time.Duration) func(o *Options) {
	return func(o *Options) { o.TTL = ttl }
}

// WithClock injects a deterministic time source.
func WithClock(clock func() time.Time) func(o *Options) {
	return func(o *Options) { o.Clock = clock }
}

// WithLogger sets the structured logger.
func WithLogger(l logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = l }
}

// NewTracker creates an empty tracker.
func NewTracker(optFns ...func(o *Options)) *Tracker {
	opts := Options{TTL: DefaultTTL, Clock: time.Now, Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.TTL < 1 {
		opts.TTL = DefaultTTL
	}
	return &Tracker{
		entries: make(map[string]*Context),
		ttl:     opts.TTL,
		now:     opts.Clock,
		logger:  opts.Logger,
	}
}

// Set registers a pending confirmation for the user. An expired leftover
// entry is replaced; a live one is preserved and ErrConfirmationPending is
// returned so the caller can surface the collision instead of losing the
// older confirmation.
func (t *Tracker) Set(userID, agent string, confirmationType core.ConfirmationType, originalRequest, jobID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	if existing, ok := t.entries[userID]; ok && now.Sub(existing.CreatedAt) <= t.ttl {
		return ErrConfirmationPending
	}

	t.entries[userID] = &Context{
		UserID:           userID,
		Agent:            agent,
		ConfirmationType: confirmationType,
		OriginalRequest:  originalRequest,
		JobID:            jobID,
		CreatedAt:        now,
	}
	t.logger.Debug("follow-up context set", "user_id", userID, "agent", agent, "type", string(confirmationType))
	return nil
}

// Check returns the user's pending context when the message matches the
// expected answer shape, or nil otherwise.
//
// Expired entries are deleted on read. A message that fails the shape check
// leaves the entry alive for a later correctly-shaped message within the
// TTL. A matching context is NOT deleted; the caller must Consume after
// routing succeeds.
func (t *Tracker) Check(userID, message string) *Context {
	t.mu.Lock()
	defer t.mu.Unlock()

	entry, ok := t.entries[userID]
	if !ok {
		return nil
	}
	if t.now().Sub(entry.CreatedAt) > t.ttl {
		delete(t.entries, userID)
		t.logger.Debug("follow-up context expired", "user_id", userID)
		return nil
	}
	if !matchesShape(entry.ConfirmationType, message) {
		return nil
	}
	cp := *entry
	return &cp
}

// Consume deletes the user's pending context after successful routing.
func (t *Tracker) Consume(userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, userID)
}

// Len reports the number of live entries (expired ones included until read).
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// matchesShape applies the type-specific answer check. Unknown confirmation
// types accept any non-empty message so an unrecognized type never dead-ends
// a pending job.
func matchesShape(confirmationType core.ConfirmationType, message string) bool {
	switch confirmationType {
	case core.ConfirmationTime:
		return timePattern.MatchString(message)
	default:
		return message != ""
	}
}
