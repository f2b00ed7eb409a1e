// Package transport houses concrete implementations of core.TransportBridge.
// The interface itself lives in core so higher level packages depend only on
// the contract; hosts typically supply a websocket or SSE bridge and use the
// in-memory recorder for tests and local development.
package transport

import (
	"sync"

	"github.com/hupe1980/agentdispatch/core"
)

// UserEvent is one recorded SendToUser call.
type UserEvent struct {
	UserID  string
	Event   string
	Payload map[string]any
}

// Recorder is a volatile TransportBridge capturing all traffic in memory.
// Safe for concurrent use. Delivery is fire-and-forget and never blocks.
type Recorder struct {
	mu       sync.Mutex
	events   []UserEvent
	messages map[string][]core.ChatMessage
	progress map[string][]core.ProgressUpdate

	// notify, when set, receives a signal after every recorded send so tests
	// can wait for traffic without polling.
	notify chan struct{}
}

var _ core.TransportBridge = (*Recorder)(nil)

// NewRecorder constructs an empty recording bridge.
func NewRecorder() *Recorder {
	return &Recorder{
		messages: make(map[string][]core.ChatMessage),
		progress: make(map[string][]core.ProgressUpdate),
	}
}

// Notify returns a channel signalled after every recorded send. The channel
// is buffered; signals coalesce when nobody is waiting.
func (r *Recorder) Notify() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.notify == nil {
		r.notify = make(chan struct{}, 64)
	}
	return r.notify
}

func (r *Recorder) signal() {
	if r.notify == nil {
		return
	}
	select {
	case r.notify <- struct{}{}:
	default:
	}
}

// SendToUser records a named event payload.
func (r *Recorder) SendToUser(userID, event string, payload map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, UserEvent{UserID: userID, Event: event, Payload: payload})
	r.signal()
}

// SendChatMessage records an assistant chat message.
func (r *Recorder) SendChatMessage(userID string, msg core.ChatMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages[userID] = append(r.messages[userID], msg)
	r.signal()
}

// SendJobProgress records a progress update.
func (r *Recorder) SendJobProgress(userID string, update core.ProgressUpdate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress[userID] = append(r.progress[userID], update)
	r.signal()
}

// Events returns a copy of all recorded SendToUser calls.
func (r *Recorder) Events() []UserEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]UserEvent, len(r.events))
	copy(out, r.events)
	return out
}

// Messages returns a copy of the chat messages delivered to the user.
func (r *Recorder) Messages(userID string) []core.ChatMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	msgs := r.messages[userID]
	out := make([]core.ChatMessage, len(msgs))
	copy(out, msgs)
	return out
}

// Progress returns a copy of the progress updates delivered to the user.
func (r *Recorder) Progress(userID string) []core.ProgressUpdate {
	r.mu.Lock()
	defer r.mu.Unlock()
	ups := r.progress[userID]
	out := make([]core.ProgressUpdate, len(ups))
	copy(out, ups)
	return out
}
