package core

import "time"

// ChatInput is an inbound user message handed to the orchestrator.
type ChatInput struct {
	UserID    string
	SessionID string // optional; resolved or created by the store
	Message   string
	Timestamp time.Time
}

// ChatMessage is an assistant-authored message delivered to a user.
type ChatMessage struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"` // "assistant"
	Agent     string    `json:"agent,omitempty"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// NewChatMessage builds an assistant message authored by the given agent.
func NewChatMessage(agent, content string) ChatMessage {
	return ChatMessage{
		ID:        NewID(),
		Role:      "assistant",
		Agent:     agent,
		Content:   content,
		Timestamp: time.Now().UTC(),
	}
}

// ProgressUpdate is the client-facing projection of a JobProgress event.
type ProgressUpdate struct {
	JobID     string    `json:"job_id"`
	Agent     string    `json:"agent"`
	Progress  int       `json:"progress"`
	Stage     string    `json:"stage,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// TransportBridge abstracts delivery of chat and progress traffic to the
// requesting client (websocket, SSE, push; the host decides).
//
// Delivery semantics are fire-and-forget, at-most-once: implementations must
// not block the caller for long and no acknowledgment or retry contract is
// required of the core. Lost deliveries are acceptable; durable records go
// through the Store instead.
type TransportBridge interface {
	// SendToUser delivers an arbitrary named event payload (typing signals,
	// chat errors) to all of the user's connected clients.
	SendToUser(userID, event string, payload map[string]any)
	// SendChatMessage delivers an assistant chat message.
	SendChatMessage(userID string, msg ChatMessage)
	// SendJobProgress delivers a job progress update.
	SendJobProgress(userID string, update ProgressUpdate)
}
