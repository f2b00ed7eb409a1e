package core

import "context"

// Intent is the classification result of a user message. RequiredAgent is
// the single dispatch key: when it equals the orchestrator's own assistant
// name no delegation occurs and the message is answered directly.
type Intent struct {
	Type          string            `json:"type"`
	RequiredAgent string            `json:"required_agent"`
	Confidence    float64           `json:"confidence,omitempty"`
	Payload       map[string]string `json:"payload,omitempty"`
}

// Classification bundles the intent with an optional ready-made direct
// response (used when no agent delegation is required).
type Classification struct {
	Intent   Intent
	Response string
}

// IntentClassifier turns raw message text into a routing decision. Typically
// backed by an LLM; the intent package ships a keyword-rule default so the
// module runs without one.
type IntentClassifier interface {
	ProcessMessage(ctx context.Context, text, userID, sessionID string) (*Classification, error)
}
