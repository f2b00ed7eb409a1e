// Package model defines the text generation contract used for contextual
// acknowledgment and completion messages. Provider adapters live in
// sub-packages (model/anthropic, model/openai); both normalize to the same
// Generator interface so the agent adapter does not branch per vendor.
package model

import "context"

// Request captures one normalized generation call.
type Request struct {
	// Instructions is the system prompt framing the assistant's voice.
	Instructions string
	// Prompt is the concrete task prompt (job context, result summary, ...).
	Prompt string
	// MaxTokens bounds the response length; 0 uses the adapter default.
	MaxTokens int64
}

// Generator produces a short piece of assistant text. Errors are expected to
// be handled by the caller with a templated fallback; a Generator failure
// must never surface to an end user as a raw error.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// GeneratorFunc adapts a plain function to the Generator interface.
type GeneratorFunc func(ctx context.Context, req Request) (string, error)

// Generate calls the wrapped function.
func (f GeneratorFunc) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}
