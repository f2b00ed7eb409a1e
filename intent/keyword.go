// Package intent provides a keyword-rule implementation of
// core.IntentClassifier. It keeps the module runnable without an LLM:
// deployments typically swap in a model-backed classifier, while tests and
// examples use the rules. An optional model.Generator upgrades direct
// (non-delegated) responses from canned text to generated ones.
package intent

import (
	"context"
	"regexp"
	"strings"

	"github.com/hupe1980/agentdispatch/core"
	"github.com/hupe1980/agentdispatch/model"
)

// Rule maps trigger keywords to a delegated agent and job type.
type Rule struct {
	// Keywords trigger the rule when any of them occurs in the message
	// (case-insensitive substring match).
	Keywords []string
	Agent    string
	Type     string
}

// DefaultRules returns the built-in rule set covering the canonical agents.
func DefaultRules() []Rule {
	return []Rule{
		{Keywords: []string{"find leads", "lead", "prospects"}, Agent: "falcon", Type: "find_leads"},
		{Keywords: []string{"research", "look into", "tell me about", "investigate"}, Agent: "sage", Type: "research"},
		{Keywords: []string{"email", "reply to", "write back", "outreach"}, Agent: "echo", Type: "compose_email"},
	}
}

// locationPattern extracts "in <place>" phrases into the intent payload.
var locationPattern = regexp.MustCompile(`(?i)\bin\s+([A-Z][\w]*(?:\s+[A-Z][\w]*)?)`)

// Options configures the keyword classifier.
type Options struct {
	// Rules overrides DefaultRules.
	Rules []Rule
	// SelfAgent is the dispatch key returned when no rule matches.
	// Defaults to "prism".
	SelfAgent string
	// Generator, when set, produces direct responses for unmatched
	// messages; otherwise a canned response is used.
	Generator model.Generator
	// Instructions is the system prompt for generated direct responses.
	Instructions string
}

// WithRules overrides the rule set.
func WithRules(rules []Rule) func(o *Options) {
	return func(o *Options) { o.Rules = rules }
}

// WithSelfAgent overrides the no-delegation dispatch key.
func WithSelfAgent(name string) func(o *Options) {
	return func(o *Options) { o.SelfAgent = name }
}

// WithGenerator wires a text generator for direct responses.
func WithGenerator(g model.Generator) func(o *Options) {
	return func(o *Options) { o.Generator = g }
}

// Classifier is a rule-based core.IntentClassifier.
type Classifier struct {
	opts Options
}

var _ core.IntentClassifier = (*Classifier)(nil)

// NewClassifier builds a classifier with the default rules unless overridden.
func NewClassifier(optFns ...func(o *Options)) *Classifier {
	opts := Options{
		Rules:        DefaultRules(),
		SelfAgent:    "prism",
		Instructions: "You are a concise, friendly assistant. Answer the user's message directly.",
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Classifier{opts: opts}
}

// ProcessMessage matches the message against the rules. Unmatched messages
// produce a self-agent intent with a direct response.
func (c *Classifier) ProcessMessage(ctx context.Context, text, userID, sessionID string) (*core.Classification, error) {
	lower := strings.ToLower(text)

	for _, rule := range c.opts.Rules {
		for _, kw := range rule.Keywords {
			if !strings.Contains(lower, strings.ToLower(kw)) {
				continue
			}
			payload := map[string]string{"keyword": kw}
			if m := locationPattern.FindStringSubmatch(text); m != nil {
				payload["location"] = m[1]
			}
			return &core.Classification{
				Intent: core.Intent{
					Type:          rule.Type,
					RequiredAgent: rule.Agent,
					Confidence:    0.9,
					Payload:       payload,
				},
			}, nil
		}
	}

	response := "Got it. Let me know if you'd like me to find leads, research something, or draft an email."
	if c.opts.Generator != nil {
		generated, err := c.opts.Generator.Generate(ctx, model.Request{
			Instructions: c.opts.Instructions,
			Prompt:       text,
		})
		if err == nil && generated != "" {
			response = generated
		}
	}

	return &core.Classification{
		Intent: core.Intent{
			Type:          "conversation",
			RequiredAgent: c.opts.SelfAgent,
			Confidence:    0.5,
		},
		Response: response,
	}, nil
}
