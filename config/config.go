// Package config loads runtime tunables from the environment. The library's
// functional options always win over the environment; Load exists so hosts
// can configure a Dispatcher entirely through deployment variables.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config captures the environment-tunable knobs of a Dispatcher.
type Config struct {
	// RetentionCap bounds finished jobs retained per queue.
	RetentionCap int `env:"AGENTDISPATCH_RETENTION_CAP" envDefault:"100"`

	// FollowUpTTL is how long a pending confirmation stays matchable.
	FollowUpTTL time.Duration `env:"AGENTDISPATCH_FOLLOWUP_TTL" envDefault:"10m"`

	// EventBuffer sizes the orchestrator's queue event subscription.
	EventBuffer int `env:"AGENTDISPATCH_EVENT_BUFFER" envDefault:"64"`

	// SelfAgent is the assistant's own dispatch key (no delegation).
	SelfAgent string `env:"AGENTDISPATCH_SELF_AGENT" envDefault:"prism"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `env:"AGENTDISPATCH_LOG_LEVEL" envDefault:"info"`

	// LogFormat is json or text.
	LogFormat string `env:"AGENTDISPATCH_LOG_FORMAT" envDefault:"json"`
}

// Default returns the configuration with all defaults applied and no
// environment consulted.
func Default() Config {
	return Config{
		RetentionCap: 100,
		FollowUpTTL:  10 * time.Minute,
		EventBuffer:  64,
		SelfAgent:    "prism",
		LogLevel:     "info",
		LogFormat:    "json",
	}
}

// Load parses the configuration from the process environment.
func Load() (Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	return c, nil
}
