package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	c := Default()
	assert.Equal(t, 100, c.RetentionCap)
	assert.Equal(t, 10*time.Minute, c.FollowUpTTL)
	assert.Equal(t, 64, c.EventBuffer)
	assert.Equal(t, "prism", c.SelfAgent)
	assert.Equal(t, "info", c.LogLevel)
	assert.Equal(t, "json", c.LogFormat)
}

func TestLoadDefaults(t *testing.T) {
	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("AGENTDISPATCH_RETENTION_CAP", "25")
	t.Setenv("AGENTDISPATCH_FOLLOWUP_TTL", "5m")
	t.Setenv("AGENTDISPATCH_SELF_AGENT", "atlas")
	t.Setenv("AGENTDISPATCH_LOG_LEVEL", "debug")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 25, c.RetentionCap)
	assert.Equal(t, 5*time.Minute, c.FollowUpTTL)
	assert.Equal(t, "atlas", c.SelfAgent)
	assert.Equal(t, "debug", c.LogLevel)
	assert.Equal(t, 64, c.EventBuffer)
}

func TestLoadInvalidValue(t *testing.T) {
	t.Setenv("AGENTDISPATCH_RETENTION_CAP", "not-a-number")
	_, err := Load()
	require.Error(t, err)
}
