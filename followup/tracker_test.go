package followup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentdispatch/core"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestTracker(ttl time.Duration) (*Tracker, *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	return NewTracker(WithTTL(ttl), WithClock(clock.Now)), clock
}

func TestCheckWithoutEntry(t *testing.T) {
	tr, _ := newTestTracker(DefaultTTL)
	assert.Nil(t, tr.Check("u1", "3pm works"))
}

func TestSetAndCheck(t *testing.T) {
	tr, _ := newTestTracker(DefaultTTL)
	require.NoError(t, tr.Set("u1", "echo", core.ConfirmationTime, "schedule a call with Dana", "job-1"))

	ctx := tr.Check("u1", "3pm works for me")
	require.NotNil(t, ctx)
	assert.Equal(t, "echo", ctx.Agent)
	assert.Equal(t, "job-1", ctx.JobID)
	assert.Equal(t, "schedule a call with Dana", ctx.OriginalRequest)

	// Another user's message never matches.
	assert.Nil(t, tr.Check("u2", "3pm works for me"))
}

func TestCheckDoesNotConsume(t *testing.T) {
	tr, _ := newTestTracker(DefaultTTL)
	require.NoError(t, tr.Set("u1", "echo", core.ConfirmationTime, "req", "job-1"))

	require.NotNil(t, tr.Check("u1", "10:30 am"))
	require.NotNil(t, tr.Check("u1", "10:30 am"), "entry must survive until Consume")

	tr.Consume("u1")
	assert.Nil(t, tr.Check("u1", "10:30 am"))
	assert.Zero(t, tr.Len())
}

func TestShapeMismatchLeavesEntryAlive(t *testing.T) {
	tr, _ := newTestTracker(DefaultTTL)
	require.NoError(t, tr.Set("u1", "echo", core.ConfirmationTime, "req", "job-1"))

	assert.Nil(t, tr.Check("u1", "what was that about?"))
	assert.Equal(t, 1, tr.Len())
	assert.NotNil(t, tr.Check("u1", "ok, 4pm then"))
}

func TestExpiry(t *testing.T) {
	tr, clock := newTestTracker(10 * time.Minute)
	require.NoError(t, tr.Set("u1", "echo", core.ConfirmationTime, "req", "job-1"))

	clock.Advance(9 * time.Minute)
	require.NotNil(t, tr.Check("u1", "3pm"), "entry must match before the TTL elapses")

	clock.Advance(2 * time.Minute)
	assert.Nil(t, tr.Check("u1", "3pm"), "entry must be gone past the TTL")
	assert.Zero(t, tr.Len(), "expired entry is deleted on read")
}

func TestSetRejectsWhilePending(t *testing.T) {
	tr, clock := newTestTracker(10 * time.Minute)
	require.NoError(t, tr.Set("u1", "echo", core.ConfirmationTime, "first", "job-1"))

	err := tr.Set("u1", "echo", core.ConfirmationTime, "second", "job-2")
	require.ErrorIs(t, err, ErrConfirmationPending)

	// The original entry is untouched.
	ctx := tr.Check("u1", "3pm")
	require.NotNil(t, ctx)
	assert.Equal(t, "job-1", ctx.JobID)

	// An expired leftover is replaced, not rejected.
	clock.Advance(11 * time.Minute)
	require.NoError(t, tr.Set("u1", "echo", core.ConfirmationTime, "third", "job-3"))
	ctx = tr.Check("u1", "3pm")
	require.NotNil(t, ctx)
	assert.Equal(t, "job-3", ctx.JobID)
}

func TestUnknownConfirmationTypeAcceptsAnyText(t *testing.T) {
	tr, _ := newTestTracker(DefaultTTL)
	require.NoError(t, tr.Set("u1", "sage", core.ConfirmationType("choice"), "req", "job-1"))

	assert.Nil(t, tr.Check("u1", ""))
	assert.NotNil(t, tr.Check("u1", "the second option"))
}

func TestTimeShapeMatching(t *testing.T) {
	for _, tt := range []struct {
		message string
		match   bool
	}{
		{"3pm", true},
		{"10:30", true},
		{"10:30 AM", true},
		{"let's do 4 pm tomorrow", true},
		{"sounds good", false},
		{"maybe later", false},
		{"", false},
	} {
		assert.Equal(t, tt.match, matchesShape(core.ConfirmationTime, tt.message), "message %q", tt.message)
	}
}
