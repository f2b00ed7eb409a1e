package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentdispatch/core"
	"github.com/hupe1980/agentdispatch/internal/testutil"
)

func leadRequest(userID string) AddJobRequest {
	return AddJobRequest{
		UserID: userID,
		Type:   "find_leads",
		Input:  core.Input{Kind: core.InputLeadSearch, Query: "find leads"},
	}
}

// waitTerminal consumes events until the job reaches a terminal state.
func waitTerminal(t *testing.T, events <-chan core.Event, jobID string) core.Event {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev := <-events:
			switch e := ev.(type) {
			case core.JobCompleted:
				if e.Job.ID == jobID {
					return e
				}
			case core.JobFailed:
				if e.Job.ID == jobID {
					return e
				}
			}
		case <-deadline:
			t.Fatalf("timed out waiting for terminal event of job %s", jobID)
		}
	}
}

func TestAddJobUnknownAgent(t *testing.T) {
	m := NewManager()
	defer func() { _ = m.Close() }()

	_, err := m.AddJob("ghost", leadRequest("u1"))
	require.Error(t, err)
	assert.True(t, core.IsQueueNotFound(err))
}

func TestAddJobInvalidInput(t *testing.T) {
	m := NewManager()
	defer func() { _ = m.Close() }()
	m.Register(testutil.NewStubExecutor("falcon"))

	_, err := m.AddJob("falcon", AddJobRequest{UserID: "u1", Input: core.Input{Kind: core.InputLeadSearch}})
	require.Error(t, err)
	var invalid *core.InvalidInputError
	assert.ErrorAs(t, err, &invalid)
}

// Scenario: a submitted job completes and the terminal event carries the job
// id and owning user.
func TestJobCompletes(t *testing.T) {
	m := NewManager()
	defer func() { _ = m.Close() }()
	m.Register(testutil.NewStubExecutor("falcon").WithResult(&core.Result{Success: true, Summary: "12 leads"}))

	events, unsubscribe := m.Subscribe(16)
	defer unsubscribe()

	jobID, err := m.AddJob("falcon", leadRequest("u1"))
	require.NoError(t, err)
	require.NotEmpty(t, jobID)

	ev := waitTerminal(t, events, jobID)
	completed, ok := ev.(core.JobCompleted)
	require.True(t, ok, "expected completion, got %T", ev)
	assert.Equal(t, "u1", completed.Job.UserID)
	assert.Equal(t, core.StatusCompleted, completed.Job.Status)
	require.NotNil(t, completed.Job.Result)
	assert.Equal(t, "12 leads", completed.Job.Result.Summary)
}

func TestExecutorErrorBecomesFailedJob(t *testing.T) {
	m := NewManager()
	defer func() { _ = m.Close() }()
	m.Register(testutil.NewStubExecutor("falcon").WithError(errors.New("rate limited")))

	events, unsubscribe := m.Subscribe(16)
	defer unsubscribe()

	jobID, err := m.AddJob("falcon", leadRequest("u1"))
	require.NoError(t, err)

	ev := waitTerminal(t, events, jobID)
	failed, ok := ev.(core.JobFailed)
	require.True(t, ok, "expected failure, got %T", ev)
	assert.Equal(t, "rate limited", failed.Error)

	job, found := m.GetJobStatus(jobID, "falcon")
	require.True(t, found)
	assert.Equal(t, core.StatusFailed, job.Status)
	assert.Equal(t, "rate limited", job.Error)
}

func TestExecutorPanicBecomesFailedJob(t *testing.T) {
	m := NewManager()
	defer func() { _ = m.Close() }()

	exec := testutil.NewStubExecutor("falcon")
	exec.Execute = func(context.Context, *core.Job, core.ProgressFunc) (*core.Result, error) {
		panic("boom")
	}
	m.Register(exec)

	events, unsubscribe := m.Subscribe(16)
	defer unsubscribe()

	jobID, err := m.AddJob("falcon", leadRequest("u1"))
	require.NoError(t, err)

	ev := waitTerminal(t, events, jobID)
	failed, ok := ev.(core.JobFailed)
	require.True(t, ok)
	assert.Contains(t, failed.Error, "boom")
}

// Jobs on one queue begin execution in FIFO order and their ProcessedAt
// timestamps are monotonic.
func TestFIFOOrdering(t *testing.T) {
	m := NewManager()
	defer func() { _ = m.Close() }()

	var mu sync.Mutex
	var order []string
	exec := testutil.NewStubExecutor("sage")
	exec.Execute = func(_ context.Context, job *core.Job, _ core.ProgressFunc) (*core.Result, error) {
		mu.Lock()
		order = append(order, job.ID)
		mu.Unlock()
		return &core.Result{Success: true}, nil
	}
	m.Register(exec)

	events, unsubscribe := m.Subscribe(64)
	defer unsubscribe()

	const n = 10
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		id, err := m.AddJob("sage", AddJobRequest{
			UserID: "u1",
			Type:   "research",
			Input:  core.Input{Kind: core.InputResearch, Query: fmt.Sprintf("topic %d", i)},
		})
		require.NoError(t, err)
		ids = append(ids, id)
	}
	for _, id := range ids {
		waitTerminal(t, events, id)
	}

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, ids, order, "execution order must match submission order")

	var prev time.Time
	for _, id := range ids {
		job, found := m.GetJobStatus(id, "sage")
		require.True(t, found)
		require.NotNil(t, job.ProcessedAt)
		assert.False(t, job.ProcessedAt.Before(prev), "ProcessedAt must be monotonic")
		prev = *job.ProcessedAt
	}
}

// A blocked queue never delays another agent's queue.
func TestQueueIsolation(t *testing.T) {
	m := NewManager()
	defer func() { _ = m.Close() }()

	blocked := testutil.NewStubExecutor("falcon")
	blocked.Block = make(chan struct{})
	m.Register(blocked)
	m.Register(testutil.NewStubExecutor("sage"))

	events, unsubscribe := m.Subscribe(16)
	defer unsubscribe()

	_, err := m.AddJob("falcon", leadRequest("u1"))
	require.NoError(t, err)

	sageID, err := m.AddJob("sage", AddJobRequest{
		UserID: "u1",
		Type:   "research",
		Input:  core.Input{Kind: core.InputResearch, Query: "topic"},
	})
	require.NoError(t, err)

	waitTerminal(t, events, sageID)
	close(blocked.Block)
}

// The second of two back-to-back jobs is waiting while the first is active.
func TestSecondJobWaitsWhileFirstActive(t *testing.T) {
	m := NewManager()
	defer func() { _ = m.Close() }()

	exec := testutil.NewStubExecutor("sage")
	exec.Block = make(chan struct{})
	m.Register(exec)

	first, err := m.AddJob("sage", AddJobRequest{UserID: "u1", Type: "research", Input: core.Input{Kind: core.InputResearch, Query: "a"}})
	require.NoError(t, err)
	second, err := m.AddJob("sage", AddJobRequest{UserID: "u1", Type: "research", Input: core.Input{Kind: core.InputResearch, Query: "b"}})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		job, found := m.GetJobStatus(first, "sage")
		return found && job.Status == core.StatusActive
	}, 2*time.Second, 5*time.Millisecond)

	job, found := m.GetJobStatus(second, "sage")
	require.True(t, found)
	assert.Equal(t, core.StatusWaiting, job.Status)

	close(exec.Block)
}

// Once terminal, repeated status lookups return the identical record.
func TestTerminalRecordIsImmutable(t *testing.T) {
	m := NewManager()
	defer func() { _ = m.Close() }()
	m.Register(testutil.NewStubExecutor("falcon").WithResult(&core.Result{Success: true, Summary: "done"}))

	events, unsubscribe := m.Subscribe(16)
	defer unsubscribe()

	jobID, err := m.AddJob("falcon", leadRequest("u1"))
	require.NoError(t, err)
	waitTerminal(t, events, jobID)

	first, found := m.GetJobStatus(jobID, "falcon")
	require.True(t, found)

	// Mutating the returned copy must not leak into the stored record.
	first.Result.Summary = "tampered"
	first.Error = "tampered"

	second, found := m.GetJobStatus(jobID, "falcon")
	require.True(t, found)
	assert.Equal(t, "done", second.Result.Summary)
	assert.Empty(t, second.Error)
	assert.Equal(t, core.StatusCompleted, second.Status)
}

// Retention is bounded: the oldest finished job is evicted past the cap.
func TestBoundedRetention(t *testing.T) {
	const cap = 5
	m := NewManager(WithRetentionCap(cap))
	defer func() { _ = m.Close() }()
	m.Register(testutil.NewStubExecutor("falcon"))

	events, unsubscribe := m.Subscribe(64)
	defer unsubscribe()

	ids := make([]string, 0, cap+1)
	for i := 0; i < cap+1; i++ {
		id, err := m.AddJob("falcon", leadRequest("u1"))
		require.NoError(t, err)
		ids = append(ids, id)
	}
	for _, id := range ids {
		waitTerminal(t, events, id)
	}

	_, found := m.GetJobStatus(ids[0], "falcon")
	assert.False(t, found, "earliest job should have been evicted")
	for _, id := range ids[1:] {
		_, found := m.GetJobStatus(id, "falcon")
		assert.True(t, found, "job %s should still be retained", id)
	}

	stats, err := m.GetQueueStats("falcon")
	require.NoError(t, err)
	assert.Equal(t, cap+1, stats.Completed, "completed counter keeps counting past eviction")
}

func TestRemoveWaitingJob(t *testing.T) {
	m := NewManager()
	defer func() { _ = m.Close() }()

	exec := testutil.NewStubExecutor("falcon")
	exec.Block = make(chan struct{})
	m.Register(exec)

	first, err := m.AddJob("falcon", leadRequest("u1"))
	require.NoError(t, err)
	second, err := m.AddJob("falcon", leadRequest("u1"))
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		job, found := m.GetJobStatus(first, "falcon")
		return found && job.Status == core.StatusActive
	}, 2*time.Second, 5*time.Millisecond)

	assert.True(t, m.RemoveJob(second, "falcon"))
	_, found := m.GetJobStatus(second, "falcon")
	assert.False(t, found)

	assert.False(t, m.RemoveJob("unknown", "falcon"))
	close(exec.Block)
}

// Removing the active job cancels its context; a cooperative executor
// surfaces the cancellation as a failure.
func TestRemoveActiveJobCancelsContext(t *testing.T) {
	m := NewManager()
	defer func() { _ = m.Close() }()

	exec := testutil.NewStubExecutor("falcon")
	exec.Block = make(chan struct{}) // never closed; only ctx releases it
	m.Register(exec)

	events, unsubscribe := m.Subscribe(16)
	defer unsubscribe()

	jobID, err := m.AddJob("falcon", leadRequest("u1"))
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		job, found := m.GetJobStatus(jobID, "falcon")
		return found && job.Status == core.StatusActive
	}, 2*time.Second, 5*time.Millisecond)

	assert.True(t, m.RemoveJob(jobID, "falcon"))

	ev := waitTerminal(t, events, jobID)
	failed, ok := ev.(core.JobFailed)
	require.True(t, ok)
	assert.Contains(t, failed.Error, "context canceled")
}

func TestPauseAndResume(t *testing.T) {
	m := NewManager()
	defer func() { _ = m.Close() }()
	m.Register(testutil.NewStubExecutor("falcon"))

	require.NoError(t, m.PauseQueue("falcon"))

	jobID, err := m.AddJob("falcon", leadRequest("u1"))
	require.NoError(t, err)

	// Paused queues accept jobs but do not drain them.
	time.Sleep(50 * time.Millisecond)
	job, found := m.GetJobStatus(jobID, "falcon")
	require.True(t, found)
	assert.Equal(t, core.StatusWaiting, job.Status)

	events, unsubscribe := m.Subscribe(16)
	defer unsubscribe()
	require.NoError(t, m.ResumeQueue("falcon"))
	waitTerminal(t, events, jobID)

	assert.Error(t, m.PauseQueue("ghost"))
	assert.Error(t, m.ResumeQueue("ghost"))
}

// Higher priority jobs drain first; equal priority keeps submission order.
func TestPriorityOrdering(t *testing.T) {
	m := NewManager()
	defer func() { _ = m.Close() }()

	var mu sync.Mutex
	var order []string
	exec := testutil.NewStubExecutor("falcon")
	exec.Block = make(chan struct{})
	exec.Execute = func(_ context.Context, job *core.Job, _ core.ProgressFunc) (*core.Result, error) {
		mu.Lock()
		order = append(order, job.Input.Query)
		mu.Unlock()
		return &core.Result{Success: true}, nil
	}
	m.Register(exec)

	events, unsubscribe := m.Subscribe(64)
	defer unsubscribe()

	// The first job occupies the queue while the rest are ordered behind it.
	blockerID, err := m.AddJob("falcon", AddJobRequest{UserID: "u1", Input: core.Input{Kind: core.InputLeadSearch, Query: "blocker"}})
	require.NoError(t, err)
	assert.Eventually(t, func() bool {
		job, found := m.GetJobStatus(blockerID, "falcon")
		return found && job.Status == core.StatusActive
	}, 2*time.Second, 5*time.Millisecond)

	var ids []string
	for _, spec := range []struct {
		query    string
		priority int
	}{
		{"low-1", 0}, {"high", 5}, {"low-2", 0},
	} {
		id, err := m.AddJob("falcon", AddJobRequest{
			UserID:   "u1",
			Input:    core.Input{Kind: core.InputLeadSearch, Query: spec.query},
			Priority: spec.priority,
		})
		require.NoError(t, err)
		ids = append(ids, id)
	}
	close(exec.Block)

	// Terminal events arrive in completion (priority) order, not submission
	// order, so collect them order-insensitively.
	pending := map[string]bool{blockerID: true}
	for _, id := range ids {
		pending[id] = true
	}
	deadline := time.After(3 * time.Second)
	for len(pending) > 0 {
		select {
		case ev := <-events:
			switch e := ev.(type) {
			case core.JobCompleted:
				delete(pending, e.Job.ID)
			case core.JobFailed:
				delete(pending, e.Job.ID)
			}
		case <-deadline:
			t.Fatalf("timed out waiting for terminal events; %d outstanding", len(pending))
		}
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"blocker", "high", "low-1", "low-2"}, order)
}

func TestDelayedJob(t *testing.T) {
	m := NewManager()
	defer func() { _ = m.Close() }()
	m.Register(testutil.NewStubExecutor("falcon"))

	events, unsubscribe := m.Subscribe(16)
	defer unsubscribe()

	req := leadRequest("u1")
	req.Delay = 50 * time.Millisecond
	jobID, err := m.AddJob("falcon", req)
	require.NoError(t, err)

	job, found := m.GetJobStatus(jobID, "falcon")
	require.True(t, found)
	assert.Equal(t, core.StatusWaiting, job.Status)

	waitTerminal(t, events, jobID)
}

func TestQueueStats(t *testing.T) {
	m := NewManager()
	defer func() { _ = m.Close() }()

	exec := testutil.NewStubExecutor("falcon")
	exec.Block = make(chan struct{})
	m.Register(exec)

	first, err := m.AddJob("falcon", leadRequest("u1"))
	require.NoError(t, err)
	_, err = m.AddJob("falcon", leadRequest("u1"))
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		job, found := m.GetJobStatus(first, "falcon")
		return found && job.Status == core.StatusActive
	}, 2*time.Second, 5*time.Millisecond)

	stats, err := m.GetQueueStats("falcon")
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Waiting)
	assert.Equal(t, 1, stats.Active)
	assert.Equal(t, 2, stats.Total)

	close(exec.Block)

	_, err = m.GetQueueStats("ghost")
	assert.True(t, core.IsQueueNotFound(err))
}

func TestProgressEvents(t *testing.T) {
	m := NewManager()
	defer func() { _ = m.Close() }()

	exec := testutil.NewStubExecutor("falcon")
	exec.Execute = func(_ context.Context, _ *core.Job, report core.ProgressFunc) (*core.Result, error) {
		report(-10, "clamped-low")
		report(50, "halfway")
		report(200, "clamped-high")
		return &core.Result{Success: true}, nil
	}
	m.Register(exec)

	events, unsubscribe := m.Subscribe(64)
	defer unsubscribe()

	jobID, err := m.AddJob("falcon", leadRequest("u1"))
	require.NoError(t, err)

	var progress []core.JobProgress
	deadline := time.After(3 * time.Second)
	for {
		var done bool
		select {
		case ev := <-events:
			switch e := ev.(type) {
			case core.JobProgress:
				progress = append(progress, e)
			case core.JobCompleted:
				done = e.Job.ID == jobID
			}
		case <-deadline:
			t.Fatal("timed out")
		}
		if done {
			break
		}
	}

	require.Len(t, progress, 3)
	assert.Equal(t, 0, progress[0].Progress)
	assert.Equal(t, 50, progress[1].Progress)
	assert.Equal(t, 100, progress[2].Progress)
	assert.Equal(t, "u1", progress[1].UserID)
}

// Close must return even when a subscriber stops consuming without
// unsubscribing while terminal events are still being published.
func TestCloseWithStalledSubscriber(t *testing.T) {
	m := NewManager()
	m.Register(testutil.NewStubExecutor("falcon"))

	// Buffer of one and never consumed: the second terminal publish blocks
	// the drain goroutine on the full channel.
	_, unsubscribe := m.Subscribe(1)
	defer unsubscribe()

	for i := 0; i < 3; i++ {
		_, err := m.AddJob("falcon", leadRequest("u1"))
		require.NoError(t, err)
	}

	assert.Eventually(t, func() bool {
		stats, err := m.GetQueueStats("falcon")
		return err == nil && stats.Completed >= 1
	}, 2*time.Second, 5*time.Millisecond)

	closed := make(chan error, 1)
	go func() { closed <- m.Close() }()
	select {
	case err := <-closed:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not return while a non-consuming subscriber was attached")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	m := NewManager()
	m.Register(testutil.NewStubExecutor("falcon"))
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
}
