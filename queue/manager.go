package queue

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/agentdispatch/core"
	"github.com/hupe1980/agentdispatch/logging"
)

// DefaultRetentionCap is the per-queue cap on retained finished jobs.
const DefaultRetentionCap = 100

// Options configures a Manager.
type Options struct {
	// RetentionCap bounds the number of finished jobs retained per queue for
	// status queries. Values < 1 fall back to DefaultRetentionCap.
	RetentionCap int

	// Logger receives structured queue diagnostics. Defaults to NoOpLogger.
	Logger logging.Logger
}

// WithRetentionCap overrides the finished-job retention cap.
func WithRetentionCap(cap int) func(o *Options) {
	return func(o *Options) { o.RetentionCap = cap }
}

// WithLogger sets the structured logger.
func WithLogger(l logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = l }
}

// AddJobRequest describes one job submission.
type AddJobRequest struct {
	UserID    string
	SessionID string
	// Type is the job type label carried on the Job record ("find_leads",
	// "research", ...). Informational; routing is by queue name.
	Type  string
	Input core.Input
	// Priority orders the waiting list: higher runs first, FIFO within equal
	// priority. The zero value keeps pure submission order.
	Priority int
	// Delay parks the job until the duration elapses before it becomes
	// eligible for draining.
	Delay time.Duration
}

// Stats summarizes one queue. Completed and Failed are monotonic counters,
// not retention sizes, so they keep counting past eviction.
type Stats struct {
	Waiting   int `json:"waiting"`
	Active    int `json:"active"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Total     int `json:"total"`
}

// Manager owns the per-agent queues and their drain goroutines.
//
// Concurrency model: every registered agent gets a dedicated drain goroutine
// supervised by an errgroup. No two jobs on the same queue ever execute
// simultaneously; jobs across queues interleave freely. The waiting lists and
// retention rings are the only shared mutable state and are guarded by a
// per-queue mutex.
//
// All public methods are safe for concurrent use. Register all executors
// before submitting jobs; registering during active submissions is safe but
// jobs for a not-yet-registered agent are rejected with QueueNotFoundError.
type Manager struct {
	opts Options

	mu     sync.RWMutex
	queues map[string]*agentQueue

	subMu sync.RWMutex
	subs  []*subscriber

	group  *errgroup.Group
	ctx    context.Context
	cancel context.CancelFunc

	closeOnce sync.Once
	logger    logging.Logger
}

// NewManager creates a Manager ready for executor registration.
func NewManager(optFns ...func(o *Options)) *Manager {
	opts := Options{
		RetentionCap: DefaultRetentionCap,
		Logger:       logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.RetentionCap < 1 {
		opts.RetentionCap = DefaultRetentionCap
	}

	ctx, cancel := context.WithCancel(context.Background())
	group, gctx := errgroup.WithContext(ctx)

	return &Manager{
		opts:   opts,
		queues: make(map[string]*agentQueue),
		group:  group,
		ctx:    gctx,
		cancel: cancel,
		logger: opts.Logger,
	}
}

// Register creates the queue for the executor's agent name and starts its
// drain goroutine. Registering the same name twice replaces the executor but
// keeps the existing queue and its bookkeeping.
func (m *Manager) Register(exec core.Executor) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if q, ok := m.queues[exec.Name()]; ok {
		q.setExecutor(exec)
		return
	}

	q := newAgentQueue(exec.Name(), exec, m)
	m.queues[exec.Name()] = q
	m.group.Go(func() error {
		q.run(m.ctx)
		return nil
	})
	m.logger.Info("queue registered", "agent", exec.Name())
}

// Agents returns the registered queue names.
func (m *Manager) Agents() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.queues))
	for name := range m.queues {
		names = append(names, name)
	}
	return names
}

// Executor returns the executor registered for the agent, if any.
func (m *Manager) Executor(agentName string) (core.Executor, bool) {
	q, ok := m.queue(agentName)
	if !ok {
		return nil, false
	}
	return q.executor(), true
}

// AddJob validates and enqueues a job for the named agent, returning the new
// job id. It returns immediately after bookkeeping; it never waits for
// execution. Unknown agent names fail with *core.QueueNotFoundError, invalid
// inputs with *core.InvalidInputError.
func (m *Manager) AddJob(agentName string, req AddJobRequest) (string, error) {
	q, ok := m.queue(agentName)
	if !ok {
		return "", &core.QueueNotFoundError{Agent: agentName}
	}
	if err := req.Input.Validate(); err != nil {
		return "", err
	}

	job := &core.Job{
		ID:        core.NewID(),
		Agent:     agentName,
		Type:      req.Type,
		UserID:    req.UserID,
		SessionID: req.SessionID,
		Input:     req.Input.Clone(),
		Status:    core.StatusWaiting,
		Priority:  req.Priority,
		CreatedAt: time.Now().UTC(),
	}

	// Snapshot before enqueueing: the drain goroutine may claim the job the
	// moment it hits the waiting list.
	snapshot := *job.Clone()

	if req.Delay > 0 {
		q.addDelayed(job, req.Delay)
	} else {
		q.enqueue(job)
	}

	m.publish(core.JobAdded{Job: snapshot, Queue: agentName, Timestamp: time.Now().UTC()})
	m.logger.Debug("job added", "agent", agentName, "job_id", job.ID, "type", req.Type)
	return job.ID, nil
}

// GetJobStatus returns a snapshot of the job, searching the active slot, the
// finished retention ring and the waiting/delayed lists, since a job may
// legitimately sit in any of them depending on timing. The second return is
// false when the job is unknown (bad id, unknown queue, or evicted from
// retention). Terminal snapshots are immutable: repeated calls return the
// identical record.
func (m *Manager) GetJobStatus(jobID, agentName string) (*core.Job, bool) {
	q, ok := m.queue(agentName)
	if !ok {
		return nil, false
	}
	return q.jobStatus(jobID)
}

// GetQueueStats reports counters for the named queue.
func (m *Manager) GetQueueStats(agentName string) (Stats, error) {
	q, ok := m.queue(agentName)
	if !ok {
		return Stats{}, &core.QueueNotFoundError{Agent: agentName}
	}
	return q.stats(), nil
}

// RemoveJob drops a still-waiting (or delayed) job from bookkeeping, or
// requests cooperative cancellation of the active job. Cancellation of an
// active job is best-effort: the executor may ignore it and run to its
// normal terminal state. Returns false for unknown or already finished jobs.
func (m *Manager) RemoveJob(jobID, agentName string) bool {
	q, ok := m.queue(agentName)
	if !ok {
		return false
	}
	return q.remove(jobID)
}

// PauseQueue stops the named queue from draining further waiting jobs. The
// currently active job, if any, runs to completion. Submissions remain
// accepted and accumulate.
func (m *Manager) PauseQueue(agentName string) error {
	q, ok := m.queue(agentName)
	if !ok {
		return &core.QueueNotFoundError{Agent: agentName}
	}
	q.setPaused(true)
	m.logger.Info("queue paused", "agent", agentName)
	return nil
}

// ResumeQueue resumes draining of a paused queue.
func (m *Manager) ResumeQueue(agentName string) error {
	q, ok := m.queue(agentName)
	if !ok {
		return &core.QueueNotFoundError{Agent: agentName}
	}
	q.setPaused(false)
	m.logger.Info("queue resumed", "agent", agentName)
	return nil
}

// Subscribe registers a lifecycle event listener and returns its channel plus
// an unsubscribe function. The channel is never closed; stop consuming after
// calling unsubscribe. buffer sizes the channel (values < 1 default to 16).
//
// Delivery: JobCompleted/JobFailed block until the subscriber accepts them
// (or unsubscribes), which stalls only the emitting queue's drain goroutine.
// JobAdded/JobProgress are dropped when the subscriber's buffer is full.
func (m *Manager) Subscribe(buffer int) (<-chan core.Event, func()) {
	if buffer < 1 {
		buffer = 16
	}
	sub := &subscriber{ch: make(chan core.Event, buffer), done: make(chan struct{})}

	m.subMu.Lock()
	m.subs = append(m.subs, sub)
	m.subMu.Unlock()

	unsubscribe := func() {
		m.subMu.Lock()
		for i, s := range m.subs {
			if s == sub {
				m.subs = append(m.subs[:i], m.subs[i+1:]...)
				break
			}
		}
		m.subMu.Unlock()
		sub.close()
	}
	return sub.ch, unsubscribe
}

// Close stops all drain goroutines and detaches subscribers. Active jobs are
// cancelled cooperatively via their contexts. Close is idempotent.
func (m *Manager) Close() error {
	var err error
	m.closeOnce.Do(func() {
		m.cancel()

		// Detach subscribers before waiting on the drain goroutines: one of
		// them may be blocked publishing a terminal event to a subscriber
		// that stopped consuming, and only the closed done channel releases
		// that send.
		m.subMu.Lock()
		subs := m.subs
		m.subs = nil
		m.subMu.Unlock()
		for _, sub := range subs {
			sub.close()
		}

		err = m.group.Wait()
	})
	return err
}

func (m *Manager) queue(agentName string) (*agentQueue, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.queues[agentName]
	return q, ok
}

// publish fans an event out to all subscribers. Terminal events block until
// accepted; everything else is best-effort.
func (m *Manager) publish(ev core.Event) {
	m.subMu.RLock()
	subs := make([]*subscriber, len(m.subs))
	copy(subs, m.subs)
	m.subMu.RUnlock()

	_, terminal := ev.(core.JobCompleted)
	if !terminal {
		_, terminal = ev.(core.JobFailed)
	}

	for _, sub := range subs {
		if terminal {
			select {
			case sub.ch <- ev:
			case <-sub.done:
			}
			continue
		}
		select {
		case sub.ch <- ev:
		case <-sub.done:
		default:
			m.logger.Debug("event dropped for slow subscriber", "job_id", ev.EventJobID(), "queue", ev.EventQueue())
		}
	}
}

type subscriber struct {
	ch   chan core.Event
	done chan struct{}
	once sync.Once
}

func (s *subscriber) close() { s.once.Do(func() { close(s.done) }) }
