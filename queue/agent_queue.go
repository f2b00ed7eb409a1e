package queue

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/agentdispatch/core"
)

// agentQueue is the per-agent scheduling unit: an ordered waiting list, a
// single in-flight slot and a bounded ring of finished jobs. All fields
// behind mu; the drain loop is the only goroutine that executes jobs.
type agentQueue struct {
	name string
	mgr  *Manager

	mu           sync.Mutex
	exec         core.Executor
	waiting      []*core.Job
	delayed      map[string]*delayedJob
	active       *core.Job
	activeCancel context.CancelFunc
	finished     map[string]*core.Job
	finishedIDs  []string // insertion order, oldest first
	completed    int
	failed       int
	paused       bool

	// wake has capacity 1 so repeated signals coalesce; the drain loop
	// re-checks the waiting list after every job anyway.
	wake chan struct{}
}

type delayedJob struct {
	job   *core.Job
	timer *time.Timer
}

func newAgentQueue(name string, exec core.Executor, mgr *Manager) *agentQueue {
	return &agentQueue{
		name:     name,
		mgr:      mgr,
		exec:     exec,
		delayed:  make(map[string]*delayedJob),
		finished: make(map[string]*core.Job),
		wake:     make(chan struct{}, 1),
	}
}

func (q *agentQueue) executor() core.Executor {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.exec
}

func (q *agentQueue) setExecutor(exec core.Executor) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.exec = exec
}

// enqueue inserts the job into the waiting list: higher priority first,
// submission order within equal priority.
func (q *agentQueue) enqueue(job *core.Job) {
	q.mu.Lock()
	idx := len(q.waiting)
	for idx > 0 && q.waiting[idx-1].Priority < job.Priority {
		idx--
	}
	q.waiting = append(q.waiting, nil)
	copy(q.waiting[idx+1:], q.waiting[idx:])
	q.waiting[idx] = job
	q.mu.Unlock()

	q.signal()
}

// addDelayed parks the job until the delay elapses, then moves it into the
// waiting list under the normal priority rule.
func (q *agentQueue) addDelayed(job *core.Job, delay time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()
	d := &delayedJob{job: job}
	d.timer = time.AfterFunc(delay, func() {
		q.mu.Lock()
		if _, ok := q.delayed[job.ID]; !ok { // removed while parked
			q.mu.Unlock()
			return
		}
		delete(q.delayed, job.ID)
		q.mu.Unlock()
		q.enqueue(job)
	})
	q.delayed[job.ID] = d
}

func (q *agentQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *agentQueue) setPaused(paused bool) {
	q.mu.Lock()
	q.paused = paused
	q.mu.Unlock()
	if !paused {
		q.signal()
	}
}

// run is the drain loop. It pops and executes jobs strictly one at a time
// until the waiting list is empty or the queue is paused, then sleeps until
// the next wake signal. An executor that blocks forever therefore stalls
// only this queue.
func (q *agentQueue) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-q.wake:
		}
		for {
			job, jobCtx, ok := q.startNext(ctx)
			if !ok {
				break
			}
			q.execute(jobCtx, job)
			if ctx.Err() != nil {
				return
			}
		}
	}
}

// startNext claims the front of the waiting list as the active job. Returns
// false when the queue is empty, paused or already executing.
func (q *agentQueue) startNext(ctx context.Context) (*core.Job, context.Context, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.paused || q.active != nil || len(q.waiting) == 0 {
		return nil, nil, false
	}

	job := q.waiting[0]
	q.waiting = q.waiting[1:]

	now := time.Now().UTC()
	job.Status = core.StatusActive
	job.ProcessedAt = &now

	jobCtx, cancel := context.WithCancel(ctx)
	q.active = job
	q.activeCancel = cancel
	return job, jobCtx, true
}

// execute runs one claimed job to a terminal state. A panicking or erroring
// executor never crashes the queue; the failure is captured on the job.
func (q *agentQueue) execute(ctx context.Context, job *core.Job) {
	start := time.Now()

	report := func(progress int, stage string) {
		if progress < 0 {
			progress = 0
		} else if progress > 100 {
			progress = 100
		}
		q.mu.Lock()
		if q.active == job {
			job.Progress = progress
		}
		q.mu.Unlock()

		q.mgr.publish(core.JobProgress{
			JobID:     job.ID,
			Queue:     q.name,
			UserID:    job.UserID,
			Progress:  progress,
			Stage:     stage,
			Timestamp: time.Now().UTC(),
		})
	}

	result, err := q.runExecutor(ctx, job, report)

	q.mu.Lock()
	now := time.Now().UTC()
	job.FinishedAt = &now
	if err != nil {
		job.Status = core.StatusFailed
		job.Error = err.Error()
		q.failed++
	} else {
		job.Status = core.StatusCompleted
		job.Progress = 100
		job.Result = result
		q.completed++
	}
	q.retainLocked(job)
	q.active = nil
	if q.activeCancel != nil {
		q.activeCancel()
		q.activeCancel = nil
	}
	snapshot := *job.Clone()
	q.mu.Unlock()

	if err != nil {
		execErr := &core.JobExecutionError{JobID: job.ID, Agent: q.name, Err: err}
		q.mgr.logger.Warn("job failed", "agent", q.name, "job_id", job.ID, "error", execErr.Error(), "duration", time.Since(start))
		q.mgr.publish(core.JobFailed{Job: snapshot, Queue: q.name, Error: err.Error(), Timestamp: now})
		return
	}
	q.mgr.logger.Info("job completed", "agent", q.name, "job_id", job.ID, "duration", time.Since(start))
	q.mgr.publish(core.JobCompleted{Job: snapshot, Queue: q.name, Timestamp: now})
}

// runExecutor isolates executor panics so they surface as failed jobs.
func (q *agentQueue) runExecutor(ctx context.Context, job *core.Job, report core.ProgressFunc) (result *core.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("executor panic: %v", r)
		}
	}()

	q.mu.Lock()
	exec := q.exec
	q.mu.Unlock()

	res, err := exec.ExecuteJob(ctx, job.Clone(), report)
	if err != nil {
		return nil, err
	}
	if res == nil {
		// Normalize a nil success into an empty result so completion
		// handling never sees a completed job without one.
		res = &core.Result{Success: true}
	}
	cp := res.Clone()
	return &cp, nil
}

// retainLocked appends the finished job to the bounded retention ring,
// evicting the oldest record past the cap. Caller holds mu.
func (q *agentQueue) retainLocked(job *core.Job) {
	q.finished[job.ID] = job
	q.finishedIDs = append(q.finishedIDs, job.ID)
	for len(q.finishedIDs) > q.mgr.opts.RetentionCap {
		oldest := q.finishedIDs[0]
		q.finishedIDs = q.finishedIDs[1:]
		delete(q.finished, oldest)
	}
}

func (q *agentQueue) jobStatus(jobID string) (*core.Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.active != nil && q.active.ID == jobID {
		return q.active.Clone(), true
	}
	if job, ok := q.finished[jobID]; ok {
		return job.Clone(), true
	}
	for _, job := range q.waiting {
		if job.ID == jobID {
			return job.Clone(), true
		}
	}
	if d, ok := q.delayed[jobID]; ok {
		return d.job.Clone(), true
	}
	return nil, false
}

func (q *agentQueue) stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	s := Stats{
		Waiting:   len(q.waiting) + len(q.delayed),
		Completed: q.completed,
		Failed:    q.failed,
	}
	if q.active != nil {
		s.Active = 1
	}
	s.Total = s.Waiting + s.Active + s.Completed + s.Failed
	return s
}

// remove drops a waiting/delayed job or cancels the active one. Finished
// jobs are immutable history and cannot be removed.
func (q *agentQueue) remove(jobID string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, job := range q.waiting {
		if job.ID == jobID {
			q.waiting = append(q.waiting[:i], q.waiting[i+1:]...)
			return true
		}
	}
	if d, ok := q.delayed[jobID]; ok {
		d.timer.Stop()
		delete(q.delayed, jobID)
		return true
	}
	if q.active != nil && q.active.ID == jobID {
		if q.activeCancel != nil {
			q.activeCancel()
		}
		return true
	}
	return false
}
