package core

import "time"

// Event is the typed lifecycle notification published by the job queue.
//
// It is a closed sum: JobAdded, JobProgress, JobCompleted and JobFailed are
// the only implementations. Consumers type-switch on the concrete payloads
// instead of matching string event names, so a missing case is a compile-time
// visible gap rather than a silent drop.
//
// Events are transient messages; the queue does not persist them. Terminal
// events (JobCompleted, JobFailed) are delivered reliably to every
// subscriber; JobProgress may be dropped for a subscriber that lags.
type Event interface {
	// EventJobID returns the id of the job the event concerns.
	EventJobID() string
	// EventQueue returns the queue (agent) name the event was emitted from.
	EventQueue() string
	isEvent()
}

// JobAdded is published after a job has been accepted into a queue.
type JobAdded struct {
	Job       Job
	Queue     string
	Timestamp time.Time
}

// JobProgress relays an executor's progress report for the active job.
type JobProgress struct {
	JobID     string
	Queue     string
	UserID    string
	Progress  int // 0-100, clamped by the queue
	Stage     string
	Timestamp time.Time
}

// JobCompleted is published when a job reaches the completed state. Job is a
// terminal snapshot including the executor's result.
type JobCompleted struct {
	Job       Job
	Queue     string
	Timestamp time.Time
}

// JobFailed is published when a job reaches the failed state. Error carries
// the executor's error message; Job is the terminal snapshot.
type JobFailed struct {
	Job       Job
	Queue     string
	Error     string
	Timestamp time.Time
}

func (e JobAdded) EventJobID() string     { return e.Job.ID }
func (e JobAdded) EventQueue() string     { return e.Queue }
func (e JobAdded) isEvent()               {}
func (e JobProgress) EventJobID() string  { return e.JobID }
func (e JobProgress) EventQueue() string  { return e.Queue }
func (e JobProgress) isEvent()            {}
func (e JobCompleted) EventJobID() string { return e.Job.ID }
func (e JobCompleted) EventQueue() string { return e.Queue }
func (e JobCompleted) isEvent()           {}
func (e JobFailed) EventJobID() string    { return e.Job.ID }
func (e JobFailed) EventQueue() string    { return e.Queue }
func (e JobFailed) isEvent()              {}
