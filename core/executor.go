package core

import "context"

// ProgressFunc reports execution progress for the active job. Progress is
// clamped to 0-100 by the queue; stage is a short free-form label
// ("searching", "enriching", ...). Safe to call from the executor goroutine
// only.
type ProgressFunc func(progress int, stage string)

// Executor is the per-agent task runner plugged into the job queue.
//
// Implementations must:
//   - Return a non-nil Result on success and an error on failure. A returned
//     error never crashes the queue; it is captured as a failed Job.
//   - Respect ctx cancellation on a best-effort basis. RemoveJob on an active
//     job cancels ctx but cannot forcibly abort the executor; a stuck
//     executor blocks its own queue indefinitely (a documented limitation,
//     there is no built-in timeout).
//   - Treat report as optional telemetry; calling it is not required.
type Executor interface {
	// Name returns the canonical agent name, which is also the queue name.
	Name() string
	// ExecuteJob runs one job to completion.
	ExecuteJob(ctx context.Context, job *Job, report ProgressFunc) (*Result, error)
}

// AcknowledgmentGenerator is an optional Executor capability producing the
// Stage-1 "I'm on it" message right after a job is enqueued. The orchestrator
// substitutes a fixed template when the executor does not implement it or the
// generation call fails. Acknowledgment delivery is never skipped.
type AcknowledgmentGenerator interface {
	GenerateAcknowledgment(ctx context.Context, job *Job, originalMessage string) (string, error)
}

// CompletionGenerator is an optional Executor capability producing the
// Stage-2 completion (or error) message from the job's result and the
// original user message. Same fallback contract as AcknowledgmentGenerator.
type CompletionGenerator interface {
	GenerateCompletion(ctx context.Context, job *Job, result *Result, originalMessage string) (string, error)
}
