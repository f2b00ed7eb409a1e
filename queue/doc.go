// Package queue implements the in-process, at-most-once, multi-queue job
// scheduler. The Manager holds one FIFO queue per registered agent executor
// and guarantees single-job-at-a-time processing per agent: each queue is
// drained by its own goroutine, so different agents execute concurrently
// while jobs on the same queue never overlap.
//
// Jobs are volatile: nothing is persisted and everything is lost on process
// restart. Finished jobs are retained in a bounded in-memory ring for status
// queries; the oldest record is evicted once the cap is exceeded.
//
// Lifecycle notifications are published as typed core.Event values through
// Subscribe. Terminal events are delivered reliably to every subscriber;
// added/progress events are dropped for a subscriber that lags, so AddJob is
// never blocked by a slow listener.
package queue
