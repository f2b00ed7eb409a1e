// Package orchestrator is the central coordinator between conversational
// input and asynchronous agent work. It classifies inbound chat messages,
// decides whether an agent job is needed, enqueues it, and reacts to queue
// lifecycle events to drive the two-stage user-facing messaging protocol
// (routing acknowledgment and Stage-1 "I'm on it" up front, Stage-2
// completion or error once the job finishes).
//
// It also bridges a job's "I need more input" signal to the user's next
// message through the followup tracker, and normalizes inconsistent queue /
// channel naming through a fixed alias table so the pipeline never
// hard-fails on a naming mismatch.
package orchestrator
