// Package logging provides a minimal logging interface and adapters for
// agentdispatch.
//
// The Logger interface defines the standard logging methods (Debug, Info,
// Warn, Error) that the queue and orchestrator use for observability. This
// package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - NoOpLogger for silent operation (testing, minimal setups)
//   - DispatchLogger with contextual helpers (component, user, job) and
//     domain specific helpers for job execution and message generation
//
// Usage:
//
//	logger := logging.NewDispatchLogger(logging.LogLevelInfo, "json", false)
//	mgr := queue.NewManager(queue.WithLogger(logger))
//
// The design intentionally keeps the interface minimal to avoid vendor
// lock-in while supporting structured logging where available.
package logging
