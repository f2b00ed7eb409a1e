package core

import (
	"errors"
	"fmt"
)

// QueueNotFoundError is returned when an operation names an agent with no
// registered queue. This is a programmer error: the agent-name set is closed
// at registration time, so it should never surface at runtime in a correctly
// wired host.
type QueueNotFoundError struct {
	Agent string
}

func (e *QueueNotFoundError) Error() string {
	return fmt.Sprintf("queue not found for agent %q", e.Agent)
}

// IsQueueNotFound reports whether err is (or wraps) a QueueNotFoundError.
func IsQueueNotFound(err error) bool {
	var qnf *QueueNotFoundError
	return errors.As(err, &qnf)
}

// InvalidInputError is returned by AddJob when the tagged job input fails
// validation at the queue boundary.
type InvalidInputError struct {
	Kind   InputKind
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid job input (kind %q): %s", e.Kind, e.Reason)
}

// JobExecutionError captures an executor failure. It is recorded on the
// failed Job and published via JobFailed; it never propagates to the caller
// of AddJob.
type JobExecutionError struct {
	JobID string
	Agent string
	Err   error
}

func (e *JobExecutionError) Error() string {
	return fmt.Sprintf("job %s on %s failed: %v", e.JobID, e.Agent, e.Err)
}

// Unwrap exposes the executor's underlying error.
func (e *JobExecutionError) Unwrap() error { return e.Err }

// GenerationStage identifies which user-facing message a generation call was
// producing when it failed.
type GenerationStage string

const (
	// StageAcknowledgment is the Stage-1 "I'm on it" message.
	StageAcknowledgment GenerationStage = "acknowledgment"
	// StageCompletion is the Stage-2 completion/error message.
	StageCompletion GenerationStage = "completion"
)

// MessageGenerationError reports a failed LLM / templating call. It always
// has a fixed-string fallback on the orchestrator side and never surfaces to
// the end user as a raw error.
type MessageGenerationError struct {
	Stage GenerationStage
	Agent string
	Err   error
}

func (e *MessageGenerationError) Error() string {
	return fmt.Sprintf("%s message generation for %s failed: %v", e.Stage, e.Agent, e.Err)
}

// Unwrap exposes the underlying generation error.
func (e *MessageGenerationError) Unwrap() error { return e.Err }

// ErrNoGenerator signals that an executor has no text generator wired and
// message generation must fall back to templates.
var ErrNoGenerator = errors.New("no text generator configured")

// RoutingResolutionError reports that a terminal job event could not be
// mapped back to an owning user/session. The event is logged and dropped
// (counted as a lost notification); no user-visible message is produced.
type RoutingResolutionError struct {
	JobID string
	Queue string
}

func (e *RoutingResolutionError) Error() string {
	return fmt.Sprintf("cannot resolve owner of job %s (event queue %q)", e.JobID, e.Queue)
}
