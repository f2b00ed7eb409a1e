package testutil

import (
	"context"
	"sync"

	"github.com/hupe1980/agentdispatch/core"
)

// StubExecutor is a configurable core.Executor for tests. It optionally
// implements the acknowledgment/completion generation capabilities and
// records every executed job.
//
// Example:
//
//	exec := testutil.NewStubExecutor("falcon").
//	    WithResult(&core.Result{Success: true, Summary: "done"})
type StubExecutor struct {
	name string

	mu       sync.Mutex
	executed []core.Job

	// Execute overrides the whole execution when set.
	Execute func(ctx context.Context, job *core.Job, report core.ProgressFunc) (*core.Result, error)
	// Result / Err are returned when Execute is nil.
	Result *core.Result
	Err    error

	// AckText / AckErr drive GenerateAcknowledgment.
	AckText string
	AckErr  error
	// CompletionText / CompletionErr drive GenerateCompletion.
	CompletionText string
	CompletionErr  error

	// Block, when set, is received from before the executor returns,
	// letting tests hold a job in the active state.
	Block chan struct{}
}

var (
	_ core.Executor                = (*StubExecutor)(nil)
	_ core.AcknowledgmentGenerator = (*StubExecutor)(nil)
	_ core.CompletionGenerator     = (*StubExecutor)(nil)
)

// NewStubExecutor creates a stub for the named agent that succeeds with an
// empty result by default.
func NewStubExecutor(name string) *StubExecutor {
	return &StubExecutor{name: name, Result: &core.Result{Success: true}}
}

// WithResult sets the result returned on success (chainable).
func (s *StubExecutor) WithResult(r *core.Result) *StubExecutor {
	s.Result = r
	return s
}

// WithError makes every execution fail (chainable).
func (s *StubExecutor) WithError(err error) *StubExecutor {
	s.Err = err
	return s
}

// WithAck sets the generated Stage-1 text (chainable).
func (s *StubExecutor) WithAck(text string) *StubExecutor {
	s.AckText = text
	return s
}

// WithCompletion sets the generated Stage-2 text (chainable).
func (s *StubExecutor) WithCompletion(text string) *StubExecutor {
	s.CompletionText = text
	return s
}

// Name returns the agent name.
func (s *StubExecutor) Name() string { return s.name }

// ExecuteJob records the job and returns the configured outcome.
func (s *StubExecutor) ExecuteJob(ctx context.Context, job *core.Job, report core.ProgressFunc) (*core.Result, error) {
	s.mu.Lock()
	s.executed = append(s.executed, *job)
	s.mu.Unlock()

	if s.Block != nil {
		select {
		case <-s.Block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.Execute != nil {
		return s.Execute(ctx, job, report)
	}
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Result, nil
}

// GenerateAcknowledgment returns the configured Stage-1 text or error.
func (s *StubExecutor) GenerateAcknowledgment(context.Context, *core.Job, string) (string, error) {
	if s.AckErr != nil {
		return "", s.AckErr
	}
	if s.AckText == "" {
		return "", core.ErrNoGenerator
	}
	return s.AckText, nil
}

// GenerateCompletion returns the configured Stage-2 text or error.
func (s *StubExecutor) GenerateCompletion(context.Context, *core.Job, *core.Result, string) (string, error) {
	if s.CompletionErr != nil {
		return "", s.CompletionErr
	}
	if s.CompletionText == "" {
		return "", core.ErrNoGenerator
	}
	return s.CompletionText, nil
}

// Executed returns a copy of the jobs this executor ran.
func (s *StubExecutor) Executed() []core.Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Job, len(s.executed))
	copy(out, s.executed)
	return out
}
