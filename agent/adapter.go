// Package agent provides the runtime adapter that turns a pluggable task
// function into a queue-registrable executor. The adapter normalizes job
// records and results, relays progress reports, and optionally generates
// contextual acknowledgment and completion messages through a model.Generator.
package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/agentdispatch/core"
	"github.com/hupe1980/agentdispatch/internal/util"
	"github.com/hupe1980/agentdispatch/logging"
	"github.com/hupe1980/agentdispatch/model"
)

// ExecuteFunc is the pluggable task implementation wrapped by an Adapter.
// It receives a private copy of the job record and may call report to emit
// progress. Returning an error marks the job failed; it never crashes the
// queue.
type ExecuteFunc func(ctx context.Context, job *core.Job, report core.ProgressFunc) (*core.Result, error)

const defaultAckInstructions = `You are {{.agent}}, an assistant agent. The user just asked for something
you are about to work on. Reply with one short, friendly sentence confirming
you are on it. Do not promise results yet.`

const defaultCompletionInstructions = `You are {{.agent}}, an assistant agent. Summarize the outcome of the task
for the user in one or two short sentences, grounded in the result provided.
If the task failed, apologize briefly and state what went wrong.`

// Options configures an Adapter.
type Options struct {
	// Description is a human readable summary of what the agent does.
	Description string

	// Generator powers contextual Stage-1/Stage-2 message generation. When
	// nil, generation returns core.ErrNoGenerator and the orchestrator
	// substitutes its templated fallback.
	Generator model.Generator

	// AckInstructions / CompletionInstructions override the system prompts.
	// Both are rendered with {{.agent}} bound to the adapter name.
	AckInstructions        string
	CompletionInstructions string

	// GenerationTimeout bounds each generation call. Defaults to 10s.
	GenerationTimeout time.Duration

	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

// WithDescription sets the agent description.
func WithDescription(d string) func(o *Options) {
	return func(o *Options) { o.Description = d }
}

// WithGenerator wires a text generator for contextual messages.
func WithGenerator(g model.Generator) func(o *Options) {
	return func(o *Options) { o.Generator = g }
}

// WithGenerationTimeout overrides the per-call generation timeout.
func WithGenerationTimeout(d time.Duration) func(o *Options) {
	return func(o *Options) { o.GenerationTimeout = d }
}

// WithLogger sets the structured logger.
func WithLogger(l logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = l }
}

// Adapter binds an ExecuteFunc to an agent name and implements
// core.Executor plus the optional generation capabilities.
type Adapter struct {
	name    string
	execute ExecuteFunc
	opts    Options
}

var (
	_ core.Executor                = (*Adapter)(nil)
	_ core.AcknowledgmentGenerator = (*Adapter)(nil)
	_ core.CompletionGenerator     = (*Adapter)(nil)
)

// NewAdapter creates an adapter for the named agent.
func NewAdapter(name string, execute ExecuteFunc, optFns ...func(o *Options)) *Adapter {
	opts := Options{
		AckInstructions:        defaultAckInstructions,
		CompletionInstructions: defaultCompletionInstructions,
		GenerationTimeout:      10 * time.Second,
		Logger:                 logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Adapter{name: name, execute: execute, opts: opts}
}

// Name returns the canonical agent (and queue) name.
func (a *Adapter) Name() string { return a.name }

// Description returns the configured agent description.
func (a *Adapter) Description() string { return a.opts.Description }

// ExecuteJob runs the wrapped task function.
func (a *Adapter) ExecuteJob(ctx context.Context, job *core.Job, report core.ProgressFunc) (*core.Result, error) {
	if a.execute == nil {
		return nil, fmt.Errorf("agent %s has no execute function", a.name)
	}
	if report == nil {
		report = func(int, string) {}
	}
	return a.execute(ctx, job, report)
}

// GenerateAcknowledgment produces the Stage-1 "I'm on it" message for a
// freshly enqueued job.
func (a *Adapter) GenerateAcknowledgment(ctx context.Context, job *core.Job, originalMessage string) (string, error) {
	prompt := fmt.Sprintf("The user said: %q\nThe queued task type is %q.", originalMessage, job.Type)
	return a.generate(ctx, core.StageAcknowledgment, a.opts.AckInstructions, prompt)
}

// GenerateCompletion produces the Stage-2 completion (or error) message from
// the job's result and the original user message.
func (a *Adapter) GenerateCompletion(ctx context.Context, job *core.Job, result *core.Result, originalMessage string) (string, error) {
	var outcome string
	switch {
	case result == nil:
		outcome = "no result was produced"
	case result.Success:
		outcome = fmt.Sprintf("succeeded: %s", result.Summary)
	default:
		outcome = fmt.Sprintf("failed: %s", result.Error)
	}
	prompt := fmt.Sprintf("The user said: %q\nThe task type was %q and it %s.", originalMessage, job.Type, outcome)
	return a.generate(ctx, core.StageCompletion, a.opts.CompletionInstructions, prompt)
}

func (a *Adapter) generate(ctx context.Context, stage core.GenerationStage, instructions, prompt string) (string, error) {
	if a.opts.Generator == nil {
		return "", &core.MessageGenerationError{Stage: stage, Agent: a.name, Err: core.ErrNoGenerator}
	}

	rendered, err := util.RenderTemplate(instructions, map[string]any{"agent": a.name})
	if err != nil {
		return "", &core.MessageGenerationError{Stage: stage, Agent: a.name, Err: err}
	}

	genCtx, cancel := context.WithTimeout(ctx, a.opts.GenerationTimeout)
	defer cancel()

	start := time.Now()
	text, err := a.opts.Generator.Generate(genCtx, model.Request{Instructions: rendered, Prompt: prompt})
	if err != nil {
		a.opts.Logger.Warn("message generation failed", "agent", a.name, "stage", string(stage), "error", err, "duration", time.Since(start))
		return "", &core.MessageGenerationError{Stage: stage, Agent: a.name, Err: err}
	}
	a.opts.Logger.Debug("message generated", "agent", a.name, "stage", string(stage), "duration", time.Since(start))
	return text, nil
}
