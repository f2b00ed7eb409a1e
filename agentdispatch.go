// Package agentdispatch provides a high-level façade over the job queue,
// orchestrator and service abstractions (durable store, transport bridge,
// intent classifier, follow-up tracking) for building conversational agent
// systems. Most applications interact with this package by:
//  1. Creating a Dispatcher via New() (optionally overriding default
//     in-memory services)
//  2. Registering one or more agent executors (typically agent.Adapter)
//  3. Feeding inbound chat messages to HandleChatMessage
//
// The façade delegates scheduling to queue.Manager and conversational
// coordination to orchestrator.Orchestrator while keeping setup concise. All
// defaults are safe for local development and testing; production
// deployments typically supply durable store and transport implementations
// and a structured logger.
package agentdispatch

import (
	"context"

	"github.com/hupe1980/agentdispatch/config"
	"github.com/hupe1980/agentdispatch/core"
	"github.com/hupe1980/agentdispatch/followup"
	"github.com/hupe1980/agentdispatch/intent"
	"github.com/hupe1980/agentdispatch/logging"
	"github.com/hupe1980/agentdispatch/orchestrator"
	"github.com/hupe1980/agentdispatch/queue"
	"github.com/hupe1980/agentdispatch/store"
	"github.com/hupe1980/agentdispatch/transport"
)

// Options configures the Dispatcher instance.
type Options struct {
	// Config carries the runtime tunables (retention cap, follow-up TTL,
	// event buffer, self agent). Defaults to config.Default().
	Config config.Config

	// Services (default to in-memory implementations if not provided)

	// Store persists sessions, messages and notifications.
	Store core.Store
	// Transport delivers chat and progress traffic to clients. Defaults to
	// an in-memory recorder.
	Transport core.TransportBridge
	// Classifier turns message text into routing intents. Defaults to the
	// keyword-rule classifier.
	Classifier core.IntentClassifier

	// Logger (defaults to a DispatchLogger built from Config.LogLevel and
	// Config.LogFormat if nil)
	Logger logging.Logger
}

// WithConfig overrides the runtime tunables.
func WithConfig(cfg config.Config) func(o *Options) {
	return func(o *Options) { o.Config = cfg }
}

// WithStore overrides the durable store.
func WithStore(s core.Store) func(o *Options) {
	return func(o *Options) { o.Store = s }
}

// WithTransport overrides the transport bridge.
func WithTransport(t core.TransportBridge) func(o *Options) {
	return func(o *Options) { o.Transport = t }
}

// WithClassifier overrides the intent classifier.
func WithClassifier(c core.IntentClassifier) func(o *Options) {
	return func(o *Options) { o.Classifier = c }
}

// WithLogger sets the structured logger.
func WithLogger(l logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = l }
}

// Dispatcher is the high-level façade aggregating the queue manager and the
// orchestrator. It is a library component without a process boundary of its
// own: the hosting server feeds it chat input and supplies the transport.
type Dispatcher struct {
	opts   Options
	queues *queue.Manager
	orch   *orchestrator.Orchestrator
}

// New creates a Dispatcher with optional overrides. Any unset service falls
// back to an in-memory default.
func New(optFns ...func(o *Options)) *Dispatcher {
	opts := Options{
		Config: config.Default(),
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewDispatchLogger(logging.ParseLevel(opts.Config.LogLevel), opts.Config.LogFormat, false)
	}
	if opts.Store == nil {
		opts.Store = store.NewInMemory()
	}
	if opts.Transport == nil {
		opts.Transport = transport.NewRecorder()
	}
	if opts.Classifier == nil {
		opts.Classifier = intent.NewClassifier(intent.WithSelfAgent(opts.Config.SelfAgent))
	}

	queues := queue.NewManager(
		queue.WithRetentionCap(opts.Config.RetentionCap),
		queue.WithLogger(opts.Logger),
	)

	followUps := followup.NewTracker(
		followup.WithTTL(opts.Config.FollowUpTTL),
		followup.WithLogger(opts.Logger),
	)

	orch := orchestrator.New(queues, opts.Store, opts.Transport, opts.Classifier,
		orchestrator.WithSelfAgent(opts.Config.SelfAgent),
		orchestrator.WithEventBuffer(opts.Config.EventBuffer),
		orchestrator.WithFollowUps(followUps),
		orchestrator.WithLogger(opts.Logger),
	)

	return &Dispatcher{opts: opts, queues: queues, orch: orch}
}

// Register adds an agent executor, creating its queue.
func (d *Dispatcher) Register(exec core.Executor) {
	d.queues.Register(exec)
}

// Start launches the orchestrator's event pump. Call after registering
// executors and before feeding messages.
func (d *Dispatcher) Start(ctx context.Context) {
	d.orch.Start(ctx)
}

// HandleChatMessage processes one inbound user message. User-facing error
// handling has already happened when this returns; the error is for host
// bookkeeping only.
func (d *Dispatcher) HandleChatMessage(ctx context.Context, in core.ChatInput) error {
	return d.orch.HandleChatMessage(ctx, in)
}

// Queues exposes the queue manager for status queries and queue control.
func (d *Dispatcher) Queues() *queue.Manager { return d.queues }

// Orchestrator exposes the underlying orchestrator.
func (d *Dispatcher) Orchestrator() *orchestrator.Orchestrator { return d.orch }

// Close stops the orchestrator and all queue drain goroutines.
func (d *Dispatcher) Close() error {
	d.orch.Close()
	return d.queues.Close()
}
