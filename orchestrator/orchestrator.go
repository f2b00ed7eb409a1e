package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hupe1980/agentdispatch/core"
	"github.com/hupe1980/agentdispatch/followup"
	"github.com/hupe1980/agentdispatch/logging"
	"github.com/hupe1980/agentdispatch/queue"
)

// DefaultSelfAgent is the assistant's own identity. An intent whose required
// agent equals this name is answered directly without delegation.
const DefaultSelfAgent = "prism"

// typingEvent is the transport event name for typing indicator signals.
const typingEvent = "chat:typing"

// chatErrorEvent is the transport event name for user-facing handler errors.
const chatErrorEvent = "chat:error"

// Options configures an Orchestrator.
type Options struct {
	// SelfAgent is the dispatch key meaning "answer directly, no job".
	// Defaults to DefaultSelfAgent.
	SelfAgent string

	// Aliases overrides the queue/channel alias table. Defaults to
	// DefaultAliases().
	Aliases map[string]string

	// FallbackQueues is the ordered list of queue names probed when a
	// terminal event's queue name does not resolve the job. Defaults to the
	// canonical agents (falcon, sage, echo).
	FallbackQueues []string

	// EventBuffer sizes the queue event subscription channel.
	EventBuffer int

	// FollowUps overrides the follow-up tracker (tests inject clocks here).
	FollowUps *followup.Tracker

	// Logger defaults to NoOpLogger.
	Logger logging.Logger
}

// WithSelfAgent overrides the assistant's own dispatch key.
func WithSelfAgent(name string) func(o *Options) {
	return func(o *Options) { o.SelfAgent = name }
}

// WithAliases overrides the alias table.
func WithAliases(aliases map[string]string) func(o *Options) {
	return func(o *Options) { o.Aliases = aliases }
}

// WithFallbackQueues overrides the job resolution probe order.
func WithFallbackQueues(queues ...string) func(o *Options) {
	return func(o *Options) { o.FallbackQueues = queues }
}

// WithEventBuffer sizes the queue event subscription channel.
func WithEventBuffer(n int) func(o *Options) {
	return func(o *Options) { o.EventBuffer = n }
}

// WithFollowUps injects a pre-built follow-up tracker.
func WithFollowUps(t *followup.Tracker) func(o *Options) {
	return func(o *Options) { o.FollowUps = t }
}

// WithLogger sets the structured logger.
func WithLogger(l logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = l }
}

// Orchestrator is the single place that turns a raw chat message into either
// a direct conversational reply or a delegated agent job, and that turns
// asynchronous job lifecycle events back into conversational messages.
//
// Messaging protocol per delegated request:
//  1. routing acknowledgment (names the target agent)
//  2. Stage-1 acknowledgment (contextual "I'm on it", generated or fallback)
//  3. Stage-2 completion or error message after the job finishes
//
// Failure containment: collaborator errors and panics inside message
// handling are caught at this boundary: they surface to the affected user
// as a chat error event plus a generic apology and are never allowed to
// crash the event pump.
type Orchestrator struct {
	queues     *queue.Manager
	store      core.Store
	transport  core.TransportBridge
	classifier core.IntentClassifier
	followUps  *followup.Tracker
	aliases    *AliasTable
	self       string
	fallbacks  []string
	logger     logging.Logger

	eventBuffer int

	mu          sync.Mutex
	unsubscribe func()
	done        chan struct{}
	pumpDone    chan struct{}

	lostMu            sync.Mutex
	lostNotifications int
}

// New wires an orchestrator to its collaborators. Call Start to begin
// consuming queue lifecycle events.
func New(queues *queue.Manager, store core.Store, transport core.TransportBridge, classifier core.IntentClassifier, optFns ...func(o *Options)) *Orchestrator {
	opts := Options{
		SelfAgent:      DefaultSelfAgent,
		Aliases:        DefaultAliases(),
		FallbackQueues: []string{AgentLeadGen, AgentResearch, AgentOutreach},
		EventBuffer:    64,
		Logger:         logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.FollowUps == nil {
		opts.FollowUps = followup.NewTracker(followup.WithLogger(opts.Logger))
	}

	return &Orchestrator{
		queues:      queues,
		store:       store,
		transport:   transport,
		classifier:  classifier,
		followUps:   opts.FollowUps,
		aliases:     NewAliasTable(opts.Aliases),
		self:        opts.SelfAgent,
		fallbacks:   opts.FallbackQueues,
		logger:      opts.Logger,
		eventBuffer: opts.EventBuffer,
	}
}

// FollowUps exposes the tracker (read-mostly; used by hosts and tests).
func (o *Orchestrator) FollowUps() *followup.Tracker { return o.followUps }

// LostNotifications reports how many terminal events were dropped because
// their owning user could not be resolved.
func (o *Orchestrator) LostNotifications() int {
	o.lostMu.Lock()
	defer o.lostMu.Unlock()
	return o.lostNotifications
}

// Start subscribes to the queue's lifecycle events and launches the event
// pump. Idempotent; the second call is a no-op.
func (o *Orchestrator) Start(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.done != nil {
		return
	}

	events, unsubscribe := o.queues.Subscribe(o.eventBuffer)
	o.unsubscribe = unsubscribe
	o.done = make(chan struct{})
	o.pumpDone = make(chan struct{})

	go o.pump(ctx, events, o.done, o.pumpDone)
}

// Close detaches from the queue and stops the event pump.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.done == nil {
		return
	}
	o.unsubscribe()
	close(o.done)
	<-o.pumpDone
	o.done = nil
	o.pumpDone = nil
	o.unsubscribe = nil
}

func (o *Orchestrator) pump(ctx context.Context, events <-chan core.Event, done, pumpDone chan struct{}) {
	defer close(pumpDone)
	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case ev := <-events:
			if ev == nil {
				continue
			}
			o.dispatch(ctx, ev)
		}
	}
}

// dispatch routes one queue event to its handler, containing panics so a
// single bad event cannot kill the pump.
func (o *Orchestrator) dispatch(ctx context.Context, ev core.Event) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("panic in event handler", "job_id", ev.EventJobID(), "queue", ev.EventQueue(), "panic", fmt.Sprintf("%v", r))
		}
	}()

	switch e := ev.(type) {
	case core.JobAdded:
		o.logger.Debug("job queued", "job_id", e.Job.ID, "queue", e.Queue)
	case core.JobProgress:
		o.handleProgress(e)
	case core.JobCompleted:
		o.handleCompleted(ctx, e)
	case core.JobFailed:
		o.handleFailed(ctx, e)
	}
}

// HandleChatMessage processes one inbound user message end to end. Internal
// failures are contained: they are logged, surfaced to the user as a chat
// error message, and returned for the host's own bookkeeping. The returned
// error never needs additional user-facing handling.
func (o *Orchestrator) HandleChatMessage(ctx context.Context, in core.ChatInput) error {
	err := o.handleChatMessage(ctx, in)
	if err != nil {
		o.logger.Error("chat message handling failed", "user_id", in.UserID, "error", err)
		o.sendChatError(in.UserID, err)
	}
	return err
}

func (o *Orchestrator) handleChatMessage(ctx context.Context, in core.ChatInput) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while handling chat message: %v", r)
		}
	}()

	if in.UserID == "" {
		return fmt.Errorf("chat input without user id")
	}
	if in.Timestamp.IsZero() {
		in.Timestamp = time.Now().UTC()
	}

	sess, err := o.store.GetOrCreateSession(ctx, in.UserID, in.SessionID)
	if err != nil {
		return fmt.Errorf("resolve session: %w", err)
	}

	o.persistMessage(ctx, core.StoredMessage{
		ID:        core.NewID(),
		SessionID: sess.ID,
		UserID:    in.UserID,
		Role:      "user",
		Content:   in.Message,
		CreatedAt: in.Timestamp,
	})

	o.setTyping(in.UserID, true)

	// A pending confirmation short-circuits classification: the message is
	// the answer to a question a previous job asked.
	if fu := o.followUps.Check(in.UserID, in.Message); fu != nil {
		return o.routeFollowUp(ctx, sess, in, fu)
	}

	cls, err := o.classifier.ProcessMessage(ctx, in.Message, in.UserID, sess.ID)
	if err != nil {
		o.setTyping(in.UserID, false)
		return fmt.Errorf("classify intent: %w", err)
	}

	agent := o.aliases.Canonical(cls.Intent.RequiredAgent)
	if agent == "" || agent == o.self {
		o.setTyping(in.UserID, false)
		response := cls.Response
		if response == "" {
			response = directFallbackResponse
		}
		o.deliverAssistantMessage(ctx, sess.ID, in.UserID, o.self, response)
		return nil
	}

	o.setTyping(in.UserID, false)
	o.deliverAssistantMessage(ctx, sess.ID, in.UserID, o.self, routingAckMessage(agent))

	_, err = o.CreateAgentJob(ctx, cls.Intent, in.UserID, sess.ID, in.Message)
	return err
}

// routeFollowUp submits the user's confirmation answer as a follow-up job to
// the previously engaged agent, bypassing intent classification.
func (o *Orchestrator) routeFollowUp(ctx context.Context, sess *core.ChatSession, in core.ChatInput, fu *followup.Context) error {
	agent := o.aliases.Canonical(fu.Agent)
	o.setTyping(in.UserID, false)

	jobID, err := o.queues.AddJob(agent, queue.AddJobRequest{
		UserID:    in.UserID,
		SessionID: sess.ID,
		Type:      "follow_up",
		Input: core.Input{
			Kind:  core.InputFollowUp,
			Query: fu.OriginalRequest,
			Confirmation: &core.Confirmation{
				Type:    fu.ConfirmationType,
				Answer:  in.Message,
				JobID:   fu.JobID,
				Request: fu.OriginalRequest,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("route follow-up to %s: %w", agent, err)
	}

	// Routed successfully: the context is spent.
	o.followUps.Consume(in.UserID)
	o.logger.Info("follow-up routed", "user_id", in.UserID, "agent", agent, "job_id", jobID)

	o.sendAcknowledgment(ctx, sess.ID, in.UserID, agent, jobID, in.Message)
	return nil
}

// CreateAgentJob translates a classified intent into a queued job and sends
// the Stage-1 acknowledgment. Exactly one acknowledgment is sent per
// successfully enqueued job, falling back to a fixed template when
// generation fails. Acknowledgment delivery is never skipped.
func (o *Orchestrator) CreateAgentJob(ctx context.Context, intent core.Intent, userID, sessionID, originalMessage string) (string, error) {
	agent := o.aliases.Canonical(intent.RequiredAgent)

	jobID, err := o.queues.AddJob(agent, queue.AddJobRequest{
		UserID:    userID,
		SessionID: sessionID,
		Type:      intent.Type,
		Input:     inputFromIntent(intent, originalMessage),
	})
	if err != nil {
		return "", fmt.Errorf("enqueue job for %s: %w", agent, err)
	}
	o.logger.Info("agent job created", "agent", agent, "job_id", jobID, "user_id", userID, "type", intent.Type)

	o.sendAcknowledgment(ctx, sessionID, userID, agent, jobID, originalMessage)
	return jobID, nil
}

// sendAcknowledgment delivers the Stage-1 message for a freshly enqueued job.
func (o *Orchestrator) sendAcknowledgment(ctx context.Context, sessionID, userID, agent, jobID, originalMessage string) {
	job, ok := o.queues.GetJobStatus(jobID, agent)
	if !ok {
		// The job may already have finished and been evicted; acknowledge
		// with a minimal record rather than skipping.
		job = &core.Job{ID: jobID, Agent: agent, UserID: userID, SessionID: sessionID}
	}

	text := ""
	if exec, ok := o.queues.Executor(agent); ok {
		if gen, ok := exec.(core.AcknowledgmentGenerator); ok {
			generated, err := gen.GenerateAcknowledgment(ctx, job, originalMessage)
			if err != nil {
				o.logger.Warn("acknowledgment generation failed, using fallback", "agent", agent, "job_id", jobID, "error", err)
			} else {
				text = generated
			}
		}
	}
	if text == "" {
		text = ackFallbackMessage(agent)
	}

	o.deliverAssistantMessage(ctx, sessionID, userID, agent, text)
}

// inputFromIntent builds the tagged job input for a classified intent.
func inputFromIntent(intent core.Intent, originalMessage string) core.Input {
	kind := kindForIntent(intent)
	params := make(map[string]string, len(intent.Payload))
	for k, v := range intent.Payload {
		params[k] = v
	}
	return core.Input{Kind: kind, Query: originalMessage, Params: params}
}

func kindForIntent(intent core.Intent) core.InputKind {
	switch intent.Type {
	case "find_leads", "lead_search":
		return core.InputLeadSearch
	case "research":
		return core.InputResearch
	case "compose_email", "auto_reply", "outreach":
		return core.InputOutreach
	}
	switch intent.RequiredAgent {
	case AgentLeadGen:
		return core.InputLeadSearch
	case AgentOutreach:
		return core.InputOutreach
	default:
		return core.InputResearch
	}
}

// deliverAssistantMessage sends a chat message and persists it. Persistence
// failures are logged and swallowed; they never block delivery.
func (o *Orchestrator) deliverAssistantMessage(ctx context.Context, sessionID, userID, agent, text string) {
	msg := core.NewChatMessage(agent, text)
	o.transport.SendChatMessage(userID, msg)
	o.persistMessage(ctx, core.StoredMessage{
		ID:        msg.ID,
		SessionID: sessionID,
		UserID:    userID,
		Role:      "assistant",
		Agent:     agent,
		Content:   text,
		CreatedAt: msg.Timestamp,
	})
}

func (o *Orchestrator) persistMessage(ctx context.Context, msg core.StoredMessage) {
	if err := o.store.SaveMessage(ctx, msg); err != nil {
		o.logger.Warn("message persistence failed", "user_id", msg.UserID, "role", msg.Role, "error", err)
	}
}

func (o *Orchestrator) setTyping(userID string, typing bool) {
	o.transport.SendToUser(userID, typingEvent, map[string]any{"typing": typing})
}

func (o *Orchestrator) sendChatError(userID string, err error) {
	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	}
	o.transport.SendToUser(userID, chatErrorEvent, map[string]any{
		"message": chatErrorMessage(errMsg),
		"error":   errMsg,
	})
}
