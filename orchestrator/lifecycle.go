package orchestrator

import (
	"context"
	"time"

	"github.com/hupe1980/agentdispatch/core"
)

// handleProgress forwards an execution progress report to the owning user.
// Events without a user id cannot be routed and are dropped silently.
func (o *Orchestrator) handleProgress(e core.JobProgress) {
	if e.UserID == "" {
		o.logger.Debug("progress event without user, dropped", "job_id", e.JobID, "queue", e.Queue)
		return
	}
	o.transport.SendJobProgress(e.UserID, core.ProgressUpdate{
		JobID:     e.JobID,
		Agent:     o.aliases.Canonical(e.Queue),
		Progress:  e.Progress,
		Stage:     e.Stage,
		Timestamp: e.Timestamp,
	})
}

// resolveJob maps a terminal event back to its stored job record. The
// event-provided queue name is tried first, then its canonical alias, then
// the fixed fallback list. Queue naming may be inconsistent between
// emission and storage, and the pipeline must not hard-fail on a mismatch.
func (o *Orchestrator) resolveJob(jobID, queueName string) (*core.Job, bool) {
	probes := make([]string, 0, len(o.fallbacks)+2)
	seen := make(map[string]bool, len(o.fallbacks)+2)
	for _, name := range append([]string{queueName, o.aliases.Canonical(queueName)}, o.fallbacks...) {
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		probes = append(probes, name)
	}

	for _, name := range probes {
		if job, ok := o.queues.GetJobStatus(jobID, name); ok {
			return job, true
		}
	}
	return nil, false
}

// resolveTerminal resolves the owning job for a terminal event, preferring
// the stored record and degrading to the event snapshot. A job whose user
// cannot be determined is a routing resolution failure: logged, counted as a
// lost notification, and dropped without any user-visible message.
func (o *Orchestrator) resolveTerminal(snapshot core.Job, queueName string) (*core.Job, bool) {
	job, ok := o.resolveJob(snapshot.ID, queueName)
	if !ok {
		job = &snapshot
	}
	if job.UserID == "" {
		resErr := &core.RoutingResolutionError{JobID: snapshot.ID, Queue: queueName}
		o.logger.Error("terminal event dropped", "job_id", snapshot.ID, "queue", queueName, "error", resErr.Error())
		o.lostMu.Lock()
		o.lostNotifications++
		o.lostMu.Unlock()
		return nil, false
	}
	return job, true
}

// handleCompleted turns a completed job into a durable notification and
// exactly one Stage-2 completion message.
func (o *Orchestrator) handleCompleted(ctx context.Context, e core.JobCompleted) {
	job, ok := o.resolveTerminal(e.Job, e.Queue)
	if !ok {
		return
	}
	agent := o.aliases.Canonical(job.Agent)

	o.recordNotification(ctx, core.Notification{
		ID:        core.NewID(),
		UserID:    job.UserID,
		Kind:      core.NotificationJobCompleted,
		JobID:     job.ID,
		Agent:     agent,
		Title:     "Task completed",
		Body:      resultSummary(job.Result),
		CreatedAt: time.Now().UTC(),
	})

	text := o.generateCompletionText(ctx, agent, job, job.Result)
	if text == "" {
		text = completionFallbackMessage(agent, job.Result)
	}
	o.deliverAssistantMessage(ctx, job.SessionID, job.UserID, agent, text)

	o.registerFollowUp(job, agent)
}

// handleFailed mirrors handleCompleted for failed jobs: one durable failure
// notification plus exactly one Stage-2 error message (contextual or
// fallback, never both).
func (o *Orchestrator) handleFailed(ctx context.Context, e core.JobFailed) {
	job, ok := o.resolveTerminal(e.Job, e.Queue)
	if !ok {
		return
	}
	agent := o.aliases.Canonical(job.Agent)

	errMsg := e.Error
	if errMsg == "" {
		errMsg = job.Error
	}

	o.recordNotification(ctx, core.Notification{
		ID:        core.NewID(),
		UserID:    job.UserID,
		Kind:      core.NotificationJobFailed,
		JobID:     job.ID,
		Agent:     agent,
		Title:     "Task failed",
		Body:      errMsg,
		CreatedAt: time.Now().UTC(),
	})

	// Completion generation runs against a synthetic failure result so the
	// agent can phrase the apology with context.
	synthetic := &core.Result{Success: false, Error: errMsg}
	text := o.generateCompletionText(ctx, agent, job, synthetic)
	if text == "" {
		text = errorFallbackMessage(agent, errMsg)
	}
	o.deliverAssistantMessage(ctx, job.SessionID, job.UserID, agent, text)
}

// generateCompletionText asks the agent adapter for a contextual Stage-2
// message; an empty return means the caller must apply the fixed fallback.
func (o *Orchestrator) generateCompletionText(ctx context.Context, agent string, job *core.Job, result *core.Result) string {
	exec, ok := o.queues.Executor(agent)
	if !ok {
		return ""
	}
	gen, ok := exec.(core.CompletionGenerator)
	if !ok {
		return ""
	}
	text, err := gen.GenerateCompletion(ctx, job, result, job.Input.Query)
	if err != nil {
		o.logger.Warn("completion generation failed, using fallback", "agent", agent, "job_id", job.ID, "error", err)
		return ""
	}
	return text
}

// registerFollowUp opens a confirmation window when a completed job signals
// that it needs one. A collision with a live pending confirmation is
// rejected by the tracker; the newer confirmation is dropped with a warning
// rather than silently displacing the older one.
func (o *Orchestrator) registerFollowUp(job *core.Job, agent string) {
	result := job.Result
	if result == nil || !result.NeedsConfirmation || result.ConfirmationType != core.ConfirmationTime {
		return
	}
	if err := o.followUps.Set(job.UserID, agent, result.ConfirmationType, job.Input.Query, job.ID); err != nil {
		o.logger.Warn("follow-up context rejected", "user_id", job.UserID, "agent", agent, "job_id", job.ID, "error", err)
	}
}

func (o *Orchestrator) recordNotification(ctx context.Context, n core.Notification) {
	if err := o.store.SaveNotification(ctx, n); err != nil {
		o.logger.Warn("notification persistence failed", "user_id", n.UserID, "job_id", n.JobID, "error", err)
	}
}

func resultSummary(result *core.Result) string {
	if result == nil {
		return ""
	}
	return result.Summary
}
