package core

import (
	"time"

	"github.com/google/uuid"
)

// Status is the finite lifecycle state of a Job.
//
// Transitions are strictly waiting → active → {completed | failed}. Terminal
// states are final: there are no retries and no re-queueing. A job is in
// exactly one state at any instant and owned by exactly one bookkeeping set
// (waiting list, in-flight slot, or finished retention ring).
type Status string

const (
	// StatusWaiting marks a job queued behind the agent's in-flight job.
	StatusWaiting Status = "waiting"
	// StatusActive marks the single job currently executing on its queue.
	StatusActive Status = "active"
	// StatusCompleted marks a job whose executor returned a result.
	StatusCompleted Status = "completed"
	// StatusFailed marks a job whose executor returned an error.
	StatusFailed Status = "failed"
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool { return s == StatusCompleted || s == StatusFailed }

// Job is one unit of work submitted to an agent's queue.
//
// After the job reaches a terminal state the record is an immutable snapshot:
// Result and Error never mutate post-completion and status lookups return
// defensive copies.
type Job struct {
	ID        string     `json:"id"`
	Agent     string     `json:"agent"`
	Type      string     `json:"type"`
	UserID    string     `json:"user_id"`
	SessionID string     `json:"session_id,omitempty"`
	Input     Input      `json:"input"`
	Status    Status     `json:"status"`
	Progress  int        `json:"progress"` // 0-100
	Result    *Result    `json:"result,omitempty"`
	Error     string     `json:"error,omitempty"`
	Priority  int        `json:"priority"`
	CreatedAt time.Time  `json:"created_at"`
	// ProcessedAt is set when execution starts, FinishedAt when the job
	// reaches a terminal state. Both are nil until then.
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

// Clone returns a deep copy of the job safe for independent mutation.
func (j *Job) Clone() *Job {
	cp := *j
	if j.Result != nil {
		r := j.Result.Clone()
		cp.Result = &r
	}
	if j.ProcessedAt != nil {
		t := *j.ProcessedAt
		cp.ProcessedAt = &t
	}
	if j.FinishedAt != nil {
		t := *j.FinishedAt
		cp.FinishedAt = &t
	}
	cp.Input = j.Input.Clone()
	return &cp
}

// InputKind tags the Input union with the job type it carries.
type InputKind string

const (
	// InputLeadSearch requests lead generation (e.g. "find_leads").
	InputLeadSearch InputKind = "lead_search"
	// InputResearch requests a research task.
	InputResearch InputKind = "research"
	// InputOutreach requests composing or replying to outreach email.
	InputOutreach InputKind = "outreach"
	// InputFollowUp carries a confirmation answer for a prior job.
	InputFollowUp InputKind = "follow_up"
)

// Input is the tagged union of job payloads, validated at the queue boundary
// so malformed submissions fail synchronously at AddJob rather than inside an
// executor.
type Input struct {
	Kind  InputKind `json:"kind"`
	// Query is the free-form request text (usually the original user message).
	Query string `json:"query,omitempty"`
	// Params carries structured key/value parameters extracted by intent
	// classification (location, industry, recipient, ...).
	Params map[string]string `json:"params,omitempty"`
	// Confirmation is set only for Kind == InputFollowUp.
	Confirmation *Confirmation `json:"confirmation,omitempty"`
}

// Confirmation links a follow-up submission back to the job that asked for it.
type Confirmation struct {
	Type    ConfirmationType `json:"type"`
	Answer  string           `json:"answer"`
	JobID   string           `json:"job_id,omitempty"`
	Request string           `json:"request,omitempty"`
}

// Clone returns a deep copy of the input.
func (in Input) Clone() Input {
	cp := in
	if in.Params != nil {
		cp.Params = make(map[string]string, len(in.Params))
		for k, v := range in.Params {
			cp.Params[k] = v
		}
	}
	if in.Confirmation != nil {
		c := *in.Confirmation
		cp.Confirmation = &c
	}
	return cp
}

// Validate checks the union invariants for the tagged kind.
func (in Input) Validate() error {
	switch in.Kind {
	case InputLeadSearch, InputResearch, InputOutreach:
		if in.Query == "" {
			return &InvalidInputError{Kind: in.Kind, Reason: "query must not be empty"}
		}
	case InputFollowUp:
		if in.Confirmation == nil || in.Confirmation.Answer == "" {
			return &InvalidInputError{Kind: in.Kind, Reason: "confirmation answer required"}
		}
	default:
		return &InvalidInputError{Kind: in.Kind, Reason: "unknown input kind"}
	}
	return nil
}

// ConfirmationType categorizes what shape of user answer a pending
// confirmation expects.
type ConfirmationType string

// ConfirmationTime expects a time-like answer ("3pm", "10:30 am").
const ConfirmationTime ConfirmationType = "time_confirmation"

// Result is the structured outcome returned by an agent executor.
type Result struct {
	Success bool           `json:"success"`
	// Summary is a short human-readable description of the outcome used to
	// ground Stage-2 completion messages.
	Summary string         `json:"summary,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
	// Error carries the failure description for synthetic failure results
	// handed to completion-message generation.
	Error string `json:"error,omitempty"`
	// NeedsConfirmation signals that the result is incomplete until the user
	// answers a follow-up question of the given type.
	NeedsConfirmation bool             `json:"needs_confirmation,omitempty"`
	ConfirmationType  ConfirmationType `json:"confirmation_type,omitempty"`
}

// Clone returns a copy of the result with its data map duplicated.
func (r Result) Clone() Result {
	cp := r
	if r.Data != nil {
		cp.Data = make(map[string]any, len(r.Data))
		for k, v := range r.Data {
			cp.Data[k] = v
		}
	}
	return cp
}

// NewID generates a new unique identifier for jobs, messages and
// notifications. UUID based so ids are unique for the process lifetime.
func NewID() string { return uuid.NewString() }
