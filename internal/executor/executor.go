// Package executor implements the Job Executor (C4): it drives one agent
// invocation end to end, ingesting the Runtime Adapter's message stream,
// persisting output, classifying the outcome, and supporting cancel/retry/fork.
package executor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/edspencer/herdctl-sub001/internal/config"
	"github.com/edspencer/herdctl-sub001/internal/hooks"
	"github.com/edspencer/herdctl-sub001/internal/runtime"
	"github.com/edspencer/herdctl-sub001/internal/state"
)

const (
	defaultIdleTimeout = 10 * time.Minute
	defaultMaxDuration = 2 * time.Hour
)

// transientErrorCodes is the exact retry-classification set from the spec:
// a spawn failure matching one of these is retried at most once.
var transientErrorCodes = map[string]bool{
	"auth_expired":      true,
	"token_expired":     true,
	"transient_network": true,
}

// Events is the narrow callback surface the executor emits through; the
// Fleet Manager supplies an adapter over the event bus.
type Events interface {
	JobCreated(job state.Job)
	JobOutput(jobID string, msg state.OutputMessage)
	JobCompleted(job state.Job)
	JobFailed(job state.Job)
	JobCancelled(job state.Job)
	JobForked(parent, child state.Job)
}

// Clock is the injected time source, consistent with the scheduler package.
type Clock interface{ Now() time.Time }

// RealClock reads the system clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// Store is the subset of state.Store the executor depends on.
type Store interface {
	CreateJob(meta state.Job, now time.Time) (*state.Job, error)
	ReadJob(id string) (*state.Job, error)
	UpdateJob(id string, patch state.JobPatch) (*state.Job, error)
	AppendOutput(id string, msg state.OutputMessage) (state.OutputMessage, error)
	ReadSession(agentID string) (*state.Session, error)
	WriteSession(agentID string, sess state.Session) error
	ClearSession(agentID string) error
}

// Executor runs jobs against a Runtime Adapter.
type Executor struct {
	store   Store
	rt      runtime.Runtime
	events  Events
	clock   Clock
	log     hooks.Logger

	mu         sync.Mutex
	running    map[string]context.CancelFunc // jobID -> cancel
	jobAgents  map[string]string             // jobID -> agent qualified name
	retriedJob map[string]bool               // jobID -> already retried once
}

// Options configures a new Executor.
type Options struct {
	Store   Store
	Runtime runtime.Runtime
	Events  Events
	Clock   Clock
	Log     hooks.Logger
}

// New constructs an Executor.
func New(opts Options) *Executor {
	if opts.Clock == nil {
		opts.Clock = RealClock{}
	}
	return &Executor{
		store:      opts.Store,
		rt:         opts.Runtime,
		events:     opts.Events,
		clock:      opts.Clock,
		log:        opts.Log,
		running:    make(map[string]context.CancelFunc),
		jobAgents:  make(map[string]string),
		retriedJob: make(map[string]bool),
	}
}

// RunningCount reports how many jobs are in-flight for an agent; satisfies
// scheduler.RunningCounter.
func (e *Executor) RunningCount(qualifiedAgentName string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for id := range e.running {
		if jobAgent, ok := e.jobAgentLocked(id); ok && jobAgent == qualifiedAgentName {
			n++
		}
	}
	return n
}

// jobAgentLocked looks up a job's agent in jobAgents (populated by Trigger
// and run). The caller must hold e.mu.
func (e *Executor) jobAgentLocked(id string) (string, bool) {
	name, ok := e.jobAgents[id]
	return name, ok
}

// CreateOptions configures one Trigger/fork call.
type CreateOptions struct {
	Agent       config.Agent
	Schedule    *config.Schedule
	Prompt      string
	TriggerType state.TriggerType
	ParentJobID string
	Resume      bool
}

// Trigger creates and asynchronously runs a new job for agent. It returns
// immediately after the job record is created, per the Scheduler's OnTrigger
// contract ("must enqueue the job asynchronously and return quickly").
func (e *Executor) Trigger(opts CreateOptions) (*state.Job, error) {
	now := e.clock.Now()

	prompt := opts.Prompt
	scheduleName := ""
	if opts.Schedule != nil {
		scheduleName = opts.Schedule.Name
		if prompt == "" {
			prompt = opts.Schedule.Prompt
		}
	}

	meta := state.Job{
		Agent:       opts.Agent.QualifiedName,
		Schedule:    scheduleName,
		TriggerType: opts.TriggerType,
		Status:      state.JobPending,
		Prompt:      prompt,
		ParentJobID: opts.ParentJobID,
		Workspace:   opts.Agent.Workspace,
	}
	job, err := e.store.CreateJob(meta, now)
	if err != nil {
		return nil, fmt.Errorf("executor: creating job: %w", err)
	}

	e.registerJobAgent(job.ID, opts.Agent.QualifiedName)
	if e.events != nil {
		e.events.JobCreated(*job)
	}

	go e.run(opts.Agent, *job, opts.Resume)

	return job, nil
}

func (e *Executor) registerJobAgent(jobID, agent string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.jobAgents[jobID] = agent
}

func (e *Executor) unregisterJobAgent(jobID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.jobAgents, jobID)
	delete(e.running, jobID)
}

// run drives one job from spawn to terminal state; always executed in its
// own goroutine, started by Trigger or retryOnce.
func (e *Executor) run(agent config.Agent, job state.Job, resume bool) {
	e.registerJobAgent(job.ID, agent.QualifiedName)
	defer e.unregisterJobAgent(job.ID)

	hooks.RunPreJob(hooks.Context{JobID: job.ID, Agent: agent.QualifiedName, Status: string(state.JobRunning)}, agent, e.log)

	sessionID := e.resolveSession(agent, resume)

	idleTimeout := parseDurationOr(agent.IdleTimeout, defaultIdleTimeout)
	maxDuration := parseDurationOr(agent.MaxDuration, defaultMaxDuration)

	ctx, cancel := context.WithTimeout(context.Background(), maxDuration)
	e.mu.Lock()
	e.running[job.ID] = cancel
	e.mu.Unlock()
	defer cancel()

	startedAt := e.clock.Now()
	running := state.JobRunning
	if _, err := e.store.UpdateJob(job.ID, state.JobPatch{Status: &running, StartedAt: &startedAt}); err != nil {
		return
	}

	outcome := e.invokeAndIngest(ctx, agent, job, sessionID, idleTimeout)

	e.mu.Lock()
	alreadyRetried := e.retriedJob[job.ID]
	e.mu.Unlock()

	if outcome.transient && !alreadyRetried {
		e.mu.Lock()
		e.retriedJob[job.ID] = true
		e.mu.Unlock()
		e.retryOnce(agent, job)
		return
	}

	e.terminate(job.ID, agent.QualifiedName, outcome)
	hooks.RunPostJob(hooks.Context{JobID: job.ID, Agent: agent.QualifiedName, Status: string(outcome.status)}, agent, e.log)
}

type runOutcome struct {
	status     state.JobStatus
	exitReason state.ExitReason
	jobErr     *state.JobError
	durationMS int64
	numTurns   int
	costUSD    float64
	tokensIn   int
	tokensOut  int
	transient  bool
}

// invokeAndIngest spawns the runtime and drains its message stream, applying
// the idle-timeout race and appending every message to the job output log.
func (e *Executor) invokeAndIngest(ctx context.Context, agent config.Agent, job state.Job, sessionID string, idleTimeout time.Duration) runOutcome {
	var sessionReported string
	opts := runtime.InvokeOptions{
		Prompt:    job.Prompt,
		SessionID: sessionID,
		Cancel:    ctx,
		AgentConfig: runtime.AgentConfig{
			Model:          agent.Model,
			MaxTurns:       agent.MaxTurns,
			PermissionMode: agent.PermissionMode,
			AllowedTools:   agent.AllowedTools,
			DeniedTools:    agent.DeniedTools,
			Workspace:      agent.Workspace,
			Runtime:        agent.Runtime,
		},
		OnSessionID: func(id string) {
			sessionReported = id
			_ = e.store.WriteSession(agent.QualifiedName, state.Session{
				SessionID:     id,
				LastMessageAt: e.clock.Now(),
				Workspace:     agent.Workspace,
			})
		},
	}

	stream, err := e.rt.Invoke(opts)
	if err != nil {
		code := classifySpawnError(err)
		return runOutcome{
			status:     state.JobFailed,
			exitReason: state.ExitError,
			jobErr:     &state.JobError{Code: code, Message: err.Error()},
			transient:  transientErrorCodes[code],
		}
	}

	toolCalls := make(map[string]struct {
		name      string
		input     string
		startedAt time.Time
	})

	var out runOutcome
	out.status = state.JobCompleted
	out.exitReason = state.ExitNormal

	sawError := false

	idleTimer := time.NewTimer(idleTimeout)
	defer idleTimer.Stop()

	for {
		select {
		case <-ctx.Done():
			if ctx.Err() == context.DeadlineExceeded {
				return runOutcome{status: state.JobFailed, exitReason: state.ExitTimeout, jobErr: &state.JobError{Code: "max_duration_exceeded", Message: "job exceeded max_duration"}}
			}
			return runOutcome{status: state.JobCancelled, exitReason: state.ExitCancelled}

		case <-idleTimer.C:
			return runOutcome{status: state.JobFailed, exitReason: state.ExitTimeout, jobErr: &state.JobError{Code: "idle_timeout", Message: "no output within idle_timeout"}}

		case msg, ok := <-stream:
			if !ok {
				if sawError && out.status == state.JobCompleted {
					out.status = state.JobFailed
					out.exitReason = state.ExitError
				}
				_ = sessionReported
				return out
			}
			if !idleTimer.Stop() {
				select {
				case <-idleTimer.C:
				default:
				}
			}
			idleTimer.Reset(idleTimeout)

			e.ingestOne(job.ID, msg, toolCalls, &out, &sawError)
		}
	}
}

// ingestOne applies one runtime message to the job's output log and
// accumulates terminal metadata, matching the 4.4 ingest-loop rules.
func (e *Executor) ingestOne(jobID string, msg runtime.Message, toolCalls map[string]struct {
	name      string
	input     string
	startedAt time.Time
}, out *runOutcome, sawError *bool) {
	om := state.OutputMessage{Timestamp: e.clock.Now()}

	switch msg.Type {
	case "assistant":
		om.Type = state.OutputAssistant
		om.Text = flattenText(msg.Content)
		for _, b := range msg.Content {
			if b.Type == "tool_use" {
				toolCalls[b.ToolUseID] = struct {
					name      string
					input     string
					startedAt time.Time
				}{name: b.ToolName, input: fmt.Sprintf("%v", b.ToolInput), startedAt: e.clock.Now()}
			}
		}
	case "tool_use":
		om.Type = state.OutputToolUse
		om.ToolUseID = toolUseIDFrom(msg.Content)
		om.ToolName = toolNameFrom(msg.Content)
	case "tool_result":
		om.Type = state.OutputToolResult
		om.ToolUseID = toolResultIDFrom(msg.Content)
		om.ToolOutput = flattenText(msg.Content)
		for _, b := range msg.Content {
			if b.IsError {
				om.IsError = true
			}
		}
		_, paired := toolCalls[om.ToolUseID]
		if paired {
			delete(toolCalls, om.ToolUseID)
		}
	case "result":
		om.Type = state.OutputResult
		om.DurationMS = msg.DurationMS
		om.NumTurns = msg.NumTurns
		om.CostUSD = msg.CostUSD
		if msg.Usage != nil {
			om.TokensIn = msg.Usage.InputTokens
			om.TokensOut = msg.Usage.OutputTokens
		}
		out.durationMS = msg.DurationMS
		out.numTurns = msg.NumTurns
		out.costUSD = msg.CostUSD
		if msg.Usage != nil {
			out.tokensIn = msg.Usage.InputTokens
			out.tokensOut = msg.Usage.OutputTokens
		}
		if msg.IsError {
			*sawError = true
		}
	case "error":
		om.Type = state.OutputError
		om.ErrorCode = msg.ErrorCode
		om.ErrorMessage = msg.ErrorMessage
		*sawError = true
		out.jobErr = &state.JobError{Code: msg.ErrorCode, Message: msg.ErrorMessage}
		if transientErrorCodes[msg.ErrorCode] {
			out.transient = true
		}
	default:
		om.Type = state.OutputSystem
		om.Text = flattenText(msg.Content)
	}

	seqd, err := e.store.AppendOutput(jobID, om)
	if err != nil {
		return
	}
	if e.events != nil {
		e.events.JobOutput(jobID, seqd)
	}
}

func (e *Executor) terminate(jobID, agentName string, outcome runOutcome) {
	completedAt := e.clock.Now()
	patch := state.JobPatch{
		Status:      &outcome.status,
		CompletedAt: &completedAt,
		ExitReason:  &outcome.exitReason,
		DurationMS:  &outcome.durationMS,
		NumTurns:    &outcome.numTurns,
		CostUSD:     &outcome.costUSD,
		TokensIn:    &outcome.tokensIn,
		TokensOut:   &outcome.tokensOut,
	}
	if outcome.jobErr != nil {
		patch.Error = outcome.jobErr
	}
	job, err := e.store.UpdateJob(jobID, patch)
	if err != nil || job == nil {
		return
	}
	e.mu.Lock()
	delete(e.retriedJob, jobID)
	e.mu.Unlock()
	if e.events == nil {
		return
	}
	switch outcome.status {
	case state.JobCompleted:
		e.events.JobCompleted(*job)
	case state.JobFailed:
		e.events.JobFailed(*job)
	case state.JobCancelled:
		e.events.JobCancelled(*job)
	}
}

// retryOnce re-runs a job exactly once after a classified transient spawn
// failure, reusing the job ID and recording a system message.
func (e *Executor) retryOnce(agent config.Agent, job state.Job) {
	_, _ = e.store.AppendOutput(job.ID, state.OutputMessage{
		Type:      state.OutputSystem,
		Timestamp: e.clock.Now(),
		Text:      "retrying after transient failure",
	})
	go e.run(agent, job, false)
}

// CancelOptions configures Cancel.
type CancelOptions struct {
	Timeout time.Duration
}

// CancelResult reports the outcome of a Cancel call.
type CancelResult struct {
	JobID       string
	Success     bool
	Termination string // graceful | forced
}

// Cancel cancels the job's context, which ends the ingest loop and makes the
// runtime stop its process, then waits up to opts.Timeout (default 5s) for the
// job's run to finish. Termination is "graceful" if it finished in time and
// "forced" otherwise; nothing further is done to the job at the deadline.
func (e *Executor) Cancel(jobID string, opts CancelOptions) (*CancelResult, error) {
	e.mu.Lock()
	cancel, ok := e.running[jobID]
	e.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("executor: job %s is not running", jobID)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	cancel()

	deadline := time.After(timeout)
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	termination := "forced"
	for {
		select {
		case <-deadline:
			return &CancelResult{JobID: jobID, Success: true, Termination: termination}, nil
		case <-ticker.C:
			e.mu.Lock()
			_, stillRunning := e.running[jobID]
			e.mu.Unlock()
			if !stillRunning {
				termination = "graceful"
				return &CancelResult{JobID: jobID, Success: true, Termination: termination}, nil
			}
		}
	}
}

// Fork creates a new job inheriting parent's agent/workspace/session.
func (e *Executor) Fork(parentJobID string, agent config.Agent, opts CreateOptions) (*state.Job, error) {
	parent, err := e.store.ReadJob(parentJobID)
	if err != nil {
		return nil, fmt.Errorf("executor: reading parent job: %w", err)
	}
	if !parent.Status.Terminal() {
		return nil, fmt.Errorf("executor: cannot fork non-terminal job %s (status=%s)", parentJobID, parent.Status)
	}

	prompt := opts.Prompt
	if prompt == "" {
		prompt = parent.Prompt
	}

	child, err := e.Trigger(CreateOptions{
		Agent:       agent,
		Schedule:    opts.Schedule,
		Prompt:      prompt,
		TriggerType: state.TriggerFork,
		ParentJobID: parentJobID,
		Resume:      true,
	})
	if err != nil {
		return nil, err
	}
	if e.events != nil {
		e.events.JobForked(*parent, *child)
	}
	return child, nil
}

// resolveSession implements the session-resolution step: validates a
// resumed session's workspace still matches the agent's, clearing drift.
func (e *Executor) resolveSession(agent config.Agent, resume bool) string {
	if !resume {
		return ""
	}
	sess, err := e.store.ReadSession(agent.QualifiedName)
	if err != nil || sess == nil {
		return ""
	}
	if sess.Workspace != agent.Workspace {
		_ = e.store.ClearSession(agent.QualifiedName)
		return ""
	}
	return sess.SessionID
}

// classifySpawnError maps a Runtime.Invoke error to one of the spec's
// retry-classified codes (auth_expired, token_expired, transient_network)
// when its message matches, falling back to a generic, never-retried
// spawn_error otherwise.
func classifySpawnError(err error) string {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "token") && strings.Contains(msg, "expired"):
		return "token_expired"
	case strings.Contains(msg, "auth") && (strings.Contains(msg, "expired") || strings.Contains(msg, "unauthorized")):
		return "auth_expired"
	case strings.Contains(msg, "network") || strings.Contains(msg, "connection reset") || strings.Contains(msg, "timeout") || strings.Contains(msg, "temporary"):
		return "transient_network"
	default:
		return "spawn_error"
	}
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

func flattenText(blocks []runtime.ContentBlock) string {
	var out string
	for _, b := range blocks {
		if b.Text != "" {
			if out != "" {
				out += "\n"
			}
			out += b.Text
		}
	}
	return out
}

func toolUseIDFrom(blocks []runtime.ContentBlock) string {
	for _, b := range blocks {
		if b.ToolUseID != "" {
			return b.ToolUseID
		}
	}
	return ""
}

func toolNameFrom(blocks []runtime.ContentBlock) string {
	for _, b := range blocks {
		if b.ToolName != "" {
			return b.ToolName
		}
	}
	return ""
}

func toolResultIDFrom(blocks []runtime.ContentBlock) string {
	for _, b := range blocks {
		if b.ToolResultFor != "" {
			return b.ToolResultFor
		}
	}
	return ""
}
