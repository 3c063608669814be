package state

import "time"

// JobStatus is a closed tagged variant for a job's lifecycle position.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// Terminal reports whether status is one of the three absorbing states.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobCancelled
}

// TriggerType records what caused a job to be created.
type TriggerType string

const (
	TriggerScheduler TriggerType = "scheduler"
	TriggerManual    TriggerType = "manual"
	TriggerChat      TriggerType = "chat"
	TriggerWeb       TriggerType = "web"
	TriggerFork      TriggerType = "fork"
)

// ExitReason further classifies a terminal job.
type ExitReason string

const (
	ExitNormal    ExitReason = "normal"
	ExitTimeout   ExitReason = "timeout"
	ExitCancelled ExitReason = "cancelled"
	ExitError     ExitReason = "error"
)

// JobError is the structured error recorded on a failed job.
type JobError struct {
	Code    string `yaml:"code" json:"code"`
	Message string `yaml:"message" json:"message"`
}

// Job is one unit the executor owns, as persisted to jobs/<id>.yaml.
type Job struct {
	ID                 string      `yaml:"id"`
	Agent              string      `yaml:"agent"`
	Schedule           string      `yaml:"schedule,omitempty"`
	TriggerType        TriggerType `yaml:"trigger_type"`
	Status             JobStatus   `yaml:"status"`
	CreatedAt          time.Time   `yaml:"created_at"`
	StartedAt          *time.Time  `yaml:"started_at,omitempty"`
	CompletedAt        *time.Time  `yaml:"completed_at,omitempty"`
	Prompt             string      `yaml:"prompt"`
	SessionID          string      `yaml:"session_id,omitempty"`
	ParentJobID        string      `yaml:"parent_job_id,omitempty"`
	ExitReason         ExitReason  `yaml:"exit_reason,omitempty"`
	Error              *JobError   `yaml:"error,omitempty"`
	Workspace          string      `yaml:"workspace,omitempty"`
	DurationMS         int64       `yaml:"duration_ms,omitempty"`
	NumTurns           int         `yaml:"num_turns,omitempty"`
	CostUSD            float64     `yaml:"cost_usd,omitempty"`
	TokensIn           int         `yaml:"tokens_in,omitempty"`
	TokensOut          int         `yaml:"tokens_out,omitempty"`
}

// OutputKind is a closed tagged variant for one line of a job's output log.
type OutputKind string

const (
	OutputAssistant OutputKind = "assistant"
	OutputToolUse   OutputKind = "tool_use"
	OutputToolResult OutputKind = "tool_result"
	OutputSystem    OutputKind = "system"
	OutputResult    OutputKind = "result"
	OutputError     OutputKind = "error"
)

// OutputMessage is one append-only JSONL record for a job.
type OutputMessage struct {
	Seq       int        `json:"seq"`
	Timestamp time.Time  `json:"ts"`
	Type      OutputKind `json:"type"`

	Text string `json:"text,omitempty"` // assistant

	ToolUseID string `json:"tool_use_id,omitempty"` // tool_use / tool_result
	ToolName  string `json:"tool_name,omitempty"`
	ToolInput string `json:"tool_input,omitempty"`
	ToolOutput string `json:"tool_output,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`

	DurationMS int64   `json:"duration_ms,omitempty"` // result
	NumTurns   int     `json:"num_turns,omitempty"`
	CostUSD    float64 `json:"cost_usd,omitempty"`
	TokensIn   int     `json:"tokens_in,omitempty"`
	TokensOut  int     `json:"tokens_out,omitempty"`

	ErrorCode    string `json:"error_code,omitempty"` // error / system
	ErrorMessage string `json:"error_message,omitempty"`
}

// ScheduleState is the mutable counterpart to a config.Schedule, keyed by
// (agent, name), persisted in state.yaml.
type ScheduleState struct {
	Agent         string     `yaml:"agent"`
	Name          string     `yaml:"name"`
	Enabled       bool       `yaml:"enabled"`
	LastRunAt     *time.Time `yaml:"last_run_at,omitempty"`
	NextRunAt     *time.Time `yaml:"next_run_at,omitempty"`
	LastCheckAt   *time.Time `yaml:"last_check_at,omitempty"`
	LastTriggerID string     `yaml:"last_trigger_id,omitempty"`
	RunCount      int        `yaml:"run_count,omitempty"`
	SkipCount     int        `yaml:"skip_count,omitempty"`
}

// FleetStatus is the supervisor-wide lifecycle position recorded in state.yaml.
type FleetStatus string

const (
	FleetPending     FleetStatus = "pending"
	FleetInitialized FleetStatus = "initialized"
	FleetRunning     FleetStatus = "running"
	FleetStopped     FleetStatus = "stopped"
	FleetError       FleetStatus = "error"
)

// FleetState is state.yaml's top-level shape.
type FleetState struct {
	Version   int             `yaml:"version"`
	Fleet     FleetStateBlock `yaml:"fleet"`
	Schedules []ScheduleState `yaml:"schedules,omitempty"`
}

// FleetStateBlock is the fleet-wide metadata nested under FleetState.
type FleetStateBlock struct {
	Name      string      `yaml:"name,omitempty"`
	Status    FleetStatus `yaml:"status"`
	StartedAt *time.Time  `yaml:"started_at,omitempty"`
	StoppedAt *time.Time  `yaml:"stopped_at,omitempty"`
}

// Session is a persisted conversation-continuity handle for (agent, channel).
type Session struct {
	SessionID     string    `json:"session_id"`
	ChannelKey    string    `json:"channel_key"`
	LastMessageAt time.Time `json:"last_message_at"`
	Workspace     string    `json:"workspace"`
}
