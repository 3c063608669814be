// Package runtime defines the Runtime Adapter (C6): the uniform contract the
// Job Executor uses to invoke any agent backend, plus a concrete subprocess
// adapter for the Claude CLI's stream-json protocol.
package runtime

import "time"

// ContentBlock is one piece of a Message's content, mirroring the Claude
// stream-json content-block shapes (text, tool_use, tool_result).
type ContentBlock struct {
	Type string `json:"type"`

	Text string `json:"text,omitempty"`

	ToolUseID string      `json:"id,omitempty"`
	ToolName  string      `json:"name,omitempty"`
	ToolInput interface{} `json:"input,omitempty"`

	ToolResultFor string      `json:"tool_use_id,omitempty"`
	ToolResult    interface{} `json:"content,omitempty"`
	IsError       bool        `json:"is_error,omitempty"`
}

// Usage carries token accounting reported on assistant/result messages.
type Usage struct {
	InputTokens  int `json:"input_tokens,omitempty"`
	OutputTokens int `json:"output_tokens,omitempty"`
}

// Message is one typed unit pushed by a Runtime's invoke stream. Type is one
// of "assistant", "tool_use", "tool_result", "system", "result", "error";
// only the fields relevant to Type are populated.
type Message struct {
	Type      string         `json:"type"`
	Role      string         `json:"role,omitempty"`
	Content   []ContentBlock `json:"content,omitempty"`
	SessionID string         `json:"session_id,omitempty"`
	Usage     *Usage         `json:"usage,omitempty"`

	// result-terminal fields
	DurationMS int64   `json:"duration_ms,omitempty"`
	NumTurns   int     `json:"num_turns,omitempty"`
	CostUSD    float64 `json:"total_cost_usd,omitempty"`
	IsError    bool    `json:"is_error,omitempty"`

	// error fields
	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`

	Timestamp time.Time `json:"-"`
}

// AgentConfig is the subset of a resolved agent the runtime needs to spawn
// it, kept narrow so this package doesn't import internal/config.
type AgentConfig struct {
	Model          string
	MaxTurns       int
	PermissionMode string
	AllowedTools   []string
	DeniedTools    []string
	Workspace      string
	Runtime        string // claude | cli | sdk | generic
}

// CancellationToken is satisfied by context.Context; kept as a narrow
// interface so callers aren't forced to import context just for this.
type CancellationToken interface {
	Done() <-chan struct{}
	Err() error
}

// InvokeOptions configures one Runtime.Invoke call.
type InvokeOptions struct {
	Prompt       string
	AgentConfig  AgentConfig
	SessionID    string // resume target, if any
	Cancel       CancellationToken
	OnSessionID  func(id string) // called once, before the first assistant message
}

// Runtime is the capability interface the Job Executor depends on instead of
// any concrete backend; it is the only open extension point in the system.
type Runtime interface {
	// Invoke spawns one agent turn and returns a channel of typed messages.
	// The channel is closed exactly once, as the sole terminal signal;
	// cancellation via options.Cancel closes it within a bounded delay.
	Invoke(opts InvokeOptions) (<-chan Message, error)
}
