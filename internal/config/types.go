// Package config implements herdctl's hierarchical fleet configuration
// resolver (C1): loading, name qualification, defaults merging, variable
// interpolation, and diffing of resolved snapshots for hot reload.
package config

import "regexp"

// NamePattern is the validity pattern for fleet names and agent local names.
var NamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

// ValidName reports whether name satisfies NamePattern.
func ValidName(name string) bool {
	return NamePattern.MatchString(name)
}

// ScheduleKind is a closed tagged variant for the four schedule flavors.
type ScheduleKind string

const (
	ScheduleInterval ScheduleKind = "interval"
	ScheduleCron     ScheduleKind = "cron"
	ScheduleWebhook  ScheduleKind = "webhook"
	ScheduleChat     ScheduleKind = "chat"
)

// Polled reports whether the scheduler polls this schedule kind itself, as
// opposed to it being fired by an external collaborator.
func (k ScheduleKind) Polled() bool {
	return k == ScheduleInterval || k == ScheduleCron
}

// Schedule is a resolved, immutable triggering rule attached to an agent.
type Schedule struct {
	Name     string       `yaml:"name"`
	Kind     ScheduleKind `yaml:"kind"`
	Interval string       `yaml:"interval,omitempty"` // duration grammar, e.g. "60s"
	Cron     string       `yaml:"cron,omitempty"`     // 5-field cron expression
	Prompt   string       `yaml:"prompt,omitempty"`
	Enabled  bool         `yaml:"enabled"`
}

// HookCommand is a single pre/post-job hook invocation.
type HookCommand struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args,omitempty"`
	Timeout string   `yaml:"timeout,omitempty"`
}

// AgentHooks holds the lifecycle hooks configured for an agent.
type AgentHooks struct {
	PreJob  []HookCommand `yaml:"pre_job,omitempty"`
	PostJob []HookCommand `yaml:"post_job,omitempty"`
}

// Agent is the immutable, resolved snapshot of one agent produced by Load.
// It never holds a pointer back to its containing fleet; FleetPath is a
// flattened list of ancestor names, per the DAG-flattening design note.
type Agent struct {
	LocalName     string   `yaml:"-"`
	FleetPath     []string `yaml:"-"`
	QualifiedName string   `yaml:"-"`

	Model          string     `yaml:"model,omitempty"`
	MaxTurns       int        `yaml:"max_turns,omitempty"`
	PermissionMode string     `yaml:"permission_mode,omitempty"`
	AllowedTools   []string   `yaml:"allowed_tools,omitempty"`
	DeniedTools    []string   `yaml:"denied_tools,omitempty"`
	Workspace      string     `yaml:"workspace,omitempty"`
	Runtime        string     `yaml:"runtime,omitempty"` // claude | cli | sdk | generic
	MaxConcurrent  int        `yaml:"max_concurrent,omitempty"`
	IdleTimeout    string     `yaml:"idle_timeout,omitempty"`
	MaxDuration    string     `yaml:"max_duration,omitempty"`
	Hooks          AgentHooks `yaml:"hooks,omitempty"`
	Schedules      []Schedule `yaml:"schedules,omitempty"`
}

// WebConfig is the dashboard configuration block, honored only at the root fleet.
type WebConfig struct {
	Enabled bool   `yaml:"enabled,omitempty"`
	Addr    string `yaml:"addr,omitempty"`
}

// FleetMeta carries fleet-wide, non-agent metadata from the root fleet.
type FleetMeta struct {
	Name string     `yaml:"name,omitempty"`
	Web  *WebConfig `yaml:"web,omitempty"`
}

// ResolvedConfig is the flat, immutable output of Load. The manager swaps
// its pointer atomically on reload; nothing outside this package mutates it.
type ResolvedConfig struct {
	Agents    []Agent
	FleetMeta FleetMeta
}

// AgentByQualifiedName returns the agent with the given qualified name, if present.
func (c *ResolvedConfig) AgentByQualifiedName(name string) (*Agent, bool) {
	for i := range c.Agents {
		if c.Agents[i].QualifiedName == name {
			return &c.Agents[i], true
		}
	}
	return nil, false
}

// AgentByLocalName returns the unique agent whose local name matches, when
// exactly one such agent exists; used as a fallback for CLI ergonomics.
func (c *ResolvedConfig) AgentByLocalName(name string) (*Agent, bool) {
	var found *Agent
	count := 0
	for i := range c.Agents {
		if c.Agents[i].LocalName == name {
			found = &c.Agents[i]
			count++
		}
	}
	if count == 1 {
		return found, true
	}
	return nil, false
}
