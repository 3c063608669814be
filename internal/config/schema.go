package config

// rawFile is the on-disk shape of a fleet or sub-fleet file: version plus an
// optional fleet block, defaults, sub-fleet references, and agent references.
// Unknown fields at this level are permitted (forward-compat), matched by
// yaml.v3's default lenient decoding into this struct.
type rawFile struct {
	Version  int             `yaml:"version"`
	Fleet    *rawFleetBlock  `yaml:"fleet,omitempty"`
	Defaults *rawDefaults    `yaml:"defaults,omitempty"`
	Fleets   []rawFleetRef   `yaml:"fleets,omitempty"`
	Agents   []rawAgentRef   `yaml:"agents,omitempty"`

	// Present only on an agent-shaped file (no fleet: block): the agent's
	// own fields, merged at cascade level 3. A top-level workspace: key is
	// decoded into rawAgentFields.Workspace.
	rawAgentFields `yaml:",inline"`
}

// isFleetFile distinguishes a sub-fleet file from a bare agent file: it
// reports true when the file has a fleet: block or any fleets:/agents:
// references, regardless of path or extension.
func (r *rawFile) isFleetFile() bool {
	return r.Fleet != nil || len(r.Fleets) > 0 || len(r.Agents) > 0
}

type rawFleetBlock struct {
	Name string     `yaml:"name,omitempty"`
	Web  *WebConfig `yaml:"web,omitempty"`
}

type rawDefaults struct {
	rawAgentFields `yaml:",inline"`
}

type rawFleetRef struct {
	Path      string          `yaml:"path"`
	Name      string          `yaml:"name,omitempty"`
	Overrides *rawFleetOverride `yaml:"overrides,omitempty"`
}

type rawFleetOverride struct {
	Defaults *rawDefaults `yaml:"defaults,omitempty"`
}

type rawAgentRef struct {
	Path      string           `yaml:"path"`
	Name      string           `yaml:"name,omitempty"`
	Overrides *rawAgentFields  `yaml:"overrides,omitempty"`
}

// rawAgentFields mirrors Agent's configurable fields as pointers/zero-values
// so the merge cascade can tell "unset" from "set to zero value".
type rawAgentFields struct {
	Model          *string     `yaml:"model,omitempty"`
	MaxTurns       *int        `yaml:"max_turns,omitempty"`
	PermissionMode *string     `yaml:"permission_mode,omitempty"`
	AllowedTools   []string    `yaml:"allowed_tools,omitempty"`
	DeniedTools    []string    `yaml:"denied_tools,omitempty"`
	Workspace      *string     `yaml:"workspace,omitempty"`
	Runtime        *string     `yaml:"runtime,omitempty"`
	MaxConcurrent  *int        `yaml:"max_concurrent,omitempty"`
	IdleTimeout    *string     `yaml:"idle_timeout,omitempty"`
	MaxDuration    *string     `yaml:"max_duration,omitempty"`
	Hooks          *AgentHooks `yaml:"hooks,omitempty"`
	Schedules      []Schedule  `yaml:"schedules,omitempty"`
}

// merge overlays src fields onto dst wherever src has them set (higher
// priority wins); nested Hooks deep-merge by replacing only the sides that
// are set, arrays (AllowedTools, DeniedTools, Schedules) replace wholesale.
func (dst *rawAgentFields) merge(src *rawAgentFields) {
	if src == nil {
		return
	}
	if src.Model != nil {
		dst.Model = src.Model
	}
	if src.MaxTurns != nil {
		dst.MaxTurns = src.MaxTurns
	}
	if src.PermissionMode != nil {
		dst.PermissionMode = src.PermissionMode
	}
	if src.AllowedTools != nil {
		dst.AllowedTools = src.AllowedTools
	}
	if src.DeniedTools != nil {
		dst.DeniedTools = src.DeniedTools
	}
	if src.Workspace != nil {
		dst.Workspace = src.Workspace
	}
	if src.Runtime != nil {
		dst.Runtime = src.Runtime
	}
	if src.MaxConcurrent != nil {
		dst.MaxConcurrent = src.MaxConcurrent
	}
	if src.IdleTimeout != nil {
		dst.IdleTimeout = src.IdleTimeout
	}
	if src.MaxDuration != nil {
		dst.MaxDuration = src.MaxDuration
	}
	if src.Hooks != nil {
		var merged AgentHooks
		if dst.Hooks != nil {
			merged = *dst.Hooks
		}
		if src.Hooks.PreJob != nil {
			merged.PreJob = src.Hooks.PreJob
		}
		if src.Hooks.PostJob != nil {
			merged.PostJob = src.Hooks.PostJob
		}
		dst.Hooks = &merged
	}
	if src.Schedules != nil {
		dst.Schedules = src.Schedules
	}
}

// toAgent materializes the accumulated fields into a resolved Agent.
func (f *rawAgentFields) toAgent() Agent {
	a := Agent{}
	if f.Model != nil {
		a.Model = *f.Model
	}
	if f.MaxTurns != nil {
		a.MaxTurns = *f.MaxTurns
	}
	if f.PermissionMode != nil {
		a.PermissionMode = *f.PermissionMode
	}
	a.AllowedTools = f.AllowedTools
	a.DeniedTools = f.DeniedTools
	if f.Workspace != nil {
		a.Workspace = *f.Workspace
	}
	if f.Runtime != nil {
		a.Runtime = *f.Runtime
	}
	if f.MaxConcurrent != nil {
		a.MaxConcurrent = *f.MaxConcurrent
	}
	if f.IdleTimeout != nil {
		a.IdleTimeout = *f.IdleTimeout
	}
	if f.MaxDuration != nil {
		a.MaxDuration = *f.MaxDuration
	}
	if f.Hooks != nil {
		a.Hooks = *f.Hooks
	}
	a.Schedules = f.Schedules
	return a
}
