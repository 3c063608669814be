package config

// agentPreset supplies the defaults a runtime provider brings before any
// fleet-level defaults cascade is applied, mirroring the teacher's per-agent
// preset table (command, resume support, session-id handling) keyed by
// provider name.
type agentPreset struct {
	Runtime        string
	PermissionMode string
	IdleTimeout    string
	MaxDuration    string
	MaxConcurrent  int
}

var agentPresets = map[string]agentPreset{
	"claude": {
		Runtime:        "claude",
		PermissionMode: "default",
		IdleTimeout:    "10m",
		MaxDuration:    "2h",
		MaxConcurrent:  1,
	},
	"cli": {
		Runtime:        "cli",
		PermissionMode: "default",
		IdleTimeout:    "10m",
		MaxDuration:    "2h",
		MaxConcurrent:  1,
	},
	"sdk": {
		Runtime:        "sdk",
		PermissionMode: "default",
		IdleTimeout:    "10m",
		MaxDuration:    "2h",
		MaxConcurrent:  1,
	},
	"generic": {
		Runtime:        "generic",
		PermissionMode: "default",
		IdleTimeout:    "10m",
		MaxDuration:    "2h",
		MaxConcurrent:  1,
	},
}

// presetFieldsFor returns the preset-layer rawAgentFields for a provider
// name, falling back to "claude" when empty or unrecognized. This layer sits
// below level 1 of the defaults cascade: it supplies only what nothing else sets.
func presetFieldsFor(provider string) rawAgentFields {
	p, ok := agentPresets[provider]
	if !ok {
		p = agentPresets["claude"]
	}
	runtime := p.Runtime
	mode := p.PermissionMode
	idle := p.IdleTimeout
	maxDur := p.MaxDuration
	maxConc := p.MaxConcurrent
	return rawAgentFields{
		Runtime:        &runtime,
		PermissionMode: &mode,
		IdleTimeout:    &idle,
		MaxDuration:    &maxDur,
		MaxConcurrent:  &maxConc,
		Hooks:          &AgentHooks{},
	}
}
