package config

import (
	"fmt"
	"testing"
)

type memFS map[string]string

func (m memFS) ReadFile(path string) ([]byte, error) {
	v, ok := m[path]
	if !ok {
		return nil, fmt.Errorf("no such file: %s", path)
	}
	return []byte(v), nil
}

func noEnv(string) (string, bool) { return "", false }

func TestLoadFlatSingleFleet(t *testing.T) {
	fs := memFS{
		"/root.yaml": `
version: 1
agents:
  - path: a.yaml
  - path: b.yaml
`,
		"/a.yaml": `model: claude-3-opus`,
		"/b.yaml": `model: claude-3-sonnet`,
	}

	cfg, err := Load("/root.yaml", noEnv, fs)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Agents) != 2 {
		t.Fatalf("expected 2 agents, got %d", len(cfg.Agents))
	}
	for _, a := range cfg.Agents {
		if len(a.FleetPath) != 0 {
			t.Errorf("agent %s: expected empty fleet_path, got %v", a.QualifiedName, a.FleetPath)
		}
	}
}

func TestLoadTwoLevelQualification(t *testing.T) {
	fs := memFS{
		"/root.yaml": `
version: 1
fleets:
  - path: sub/fleet.yaml
`,
		"/sub/fleet.yaml": `
version: 1
fleet:
  name: my-fleet
agents:
  - path: worker.yaml
`,
		"/sub/worker.yaml": `model: claude-3-opus`,
	}

	cfg, err := Load("/root.yaml", noEnv, fs)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Agents) != 1 {
		t.Fatalf("expected 1 agent, got %d", len(cfg.Agents))
	}
	a := cfg.Agents[0]
	if a.QualifiedName != "my-fleet.worker" {
		t.Errorf("expected qualified_name my-fleet.worker, got %s", a.QualifiedName)
	}
	if len(a.FleetPath) != 1 || a.FleetPath[0] != "my-fleet" {
		t.Errorf("expected fleet_path [my-fleet], got %v", a.FleetPath)
	}
}

func TestLoadFleetNameCollision(t *testing.T) {
	fs := memFS{
		"/root.yaml": `
version: 1
fleets:
  - path: a/fleet.yaml
    name: x
  - path: b/fleet.yaml
    name: x
`,
		"/a/fleet.yaml": `version: 1`,
		"/b/fleet.yaml": `version: 1`,
	}

	_, err := Load("/root.yaml", noEnv, fs)
	var collision *FleetNameCollisionError
	if !asError(err, &collision) {
		t.Fatalf("expected FleetNameCollisionError, got %v", err)
	}
	if collision.Name != "x" {
		t.Errorf("expected collision name x, got %s", collision.Name)
	}
}

func TestLoadDefaultsCascade(t *testing.T) {
	fs := memFS{
		"/root.yaml": `
version: 1
defaults:
  model: M1
  max_turns: 200
fleets:
  - path: sub/fleet.yaml
`,
		"/sub/fleet.yaml": `
version: 1
fleet:
  name: sub
defaults:
  model: M2
agents:
  - path: worker.yaml
`,
		"/sub/worker.yaml": `version: 1`,
	}

	cfg, err := Load("/root.yaml", noEnv, fs)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	a := cfg.Agents[0]
	if a.Model != "M2" {
		t.Errorf("expected model M2, got %s", a.Model)
	}
	if a.MaxTurns != 200 {
		t.Errorf("expected max_turns 200 (cascaded from root), got %d", a.MaxTurns)
	}
}

func TestLoadDefaultsCascadeFleetRefOverride(t *testing.T) {
	fs := memFS{
		"/root.yaml": `
version: 1
defaults:
  model: M1
fleets:
  - path: sub/fleet.yaml
    overrides:
      defaults:
        model: M3
`,
		"/sub/fleet.yaml": `
version: 1
fleet:
  name: sub
agents:
  - path: worker.yaml
`,
		"/sub/worker.yaml": `version: 1`,
	}

	cfg, err := Load("/root.yaml", noEnv, fs)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Agents[0].Model != "M3" {
		t.Errorf("expected model M3, got %s", cfg.Agents[0].Model)
	}
}

// TestLoadDefaultsCascadeOverrideBeatsSubFleetDefaults exercises the case
// where the sub-fleet sets its own defaults AND the parent's fleet reference
// overrides them: the reference override (priority level 5) must win over
// the sub-fleet's own defaults (level 2).
func TestLoadDefaultsCascadeOverrideBeatsSubFleetDefaults(t *testing.T) {
	fs := memFS{
		"/root.yaml": `
version: 1
fleets:
  - path: sub/fleet.yaml
    overrides:
      defaults:
        model: M3
`,
		"/sub/fleet.yaml": `
version: 1
fleet:
  name: sub
defaults:
  model: M2
agents:
  - path: worker.yaml
`,
		"/sub/worker.yaml": `version: 1`,
	}

	cfg, err := Load("/root.yaml", noEnv, fs)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Agents[0].Model != "M3" {
		t.Errorf("expected model M3 (fleet ref override beats sub-fleet defaults), got %s", cfg.Agents[0].Model)
	}
}

func TestLoadUndefinedVariable(t *testing.T) {
	fs := memFS{
		"/root.yaml": `
version: 1
agents:
  - path: a.yaml
`,
		"/a.yaml": `model: ${MODEL_NAME}`,
	}
	_, err := Load("/root.yaml", noEnv, fs)
	var undef *UndefinedVariableError
	if !asError(err, &undef) {
		t.Fatalf("expected UndefinedVariableError, got %v", err)
	}
}

func TestLoadVariableWithDefault(t *testing.T) {
	fs := memFS{
		"/root.yaml": `
version: 1
agents:
  - path: a.yaml
`,
		"/a.yaml": `model: ${MODEL_NAME:-claude-3-haiku}`,
	}
	cfg, err := Load("/root.yaml", noEnv, fs)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Agents[0].Model != "claude-3-haiku" {
		t.Errorf("expected default model, got %s", cfg.Agents[0].Model)
	}
}

func TestDiffIdempotent(t *testing.T) {
	fs := memFS{
		"/root.yaml": `
version: 1
agents:
  - path: a.yaml
`,
		"/a.yaml": `model: claude-3-opus`,
	}
	cfg, err := Load("/root.yaml", noEnv, fs)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if changes := Diff(cfg, cfg); len(changes) != 0 {
		t.Errorf("expected no changes diffing config against itself, got %v", changes)
	}
}

func TestDiffHotReloadRemoval(t *testing.T) {
	before := &ResolvedConfig{Agents: []Agent{
		{QualifiedName: "fleet-a.worker"},
		{QualifiedName: "fleet-b.worker"},
	}}
	after := &ResolvedConfig{Agents: []Agent{
		{QualifiedName: "fleet-a.worker"},
	}}
	changes := Diff(before, after)
	if len(changes) != 1 {
		t.Fatalf("expected 1 change, got %d: %v", len(changes), changes)
	}
	if changes[0].Type != ChangeRemoved || changes[0].QualifiedName != "fleet-b.worker" {
		t.Errorf("unexpected change: %+v", changes[0])
	}
}

func TestValidName(t *testing.T) {
	cases := []struct {
		name string
		ok   bool
	}{
		{"worker", true},
		{"worker-1", true},
		{"worker_1", true},
		{"1worker", true},
		{"-worker", false},
		{"_worker", false},
		{"wor.ker", false},
		{"", false},
	}
	for _, c := range cases {
		if got := ValidName(c.name); got != c.ok {
			t.Errorf("ValidName(%q) = %v, want %v", c.name, got, c.ok)
		}
	}
}

// asError is a small errors.As shim kept local to the test file to avoid an
// extra import line per test.
func asError(err error, target interface{}) bool {
	switch t := target.(type) {
	case **FleetNameCollisionError:
		e, ok := err.(*FleetNameCollisionError)
		if ok {
			*t = e
		}
		return ok
	case **UndefinedVariableError:
		e, ok := err.(*UndefinedVariableError)
		if ok {
			*t = e
		}
		return ok
	}
	return false
}
