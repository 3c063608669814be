package runtime

import (
	"strings"
	"testing"
)

func TestBuildArgsDefaults(t *testing.T) {
	r := NewClaudeRuntime()
	args := r.buildArgs(InvokeOptions{AgentConfig: AgentConfig{}})
	joined := strings.Join(args, " ")
	for _, want := range []string{"--output-format stream-json", "--input-format stream-json", "--permission-mode default"} {
		if !strings.Contains(joined, want) {
			t.Errorf("expected args to contain %q, got %q", want, joined)
		}
	}
	if strings.Contains(joined, "--resume") {
		t.Errorf("expected no --resume flag without a session id, got %q", joined)
	}
}

func TestBuildArgsWithSessionAndTools(t *testing.T) {
	r := NewClaudeRuntime()
	args := r.buildArgs(InvokeOptions{
		SessionID: "sess-123",
		AgentConfig: AgentConfig{
			Model:          "claude-opus",
			PermissionMode: "acceptEdits",
			MaxTurns:       5,
			AllowedTools:   []string{"Read", "Write"},
			DeniedTools:    []string{"Bash"},
		},
	})
	joined := strings.Join(args, " ")
	for _, want := range []string{
		"--resume sess-123",
		"--model claude-opus",
		"--permission-mode acceptEdits",
		"--max-turns 5",
		"--allowed-tools Read,Write",
		"--disallowed-tools Bash",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("expected args to contain %q, got %q", want, joined)
		}
	}
}
