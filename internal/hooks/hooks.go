// Package hooks runs an agent's pre_job/post_job lifecycle hook commands.
// Hook failures are logged and otherwise swallowed: hooks observe a job, they
// never gate it.
package hooks

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/edspencer/herdctl-sub001/internal/config"
)

const defaultTimeout = 30 * time.Second

// Logger is the narrow logging surface hooks writes through, matching the
// rest of the module's injected-Printf convention.
type Logger interface {
	Printf(format string, args ...interface{})
}

// Context carries the job identity hook commands receive as environment
// variables, per the spec's HERDCTL_JOB_ID / HERDCTL_AGENT / HERDCTL_STATUS.
type Context struct {
	JobID  string
	Agent  string
	Status string
}

func (c Context) env() []string {
	return append(os.Environ(),
		"HERDCTL_JOB_ID="+c.JobID,
		"HERDCTL_AGENT="+c.Agent,
		"HERDCTL_STATUS="+c.Status,
	)
}

// RunPreJob executes an agent's configured pre_job hooks in order.
func RunPreJob(ctx Context, agent config.Agent, log Logger) {
	run(ctx, agent.Hooks.PreJob, log)
}

// RunPostJob executes an agent's configured post_job hooks in order.
func RunPostJob(ctx Context, agent config.Agent, log Logger) {
	run(ctx, agent.Hooks.PostJob, log)
}

func run(hookCtx Context, cmds []config.HookCommand, log Logger) {
	for _, c := range cmds {
		if err := runOne(hookCtx, c); err != nil && log != nil {
			log.Printf("hook %q for job %s failed: %v", c.Command, hookCtx.JobID, err)
		}
	}
}

// HookError wraps a failed hook invocation with its captured stderr, in the
// same raw-output-for-observation shape the module's subprocess wrappers use
// elsewhere.
type HookError struct {
	Command string
	Stderr  string
	Err     error
}

func (e *HookError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("hook %s: %s", e.Command, e.Stderr)
	}
	return fmt.Sprintf("hook %s: %v", e.Command, e.Err)
}

func (e *HookError) Unwrap() error { return e.Err }

func runOne(hookCtx Context, c config.HookCommand) error {
	timeout := defaultTimeout
	if c.Timeout != "" {
		if d, err := time.ParseDuration(c.Timeout); err == nil {
			timeout = d
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.Command, c.Args...)
	cmd.Env = hookCtx.env()
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return &HookError{Command: c.Command, Stderr: stderr.String(), Err: err}
	}
	return nil
}
