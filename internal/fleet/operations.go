package fleet

import (
	"fmt"
	"time"

	"github.com/edspencer/herdctl-sub001/internal/config"
	"github.com/edspencer/herdctl-sub001/internal/eventbus"
	"github.com/edspencer/herdctl-sub001/internal/executor"
	"github.com/edspencer/herdctl-sub001/internal/state"
)

// TriggerOptions configures a manual/operator Trigger call.
type TriggerOptions struct {
	Prompt            string
	BypassConcurrency bool
}

// Trigger fires one job for agent qName, optionally via a named schedule.
func (m *Manager) Trigger(qName string, scheduleName string, opts TriggerOptions) (*state.Job, error) {
	m.mu.RLock()
	cfg := m.cfg
	m.mu.RUnlock()
	if cfg == nil {
		return nil, fmt.Errorf("fleet: not initialized")
	}

	agent, ok := cfg.AgentByQualifiedName(qName)
	if !ok {
		return nil, fmt.Errorf("fleet: unknown agent %q", qName)
	}

	var sched *config.Schedule
	if scheduleName != "" {
		for i := range agent.Schedules {
			if agent.Schedules[i].Name == scheduleName {
				sched = &agent.Schedules[i]
				break
			}
		}
		if sched == nil {
			return nil, fmt.Errorf("fleet: agent %q has no schedule %q", qName, scheduleName)
		}
	}

	maxConcurrent := agent.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	if !opts.BypassConcurrency && m.exec.RunningCount(qName) >= maxConcurrent {
		return nil, fmt.Errorf("fleet: agent %q is at max_concurrent", qName)
	}

	return m.exec.Trigger(executor.CreateOptions{
		Agent:       *agent,
		Schedule:    sched,
		Prompt:      opts.Prompt,
		TriggerType: state.TriggerManual,
		Resume:      true,
	})
}

// Cancel cancels a running job.
func (m *Manager) Cancel(jobID string, timeout time.Duration) (*executor.CancelResult, error) {
	return m.exec.Cancel(jobID, executor.CancelOptions{Timeout: timeout})
}

// Fork creates a new job inheriting a terminal parent's agent/workspace/session.
func (m *Manager) Fork(parentJobID string, prompt string) (*state.Job, error) {
	m.mu.RLock()
	cfg := m.cfg
	m.mu.RUnlock()
	if cfg == nil {
		return nil, fmt.Errorf("fleet: not initialized")
	}
	parent, err := m.store.ReadJob(parentJobID)
	if err != nil {
		return nil, err
	}
	agent, ok := cfg.AgentByQualifiedName(parent.Agent)
	if !ok {
		return nil, fmt.Errorf("fleet: agent %q for job %s no longer exists", parent.Agent, parentJobID)
	}
	return m.exec.Fork(parentJobID, *agent, executor.CreateOptions{Prompt: prompt})
}

// EnableSchedule flips a schedule's persisted enabled flag on; affects only
// subsequent polling decisions.
func (m *Manager) EnableSchedule(qName, scheduleName string) error {
	return m.setScheduleEnabled(qName, scheduleName, true)
}

// DisableSchedule flips a schedule's persisted enabled flag off.
func (m *Manager) DisableSchedule(qName, scheduleName string) error {
	return m.setScheduleEnabled(qName, scheduleName, false)
}

func (m *Manager) setScheduleEnabled(qName, scheduleName string, enabled bool) error {
	st, err := m.store.ReadScheduleState(qName, scheduleName)
	if err != nil {
		return err
	}
	st.Enabled = enabled
	return m.store.WriteScheduleState(*st)
}

// ReloadResult reports the outcome of a Reload call.
type ReloadResult struct {
	AgentCount int
	Changes    []config.Change
}

// Reload re-loads the config tree from the original root, diffs it against
// the current snapshot, atomically swaps in the new one, and emits events.
func (m *Manager) Reload() (*ReloadResult, error) {
	next, err := config.Load(m.rootPath, m.envLookup, config.OSFileSystem{})
	if err != nil {
		m.bus.Publish(eventbus.Event{Topic: eventbus.TopicConfigReloadErr, Payload: err.Error()})
		return nil, fmt.Errorf("fleet: reload: %w", err)
	}

	m.mu.Lock()
	prev := m.cfg
	m.cfg = next
	m.version++
	m.mu.Unlock()

	changes := config.Diff(prev, next)
	m.sched.SetAgents(next.Agents)
	m.applyHotReload(changes)

	m.bus.Publish(eventbus.Event{Topic: eventbus.TopicConfigReloaded, Payload: changes})
	for _, c := range changes {
		m.bus.Publish(eventbus.Event{Topic: changeTopic(c), Payload: c})
	}

	return &ReloadResult{AgentCount: len(next.Agents), Changes: changes}, nil
}

// applyHotReload implements the per-change-category hot-reload rules. Agent
// removal is a best-effort drain, never a cancel, per the spec's explicit
// "do not cancel by default" rule.
func (m *Manager) applyHotReload(changes []config.Change) {
	for _, c := range changes {
		if c.Category != config.CategorySchedule {
			continue
		}
		if c.Type == config.ChangeRemoved {
			agent, schedName, ok := splitQualifiedSchedule(c.QualifiedName)
			if ok {
				_ = m.store.RemoveScheduleState(agent, schedName)
			}
		}
	}
}

// splitQualifiedSchedule reverses config.diffSchedules's "agent.schedule"
// join by splitting at the last dot, since qualified agent names may
// themselves contain dots but a schedule's own name never does.
func splitQualifiedSchedule(s string) (agent, schedule string, ok bool) {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '.' {
			return s[:i], s[i+1:], true
		}
	}
	return "", "", false
}

func changeTopic(c config.Change) eventbus.Topic {
	switch c.Category {
	case config.CategoryAgent:
		switch c.Type {
		case config.ChangeAdded:
			return eventbus.TopicAgentStarted
		case config.ChangeRemoved:
			return eventbus.TopicAgentStopped
		}
	}
	return eventbus.TopicConfigReloaded
}
