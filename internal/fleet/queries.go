package fleet

import (
	"fmt"

	"github.com/edspencer/herdctl-sub001/internal/config"
	"github.com/edspencer/herdctl-sub001/internal/eventbus"
)

// FleetStatusSnapshot is get_fleet_status()'s return shape, per the
// config_version expansion: a monotonically increasing counter bumped on
// every successful Reload, letting external collaborators detect a cached
// snapshot has gone stale.
type FleetStatusSnapshot struct {
	Status         Status
	AgentCount     int
	RunningJobCount int
	StartedAt      *int64 // unix seconds, nil if never started
	ConfigVersion  int
}

// GetFleetStatus returns a point-in-time snapshot of the fleet's own state.
func (m *Manager) GetFleetStatus() FleetStatusSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := FleetStatusSnapshot{
		Status:        m.status,
		ConfigVersion: m.version,
	}
	if m.cfg != nil {
		snap.AgentCount = len(m.cfg.Agents)
	}
	if m.startedAt != nil {
		sec := m.startedAt.Unix()
		snap.StartedAt = &sec
	}
	if m.exec != nil && m.cfg != nil {
		running := 0
		for _, a := range m.cfg.Agents {
			running += m.exec.RunningCount(a.QualifiedName)
		}
		snap.RunningJobCount = running
	}
	return snap
}

// GetAgentInfo returns every resolved agent in the current snapshot.
func (m *Manager) GetAgentInfo() []config.Agent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.cfg == nil {
		return nil
	}
	out := make([]config.Agent, len(m.cfg.Agents))
	copy(out, m.cfg.Agents)
	return out
}

// GetAgentInfoByName resolves id as a qualified name first, falling back to
// a unique local name.
func (m *Manager) GetAgentInfoByName(id string) (*config.Agent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.cfg == nil {
		return nil, fmt.Errorf("fleet: not initialized")
	}
	if a, ok := m.cfg.AgentByQualifiedName(id); ok {
		cp := *a
		return &cp, nil
	}
	if a, ok := m.cfg.AgentByLocalName(id); ok {
		cp := *a
		return &cp, nil
	}
	return nil, fmt.Errorf("fleet: no agent matches %q", id)
}

// GetSchedules returns every agent's schedules, flattened.
func (m *Manager) GetSchedules() []config.Schedule {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.cfg == nil {
		return nil
	}
	var out []config.Schedule
	for _, a := range m.cfg.Agents {
		out = append(out, a.Schedules...)
	}
	return out
}

// StreamLogs subscribes to every fleet-wide event topic.
func (m *Manager) StreamLogs() chan eventbus.Event {
	return eventbus.Subscribe(m.bus)
}

// StreamAgentLogs subscribes to job lifecycle events, to be filtered by the
// caller against qName (the bus itself is not agent-aware, only job-aware).
func (m *Manager) StreamAgentLogs(qName string) chan eventbus.Event {
	return eventbus.Subscribe(m.bus,
		eventbus.TopicJobCreated, eventbus.TopicJobOutput,
		eventbus.TopicJobCompleted, eventbus.TopicJobFailed, eventbus.TopicJobCancelled,
	)
}

// StreamJobOutput replays a job's stored output then follows live output via
// the event bus; "include history" per the spec means exactly this. The live
// channel carries job:output events for every job; callers filter by JobID.
func (m *Manager) StreamJobOutput(jobID string) (history []interface{}, live chan eventbus.Event, err error) {
	msgs, err := m.store.ReadOutput(jobID, 0)
	if err != nil {
		return nil, nil, err
	}
	for _, msg := range msgs {
		history = append(history, msg)
	}
	live = eventbus.Subscribe(m.bus, eventbus.TopicJobOutput)
	return history, live, nil
}

// Unsubscribe releases a stream channel obtained from one of the Stream* methods.
func (m *Manager) Unsubscribe(ch chan eventbus.Event) {
	eventbus.Unsubscribe(m.bus, ch)
}
