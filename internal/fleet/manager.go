// Package fleet implements the Fleet Manager (C5): the composition root that
// wires Config, State, Scheduler, Executor, and the event bus together, and
// is the sole public surface the CLI/dashboard/chat managers consume.
package fleet

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/edspencer/herdctl-sub001/internal/config"
	"github.com/edspencer/herdctl-sub001/internal/eventbus"
	"github.com/edspencer/herdctl-sub001/internal/executor"
	"github.com/edspencer/herdctl-sub001/internal/hooks"
	"github.com/edspencer/herdctl-sub001/internal/runtime"
	"github.com/edspencer/herdctl-sub001/internal/scheduler"
	"github.com/edspencer/herdctl-sub001/internal/state"
)

// Status is the supervisor's own lifecycle position, distinct from
// state.FleetStatus only in that it also models the pre-init zero value.
type Status string

const (
	StatusPending     Status = "pending"
	StatusInitialized Status = "initialized"
	StatusRunning     Status = "running"
	StatusStopped     Status = "stopped"
)

// InvalidState is returned when a lifecycle method is called from an
// incompatible current state.
type InvalidState struct {
	Current   Status
	Attempted string
}

func (e *InvalidState) Error() string {
	return fmt.Sprintf("fleet: cannot %s from state %s", e.Attempted, e.Current)
}

// Logger is the injected logging surface, shared with hooks.Logger.
type Logger = hooks.Logger

// Options configures a new Manager.
type Options struct {
	RootPath  string
	EnvLookup config.EnvLookup
	StateDir  string
	Runtime   runtime.Runtime
	Log       Logger
	TickEvery time.Duration
}

// Manager is the Fleet Manager composition root.
type Manager struct {
	rootPath  string
	envLookup config.EnvLookup
	log       Logger
	tickEvery time.Duration

	mu        sync.RWMutex
	status    Status
	cfg       *config.ResolvedConfig
	version   int
	startedAt *time.Time

	store *state.Store
	bus   *eventbus.Bus
	sched *scheduler.Scheduler
	exec  *executor.Executor
	rt    runtime.Runtime
}

// New constructs an uninitialized Manager.
func New(opts Options) *Manager {
	if opts.EnvLookup == nil {
		opts.EnvLookup = func(name string) (string, bool) {
			return "", false
		}
	}
	if opts.Runtime == nil {
		opts.Runtime = runtime.NewClaudeRuntime()
	}
	stateDir := opts.StateDir
	if stateDir == "" {
		stateDir = state.DefaultStateDir()
	}

	m := &Manager{
		rootPath:  opts.RootPath,
		envLookup: opts.EnvLookup,
		log:       opts.Log,
		tickEvery: opts.TickEvery,
		status:    StatusPending,
		store:     state.New(stateDir),
		rt:        opts.Runtime,
	}
	return m
}

// Status returns the manager's current lifecycle position.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// Initialize loads configuration, builds the event bus/scheduler/executor,
// and transitions to StatusInitialized. Idempotent once initialized.
func (m *Manager) Initialize() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status == StatusInitialized || m.status == StatusRunning {
		return nil
	}
	if m.status != StatusPending && m.status != StatusStopped {
		return &InvalidState{Current: m.status, Attempted: "initialize"}
	}

	cfg, err := config.Load(m.rootPath, m.envLookup, config.OSFileSystem{})
	if err != nil {
		return fmt.Errorf("fleet: loading config: %w", err)
	}
	m.cfg = cfg
	m.version++

	m.bus = eventbus.New(func(topic eventbus.Topic) {
		m.bus.Publish(eventbus.Event{Topic: eventbus.TopicSubscriberDropped, Payload: topic})
	})

	m.exec = executor.New(executor.Options{
		Store:   m.store,
		Runtime: m.rt,
		Events:  &executorEvents{bus: m.bus},
		Log:     m.log,
	})

	m.sched = scheduler.New(scheduler.Options{
		Store:     &scheduleStateAdapter{store: m.store},
		Events:    &schedulerEvents{bus: m.bus},
		OnTrigger: m.onScheduleTrigger,
		Running:   m.exec.RunningCount,
		TickEvery: m.tickEvery,
	})
	m.sched.SetAgents(cfg.Agents)

	m.status = StatusInitialized
	m.bus.Publish(eventbus.Event{Topic: eventbus.TopicInitialized, Payload: nil})
	return nil
}

// Start launches the scheduler tick loop and marks the fleet running.
func (m *Manager) Start() error {
	m.mu.Lock()
	if m.status == StatusRunning {
		m.mu.Unlock()
		return nil
	}
	if m.status != StatusInitialized {
		cur := m.status
		m.mu.Unlock()
		return &InvalidState{Current: cur, Attempted: "start"}
	}
	now := time.Now()
	m.startedAt = &now
	m.status = StatusRunning
	sched := m.sched
	bus := m.bus
	m.mu.Unlock()

	sched.Start(context.Background())
	bus.Publish(eventbus.Event{Topic: eventbus.TopicStarted, Payload: nil})
	return nil
}

// Stop halts the scheduler and marks the fleet stopped. Idempotent from
// StatusStopped.
func (m *Manager) Stop() error {
	m.mu.Lock()
	if m.status == StatusStopped || m.status == StatusPending {
		m.mu.Unlock()
		return nil
	}
	if m.status != StatusRunning && m.status != StatusInitialized {
		cur := m.status
		m.mu.Unlock()
		return &InvalidState{Current: cur, Attempted: "stop"}
	}
	sched := m.sched
	bus := m.bus
	m.status = StatusStopped
	m.mu.Unlock()

	if sched != nil {
		sched.Stop()
	}
	if bus != nil {
		bus.Publish(eventbus.Event{Topic: eventbus.TopicStopped, Payload: nil})
		bus.CloseAll()
	}
	return nil
}

func (m *Manager) onScheduleTrigger(info scheduler.TriggerInfo) error {
	_, err := m.exec.Trigger(executor.CreateOptions{
		Agent:       info.Agent,
		Schedule:    &info.Schedule,
		TriggerType: state.TriggerScheduler,
		Resume:      true,
	})
	return err
}
