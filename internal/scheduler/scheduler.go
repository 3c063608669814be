// Package scheduler implements herdctl's Scheduler (C3): a single polling
// loop that decides when interval/cron schedules are due, enforces
// per-agent concurrency, and fires a registered trigger callback in
// deterministic order.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/edspencer/herdctl-sub001/internal/config"
)

// Clock is the injected monotonic "now" source; all due-decisions use it so
// the scheduler is testable by stepping time instead of sleeping.
type Clock interface {
	Now() time.Time
}

// RealClock reads the system clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// TriggerInfo describes one fire for the registered callback.
type TriggerInfo struct {
	Agent      config.Agent
	Schedule   config.Schedule
	FiredAt    time.Time
}

// RunningCounter reports how many jobs are currently running for an agent,
// backed by the in-memory job registry the spec requires (never disk).
type RunningCounter func(qualifiedAgentName string) int

// StateStore is the subset of the state store the scheduler needs to read
// and persist per-schedule state.
type StateStore interface {
	ReadScheduleState(agent, name string) (LastState, error)
	WriteScheduleState(LastState) error
}

// LastState mirrors state.ScheduleState without importing the state package
// directly, keeping the scheduler leaf-level and independently testable.
type LastState struct {
	Agent       string
	Name        string
	Enabled     bool
	LastRunAt   *time.Time
	NextRunAt   *time.Time
	LastCheckAt *time.Time
	RunCount    int
	SkipCount   int
}

// SkipReason explains why a due schedule was not fired.
type SkipReason string

const SkipConcurrency SkipReason = "concurrency"

// Events is the narrow callback surface the scheduler emits through,
// satisfied by the Fleet Manager's event bus adapter.
type Events interface {
	Triggered(TriggerInfo)
	Skipped(TriggerInfo, SkipReason)
}

// OnTrigger is called synchronously from the tick goroutine; it must enqueue
// the job asynchronously and return quickly (the scheduler's own contract
// with the Job Executor).
type OnTrigger func(TriggerInfo) error

// Scheduler owns the single tick loop.
type Scheduler struct {
	clock       Clock
	store       StateStore
	events      Events
	onTrigger   OnTrigger
	running     RunningCounter
	tickEvery   time.Duration

	mu      sync.Mutex
	agents  []config.Agent
	stopCh  chan struct{}
	doneCh  chan struct{}
	started bool
}

// Options configures a new Scheduler.
type Options struct {
	Clock     Clock
	Store     StateStore
	Events    Events
	OnTrigger OnTrigger
	Running   RunningCounter
	TickEvery time.Duration // default 1000ms
}

// New constructs a Scheduler. Call SetAgents before Start.
func New(opts Options) *Scheduler {
	if opts.Clock == nil {
		opts.Clock = RealClock{}
	}
	if opts.TickEvery <= 0 {
		opts.TickEvery = time.Second
	}
	return &Scheduler{
		clock:     opts.Clock,
		store:     opts.Store,
		events:    opts.Events,
		onTrigger: opts.OnTrigger,
		running:   opts.Running,
		tickEvery: opts.TickEvery,
	}
}

// SetAgents atomically replaces the set of agents the scheduler considers on
// each tick; used both for initial registration and hot reload.
func (s *Scheduler) SetAgents(agents []config.Agent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.agents = agents
}

// Start launches the tick-loop goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	go s.loop(ctx)
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.doneCh)
	ticker := time.NewTicker(s.tickEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

// StopOptions describes a wait-for-jobs shutdown. Stop does not take it, and
// nothing in this module reads it.
type StopOptions struct {
	WaitForJobs bool
	Timeout     time.Duration
}

// ShutdownTimeoutError describes a shutdown that timed out with jobs still
// running. Nothing in this module returns it.
type ShutdownTimeoutError struct {
	PendingJobIDs []string
}

func (e *ShutdownTimeoutError) Error() string {
	return fmt.Sprintf("shutdown timed out with %d job(s) still running", len(e.PendingJobIDs))
}

// Stop halts the tick loop, so no new triggers are issued, and returns once
// the loop goroutine has exited. It does not wait for running jobs, and
// neither does the Fleet Manager's Stop.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	close(s.stopCh)
	done := s.doneCh
	s.mu.Unlock()
	<-done
}

// tick evaluates every polled schedule in deterministic order and fires the
// due ones, respecting concurrency.
func (s *Scheduler) tick() {
	s.mu.Lock()
	agents := make([]config.Agent, len(s.agents))
	copy(agents, s.agents)
	s.mu.Unlock()

	type entry struct {
		agent    config.Agent
		schedule config.Schedule
	}
	var entries []entry
	for _, a := range agents {
		for _, sch := range a.Schedules {
			if sch.Kind.Polled() {
				entries = append(entries, entry{a, sch})
			}
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].agent.QualifiedName != entries[j].agent.QualifiedName {
			return entries[i].agent.QualifiedName < entries[j].agent.QualifiedName
		}
		return entries[i].schedule.Name < entries[j].schedule.Name
	})

	now := s.clock.Now()
	for _, e := range entries {
		s.evaluateOne(e.agent, e.schedule, now)
	}
}

func (s *Scheduler) evaluateOne(agent config.Agent, sched config.Schedule, now time.Time) {
	st, err := s.store.ReadScheduleState(agent.QualifiedName, sched.Name)
	if err != nil {
		return
	}
	if !st.Enabled || !sched.Enabled {
		return
	}

	due, next, err := isDue(sched, st, now)
	if err != nil {
		return
	}
	st.LastCheckAt = &now
	if !due {
		st.NextRunAt = next
		_ = s.store.WriteScheduleState(st)
		return
	}

	info := TriggerInfo{Agent: agent, Schedule: sched, FiredAt: now}

	maxConcurrent := agent.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	if s.running != nil && s.running(agent.QualifiedName) >= maxConcurrent {
		if s.events != nil {
			s.events.Skipped(info, SkipConcurrency)
		}
		st.SkipCount++
		_ = s.store.WriteScheduleState(st)
		return
	}

	if err := s.onTrigger(info); err != nil {
		// Enqueue failure: do not advance last_run_at, per the firing contract.
		_ = s.store.WriteScheduleState(st)
		return
	}

	st.LastRunAt = &now
	st.NextRunAt = next
	st.RunCount++
	if s.events != nil {
		s.events.Triggered(info)
	}
	_ = s.store.WriteScheduleState(st)
}

// isDue implements the due predicate for interval and cron schedules and
// returns the next computed run time for state persistence.
func isDue(sched config.Schedule, st LastState, now time.Time) (bool, *time.Time, error) {
	switch sched.Kind {
	case config.ScheduleInterval:
		d, err := time.ParseDuration(sched.Interval)
		if err != nil {
			return false, nil, err
		}
		if st.LastRunAt == nil {
			next := now.Add(d)
			return true, &next, nil
		}
		due := !now.Before(st.LastRunAt.Add(d))
		next := st.LastRunAt.Add(d)
		if due {
			next = now.Add(d)
		}
		return due, &next, nil

	case config.ScheduleCron:
		sched2, err := cron.ParseStandard(sched.Cron)
		if err != nil {
			return false, nil, err
		}
		ref := now
		if st.LastRunAt != nil {
			ref = *st.LastRunAt
		}
		next := sched2.Next(ref)
		if st.NextRunAt != nil {
			next = *st.NextRunAt
		}
		due := !now.Before(next)
		var newNext time.Time
		if due {
			newNext = sched2.Next(now)
		} else {
			newNext = next
		}
		return due, &newNext, nil

	default:
		return false, nil, fmt.Errorf("schedule kind %q is not polled", sched.Kind)
	}
}
