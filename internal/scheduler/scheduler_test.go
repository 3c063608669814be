package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/edspencer/herdctl-sub001/internal/config"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type memStore struct {
	mu    sync.Mutex
	state map[string]LastState
}

func newMemStore() *memStore { return &memStore{state: make(map[string]LastState)} }

func (m *memStore) key(agent, name string) string { return agent + "/" + name }

func (m *memStore) ReadScheduleState(agent, name string) (LastState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok := m.state[m.key(agent, name)]; ok {
		return st, nil
	}
	return LastState{Agent: agent, Name: name, Enabled: true}, nil
}

func (m *memStore) WriteScheduleState(st LastState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state[m.key(st.Agent, st.Name)] = st
	return nil
}

type recordingEvents struct {
	mu        sync.Mutex
	triggered []TriggerInfo
	skipped   []TriggerInfo
}

func (r *recordingEvents) Triggered(ti TriggerInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.triggered = append(r.triggered, ti)
}

func (r *recordingEvents) Skipped(ti TriggerInfo, reason SkipReason) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.skipped = append(r.skipped, ti)
}

func testAgent(name string, sched config.Schedule) config.Agent {
	return config.Agent{
		QualifiedName: name,
		MaxConcurrent: 1,
		Schedules:     []config.Schedule{sched},
	}
}

func TestIntervalScheduleFiresFirstTick(t *testing.T) {
	store := newMemStore()
	events := &recordingEvents{}
	var fired int
	sch := New(Options{
		Store:  store,
		Events: events,
		OnTrigger: func(TriggerInfo) error {
			fired++
			return nil
		},
		Running: func(string) int { return 0 },
	})
	sch.SetAgents([]config.Agent{
		testAgent("a1", config.Schedule{Name: "s1", Kind: config.ScheduleInterval, Interval: "1m", Enabled: true}),
	})
	sch.tick()
	if fired != 1 {
		t.Fatalf("expected 1 fire, got %d", fired)
	}
	if len(events.triggered) != 1 {
		t.Errorf("expected 1 triggered event, got %d", len(events.triggered))
	}
}

func TestIntervalScheduleWaitsUntilDue(t *testing.T) {
	store := newMemStore()
	clock := &fakeClock{now: time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC)}
	fired := 0
	sch := New(Options{
		Clock: clock,
		Store: store,
		OnTrigger: func(TriggerInfo) error {
			fired++
			return nil
		},
		Running: func(string) int { return 0 },
	})
	sch.SetAgents([]config.Agent{
		testAgent("a1", config.Schedule{Name: "s1", Kind: config.ScheduleInterval, Interval: "1m", Enabled: true}),
	})
	sch.tick()
	if fired != 1 {
		t.Fatalf("expected 1 fire on first tick, got %d", fired)
	}
	clock.Advance(10 * time.Second)
	sch.tick()
	if fired != 1 {
		t.Fatalf("expected no fire before interval elapses, got %d", fired)
	}
	clock.Advance(55 * time.Second)
	sch.tick()
	if fired != 2 {
		t.Fatalf("expected second fire once interval elapses, got %d", fired)
	}
}

func TestConcurrencyGateSkipsTrigger(t *testing.T) {
	store := newMemStore()
	events := &recordingEvents{}
	fired := 0
	sch := New(Options{
		Store:  store,
		Events: events,
		OnTrigger: func(TriggerInfo) error {
			fired++
			return nil
		},
		Running: func(string) int { return 1 }, // already at max_concurrent=1
	})
	sch.SetAgents([]config.Agent{
		testAgent("a1", config.Schedule{Name: "s1", Kind: config.ScheduleInterval, Interval: "1m", Enabled: true}),
	})
	sch.tick()
	if fired != 0 {
		t.Errorf("expected trigger to be skipped under concurrency gate, fired=%d", fired)
	}
	if len(events.skipped) != 1 {
		t.Errorf("expected 1 skip event, got %d", len(events.skipped))
	}
}

func TestDeterministicEvaluationOrder(t *testing.T) {
	store := newMemStore()
	var order []string
	var mu sync.Mutex
	sch := New(Options{
		Store: store,
		OnTrigger: func(ti TriggerInfo) error {
			mu.Lock()
			order = append(order, ti.Agent.QualifiedName+"/"+ti.Schedule.Name)
			mu.Unlock()
			return nil
		},
		Running: func(string) int { return 0 },
	})
	sch.SetAgents([]config.Agent{
		testAgent("zeta", config.Schedule{Name: "b", Kind: config.ScheduleInterval, Interval: "1m", Enabled: true}),
		testAgent("alpha", config.Schedule{Name: "z", Kind: config.ScheduleInterval, Interval: "1m", Enabled: true}),
		testAgent("alpha", config.Schedule{Name: "a", Kind: config.ScheduleInterval, Interval: "1m", Enabled: true}),
	})
	sch.tick()
	want := []string{"alpha/a", "alpha/z", "zeta/b"}
	if len(order) != len(want) {
		t.Fatalf("expected %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("expected order %v, got %v", want, order)
		}
	}
}

func TestDisabledScheduleNeverFires(t *testing.T) {
	store := newMemStore()
	fired := 0
	sch := New(Options{
		Store: store,
		OnTrigger: func(TriggerInfo) error {
			fired++
			return nil
		},
		Running: func(string) int { return 0 },
	})
	sch.SetAgents([]config.Agent{
		testAgent("a1", config.Schedule{Name: "s1", Kind: config.ScheduleInterval, Interval: "1m", Enabled: false}),
	})
	sch.tick()
	if fired != 0 {
		t.Errorf("expected disabled schedule to never fire, fired=%d", fired)
	}
}

func TestStartStop(t *testing.T) {
	store := newMemStore()
	sch := New(Options{
		Store:     store,
		TickEvery: 10 * time.Millisecond,
		OnTrigger: func(TriggerInfo) error { return nil },
		Running:   func(string) int { return 0 },
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sch.Start(ctx)
	time.Sleep(30 * time.Millisecond)
	sch.Stop()
}
