package executor

import (
	"sync"
	"testing"
	"time"

	"github.com/edspencer/herdctl-sub001/internal/config"
	"github.com/edspencer/herdctl-sub001/internal/runtime"
	"github.com/edspencer/herdctl-sub001/internal/state"
)

type memStore struct {
	mu       sync.Mutex
	jobs     map[string]*state.Job
	output   map[string][]state.OutputMessage
	sessions map[string]*state.Session
}

func newMemStore() *memStore {
	return &memStore{
		jobs:     make(map[string]*state.Job),
		output:   make(map[string][]state.OutputMessage),
		sessions: make(map[string]*state.Session),
	}
}

func (m *memStore) CreateJob(meta state.Job, now time.Time) (*state.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	meta.ID = state.NewJobID(now)
	meta.CreatedAt = now
	if meta.Status == "" {
		meta.Status = state.JobPending
	}
	job := meta
	m.jobs[job.ID] = &job
	cp := job
	return &cp, nil
}

func (m *memStore) ReadJob(id string) (*state.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, &notFoundErr{id}
	}
	cp := *j
	return &cp, nil
}

type notFoundErr struct{ id string }

func (e *notFoundErr) Error() string { return "job not found: " + e.id }

func (m *memStore) UpdateJob(id string, patch state.JobPatch) (*state.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, &notFoundErr{id}
	}
	if patch.Status != nil {
		j.Status = *patch.Status
	}
	if patch.StartedAt != nil {
		j.StartedAt = patch.StartedAt
	}
	if patch.CompletedAt != nil {
		j.CompletedAt = patch.CompletedAt
	}
	if patch.ExitReason != nil {
		j.ExitReason = *patch.ExitReason
	}
	if patch.Error != nil {
		j.Error = patch.Error
	}
	cp := *j
	return &cp, nil
}

func (m *memStore) AppendOutput(id string, msg state.OutputMessage) (state.OutputMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg.Seq = len(m.output[id]) + 1
	m.output[id] = append(m.output[id], msg)
	return msg, nil
}

func (m *memStore) ReadSession(agentID string) (*state.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[agentID], nil
}

func (m *memStore) WriteSession(agentID string, sess state.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[agentID] = &sess
	return nil
}

func (m *memStore) ClearSession(agentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, agentID)
	return nil
}

type fakeRuntime struct {
	messages []runtime.Message
}

func (f *fakeRuntime) Invoke(opts runtime.InvokeOptions) (<-chan runtime.Message, error) {
	ch := make(chan runtime.Message, len(f.messages))
	for _, m := range f.messages {
		ch <- m
	}
	close(ch)
	return ch, nil
}

type recordingEvents struct {
	mu        sync.Mutex
	completed []state.Job
	failed    []state.Job
	cancelled []state.Job
}

func (r *recordingEvents) JobCreated(state.Job)          {}
func (r *recordingEvents) JobOutput(string, state.OutputMessage) {}
func (r *recordingEvents) JobCompleted(j state.Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed = append(r.completed, j)
}
func (r *recordingEvents) JobFailed(j state.Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, j)
}
func (r *recordingEvents) JobCancelled(j state.Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cancelled = append(r.cancelled, j)
}
func (r *recordingEvents) JobForked(parent, child state.Job) {}

func waitForTerminal(t *testing.T, events *recordingEvents) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		events.mu.Lock()
		done := len(events.completed)+len(events.failed)+len(events.cancelled) > 0
		events.mu.Unlock()
		if done {
			return
		}
		select {
		case <-deadline:
			t.Fatal("timed out waiting for job to reach a terminal state")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestTriggerRunsToCompletion(t *testing.T) {
	store := newMemStore()
	events := &recordingEvents{}
	rt := &fakeRuntime{messages: []runtime.Message{
		{Type: "assistant", Content: []runtime.ContentBlock{{Type: "text", Text: "hi"}}},
		{Type: "result", DurationMS: 100, NumTurns: 1},
	}}
	ex := New(Options{Store: store, Runtime: rt, Events: events})

	agent := config.Agent{QualifiedName: "a1", IdleTimeout: "1s", MaxDuration: "5s"}
	job, err := ex.Trigger(CreateOptions{Agent: agent, Prompt: "do it", TriggerType: state.TriggerManual})
	if err != nil {
		t.Fatalf("Trigger: %v", err)
	}

	waitForTerminal(t, events)

	if len(events.completed) != 1 || events.completed[0].ID != job.ID {
		t.Fatalf("expected job %s to complete, got %+v", job.ID, events.completed)
	}
}

func TestForkRequiresTerminalParent(t *testing.T) {
	store := newMemStore()
	ex := New(Options{Store: store, Runtime: &fakeRuntime{}})

	parent, _ := store.CreateJob(state.Job{Agent: "a1", Status: state.JobRunning}, time.Now())
	_, err := ex.Fork(parent.ID, config.Agent{QualifiedName: "a1"}, CreateOptions{})
	if err == nil {
		t.Fatal("expected error forking a non-terminal parent")
	}
}

func TestSessionDriftClearsOnWorkspaceMismatch(t *testing.T) {
	store := newMemStore()
	store.WriteSession("a1", state.Session{SessionID: "sess-1", Workspace: "/old"})
	ex := New(Options{Store: store, Runtime: &fakeRuntime{}})

	sid := ex.resolveSession(config.Agent{QualifiedName: "a1", Workspace: "/new"}, true)
	if sid != "" {
		t.Errorf("expected empty session id on workspace mismatch, got %q", sid)
	}
	if sess, _ := store.ReadSession("a1"); sess != nil {
		t.Errorf("expected session to be cleared, got %+v", sess)
	}
}
