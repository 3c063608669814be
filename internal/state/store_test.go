package state

import (
	"path/filepath"
	"regexp"
	"sync"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(t.TempDir())
}

func TestCreateJobIDFormat(t *testing.T) {
	s := newTestStore(t)
	job, err := s.CreateJob(Job{Agent: "a", Prompt: "hi"}, time.Date(2026, 7, 30, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	re := regexp.MustCompile(`^job-\d{4}-\d{2}-\d{2}-[a-z0-9]{6}$`)
	if !re.MatchString(job.ID) {
		t.Errorf("job id %q does not match expected format", job.ID)
	}
}

func TestUpdateJobRejectsNonMonotonic(t *testing.T) {
	s := newTestStore(t)
	job, err := s.CreateJob(Job{Agent: "a", Prompt: "hi"}, time.Now())
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	running := JobRunning
	if _, err := s.UpdateJob(job.ID, JobPatch{Status: &running}); err != nil {
		t.Fatalf("pending->running: %v", err)
	}
	completed := JobCompleted
	if _, err := s.UpdateJob(job.ID, JobPatch{Status: &completed}); err != nil {
		t.Fatalf("running->completed: %v", err)
	}

	pending := JobPending
	if _, err := s.UpdateJob(job.ID, JobPatch{Status: &pending}); err == nil {
		t.Error("expected error reviving a terminal job, got nil")
	}
}

func TestAppendOutputMonotonicSeq(t *testing.T) {
	s := newTestStore(t)
	job, _ := s.CreateJob(Job{Agent: "a"}, time.Now())

	for i := 0; i < 3; i++ {
		msg, err := s.AppendOutput(job.ID, OutputMessage{Type: OutputAssistant, Text: "hi"})
		if err != nil {
			t.Fatalf("AppendOutput: %v", err)
		}
		if msg.Seq != i+1 {
			t.Errorf("expected seq %d, got %d", i+1, msg.Seq)
		}
	}

	msgs, err := s.ReadOutput(job.ID, 0)
	if err != nil {
		t.Fatalf("ReadOutput: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	for i, m := range msgs {
		if m.Seq != i+1 {
			t.Errorf("message %d has seq %d", i, m.Seq)
		}
	}
}

// TestAppendOutputConcurrentWritersStayMonotonic exercises the per-job-ID
// lock: many goroutines appending to the same job must still produce a
// gap-free, duplicate-free sequence, not a race on lastSeq.
func TestAppendOutputConcurrentWritersStayMonotonic(t *testing.T) {
	s := newTestStore(t)
	job, _ := s.CreateJob(Job{Agent: "a"}, time.Now())

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.AppendOutput(job.ID, OutputMessage{Type: OutputAssistant, Text: "hi"}); err != nil {
				t.Errorf("AppendOutput: %v", err)
			}
		}()
	}
	wg.Wait()

	msgs, err := s.ReadOutput(job.ID, 0)
	if err != nil {
		t.Fatalf("ReadOutput: %v", err)
	}
	if len(msgs) != n {
		t.Fatalf("expected %d messages, got %d", n, len(msgs))
	}
	seen := make(map[int]bool, n)
	for _, m := range msgs {
		if seen[m.Seq] {
			t.Errorf("duplicate seq %d", m.Seq)
		}
		seen[m.Seq] = true
	}
	for i := 1; i <= n; i++ {
		if !seen[i] {
			t.Errorf("missing seq %d", i)
		}
	}
}

func TestPathTraversalRejected(t *testing.T) {
	s := newTestStore(t)
	cases := []string{"../escape", "a/b", "", ".."}
	for _, id := range cases {
		if _, err := s.jobMetaPath(id); err == nil {
			t.Errorf("expected PathTraversalError for id %q", id)
		}
	}
}

func TestScheduleStateRoundTrip(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()
	if err := s.WriteScheduleState(ScheduleState{Agent: "a", Name: "every1m", Enabled: true, LastRunAt: &now}); err != nil {
		t.Fatalf("WriteScheduleState: %v", err)
	}
	got, err := s.ReadScheduleState("a", "every1m")
	if err != nil {
		t.Fatalf("ReadScheduleState: %v", err)
	}
	if got.LastRunAt == nil || !got.LastRunAt.Equal(now) {
		t.Errorf("expected last_run_at %v, got %v", now, got.LastRunAt)
	}
}

func TestSessionWorkspaceDrift(t *testing.T) {
	s := newTestStore(t)
	if err := s.WriteSession("agent-a", Session{SessionID: "sess-1", Workspace: "/ws/old"}); err != nil {
		t.Fatalf("WriteSession: %v", err)
	}
	sess, err := s.ReadSession("agent-a")
	if err != nil {
		t.Fatalf("ReadSession: %v", err)
	}
	if sess.Workspace != "/ws/old" {
		t.Fatalf("unexpected workspace %q", sess.Workspace)
	}
	// Simulate drift detection clearing the session.
	if err := s.ClearSession("agent-a"); err != nil {
		t.Fatalf("ClearSession: %v", err)
	}
	sess, err = s.ReadSession("agent-a")
	if err != nil {
		t.Fatalf("ReadSession after clear: %v", err)
	}
	if sess != nil {
		t.Errorf("expected nil session after clear, got %+v", sess)
	}
}

func TestStoreLayout(t *testing.T) {
	s := newTestStore(t)
	path, _ := s.jobMetaPath("job-2026-07-30-abc123")
	if filepath.Base(filepath.Dir(path)) != "jobs" {
		t.Errorf("expected jobs/ subdir, got %s", path)
	}
}
