package state

import (
	"bufio"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// jobIDSuffixAlphabet matches the spec's [a-z0-9]{6} suffix grammar.
const jobIDSuffixAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

func randomJobSuffix() string {
	b := make([]byte, 6)
	_, _ = rand.Read(b)
	out := make([]byte, 6)
	for i, c := range b {
		out[i] = jobIDSuffixAlphabet[int(c)%len(jobIDSuffixAlphabet)]
	}
	return string(out)
}

// NewJobID mints an ID matching ^job-\d{4}-\d{2}-\d{2}-[a-z0-9]{6}$ (S10).
func NewJobID(now time.Time) string {
	return fmt.Sprintf("job-%04d-%02d-%02d-%s", now.Year(), now.Month(), now.Day(), randomJobSuffix())
}

// CreateJob mints a job ID, fills CreatedAt/Status, and atomically persists
// the metadata file.
func (s *Store) CreateJob(meta Job, now time.Time) (*Job, error) {
	if err := s.ensureDir(); err != nil {
		return nil, err
	}
	if meta.ID == "" {
		meta.ID = NewJobID(now)
	}
	meta.CreatedAt = now
	if meta.Status == "" {
		meta.Status = JobPending
	}

	path, err := s.jobMetaPath(meta.ID)
	if err != nil {
		return nil, err
	}
	if err := s.withLock(meta.ID, func() error {
		return atomicWriteYAML(path, &meta)
	}); err != nil {
		return nil, err
	}
	return &meta, nil
}

// statusTransitions enumerates the only moves UpdateJob will allow:
// pending -> {running,failed,cancelled} and running -> {completed,failed,cancelled}.
var statusTransitions = map[JobStatus]map[JobStatus]bool{
	JobPending: {JobRunning: true, JobFailed: true, JobCancelled: true},
	JobRunning: {JobCompleted: true, JobFailed: true, JobCancelled: true},
}

// ErrInvalidTransition is returned by UpdateJob for a non-monotonic status change.
var ErrInvalidTransition = fmt.Errorf("invalid job status transition")

// JobPatch describes the mutable subset of fields UpdateJob may change.
type JobPatch struct {
	Status      *JobStatus
	StartedAt   *time.Time
	CompletedAt *time.Time
	ExitReason  *ExitReason
	Error       *JobError
	SessionID   *string
	DurationMS  *int64
	NumTurns    *int
	CostUSD     *float64
	TokensIn    *int
	TokensOut   *int
}

// UpdateJob reads the job, applies patch, rejects a non-monotonic status
// change (terminal status is write-once, I8), and atomically rewrites it.
// The read-modify-write is serialized per job ID so concurrent callers (e.g.
// a cancel racing a terminal ingest-loop update) can't clobber each other.
func (s *Store) UpdateJob(id string, patch JobPatch) (*Job, error) {
	var job *Job
	err := s.withLock(id, func() error {
		var err error
		job, err = s.updateJobLocked(id, patch)
		return err
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (s *Store) updateJobLocked(id string, patch JobPatch) (*Job, error) {
	job, err := s.ReadJob(id)
	if err != nil {
		return nil, err
	}

	if patch.Status != nil && *patch.Status != job.Status {
		if job.Status.Terminal() {
			return nil, fmt.Errorf("%w: job %s is already terminal (%s)", ErrInvalidTransition, id, job.Status)
		}
		allowed := statusTransitions[job.Status]
		if !allowed[*patch.Status] {
			return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, job.Status, *patch.Status)
		}
		job.Status = *patch.Status
	}
	if patch.StartedAt != nil {
		job.StartedAt = patch.StartedAt
	}
	if patch.CompletedAt != nil {
		job.CompletedAt = patch.CompletedAt
	}
	if patch.ExitReason != nil {
		job.ExitReason = *patch.ExitReason
	}
	if patch.Error != nil {
		job.Error = patch.Error
	}
	if patch.SessionID != nil {
		job.SessionID = *patch.SessionID
	}
	if patch.DurationMS != nil {
		job.DurationMS = *patch.DurationMS
	}
	if patch.NumTurns != nil {
		job.NumTurns = *patch.NumTurns
	}
	if patch.CostUSD != nil {
		job.CostUSD = *patch.CostUSD
	}
	if patch.TokensIn != nil {
		job.TokensIn = *patch.TokensIn
	}
	if patch.TokensOut != nil {
		job.TokensOut = *patch.TokensOut
	}

	path, err := s.jobMetaPath(id)
	if err != nil {
		return nil, err
	}
	if err := atomicWriteYAML(path, job); err != nil {
		return nil, err
	}
	return job, nil
}

// ReadJob loads one job's metadata file.
func (s *Store) ReadJob(id string) (*Job, error) {
	path, err := s.jobMetaPath(id)
	if err != nil {
		return nil, err
	}
	var job Job
	if err := readYAML(path, &job); err != nil {
		return nil, err
	}
	return &job, nil
}

// AppendOutput assigns the next monotonic sequence number and appends a
// single JSON line to the job's output log. The seq-read-then-append is
// serialized per job ID so concurrent appenders can't assign the same seq.
func (s *Store) AppendOutput(id string, msg OutputMessage) (OutputMessage, error) {
	err := s.withLock(id, func() error {
		path, err := s.jobOutputPath(id)
		if err != nil {
			return err
		}
		last, err := s.lastSeq(path)
		if err != nil {
			return err
		}
		msg.Seq = last + 1
		if msg.Timestamp.IsZero() {
			msg.Timestamp = time.Now()
		}
		line, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		return appendLine(path, line)
	})
	return msg, err
}

func (s *Store) lastSeq(path string) (int, error) {
	msgs, err := readJSONL(path)
	if err != nil {
		return 0, err
	}
	if len(msgs) == 0 {
		return 0, nil
	}
	return msgs[len(msgs)-1].Seq, nil
}

// ReadOutput returns the messages for a job with seq > fromSeq, in order.
// Readers tolerate a truncated final line (partial append on crash).
func (s *Store) ReadOutput(id string, fromSeq int) ([]OutputMessage, error) {
	path, err := s.jobOutputPath(id)
	if err != nil {
		return nil, err
	}
	msgs, err := readJSONL(path)
	if err != nil {
		return nil, err
	}
	var out []OutputMessage
	for _, m := range msgs {
		if m.Seq > fromSeq {
			out = append(out, m)
		}
	}
	return out, nil
}

func readJSONL(path string) ([]OutputMessage, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &StateIOError{Kind: "read", Path: path, Cause: err}
	}
	defer f.Close()

	var out []OutputMessage
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var m OutputMessage
		if err := json.Unmarshal(line, &m); err != nil {
			// Partial final line from a crashed append: discard and stop.
			break
		}
		out = append(out, m)
	}
	return out, nil
}

// ListFilter narrows ListJobs results.
type ListFilter struct {
	Agent  string
	Status JobStatus
}

// ListJobs returns a page of job IDs' metadata matching filter, newest date
// first, by scanning the jobs/ directory. limit <= 0 means unbounded.
func (s *Store) ListJobs(filter ListFilter, limit, offset int) ([]*Job, error) {
	dir := s.Dir + "/jobs"
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &StateIOError{Kind: "readdir", Path: dir, Cause: err}
	}

	var ids []string
	for _, e := range entries {
		name := e.Name()
		if len(name) > 5 && name[len(name)-5:] == ".yaml" {
			ids = append(ids, name[:len(name)-5])
		}
	}
	// Reverse lexicographic ID order: newest creation date first. Jobs from
	// the same day are ordered by their random suffix, not by creation time.
	for i, j := 0, len(ids)-1; i < j; i, j = i+1, j-1 {
		ids[i], ids[j] = ids[j], ids[i]
	}

	var jobs []*Job
	for _, id := range ids {
		job, err := s.ReadJob(id)
		if err != nil {
			continue
		}
		if filter.Agent != "" && job.Agent != filter.Agent {
			continue
		}
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		jobs = append(jobs, job)
	}

	if offset > 0 {
		if offset >= len(jobs) {
			return nil, nil
		}
		jobs = jobs[offset:]
	}
	if limit > 0 && len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}
