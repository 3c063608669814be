package fleet

import (
	"github.com/edspencer/herdctl-sub001/internal/eventbus"
	"github.com/edspencer/herdctl-sub001/internal/scheduler"
	"github.com/edspencer/herdctl-sub001/internal/state"
)

// executorEvents adapts executor.Events onto the event bus.
type executorEvents struct {
	bus *eventbus.Bus
}

func (e *executorEvents) JobCreated(job state.Job) {
	e.bus.Publish(eventbus.Event{Topic: eventbus.TopicJobCreated, Payload: job})
}

func (e *executorEvents) JobOutput(jobID string, msg state.OutputMessage) {
	e.bus.Publish(eventbus.Event{Topic: eventbus.TopicJobOutput, Payload: struct {
		JobID string
		state.OutputMessage
	}{jobID, msg}})
}

func (e *executorEvents) JobCompleted(job state.Job) {
	e.bus.Publish(eventbus.Event{Topic: eventbus.TopicJobCompleted, Payload: job})
}

func (e *executorEvents) JobFailed(job state.Job) {
	e.bus.Publish(eventbus.Event{Topic: eventbus.TopicJobFailed, Payload: job})
}

func (e *executorEvents) JobCancelled(job state.Job) {
	e.bus.Publish(eventbus.Event{Topic: eventbus.TopicJobCancelled, Payload: job})
}

func (e *executorEvents) JobForked(parent, child state.Job) {
	e.bus.Publish(eventbus.Event{Topic: eventbus.TopicJobForked, Payload: struct{ Parent, Child state.Job }{parent, child}})
}

// schedulerEvents adapts scheduler.Events onto the event bus.
type schedulerEvents struct {
	bus *eventbus.Bus
}

func (s *schedulerEvents) Triggered(ti scheduler.TriggerInfo) {
	s.bus.Publish(eventbus.Event{Topic: eventbus.TopicScheduleTriggered, Payload: ti})
}

func (s *schedulerEvents) Skipped(ti scheduler.TriggerInfo, reason scheduler.SkipReason) {
	s.bus.Publish(eventbus.Event{Topic: eventbus.TopicScheduleSkipped, Payload: struct {
		scheduler.TriggerInfo
		Reason scheduler.SkipReason
	}{ti, reason}})
}

// scheduleStateAdapter adapts state.Store's ScheduleState methods onto the
// scheduler's leaf-level LastState type.
type scheduleStateAdapter struct {
	store *state.Store
}

func (a *scheduleStateAdapter) ReadScheduleState(agent, name string) (scheduler.LastState, error) {
	st, err := a.store.ReadScheduleState(agent, name)
	if err != nil {
		return scheduler.LastState{}, err
	}
	return scheduler.LastState{
		Agent:       st.Agent,
		Name:        st.Name,
		Enabled:     st.Enabled,
		LastRunAt:   st.LastRunAt,
		NextRunAt:   st.NextRunAt,
		LastCheckAt: st.LastCheckAt,
		RunCount:    st.RunCount,
		SkipCount:   st.SkipCount,
	}, nil
}

func (a *scheduleStateAdapter) WriteScheduleState(ls scheduler.LastState) error {
	return a.store.WriteScheduleState(state.ScheduleState{
		Agent:       ls.Agent,
		Name:        ls.Name,
		Enabled:     ls.Enabled,
		LastRunAt:   ls.LastRunAt,
		NextRunAt:   ls.NextRunAt,
		LastCheckAt: ls.LastCheckAt,
		RunCount:    ls.RunCount,
		SkipCount:   ls.SkipCount,
	})
}
