// Package eventbus implements herdctl's typed, topic-keyed pub-sub bus: the
// single internal event channel the Fleet Manager (C5) uses to notify
// subscribers of lifecycle, scheduler, and job events, generalized from the
// per-session fan-out pattern used for streaming agent output.
package eventbus

import "sync"

// Topic names the event types the bus carries. Kept as a plain string
// (rather than an enum) since external collaborators (dashboard, chat) match
// against these names over the wire.
type Topic string

const (
	TopicInitialized      Topic = "initialized"
	TopicStarted          Topic = "started"
	TopicStopped          Topic = "stopped"
	TopicConfigReloaded   Topic = "config:reloaded"
	TopicConfigReloadErr  Topic = "config:reload_error"
	TopicAgentStarted     Topic = "agent:started"
	TopicAgentStopped     Topic = "agent:stopped"
	TopicScheduleTriggered Topic = "schedule:triggered"
	TopicScheduleSkipped  Topic = "schedule:skipped"
	TopicJobCreated       Topic = "job:created"
	TopicJobOutput        Topic = "job:output"
	TopicJobCompleted     Topic = "job:completed"
	TopicJobFailed        Topic = "job:failed"
	TopicJobCancelled     Topic = "job:cancelled"
	TopicJobForked        Topic = "job:forked"
	TopicSubscriberDropped Topic = "subscriber:dropped"
)

// Event is one published message: the topic tag plus an opaque payload.
// Handlers type-assert Payload against the struct documented for Topic,
// following the closed-tagged-variant design note rather than a hierarchy
// of event types.
type Event struct {
	Topic   Topic
	Payload interface{}
}

// queueSize bounds each subscriber's channel; a slow subscriber drops the
// oldest buffered event rather than blocking the publisher.
const queueSize = 256

type subscriber struct {
	ch     chan Event
	topics map[Topic]bool // nil means "all topics"
}

// Bus is a single process-wide pub-sub hub. The zero value is not usable;
// construct with New.
type Bus struct {
	mu          sync.Mutex
	subscribers map[chan Event]*subscriber
	onDropped   func(topic Topic)
}

// New creates an empty Bus. onDropped, if non-nil, is invoked (outside any
// lock) whenever an event is dropped for a full subscriber queue, so the
// caller can emit TopicSubscriberDropped without the bus depending on itself.
func New(onDropped func(topic Topic)) *Bus {
	return &Bus{
		subscribers: make(map[chan Event]*subscriber),
		onDropped:   onDropped,
	}
}

// Subscribe returns a channel receiving events for the given topics (all
// topics if none given). Callers must call Unsubscribe when done.
func Subscribe(b *Bus, topics ...Topic) chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	var filter map[Topic]bool
	if len(topics) > 0 {
		filter = make(map[Topic]bool, len(topics))
		for _, t := range topics {
			filter[t] = true
		}
	}

	ch := make(chan Event, queueSize)
	b.subscribers[ch] = &subscriber{ch: ch, topics: filter}
	return ch
}

// Unsubscribe removes and closes a subscriber channel. Safe to call more
// than once for the same channel.
func Unsubscribe(b *Bus, ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subscribers[ch]; ok {
		delete(b.subscribers, ch)
		close(ch)
	}
}

// Publish fans an event out to every matching subscriber. It never blocks
// beyond the channel enqueue: on a full subscriber queue, the oldest queued
// event is discarded to make room for the new one (drop-oldest), and the
// drop is reported via onDropped.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subscribers {
		if sub.topics != nil && !sub.topics[ev.Topic] {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			select {
			case <-sub.ch:
				if b.onDropped != nil {
					go b.onDropped(ev.Topic)
				}
			default:
			}
			select {
			case sub.ch <- ev:
			default:
				// Another publisher raced us into the freed slot; give up
				// rather than block the producer.
			}
		}
	}
}

// CloseAll closes every subscriber channel and drops all subscriptions; the
// Fleet Manager calls it from Stop.
func (b *Bus) CloseAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subscribers {
		close(ch)
	}
	b.subscribers = make(map[chan Event]*subscriber)
}
