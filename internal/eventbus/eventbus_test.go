package eventbus

import "testing"

func TestPublishDeliversToMatchingTopic(t *testing.T) {
	b := New(nil)
	ch := Subscribe(b, TopicJobCreated)
	defer Unsubscribe(b, ch)

	b.Publish(Event{Topic: TopicJobCreated, Payload: "job-1"})
	b.Publish(Event{Topic: TopicJobFailed, Payload: "job-2"})

	select {
	case ev := <-ch:
		if ev.Payload != "job-1" {
			t.Errorf("expected job-1, got %v", ev.Payload)
		}
	default:
		t.Fatal("expected an event, got none")
	}

	select {
	case ev := <-ch:
		t.Fatalf("expected no second event (filtered topic), got %v", ev)
	default:
	}
}

func TestPublishDropOldestOnFullQueue(t *testing.T) {
	var dropped []Topic
	b := New(func(topic Topic) { dropped = append(dropped, topic) })
	ch := Subscribe(b)
	defer Unsubscribe(b, ch)

	for i := 0; i < queueSize+5; i++ {
		b.Publish(Event{Topic: TopicJobOutput, Payload: i})
	}

	// Drain and verify queueSize events survived, the earliest ones dropped.
	count := 0
	var first interface{}
	for {
		select {
		case ev := <-ch:
			if first == nil {
				first = ev.Payload
			}
			count++
			continue
		default:
		}
		break
	}
	if count != queueSize {
		t.Errorf("expected %d surviving events, got %d", queueSize, count)
	}
	if first == 0 {
		t.Errorf("expected the oldest events to have been dropped, but event 0 survived")
	}
}

func TestUnsubscribeIdempotent(t *testing.T) {
	b := New(nil)
	ch := Subscribe(b)
	Unsubscribe(b, ch)
	Unsubscribe(b, ch) // must not panic on double-close
}
