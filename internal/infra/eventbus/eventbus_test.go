package eventbus

import (
	"testing"
	"time"
)

func TestEventBus_PublishAndSubscribe(t *testing.T) {
	t.Parallel()

	bus := New()
	ch := bus.Subscribe("llm.completion")

	bus.Publish("llm.completion", "hello")

	select {
	case evt := <-ch:
		if evt.Topic != "llm.completion" {
			t.Errorf("expected topic 'llm.completion', got %q", evt.Topic)
		}
		if evt.Payload != "hello" {
			t.Errorf("expected payload 'hello', got %v", evt.Payload)
		}
		if evt.ID == "" {
			t.Error("expected event ID to be set")
		}
		if evt.PublishedAt.IsZero() {
			t.Error("expected PublishedAt to be set")
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("timeout: expected event to be received within 100ms")
	}
}

func TestEventBus_MultipleSubscribers_AllReceive(t *testing.T) {
	t.Parallel()

	bus := New()
	ch1 := bus.Subscribe("multi.topic")
	ch2 := bus.Subscribe("multi.topic")

	bus.Publish("multi.topic", 42)

	for i, ch := range []<-chan Event{ch1, ch2} {
		select {
		case evt := <-ch:
			if evt.Payload != 42 {
				t.Errorf("subscriber %d: expected payload 42, got %v", i, evt.Payload)
			}
		case <-time.After(100 * time.Millisecond):
			t.Errorf("subscriber %d: timeout waiting for event", i)
		}
	}
}

func TestEventBus_DifferentTopics_NoInterference(t *testing.T) {
	t.Parallel()

	bus := New()
	chA := bus.Subscribe("topic.a")
	chB := bus.Subscribe("topic.b")

	bus.Publish("topic.a", "for-a")

	select {
	case <-chA:
	case <-time.After(100 * time.Millisecond):
		t.Error("topic.a: timeout waiting for event")
	}

	select {
	case evt := <-chB:
		t.Errorf("topic.b: received unexpected event: %v", evt)
	default:
	}
}

func TestEventBus_FullBuffer_DropsAndCounts(t *testing.T) {
	t.Parallel()

	bus := New()
	_ = bus.Subscribe("overflow.topic")

	done := make(chan struct{})
	go func() {
		for i := 0; i < defaultBufferSize+10; i++ {
			bus.Publish("overflow.topic", i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full buffer")
	}
	if got := bus.Dropped(); got != 10 {
		t.Errorf("Dropped() = %d; want 10", got)
	}
}

func TestEventBus_Close_EndsSubscriptions(t *testing.T) {
	t.Parallel()

	bus := New()
	ch := bus.Subscribe("t")
	bus.Close()

	if _, ok := <-ch; ok {
		t.Error("expected closed channel after Close")
	}

	// Publish and Close after Close are no-ops.
	bus.Publish("t", 1)
	bus.Close()

	late := bus.Subscribe("t")
	if _, ok := <-late; ok {
		t.Error("Subscribe on closed bus should return a closed channel")
	}
}
