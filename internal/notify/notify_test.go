package notify

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func testNotifier(t *testing.T) *Notifier {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return New(client)
}

func waitEvent(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case event, ok := <-sub.Events():
		if !ok {
			t.Fatal("subscription closed before delivering an event")
		}
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Event{}
}

func TestPublishSubscribe(t *testing.T) {
	n := testNotifier(t)
	ctx := context.Background()

	sub, err := n.Subscribe(ctx, "prj-1", 0)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Close()

	if err := n.Publish(ctx, "prj-1", Event{StepNumber: 3, EventType: EventSaved}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	event := waitEvent(t, sub)
	if event.StepNumber != 3 || event.EventType != EventSaved {
		t.Errorf("got %+v", event)
	}
}

func TestSubscribeStepFilter(t *testing.T) {
	n := testNotifier(t)
	ctx := context.Background()

	sub, err := n.Subscribe(ctx, "prj-1", 5)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Close()

	if err := n.Publish(ctx, "prj-1", Event{StepNumber: 2, EventType: EventSaved}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := n.Publish(ctx, "prj-1", Event{StepNumber: 5, EventType: EventSubmitted}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	event := waitEvent(t, sub)
	if event.StepNumber != 5 || event.EventType != EventSubmitted {
		t.Errorf("filter leaked: %+v", event)
	}
}

func TestProjectChannelsAreIsolated(t *testing.T) {
	n := testNotifier(t)
	ctx := context.Background()

	sub, err := n.Subscribe(ctx, "prj-a", 0)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	defer sub.Close()

	if err := n.Publish(ctx, "prj-b", Event{StepNumber: 1, EventType: EventSaved}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if err := n.Publish(ctx, "prj-a", Event{StepNumber: 4, EventType: EventWithdrawn}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	event := waitEvent(t, sub)
	if event.StepNumber != 4 {
		t.Errorf("received another project's event: %+v", event)
	}
}

func TestCloseEndsSubscription(t *testing.T) {
	n := testNotifier(t)
	sub, err := n.Subscribe(context.Background(), "prj-1", 0)
	if err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if err := sub.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	select {
	case _, ok := <-sub.Events():
		if ok {
			t.Error("expected closed channel after Close")
		}
	case <-time.After(2 * time.Second):
		t.Error("events channel not closed after Close")
	}
}
