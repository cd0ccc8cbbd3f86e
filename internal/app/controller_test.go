package app

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"waypoint/api/internal/notify"
)

type fakeStepLoader struct {
	mu   sync.Mutex
	view StepView
}

func (f *fakeStepLoader) set(view StepView) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.view = view
}

func (f *fakeStepLoader) LoadStep(ctx context.Context, session Session, projectID string, stepNumber int) (StepView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.view, nil
}

type notifierSubscriber struct {
	notifier *notify.Notifier
}

func (n *notifierSubscriber) SubscribeSteps(ctx context.Context, session Session, projectID string, stepNumber int) (*notify.Subscription, error) {
	return n.notifier.Subscribe(ctx, projectID, stepNumber)
}

func TestStepControllerReplacesOnEvent(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	notifier := notify.New(client)

	loader := &fakeStepLoader{}
	loader.set(StepView{
		ProjectID:  "prj-1",
		StepNumber: 3,
		Payload:    json.RawMessage(`{"personas":[{"id":1,"name":"Dana"}]}`),
		Progress:   8,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	controller := NewStepController(loader, &notifierSubscriber{notifier}, Session{UserID: "usr-1"}, "prj-1", 3)
	changes := make(chan StepView, 8)
	controller.OnChange(func(view StepView) { changes <- view })

	done := make(chan error, 1)
	go func() { done <- controller.Run(ctx) }()

	first := waitChange(t, changes)
	if first.Progress != 8 {
		t.Fatalf("initial progress = %d, want 8", first.Progress)
	}

	// A second writer saves a newer copy; the event should make the
	// controller drop its local copy and take the server's.
	loader.set(StepView{
		ProjectID:  "prj-1",
		StepNumber: 3,
		Payload:    json.RawMessage(`{"personas":[{"id":1,"name":"Dana"},{"id":2,"name":"Morgan"}]}`),
		Progress:   16,
	})
	if err := notifier.Publish(context.Background(), "prj-1", notify.Event{StepNumber: 3, EventType: notify.EventSaved}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	second := waitChange(t, changes)
	if second.Progress != 16 {
		t.Fatalf("replaced progress = %d, want 16", second.Progress)
	}
	if string(controller.Snapshot().Payload) != string(second.Payload) {
		t.Fatalf("snapshot does not match last loaded view")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("controller did not stop on cancel")
	}
}

func TestStepControllerIgnoresOtherSteps(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	notifier := notify.New(client)

	loader := &fakeStepLoader{}
	loader.set(StepView{ProjectID: "prj-1", StepNumber: 3, Progress: 5})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	controller := NewStepController(loader, &notifierSubscriber{notifier}, Session{UserID: "usr-1"}, "prj-1", 3)
	changes := make(chan StepView, 8)
	controller.OnChange(func(view StepView) { changes <- view })
	go controller.Run(ctx)

	waitChange(t, changes)

	loader.set(StepView{ProjectID: "prj-1", StepNumber: 3, Progress: 99})
	notifier.Publish(context.Background(), "prj-1", notify.Event{StepNumber: 5, EventType: notify.EventSaved})

	select {
	case view := <-changes:
		t.Fatalf("unexpected reload for another step: %+v", view)
	case <-time.After(300 * time.Millisecond):
	}
}

func waitChange(t *testing.T, changes <-chan StepView) StepView {
	t.Helper()
	select {
	case view := <-changes:
		return view
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for controller change")
		return StepView{}
	}
}
