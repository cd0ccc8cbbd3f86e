// Package notify fans out step change events over Redis pub/sub. Events
// carry no payload, only which step changed and how; subscribers reload the
// document themselves, so a late event never delivers stale content.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const (
	EventSaved     = "saved"
	EventSubmitted = "submitted"
	EventWithdrawn = "withdrawn"
)

// Event is a payload-less change notification for one step.
type Event struct {
	StepNumber int    `json:"stepNumber"`
	EventType  string `json:"eventType"`
}

type Notifier struct {
	client *redis.Client
}

func New(client *redis.Client) *Notifier {
	return &Notifier{client: client}
}

func channelFor(projectID string) string {
	return "project:" + projectID
}

// Publish broadcasts an event to every subscriber of the project channel.
// Delivery is best effort; a save that fails to notify is still saved.
func (n *Notifier) Publish(ctx context.Context, projectID string, event Event) error {
	raw, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := n.client.Publish(ctx, channelFor(projectID), raw).Err(); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

// Subscription delivers a project's events until Close is called or the
// subscribe context ends.
type Subscription struct {
	pubsub *redis.PubSub
	events chan Event
}

// Events is closed when the subscription ends.
func (s *Subscription) Events() <-chan Event {
	return s.events
}

func (s *Subscription) Close() error {
	return s.pubsub.Close()
}

// Subscribe opens a subscription for one project. stepNumber filters to a
// single step; 0 receives every step's events.
func (n *Notifier) Subscribe(ctx context.Context, projectID string, stepNumber int) (*Subscription, error) {
	pubsub := n.client.Subscribe(ctx, channelFor(projectID))
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channelFor(projectID), err)
	}

	sub := &Subscription{pubsub: pubsub, events: make(chan Event, 16)}
	go func() {
		defer close(sub.events)
		for msg := range pubsub.Channel() {
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				continue
			}
			if stepNumber != 0 && event.StepNumber != stepNumber {
				continue
			}
			select {
			case sub.events <- event:
			case <-ctx.Done():
				return
			}
		}
	}()
	return sub, nil
}
