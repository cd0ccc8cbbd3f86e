package app

import (
	"context"
	"log"
	"sync"

	"waypoint/api/internal/notify"
)

// StepLoader fetches the current server copy of a step document.
type StepLoader interface {
	LoadStep(ctx context.Context, session Session, projectID string, stepNumber int) (StepView, error)
}

// StepSubscriber opens an event stream for a project's step changes.
type StepSubscriber interface {
	SubscribeSteps(ctx context.Context, session Session, projectID string, stepNumber int) (*notify.Subscription, error)
}

// StepController keeps an in-memory copy of one step document in sync with
// the server. Events carry no payloads; every event triggers a reload, and
// whatever the server returns replaces the local copy wholesale.
type StepController struct {
	loader     StepLoader
	subscriber StepSubscriber
	session    Session
	projectID  string
	stepNumber int

	mu       sync.RWMutex
	current  StepView
	onChange func(StepView)

	sub *notify.Subscription
}

func NewStepController(loader StepLoader, subscriber StepSubscriber, session Session, projectID string, stepNumber int) *StepController {
	return &StepController{
		loader:     loader,
		subscriber: subscriber,
		session:    session,
		projectID:  projectID,
		stepNumber: stepNumber,
	}
}

// OnChange registers a callback invoked after every replace. Must be set
// before Run.
func (c *StepController) OnChange(fn func(StepView)) {
	c.onChange = fn
}

// Snapshot returns the last loaded view.
func (c *StepController) Snapshot() StepView {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

// Run loads the step once, then reloads on every event until ctx is done or
// the stream closes.
func (c *StepController) Run(ctx context.Context) error {
	sub, err := c.subscriber.SubscribeSteps(ctx, c.session, c.projectID, c.stepNumber)
	if err != nil {
		return err
	}
	c.sub = sub
	defer sub.Close()

	if err := c.reload(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, open := <-sub.Events():
			if !open {
				return nil
			}
			if err := c.reload(ctx); err != nil {
				log.Printf("step controller reload %s step %d: %v", c.projectID, c.stepNumber, err)
			}
		}
	}
}

func (c *StepController) reload(ctx context.Context) error {
	view, err := c.loader.LoadStep(ctx, c.session, c.projectID, c.stepNumber)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.current = view
	c.mu.Unlock()
	if c.onChange != nil {
		c.onChange(view)
	}
	return nil
}

func (c *StepController) Close() error {
	if c.sub != nil {
		return c.sub.Close()
	}
	return nil
}
