package marketplace

import (
	"context"
	"errors"
	"time"
)

// Event types published after a successful write.
const (
	EventBidCreated       = "bid.created"
	EventBidAccepted      = "bid.accepted"
	EventBidRejected      = "bid.rejected"
	EventJobAssigned      = "job.assigned"
	EventJobStatusChanged = "job.status_changed"
)

// Event describes a committed change to a job or one of its bids.
type Event struct {
	Type       string    `json:"type"`
	JobID      string    `json:"jobId"`
	BidID      string    `json:"bidId,omitempty"`
	ActorID    string    `json:"actorId"`
	Recipients []string  `json:"recipients,omitempty"`
	Status     string    `json:"status,omitempty"`
	At         time.Time `json:"at"`
	Data       any       `json:"data,omitempty"`
}

// Publisher receives events after the store has committed them.
// Publishing is best-effort: a failure is logged, never returned to the
// HTTP caller.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
}

// Publishers fans one event out to several publishers.
type Publishers []Publisher

func (ps Publishers) Publish(ctx context.Context, evt Event) error {
	var errs []error
	for _, p := range ps {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Event) error { return nil }
