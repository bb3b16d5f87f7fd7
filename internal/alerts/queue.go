// Package alerts turns marketplace events into queued notifications and
// delivers them from a background worker.
package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/workmatch/api/internal/marketplace"
)

// Enqueuer is the part of *asynq.Client the queue uses.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Queue publishes marketplace events as asynq tasks.
type Queue struct {
	client Enqueuer
	queue  string
}

var _ marketplace.Publisher = (*Queue)(nil)

func NewQueue(client Enqueuer, queue string) *Queue {
	if queue == "" {
		queue = "notifications"
	}
	return &Queue{client: client, queue: queue}
}

// TaskType maps an event type to its task type. Events with no
// notification report false.
func TaskType(eventType string) (string, bool) {
	switch eventType {
	case marketplace.EventBidCreated:
		return TaskBidCreated, true
	case marketplace.EventBidAccepted, marketplace.EventBidRejected:
		return TaskBidDecided, true
	case marketplace.EventJobAssigned, marketplace.EventJobStatusChanged:
		return TaskJobStatus, true
	}
	return "", false
}

// NewTasks builds one task per recipient of evt.
func NewTasks(evt marketplace.Event) ([]*asynq.Task, error) {
	taskType, ok := TaskType(evt.Type)
	if !ok {
		return nil, nil
	}

	base := NotificationPayload{
		Event:   evt.Type,
		JobID:   evt.JobID,
		BidID:   evt.BidID,
		ActorID: evt.ActorID,
		Status:  evt.Status,
		At:      evt.At,
	}
	switch d := evt.Data.(type) {
	case *marketplace.Bid:
		base.Amount = d.Amount
	case *marketplace.JobView:
		base.JobTitle = d.Title
	}

	tasks := make([]*asynq.Task, 0, len(evt.Recipients))
	for _, r := range evt.Recipients {
		if r == "" || r == evt.ActorID {
			continue
		}
		p := base
		p.RecipientID = r
		b, err := json.Marshal(p)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, asynq.NewTask(taskType, b, asynq.MaxRetry(5)))
	}
	return tasks, nil
}

// Publish enqueues a task for every recipient of evt.
func (q *Queue) Publish(ctx context.Context, evt marketplace.Event) error {
	tasks, err := NewTasks(evt)
	if err != nil {
		return fmt.Errorf("build notification: %w", err)
	}
	var errs []error
	for _, t := range tasks {
		if _, err := q.client.EnqueueContext(ctx, t, asynq.Queue(q.queue)); err != nil {
			errs = append(errs, fmt.Errorf("enqueue %s: %w", t.Type(), err))
		}
	}
	return errors.Join(errs...)
}
