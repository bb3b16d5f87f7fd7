package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hibiken/asynq"

	"github.com/workmatch/api/internal/marketplace"
	"github.com/workmatch/api/internal/user"
)

// UserLookup resolves a recipient id.
type UserLookup interface {
	GetUser(ctx context.Context, id string) (user.User, error)
}

// Sender delivers a rendered notification.
type Sender interface {
	Send(ctx context.Context, env Envelope) error
}

// LogSender writes notifications to the log instead of delivering them.
type LogSender struct {
	Log *slog.Logger
}

func (s LogSender) Send(_ context.Context, env Envelope) error {
	s.Log.Info("[notify] sent", slog.String("to", env.To), slog.String("subject", env.Subject))
	return nil
}

// Processor handles notification tasks.
type Processor struct {
	users  UserLookup
	sender Sender
	log    *slog.Logger
}

func NewProcessor(users UserLookup, sender Sender, logger *slog.Logger) *Processor {
	if sender == nil {
		sender = LogSender{Log: logger}
	}
	return &Processor{users: users, sender: sender, log: logger}
}

// Mux routes every notification task type to the processor.
func (p *Processor) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskBidCreated, p.Handle)
	mux.HandleFunc(TaskBidDecided, p.Handle)
	mux.HandleFunc(TaskJobStatus, p.Handle)
	return mux
}

// Handle renders and sends one notification. Malformed payloads are not
// retried; recipients missing from the user store are addressed by id.
func (p *Processor) Handle(ctx context.Context, t *asynq.Task) error {
	var n NotificationPayload
	if err := json.Unmarshal(t.Payload(), &n); err != nil {
		return fmt.Errorf("decode %s: %v: %w", t.Type(), err, asynq.SkipRetry)
	}
	if n.RecipientID == "" {
		return fmt.Errorf("%s without recipient: %w", t.Type(), asynq.SkipRetry)
	}

	to := user.User{ID: n.RecipientID}
	u, err := p.users.GetUser(ctx, n.RecipientID)
	switch {
	case err == nil:
		to = u
	case errors.Is(err, marketplace.ErrNotFound):
		p.log.Warn("[notify] unknown recipient", slog.String("recipient_id", n.RecipientID))
	default:
		return fmt.Errorf("lookup recipient: %w", err)
	}

	env := Render(t.Type(), n, to)
	if err := p.sender.Send(ctx, env); err != nil {
		p.log.Error("[notify] send failed", slog.String("task", t.Type()), slog.Any("error", err))
		return err
	}
	p.log.Info("[notify] delivered",
		slog.String("task", t.Type()),
		slog.String("event", n.Event),
		slog.String("job_id", n.JobID),
		slog.String("recipient_id", n.RecipientID))
	return nil
}

// Render builds the message for a task. The address is the recipient's
// email when known, otherwise their id.
func Render(taskType string, n NotificationPayload, to user.User) Envelope {
	addr := to.Email
	if addr == "" {
		addr = to.ID
	}
	job := n.JobTitle
	if job == "" {
		job = "job " + n.JobID
	}

	env := Envelope{To: addr}
	switch taskType {
	case TaskBidCreated:
		env.Subject = "New bid on your job"
		env.Body = fmt.Sprintf("A worker bid %.2f on %s.", n.Amount, job)
	case TaskBidDecided:
		env.Subject = fmt.Sprintf("Your bid was %s", strings.ToLower(n.Status))
		env.Body = fmt.Sprintf("Your bid %s on %s was %s.", n.BidID, job, strings.ToLower(n.Status))
	default:
		env.Subject = "Job status updated"
		env.Body = fmt.Sprintf("%s is now %s.", job, n.Status)
	}
	if to.Name != "" {
		env.Body = fmt.Sprintf("Hi %s, %s", to.Name, env.Body)
	}
	return env
}

