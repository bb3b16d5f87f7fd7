// Package marketplace implements the job and bid workflow: bid creation,
// bid acceptance with the resulting roster change, and the owner and
// worker job status paths. HTTP handlers for these operations live here
// too; persistence is behind the Store interface.
package marketplace

import (
	"context"
	"log/slog"

	"github.com/workmatch/api/internal/clock"
	"github.com/workmatch/api/internal/user"
)

// Service runs the workflow against a Store.
type Service struct {
	store  Store
	events Publisher
	clock  clock.Clock
	log    *slog.Logger
}

// NewService returns a Service. events, clk and logger may be nil.
func NewService(store Store, events Publisher, clk clock.Clock, logger *slog.Logger) *Service {
	if events == nil {
		events = nopPublisher{}
	}
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, events: events, clock: clk, log: logger}
}

// Store exposes the underlying store for readiness checks.
func (s *Service) Store() Store { return s.store }

func (s *Service) publish(ctx context.Context, evt Event) {
	if evt.At.IsZero() {
		evt.At = s.clock.Now()
	}
	if err := s.events.Publish(ctx, evt); err != nil {
		s.log.Warn("publish event failed",
			slog.String("type", evt.Type),
			slog.String("job_id", evt.JobID),
			slog.Any("error", err))
	}
}

// lookupUsers resolves ids to summaries. Unknown ids resolve to a summary
// carrying only the id.
func (s *Service) lookupUsers(ctx context.Context, ids []string) (map[string]user.Summary, error) {
	seen := make(map[string]bool, len(ids))
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		unique = append(unique, id)
	}

	found, err := s.store.GetUsers(ctx, unique)
	if err != nil {
		return nil, err
	}
	out := make(map[string]user.Summary, len(unique))
	for _, id := range unique {
		if u, ok := found[id]; ok {
			out[id] = u.Summarize()
		} else {
			out[id] = user.Summary{ID: id}
		}
	}
	return out, nil
}

func jobUserIDs(j *Job) []string {
	ids := []string{j.ClientID}
	ids = append(ids, j.Workers...)
	for _, wb := range j.WorkerBids {
		ids = append(ids, wb.WorkerID)
	}
	return ids
}

func buildJobView(j *Job, users map[string]user.Summary) *JobView {
	v := &JobView{
		Job:                  j,
		AssignedWorkersCount: j.AssignedWorkersCount(),
		Client:               users[j.ClientID],
		Workers:              make([]user.Summary, 0, len(j.Workers)),
		WorkerBids:           make([]WorkerBidView, 0, len(j.WorkerBids)),
	}
	for _, w := range j.Workers {
		v.Workers = append(v.Workers, users[w])
	}
	for _, wb := range j.WorkerBids {
		v.WorkerBids = append(v.WorkerBids, WorkerBidView{WorkerBid: wb, Worker: users[wb.WorkerID]})
	}
	return v
}

func (s *Service) populateJob(ctx context.Context, j *Job) (*JobView, error) {
	users, err := s.lookupUsers(ctx, jobUserIDs(j))
	if err != nil {
		return nil, err
	}
	return buildJobView(j, users), nil
}

func (s *Service) populateJobs(ctx context.Context, jobs []*Job) ([]*JobView, error) {
	var ids []string
	for _, j := range jobs {
		ids = append(ids, jobUserIDs(j)...)
	}
	users, err := s.lookupUsers(ctx, ids)
	if err != nil {
		return nil, err
	}
	views := make([]*JobView, 0, len(jobs))
	for _, j := range jobs {
		views = append(views, buildJobView(j, users))
	}
	return views, nil
}
