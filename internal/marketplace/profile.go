package marketplace

import (
	"context"
	"time"

	"github.com/workmatch/api/internal/user"
)

// Profile is the public view of a user with their marketplace record.
type Profile struct {
	user.Summary
	CreatedAt     time.Time `json:"createdAt"`
	JobsPosted    int       `json:"jobsPosted"`
	JobsAssigned  int       `json:"jobsAssigned"`
	JobsCompleted int       `json:"jobsCompleted"`
}

// PublicProfile returns a user's summary and job counts. Clients are
// counted by the jobs they posted, workers by the jobs they were assigned.
func (s *Service) PublicProfile(ctx context.Context, id string) (*Profile, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	p := &Profile{Summary: u.Summarize(), CreatedAt: u.CreatedAt}

	var filter JobFilter
	switch u.Role {
	case user.RoleClient:
		filter.ClientID = u.ID
	case user.RoleWorker:
		filter.WorkerID = u.ID
	default:
		return p, nil
	}
	jobs, err := s.store.ListJobs(ctx, filter)
	if err != nil {
		return nil, err
	}
	for _, j := range jobs {
		if j.Status == JobCompleted {
			p.JobsCompleted++
		}
	}
	if u.Role == user.RoleClient {
		p.JobsPosted = len(jobs)
	} else {
		p.JobsAssigned = len(jobs)
	}
	return p, nil
}
