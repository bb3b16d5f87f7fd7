package marketplace

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/workmatch/api/internal/user"
)

// CreateJobInput is the body of POST /jobs.
type CreateJobInput struct {
	Title               string     `json:"title" validate:"required,max=200"`
	Description         string     `json:"description" validate:"required,max=5000"`
	Location            string     `json:"location" validate:"required,max=200"`
	Budget              float64    `json:"budget" validate:"gte=0.01"`
	WorkCategory        string     `json:"workCategory" validate:"required,max=100"`
	WorkDuration        string     `json:"workDuration" validate:"max=200"`
	WorkersNeeded       int        `json:"workersNeeded" validate:"gte=1"`
	Requirements        string     `json:"requirements" validate:"max=5000"`
	ApplicationDeadline *time.Time `json:"applicationDeadline"`
}

// CreateJob posts a new Open job owned by clientID.
func (s *Service) CreateJob(ctx context.Context, clientID string, in CreateJobInput) (*JobView, error) {
	budget := roundCents(in.Budget)
	if budget < minAmount {
		return nil, invalid("Budget must be at least %.2f", minAmount)
	}
	if in.WorkersNeeded < 1 {
		return nil, invalid("workersNeeded must be at least 1")
	}
	now := s.clock.Now()
	if in.ApplicationDeadline != nil && !in.ApplicationDeadline.After(now) {
		return nil, invalid("Application deadline must be in the future")
	}

	job := &Job{
		ID:                  uuid.NewString(),
		ClientID:            clientID,
		Title:               in.Title,
		Description:         in.Description,
		Location:            in.Location,
		Budget:              budget,
		WorkCategory:        in.WorkCategory,
		WorkDuration:        in.WorkDuration,
		WorkersNeeded:       in.WorkersNeeded,
		Requirements:        in.Requirements,
		ApplicationDeadline: in.ApplicationDeadline,
		Status:              JobOpen,
		Workers:             []string{},
		WorkerBids:          []WorkerBid{},
		Bids:                []string{},
		Version:             1,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := s.store.CreateJob(ctx, job); err != nil {
		return nil, err
	}
	return s.populateJob(ctx, job)
}

// GetJob returns one job with its users resolved.
func (s *Service) GetJob(ctx context.Context, id string) (*JobView, error) {
	job, err := s.store.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.populateJob(ctx, job)
}

// ListJobs lists jobs matching filter. An empty status means Open.
func (s *Service) ListJobs(ctx context.Context, filter JobFilter) ([]*JobView, error) {
	if filter.Status == "" {
		filter.Status = JobOpen
	} else if !ValidJobStatus(filter.Status) {
		return nil, invalid("Invalid job status %q", filter.Status)
	}
	jobs, err := s.store.ListJobs(ctx, filter)
	if err != nil {
		return nil, err
	}
	return s.populateJobs(ctx, jobs)
}

// MyJobs lists the jobs a client owns, or the jobs a worker is assigned to.
func (s *Service) MyJobs(ctx context.Context, callerID, role string) ([]*JobView, error) {
	var filter JobFilter
	switch role {
	case user.RoleClient:
		filter.ClientID = callerID
	case user.RoleWorker:
		filter.WorkerID = callerID
	default:
		return nil, forbidden("Unknown role %q", role)
	}
	jobs, err := s.store.ListJobs(ctx, filter)
	if err != nil {
		return nil, err
	}
	return s.populateJobs(ctx, jobs)
}

// DeleteJob removes a job owned by callerID. Bids on the job are left in
// place; listings show them with a bare job reference.
func (s *Service) DeleteJob(ctx context.Context, callerID, id string) error {
	job, err := s.store.GetJob(ctx, id)
	if err != nil {
		return err
	}
	if job.ClientID != callerID {
		return forbidden("Only the job owner can delete it")
	}
	return s.store.DeleteJob(ctx, id)
}

// UpdateJobStatus is the owner path: any known status is accepted.
func (s *Service) UpdateJobStatus(ctx context.Context, callerID, id, status string) (*JobView, error) {
	job, err := s.store.UpdateJob(ctx, id, func(job *Job) error {
		if job.ClientID != callerID {
			return forbidden("Only the job owner can change its status")
		}
		return applyOwnerStatus(job, status, s.clock.Now())
	})
	if err != nil {
		return nil, err
	}

	view, err := s.populateJob(ctx, job)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, Event{
		Type:       EventJobStatusChanged,
		JobID:      job.ID,
		ActorID:    callerID,
		Recipients: append([]string(nil), job.Workers...),
		Status:     job.Status,
		Data:       view,
	})
	return view, nil
}

// UpdateWorkerJobStatusInput is the body of PATCH /jobs/:id/worker-status.
type UpdateWorkerJobStatusInput struct {
	Status        string  `json:"status" validate:"required"`
	ProgressNotes *string `json:"progressNotes" validate:"omitempty,max=5000"`
}

// UpdateWorkerJobStatus is the worker path: Assigned -> In Progress ->
// Completed, one step at a time, by a worker on the roster.
func (s *Service) UpdateWorkerJobStatus(ctx context.Context, callerID, id string, in UpdateWorkerJobStatusInput) (*JobView, error) {
	job, err := s.store.UpdateJob(ctx, id, func(job *Job) error {
		if !job.HasWorker(callerID) {
			return forbidden("You are not assigned to this job")
		}
		return applyWorkerStatus(job, in.Status, in.ProgressNotes, s.clock.Now())
	})
	if err != nil {
		return nil, err
	}

	view, err := s.populateJob(ctx, job)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, Event{
		Type:       EventJobStatusChanged,
		JobID:      job.ID,
		ActorID:    callerID,
		Recipients: []string{job.ClientID},
		Status:     job.Status,
		Data:       view,
	})
	return view, nil
}

// CanWatch reports whether callerID may subscribe to live updates for a
// job: the owner and assigned workers can.
func (s *Service) CanWatch(ctx context.Context, callerID, jobID string) error {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job.ClientID != callerID && !job.HasWorker(callerID) {
		return forbidden("Not a participant in this job")
	}
	return nil
}
