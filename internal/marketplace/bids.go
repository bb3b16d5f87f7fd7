package marketplace

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/workmatch/api/internal/user"
)

// CreateBidInput is the body of POST /bids.
type CreateBidInput struct {
	JobID        string  `json:"jobId" validate:"required"`
	Amount       float64 `json:"amount" validate:"gte=0.01"`
	Message      string  `json:"message" validate:"max=2000"`
	WorkDuration string  `json:"workDuration" validate:"max=200"`
}

// CreateBid records a Pending bid from workerID. Bids are only taken while
// the job is Open and its application deadline, if any, has not passed.
func (s *Service) CreateBid(ctx context.Context, workerID string, in CreateBidInput) (*Bid, error) {
	if in.JobID == "" {
		return nil, invalid("jobId is required")
	}
	amount := roundCents(in.Amount)
	if amount < minAmount {
		return nil, invalid("Bid amount must be at least %.2f", minAmount)
	}

	now := s.clock.Now()
	bid := &Bid{
		ID:           uuid.NewString(),
		JobID:        in.JobID,
		WorkerID:     workerID,
		Amount:       amount,
		Message:      in.Message,
		WorkDuration: in.WorkDuration,
		Status:       BidPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	job, err := s.store.CreateBid(ctx, bid, func(job *Job) error {
		if job.Status != JobOpen {
			return conflict("Job is not open for bids (status %s)", job.Status)
		}
		if job.ApplicationDeadline != nil && now.After(*job.ApplicationDeadline) {
			return conflict("Application deadline has passed")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, Event{
		Type:       EventBidCreated,
		JobID:      job.ID,
		BidID:      bid.ID,
		ActorID:    workerID,
		Recipients: []string{job.ClientID},
		Status:     bid.Status,
		Data:       bid,
	})
	return bid, nil
}

// ListBidsForJob returns every bid on a job. Only the job owner may list them.
func (s *Service) ListBidsForJob(ctx context.Context, callerID, jobID string) ([]*BidView, error) {
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.ClientID != callerID {
		return nil, forbidden("Only the job owner can view its bids")
	}

	bids, err := s.store.ListBids(ctx, BidFilter{JobID: jobID})
	if err != nil {
		return nil, err
	}
	return s.populateBids(ctx, bids, map[string]*Job{job.ID: job}, true)
}

// ListMyBids returns the worker's own bids with their jobs.
func (s *Service) ListMyBids(ctx context.Context, workerID string) ([]*BidView, error) {
	bids, err := s.store.ListBids(ctx, BidFilter{WorkerID: workerID})
	if err != nil {
		return nil, err
	}
	return s.populateBids(ctx, bids, nil, false)
}

// ListIncomingBids returns bids on every job the client owns.
func (s *Service) ListIncomingBids(ctx context.Context, clientID string) ([]*BidView, error) {
	bids, err := s.store.ListBids(ctx, BidFilter{ClientID: clientID})
	if err != nil {
		return nil, err
	}
	return s.populateBids(ctx, bids, nil, true)
}

// UpdateBidStatus accepts or rejects a Pending bid on the caller's job.
// Acceptance adds the worker to the roster; the bid and job writes are
// committed together or not at all.
func (s *Service) UpdateBidStatus(ctx context.Context, callerID, bidID, status string) (*AcceptResult, error) {
	if status != BidAccepted && status != BidRejected {
		return nil, invalid("Status must be %s or %s", BidAccepted, BidRejected)
	}

	var prevStatus string
	bid, job, err := s.store.DecideBid(ctx, bidID, func(bid *Bid, job *Job) error {
		if job.ClientID != callerID {
			return forbidden("Only the job owner can decide on its bids")
		}
		if status == BidAccepted && job.HasWorker(bid.WorkerID) {
			return conflict(msgWorkerAlreadyAssigned)
		}
		if bid.Status != BidPending {
			return conflict("Bid has already been %s", strings.ToLower(bid.Status))
		}

		now := s.clock.Now()
		prevStatus = job.Status
		if status == BidAccepted {
			if err := assignWorker(job, bid, now); err != nil {
				return err
			}
		}
		bid.Status = status
		bid.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}

	view, err := s.populateJob(ctx, job)
	if err != nil {
		return nil, err
	}

	evtType := EventBidRejected
	if status == BidAccepted {
		evtType = EventBidAccepted
	}
	s.publish(ctx, Event{
		Type:       evtType,
		JobID:      job.ID,
		BidID:      bid.ID,
		ActorID:    callerID,
		Recipients: []string{bid.WorkerID},
		Status:     bid.Status,
		Data:       bid,
	})
	if job.Status != prevStatus {
		s.publish(ctx, Event{
			Type:       EventJobAssigned,
			JobID:      job.ID,
			ActorID:    callerID,
			Recipients: append([]string(nil), job.Workers...),
			Status:     job.Status,
			Data:       view,
		})
	}

	return &AcceptResult{Bid: bid, Job: view}, nil
}

// populateBids attaches job summaries and, when withWorker is set, worker
// summaries. Bids whose job has been deleted keep a summary with only the id.
func (s *Service) populateBids(ctx context.Context, bids []*Bid, jobs map[string]*Job, withWorker bool) ([]*BidView, error) {
	if jobs == nil {
		jobs = make(map[string]*Job)
	}
	for _, b := range bids {
		if _, ok := jobs[b.JobID]; ok {
			continue
		}
		j, err := s.store.GetJob(ctx, b.JobID)
		if errors.Is(err, ErrNotFound) {
			jobs[b.JobID] = nil
			continue
		}
		if err != nil {
			return nil, err
		}
		jobs[b.JobID] = j
	}

	users := map[string]user.Summary{}
	if withWorker {
		ids := make([]string, 0, len(bids))
		for _, b := range bids {
			ids = append(ids, b.WorkerID)
		}
		var err error
		if users, err = s.lookupUsers(ctx, ids); err != nil {
			return nil, err
		}
	}

	views := make([]*BidView, 0, len(bids))
	for _, b := range bids {
		v := &BidView{Bid: b}
		if j := jobs[b.JobID]; j != nil {
			v.Job = summarizeJob(j)
		} else {
			v.Job = &JobSummary{ID: b.JobID}
		}
		w, ok := users[b.WorkerID]
		if !ok {
			w = user.Summary{ID: b.WorkerID}
		}
		v.Worker = &w
		views = append(views, v)
	}
	return views, nil
}
