// Package storetest holds the behavioural checks every marketplace.Store
// implementation must pass.
package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/workmatch/api/internal/marketplace"
	"github.com/workmatch/api/internal/user"
)

// Run exercises s. The store should be empty or hold only unrelated data;
// every record Run writes uses fresh ids.
func Run(t *testing.T, s marketplace.Store) {
	t.Run("JobRoundTrip", func(t *testing.T) { testJobRoundTrip(t, s) })
	t.Run("MissingRecords", func(t *testing.T) { testMissing(t, s) })
	t.Run("UpdateJobCallbackError", func(t *testing.T) { testUpdateCallbackError(t, s) })
	t.Run("CreateBidCheck", func(t *testing.T) { testCreateBidCheck(t, s) })
	t.Run("DecideBid", func(t *testing.T) { testDecideBid(t, s) })
	t.Run("ListFilters", func(t *testing.T) { testListFilters(t, s) })
	t.Run("Users", func(t *testing.T) { testUsers(t, s) })
	t.Run("ConcurrentUpdates", func(t *testing.T) { testConcurrentUpdates(t, s) })
}

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newJob(clientID string, offset time.Duration) *marketplace.Job {
	at := base.Add(offset)
	return &marketplace.Job{
		ID:            uuid.NewString(),
		ClientID:      clientID,
		Title:         "Fence repair",
		Description:   "Replace six panels",
		Location:      "Leeds",
		Budget:        300,
		WorkCategory:  "carpentry-" + clientID,
		WorkersNeeded: 2,
		Status:        marketplace.JobOpen,
		Workers:       []string{},
		WorkerBids:    []marketplace.WorkerBid{},
		Bids:          []string{},
		Version:       1,
		CreatedAt:     at,
		UpdatedAt:     at,
	}
}

func newBid(jobID, workerID string, offset time.Duration) *marketplace.Bid {
	at := base.Add(offset)
	return &marketplace.Bid{
		ID:        uuid.NewString(),
		JobID:     jobID,
		WorkerID:  workerID,
		Amount:    150,
		Message:   "available",
		Status:    marketplace.BidPending,
		CreatedAt: at,
		UpdatedAt: at,
	}
}

func mustCreateJob(t *testing.T, s marketplace.Store, j *marketplace.Job) {
	t.Helper()
	if err := s.CreateJob(context.Background(), j); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
}

func testJobRoundTrip(t *testing.T, s marketplace.Store) {
	ctx := context.Background()
	j := newJob(uuid.NewString(), 0)
	deadline := base.Add(48 * time.Hour)
	j.ApplicationDeadline = &deadline
	mustCreateJob(t, s, j)

	got, err := s.GetJob(ctx, j.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Title != j.Title || got.ClientID != j.ClientID || got.Status != marketplace.JobOpen {
		t.Errorf("GetJob = %+v", got)
	}
	if got.ApplicationDeadline == nil || !got.ApplicationDeadline.Equal(deadline) {
		t.Errorf("ApplicationDeadline = %v, want %v", got.ApplicationDeadline, deadline)
	}
	if got.Workers == nil || got.WorkerBids == nil || got.Bids == nil {
		t.Error("roster slices should be non-nil")
	}

	if err := s.DeleteJob(ctx, j.ID); err != nil {
		t.Fatalf("DeleteJob: %v", err)
	}
	if _, err := s.GetJob(ctx, j.ID); !errors.Is(err, marketplace.ErrNotFound) {
		t.Errorf("GetJob after delete: got %v, want not found", err)
	}
}

func testMissing(t *testing.T, s marketplace.Store) {
	ctx := context.Background()
	missing := uuid.NewString()
	if _, err := s.GetJob(ctx, missing); !errors.Is(err, marketplace.ErrNotFound) {
		t.Errorf("GetJob: %v", err)
	}
	if _, err := s.GetBid(ctx, missing); !errors.Is(err, marketplace.ErrNotFound) {
		t.Errorf("GetBid: %v", err)
	}
	if err := s.DeleteJob(ctx, missing); !errors.Is(err, marketplace.ErrNotFound) {
		t.Errorf("DeleteJob: %v", err)
	}
	if _, err := s.UpdateJob(ctx, missing, func(*marketplace.Job) error { return nil }); !errors.Is(err, marketplace.ErrNotFound) {
		t.Errorf("UpdateJob: %v", err)
	}
	if _, _, err := s.DecideBid(ctx, missing, func(*marketplace.Bid, *marketplace.Job) error { return nil }); !errors.Is(err, marketplace.ErrNotFound) {
		t.Errorf("DecideBid: %v", err)
	}
	if _, err := s.GetUser(ctx, missing); !errors.Is(err, marketplace.ErrNotFound) {
		t.Errorf("GetUser: %v", err)
	}
}

func testUpdateCallbackError(t *testing.T, s marketplace.Store) {
	ctx := context.Background()
	j := newJob(uuid.NewString(), 0)
	mustCreateJob(t, s, j)

	boom := errors.New("boom")
	_, err := s.UpdateJob(ctx, j.ID, func(job *marketplace.Job) error {
		job.Status = marketplace.JobCancelled
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("UpdateJob err = %v, want boom", err)
	}
	got, _ := s.GetJob(ctx, j.ID)
	if got.Status != marketplace.JobOpen || got.Version != j.Version {
		t.Errorf("job changed after failed update: status %s version %d", got.Status, got.Version)
	}

	updated, err := s.UpdateJob(ctx, j.ID, func(job *marketplace.Job) error {
		job.Status = marketplace.JobCancelled
		return nil
	})
	if err != nil {
		t.Fatalf("UpdateJob: %v", err)
	}
	if updated.Status != marketplace.JobCancelled || updated.Version != j.Version+1 {
		t.Errorf("updated = status %s version %d", updated.Status, updated.Version)
	}
}

func testCreateBidCheck(t *testing.T, s marketplace.Store) {
	ctx := context.Background()
	j := newJob(uuid.NewString(), 0)
	mustCreateJob(t, s, j)

	rejected := newBid(j.ID, uuid.NewString(), time.Minute)
	closed := marketplace.NewError(marketplace.ErrConflict, "closed")
	if _, err := s.CreateBid(ctx, rejected, func(*marketplace.Job) error { return closed }); !errors.Is(err, marketplace.ErrConflict) {
		t.Fatalf("CreateBid with failing check: %v", err)
	}
	if _, err := s.GetBid(ctx, rejected.ID); !errors.Is(err, marketplace.ErrNotFound) {
		t.Errorf("rejected bid was stored: %v", err)
	}

	b := newBid(j.ID, uuid.NewString(), 2*time.Minute)
	job, err := s.CreateBid(ctx, b, nil)
	if err != nil {
		t.Fatalf("CreateBid: %v", err)
	}
	if len(job.Bids) != 1 || job.Bids[0] != b.ID {
		t.Errorf("job.Bids = %v, want [%s]", job.Bids, b.ID)
	}
	got, err := s.GetBid(ctx, b.ID)
	if err != nil {
		t.Fatalf("GetBid: %v", err)
	}
	if got.Status != marketplace.BidPending || got.Amount != b.Amount {
		t.Errorf("GetBid = %+v", got)
	}

	if _, err := s.CreateBid(ctx, newBid(uuid.NewString(), uuid.NewString(), 0), nil); !errors.Is(err, marketplace.ErrNotFound) {
		t.Errorf("CreateBid on missing job: %v", err)
	}
}

func testDecideBid(t *testing.T, s marketplace.Store) {
	ctx := context.Background()
	j := newJob(uuid.NewString(), 0)
	mustCreateJob(t, s, j)
	b := newBid(j.ID, uuid.NewString(), time.Minute)
	if _, err := s.CreateBid(ctx, b, nil); err != nil {
		t.Fatalf("CreateBid: %v", err)
	}

	boom := errors.New("boom")
	if _, _, err := s.DecideBid(ctx, b.ID, func(bid *marketplace.Bid, job *marketplace.Job) error {
		bid.Status = marketplace.BidAccepted
		job.Workers = append(job.Workers, bid.WorkerID)
		return boom
	}); !errors.Is(err, boom) {
		t.Fatalf("DecideBid err = %v, want boom", err)
	}
	if got, _ := s.GetBid(ctx, b.ID); got.Status != marketplace.BidPending {
		t.Errorf("bid status after failed decide = %s", got.Status)
	}
	if got, _ := s.GetJob(ctx, j.ID); len(got.Workers) != 0 {
		t.Errorf("workers after failed decide = %v", got.Workers)
	}

	acceptedAt := base.Add(time.Hour)
	bid, job, err := s.DecideBid(ctx, b.ID, func(bid *marketplace.Bid, job *marketplace.Job) error {
		bid.Status = marketplace.BidAccepted
		bid.UpdatedAt = acceptedAt
		job.Workers = append(job.Workers, bid.WorkerID)
		job.WorkerBids = append(job.WorkerBids, marketplace.WorkerBid{
			WorkerID: bid.WorkerID, BidID: bid.ID, Amount: bid.Amount, Message: bid.Message, AcceptedAt: acceptedAt,
		})
		job.UpdatedAt = acceptedAt
		return nil
	})
	if err != nil {
		t.Fatalf("DecideBid: %v", err)
	}
	if bid.Status != marketplace.BidAccepted || len(job.Workers) != 1 {
		t.Errorf("DecideBid returned bid %s workers %v", bid.Status, job.Workers)
	}

	stored, _ := s.GetJob(ctx, j.ID)
	if len(stored.Workers) != 1 || stored.Workers[0] != b.WorkerID {
		t.Errorf("stored workers = %v", stored.Workers)
	}
	if len(stored.WorkerBids) != 1 || stored.WorkerBids[0].BidID != b.ID || !stored.WorkerBids[0].AcceptedAt.Equal(acceptedAt) {
		t.Errorf("stored worker bids = %+v", stored.WorkerBids)
	}
	if stored.Version <= j.Version {
		t.Errorf("version not bumped: %d", stored.Version)
	}
	if got, _ := s.GetBid(ctx, b.ID); got.Status != marketplace.BidAccepted {
		t.Errorf("stored bid status = %s", got.Status)
	}
}

func testListFilters(t *testing.T, s marketplace.Store) {
	ctx := context.Background()
	client := uuid.NewString()
	worker := uuid.NewString()

	older := newJob(client, 0)
	newer := newJob(client, time.Hour)
	newer.Status = marketplace.JobAssigned
	newer.Workers = []string{worker}
	other := newJob(uuid.NewString(), 2*time.Hour)
	for _, j := range []*marketplace.Job{older, newer, other} {
		mustCreateJob(t, s, j)
	}

	mine, err := s.ListJobs(ctx, marketplace.JobFilter{ClientID: client})
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(mine) != 2 || mine[0].ID != newer.ID || mine[1].ID != older.ID {
		t.Errorf("client jobs out of order: %v", ids(mine))
	}

	assigned, err := s.ListJobs(ctx, marketplace.JobFilter{WorkerID: worker})
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(assigned) != 1 || assigned[0].ID != newer.ID {
		t.Errorf("worker jobs = %v", ids(assigned))
	}

	open, err := s.ListJobs(ctx, marketplace.JobFilter{Status: marketplace.JobOpen, Category: older.WorkCategory})
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(open) != 1 || open[0].ID != older.ID {
		t.Errorf("open jobs in category = %v", ids(open))
	}

	b1 := newBid(older.ID, worker, time.Minute)
	b2 := newBid(other.ID, worker, 2*time.Minute)
	for _, b := range []*marketplace.Bid{b1, b2} {
		if _, err := s.CreateBid(ctx, b, nil); err != nil {
			t.Fatalf("CreateBid: %v", err)
		}
	}

	byWorker, _ := s.ListBids(ctx, marketplace.BidFilter{WorkerID: worker})
	if len(byWorker) != 2 || byWorker[0].ID != b2.ID {
		t.Errorf("worker bids = %d, first %v", len(byWorker), byWorker)
	}
	incoming, _ := s.ListBids(ctx, marketplace.BidFilter{ClientID: client})
	if len(incoming) != 1 || incoming[0].ID != b1.ID {
		t.Errorf("incoming bids = %v", incoming)
	}
	onJob, _ := s.ListBids(ctx, marketplace.BidFilter{JobID: other.ID})
	if len(onJob) != 1 || onJob[0].ID != b2.ID {
		t.Errorf("job bids = %v", onJob)
	}

	if err := s.DeleteJob(ctx, other.ID); err != nil {
		t.Fatalf("DeleteJob: %v", err)
	}
	orphaned, _ := s.ListBids(ctx, marketplace.BidFilter{WorkerID: worker})
	if len(orphaned) != 2 {
		t.Errorf("bids on deleted jobs should survive, got %d", len(orphaned))
	}
}

func ids(jobs []*marketplace.Job) []string {
	out := make([]string, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, j.ID)
	}
	return out
}

func testUsers(t *testing.T, s marketplace.Store) {
	ctx := context.Background()
	u := user.User{ID: uuid.NewString(), Name: "Ada", Email: "ada@example.com", Role: user.RoleClient, CreatedAt: base}
	if err := s.PutUser(ctx, u); err != nil {
		t.Fatalf("PutUser: %v", err)
	}
	u.Name = "Ada L."
	if err := s.PutUser(ctx, u); err != nil {
		t.Fatalf("PutUser (update): %v", err)
	}

	got, err := s.GetUser(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if got.Name != "Ada L." || got.Role != user.RoleClient {
		t.Errorf("GetUser = %+v", got)
	}

	found, err := s.GetUsers(ctx, []string{u.ID, uuid.NewString()})
	if err != nil {
		t.Fatalf("GetUsers: %v", err)
	}
	if len(found) != 1 || found[u.ID].Name != "Ada L." {
		t.Errorf("GetUsers = %v", found)
	}
}

func testConcurrentUpdates(t *testing.T, s marketplace.Store) {
	ctx := context.Background()
	j := newJob(uuid.NewString(), 0)
	j.WorkersNeeded = 3
	mustCreateJob(t, s, j)

	const n = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker := uuid.NewString()
			_, err := s.UpdateJob(ctx, j.ID, func(job *marketplace.Job) error {
				if len(job.Workers) >= job.WorkersNeeded {
					return marketplace.NewError(marketplace.ErrConflict, "full")
				}
				job.Workers = append(job.Workers, worker)
				return nil
			})
			if err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	got, err := s.GetJob(ctx, j.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if len(got.Workers) != accepted {
		t.Errorf("workers = %d, successful updates = %d", len(got.Workers), accepted)
	}
	if len(got.Workers) > j.WorkersNeeded {
		t.Errorf("roster overfilled: %d > %d", len(got.Workers), j.WorkersNeeded)
	}
}
