package marketplace_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/workmatch/api/internal/clock"
	"github.com/workmatch/api/internal/marketplace"
	"github.com/workmatch/api/internal/store/memstore"
	"github.com/workmatch/api/internal/user"
)

type recorder struct {
	mu     sync.Mutex
	events []marketplace.Event
	err    error
}

func (r *recorder) Publish(_ context.Context, evt marketplace.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return r.err
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type fixture struct {
	svc    *marketplace.Service
	store  *memstore.Store
	clk    *clock.Fake
	events *recorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := memstore.New()
	clk := clock.NewFake(time.Date(2026, 2, 2, 10, 0, 0, 0, time.UTC))
	rec := &recorder{}
	svc := marketplace.NewService(st, rec, clk, slog.New(slog.NewTextHandler(io.Discard, nil)))
	_ = st.PutUser(context.Background(), user.User{ID: "client-1", Name: "Cora", Role: user.RoleClient})
	return &fixture{svc: svc, store: st, clk: clk, events: rec}
}

func (f *fixture) job(t *testing.T, needed int) *marketplace.JobView {
	t.Helper()
	v, err := f.svc.CreateJob(context.Background(), "client-1", marketplace.CreateJobInput{
		Title: "Garden clearance", Description: "Bag and remove", Location: "York",
		Budget: 200, WorkCategory: "gardening", WorkersNeeded: needed,
	})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	return v
}

func (f *fixture) bid(t *testing.T, jobID, worker string) *marketplace.Bid {
	t.Helper()
	b, err := f.svc.CreateBid(context.Background(), worker, marketplace.CreateBidInput{JobID: jobID, Amount: 90})
	if err != nil {
		t.Fatalf("CreateBid: %v", err)
	}
	return b
}

func TestAcceptFlowPublishesEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := f.job(t, 2)
	a := f.bid(t, job.ID, "worker-a")
	b := f.bid(t, job.ID, "worker-b")

	res, err := f.svc.UpdateBidStatus(ctx, "client-1", a.ID, marketplace.BidAccepted)
	if err != nil {
		t.Fatalf("accept a: %v", err)
	}
	if res.Job.Status != marketplace.JobOpen || res.Job.AssignedWorkersCount != 1 {
		t.Errorf("after a: %s/%d", res.Job.Status, res.Job.AssignedWorkersCount)
	}
	if res.Job.Client.Name != "Cora" {
		t.Errorf("client not resolved: %+v", res.Job.Client)
	}

	res, err = f.svc.UpdateBidStatus(ctx, "client-1", b.ID, marketplace.BidAccepted)
	if err != nil {
		t.Fatalf("accept b: %v", err)
	}
	if res.Job.Status != marketplace.JobAssigned || res.Job.AssignedWorkersCount != 2 {
		t.Errorf("after b: %s/%d", res.Job.Status, res.Job.AssignedWorkersCount)
	}

	want := []string{
		marketplace.EventBidCreated, marketplace.EventBidCreated,
		marketplace.EventBidAccepted,
		marketplace.EventBidAccepted, marketplace.EventJobAssigned,
	}
	if got := f.events.types(); fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("events = %v, want %v", got, want)
	}
	last := f.events.events[len(f.events.events)-1]
	if fmt.Sprint(last.Recipients) != "[worker-a worker-b]" {
		t.Errorf("job.assigned recipients = %v", last.Recipients)
	}
}

func TestPublishFailureDoesNotFailRequest(t *testing.T) {
	f := newFixture(t)
	f.events.err = errors.New("broker down")
	job := f.job(t, 1)
	b := f.bid(t, job.ID, "worker-a")
	if _, err := f.svc.UpdateBidStatus(context.Background(), "client-1", b.ID, marketplace.BidAccepted); err != nil {
		t.Fatalf("accept: %v", err)
	}
}

func TestConcurrentAcceptsNeverOverfill(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	const needed, bidders = 3, 10
	job := f.job(t, needed)

	bids := make([]*marketplace.Bid, 0, bidders)
	for i := 0; i < bidders; i++ {
		bids = append(bids, f.bid(t, job.ID, fmt.Sprintf("worker-%d", i)))
	}
	// A second bid from worker-0 races against its first.
	bids = append(bids, f.bid(t, job.ID, "worker-0"))

	var wg sync.WaitGroup
	errs := make([]error, len(bids))
	for i, b := range bids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = f.svc.UpdateBidStatus(ctx, "client-1", id, marketplace.BidAccepted)
		}(i, b.ID)
	}
	wg.Wait()

	accepted := 0
	for _, err := range errs {
		switch {
		case err == nil:
			accepted++
		case !errors.Is(err, marketplace.ErrConflict):
			t.Errorf("unexpected error: %v", err)
		}
	}

	stored, err := f.store.GetJob(ctx, job.ID)
	if err != nil {
		t.Fatal(err)
	}
	if accepted != needed || len(stored.Workers) != needed {
		t.Errorf("accepted %d, roster %d, want %d", accepted, len(stored.Workers), needed)
	}
	seen := map[string]bool{}
	for _, w := range stored.Workers {
		if seen[w] {
			t.Errorf("worker %s appears twice", w)
		}
		seen[w] = true
	}
	if stored.Status != marketplace.JobAssigned {
		t.Errorf("status = %s", stored.Status)
	}

	bidsAfter, _ := f.store.ListBids(ctx, marketplace.BidFilter{JobID: job.ID})
	acceptedBids := 0
	for _, b := range bidsAfter {
		if b.Status == marketplace.BidAccepted {
			acceptedBids++
		}
	}
	if acceptedBids != needed {
		t.Errorf("accepted bids = %d, want %d", acceptedBids, needed)
	}
}

func TestFailedAcceptLeavesBidPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := f.job(t, 1)
	first := f.bid(t, job.ID, "worker-a")
	late := f.bid(t, job.ID, "worker-b")

	if _, err := f.svc.UpdateBidStatus(ctx, "client-1", first.ID, marketplace.BidAccepted); err != nil {
		t.Fatal(err)
	}
	_, err := f.svc.UpdateBidStatus(ctx, "client-1", late.ID, marketplace.BidAccepted)
	if !errors.Is(err, marketplace.ErrConflict) {
		t.Fatalf("err = %v, want conflict (job full)", err)
	}
	if b, _ := f.store.GetBid(ctx, late.ID); b.Status != marketplace.BidPending {
		t.Errorf("late bid = %s, want Pending", b.Status)
	}

	// Rejecting is still allowed once the job is full.
	res, err := f.svc.UpdateBidStatus(ctx, "client-1", late.ID, marketplace.BidRejected)
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if res.Bid.Status != marketplace.BidRejected || res.Job.AssignedWorkersCount != 1 {
		t.Errorf("reject result = %+v / %d", res.Bid, res.Job.AssignedWorkersCount)
	}

	if _, err := f.svc.UpdateBidStatus(ctx, "client-1", late.ID, marketplace.BidAccepted); !errors.Is(err, marketplace.ErrConflict) {
		t.Errorf("re-deciding a rejected bid: %v", err)
	}
}

func TestCreateBidGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.CreateBid(ctx, "w", marketplace.CreateBidInput{JobID: "nope", Amount: 5}); !errors.Is(err, marketplace.ErrNotFound) {
		t.Errorf("missing job: %v", err)
	}
	if _, err := f.svc.CreateBid(ctx, "w", marketplace.CreateBidInput{Amount: 5}); !errors.Is(err, marketplace.ErrValidation) {
		t.Errorf("missing jobId: %v", err)
	}

	deadline := f.clk.Now().Add(time.Hour)
	v, err := f.svc.CreateJob(ctx, "client-1", marketplace.CreateJobInput{
		Title: "t", Description: "d", Location: "l", Budget: 10, WorkCategory: "c", WorkersNeeded: 1,
		ApplicationDeadline: &deadline,
	})
	if err != nil {
		t.Fatal(err)
	}
	f.bid(t, v.ID, "early")
	f.clk.Advance(2 * time.Hour)
	if _, err := f.svc.CreateBid(ctx, "late", marketplace.CreateBidInput{JobID: v.ID, Amount: 5}); !errors.Is(err, marketplace.ErrConflict) {
		t.Errorf("after deadline: %v", err)
	}

	stored, _ := f.store.GetJob(ctx, v.ID)
	if len(stored.Bids) != 1 {
		t.Errorf("job.bids = %v", stored.Bids)
	}
}

func TestCreateJobValidation(t *testing.T) {
	f := newFixture(t)
	past := f.clk.Now().Add(-time.Minute)
	tests := map[string]marketplace.CreateJobInput{
		"zero budget":   {Budget: 0, WorkersNeeded: 1},
		"no workers":    {Budget: 10, WorkersNeeded: 0},
		"past deadline": {Budget: 10, WorkersNeeded: 1, ApplicationDeadline: &past},
	}
	for name, in := range tests {
		if _, err := f.svc.CreateJob(context.Background(), "client-1", in); !errors.Is(err, marketplace.ErrValidation) {
			t.Errorf("%s: err = %v", name, err)
		}
	}
}

func TestMyJobsAndWatchers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := f.job(t, 1)
	b := f.bid(t, job.ID, "worker-a")
	if _, err := f.svc.UpdateBidStatus(ctx, "client-1", b.ID, marketplace.BidAccepted); err != nil {
		t.Fatal(err)
	}

	owned, err := f.svc.MyJobs(ctx, "client-1", user.RoleClient)
	if err != nil || len(owned) != 1 {
		t.Errorf("client jobs = %d, %v", len(owned), err)
	}
	assigned, err := f.svc.MyJobs(ctx, "worker-a", user.RoleWorker)
	if err != nil || len(assigned) != 1 {
		t.Errorf("worker jobs = %d, %v", len(assigned), err)
	}
	if _, err := f.svc.MyJobs(ctx, "x", "admin"); !errors.Is(err, marketplace.ErrForbidden) {
		t.Errorf("unknown role: %v", err)
	}

	for caller, ok := range map[string]bool{"client-1": true, "worker-a": true, "worker-b": false} {
		err := f.svc.CanWatch(ctx, caller, job.ID)
		if (err == nil) != ok {
			t.Errorf("CanWatch(%s) = %v", caller, err)
		}
	}
}

func TestDeleteJob(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := f.job(t, 1)
	if err := f.svc.DeleteJob(ctx, "client-2", job.ID); !errors.Is(err, marketplace.ErrForbidden) {
		t.Errorf("non-owner delete: %v", err)
	}
	if err := f.svc.DeleteJob(ctx, "client-1", job.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := f.svc.GetJob(ctx, job.ID); !errors.Is(err, marketplace.ErrNotFound) {
		t.Errorf("get after delete: %v", err)
	}
}

func TestWorkerStatusNotifiesClient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	job := f.job(t, 1)
	b := f.bid(t, job.ID, "worker-a")
	if _, err := f.svc.UpdateBidStatus(ctx, "client-1", b.ID, marketplace.BidAccepted); err != nil {
		t.Fatal(err)
	}

	v, err := f.svc.UpdateWorkerJobStatus(ctx, "worker-a", job.ID, marketplace.UpdateWorkerJobStatusInput{Status: marketplace.JobInProgress})
	if err != nil {
		t.Fatal(err)
	}
	if v.WorkStartedAt == nil || !v.WorkStartedAt.Equal(f.clk.Now()) {
		t.Errorf("workStartedAt = %v", v.WorkStartedAt)
	}
	last := f.events.events[len(f.events.events)-1]
	if last.Type != marketplace.EventJobStatusChanged || fmt.Sprint(last.Recipients) != "[client-1]" {
		t.Errorf("last event = %+v", last)
	}
}

func TestPublicProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_ = f.store.PutUser(ctx, user.User{ID: "worker-a", Name: "Ana", Role: user.RoleWorker})

	done := f.job(t, 1)
	f.job(t, 1)
	b := f.bid(t, done.ID, "worker-a")
	if _, err := f.svc.UpdateBidStatus(ctx, "client-1", b.ID, marketplace.BidAccepted); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.UpdateJobStatus(ctx, "client-1", done.ID, marketplace.JobCompleted); err != nil {
		t.Fatal(err)
	}

	client, err := f.svc.PublicProfile(ctx, "client-1")
	if err != nil {
		t.Fatal(err)
	}
	if client.Name != "Cora" || client.JobsPosted != 2 || client.JobsCompleted != 1 || client.JobsAssigned != 0 {
		t.Errorf("client profile = %+v", client)
	}

	worker, err := f.svc.PublicProfile(ctx, "worker-a")
	if err != nil {
		t.Fatal(err)
	}
	if worker.JobsAssigned != 1 || worker.JobsCompleted != 1 || worker.JobsPosted != 0 {
		t.Errorf("worker profile = %+v", worker)
	}

	if _, err := f.svc.PublicProfile(ctx, "nobody"); !errors.Is(err, marketplace.ErrNotFound) {
		t.Errorf("unknown user: %v", err)
	}
}

func TestAmountsBelowOneCentRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateJob(ctx, "client-1", marketplace.CreateJobInput{
		Title: "t", Description: "d", Location: "l", Budget: 0.004, WorkCategory: "c", WorkersNeeded: 1,
	})
	if !errors.Is(err, marketplace.ErrValidation) {
		t.Errorf("budget 0.004: err = %v, want validation", err)
	}

	job := f.job(t, 1)
	if _, err := f.svc.CreateBid(ctx, "worker-a", marketplace.CreateBidInput{JobID: job.ID, Amount: 0.004}); !errors.Is(err, marketplace.ErrValidation) {
		t.Errorf("amount 0.004: err = %v, want validation", err)
	}

	b, err := f.svc.CreateBid(ctx, "worker-a", marketplace.CreateBidInput{JobID: job.ID, Amount: 12.3456})
	if err != nil {
		t.Fatal(err)
	}
	stored, _ := f.store.GetBid(ctx, b.ID)
	if b.Amount != 12.35 || stored.Amount != 12.35 {
		t.Errorf("amount = %v (stored %v), want 12.35", b.Amount, stored.Amount)
	}
}
