// Package memstore is an in-process marketplace.Store. It backs the test
// suites and `--store=memory` development runs; nothing survives a restart.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/workmatch/api/internal/marketplace"
	"github.com/workmatch/api/internal/user"
)

// Store keeps every record behind one mutex, so each call observes and
// produces a consistent snapshot.
type Store struct {
	mu    sync.Mutex
	jobs  map[string]*marketplace.Job
	bids  map[string]*marketplace.Bid
	users map[string]user.User
}

var _ marketplace.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		jobs:  make(map[string]*marketplace.Job),
		bids:  make(map[string]*marketplace.Bid),
		users: make(map[string]user.User),
	}
}

func (s *Store) CreateJob(_ context.Context, job *marketplace.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job.Clone()
	return nil
}

func (s *Store) GetJob(_ context.Context, id string) (*marketplace.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, marketplace.ErrJobNotFound
	}
	return j.Clone(), nil
}

func (s *Store) ListJobs(_ context.Context, f marketplace.JobFilter) ([]*marketplace.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*marketplace.Job, 0)
	for _, j := range s.jobs {
		if f.Status != "" && j.Status != f.Status {
			continue
		}
		if f.Category != "" && j.WorkCategory != f.Category {
			continue
		}
		if f.ClientID != "" && j.ClientID != f.ClientID {
			continue
		}
		if f.WorkerID != "" && !j.HasWorker(f.WorkerID) {
			continue
		}
		out = append(out, j.Clone())
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].CreatedAt.Equal(out[b].CreatedAt) {
			return out[a].ID < out[b].ID
		}
		return out[a].CreatedAt.After(out[b].CreatedAt)
	})
	return out, nil
}

func (s *Store) DeleteJob(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[id]; !ok {
		return marketplace.ErrJobNotFound
	}
	delete(s.jobs, id)
	return nil
}

func (s *Store) UpdateJob(_ context.Context, id string, fn func(*marketplace.Job) error) (*marketplace.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.jobs[id]
	if !ok {
		return nil, marketplace.ErrJobNotFound
	}
	next := cur.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	next.Version = cur.Version + 1
	s.jobs[id] = next
	return next.Clone(), nil
}

func (s *Store) CreateBid(_ context.Context, bid *marketplace.Bid, check func(*marketplace.Job) error) (*marketplace.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.jobs[bid.JobID]
	if !ok {
		return nil, marketplace.ErrJobNotFound
	}
	if check != nil {
		if err := check(cur.Clone()); err != nil {
			return nil, err
		}
	}
	b := *bid
	s.bids[bid.ID] = &b

	next := cur.Clone()
	next.Bids = append(next.Bids, bid.ID)
	next.Version = cur.Version + 1
	s.jobs[next.ID] = next
	return next.Clone(), nil
}

func (s *Store) GetBid(_ context.Context, id string) (*marketplace.Bid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bids[id]
	if !ok {
		return nil, marketplace.ErrBidNotFound
	}
	c := *b
	return &c, nil
}

func (s *Store) ListBids(_ context.Context, f marketplace.BidFilter) ([]*marketplace.Bid, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*marketplace.Bid, 0)
	for _, b := range s.bids {
		if f.JobID != "" && b.JobID != f.JobID {
			continue
		}
		if f.WorkerID != "" && b.WorkerID != f.WorkerID {
			continue
		}
		if f.ClientID != "" {
			j, ok := s.jobs[b.JobID]
			if !ok || j.ClientID != f.ClientID {
				continue
			}
		}
		c := *b
		out = append(out, &c)
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].CreatedAt.Equal(out[b].CreatedAt) {
			return out[a].ID < out[b].ID
		}
		return out[a].CreatedAt.After(out[b].CreatedAt)
	})
	return out, nil
}

func (s *Store) DecideBid(_ context.Context, bidID string, fn func(*marketplace.Bid, *marketplace.Job) error) (*marketplace.Bid, *marketplace.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bids[bidID]
	if !ok {
		return nil, nil, marketplace.ErrBidNotFound
	}
	cur, ok := s.jobs[b.JobID]
	if !ok {
		return nil, nil, marketplace.ErrJobNotFound
	}

	bid := *b
	job := cur.Clone()
	if err := fn(&bid, job); err != nil {
		return nil, nil, err
	}
	job.Version = cur.Version + 1
	storedBid := bid
	s.bids[bidID] = &storedBid
	s.jobs[job.ID] = job
	return &bid, job.Clone(), nil
}

func (s *Store) GetUser(_ context.Context, id string) (user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return user.User{}, marketplace.ErrUserNotFound
	}
	return u, nil
}

func (s *Store) GetUsers(_ context.Context, ids []string) (map[string]user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]user.User, len(ids))
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			out[id] = u
		}
	}
	return out, nil
}

func (s *Store) PutUser(_ context.Context, u user.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
	return nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }
