package marketplace

import (
	"context"

	"github.com/workmatch/api/internal/user"
)

// Store persists jobs, bids and the read-only user records.
//
// Missing records are reported with ErrJobNotFound, ErrBidNotFound or
// ErrUserNotFound. Errors returned by the callbacks passed to CreateBid,
// UpdateJob and DecideBid are returned unchanged and nothing is written.
type Store interface {
	CreateJob(ctx context.Context, job *Job) error
	GetJob(ctx context.Context, id string) (*Job, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*Job, error)
	DeleteJob(ctx context.Context, id string) error

	// UpdateJob loads the job, applies fn and writes the result in one
	// atomic step. Concurrent calls for the same job are serialized.
	// The stored version is incremented.
	UpdateJob(ctx context.Context, id string, fn func(job *Job) error) (*Job, error)

	// CreateBid inserts bid and records its id on the job atomically.
	// check runs against the current job before anything is written.
	CreateBid(ctx context.Context, bid *Bid, check func(job *Job) error) (*Job, error)
	GetBid(ctx context.Context, id string) (*Bid, error)
	ListBids(ctx context.Context, filter BidFilter) ([]*Bid, error)

	// DecideBid loads a bid and its job, applies fn to both and writes
	// both in one transaction. It is serialized with UpdateJob on the
	// same job.
	DecideBid(ctx context.Context, bidID string, fn func(bid *Bid, job *Job) error) (*Bid, *Job, error)

	GetUser(ctx context.Context, id string) (user.User, error)
	GetUsers(ctx context.Context, ids []string) (map[string]user.User, error)
	PutUser(ctx context.Context, u user.User) error

	Ping(ctx context.Context) error
	Close() error
}
