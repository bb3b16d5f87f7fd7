// Package mongostore is the MongoDB marketplace.Store. A job document
// embeds its roster; multi-document writes run inside a session
// transaction and guard the job with its version field, so a deployment
// needs a replica set.
package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/workmatch/api/internal/marketplace"
	"github.com/workmatch/api/internal/user"
)

type Store struct {
	client *mongo.Client
	jobs   *mongo.Collection
	bids   *mongo.Collection
	users  *mongo.Collection
}

var _ marketplace.Store = (*Store)(nil)

var errStaleJob = marketplace.NewError(marketplace.ErrConflict, "Job was modified concurrently, retry the request")

func New(client *mongo.Client, database string) *Store {
	db := client.Database(database)
	return &Store{
		client: client,
		jobs:   db.Collection("jobs"),
		bids:   db.Collection("bids"),
		users:  db.Collection("users"),
	}
}

// EnsureIndexes creates the secondary indexes the list queries use.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	if _, err := s.jobs.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "client", Value: 1}}},
		{Keys: bson.D{{Key: "workers", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("job indexes: %w", err)
	}
	if _, err := s.bids.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "job", Value: 1}}},
		{Keys: bson.D{{Key: "worker", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("bid indexes: %w", err)
	}
	return nil
}

func normalize(j *marketplace.Job) *marketplace.Job {
	if j.Workers == nil {
		j.Workers = []string{}
	}
	if j.WorkerBids == nil {
		j.WorkerBids = []marketplace.WorkerBid{}
	}
	if j.Bids == nil {
		j.Bids = []string{}
	}
	return j
}

func newestFirst() *options.FindOptions {
	return options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: 1}})
}

func (s *Store) CreateJob(ctx context.Context, job *marketplace.Job) error {
	if _, err := s.jobs.InsertOne(ctx, normalize(job.Clone())); err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func (s *Store) GetJob(ctx context.Context, id string) (*marketplace.Job, error) {
	var job marketplace.Job
	if err := s.jobs.FindOne(ctx, bson.M{"_id": id}).Decode(&job); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, marketplace.ErrJobNotFound
		}
		return nil, fmt.Errorf("fetch job: %w", err)
	}
	return normalize(&job), nil
}

func (s *Store) ListJobs(ctx context.Context, f marketplace.JobFilter) ([]*marketplace.Job, error) {
	filter := bson.M{}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.Category != "" {
		filter["workCategory"] = f.Category
	}
	if f.ClientID != "" {
		filter["client"] = f.ClientID
	}
	if f.WorkerID != "" {
		filter["workers"] = f.WorkerID
	}

	cur, err := s.jobs.Find(ctx, filter, newestFirst())
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	var jobs []*marketplace.Job
	if err := cur.All(ctx, &jobs); err != nil {
		return nil, fmt.Errorf("decode jobs: %w", err)
	}
	out := make([]*marketplace.Job, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, normalize(j))
	}
	return out, nil
}

func (s *Store) DeleteJob(ctx context.Context, id string) error {
	res, err := s.jobs.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	if res.DeletedCount == 0 {
		return marketplace.ErrJobNotFound
	}
	return nil
}

// replaceJob writes job back only if nobody else bumped its version since
// it was read.
func (s *Store) replaceJob(ctx context.Context, job *marketplace.Job) error {
	prev := job.Version
	job.Version = prev + 1
	res, err := s.jobs.ReplaceOne(ctx, bson.M{"_id": job.ID, "version": prev}, job)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if res.MatchedCount == 0 {
		return errStaleJob
	}
	return nil
}

// inTx runs fn inside a session transaction. WithTransaction retries fn on
// transient errors, so fn must reload whatever it reads.
func (s *Store) inTx(ctx context.Context, fn func(sc mongo.SessionContext) error) error {
	session, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

func (s *Store) UpdateJob(ctx context.Context, id string, fn func(*marketplace.Job) error) (*marketplace.Job, error) {
	var out *marketplace.Job
	err := s.inTx(ctx, func(sc mongo.SessionContext) error {
		job, err := s.GetJob(sc, id)
		if err != nil {
			return err
		}
		if err := fn(job); err != nil {
			return err
		}
		if err := s.replaceJob(sc, job); err != nil {
			return err
		}
		out = job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) CreateBid(ctx context.Context, bid *marketplace.Bid, check func(*marketplace.Job) error) (*marketplace.Job, error) {
	var out *marketplace.Job
	err := s.inTx(ctx, func(sc mongo.SessionContext) error {
		job, err := s.GetJob(sc, bid.JobID)
		if err != nil {
			return err
		}
		if check != nil {
			if err := check(job.Clone()); err != nil {
				return err
			}
		}
		if _, err := s.bids.InsertOne(sc, bid); err != nil {
			return fmt.Errorf("insert bid: %w", err)
		}
		job.Bids = append(job.Bids, bid.ID)
		if err := s.replaceJob(sc, job); err != nil {
			return err
		}
		out = job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Store) GetBid(ctx context.Context, id string) (*marketplace.Bid, error) {
	var bid marketplace.Bid
	if err := s.bids.FindOne(ctx, bson.M{"_id": id}).Decode(&bid); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, marketplace.ErrBidNotFound
		}
		return nil, fmt.Errorf("fetch bid: %w", err)
	}
	return &bid, nil
}

func (s *Store) ListBids(ctx context.Context, f marketplace.BidFilter) ([]*marketplace.Bid, error) {
	filter := bson.M{}
	if f.JobID != "" {
		filter["job"] = f.JobID
	}
	if f.WorkerID != "" {
		filter["worker"] = f.WorkerID
	}
	if f.ClientID != "" {
		ids, err := s.jobIDsOwnedBy(ctx, f.ClientID)
		if err != nil {
			return nil, err
		}
		if len(ids) == 0 {
			return []*marketplace.Bid{}, nil
		}
		if f.JobID == "" {
			filter["job"] = bson.M{"$in": ids}
		} else {
			filter["$and"] = bson.A{bson.M{"job": bson.M{"$in": ids}}}
		}
	}

	cur, err := s.bids.Find(ctx, filter, newestFirst())
	if err != nil {
		return nil, fmt.Errorf("list bids: %w", err)
	}
	bids := make([]*marketplace.Bid, 0)
	if err := cur.All(ctx, &bids); err != nil {
		return nil, fmt.Errorf("decode bids: %w", err)
	}
	return bids, nil
}

func (s *Store) jobIDsOwnedBy(ctx context.Context, clientID string) ([]string, error) {
	cur, err := s.jobs.Find(ctx, bson.M{"client": clientID},
		options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, fmt.Errorf("list client jobs: %w", err)
	}
	var docs []struct {
		ID string `bson:"_id"`
	}
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	return ids, nil
}

func (s *Store) DecideBid(ctx context.Context, bidID string, fn func(*marketplace.Bid, *marketplace.Job) error) (*marketplace.Bid, *marketplace.Job, error) {
	var (
		outBid *marketplace.Bid
		outJob *marketplace.Job
	)
	err := s.inTx(ctx, func(sc mongo.SessionContext) error {
		bid, err := s.GetBid(sc, bidID)
		if err != nil {
			return err
		}
		job, err := s.GetJob(sc, bid.JobID)
		if err != nil {
			return err
		}
		if err := fn(bid, job); err != nil {
			return err
		}

		if _, err := s.bids.UpdateOne(sc, bson.M{"_id": bid.ID}, bson.M{
			"$set": bson.M{"status": bid.Status, "updatedAt": bid.UpdatedAt},
		}); err != nil {
			return fmt.Errorf("update bid: %w", err)
		}
		if err := s.replaceJob(sc, job); err != nil {
			return err
		}
		outBid, outJob = bid, job
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return outBid, outJob, nil
}

func (s *Store) GetUser(ctx context.Context, id string) (user.User, error) {
	var u user.User
	if err := s.users.FindOne(ctx, bson.M{"_id": id}).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return user.User{}, marketplace.ErrUserNotFound
		}
		return user.User{}, fmt.Errorf("fetch user: %w", err)
	}
	return u, nil
}

func (s *Store) GetUsers(ctx context.Context, ids []string) (map[string]user.User, error) {
	out := make(map[string]user.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	cur, err := s.users.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("fetch users: %w", err)
	}
	var users []user.User
	if err := cur.All(ctx, &users); err != nil {
		return nil, err
	}
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}

func (s *Store) PutUser(ctx context.Context, u user.User) error {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	_, err := s.users.UpdateOne(ctx, bson.M{"_id": u.ID}, bson.M{
		"$set":         bson.M{"name": u.Name, "email": u.Email, "role": u.Role},
		"$setOnInsert": bson.M{"createdAt": u.CreatedAt},
	}, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}
