package marketplace

import (
	"math"
	"time"

	"github.com/workmatch/api/internal/user"
)

// Job statuses. The string values are part of the public API.
const (
	JobOpen       = "Open"
	JobAssigned   = "Assigned"
	JobInProgress = "In Progress"
	JobCompleted  = "Completed"
	JobCancelled  = "Cancelled"
)

// Bid statuses.
const (
	BidPending  = "Pending"
	BidAccepted = "Accepted"
	BidRejected = "Rejected"
)

// Money is stored with two decimal places; anything below one cent is
// rejected rather than rounded to zero.
const minAmount = 0.01

func roundCents(v float64) float64 { return math.Round(v*100) / 100 }

// ValidJobStatus reports whether s is one of the five job statuses.
func ValidJobStatus(s string) bool {
	switch s {
	case JobOpen, JobAssigned, JobInProgress, JobCompleted, JobCancelled:
		return true
	default:
		return false
	}
}

// Job is a posted unit of work owned by a client.
type Job struct {
	ID                  string      `json:"id" bson:"_id"`
	ClientID            string      `json:"client" bson:"client"`
	Title               string      `json:"title" bson:"title"`
	Description         string      `json:"description" bson:"description"`
	Location            string      `json:"location" bson:"location"`
	Budget              float64     `json:"budget" bson:"budget"`
	WorkCategory        string      `json:"workCategory" bson:"workCategory"`
	WorkDuration        string      `json:"workDuration" bson:"workDuration"`
	WorkersNeeded       int         `json:"workersNeeded" bson:"workersNeeded"`
	Requirements        string      `json:"requirements,omitempty" bson:"requirements,omitempty"`
	ApplicationDeadline *time.Time  `json:"applicationDeadline,omitempty" bson:"applicationDeadline,omitempty"`
	Status              string      `json:"status" bson:"status"`
	Workers             []string    `json:"workers" bson:"workers"`
	WorkerBids          []WorkerBid `json:"workerBids" bson:"workerBids"`
	Bids                []string    `json:"bids" bson:"bids"`
	ProgressNotes       string      `json:"progressNotes,omitempty" bson:"progressNotes,omitempty"`
	WorkStartedAt       *time.Time  `json:"workStartedAt,omitempty" bson:"workStartedAt,omitempty"`
	WorkCompletedAt     *time.Time  `json:"workCompletedAt,omitempty" bson:"workCompletedAt,omitempty"`
	Version             int64       `json:"version" bson:"version"`
	CreatedAt           time.Time   `json:"createdAt" bson:"createdAt"`
	UpdatedAt           time.Time   `json:"updatedAt" bson:"updatedAt"`
}

// AssignedWorkersCount is derived from the roster; it is never stored.
func (j *Job) AssignedWorkersCount() int { return len(j.Workers) }

// HasWorker reports whether workerID is on the job's roster.
func (j *Job) HasWorker(workerID string) bool {
	for _, w := range j.Workers {
		if w == workerID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy. Roster slices are never nil in the copy.
func (j *Job) Clone() *Job {
	c := *j
	c.Workers = append([]string{}, j.Workers...)
	c.WorkerBids = append([]WorkerBid{}, j.WorkerBids...)
	c.Bids = append([]string{}, j.Bids...)
	if j.ApplicationDeadline != nil {
		t := *j.ApplicationDeadline
		c.ApplicationDeadline = &t
	}
	if j.WorkStartedAt != nil {
		t := *j.WorkStartedAt
		c.WorkStartedAt = &t
	}
	if j.WorkCompletedAt != nil {
		t := *j.WorkCompletedAt
		c.WorkCompletedAt = &t
	}
	return &c
}

// WorkerBid is the snapshot of an accepted bid kept on the job, so the
// accepted terms survive later edits to the bid record.
type WorkerBid struct {
	WorkerID   string    `json:"worker" bson:"worker"`
	BidID      string    `json:"bidId" bson:"bidId"`
	Amount     float64   `json:"amount" bson:"amount"`
	Message    string    `json:"message" bson:"message"`
	AcceptedAt time.Time `json:"acceptedAt" bson:"acceptedAt"`
}

// Bid is one worker's offer on one job.
type Bid struct {
	ID           string    `json:"id" bson:"_id"`
	JobID        string    `json:"job" bson:"job"`
	WorkerID     string    `json:"worker" bson:"worker"`
	Amount       float64   `json:"amount" bson:"amount"`
	Message      string    `json:"message" bson:"message"`
	WorkDuration string    `json:"workDuration,omitempty" bson:"workDuration,omitempty"`
	Status       string    `json:"status" bson:"status"`
	CreatedAt    time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt" bson:"updatedAt"`
}

// JobFilter narrows ListJobs. Empty fields match everything.
type JobFilter struct {
	Status   string
	Category string
	ClientID string
	WorkerID string
}

// BidFilter narrows ListBids. Exactly one of the fields is normally set.
type BidFilter struct {
	JobID    string
	WorkerID string
	ClientID string
}

// JobView is a job with its user references resolved for display.
type JobView struct {
	*Job
	AssignedWorkersCount int             `json:"assignedWorkersCount"`
	Client               user.Summary    `json:"client"`
	Workers              []user.Summary  `json:"workers"`
	WorkerBids           []WorkerBidView `json:"workerBids"`
}

// WorkerBidView is a WorkerBid with the worker resolved.
type WorkerBidView struct {
	WorkerBid
	Worker user.Summary `json:"worker"`
}

// BidView is a bid with its job and worker optionally resolved.
type BidView struct {
	*Bid
	Job    *JobSummary   `json:"job,omitempty"`
	Worker *user.Summary `json:"worker,omitempty"`
}

// JobSummary is the part of a job embedded in bid listings.
type JobSummary struct {
	ID            string  `json:"id"`
	Title         string  `json:"title"`
	Status        string  `json:"status"`
	Budget        float64 `json:"budget"`
	Location      string  `json:"location"`
	WorkersNeeded int     `json:"workersNeeded"`
	ClientID      string  `json:"client"`
}

func summarizeJob(j *Job) *JobSummary {
	return &JobSummary{
		ID:            j.ID,
		Title:         j.Title,
		Status:        j.Status,
		Budget:        j.Budget,
		Location:      j.Location,
		WorkersNeeded: j.WorkersNeeded,
		ClientID:      j.ClientID,
	}
}

// AcceptResult is returned when a client decides on a bid.
type AcceptResult struct {
	Bid *Bid     `json:"bid"`
	Job *JobView `json:"job"`
}
