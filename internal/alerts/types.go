package alerts

import "time"

// Task type constants
const (
	TaskBidCreated = "notify:bid_created"
	TaskBidDecided = "notify:bid_decided"
	TaskJobStatus  = "notify:job_status"
)

// Envelope is the rendered message handed to a Sender.
type Envelope struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// NotificationPayload is the task body. One task is enqueued per
// recipient.
type NotificationPayload struct {
	Event       string    `json:"event"`
	JobID       string    `json:"job_id"`
	JobTitle    string    `json:"job_title,omitempty"`
	BidID       string    `json:"bid_id,omitempty"`
	ActorID     string    `json:"actor_id"`
	RecipientID string    `json:"recipient_id"`
	Status      string    `json:"status,omitempty"`
	Amount      float64   `json:"amount,omitempty"`
	At          time.Time `json:"at"`
}
