package marketplace

import "time"

// assignWorker applies an accepted bid to the job: the worker joins the
// roster, the bid terms are snapshotted and the job becomes Assigned once
// the roster is full.
func assignWorker(job *Job, bid *Bid, now time.Time) error {
	if job.HasWorker(bid.WorkerID) {
		return conflict(msgWorkerAlreadyAssigned)
	}
	if job.Status != JobOpen {
		return conflict("Job is no longer accepting workers (status %s)", job.Status)
	}
	if job.AssignedWorkersCount() >= job.WorkersNeeded {
		return conflict("Job already has the %d workers it needs", job.WorkersNeeded)
	}

	job.Workers = append(job.Workers, bid.WorkerID)
	job.WorkerBids = append(job.WorkerBids, WorkerBid{
		WorkerID:   bid.WorkerID,
		BidID:      bid.ID,
		Amount:     bid.Amount,
		Message:    bid.Message,
		AcceptedAt: now,
	})
	if job.AssignedWorkersCount() >= job.WorkersNeeded {
		job.Status = JobAssigned
	}
	job.UpdatedAt = now
	return nil
}

// applyOwnerStatus writes any known status. The owner path does not
// consult a transition table.
func applyOwnerStatus(job *Job, status string, now time.Time) error {
	if !ValidJobStatus(status) {
		return invalid("Invalid job status %q", status)
	}
	job.Status = status
	stampWorkTimes(job, now)
	job.UpdatedAt = now
	return nil
}

// stampWorkTimes records the first entry into In Progress and Completed.
// Existing stamps are never overwritten, and a start is never recorded
// after a completion. Completing a job that never started stamps both.
func stampWorkTimes(job *Job, now time.Time) {
	switch job.Status {
	case JobInProgress:
		if job.WorkStartedAt == nil && job.WorkCompletedAt == nil {
			t := now
			job.WorkStartedAt = &t
		}
	case JobCompleted:
		if job.WorkCompletedAt == nil {
			t := now
			job.WorkCompletedAt = &t
			if job.WorkStartedAt == nil {
				s := now
				job.WorkStartedAt = &s
			}
		}
	}
}
