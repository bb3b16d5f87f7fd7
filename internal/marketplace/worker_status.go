package marketplace

import "time"

// workerTransitions is the only set of moves an assigned worker may make.
var workerTransitions = map[string]string{
	JobAssigned:   JobInProgress,
	JobInProgress: JobCompleted,
}

// applyWorkerStatus moves the job one step along the worker path.
// notes, when non-nil, replaces the stored progress notes.
func applyWorkerStatus(job *Job, status string, notes *string, now time.Time) error {
	if next, ok := workerTransitions[job.Status]; !ok || next != status {
		return invalid("Cannot change status from %s to %s", job.Status, status)
	}
	job.Status = status
	stampWorkTimes(job, now)
	if notes != nil {
		job.ProgressNotes = *notes
	}
	job.UpdatedAt = now
	return nil
}
