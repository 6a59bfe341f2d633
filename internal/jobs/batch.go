package jobs

// Batch semantics are computed on read over the jobs sharing a batch id, so
// there is no batch object to go stale.

// JobsInBatch returns every job whose batch id matches the primary's,
// including the primary itself. A primary without a batch id has no batch.
func JobsInBatch(all []Job, primary Job) []Job {
	batchID := primary.BatchID()
	if batchID == "" {
		return nil
	}
	var members []Job
	for _, job := range all {
		if job.BatchID() == batchID {
			members = append(members, job)
		}
	}
	return members
}

// CompletedCountInBatch counts batch members the engine has finished,
// successfully or not.
func CompletedCountInBatch(all []Job, primary Job) int {
	count := 0
	for _, job := range JobsInBatch(all, primary) {
		if job.Done() {
			count++
		}
	}
	return count
}

// AllJobsInBatchDone reports whether every batch member reached a terminal
// engine status. An empty batch is vacuously not done.
func AllJobsInBatchDone(all []Job, primary Job) bool {
	members := JobsInBatch(all, primary)
	if len(members) == 0 {
		return false
	}
	for _, job := range members {
		if !job.Done() {
			return false
		}
	}
	return true
}

// IdleCountInBatch counts batch members still eligible for cancellation,
// meaning they have not been submitted yet.
func IdleCountInBatch(all []Job, primary Job) int {
	count := 0
	for _, job := range JobsInBatch(all, primary) {
		if job.State == StateNew {
			count++
		}
	}
	return count
}
