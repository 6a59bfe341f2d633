package jobs

import (
	"github.com/google/uuid"

	"bindery/internal/engine"
)

// State tracks whether the engine has accepted a job. A job starts New and
// becomes Submitted once the engine assigned it an id; it never returns to
// New. Ended marks a terminal job the user has closed locally.
type State string

const (
	StateNew       State = "NEW"
	StateSubmitted State = "SUBMITTED"
	StateEnded     State = "ENDED"
)

// Job is one user-initiated conversion task tracked locally. Data is set
// exactly when the engine has ever acknowledged the job; RequestError records
// a submission that failed before acknowledgment.
type Job struct {
	InternalID      string
	State           State
	Request         *engine.JobRequest
	Data            *engine.JobData
	RequestError    *engine.JobRequestError
	Script          *engine.Script
	PrimaryForBatch bool
	LinkedTo        string
	Invisible       bool
}

// New creates a New-state job with a fresh internal id.
func New(req *engine.JobRequest, script *engine.Script) Job {
	return Job{
		InternalID: uuid.NewString(),
		State:      StateNew,
		Request:    req,
		Script:     script,
	}
}

// BatchID returns the job's batch identifier, empty when the job is not part
// of a batch.
func (j Job) BatchID() string {
	if j.Request == nil {
		return ""
	}
	return j.Request.BatchID
}

// Done reports whether the engine finished the job, successfully or not.
func (j Job) Done() bool {
	return j.Data != nil && j.Data.Status.Terminal()
}

// Running reports whether the engine is currently executing the job.
func (j Job) Running() bool {
	return j.Data != nil && j.Data.Status == engine.StatusRunning
}
