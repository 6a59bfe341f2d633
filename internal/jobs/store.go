package jobs

import (
	"sync"

	"bindery/internal/engine"
)

// Store holds the authoritative in-memory job collection. Every mutation
// replaces a job wholesale keyed by InternalID, so a reader never observes a
// partially written record. Two in-flight engine responses for the same job
// resolve last-write-wins; the engine is re-polled until consistent rather
// than merged optimistically.
type Store struct {
	mu        sync.RWMutex
	jobs      []Job
	observers []func(Job)
}

// NewStore creates an empty job store.
func NewStore() *Store {
	return &Store{}
}

// Subscribe registers a callback invoked with the affected job after every
// mutation. Callbacks run synchronously on the mutating goroutine.
func (s *Store) Subscribe(fn func(Job)) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.observers = append(s.observers, fn)
	s.mu.Unlock()
}

// Add inserts a job. Adding an InternalID that already exists is a no-op, so
// retried inserts stay idempotent.
func (s *Store) Add(job Job) bool {
	s.mu.Lock()
	if s.indexOf(job.InternalID) >= 0 {
		s.mu.Unlock()
		return false
	}
	s.jobs = append(s.jobs, job)
	s.mu.Unlock()
	s.notify(job)
	return true
}

// Update replaces the job matching InternalID. Updating an unknown id is a
// no-op: a response arriving for a job the user already removed is dropped.
func (s *Store) Update(job Job) bool {
	s.mu.Lock()
	i := s.indexOf(job.InternalID)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	s.jobs[i] = job
	s.mu.Unlock()
	s.notify(job)
	return true
}

// Run replaces only the request of an existing job, marking it ready to
// submit without touching engine-reported data.
func (s *Store) Run(job Job) bool {
	s.mu.Lock()
	i := s.indexOf(job.InternalID)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	s.jobs[i].Request = job.Request
	updated := s.jobs[i]
	s.mu.Unlock()
	s.notify(updated)
	return true
}

// Remove deletes the job with the given internal id.
func (s *Store) Remove(internalID string) bool {
	s.mu.Lock()
	i := s.indexOf(internalID)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	removed := s.jobs[i]
	s.jobs = append(s.jobs[:i], s.jobs[i+1:]...)
	s.mu.Unlock()
	s.notify(removed)
	return true
}

// RecordFailure attaches a submission failure to a job. When the engine had
// already produced a record, its status is forced to ERROR so a later-stage
// failure is visible; the job is never silently dropped.
func (s *Store) RecordFailure(internalID string, reqErr *engine.JobRequestError) bool {
	s.mu.Lock()
	i := s.indexOf(internalID)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	s.jobs[i].RequestError = reqErr
	if s.jobs[i].Data != nil {
		data := *s.jobs[i].Data
		data.Status = engine.StatusError
		s.jobs[i].Data = &data
	}
	updated := s.jobs[i]
	s.mu.Unlock()
	s.notify(updated)
	return true
}

// Get returns the job with the given internal id.
func (s *Store) Get(internalID string) (Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexOf(internalID); i >= 0 {
		return s.jobs[i], true
	}
	return Job{}, false
}

// List returns a snapshot of all jobs in insertion order.
func (s *Store) List() []Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Job(nil), s.jobs...)
}

// Running returns the jobs the engine is currently executing.
func (s *Store) Running() []Job {
	return s.filter(func(j Job) bool { return j.Running() })
}

// NonRunning returns the complement of Running.
func (s *Store) NonRunning() []Job {
	return s.filter(func(j Job) bool { return !j.Running() })
}

// InBatch returns all jobs sharing the given batch id.
func (s *Store) InBatch(batchID string) []Job {
	if batchID == "" {
		return nil
	}
	return s.filter(func(j Job) bool { return j.BatchID() == batchID })
}

func (s *Store) filter(keep func(Job) bool) []Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Job
	for _, job := range s.jobs {
		if keep(job) {
			out = append(out, job)
		}
	}
	return out
}

// indexOf requires the caller to hold the lock.
func (s *Store) indexOf(internalID string) int {
	for i, job := range s.jobs {
		if job.InternalID == internalID {
			return i
		}
	}
	return -1
}

func (s *Store) notify(job Job) {
	s.mu.RLock()
	observers := make([]func(Job), len(s.observers))
	copy(observers, s.observers)
	s.mu.RUnlock()
	for _, fn := range observers {
		fn(job)
	}
}
