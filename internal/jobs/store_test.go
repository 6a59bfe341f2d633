package jobs_test

import (
	"testing"

	"bindery/internal/engine"
	"bindery/internal/jobs"
)

func newJob(batchID string) jobs.Job {
	req := &engine.JobRequest{ScriptHref: "/scripts/dtbook-to-epub3", BatchID: batchID}
	return jobs.New(req, nil)
}

func TestStoreAddIsIdempotent(t *testing.T) {
	store := jobs.NewStore()
	job := newJob("")

	if !store.Add(job) {
		t.Fatal("first Add returned false")
	}
	if store.Add(job) {
		t.Fatal("second Add of the same id should be a no-op")
	}
	if got := len(store.List()); got != 1 {
		t.Fatalf("expected 1 job, got %d", got)
	}
}

func TestStoreUpdateUnknownIsNoop(t *testing.T) {
	store := jobs.NewStore()
	job := newJob("")
	if store.Update(job) {
		t.Fatal("Update of unknown id should return false")
	}
	if len(store.List()) != 0 {
		t.Fatal("Update of unknown id must not insert")
	}
}

func TestStoreUpdateReplacesWholesale(t *testing.T) {
	store := jobs.NewStore()
	job := newJob("")
	store.Add(job)

	job.State = jobs.StateSubmitted
	job.Data = &engine.JobData{ID: "job-1", Href: "/jobs/job-1", Status: engine.StatusRunning}
	if !store.Update(job) {
		t.Fatal("Update returned false for known id")
	}

	got, ok := store.Get(job.InternalID)
	if !ok {
		t.Fatal("job disappeared after update")
	}
	if got.State != jobs.StateSubmitted || got.Data == nil || got.Data.Status != engine.StatusRunning {
		t.Fatalf("update not applied: %#v", got)
	}
}

func TestRecordFailureForcesErrorStatus(t *testing.T) {
	store := jobs.NewStore()
	job := newJob("")
	job.State = jobs.StateSubmitted
	job.Data = &engine.JobData{ID: "job-1", Status: engine.StatusRunning}
	store.Add(job)

	reqErr := &engine.JobRequestError{Description: "renegotiation failed"}
	if !store.RecordFailure(job.InternalID, reqErr) {
		t.Fatal("RecordFailure returned false for known id")
	}

	got, _ := store.Get(job.InternalID)
	if got.RequestError == nil || got.RequestError.Description != "renegotiation failed" {
		t.Fatalf("request error not recorded: %#v", got.RequestError)
	}
	if got.Data == nil || got.Data.Status != engine.StatusError {
		t.Fatalf("engine status not forced to ERROR: %#v", got.Data)
	}
}

func TestRecordFailureWithoutDataKeepsJob(t *testing.T) {
	store := jobs.NewStore()
	job := newJob("")
	store.Add(job)

	store.RecordFailure(job.InternalID, &engine.JobRequestError{Description: "rejected"})
	got, ok := store.Get(job.InternalID)
	if !ok {
		t.Fatal("failed job must not be dropped")
	}
	if got.Data != nil {
		t.Fatalf("no engine data should appear: %#v", got.Data)
	}
	if got.RequestError == nil {
		t.Fatal("request error missing")
	}
}

func TestStoreNotifiesObservers(t *testing.T) {
	store := jobs.NewStore()
	var seen []string
	store.Subscribe(func(job jobs.Job) {
		seen = append(seen, job.InternalID)
	})

	job := newJob("")
	store.Add(job)
	store.Update(job)
	store.Remove(job.InternalID)

	if len(seen) != 3 {
		t.Fatalf("expected 3 notifications, got %d", len(seen))
	}
}

func TestStoreObserverMayReenterStore(t *testing.T) {
	store := jobs.NewStore()
	var listed int
	store.Subscribe(func(job jobs.Job) {
		// Observers run outside the store lock, so reading back is safe.
		listed = len(store.List())
	})

	store.Add(newJob(""))

	if listed != 1 {
		t.Fatalf("observer saw %d jobs, want 1", listed)
	}
}

func TestStoreRunningFilter(t *testing.T) {
	store := jobs.NewStore()
	running := newJob("")
	running.Data = &engine.JobData{ID: "a", Status: engine.StatusRunning}
	done := newJob("")
	done.Data = &engine.JobData{ID: "b", Status: engine.StatusSuccess}
	store.Add(running)
	store.Add(done)

	if got := store.Running(); len(got) != 1 || got[0].InternalID != running.InternalID {
		t.Fatalf("unexpected running set: %#v", got)
	}
	if got := store.NonRunning(); len(got) != 1 || got[0].InternalID != done.InternalID {
		t.Fatalf("unexpected non-running set: %#v", got)
	}
}
