package engine_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"bindery/internal/engine"
	"bindery/internal/logging"
)

func newTestClient(t *testing.T, handler http.Handler) (*engine.Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := engine.NewClient(server.URL, server.Client(), 5*time.Second, logging.NewNop())
	return client, server
}

func TestClientAliveOfflineOnTransportFailure(t *testing.T) {
	client := engine.NewClient("http://127.0.0.1:1", nil, time.Second, logging.NewNop())
	alive, err := client.Alive(context.Background())
	if err != nil {
		t.Fatalf("Alive returned error for unreachable engine: %v", err)
	}
	if alive.Alive {
		t.Fatal("unreachable engine reported alive")
	}
}

func TestClientAliveOnline(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/alive" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`<alive localfs="true" authentication="false" version="1.14.21"/>`))
	}))
	alive, err := client.Alive(context.Background())
	if err != nil {
		t.Fatalf("Alive failed: %v", err)
	}
	if !alive.Alive || alive.Version != "1.14.21" {
		t.Fatalf("unexpected alive: %#v", alive)
	}
}

func TestClientCreateJobReturnsRequestError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/jobs" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`<jobRequestError><description>bad input</description></jobRequestError>`))
	}))

	req := engine.JobRequest{ScriptHref: "/scripts/dtbook-to-epub3"}
	job, reqErr, err := client.CreateJob(context.Background(), req)
	if err != nil {
		t.Fatalf("CreateJob failed: %v", err)
	}
	if job != nil {
		t.Fatalf("expected no job, got %#v", job)
	}
	if reqErr == nil || reqErr.Description != "bad input" {
		t.Fatalf("unexpected request error: %#v", reqErr)
	}
}

func TestClientCreateJobSuccess(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`<job id="job-9" href="/jobs/job-9" status="IDLE"/>`))
	}))

	req := engine.JobRequest{ScriptHref: "/scripts/dtbook-to-epub3"}
	job, reqErr, err := client.CreateJob(context.Background(), req)
	if err != nil {
		t.Fatalf("CreateJob failed: %v", err)
	}
	if reqErr != nil {
		t.Fatalf("unexpected request error: %#v", reqErr)
	}
	if job == nil || job.ID != "job-9" || job.Status != engine.StatusIdle {
		t.Fatalf("unexpected job: %#v", job)
	}
}

func TestClientSetPropertyUsesPath(t *testing.T) {
	var gotPath, gotMethod string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		w.WriteHeader(http.StatusOK)
	}))

	err := client.SetProperty(context.Background(), engine.Property{
		Name:  "org.daisy.pipeline.tts.azure.key",
		Value: "secret",
	})
	if err != nil {
		t.Fatalf("SetProperty failed: %v", err)
	}
	if gotMethod != http.MethodPut {
		t.Fatalf("expected PUT, got %s", gotMethod)
	}
	if gotPath != "/admin/properties/org.daisy.pipeline.tts.azure.key" {
		t.Fatalf("unexpected path: %s", gotPath)
	}
}

func TestClientDownloadWritesFile(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("epub bytes"))
	}))

	dest := filepath.Join(t.TempDir(), "nested", "book.epub")
	if err := client.Download(context.Background(), "/jobs/job-1/result/idx/book.epub", dest); err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read downloaded file: %v", err)
	}
	if string(data) != "epub bytes" {
		t.Fatalf("unexpected content: %q", data)
	}
}

func TestClientResolvesAbsoluteHrefs(t *testing.T) {
	var requests []string
	client, server := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.URL.Path)
		w.Write([]byte(`<job id="job-1" href="/jobs/job-1" status="RUNNING"/>`))
	}))

	if _, err := client.Job(context.Background(), server.URL+"/jobs/job-1"); err != nil {
		t.Fatalf("Job with absolute href failed: %v", err)
	}
	if _, err := client.Job(context.Background(), "jobs/job-1"); err != nil {
		t.Fatalf("Job with relative href failed: %v", err)
	}
	if len(requests) != 2 || requests[0] != "/jobs/job-1" || requests[1] != "/jobs/job-1" {
		t.Fatalf("unexpected request paths: %v", requests)
	}
}
