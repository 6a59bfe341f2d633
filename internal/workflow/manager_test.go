package workflow

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"bindery/internal/engine"
	"bindery/internal/jobs"
	"bindery/internal/logging"
	"bindery/internal/settings"
	"bindery/internal/testsupport"
	"bindery/internal/tts"
)

// recordingNotifier captures notification calls for assertions.
type recordingNotifier struct {
	mu             sync.Mutex
	completed      []string
	failed         []string
	batches        []string
	engineOffline  int
	testTriggered  int
}

func (n *recordingNotifier) NotifyJobCompleted(_ context.Context, nicename string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.completed = append(n.completed, nicename)
	return nil
}

func (n *recordingNotifier) NotifyJobFailed(_ context.Context, nicename, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failed = append(n.failed, nicename)
	return nil
}

func (n *recordingNotifier) NotifyBatchCompleted(_ context.Context, nicename string, _, _ int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.batches = append(n.batches, nicename)
	return nil
}

func (n *recordingNotifier) NotifyEngineOffline(context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.engineOffline++
	return nil
}

func (n *recordingNotifier) TestNotification(context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.testTriggered++
	return nil
}

// fakeEngine is a minimal conversion engine webservice for manager tests.
type fakeEngine struct {
	mu         sync.Mutex
	mux        *http.ServeMux
	server     *httptest.Server
	alive      bool
	jobDocs    map[string]string
	created    int
	rejectNext bool
	properties map[string]string
}

func newFakeEngine(t *testing.T) *fakeEngine {
	t.Helper()
	f := &fakeEngine{
		mux:        http.NewServeMux(),
		alive:      true,
		jobDocs:    make(map[string]string),
		properties: make(map[string]string),
	}
	f.mux.HandleFunc("GET /ws/alive", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		up := f.alive
		f.mu.Unlock()
		if !up {
			return
		}
		w.Write([]byte(`<alive xmlns="http://www.daisy.org/ns/pipeline/data" localfs="true" authentication="false" version="1.14.21"/>`))
	})
	f.mux.HandleFunc("GET /ws/scripts", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`<scripts xmlns="http://www.daisy.org/ns/pipeline/data">
  <script id="dtbook-to-epub3" href="/scripts/dtbook-to-epub3">
    <nicename>DTBook to EPUB 3</nicename>
  </script>
</scripts>`))
	})
	f.mux.HandleFunc("POST /ws/jobs", func(w http.ResponseWriter, _ *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.rejectNext {
			f.rejectNext = false
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`<jobRequestError xmlns="http://www.daisy.org/ns/pipeline/data">
  <description>input document is not valid DTBook</description>
</jobRequestError>`))
			return
		}
		f.created++
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`<job xmlns="http://www.daisy.org/ns/pipeline/data" id="eng-1" href="/jobs/eng-1" status="IDLE"><nicename>My Book</nicename></job>`))
	})
	f.mux.HandleFunc("GET /ws/jobs/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		doc, ok := f.jobDocs[r.PathValue("id")]
		f.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(doc))
	})
	f.mux.HandleFunc("DELETE /ws/jobs/{id}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		delete(f.jobDocs, r.PathValue("id"))
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	f.mux.HandleFunc("PUT /ws/admin/properties/{name}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.properties[r.PathValue("name")] = ""
		f.mu.Unlock()
		w.WriteHeader(http.StatusOK)
	})
	f.mux.HandleFunc("POST /ws/voices", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`<voices xmlns="http://www.daisy.org/ns/pipeline/data">
  <voice engine="azure" name="en-US-Jenny" lang="en-US" gender="female"/>
</voices>`))
	})
	f.mux.HandleFunc("GET /ws/tts-engines", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`<tts-engines xmlns="http://www.daisy.org/ns/pipeline/data">
  <tts-engine name="azure" nicename="Azure Cognitive Services" status="available" message="Connected" features="marks ssml"/>
</tts-engines>`))
	})
	f.mux.HandleFunc("POST /ws/stylesheet-parameters", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`<parameters xmlns="http://www.daisy.org/ns/pipeline/data">
  <parameter name="font-size" type="string" default="100%" required="false"/>
  <parameter name="stylesheet" type="string" default="ignored" required="false"/>
</parameters>`))
	})
	f.mux.HandleFunc("GET /ws/results/{id}/{name}/{file}", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("epub bytes for " + r.PathValue("file")))
	})
	f.server = httptest.NewServer(f.mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeEngine) setAlive(up bool) {
	f.mu.Lock()
	f.alive = up
	f.mu.Unlock()
}

func (f *fakeEngine) setJobDoc(id, doc string) {
	f.mu.Lock()
	f.jobDocs[id] = doc
	f.mu.Unlock()
}

type managerFixture struct {
	m        *Manager
	engine   *fakeEngine
	notifier *recordingNotifier
	settings *settings.Store
}

func newManagerFixture(t *testing.T) *managerFixture {
	t.Helper()
	fake := newFakeEngine(t)
	cfg := testsupport.NewConfig(t, testsupport.WithEngineURL(fake.server.URL+"/ws"))
	client := engine.NewClient(fake.server.URL+"/ws", fake.server.Client(), 0, logging.NewNop())
	store := jobs.NewStore()
	settingsStore := testsupport.MustOpenSettings(t, cfg)
	historyStore := testsupport.MustOpenHistory(t, cfg)
	notifier := &recordingNotifier{}
	m := NewManagerWithNotifier(cfg, client, store, settingsStore, tts.NewManager(logging.NewNop()), historyStore, notifier, logging.NewNop())
	return &managerFixture{m: m, engine: fake, notifier: notifier, settings: settingsStore}
}

func (f *managerFixture) markEngineUp() {
	f.m.mu.Lock()
	f.m.engineUp = true
	f.m.everUp = true
	f.m.mu.Unlock()
}

func newRequest(batchID string) *engine.JobRequest {
	return &engine.JobRequest{
		ScriptHref: "/scripts/dtbook-to-epub3",
		Nicename:   "My Book",
		BatchID:    batchID,
		Inputs:     []engine.JobRequestInput{{Name: "source", Values: []string{"book.xml"}}},
	}
}

func TestSubmitJobSuccess(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	job, err := f.m.CreateJob(ctx, newRequest(""))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	job, err = f.m.SubmitJob(ctx, job.InternalID)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if job.State != jobs.StateSubmitted {
		t.Fatalf("state = %s", job.State)
	}
	if job.Data == nil || job.Data.ID != "eng-1" {
		t.Fatalf("engine data = %+v", job.Data)
	}

	rec, err := f.m.history.Get(ctx, job.InternalID)
	if err != nil || rec == nil {
		t.Fatalf("history record missing: %v", err)
	}
	if rec.EngineJobID != "eng-1" || rec.Nicename != "My Book" {
		t.Fatalf("unexpected history record: %+v", rec)
	}
}

func TestSubmitJobEngineRejection(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()
	f.engine.mu.Lock()
	f.engine.rejectNext = true
	f.engine.mu.Unlock()

	job, _ := f.m.CreateJob(ctx, newRequest(""))
	job, err := f.m.SubmitJob(ctx, job.InternalID)
	if err != nil {
		t.Fatalf("rejection must settle into the record, got error %v", err)
	}
	if job.RequestError == nil || !strings.Contains(job.RequestError.Description, "not valid DTBook") {
		t.Fatalf("request error = %+v", job.RequestError)
	}
	if job.State != jobs.StateNew {
		t.Fatalf("rejected job must stay new, state = %s", job.State)
	}

	rec, err := f.m.history.Get(ctx, job.InternalID)
	if err != nil || rec == nil {
		t.Fatalf("history record missing: %v", err)
	}
	if rec.Status != "ERROR" {
		t.Fatalf("history status = %q", rec.Status)
	}
}

func TestSubmitJobTransportFailure(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	job, _ := f.m.CreateJob(ctx, newRequest(""))
	f.engine.server.Close()

	job, err := f.m.SubmitJob(ctx, job.InternalID)
	if err != nil {
		t.Fatalf("transport failure must settle into the record, got error %v", err)
	}
	if job.RequestError == nil || job.RequestError.Description == "" {
		t.Fatalf("request error = %+v", job.RequestError)
	}
}

func TestSubmitJobTwiceFails(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	job, _ := f.m.CreateJob(ctx, newRequest(""))
	if _, err := f.m.SubmitJob(ctx, job.InternalID); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if _, err := f.m.SubmitJob(ctx, job.InternalID); err == nil {
		t.Fatal("second submit must fail")
	}
}

func TestCreateJobMarksBatchPrimary(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	first, _ := f.m.CreateJob(ctx, newRequest("batch-1"))
	second, _ := f.m.CreateJob(ctx, newRequest("batch-1"))

	if !first.PrimaryForBatch {
		t.Fatal("first batch job must be primary")
	}
	if second.PrimaryForBatch {
		t.Fatal("subsequent batch jobs must not be primary")
	}
}

func TestCancelBatchRemovesIdleMembers(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	primary, _ := f.m.CreateJob(ctx, newRequest("batch-1"))
	f.m.CreateJob(ctx, newRequest("batch-1"))
	submitted, _ := f.m.CreateJob(ctx, newRequest("batch-1"))
	if _, err := f.m.SubmitJob(ctx, submitted.InternalID); err != nil {
		t.Fatalf("submit: %v", err)
	}

	if err := f.m.CancelJob(primary.InternalID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	remaining := f.m.store.List()
	if len(remaining) != 1 || remaining[0].InternalID != submitted.InternalID {
		t.Fatalf("only the submitted member should remain, got %d jobs", len(remaining))
	}
}

func TestCloseJob(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	fresh, _ := f.m.CreateJob(ctx, newRequest(""))
	if err := f.m.CloseJob(fresh.InternalID); err != nil {
		t.Fatalf("close new job: %v", err)
	}
	if _, ok := f.m.store.Get(fresh.InternalID); ok {
		t.Fatal("closing an unsubmitted job must remove it")
	}

	finished, _ := f.m.CreateJob(ctx, newRequest(""))
	finished, _ = f.m.SubmitJob(ctx, finished.InternalID)
	finished.Data.Status = engine.StatusSuccess
	f.m.store.Update(finished)

	if err := f.m.CloseJob(finished.InternalID); err != nil {
		t.Fatalf("close finished job: %v", err)
	}
	got, ok := f.m.store.Get(finished.InternalID)
	if !ok {
		t.Fatal("closed acknowledged job must be kept")
	}
	if got.State != jobs.StateEnded || !got.Invisible {
		t.Fatalf("expected ended and hidden, got %+v", got)
	}
}

func TestDeleteJobRemovesFromEngineAndStore(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()
	f.markEngineUp()

	job, _ := f.m.CreateJob(ctx, newRequest(""))
	job, _ = f.m.SubmitJob(ctx, job.InternalID)
	job.Data.Status = engine.StatusSuccess
	f.m.store.Update(job)

	if err := f.m.DeleteJob(ctx, job.InternalID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := f.m.store.Get(job.InternalID); ok {
		t.Fatal("job must leave the store")
	}
}

func TestDeleteJobRefusedWhileRunning(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()
	f.markEngineUp()

	job, _ := f.m.CreateJob(ctx, newRequest(""))
	job, _ = f.m.SubmitJob(ctx, job.InternalID)
	job.Data.Status = engine.StatusRunning
	f.m.store.Update(job)

	if err := f.m.DeleteJob(ctx, job.InternalID); err == nil {
		t.Fatal("running job must not be deletable")
	}
}

func TestNegotiateStylesheetParameters(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	req := newRequest("")
	req.Options = []engine.JobRequestOption{
		{Name: "stylesheet", Value: "custom.css"},
	}
	job, _ := f.m.CreateJob(ctx, req)

	job, err := f.m.NegotiateStylesheetParameters(ctx, job.InternalID)
	if err != nil {
		t.Fatalf("negotiate: %v", err)
	}

	var fontSize *engine.JobRequestOption
	for i := range job.Request.Options {
		switch job.Request.Options[i].Name {
		case "font-size":
			fontSize = &job.Request.Options[i]
		case "stylesheet":
			if job.Request.Options[i].Value != "custom.css" {
				t.Fatalf("existing option overwritten: %+v", job.Request.Options[i])
			}
		}
	}
	if fontSize == nil {
		t.Fatal("negotiated parameter not merged")
	}
	if fontSize.Value != "100%" || !fontSize.StylesheetParameter {
		t.Fatalf("unexpected merged option: %+v", fontSize)
	}
}

func TestNegotiateWithoutStylesheetsIsNoop(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	job, _ := f.m.CreateJob(ctx, newRequest(""))
	got, err := f.m.NegotiateStylesheetParameters(ctx, job.InternalID)
	if err != nil {
		t.Fatalf("negotiate: %v", err)
	}
	if len(got.Request.Options) != 0 {
		t.Fatalf("options appeared from nowhere: %+v", got.Request.Options)
	}
}

func TestSyncFinalizesSuccessfulJob(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()
	f.markEngineUp()

	downloadDir := t.TempDir()
	f.settings.Update(func(s *settings.Settings) { s.DownloadDir = downloadDir })

	job, _ := f.m.CreateJob(ctx, newRequest(""))
	job, _ = f.m.SubmitJob(ctx, job.InternalID)

	f.engine.setJobDoc("eng-1", `<job xmlns="http://www.daisy.org/ns/pipeline/data" id="eng-1" href="/jobs/eng-1" status="SUCCESS">
  <nicename>My Book</nicename>
  <results href="/results/eng-1" mime-type="application/zip">
    <result name="output-dir" href="/results/eng-1/output-dir">
      <result href="/results/eng-1/output-dir/book.epub" file="book.epub" size="12"/>
    </result>
  </results>
</job>`)

	f.m.syncSubmittedJobs(ctx)

	got, _ := f.m.store.Get(job.InternalID)
	if got.Data.Status != engine.StatusSuccess {
		t.Fatalf("status = %s", got.Data.Status)
	}

	dest := filepath.Join(downloadDir, "My Book", "output-dir", "book.epub")
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("downloaded file missing: %v", err)
	}
	if !strings.Contains(string(data), "book.epub") {
		t.Fatalf("unexpected file content %q", data)
	}

	f.notifier.mu.Lock()
	defer f.notifier.mu.Unlock()
	if len(f.notifier.completed) != 1 || f.notifier.completed[0] != "My Book" {
		t.Fatalf("completion notification = %v", f.notifier.completed)
	}

	rec, _ := f.m.history.Get(ctx, job.InternalID)
	if rec == nil || rec.Status != "SUCCESS" || rec.FinishedAt.IsZero() {
		t.Fatalf("history outcome not recorded: %+v", rec)
	}
}

func TestSyncNotifiesFailureWithLastErrorMessage(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()
	f.markEngineUp()

	job, _ := f.m.CreateJob(ctx, newRequest(""))
	f.m.SubmitJob(ctx, job.InternalID)

	f.engine.setJobDoc("eng-1", `<job xmlns="http://www.daisy.org/ns/pipeline/data" id="eng-1" href="/jobs/eng-1" status="ERROR">
  <nicename>My Book</nicename>
  <messages progress="1.0">
    <message level="INFO" content="starting" sequence="1"/>
    <message level="ERROR" content="conversion blew up" sequence="2"/>
  </messages>
</job>`)

	f.m.syncSubmittedJobs(ctx)

	f.notifier.mu.Lock()
	defer f.notifier.mu.Unlock()
	if len(f.notifier.failed) != 1 {
		t.Fatalf("failure notifications = %v", f.notifier.failed)
	}

	rec, _ := f.m.history.Get(ctx, job.InternalID)
	if rec == nil || rec.Error != "conversion blew up" {
		t.Fatalf("history error = %+v", rec)
	}
}

func TestBatchNotifiedOncePerBatch(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()
	f.markEngineUp()

	primary, _ := f.m.CreateJob(ctx, newRequest("batch-1"))
	primary.State = jobs.StateSubmitted
	primary.Data = &engine.JobData{ID: "a", Status: engine.StatusSuccess, Nicename: "My Book"}
	f.m.store.Update(primary)

	f.m.maybeNotifyBatch(ctx, primary)
	f.m.maybeNotifyBatch(ctx, primary)

	f.notifier.mu.Lock()
	defer f.notifier.mu.Unlock()
	if len(f.notifier.batches) != 1 {
		t.Fatalf("batch notifications = %v", f.notifier.batches)
	}
}

func TestProbeEngineTransitions(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	f.m.probeEngine(ctx)
	if !f.m.EngineRunning() {
		t.Fatal("engine should be up after a successful probe")
	}
	if got := f.m.Status().EngineVersion; got != "1.14.21" {
		t.Fatalf("engine version = %q", got)
	}

	f.engine.setAlive(false)
	f.m.probeEngine(ctx)
	if f.m.EngineRunning() {
		t.Fatal("engine should be down after a failed probe")
	}

	f.notifier.mu.Lock()
	defer f.notifier.mu.Unlock()
	if f.notifier.engineOffline != 1 {
		t.Fatalf("offline notifications = %d", f.notifier.engineOffline)
	}
}

func TestApplyTTSPropertiesFlow(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	err := f.m.ApplyTTSProperties(ctx, []engine.Property{
		{Name: "org.daisy.pipeline.tts.azure.key", Value: "secret"},
		{Name: "org.daisy.pipeline.tts.azure.region", Value: "westeurope"},
	})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	f.engine.mu.Lock()
	_, keyPushed := f.engine.properties["org.daisy.pipeline.tts.azure.key"]
	_, regionPushed := f.engine.properties["org.daisy.pipeline.tts.azure.region"]
	f.engine.mu.Unlock()
	if !keyPushed || !regionPushed {
		t.Fatal("every property must be pushed to the engine")
	}

	persisted := f.settings.Get().TTSProperties
	if persisted["org.daisy.pipeline.tts.azure.key"] != "secret" {
		t.Fatalf("properties not persisted: %+v", persisted)
	}

	// The authoritative tts-engines report wins over reconciliation.
	state, ok := f.m.TTSStates()["azure"]
	if !ok || state.Status != tts.StatusAvailable || state.Name != "Azure Cognitive Services" {
		t.Fatalf("azure state = %+v (tracked=%v)", state, ok)
	}
	if len(f.m.Voices()) != 1 {
		t.Fatalf("voices = %+v", f.m.Voices())
	}
}

func TestApplyTTSPropertyClearRemovesPersisted(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	f.m.ApplyTTSProperties(ctx, []engine.Property{
		{Name: "org.daisy.pipeline.tts.azure.key", Value: "secret"},
	})
	f.m.ApplyTTSProperties(ctx, []engine.Property{
		{Name: "org.daisy.pipeline.tts.azure.key", Value: ""},
	})

	if _, ok := f.settings.Get().TTSProperties["org.daisy.pipeline.tts.azure.key"]; ok {
		t.Fatal("cleared property must leave the settings file")
	}
}

func TestScriptsCachedAfterFirstLoad(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	scripts, err := f.m.Scripts(ctx)
	if err != nil {
		t.Fatalf("scripts: %v", err)
	}
	if len(scripts) != 1 || scripts[0].ID != "dtbook-to-epub3" {
		t.Fatalf("scripts = %+v", scripts)
	}

	f.engine.server.Close()
	cached, err := f.m.Scripts(ctx)
	if err != nil || len(cached) != 1 {
		t.Fatalf("cached catalog must survive engine loss: %v", err)
	}
}
