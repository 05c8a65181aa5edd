package session

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"loadctl/internal/api"
	"loadctl/internal/monitor"
	"loadctl/internal/services"
	"loadctl/internal/validate"
)

type fakeBackend struct {
	mu    sync.Mutex
	calls map[string]int

	uploadFn   func(ctx context.Context, name string, content io.Reader) (api.UploadResult, error)
	convertFn  func(ctx context.Context, req api.ConvertRequest) (api.ConvertResult, error)
	generateFn func(ctx context.Context, req api.GenerateRequest) (api.GenerateResult, error)
	runFn      func(ctx context.Context, script string) (api.RunStatus, error)
	stopFn     func(ctx context.Context, processID string) error
	statusFn   func(ctx context.Context) (api.RunStatus, error)
	scripts    []api.Script

	lastGenerate api.GenerateRequest
}

func (f *fakeBackend) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[name]++
}

func (f *fakeBackend) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeBackend) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeBackend) Upload(ctx context.Context, name, mimeType string, content io.Reader) (api.UploadResult, error) {
	f.record("upload")
	if f.uploadFn != nil {
		return f.uploadFn(ctx, name, content)
	}
	_, _ = io.Copy(io.Discard, content)
	return api.UploadResult{Raw: json.RawMessage(`{"ok":true}`)}, nil
}

func (f *fakeBackend) Convert(ctx context.Context, req api.ConvertRequest) (api.ConvertResult, error) {
	f.record("convert")
	if f.convertFn != nil {
		return f.convertFn(ctx, req)
	}
	return api.ConvertResult{FlowData: json.RawMessage(`{"steps":[1]}`)}, nil
}

func (f *fakeBackend) Generate(ctx context.Context, req api.GenerateRequest) (api.GenerateResult, error) {
	f.record("generate")
	f.mu.Lock()
	f.lastGenerate = req
	f.mu.Unlock()
	if f.generateFn != nil {
		return f.generateFn(ctx, req)
	}
	return api.GenerateResult{Filename: req.Filename + ".py"}, nil
}

func (f *fakeBackend) Scripts(ctx context.Context) ([]api.Script, error) {
	f.record("scripts")
	return f.scripts, nil
}

func (f *fakeBackend) RunByQuery(ctx context.Context, script string) (api.RunStatus, error) {
	f.record("run-query")
	if f.runFn != nil {
		return f.runFn(ctx, script)
	}
	return api.RunStatus{ProcessID: "100"}, nil
}

func (f *fakeBackend) RunByBody(ctx context.Context, script string) (api.RunStatus, error) {
	f.record("run-body")
	if f.runFn != nil {
		return f.runFn(ctx, script)
	}
	return api.RunStatus{ProcessID: "200"}, nil
}

func (f *fakeBackend) Stop(ctx context.Context, processID string) error {
	f.record("stop")
	if f.stopFn != nil {
		return f.stopFn(ctx, processID)
	}
	return nil
}

func (f *fakeBackend) StopAll(ctx context.Context) error {
	f.record("stop-all")
	return nil
}

func (f *fakeBackend) Status(ctx context.Context) (api.RunStatus, error) {
	f.record("status")
	if f.statusFn != nil {
		return f.statusFn(ctx)
	}
	return api.RunStatus{}, services.Wrap(services.ErrNotFound, "api", "status", "", nil)
}

type recordingOpener struct {
	mu   sync.Mutex
	urls []string
}

func (o *recordingOpener) Open(url string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.urls = append(o.urls, url)
	return nil
}

func (o *recordingOpener) URLs() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.urls...)
}

func memoryFile(name string, data string) SelectedFile {
	return SelectedFile{
		Name:     name,
		Size:     int64(len(data)),
		MIMEType: "application/json",
		Open:     func() (io.ReadCloser, error) { return io.NopCloser(strings.NewReader(data)), nil },
	}
}

func newTestSession(t *testing.T, backend *fakeBackend, opts Options) *Session {
	t.Helper()
	if opts.Poller == nil {
		opts.Poller = monitor.NewStatusPoller(backend, monitor.PollerOptions{Interval: time.Hour})
	}
	s := New(backend, opts)
	t.Cleanup(s.Close)
	return s
}

var validDraft = validate.ScriptDescriptor{Filename: "load_1", Host: "api.example.com"}

func TestGenerateWithoutFlowDataMakesNoCall(t *testing.T) {
	backend := &fakeBackend{}
	s := newTestSession(t, backend, Options{})
	s.Select(memoryFile("a.har", "{}"))

	err := s.Generate(context.Background(), validDraft)
	if !errors.Is(err, services.ErrPrecondition) {
		t.Fatalf("expected precondition error, got %v", err)
	}
	if backend.total() != 0 {
		t.Fatalf("expected no network calls, got %v", backend.calls)
	}
	status := s.Status(StepGenerate)
	if status.State != StateError || status.Message != "Please convert the file first to get flow data" {
		t.Fatalf("unexpected status %+v", status)
	}
}

func TestScenarioBInvalidHostBlocksGenerate(t *testing.T) {
	backend := &fakeBackend{}
	s := newTestSession(t, backend, Options{})
	s.Select(memoryFile("a.har", "{}"))
	if err := s.Convert(context.Background()); err != nil {
		t.Fatalf("Convert returned error: %v", err)
	}

	draft := validate.ScriptDescriptor{Filename: "load_1", Host: "My Host!"}
	if s.Actions(draft).Generate {
		t.Fatal("expected Generate to be unreachable with an invalid host")
	}
	err := s.Generate(context.Background(), draft)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if backend.count("generate") != 0 {
		t.Fatal("invalid descriptor must not reach the network")
	}
	if s.Status(StepGenerate).Message == "" {
		t.Fatal("expected a rejection reason")
	}
	if !s.Actions(validDraft).Generate {
		t.Fatal("expected Generate to be reachable once the draft is valid")
	}
}

func TestScenarioCConvertWithoutFlowData(t *testing.T) {
	backend := &fakeBackend{convertFn: func(ctx context.Context, req api.ConvertRequest) (api.ConvertResult, error) {
		return api.ConvertResult{}, services.Wrap(services.ErrContract, "api", "convert", "No flow_data found in response", nil)
	}}
	s := newTestSession(t, backend, Options{})
	s.Select(memoryFile("a.har", "{}"))

	err := s.Convert(context.Background())
	if !errors.Is(err, services.ErrContract) {
		t.Fatalf("expected contract failure, got %v", err)
	}
	if s.FlowData() != nil {
		t.Fatal("flow data must stay empty")
	}
	if s.Actions(validDraft).Generate {
		t.Fatal("Generate must stay unreachable")
	}
	if got := s.Status(StepConvert); got.State != StateError || got.Message != "Convert failed: No flow_data found in response" {
		t.Fatalf("unexpected convert status %+v", got)
	}
}

func TestGenerateNormalizesHostAndFallsBackToFilename(t *testing.T) {
	backend := &fakeBackend{generateFn: func(ctx context.Context, req api.GenerateRequest) (api.GenerateResult, error) {
		return api.GenerateResult{}, nil
	}}
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	s := newTestSession(t, backend, Options{Now: func() time.Time { return now }})
	s.Select(memoryFile("a.har", "{}"))
	if err := s.Convert(context.Background()); err != nil {
		t.Fatalf("Convert returned error: %v", err)
	}

	if err := s.Generate(context.Background(), validate.ScriptDescriptor{Filename: "load_1", Host: "192.168.1.100:8080"}); err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	req := backend.lastGenerate
	if req.Host != "http://192.168.1.100:8080" || !req.ReplaceExisting || !req.Timestamp.Equal(now) {
		t.Fatalf("unexpected generate request %+v", req)
	}
	if string(req.FlowData) != `{"steps":[1]}` {
		t.Fatalf("expected stored flow data to be sent, got %s", req.FlowData)
	}
	if s.GeneratedScript() != "load_1" {
		t.Fatalf("expected fallback to chosen filename, got %q", s.GeneratedScript())
	}
}

func TestGenerateFailureKeepsFlowData(t *testing.T) {
	backend := &fakeBackend{generateFn: func(ctx context.Context, req api.GenerateRequest) (api.GenerateResult, error) {
		return api.GenerateResult{}, services.Wrap(services.ErrTransport, "api", "generate", "template error", nil)
	}}
	s := newTestSession(t, backend, Options{})
	s.Select(memoryFile("a.har", "{}"))
	_ = s.Convert(context.Background())

	err := s.Generate(context.Background(), validDraft)
	if !errors.Is(err, services.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if s.FlowData() == nil {
		t.Fatal("flow data must survive a failed generate")
	}
	if got := s.Status(StepGenerate).Message; got != "Generate failed: template error" {
		t.Fatalf("unexpected message %q", got)
	}
	if !s.Actions(validDraft).Generate {
		t.Fatal("Generate must be retryable")
	}
}

func TestUploadPreconditions(t *testing.T) {
	tests := []struct {
		name    string
		file    *SelectedFile
		marker  error
		message string
	}{
		{name: "nothing selected", marker: services.ErrPrecondition, message: "Please select a file first"},
		{name: "empty", file: &SelectedFile{Name: "a.har", Size: 0, Open: func() (io.ReadCloser, error) { return nil, nil }}, marker: services.ErrValidation, message: "Selected file is empty"},
		{name: "too large", file: &SelectedFile{Name: "a.har", Size: 2<<20 + 1, Open: func() (io.ReadCloser, error) { return nil, nil }}, marker: services.ErrValidation, message: "File size too large (max 2MB)"},
		{name: "nameless", file: &SelectedFile{Size: 10, Open: func() (io.ReadCloser, error) { return nil, nil }}, marker: services.ErrValidation, message: "File appears to be corrupted, please select again"},
		{name: "unreadable", file: &SelectedFile{Name: "a.har", Size: 10, Open: func() (io.ReadCloser, error) { return nil, errors.New("gone") }}, marker: services.ErrValidation, message: "File appears to be corrupted, please select again"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &fakeBackend{}
			s := newTestSession(t, backend, Options{MaxUploadBytes: 2 << 20})
			if tt.file != nil {
				s.Select(*tt.file)
			}
			err := s.Upload(context.Background())
			if !errors.Is(err, tt.marker) {
				t.Fatalf("expected %v, got %v", tt.marker, err)
			}
			if got := s.Status(StepUpload); got.State != StateError || got.Message != tt.message {
				t.Fatalf("unexpected status %+v", got)
			}
			if backend.count("upload") != 0 {
				t.Fatal("local failure must not reach the network")
			}
			if s.Snapshot().Busy[StepUpload] {
				t.Fatal("busy flag must be released")
			}
		})
	}
}

func TestUploadSizeMessageDefaultLimit(t *testing.T) {
	s := newTestSession(t, &fakeBackend{}, Options{})
	s.Select(SelectedFile{Name: "big.har", Size: DefaultMaxUploadBytes + 1, Open: func() (io.ReadCloser, error) { return nil, nil }})
	_ = s.Upload(context.Background())
	if got := s.Status(StepUpload).Message; got != "File size too large (max 50MB)" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestUploadSuccessEchoesResponse(t *testing.T) {
	s := newTestSession(t, &fakeBackend{}, Options{})
	s.Select(memoryFile("a.har", `{"log":{}}`))
	if err := s.Upload(context.Background()); err != nil {
		t.Fatalf("Upload returned error: %v", err)
	}
	got := s.Status(StepUpload)
	if got.State != StateSuccess || got.Message != `Upload successful! Response: {"ok":true}` {
		t.Fatalf("unexpected status %+v", got)
	}
	if s.Snapshot().File == nil {
		t.Fatal("upload must retain the selected file")
	}
}

func TestBusyGuardPreventsOverlap(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	backend := &fakeBackend{convertFn: func(ctx context.Context, req api.ConvertRequest) (api.ConvertResult, error) {
		close(entered)
		<-release
		return api.ConvertResult{FlowData: json.RawMessage(`{}`)}, nil
	}}
	s := newTestSession(t, backend, Options{})
	s.Select(memoryFile("a.har", "{}"))

	done := make(chan error, 1)
	go func() { done <- s.Convert(context.Background()) }()
	<-entered

	if err := s.Convert(context.Background()); !errors.Is(err, services.ErrBusy) {
		t.Fatalf("expected busy error, got %v", err)
	}
	if s.Actions(validDraft).Convert {
		t.Fatal("Convert must be unreachable while in flight")
	}
	if err := s.Upload(context.Background()); err != nil {
		t.Fatalf("different operations may overlap, got %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first Convert returned error: %v", err)
	}
	if backend.count("convert") != 1 {
		t.Fatalf("expected exactly one convert call, got %d", backend.count("convert"))
	}
}

func TestClearDropsInFlightResult(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	backend := &fakeBackend{convertFn: func(ctx context.Context, req api.ConvertRequest) (api.ConvertResult, error) {
		close(entered)
		<-release
		return api.ConvertResult{FlowData: json.RawMessage(`{"late":true}`)}, nil
	}}
	s := newTestSession(t, backend, Options{})
	s.Select(memoryFile("a.har", "{}"))

	done := make(chan error, 1)
	go func() { done <- s.Convert(context.Background()) }()
	<-entered
	s.Clear()
	close(release)

	if err := <-done; !errors.Is(err, services.ErrSuperseded) {
		t.Fatalf("expected superseded error, got %v", err)
	}
	if s.FlowData() != nil {
		t.Fatal("late result must not repopulate a cleared session")
	}
	if s.Status(StepConvert).State != StateIdle {
		t.Fatal("cleared session must report idle")
	}
}

func TestClearKeepsRunStartedInFlight(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	backend := &fakeBackend{runFn: func(ctx context.Context, script string) (api.RunStatus, error) {
		close(entered)
		<-release
		return api.RunStatus{ProcessID: "777", UIURL: "http://localhost:8089"}, nil
	}}
	opener := &recordingOpener{}
	s := newTestSession(t, backend, Options{Opener: opener})

	done := make(chan error, 1)
	go func() { done <- s.RunScript(context.Background(), "checkout.py") }()
	<-entered
	s.Clear()
	close(release)

	if err := <-done; err != nil {
		t.Fatalf("RunScript returned error: %v", err)
	}
	snap := s.Snapshot()
	if !snap.Polling || snap.Run == nil || snap.Run.ProcessID != "777" || snap.Run.Script != "checkout.py" {
		t.Fatalf("expected the started run to be polled, got %+v", snap)
	}
	if snap.Busy[StepRun] {
		t.Fatal("run must not stay busy after completing")
	}
	if !s.Actions(validDraft).Stop {
		t.Fatal("Stop must be reachable for a run started before the clear")
	}
	if urls := opener.URLs(); len(urls) != 1 || urls[0] != "http://localhost:8089" {
		t.Fatalf("expected dashboard to open, got %v", urls)
	}
}

func TestSelectKeepsGeneratedRunInFlight(t *testing.T) {
	release := make(chan struct{})
	entered := make(chan struct{})
	backend := &fakeBackend{runFn: func(ctx context.Context, script string) (api.RunStatus, error) {
		close(entered)
		<-release
		return api.RunStatus{ProcessID: "4242"}, nil
	}}
	s := newTestSession(t, backend, Options{UIFallbackURL: "http://localhost:8089"})
	s.Select(memoryFile("a.har", "{}"))
	_ = s.Convert(context.Background())
	_ = s.Generate(context.Background(), validDraft)

	done := make(chan error, 1)
	go func() { done <- s.Run(context.Background()) }()
	<-entered
	s.Select(memoryFile("b.har", "{}"))
	close(release)

	if err := <-done; err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	snap := s.Snapshot()
	if !snap.Polling || snap.Run == nil || snap.Run.ProcessID != "4242" || snap.Run.Script != "load_1.py" {
		t.Fatalf("expected the started run to be polled, got %+v", snap)
	}
	if snap.GeneratedScript != "" || snap.File == nil || snap.File.Name != "b.har" {
		t.Fatalf("reselect must keep the new cycle clean, got %+v", snap)
	}
	if snap.UIURL != "" {
		t.Fatalf("dashboard link of the replaced cycle leaked: %q", snap.UIURL)
	}
}

func TestClearIsIdempotent(t *testing.T) {
	s := newTestSession(t, &fakeBackend{}, Options{})
	s.Select(memoryFile("a.har", "{}"))
	_ = s.Upload(context.Background())
	_ = s.Convert(context.Background())
	_ = s.Generate(context.Background(), validDraft)

	s.Clear()
	first := s.Snapshot()
	s.Clear()
	second := s.Snapshot()

	for name, snap := range map[string]Snapshot{"first": first, "second": second} {
		if snap.File != nil || snap.HasFlowData || snap.GeneratedScript != "" || snap.UploadResponse != nil {
			t.Fatalf("%s clear left derived state: %+v", name, snap)
		}
		for _, step := range cycleSteps {
			if snap.Steps[step].State != StateIdle || snap.Busy[step] {
				t.Fatalf("%s clear left %s status %+v", name, step, snap.Steps[step])
			}
		}
	}
	if first.ID != second.ID {
		t.Fatal("clear must not change the session id")
	}
}

func TestSelectRestartsCycle(t *testing.T) {
	s := newTestSession(t, &fakeBackend{}, Options{})
	s.Select(memoryFile("a.har", "{}"))
	_ = s.Convert(context.Background())
	_ = s.Generate(context.Background(), validDraft)
	if s.GeneratedScript() == "" {
		t.Fatal("expected generated script before reselect")
	}

	s.Select(memoryFile("b.har", "{}"))
	if s.FlowData() != nil || s.GeneratedScript() != "" {
		t.Fatal("selecting a new file must invalidate flow data and the generated script")
	}
	actions := s.Actions(validDraft)
	if !actions.Convert || actions.Generate || actions.Run {
		t.Fatalf("unexpected actions after reselect %+v", actions)
	}
}

func TestRunUsesFallbackURLAndStartsPolling(t *testing.T) {
	backend := &fakeBackend{runFn: func(ctx context.Context, script string) (api.RunStatus, error) {
		return api.RunStatus{ProcessID: "4242"}, nil
	}}
	opener := &recordingOpener{}
	s := newTestSession(t, backend, Options{UIFallbackURL: "http://localhost:8089", Opener: opener})

	if err := s.Run(context.Background()); !errors.Is(err, services.ErrPrecondition) {
		t.Fatalf("expected precondition error before generate, got %v", err)
	}
	if backend.count("run-query") != 0 {
		t.Fatal("run without a script must not reach the network")
	}

	s.Select(memoryFile("a.har", "{}"))
	_ = s.Convert(context.Background())
	_ = s.Generate(context.Background(), validDraft)
	if err := s.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if urls := opener.URLs(); len(urls) != 1 || urls[0] != "http://localhost:8089" {
		t.Fatalf("expected fallback dashboard to open, got %v", urls)
	}
	snap := s.Snapshot()
	if !snap.Polling || snap.Run == nil || snap.Run.ProcessID != "4242" || !snap.Run.Running || snap.Run.Script != "load_1.py" {
		t.Fatalf("expected active polled run, got %+v", snap)
	}
	if !s.Actions(validDraft).Stop {
		t.Fatal("Stop must be reachable with an active process")
	}
}

func TestRunFailureDoesNotMarkActive(t *testing.T) {
	backend := &fakeBackend{runFn: func(ctx context.Context, script string) (api.RunStatus, error) {
		return api.RunStatus{}, services.Wrap(services.ErrTransport, "api", "run", "script missing", nil)
	}}
	opener := &recordingOpener{}
	s := newTestSession(t, backend, Options{UIFallbackURL: "http://localhost:8089", Opener: opener})
	s.Select(memoryFile("a.har", "{}"))
	_ = s.Convert(context.Background())
	_ = s.Generate(context.Background(), validDraft)

	if err := s.Run(context.Background()); err == nil {
		t.Fatal("expected run error")
	}
	if s.Snapshot().Polling || len(opener.URLs()) != 0 {
		t.Fatal("failed run must not poll or open a dashboard")
	}
	if got := s.Status(StepRun).Message; got != "Failed to run script: script missing" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestStopRequiresProcessAndReturnsToIdle(t *testing.T) {
	var stopped string
	backend := &fakeBackend{stopFn: func(ctx context.Context, processID string) error {
		stopped = processID
		return nil
	}}
	opener := &recordingOpener{}
	s := newTestSession(t, backend, Options{Opener: opener})

	if err := s.Stop(context.Background()); !errors.Is(err, services.ErrPrecondition) {
		t.Fatalf("expected precondition error, got %v", err)
	}
	if got := s.Status(StepStop).Message; got != "No active test to stop" {
		t.Fatalf("unexpected message %q", got)
	}
	if backend.count("stop") != 0 {
		t.Fatal("stop without a process must not reach the network")
	}

	if err := s.RunScript(context.Background(), "catalog.py"); err != nil {
		t.Fatalf("RunScript returned error: %v", err)
	}
	if len(opener.URLs()) != 0 {
		t.Fatal("catalog runs only open dashboards the backend reports")
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop returned error: %v", err)
	}
	if stopped != "200" {
		t.Fatalf("expected process 200 to be stopped, got %q", stopped)
	}
	snap := s.Snapshot()
	if snap.Polling || snap.Run != nil {
		t.Fatalf("expected idle poller after stop, got %+v", snap)
	}
}

func TestStopFailureKeepsPolling(t *testing.T) {
	backend := &fakeBackend{stopFn: func(ctx context.Context, processID string) error {
		return services.Wrap(services.ErrTransport, "api", "stop", "process busy", nil)
	}}
	s := newTestSession(t, backend, Options{})
	_ = s.RunScript(context.Background(), "a.py")

	if err := s.Stop(context.Background()); err == nil {
		t.Fatal("expected stop error")
	}
	if !s.Snapshot().Polling {
		t.Fatal("failed stop must leave polling running")
	}
	if got := s.Status(StepStop).Message; got != "Failed to stop test: process busy" {
		t.Fatalf("unexpected message %q", got)
	}
}

func TestStopAllReturnsToIdle(t *testing.T) {
	backend := &fakeBackend{}
	s := newTestSession(t, backend, Options{})
	_ = s.RunScript(context.Background(), "a.py")

	if err := s.StopAll(context.Background()); err != nil {
		t.Fatalf("StopAll returned error: %v", err)
	}
	if s.Snapshot().Polling {
		t.Fatal("expected idle poller after stop all")
	}
	if s.Status(StepStopAll).State != StateSuccess {
		t.Fatal("expected stop-all success")
	}
}

func TestScriptsCatalogSurvivesClear(t *testing.T) {
	backend := &fakeBackend{scripts: []api.Script{{Filename: "a.py"}, {Filename: "b.py"}}}
	s := newTestSession(t, backend, Options{})

	scripts, err := s.Scripts(context.Background())
	if err != nil || len(scripts) != 2 {
		t.Fatalf("unexpected scripts %v %v", scripts, err)
	}
	s.Clear()
	if got := s.Snapshot().Catalog; len(got) != 2 {
		t.Fatalf("catalog is independent of the cycle, got %v", got)
	}
}

func TestRefreshStatusNotFoundIsInactive(t *testing.T) {
	s := newTestSession(t, &fakeBackend{}, Options{})
	_, active, err := s.RefreshStatus(context.Background())
	if err != nil || active {
		t.Fatalf("expected inactive without error, got active=%v err=%v", active, err)
	}
}

func TestPollerLifecycleWithRealTicks(t *testing.T) {
	backend := &fakeBackend{statusFn: func(ctx context.Context) (api.RunStatus, error) {
		return api.RunStatus{Running: true, ProcessID: "200"}, nil
	}}
	s := New(backend, Options{PollInterval: 5 * time.Millisecond})
	defer s.Close()

	if err := s.RunScript(context.Background(), "a.py"); err != nil {
		t.Fatalf("RunScript returned error: %v", err)
	}
	deadline := time.Now().Add(time.Second)
	for backend.count("status") < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if backend.count("status") < 2 {
		t.Fatal("expected status polling while running")
	}

	if err := s.Stop(context.Background()); err != nil {
		t.Fatalf("Stop returned error: %v", err)
	}
	calls := backend.count("status")
	time.Sleep(30 * time.Millisecond)
	if backend.count("status") != calls {
		t.Fatal("expected no status calls after stop")
	}
}
