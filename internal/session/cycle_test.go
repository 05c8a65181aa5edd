package session_test

import (
	"context"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"loadctl/internal/api"
	"loadctl/internal/session"
	"loadctl/internal/testsupport"
	"loadctl/internal/validate"
)

type urlRecorder struct{ urls []string }

func (r *urlRecorder) Open(url string) error {
	r.urls = append(r.urls, url)
	return nil
}

func TestFullCycleAgainstBackend(t *testing.T) {
	backend := testsupport.NewFakeBackend(t)
	backend.RespondJSON(http.MethodPost, "/upload", http.StatusOK, map[string]any{"filename": "capture.har", "size": 10 << 20})
	backend.RespondJSON(http.MethodPost, "/convert", http.StatusOK, map[string]any{"flow_data": map[string]any{"steps": []any{map[string]any{"url": "/cart"}}}})
	backend.RespondJSON(http.MethodPost, "/generate", http.StatusOK, map[string]any{"filename": "load_1.py"})
	backend.RespondJSON(http.MethodGet, "/run", http.StatusOK, map[string]any{"process_id": 4242, "ui_url": "http://localhost:8089"})

	client, err := api.New(api.Options{BaseURL: backend.URL})
	if err != nil {
		t.Fatalf("api.New returned error: %v", err)
	}
	opener := &urlRecorder{}
	s := session.New(client, session.Options{Opener: opener, PollInterval: time.Hour})
	defer s.Close()

	path := filepath.Join(t.TempDir(), "capture.har")
	testsupport.WriteFile(t, path, 10<<20)
	file, err := session.FileFromPath(path)
	if err != nil {
		t.Fatalf("FileFromPath returned error: %v", err)
	}
	s.Select(file)

	ctx := context.Background()
	if err := s.Upload(ctx); err != nil {
		t.Fatalf("Upload returned error: %v", err)
	}
	upload, ok := backend.Last(http.MethodPost, "/upload")
	if !ok || int64(len(upload.Body)) <= 10<<20 {
		t.Fatalf("expected the full capture in the multipart body, got %d bytes", len(upload.Body))
	}

	if err := s.Convert(ctx); err != nil {
		t.Fatalf("Convert returned error: %v", err)
	}
	convert, _ := backend.Last(http.MethodPost, "/convert")
	if got := convert.JSON(t)["filename"]; got != "capture.har" {
		t.Fatalf("convert filename = %v", got)
	}

	desc := validate.ScriptDescriptor{Filename: "load_1", Host: "api.example.com"}
	if !s.Actions(desc).Generate {
		t.Fatal("expected Generate to be reachable after convert")
	}
	if err := s.Generate(ctx, desc); err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	generate, _ := backend.Last(http.MethodPost, "/generate")
	payload := generate.JSON(t)
	if payload["host"] != "https://api.example.com" || payload["filename"] != "load_1" || payload["replace_existing"] != true {
		t.Fatalf("unexpected generate payload %v", payload)
	}
	if _, ok := payload["steps"]; !ok {
		t.Fatalf("expected flow data to be spread into the payload, got %v", payload)
	}
	if s.GeneratedScript() != "load_1.py" {
		t.Fatalf("generated script = %q", s.GeneratedScript())
	}
	if !s.Actions(desc).Run {
		t.Fatal("expected Run to be reachable after generate")
	}

	if err := s.Run(ctx); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	run, _ := backend.Last(http.MethodGet, "/run")
	if run.Query != "script=load_1.py" {
		t.Fatalf("run query = %q", run.Query)
	}
	if len(opener.urls) != 1 || opener.urls[0] != "http://localhost:8089" {
		t.Fatalf("opened %v", opener.urls)
	}
	snap := s.Snapshot()
	if !snap.Polling || snap.Run == nil || snap.Run.ProcessID != "4242" {
		t.Fatalf("expected polling for process 4242, got %+v", snap)
	}

	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop returned error: %v", err)
	}
	if _, ok := backend.Last(http.MethodPost, "/stop/4242"); !ok {
		t.Fatal("expected POST /stop/4242")
	}
	if s.Snapshot().Polling {
		t.Fatal("expected idle poller after stop")
	}
}

func TestRefreshStatusAgainstIdleBackend(t *testing.T) {
	backend := testsupport.NewFakeBackend(t)
	client, err := api.New(api.Options{BaseURL: backend.URL})
	if err != nil {
		t.Fatalf("api.New returned error: %v", err)
	}
	s := session.New(client, session.Options{})
	defer s.Close()

	_, active, err := s.RefreshStatus(context.Background())
	if err != nil || active {
		t.Fatalf("expected no active run, got active=%v err=%v", active, err)
	}
	if backend.Count(http.MethodGet, "/status") != 1 {
		t.Fatal("expected a single status request")
	}
}
