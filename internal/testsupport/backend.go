package testsupport

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// RecordedRequest is one call received by a FakeBackend.
type RecordedRequest struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   []byte
}

// JSON decodes the recorded body into a generic map.
func (r RecordedRequest) JSON(t testing.TB) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(r.Body, &payload); err != nil {
		t.Fatalf("decode %s %s body: %v", r.Method, r.Path, err)
	}
	return payload
}

// FakeBackend is an httptest server speaking the control API. Routes are
// keyed by "METHOD /path"; "POST /stop/" matches every process id.
type FakeBackend struct {
	*httptest.Server

	mu       sync.Mutex
	requests []RecordedRequest
	routes   map[string]http.HandlerFunc
}

// NewFakeBackend starts a backend with healthy defaults: /health and / answer,
// /status reports no run and /scripts is empty. The server closes with t.
func NewFakeBackend(t testing.TB) *FakeBackend {
	t.Helper()

	b := &FakeBackend{routes: make(map[string]http.HandlerFunc)}
	b.RespondJSON(http.MethodGet, "/health", http.StatusOK, map[string]string{"status": "ok"})
	b.RespondJSON(http.MethodGet, "/", http.StatusOK, map[string]string{"name": "fake-backend", "version": "0.9.1"})
	b.RespondJSON(http.MethodGet, "/status", http.StatusNotFound, map[string]string{"message": "No test running"})
	b.RespondJSON(http.MethodGet, "/scripts", http.StatusOK, map[string]any{"scripts": []string{}})
	b.RespondJSON(http.MethodPost, "/stop/", http.StatusOK, map[string]string{"message": "stopped"})
	b.RespondJSON(http.MethodPost, "/stop-all", http.StatusOK, map[string]string{"message": "stopped all"})

	b.Server = httptest.NewServer(http.HandlerFunc(b.serve))
	t.Cleanup(b.Close)
	return b
}

// Handle replaces the handler for method and path.
func (b *FakeBackend) Handle(method, path string, handler http.HandlerFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.routes[method+" "+path] = handler
}

// RespondJSON serves a fixed JSON body for method and path.
func (b *FakeBackend) RespondJSON(method, path string, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		panic(err)
	}
	b.Handle(method, path, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write(data)
	})
}

// Requests returns a copy of every request received so far.
func (b *FakeBackend) Requests() []RecordedRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]RecordedRequest(nil), b.requests...)
}

// Count reports how many requests matched method and path. A path ending in
// "/" matches by prefix.
func (b *FakeBackend) Count(method, path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	count := 0
	for _, req := range b.requests {
		if req.Method == method && matchPath(path, req.Path) {
			count++
		}
	}
	return count
}

// Last returns the most recent request for method and path.
func (b *FakeBackend) Last(method, path string) (RecordedRequest, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(b.requests) - 1; i >= 0; i-- {
		req := b.requests[i]
		if req.Method == method && matchPath(path, req.Path) {
			return req, true
		}
	}
	return RecordedRequest{}, false
}

func matchPath(pattern, path string) bool {
	if pattern != "/" && strings.HasSuffix(pattern, "/") {
		return strings.HasPrefix(path, pattern)
	}
	return pattern == path
}

func (b *FakeBackend) serve(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	r.Body = io.NopCloser(strings.NewReader(string(body)))

	b.mu.Lock()
	b.requests = append(b.requests, RecordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Query:  r.URL.RawQuery,
		Header: r.Header.Clone(),
		Body:   body,
	})
	handler := b.routes[r.Method+" "+r.URL.Path]
	if handler == nil && strings.HasPrefix(r.URL.Path, "/stop/") {
		handler = b.routes[r.Method+" /stop/"]
	}
	b.mu.Unlock()

	if handler == nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail":"Not Found"}`))
		return
	}
	handler(w, r)
}
