package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mistakeknot/briefq/internal/queue"
	"github.com/mistakeknot/briefq/internal/statusfile"
	"github.com/mistakeknot/briefq/internal/storage"
	"github.com/mistakeknot/briefq/internal/ws"
)

// testEnv bundles a queue + httptest.Server + ws.Hub for handler tests.
// No auth middleware is installed, matching the localhost bypass path.
type testEnv struct {
	srv   *httptest.Server
	hub   *ws.Hub
	queue *queue.Queue
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	hub := ws.NewHub()
	q := queue.New(storage.NewInMemory(), statusfile.NewWriter(t.TempDir()), hub, 30*time.Second)
	svc := NewService(q)
	srv := httptest.NewServer(NewRouter(svc, hub.Handler(), nil))
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, hub: hub, queue: q}
}

func (e *testEnv) post(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	buf, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(e.srv.URL+path, "application/json", bytes.NewReader(buf))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

func (e *testEnv) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(e.srv.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return resp
}

func decodeJSON[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

func requireStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		t.Fatalf("expected status %d, got %d", want, resp.StatusCode)
	}
}
