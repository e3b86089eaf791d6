package auth

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadKeyring(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.yaml")
	content := `default_policy:
  allow_localhost_without_auth: false
agents:
  worker-1:
    keys:
      - key-one
      - key-two
  worker-2:
    keys:
      - key-three
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}

	ring, err := LoadKeyring(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if ring.AllowLocalhostWithoutAuth {
		t.Fatal("localhost bypass should be disabled")
	}
	if agent, ok := ring.AgentForKey("key-one"); !ok || agent != "worker-1" {
		t.Fatalf("key-one -> %q, %v", agent, ok)
	}
	if agent, ok := ring.AgentForKey("key-three"); !ok || agent != "worker-2" {
		t.Fatalf("key-three -> %q, %v", agent, ok)
	}
	if _, ok := ring.AgentForKey("unknown"); ok {
		t.Fatal("unknown key accepted")
	}
}

func TestLoadKeyringRejectsSharedKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.yaml")
	content := `agents:
  worker-1:
    keys: [shared]
  worker-2:
    keys: [shared]
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadKeyring(path); err == nil {
		t.Fatal("expected error for key reused across agents")
	}
}

func TestLoadKeyringBootstrapsMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.yaml")
	ring, err := LoadKeyring(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("keys file not bootstrapped: %v", err)
	}
	if !ring.AllowLocalhostWithoutAuth {
		t.Fatal("bootstrapped ring should allow localhost")
	}
}

func TestBootstrapLeavesExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.yaml")
	if err := os.WriteFile(path, []byte("agents: {}\n"), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}
	res, err := BootstrapDevKey(path, "dev")
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if res.Created {
		t.Fatal("bootstrap overwrote existing file")
	}
}

func newAuthedRequest(t *testing.T, key, remoteAddr string) *http.Request {
	t.Helper()
	r := httptest.NewRequest(http.MethodGet, "/api/messages", nil)
	r.RemoteAddr = remoteAddr
	if key != "" {
		r.Header.Set("Authorization", "Bearer "+key)
	}
	return r
}

func runMiddleware(ring *Keyring, r *http.Request) (int, Info) {
	var info Info
	var seen bool
	handler := Middleware(ring)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info, seen = FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)
	if rec.Code == http.StatusOK && !seen {
		panic("handler ran without auth info in context")
	}
	return rec.Code, info
}

func TestMiddlewareLocalhostBypass(t *testing.T) {
	ring := NewKeyring(true, nil)
	code, info := runMiddleware(ring, newAuthedRequest(t, "", "127.0.0.1:52000"))
	if code != http.StatusOK {
		t.Fatalf("code = %d", code)
	}
	if info.Mode != ModeLocalhost || info.AgentID != "" {
		t.Fatalf("info = %+v", info)
	}
}

func TestMiddlewareAPIKey(t *testing.T) {
	ring := NewKeyring(false, map[string]string{"secret": "worker-1"})

	code, info := runMiddleware(ring, newAuthedRequest(t, "secret", "10.0.0.5:52000"))
	if code != http.StatusOK {
		t.Fatalf("code = %d", code)
	}
	if info.Mode != ModeAPIKey || info.AgentID != "worker-1" {
		t.Fatalf("info = %+v", info)
	}

	code, _ = runMiddleware(ring, newAuthedRequest(t, "wrong", "10.0.0.5:52000"))
	if code != http.StatusUnauthorized {
		t.Fatalf("bad key code = %d", code)
	}

	code, _ = runMiddleware(ring, newAuthedRequest(t, "", "10.0.0.5:52000"))
	if code != http.StatusUnauthorized {
		t.Fatalf("missing key code = %d", code)
	}
}

func TestMiddlewareRemoteNeedsKeyWhenBypassOff(t *testing.T) {
	ring := NewKeyring(false, map[string]string{"secret": "worker-1"})
	code, _ := runMiddleware(ring, newAuthedRequest(t, "", "127.0.0.1:52000"))
	if code != http.StatusUnauthorized {
		t.Fatalf("code = %d, want 401 when bypass disabled", code)
	}
}

func TestResolveKeysPathEnv(t *testing.T) {
	t.Setenv("BRIEFQ_KEYS_FILE", "/tmp/override.yaml")
	if got := ResolveKeysPath(); got != "/tmp/override.yaml" {
		t.Fatalf("path = %q", got)
	}
}
