// Package embedded provides an embeddable briefq server for in-process use,
// for host applications that want the queue without running a daemon.
package embedded

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mistakeknot/briefq/internal/auth"
	httpapi "github.com/mistakeknot/briefq/internal/http"
	"github.com/mistakeknot/briefq/internal/queue"
	"github.com/mistakeknot/briefq/internal/statusfile"
	"github.com/mistakeknot/briefq/internal/storage/sqlite"
	"github.com/mistakeknot/briefq/internal/ws"
)

// Config configures the embedded server.
type Config struct {
	// DBPath is the SQLite database file. Defaults to
	// ~/.local/share/briefq/briefq.db.
	DBPath string

	// StatusDir receives the per-date markdown snapshots. Defaults to a
	// "status" directory next to the database.
	StatusDir string

	// Port is the HTTP port to listen on. Defaults to 7341.
	Port int

	// Host is the host to bind to. Defaults to 127.0.0.1.
	Host string

	// HeartbeatTimeout is the liveness window before in-flight work becomes
	// reclaimable. Defaults to 60s.
	HeartbeatTimeout time.Duration

	// KeysFile enables bearer-key auth when set. When empty the server runs
	// with the localhost bypass only.
	KeysFile string
}

// Server is an embedded briefq server.
type Server struct {
	cfg     Config
	store   *sqlite.Store
	queue   *queue.Queue
	hub     *ws.Hub
	http    *http.Server
	started bool
	mu      sync.Mutex
}

// New creates an embedded server. Call Start to begin serving.
func New(cfg Config) (*Server, error) {
	if cfg.DBPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home dir: %w", err)
		}
		cfg.DBPath = filepath.Join(home, ".local", "share", "briefq", "briefq.db")
	}
	if cfg.StatusDir == "" {
		cfg.StatusDir = filepath.Join(filepath.Dir(cfg.DBPath), "status")
	}
	if cfg.Port == 0 {
		cfg.Port = 7341
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.HeartbeatTimeout == 0 {
		cfg.HeartbeatTimeout = 60 * time.Second
	}

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("init store: %w", err)
	}

	hub := ws.NewHub()
	q := queue.New(sqlite.NewResilient(store), statusfile.NewWriter(cfg.StatusDir), hub, cfg.HeartbeatTimeout)

	var mw func(http.Handler) http.Handler
	if cfg.KeysFile != "" {
		ring, err := auth.LoadKeyring(cfg.KeysFile)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("load auth: %w", err)
		}
		mw = auth.Middleware(ring)
	}
	router := httpapi.NewRouter(httpapi.NewService(q), hub.Handler(), mw)

	return &Server{
		cfg:   cfg,
		store: store,
		queue: q,
		hub:   hub,
		http: &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler: router,
		},
	}, nil
}

// Start starts the embedded server in a goroutine.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = true
	s.mu.Unlock()

	go func() {
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Fprintf(os.Stderr, "briefq server error: %v\n", err)
		}
	}()

	// Give the listener a moment to bind.
	time.Sleep(50 * time.Millisecond)
	return nil
}

// Stop stops the embedded server gracefully and closes the store.
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := s.http.Shutdown(ctx)
	if cerr := s.store.Close(); err == nil {
		err = cerr
	}
	return err
}

// Addr returns the server's listen address.
func (s *Server) Addr() string {
	return s.http.Addr
}

// URL returns the base URL for the server.
func (s *Server) URL() string {
	return fmt.Sprintf("http://%s", s.http.Addr)
}

// Queue returns the underlying queue for direct in-process access.
func (s *Server) Queue() *queue.Queue {
	return s.queue
}
