// Package server runs the HTTP API on a TCP address and, optionally, a unix
// socket serving the same handler.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
)

type Config struct {
	Addr       string
	SocketPath string
	Handler    http.Handler
}

type Server struct {
	cfg    Config
	http   *http.Server
	tcpLn  net.Listener
	unix   *http.Server
	unixLn net.Listener
}

func New(cfg Config) (*Server, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("addr required")
	}
	h := cfg.Handler
	if h == nil {
		h = http.NewServeMux()
	}
	s := &Server{cfg: cfg, http: &http.Server{Handler: h}}

	if cfg.SocketPath != "" {
		// Remove stale socket file from previous run.
		if err := os.Remove(cfg.SocketPath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("remove stale socket: %w", err)
		}
		ln, err := net.Listen("unix", cfg.SocketPath)
		if err != nil {
			return nil, fmt.Errorf("unix listen: %w", err)
		}
		if err := os.Chmod(cfg.SocketPath, 0660); err != nil {
			ln.Close()
			return nil, fmt.Errorf("chmod socket: %w", err)
		}
		s.unixLn = ln
		s.unix = &http.Server{Handler: h}
	}

	return s, nil
}

// Listen binds the TCP address without serving yet, so callers can learn the
// bound address (":0" in tests) before Serve blocks.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("tcp listen: %w", err)
	}
	s.tcpLn = ln
	return nil
}

// Addr returns the bound TCP address after Listen.
func (s *Server) Addr() string {
	if s.tcpLn == nil {
		return s.cfg.Addr
	}
	return s.tcpLn.Addr().String()
}

// Serve blocks until Shutdown. Listen is called implicitly if needed.
func (s *Server) Serve() error {
	if s.tcpLn == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}
	if s.unixLn != nil {
		go s.unix.Serve(s.unixLn)
	}
	err := s.http.Serve(s.tcpLn)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	var firstErr error

	if s.unix != nil {
		if err := s.unix.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if s.cfg.SocketPath != "" {
		os.Remove(s.cfg.SocketPath)
	}

	if err := s.http.Shutdown(ctx); err != nil && firstErr == nil {
		firstErr = err
	}

	return firstErr
}

// SocketPath returns the configured socket path, or empty if not configured.
func (s *Server) SocketPath() string {
	return s.cfg.SocketPath
}
