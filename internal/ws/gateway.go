// Package ws pushes queue events to connected agents over websockets.
package ws

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/mistakeknot/briefq/internal/auth"
)

const writeTimeout = 5 * time.Second

// Hub tracks open connections per agent. An agent may hold several
// connections; broadcasts with an empty agent fan out to everyone.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]map[*websocket.Conn]struct{}
}

func NewHub() *Hub {
	return &Hub{conns: make(map[string]map[*websocket.Conn]struct{})}
}

// Handler upgrades GET /ws/agents/{agent} and parks the connection until the
// peer goes away. Inbound frames are drained and discarded; the socket is
// push-only.
func (h *Hub) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/ws/agents/")
		agent := strings.Trim(path, "/")
		if agent == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		info, _ := auth.FromContext(r.Context())
		if info.AgentID != "" && info.AgentID != agent {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}

		h.add(agent, conn)
		defer h.remove(agent, conn)

		ctx := r.Context()
		for {
			var v any
			if err := wsjson.Read(ctx, conn, &v); err != nil {
				return
			}
		}
	}
}

type connEntry struct {
	conn  *websocket.Conn
	agent string
}

// Broadcast sends event to every connection of the named agent, or to all
// connections when agent is empty. Dead connections are evicted off the
// broadcast path.
func (h *Hub) Broadcast(agent string, event any) {
	entries := h.snapshot(agent)
	if len(entries) == 0 {
		return
	}
	for _, e := range entries {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := wsjson.Write(ctx, e.conn, event)
		cancel()
		if err != nil {
			go func(e connEntry) {
				e.conn.Close(websocket.StatusGoingAway, "write error")
				h.remove(e.agent, e.conn)
			}(e)
		}
	}
}

func (h *Hub) snapshot(agent string) []connEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var out []connEntry
	if agent != "" {
		for conn := range h.conns[agent] {
			out = append(out, connEntry{conn: conn, agent: agent})
		}
		return out
	}
	for name, conns := range h.conns {
		for conn := range conns {
			out = append(out, connEntry{conn: conn, agent: name})
		}
	}
	return out
}

func (h *Hub) add(agent string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	perAgent, ok := h.conns[agent]
	if !ok {
		perAgent = make(map[*websocket.Conn]struct{})
		h.conns[agent] = perAgent
	}
	perAgent[conn] = struct{}{}
}

func (h *Hub) remove(agent string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	perAgent, ok := h.conns[agent]
	if !ok {
		return
	}
	delete(perAgent, conn)
	if len(perAgent) == 0 {
		delete(h.conns, agent)
	}
}
