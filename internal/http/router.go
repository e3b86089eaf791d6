package httpapi

import "net/http"

// NewRouter wires the API surface. mw (usually auth) wraps every endpoint,
// websocket upgrade included.
func NewRouter(svc *Service, wsHandler http.Handler, mw func(http.Handler) http.Handler) http.Handler {
	mux := http.NewServeMux()
	wrap := func(h http.HandlerFunc) http.Handler {
		handler := http.Handler(h)
		if mw != nil {
			handler = mw(handler)
		}
		return handler
	}

	mux.Handle("/api/messages", wrap(svc.handleMessages))
	mux.Handle("/api/messages/", wrap(svc.handleMessageByID))
	mux.Handle("/api/claims", wrap(svc.handleClaim))
	mux.Handle("/api/agents", wrap(svc.handleAgents))
	mux.Handle("/api/agents/", wrap(svc.handleAgentHeartbeat))
	mux.HandleFunc("/healthz", svc.handleHealth)

	if wsHandler != nil {
		if mw != nil {
			mux.Handle("/ws/agents/", mw(wsHandler))
		} else {
			mux.Handle("/ws/agents/", wsHandler)
		}
	}

	return mux
}
