// Package relay exposes the detection agent over HTTP and streams each
// investigation's progress events to the client as server-sent events.
package relay

import (
	"encoding/json"
	"net/http"

	"github.com/hashicorp/go-hclog"

	"inquest/agent"
	"inquest/store"
)

// Server is the detection agent's HTTP surface.
type Server struct {
	mux      *http.ServeMux
	executor *agent.Executor
	registry *agent.Registry
	stores   *store.Bundle
	broker   *Broker
	logger   hclog.Logger
	version  string
}

func NewServer(executor *agent.Executor, registry *agent.Registry, stores *store.Bundle, version string, logger hclog.Logger) *Server {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	s := &Server{
		mux:      http.NewServeMux(),
		executor: executor,
		registry: registry,
		stores:   stores,
		broker:   NewBroker(logger),
		logger:   logger.Named("relay"),
		version:  version,
	}
	s.registerRoutes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// CORS for local frontend development.
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	s.mux.ServeHTTP(w, r)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /api/health", s.handleHealth)
	s.mux.HandleFunc("POST /api/investigations", s.handleStartInvestigation)
	s.mux.HandleFunc("GET /api/investigations", s.handleListInvestigations)
	s.mux.HandleFunc("GET /api/investigations/{id}", s.handleGetInvestigation)
	s.mux.HandleFunc("GET /api/investigations/{id}/events", s.handleGetEvents)
	s.mux.HandleFunc("GET /api/investigations/{id}/stream", s.handleStream)
	s.mux.HandleFunc("POST /api/investigations/{id}/cancel", s.handleCancel)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}
