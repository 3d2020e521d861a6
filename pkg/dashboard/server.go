package dashboard

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Server is the minimal net/http JSON server over a ReadAPI. Three
// static routes: no router dependency earns its keep here.
type Server struct {
	api *ReadAPI
	log zerolog.Logger
	srv *http.Server
}

// NewServer builds a Server bound to addr (e.g. "127.0.0.1:8080").
func NewServer(api *ReadAPI, addr string, log zerolog.Logger) *Server {
	s := &Server{api: api, log: log}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/services/", s.handleServiceByName)
	mux.HandleFunc("/healthz", s.handleHealthz)

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// ListenAndServe blocks serving until the server is closed; it returns
// http.ErrServerClosed on a graceful Shutdown, which callers should
// treat as success.
func (s *Server) ListenAndServe() error {
	return s.srv.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error {
	return s.srv.Shutdown(context.Background())
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.api.Overall())
}

func (s *Server) handleServiceByName(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	name := strings.TrimPrefix(r.URL.Path, "/api/services/")
	if name == "" {
		http.Error(w, "service name required", http.StatusBadRequest)
		return
	}
	svc, ok := s.api.ByName(name)
	if !ok {
		http.Error(w, "service not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, svc)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if !s.api.Ready() {
		http.Error(w, "scheduler not yet started", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Nothing useful to do: the status line is already written.
		return
	}
}
