// Package web provides an HTTP status server for the field-logger daemon.
package web

import (
	"context"
	"io"
	"net"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/sweeney/field-logger/internal/metrics"
	"github.com/sweeney/field-logger/internal/status"
)

// Server serves the status page, status JSON, a health check and
// Prometheus metrics over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
}

// New creates a Server that reads state from the given tracker. Requests
// are logged in Apache common log format to accessLog when it is non-nil.
// m may be nil, in which case /metrics answers 404.
func New(addr string, tracker *status.Tracker, m *metrics.Metrics, accessLog io.Writer) *Server {
	s := &Server{tracker: tracker}

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.router(m, accessLog),
	}
	return s
}

func (s *Server) router(m *metrics.Metrics, accessLog io.Writer) http.Handler {
	r := mux.NewRouter()
	r.Handle("/", m.WrapHandler("index", http.HandlerFunc(s.handleIndex))).Methods(http.MethodGet)
	r.Handle("/index.html", m.WrapHandler("index", http.HandlerFunc(s.handleIndex))).Methods(http.MethodGet)
	r.Handle("/index.json", m.WrapHandler("status", http.HandlerFunc(s.handleJSON))).Methods(http.MethodGet)
	r.Handle("/healthz", m.WrapHandler("healthz", http.HandlerFunc(s.handleHealth))).Methods(http.MethodGet)
	r.Handle("/metrics", m.Handler()).Methods(http.MethodGet)

	if accessLog == nil {
		return r
	}
	return handlers.LoggingHandler(accessLog, r)
}

// Handler returns the root handler. Useful for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap)
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

// handleHealth answers 200 while the card is present and no fatal error
// has been recorded, 503 otherwise.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	switch {
	case !snap.CardPresent:
		w.WriteHeader(http.StatusServiceUnavailable)
		io.WriteString(w, "card not present\n")
	case snap.LastError != "":
		w.WriteHeader(http.StatusServiceUnavailable)
		io.WriteString(w, snap.LastError+"\n")
	default:
		io.WriteString(w, "ok\n")
	}
}
