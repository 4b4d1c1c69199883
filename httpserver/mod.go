// Package httpserver exposes the status and the metrics of a party over
// HTTP.
package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"golang.org/x/xerrors"
)

// Session is the view of a session served by /session.
type Session interface {
	ID() string
	State() fmt.Stringer
}

// Status is the body of /session.
type Status struct {
	Party   int    `json:"Party"`
	Session string `json:"Session"`
	State   string `json:"State"`
}

// Server serves /session and /metrics.
type Server struct {
	party    int
	session  Session
	gatherer prometheus.Gatherer

	server   *http.Server
	listener net.Listener
}

// NewServer returns a server for the party. A nil gatherer serves the
// default registry.
func NewServer(party int, session Session, gatherer prometheus.Gatherer) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Server{party: party, session: session, gatherer: gatherer}
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", handler)
	mux.HandleFunc("/session", s.sessionHandler)
	mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	return mux
}

// Start listens on addr and serves in the background.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return xerrors.Errorf("failed to listen on %s: %v", addr, err)
	}
	s.listener = ln
	s.server = &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}

	go func() {
		err := s.server.Serve(ln)
		if err != nil && err != http.ErrServerClosed {
			log.Err(err).Msg("http server stopped")
		}
	}()

	log.Info().Msgf("http server listening on %s", ln.Addr())
	return nil
}

// Addr returns the address the server listens on.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down.
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func handler(w http.ResponseWriter, r *http.Request) {
	http.Error(w, fmt.Sprintf("%s is not served", r.URL.Path), http.StatusNotFound)
}

func (s *Server) sessionHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "only GET is allowed", http.StatusMethodNotAllowed)
		return
	}

	status := Status{
		Party:   s.party,
		Session: s.session.ID(),
		State:   s.session.State().String(),
	}

	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(status)
	if err != nil {
		log.Err(err).Msg("failed to write status")
	}
}
