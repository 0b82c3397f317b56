package httpapi

import (
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/service-matching/internal/auth"
	"github.com/example/service-matching/internal/directory"
	"github.com/example/service-matching/internal/match"
	"github.com/example/service-matching/internal/presence"
	"github.com/example/service-matching/internal/relay"
)

// Server exposes the socket endpoint plus health and metrics. All
// engine traffic flows over /ws; the rest of the router is operational
// surface.
type Server struct {
	logger      *slog.Logger
	auth        *auth.Authenticator
	registry    *presence.Registry
	coordinator *match.Coordinator
	handshake   *match.Handshake
	relay       *relay.Relay
	directory   directory.Directory
	mux         *mux.Router
}

func NewServer(
	logger *slog.Logger,
	authenticator *auth.Authenticator,
	registry *presence.Registry,
	coordinator *match.Coordinator,
	handshake *match.Handshake,
	rel *relay.Relay,
	dir directory.Directory,
) *Server {
	s := &Server{
		logger:      logger,
		auth:        authenticator,
		registry:    registry,
		coordinator: coordinator,
		handshake:   handshake,
		relay:       rel,
		directory:   dir,
		mux:         mux.NewRouter(),
	}
	s.registerMiddleware()
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/ws", s.handleWS)
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
		w.Write([]byte("ok"))
	}).Methods("GET")
	s.mux.Handle("/metrics", promhttp.Handler())
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.mux.ServeHTTP(w, r) }

func newID() string { b := make([]byte, 8); _, _ = rand.Read(b); return hex.EncodeToString(b) }
