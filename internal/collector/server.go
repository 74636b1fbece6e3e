package collector

import (
	"context"
	"net/http"
	"time"

	"github.com/trace2pass/trace2pass/internal/baselib/actor"
	"github.com/trace2pass/trace2pass/internal/collectorstore"
)

// Server is the collector's REST + websocket front door. It holds no
// domain logic of its own: every handler asks the collector actor and
// formats the response.
type Server struct {
	actorRef actor.ActorRef[Request, Response]
	hub      *Hub

	mux  *http.ServeMux
	srv  *http.Server
	addr string
}

// Config holds the collector server's configuration.
type Config struct {
	Addr string
}

// DefaultConfig returns the default collector server configuration.
func DefaultConfig() *Config {
	return &Config{Addr: ":8090"}
}

// NewServer wires a collector Server around an already-spawned actor
// reference. Callers typically obtain actorRef via
// ServiceKey.Spawn(system, id, NewService(store)).
func NewServer(cfg *Config, actorRef actor.ActorRef[Request, Response]) *Server {
	s := &Server{
		actorRef: actorRef,
		hub:      NewHub(),
		mux:      http.NewServeMux(),
		addr:     cfg.Addr,
	}
	s.registerAPIRoutes()
	return s
}

// Start runs the hub's broadcast loop and blocks serving HTTP until
// the listener fails or Shutdown is called.
func (s *Server) Start() error {
	go s.hub.Run()

	s.srv = &http.Server{
		Addr:         s.addr,
		Handler:      s.mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s.srv.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server and the websocket hub.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Stop()
	if s.srv != nil {
		return s.srv.Shutdown(ctx)
	}
	return nil
}

// Spawn registers a collector Service actor under ServiceKey on as,
// identified by id, and returns its reference.
func Spawn(as *actor.ActorSystem, id string, store *collectorstore.Store) actor.ActorRef[Request, Response] {
	return ServiceKey.Spawn(as, id, NewService(store))
}
