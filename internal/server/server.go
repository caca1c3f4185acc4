// Package server exposes the session to the incident dashboard over HTTP and
// a WebSocket push stream.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/emberwatch/firecommand/internal/config"
	"github.com/emberwatch/firecommand/internal/monitor"
	"github.com/emberwatch/firecommand/internal/session"
	"github.com/emberwatch/firecommand/pkg/streaming"
	"github.com/gorilla/mux"
)

// Dependencies holds everything the server routes to. Runs and Monitor are
// optional.
type Dependencies struct {
	Config  config.ServerConfig
	Session *session.Session
	Hub     *Hub
	Runs    RunStore
	Monitor *monitor.Service
	Logger  *slog.Logger
}

// Server holds the router and listener.
type Server struct {
	cfg        config.ServerConfig
	httpServer *http.Server
	router     *mux.Router
	hub        *Hub
	log        *slog.Logger
}

// New creates a server and attaches the hub to the session controls.
func New(deps Dependencies) *Server {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Hub == nil {
		deps.Hub = NewHub(deps.Config.AllowOrigins, deps.Logger)
	}
	s := &Server{
		cfg:    deps.Config,
		router: mux.NewRouter(),
		hub:    deps.Hub,
		log:    deps.Logger,
	}

	controls := Controls{session: deps.Session}
	timeout := deps.Config.WriteTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	s.hub.Attach(deps.Session, func(env streaming.Envelope) (any, error) {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return controls.Envelope(ctx, env)
	})

	apiRouter := s.router.PathPrefix("/api").Subrouter()
	NewHandler(deps.Session, deps.Runs, deps.Monitor, deps.Logger).RegisterRoutes(apiRouter)
	s.router.Handle("/ws", s.hub).Methods("GET")

	s.httpServer = &http.Server{
		Addr:         deps.Config.Listen,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: deps.Config.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Handler returns the root router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start begins listening for HTTP connections. It returns nil after Stop.
func (s *Server) Start() error {
	s.log.Info("Server listening", "addr", s.cfg.Listen)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop disconnects WebSocket clients and gracefully shuts down the listener.
func (s *Server) Stop(ctx context.Context) error {
	s.hub.Close()
	return s.httpServer.Shutdown(ctx)
}
