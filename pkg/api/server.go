// Package api provides the thin HTTP/SSE transport surface for the
// orchestrator: session creation, turn submission, cancellation, and an
// SSE relay of timeline events, plus a health endpoint. Per the spec this
// layer is out-of-scope for the core invariants under test — it exists so
// the orchestrator runs as a real service, the way the teacher's own gin
// server does for its alert pipeline.
package api

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tarsiersync/forgecode/pkg/config"
	"github.com/tarsiersync/forgecode/pkg/ledger"
	"github.com/tarsiersync/forgecode/pkg/session"
	"github.com/tarsiersync/forgecode/pkg/tracking"
)

// Server is the HTTP/SSE API server.
type Server struct {
	engine     *gin.Engine
	httpServer *http.Server

	cfg      *config.Config
	store    *ledger.Store
	sessions *session.Manager
	loop     *session.Loop
	tracker  *tracking.Registry
	turns    *turnRegistry
}

// NewServer wires a Server from its components and registers routes.
func NewServer(cfg *config.Config, store *ledger.Store, sessions *session.Manager, loop *session.Loop, tracker *tracking.Registry) *Server {
	e := gin.Default()

	s := &Server{
		engine:   e,
		cfg:      cfg,
		store:    store,
		sessions: sessions,
		loop:     loop,
		tracker:  tracker,
		turns:    newTurnRegistry(),
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.engine.GET("/health", s.healthHandler)

	v1 := s.engine.Group("/api/v1")
	v1.POST("/sessions", s.createSessionHandler)
	v1.GET("/sessions/:id", s.getSessionHandler)
	v1.POST("/sessions/:id/turns", s.submitTurnHandler)
	v1.POST("/sessions/:id/cancel", s.cancelSessionHandler)
	v1.GET("/sessions/:id/stream", s.streamHandler)
}

// Start starts the HTTP server on addr (blocking).
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.engine}
	return s.httpServer.ListenAndServe()
}

// StartWithListener starts the HTTP server on a pre-created listener, used
// by tests that need a random OS-assigned port.
func (s *Server) StartWithListener(ln net.Listener) error {
	s.httpServer = &http.Server{Handler: s.engine}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// healthHandler handles GET /health, mirroring the teacher's health check
// (DB + config stats) but against pkg/ledger instead of ent.
func (s *Server) healthHandler(c *gin.Context) {
	reqCtx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if s.store == nil {
		c.JSON(http.StatusOK, &HealthResponse{
			Status:   "healthy",
			Database: &DatabaseHealth{Status: "not configured"},
		})
		return
	}

	dbHealth, err := s.store.Health(reqCtx)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, &HealthResponse{
			Status:   "unhealthy",
			Database: &DatabaseHealth{Status: "unhealthy"},
		})
		return
	}

	stats := s.cfg.Stats()
	c.JSON(http.StatusOK, &HealthResponse{
		Status: "healthy",
		Database: &DatabaseHealth{
			Status:          dbHealth.Status,
			OpenConnections: dbHealth.OpenConnections,
			InUse:           dbHealth.InUse,
			Idle:            dbHealth.Idle,
		},
		Configuration: &ConfigurationStats{
			LLMProviders: stats.LLMProviders,
			Tools:        stats.Tools,
		},
	})
}
