// Package api wires the engine's WebSocket transport and health surface
// onto an HTTP server: Echo v5, one health endpoint, one WS upgrade
// route. The client drives everything over the single WebSocket
// connection, so there is no separate REST CRUD surface.
package api

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/recallhq/engine/pkg/config"
	"github.com/recallhq/engine/pkg/events"
	"github.com/recallhq/engine/pkg/session"
)

// Server is the engine's HTTP/WebSocket API surface.
type Server struct {
	echo       *echo.Echo
	httpServer *http.Server

	cfg         config.ServerConfig
	engine      *session.Engine
	connManager *events.ConnectionManager
	logger      *slog.Logger
}

// NewServer creates a new API server with Echo v5, bound to an already
// constructed Engine and ConnectionManager.
func NewServer(cfg config.ServerConfig, engine *session.Engine, connManager *events.ConnectionManager, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	e := echo.New()
	s := &Server{
		echo:        e,
		cfg:         cfg,
		engine:      engine,
		connManager: connManager,
		logger:      logger,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.echo.Use(middleware.BodyLimit(2 * 1024 * 1024))
	s.echo.Use(securityHeaders())

	s.echo.GET("/health", s.healthHandler)

	v1 := s.echo.Group("/api/v1")
	v1.GET("/ws", s.wsHandler)
}

// Start starts the HTTP server on the given address and blocks until
// Shutdown (it returns ListenAndServe's error).
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.echo}
	return s.httpServer.ListenAndServe()
}

// StartWithListener starts the HTTP server on a pre-created listener,
// used by tests serving on a random OS-assigned port.
func (s *Server) StartWithListener(ln net.Listener) error {
	s.httpServer = &http.Server{Handler: s.echo}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) healthHandler(c *echo.Context) error {
	_, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	return c.JSON(http.StatusOK, &HealthResponse{
		Status:            "healthy",
		ActiveConnections: s.connManager.ActiveConnections(),
	})
}
