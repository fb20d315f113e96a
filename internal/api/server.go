package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/reelbot/reelbot/internal/config"
	"github.com/reelbot/reelbot/internal/session"
)

// Server exposes the health surface used by container probes.
type Server struct {
	echo    *echo.Echo
	store   *session.Store
	logger  zerolog.Logger
	started time.Time
}

// NewServer creates the health API server.
func NewServer(store *session.Store, logger zerolog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{
		echo:    e,
		store:   store,
		logger:  logger.With().Str("component", "api").Logger(),
		started: time.Now(),
	}

	e.GET("/healthz", s.healthz)
	e.GET("/api/status", s.status)

	return s
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start(address string) error {
	s.logger.Info().Str("address", address).Msg("Starting health API")
	return s.echo.Start(address)
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

type statusResponse struct {
	Version         string `json:"version"`
	UptimeSeconds   int64  `json:"uptimeSeconds"`
	PendingSessions int    `json:"pendingSessions"`
}

func (s *Server) status(c echo.Context) error {
	pending, err := s.store.Count(c.Request().Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to count sessions")
		return echo.NewHTTPError(http.StatusInternalServerError, "failed to read session store")
	}

	return c.JSON(http.StatusOK, statusResponse{
		Version:         config.Version,
		UptimeSeconds:   int64(time.Since(s.started).Seconds()),
		PendingSessions: pending,
	})
}
