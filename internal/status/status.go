// Package status serves the relay's read-only HTTP surface: health,
// registry snapshots, and Prometheus metrics.
package status

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Registry is the view of the room registry the status server needs.
type Registry interface {
	ListRooms() map[string]map[string]any
	ListClients() map[string]map[string]any
}

// Server answers GET /healthz, /api/rooms, /api/clients, and /metrics.
// Snapshots come from the same locked reads as LIST_ROOMS/LIST_CLIENTS.
type Server struct {
	srv             *http.Server
	shutdownTimeout time.Duration
	log             *zerolog.Logger
}

// New builds a status server bound to addr.
func New(addr string, registry Registry, shutdownTimeout time.Duration, logger *zerolog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	router.GET("/api/rooms", func(c *gin.Context) {
		c.JSON(http.StatusOK, registry.ListRooms())
	})
	router.GET("/api/clients", func(c *gin.Context) {
		c.JSON(http.StatusOK, registry.ListClients())
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		},
		shutdownTimeout: shutdownTimeout,
		log:             logger,
	}
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Run serves until ctx cancellation or a fatal listen error.
func (s *Server) Run(ctx context.Context) error {
	serverErr := make(chan error, 1)

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	s.log.Info().Str("addr", s.srv.Addr).Msg("status server listening")

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()

		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-serverErr
	}
}
