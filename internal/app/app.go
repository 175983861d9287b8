// Package app wires the registry, TCP relay, and optional status server
// together.
package app

import (
	"context"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/scenesync/relay/internal/config"
	"github.com/scenesync/relay/internal/core"
	"github.com/scenesync/relay/internal/server"
	"github.com/scenesync/relay/internal/status"
)

// App owns the relay's long-running pieces.
type App struct {
	cfg    config.Config
	log    *zerolog.Logger
	hub    *core.Hub
	server *server.Server
	status *status.Server
}

// New constructs the application with provided configuration. The
// status server is only wired when a status address is configured.
func New(cfg config.Config, logger *zerolog.Logger) *App {
	hub := core.NewHub(logger)

	a := &App{
		cfg:    cfg,
		log:    logger,
		hub:    hub,
		server: server.New(cfg, hub, logger),
	}
	if cfg.StatusAddr != "" {
		a.status = status.New(cfg.StatusAddr, hub, cfg.ShutdownTimeout, logger)
	}
	return a
}

// Run binds the TCP port, then serves until context cancellation or the
// first fatal error. A bind failure surfaces before anything starts.
func (a *App) Run(ctx context.Context) error {
	if err := a.server.Listen(); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.server.Run(ctx)
	})
	if a.status != nil {
		g.Go(func() error {
			return a.status.Run(ctx)
		})
	}
	return g.Wait()
}
