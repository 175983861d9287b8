package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/scenesync/relay/internal/app"
	"github.com/scenesync/relay/internal/config"
	"github.com/scenesync/relay/internal/log"
	"github.com/scenesync/relay/internal/proto"
)

// Version information set at build time.
var version = "dev"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		cfgPath    string
		host       string
		port       int
		logLevel   string
		latency    time.Duration
		statusAddr string
	)

	cmd := &cobra.Command{
		Use:           "relay",
		Short:         "Room-based command relay for collaborative scene editing",
		Long: `relay accepts TCP connections from collaborating clients, groups them
into named rooms, and rebroadcasts every command a member sends to all
other members in order. Command payloads are opaque; nothing is
persisted across restarts.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := log.New(logLevel)

			cfg, path, err := config.Load(logger, cfgPath)
			if err != nil {
				return err
			}

			// Flags set explicitly win over file and env values.
			flags := cmd.Flags()
			if flags.Changed("host") {
				cfg.Host = host
			}
			if flags.Changed("port") {
				cfg.Port = port
			}
			if flags.Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			if flags.Changed("latency") {
				cfg.Latency = latency
			}
			if flags.Changed("status-addr") {
				cfg.StatusAddr = statusAddr
			}

			logger = log.New(cfg.LogLevel)
			logger.Info().Str("config", path).Msg("configuration loaded")

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return app.New(cfg, logger).Run(ctx)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfgPath, "config", "", "path to config file")
	flags.StringVar(&host, "host", "", "TCP listen host")
	flags.IntVar(&port, "port", proto.DefaultPort, "TCP listen port")
	flags.StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flags.DurationVar(&latency, "latency", 0, "artificial delay applied to each outbound frame")
	flags.StringVar(&statusAddr, "status-addr", "", "HTTP status/metrics listen address (empty disables)")

	return cmd
}
