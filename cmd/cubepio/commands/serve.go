package commands

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"git.home.luguber.info/inful/cubepio/internal/daemon"
)

// ServeCmd implements 'serve'.
type ServeCmd struct {
	StopTimeout time.Duration `help:"Grace period for shutdown" default:"30s"`
}

func (s *ServeCmd) Run(g *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var opts []daemon.Option
	if g != nil && g.Runner != nil {
		opts = append(opts, daemon.WithRunner(g.Runner))
	}
	d, err := daemon.New(cfg, opts...)
	if err != nil {
		return err
	}
	if err := d.Start(ctx); err != nil {
		_ = d.Stop(context.Background())
		return err
	}

	slog.Info("Daemon started, waiting for shutdown signal...")
	<-ctx.Done()
	slog.Info("Shutdown signal received, stopping daemon...")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), s.StopTimeout)
	defer stopCancel()
	return d.Stop(stopCtx)
}
