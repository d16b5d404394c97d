package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ohowland/cgc_offgrid/internal/pkg/asset/ess"
	"github.com/ohowland/cgc_offgrid/internal/pkg/config"
	"github.com/ohowland/cgc_offgrid/internal/pkg/logging"
	"github.com/ohowland/cgc_offgrid/internal/pkg/msg"
	"github.com/ohowland/cgc_offgrid/internal/pkg/startstop"
)

func main() {
	path := flag.String("config", "./config/cgc.yaml", "path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting CGC Off-Grid v0.1.0", zap.String("config", *path))
	if err := run(cfg, logger); err != nil {
		logger.Fatal("stopped with error", zap.Error(err))
	}
	logger.Info("Stopping system")
}

func run(cfg config.Config, logger *zap.Logger) error {
	sys, err := buildSystem(cfg, logger)
	if err != nil {
		return err
	}
	defer sys.shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sys.worker.Run(ctx)
	})
	g.Go(func() error {
		return watchStartStop(ctx, sys, logger)
	})
	g.Go(func() error {
		return watchTransitions(ctx, sys, logger)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// watchStartStop maps SIGUSR1 to START and SIGUSR2 to STOP.
func watchStartStop(ctx context.Context, sys *system, logger *zap.Logger) error {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGUSR1, syscall.SIGUSR2)
	defer signal.Stop(sigs)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sig := <-sigs:
			target := startstop.Start
			if sig == syscall.SIGUSR2 {
				target = startstop.Stop
			}
			logger.Info("start/stop request", zap.Stringer("signal", sig), zap.Stringer("target", target))
			sys.ess.SetStartStop(target)
		}
	}
}

// watchTransitions logs every off-grid state change of the ESS.
func watchTransitions(ctx context.Context, sys *system, logger *zap.Logger) error {
	pid := uuid.New()
	ch := sys.ess.Subscribe(pid, msg.Transition)
	defer sys.ess.Unsubscribe(pid)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			if t, ok := m.Payload().(ess.Transition); ok {
				logger.Info("off-grid transition", zap.Stringer("from", t.From), zap.Stringer("to", t.To))
			}
		}
	}
}
