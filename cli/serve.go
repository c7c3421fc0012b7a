package cli

// This file contains the serve command which runs the build worker.

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hwci/hwci/build"
	"github.com/hwci/hwci/lock"
	"github.com/hwci/hwci/queue"
	"github.com/urfave/cli/v2"
)

func (a *App) serve(ctx *cli.Context) error {
	cfg, err := a.loadConfig(ctx)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx.Context)
	defer cancel()

	rt, err := a.newRuntime(runCtx, cfg)
	if err != nil {
		return err
	}

	orchestrator := build.NewOrchestrator(
		a.logger,
		rt.bus,
		build.NewGitCloner(a.logger),
		rt.scripts,
		rt.catalog,
		rt.session,
		cfg.Tests.Suites,
		build.OptionsFromConfig(cfg),
	)
	worker := build.NewWorker(
		a.logger,
		queue.New(a.logger, cfg.Home),
		lock.New(a.logger, cfg.Home),
		orchestrator,
		rt.bus,
		cfg.CI.PollInterval.Std(),
	)

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(signals)

	go func() {
		for {
			select {
			case <-runCtx.Done():
				return
			case sig := <-signals:
				if sig == syscall.SIGINT && worker.Interrupt() {
					continue
				}
				a.logger.Info().Str("signal", sig.String()).Msg("Stopping worker")
				cancel()
				return
			}
		}
	}()

	if err := worker.Run(runCtx); err != nil {
		return fmt.Errorf("worker stopped: %w", err)
	}
	return nil
}
