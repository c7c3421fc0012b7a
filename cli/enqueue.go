package cli

// This file contains the commands which add to or inspect the build queue
// and the build lock.

import (
	"errors"
	"fmt"
	"time"

	"github.com/hwci/hwci/build"
	"github.com/hwci/hwci/lock"
	"github.com/hwci/hwci/model"
	"github.com/hwci/hwci/queue"
	"github.com/urfave/cli/v2"
)

func (a *App) enqueue(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return fmt.Errorf("expected exactly one repository URL, got %d arguments", ctx.NArg())
	}
	cfg, err := a.loadConfig(ctx)
	if err != nil {
		return err
	}

	suite := ctx.String("suite")
	if suite == "" {
		suite = cfg.CI.TestSuite
	}
	commit := ctx.String("commit")
	if commit == "" {
		commit = model.HeadCommit
	}

	req := model.FromPush(model.PushEvent{
		Repository: ctx.Args().First(),
		Branch:     ctx.String("branch"),
		Commit:     commit,
	}, suite)
	if err := queue.New(a.logger, cfg.Home).Enqueue(ctx.Context, req); err != nil {
		return fmt.Errorf("failed to enqueue build: %w", err)
	}
	fmt.Println(req.ID)
	return nil
}

func (a *App) buildFromConfig(ctx *cli.Context) error {
	cfg, err := a.loadConfig(ctx)
	if err != nil {
		return err
	}
	req, err := build.FromConfig(cfg)
	if err != nil {
		return err
	}
	if err := queue.New(a.logger, cfg.Home).Enqueue(ctx.Context, req); err != nil {
		return fmt.Errorf("failed to enqueue build: %w", err)
	}
	fmt.Println(req.ID)
	return nil
}

func (a *App) queueList(ctx *cli.Context) error {
	cfg, err := a.loadConfig(ctx)
	if err != nil {
		return err
	}

	holder, held, err := lock.New(a.logger, cfg.Home).Holder(ctx.Context)
	if err != nil {
		return fmt.Errorf("failed to read build lock: %w", err)
	}
	if held {
		fmt.Printf("Building: %s (request %s)\n\n", holder, holder.RequestID)
	}

	requests, err := queue.New(a.logger, cfg.Home).List(ctx.Context)
	if err != nil {
		return fmt.Errorf("failed to read queue: %w", err)
	}
	if len(requests) == 0 {
		fmt.Println("No pending build requests")
		return nil
	}

	fmt.Printf("=== Queue (%d pending) ===\n\n", len(requests))
	for i, req := range requests {
		fmt.Printf("%d. id=%s  queued %s ago\n", i+1, req.ID.String()[:8], time.Since(req.EnqueuedAt).Round(time.Second))
		fmt.Printf("   Repository: %s\n", req.RepositoryURL)
		fmt.Printf("   Branch: %s  Commit: %s\n", req.Branch, shortCommit(req.CommitRef))
		fmt.Printf("   Suite: %s\n", req.TestSuite)
		fmt.Println()
	}
	return nil
}

func (a *App) unlock(ctx *cli.Context) error {
	cfg, err := a.loadConfig(ctx)
	if err != nil {
		return err
	}

	holder, err := lock.New(a.logger, cfg.Home).ForceRelease(ctx.Context, cfg.CI.StaleLockAge.Std(), ctx.Bool("force"))
	var notLocked *lock.NotLockedError
	switch {
	case errors.As(err, &notLocked):
		fmt.Println("Build lock is not held")
		return nil
	case errors.Is(err, lock.ErrNotStale):
		return fmt.Errorf("%w (younger than %s or holder alive; use --force to release anyway)", err, cfg.CI.StaleLockAge.Std())
	case err != nil:
		return err
	}
	fmt.Printf("Released build lock held by %s\n", holder)
	return nil
}

func shortCommit(commit string) string {
	if len(commit) > 8 && commit != model.HeadCommit {
		return commit[:8]
	}
	return commit
}
