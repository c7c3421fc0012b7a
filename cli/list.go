package cli

// This file contains the list command for displaying previous builds.

import (
	"fmt"
	"time"

	"github.com/hwci/hwci/history"
	"github.com/hwci/hwci/model"
	"github.com/urfave/cli/v2"
)

func (a *App) list(ctx *cli.Context) error {
	filterBranch := ctx.String("branch")
	limit := ctx.Int("limit")

	cfg, err := a.loadConfig(ctx)
	if err != nil {
		return err
	}

	// Load all build reports, newest first
	entries, err := history.LoadEntries(a.logger, cfg.BuildsDir())
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}

	// Apply branch filter if specified
	var filteredEntries []history.Entry
	for _, entry := range entries {
		if filterBranch == "" || entry.Report.Branch == filterBranch {
			filteredEntries = append(filteredEntries, entry)
		}
	}

	if len(filteredEntries) == 0 {
		if filterBranch != "" {
			fmt.Printf("No builds found on branch: %s\n", filterBranch)
		} else {
			fmt.Println("No builds found")
			fmt.Printf("Builds are saved to %s/<repository>__<timestamp>/\n", cfg.BuildsDir())
		}
		return nil
	}

	// Apply limit
	displayRuns := filteredEntries
	if limit > 0 && limit < len(displayRuns) {
		displayRuns = displayRuns[:limit]
	}

	fmt.Printf("\n=== Builds (%d total) ===\n\n", len(filteredEntries))

	for _, entry := range displayRuns {
		r := entry.Report
		timestamp := r.Start.Format("2006-01-02 15:04:05")
		duration := r.Duration().Round(time.Millisecond)

		status := "✓"
		switch r.Status {
		case model.BuildStatusFailure:
			status = "✗"
		case model.BuildStatusInterrupted:
			status = "!"
		}

		shortID := r.RequestID.String()[:8]
		fmt.Printf("%s  %s  [%s]  %s  id=%s\n", status, timestamp, duration, r.Status, shortID)
		fmt.Printf("   Repository: %s (%s @ %s)\n", r.RepositoryName, r.Branch, shortCommit(r.Commit))
		if r.TestReportRef != "" {
			fmt.Printf("   Tests: %s, %d run, %.0f%% passed\n", r.TestSuite, r.TestCount, r.SuccessRatio*100)
		}
		if r.Error != "" {
			fmt.Printf("   Error: %s\n", r.Error)
		}
		fmt.Printf("   %s\n", entry.FullPath)
		fmt.Println()
	}

	fmt.Println("View a build: hwci view <ID>")

	return nil
}
