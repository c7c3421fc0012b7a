package cli

// This file contains the view command for displaying the reports of a
// previous build.

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hwci/hwci/history"
	"github.com/urfave/cli/v2"
)

func removeFirstDashDash(in []string) []string {
	if len(in) > 0 && in[0] == "--" {
		return in[1:]
	}
	return in
}

func parseViewArgs(in []string) (idArg string, tests []string) {
	if len(in) == 0 {
		return "0", nil
	}

	// If first arg is "--", use default "0" and rest are test names
	if in[0] == "--" {
		return "0", in[1:]
	}

	// First arg is the ID/index, rest are test names (with optional "--" removed)
	return in[0], removeFirstDashDash(in[1:])
}

// selectEntry resolves an index (0, -1, ...) or request ID prefix against
// entries sorted newest first.
func selectEntry(entries []history.Entry, arg string) (history.Entry, error) {
	if parsed, err := strconv.ParseInt(arg, 10, 64); err == nil {
		if parsed > 0 {
			// Positive integers are not allowed
			return history.Entry{}, fmt.Errorf("invalid index: %s (use 0 for last, -1 for second-to-last, -2 for third-to-last, etc.)", arg)
		}
		index := int(-parsed)
		if index >= len(entries) {
			return history.Entry{}, fmt.Errorf("index %s out of range (only %d builds)", arg, len(entries))
		}
		return entries[index], nil
	}
	return history.Find(entries, strings.ToLower(arg))
}

func (a *App) view(ctx *cli.Context) error {
	arg, tests := parseViewArgs(ctx.Args().Slice())

	cfg, err := a.loadConfig(ctx)
	if err != nil {
		return err
	}

	entries, err := history.LoadEntries(a.logger, cfg.BuildsDir())
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}
	if len(entries) == 0 {
		return fmt.Errorf("no builds found")
	}

	entry, err := selectEntry(entries, arg)
	if err != nil {
		return err
	}
	return a.displayEntry(entry, tests)
}

func (a *App) displayEntry(entry history.Entry, tests []string) error {
	r := entry.Report

	// Print header
	fmt.Printf("=== Build: %s ===\n", r.RequestID.String()[:8])
	fmt.Printf("Status: %s\n", r.Status)
	if r.Error != "" {
		fmt.Printf("Error: %s\n", r.Error)
	}
	fmt.Printf("Time: %s\n", r.Start.Format("2006-01-02 15:04:05"))
	fmt.Printf("Duration: %s\n", r.Duration())
	fmt.Printf("Repository: %s\n", r.Repository)
	fmt.Printf("Git Commit: %s (%s)\n", shortCommit(r.Commit), r.Branch)
	if r.BitfilePath != "" {
		fmt.Printf("Bitfile: %s\n", r.BitfilePath)
	}
	fmt.Printf("Folder: %s\n", entry.FullPath)
	fmt.Println()

	testReport, found, err := entry.TestReport()
	if err != nil {
		return fmt.Errorf("failed to read test report: %w", err)
	}
	if !found {
		fmt.Println("No test report (the build did not reach the test stage)")
		return nil
	}

	fmt.Printf("=== Tests: %s (%d/%d passed) ===\n", testReport.Name, testReport.SuccessfulCount, testReport.TestCount)
	fmt.Printf("Camera: %s  Platform: %s\n", testReport.Camera, testReport.Platform)
	if testReport.SetupError != "" {
		fmt.Printf("Set-up error: %s\n", testReport.SetupError)
	}
	fmt.Println()

	wanted := make(map[string]bool, len(tests))
	for _, name := range tests {
		wanted[name] = true
	}
	for _, outcome := range testReport.Results {
		if len(wanted) > 0 && !wanted[outcome.Name] {
			continue
		}
		status := "✓"
		if !outcome.Passing {
			status = "✗"
		}
		fmt.Printf("%s %s (exit=%d)\n", status, outcome.Name, outcome.ExitCode)
		if outcome.Description != "" {
			fmt.Printf("  %s\n", outcome.Description)
		}
		fmt.Println(outcome.Text)
		fmt.Println()
	}
	return nil
}
