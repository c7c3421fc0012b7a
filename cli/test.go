package cli

// This file contains the test command which runs tests against the camera
// as it is, without building or flashing.

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hwci/hwci/hwtest"
	"github.com/hwci/hwci/persist"
	"github.com/urfave/cli/v2"
)

func (a *App) runTests(ctx *cli.Context) error {
	format := hwtest.Format(ctx.String("format"))
	switch format {
	case hwtest.FormatText, hwtest.FormatMarkdown, hwtest.FormatHTML:
	default:
		return fmt.Errorf("unknown format %q (use text, markdown or html)", format)
	}

	cfg, err := a.loadConfig(ctx)
	if err != nil {
		return err
	}
	rt, err := a.newRuntime(ctx.Context, cfg)
	if err != nil {
		return err
	}

	name := ctx.Args().First()
	if name == "" {
		name = cfg.CI.TestSuite
	}

	dir := ctx.String("dir")
	if dir == "" {
		dir = filepath.Join(cfg.Home, "tests", time.Now().Format("2006_01_02__15_04_05"))
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create test directory: %w", err)
	}

	tests := hwtest.Suites(cfg.Tests.Suites).Resolve(name)
	pipeline := hwtest.NewPipeline(a.logger, rt.bus, rt.catalog, rt.session, rt.scripts)
	tc := pipeline.Run(ctx.Context, name, tests, dir)

	report, err := hwtest.NewReport(tc)
	if err != nil {
		return err
	}
	reportPath := filepath.Join(dir, "report.json")
	if err := persist.WriteJSON(reportPath, report); err != nil {
		return fmt.Errorf("failed to write test report: %w", err)
	}

	for _, e := range tc.Results.Entries() {
		status := "✓"
		if !hwtest.Passing(e.Result) {
			status = "✗"
		}
		fmt.Printf("%s %s (exit=%d)\n", status, e.Name, e.Result.ExitCode())
		fmt.Println(e.Result.Render(format))
		fmt.Println()
	}
	fmt.Printf("%d/%d tests passed (%.0f%%) in %s\n",
		report.SuccessfulCount, report.TestCount, report.SuccessRatio*100, report.Duration().Round(time.Millisecond))
	fmt.Printf("Report: %s\n", reportPath)

	if report.SetupError != "" {
		return fmt.Errorf("camera set-up failed: %s", report.SetupError)
	}
	if report.SuccessfulCount != report.TestCount {
		return cli.Exit("", 1)
	}
	return nil
}
