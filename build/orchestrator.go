package build

// This file contains the orchestration of one build: clone, locate and flash
// the bitstream, run the test suite and record the outcome. Every failure on
// the way ends up in the build report instead of escaping to the caller.

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hwci/hwci/camera"
	"github.com/hwci/hwci/config"
	"github.com/hwci/hwci/hook"
	"github.com/hwci/hwci/hwtest"
	"github.com/hwci/hwci/model"
	"github.com/hwci/hwci/script"
	"github.com/rs/zerolog"
)

// Options configures the orchestrator.
type Options struct {
	BuildsDir    string
	Bitfile      string
	FlashScript  string
	FlashTimeout time.Duration
	KeepClone    bool
}

// OptionsFromConfig extracts the build options of cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		BuildsDir:    cfg.BuildsDir(),
		Bitfile:      cfg.CI.Bitfile,
		FlashScript:  cfg.CI.FlashScript,
		FlashTimeout: cfg.CI.FlashTimeout.Std(),
		KeepClone:    cfg.CI.KeepClone,
	}
}

// Orchestrator runs builds.
type Orchestrator struct {
	logger  zerolog.Logger
	bus     *hook.Bus
	cloner  Cloner
	scripts *script.Registry
	catalog *hwtest.Catalog
	session camera.Session
	suites  hwtest.Suites
	opts    Options
	now     func() time.Time
}

// NewOrchestrator creates an orchestrator. The session is shared by every
// build.
func NewOrchestrator(
	logger zerolog.Logger,
	bus *hook.Bus,
	cloner Cloner,
	scripts *script.Registry,
	catalog *hwtest.Catalog,
	session camera.Session,
	suites hwtest.Suites,
	opts Options,
) *Orchestrator {
	return &Orchestrator{
		logger:  logger,
		bus:     bus,
		cloner:  cloner,
		scripts: scripts,
		catalog: catalog,
		session: session,
		suites:  suites,
		opts:    opts,
		now:     time.Now,
	}
}

// Build runs req and returns its report. The report is complete even when
// the build failed. The error is only set when the report itself could not
// be stored.
func (o *Orchestrator) Build(ctx context.Context, req model.BuildRequest) (model.BuildReport, error) {
	start := o.now()
	report := model.BuildReport{
		RequestID:      req.ID,
		Start:          start,
		Repository:     req.RepositoryURL,
		RepositoryName: RepositoryName(req.RepositoryURL),
		Commit:         req.CommitRef,
		Branch:         req.Branch,
		TestSuite:      req.TestSuite,
	}
	logger := o.logger.With().Str("request", req.ID.String()).Str("repository", report.RepositoryName).Logger()

	folder, err := createFolder(o.opts.BuildsDir, report.RepositoryName, start)
	if err != nil {
		// without a folder there is nowhere to put the report
		report.Status = model.BuildStatusFailure
		report.Error = err.Error()
		report.End = o.now()
		return report, err
	}
	report.Folder = folder
	logger.Info().Str("branch", req.Branch).Str("commit", req.CommitRef).Str("folder", folder).Msg("Starting build")

	err = o.guard(func() error {
		if err := o.bus.DoAction(ctx, hook.PreBuild, hook.Args{"request": req, "folder": folder}); err != nil {
			return fmt.Errorf("pre_build hook failed: %w", err)
		}
		return o.run(ctx, logger, req, &report)
	})

	if !o.opts.KeepClone {
		if rmErr := os.RemoveAll(filepath.Join(folder, sourceDir)); rmErr != nil {
			logger.Warn().Err(rmErr).Msg("Failed to remove clone")
		}
	}

	if report.TestReportRef == "" {
		if terr := o.writeEmptyTestReport(&report); terr != nil {
			logger.Warn().Err(terr).Msg("Failed to write empty test report")
		}
	}

	switch {
	case err == nil:
		report.Status = model.BuildStatusSuccess
	case ctx.Err() != nil:
		report.Status = model.BuildStatusInterrupted
		report.Error = err.Error()
	default:
		report.Status = model.BuildStatusFailure
		report.Error = err.Error()
	}
	report.End = o.now()

	// filters see a finished report; a failing filter must not lose it
	var filtered model.BuildReport
	ferr := recovered(func() error {
		var err error
		filtered, err = hook.Filter(context.WithoutCancel(ctx), o.bus, hook.BuildReport, report, hook.Args{"request": req})
		return err
	})
	if ferr != nil {
		logger.Warn().Err(ferr).Msg("build_report filter failed, keeping unfiltered report")
	} else {
		report = filtered
	}

	if err := writeBuildReport(folder, report); err != nil {
		logger.Error().Err(err).Msg("Failed to write build report")
		return report, err
	}

	event := logger.Info()
	if report.Status != model.BuildStatusSuccess {
		event = logger.Error().Str("error", report.Error)
	}
	event.Str("status", string(report.Status)).Dur("duration", report.Duration()).Msg("Build finished")
	return report, nil
}

func (o *Orchestrator) run(ctx context.Context, logger zerolog.Logger, req model.BuildRequest, report *model.BuildReport) error {
	source := filepath.Join(report.Folder, sourceDir)
	commit, err := o.cloner.Clone(ctx, req.RepositoryURL, req.Branch, req.CommitRef, source)
	if err != nil {
		return err
	}
	report.Commit = commit

	workspace := o.scripts.Workspace()
	workspace.Bind(source)
	defer workspace.Unbind()

	bitfile, err := findBitfile(source, o.opts.Bitfile)
	if err != nil {
		return err
	}
	dst := filepath.Join(report.Folder, filepath.Base(bitfile))
	if err := copyFile(bitfile, dst); err != nil {
		return fmt.Errorf("failed to copy bitfile: %w", err)
	}
	report.BitfilePath = dst
	logger.Debug().Str("bitfile", dst).Msg("Copied bitfile")

	if err := o.flash(ctx, logger, dst); err != nil {
		return err
	}

	tests := o.suites.Resolve(req.TestSuite)
	pipeline := hwtest.NewPipeline(logger, o.bus, o.catalog, o.session, o.scripts)
	tc := pipeline.Run(ctx, req.TestSuite, tests, filepath.Join(report.Folder, filepath.Dir(TestReportFile)))

	testReport, err := hwtest.NewReport(tc)
	if err != nil {
		return err
	}
	if err := writeTestReport(report.Folder, testReport); err != nil {
		return fmt.Errorf("failed to write test report: %w", err)
	}
	report.TestReportRef = TestReportFile
	report.TestCount = testReport.TestCount
	report.SuccessRatio = testReport.SuccessRatio

	if tc.SetupError != nil {
		return fmt.Errorf("failed to set up camera: %w", tc.SetupError)
	}
	if ctx.Err() != nil {
		return fmt.Errorf("test run interrupted: %w", context.Cause(ctx))
	}
	return nil
}

// writeEmptyTestReport stores a test report without results for a build
// which never reached its test run.
func (o *Orchestrator) writeEmptyTestReport(report *model.BuildReport) error {
	tc := hwtest.NewContext(report.TestSuite, filepath.Join(report.Folder, filepath.Dir(TestReportFile)))
	tc.Camera = o.session.Name()
	tc.Start = o.now()
	tc.End = tc.Start

	testReport, err := hwtest.NewReport(tc)
	if err != nil {
		return err
	}
	testReport.Results = []model.TestOutcome{}
	if err := writeTestReport(report.Folder, testReport); err != nil {
		return fmt.Errorf("failed to write test report: %w", err)
	}
	report.TestReportRef = TestReportFile
	report.TestCount = 0
	report.SuccessRatio = 0
	return nil
}

func (o *Orchestrator) flash(ctx context.Context, logger zerolog.Logger, bitfile string) error {
	sc, err := o.scripts.Get(o.opts.FlashScript)
	if err != nil {
		return fmt.Errorf("failed to flash bitfile: %w", err)
	}
	inv, err := sc.Invoke(ctx, []string{bitfile}, o.opts.FlashTimeout)
	if err != nil {
		return fmt.Errorf("failed to flash bitfile: %w", err)
	}
	if inv.ExitCode != 0 {
		return fmt.Errorf("flash script exited with code %d: %s", inv.ExitCode, inv.Stderr)
	}
	logger.Info().Dur("duration", inv.Duration).Msg("Flashed bitfile")
	return nil
}

// guard runs fn and turns a panic into an error.
func (o *Orchestrator) guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error().Interface("panic", r).Msg("Build panicked")
			err = fmt.Errorf("build panicked: %v", r)
		}
	}()
	return fn()
}

// FromConfig creates the manual build request described by cfg: the
// configured branch head, tested with the configured suite.
func FromConfig(cfg *config.Config) (model.BuildRequest, error) {
	if cfg.CI.RepositoryURL == "" {
		return model.BuildRequest{}, errors.New("ci.repository_url is not configured")
	}
	return model.NewBuildRequest(cfg.CI.RepositoryURL, cfg.CI.Branch, model.HeadCommit, cfg.CI.TestSuite), nil
}
