package hwtest

// This file contains the test execution pipeline. A run walks the requested
// test names in order, fires the per-test hooks and records exactly one
// result per name. Nothing a test case does can abort the run.

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hwci/hwci/camera"
	"github.com/hwci/hwci/hook"
	"github.com/hwci/hwci/script"
	"github.com/rs/zerolog"
)

// MessageNotFound is the message of the result recorded for unknown tests.
const MessageNotFound = "test not found"

// Pipeline runs test cases against one hardware session.
type Pipeline struct {
	logger  zerolog.Logger
	bus     *hook.Bus
	catalog *Catalog
	session camera.Session
	scripts *script.Registry
	now     func() time.Time
}

// NewPipeline creates a pipeline. The catalog must already have been passed
// through the load_tests filter.
func NewPipeline(logger zerolog.Logger, bus *hook.Bus, catalog *Catalog, session camera.Session, scripts *script.Registry) *Pipeline {
	return &Pipeline{
		logger:  logger,
		bus:     bus,
		catalog: catalog,
		session: session,
		scripts: scripts,
		now:     time.Now,
	}
}

// Run executes tests in order and returns the completed context. dir is the
// run folder handed to the cases.
func (p *Pipeline) Run(ctx context.Context, name string, tests []string, dir string) *Context {
	tc := NewContext(name, dir)
	tc.Camera = p.session.Name()
	tc.Start = p.now()

	if err := p.dispatch(ctx, hook.PreTestRun, hook.Args{"name": name, "tests": tests, "context": tc}); err != nil {
		p.logger.Warn().Err(err).Msg("pre_test_run hook failed")
	}

	if err := p.session.SetUp(ctx); err != nil {
		p.logger.Error().Err(err).Str("camera", tc.Camera).Msg("Failed to set up camera")
		tc.SetupError = err
	}

	env := &Env{Session: p.session, Scripts: p.scripts, Logger: p.logger, Dir: dir}
	for _, testName := range tests {
		p.runOne(ctx, tc, env, testName)
	}

	// tear down runs even when the run context is gone
	if err := p.session.TearDown(context.WithoutCancel(ctx)); err != nil {
		p.logger.Error().Err(err).Str("camera", tc.Camera).Msg("Failed to tear down camera")
	}

	tc.End = p.now()
	if err := p.dispatch(ctx, hook.PostTestRun, hook.Args{"name": name, "context": tc}); err != nil {
		p.logger.Warn().Err(err).Msg("post_test_run hook failed")
	}

	p.logger.Info().
		Str("run", name).
		Int("tests", tc.TestCount()).
		Int("successful", tc.SuccessfulCount()).
		Dur("duration", tc.End.Sub(tc.Start)).
		Msg("Test run completed")
	return tc
}

func (p *Pipeline) runOne(ctx context.Context, tc *Context, env *Env, testName string) {
	logger := p.logger.With().Str("test", testName).Logger()
	args := hook.Args{"name": testName, "context": tc}

	hookErr := errors.Join(
		p.dispatch(ctx, hook.PreTest, args),
		p.dispatch(ctx, hook.PreTestFor(testName), args),
	)

	var result Result
	c, err := p.catalog.Lookup(testName)
	switch {
	case err != nil:
		logger.Warn().Msg("Requested test is not registered")
		result = NewMessageResult(1, MessageNotFound)
	case hookErr != nil:
		logger.Warn().Err(hookErr).Msg("Pre-test hook failed")
		result = NewMessageResult(1, fmt.Sprintf("Pre-test hook failed with error %q", hookErr.Error()))
		tc.Descriptions[testName] = c.Description()
	case ctx.Err() != nil:
		result = NewMessageResult(1, fmt.Sprintf("Test was not started: %v", context.Cause(ctx)))
		tc.Descriptions[testName] = c.Description()
	default:
		logger.Debug().Msg("Running test")
		start := p.now()
		result = p.execute(ctx, c, env)
		tc.Descriptions[testName] = c.Description()
		logger.Info().Int("exit_code", result.ExitCode()).Dur("duration", p.now().Sub(start)).Msg("Test finished")
	}

	if tc.Results.Set(testName, result) {
		logger.Warn().Msg("Test requested more than once, keeping the last result")
	}

	if err := p.dispatch(ctx, hook.PostTest, hook.Args{"name": testName, "result": result, "context": tc}); err != nil {
		logger.Warn().Err(err).Msg("post_test hook failed")
	}
}

// dispatch fires the actions for name and turns a panic into an error.
func (p *Pipeline) dispatch(ctx context.Context, name string, args hook.Args) (err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().Str("hook", name).Interface("panic", r).Msg("Hook panicked")
			err = fmt.Errorf("hook %s panicked: %v", name, r)
		}
	}()
	return p.bus.DoAction(ctx, name, args)
}

// execute runs c and converts errors and panics into failing results.
func (p *Pipeline) execute(ctx context.Context, c Case, env *Env) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error().Str("test", c.Name()).Interface("panic", r).Msg("Test panicked")
			result = NewMessageResult(1, fmt.Sprintf("Test execution failed with error %q", fmt.Sprint(r)))
		}
	}()

	res, err := c.Run(ctx, env)
	if err != nil {
		return NewMessageResult(1, fmt.Sprintf("Test execution failed with error %q", err.Error()))
	}
	if res == nil {
		return NewMessageResult(1, "Test returned no result")
	}
	return res
}
