package script

// This file contains the subprocess execution shared by all script classes.

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"

	"al.essio.dev/pkg/shellescape"
	"github.com/rs/zerolog"
)

// waitDelay bounds how long a killed command may keep its output pipes open.
const waitDelay = time.Second

func quoteCommand(name string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, shellescape.Quote(name))
	for _, arg := range args {
		parts = append(parts, shellescape.Quote(arg))
	}
	return strings.Join(parts, " ")
}

func execute(ctx context.Context, logger zerolog.Logger, scriptName, dir, binary string, args []string, timeout time.Duration) (Invocation, error) {
	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, binary, args...)
	cmd.Dir = dir
	cmd.WaitDelay = waitDelay

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	logger.Debug().
		Str("script", scriptName).
		Str("command", quoteCommand(binary, args)).
		Dur("timeout", timeout).
		Msg("Invoking script")

	start := time.Now()
	err := cmd.Run()
	inv := Invocation{
		Stdout:   stdoutBuf.String(),
		Stderr:   stderrBuf.String(),
		Duration: time.Since(start),
	}

	if err == nil {
		logger.Debug().Str("script", scriptName).Dur("duration", inv.Duration).Msg("Script completed")
		return inv, nil
	}

	inv.ExitCode = -1
	if ctx.Err() != nil {
		return inv, &FailureError{Script: scriptName, Err: ctx.Err()}
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		logger.Warn().Str("script", scriptName).Dur("timeout", timeout).Msg("Script timed out")
		return inv, &TimeoutError{Script: scriptName, Timeout: timeout}
	}

	// A nonzero exit is a result, not an invoker error.
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		inv.ExitCode = exitErr.ExitCode()
		logger.Debug().
			Str("script", scriptName).
			Int("exit_code", inv.ExitCode).
			Msg("Script exited with nonzero code")
		return inv, nil
	}

	return inv, &FailureError{Script: scriptName, Err: err}
}
