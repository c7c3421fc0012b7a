// Package camera provides the hardware session handle shared by all test
// cases of one run. Concrete sessions are picked by class name and may be
// replaced by plugins through the camera_class filter.
package camera

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/hwci/hwci/script"
	"github.com/rs/zerolog"
)

// Session classes.
const (
	ClassScript = "script"
	ClassMock   = "mock"
)

// scriptTimeout bounds each set-up and tear-down script.
const scriptTimeout = 2 * time.Minute

// Session is the handle test cases use to reach the hardware.
type Session interface {
	Name() string
	SetUp(ctx context.Context) error
	TearDown(ctx context.Context) error
}

// Factory creates a session.
type Factory func(scripts *script.Registry, logger zerolog.Logger) Session

var factories = map[string]Factory{
	ClassScript: func(scripts *script.Registry, logger zerolog.Logger) Session {
		return NewScriptSession(scripts, logger)
	},
	ClassMock: func(_ *script.Registry, _ zerolog.Logger) Session {
		return &Mock{}
	},
}

// Lookup returns the factory registered for class.
func Lookup(class string) (Factory, error) {
	f, ok := factories[class]
	if !ok {
		known := make([]string, 0, len(factories))
		for name := range factories {
			known = append(known, name)
		}
		sort.Strings(known)
		return nil, fmt.Errorf("unknown camera class %q (known: %v)", class, known)
	}
	return f, nil
}

// ScriptSession drives the camera through the configured hardware scripts.
// Steps whose script is not registered are skipped.
type ScriptSession struct {
	scripts  *script.Registry
	logger   zerolog.Logger
	setUp    []string
	tearDown []string
}

// NewScriptSession creates a session with the default step order.
func NewScriptSession(scripts *script.Registry, logger zerolog.Logger) *ScriptSession {
	return &ScriptSession{
		scripts:  scripts,
		logger:   logger,
		setUp:    []string{"pcie_init", "reset_fpga", "power_up", "reset", "status"},
		tearDown: []string{"power_down", "status"},
	}
}

func (s *ScriptSession) Name() string {
	return ClassScript
}

func (s *ScriptSession) SetUp(ctx context.Context) error {
	return s.runSteps(ctx, s.setUp)
}

func (s *ScriptSession) TearDown(ctx context.Context) error {
	return s.runSteps(ctx, s.tearDown)
}

func (s *ScriptSession) runSteps(ctx context.Context, steps []string) error {
	for _, name := range steps {
		if !s.scripts.Has(name) {
			s.logger.Debug().Str("script", name).Msg("Skipping unregistered camera script")
			continue
		}
		sc, err := s.scripts.Get(name)
		if err != nil {
			return err
		}
		inv, err := sc.Invoke(ctx, nil, scriptTimeout)
		if err != nil {
			return fmt.Errorf("failed to run camera script %s: %w", name, err)
		}
		if inv.ExitCode != 0 {
			return fmt.Errorf("camera script %s exited with code %d: %s", name, inv.ExitCode, inv.Stderr)
		}
		s.logger.Debug().Str("script", name).Msg("Camera script completed")
	}
	return nil
}

// Mock is a session which touches no hardware.
type Mock struct {
	SetUpCalls    int
	TearDownCalls int
}

func (m *Mock) Name() string {
	return ClassMock
}

func (m *Mock) SetUp(context.Context) error {
	m.SetUpCalls++
	return nil
}

func (m *Mock) TearDown(context.Context) error {
	m.TearDownCalls++
	return nil
}
