package hwtest

// This file contains the built-in test cases and the start-up helpers which
// let plugins extend the catalog and replace the camera session.

import (
	"context"
	"fmt"
	"time"

	"github.com/hwci/hwci/camera"
	"github.com/hwci/hwci/hook"
	"github.com/hwci/hwci/script"
	"github.com/rs/zerolog"
)

const statusTimeout = 30 * time.Second

// Builtin returns the cases every catalog starts with.
func Builtin() []Case {
	return []Case{
		NewCase("mock", "Always passes. Useful to check the pipeline itself.", runMock),
		NewCase("loaded_scripts", "Lists the registered hardware scripts and fails if any of them runs from its fallback.", runLoadedScripts),
		NewCase("camera_status", "Runs the status script and expects it to succeed.", runCameraStatus),
	}
}

func runMock(context.Context, *Env) (Result, error) {
	return NewMessageResult(0, "Hello World"), nil
}

func runLoadedScripts(_ context.Context, env *Env) (Result, error) {
	data := make(map[string]any)
	code := 0
	for _, name := range env.Scripts.Names() {
		sc, err := env.Scripts.Get(name)
		if err != nil {
			return nil, err
		}
		meta := sc.Describe()
		source := meta.Class
		if meta.Fallback {
			source += " (fallback)"
			code = 1
		}
		data[name] = source
	}
	return NewDictResult(code, data, fmt.Sprintf("%d scripts registered", len(data))), nil
}

func runCameraStatus(ctx context.Context, env *Env) (Result, error) {
	sc, err := env.Scripts.Get("status")
	if err != nil {
		return nil, err
	}
	inv, err := sc.Invoke(ctx, nil, statusTimeout)
	if err != nil {
		return nil, err
	}
	result := NewAssertionResult(true)
	result.AssertEqual(0, inv.ExitCode)
	return NewCombinedResult(result, NewMessageResult(inv.ExitCode, inv.Stdout)), nil
}

// LoadCatalog builds the catalog from the built-in cases plus extra and
// passes it through the load_tests filter.
func LoadCatalog(ctx context.Context, bus *hook.Bus, extra ...Case) (*Catalog, error) {
	catalog := NewCatalog(append(Builtin(), extra...)...)
	catalog, err := hook.Filter(ctx, bus, hook.LoadTests, catalog, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to load tests: %w", err)
	}
	return catalog, nil
}

// OpenSession resolves the camera class and lets the camera_class filter
// replace the factory before the session is created.
func OpenSession(ctx context.Context, bus *hook.Bus, class string, scripts *script.Registry, logger zerolog.Logger) (camera.Session, error) {
	factory, err := camera.Lookup(class)
	if err != nil {
		return nil, err
	}
	factory, err = hook.Filter(ctx, bus, hook.CameraClass, factory, hook.Args{"class": class})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve camera class: %w", err)
	}
	return factory(scripts, logger), nil
}
