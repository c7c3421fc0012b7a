package cli

// This file contains the assembly of the components shared by the commands
// which touch the hardware.

import (
	"context"

	"github.com/hwci/hwci/camera"
	"github.com/hwci/hwci/config"
	"github.com/hwci/hwci/hook"
	"github.com/hwci/hwci/hwtest"
	"github.com/hwci/hwci/model"
	"github.com/hwci/hwci/script"
)

type components struct {
	cfg     *config.Config
	bus     *hook.Bus
	scripts *script.Registry
	catalog *hwtest.Catalog
	session camera.Session
}

// newRuntime creates the hook bus once and hands it to every component.
// Callbacks are registered before the catalog and session are resolved so
// the load_tests and camera_class filters see them.
func (a *App) newRuntime(ctx context.Context, cfg *config.Config) (*components, error) {
	bus := hook.NewBus(a.logger)
	a.registerHooks(bus)

	scripts, err := script.NewRegistry(a.logger, cfg.Scripts, nil)
	if err != nil {
		return nil, err
	}

	catalog, err := hwtest.LoadCatalog(ctx, bus)
	if err != nil {
		return nil, err
	}

	session, err := hwtest.OpenSession(ctx, bus, cfg.Camera.Class, scripts, a.logger)
	if err != nil {
		return nil, err
	}

	a.logger.Debug().
		Int("scripts", len(scripts.Names())).
		Int("tests", catalog.Len()).
		Str("camera", session.Name()).
		Msg("Runtime ready")

	return &components{
		cfg:     cfg,
		bus:     bus,
		scripts: scripts,
		catalog: catalog,
		session: session,
	}, nil
}

// registerHooks installs the progress callbacks of the command line.
func (a *App) registerHooks(bus *hook.Bus) {
	bus.RegisterAction(hook.PreTest, func(_ context.Context, args hook.Args) error {
		a.logger.Debug().Interface("test", args["name"]).Msg("Starting test")
		return nil
	}, hook.DefaultPriority)

	bus.RegisterAction(hook.PostBuild, func(_ context.Context, args hook.Args) error {
		report, ok := args["report"].(model.BuildReport)
		if !ok {
			return nil
		}
		a.logger.Info().
			Str("id", report.RequestID.String()).
			Str("status", string(report.Status)).
			Int("tests", report.TestCount).
			Float64("success_ratio", report.SuccessRatio).
			Str("folder", report.Folder).
			Msg("Build report stored")
		return nil
	}, hook.DefaultPriority)
}
