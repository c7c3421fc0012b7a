package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/hwci/hwci/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

const AppName = "hwci"

type App struct {
	logger zerolog.Logger
	cli    *cli.App
}

func New() *App {

	// Set default log level to info
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	logger :=
		log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.RFC3339Nano,
		})

	app := &App{
		logger: logger,
		cli: &cli.App{
			Name:  AppName,
			Usage: "Build FPGA bitstreams and test them on the camera",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:  "verbose",
					Usage: "Enable verbose (debug) logging",
				},
				&cli.StringFlag{
					Name:    "config",
					Aliases: []string{"c"},
					Usage:   "Path to the config file",
					Value:   config.DefaultPath(),
					EnvVars: []string{"HWCI_CONFIG"},
				},
			},
			Before: func(ctx *cli.Context) error {
				if ctx.Bool("verbose") {
					zerolog.SetGlobalLevel(zerolog.DebugLevel)
				}
				return nil
			},
		},
	}
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "serve",
		Usage:  "Run the build worker until terminated",
		Action: app.serve,
		Description: `Run the build worker. Requests are taken off the queue one at a time.

Signals:
  SIGINT      Interrupt the running build (stops the worker when idle)
  SIGTERM     Finish the current step and stop the worker`,
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:      "enqueue",
		Usage:     "Queue a build of a pushed commit",
		ArgsUsage: "REPOSITORY_URL",
		Action:    app.enqueue,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "branch",
				Aliases:  []string{"b"},
				Usage:    "Branch to clone",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "commit",
				Usage: "Commit to check out (default: branch head)",
				Value: "",
			},
			&cli.StringFlag{
				Name:  "suite",
				Usage: "Test suite or single test to run (default: ci.test_suite)",
			},
		},
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "build",
		Usage:  "Queue a build of the configured repository and branch head",
		Action: app.buildFromConfig,
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "queue",
		Usage:  "List pending build requests",
		Action: app.queueList,
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "unlock",
		Usage:  "Release a stale build lock",
		Action: app.unlock,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "force",
				Usage: "Release the lock even if its holder looks alive",
			},
		},
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:      "test",
		Usage:     "Run a test suite or a single test against the camera without building",
		ArgsUsage: "[SUITE|TEST]",
		Action:    app.runTests,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Result format: text, markdown or html",
				Value:   "text",
			},
			&cli.StringFlag{
				Name:  "dir",
				Usage: "Directory to store the test report in (default: a new folder in <home>/tests)",
			},
		},
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "list",
		Usage:  "List previous builds",
		Action: app.list,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "branch",
				Aliases: []string{"b"},
				Usage:   "Filter by branch",
			},
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Usage:   "Limit number of results (default: 20)",
				Value:   20,
			},
		},
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:            "view",
		Usage:           "View the report of a previous build",
		ArgsUsage:       "[ID|INDEX] [TEST...]",
		Action:          app.view,
		SkipFlagParsing: true,
		Description: `View the build and test report of a previous build.

Arguments:
  0           View last build (default)
  -1          View 2nd last build
  -2          View 3rd last build
  <hex-id>    View build whose request ID starts with the prefix
  TEST...     Only show the results of these tests

Examples:
  hwci view                    # View last build
  hwci view -1                 # View 2nd last build
  hwci view 3f2a               # View build with ID starting with 3f2a
  hwci view 0 camera_status    # Show one test result of the last build`,
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:   "scripts",
		Usage:  "List the registered hardware scripts",
		Action: app.listScripts,
	})
	app.cli.Commands = append(app.cli.Commands, &cli.Command{
		Name:      "script",
		Usage:     "Invoke a hardware script once",
		ArgsUsage: "NAME [ARGS...]",
		Action:    app.invokeScript,
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Kill the script after this long",
				Value: time.Minute,
			},
		},
	})
	return app
}

func (a *App) Run(args []string) error {
	return a.cli.Run(args)
}

// SetVersion sets the version information for the CLI application
func (a *App) SetVersion(version, commit, date string) {
	a.cli.Version = version
	if commit != "none" && len(commit) >= 8 {
		a.cli.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version, commit[:8], date)
	}
}

func (a *App) loadConfig(ctx *cli.Context) (*config.Config, error) {
	path := ctx.String("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	a.logger.Debug().Str("path", path).Str("home", cfg.Home).Msg("Loaded config")
	return cfg, nil
}
