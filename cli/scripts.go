package cli

// This file contains the commands which list and invoke hardware scripts.

import (
	"fmt"
	"os"
	"strings"

	"github.com/hwci/hwci/script"
	"github.com/urfave/cli/v2"
)

func (a *App) listScripts(ctx *cli.Context) error {
	cfg, err := a.loadConfig(ctx)
	if err != nil {
		return err
	}
	registry, err := script.NewRegistry(a.logger, cfg.Scripts, nil)
	if err != nil {
		return err
	}

	names := registry.Names()
	if len(names) == 0 {
		fmt.Println("No scripts configured")
		fmt.Printf("Scripts are configured in the scripts section of %s\n", ctx.String("config"))
		return nil
	}

	fmt.Printf("\n=== Scripts (%d) ===\n\n", len(names))
	for _, name := range names {
		sc, err := registry.Get(name)
		if err != nil {
			return err
		}
		meta := sc.Describe()
		fmt.Printf("%s  [%s]\n", meta.Name, meta.Class)
		if meta.Description != "" {
			fmt.Printf("   %s\n", meta.Description)
		}
		fmt.Printf("   Command: %s\n", meta.Command)
		if meta.Host != "" {
			fmt.Printf("   Host: %s\n", meta.Host)
		}
		if meta.Author != "" {
			fmt.Printf("   Author: %s\n", meta.Author)
		}
		fmt.Println()
	}
	fmt.Printf("Classes: %s\n", strings.Join(script.Classes(), ", "))
	return nil
}

func (a *App) invokeScript(ctx *cli.Context) error {
	if ctx.NArg() == 0 {
		return fmt.Errorf("expected a script name")
	}
	cfg, err := a.loadConfig(ctx)
	if err != nil {
		return err
	}
	registry, err := script.NewRegistry(a.logger, cfg.Scripts, nil)
	if err != nil {
		return err
	}
	sc, err := registry.Get(ctx.Args().First())
	if err != nil {
		return err
	}

	inv, err := sc.Invoke(ctx.Context, ctx.Args().Tail(), ctx.Duration("timeout"))
	if err != nil {
		return err
	}
	fmt.Fprint(os.Stdout, inv.Stdout)
	fmt.Fprint(os.Stderr, inv.Stderr)
	a.logger.Info().Str("script", sc.Name()).Int("exit_code", inv.ExitCode).Dur("duration", inv.Duration).Msg("Script finished")
	if inv.ExitCode != 0 {
		return cli.Exit("", inv.ExitCode)
	}
	return nil
}
