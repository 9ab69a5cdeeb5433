// hms - A terminal client for the hospital management system.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jeranaias/hms-tui/internal/cli"
	"github.com/jeranaias/hms-tui/internal/guard"
	"github.com/jeranaias/hms-tui/internal/storage"
	"github.com/jeranaias/hms-tui/internal/ui/app"
	"github.com/jeranaias/hms-tui/internal/ui/styles"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	cmd, args := cli.Parse()

	var err error
	switch cmd {
	case cli.CmdTUI:
		err = runTUI(args)
	case cli.CmdLogin:
		err = cli.HandleLogin(args)
	case cli.CmdLogout:
		err = cli.HandleLogout(args)
	case cli.CmdStatus:
		err = cli.HandleStatus(args)
	case cli.CmdSession:
		err = cli.HandleSession(args)
	case cli.CmdRegister:
		err = cli.HandleRegister(args)
	case cli.CmdConfig:
		err = cli.HandleConfig(args)
	case cli.CmdVersion:
		cli.HandleVersion(args)
	case cli.CmdHelp:
		err = cli.HandleHelp(args)
	}

	if err != nil {
		cli.DisplayError(cmd.String(), err, args.JSON)
		os.Exit(cli.GetExitCode(err))
	}
}

// runTUI wires the session stack into the terminal UI and blocks until
// the user quits.
func runTUI(args cli.Args) error {
	env, err := cli.Bootstrap(args)
	if err != nil {
		return err
	}
	defer env.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	cfg := env.Config
	opts := app.Options{
		Context:         ctx,
		Store:           env.Store,
		Guard:           env.Guard,
		Routes:          guard.DefaultRoutes(env.Guard.Dashboards()),
		Registrar:       env.Client,
		Theme:           styles.NewTheme(cfg.UI.Theme),
		StartPath:       args.Path,
		RefreshInterval: cfg.RefreshInterval(),
		WarnWindow:      cfg.WarningWindow(),
		RequestTimeout:  cfg.RequestTimeout(),
		ShowStatusBar:   cfg.UI.ShowStatusBar,
	}

	// Sign-ins and sign-outs from other hms processes
	if env.Watchable() {
		w, err := storage.NewWatcher(env.StorePath, storage.DefaultWatchDebounce)
		if err == nil {
			if err = w.Start(); err != nil {
				w.Close()
			}
		}
		if err != nil {
			log.Printf("session watch disabled: %v", err)
		} else {
			defer w.Close()
			opts.Changes = w.Changes()
		}
	}

	if err := app.Run(opts); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
