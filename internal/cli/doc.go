// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli parses the hms command line and implements the commands that
// run without the TUI.
//
// # Key Types
//
//   - Command: the command selected by the first argument
//   - Args: global flags plus command-specific values
//   - Env: the wired session stack (config, store, client, audit log)
//
// # Usage
//
//	cmd, args := cli.Parse()
//	switch cmd {
//	case cli.CmdLogin:
//	    err = cli.HandleLogin(args)
//	case cli.CmdStatus:
//	    err = cli.HandleStatus(args)
//	}
//
// Every command accepts --json and prints a JSONResponse envelope.
package cli
