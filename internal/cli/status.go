// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// status.go - hms status / whoami.

package cli

import (
	"fmt"
	"time"

	"github.com/jeranaias/hms-tui/internal/guard"
	"github.com/jeranaias/hms-tui/internal/session"
	"github.com/jeranaias/hms-tui/internal/util"
)

// HandleStatus restores the stored session and prints who is signed in.
// An expired or unreadable record is cleared as a side effect, exactly as
// the TUI would on start.
func HandleStatus(args Args) error {
	env, err := Bootstrap(args)
	if err != nil {
		return err
	}
	defer env.Close()

	ctx, cancel := commandContext(env.Config.RestoreTimeout())
	defer cancel()
	env.Store.Initialize(ctx)

	data := buildStatus(env.Store.Snapshot(), env.Guard, env.Config.Session.Backend, env.StorePath, env.Client.BaseURL())

	if args.JSON {
		return NewJSONResponse("status", data).Print()
	}

	fmt.Println(TitleStyle.Render("hms status"))
	if !data.SignedIn {
		fmt.Println(RenderField("Session", DimStyle.Render("not signed in")))
	} else {
		snap := env.Store.Snapshot()
		fmt.Println(RenderField("User", data.Name))
		fmt.Println(RenderField("Email", data.Email))
		fmt.Println(RenderField("Role", RenderRole(snap.Role())))
		fmt.Println(RenderField("Dashboard", data.Dashboard))
		remaining := data.ExpiresIn
		if snap.Remaining() < time.Hour {
			remaining = WarningStyle.Render(remaining)
		}
		fmt.Println(RenderField("Expires in", remaining))
	}
	fmt.Println(RenderSeparator())
	fmt.Println(RenderField("API", data.API))
	store := data.Backend
	if data.Store != "" {
		store += " (" + data.Store + ")"
	}
	fmt.Println(RenderField("Store", store))
	return nil
}

func buildStatus(snap session.Snapshot, g *guard.Guard, backend, storePath, apiURL string) StatusData {
	data := StatusData{
		SignedIn: snap.Valid && snap.User != nil,
		Backend:  backend,
		Store:    storePath,
		API:      apiURL,
	}
	if !data.SignedIn {
		return data
	}
	data.Name = snap.User.DisplayName()
	data.Email = snap.User.Email
	data.Role = string(snap.User.Role)
	data.Dashboard = g.HomeFor(snap.User)
	data.ExpiresAt = snap.ExpiresAt.Format(time.RFC3339)
	data.ExpiresIn = util.FormatRemaining(snap.Remaining())
	return data
}
