// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// session_cmd.go - Inspect the stored session record.
//
// Command: session [subcommand]
//
// Subcommands:
//
//	show (default)   Print the stored keys; the token is never printed
//	clear            Sign out (same as hms logout)
//
// show reads the keyspace directly and does not restore or clear anything,
// so it shows what is on disk even when the record is expired or corrupt.

package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jeranaias/hms-tui/internal/security"
	"github.com/jeranaias/hms-tui/internal/storage"
)

const sessionUsage = "hms session [show|clear] [--json]"

// HandleSession dispatches session subcommands.
func HandleSession(args Args) error {
	switch args.Subcommand {
	case "show", "":
		return handleSessionShow(args)
	case "clear":
		return HandleLogout(args)
	default:
		return &UsageError{Reason: "unknown session subcommand: " + args.Subcommand, Hint: sessionUsage}
	}
}

func handleSessionShow(args Args) error {
	env, err := Bootstrap(args)
	if err != nil {
		return err
	}
	defer env.Close()

	raw, err := env.KV.Snapshot(storage.SessionKeys...)
	if err != nil {
		return fmt.Errorf("failed to read session store: %w", err)
	}
	rec := buildSessionRecord(raw, time.Now())

	if args.JSON {
		fmt.Println(highlightJSON(NewJSONResponse("session show", rec).String()))
		return nil
	}

	fmt.Println(TitleStyle.Render("Stored session"))
	if len(rec.Keys) == 0 {
		fmt.Println(DimStyle.Render("No session stored."))
		return nil
	}
	valid := ErrorStyle.Render("no")
	if rec.Valid {
		valid = SuccessStyle.Render("yes")
	}
	fmt.Println(RenderField("Valid", valid))
	fmt.Println(RenderField("Expires at", orDash(rec.ExpiresAt)))
	fmt.Println(RenderField("Login time", orDash(rec.LoginTime)))
	token := "absent"
	switch {
	case rec.HasToken && rec.TokenSealed:
		token = "present (encrypted)"
	case rec.HasToken:
		token = "present (plaintext)"
	}
	fmt.Println(RenderField("Token", token))
	fmt.Println(RenderField("Keys", strings.Join(rec.Keys, ", ")))
	if len(rec.User) > 0 {
		fmt.Println(RenderSeparator())
		pretty, err := json.MarshalIndent(rec.User, "", "  ")
		if err != nil {
			pretty = rec.User
		}
		fmt.Println(highlightJSON(string(pretty)))
	}
	return nil
}

// buildSessionRecord describes the raw keyspace without exposing the token.
func buildSessionRecord(raw map[string]string, now time.Time) SessionRecord {
	rec := SessionRecord{Keys: []string{}}
	for _, k := range storage.SessionKeys {
		if raw[k] != "" {
			rec.Keys = append(rec.Keys, k)
		}
	}

	if u := raw[storage.KeyUser]; u != "" {
		if json.Valid([]byte(u)) {
			rec.User = json.RawMessage(u)
		} else {
			quoted, _ := json.Marshal(u)
			rec.User = quoted
		}
	}

	var expMs int64
	if ms, ok := parseMillis(raw[storage.KeyExpiry]); ok {
		expMs = ms
		rec.ExpiresAt = time.UnixMilli(ms).Format(time.RFC3339)
	}
	if ms, ok := parseMillis(raw[storage.KeyLoginTime]); ok {
		rec.LoginTime = time.UnixMilli(ms).Format(time.RFC3339)
	}

	token := raw[storage.KeyToken]
	rec.HasToken = token != ""
	rec.TokenSealed = security.IsSealed(token)
	rec.Valid = rec.HasToken && raw[storage.KeyUser] != "" && expMs > now.UnixMilli()
	return rec
}

func parseMillis(s string) (int64, bool) {
	ms, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || ms <= 0 {
		return 0, false
	}
	return ms, true
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
