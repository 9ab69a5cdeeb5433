// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// auth_cmd.go - login, logout and register without the TUI.
//
// Examples:
//
//	hms login --role doctor --email grey@example.com
//	hms login patient
//	echo "$PW" | hms login --role admin --email root@example.com --password-stdin
//	hms logout
//	hms register --name "Ann Lee" --email ann@example.com --mobile 5550100 --age 34

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/jeranaias/hms-tui/internal/api"
	"github.com/jeranaias/hms-tui/internal/model"
	"github.com/jeranaias/hms-tui/internal/util"
)

const (
	loginUsage    = "hms login --role admin|doctor|staff|patient [--email EMAIL] [--password-stdin]"
	registerUsage = "hms register --name NAME --email EMAIL --mobile NUMBER [--age N] [--password-stdin]"
)

// commandContext bounds a command by timeout and Ctrl+C.
func commandContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

// =============================================================================
// LOGIN
// =============================================================================

// HandleLogin signs in and persists the session for later commands and the TUI.
func HandleLogin(args Args) error {
	if args.Role == "" {
		return ErrMissingArgument("--role", loginUsage)
	}
	role, err := model.ParseRole(args.Role)
	if err != nil {
		return &UsageError{Reason: err.Error(), Hint: loginUsage}
	}

	email := strings.TrimSpace(args.Email)
	if email == "" {
		if args.PasswordStdin {
			return ErrMissingArgument("--email", loginUsage)
		}
		if email, err = promptLine(role.DisplayName()+" email: ", ""); err != nil {
			return err
		}
	}
	password, err := readPassword(args.PasswordStdin, "Password: ")
	if err != nil {
		return err
	}

	env, err := Bootstrap(args)
	if err != nil {
		return err
	}
	defer env.Close()

	ctx, cancel := commandContext(env.Config.RequestTimeout())
	defer cancel()

	if err := env.Store.Login(ctx, email, password, role); err != nil {
		return err
	}

	snap := env.Store.Snapshot()
	data := LoginData{
		Name:      snap.User.DisplayName(),
		Email:     snap.User.Email,
		Role:      string(snap.User.Role),
		Dashboard: env.Guard.HomeFor(snap.User),
		ExpiresAt: snap.ExpiresAt.Format(time.RFC3339),
	}
	if args.JSON {
		return NewJSONResponse("login", data).Print()
	}

	fmt.Printf("%s Signed in as %s (%s)\n", SuccessStyle.Render("[OK]"), data.Name, RenderRole(snap.User.Role))
	fmt.Println(RenderField("Dashboard", data.Dashboard))
	fmt.Println(RenderField("Expires in", util.FormatRemaining(snap.Remaining())))
	return nil
}

// =============================================================================
// LOGOUT
// =============================================================================

// HandleLogout clears the stored session.
func HandleLogout(args Args) error {
	env, err := Bootstrap(args)
	if err != nil {
		return err
	}
	defer env.Close()

	ctx, cancel := commandContext(env.Config.RestoreTimeout())
	defer cancel()
	env.Store.Initialize(ctx)

	prev := env.Store.User()
	if err := env.Store.Logout(); err != nil {
		return err
	}

	if args.JSON {
		data := map[string]interface{}{"signed_out": prev != nil}
		if prev != nil {
			data["email"] = prev.Email
		}
		return NewJSONResponse("logout", data).Print()
	}
	if prev == nil {
		fmt.Println(DimStyle.Render("Not signed in."))
		return nil
	}
	fmt.Printf("%s Signed out %s\n", SuccessStyle.Render("[OK]"), prev.DisplayName())
	return nil
}

// =============================================================================
// REGISTER
// =============================================================================

// buildRegisterRequest assembles a patient registration from flags.
func buildRegisterRequest(args Args) (api.RegisterRequest, error) {
	req := api.RegisterRequest{
		Name:   strings.TrimSpace(args.Name),
		Email:  strings.TrimSpace(args.Email),
		Role:   model.RolePatient,
		Mobile: strings.TrimSpace(args.Mobile),
	}

	pd := &api.PatientData{
		Gender:     args.Options["gender"],
		Address:    args.Options["address"],
		BloodGroup: strings.ToUpper(args.Options["blood-group"]),
		Phone:      args.Options["phone"],
	}
	if pd.Phone == "" {
		pd.Phone = req.Mobile
	}
	if age := args.Options["age"]; age != "" {
		n, err := strconv.Atoi(strings.TrimSpace(age))
		if err != nil {
			return req, &UsageError{Reason: "Age must be a number", Hint: registerUsage}
		}
		pd.Age = n
	}
	if *pd != (api.PatientData{}) {
		req.PatientData = pd
	}
	return req, nil
}

// HandleRegister creates a patient account.
func HandleRegister(args Args) error {
	req, err := buildRegisterRequest(args)
	if err != nil {
		return err
	}

	if req.Name == "" {
		if args.PasswordStdin {
			return ErrMissingArgument("--name", registerUsage)
		}
		if req.Name, err = promptLine("Full name: ", ""); err != nil {
			return err
		}
	}
	if req.Email == "" {
		if args.PasswordStdin {
			return ErrMissingArgument("--email", registerUsage)
		}
		if req.Email, err = promptLine("Email: ", ""); err != nil {
			return err
		}
	}

	if args.PasswordStdin {
		if req.Password, err = readPasswordLine(os.Stdin); err != nil {
			return err
		}
	} else {
		if req.Password, err = promptPassword("Password: "); err != nil {
			return err
		}
		confirm, err := promptPassword("Confirm password: ")
		if err != nil {
			return err
		}
		if confirm != req.Password {
			return errors.New("Passwords do not match")
		}
	}

	if err := req.Validate(); err != nil {
		return &UsageError{Reason: err.Error(), Hint: registerUsage}
	}

	env, err := Bootstrap(args)
	if err != nil {
		return err
	}
	defer env.Close()

	ctx, cancel := commandContext(env.Config.RequestTimeout())
	defer cancel()

	if _, err := env.Client.Register(ctx, req); err != nil && !errors.Is(err, api.ErrNoUserEcho) {
		return err
	}

	data := RegisterData{
		Email:   req.Email,
		Role:    string(req.Role),
		Message: "Registration successful! Please sign in with your new account.",
	}
	if args.JSON {
		return NewJSONResponse("register", data).Print()
	}
	fmt.Printf("%s %s\n", SuccessStyle.Render("[OK]"), data.Message)
	fmt.Println(DimStyle.Render("  hms login --role patient --email " + req.Email))
	return nil
}
