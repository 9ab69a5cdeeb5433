// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// prompt.go - Interactive prompts for login and registration.

package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/peterh/liner"
	"golang.org/x/term"
)

// ErrAborted is returned when the user cancels a prompt with Ctrl+C.
var ErrAborted = errors.New("aborted")

// promptLine asks for one line with editing, offering def as the
// starting text.
func promptLine(prompt, def string) (string, error) {
	if err := RequiresTTY("prompt for " + strings.TrimSuffix(strings.TrimSpace(prompt), ":")); err != nil {
		return "", err
	}

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	var (
		answer string
		err    error
	)
	if def != "" {
		answer, err = line.PromptWithSuggestion(prompt, def, -1)
	} else {
		answer, err = line.Prompt(prompt)
	}
	if err == liner.ErrPromptAborted || err == io.EOF {
		return "", ErrAborted
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(answer), nil
}

// promptPassword reads a password without echo.
func promptPassword(prompt string) (string, error) {
	if err := RequiresTTY("read a password"); err != nil {
		return "", err
	}
	fmt.Fprint(os.Stderr, prompt)
	pw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(pw), nil
}

// readPasswordLine reads the first line of r as a password. Trailing
// CR/LF is removed; other whitespace is kept.
func readPasswordLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read password from stdin: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("no password on stdin")
	}
	return line, nil
}

// readPassword reads from stdin when fromStdin is set, otherwise prompts.
func readPassword(fromStdin bool, prompt string) (string, error) {
	if fromStdin {
		return readPasswordLine(os.Stdin)
	}
	return promptPassword(prompt)
}
