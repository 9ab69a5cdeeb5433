// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - Command-line parsing and dispatch for hms.
//
// Usage:
//
//	hms                         Start the TUI (default)
//	hms tui [--path /route]     Start the TUI at a route
//	hms login --role ROLE       Sign in without the TUI
//	hms logout                  Clear the stored session
//	hms status                  Show who is signed in
//	hms session show [--json]   Dump the stored session record
//	hms register ...            Create a patient account
//	hms config [subcommand]     Inspect or change configuration
//	hms version                 Show version information
//	hms help                    Show help
package cli

import (
	"fmt"
	"os"
	"runtime"
	"strings"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// =============================================================================
// COMMANDS
// =============================================================================

// Command represents a CLI command.
type Command int

const (
	CmdTUI Command = iota
	CmdLogin
	CmdLogout
	CmdStatus
	CmdSession
	CmdRegister
	CmdConfig
	CmdVersion
	CmdHelp
)

var commandNames = map[Command]string{
	CmdTUI:      "tui",
	CmdLogin:    "login",
	CmdLogout:   "logout",
	CmdStatus:   "status",
	CmdSession:  "session",
	CmdRegister: "register",
	CmdConfig:   "config",
	CmdVersion:  "version",
	CmdHelp:     "help",
}

// String returns the command's name as typed on the command line.
func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Command(%d)", int(c))
}

// Args holds parsed command-line arguments.
type Args struct {
	// Global flags
	ConfigPath string // --config PATH
	APIURL     string // --api URL
	Verbose    bool
	JSON       bool

	// Command-specific
	Subcommand  string
	ConfigKey   string
	ConfigValue string
	Path        string // tui --path
	Role        string
	Email       string
	Name        string
	Mobile      string

	// PasswordStdin reads the password from the first line of stdin.
	PasswordStdin bool

	// Unknown is set when the first word was not a command.
	Unknown string

	Raw     []string
	Options map[string]string
}

// =============================================================================
// USAGE
// =============================================================================

const usageText = `hms - Hospital management terminal client

USAGE:
    hms [command] [options]

COMMANDS:
    (none), tui         Start the interactive TUI
    login               Sign in to a portal
    logout              Sign out and clear the stored session
    status, whoami      Show the signed-in user and session expiry
    session             Inspect the stored session record
    register            Create a patient account
    config              Show or change configuration
    version             Show version information
    help                Show this help

GLOBAL OPTIONS:
    --config PATH       Use this config file instead of ~/.hms/config.toml
    --api URL           Override the API base URL
    -v, --verbose       Log HTTP requests
    --json              Machine-readable output
    -h, --help          Show help

TUI OPTIONS:
    --path ROUTE        Open at ROUTE, e.g. /doctor-dashboard

LOGIN OPTIONS:
    --role ROLE         admin, doctor, staff or patient (required)
    --email EMAIL       Prompted for when omitted
    --password-stdin    Read the password from stdin instead of prompting

REGISTER OPTIONS:
    --name NAME         Full name
    --email EMAIL       Account email
    --mobile NUMBER     Mobile number
    --age N             Patient age
    --gender VALUE      Patient gender
    --address TEXT      Patient address
    --blood-group TYPE  Patient blood group
    --password-stdin    Read the password from stdin instead of prompting

SESSION SUBCOMMANDS:
    show                Print the stored user, expiry and login time (token redacted)
    clear               Same as logout

CONFIG SUBCOMMANDS:
    show                Show all settings (default)
    get KEY             Show one setting, e.g. session.duration_hours
    set KEY VALUE       Change a setting and save
    path                Print the config file location

EXAMPLES:
    hms
    hms tui --path /patient-dashboard
    hms login --role doctor --email grey@example.com
    echo "$PW" | hms login --role admin --email root@example.com --password-stdin
    hms status --json
    hms config set api.base_url https://hms.example.org/api

ENVIRONMENT:
    HMS_HOME            Config directory (default ~/.hms)
    HMS_API_URL         API base URL
    HMS_SESSION_BACKEND sqlite, file or memory
    HMS_SESSION_PATH    Session store location
    HMS_VERIFY_ROLE     Check the account role matches the portal (default true)
    NO_COLOR            Disable colored output
`

// PrintUsage prints the usage text.
func PrintUsage() {
	fmt.Print(usageText)
}

// PrintVersion prints version information.
func PrintVersion() {
	fmt.Printf("hms %s\n", Version)
	fmt.Printf("  Commit: %s\n", GitCommit)
	fmt.Printf("  Built:  %s\n", BuildDate)
	fmt.Printf("  Go:     %s\n", runtime.Version())
}

// =============================================================================
// PARSING
// =============================================================================

// Parse parses os.Args.
func Parse() (Command, Args) {
	return ParseArgs(os.Args[1:])
}

// ParseArgs parses args (without the program name) into a command.
func ParseArgs(args []string) (Command, Args) {
	remaining, parsedArgs := parseGlobalFlags(args)

	if len(remaining) == 0 {
		return CmdTUI, parsedArgs
	}

	cmd := strings.ToLower(remaining[0])
	remaining = remaining[1:]
	parsedArgs.Raw = remaining

	switch cmd {
	case "tui":
		parseTUIArgs(&parsedArgs, remaining)
		return CmdTUI, parsedArgs

	case "login", "signin":
		parseLoginArgs(&parsedArgs, remaining)
		return CmdLogin, parsedArgs

	case "logout", "signout":
		return CmdLogout, parsedArgs

	case "status", "whoami", "s":
		return CmdStatus, parsedArgs

	case "session", "sessions":
		parseSessionArgs(&parsedArgs, remaining)
		return CmdSession, parsedArgs

	case "register", "signup":
		parseRegisterArgs(&parsedArgs, remaining)
		return CmdRegister, parsedArgs

	case "config":
		parseConfigArgs(&parsedArgs, remaining)
		return CmdConfig, parsedArgs

	case "version", "--version":
		return CmdVersion, parsedArgs

	case "help", "-h", "--help":
		return CmdHelp, parsedArgs

	default:
		parsedArgs.Unknown = cmd
		return CmdHelp, parsedArgs
	}
}

// parseGlobalFlags extracts flags accepted before or after any command.
func parseGlobalFlags(args []string) ([]string, Args) {
	var remaining []string
	parsedArgs := Args{
		Options: make(map[string]string),
	}

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "-v", "--verbose":
			parsedArgs.Verbose = true
		case "--json":
			parsedArgs.JSON = true
		case "--config":
			if i+1 < len(args) {
				i++
				parsedArgs.ConfigPath = args[i]
			}
		case "--api":
			if i+1 < len(args) {
				i++
				parsedArgs.APIURL = args[i]
			}
		default:
			switch {
			case strings.HasPrefix(arg, "--config="):
				parsedArgs.ConfigPath = strings.TrimPrefix(arg, "--config=")
			case strings.HasPrefix(arg, "--api="):
				parsedArgs.APIURL = strings.TrimPrefix(arg, "--api=")
			default:
				remaining = append(remaining, arg)
			}
		}
	}

	return remaining, parsedArgs
}

func parseTUIArgs(args *Args, remaining []string) {
	p := NewArgParser(remaining)
	args.Path = p.Flag("path")
	if args.Path == "" {
		args.Path = p.Positional(0)
	}
}

func parseLoginArgs(args *Args, remaining []string) {
	p := NewArgParser(remaining)
	args.Role = strings.ToLower(p.Flag("role"))
	if args.Role == "" {
		// hms login doctor
		args.Role = strings.ToLower(p.Positional(0))
	}
	args.Email = p.FlagOrDefault("email", p.Flag("e"))
	args.PasswordStdin = p.BoolFlag("password-stdin")
}

func parseRegisterArgs(args *Args, remaining []string) {
	p := NewArgParser(remaining)
	args.Name = p.Flag("name")
	args.Email = p.FlagOrDefault("email", p.Flag("e"))
	args.Mobile = p.Flag("mobile")
	args.PasswordStdin = p.BoolFlag("password-stdin")
	for _, key := range []string{"age", "gender", "address", "blood-group", "phone"} {
		if v := p.Flag(key); v != "" {
			args.Options[key] = v
		}
	}
}

func parseSessionArgs(args *Args, remaining []string) {
	p := NewArgParser(remaining)
	args.Subcommand = strings.ToLower(p.Subcommand())
	if args.Subcommand == "" {
		args.Subcommand = "show"
	}
	if p.BoolFlag("json") {
		args.JSON = true
	}
}

func parseConfigArgs(args *Args, remaining []string) {
	if len(remaining) == 0 {
		args.Subcommand = "show"
		return
	}
	args.Subcommand = strings.ToLower(remaining[0])
	if len(remaining) > 1 {
		args.ConfigKey = remaining[1]
	}
	if len(remaining) > 2 {
		args.ConfigValue = strings.Join(remaining[2:], " ")
	}
}

// =============================================================================
// SIMPLE HANDLERS
// =============================================================================

// HandleVersion prints version information.
func HandleVersion(args Args) {
	if args.JSON {
		NewJSONResponse("version", VersionData{
			Version:   Version,
			GitCommit: GitCommit,
			BuildDate: BuildDate,
			GoVersion: runtime.Version(),
		}).Print()
		return
	}
	PrintVersion()
}

// HandleHelp prints usage. An unknown command is reported first and yields
// a usage error.
func HandleHelp(args Args) error {
	if args.Unknown != "" {
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", args.Unknown)
		fmt.Fprint(os.Stderr, usageText)
		return &UsageError{Reason: "unknown command " + args.Unknown}
	}
	PrintUsage()
	return nil
}
