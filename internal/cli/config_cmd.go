// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config_cmd.go - hms config [show|get|set|path].

package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/jeranaias/hms-tui/internal/config"
)

const configUsage = "hms config [show|get KEY|set KEY VALUE|path|keys]"

// HandleConfig dispatches config subcommands.
func HandleConfig(args Args) error {
	switch args.Subcommand {
	case "show", "":
		return handleConfigShow(args)
	case "get":
		return handleConfigGet(args)
	case "set":
		return handleConfigSet(args)
	case "path":
		return handleConfigPath(args)
	case "keys":
		keys := config.GetAllKeys()
		sort.Strings(keys)
		if args.JSON {
			return NewJSONResponse("config keys", keys).Print()
		}
		fmt.Println(strings.Join(keys, "\n"))
		return nil
	default:
		return &UsageError{Reason: "unknown config subcommand: " + args.Subcommand, Hint: configUsage}
	}
}

// targetPath is where set writes: --config when given, else the default TOML file.
func targetPath(args Args) (string, error) {
	if args.ConfigPath != "" {
		return args.ConfigPath, nil
	}
	return config.ConfigPathTOML()
}

func handleConfigShow(args Args) error {
	cfg, path, err := LoadConfig(args)
	if err != nil {
		return err
	}
	if args.JSON {
		var data map[string]interface{}
		if err := json.Unmarshal([]byte(cfg.String()), &data); err != nil {
			return err
		}
		return NewJSONResponse("config show", data).Print()
	}
	if path == "" {
		path = "(defaults)"
	}
	fmt.Println(RenderField("Config file", path))
	fmt.Println(highlightJSON(cfg.String()))
	return nil
}

func handleConfigGet(args Args) error {
	if args.ConfigKey == "" {
		return ErrMissingArgument("KEY", "hms config get KEY")
	}
	cfg, _, err := LoadConfig(args)
	if err != nil {
		return err
	}
	value, err := cfg.Get(args.ConfigKey)
	if err != nil {
		return &UsageError{Reason: err.Error(), Hint: "hms config keys"}
	}
	if args.JSON {
		return NewJSONResponse("config get", ConfigValueData{Key: args.ConfigKey, Value: value}).Print()
	}
	fmt.Println(value)
	return nil
}

func handleConfigSet(args Args) error {
	if args.ConfigKey == "" || args.ConfigValue == "" {
		return ErrMissingArgument("KEY VALUE", "hms config set KEY VALUE")
	}
	// Save the file's own values, not --api or --verbose
	cfg := config.Default()
	if _, statErr := os.Stat(args.ConfigPath); args.ConfigPath == "" || statErr == nil {
		loaded, _, err := LoadConfig(Args{ConfigPath: args.ConfigPath})
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if err := cfg.Set(args.ConfigKey, args.ConfigValue); err != nil {
		return &UsageError{Reason: err.Error(), Hint: "hms config keys"}
	}
	if err := cfg.Migrate(); err != nil {
		return &ConfigError{Err: err}
	}
	if err := cfg.Validate(); err != nil {
		return &ConfigError{Err: err}
	}

	path, err := targetPath(args)
	if err != nil {
		return &ConfigError{Err: err}
	}
	if strings.HasSuffix(path, ".json") {
		err = config.SaveJSON(cfg, path)
	} else {
		err = config.SaveTOML(cfg, path)
	}
	if err != nil {
		return &ConfigError{Err: err}
	}

	value, _ := cfg.Get(args.ConfigKey)
	if args.JSON {
		return NewJSONResponse("config set", ConfigValueData{Key: args.ConfigKey, Value: value, Path: path}).Print()
	}
	fmt.Printf("%s %s = %v\n", SuccessStyle.Render("[OK]"), args.ConfigKey, value)
	fmt.Println(DimStyle.Render("  saved to " + path))
	return nil
}

func handleConfigPath(args Args) error {
	path, err := targetPath(args)
	if err != nil {
		return &ConfigError{Err: err}
	}
	if args.JSON {
		return NewJSONResponse("config path", map[string]string{"path": path}).Print()
	}
	fmt.Println(path)
	return nil
}
