// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// env.go - Builds the session stack every command shares: config, durable
// store, token sealer, audit log, API client and session store.

package cli

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/jeranaias/hms-tui/internal/api"
	"github.com/jeranaias/hms-tui/internal/config"
	"github.com/jeranaias/hms-tui/internal/guard"
	"github.com/jeranaias/hms-tui/internal/security"
	"github.com/jeranaias/hms-tui/internal/session"
	"github.com/jeranaias/hms-tui/internal/storage"
	"github.com/jeranaias/hms-tui/internal/util"
)

// Env is the wired session stack. Close releases everything it opened.
type Env struct {
	Config     *config.Config
	ConfigPath string // file the config came from, "" for defaults

	KV        storage.KV
	StorePath string
	Client    *api.Client
	Store     *session.Store
	Guard     *guard.Guard
	Audit     *security.AuditLogger

	logFile io.Closer
}

// LoadConfig loads the config named by --config, or the default files, then
// applies --api and --verbose. An unreadable default file is reported on
// stderr and defaults are used.
func LoadConfig(args Args) (*config.Config, string, error) {
	var (
		cfg  *config.Config
		path string
		err  error
	)

	if args.ConfigPath != "" {
		path = args.ConfigPath
		cfg, err = config.LoadFromPath(path)
		if err != nil {
			return nil, "", &ConfigError{Err: err}
		}
	} else {
		cfg, err = config.Load()
		if cfg == nil {
			return nil, "", &ConfigError{Err: err}
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
		} else {
			path = existingConfigPath()
		}
	}

	if args.APIURL != "" {
		cfg.API.BaseURL = strings.TrimRight(args.APIURL, "/")
		if err := cfg.Validate(); err != nil {
			return nil, "", &ConfigError{Err: fmt.Errorf("--api: %w", err)}
		}
	}
	if args.Verbose {
		cfg.Logging.Verbose = true
	}
	return cfg, path, nil
}

func existingConfigPath() string {
	for _, fn := range []func() (string, error){config.ConfigPathTOML, config.ConfigPathJSON} {
		if p, err := fn(); err == nil {
			if _, statErr := os.Stat(p); statErr == nil {
				return p
			}
		}
	}
	return ""
}

// Bootstrap wires the session stack from args. The store is not yet
// initialized; callers decide whether to call Initialize.
func Bootstrap(args Args) (env *Env, err error) {
	cfg, cfgPath, err := LoadConfig(args)
	if err != nil {
		return nil, err
	}
	if err := config.EnsureConfigDir(); err != nil {
		return nil, &ConfigError{Err: fmt.Errorf("failed to create config directory: %w", err)}
	}

	env = &Env{Config: cfg, ConfigPath: cfgPath}
	defer func() {
		if err != nil {
			env.Close()
			env = nil
		}
	}()

	env.logFile = redirectLog(cfg)

	env.StorePath, err = cfg.SessionPath()
	if err != nil {
		return env, &ConfigError{Err: err}
	}
	env.KV, err = storage.Open(cfg.Session.Backend, env.StorePath)
	if err != nil {
		return env, fmt.Errorf("failed to open session store: %w", err)
	}

	opts := []session.Option{
		session.WithDuration(cfg.SessionDuration()),
		session.WithRestoreTimeout(cfg.RestoreTimeout()),
		session.WithRoleVerification(cfg.Session.VerifyRole),
	}

	if cfg.Session.EncryptToken {
		sealer, err := openSealer(cfg)
		if err != nil {
			return env, err
		}
		opts = append(opts, session.WithTokenCodec(sealer))
	}

	if cfg.Logging.Audit {
		auditPath, err := cfg.AuditPath()
		if err != nil {
			return env, &ConfigError{Err: err}
		}
		env.Audit, err = security.NewAuditLogger(auditPath)
		if err != nil {
			// Sessions still work without an audit trail
			log.Printf("audit: %v", err)
		} else {
			opts = append(opts, session.WithAuditor(env.Audit))
		}
	}

	api.Version = Version
	env.Client = api.NewClient(cfg.API.BaseURL).
		WithTimeout(cfg.RequestTimeout()).
		WithVerbose(cfg.Logging.Verbose)

	env.Store = session.NewStore(env.KV, env.Client, opts...)
	env.Guard = guard.New(nil)
	return env, nil
}

func openSealer(cfg *config.Config) (*security.Sealer, error) {
	keyPath, err := cfg.KeyPath()
	if err != nil {
		return nil, &ConfigError{Err: err}
	}
	key, err := security.LoadOrCreateMasterKey(keyPath)
	if err != nil {
		return nil, err
	}
	defer security.ZeroBytes(key)
	return security.NewSealer(key)
}

// redirectLog sends the standard logger to the configured log file. The
// terminal belongs to the TUI or to command output, so when the file
// cannot be opened diagnostics are dropped.
func redirectLog(cfg *config.Config) io.Closer {
	path, err := cfg.LogPath()
	if err == nil {
		err = os.MkdirAll(filepath.Dir(path), util.PrivateDirPerm)
	}
	var f *os.File
	if err == nil {
		f, err = os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	}
	if err != nil {
		log.SetOutput(io.Discard)
		return nil
	}
	log.SetOutput(f)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	return f
}

// Close releases the store, audit log and log file.
func (e *Env) Close() error {
	if e == nil {
		return nil
	}
	var firstErr error
	if e.KV != nil {
		if err := e.KV.Close(); err != nil {
			firstErr = err
		}
	}
	if e.Audit != nil {
		if err := e.Audit.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if e.logFile != nil {
		log.SetOutput(os.Stderr)
		e.logFile.Close()
	}
	return firstErr
}

// Watchable reports whether other processes can change the store.
func (e *Env) Watchable() bool {
	return e.Config.Session.Watch && e.StorePath != ""
}
