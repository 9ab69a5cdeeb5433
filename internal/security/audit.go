// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package security provides session audit logging and token protection at rest.
package security

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/jeranaias/hms-tui/internal/util"
)

// =============================================================================
// AUDIT EVENT
// =============================================================================

// AuditEvent is a single line of the audit log.
type AuditEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	RequestID string            `json:"request_id,omitempty"`
	UserID    string            `json:"user_id,omitempty"`
	Role      string            `json:"role,omitempty"`
	Success   bool              `json:"success"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// ToLogLine formats the event for human display.
func (e *AuditEvent) ToLogLine() string {
	status := "SUCCESS"
	if !e.Success {
		status = "FAILURE"
		if e.Error != "" {
			status = "ERROR: " + e.Error
		}
	}
	return fmt.Sprintf("%s | %-22s | %-10s | %-8s | %s",
		e.Timestamp.Format("2006-01-02 15:04:05"),
		e.EventType,
		e.UserID,
		e.Role,
		status,
	)
}

// =============================================================================
// REDACTION
// =============================================================================

// Redactor removes secrets from text before it is written.
type Redactor interface {
	Redact(input string) string
	Name() string
}

// PatternRedactor redacts text matching a regex pattern.
type PatternRedactor struct {
	name    string
	pattern *regexp.Regexp
	replace string
}

// NewPatternRedactor creates a new pattern-based redactor.
func NewPatternRedactor(name string, pattern *regexp.Regexp, replace string) *PatternRedactor {
	return &PatternRedactor{name: name, pattern: pattern, replace: replace}
}

// Redact replaces matches with the replacement string.
func (r *PatternRedactor) Redact(input string) string {
	return r.pattern.ReplaceAllString(input, r.replace)
}

// Name returns the redactor name.
func (r *PatternRedactor) Name() string {
	return r.name
}

var secretPatterns = []struct {
	name    string
	pattern *regexp.Regexp
	replace string
}{
	{"Bearer", regexp.MustCompile(`Bearer\s+[a-zA-Z0-9\-_.~+/]+=*`), "Bearer [TOKEN_REDACTED]"},
	{"JWT", regexp.MustCompile(`eyJ[a-zA-Z0-9_-]*\.eyJ[a-zA-Z0-9_-]*\.[a-zA-Z0-9_-]*`), "[JWT_REDACTED]"},
	{"Password", regexp.MustCompile(`(?i)(password|passwd|pwd)"?\s*[=:]\s*"?[^\s",}]+`), "[PASSWORD_REDACTED]"},
	{"Sealed", regexp.MustCompile(regexp.QuoteMeta(SealedPrefix) + `[A-Za-z0-9+/=]+`), "[SEALED_REDACTED]"},
}

func defaultRedactors() []Redactor {
	out := make([]Redactor, 0, len(secretPatterns))
	for _, sp := range secretPatterns {
		out = append(out, NewPatternRedactor(sp.name, sp.pattern, sp.replace))
	}
	return out
}

// =============================================================================
// AUDIT LOGGER
// =============================================================================

// AuditLogger appends JSON lines to the audit file. It is safe for concurrent use.
// A nil *AuditLogger discards events.
type AuditLogger struct {
	mu        sync.Mutex
	path      string
	file      *os.File
	redactors []Redactor
	now       func() time.Time
}

// NewAuditLogger opens (or creates) the audit log at path with 0600 permissions.
func NewAuditLogger(path string) (*AuditLogger, error) {
	if err := os.MkdirAll(filepath.Dir(path), util.PrivateDirPerm); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log file: %w", err)
	}
	return &AuditLogger{
		path:      path,
		file:      file,
		redactors: defaultRedactors(),
		now:       time.Now,
	}, nil
}

// Path returns the log file location.
func (l *AuditLogger) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Log writes one event. Error text and metadata values pass through every redactor.
func (l *AuditLogger) Log(event AuditEvent) error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = l.now()
	}
	event.Error = l.redact(event.Error)
	if len(event.Metadata) > 0 {
		clean := make(map[string]string, len(event.Metadata))
		for k, v := range event.Metadata {
			clean[k] = l.redact(v)
		}
		event.Metadata = clean
	}

	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode audit event: %w", err)
	}
	line = append(line, '\n')
	if _, err := l.file.Write(line); err != nil {
		return fmt.Errorf("failed to write audit event: %w", err)
	}
	// RELIABILITY: audit entries survive a crash right after logout
	return l.file.Sync()
}

// LogEvent is a convenience wrapper used by the session store.
func (l *AuditLogger) LogEvent(eventType string, success bool, metadata map[string]string) error {
	ev := AuditEvent{EventType: eventType, Success: success}
	if len(metadata) > 0 {
		ev.Metadata = make(map[string]string, len(metadata))
		for k, v := range metadata {
			switch k {
			case "user_id":
				ev.UserID = v
			case "role":
				ev.Role = v
			case "request_id":
				ev.RequestID = v
			case "error":
				ev.Error = v
			default:
				ev.Metadata[k] = v
			}
		}
		if len(ev.Metadata) == 0 {
			ev.Metadata = nil
		}
	}
	return l.Log(ev)
}

// Tail returns the last n events, oldest first. Malformed lines are skipped.
func (l *AuditLogger) Tail(n int) ([]AuditEvent, error) {
	if l == nil {
		return nil, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return ReadAuditLog(l.path, n)
}

// Close closes the underlying file.
func (l *AuditLogger) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

func (l *AuditLogger) redact(s string) string {
	if s == "" {
		return s
	}
	for _, r := range l.redactors {
		s = r.Redact(s)
	}
	return s
}

// ReadAuditLog reads the last n events from the file at path. n <= 0 reads all.
func ReadAuditLog(path string, n int) ([]AuditEvent, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}
	defer f.Close()

	var events []AuditEvent
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var ev AuditEvent
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			continue
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read audit log: %w", err)
	}
	if n > 0 && len(events) > n {
		events = events[len(events)-n:]
	}
	return events, nil
}
