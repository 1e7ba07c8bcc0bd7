// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/pollmaker/lib/ref"
)

// EnvironmentVariable names the config file when --config is absent.
const EnvironmentVariable = "POLLMAKER_CONFIG"

// Environment represents the deployment environment.
type Environment string

const (
	Development Environment = "development"
	Production  Environment = "production"
)

// Config is the configuration of the poll bot.
type Config struct {
	// Environment selects which override section applies.
	Environment Environment `yaml:"environment"`

	// Homeserver overrides the homeserver URL stored in the session
	// file. Empty uses the session file's URL.
	Homeserver string `yaml:"homeserver"`

	// StateDir holds the session file, the poll cache, and the control
	// socket unless those are configured individually.
	StateDir string `yaml:"state_dir"`

	// SessionFile is the Matrix session (homeserver_url, user_id,
	// access_token). Default: ${state_dir}/session.json.
	SessionFile string `yaml:"session_file"`

	// CacheFile is the poll snapshot. Default: ${state_dir}/polls.json.
	// Set to "none" to disable persistence.
	CacheFile string `yaml:"cache_file"`

	// SocketPath is the control socket. Default:
	// ${state_dir}/pollmaker.sock.
	SocketPath string `yaml:"socket_path"`

	// CommandPrefix starts every chat command. Default: "!".
	CommandPrefix string `yaml:"command_prefix"`

	// Operators are administrators in every room.
	Operators []string `yaml:"operators"`

	// AdministratorLevel is the room power level that may manage any
	// poll. Default: 100.
	AdministratorLevel int `yaml:"administrator_level"`

	// Rooms are joined at startup in addition to accepted invites.
	Rooms []string `yaml:"rooms"`

	Sync SyncConfig `yaml:"sync"`

	// LogLevel is debug, info, warn, or error. Default: info.
	LogLevel string `yaml:"log_level"`

	// LogFormat is json, text, or auto. Default: json.
	LogFormat string `yaml:"log_format"`

	Development *Overrides `yaml:"development,omitempty"`
	Production  *Overrides `yaml:"production,omitempty"`
}

// SyncConfig tunes the /sync loop.
type SyncConfig struct {
	// Timeout is the long-poll timeout. Default: 30s.
	Timeout Duration `yaml:"timeout"`

	// MaxBackoff caps the retry delay after failed syncs. Default: 30s.
	MaxBackoff Duration `yaml:"max_backoff"`

	// TimelineLimit is the number of timeline events per room per
	// sync. Default: 100.
	TimelineLimit int `yaml:"timeline_limit"`
}

// Overrides contains the fields an environment section may replace.
type Overrides struct {
	Homeserver *string  `yaml:"homeserver,omitempty"`
	StateDir   *string  `yaml:"state_dir,omitempty"`
	CacheFile  *string  `yaml:"cache_file,omitempty"`
	Operators  []string `yaml:"operators,omitempty"`
	Rooms      []string `yaml:"rooms,omitempty"`
	LogLevel   *string  `yaml:"log_level,omitempty"`
	LogFormat  *string  `yaml:"log_format,omitempty"`
}

// Duration is a time.Duration written in YAML as a Go duration string
// ("30s", "2m").
type Duration time.Duration

// UnmarshalYAML parses a duration string.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var text string
	if err := node.Decode(&text); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(text)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML writes the duration string.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// DisabledCache is the cache_file value that turns persistence off.
const DisabledCache = "none"

// Default returns the configuration used as the base before a file is
// loaded.
func Default() *Config {
	return &Config{
		Environment:        Development,
		StateDir:           "${HOME}/.local/state/pollmaker",
		CommandPrefix:      "!",
		AdministratorLevel: 100,
		Sync: SyncConfig{
			Timeout:       Duration(30 * time.Second),
			MaxBackoff:    Duration(30 * time.Second),
			TimelineLimit: 100,
		},
		LogLevel:  "info",
		LogFormat: "json",
	}
}

// Load loads configuration from the file named by POLLMAKER_CONFIG.
// There is no search path: an unset variable is an error.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvironmentVariable)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your pollmaker.yaml config file, or use --config", EnvironmentVariable)
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from path over Default, applies the
// section for the configured environment, expands variables, and
// fills derived paths. The result is not validated; call Validate.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse is LoadFile for configuration already in memory.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()
	cfg.deriveDefaults()
	return cfg, nil
}

func (c *Config) applyEnvironmentOverrides() {
	var overrides *Overrides
	switch c.Environment {
	case Development:
		overrides = c.Development
	case Production:
		overrides = c.Production
	}
	if overrides == nil {
		return
	}

	if overrides.Homeserver != nil {
		c.Homeserver = *overrides.Homeserver
	}
	if overrides.StateDir != nil {
		c.StateDir = *overrides.StateDir
	}
	if overrides.CacheFile != nil {
		c.CacheFile = *overrides.CacheFile
	}
	if overrides.Operators != nil {
		c.Operators = overrides.Operators
	}
	if overrides.Rooms != nil {
		c.Rooms = overrides.Rooms
	}
	if overrides.LogLevel != nil {
		c.LogLevel = *overrides.LogLevel
	}
	if overrides.LogFormat != nil {
		c.LogFormat = *overrides.LogFormat
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} in path fields.
// ${STATE_DIR} refers to the expanded state_dir.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.StateDir = expandVars(c.StateDir, vars)
	vars["STATE_DIR"] = c.StateDir

	c.Homeserver = expandVars(c.Homeserver, vars)
	c.SessionFile = expandVars(c.SessionFile, vars)
	c.CacheFile = expandVars(c.CacheFile, vars)
	c.SocketPath = expandVars(c.SocketPath, vars)
}

func (c *Config) deriveDefaults() {
	if c.SessionFile == "" {
		c.SessionFile = filepath.Join(c.StateDir, "session.json")
	}
	if c.CacheFile == "" {
		c.CacheFile = filepath.Join(c.StateDir, "polls.json")
	}
	if c.SocketPath == "" {
		c.SocketPath = filepath.Join(c.StateDir, "pollmaker.sock")
	}
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		name := parts[1]
		defaultValue := parts[2]

		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// CachePath returns the snapshot path, or "" when persistence is
// disabled.
func (c *Config) CachePath() string {
	if c.CacheFile == DisabledCache {
		return ""
	}
	return c.CacheFile
}

// OperatorIDs returns the parsed operator list. Call after Validate.
func (c *Config) OperatorIDs() []ref.UserID {
	operators := make([]ref.UserID, 0, len(c.Operators))
	for _, raw := range c.Operators {
		if userID, err := ref.ParseUserID(raw); err == nil {
			operators = append(operators, userID)
		}
	}
	return operators
}

// RoomIDs returns the parsed startup room list. Call after Validate.
func (c *Config) RoomIDs() []ref.RoomID {
	rooms := make([]ref.RoomID, 0, len(c.Rooms))
	for _, raw := range c.Rooms {
		if roomID, err := ref.ParseRoomID(raw); err == nil {
			rooms = append(rooms, roomID)
		}
	}
	return rooms
}

var validLogLevels = []string{"debug", "info", "warn", "error"}
var validLogFormats = []string{"json", "text", "auto"}

// Validate checks the configuration and reports every problem found.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}
	if c.StateDir == "" {
		errs = append(errs, fmt.Errorf("state_dir is required"))
	}
	if c.CommandPrefix == "" || strings.ContainsAny(c.CommandPrefix, " \t\n") {
		errs = append(errs, fmt.Errorf("command_prefix must be non-empty and contain no whitespace"))
	}
	for _, operator := range c.Operators {
		if _, err := ref.ParseUserID(operator); err != nil {
			errs = append(errs, fmt.Errorf("operators: %w", err))
		}
	}
	for _, room := range c.Rooms {
		if _, err := ref.ParseRoomID(room); err != nil {
			errs = append(errs, fmt.Errorf("rooms: %w", err))
		}
	}
	if c.AdministratorLevel <= 0 {
		errs = append(errs, fmt.Errorf("administrator_level must be positive"))
	}
	if c.Sync.Timeout.Std() < 0 {
		errs = append(errs, fmt.Errorf("sync.timeout must not be negative"))
	}
	if c.Sync.MaxBackoff.Std() < time.Second {
		errs = append(errs, fmt.Errorf("sync.max_backoff must be at least 1s"))
	}
	if c.Sync.TimelineLimit <= 0 {
		errs = append(errs, fmt.Errorf("sync.timeline_limit must be positive"))
	}
	if !contains(validLogLevels, strings.ToLower(c.LogLevel)) {
		errs = append(errs, fmt.Errorf("log_level must be one of: %v", validLogLevels))
	}
	if !contains(validLogFormats, c.LogFormat) {
		errs = append(errs, fmt.Errorf("log_format must be one of: %v", validLogFormats))
	}

	return errors.Join(errs...)
}

// EnsureStateDir creates the state directory with owner-only access.
func (c *Config) EnsureStateDir() error {
	if err := os.MkdirAll(c.StateDir, 0o700); err != nil {
		return fmt.Errorf("creating %s: %w", c.StateDir, err)
	}
	return nil
}

func contains(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}
