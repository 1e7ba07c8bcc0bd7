// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/pollmaker/lib/ref"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Environment != Development {
		t.Errorf("environment = %s, want development", cfg.Environment)
	}
	if cfg.CommandPrefix != "!" {
		t.Errorf("command_prefix = %q, want !", cfg.CommandPrefix)
	}
	if cfg.Sync.Timeout.Std() != 30*time.Second || cfg.Sync.MaxBackoff.Std() != 30*time.Second {
		t.Errorf("sync = %+v", cfg.Sync)
	}
}

func TestLoad_RequiresEnvironmentVariable(t *testing.T) {
	t.Setenv(EnvironmentVariable, "")
	_, err := Load()
	if err == nil || !strings.HasPrefix(err.Error(), "POLLMAKER_CONFIG environment variable not set") {
		t.Errorf("Load = %v, want unset variable error", err)
	}
}

func TestLoad_FromEnvironmentVariable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pollmaker.yaml")
	if err := os.WriteFile(path, []byte("state_dir: /srv/pollmaker\ncommand_prefix: \"?\"\n"), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	t.Setenv(EnvironmentVariable, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.CommandPrefix != "?" {
		t.Errorf("command_prefix = %q, want ?", cfg.CommandPrefix)
	}
	if cfg.SessionFile != "/srv/pollmaker/session.json" ||
		cfg.CacheFile != "/srv/pollmaker/polls.json" ||
		cfg.SocketPath != "/srv/pollmaker/pollmaker.sock" {
		t.Errorf("derived paths = %q %q %q", cfg.SessionFile, cfg.CacheFile, cfg.SocketPath)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestParse_Full(t *testing.T) {
	t.Setenv("POLLMAKER_TEST_ROOT", "/data")
	cfg, err := Parse([]byte(`
environment: production
homeserver: https://matrix.example.org
state_dir: ${POLLMAKER_TEST_ROOT}/bot
cache_file: ${STATE_DIR}/cache/polls.json
socket_path: ${RUNTIME_DIR:-/run/pollmaker}/control.sock
command_prefix: "!"
operators:
  - "@admin:example.org"
rooms:
  - "!polls:example.org"
administrator_level: 50
sync:
  timeout: 10s
  max_backoff: 2m
  timeline_limit: 20
log_level: debug
production:
  log_format: text
  operators:
    - "@oncall:example.org"
development:
  log_level: error
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if cfg.StateDir != "/data/bot" {
		t.Errorf("state_dir = %q", cfg.StateDir)
	}
	if cfg.CacheFile != "/data/bot/cache/polls.json" {
		t.Errorf("cache_file = %q", cfg.CacheFile)
	}
	if cfg.SocketPath != "/run/pollmaker/control.sock" {
		t.Errorf("socket_path = %q", cfg.SocketPath)
	}
	if cfg.Sync.Timeout.Std() != 10*time.Second || cfg.Sync.MaxBackoff.Std() != 2*time.Minute || cfg.Sync.TimelineLimit != 20 {
		t.Errorf("sync = %+v", cfg.Sync)
	}
	if cfg.LogFormat != "text" || cfg.LogLevel != "debug" {
		t.Errorf("production section not applied (or development applied): format=%q level=%q", cfg.LogFormat, cfg.LogLevel)
	}
	operators := cfg.OperatorIDs()
	if len(operators) != 1 || operators[0] != ref.MustParseUserID("@oncall:example.org") {
		t.Errorf("operators = %v, want the production override", operators)
	}
	rooms := cfg.RoomIDs()
	if len(rooms) != 1 || rooms[0] != ref.MustParseRoomID("!polls:example.org") {
		t.Errorf("rooms = %v", rooms)
	}
	if cfg.AdministratorLevel != 50 {
		t.Errorf("administrator_level = %d", cfg.AdministratorLevel)
	}
}

func TestParse_Empty(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse(empty): %v", err)
	}
	if cfg.CommandPrefix != "!" {
		t.Errorf("empty file lost defaults: %+v", cfg)
	}
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown key", "comand_prefix: \"!\"\n"},
		{"bad duration", "sync:\n  timeout: soon\n"},
		{"not a mapping", "- a\n- b\n"},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if _, err := Parse([]byte(test.yaml)); err == nil {
				t.Errorf("Parse(%q) succeeded", test.yaml)
			}
		})
	}
}

func TestCachePath(t *testing.T) {
	cfg, err := Parse([]byte("state_dir: /s\ncache_file: none\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.CachePath() != "" {
		t.Errorf("CachePath = %q, want disabled", cfg.CachePath())
	}
	cfg.CacheFile = "/s/polls.json"
	if cfg.CachePath() != "/s/polls.json" {
		t.Errorf("CachePath = %q", cfg.CachePath())
	}
}

func TestValidate_ReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.Environment = "staging"
	cfg.CommandPrefix = "! "
	cfg.Operators = []string{"admin"}
	cfg.Rooms = []string{"#polls:example.org"}
	cfg.AdministratorLevel = 0
	cfg.Sync.MaxBackoff = Duration(time.Millisecond)
	cfg.Sync.TimelineLimit = 0
	cfg.LogLevel = "loud"
	cfg.LogFormat = "xml"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate accepted an invalid config")
	}
	for _, fragment := range []string{
		"invalid environment",
		"command_prefix",
		"operators",
		"rooms",
		"administrator_level",
		"sync.max_backoff",
		"sync.timeline_limit",
		"log_level",
		"log_format",
	} {
		if !strings.Contains(err.Error(), fragment) {
			t.Errorf("Validate error lacks %q:\n%v", fragment, err)
		}
	}
}

func TestEnsureStateDir(t *testing.T) {
	cfg := Default()
	cfg.StateDir = filepath.Join(t.TempDir(), "nested", "state")
	if err := cfg.EnsureStateDir(); err != nil {
		t.Fatalf("EnsureStateDir: %v", err)
	}
	info, err := os.Stat(cfg.StateDir)
	if err != nil || !info.IsDir() || info.Mode().Perm() != 0o700 {
		t.Errorf("state dir = %v, %v", info, err)
	}
}
