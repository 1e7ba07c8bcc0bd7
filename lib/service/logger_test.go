// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"info", slog.LevelInfo, false},
		{"DEBUG", slog.LevelDebug, false},
		{"warn", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", 0, true},
	}
	for _, test := range tests {
		got, err := ParseLogLevel(test.input)
		if (err != nil) != test.wantErr {
			t.Errorf("ParseLogLevel(%q): err=%v, wantErr=%v", test.input, err, test.wantErr)
			continue
		}
		if !test.wantErr && got != test.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", test.input, got, test.want)
		}
	}
}

func TestNewLogger(t *testing.T) {
	previous := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previous) })

	var buffer bytes.Buffer
	// A buffer is not a terminal, so auto selects JSON.
	logger, err := NewLogger(&buffer, slog.LevelInfo, LogFormatAuto)
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	logger.Debug("hidden")
	logger.Info("poll created", "poll", "001")

	var record map[string]any
	if err := json.Unmarshal(buffer.Bytes(), &record); err != nil {
		t.Fatalf("output is not one JSON record: %q", buffer.String())
	}
	if record["msg"] != "poll created" || record["poll"] != "001" {
		t.Errorf("record = %v", record)
	}

	buffer.Reset()
	textLogger, err := NewLogger(&buffer, slog.LevelDebug, LogFormatText)
	if err != nil {
		t.Fatalf("NewLogger(text): %v", err)
	}
	textLogger.Debug("visible")
	if !strings.Contains(buffer.String(), "msg=visible") {
		t.Errorf("text output = %q", buffer.String())
	}

	if _, err := NewLogger(&buffer, slog.LevelInfo, "xml"); err == nil {
		t.Error("NewLogger accepted an unknown format")
	}
}
