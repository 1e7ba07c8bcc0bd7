// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"
)

// Log formats accepted by NewLogger.
const (
	LogFormatJSON = "json"
	LogFormatText = "text"
	// LogFormatAuto selects text when the output is a terminal and
	// JSON otherwise.
	LogFormatAuto = "auto"
)

// ParseLogLevel converts "debug", "info", "warn", or "error" (any
// case) to a slog.Level. The empty string is Info.
func ParseLogLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", name)
}

// NewLogger creates the daemon logger writing to output at level in
// the given format, and installs it as the slog default so library
// code logging through slog.Default shares the handler.
func NewLogger(output io.Writer, level slog.Level, format string) (*slog.Logger, error) {
	options := &slog.HandlerOptions{Level: level}
	if format == LogFormatAuto || format == "" {
		format = LogFormatJSON
		if file, ok := output.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
			format = LogFormatText
		}
	}

	var handler slog.Handler
	switch format {
	case LogFormatJSON:
		handler = slog.NewJSONHandler(output, options)
	case LogFormatText:
		handler = slog.NewTextHandler(output, options)
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger, nil
}
