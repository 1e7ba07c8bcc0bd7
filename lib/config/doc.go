// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for the poll bot.
//
// Configuration is loaded from a single file named by either the
// POLLMAKER_CONFIG environment variable (via [Load]) or a --config
// flag (via [LoadFile]). There is no file search and no environment
// variable overrides individual settings.
//
// The file may contain development and production sections whose
// fields replace the base values when [Config].Environment matches.
//
// Path fields support ${HOME}, ${STATE_DIR}, and ${VAR:-default}
// expansion. session_file, cache_file, and socket_path default to
// files inside state_dir. Unknown keys are rejected so that a typo
// does not silently fall back to a default.
package config
