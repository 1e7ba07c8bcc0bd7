// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli provides the command-line framework for the pollmaker
// binary.
//
// The central type is [Command]: a named subcommand with optional
// nested [Command.Subcommands], a [pflag.FlagSet] factory, and a Run
// function. The tree is assembled in cmd/bureau-pollmaker and
// dispatched via [Command.Execute], which handles flag parsing,
// subcommand routing, and help output with examples.
//
// An unknown subcommand or flag produces an error suggesting the
// closest known name by Levenshtein distance (at most 3).
//
// [ExitError] lets a command choose its exit status after printing its
// own output, and [WriteJSON] is the shared --json renderer.
package cli
