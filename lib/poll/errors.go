// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package poll

import "errors"

// User-input errors. The command router turns each of these into a
// reply in the channel; none of them indicates a fault in the bot.
var (
	// ErrInvalidOptionCount is returned when a poll is created with
	// fewer than MinOptions or more than MaxOptions options.
	ErrInvalidOptionCount = errors.New("poll: invalid option count")

	// ErrTooManyArguments is returned when a poll ID command is given
	// more than one argument.
	ErrTooManyArguments = errors.New("poll: too many arguments")

	// ErrNotAValidID is returned when a poll ID argument does not
	// name a live poll.
	ErrNotAValidID = errors.New("poll: not a valid poll ID")

	// ErrPermissionDenied is returned when the requester is neither
	// the poll's author nor an administrator.
	ErrPermissionDenied = errors.New("poll: permission denied")

	// ErrAlreadyInactive is returned when deactivating a poll that no
	// longer accepts votes.
	ErrAlreadyInactive = errors.New("poll: already inactive")

	// ErrAlreadyDead is returned when destroying a tombstone.
	ErrAlreadyDead = errors.New("poll: already dead")
)

// ErrInvalidRecord is returned by Registry.Restore when a snapshot
// record violates a poll invariant (option count, vote list length,
// duplicate index). The persistence layer treats it like any other
// malformed snapshot.
var ErrInvalidRecord = errors.New("poll: invalid snapshot record")
