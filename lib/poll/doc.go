// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package poll is the poll lifecycle engine: the Poll state machine,
// the Registry that owns every poll and allocates their IDs, the glyph
// table that maps reaction emoji to option positions, and the text the
// bot posts for announcements and results.
//
// A poll moves through three states. It is created active, accepting
// votes. Deactivating it stops vote collection but keeps it queryable.
// Destroying it turns its registry slot into a tombstone: every
// identifying field is cleared and the slot's index becomes available
// to the next poll created. Tombstones at the end of the registry are
// trimmed after each destruction, so the visible ID range tracks the
// high-water mark of simultaneously existing polls.
//
// The Registry is not safe for concurrent use. The bot confines it to
// a single dispatcher goroutine; nothing else holds a *Poll beyond the
// handling of one event.
package poll
