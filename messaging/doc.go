// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package messaging wraps the slice of the Matrix client-server API the
// poll bot uses.
//
// [Client] holds the homeserver URL and HTTP transport. [DirectSession]
// adds an access token (kept in mmap-backed secret.Buffer memory) and
// provides the authenticated operations: identity checks, joining
// rooms, sending messages, reactions and edits, reading single events
// and state events, paging through annotation relations, profile
// lookups, and long-polling /sync. [Session] is the interface over
// those operations, so the chat adapter can be tested against a fake.
//
// All API errors are returned as [*MatrixError] carrying the Matrix
// error code (M_FORBIDDEN, M_NOT_FOUND, ...) and HTTP status.
// [IsMatrixError] tests for a specific code and [IsNotFound] for a
// missing event, state entry, or profile. Request URLs are built by
// string concatenation with url.PathEscape on every path segment, so
// event IDs containing '/' or '+' survive intact.
package messaging
