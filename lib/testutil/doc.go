// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers.
//
// [SocketDir] creates a short temporary directory for Unix domain
// sockets, whose paths are limited to 108 bytes; t.TempDir() paths
// under a deeply nested TMPDIR can exceed that.
//
// [RequireReceive], [RequireSend], and [RequireClosed] wrap the
// select-with-timeout pattern so that tests waiting on goroutines do
// not hang forever when something goes wrong. These are the only
// place tests use real wall-clock timeouts; everything else runs on
// clock.Fake.
//
// [RequireSocket] waits for a server's socket file to appear.
//
// All helpers call t.Fatalf on failure rather than returning errors.
package testutil
