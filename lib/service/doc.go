// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package service provides the runtime scaffolding of the poll bot
// daemon:
//
//   - Session loading: read session.json from the state directory and
//     create an authenticated Matrix client and session.
//   - Sync loop: the initial /sync, then the incremental long-poll
//     with exponential backoff, delivering responses to a handler.
//   - Logging: the daemon's structured logger.
//   - Control socket: a CBOR request-response server on a Unix socket
//     with action dispatch, connection timeouts, and graceful
//     shutdown, plus the matching client used by the CLI.
//
// The daemon composes these in its own run function rather than
// inheriting a framework.
//
// # Authentication
//
// The control socket carries no caller authentication. The socket file
// is created mode 0600 in the state directory, so only the account
// running the daemon can connect.
package service
