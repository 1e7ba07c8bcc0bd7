// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Bureau-pollmaker is a Matrix bot for polls voted on with emoji
// reactions.
//
// A user posts "!addpoll("Red", "Blue", {"title": "Colour?"})" and the
// bot answers with a numbered announcement, seeding one reaction per
// option. Reactions on the announcement are votes. "!stoppoll 1" ends
// voting, "!delpoll 1" discards the results, and "!votes 1" lists the
// tally with voter names. Only the poll's author, a room member at or
// above the configured power level, or a configured operator may stop
// or delete a poll.
//
// # Startup
//
// "bureau-pollmaker run" reads its YAML configuration and the Matrix
// session from the state directory, performs an initial /sync to
// prime the member and power level caches, joins pending invites and
// configured rooms, and loads the poll cache. Every reference in the
// cache is resolved against the homeserver; polls whose announcement
// was redacted while the bot was offline are dropped. A malformed
// cache aborts startup without touching the file.
//
// # Event handling
//
// A single dispatcher goroutine owns the poll registry. The /sync loop
// translates timeline events into chat events and hands them over one
// at a time; the control socket submits requests through the same
// goroutine. After each event the cache is rewritten if anything
// changed.
//
// # Control socket
//
// The daemon listens on a Unix socket (mode 0600) speaking CBOR, one
// request per connection. The status, polls, flush, and leave
// subcommands are its clients. check-cache validates a cache file
// without a running daemon.
package main
