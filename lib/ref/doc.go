// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package ref provides validated, immutable value types for the Matrix
// identifiers the poll bot handles: user IDs, room IDs, event IDs, and
// event types.
//
// Identifiers arrive from the homeserver (in /sync responses and API
// replies), from the operator (configuration, CLI flags), and from the
// poll snapshot on disk. Each boundary parses raw strings into these
// types once, so the rest of the code never handles an unvalidated
// identifier.
//
// All types implement encoding.TextMarshaler and TextUnmarshaler, so
// they serialize as plain strings in JSON, YAML, and CBOR, and parse
// (with validation) on the way back in.
package ref
