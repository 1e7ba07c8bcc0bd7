// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package pollcache encodes poll registry snapshots as JSON and
// decodes them back, resolving every stored platform reference into a
// live entity.
//
// Platform entities are written as tagged references:
//
//	{"id": "!room:example.org", "type": "Channel"}
//	{"channel": {...}, "id": "$event", "type": "Message"}
//	{"channel": {...}, "id": "@alice:example.org", "type": "Member"}
//	{"id": "@alice:example.org", "type": "User"}
//
// Message and Member references nest the Channel they belong to,
// because neither can be looked up without it.
//
// Decoding runs in two phases. The first parses the file into records
// whose entity fields are pending references; nothing touches the
// network. The second collects every pending reference into a flat
// list, resolves each distinct reference once, and writes the results
// back in place. A reference the resolver reports as not found becomes
// a [chat.Gone] marker instead of failing the decode, so a voter who
// left the room or an announcement deleted while the bot was offline
// does not prevent the rest of the snapshot from loading.
package pollcache
