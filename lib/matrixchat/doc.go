// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package matrixchat implements the chat platform interfaces over
// Matrix.
//
// An [Adapter] is a chat.Client (sending messages, edits, and
// reactions, and answering administrator checks from room power levels
// plus a configured operator list), a chat.Resolver (turning cached
// references back into live entities through the homeserver), and a
// translator from /sync responses to chat events.
//
// Matrix has no "reaction removed" event: taking a reaction back
// redacts the m.reaction event, and the redaction names only the
// reaction's event ID. The adapter therefore keeps a reaction index
// from reaction event ID to (room, target, key, sender), fed by the
// sync stream and rebuilt at startup from the relations API for every
// live poll announcement. A redaction found in the index becomes
// chat.ReactionRemoved; any other redaction becomes
// chat.MessageDeleted.
//
// Events sent by the bot's own account are never translated, so the
// bot's seed reactions and replies do not loop back into the router.
package matrixchat
