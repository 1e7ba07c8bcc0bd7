// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package chat is the platform-neutral vocabulary the poll engine is
// written against: the closed set of entity variants (Channel, Message,
// Member, User, and Gone), plain references to them (Ref), the
// capability interfaces a chat platform must provide (Resolver and
// Client), and the inbound events the bot reacts to.
//
// Nothing in this package knows about Matrix. lib/matrixchat implements
// Resolver and Client over the Matrix client-server API and translates
// /sync responses into the events defined here. Tests substitute
// in-memory fakes.
package chat
