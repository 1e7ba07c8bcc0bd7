// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chat

// Event is an inbound platform event. The set of implementations is
// closed; the bot switches on the concrete type.
type Event interface {
	event()
}

// MessageCreated is a new message in a channel the bot is in.
type MessageCreated struct {
	Message *Message
	Author  Entity
}

// ReactionAdded is a reaction placed on a message.
type ReactionAdded struct {
	Channel   string
	MessageID string
	User      Entity
	Key       string
}

// ReactionRemoved is a reaction taken back off a message.
type ReactionRemoved struct {
	Channel   string
	MessageID string
	User      Entity
	Key       string
}

// MessageDeleted is a message removed from a channel.
type MessageDeleted struct {
	Channel   string
	MessageID string
}

func (MessageCreated) event()  {}
func (ReactionAdded) event()   {}
func (ReactionRemoved) event() {}
func (MessageDeleted) event()  {}
