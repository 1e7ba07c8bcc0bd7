// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import "context"

// Resolver turns references back into live entities. Implementations
// return an error wrapping ErrNotFound when the entity no longer
// exists; any other error means the lookup itself failed.
type Resolver interface {
	Resolve(ctx context.Context, reference Ref) (Entity, error)
}

// Client is the set of platform operations the poll bot performs.
type Client interface {
	// Self returns the bot's own identity in a channel (a Member). The
	// poll's owner is set to this value so that the bot's own seed
	// reactions never count as votes.
	Self(ctx context.Context, channel string) (Entity, error)

	// Send posts a plain-text message and returns it.
	Send(ctx context.Context, channel, text string) (*Message, error)

	// Edit replaces the content of one of the bot's messages and
	// returns the message with its new content.
	Edit(ctx context.Context, message *Message, text string) (*Message, error)

	// React adds a reaction with the given key to a message.
	React(ctx context.Context, message *Message, key string) error

	// IsAdministrator reports whether user may manage polls they did
	// not create in the given channel.
	IsAdministrator(ctx context.Context, channel string, user Entity) (bool, error)
}
