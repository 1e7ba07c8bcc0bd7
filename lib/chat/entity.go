// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by a Resolver when the referenced entity no
// longer exists on the platform (deleted message, departed member,
// room the bot was removed from).
var ErrNotFound = errors.New("chat: entity not found")

// Kind tags the variant of an entity or reference. The string values
// are the tags written to the poll snapshot file.
type Kind string

const (
	KindChannel Kind = "Channel"
	KindMessage Kind = "Message"
	KindMember  Kind = "Member"
	KindUser    Kind = "User"
)

// Valid reports whether k is one of the four known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindChannel, KindMessage, KindMember, KindUser:
		return true
	}
	return false
}

// Ref identifies an entity without holding a live handle to it. Message
// and Member references carry the channel they belong to, since neither
// can be looked up without it.
type Ref struct {
	Kind    Kind
	ID      string
	Channel string
}

// Key returns a string that is equal for two references exactly when
// they name the same entity. Used to deduplicate resolution work.
func (r Ref) Key() string {
	if r.Channel == "" {
		return string(r.Kind) + "|" + r.ID
	}
	return string(r.Kind) + "|" + r.Channel + "|" + r.ID
}

func (r Ref) String() string {
	if r.Channel == "" {
		return fmt.Sprintf("%s(%s)", r.Kind, r.ID)
	}
	return fmt.Sprintf("%s(%s in %s)", r.Kind, r.ID, r.Channel)
}

// IsPerson reports whether the reference names a user, either directly
// or as a channel member.
func (r Ref) IsPerson() bool {
	return r.Kind == KindMember || r.Kind == KindUser
}

// Entity is the capability interface every variant implements.
type Entity interface {
	// Ref returns the portable reference for this entity.
	Ref() Ref

	// DisplayName is the human-readable name used in poll results.
	DisplayName() string
}

// Channel is a text channel polls are posted in.
type Channel struct {
	ID   string
	Name string
}

func (c Channel) Ref() Ref { return Ref{Kind: KindChannel, ID: c.ID} }

func (c Channel) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	return c.ID
}

// Message is a posted chat message. Content is the current plain-text
// body, which the bot extends when it marks a poll as ended or deleted.
type Message struct {
	ID      string
	Channel string
	Sender  string
	Content string
}

func (m *Message) Ref() Ref { return Ref{Kind: KindMessage, ID: m.ID, Channel: m.Channel} }

func (m *Message) DisplayName() string { return m.ID }

// Member is a user in the context of one channel. Name is the
// per-channel display name when the platform has one.
type Member struct {
	UserID  string
	Channel string
	Name    string
}

func (m Member) Ref() Ref { return Ref{Kind: KindMember, ID: m.UserID, Channel: m.Channel} }

func (m Member) DisplayName() string {
	if m.Name != "" {
		return m.Name
	}
	return m.UserID
}

// User is a platform account outside any channel context.
type User struct {
	ID   string
	Name string
}

func (u User) Ref() Ref { return Ref{Kind: KindUser, ID: u.ID} }

func (u User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.ID
}

// Gone marks a reference that could not be resolved because the entity
// no longer exists. It keeps the original reference, so a voter who
// left the room is still counted and still compares equal to their own
// later reactions, and so it can be written back to the snapshot
// unchanged.
type Gone struct {
	Original Ref
}

func (g Gone) Ref() Ref { return g.Original }

func (g Gone) DisplayName() string { return g.Original.ID }

// IsGone reports whether e is a Gone marker.
func IsGone(e Entity) bool {
	_, gone := e.(Gone)
	return gone
}

// identity is the value two entities must share to be "the same". A
// Member and a User with the same account ID are the same person, and
// a Gone person is still that person.
func identity(e Entity) string {
	r := e.Ref()
	if r.IsPerson() {
		return "person|" + r.ID
	}
	return r.Key()
}

// SameIdentity reports whether a and b denote the same entity. Nil
// never matches anything, including another nil.
func SameIdentity(a, b Entity) bool {
	if a == nil || b == nil {
		return false
	}
	return identity(a) == identity(b)
}
