// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pollcache

import (
	"fmt"

	"github.com/bureau-foundation/pollmaker/lib/chat"
)

// Reference is the JSON form of a chat.Ref. Fields are declared in
// alphabetical order of their JSON names so the encoder emits sorted
// keys.
type Reference struct {
	Channel *Reference `json:"channel,omitempty"`
	ID      string     `json:"id"`
	Type    chat.Kind  `json:"type"`
}

// NewReference converts an entity into its stored form. A Gone entity
// is written as the reference it was loaded from, so a departed voter
// survives any number of save and load cycles. Returns nil for a nil
// entity.
func NewReference(entity chat.Entity) *Reference {
	if entity == nil {
		return nil
	}
	ref := entity.Ref()
	stored := &Reference{ID: ref.ID, Type: ref.Kind}
	if ref.Channel != "" {
		stored.Channel = &Reference{ID: ref.Channel, Type: chat.KindChannel}
	}
	return stored
}

// Ref validates the stored form and converts it back.
func (r *Reference) Ref() (chat.Ref, error) {
	if !r.Type.Valid() {
		return chat.Ref{}, fmt.Errorf("unknown reference type %q", r.Type)
	}
	if r.ID == "" {
		return chat.Ref{}, fmt.Errorf("%s reference has no id", r.Type)
	}
	ref := chat.Ref{Kind: r.Type, ID: r.ID}
	switch r.Type {
	case chat.KindMessage, chat.KindMember:
		if r.Channel == nil {
			return chat.Ref{}, fmt.Errorf("%s reference %q has no channel", r.Type, r.ID)
		}
		if r.Channel.Type != chat.KindChannel || r.Channel.ID == "" {
			return chat.Ref{}, fmt.Errorf("%s reference %q has an invalid channel", r.Type, r.ID)
		}
		ref.Channel = r.Channel.ID
	default:
		if r.Channel != nil {
			return chat.Ref{}, fmt.Errorf("%s reference %q must not carry a channel", r.Type, r.ID)
		}
	}
	return ref, nil
}
