// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package matrixchat

import (
	"context"
	"fmt"

	"github.com/bureau-foundation/pollmaker/lib/chat"
	"github.com/bureau-foundation/pollmaker/lib/ref"
	"github.com/bureau-foundation/pollmaker/messaging"
)

// Resolve looks reference up on the homeserver. References to rooms
// the bot has left, redacted or missing events, and users who are no
// longer joined resolve to chat.ErrNotFound. Transport failures are
// returned as-is so the caller can tell "gone" from "unreachable".
func (a *Adapter) Resolve(ctx context.Context, reference chat.Ref) (chat.Entity, error) {
	switch reference.Kind {
	case chat.KindChannel:
		return a.resolveChannel(ctx, reference)
	case chat.KindMessage:
		return a.resolveMessage(ctx, reference)
	case chat.KindMember:
		return a.resolveMember(ctx, reference)
	case chat.KindUser:
		return a.resolveUser(ctx, reference)
	default:
		return nil, fmt.Errorf("matrixchat: cannot resolve %s", reference)
	}
}

func (a *Adapter) resolveChannel(ctx context.Context, reference chat.Ref) (chat.Entity, error) {
	roomID, err := ref.ParseRoomID(reference.ID)
	if err != nil {
		return nil, chat.ErrNotFound
	}
	if err := a.requireJoined(ctx, roomID, a.self); err != nil {
		return nil, err
	}
	return chat.Channel{ID: roomID.String()}, nil
}

func (a *Adapter) resolveMessage(ctx context.Context, reference chat.Ref) (chat.Entity, error) {
	roomID, err := ref.ParseRoomID(reference.Channel)
	if err != nil {
		return nil, chat.ErrNotFound
	}
	eventID, err := ref.ParseEventID(reference.ID)
	if err != nil {
		return nil, chat.ErrNotFound
	}
	event, err := a.session.GetEvent(ctx, roomID, eventID)
	if err != nil {
		return nil, notFound(err)
	}
	if event.Type != ref.EventTypeMessage || redacted(event) {
		return nil, chat.ErrNotFound
	}
	body, err := latestBody(event)
	if err != nil {
		return nil, err
	}
	return &chat.Message{
		ID:      eventID.String(),
		Channel: roomID.String(),
		Sender:  event.Sender.String(),
		Content: body,
	}, nil
}

func (a *Adapter) resolveMember(ctx context.Context, reference chat.Ref) (chat.Entity, error) {
	roomID, err := ref.ParseRoomID(reference.Channel)
	if err != nil {
		return nil, chat.ErrNotFound
	}
	userID, err := ref.ParseUserID(reference.ID)
	if err != nil {
		return nil, chat.ErrNotFound
	}
	member, err := messaging.GetState[messaging.RoomMemberContent](ctx, a.session, roomID, ref.EventTypeMember, userID.String())
	if err != nil {
		return nil, notFound(err)
	}
	if member.Membership != messaging.MembershipJoin {
		return nil, chat.ErrNotFound
	}
	a.mu.Lock()
	a.memberNames[memberKey{room: roomID, user: userID}] = member.DisplayName
	a.mu.Unlock()
	return chat.Member{UserID: userID.String(), Channel: roomID.String(), Name: member.DisplayName}, nil
}

func (a *Adapter) resolveUser(ctx context.Context, reference chat.Ref) (chat.Entity, error) {
	userID, err := ref.ParseUserID(reference.ID)
	if err != nil {
		return nil, chat.ErrNotFound
	}
	name, err := a.session.GetDisplayName(ctx, userID)
	if err != nil {
		return nil, notFound(err)
	}
	return chat.User{ID: userID.String(), Name: name}, nil
}

// requireJoined returns chat.ErrNotFound unless user's membership in
// roomID is "join".
func (a *Adapter) requireJoined(ctx context.Context, roomID ref.RoomID, userID ref.UserID) error {
	member, err := messaging.GetState[messaging.RoomMemberContent](ctx, a.session, roomID, ref.EventTypeMember, userID.String())
	if err != nil {
		return notFound(err)
	}
	if member.Membership != messaging.MembershipJoin {
		return chat.ErrNotFound
	}
	return nil
}

// notFound maps a homeserver 404 onto chat.ErrNotFound and passes
// everything else through.
func notFound(err error) error {
	if messaging.IsNotFound(err) {
		return fmt.Errorf("%w: %w", chat.ErrNotFound, err)
	}
	return err
}

func redacted(event *messaging.Event) bool {
	if event.Unsigned != nil && len(event.Unsigned.RedactedBecause) > 0 {
		return true
	}
	// A redacted m.room.message keeps only its type; body is stripped.
	_, hasBody := event.Content["body"]
	return !hasBody
}

// latestBody returns the text of event after applying the newest edit
// the server aggregated, if any.
func latestBody(event *messaging.Event) (string, error) {
	var content messaging.MessageContent
	if err := event.DecodeContent(&content); err != nil {
		return "", err
	}
	if event.Unsigned == nil || event.Unsigned.Relations == nil || event.Unsigned.Relations.Replace == nil {
		return content.Body, nil
	}
	edit := event.Unsigned.Relations.Replace
	var replacement messaging.MessageContent
	if err := edit.DecodeContent(&replacement); err != nil {
		return "", err
	}
	if replacement.NewContent != nil {
		return replacement.NewContent.Body, nil
	}
	return content.Body, nil
}
