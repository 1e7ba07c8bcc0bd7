// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package matrixchat

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/bureau-foundation/pollmaker/lib/chat"
	"github.com/bureau-foundation/pollmaker/lib/ref"
	"github.com/bureau-foundation/pollmaker/messaging"
)

// Prime absorbs the initial /sync response: member names and power
// levels are cached and reactions are indexed, but no events are
// produced. Without a persisted sync token the initial timeline is a
// replay of history the poll cache already reflects, so translating it
// would count old votes twice.
func (a *Adapter) Prime(response *messaging.SyncResponse) {
	if response == nil {
		return
	}
	for _, roomID := range sortedRooms(response.Rooms.Join) {
		room := response.Rooms.Join[roomID]
		a.absorbState(roomID, room.State.Events)
		for index := range room.Timeline.Events {
			event := &room.Timeline.Events[index]
			if event.StateKey != nil {
				a.absorbState(roomID, room.Timeline.Events[index:index+1])
				continue
			}
			switch event.Type {
			case ref.EventTypeReaction:
				a.indexReaction(roomID, event)
			case ref.EventTypeRedaction:
				a.mu.Lock()
				delete(a.reactions, event.RedactedEventID())
				a.mu.Unlock()
			}
		}
	}
	for roomID := range response.Rooms.Leave {
		a.forgetRoom(roomID)
	}
}

// Translate turns an incremental /sync response into chat events in
// timeline order. Rooms are visited in room ID order so the output is
// deterministic.
func (a *Adapter) Translate(ctx context.Context, response *messaging.SyncResponse) []chat.Event {
	if response == nil {
		return nil
	}
	var events []chat.Event
	for _, roomID := range sortedRooms(response.Rooms.Join) {
		room := response.Rooms.Join[roomID]
		a.absorbState(roomID, room.State.Events)
		for index := range room.Timeline.Events {
			event := &room.Timeline.Events[index]
			if event.StateKey != nil {
				a.absorbState(roomID, room.Timeline.Events[index:index+1])
				continue
			}
			if event.Sender == a.self {
				continue
			}
			if translated := a.translateEvent(ctx, roomID, event); translated != nil {
				events = append(events, translated)
			}
		}
	}
	for roomID := range response.Rooms.Leave {
		a.forgetRoom(roomID)
	}
	return events
}

func (a *Adapter) translateEvent(ctx context.Context, roomID ref.RoomID, event *messaging.Event) chat.Event {
	switch event.Type {
	case ref.EventTypeMessage:
		var content messaging.MessageContent
		if err := event.DecodeContent(&content); err != nil {
			a.logger.Debug("ignoring undecodable message", "room_id", roomID, "event_id", event.EventID, "error", err)
			return nil
		}
		if content.RelatesTo != nil && content.RelatesTo.RelType == messaging.RelTypeReplace {
			return nil
		}
		if content.MsgType != "m.text" && content.MsgType != "m.notice" {
			return nil
		}
		return chat.MessageCreated{
			Message: &chat.Message{
				ID:      event.EventID.String(),
				Channel: roomID.String(),
				Sender:  event.Sender.String(),
				Content: content.Body,
			},
			Author: a.member(ctx, roomID, event.Sender),
		}

	case ref.EventTypeReaction:
		entry, ok := a.indexReaction(roomID, event)
		if !ok {
			return nil
		}
		return chat.ReactionAdded{
			Channel:   roomID.String(),
			MessageID: entry.target.String(),
			User:      a.member(ctx, roomID, entry.sender),
			Key:       entry.key,
		}

	case ref.EventTypeRedaction:
		redactedID := event.RedactedEventID()
		if redactedID.IsZero() {
			return nil
		}
		a.mu.Lock()
		entry, known := a.reactions[redactedID]
		delete(a.reactions, redactedID)
		a.mu.Unlock()
		if known {
			return chat.ReactionRemoved{
				Channel:   entry.room.String(),
				MessageID: entry.target.String(),
				User:      a.member(ctx, entry.room, entry.sender),
				Key:       entry.key,
			}
		}
		return chat.MessageDeleted{Channel: roomID.String(), MessageID: redactedID.String()}
	}
	return nil
}

// IndexReactions loads every existing reaction on a message into the
// reaction index, so that retracting a vote placed before the bot
// started is recognized.
func (a *Adapter) IndexReactions(ctx context.Context, channel, messageID string) error {
	roomID, err := ref.ParseRoomID(channel)
	if err != nil {
		return err
	}
	eventID, err := ref.ParseEventID(messageID)
	if err != nil {
		return err
	}
	annotations, err := messaging.Annotations(ctx, a.session, roomID, eventID)
	if err != nil {
		return fmt.Errorf("listing reactions on %s: %w", eventID, err)
	}
	for index := range annotations {
		a.indexReaction(roomID, &annotations[index])
	}
	return nil
}

// IndexedReactions reports the size of the reaction index.
func (a *Adapter) IndexedReactions() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.reactions)
}

func (a *Adapter) indexReaction(roomID ref.RoomID, event *messaging.Event) (reaction, bool) {
	var content messaging.ReactionContent
	if err := event.DecodeContent(&content); err != nil {
		return reaction{}, false
	}
	if content.RelatesTo.RelType != messaging.RelTypeAnnotation || content.RelatesTo.EventID.IsZero() || content.RelatesTo.Key == "" {
		return reaction{}, false
	}
	entry := reaction{
		room:   roomID,
		target: content.RelatesTo.EventID,
		key:    content.RelatesTo.Key,
		sender: event.Sender,
	}
	a.mu.Lock()
	a.reactions[event.EventID] = entry
	a.mu.Unlock()
	return entry, true
}

// absorbState updates the member name and power level caches.
func (a *Adapter) absorbState(roomID ref.RoomID, events []messaging.Event) {
	for index := range events {
		event := &events[index]
		if event.StateKey == nil {
			continue
		}
		switch event.Type {
		case ref.EventTypeMember:
			userID, err := ref.ParseUserID(*event.StateKey)
			if err != nil {
				continue
			}
			var member messaging.RoomMemberContent
			if err := event.DecodeContent(&member); err != nil {
				continue
			}
			a.mu.Lock()
			a.memberNames[memberKey{room: roomID, user: userID}] = member.DisplayName
			a.mu.Unlock()
		case ref.EventTypePowerLevels:
			var levels messaging.PowerLevelsContent
			if err := event.DecodeContent(&levels); err != nil {
				a.mu.Lock()
				delete(a.powerLevels, roomID)
				a.mu.Unlock()
				continue
			}
			a.mu.Lock()
			a.powerLevels[roomID] = levels
			a.mu.Unlock()
		}
	}
}

func (a *Adapter) forgetRoom(roomID ref.RoomID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.powerLevels, roomID)
	for key := range a.memberNames {
		if key.room == roomID {
			delete(a.memberNames, key)
		}
	}
	for eventID, entry := range a.reactions {
		if entry.room == roomID {
			delete(a.reactions, eventID)
		}
	}
}

func (a *Adapter) member(ctx context.Context, roomID ref.RoomID, userID ref.UserID) chat.Member {
	return chat.Member{
		UserID:  userID.String(),
		Channel: roomID.String(),
		Name:    a.memberName(ctx, roomID, userID),
	}
}

func sortedRooms(rooms map[ref.RoomID]messaging.JoinedRoom) []ref.RoomID {
	roomIDs := make([]ref.RoomID, 0, len(rooms))
	for roomID := range rooms {
		roomIDs = append(roomIDs, roomID)
	}
	slices.SortFunc(roomIDs, func(a, b ref.RoomID) int {
		return strings.Compare(a.String(), b.String())
	})
	return roomIDs
}
