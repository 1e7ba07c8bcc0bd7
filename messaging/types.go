// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"encoding/json"
	"fmt"

	"github.com/bureau-foundation/pollmaker/lib/ref"
)

// Relation types used by the poll bot.
const (
	RelTypeAnnotation = "m.annotation"
	RelTypeReplace    = "m.replace"
)

// Membership values of m.room.member.
const (
	MembershipJoin   = "join"
	MembershipInvite = "invite"
	MembershipLeave  = "leave"
	MembershipBan    = "ban"
)

// MessageContent is the content of an m.room.message event.
//
// An edit is itself a message: its Body is the fallback text shown by
// clients that do not understand edits, NewContent holds the
// replacement, and RelatesTo points at the original with rel_type
// m.replace.
type MessageContent struct {
	MsgType       string          `json:"msgtype"`
	Body          string          `json:"body"`
	Format        string          `json:"format,omitempty"`
	FormattedBody string          `json:"formatted_body,omitempty"`
	NewContent    *MessageContent `json:"m.new_content,omitempty"`
	RelatesTo     *RelatesTo      `json:"m.relates_to,omitempty"`
}

// RelatesTo expresses a relationship to another event. Key is the
// reaction key for m.annotation relations.
type RelatesTo struct {
	RelType string      `json:"rel_type,omitempty"`
	EventID ref.EventID `json:"event_id"`
	Key     string      `json:"key,omitempty"`
}

// ReactionContent is the content of an m.reaction event.
type ReactionContent struct {
	RelatesTo RelatesTo `json:"m.relates_to"`
}

// RedactionContent is the content of an m.room.redaction event. Room
// versions 11 and later carry the redacted event ID here; earlier
// versions carry it in the top-level Event.Redacts field.
type RedactionContent struct {
	Redacts ref.EventID `json:"redacts,omitzero"`
	Reason  string      `json:"reason,omitempty"`
}

// RoomMemberContent is the content of an m.room.member state event.
type RoomMemberContent struct {
	Membership  string `json:"membership"`
	DisplayName string `json:"displayname,omitempty"`
}

// PowerLevelsContent is the content of an m.room.power_levels state
// event, reduced to the user levels.
type PowerLevelsContent struct {
	Users        map[string]int `json:"users,omitempty"`
	UsersDefault int            `json:"users_default,omitempty"`
}

// UserLevel returns the power level of userID.
func (p PowerLevelsContent) UserLevel(userID ref.UserID) int {
	if level, ok := p.Users[userID.String()]; ok {
		return level
	}
	return p.UsersDefault
}

// NewTextMessage creates a plain text message.
func NewTextMessage(body string) MessageContent {
	return MessageContent{
		MsgType: "m.text",
		Body:    body,
	}
}

// NewHTMLMessage creates a text message with an HTML rendering
// alongside the plain body.
func NewHTMLMessage(body, html string) MessageContent {
	return MessageContent{
		MsgType:       "m.text",
		Body:          body,
		Format:        "org.matrix.custom.html",
		FormattedBody: html,
	}
}

// NewEdit wraps replacement content as an edit of target. Clients
// without edit support display "* " followed by the new body.
func NewEdit(target ref.EventID, replacement MessageContent) MessageContent {
	fallback := replacement
	fallback.Body = "* " + replacement.Body
	if replacement.FormattedBody != "" {
		fallback.FormattedBody = "* " + replacement.FormattedBody
	}
	fallback.NewContent = &replacement
	fallback.RelatesTo = &RelatesTo{RelType: RelTypeReplace, EventID: target}
	return fallback
}

// NewReaction creates an annotation of target with key.
func NewReaction(target ref.EventID, key string) ReactionContent {
	return ReactionContent{RelatesTo: RelatesTo{
		RelType: RelTypeAnnotation,
		EventID: target,
		Key:     key,
	}}
}

// Event represents a Matrix event from the server.
type Event struct {
	EventID        ref.EventID    `json:"event_id"`
	Type           ref.EventType  `json:"type"`
	Sender         ref.UserID     `json:"sender"`
	OriginServerTS int64          `json:"origin_server_ts"`
	Content        map[string]any `json:"content"`
	RoomID         ref.RoomID     `json:"room_id,omitzero"`
	StateKey       *string        `json:"state_key,omitempty"`
	Redacts        ref.EventID    `json:"redacts,omitzero"`
	Unsigned       *EventUnsigned `json:"unsigned,omitempty"`
}

// DecodeContent unmarshals the event content into v.
func (e *Event) DecodeContent(v any) error {
	encoded, err := json.Marshal(e.Content)
	if err != nil {
		return fmt.Errorf("messaging: re-encoding %s content: %w", e.Type, err)
	}
	if err := json.Unmarshal(encoded, v); err != nil {
		return fmt.Errorf("messaging: decoding %s content of %s: %w", e.Type, e.EventID, err)
	}
	return nil
}

// RedactedEventID returns the event a redaction removes, from the
// content (room version 11+) or the top-level field (older versions).
// Returns the zero EventID for other event types.
func (e *Event) RedactedEventID() ref.EventID {
	if e.Type != ref.EventTypeRedaction {
		return ref.EventID{}
	}
	if raw, ok := e.Content["redacts"].(string); ok {
		if eventID, err := ref.ParseEventID(raw); err == nil {
			return eventID
		}
	}
	return e.Redacts
}

// EventUnsigned holds optional unsigned data attached to events.
type EventUnsigned struct {
	Age             int64           `json:"age,omitempty"`
	TransactionID   string          `json:"transaction_id,omitempty"`
	RedactedBecause json.RawMessage `json:"redacted_because,omitempty"`
	Relations       *EventRelations `json:"m.relations,omitempty"`
}

// EventRelations is the server-side aggregation of relations to an
// event. Replace is the most recent edit.
type EventRelations struct {
	Replace *Event `json:"m.replace,omitempty"`
}

// SyncOptions controls the behavior of the /sync endpoint.
type SyncOptions struct {
	Since      string // next_batch token from previous sync; empty for initial sync
	Timeout    int    // long-poll timeout in milliseconds; 0 for immediate return
	SetTimeout bool   // if true, send the timeout parameter (needed to distinguish "not set" from "0")
	Filter     string // filter ID or inline JSON filter
}

// SyncResponse is the top-level response from /sync.
type SyncResponse struct {
	NextBatch string       `json:"next_batch"`
	Rooms     RoomsSection `json:"rooms"`
}

// RoomsSection contains per-room sync data grouped by membership state.
// Map keys are room IDs; encoding/json uses ref.RoomID's TextUnmarshaler
// for automatic validation at deserialization.
type RoomsSection struct {
	Join   map[ref.RoomID]JoinedRoom  `json:"join,omitempty"`
	Invite map[ref.RoomID]InvitedRoom `json:"invite,omitempty"`
	Leave  map[ref.RoomID]LeftRoom    `json:"leave,omitempty"`
}

// JoinedRoom contains sync data for a room the user has joined.
type JoinedRoom struct {
	Timeline TimelineSection `json:"timeline"`
	State    StateSection    `json:"state"`
}

// InvitedRoom contains sync data for a room the user was invited to.
type InvitedRoom struct {
	InviteState StateSection `json:"invite_state"`
}

// LeftRoom contains sync data for a room the user has left.
type LeftRoom struct {
	Timeline TimelineSection `json:"timeline"`
	State    StateSection    `json:"state"`
}

// TimelineSection contains timeline events from a sync response.
type TimelineSection struct {
	Events    []Event `json:"events"`
	PrevBatch string  `json:"prev_batch"`
	Limited   bool    `json:"limited"`
}

// StateSection contains state events from a sync response.
type StateSection struct {
	Events []Event `json:"events"`
}

// RelationsOptions controls pagination of the relations endpoint.
type RelationsOptions struct {
	From  string // next_batch token from a previous page
	Limit int    // max events to return; 0 uses server default
}

// RelationsResponse is returned by Relations.
type RelationsResponse struct {
	Chunk     []Event `json:"chunk"`
	NextBatch string  `json:"next_batch,omitempty"`
}

// SendEventResponse is returned by SendEvent and its wrappers.
type SendEventResponse struct {
	EventID ref.EventID `json:"event_id"`
}

// WhoAmIResponse is returned by WhoAmI.
type WhoAmIResponse struct {
	UserID   ref.UserID `json:"user_id"`
	DeviceID string     `json:"device_id,omitempty"`
}

// DisplayNameResponse is returned by GetDisplayName.
type DisplayNameResponse struct {
	DisplayName string `json:"displayname"`
}
