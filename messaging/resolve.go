// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/bureau-foundation/pollmaker/lib/ref"
)

// GetState reads a typed state event from a Matrix room. It calls
// GetStateEvent on the session and unmarshals the raw JSON content into
// T:
//
//	levels, err := messaging.GetState[messaging.PowerLevelsContent](ctx, session, roomID, ref.EventTypePowerLevels, "")
//	member, err := messaging.GetState[messaging.RoomMemberContent](ctx, session, roomID, ref.EventTypeMember, userID.String())
//
// Returns an error if the state event does not exist (M_NOT_FOUND) or
// if the content cannot be unmarshaled into T.
func GetState[T any](ctx context.Context, session Session, roomID ref.RoomID, eventType ref.EventType, stateKey string) (T, error) {
	var zero T
	content, err := session.GetStateEvent(ctx, roomID, eventType, stateKey)
	if err != nil {
		return zero, fmt.Errorf("reading %s[%q] from room %s: %w", eventType, stateKey, roomID, err)
	}
	var result T
	if err := json.Unmarshal(content, &result); err != nil {
		return zero, fmt.Errorf("unmarshaling %s from room %s: %w", eventType, roomID, err)
	}
	return result, nil
}

// Annotations pages through every m.annotation relation of eventID.
func Annotations(ctx context.Context, session Session, roomID ref.RoomID, eventID ref.EventID) ([]Event, error) {
	var all []Event
	options := RelationsOptions{Limit: 100}
	for {
		page, err := session.Relations(ctx, roomID, eventID, RelTypeAnnotation, options)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Chunk...)
		if page.NextBatch == "" || page.NextBatch == options.From {
			return all, nil
		}
		options.From = page.NextBatch
	}
}
