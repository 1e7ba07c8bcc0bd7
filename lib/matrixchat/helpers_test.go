// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package matrixchat

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"

	"github.com/bureau-foundation/pollmaker/lib/ref"
	"github.com/bureau-foundation/pollmaker/messaging"
)

var (
	botID   = ref.MustParseUserID("@pollmaker:example.org")
	aliceID = ref.MustParseUserID("@alice:example.org")
	bobID   = ref.MustParseUserID("@bob:example.org")
	roomOne = ref.MustParseRoomID("!one:example.org")
	roomTwo = ref.MustParseRoomID("!two:example.org")
)

type sentMessage struct {
	room    ref.RoomID
	content messaging.MessageContent
}

type sentReaction struct {
	room   ref.RoomID
	target ref.EventID
	key    string
}

// fakeSession is an in-memory messaging.Session. Missing state,
// events, and profiles answer M_NOT_FOUND.
type fakeSession struct {
	mu sync.Mutex

	state        map[string]json.RawMessage
	events       map[ref.EventID]*messaging.Event
	annotations  map[ref.EventID][]messaging.Event
	displayNames map[ref.UserID]string
	failWith     error

	messages   []sentMessage
	reactions  []sentReaction
	stateReads int
	nextID     int
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		state:        make(map[string]json.RawMessage),
		events:       make(map[ref.EventID]*messaging.Event),
		annotations:  make(map[ref.EventID][]messaging.Event),
		displayNames: make(map[ref.UserID]string),
	}
}

var _ messaging.Session = (*fakeSession)(nil)

func stateKey(roomID ref.RoomID, eventType ref.EventType, key string) string {
	return roomID.String() + "|" + string(eventType) + "|" + key
}

func notFoundError() error {
	return &messaging.MatrixError{Code: messaging.ErrCodeNotFound, Message: "not found", StatusCode: http.StatusNotFound}
}

func (f *fakeSession) setState(roomID ref.RoomID, eventType ref.EventType, key, content string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state[stateKey(roomID, eventType, key)] = json.RawMessage(content)
}

func (f *fakeSession) join(roomID ref.RoomID, userID ref.UserID, name string) {
	content, _ := json.Marshal(messaging.RoomMemberContent{Membership: messaging.MembershipJoin, DisplayName: name})
	f.setState(roomID, ref.EventTypeMember, userID.String(), string(content))
}

func (f *fakeSession) UserID() ref.UserID { return botID }
func (f *fakeSession) Close() error       { return nil }

func (f *fakeSession) WhoAmI(ctx context.Context) (ref.UserID, error) { return botID, nil }

func (f *fakeSession) JoinRoom(ctx context.Context, roomID ref.RoomID) (ref.RoomID, error) {
	return roomID, nil
}

func (f *fakeSession) allocate() ref.EventID {
	f.nextID++
	return ref.MustParseEventID("$sent" + string(rune('a'+f.nextID-1)))
}

func (f *fakeSession) SendEvent(ctx context.Context, roomID ref.RoomID, eventType ref.EventType, content any) (ref.EventID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return ref.EventID{}, f.failWith
	}
	return f.allocate(), nil
}

func (f *fakeSession) SendMessage(ctx context.Context, roomID ref.RoomID, content messaging.MessageContent) (ref.EventID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return ref.EventID{}, f.failWith
	}
	f.messages = append(f.messages, sentMessage{room: roomID, content: content})
	return f.allocate(), nil
}

func (f *fakeSession) SendReaction(ctx context.Context, roomID ref.RoomID, target ref.EventID, key string) (ref.EventID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return ref.EventID{}, f.failWith
	}
	f.reactions = append(f.reactions, sentReaction{room: roomID, target: target, key: key})
	return f.allocate(), nil
}

func (f *fakeSession) GetEvent(ctx context.Context, roomID ref.RoomID, eventID ref.EventID) (*messaging.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	event, ok := f.events[eventID]
	if !ok || event.RoomID != roomID {
		return nil, notFoundError()
	}
	return event, nil
}

func (f *fakeSession) GetStateEvent(ctx context.Context, roomID ref.RoomID, eventType ref.EventType, key string) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stateReads++
	if f.failWith != nil {
		return nil, f.failWith
	}
	content, ok := f.state[stateKey(roomID, eventType, key)]
	if !ok {
		return nil, notFoundError()
	}
	return content, nil
}

func (f *fakeSession) Relations(ctx context.Context, roomID ref.RoomID, eventID ref.EventID, relType string, options messaging.RelationsOptions) (*messaging.RelationsResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return nil, f.failWith
	}
	return &messaging.RelationsResponse{Chunk: f.annotations[eventID]}, nil
}

func (f *fakeSession) GetDisplayName(ctx context.Context, userID ref.UserID) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failWith != nil {
		return "", f.failWith
	}
	name, ok := f.displayNames[userID]
	if !ok {
		return "", notFoundError()
	}
	return name, nil
}

func (f *fakeSession) Sync(ctx context.Context, options messaging.SyncOptions) (*messaging.SyncResponse, error) {
	return &messaging.SyncResponse{}, nil
}

func newTestAdapter(t *testing.T, session *fakeSession, operators ...ref.UserID) *Adapter {
	t.Helper()
	adapter, err := New(Config{Session: session, Operators: operators})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return adapter
}

// parseEvent decodes one event from its wire JSON.
func parseEvent(t *testing.T, raw string) messaging.Event {
	t.Helper()
	var event messaging.Event
	if err := json.Unmarshal([]byte(raw), &event); err != nil {
		t.Fatalf("parsing event %s: %v", raw, err)
	}
	return event
}

func parseSync(t *testing.T, raw string) *messaging.SyncResponse {
	t.Helper()
	var response messaging.SyncResponse
	if err := json.Unmarshal([]byte(raw), &response); err != nil {
		t.Fatalf("parsing sync response: %v", err)
	}
	return &response
}

func mustEventID(raw string) ref.EventID { return ref.MustParseEventID(raw) }
