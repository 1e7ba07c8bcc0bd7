// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/bureau-foundation/pollmaker/lib/clock"
	"github.com/bureau-foundation/pollmaker/lib/ref"
	"github.com/bureau-foundation/pollmaker/lib/testutil"
	"github.com/bureau-foundation/pollmaker/messaging"
)

var testEpoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type syncResult struct {
	response *messaging.SyncResponse
	err      error
}

// scriptedSession answers Sync from a queue and blocks once the queue
// is empty. Only the methods the sync helpers call do anything.
type scriptedSession struct {
	mu      sync.Mutex
	user    ref.UserID
	whoami  ref.UserID
	results []syncResult
	options []messaging.SyncOptions
	joined  []ref.RoomID
	joinErr map[ref.RoomID]error
}

var _ messaging.Session = (*scriptedSession)(nil)

func (s *scriptedSession) Sync(ctx context.Context, options messaging.SyncOptions) (*messaging.SyncResponse, error) {
	s.mu.Lock()
	s.options = append(s.options, options)
	if len(s.results) == 0 {
		s.mu.Unlock()
		<-ctx.Done()
		return nil, ctx.Err()
	}
	next := s.results[0]
	s.results = s.results[1:]
	s.mu.Unlock()
	return next.response, next.err
}

func (s *scriptedSession) JoinRoom(ctx context.Context, roomID ref.RoomID) (ref.RoomID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.joinErr[roomID]; err != nil {
		return ref.RoomID{}, err
	}
	s.joined = append(s.joined, roomID)
	return roomID, nil
}

func (s *scriptedSession) UserID() ref.UserID { return s.user }
func (s *scriptedSession) Close() error       { return nil }
func (s *scriptedSession) WhoAmI(ctx context.Context) (ref.UserID, error) {
	if s.whoami.IsZero() {
		return ref.UserID{}, &messaging.MatrixError{Code: messaging.ErrCodeUnknownToken, StatusCode: 401}
	}
	return s.whoami, nil
}
func (s *scriptedSession) SendEvent(context.Context, ref.RoomID, ref.EventType, any) (ref.EventID, error) {
	return ref.EventID{}, errors.New("not implemented")
}
func (s *scriptedSession) SendMessage(context.Context, ref.RoomID, messaging.MessageContent) (ref.EventID, error) {
	return ref.EventID{}, errors.New("not implemented")
}
func (s *scriptedSession) SendReaction(context.Context, ref.RoomID, ref.EventID, string) (ref.EventID, error) {
	return ref.EventID{}, errors.New("not implemented")
}
func (s *scriptedSession) GetEvent(context.Context, ref.RoomID, ref.EventID) (*messaging.Event, error) {
	return nil, errors.New("not implemented")
}
func (s *scriptedSession) GetStateEvent(context.Context, ref.RoomID, ref.EventType, string) (json.RawMessage, error) {
	return nil, errors.New("not implemented")
}
func (s *scriptedSession) Relations(context.Context, ref.RoomID, ref.EventID, string, messaging.RelationsOptions) (*messaging.RelationsResponse, error) {
	return nil, errors.New("not implemented")
}
func (s *scriptedSession) GetDisplayName(context.Context, ref.UserID) (string, error) {
	return "", errors.New("not implemented")
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBuildSyncFilter(t *testing.T) {
	filter := BuildSyncFilter(
		[]ref.EventType{ref.EventTypeMember, ref.EventTypePowerLevels},
		[]ref.EventType{ref.EventTypeMessage, ref.EventTypeMember},
		50,
	)
	var decoded struct {
		Room struct {
			State struct {
				Types []string `json:"types"`
			} `json:"state"`
			Timeline struct {
				Types []string `json:"types"`
				Limit int      `json:"limit"`
			} `json:"timeline"`
		} `json:"room"`
		Presence struct {
			Types []string `json:"types"`
		} `json:"presence"`
	}
	if err := json.Unmarshal([]byte(filter), &decoded); err != nil {
		t.Fatalf("filter is not JSON: %v", err)
	}
	if !slices.Equal(decoded.Room.State.Types, []string{"m.room.member", "m.room.power_levels"}) {
		t.Errorf("state types = %v", decoded.Room.State.Types)
	}
	if !slices.Equal(decoded.Room.Timeline.Types, []string{"m.room.message", "m.room.member", "m.room.power_levels"}) {
		t.Errorf("timeline types = %v, want message types plus state types without duplicates", decoded.Room.Timeline.Types)
	}
	if decoded.Room.Timeline.Limit != 50 {
		t.Errorf("timeline limit = %d, want 50", decoded.Room.Timeline.Limit)
	}
	if decoded.Presence.Types == nil || len(decoded.Presence.Types) != 0 {
		t.Errorf("presence types = %v, want an empty list", decoded.Presence.Types)
	}
}

func TestInitialSync(t *testing.T) {
	session := &scriptedSession{results: []syncResult{{response: &messaging.SyncResponse{NextBatch: "s1"}}}}
	token, response, err := InitialSync(context.Background(), session, `{"room":{}}`)
	if err != nil {
		t.Fatalf("InitialSync: %v", err)
	}
	if token != "s1" || response.NextBatch != "s1" {
		t.Errorf("InitialSync = %q, %+v", token, response)
	}
	if got := session.options[0]; got.Since != "" || got.SetTimeout || got.Filter != `{"room":{}}` {
		t.Errorf("initial sync options = %+v", got)
	}

	failing := &scriptedSession{results: []syncResult{{err: errors.New("connection refused")}}}
	if _, _, err := InitialSync(context.Background(), failing, ""); err == nil {
		t.Error("InitialSync hid the sync error")
	}
}

func TestRunSyncLoop_BackoffAndDelivery(t *testing.T) {
	transient := errors.New("502 bad gateway")
	session := &scriptedSession{results: []syncResult{
		{err: transient},
		{err: transient},
		{response: &messaging.SyncResponse{NextBatch: "s3"}},
	}}
	fakeClock := clock.Fake(testEpoch)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	delivered := make(chan string, 1)
	done := make(chan error, 1)
	go func() {
		done <- RunSyncLoop(ctx, session, SyncConfig{Filter: "f"}, "s1", func(ctx context.Context, response *messaging.SyncResponse) {
			delivered <- response.NextBatch
		}, fakeClock, discardLogger())
	}()

	// First retry waits one second.
	fakeClock.WaitForTimers(1)
	fakeClock.Advance(999 * time.Millisecond)
	if fakeClock.PendingCount() != 1 {
		t.Fatal("first retry fired before one second")
	}
	fakeClock.Advance(time.Millisecond)

	// Second retry waits two.
	fakeClock.WaitForTimers(1)
	fakeClock.Advance(1999 * time.Millisecond)
	if fakeClock.PendingCount() != 1 {
		t.Fatal("second retry fired before two seconds")
	}
	fakeClock.Advance(time.Millisecond)

	if got := testutil.RequireReceive(t, delivered, 5*time.Second, "waiting for sync delivery"); got != "s3" {
		t.Errorf("delivered %q, want s3", got)
	}

	cancel()
	if err := testutil.RequireReceive(t, done, 5*time.Second, "waiting for loop exit"); err != nil {
		t.Errorf("RunSyncLoop = %v after cancel, want nil", err)
	}

	session.mu.Lock()
	defer session.mu.Unlock()
	if len(session.options) != 4 {
		t.Fatalf("sync calls = %d, want 4", len(session.options))
	}
	for index, want := range []string{"s1", "s1", "s1", "s3"} {
		if got := session.options[index]; got.Since != want || got.Timeout != 30000 || !got.SetTimeout || got.Filter != "f" {
			t.Errorf("sync %d options = %+v, want since %q", index, got, want)
		}
	}
}

func TestRunSyncLoop_RateLimit(t *testing.T) {
	session := &scriptedSession{results: []syncResult{
		{err: &messaging.MatrixError{Code: messaging.ErrCodeLimitExceeded, StatusCode: 429, RetryAfterMs: 5000}},
	}}
	fakeClock := clock.Fake(testEpoch)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- RunSyncLoop(ctx, session, SyncConfig{}, "", func(context.Context, *messaging.SyncResponse) {}, fakeClock, discardLogger())
	}()

	fakeClock.WaitForTimers(1)
	fakeClock.Advance(4 * time.Second)
	if fakeClock.PendingCount() != 1 {
		t.Fatal("retried before the server's retry_after_ms")
	}
	fakeClock.Advance(time.Second)
	cancel()
	testutil.RequireReceive(t, done, 5*time.Second, "waiting for loop exit")
}

func TestRunSyncLoop_RevokedToken(t *testing.T) {
	session := &scriptedSession{results: []syncResult{
		{err: &messaging.MatrixError{Code: messaging.ErrCodeUnknownToken, StatusCode: 401}},
	}}
	err := RunSyncLoop(context.Background(), session, SyncConfig{}, "s1", func(context.Context, *messaging.SyncResponse) {
		t.Error("handler called")
	}, clock.Fake(testEpoch), discardLogger())
	if !errors.Is(err, ErrSessionRevoked) {
		t.Errorf("RunSyncLoop = %v, want ErrSessionRevoked", err)
	}
}

func TestAcceptInvites(t *testing.T) {
	roomA := ref.MustParseRoomID("!a:example.org")
	roomB := ref.MustParseRoomID("!b:example.org")
	roomC := ref.MustParseRoomID("!c:example.org")
	session := &scriptedSession{joinErr: map[ref.RoomID]error{roomB: errors.New("forbidden")}}

	accepted := AcceptInvites(context.Background(), session, map[ref.RoomID]messaging.InvitedRoom{
		roomC: {}, roomA: {}, roomB: {},
	}, discardLogger())

	if !slices.Equal(accepted, []ref.RoomID{roomA, roomC}) {
		t.Errorf("accepted = %v, want [!a !c]", accepted)
	}
	if !slices.Equal(session.joined, []ref.RoomID{roomA, roomC}) {
		t.Errorf("joined = %v", session.joined)
	}
}
