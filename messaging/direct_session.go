// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/bureau-foundation/pollmaker/lib/ref"
	"github.com/bureau-foundation/pollmaker/lib/secret"
)

const (
	clientV3 = "/_matrix/client/v3"
	clientV1 = "/_matrix/client/v1"
)

// DirectSession is the bot's authenticated Matrix session. The access
// token lives in a secret.Buffer; call Close to release it.
type DirectSession struct {
	client      *Client
	accessToken *secret.Buffer
	userID      ref.UserID

	// sends numbers transaction IDs so retried PUTs stay idempotent.
	sends atomic.Int64
}

func (s *DirectSession) UserID() ref.UserID {
	return s.userID
}

// CloseIdleConnections drops pooled connections so the next request
// dials afresh. The sync loop calls it after an error.
func (s *DirectSession) CloseIdleConnections() {
	s.client.CloseIdleConnections()
}

// Close zeroes and unmaps the access token. Safe to call more than
// once.
func (s *DirectSession) Close() error {
	if s.accessToken == nil {
		return nil
	}
	return s.accessToken.Close()
}

// roomPath builds a path under /rooms/{roomID} with every segment
// escaped.
func roomPath(version string, roomID ref.RoomID, segments ...string) string {
	var builder strings.Builder
	builder.WriteString(version)
	builder.WriteString("/rooms/")
	builder.WriteString(url.PathEscape(roomID.String()))
	for _, segment := range segments {
		builder.WriteByte('/')
		builder.WriteString(url.PathEscape(segment))
	}
	return builder.String()
}

// call performs an authenticated request and decodes the response body
// into response when it is non-nil. what names the operation in
// errors.
func (s *DirectSession) call(ctx context.Context, what, method, path string, request any, query url.Values, response any) error {
	body, err := s.client.doRequest(ctx, method, path, s.accessToken, request, query)
	if err != nil {
		return fmt.Errorf("messaging: %s: %w", what, err)
	}
	if response == nil {
		return nil
	}
	if err := json.Unmarshal(body, response); err != nil {
		return fmt.Errorf("messaging: %s: decoding response: %w", what, err)
	}
	return nil
}

// WhoAmI returns the user the access token belongs to. It is the
// cheapest way to check that a stored token still works.
func (s *DirectSession) WhoAmI(ctx context.Context) (ref.UserID, error) {
	var response WhoAmIResponse
	if err := s.call(ctx, "whoami", http.MethodGet, clientV3+"/account/whoami", nil, nil, &response); err != nil {
		return ref.UserID{}, err
	}
	return response.UserID, nil
}

func (s *DirectSession) JoinRoom(ctx context.Context, roomID ref.RoomID) (ref.RoomID, error) {
	var response struct {
		RoomID ref.RoomID `json:"room_id"`
	}
	path := clientV3 + "/join/" + url.PathEscape(roomID.String())
	if err := s.call(ctx, "joining "+roomID.String(), http.MethodPost, path, struct{}{}, nil, &response); err != nil {
		return ref.RoomID{}, err
	}
	return response.RoomID, nil
}

func (s *DirectSession) SendMessage(ctx context.Context, roomID ref.RoomID, content MessageContent) (ref.EventID, error) {
	return s.SendEvent(ctx, roomID, ref.EventTypeMessage, content)
}

func (s *DirectSession) SendReaction(ctx context.Context, roomID ref.RoomID, target ref.EventID, key string) (ref.EventID, error) {
	return s.SendEvent(ctx, roomID, ref.EventTypeReaction, NewReaction(target, key))
}

// SendEvent PUTs an event under a fresh transaction ID and returns the
// ID the homeserver assigned.
func (s *DirectSession) SendEvent(ctx context.Context, roomID ref.RoomID, eventType ref.EventType, content any) (ref.EventID, error) {
	path := roomPath(clientV3, roomID, "send", eventType.String(), s.nextTransactionID())
	var response SendEventResponse
	what := fmt.Sprintf("sending %s to %s", eventType, roomID)
	if err := s.call(ctx, what, http.MethodPut, path, content, nil, &response); err != nil {
		return ref.EventID{}, err
	}
	return response.EventID, nil
}

// GetEvent fetches one event. IsNotFound reports true for events that
// are unknown or invisible to the bot.
func (s *DirectSession) GetEvent(ctx context.Context, roomID ref.RoomID, eventID ref.EventID) (*Event, error) {
	var event Event
	what := fmt.Sprintf("fetching event %s in %s", eventID, roomID)
	if err := s.call(ctx, what, http.MethodGet, roomPath(clientV3, roomID, "event", eventID.String()), nil, nil, &event); err != nil {
		return nil, err
	}
	if event.RoomID.IsZero() {
		event.RoomID = roomID
	}
	return &event, nil
}

// GetStateEvent returns the raw content of one state event. A missing
// event is a *MatrixError with M_NOT_FOUND.
func (s *DirectSession) GetStateEvent(ctx context.Context, roomID ref.RoomID, eventType ref.EventType, stateKey string) (json.RawMessage, error) {
	path := roomPath(clientV3, roomID, "state", eventType.String(), stateKey)
	body, err := s.client.doRequest(ctx, http.MethodGet, path, s.accessToken, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("messaging: reading %s[%q] in %s: %w", eventType, stateKey, roomID, err)
	}
	return json.RawMessage(body), nil
}

// Relations fetches one page of events related to eventID by relType.
func (s *DirectSession) Relations(ctx context.Context, roomID ref.RoomID, eventID ref.EventID, relType string, options RelationsOptions) (*RelationsResponse, error) {
	query := url.Values{}
	if options.From != "" {
		query.Set("from", options.From)
	}
	if options.Limit > 0 {
		query.Set("limit", strconv.Itoa(options.Limit))
	}

	var response RelationsResponse
	what := fmt.Sprintf("listing %s relations of %s", relType, eventID)
	path := roomPath(clientV1, roomID, "relations", eventID.String(), relType)
	if err := s.call(ctx, what, http.MethodGet, path, nil, query, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// GetDisplayName returns the user's profile display name, or "" when
// none is set.
func (s *DirectSession) GetDisplayName(ctx context.Context, userID ref.UserID) (string, error) {
	var response DisplayNameResponse
	path := clientV3 + "/profile/" + url.PathEscape(userID.String()) + "/displayname"
	if err := s.call(ctx, "display name of "+userID.String(), http.MethodGet, path, nil, nil, &response); err != nil {
		return "", err
	}
	return response.DisplayName, nil
}

// Sync runs one /sync request. An empty Since asks for the initial
// snapshot; SetTimeout turns it into a long poll.
func (s *DirectSession) Sync(ctx context.Context, options SyncOptions) (*SyncResponse, error) {
	query := url.Values{}
	if options.Since != "" {
		query.Set("since", options.Since)
	}
	if options.SetTimeout {
		query.Set("timeout", strconv.Itoa(options.Timeout))
	}
	if options.Filter != "" {
		query.Set("filter", options.Filter)
	}

	var response SyncResponse
	if err := s.call(ctx, "sync", http.MethodGet, clientV3+"/sync", nil, query, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// nextTransactionID combines the start time with a counter so IDs
// from a restarted bot never repeat earlier ones.
func (s *DirectSession) nextTransactionID() string {
	return fmt.Sprintf("pollmaker-%d-%d", time.Now().UnixMilli(), s.sends.Add(1))
}
