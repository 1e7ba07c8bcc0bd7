// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/bureau-foundation/pollmaker/lib/clock"
	"github.com/bureau-foundation/pollmaker/lib/ref"
	"github.com/bureau-foundation/pollmaker/messaging"
)

// ErrSessionRevoked is returned by RunSyncLoop when the homeserver no
// longer accepts the access token. Retrying cannot help.
var ErrSessionRevoked = errors.New("service: access token rejected by homeserver")

// SyncConfig configures the Matrix /sync long-poll loop.
type SyncConfig struct {
	// Filter is the inline JSON filter restricting which event types
	// the homeserver returns. See BuildSyncFilter.
	Filter string

	// Timeout is the long-poll timeout in milliseconds. Default: 30000.
	Timeout int

	// MaxBackoff is the maximum delay between retries on transient
	// /sync errors. The loop backs off exponentially from one second.
	// Default: 30 seconds.
	MaxBackoff time.Duration
}

// SyncHandler is called for each /sync response. The next poll starts
// after the handler returns.
type SyncHandler func(ctx context.Context, response *messaging.SyncResponse)

// BuildSyncFilter returns an inline /sync filter that delivers only
// the given state and timeline event types and suppresses presence,
// ephemeral events, and account data. State types are also requested
// in the timeline, where state changes appear during incremental
// sync. Panics if the filter cannot be marshaled (programming error).
func BuildSyncFilter(stateTypes, timelineTypes []ref.EventType, timelineLimit int) string {
	allTimeline := slices.Clone(timelineTypes)
	for _, eventType := range stateTypes {
		if !slices.Contains(allTimeline, eventType) {
			allTimeline = append(allTimeline, eventType)
		}
	}
	emptyTypes := []string{}

	filter := map[string]any{
		"room": map[string]any{
			"state": map[string]any{
				"types":             stateTypes,
				"lazy_load_members": true,
			},
			"timeline": map[string]any{
				"types": allTimeline,
				"limit": timelineLimit,
			},
			"ephemeral":    map[string]any{"types": emptyTypes},
			"account_data": map[string]any{"types": emptyTypes},
		},
		"presence":     map[string]any{"types": emptyTypes},
		"account_data": map[string]any{"types": emptyTypes},
	}

	data, err := json.Marshal(filter)
	if err != nil {
		panic("building sync filter: " + err.Error())
	}
	return string(data)
}

// InitialSync performs the first /sync with no since token. It returns
// immediately with the current state and recent timeline; the caller
// builds its caches from the response and passes the returned token to
// RunSyncLoop.
func InitialSync(ctx context.Context, session messaging.Session, filter string) (string, *messaging.SyncResponse, error) {
	response, err := session.Sync(ctx, messaging.SyncOptions{
		Filter: filter,
	})
	if err != nil {
		return "", nil, fmt.Errorf("initial sync: %w", err)
	}
	return response.NextBatch, response, nil
}

// RunSyncLoop runs the incremental /sync long-poll loop from
// sinceToken, calling handler for each response, until ctx is
// cancelled.
//
// Transient errors are retried with exponential backoff (one second up
// to config.MaxBackoff); a rate-limit response waits at least as long
// as the server asks. A rejected access token ends the loop with
// ErrSessionRevoked. Cancellation returns nil.
func RunSyncLoop(ctx context.Context, session messaging.Session, config SyncConfig, sinceToken string, handler SyncHandler, clk clock.Clock, logger *slog.Logger) error {
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 30000
	}
	maxBackoff := config.MaxBackoff
	if maxBackoff == 0 {
		maxBackoff = 30 * time.Second
	}

	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		response, err := session.Sync(ctx, messaging.SyncOptions{
			Since:      sinceToken,
			Timeout:    timeout,
			SetTimeout: true,
			Filter:     config.Filter,
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if messaging.IsMatrixError(err, messaging.ErrCodeUnknownToken) {
				return fmt.Errorf("%w: %w", ErrSessionRevoked, err)
			}
			wait := backoff
			var matrixErr *messaging.MatrixError
			if errors.As(err, &matrixErr) && matrixErr.Code == messaging.ErrCodeLimitExceeded {
				wait = max(wait, time.Duration(matrixErr.RetryAfterMs)*time.Millisecond)
			}
			logger.Error("sync failed, retrying", "error", err, "backoff", wait)
			select {
			case <-ctx.Done():
				return nil
			case <-clk.After(wait):
			}
			backoff = min(backoff*2, maxBackoff)
			continue
		}

		backoff = time.Second
		sinceToken = response.NextBatch

		handler(ctx, response)
	}
}

// AcceptInvites joins every room the bot has been invited to, in room
// ID order. Returns the rooms successfully joined; failures are logged
// and skipped.
func AcceptInvites(ctx context.Context, session messaging.Session, invites map[ref.RoomID]messaging.InvitedRoom, logger *slog.Logger) []ref.RoomID {
	roomIDs := make([]ref.RoomID, 0, len(invites))
	for roomID := range invites {
		roomIDs = append(roomIDs, roomID)
	}
	slices.SortFunc(roomIDs, func(a, b ref.RoomID) int {
		return strings.Compare(a.String(), b.String())
	})

	var accepted []ref.RoomID
	for _, roomID := range roomIDs {
		logger.Info("accepting room invite", "room_id", roomID)
		if _, err := session.JoinRoom(ctx, roomID); err != nil {
			logger.Error("failed to accept room invite",
				"room_id", roomID,
				"error", err,
			)
			continue
		}
		accepted = append(accepted, roomID)
	}
	return accepted
}
