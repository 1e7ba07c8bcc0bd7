// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/bureau-foundation/pollmaker/lib/clock"
	"github.com/bureau-foundation/pollmaker/lib/config"
	"github.com/bureau-foundation/pollmaker/lib/matrixchat"
	"github.com/bureau-foundation/pollmaker/lib/poll"
	"github.com/bureau-foundation/pollmaker/lib/pollstore"
	"github.com/bureau-foundation/pollmaker/lib/ref"
	"github.com/bureau-foundation/pollmaker/lib/service"
	"github.com/bureau-foundation/pollmaker/lib/version"
	"github.com/bureau-foundation/pollmaker/messaging"
)

// Event types the bot reads. Membership and power levels keep the
// display name and administrator caches current.
var (
	syncStateTypes = []ref.EventType{
		ref.EventTypeMember,
		ref.EventTypePowerLevels,
	}
	syncTimelineTypes = []ref.EventType{
		ref.EventTypeMessage,
		ref.EventTypeReaction,
		ref.EventTypeRedaction,
	}
)

// runDaemon loads configuration and the Matrix session and runs the
// bot until a signal, a leave command, or a revoked token stops it.
func runDaemon(params *runParams) error {
	cfg, err := loadConfig(params.configPath)
	if err != nil {
		return err
	}
	if params.logLevel != "" {
		cfg.LogLevel = params.logLevel
	}
	if params.logFormat != "" {
		cfg.LogFormat = params.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	level, err := service.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger, err := service.NewLogger(os.Stderr, level, cfg.LogFormat)
	if err != nil {
		return err
	}

	if err := cfg.EnsureStateDir(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_, session, err := service.LoadSession(cfg.SessionFile, cfg.Homeserver, logger)
	if err != nil {
		return fmt.Errorf("loading session: %w", err)
	}
	defer session.Close()

	return serve(ctx, cfg, session, clock.Real(), logger)
}

// serve runs the bot on an authenticated session.
func serve(ctx context.Context, cfg *config.Config, session messaging.Session, clk clock.Clock, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	userID, err := service.ValidateSession(ctx, session)
	if err != nil {
		return err
	}
	logger.Info("matrix session valid", "user_id", userID, "version", version.Info())

	adapter, err := matrixchat.New(matrixchat.Config{
		Session:            session,
		Operators:          cfg.OperatorIDs(),
		AdministratorLevel: cfg.AdministratorLevel,
		Logger:             logger,
	})
	if err != nil {
		return err
	}

	// The initial sync only primes caches. Events that arrived while
	// the bot was offline are not replayed.
	filter := service.BuildSyncFilter(syncStateTypes, syncTimelineTypes, cfg.Sync.TimelineLimit)
	sinceToken, initial, err := service.InitialSync(ctx, session, filter)
	if err != nil {
		return fmt.Errorf("initial sync: %w", err)
	}
	adapter.Prime(initial)
	service.AcceptInvites(ctx, session, initial.Rooms.Invite, logger)
	for _, roomID := range cfg.RoomIDs() {
		if _, joined := initial.Rooms.Join[roomID]; joined {
			continue
		}
		if _, err := session.JoinRoom(ctx, roomID); err != nil {
			logger.Error("failed to join configured room", "room_id", roomID, "error", err)
			continue
		}
		logger.Info("joined configured room", "room_id", roomID)
	}

	registry := poll.NewRegistry()
	store := pollstore.Open(cfg.CachePath(), clk, logger)
	if err := store.Load(ctx, adapter, registry); err != nil {
		return fmt.Errorf("loading poll cache: %w", err)
	}
	for _, p := range registry.Live() {
		announcement := p.Announcement()
		if err := adapter.IndexReactions(ctx, announcement.Channel, announcement.ID); err != nil {
			logger.Warn("rebuilding reaction index failed",
				"poll_index", p.Index(),
				"event_id", announcement.ID,
				"error", err,
			)
		}
	}
	store.MarkReady()

	bot, err := NewBot(adapter, registry, store, cfg.CommandPrefix, cancel, logger)
	if err != nil {
		return err
	}
	dispatcher := NewDispatcher(bot)
	go dispatcher.Run(ctx)

	control := &Control{
		dispatcher:       dispatcher,
		clock:            clk,
		startedAt:        clk.Now(),
		userID:           userID.String(),
		indexedReactions: adapter.IndexedReactions,
	}
	socketServer := service.NewSocketServer(cfg.SocketPath, logger)
	control.register(socketServer)
	socketDone := make(chan error, 1)
	go func() {
		socketDone <- socketServer.Serve(ctx)
	}()

	handleSync := func(ctx context.Context, response *messaging.SyncResponse) {
		service.AcceptInvites(ctx, session, response.Rooms.Invite, logger)
		dispatcher.Deliver(ctx, adapter.Translate(ctx, response))
	}
	syncDone := make(chan error, 1)
	go func() {
		syncDone <- service.RunSyncLoop(ctx, session, service.SyncConfig{
			Filter:     filter,
			Timeout:    int(cfg.Sync.Timeout.Std().Milliseconds()),
			MaxBackoff: cfg.Sync.MaxBackoff.Std(),
		}, sinceToken, handleSync, clk, logger)
	}()

	logger.Info("pollmaker running",
		"user_id", userID,
		"socket", cfg.SocketPath,
		"cache", cfg.CachePath(),
		"polls", len(registry.Live()),
		"prefix", cfg.CommandPrefix,
	)

	var syncErr error
	select {
	case <-ctx.Done():
		syncErr = <-syncDone
	case syncErr = <-syncDone:
		cancel()
	}
	logger.Info("shutting down")

	<-dispatcher.Done()
	if err := <-socketDone; err != nil {
		logger.Error("socket server error", "error", err)
	}
	return syncErr
}

// loadConfig reads the file named by --config, or by POLLMAKER_CONFIG
// when the flag is empty.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		cfg, err := config.Load()
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		return cfg, nil
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading config %s: %w", path, err)
	}
	return cfg, nil
}
