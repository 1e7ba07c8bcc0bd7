// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package pollstore keeps the on-disk poll snapshot in step with the
// in-memory registry.
//
// The store writes only after MarkReady, so a bot that crashes halfway
// through startup never replaces a good snapshot with a partial one.
// A snapshot that fails to load poisons the store: it refuses every
// later write, leaving the file for an operator to inspect. Writes
// replace the whole file atomically (temp file plus rename), and a
// write whose content hashes the same as the last one is skipped.
package pollstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/natefinch/atomic"
	"github.com/zeebo/blake3"

	"github.com/bureau-foundation/pollmaker/lib/chat"
	"github.com/bureau-foundation/pollmaker/lib/clock"
	"github.com/bureau-foundation/pollmaker/lib/poll"
	"github.com/bureau-foundation/pollmaker/lib/pollcache"
)

// ErrPoisoned is returned by Flush after the snapshot failed to load.
var ErrPoisoned = errors.New("pollstore: snapshot failed to load; refusing to overwrite it")

const filePermissions = 0o600

// Status describes the store for operators.
type Status struct {
	Path      string    `cbor:"path" json:"path"`
	Ready     bool      `cbor:"ready" json:"ready"`
	Poisoned  bool      `cbor:"poisoned" json:"poisoned"`
	Writes    int       `cbor:"writes" json:"writes"`
	LastWrite time.Time `cbor:"last_write,omitzero" json:"last_write,omitzero"`
}

// Store persists registry snapshots to one file. It is not safe for
// concurrent use; the dispatcher that owns the registry owns the store.
type Store struct {
	path   string
	clock  clock.Clock
	logger *slog.Logger

	ready    bool
	poisoned bool

	digest    [32]byte
	hasDigest bool
	writes    int
	lastWrite time.Time
}

// Open returns a store for the snapshot at path. An empty path
// disables persistence: loads find nothing and flushes do nothing.
// Open does not touch the filesystem.
func Open(path string, clk clock.Clock, logger *slog.Logger) *Store {
	return &Store{path: path, clock: clk, logger: logger}
}

// Path returns the snapshot path, empty when persistence is disabled.
func (s *Store) Path() string { return s.path }

// Load reads the snapshot into registry. A missing file leaves the
// registry empty. Polls whose announcement no longer exists are
// dropped with a warning, and the registry is left dirty so the next
// flush records their removal.
//
// Any failure poisons the store. A malformed file returns an error
// wrapping pollcache.ErrCacheDecode; a resolver failure is returned as
// is.
func (s *Store) Load(ctx context.Context, resolver chat.Resolver, registry *poll.Registry) error {
	if s.path == "" {
		s.logger.Info("poll cache disabled")
		return nil
	}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.logger.Info("no poll cache found, starting empty", "path", s.path)
		return nil
	}
	if err != nil {
		s.poisoned = true
		return fmt.Errorf("reading poll cache %s: %w", s.path, err)
	}

	records, err := pollcache.Decode(ctx, data, resolver)
	if err != nil {
		s.poisoned = true
		return fmt.Errorf("loading poll cache %s: %w", s.path, err)
	}
	dropped, err := registry.Restore(records)
	if err != nil {
		s.poisoned = true
		return fmt.Errorf("loading poll cache %s: %w: %w", s.path, pollcache.ErrCacheDecode, err)
	}
	for _, gone := range dropped {
		s.logger.Warn("dropping poll whose announcement was deleted",
			"poll_id", poll.DisplayID(gone.Index),
			"message_id", gone.Announcement.ID,
			"room_id", gone.Announcement.Channel,
		)
	}

	s.digest = blake3.Sum256(data)
	s.hasDigest = true
	s.logger.Info("poll cache loaded",
		"path", s.path,
		"slots", registry.Len(),
		"live", len(registry.Live()),
		"dropped", len(dropped),
	)
	return nil
}

// MarkReady enables writes. The bot calls it once startup, including
// Load, has finished.
func (s *Store) MarkReady() { s.ready = true }

// Status returns a snapshot of the store's state.
func (s *Store) Status() Status {
	return Status{
		Path:      s.path,
		Ready:     s.ready,
		Poisoned:  s.poisoned,
		Writes:    s.writes,
		LastWrite: s.lastWrite,
	}
}

// FlushIfDirty writes the registry when it has changed since the last
// write. Before MarkReady, or after a failed Load, it does nothing.
func (s *Store) FlushIfDirty(registry *poll.Registry) error {
	if !registry.Dirty() {
		return nil
	}
	if s.path == "" {
		registry.ClearDirty()
		return nil
	}
	if !s.ready || s.poisoned {
		return nil
	}
	return s.write(registry, false)
}

// Flush writes the registry whether or not it is dirty. It is used on
// shutdown and by the flush control action. Before MarkReady it does
// nothing; after a failed Load it returns ErrPoisoned.
func (s *Store) Flush(registry *poll.Registry) error {
	if s.path == "" {
		registry.ClearDirty()
		return nil
	}
	if s.poisoned {
		return ErrPoisoned
	}
	if !s.ready {
		s.logger.Debug("skipping poll cache write before startup finished")
		return nil
	}
	return s.write(registry, true)
}

func (s *Store) write(registry *poll.Registry, force bool) error {
	data, err := pollcache.Encode(registry.Snapshot())
	if err != nil {
		return fmt.Errorf("encoding poll cache: %w", err)
	}
	digest := blake3.Sum256(data)
	if !force && s.hasDigest && digest == s.digest {
		registry.ClearDirty()
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("creating poll cache directory: %w", err)
	}
	if err := atomic.WriteFile(s.path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("writing poll cache %s: %w", s.path, err)
	}
	// atomic.WriteFile does not set permissions on new files.
	if err := os.Chmod(s.path, filePermissions); err != nil {
		return fmt.Errorf("setting poll cache permissions: %w", err)
	}

	s.digest = digest
	s.hasDigest = true
	s.writes++
	s.lastWrite = s.clock.Now()
	registry.ClearDirty()
	s.logger.Debug("poll cache written", "path", s.path, "bytes", len(data), "slots", registry.Len())
	return nil
}
