// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pollcache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bureau-foundation/pollmaker/lib/chat"
	"github.com/bureau-foundation/pollmaker/lib/poll"
)

// ErrCacheDecode is returned when a snapshot file is not valid: bad
// JSON, an unknown reference type, or a record that violates the
// poll invariants. Callers must not overwrite a file that failed to
// decode.
var ErrCacheDecode = errors.New("pollcache: malformed snapshot")

// record is the on-disk form of one registry slot. Fields are in
// alphabetical order of their JSON names.
type record struct {
	Active      bool           `json:"active"`
	Author      *Reference     `json:"author"`
	Dead        bool           `json:"dead"`
	Options     []string       `json:"options"`
	Owner       *Reference     `json:"owner"`
	PollIndex   *int           `json:"poll_index"`
	PollMessage *Reference     `json:"poll_message"`
	Votes       [][]*Reference `json:"votes"`
}

// Encode serializes a registry snapshot: a JSON array with one object
// per slot, indented by four spaces, keys sorted, newline-terminated.
func Encode(records []poll.Record) ([]byte, error) {
	stored := make([]record, len(records))
	for position, source := range records {
		target := record{
			Active:      source.Active,
			Author:      NewReference(source.Author),
			Dead:        source.Dead,
			Options:     append([]string{}, source.Options...),
			Owner:       NewReference(source.Owner),
			PollIndex:   source.Index,
			PollMessage: NewReference(source.Announcement),
			Votes:       make([][]*Reference, len(source.Votes)),
		}
		for option, voters := range source.Votes {
			target.Votes[option] = make([]*Reference, len(voters))
			for index, voter := range voters {
				if voter == nil {
					return nil, fmt.Errorf("encoding slot %d: nil voter for option %d", position, option)
				}
				target.Votes[option][index] = NewReference(voter)
			}
		}
		stored[position] = target
	}

	var buffer bytes.Buffer
	encoder := json.NewEncoder(&buffer)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "    ")
	if err := encoder.Encode(stored); err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}
	return buffer.Bytes(), nil
}

// pending is an entity field waiting for resolution.
type pending struct {
	ref    chat.Ref
	target *chat.Entity
}

// Decode parses a snapshot and resolves every reference in it.
//
// A reference the resolver reports as chat.ErrNotFound becomes
// chat.Gone. Any other resolver error aborts the decode and is
// returned as is; parse failures wrap ErrCacheDecode. Each distinct
// reference is resolved once, however many times it appears.
func Decode(ctx context.Context, data []byte, resolver chat.Resolver) ([]poll.Record, error) {
	records, work, err := parse(data)
	if err != nil {
		return nil, err
	}

	resolved := make(map[string]chat.Entity)
	for _, item := range work {
		key := item.ref.Key()
		entity, done := resolved[key]
		if !done {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			entity, err = resolver.Resolve(ctx, item.ref)
			if errors.Is(err, chat.ErrNotFound) {
				entity, err = chat.Gone{Original: item.ref}, nil
			}
			if err != nil {
				return nil, fmt.Errorf("resolving %s: %w", item.ref, err)
			}
			resolved[key] = entity
		}
		*item.target = entity
	}
	return records, nil
}

// Parse decodes a snapshot without contacting the platform: every
// entity is whatever [Offline] builds from its stored reference. Used
// to inspect a snapshot file without a homeserver.
func Parse(data []byte) ([]poll.Record, error) {
	return Decode(context.Background(), data, Offline{})
}

// parse is phase one. It builds the output records and returns the
// entity fields that still need resolving, in file order.
func parse(data []byte) ([]poll.Record, []pending, error) {
	var stored []record
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrCacheDecode, err)
	}
	if stored == nil {
		// "null" unmarshals without error; "[]" yields an empty slice.
		return nil, nil, fmt.Errorf("%w: top level is not an array", ErrCacheDecode)
	}

	records := make([]poll.Record, len(stored))
	var work []pending
	queue := func(slot int, field string, reference *Reference, target *chat.Entity) error {
		if reference == nil {
			return nil
		}
		ref, err := reference.Ref()
		if err != nil {
			return fmt.Errorf("%w: slot %d %s: %v", ErrCacheDecode, slot, field, err)
		}
		work = append(work, pending{ref: ref, target: target})
		return nil
	}

	for slot, source := range stored {
		target := &records[slot]
		target.Index = source.PollIndex
		target.Active = source.Active
		target.Dead = source.Dead
		target.Options = append([]string{}, source.Options...)

		if source.Dead && (source.Active || source.PollIndex != nil || source.Author != nil || source.PollMessage != nil) {
			return nil, nil, fmt.Errorf("%w: slot %d is dead but keeps live state", ErrCacheDecode, slot)
		}
		if !source.Dead && (source.Author == nil || source.PollMessage == nil || source.Owner == nil) {
			return nil, nil, fmt.Errorf("%w: slot %d is live but missing author, owner, or poll_message", ErrCacheDecode, slot)
		}

		if err := queue(slot, "author", source.Author, &target.Author); err != nil {
			return nil, nil, err
		}
		if err := queue(slot, "owner", source.Owner, &target.Owner); err != nil {
			return nil, nil, err
		}
		if source.PollMessage != nil && source.PollMessage.Type != chat.KindMessage {
			return nil, nil, fmt.Errorf("%w: slot %d poll_message is a %s", ErrCacheDecode, slot, source.PollMessage.Type)
		}
		if err := queue(slot, "poll_message", source.PollMessage, &target.Announcement); err != nil {
			return nil, nil, err
		}

		target.Votes = make([][]chat.Entity, len(source.Votes))
		for option, voters := range source.Votes {
			target.Votes[option] = make([]chat.Entity, len(voters))
			for index, voter := range voters {
				if voter == nil {
					return nil, nil, fmt.Errorf("%w: slot %d option %d has a null voter", ErrCacheDecode, slot, option)
				}
				field := fmt.Sprintf("votes[%d][%d]", option, index)
				if err := queue(slot, field, voter, &target.Votes[option][index]); err != nil {
					return nil, nil, err
				}
			}
		}
	}
	return records, work, nil
}
