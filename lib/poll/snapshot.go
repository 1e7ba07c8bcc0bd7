// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package poll

import (
	"fmt"

	"github.com/bureau-foundation/pollmaker/lib/chat"
)

// Record is the persisted form of one registry slot. Entities are
// whatever the cache codec resolved them to: live variants, or
// chat.Gone for references that no longer exist.
type Record struct {
	// Index is nil for a tombstone.
	Index        *int
	Author       chat.Entity
	Announcement chat.Entity
	Owner        chat.Entity
	Options      []string
	Votes        [][]chat.Entity
	Active       bool
	Dead         bool
}

// Snapshot returns one record per slot, in slot order.
func (r *Registry) Snapshot() []Record {
	records := make([]Record, 0, len(r.polls))
	for _, p := range r.polls {
		record := Record{
			Owner:   p.owner,
			Options: append([]string{}, p.options...),
			Votes:   make([][]chat.Entity, len(p.votes)),
			Active:  p.active,
			Dead:    p.dead,
		}
		for option, voters := range p.votes {
			record.Votes[option] = append([]chat.Entity{}, voters...)
		}
		if !p.dead {
			index := p.index
			record.Index = &index
			record.Author = p.author
			record.Announcement = p.announcement
		}
		records = append(records, record)
	}
	return records
}

// Dropped describes a live poll that Restore discarded because its
// announcement message no longer exists.
type Dropped struct {
	Index        int
	Announcement chat.Ref
}

// Restore replaces the registry's contents with the given records.
//
// Live polls go back into the slot named by their index, so IDs users
// have already seen stay valid. Snapshot writes every slot, so an index
// at or past the record count is invalid; slots no record claims become
// tombstones. A live poll whose announcement resolved to chat.Gone
// (deleted while the bot was offline) is dropped and reported in the
// returned list, since nobody can vote on it any more. Trailing
// tombstones are trimmed afterwards.
//
// Restore validates every record before touching the registry: an
// invariant violation returns ErrInvalidRecord and leaves the registry
// unchanged.
func (r *Registry) Restore(records []Record) ([]Dropped, error) {
	slots := make(map[int]*Poll)
	var tombstones []*Poll
	var dropped []Dropped

	for position, record := range records {
		if record.Dead {
			tombstones = append(tombstones, tombstone(record.Owner))
			continue
		}
		if record.Index == nil {
			return nil, fmt.Errorf("%w: live record at position %d has no poll_index", ErrInvalidRecord, position)
		}
		index := *record.Index
		if index < 0 || index >= len(records) {
			return nil, fmt.Errorf("%w: poll_index %d out of range for %d records", ErrInvalidRecord, index, len(records))
		}
		if _, taken := slots[index]; taken {
			return nil, fmt.Errorf("%w: duplicate poll_index %d", ErrInvalidRecord, index)
		}
		if err := ValidateOptions(record.Options); err != nil {
			return nil, fmt.Errorf("%w: poll_index %d: %v", ErrInvalidRecord, index, err)
		}
		if len(record.Votes) != len(record.Options) {
			return nil, fmt.Errorf("%w: poll_index %d has %d vote lists for %d options",
				ErrInvalidRecord, index, len(record.Votes), len(record.Options))
		}

		message, isMessage := record.Announcement.(*chat.Message)
		if !isMessage {
			gone := Dropped{Index: index}
			if record.Announcement != nil {
				gone.Announcement = record.Announcement.Ref()
			}
			dropped = append(dropped, gone)
			slots[index] = tombstone(record.Owner)
			continue
		}

		p := &Poll{
			index:        index,
			author:       record.Author,
			owner:        record.Owner,
			announcement: message,
			options:      append([]string(nil), record.Options...),
			votes:        make([][]chat.Entity, len(record.Votes)),
			active:       record.Active,
		}
		for option, voters := range record.Votes {
			p.votes[option] = append([]chat.Entity(nil), voters...)
		}
		slots[index] = p
	}

	polls := make([]*Poll, len(records))
	byMessage := make(map[string]*Poll)
	for index := range polls {
		if p, ok := slots[index]; ok {
			polls[index] = p
			if !p.dead {
				byMessage[p.announcement.ID] = p
			}
			continue
		}
		// Unclaimed slot: reuse a restored tombstone so owners carry
		// over, or make a fresh one.
		if len(tombstones) > 0 {
			polls[index] = tombstones[0]
			tombstones = tombstones[1:]
		} else {
			polls[index] = tombstone(nil)
		}
	}

	r.polls = polls
	r.byMessage = byMessage
	r.trim()
	r.dirty = len(dropped) > 0
	return dropped, nil
}
