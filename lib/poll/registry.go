// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package poll

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bureau-foundation/pollmaker/lib/chat"
)

// Requester is the user asking to stop or delete a poll, along with
// whether the platform considers them an administrator in the poll's
// channel.
type Requester struct {
	Who           chat.Entity
	Administrator bool
}

// Registry holds every poll slot, live or tombstone, in index order,
// plus a lookup from announcement message ID to poll.
type Registry struct {
	polls     []*Poll
	byMessage map[string]*Poll
	dirty     bool
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byMessage: make(map[string]*Poll)}
}

// Len returns the number of slots, tombstones included.
func (r *Registry) Len() int { return len(r.polls) }

// Poll returns the poll in slot index, or nil when index is out of
// range. The result may be a tombstone.
func (r *Registry) Poll(index int) *Poll {
	if index < 0 || index >= len(r.polls) {
		return nil
	}
	return r.polls[index]
}

// Live returns the polls that are not dead, in index order.
func (r *Registry) Live() []*Poll {
	var live []*Poll
	for _, p := range r.polls {
		if !p.dead {
			live = append(live, p)
		}
	}
	return live
}

// Dirty reports whether the registry changed since the last
// ClearDirty.
func (r *Registry) Dirty() bool { return r.dirty }

// ClearDirty is called by the persistence layer once the current state
// has been written.
func (r *Registry) ClearDirty() { r.dirty = false }

// MarkDirty forces the next flush to write.
func (r *Registry) MarkDirty() { r.dirty = true }

// AllocateSlot returns the index the next poll will occupy: the first
// tombstone from the front, or a new slot at the end. It does not
// reserve the slot, so calling it before CreatePoll (to render the
// announcement with its ID) returns the same index CreatePoll uses as
// long as nothing else mutates the registry in between.
func (r *Registry) AllocateSlot() int {
	for index, p := range r.polls {
		if p.dead {
			return index
		}
	}
	return len(r.polls)
}

// CreatePoll constructs a poll in the slot AllocateSlot picks,
// overwriting a tombstone or appending, and registers its announcement
// for reaction lookup.
func (r *Registry) CreatePoll(options []string, author chat.Entity, announcement *chat.Message, owner chat.Entity) (*Poll, error) {
	if announcement == nil {
		return nil, fmt.Errorf("poll: creating poll without an announcement message")
	}
	index := r.AllocateSlot()
	p, err := New(index, options, author, announcement, owner)
	if err != nil {
		return nil, err
	}
	if index < len(r.polls) {
		r.polls[index] = p
	} else {
		r.polls = append(r.polls, p)
	}
	r.byMessage[announcement.ID] = p
	r.dirty = true
	return p, nil
}

// ResolveIndexArgument parses the arguments of a poll ID command into a
// registry index. Poll IDs are shown 1-based and zero-padded ("007"),
// so leading zeros are stripped and one is subtracted.
func (r *Registry) ResolveIndexArgument(args []string) (int, error) {
	if len(args) > 1 {
		return 0, fmt.Errorf("%w: got %d", ErrTooManyArguments, len(args))
	}
	if len(args) == 0 {
		return 0, fmt.Errorf("%w: no poll ID given", ErrNotAValidID)
	}
	number, err := strconv.Atoi(strings.TrimLeft(args[0], "0"))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrNotAValidID, args[0])
	}
	index := number - 1
	if index < 0 || index >= len(r.polls) || r.polls[index].dead {
		return 0, fmt.Errorf("%w: no live poll %q", ErrNotAValidID, args[0])
	}
	return index, nil
}

// FindByMessage returns the live poll announced by messageID, or nil.
func (r *Registry) FindByMessage(messageID string) *Poll {
	return r.byMessage[messageID]
}

func (r *Registry) slot(index int) (*Poll, error) {
	if index < 0 || index >= len(r.polls) {
		return nil, fmt.Errorf("%w: index %d out of range", ErrNotAValidID, index)
	}
	return r.polls[index], nil
}

func (p *Poll) permits(requester Requester) bool {
	return requester.Administrator || chat.SameIdentity(p.author, requester.Who)
}

// DeactivatePoll stops vote collection on the poll at index. The
// requester must be the author or an administrator; that is checked
// before the poll's state, so only someone allowed to stop the poll
// learns that it was already stopped.
func (r *Registry) DeactivatePoll(index int, requester Requester) error {
	p, err := r.slot(index)
	if err != nil {
		return err
	}
	if !p.permits(requester) {
		return ErrPermissionDenied
	}
	if !p.active {
		return ErrAlreadyInactive
	}
	p.Deactivate()
	r.dirty = true
	return nil
}

// DestroyPoll turns the poll at index into a tombstone and trims
// trailing tombstones. A tombstone has no author, so the dead check
// comes first; otherwise a second destroy by the author would report
// a permission failure instead of ErrAlreadyDead.
func (r *Registry) DestroyPoll(index int, requester Requester) error {
	p, err := r.slot(index)
	if err != nil {
		return err
	}
	if p.dead {
		return ErrAlreadyDead
	}
	if !p.permits(requester) {
		return ErrPermissionDenied
	}
	r.destroy(p)
	return nil
}

// Forget destroys the poll announced by messageID without any
// permission check. It handles announcements deleted on the platform.
// Returns the tombstone, or nil if no live poll used that message.
func (r *Registry) Forget(messageID string) *Poll {
	p := r.byMessage[messageID]
	if p == nil {
		return nil
	}
	r.destroy(p)
	return p
}

func (r *Registry) destroy(p *Poll) {
	if p.announcement != nil {
		delete(r.byMessage, p.announcement.ID)
	}
	p.Destroy()
	r.trim()
	r.dirty = true
}

// trim drops the run of tombstones at the end of the slot list.
func (r *Registry) trim() {
	end := len(r.polls)
	for end > 0 && r.polls[end-1].dead {
		end--
	}
	for index := end; index < len(r.polls); index++ {
		r.polls[index] = nil
	}
	r.polls = r.polls[:end]
}

// CastVote records a vote on the live poll announced by messageID and
// marks the registry dirty when the vote counted. Returns the poll (nil
// when the message is not a poll announcement) and whether a vote was
// recorded.
func (r *Registry) CastVote(messageID string, voter chat.Entity, glyph string) (*Poll, bool) {
	p := r.byMessage[messageID]
	if p == nil {
		return nil, false
	}
	if !p.CastVote(voter, glyph) {
		return p, false
	}
	r.dirty = true
	return p, true
}

// RetractVote is the inverse of CastVote.
func (r *Registry) RetractVote(messageID string, voter chat.Entity, glyph string) (*Poll, bool) {
	p := r.byMessage[messageID]
	if p == nil {
		return nil, false
	}
	if !p.RetractVote(voter, glyph) {
		return p, false
	}
	r.dirty = true
	return p, true
}
