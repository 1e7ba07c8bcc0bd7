// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package poll

import (
	"fmt"

	"github.com/bureau-foundation/pollmaker/lib/chat"
)

// Poll is one multiple-choice vote.
//
// Invariants: a dead poll is inactive, has no index, author, or
// announcement, and has empty options and votes. A live poll has
// exactly one voter list per option.
type Poll struct {
	index        int
	author       chat.Entity
	owner        chat.Entity
	announcement *chat.Message
	options      []string
	votes        [][]chat.Entity
	active       bool
	dead         bool
}

// ValidateOptions checks the option count without creating anything,
// so callers can reject a request before posting an announcement.
func ValidateOptions(options []string) error {
	if len(options) < MinOptions || len(options) > MaxOptions {
		return fmt.Errorf("%w: got %d, need %d to %d", ErrInvalidOptionCount, len(options), MinOptions, MaxOptions)
	}
	return nil
}

// New creates an active poll at the given registry index.
//
// owner is the bot's own identity in the poll's channel. Reactions
// from owner are never counted, which keeps the bot's seed reactions
// (one per option, added right after the announcement) out of the
// tally. The poll's human author can vote like anyone else.
func New(index int, options []string, author chat.Entity, announcement *chat.Message, owner chat.Entity) (*Poll, error) {
	if err := ValidateOptions(options); err != nil {
		return nil, err
	}
	return &Poll{
		index:        index,
		author:       author,
		owner:        owner,
		announcement: announcement,
		options:      append([]string(nil), options...),
		votes:        make([][]chat.Entity, len(options)),
		active:       true,
	}, nil
}

// Index returns the poll's registry index, or -1 for a dead poll.
func (p *Poll) Index() int {
	if p.dead {
		return -1
	}
	return p.index
}

// Author returns the user who created the poll. Nil once dead.
func (p *Poll) Author() chat.Entity { return p.author }

// Owner returns the bot identity that posted the poll. Destroying a
// poll does not clear it.
func (p *Poll) Owner() chat.Entity { return p.owner }

// Announcement returns the message that renders the poll. Nil once
// dead.
func (p *Poll) Announcement() *chat.Message { return p.announcement }

// SetAnnouncement records the announcement's new content after the bot
// edits it. The message ID must not change.
func (p *Poll) SetAnnouncement(message *chat.Message) {
	if p.dead || message == nil || p.announcement == nil || message.ID != p.announcement.ID {
		return
	}
	p.announcement = message
}

// Options returns the option labels in display order.
func (p *Poll) Options() []string { return p.options }

// Voters returns the voters for one option, in the order they voted.
func (p *Poll) Voters(option int) []chat.Entity {
	if option < 0 || option >= len(p.votes) {
		return nil
	}
	return p.votes[option]
}

// Active reports whether the poll accepts votes.
func (p *Poll) Active() bool { return p.active }

// Dead reports whether the poll has been destroyed.
func (p *Poll) Dead() bool { return p.dead }

// voteTarget applies the checks shared by CastVote and RetractVote and
// returns the option position the glyph selects.
func (p *Poll) voteTarget(voter chat.Entity, glyph string) (int, bool) {
	if !p.active || p.dead {
		return 0, false
	}
	option, ok := GlyphIndex(glyph)
	if !ok || option >= len(p.options) {
		return 0, false
	}
	if chat.SameIdentity(voter, p.owner) {
		return 0, false
	}
	return option, true
}

// CastVote records voter against the option glyph selects. Returns
// false, changing nothing, if the glyph is unknown or past the last
// option, the poll is inactive, or voter is the owner.
//
// A voter may hold votes on several options at once.
func (p *Poll) CastVote(voter chat.Entity, glyph string) bool {
	option, ok := p.voteTarget(voter, glyph)
	if !ok {
		return false
	}
	p.votes[option] = append(p.votes[option], voter)
	return true
}

// RetractVote removes voter's vote from the option glyph selects. It
// fails under the same conditions as CastVote, and also when voter had
// no vote on that option.
func (p *Poll) RetractVote(voter chat.Entity, glyph string) bool {
	option, ok := p.voteTarget(voter, glyph)
	if !ok {
		return false
	}
	voters := p.votes[option]
	for position, existing := range voters {
		if chat.SameIdentity(existing, voter) {
			p.votes[option] = append(voters[:position:position], voters[position+1:]...)
			return true
		}
	}
	return false
}

// Deactivate stops vote collection. Calling it on an inactive poll is
// a no-op; callers that need to report "already inactive" check Active
// first.
func (p *Poll) Deactivate() {
	p.active = false
}

// Destroy turns the poll into a tombstone.
func (p *Poll) Destroy() {
	p.active = false
	p.dead = true
	p.index = -1
	p.author = nil
	p.announcement = nil
	p.options = []string{}
	p.votes = [][]chat.Entity{}
}

// tombstone returns a dead poll that remembers only its owner.
func tombstone(owner chat.Entity) *Poll {
	p := &Poll{owner: owner}
	p.Destroy()
	return p
}
