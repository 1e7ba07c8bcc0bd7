// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package poll

import (
	"errors"
	"testing"

	"github.com/bureau-foundation/pollmaker/lib/chat"
)

func TestNew_OptionCount(t *testing.T) {
	tests := []struct {
		count   int
		wantErr bool
	}{
		{0, true},
		{1, true},
		{2, false},
		{36, false},
		{37, true},
	}
	for _, test := range tests {
		options := make([]string, test.count)
		for index := range options {
			options[index] = "option"
		}
		_, err := New(0, options, authorA, announcement("m"), bot)
		if test.wantErr {
			if !errors.Is(err, ErrInvalidOptionCount) {
				t.Errorf("New with %d options: err = %v, want ErrInvalidOptionCount", test.count, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("New with %d options: %v", test.count, err)
		}
	}
}

func TestCastVote_FirstGlyphIsFirstOption(t *testing.T) {
	registry := NewRegistry()
	p := mustCreate(t, registry, []string{"Red", "Blue"}, authorA, "msg1")

	if !p.CastVote(voterX, Glyph(0)) {
		t.Fatal("CastVote(voterX, glyph 0) = false, want true")
	}
	if voters := p.Voters(0); len(voters) != 1 || !chat.SameIdentity(voters[0], voterX) {
		t.Errorf("Red voters = %v, want [voterX]", voters)
	}
	if voters := p.Voters(1); len(voters) != 0 {
		t.Errorf("Blue voters = %v, want none", voters)
	}
}

func TestCastVote_Rejections(t *testing.T) {
	tests := []struct {
		name  string
		setup func(p *Poll)
		voter chat.Entity
		glyph string
	}{
		{"owner never votes", nil, bot, Glyph(0)},
		{"owner as plain user", nil, chat.User{ID: bot.UserID}, Glyph(1)},
		{"unknown glyph", nil, voterX, "\U0001F44D"},
		{"glyph past last option", nil, voterX, Glyph(2)},
		{"inactive poll", func(p *Poll) { p.Deactivate() }, voterX, Glyph(0)},
		{"dead poll", func(p *Poll) { p.Destroy() }, voterX, Glyph(0)},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			p, err := New(0, []string{"A", "B"}, authorA, announcement("m"), bot)
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if test.setup != nil {
				test.setup(p)
			}
			if p.CastVote(test.voter, test.glyph) {
				t.Error("CastVote = true, want false")
			}
			for option := range p.Options() {
				if len(p.Voters(option)) != 0 {
					t.Errorf("option %d has voters after rejected vote", option)
				}
			}
		})
	}
}

func TestCastVote_OwnerNeverCountsForAnyGlyph(t *testing.T) {
	options := make([]string, MaxOptions)
	for index := range options {
		options[index] = "option"
	}
	p, err := New(0, options, authorA, announcement("m"), bot)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for position := 0; position < MaxOptions; position++ {
		if p.CastVote(bot, Glyph(position)) {
			t.Errorf("owner vote counted for glyph %d", position)
		}
	}
}

func TestCastVote_AuthorMayVote(t *testing.T) {
	p, err := New(0, []string{"A", "B"}, authorA, announcement("m"), bot)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !p.CastVote(authorA, Glyph(1)) {
		t.Error("author's vote was rejected")
	}
}

func TestCastVote_MultipleOptions(t *testing.T) {
	p, err := New(0, []string{"A", "B"}, authorA, announcement("m"), bot)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !p.CastVote(voterX, Glyph(0)) || !p.CastVote(voterX, Glyph(1)) {
		t.Fatal("voter could not vote on both options")
	}
	if len(p.Voters(0)) != 1 || len(p.Voters(1)) != 1 {
		t.Errorf("voters = %v / %v, want one each", p.Voters(0), p.Voters(1))
	}
}

func TestGlyphIndex_VariationSelector(t *testing.T) {
	position, ok := GlyphIndex("3\uFE0F\u20e3")
	if !ok || position != 3 {
		t.Errorf("GlyphIndex(keycap 3 with FE0F) = %d, %v; want 3, true", position, ok)
	}
	position, ok = GlyphIndex("\U0001F1E6")
	if !ok || position != 10 {
		t.Errorf("GlyphIndex(regional A) = %d, %v; want 10, true", position, ok)
	}
	if _, ok := GlyphIndex("3"); ok {
		t.Error("GlyphIndex accepted a bare digit")
	}
}

func TestRetractVote(t *testing.T) {
	p, err := New(0, []string{"A", "B"}, authorA, announcement("m"), bot)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	p.CastVote(voterX, Glyph(0))
	p.CastVote(voterY, Glyph(0))

	if p.RetractVote(voterX, Glyph(1)) {
		t.Error("RetractVote on an option without a vote returned true")
	}
	if p.RetractVote(bot, Glyph(0)) {
		t.Error("RetractVote for the owner returned true")
	}
	if !p.RetractVote(voterX, Glyph(0)) {
		t.Fatal("RetractVote(voterX, glyph 0) = false, want true")
	}
	voters := p.Voters(0)
	if len(voters) != 1 || !chat.SameIdentity(voters[0], voterY) {
		t.Errorf("voters after retract = %v, want [voterY]", voters)
	}

	p.Deactivate()
	if p.RetractVote(voterY, Glyph(0)) {
		t.Error("RetractVote on an inactive poll returned true")
	}
}

func TestRetractVote_GoneVoter(t *testing.T) {
	p, err := New(0, []string{"A", "B"}, authorA, announcement("m"), bot)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	p.votes[0] = []chat.Entity{chat.Gone{Original: voterX.Ref()}}
	if !p.RetractVote(voterX, Glyph(0)) {
		t.Error("a returning voter could not retract a vote restored as gone")
	}
}

func TestDestroy_ClearsState(t *testing.T) {
	p, err := New(4, []string{"A", "B"}, authorA, announcement("m"), bot)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	p.CastVote(voterX, Glyph(0))
	p.Destroy()

	if !p.Dead() || p.Active() {
		t.Errorf("after Destroy: dead=%v active=%v", p.Dead(), p.Active())
	}
	if p.Index() != -1 || p.Author() != nil || p.Announcement() != nil {
		t.Errorf("after Destroy: index=%d author=%v announcement=%v", p.Index(), p.Author(), p.Announcement())
	}
	if len(p.Options()) != 0 || len(p.votes) != 0 {
		t.Errorf("after Destroy: options=%v votes=%v", p.Options(), p.votes)
	}
	if !chat.SameIdentity(p.Owner(), bot) {
		t.Errorf("Destroy cleared the owner")
	}
}

func TestSetAnnouncement(t *testing.T) {
	p, err := New(0, []string{"A", "B"}, authorA, announcement("m"), bot)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	edited := &chat.Message{ID: "$m", Channel: testChannel, Content: "edited"}
	p.SetAnnouncement(edited)
	if p.Announcement().Content != "edited" {
		t.Errorf("content = %q, want edited", p.Announcement().Content)
	}
	p.SetAnnouncement(&chat.Message{ID: "$other", Channel: testChannel, Content: "wrong"})
	if p.Announcement().Content != "edited" {
		t.Error("SetAnnouncement accepted a different message")
	}
}
