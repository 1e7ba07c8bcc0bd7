// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package poll

import (
	"errors"
	"testing"

	"github.com/bureau-foundation/pollmaker/lib/chat"
)

func TestDisplayID(t *testing.T) {
	tests := []struct {
		index int
		want  string
	}{
		{0, "001"},
		{6, "007"},
		{99, "100"},
		{999, "1000"},
	}
	for _, test := range tests {
		if got := DisplayID(test.index); got != test.want {
			t.Errorf("DisplayID(%d) = %q, want %q", test.index, got, test.want)
		}
	}
}

func TestAnnouncement(t *testing.T) {
	got, err := Announcement(0, []string{"Red", "Blue"}, "Favourite colour?")
	if err != nil {
		t.Fatalf("Announcement: %v", err)
	}
	want := "A new poll (ID 001) is approaching!\n=====\nFavourite colour?\n" +
		Glyph(0) + ": Red\n" + Glyph(1) + ": Blue"
	if got != want {
		t.Errorf("Announcement =\n%q\nwant\n%q", got, want)
	}

	got, err = Announcement(11, []string{"yes", "no"}, "")
	if err != nil {
		t.Fatalf("Announcement without title: %v", err)
	}
	want = "A new poll (ID 012) is approaching!\n=====\n" + Glyph(0) + ": yes\n" + Glyph(1) + ": no"
	if got != want {
		t.Errorf("Announcement without title =\n%q\nwant\n%q", got, want)
	}

	if _, err := Announcement(0, []string{"lonely"}, ""); !errors.Is(err, ErrInvalidOptionCount) {
		t.Errorf("Announcement with one option: err = %v, want ErrInvalidOptionCount", err)
	}
}

func TestAnnouncement_ElevenOptionsUseLetters(t *testing.T) {
	options := make([]string, 11)
	for index := range options {
		options[index] = "o"
	}
	got, err := Announcement(0, options, "")
	if err != nil {
		t.Fatalf("Announcement: %v", err)
	}
	wantTail := "\U0001F1E6: o"
	if len(got) < len(wantTail) || got[len(got)-len(wantTail):] != wantTail {
		t.Errorf("eleventh option line should use regional indicator A, got %q", got)
	}
}

func TestResults(t *testing.T) {
	registry := NewRegistry()
	p := mustCreate(t, registry, []string{"Red", "Blue", "Green"}, authorA, "msg1")
	p.CastVote(voterX, Glyph(0))
	p.CastVote(voterY, Glyph(0))
	p.CastVote(chat.Gone{Original: authorB.Ref()}, Glyph(1))

	want := "Here are the results for that poll:\n" +
		"Red [2]: xavier, yolanda\n" +
		"Blue [1]: @bob:example.org\n" +
		"Green [0]:"
	if got := Results(p); got != want {
		t.Errorf("Results =\n%q\nwant\n%q", got, want)
	}
}
