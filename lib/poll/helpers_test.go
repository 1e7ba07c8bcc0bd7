// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package poll

import (
	"fmt"
	"testing"

	"github.com/bureau-foundation/pollmaker/lib/chat"
)

const testChannel = "!polls:example.org"

func member(name string) chat.Member {
	return chat.Member{UserID: "@" + name + ":example.org", Channel: testChannel, Name: name}
}

var (
	authorA = member("alice")
	authorB = member("bob")
	voterX  = member("xavier")
	voterY  = member("yolanda")
	bot     = member("pollmaker")
)

func announcement(id string) *chat.Message {
	return &chat.Message{ID: "$" + id, Channel: testChannel, Sender: bot.UserID}
}

// mustCreate creates a poll and fails the test on error.
func mustCreate(t *testing.T, registry *Registry, options []string, author chat.Entity, messageID string) *Poll {
	t.Helper()
	p, err := registry.CreatePoll(options, author, announcement(messageID), bot)
	if err != nil {
		t.Fatalf("CreatePoll(%v): %v", options, err)
	}
	return p
}

// registryWith creates count two-option polls authored by authorA,
// announced by messages "$m0", "$m1", and so on.
func registryWith(t *testing.T, count int) *Registry {
	t.Helper()
	registry := NewRegistry()
	for index := 0; index < count; index++ {
		mustCreate(t, registry, []string{"yes", "no"}, authorA, fmt.Sprintf("m%d", index))
	}
	return registry
}

// checkInvariants verifies every structural invariant of a registry.
func checkInvariants(t *testing.T, registry *Registry) {
	t.Helper()
	seen := make(map[int]bool)
	for slot, p := range registry.polls {
		if p.dead {
			if p.active || p.author != nil || p.announcement != nil || len(p.options) != 0 || len(p.votes) != 0 || p.Index() != -1 {
				t.Errorf("slot %d: tombstone retains state: %+v", slot, p)
			}
			continue
		}
		if len(p.votes) != len(p.options) {
			t.Errorf("slot %d: %d vote lists for %d options", slot, len(p.votes), len(p.options))
		}
		if p.index != slot {
			t.Errorf("slot %d: poll index %d", slot, p.index)
		}
		if seen[p.index] {
			t.Errorf("slot %d: duplicate live index %d", slot, p.index)
		}
		seen[p.index] = true
		if registry.byMessage[p.announcement.ID] != p {
			t.Errorf("slot %d: announcement %s not in message lookup", slot, p.announcement.ID)
		}
	}
	if len(registry.polls) > 0 && registry.polls[len(registry.polls)-1].dead {
		t.Errorf("registry ends with a tombstone")
	}
}
