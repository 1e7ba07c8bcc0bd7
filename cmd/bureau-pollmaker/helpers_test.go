// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bureau-foundation/pollmaker/lib/chat"
	"github.com/bureau-foundation/pollmaker/lib/clock"
	"github.com/bureau-foundation/pollmaker/lib/poll"
	"github.com/bureau-foundation/pollmaker/lib/pollcache"
	"github.com/bureau-foundation/pollmaker/lib/pollstore"
)

const room = "!polls:example.org"

var (
	alice = chat.Member{UserID: "@alice:example.org", Channel: room, Name: "Alice"}
	bob   = chat.Member{UserID: "@bob:example.org", Channel: room, Name: "Bob"}
	carol = chat.Member{UserID: "@carol:example.org", Channel: room, Name: "Carol"}
	self  = chat.Member{UserID: "@pollmaker:example.org", Channel: room, Name: "Pollmaker"}

	testEpoch = time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type sentMessage struct {
	channel string
	text    string
}

type editedMessage struct {
	messageID string
	text      string
}

type addedReaction struct {
	messageID string
	key       string
}

// fakeClient records what the bot does on the platform. Message IDs
// are handed out as $event1, $event2, ...
type fakeClient struct {
	sent           []sentMessage
	edits          []editedMessage
	reactions      []addedReaction
	administrators map[string]bool

	sendErr  error
	editErr  error
	adminErr error
	next     int
}

func (f *fakeClient) Self(context.Context, string) (chat.Entity, error) {
	return self, nil
}

func (f *fakeClient) Send(_ context.Context, channel, text string) (*chat.Message, error) {
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.next++
	f.sent = append(f.sent, sentMessage{channel: channel, text: text})
	return &chat.Message{
		ID:      fmt.Sprintf("$event%d", f.next),
		Channel: channel,
		Sender:  self.UserID,
		Content: text,
	}, nil
}

func (f *fakeClient) Edit(_ context.Context, message *chat.Message, text string) (*chat.Message, error) {
	if f.editErr != nil {
		return nil, f.editErr
	}
	f.edits = append(f.edits, editedMessage{messageID: message.ID, text: text})
	edited := *message
	edited.Content = text
	return &edited, nil
}

func (f *fakeClient) React(_ context.Context, message *chat.Message, key string) error {
	f.reactions = append(f.reactions, addedReaction{messageID: message.ID, key: key})
	return nil
}

func (f *fakeClient) IsAdministrator(_ context.Context, _ string, user chat.Entity) (bool, error) {
	if f.adminErr != nil {
		return false, f.adminErr
	}
	return f.administrators[user.Ref().ID], nil
}

// lastReply returns the text of the most recent message sent.
func (f *fakeClient) lastReply(t *testing.T) string {
	t.Helper()
	if len(f.sent) == 0 {
		t.Fatal("bot sent nothing")
	}
	return f.sent[len(f.sent)-1].text
}

type testBot struct {
	bot       *Bot
	client    *fakeClient
	registry  *poll.Registry
	store     *pollstore.Store
	cachePath string
	stopped   int
	commands  int
}

func newTestBot(t *testing.T) *testBot {
	t.Helper()
	env := &testBot{
		client:    &fakeClient{administrators: map[string]bool{carol.UserID: true}},
		registry:  poll.NewRegistry(),
		cachePath: filepath.Join(t.TempDir(), "polls.json"),
	}
	env.store = pollstore.Open(env.cachePath, clock.Fake(testEpoch), discardLogger())
	env.store.MarkReady()

	bot, err := NewBot(env.client, env.registry, env.store, "!", func() { env.stopped++ }, discardLogger())
	if err != nil {
		t.Fatalf("NewBot: %v", err)
	}
	env.bot = bot
	return env
}

// say delivers a message from author and flushes, as the dispatcher
// does.
func (e *testBot) say(author chat.Member, text string) {
	e.commands++
	e.handle(chat.MessageCreated{
		Message: &chat.Message{
			ID:      fmt.Sprintf("$command%d", e.commands),
			Channel: room,
			Sender:  author.UserID,
			Content: text,
		},
		Author: author,
	})
}

func (e *testBot) handle(event chat.Event) {
	e.bot.HandleEvent(context.Background(), event)
	e.bot.Flush()
}

// addPoll creates a two-option poll by alice and returns its
// announcement message ID.
func (e *testBot) addPoll(t *testing.T) string {
	t.Helper()
	e.say(alice, `!addpoll("Red", "Blue")`)
	p := e.registry.Poll(e.registry.Len() - 1)
	if p == nil || p.Announcement() == nil {
		t.Fatalf("addpoll did not create a poll; replies: %v", e.client.sent)
	}
	return p.Announcement().ID
}

// cachedRecords reads the cache file back.
func (e *testBot) cachedRecords(t *testing.T) []poll.Record {
	t.Helper()
	data, err := os.ReadFile(e.cachePath)
	if err != nil {
		t.Fatalf("reading cache: %v", err)
	}
	records, err := pollcache.Parse(data)
	if err != nil {
		t.Fatalf("parsing cache: %v", err)
	}
	return records
}
