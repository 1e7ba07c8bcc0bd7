// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bureau-foundation/pollmaker/lib/chat"
	"github.com/bureau-foundation/pollmaker/lib/chatcommand"
	"github.com/bureau-foundation/pollmaker/lib/poll"
	"github.com/bureau-foundation/pollmaker/lib/pollstore"
)

// Replies sent in the channel. The shortcodes are expanded by the
// Matrix client before sending.
const (
	replyTooManyArguments = "You gave me too many arguments. :question:"
	replyNotAValidID      = "That's not a valid ID :angry:."
	replyNotYourPoll      = "That's not your poll :exclamation:"
	replyAlreadyStopped   = "I have already deactivated that poll."
	replyAlreadyDeleted   = "I have already deleted that poll."
	replyStopped          = "I deactivated that poll. :bulb:"
	replyDeleted          = "I took care of that poll. :bread:"
	replyCreateFailed     = "Sorry, I couldn't create the poll :frowning:"
)

// logContentLimit caps how much of a message is logged.
const logContentLimit = 64

// Bot routes chat events to the poll registry. It is not safe for
// concurrent use: only the dispatcher goroutine calls it.
type Bot struct {
	client   chat.Client
	registry *poll.Registry
	store    *pollstore.Store
	router   *chatcommand.Router
	logger   *slog.Logger

	// stop ends the daemon. The leave command calls it after the
	// final cache write.
	stop func()
}

// NewBot builds the command table for prefix and returns the bot.
func NewBot(client chat.Client, registry *poll.Registry, store *pollstore.Store, prefix string, stop func(), logger *slog.Logger) (*Bot, error) {
	bot := &Bot{
		client:   client,
		registry: registry,
		store:    store,
		logger:   logger,
		stop:     stop,
	}

	router, err := chatcommand.NewRouter(prefix,
		chatcommand.Group{
			Name: "defaults",
			Commands: []chatcommand.Command{
				{Name: "leave", Summary: leaveSummary, Run: bot.leave},
			},
		},
		chatcommand.Group{
			Name: "pollmaker",
			Commands: []chatcommand.Command{
				{Name: "addpoll", Summary: `create a poll: addpoll("A", "B", {"title": "..."})`, Run: bot.addPoll},
				{Name: "stoppoll", Summary: "stop collecting votes for a poll", Run: bot.stopPoll},
				{Name: "delpoll", Summary: "delete a poll and its results", Run: bot.deletePoll},
				{Name: "votes", Summary: "show the results of a poll", Run: bot.listVotes},
			},
		},
	)
	if err != nil {
		return nil, fmt.Errorf("building command table: %w", err)
	}
	bot.router = router
	for _, command := range router.Commands() {
		logger.Debug("chat command registered",
			"command", router.Prefix()+command.Name,
			"summary", command.Summary,
		)
	}
	return bot, nil
}

// HandleEvent applies one inbound event. Errors are logged here; one
// failed event never stops the bot.
func (b *Bot) HandleEvent(ctx context.Context, event chat.Event) {
	switch event := event.(type) {
	case chat.MessageCreated:
		b.handleMessage(ctx, event)
	case chat.ReactionAdded:
		if p, counted := b.registry.CastVote(event.MessageID, event.User, event.Key); counted {
			b.logger.Info("vote cast",
				"poll_index", p.Index(),
				"user_id", event.User.Ref().ID,
				"key", event.Key,
			)
		}
	case chat.ReactionRemoved:
		if p, counted := b.registry.RetractVote(event.MessageID, event.User, event.Key); counted {
			b.logger.Info("vote retracted",
				"poll_index", p.Index(),
				"user_id", event.User.Ref().ID,
				"key", event.Key,
			)
		}
	case chat.MessageDeleted:
		if p := b.registry.FindByMessage(event.MessageID); p != nil {
			index := p.Index()
			b.registry.Forget(event.MessageID)
			b.logger.Info("poll announcement deleted, poll destroyed",
				"poll_index", index,
				"room_id", event.Channel,
				"event_id", event.MessageID,
			)
		}
	default:
		b.logger.Warn("unhandled chat event", "type", fmt.Sprintf("%T", event))
	}
}

func (b *Bot) handleMessage(ctx context.Context, event chat.MessageCreated) {
	message := event.Message
	b.logger.Debug("message received",
		"room_id", message.Channel,
		"sender", message.Sender,
		"content", chatcommand.Shorten(message.Content, logContentLimit),
	)
	matched, err := b.router.Dispatch(ctx, message, event.Author)
	if err != nil {
		b.logger.Error("command failed",
			"room_id", message.Channel,
			"sender", message.Sender,
			"content", chatcommand.Shorten(message.Content, logContentLimit),
			"error", err,
		)
		return
	}
	if matched {
		b.logger.Info("command handled",
			"room_id", message.Channel,
			"sender", message.Sender,
			"content", chatcommand.Shorten(message.Content, logContentLimit),
		)
	}
}

// Flush writes the registry if any event changed it. The dispatcher
// calls it after every event so a handler's changes are on disk
// before the next event is taken.
func (b *Bot) Flush() {
	if err := b.store.FlushIfDirty(b.registry); err != nil {
		b.logger.Error("writing poll cache failed", "error", err)
	}
}

func (b *Bot) reply(ctx context.Context, invocation chatcommand.Invocation, text string) error {
	if _, err := b.client.Send(ctx, invocation.Message.Channel, text); err != nil {
		return fmt.Errorf("replying in %s: %w", invocation.Message.Channel, err)
	}
	return nil
}

func (b *Bot) requester(ctx context.Context, invocation chatcommand.Invocation) (poll.Requester, error) {
	administrator, err := b.client.IsAdministrator(ctx, invocation.Message.Channel, invocation.Author)
	if err != nil {
		return poll.Requester{}, fmt.Errorf("checking administrator status of %s: %w", invocation.Message.Sender, err)
	}
	return poll.Requester{Who: invocation.Author, Administrator: administrator}, nil
}

// pollIndex resolves the poll ID argument. When it fails it has
// already answered the user and returns ok=false.
func (b *Bot) pollIndex(ctx context.Context, invocation chatcommand.Invocation) (index int, ok bool, err error) {
	index, err = b.registry.ResolveIndexArgument(invocation.Fields())
	switch {
	case err == nil:
		return index, true, nil
	case errors.Is(err, poll.ErrTooManyArguments):
		return 0, false, b.reply(ctx, invocation, replyTooManyArguments)
	default:
		return 0, false, b.reply(ctx, invocation, replyNotAValidID)
	}
}

// leaveSummary is shown wherever the command table is listed. leave
// is restricted; anyone else's request is ignored without a reply.
const leaveSummary = "room administrators and operators only: save the poll cache and shut down"

func (b *Bot) leave(ctx context.Context, invocation chatcommand.Invocation) error {
	requester, err := b.requester(ctx, invocation)
	if err != nil {
		return err
	}
	if !requester.Administrator {
		b.logger.Warn("ignoring leave from non-administrator",
			"room_id", invocation.Message.Channel,
			"sender", invocation.Message.Sender,
		)
		return nil
	}
	b.logger.Info("leave requested", "sender", invocation.Message.Sender)
	if err := b.store.Flush(b.registry); err != nil {
		b.logger.Error("final poll cache write failed", "error", err)
	}
	b.stop()
	return nil
}

func (b *Bot) addPoll(ctx context.Context, invocation chatcommand.Invocation) error {
	channel := invocation.Message.Channel

	arguments, err := chatcommand.ParseArguments(invocation.Rest)
	if err != nil {
		b.logger.Info("rejected poll arguments", "room_id", channel, "error", err)
		return b.reply(ctx, invocation, replyCreateFailed)
	}
	index := b.registry.AllocateSlot()
	text, err := poll.Announcement(index, arguments.Values, arguments.Title)
	if err != nil {
		b.logger.Info("rejected poll options", "room_id", channel, "error", err)
		return b.reply(ctx, invocation, replyCreateFailed)
	}

	owner, err := b.client.Self(ctx, channel)
	if err != nil {
		return fmt.Errorf("looking up own membership in %s: %w", channel, err)
	}
	announcement, err := b.client.Send(ctx, channel, text)
	if err != nil {
		return fmt.Errorf("sending poll announcement: %w", err)
	}
	p, err := b.registry.CreatePoll(arguments.Values, invocation.Author, announcement, owner)
	if err != nil {
		return fmt.Errorf("registering poll: %w", err)
	}
	b.logger.Info("poll created",
		"poll_index", p.Index(),
		"room_id", channel,
		"event_id", announcement.ID,
		"options", len(arguments.Values),
	)

	for position := range arguments.Values {
		if err := b.client.React(ctx, announcement, poll.Glyph(position)); err != nil {
			return fmt.Errorf("adding option reactions to poll %s: %w", poll.DisplayID(p.Index()), err)
		}
	}
	return nil
}

func (b *Bot) stopPoll(ctx context.Context, invocation chatcommand.Invocation) error {
	index, ok, err := b.pollIndex(ctx, invocation)
	if !ok {
		return err
	}
	requester, err := b.requester(ctx, invocation)
	if err != nil {
		return err
	}

	switch err := b.registry.DeactivatePoll(index, requester); {
	case errors.Is(err, poll.ErrPermissionDenied):
		return b.reply(ctx, invocation, replyNotYourPoll)
	case errors.Is(err, poll.ErrAlreadyInactive):
		return b.reply(ctx, invocation, replyAlreadyStopped)
	case err != nil:
		return err
	}

	p := b.registry.Poll(index)
	b.logger.Info("poll stopped", "poll_index", index, "sender", invocation.Message.Sender)
	if edited, err := b.appendNotice(ctx, p.Announcement(), poll.EndedNotice); err != nil {
		b.logger.Error("marking poll announcement as ended failed", "poll_index", index, "error", err)
	} else {
		p.SetAnnouncement(edited)
	}
	return b.reply(ctx, invocation, replyStopped)
}

func (b *Bot) deletePoll(ctx context.Context, invocation chatcommand.Invocation) error {
	index, ok, err := b.pollIndex(ctx, invocation)
	if !ok {
		return err
	}
	requester, err := b.requester(ctx, invocation)
	if err != nil {
		return err
	}

	// Destroy clears the announcement, so take it first.
	announcement := b.registry.Poll(index).Announcement()
	switch err := b.registry.DestroyPoll(index, requester); {
	case errors.Is(err, poll.ErrAlreadyDead):
		return b.reply(ctx, invocation, replyAlreadyDeleted)
	case errors.Is(err, poll.ErrPermissionDenied):
		return b.reply(ctx, invocation, replyNotYourPoll)
	case err != nil:
		return err
	}

	b.logger.Info("poll deleted", "poll_index", index, "sender", invocation.Message.Sender)
	if _, err := b.appendNotice(ctx, announcement, poll.DeletedNotice); err != nil {
		b.logger.Error("marking poll announcement as deleted failed", "poll_index", index, "error", err)
	}
	return b.reply(ctx, invocation, replyDeleted)
}

func (b *Bot) listVotes(ctx context.Context, invocation chatcommand.Invocation) error {
	index, ok, err := b.pollIndex(ctx, invocation)
	if !ok {
		return err
	}
	return b.reply(ctx, invocation, poll.Results(b.registry.Poll(index)))
}

func (b *Bot) appendNotice(ctx context.Context, announcement *chat.Message, notice string) (*chat.Message, error) {
	if announcement == nil {
		return nil, errors.New("poll has no announcement message")
	}
	return b.client.Edit(ctx, announcement, announcement.Content+notice)
}
