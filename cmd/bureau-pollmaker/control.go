// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"time"

	"github.com/bureau-foundation/pollmaker/lib/clock"
	"github.com/bureau-foundation/pollmaker/lib/poll"
	"github.com/bureau-foundation/pollmaker/lib/pollstore"
	"github.com/bureau-foundation/pollmaker/lib/service"
	"github.com/bureau-foundation/pollmaker/lib/version"
)

// Control serves the daemon's control socket actions. Every action
// that reads or changes the registry runs on the dispatcher.
type Control struct {
	dispatcher *Dispatcher
	clock      clock.Clock
	startedAt  time.Time
	userID     string

	// indexedReactions reports the size of the reaction index. Nil
	// when the platform keeps none.
	indexedReactions func() int
}

func (c *Control) register(server *service.SocketServer) {
	server.Handle("status", c.handleStatus)
	server.Handle("polls", c.handlePolls)
	server.Handle("flush", c.handleFlush)
	server.Handle("leave", c.handleLeave)
}

// statusResponse is the response to the "status" action.
type statusResponse struct {
	Version          version.Build    `cbor:"version" json:"version"`
	UserID           string           `cbor:"user_id" json:"user_id"`
	UptimeSeconds    float64          `cbor:"uptime_seconds" json:"uptime_seconds"`
	Slots            int              `cbor:"slots" json:"slots"`
	LivePolls        int              `cbor:"live_polls" json:"live_polls"`
	Dirty            bool             `cbor:"dirty" json:"dirty"`
	IndexedReactions int              `cbor:"indexed_reactions" json:"indexed_reactions"`
	Cache            pollstore.Status `cbor:"cache" json:"cache"`
}

func (c *Control) handleStatus(ctx context.Context, raw []byte) (any, error) {
	return c.dispatcher.Do(ctx, func(context.Context) (any, error) {
		bot := c.dispatcher.bot
		response := statusResponse{
			Version:       version.Current(),
			UserID:        c.userID,
			UptimeSeconds: c.clock.Now().Sub(c.startedAt).Seconds(),
			Slots:         bot.registry.Len(),
			LivePolls:     len(bot.registry.Live()),
			Dirty:         bot.registry.Dirty(),
			Cache:         bot.store.Status(),
		}
		if c.indexedReactions != nil {
			response.IndexedReactions = c.indexedReactions()
		}
		return response, nil
	})
}

// pollSummary describes one live poll for the "polls" action.
type pollSummary struct {
	ID           string          `cbor:"id" json:"id"`
	Channel      string          `cbor:"channel" json:"channel"`
	Announcement string          `cbor:"announcement" json:"announcement"`
	Author       string          `cbor:"author" json:"author"`
	Active       bool            `cbor:"active" json:"active"`
	Options      []optionSummary `cbor:"options" json:"options"`
}

type optionSummary struct {
	Glyph string `cbor:"glyph" json:"glyph"`
	Label string `cbor:"label" json:"label"`
	Votes int    `cbor:"votes" json:"votes"`
}

func summarizePoll(p *poll.Poll) pollSummary {
	summary := pollSummary{
		ID:     poll.DisplayID(p.Index()),
		Active: p.Active(),
	}
	if announcement := p.Announcement(); announcement != nil {
		summary.Channel = announcement.Channel
		summary.Announcement = announcement.ID
	}
	if author := p.Author(); author != nil {
		summary.Author = author.Ref().ID
	}
	for position, label := range p.Options() {
		summary.Options = append(summary.Options, optionSummary{
			Glyph: poll.Glyph(position),
			Label: label,
			Votes: len(p.Voters(position)),
		})
	}
	return summary
}

func summarizePolls(polls []*poll.Poll) []pollSummary {
	summaries := make([]pollSummary, 0, len(polls))
	for _, p := range polls {
		summaries = append(summaries, summarizePoll(p))
	}
	return summaries
}

func (c *Control) handlePolls(ctx context.Context, raw []byte) (any, error) {
	return c.dispatcher.Do(ctx, func(context.Context) (any, error) {
		return summarizePolls(c.dispatcher.bot.registry.Live()), nil
	})
}

// handleFlush forces a cache write and returns the store status.
func (c *Control) handleFlush(ctx context.Context, raw []byte) (any, error) {
	return c.dispatcher.Do(ctx, func(context.Context) (any, error) {
		bot := c.dispatcher.bot
		if err := bot.store.Flush(bot.registry); err != nil {
			return nil, err
		}
		return bot.store.Status(), nil
	})
}

// handleLeave stops the daemon. The dispatcher writes the cache on
// its way out.
func (c *Control) handleLeave(ctx context.Context, raw []byte) (any, error) {
	return c.dispatcher.Do(ctx, func(context.Context) (any, error) {
		c.dispatcher.bot.logger.Info("leave requested on control socket")
		c.dispatcher.bot.stop()
		return nil, nil
	})
}
