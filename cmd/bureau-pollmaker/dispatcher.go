// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"

	"github.com/bureau-foundation/pollmaker/lib/chat"
)

// errDispatcherStopped is returned to control requests submitted after
// the dispatcher exited.
var errDispatcherStopped = errors.New("poll dispatcher is not running")

// controlRequest runs fn on the dispatcher goroutine and sends the
// outcome on reply.
type controlRequest struct {
	fn    func(ctx context.Context) (any, error)
	reply chan controlResult
}

type controlResult struct {
	value any
	err   error
}

// Dispatcher is the single goroutine that owns the registry. Chat
// events from /sync and requests from the control socket arrive on
// channels and are handled one at a time, each followed by a cache
// flush, so the registry needs no locking.
//
// The event channel is unbuffered: once Deliver returns, the event has
// been taken, and anything submitted afterwards observes its effects.
type Dispatcher struct {
	bot      *Bot
	events   chan chat.Event
	requests chan controlRequest
	done     chan struct{}
}

// NewDispatcher creates a dispatcher for bot. Call Run to start it.
func NewDispatcher(bot *Bot) *Dispatcher {
	return &Dispatcher{
		bot:      bot,
		events:   make(chan chat.Event),
		requests: make(chan controlRequest),
		done:     make(chan struct{}),
	}
}

// Run handles events and requests until ctx is cancelled, then writes
// the cache a final time and returns.
func (d *Dispatcher) Run(ctx context.Context) {
	defer close(d.done)
	defer func() {
		if err := d.bot.store.Flush(d.bot.registry); err != nil {
			d.bot.logger.Error("final poll cache write failed", "error", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case event := <-d.events:
			d.bot.HandleEvent(ctx, event)
		case request := <-d.requests:
			value, err := request.fn(ctx)
			request.reply <- controlResult{value: value, err: err}
		}
		d.bot.Flush()
	}
}

// Deliver hands events to the dispatcher in order. It returns early
// when ctx is cancelled or the dispatcher has stopped.
func (d *Dispatcher) Deliver(ctx context.Context, events []chat.Event) {
	for _, event := range events {
		select {
		case d.events <- event:
		case <-ctx.Done():
			return
		case <-d.done:
			return
		}
	}
}

// Do runs fn on the dispatcher goroutine and waits for its result.
// ctx bounds only the wait for the dispatcher to take the request.
func (d *Dispatcher) Do(ctx context.Context, fn func(ctx context.Context) (any, error)) (any, error) {
	reply := make(chan controlResult, 1)
	select {
	case d.requests <- controlRequest{fn: fn, reply: reply}:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-d.done:
		return nil, errDispatcherStopped
	}
	// Once taken, the request is always answered, even when fn
	// cancels the context it was submitted under.
	result := <-reply
	return result.value, result.err
}

// Done is closed when Run has returned.
func (d *Dispatcher) Done() <-chan struct{} { return d.done }
