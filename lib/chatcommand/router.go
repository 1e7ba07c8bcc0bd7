// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package chatcommand routes prefixed text commands in chat messages
// to handlers.
//
// A command is recognized when the first whitespace-separated token of
// a message starts with the router's prefix followed by the command
// name, so "!addpoll(...)" and "!stoppoll 7" both match with the
// prefix "!". Because matching is by prefix, no command name may be a
// prefix of another in the same router; NewRouter rejects such sets.
package chatcommand

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/bureau-foundation/pollmaker/lib/chat"
)

// ErrCommandCollision is returned by NewRouter when one command name
// is a prefix of another, or a name is registered twice.
var ErrCommandCollision = errors.New("chatcommand: command names collide")

// Invocation is one matched command.
type Invocation struct {
	// Command is the matched command name, without the prefix.
	Command string

	// Rest is the message text following prefix and name, untrimmed.
	// For "!stoppoll 007" it is " 007"; for "!addpoll(...)" it starts
	// at the parenthesis.
	Rest string

	Message *chat.Message
	Author  chat.Entity
}

// Fields splits Rest on whitespace. Commands that take a poll ID use
// it as their argument list.
func (i Invocation) Fields() []string {
	return strings.Fields(i.Rest)
}

// HandlerFunc runs a command. Returned errors are operational failures
// (the platform rejected a send, say); user mistakes are answered in
// the channel and reported as nil.
type HandlerFunc func(ctx context.Context, invocation Invocation) error

// Command is one named command.
type Command struct {
	Name    string
	Summary string
	Run     HandlerFunc
}

// Group is a set of related commands registered together.
type Group struct {
	Name     string
	Commands []Command
}

// Router matches message text against a fixed command table.
type Router struct {
	prefix   string
	commands []Command
}

// NewRouter builds a router from groups. The prefix must be non-empty
// and free of whitespace.
func NewRouter(prefix string, groups ...Group) (*Router, error) {
	if prefix == "" || strings.IndexFunc(prefix, unicode.IsSpace) >= 0 {
		return nil, fmt.Errorf("chatcommand: invalid prefix %q", prefix)
	}

	var commands []Command
	for _, group := range groups {
		for _, command := range group.Commands {
			if command.Name == "" || strings.IndexFunc(command.Name, unicode.IsSpace) >= 0 {
				return nil, fmt.Errorf("chatcommand: group %s: invalid command name %q", group.Name, command.Name)
			}
			if command.Run == nil {
				return nil, fmt.Errorf("chatcommand: command %s has no handler", command.Name)
			}
			commands = append(commands, command)
		}
	}

	sort.Slice(commands, func(i, j int) bool { return commands[i].Name < commands[j].Name })
	// After sorting, any name that prefixes another sorts directly
	// before some name it prefixes, so adjacent pairs suffice.
	for index := 1; index < len(commands); index++ {
		previous, current := commands[index-1].Name, commands[index].Name
		if strings.HasPrefix(current, previous) {
			return nil, fmt.Errorf("%w: %q and %q", ErrCommandCollision, previous, current)
		}
	}

	return &Router{prefix: prefix, commands: commands}, nil
}

// Prefix returns the command prefix.
func (r *Router) Prefix() string { return r.prefix }

// Commands returns the registered commands sorted by name.
func (r *Router) Commands() []Command {
	return append([]Command(nil), r.commands...)
}

// Match finds the command text invokes. Leading whitespace before the
// first token is ignored.
func (r *Router) Match(text string) (Command, string, bool) {
	text = strings.TrimLeftFunc(text, unicode.IsSpace)
	if !strings.HasPrefix(text, r.prefix) {
		return Command{}, "", false
	}
	end := strings.IndexFunc(text, unicode.IsSpace)
	if end < 0 {
		end = len(text)
	}
	token := text[len(r.prefix):end]
	for _, command := range r.commands {
		if strings.HasPrefix(token, command.Name) {
			return command, text[len(r.prefix)+len(command.Name):], true
		}
	}
	return Command{}, "", false
}

// Dispatch runs the command a message invokes. The boolean reports
// whether any command matched.
func (r *Router) Dispatch(ctx context.Context, message *chat.Message, author chat.Entity) (bool, error) {
	command, rest, ok := r.Match(message.Content)
	if !ok {
		return false, nil
	}
	err := command.Run(ctx, Invocation{
		Command: command.Name,
		Rest:    rest,
		Message: message,
		Author:  author,
	})
	if err != nil {
		return true, fmt.Errorf("%s%s: %w", r.prefix, command.Name, err)
	}
	return true, nil
}

// Shorten truncates s to at most limit runes for log output, marking
// the cut with an ellipsis.
func Shorten(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	if limit <= 3 {
		return string(runes[:limit])
	}
	return string(runes[:limit-3]) + "..."
}
