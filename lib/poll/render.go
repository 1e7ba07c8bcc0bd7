// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package poll

import (
	"fmt"
	"strings"
)

// Notices appended to an announcement when its poll changes state.
const (
	EndedNotice   = "\n[This poll has ended.]"
	DeletedNotice = "\n[This poll's results were deleted and you can no longer vote officially in it.]"
)

// DisplayID formats a registry index as the 1-based, zero-padded ID
// users type back into commands.
func DisplayID(index int) string {
	return fmt.Sprintf("%03d", index+1)
}

// Announcement renders the text of a poll's announcement message. The
// title line is omitted when title is empty.
func Announcement(index int, options []string, title string) (string, error) {
	if err := ValidateOptions(options); err != nil {
		return "", err
	}
	var builder strings.Builder
	fmt.Fprintf(&builder, "A new poll (ID %s) is approaching!\n=====\n", DisplayID(index))
	if title != "" {
		builder.WriteString(title)
		builder.WriteByte('\n')
	}
	for position, option := range options {
		fmt.Fprintf(&builder, "%s: %s\n", glyphs[position], option)
	}
	return strings.TrimSpace(builder.String()), nil
}

// Results renders the tally for a poll: one line per option with the
// vote count and the voters' display names in voting order.
func Results(p *Poll) string {
	var builder strings.Builder
	builder.WriteString("Here are the results for that poll:\n")
	for position, option := range p.options {
		voters := p.votes[position]
		names := make([]string, len(voters))
		for index, voter := range voters {
			names[index] = voter.DisplayName()
		}
		fmt.Fprintf(&builder, "%s [%d]: %s\n", option, len(voters), strings.Join(names, ", "))
	}
	return strings.TrimSpace(builder.String())
}
