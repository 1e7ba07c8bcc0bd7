// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ref

import "fmt"

// EventID identifies a timeline event: a poll announcement, a command
// message, a reaction or a redaction. Newer room versions use
// "$hash" and older ones "$opaque:server"; both are accepted and the
// ID is otherwise opaque.
type EventID struct {
	id string
}

func ParseEventID(raw string) (EventID, error) {
	switch {
	case raw == "":
		return EventID{}, fmt.Errorf("empty event ID")
	case raw[0] != '$':
		return EventID{}, fmt.Errorf("event ID %q does not start with '$'", raw)
	case len(raw) == 1:
		return EventID{}, fmt.Errorf("event ID %q is only a sigil", raw)
	}
	return EventID{id: raw}, nil
}

// MustParseEventID panics on an invalid ID. Tests only.
func MustParseEventID(raw string) EventID {
	id, err := ParseEventID(raw)
	if err != nil {
		panic(fmt.Sprintf("ref.MustParseEventID(%q): %v", raw, err))
	}
	return id
}

func (e EventID) String() string { return e.id }

// IsZero reports an unset ID, such as a message with no relation.
func (e EventID) IsZero() bool { return e.id == "" }

// MarshalText writes the raw ID; the zero value becomes "".
func (e EventID) MarshalText() ([]byte, error) {
	return []byte(e.id), nil
}

// UnmarshalText accepts "" as the zero value and validates anything
// else, so a malformed event_id in a sync response fails the decode.
func (e *EventID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*e = EventID{}
		return nil
	}
	parsed, err := ParseEventID(string(data))
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}
