// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package chatcommand

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/jsonc"
)

// ErrInvalidArguments is returned by ParseArguments when a
// parenthesized argument list cannot be parsed.
var ErrInvalidArguments = errors.New("chatcommand: invalid arguments")

// Arguments is a parsed parenthesized argument list.
type Arguments struct {
	// Values are the positional string arguments in order.
	Values []string

	// Title is the "title" entry of a trailing options object, or
	// empty.
	Title string
}

// quoteReplacer undoes the typographic quotes some chat clients
// substitute for straight ones.
var quoteReplacer = strings.NewReplacer("\u201c", `"`, "\u201d", `"`)

// singleQuoted rewrites single-quoted string literals in s as JSON
// strings, so ('a', 'it\'s') reads like ("a", "it's"). Double-quoted
// strings and comments are copied untouched. An unterminated literal
// is left as is for the JSON parser to reject.
func singleQuoted(s string) string {
	var out strings.Builder
	for i := 0; i < len(s); {
		switch {
		case s[i] == '"':
			end, _ := skipString(s, i)
			out.WriteString(s[i:end])
			i = end
		case s[i] == '\'':
			end, closed := skipString(s, i)
			if !closed {
				out.WriteString(s[i:])
				return out.String()
			}
			writeDoubleQuoted(&out, s[i+1:end-1])
			i = end
		case strings.HasPrefix(s[i:], "//"):
			end := strings.IndexByte(s[i:], '\n')
			if end < 0 {
				end = len(s) - i
			}
			out.WriteString(s[i : i+end])
			i += end
		case strings.HasPrefix(s[i:], "/*"):
			end := strings.Index(s[i+2:], "*/")
			if end < 0 {
				out.WriteString(s[i:])
				return out.String()
			}
			out.WriteString(s[i : i+end+4])
			i += end + 4
		default:
			out.WriteByte(s[i])
			i++
		}
	}
	return out.String()
}

// skipString returns the offset just past the literal opened by the
// quote at s[start], and whether it was closed.
func skipString(s string, start int) (int, bool) {
	quote := s[start]
	for i := start + 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case quote:
			return i + 1, true
		}
	}
	return len(s), false
}

// writeDoubleQuoted writes the body of a single-quoted literal as a
// double-quoted one: \' loses its backslash and bare " gains one.
func writeDoubleQuoted(out *strings.Builder, body string) {
	out.WriteByte('"')
	for i := 0; i < len(body); i++ {
		switch {
		case body[i] == '\\' && i+1 < len(body) && body[i+1] == '\'':
			out.WriteByte('\'')
			i++
		case body[i] == '\\' && i+1 < len(body):
			out.WriteString(body[i : i+2])
			i++
		case body[i] == '"':
			out.WriteString(`\"`)
		default:
			out.WriteByte(body[i])
		}
	}
	out.WriteByte('"')
}

// ParseArguments parses the text between the first '(' and the last
// ')' of rest as the elements of a JSON array:
//
//	("Red", "Blue", {"title": "Favourite colour?"})
//
// Every element must be a string, except that the last may be an
// object of named options. Strings may use single quotes, as in
// ('Red', 'Blue'). A trailing comma and comments are accepted.
// Empty parentheses yield no values.
func ParseArguments(rest string) (Arguments, error) {
	start := strings.IndexByte(rest, '(')
	end := strings.LastIndexByte(rest, ')')
	if start < 0 || end < start {
		return Arguments{}, fmt.Errorf("%w: expected a parenthesized list", ErrInvalidArguments)
	}
	inner := singleQuoted(quoteReplacer.Replace(rest[start+1 : end]))
	if strings.TrimSpace(inner) == "" {
		return Arguments{}, nil
	}

	var elements []json.RawMessage
	if err := json.Unmarshal(jsonc.ToJSON([]byte("["+inner+"]")), &elements); err != nil {
		return Arguments{}, fmt.Errorf("%w: %v", ErrInvalidArguments, err)
	}

	var arguments Arguments
	for position, element := range elements {
		element = bytes.TrimSpace(element)
		if len(element) > 0 && element[0] == '"' {
			var value string
			if err := json.Unmarshal(element, &value); err != nil {
				return Arguments{}, fmt.Errorf("%w: argument %d: %v", ErrInvalidArguments, position+1, err)
			}
			arguments.Values = append(arguments.Values, value)
			continue
		}
		if position != len(elements)-1 {
			return Arguments{}, fmt.Errorf("%w: argument %d is not a string", ErrInvalidArguments, position+1)
		}
		var named map[string]json.RawMessage
		if len(element) == 0 || element[0] != '{' || json.Unmarshal(element, &named) != nil {
			return Arguments{}, fmt.Errorf("%w: last argument is neither a string nor an object", ErrInvalidArguments)
		}
		if raw, ok := named["title"]; ok {
			raw = bytes.TrimSpace(raw)
			if len(raw) == 0 || raw[0] != '"' || json.Unmarshal(raw, &arguments.Title) != nil {
				return Arguments{}, fmt.Errorf("%w: title must be a string", ErrInvalidArguments)
			}
		}
	}
	return arguments, nil
}
