// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package poll

import (
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

const (
	// MinOptions is the fewest options a poll may have.
	MinOptions = 2

	// MaxOptions is the most options a poll may have: one per glyph.
	MaxOptions = len(glyphs)
)

// glyphs are the reaction keys that vote for each option position:
// keycap digits 0-9 followed by regional indicator letters A-Z. The
// keycaps are written without the U+FE0F presentation selector; keys
// arriving with it are normalized before lookup.
var glyphs = [36]string{
	// Keycap digits: ASCII digit followed by U+20E3 COMBINING ENCLOSING KEYCAP.
	"0\u20e3", "1\u20e3", "2\u20e3", "3\u20e3", "4\u20e3",
	"5\u20e3", "6\u20e3", "7\u20e3", "8\u20e3", "9\u20e3",
	// Regional indicator symbols A through Z.
	"\U0001F1E6", "\U0001F1E7", "\U0001F1E8", "\U0001F1E9", "\U0001F1EA", "\U0001F1EB", "\U0001F1EC",
	"\U0001F1ED", "\U0001F1EE", "\U0001F1EF", "\U0001F1F0", "\U0001F1F1", "\U0001F1F2", "\U0001F1F3",
	"\U0001F1F4", "\U0001F1F5", "\U0001F1F6", "\U0001F1F7", "\U0001F1F8", "\U0001F1F9", "\U0001F1FA",
	"\U0001F1FB", "\U0001F1FC", "\U0001F1FD", "\U0001F1FE", "\U0001F1FF",
}

var glyphIndex = func() map[string]int {
	index := make(map[string]int, len(glyphs))
	for position, glyph := range glyphs {
		index[glyph] = position
	}
	return index
}()

// variationSelectors strips emoji and text presentation selectors,
// which clients add or omit inconsistently.
var variationSelectors = runes.Remove(runes.Predicate(func(r rune) bool {
	return r == '\uFE0F' || r == '\uFE0E'
}))

// Glyph returns the reaction key for an option position. Panics if
// position is outside [0, MaxOptions).
func Glyph(position int) string {
	return glyphs[position]
}

// GlyphIndex maps a reaction key to its option position. The second
// result is false for keys outside the glyph table.
func GlyphIndex(key string) (int, bool) {
	if position, ok := glyphIndex[key]; ok {
		return position, true
	}
	normalized, _, err := transform.String(variationSelectors, key)
	if err != nil {
		return 0, false
	}
	position, ok := glyphIndex[normalized]
	return position, ok
}
