// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package matrixchat

import (
	"bytes"
	"strings"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/bureau-foundation/pollmaker/messaging"
)

// shortcodes maps the emoji shortcodes used in bot replies to the
// characters Matrix clients display. Matrix has no server-side
// shortcode expansion.
var shortcodes = strings.NewReplacer(
	":question:", "\u2753",
	":angry:", "\U0001F620",
	":exclamation:", "\u2757",
	":bulb:", "\U0001F4A1",
	":bread:", "\U0001F35E",
	":frowning:", "\U0001F626",
)

// ExpandShortcodes replaces known emoji shortcodes with their emoji.
func ExpandShortcodes(text string) string {
	return shortcodes.Replace(text)
}

var (
	markdownInstance goldmark.Markdown
	markdownOnce     sync.Once
)

// getMarkdown returns the shared renderer. Hard wraps keep the
// one-option-per-line layout of announcements and results; raw HTML in
// user-supplied option text is escaped, never passed through.
func getMarkdown() goldmark.Markdown {
	markdownOnce.Do(func() {
		markdownInstance = goldmark.New(
			goldmark.WithExtensions(
				extension.Strikethrough,
				extension.Linkify,
			),
			goldmark.WithRendererOptions(html.WithHardWraps()),
		)
	})
	return markdownInstance
}

// renderMessage builds the m.room.message content for text. The
// plain body is always sent; the HTML rendering is attached when
// conversion succeeds.
func renderMessage(text string) messaging.MessageContent {
	body := ExpandShortcodes(text)
	var buffer bytes.Buffer
	if err := getMarkdown().Convert([]byte(body), &buffer); err != nil {
		return messaging.NewTextMessage(body)
	}
	return messaging.NewHTMLMessage(body, strings.TrimSpace(buffer.String()))
}
