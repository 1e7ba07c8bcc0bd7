// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package pollcache

import (
	"context"
	"fmt"

	"github.com/bureau-foundation/pollmaker/lib/chat"
)

// Offline resolves references without contacting the platform: each
// reference becomes the matching entity variant carrying only the
// stored identifiers. Display names fall back to raw IDs.
type Offline struct{}

func (Offline) Resolve(_ context.Context, reference chat.Ref) (chat.Entity, error) {
	switch reference.Kind {
	case chat.KindChannel:
		return chat.Channel{ID: reference.ID}, nil
	case chat.KindMessage:
		return &chat.Message{ID: reference.ID, Channel: reference.Channel}, nil
	case chat.KindMember:
		return chat.Member{UserID: reference.ID, Channel: reference.Channel}, nil
	case chat.KindUser:
		return chat.User{ID: reference.ID}, nil
	}
	return nil, fmt.Errorf("unknown reference kind %q", reference.Kind)
}
