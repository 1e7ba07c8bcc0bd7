// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package matrixchat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/bureau-foundation/pollmaker/lib/chat"
	"github.com/bureau-foundation/pollmaker/lib/ref"
	"github.com/bureau-foundation/pollmaker/messaging"
)

// DefaultAdministratorLevel is the power level at which a room member
// may stop or delete polls they did not create.
const DefaultAdministratorLevel = 100

// Config configures an Adapter.
type Config struct {
	Session messaging.Session

	// Operators are treated as administrators in every room.
	Operators []ref.UserID

	// AdministratorLevel overrides DefaultAdministratorLevel when
	// positive.
	AdministratorLevel int

	Logger *slog.Logger
}

type memberKey struct {
	room ref.RoomID
	user ref.UserID
}

// reaction is one entry of the reaction index.
type reaction struct {
	room   ref.RoomID
	target ref.EventID
	key    string
	sender ref.UserID
}

// Adapter connects the poll bot to a Matrix homeserver.
type Adapter struct {
	session            messaging.Session
	self               ref.UserID
	operators          map[ref.UserID]bool
	administratorLevel int
	logger             *slog.Logger

	mu          sync.Mutex
	memberNames map[memberKey]string
	powerLevels map[ref.RoomID]messaging.PowerLevelsContent
	reactions   map[ref.EventID]reaction
}

// New creates an Adapter for the session's account.
func New(config Config) (*Adapter, error) {
	if config.Session == nil {
		return nil, errors.New("matrixchat: Session is required")
	}
	self := config.Session.UserID()
	if self.IsZero() {
		return nil, errors.New("matrixchat: session has no user ID")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	level := config.AdministratorLevel
	if level <= 0 {
		level = DefaultAdministratorLevel
	}
	operators := make(map[ref.UserID]bool, len(config.Operators))
	for _, operator := range config.Operators {
		operators[operator] = true
	}
	return &Adapter{
		session:            config.Session,
		self:               self,
		operators:          operators,
		administratorLevel: level,
		logger:             logger,
		memberNames:        make(map[memberKey]string),
		powerLevels:        make(map[ref.RoomID]messaging.PowerLevelsContent),
		reactions:          make(map[ref.EventID]reaction),
	}, nil
}

// UserID returns the bot's own account.
func (a *Adapter) UserID() ref.UserID { return a.self }

var (
	_ chat.Client   = (*Adapter)(nil)
	_ chat.Resolver = (*Adapter)(nil)
)

// Self returns the bot as a member of channel.
func (a *Adapter) Self(ctx context.Context, channel string) (chat.Entity, error) {
	roomID, err := ref.ParseRoomID(channel)
	if err != nil {
		return nil, err
	}
	return chat.Member{
		UserID:  a.self.String(),
		Channel: channel,
		Name:    a.memberName(ctx, roomID, a.self),
	}, nil
}

// Send posts text to channel. Emoji shortcodes are expanded and an
// HTML rendering is attached.
func (a *Adapter) Send(ctx context.Context, channel, text string) (*chat.Message, error) {
	roomID, err := ref.ParseRoomID(channel)
	if err != nil {
		return nil, err
	}
	eventID, err := a.session.SendMessage(ctx, roomID, renderMessage(text))
	if err != nil {
		return nil, err
	}
	return &chat.Message{
		ID:      eventID.String(),
		Channel: channel,
		Sender:  a.self.String(),
		Content: text,
	}, nil
}

// Edit replaces the content of one of the bot's messages with an
// m.replace edit. The returned message keeps the original ID, which is
// what reactions and redactions keep referring to.
func (a *Adapter) Edit(ctx context.Context, message *chat.Message, text string) (*chat.Message, error) {
	roomID, eventID, err := messageIDs(message)
	if err != nil {
		return nil, err
	}
	if _, err := a.session.SendMessage(ctx, roomID, messaging.NewEdit(eventID, renderMessage(text))); err != nil {
		return nil, err
	}
	edited := *message
	edited.Content = text
	return &edited, nil
}

// React annotates message with key.
func (a *Adapter) React(ctx context.Context, message *chat.Message, key string) error {
	roomID, eventID, err := messageIDs(message)
	if err != nil {
		return err
	}
	_, err = a.session.SendReaction(ctx, roomID, eventID, key)
	return err
}

// IsAdministrator reports whether user is an operator or holds at
// least the administrator power level in channel.
func (a *Adapter) IsAdministrator(ctx context.Context, channel string, user chat.Entity) (bool, error) {
	if user == nil || !user.Ref().IsPerson() {
		return false, nil
	}
	userID, err := ref.ParseUserID(user.Ref().ID)
	if err != nil {
		return false, nil
	}
	if a.operators[userID] {
		return true, nil
	}
	roomID, err := ref.ParseRoomID(channel)
	if err != nil {
		return false, err
	}
	levels, err := a.roomPowerLevels(ctx, roomID)
	if err != nil {
		return false, err
	}
	return levels.UserLevel(userID) >= a.administratorLevel, nil
}

func (a *Adapter) roomPowerLevels(ctx context.Context, roomID ref.RoomID) (messaging.PowerLevelsContent, error) {
	a.mu.Lock()
	levels, cached := a.powerLevels[roomID]
	a.mu.Unlock()
	if cached {
		return levels, nil
	}

	levels, err := messaging.GetState[messaging.PowerLevelsContent](ctx, a.session, roomID, ref.EventTypePowerLevels, "")
	if err != nil && !messaging.IsNotFound(err) {
		return messaging.PowerLevelsContent{}, fmt.Errorf("reading power levels of %s: %w", roomID, err)
	}
	a.mu.Lock()
	a.powerLevels[roomID] = levels
	a.mu.Unlock()
	return levels, nil
}

// memberName returns the room display name of user, or "" when none
// is known. Lookup failures are logged, not returned: a missing name
// only affects how a voter is shown.
func (a *Adapter) memberName(ctx context.Context, roomID ref.RoomID, userID ref.UserID) string {
	key := memberKey{room: roomID, user: userID}
	a.mu.Lock()
	name, cached := a.memberNames[key]
	a.mu.Unlock()
	if cached {
		return name
	}

	member, err := messaging.GetState[messaging.RoomMemberContent](ctx, a.session, roomID, ref.EventTypeMember, userID.String())
	if err != nil {
		if !messaging.IsNotFound(err) {
			a.logger.Warn("member name lookup failed", "room_id", roomID, "user_id", userID, "error", err)
			return ""
		}
	}
	a.mu.Lock()
	a.memberNames[key] = member.DisplayName
	a.mu.Unlock()
	return member.DisplayName
}

func messageIDs(message *chat.Message) (ref.RoomID, ref.EventID, error) {
	if message == nil {
		return ref.RoomID{}, ref.EventID{}, errors.New("matrixchat: nil message")
	}
	roomID, err := ref.ParseRoomID(message.Channel)
	if err != nil {
		return ref.RoomID{}, ref.EventID{}, err
	}
	eventID, err := ref.ParseEventID(message.ID)
	if err != nil {
		return ref.RoomID{}, ref.EventID{}, err
	}
	return roomID, eventID, nil
}
