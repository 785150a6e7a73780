package domain

import (
	"time"

	"github.com/google/uuid"
)

// Типы событий, рассылаемых подписчикам комнаты
const (
	EventMessageCreated  = "message.created"
	EventMessageUpdated  = "message.updated"
	EventMessageDeleted  = "message.deleted"
	EventReactionChanged = "reaction.changed"
	EventPresenceChanged = "presence.changed"
	EventTyping          = "typing"
	EventReadUpdated     = "read.updated"
	EventRoomClosed      = "room.closed"
)

const (
	PresenceJoined = "JOINED"
	PresenceLeft   = "LEFT"
)

type RoomEvent struct {
	Type    string      `json:"type"`
	RoomID  uuid.UUID   `json:"room_id"`
	Payload interface{} `json:"payload,omitempty"`
}

type PresencePayload struct {
	Type        string    `json:"type"`
	UserID      uuid.UUID `json:"user_id"`
	OnlineCount int       `json:"online_count"`
}

type TypingPayload struct {
	UserID   uuid.UUID `json:"user_id"`
	IsTyping bool      `json:"is_typing"`
}

type ReactionPayload struct {
	MessageID uuid.UUID `json:"message_id"`
	UserID    uuid.UUID `json:"user_id"`
	Emoji     string    `json:"emoji"`
	Removed   bool      `json:"removed"`
}

type ReadUpdatedPayload struct {
	UserID    uuid.UUID  `json:"user_id"`
	MessageID *uuid.UUID `json:"message_id,omitempty"`
	ReadAt    time.Time  `json:"read_at"`
}

type RoomClosedPayload struct {
	ClosedByUserID uuid.UUID `json:"closed_by_user_id"`
}
