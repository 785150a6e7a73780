package domain

import (
	"time"

	"github.com/google/uuid"
)

type ChatMessage struct {
	ID               uuid.UUID              `json:"id"`
	RoomID           uuid.UUID              `json:"room_id"`
	SenderID         uuid.UUID              `json:"sender_id"`
	MessageType      string                 `json:"message_type"`
	Content          string                 `json:"content"`
	SentAt           time.Time              `json:"sent_at"`
	EditedAt         *time.Time             `json:"edited_at,omitempty"`
	IsEdited         bool                   `json:"is_edited"`
	IsDeleted        bool                   `json:"is_deleted"`
	IsPinned         bool                   `json:"is_pinned"`
	ReadCount        int                    `json:"read_count"`
	FileURL          *string                `json:"file_url,omitempty"`
	FileName         *string                `json:"file_name,omitempty"`
	FileSize         *int64                 `json:"file_size,omitempty"`
	FileType         *string                `json:"file_type,omitempty"`
	ThumbnailURL     *string                `json:"thumbnail_url,omitempty"`
	Duration         *int                   `json:"duration,omitempty"`
	ParentMessageID  *uuid.UUID             `json:"parent_message_id,omitempty"`
	IsForwarded      bool                   `json:"is_forwarded"`
	MentionedUserIDs []uuid.UUID            `json:"mentioned_user_ids,omitempty"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
}

type MessageReaction struct {
	MessageID uuid.UUID `json:"message_id"`
	UserID    uuid.UUID `json:"user_id"`
	Emoji     string    `json:"emoji"`
	ReactedAt time.Time `json:"reacted_at"`
}

const (
	MessageTypeText     = "text"
	MessageTypeImage    = "image"
	MessageTypeVideo    = "video"
	MessageTypeAudio    = "audio"
	MessageTypeFile     = "file"
	MessageTypeLocation = "location"
	MessageTypeSticker  = "sticker"
	MessageTypeSystem   = "system"
	MessageTypeLink     = "link"
	MessageTypeContact  = "contact"
)

// DeletedMessageContent подставляется вместо содержимого удаленного сообщения
const DeletedMessageContent = "message deleted"

func ValidMessageType(messageType string) bool {
	switch messageType {
	case MessageTypeText, MessageTypeImage, MessageTypeVideo, MessageTypeAudio,
		MessageTypeFile, MessageTypeLocation, MessageTypeSticker, MessageTypeSystem,
		MessageTypeLink, MessageTypeContact:
		return true
	}
	return false
}
