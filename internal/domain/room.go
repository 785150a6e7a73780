package domain

import (
	"time"

	"github.com/google/uuid"
)

type ChatRoom struct {
	ID                 uuid.UUID  `json:"id"`
	Name               string     `json:"name"`
	Description        *string    `json:"description,omitempty"`
	RoomType           string     `json:"room_type"`
	AvatarURL          *string    `json:"avatar_url,omitempty"`
	MaxMembers         int        `json:"max_members"`
	IsLocked           bool       `json:"is_locked"`
	IsPrivate          bool       `json:"is_private"`
	RoomCode           *string    `json:"room_code,omitempty"`
	Status             string     `json:"status"`
	LastMessageAt      *time.Time `json:"last_message_at,omitempty"`
	LastMessagePreview *string    `json:"last_message_preview,omitempty"`
	TotalMessages      int64      `json:"total_messages"`
	CreatedByUserID    uuid.UUID  `json:"created_by_user_id"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

type ChatParticipant struct {
	ID             uuid.UUID  `json:"id"`
	RoomID         uuid.UUID  `json:"room_id"`
	UserID         uuid.UUID  `json:"user_id"`
	Role           string     `json:"role"`
	Status         string     `json:"status"`
	JoinedAt       time.Time  `json:"joined_at"`
	LastSeenAt     *time.Time `json:"last_seen_at,omitempty"`
	UnreadCount    int        `json:"unread_count"`
	IsMuted        bool       `json:"is_muted"`
	IsPinned       bool       `json:"is_pinned"`
	CustomNickname *string    `json:"custom_nickname,omitempty"`
}

const (
	RoomTypeDirect       = "direct"
	RoomTypeGroup        = "group"
	RoomTypeSupport      = "support"
	RoomTypeTournament   = "tournament"
	RoomTypeBooking      = "booking"
	RoomTypeAnnouncement = "announcement"
)

const (
	RoomStatusActive   = "active"
	RoomStatusArchived = "archived"
	RoomStatusDeleted  = "deleted"
)

const (
	ParticipantRoleOwner     = "owner"
	ParticipantRoleAdmin     = "admin"
	ParticipantRoleModerator = "moderator"
	ParticipantRoleMember    = "member"
)

const (
	ParticipantStatusActive  = "active"
	ParticipantStatusLeft    = "left"
	ParticipantStatusRemoved = "removed"
)

var roleRank = map[string]int{
	ParticipantRoleOwner:     4,
	ParticipantRoleAdmin:     3,
	ParticipantRoleModerator: 2,
	ParticipantRoleMember:    1,
}

// RoleRank возвращает порядковый ранг роли для сравнения прав (0 для неизвестной роли)
func RoleRank(role string) int {
	return roleRank[role]
}

func ValidRoomType(roomType string) bool {
	switch roomType {
	case RoomTypeDirect, RoomTypeGroup, RoomTypeSupport, RoomTypeTournament, RoomTypeBooking, RoomTypeAnnouncement:
		return true
	}
	return false
}
