package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"chat_service/internal/config"
	"chat_service/internal/domain"
	"chat_service/internal/repository"
	apperrors "chat_service/pkg/errors"
	"chat_service/pkg/logger"
)

type SendMessageInput struct {
	RoomID           uuid.UUID              `json:"room_id"`
	MessageType      string                 `json:"message_type"`
	Content          string                 `json:"content"`
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

type ChatService interface {
	SendMessage(ctx context.Context, input SendMessageInput, senderID uuid.UUID) (*domain.ChatMessage, error)
	GetMessages(ctx context.Context, roomID, userID uuid.UUID, limit, offset int) ([]*domain.ChatMessage, error)
	EditMessage(ctx context.Context, messageID, userID uuid.UUID, content string) (*domain.ChatMessage, error)
	DeleteMessage(ctx context.Context, messageID, userID uuid.UUID) error
	PinMessage(ctx context.Context, messageID, userID uuid.UUID) error
	UnpinMessage(ctx context.Context, messageID, userID uuid.UUID) error
	GetPinnedMessages(ctx context.Context, roomID, userID uuid.UUID) ([]*domain.ChatMessage, error)
	ReactToMessage(ctx context.Context, messageID, userID uuid.UUID, emoji string) error
	RemoveReaction(ctx context.Context, messageID, userID uuid.UUID, emoji string) error
	GetReactions(ctx context.Context, messageID, userID uuid.UUID) ([]*domain.MessageReaction, error)
	SearchMessages(ctx context.Context, roomID, userID uuid.UUID, term string, limit int) ([]*domain.ChatMessage, error)
	SendTypingIndicator(ctx context.Context, roomID, userID uuid.UUID, isTyping bool) error
}

type chatService struct {
	messageRepo      repository.MessageRepository
	roomRepo         repository.RoomRepository
	notificationRepo repository.NotificationRepository
	publisher        EventPublisher
	presence         PresenceChecker
	cfg              *config.Config
	log              logger.Logger
}

func NewChatService(
	messageRepo repository.MessageRepository,
	roomRepo repository.RoomRepository,
	notificationRepo repository.NotificationRepository,
	publisher EventPublisher,
	presence PresenceChecker,
	cfg *config.Config,
	log logger.Logger,
) ChatService {
	return &chatService{
		messageRepo:      messageRepo,
		roomRepo:         roomRepo,
		notificationRepo: notificationRepo,
		publisher:        publisher,
		presence:         presence,
		cfg:              cfg,
		log:              log,
	}
}

const previewMaxLen = 100

func messagePreview(message *domain.ChatMessage) string {
	if message.MessageType != domain.MessageTypeText {
		return "[" + message.MessageType + "]"
	}
	preview := message.Content
	if runes := []rune(preview); len(runes) > previewMaxLen {
		preview = string(runes[:previewMaxLen])
	}
	return preview
}

func (s *chatService) activeParticipant(ctx context.Context, roomID, userID uuid.UUID) (*domain.ChatParticipant, error) {
	participant, err := s.roomRepo.GetParticipant(ctx, roomID, userID)
	if err != nil {
		return nil, apperrors.ErrNotAMember
	}
	if participant.Status != domain.ParticipantStatusActive {
		return nil, apperrors.ErrNotAMember
	}
	return participant, nil
}

func (s *chatService) SendMessage(ctx context.Context, input SendMessageInput, senderID uuid.UUID) (*domain.ChatMessage, error) {
	if _, err := s.activeParticipant(ctx, input.RoomID, senderID); err != nil {
		return nil, err
	}

	if !domain.ValidMessageType(input.MessageType) {
		return nil, fmt.Errorf("%w: unknown message type %q", apperrors.ErrValidation, input.MessageType)
	}
	if input.MessageType == domain.MessageTypeText && strings.TrimSpace(input.Content) == "" {
		return nil, fmt.Errorf("%w: text message content must not be blank", apperrors.ErrValidation)
	}
	// Лимит в символах, не в байтах
	if utf8.RuneCountInString(input.Content) > s.cfg.Chat.MaxMessageLength {
		return nil, fmt.Errorf("%w: message exceeds %d characters", apperrors.ErrValidation, s.cfg.Chat.MaxMessageLength)
	}

	message := &domain.ChatMessage{
		ID:               uuid.New(),
		RoomID:           input.RoomID,
		SenderID:         senderID,
		MessageType:      input.MessageType,
		Content:          input.Content,
		SentAt:           time.Now(),
		FileURL:          input.FileURL,
		FileName:         input.FileName,
		FileSize:         input.FileSize,
		FileType:         input.FileType,
		ThumbnailURL:     input.ThumbnailURL,
		Duration:         input.Duration,
		ParentMessageID:  input.ParentMessageID,
		IsForwarded:      input.IsForwarded,
		MentionedUserIDs: input.MentionedUserIDs,
		Metadata:         input.Metadata,
	}

	if err := s.messageRepo.Create(ctx, message); err != nil {
		return nil, err
	}

	if err := s.roomRepo.BumpLastMessage(ctx, message.RoomID, message.SentAt, messagePreview(message)); err != nil {
		s.log.Warn("Failed to update room counters", "room_id", message.RoomID, "error", err)
	}
	if err := s.roomRepo.IncrementUnread(ctx, message.RoomID, senderID); err != nil {
		s.log.Warn("Failed to increment unread counters", "room_id", message.RoomID, "error", err)
	}

	s.publisher.Publish(&domain.RoomEvent{
		Type:    domain.EventMessageCreated,
		RoomID:  message.RoomID,
		Payload: message,
	})

	s.notifyOffline(message)

	return message, nil
}

// notifyOffline ставит уведомления для отключенных участников в очередь; fire-and-forget
func (s *chatService) notifyOffline(message *domain.ChatMessage) {
	participants, err := s.roomRepo.GetParticipantsByRoom(context.Background(), message.RoomID)
	if err != nil {
		s.log.Warn("Failed to load participants for notifications", "room_id", message.RoomID, "error", err)
		return
	}

	preview := messagePreview(message)
	for _, p := range participants {
		if p.UserID == message.SenderID || p.IsMuted {
			continue
		}
		if s.presence != nil && s.presence.IsOnline(message.RoomID, p.UserID) {
			continue
		}

		notification := &repository.Notification{
			UserID:    p.UserID,
			RoomID:    message.RoomID,
			MessageID: message.ID,
			SenderID:  message.SenderID,
			Preview:   preview,
			SentAt:    message.SentAt,
		}
		go func(n *repository.Notification) {
			if err := s.notificationRepo.Enqueue(context.Background(), n); err != nil {
				s.log.Warn("Failed to enqueue notification", "user_id", n.UserID, "error", err)
			}
		}(notification)
	}
}

func (s *chatService) GetMessages(ctx context.Context, roomID, userID uuid.UUID, limit, offset int) ([]*domain.ChatMessage, error) {
	if _, err := s.activeParticipant(ctx, roomID, userID); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = s.cfg.Chat.HistoryPageSize
	}
	return s.messageRepo.GetMessages(ctx, roomID, limit, offset)
}

func (s *chatService) EditMessage(ctx context.Context, messageID, userID uuid.UUID, content string) (*domain.ChatMessage, error) {
	message, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if message.IsDeleted {
		return nil, apperrors.ErrNotFound
	}
	if message.SenderID != userID {
		return nil, apperrors.ErrPermissionDenied
	}
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: message content must not be blank", apperrors.ErrValidation)
	}
	if utf8.RuneCountInString(content) > s.cfg.Chat.MaxMessageLength {
		return nil, fmt.Errorf("%w: message exceeds %d characters", apperrors.ErrValidation, s.cfg.Chat.MaxMessageLength)
	}

	message.Content = content
	if err := s.messageRepo.UpdateContent(ctx, message); err != nil {
		return nil, err
	}

	s.publisher.Publish(&domain.RoomEvent{
		Type:    domain.EventMessageUpdated,
		RoomID:  message.RoomID,
		Payload: message,
	})

	return message, nil
}

func (s *chatService) DeleteMessage(ctx context.Context, messageID, userID uuid.UUID) error {
	message, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if message.IsDeleted {
		// Повторное удаление - no-op
		return nil
	}

	if message.SenderID != userID {
		participant, err := s.activeParticipant(ctx, message.RoomID, userID)
		if err != nil {
			return err
		}
		if err := requireRole(participant, domain.ParticipantRoleModerator); err != nil {
			return err
		}
	}

	if err := s.messageRepo.Tombstone(ctx, messageID); err != nil {
		return err
	}

	s.publisher.Publish(&domain.RoomEvent{
		Type:   domain.EventMessageDeleted,
		RoomID: message.RoomID,
		Payload: map[string]interface{}{
			"message_id": messageID,
			"deleted_by": userID,
		},
	})

	return nil
}

func (s *chatService) setPinned(ctx context.Context, messageID, userID uuid.UUID, pinned bool) error {
	message, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if message.IsDeleted {
		return apperrors.ErrNotFound
	}

	participant, err := s.activeParticipant(ctx, message.RoomID, userID)
	if err != nil {
		return err
	}
	if err := requireRole(participant, domain.ParticipantRoleModerator); err != nil {
		return err
	}

	if err := s.messageRepo.SetPinned(ctx, messageID, pinned); err != nil {
		return err
	}

	message.IsPinned = pinned
	s.publisher.Publish(&domain.RoomEvent{
		Type:    domain.EventMessageUpdated,
		RoomID:  message.RoomID,
		Payload: message,
	})

	return nil
}

func (s *chatService) PinMessage(ctx context.Context, messageID, userID uuid.UUID) error {
	return s.setPinned(ctx, messageID, userID, true)
}

func (s *chatService) UnpinMessage(ctx context.Context, messageID, userID uuid.UUID) error {
	return s.setPinned(ctx, messageID, userID, false)
}

func (s *chatService) GetPinnedMessages(ctx context.Context, roomID, userID uuid.UUID) ([]*domain.ChatMessage, error) {
	if _, err := s.activeParticipant(ctx, roomID, userID); err != nil {
		return nil, err
	}
	return s.messageRepo.GetPinned(ctx, roomID)
}

func (s *chatService) ReactToMessage(ctx context.Context, messageID, userID uuid.UUID, emoji string) error {
	if emoji == "" {
		return fmt.Errorf("%w: emoji is required", apperrors.ErrValidation)
	}

	message, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if message.IsDeleted {
		return apperrors.ErrNotFound
	}
	if _, err := s.activeParticipant(ctx, message.RoomID, userID); err != nil {
		return err
	}

	added, err := s.messageRepo.AddReaction(ctx, &domain.MessageReaction{
		MessageID: messageID,
		UserID:    userID,
		Emoji:     emoji,
		ReactedAt: time.Now(),
	})
	if err != nil {
		return err
	}
	if !added {
		// Повторная реакция тем же emoji - идемпотентный no-op
		return nil
	}

	s.publisher.Publish(&domain.RoomEvent{
		Type:   domain.EventReactionChanged,
		RoomID: message.RoomID,
		Payload: &domain.ReactionPayload{
			MessageID: messageID,
			UserID:    userID,
			Emoji:     emoji,
		},
	})

	return nil
}

func (s *chatService) RemoveReaction(ctx context.Context, messageID, userID uuid.UUID, emoji string) error {
	message, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	if _, err := s.activeParticipant(ctx, message.RoomID, userID); err != nil {
		return err
	}

	removed, err := s.messageRepo.RemoveReaction(ctx, messageID, userID, emoji)
	if err != nil {
		return err
	}
	if !removed {
		return nil
	}

	s.publisher.Publish(&domain.RoomEvent{
		Type:   domain.EventReactionChanged,
		RoomID: message.RoomID,
		Payload: &domain.ReactionPayload{
			MessageID: messageID,
			UserID:    userID,
			Emoji:     emoji,
			Removed:   true,
		},
	})

	return nil
}

func (s *chatService) GetReactions(ctx context.Context, messageID, userID uuid.UUID) ([]*domain.MessageReaction, error) {
	message, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if _, err := s.activeParticipant(ctx, message.RoomID, userID); err != nil {
		return nil, err
	}
	return s.messageRepo.GetReactions(ctx, messageID)
}

func (s *chatService) SearchMessages(ctx context.Context, roomID, userID uuid.UUID, term string, limit int) ([]*domain.ChatMessage, error) {
	if _, err := s.activeParticipant(ctx, roomID, userID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(term) == "" {
		return nil, fmt.Errorf("%w: search term is required", apperrors.ErrValidation)
	}
	if limit <= 0 || limit > 100 {
		limit = s.cfg.Chat.HistoryPageSize
	}
	return s.messageRepo.Search(ctx, roomID, term, limit)
}

func (s *chatService) SendTypingIndicator(ctx context.Context, roomID, userID uuid.UUID, isTyping bool) error {
	if _, err := s.activeParticipant(ctx, roomID, userID); err != nil {
		return err
	}

	// Не персистится и не гарантируется: следующий индикатор перекроет потерянный
	s.publisher.Publish(&domain.RoomEvent{
		Type:   domain.EventTyping,
		RoomID: roomID,
		Payload: &domain.TypingPayload{
			UserID:   userID,
			IsTyping: isTyping,
		},
	})

	return nil
}
