package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"chat_service/internal/domain"
	"chat_service/internal/repository"
	apperrors "chat_service/pkg/errors"
	"chat_service/pkg/logger"
)

type ReceiptService interface {
	MarkRoomAsRead(ctx context.Context, roomID, userID uuid.UUID) error
	MarkMessageAsRead(ctx context.Context, messageID, userID uuid.UUID) error
}

type receiptService struct {
	messageRepo repository.MessageRepository
	roomRepo    repository.RoomRepository
	publisher   EventPublisher
	log         logger.Logger
}

func NewReceiptService(messageRepo repository.MessageRepository, roomRepo repository.RoomRepository, publisher EventPublisher, log logger.Logger) ReceiptService {
	return &receiptService{
		messageRepo: messageRepo,
		roomRepo:    roomRepo,
		publisher:   publisher,
		log:         log,
	}
}

func (s *receiptService) MarkRoomAsRead(ctx context.Context, roomID, userID uuid.UUID) error {
	participant, err := s.roomRepo.GetParticipant(ctx, roomID, userID)
	if err != nil || participant.Status != domain.ParticipantStatusActive {
		return apperrors.ErrNotAMember
	}

	now := time.Now()
	if err := s.roomRepo.ResetUnread(ctx, roomID, userID, now); err != nil {
		return err
	}

	s.publisher.Publish(&domain.RoomEvent{
		Type:   domain.EventReadUpdated,
		RoomID: roomID,
		Payload: &domain.ReadUpdatedPayload{
			UserID: userID,
			ReadAt: now,
		},
	})

	return nil
}

func (s *receiptService) MarkMessageAsRead(ctx context.Context, messageID, userID uuid.UUID) error {
	message, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return err
	}

	participant, err := s.roomRepo.GetParticipant(ctx, message.RoomID, userID)
	if err != nil || participant.Status != domain.ParticipantStatusActive {
		return apperrors.ErrNotAMember
	}

	now := time.Now()
	marked, err := s.messageRepo.MarkRead(ctx, messageID, userID, now)
	if err != nil {
		return err
	}
	if !marked {
		// Повторная отметка тем же читателем - no-op
		return nil
	}

	s.publisher.Publish(&domain.RoomEvent{
		Type:   domain.EventReadUpdated,
		RoomID: message.RoomID,
		Payload: &domain.ReadUpdatedPayload{
			UserID:    userID,
			MessageID: &messageID,
			ReadAt:    now,
		},
	})

	return nil
}
