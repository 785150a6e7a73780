package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"chat_service/internal/config"
	"chat_service/internal/domain"
	"chat_service/internal/repository"
	apperrors "chat_service/pkg/errors"
	"chat_service/pkg/logger"
)

// EventPublisher - абстракция над realtime-хабом; сервисы публикуют события комнаты,
// не зная о подписчиках
type EventPublisher interface {
	Publish(event *domain.RoomEvent)
}

// PresenceChecker сообщает, подключен ли пользователь к комнате прямо сейчас
type PresenceChecker interface {
	IsOnline(roomID, userID uuid.UUID) bool
}

type CreateRoomInput struct {
	Name        string      `json:"name"`
	Description *string     `json:"description,omitempty"`
	RoomType    string      `json:"room_type"`
	AvatarURL   *string     `json:"avatar_url,omitempty"`
	MaxMembers  int         `json:"max_members"`
	IsPrivate   bool        `json:"is_private"`
	RoomCode    *string     `json:"room_code,omitempty"`
	InviteeIDs  []uuid.UUID `json:"invitee_ids,omitempty"`
}

type RoomService interface {
	CreateRoom(ctx context.Context, input CreateRoomInput, creatorID uuid.UUID) (*domain.ChatRoom, error)
	GetOrCreateDirectRoom(ctx context.Context, userA, userB uuid.UUID) (*domain.ChatRoom, error)
	GetByID(ctx context.Context, roomID uuid.UUID) (*domain.ChatRoom, error)
	ListRooms(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.ChatRoom, error)
	GetParticipants(ctx context.Context, roomID, userID uuid.UUID) ([]*domain.ChatParticipant, error)
	GetActiveParticipant(ctx context.Context, roomID, userID uuid.UUID) (*domain.ChatParticipant, error)
	AddParticipant(ctx context.Context, roomID, userID, actorID uuid.UUID) (*domain.ChatParticipant, error)
	RemoveParticipant(ctx context.Context, roomID, userID, actorID uuid.UUID) error
	UpdateRole(ctx context.Context, roomID, userID uuid.UUID, role string, actorID uuid.UUID) error
	LeaveRoom(ctx context.Context, roomID, userID uuid.UUID) error
	DeleteRoom(ctx context.Context, roomID, actorID uuid.UUID) error
	UpdateParticipantSettings(ctx context.Context, roomID, userID uuid.UUID, isMuted, isPinned *bool, nickname *string) error
}

type roomService struct {
	roomRepo  repository.RoomRepository
	publisher EventPublisher
	cfg       *config.Config
	log       logger.Logger
}

func NewRoomService(roomRepo repository.RoomRepository, publisher EventPublisher, cfg *config.Config, log logger.Logger) RoomService {
	return &roomService{
		roomRepo:  roomRepo,
		publisher: publisher,
		cfg:       cfg,
		log:       log,
	}
}

// requireRole - единая проверка прав: участник должен быть активным и иметь роль не ниже minRole
func requireRole(participant *domain.ChatParticipant, minRole string) error {
	if participant == nil || participant.Status != domain.ParticipantStatusActive {
		return apperrors.ErrNotAMember
	}
	if domain.RoleRank(participant.Role) < domain.RoleRank(minRole) {
		return apperrors.ErrPermissionDenied
	}
	return nil
}

func (s *roomService) activeParticipant(ctx context.Context, roomID, userID uuid.UUID) (*domain.ChatParticipant, error) {
	participant, err := s.roomRepo.GetParticipant(ctx, roomID, userID)
	if err != nil {
		return nil, apperrors.ErrNotAMember
	}
	if participant.Status != domain.ParticipantStatusActive {
		return nil, apperrors.ErrNotAMember
	}
	return participant, nil
}

func (s *roomService) CreateRoom(ctx context.Context, input CreateRoomInput, creatorID uuid.UUID) (*domain.ChatRoom, error) {
	if !domain.ValidRoomType(input.RoomType) {
		return nil, fmt.Errorf("%w: unknown room type %q", apperrors.ErrValidation, input.RoomType)
	}

	if input.RoomType == domain.RoomTypeDirect {
		if len(input.InviteeIDs) != 1 {
			return nil, fmt.Errorf("%w: direct room requires exactly one invitee", apperrors.ErrValidation)
		}
		return s.GetOrCreateDirectRoom(ctx, creatorID, input.InviteeIDs[0])
	}

	if input.Name == "" {
		return nil, fmt.Errorf("%w: room name is required", apperrors.ErrValidation)
	}

	maxMembers := input.MaxMembers
	if maxMembers <= 0 {
		maxMembers = s.cfg.Chat.DefaultMaxMembers
	}

	room := &domain.ChatRoom{
		ID:              uuid.New(),
		Name:            input.Name,
		Description:     input.Description,
		RoomType:        input.RoomType,
		AvatarURL:       input.AvatarURL,
		MaxMembers:      maxMembers,
		IsPrivate:       input.IsPrivate,
		RoomCode:        input.RoomCode,
		Status:          domain.RoomStatusActive,
		CreatedByUserID: creatorID,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}

	if err := s.roomRepo.Create(ctx, room); err != nil {
		return nil, err
	}

	if err := s.insertParticipant(ctx, room.ID, creatorID, domain.ParticipantRoleOwner); err != nil {
		return nil, err
	}

	for _, inviteeID := range input.InviteeIDs {
		if inviteeID == creatorID {
			continue
		}
		if err := s.insertParticipant(ctx, room.ID, inviteeID, domain.ParticipantRoleMember); err != nil {
			s.log.Warn("Failed to add invitee", "room_id", room.ID, "user_id", inviteeID, "error", err)
		}
	}

	return room, nil
}

func (s *roomService) GetOrCreateDirectRoom(ctx context.Context, userA, userB uuid.UUID) (*domain.ChatRoom, error) {
	if userA == userB {
		return nil, fmt.Errorf("%w: direct room requires two distinct users", apperrors.ErrValidation)
	}

	// Дедупликация по неупорядоченной паре пользователей
	existing, err := s.roomRepo.FindDirectRoom(ctx, userA, userB)
	if err == nil {
		return existing, nil
	}

	room := &domain.ChatRoom{
		ID:              uuid.New(),
		Name:            "",
		RoomType:        domain.RoomTypeDirect,
		MaxMembers:      2,
		IsPrivate:       true,
		Status:          domain.RoomStatusActive,
		CreatedByUserID: userA,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}

	if err := s.roomRepo.Create(ctx, room); err != nil {
		return nil, err
	}

	// В direct-комнате оба участника равноправные владельцы
	if err := s.insertParticipant(ctx, room.ID, userA, domain.ParticipantRoleOwner); err != nil {
		return nil, err
	}
	if err := s.insertParticipant(ctx, room.ID, userB, domain.ParticipantRoleOwner); err != nil {
		return nil, err
	}

	return room, nil
}

func (s *roomService) insertParticipant(ctx context.Context, roomID, userID uuid.UUID, role string) error {
	participant := &domain.ChatParticipant{
		ID:       uuid.New(),
		RoomID:   roomID,
		UserID:   userID,
		Role:     role,
		Status:   domain.ParticipantStatusActive,
		JoinedAt: time.Now(),
	}
	return s.roomRepo.UpsertParticipant(ctx, participant)
}

func (s *roomService) GetByID(ctx context.Context, roomID uuid.UUID) (*domain.ChatRoom, error) {
	return s.roomRepo.GetByID(ctx, roomID)
}

func (s *roomService) ListRooms(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.ChatRoom, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.roomRepo.ListByUser(ctx, userID, limit, offset)
}

func (s *roomService) GetParticipants(ctx context.Context, roomID, userID uuid.UUID) ([]*domain.ChatParticipant, error) {
	if _, err := s.activeParticipant(ctx, roomID, userID); err != nil {
		return nil, err
	}
	return s.roomRepo.GetParticipantsByRoom(ctx, roomID)
}

func (s *roomService) GetActiveParticipant(ctx context.Context, roomID, userID uuid.UUID) (*domain.ChatParticipant, error) {
	return s.activeParticipant(ctx, roomID, userID)
}

func (s *roomService) AddParticipant(ctx context.Context, roomID, userID, actorID uuid.UUID) (*domain.ChatParticipant, error) {
	room, err := s.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return nil, err
	}

	actor, err := s.activeParticipant(ctx, roomID, actorID)
	if err != nil {
		return nil, err
	}
	if err := requireRole(actor, domain.ParticipantRoleModerator); err != nil {
		return nil, err
	}

	existing, err := s.roomRepo.GetParticipant(ctx, roomID, userID)
	if err == nil && existing.Status == domain.ParticipantStatusActive {
		return nil, apperrors.ErrAlreadyMember
	}

	count, err := s.roomRepo.CountActiveParticipants(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if count >= room.MaxMembers {
		return nil, apperrors.ErrCapacityExceeded
	}

	participant := &domain.ChatParticipant{
		ID:       uuid.New(),
		RoomID:   roomID,
		UserID:   userID,
		Role:     domain.ParticipantRoleMember,
		Status:   domain.ParticipantStatusActive,
		JoinedAt: time.Now(),
	}
	if err := s.roomRepo.UpsertParticipant(ctx, participant); err != nil {
		return nil, err
	}

	return participant, nil
}

func (s *roomService) RemoveParticipant(ctx context.Context, roomID, userID, actorID uuid.UUID) error {
	// Самостоятельный выход идет через LeaveRoom и не требует проверки ролей
	if userID == actorID {
		return s.LeaveRoom(ctx, roomID, userID)
	}

	actor, err := s.activeParticipant(ctx, roomID, actorID)
	if err != nil {
		return err
	}
	if err := requireRole(actor, domain.ParticipantRoleModerator); err != nil {
		return err
	}

	target, err := s.activeParticipant(ctx, roomID, userID)
	if err != nil {
		return err
	}
	if domain.RoleRank(actor.Role) <= domain.RoleRank(target.Role) {
		return apperrors.ErrPermissionDenied
	}

	return s.roomRepo.UpdateParticipantStatus(ctx, roomID, userID, domain.ParticipantStatusRemoved)
}

func (s *roomService) UpdateRole(ctx context.Context, roomID, userID uuid.UUID, role string, actorID uuid.UUID) error {
	if domain.RoleRank(role) == 0 || role == domain.ParticipantRoleOwner {
		return fmt.Errorf("%w: invalid role %q", apperrors.ErrValidation, role)
	}

	actor, err := s.activeParticipant(ctx, roomID, actorID)
	if err != nil {
		return err
	}
	if err := requireRole(actor, domain.ParticipantRoleAdmin); err != nil {
		return err
	}

	target, err := s.activeParticipant(ctx, roomID, userID)
	if err != nil {
		return err
	}
	if domain.RoleRank(actor.Role) <= domain.RoleRank(target.Role) {
		return apperrors.ErrPermissionDenied
	}
	if domain.RoleRank(actor.Role) <= domain.RoleRank(role) {
		return apperrors.ErrPermissionDenied
	}

	return s.roomRepo.UpdateParticipantRole(ctx, roomID, userID, role)
}

// LeaveRoom переводит участника в статус left. Если уходит владелец,
// владение получает старший по роли среди оставшихся активных (при равных
// ролях - раньше вступивший); преемником может стать и рядовой участник,
// чтобы комната не оставалась без владельца. Комната без активных
// участников архивируется.
func (s *roomService) LeaveRoom(ctx context.Context, roomID, userID uuid.UUID) error {
	participant, err := s.activeParticipant(ctx, roomID, userID)
	if err != nil {
		return err
	}

	if err := s.roomRepo.UpdateParticipantStatus(ctx, roomID, userID, domain.ParticipantStatusLeft); err != nil {
		return err
	}

	if participant.Role != domain.ParticipantRoleOwner {
		return nil
	}

	// Владелец ушел: передаем владение старшему по роли и стажу, иначе архивируем
	remaining, err := s.roomRepo.GetParticipantsByRoom(ctx, roomID)
	if err != nil {
		return err
	}

	var successor *domain.ChatParticipant
	for _, p := range remaining {
		if p.UserID == userID {
			continue
		}
		if successor == nil {
			successor = p
			continue
		}
		if domain.RoleRank(p.Role) > domain.RoleRank(successor.Role) {
			successor = p
		} else if domain.RoleRank(p.Role) == domain.RoleRank(successor.Role) && p.JoinedAt.Before(successor.JoinedAt) {
			successor = p
		}
	}

	if successor == nil {
		return s.roomRepo.UpdateStatus(ctx, roomID, domain.RoomStatusArchived)
	}

	if err := s.roomRepo.UpdateParticipantRole(ctx, roomID, successor.UserID, domain.ParticipantRoleOwner); err != nil {
		return err
	}
	s.log.Info("Room ownership transferred", "room_id", roomID, "new_owner", successor.UserID)
	return nil
}

func (s *roomService) DeleteRoom(ctx context.Context, roomID, actorID uuid.UUID) error {
	actor, err := s.activeParticipant(ctx, roomID, actorID)
	if err != nil {
		return err
	}
	if err := requireRole(actor, domain.ParticipantRoleOwner); err != nil {
		return err
	}

	if err := s.roomRepo.UpdateStatus(ctx, roomID, domain.RoomStatusDeleted); err != nil {
		return err
	}

	s.publisher.Publish(&domain.RoomEvent{
		Type:    domain.EventRoomClosed,
		RoomID:  roomID,
		Payload: &domain.RoomClosedPayload{ClosedByUserID: actorID},
	})

	return nil
}

func (s *roomService) UpdateParticipantSettings(ctx context.Context, roomID, userID uuid.UUID, isMuted, isPinned *bool, nickname *string) error {
	participant, err := s.activeParticipant(ctx, roomID, userID)
	if err != nil {
		return err
	}

	if isMuted != nil {
		participant.IsMuted = *isMuted
	}
	if isPinned != nil {
		participant.IsPinned = *isPinned
	}
	if nickname != nil {
		participant.CustomNickname = nickname
	}

	return s.roomRepo.UpdateParticipantSettings(ctx, participant)
}
