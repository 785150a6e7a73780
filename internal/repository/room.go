package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"chat_service/internal/domain"
	apperrors "chat_service/pkg/errors"
	"chat_service/pkg/logger"
)

type RoomRepository interface {
	Create(ctx context.Context, room *domain.ChatRoom) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ChatRoom, error)
	FindDirectRoom(ctx context.Context, userA, userB uuid.UUID) (*domain.ChatRoom, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.ChatRoom, error)
	Update(ctx context.Context, room *domain.ChatRoom) error
	UpdateStatus(ctx context.Context, roomID uuid.UUID, status string) error
	BumpLastMessage(ctx context.Context, roomID uuid.UUID, at time.Time, preview string) error
	UpsertParticipant(ctx context.Context, participant *domain.ChatParticipant) error
	GetParticipant(ctx context.Context, roomID, userID uuid.UUID) (*domain.ChatParticipant, error)
	GetParticipantsByRoom(ctx context.Context, roomID uuid.UUID) ([]*domain.ChatParticipant, error)
	CountActiveParticipants(ctx context.Context, roomID uuid.UUID) (int, error)
	UpdateParticipantRole(ctx context.Context, roomID, userID uuid.UUID, role string) error
	UpdateParticipantStatus(ctx context.Context, roomID, userID uuid.UUID, status string) error
	UpdateParticipantSettings(ctx context.Context, participant *domain.ChatParticipant) error
	IncrementUnread(ctx context.Context, roomID, exceptUserID uuid.UUID) error
	ResetUnread(ctx context.Context, roomID, userID uuid.UUID, at time.Time) error
}

type roomRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewRoomRepository(db *pgxpool.Pool, log logger.Logger) RoomRepository {
	return &roomRepository{db: db, log: log}
}

const roomColumns = `id, name, description, room_type, avatar_url, max_members, is_locked,
	       is_private, room_code, status, last_message_at, last_message_preview,
	       total_messages, created_by_user_id, created_at, updated_at`

func (r *roomRepository) Create(ctx context.Context, room *domain.ChatRoom) error {
	query := `
		INSERT INTO chat_rooms (id, name, description, room_type, avatar_url, max_members,
		                        is_locked, is_private, room_code, status, total_messages,
		                        created_by_user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query,
		room.ID, room.Name, room.Description, room.RoomType, room.AvatarURL, room.MaxMembers,
		room.IsLocked, room.IsPrivate, room.RoomCode, room.Status, room.TotalMessages,
		room.CreatedByUserID, room.CreatedAt, room.UpdatedAt,
	).Scan(&room.CreatedAt, &room.UpdatedAt)

	if err != nil {
		r.log.Error("Failed to create room", "error", err)
		return err
	}

	return nil
}

func (r *roomRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.ChatRoom, error) {
	query := `
		SELECT ` + roomColumns + `
		FROM chat_rooms
		WHERE id = $1 AND status <> 'deleted'
	`

	room := &domain.ChatRoom{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&room.ID, &room.Name, &room.Description, &room.RoomType, &room.AvatarURL,
		&room.MaxMembers, &room.IsLocked, &room.IsPrivate, &room.RoomCode, &room.Status,
		&room.LastMessageAt, &room.LastMessagePreview, &room.TotalMessages,
		&room.CreatedByUserID, &room.CreatedAt, &room.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		r.log.Error("Failed to get room by ID", "error", err)
		return nil, err
	}

	return room, nil
}

func (r *roomRepository) FindDirectRoom(ctx context.Context, userA, userB uuid.UUID) (*domain.ChatRoom, error) {
	// Ищем direct-комнату, в которой состоят ровно эти два пользователя
	query := `
		SELECT ` + roomColumns + `
		FROM chat_rooms r
		WHERE r.room_type = 'direct'
		  AND r.status <> 'deleted'
		  AND EXISTS (SELECT 1 FROM chat_participants p WHERE p.room_id = r.id AND p.user_id = $1)
		  AND EXISTS (SELECT 1 FROM chat_participants p WHERE p.room_id = r.id AND p.user_id = $2)
		LIMIT 1
	`

	room := &domain.ChatRoom{}
	err := r.db.QueryRow(ctx, query, userA, userB).Scan(
		&room.ID, &room.Name, &room.Description, &room.RoomType, &room.AvatarURL,
		&room.MaxMembers, &room.IsLocked, &room.IsPrivate, &room.RoomCode, &room.Status,
		&room.LastMessageAt, &room.LastMessagePreview, &room.TotalMessages,
		&room.CreatedByUserID, &room.CreatedAt, &room.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		r.log.Error("Failed to find direct room", "error", err)
		return nil, err
	}

	return room, nil
}

func (r *roomRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.ChatRoom, error) {
	query := `
		SELECT ` + roomColumns + `
		FROM chat_rooms
		WHERE status <> 'deleted'
		  AND id IN (
			SELECT room_id FROM chat_participants
			WHERE user_id = $1 AND status = 'active'
		  )
		ORDER BY last_message_at DESC NULLS LAST, created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		r.log.Error("Failed to list rooms", "error", err)
		return nil, err
	}
	defer rows.Close()

	var rooms []*domain.ChatRoom
	for rows.Next() {
		room := &domain.ChatRoom{}
		err := rows.Scan(
			&room.ID, &room.Name, &room.Description, &room.RoomType, &room.AvatarURL,
			&room.MaxMembers, &room.IsLocked, &room.IsPrivate, &room.RoomCode, &room.Status,
			&room.LastMessageAt, &room.LastMessagePreview, &room.TotalMessages,
			&room.CreatedByUserID, &room.CreatedAt, &room.UpdatedAt,
		)
		if err != nil {
			r.log.Error("Failed to scan room", "error", err)
			return nil, err
		}
		rooms = append(rooms, room)
	}

	return rooms, nil
}

func (r *roomRepository) Update(ctx context.Context, room *domain.ChatRoom) error {
	query := `
		UPDATE chat_rooms
		SET name = $2, description = $3, avatar_url = $4, max_members = $5,
		    is_locked = $6, is_private = $7, updated_at = $8
		WHERE id = $1
		RETURNING updated_at
	`

	err := r.db.QueryRow(ctx, query,
		room.ID, room.Name, room.Description, room.AvatarURL, room.MaxMembers,
		room.IsLocked, room.IsPrivate, time.Now(),
	).Scan(&room.UpdatedAt)

	if err != nil {
		r.log.Error("Failed to update room", "error", err)
		return err
	}

	return nil
}

func (r *roomRepository) UpdateStatus(ctx context.Context, roomID uuid.UUID, status string) error {
	query := `UPDATE chat_rooms SET status = $2, updated_at = $3 WHERE id = $1`
	_, err := r.db.Exec(ctx, query, roomID, status, time.Now())
	if err != nil {
		r.log.Error("Failed to update room status", "error", err)
		return err
	}
	return nil
}

func (r *roomRepository) BumpLastMessage(ctx context.Context, roomID uuid.UUID, at time.Time, preview string) error {
	query := `
		UPDATE chat_rooms
		SET total_messages = total_messages + 1, last_message_at = $2,
		    last_message_preview = $3, updated_at = $2
		WHERE id = $1
	`
	_, err := r.db.Exec(ctx, query, roomID, at, preview)
	if err != nil {
		r.log.Error("Failed to bump last message", "error", err)
		return err
	}
	return nil
}

func (r *roomRepository) UpsertParticipant(ctx context.Context, participant *domain.ChatParticipant) error {
	// Уникальность (room_id, user_id): вернувшийся участник реактивируется вместо вставки второй строки
	query := `
		INSERT INTO chat_participants (id, room_id, user_id, role, status, joined_at,
		                               unread_count, is_muted, is_pinned, custom_nickname)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (room_id, user_id) DO UPDATE
		SET role = EXCLUDED.role, status = EXCLUDED.status, joined_at = EXCLUDED.joined_at,
		    unread_count = 0
	`

	_, err := r.db.Exec(ctx, query,
		participant.ID, participant.RoomID, participant.UserID, participant.Role,
		participant.Status, participant.JoinedAt, participant.UnreadCount,
		participant.IsMuted, participant.IsPinned, participant.CustomNickname,
	)

	if err != nil {
		r.log.Error("Failed to upsert participant", "error", err)
		return err
	}

	return nil
}

const participantColumns = `id, room_id, user_id, role, status, joined_at, last_seen_at,
	       unread_count, is_muted, is_pinned, custom_nickname`

func (r *roomRepository) GetParticipant(ctx context.Context, roomID, userID uuid.UUID) (*domain.ChatParticipant, error) {
	query := `
		SELECT ` + participantColumns + `
		FROM chat_participants
		WHERE room_id = $1 AND user_id = $2
	`

	participant := &domain.ChatParticipant{}
	err := r.db.QueryRow(ctx, query, roomID, userID).Scan(
		&participant.ID, &participant.RoomID, &participant.UserID, &participant.Role,
		&participant.Status, &participant.JoinedAt, &participant.LastSeenAt,
		&participant.UnreadCount, &participant.IsMuted, &participant.IsPinned,
		&participant.CustomNickname,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		r.log.Error("Failed to get participant", "error", err)
		return nil, err
	}

	return participant, nil
}

func (r *roomRepository) GetParticipantsByRoom(ctx context.Context, roomID uuid.UUID) ([]*domain.ChatParticipant, error) {
	query := `
		SELECT ` + participantColumns + `
		FROM chat_participants
		WHERE room_id = $1 AND status = 'active'
		ORDER BY joined_at ASC
	`

	rows, err := r.db.Query(ctx, query, roomID)
	if err != nil {
		r.log.Error("Failed to get participants", "error", err)
		return nil, err
	}
	defer rows.Close()

	var participants []*domain.ChatParticipant
	for rows.Next() {
		participant := &domain.ChatParticipant{}
		err := rows.Scan(
			&participant.ID, &participant.RoomID, &participant.UserID, &participant.Role,
			&participant.Status, &participant.JoinedAt, &participant.LastSeenAt,
			&participant.UnreadCount, &participant.IsMuted, &participant.IsPinned,
			&participant.CustomNickname,
		)
		if err != nil {
			r.log.Error("Failed to scan participant", "error", err)
			return nil, err
		}
		participants = append(participants, participant)
	}

	return participants, nil
}

func (r *roomRepository) CountActiveParticipants(ctx context.Context, roomID uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM chat_participants WHERE room_id = $1 AND status = 'active'`

	var count int
	if err := r.db.QueryRow(ctx, query, roomID).Scan(&count); err != nil {
		r.log.Error("Failed to count participants", "error", err)
		return 0, err
	}

	return count, nil
}

func (r *roomRepository) UpdateParticipantRole(ctx context.Context, roomID, userID uuid.UUID, role string) error {
	query := `UPDATE chat_participants SET role = $3 WHERE room_id = $1 AND user_id = $2`
	_, err := r.db.Exec(ctx, query, roomID, userID, role)
	if err != nil {
		r.log.Error("Failed to update participant role", "error", err)
		return err
	}
	return nil
}

func (r *roomRepository) UpdateParticipantStatus(ctx context.Context, roomID, userID uuid.UUID, status string) error {
	query := `UPDATE chat_participants SET status = $3 WHERE room_id = $1 AND user_id = $2`
	_, err := r.db.Exec(ctx, query, roomID, userID, status)
	if err != nil {
		r.log.Error("Failed to update participant status", "error", err)
		return err
	}
	return nil
}

func (r *roomRepository) UpdateParticipantSettings(ctx context.Context, participant *domain.ChatParticipant) error {
	query := `
		UPDATE chat_participants
		SET is_muted = $3, is_pinned = $4, custom_nickname = $5
		WHERE room_id = $1 AND user_id = $2
	`
	_, err := r.db.Exec(ctx, query,
		participant.RoomID, participant.UserID, participant.IsMuted,
		participant.IsPinned, participant.CustomNickname,
	)
	if err != nil {
		r.log.Error("Failed to update participant settings", "error", err)
		return err
	}
	return nil
}

func (r *roomRepository) IncrementUnread(ctx context.Context, roomID, exceptUserID uuid.UUID) error {
	query := `
		UPDATE chat_participants
		SET unread_count = unread_count + 1
		WHERE room_id = $1 AND user_id <> $2 AND status = 'active'
	`
	_, err := r.db.Exec(ctx, query, roomID, exceptUserID)
	if err != nil {
		r.log.Error("Failed to increment unread counters", "error", err)
		return err
	}
	return nil
}

func (r *roomRepository) ResetUnread(ctx context.Context, roomID, userID uuid.UUID, at time.Time) error {
	query := `
		UPDATE chat_participants
		SET unread_count = 0, last_seen_at = $3
		WHERE room_id = $1 AND user_id = $2
	`
	_, err := r.db.Exec(ctx, query, roomID, userID, at)
	if err != nil {
		r.log.Error("Failed to reset unread counter", "error", err)
		return err
	}
	return nil
}
