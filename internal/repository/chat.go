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

type MessageRepository interface {
	Create(ctx context.Context, message *domain.ChatMessage) error
	GetByID(ctx context.Context, messageID uuid.UUID) (*domain.ChatMessage, error)
	GetMessages(ctx context.Context, roomID uuid.UUID, limit, offset int) ([]*domain.ChatMessage, error)
	GetPinned(ctx context.Context, roomID uuid.UUID) ([]*domain.ChatMessage, error)
	UpdateContent(ctx context.Context, message *domain.ChatMessage) error
	Tombstone(ctx context.Context, messageID uuid.UUID) error
	SetPinned(ctx context.Context, messageID uuid.UUID, pinned bool) error
	Search(ctx context.Context, roomID uuid.UUID, term string, limit int) ([]*domain.ChatMessage, error)
	AddReaction(ctx context.Context, reaction *domain.MessageReaction) (bool, error)
	RemoveReaction(ctx context.Context, messageID, userID uuid.UUID, emoji string) (bool, error)
	GetReactions(ctx context.Context, messageID uuid.UUID) ([]*domain.MessageReaction, error)
	MarkRead(ctx context.Context, messageID, userID uuid.UUID, at time.Time) (bool, error)
}

type messageRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewMessageRepository(db *pgxpool.Pool, log logger.Logger) MessageRepository {
	return &messageRepository{db: db, log: log}
}

const messageColumns = `id, room_id, sender_id, message_type, content, sent_at, edited_at,
	       is_edited, is_deleted, is_pinned, read_count, file_url, file_name, file_size,
	       file_type, thumbnail_url, duration, parent_message_id, is_forwarded,
	       mentioned_user_ids, metadata`

func (r *messageRepository) Create(ctx context.Context, message *domain.ChatMessage) error {
	query := `
		INSERT INTO chat_messages (id, room_id, sender_id, message_type, content, sent_at,
		                           file_url, file_name, file_size, file_type, thumbnail_url,
		                           duration, parent_message_id, is_forwarded,
		                           mentioned_user_ids, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING sent_at
	`

	err := r.db.QueryRow(ctx, query,
		message.ID, message.RoomID, message.SenderID, message.MessageType, message.Content,
		message.SentAt, message.FileURL, message.FileName, message.FileSize, message.FileType,
		message.ThumbnailURL, message.Duration, message.ParentMessageID, message.IsForwarded,
		message.MentionedUserIDs, message.Metadata,
	).Scan(&message.SentAt)

	if err != nil {
		r.log.Error("Failed to create message", "error", err)
		return err
	}

	return nil
}

func (r *messageRepository) scanMessage(row pgx.Row) (*domain.ChatMessage, error) {
	message := &domain.ChatMessage{}
	err := row.Scan(
		&message.ID, &message.RoomID, &message.SenderID, &message.MessageType,
		&message.Content, &message.SentAt, &message.EditedAt, &message.IsEdited,
		&message.IsDeleted, &message.IsPinned, &message.ReadCount, &message.FileURL,
		&message.FileName, &message.FileSize, &message.FileType, &message.ThumbnailURL,
		&message.Duration, &message.ParentMessageID, &message.IsForwarded,
		&message.MentionedUserIDs, &message.Metadata,
	)
	if err != nil {
		return nil, err
	}

	// Тумбстоун: строка остается, содержимое наружу не отдаем
	if message.IsDeleted {
		message.Content = domain.DeletedMessageContent
	}

	return message, nil
}

func (r *messageRepository) GetByID(ctx context.Context, messageID uuid.UUID) (*domain.ChatMessage, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM chat_messages
		WHERE id = $1
	`

	message, err := r.scanMessage(r.db.QueryRow(ctx, query, messageID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		r.log.Error("Failed to get message", "error", err)
		return nil, err
	}

	return message, nil
}

func (r *messageRepository) queryMessages(ctx context.Context, query string, args ...interface{}) ([]*domain.ChatMessage, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.log.Error("Failed to query messages", "error", err)
		return nil, err
	}
	defer rows.Close()

	var messages []*domain.ChatMessage
	for rows.Next() {
		message, err := r.scanMessage(rows)
		if err != nil {
			r.log.Error("Failed to scan message", "error", err)
			return nil, err
		}
		messages = append(messages, message)
	}

	return messages, nil
}

func (r *messageRepository) GetMessages(ctx context.Context, roomID uuid.UUID, limit, offset int) ([]*domain.ChatMessage, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM chat_messages
		WHERE room_id = $1
		ORDER BY sent_at DESC
		LIMIT $2 OFFSET $3
	`
	return r.queryMessages(ctx, query, roomID, limit, offset)
}

func (r *messageRepository) GetPinned(ctx context.Context, roomID uuid.UUID) ([]*domain.ChatMessage, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM chat_messages
		WHERE room_id = $1 AND is_pinned = TRUE AND is_deleted = FALSE
		ORDER BY sent_at DESC
	`
	return r.queryMessages(ctx, query, roomID)
}

func (r *messageRepository) UpdateContent(ctx context.Context, message *domain.ChatMessage) error {
	query := `
		UPDATE chat_messages
		SET content = $2, is_edited = TRUE, edited_at = $3
		WHERE id = $1 AND is_deleted = FALSE
		RETURNING edited_at
	`

	err := r.db.QueryRow(ctx, query, message.ID, message.Content, time.Now()).Scan(&message.EditedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.ErrNotFound
		}
		r.log.Error("Failed to update message", "error", err)
		return err
	}

	message.IsEdited = true
	return nil
}

func (r *messageRepository) Tombstone(ctx context.Context, messageID uuid.UUID) error {
	// Повторное удаление - no-op
	query := `UPDATE chat_messages SET is_deleted = TRUE, is_pinned = FALSE WHERE id = $1`
	_, err := r.db.Exec(ctx, query, messageID)
	if err != nil {
		r.log.Error("Failed to tombstone message", "error", err)
		return err
	}
	return nil
}

func (r *messageRepository) SetPinned(ctx context.Context, messageID uuid.UUID, pinned bool) error {
	query := `UPDATE chat_messages SET is_pinned = $2 WHERE id = $1 AND is_deleted = FALSE`
	_, err := r.db.Exec(ctx, query, messageID, pinned)
	if err != nil {
		r.log.Error("Failed to set pinned state", "error", err)
		return err
	}
	return nil
}

func (r *messageRepository) Search(ctx context.Context, roomID uuid.UUID, term string, limit int) ([]*domain.ChatMessage, error) {
	query := `
		SELECT ` + messageColumns + `
		FROM chat_messages
		WHERE room_id = $1 AND is_deleted = FALSE AND content ILIKE '%' || $2 || '%'
		ORDER BY sent_at DESC
		LIMIT $3
	`
	return r.queryMessages(ctx, query, roomID, term, limit)
}

func (r *messageRepository) AddReaction(ctx context.Context, reaction *domain.MessageReaction) (bool, error) {
	// Уникальность (message_id, user_id, emoji): повторная реакция не создает дубликат
	query := `
		INSERT INTO message_reactions (message_id, user_id, emoji, reacted_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (message_id, user_id, emoji) DO NOTHING
	`

	tag, err := r.db.Exec(ctx, query,
		reaction.MessageID, reaction.UserID, reaction.Emoji, reaction.ReactedAt,
	)
	if err != nil {
		r.log.Error("Failed to add reaction", "error", err)
		return false, err
	}

	return tag.RowsAffected() > 0, nil
}

func (r *messageRepository) RemoveReaction(ctx context.Context, messageID, userID uuid.UUID, emoji string) (bool, error) {
	query := `DELETE FROM message_reactions WHERE message_id = $1 AND user_id = $2 AND emoji = $3`

	tag, err := r.db.Exec(ctx, query, messageID, userID, emoji)
	if err != nil {
		r.log.Error("Failed to remove reaction", "error", err)
		return false, err
	}

	return tag.RowsAffected() > 0, nil
}

func (r *messageRepository) GetReactions(ctx context.Context, messageID uuid.UUID) ([]*domain.MessageReaction, error) {
	query := `
		SELECT message_id, user_id, emoji, reacted_at
		FROM message_reactions
		WHERE message_id = $1
		ORDER BY reacted_at ASC
	`

	rows, err := r.db.Query(ctx, query, messageID)
	if err != nil {
		r.log.Error("Failed to get reactions", "error", err)
		return nil, err
	}
	defer rows.Close()

	var reactions []*domain.MessageReaction
	for rows.Next() {
		reaction := &domain.MessageReaction{}
		err := rows.Scan(&reaction.MessageID, &reaction.UserID, &reaction.Emoji, &reaction.ReactedAt)
		if err != nil {
			r.log.Error("Failed to scan reaction", "error", err)
			return nil, err
		}
		reactions = append(reactions, reaction)
	}

	return reactions, nil
}

func (r *messageRepository) MarkRead(ctx context.Context, messageID, userID uuid.UUID, at time.Time) (bool, error) {
	// read_count растет ровно один раз на читателя: вставка в message_reads дедуплицирует
	query := `
		INSERT INTO message_reads (message_id, user_id, read_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (message_id, user_id) DO NOTHING
	`

	tag, err := r.db.Exec(ctx, query, messageID, userID, at)
	if err != nil {
		r.log.Error("Failed to mark message as read", "error", err)
		return false, err
	}

	if tag.RowsAffected() == 0 {
		return false, nil
	}

	bump := `UPDATE chat_messages SET read_count = read_count + 1 WHERE id = $1`
	if _, err := r.db.Exec(ctx, bump, messageID); err != nil {
		r.log.Error("Failed to bump read count", "error", err)
		return false, err
	}

	return true, nil
}
