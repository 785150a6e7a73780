package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"chat_service/pkg/logger"
)

const (
	// Очередь офлайн-уведомлений; потребитель - внешний notification dispatcher
	NotificationQueueKey = "notifications:queue"

	// TTL очереди на случай, если потребитель недоступен
	NotificationQueueTTL = 24 * time.Hour
)

type Notification struct {
	UserID    uuid.UUID `json:"user_id"`
	RoomID    uuid.UUID `json:"room_id"`
	MessageID uuid.UUID `json:"message_id"`
	SenderID  uuid.UUID `json:"sender_id"`
	Preview   string    `json:"preview"`
	SentAt    time.Time `json:"sent_at"`
}

type NotificationRepository interface {
	Enqueue(ctx context.Context, notification *Notification) error
}

type notificationRepository struct {
	rdb *redis.Client
	log logger.Logger
}

func NewNotificationRepository(rdb *redis.Client, log logger.Logger) NotificationRepository {
	return &notificationRepository{rdb: rdb, log: log}
}

func (r *notificationRepository) Enqueue(ctx context.Context, notification *Notification) error {
	payload, err := json.Marshal(notification)
	if err != nil {
		r.log.Error("Failed to marshal notification", "error", err)
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	if err := r.rdb.LPush(ctx, NotificationQueueKey, payload).Err(); err != nil {
		r.log.Error("Failed to enqueue notification", "error", err, "user_id", notification.UserID)
		return fmt.Errorf("failed to enqueue notification: %w", err)
	}

	if err := r.rdb.Expire(ctx, NotificationQueueKey, NotificationQueueTTL).Err(); err != nil {
		r.log.Warn("Failed to set TTL on notification queue", "error", err)
	}

	return nil
}
