package repository

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"chat_service/pkg/logger"
)

type Repositories struct {
	User         UserRepository
	Room         RoomRepository
	Message      MessageRepository
	Notification NotificationRepository
	RateLimit    RateLimitRepository
}

func NewRepositories(db *pgxpool.Pool, redis *redis.Client, log logger.Logger) *Repositories {
	return &Repositories{
		User:         NewUserRepository(db, log),
		Room:         NewRoomRepository(db, log),
		Message:      NewMessageRepository(db, log),
		Notification: NewNotificationRepository(redis, log),
		RateLimit:    NewRateLimitRepository(redis, log),
	}
}
