package service

import (
	"chat_service/internal/config"
	"chat_service/internal/repository"
	"chat_service/pkg/logger"
)

type Services struct {
	Auth      AuthService
	Room      RoomService
	Chat      ChatService
	Receipt   ReceiptService
	RateLimit RateLimitService
}

func NewServices(repos *repository.Repositories, publisher EventPublisher, presence PresenceChecker, cfg *config.Config, log logger.Logger) *Services {
	return &Services{
		Auth:      NewAuthService(repos.User, cfg.JWT, log),
		Room:      NewRoomService(repos.Room, publisher, cfg, log),
		Chat:      NewChatService(repos.Message, repos.Room, repos.Notification, publisher, presence, cfg, log),
		Receipt:   NewReceiptService(repos.Message, repos.Room, publisher, log),
		RateLimit: NewRateLimitService(repos.RateLimit, log),
	}
}
