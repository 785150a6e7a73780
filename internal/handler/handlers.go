package handler

import (
	"chat_service/internal/config"
	"chat_service/internal/realtime"
	"chat_service/internal/service"
	"chat_service/pkg/logger"
)

type Handlers struct {
	Health    *HealthHandler
	Auth      *AuthHandler
	Room      *RoomHandler
	Chat      *ChatHandler
	WebSocket *WebSocketHandler
}

func NewHandlers(services *service.Services, hub *realtime.Hub, presence *realtime.PresenceRegistry, cfg *config.Config, log logger.Logger) *Handlers {
	return &Handlers{
		Health:    NewHealthHandler(cfg),
		Auth:      NewAuthHandler(services.Auth, log),
		Room:      NewRoomHandler(services.Room, log),
		Chat:      NewChatHandler(services.Chat, services.Receipt, log),
		WebSocket: NewWebSocketHandler(hub, presence, services, cfg, log),
	}
}
