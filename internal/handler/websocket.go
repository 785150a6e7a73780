package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"chat_service/internal/config"
	"chat_service/internal/realtime"
	"chat_service/internal/service"
	"chat_service/pkg/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // В продакшене нужно проверять origin
	},
}

type WebSocketHandler struct {
	hub      *realtime.Hub
	presence *realtime.PresenceRegistry
	services *service.Services
	cfg      *config.Config
	log      logger.Logger
}

func NewWebSocketHandler(hub *realtime.Hub, presence *realtime.PresenceRegistry, services *service.Services, cfg *config.Config, log logger.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:      hub,
		presence: presence,
		services: services,
		cfg:      cfg,
		log:      log,
	}
}

// HandleChat апгрейдит соединение после проверки токена из query-параметра.
// Браузерный WebSocket API не умеет выставлять заголовки
func (h *WebSocketHandler) HandleChat(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "token is required"})
		return
	}

	user, err := h.services.Auth.ValidateToken(c.Request.Context(), token)
	if err != nil {
		h.log.Warn("Websocket auth failed", "error", err)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error("Failed to upgrade connection", "error", err)
		return
	}

	h.log.Info("Websocket connected", "user_id", user.ID)

	client := realtime.NewClient(conn, user, h.hub, h.presence, h.services, h.cfg, h.log)
	client.Run()

	h.log.Info("Websocket disconnected", "user_id", user.ID)
}
