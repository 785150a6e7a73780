package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"chat_service/internal/config"
	"chat_service/internal/domain"
	"chat_service/internal/service"
	"chat_service/pkg/logger"
)

// Действия клиента, приходящие по соединению
const (
	ActionJoinRoom        = "join_room"
	ActionLeaveRoom       = "leave_room"
	ActionSendMessage     = "send_message"
	ActionEditMessage     = "edit_message"
	ActionDeleteMessage   = "delete_message"
	ActionPinMessage      = "pin_message"
	ActionUnpinMessage    = "unpin_message"
	ActionReact           = "react"
	ActionUnreact         = "unreact"
	ActionMarkRead        = "mark_read"
	ActionMarkMessageRead = "mark_message_read"
	ActionTyping          = "typing"
)

type clientAction struct {
	Type      string                    `json:"type"`
	RoomID    *uuid.UUID                `json:"room_id,omitempty"`
	MessageID *uuid.UUID                `json:"message_id,omitempty"`
	Content   string                    `json:"content,omitempty"`
	Emoji     string                    `json:"emoji,omitempty"`
	IsTyping  bool                      `json:"is_typing,omitempty"`
	Message   *service.SendMessageInput `json:"message,omitempty"`
}

type errorEvent struct {
	Type   string `json:"type"`
	Action string `json:"action"`
	Error  string `json:"error"`
}

// Client - одно аутентифицированное websocket-соединение
type Client struct {
	conn         *websocket.Conn
	connectionID string
	user         *domain.User

	hub      *Hub
	presence *PresenceRegistry
	services *service.Services
	cfg      *config.Config
	log      logger.Logger

	send  chan []byte
	rooms map[uuid.UUID]struct{}
}

func NewClient(conn *websocket.Conn, user *domain.User, hub *Hub, presence *PresenceRegistry, services *service.Services, cfg *config.Config, log logger.Logger) *Client {
	return &Client{
		conn:         conn,
		connectionID: uuid.New().String(),
		user:         user,
		hub:          hub,
		presence:     presence,
		services:     services,
		cfg:          cfg,
		log:          log,
		send:         make(chan []byte, cfg.Chat.SendBufferSize),
		rooms:        make(map[uuid.UUID]struct{}),
	}
}

func (c *Client) UserID() uuid.UUID {
	return c.user.ID
}

// Run запускает пампы и блокируется до разрыва соединения
func (c *Client) Run() {
	go c.writePump()
	c.readPump()
}

func (c *Client) readPump() {
	defer c.teardown()

	c.conn.SetReadLimit(int64(c.cfg.Chat.MaxMessageLength * 4))
	c.conn.SetReadDeadline(time.Now().Add(c.cfg.Chat.PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.cfg.Chat.PongTimeout))
		return nil
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn("Websocket read failed", "user_id", c.user.ID, "error", err)
			}
			return
		}

		var action clientAction
		if err := json.Unmarshal(payload, &action); err != nil {
			c.sendError("", "invalid payload")
			continue
		}

		c.dispatch(&action)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.cfg.Chat.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.Chat.WriteTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.Chat.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// teardown - немедленная зачистка присутствия при разрыве; грейс-периода нет,
// реконнект считается новым заходом
func (c *Client) teardown() {
	c.detachAll()
	c.conn.Close()
}

// detachAll снимает подписки и присутствие клиента во всех комнатах.
// Канал send намеренно никогда не закрывается: рассылка из хаба могла
// снять снапшот подписчиков до отписки, и отправка в закрытый канал
// паниковала бы внутри Publish. writePump завершается сам по ошибке
// записи после закрытия соединения
func (c *Client) detachAll() {
	for roomID := range c.rooms {
		c.hub.Unsubscribe(roomID, c)
		c.announceLeave(roomID)
	}
}

func (c *Client) announceLeave(roomID uuid.UUID) {
	left, count := c.presence.Leave(roomID, c.user.ID, c.connectionID)
	if !left {
		return
	}
	c.hub.Publish(&domain.RoomEvent{
		Type:   domain.EventPresenceChanged,
		RoomID: roomID,
		Payload: &domain.PresencePayload{
			Type:        domain.PresenceLeft,
			UserID:      c.user.ID,
			OnlineCount: count,
		},
	})
}

func (c *Client) dispatch(action *clientAction) {
	ctx := context.Background()

	var err error
	switch action.Type {
	case ActionJoinRoom:
		err = c.handleJoinRoom(ctx, action)
	case ActionLeaveRoom:
		err = c.handleLeaveRoom(action)
	case ActionSendMessage:
		err = c.handleSendMessage(ctx, action)
	case ActionEditMessage:
		err = c.requireMessage(action, func(messageID uuid.UUID) error {
			_, editErr := c.services.Chat.EditMessage(ctx, messageID, c.user.ID, action.Content)
			return editErr
		})
	case ActionDeleteMessage:
		err = c.requireMessage(action, func(messageID uuid.UUID) error {
			return c.services.Chat.DeleteMessage(ctx, messageID, c.user.ID)
		})
	case ActionPinMessage:
		err = c.requireMessage(action, func(messageID uuid.UUID) error {
			return c.services.Chat.PinMessage(ctx, messageID, c.user.ID)
		})
	case ActionUnpinMessage:
		err = c.requireMessage(action, func(messageID uuid.UUID) error {
			return c.services.Chat.UnpinMessage(ctx, messageID, c.user.ID)
		})
	case ActionReact:
		err = c.requireMessage(action, func(messageID uuid.UUID) error {
			return c.services.Chat.ReactToMessage(ctx, messageID, c.user.ID, action.Emoji)
		})
	case ActionUnreact:
		err = c.requireMessage(action, func(messageID uuid.UUID) error {
			return c.services.Chat.RemoveReaction(ctx, messageID, c.user.ID, action.Emoji)
		})
	case ActionMarkRead:
		err = c.requireRoom(action, func(roomID uuid.UUID) error {
			return c.services.Receipt.MarkRoomAsRead(ctx, roomID, c.user.ID)
		})
	case ActionMarkMessageRead:
		err = c.requireMessage(action, func(messageID uuid.UUID) error {
			return c.services.Receipt.MarkMessageAsRead(ctx, messageID, c.user.ID)
		})
	case ActionTyping:
		// Best-effort: потерянный индикатор перекроется следующим
		err = c.requireRoom(action, func(roomID uuid.UUID) error {
			return c.services.Chat.SendTypingIndicator(ctx, roomID, c.user.ID, action.IsTyping)
		})
	default:
		c.sendError(action.Type, "unknown action")
		return
	}

	if err != nil {
		// Ошибки валидации и прав уходят только действующему клиенту
		c.sendError(action.Type, err.Error())
	}
}

func (c *Client) requireRoom(action *clientAction, fn func(roomID uuid.UUID) error) error {
	if action.RoomID == nil {
		c.sendError(action.Type, "room_id is required")
		return nil
	}
	return fn(*action.RoomID)
}

func (c *Client) requireMessage(action *clientAction, fn func(messageID uuid.UUID) error) error {
	if action.MessageID == nil {
		c.sendError(action.Type, "message_id is required")
		return nil
	}
	return fn(*action.MessageID)
}

func (c *Client) handleJoinRoom(ctx context.Context, action *clientAction) error {
	if action.RoomID == nil {
		c.sendError(action.Type, "room_id is required")
		return nil
	}
	roomID := *action.RoomID

	// Подписка только для активных участников комнаты
	if _, err := c.services.Room.GetActiveParticipant(ctx, roomID, c.user.ID); err != nil {
		return err
	}

	c.hub.Subscribe(roomID, c)
	c.rooms[roomID] = struct{}{}

	joined, count := c.presence.Join(roomID, c.user.ID, c.connectionID)
	if joined {
		c.hub.Publish(&domain.RoomEvent{
			Type:   domain.EventPresenceChanged,
			RoomID: roomID,
			Payload: &domain.PresencePayload{
				Type:        domain.PresenceJoined,
				UserID:      c.user.ID,
				OnlineCount: count,
			},
		})
	}

	return nil
}

func (c *Client) handleLeaveRoom(action *clientAction) error {
	if action.RoomID == nil {
		c.sendError(action.Type, "room_id is required")
		return nil
	}
	roomID := *action.RoomID

	c.hub.Unsubscribe(roomID, c)
	delete(c.rooms, roomID)
	c.announceLeave(roomID)

	return nil
}

func (c *Client) handleSendMessage(ctx context.Context, action *clientAction) error {
	input := action.Message
	if input == nil {
		if action.RoomID == nil {
			c.sendError(action.Type, "message payload is required")
			return nil
		}
		// Короткая форма: текстовое сообщение без вложений
		input = &service.SendMessageInput{
			RoomID:      *action.RoomID,
			MessageType: domain.MessageTypeText,
			Content:     action.Content,
		}
	}

	_, err := c.services.Chat.SendMessage(ctx, *input, c.user.ID)
	return err
}

func (c *Client) sendError(action, message string) {
	payload, err := json.Marshal(&errorEvent{
		Type:   "error",
		Action: action,
		Error:  message,
	})
	if err != nil {
		return
	}

	select {
	case c.send <- payload:
	default:
		c.log.Warn("Dropping error event for slow client", "user_id", c.user.ID)
	}
}
