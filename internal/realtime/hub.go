package realtime

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"chat_service/internal/domain"
	"chat_service/pkg/logger"
)

// Hub ведет подписки клиентов на топики комнат и рассылает события.
// Доставка изолирована per-subscriber: мертвый или медленный клиент пропускается,
// остальные получают событие.
type Hub struct {
	mu    sync.RWMutex
	rooms map[uuid.UUID]map[*Client]struct{}
	log   logger.Logger
}

func NewHub(log logger.Logger) *Hub {
	return &Hub{
		rooms: make(map[uuid.UUID]map[*Client]struct{}),
		log:   log,
	}
}

func (h *Hub) Subscribe(roomID uuid.UUID, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subscribers, ok := h.rooms[roomID]
	if !ok {
		subscribers = make(map[*Client]struct{})
		h.rooms[roomID] = subscribers
	}
	subscribers[client] = struct{}{}
}

func (h *Hub) Unsubscribe(roomID uuid.UUID, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subscribers, ok := h.rooms[roomID]
	if !ok {
		return
	}
	delete(subscribers, client)
	if len(subscribers) == 0 {
		delete(h.rooms, roomID)
	}
}

// Publish рассылает событие всем текущим подписчикам топика комнаты.
// Реализует service.EventPublisher.
func (h *Hub) Publish(event *domain.RoomEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.log.Error("Failed to marshal room event", "type", event.Type, "error", err)
		return
	}

	h.mu.RLock()
	subscribers := make([]*Client, 0, len(h.rooms[event.RoomID]))
	for client := range h.rooms[event.RoomID] {
		subscribers = append(subscribers, client)
	}
	h.mu.RUnlock()

	for _, client := range subscribers {
		select {
		case client.send <- payload:
		default:
			// Переполненный буфер не должен блокировать рассылку остальным
			h.log.Warn("Dropping event for slow subscriber",
				"type", event.Type, "room_id", event.RoomID, "user_id", client.UserID())
		}
	}
}

// SubscriberCount возвращает число подписчиков топика комнаты
func (h *Hub) SubscriberCount(roomID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}
