package realtime

import (
	"sync"

	"github.com/google/uuid"
)

// PresenceRegistry хранит эфемерное присутствие: (room, user) -> connection id.
// Мутации сериализуются per-room; операции над разными комнатами идут параллельно.
type PresenceRegistry struct {
	mu    sync.RWMutex
	rooms map[uuid.UUID]*roomPresence
}

type roomPresence struct {
	mu    sync.Mutex
	users map[uuid.UUID]string
}

func NewPresenceRegistry() *PresenceRegistry {
	return &PresenceRegistry{
		rooms: make(map[uuid.UUID]*roomPresence),
	}
}

func (r *PresenceRegistry) room(roomID uuid.UUID) *roomPresence {
	r.mu.RLock()
	room, ok := r.rooms[roomID]
	r.mu.RUnlock()
	if ok {
		return room
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if room, ok = r.rooms[roomID]; ok {
		return room
	}
	room = &roomPresence{users: make(map[uuid.UUID]string)}
	r.rooms[roomID] = room
	return room
}

// Join регистрирует подключение пользователя в комнате. Повторное подключение того же
// пользователя заменяет connection id, не увеличивая счетчик. Возвращает признак перехода
// Absent -> Present и срез живого счетчика на момент мутации.
func (r *PresenceRegistry) Join(roomID, userID uuid.UUID, connectionID string) (bool, int) {
	room := r.room(roomID)

	room.mu.Lock()
	defer room.mu.Unlock()

	_, existed := room.users[userID]
	room.users[userID] = connectionID
	return !existed, len(room.users)
}

// Leave снимает присутствие пользователя. Запись удаляется только если connection id
// совпадает: отвал старого соединения не сбрасывает присутствие нового.
func (r *PresenceRegistry) Leave(roomID, userID uuid.UUID, connectionID string) (bool, int) {
	r.mu.RLock()
	room, ok := r.rooms[roomID]
	r.mu.RUnlock()
	if !ok {
		return false, 0
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	current, present := room.users[userID]
	if !present || current != connectionID {
		return false, len(room.users)
	}

	delete(room.users, userID)
	return true, len(room.users)
}

// OnlineCount возвращает число различных присутствующих пользователей комнаты
func (r *PresenceRegistry) OnlineCount(roomID uuid.UUID) int {
	r.mu.RLock()
	room, ok := r.rooms[roomID]
	r.mu.RUnlock()
	if !ok {
		return 0
	}

	room.mu.Lock()
	defer room.mu.Unlock()
	return len(room.users)
}

func (r *PresenceRegistry) IsOnline(roomID, userID uuid.UUID) bool {
	r.mu.RLock()
	room, ok := r.rooms[roomID]
	r.mu.RUnlock()
	if !ok {
		return false
	}

	room.mu.Lock()
	defer room.mu.Unlock()
	_, present := room.users[userID]
	return present
}

// OnlineUsers возвращает снимок присутствующих пользователей комнаты
func (r *PresenceRegistry) OnlineUsers(roomID uuid.UUID) []uuid.UUID {
	r.mu.RLock()
	room, ok := r.rooms[roomID]
	r.mu.RUnlock()
	if !ok {
		return nil
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	users := make([]uuid.UUID, 0, len(room.users))
	for userID := range room.users {
		users = append(users, userID)
	}
	return users
}
