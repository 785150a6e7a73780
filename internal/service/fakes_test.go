package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"chat_service/internal/config"
	"chat_service/internal/domain"
	"chat_service/internal/repository"
	apperrors "chat_service/pkg/errors"
	"chat_service/pkg/logger"
)

// In-memory реализации репозиториев для тестов сервисного слоя

type fakeRoomRepo struct {
	mu           sync.Mutex
	rooms        map[uuid.UUID]*domain.ChatRoom
	participants map[uuid.UUID]map[uuid.UUID]*domain.ChatParticipant
}

func newFakeRoomRepo() *fakeRoomRepo {
	return &fakeRoomRepo{
		rooms:        make(map[uuid.UUID]*domain.ChatRoom),
		participants: make(map[uuid.UUID]map[uuid.UUID]*domain.ChatParticipant),
	}
}

func (r *fakeRoomRepo) Create(_ context.Context, room *domain.ChatRoom) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *room
	r.rooms[room.ID] = &copied
	return nil
}

func (r *fakeRoomRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.ChatRoom, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[id]
	if !ok || room.Status == domain.RoomStatusDeleted {
		return nil, apperrors.ErrNotFound
	}
	copied := *room
	return &copied, nil
}

func (r *fakeRoomRepo) FindDirectRoom(_ context.Context, userA, userB uuid.UUID) (*domain.ChatRoom, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, room := range r.rooms {
		if room.RoomType != domain.RoomTypeDirect || room.Status == domain.RoomStatusDeleted {
			continue
		}
		members := r.participants[id]
		if members == nil {
			continue
		}
		if _, okA := members[userA]; !okA {
			continue
		}
		if _, okB := members[userB]; !okB {
			continue
		}
		copied := *room
		return &copied, nil
	}
	return nil, apperrors.ErrNotFound
}

func (r *fakeRoomRepo) ListByUser(_ context.Context, userID uuid.UUID, limit, offset int) ([]*domain.ChatRoom, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var rooms []*domain.ChatRoom
	for id, room := range r.rooms {
		if room.Status == domain.RoomStatusDeleted {
			continue
		}
		p, ok := r.participants[id][userID]
		if !ok || p.Status != domain.ParticipantStatusActive {
			continue
		}
		copied := *room
		rooms = append(rooms, &copied)
	}
	return rooms, nil
}

func (r *fakeRoomRepo) Update(_ context.Context, room *domain.ChatRoom) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *room
	r.rooms[room.ID] = &copied
	return nil
}

func (r *fakeRoomRepo) UpdateStatus(_ context.Context, roomID uuid.UUID, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return apperrors.ErrNotFound
	}
	room.Status = status
	return nil
}

func (r *fakeRoomRepo) BumpLastMessage(_ context.Context, roomID uuid.UUID, at time.Time, preview string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomID]
	if !ok {
		return apperrors.ErrNotFound
	}
	room.TotalMessages++
	room.LastMessageAt = &at
	room.LastMessagePreview = &preview
	return nil
}

func (r *fakeRoomRepo) UpsertParticipant(_ context.Context, participant *domain.ChatParticipant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	members, ok := r.participants[participant.RoomID]
	if !ok {
		members = make(map[uuid.UUID]*domain.ChatParticipant)
		r.participants[participant.RoomID] = members
	}
	if existing, ok := members[participant.UserID]; ok {
		existing.Role = participant.Role
		existing.Status = participant.Status
		existing.UnreadCount = 0
		return nil
	}
	copied := *participant
	members[participant.UserID] = &copied
	return nil
}

func (r *fakeRoomRepo) GetParticipant(_ context.Context, roomID, userID uuid.UUID) (*domain.ChatParticipant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[roomID][userID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	copied := *p
	return &copied, nil
}

func (r *fakeRoomRepo) GetParticipantsByRoom(_ context.Context, roomID uuid.UUID) ([]*domain.ChatParticipant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var active []*domain.ChatParticipant
	for _, p := range r.participants[roomID] {
		if p.Status != domain.ParticipantStatusActive {
			continue
		}
		copied := *p
		active = append(active, &copied)
	}
	return active, nil
}

func (r *fakeRoomRepo) CountActiveParticipants(_ context.Context, roomID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, p := range r.participants[roomID] {
		if p.Status == domain.ParticipantStatusActive {
			count++
		}
	}
	return count, nil
}

func (r *fakeRoomRepo) UpdateParticipantRole(_ context.Context, roomID, userID uuid.UUID, role string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[roomID][userID]
	if !ok {
		return apperrors.ErrNotFound
	}
	p.Role = role
	return nil
}

func (r *fakeRoomRepo) UpdateParticipantStatus(_ context.Context, roomID, userID uuid.UUID, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[roomID][userID]
	if !ok {
		return apperrors.ErrNotFound
	}
	p.Status = status
	return nil
}

func (r *fakeRoomRepo) UpdateParticipantSettings(_ context.Context, participant *domain.ChatParticipant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[participant.RoomID][participant.UserID]
	if !ok {
		return apperrors.ErrNotFound
	}
	p.IsMuted = participant.IsMuted
	p.IsPinned = participant.IsPinned
	p.CustomNickname = participant.CustomNickname
	return nil
}

func (r *fakeRoomRepo) IncrementUnread(_ context.Context, roomID, exceptUserID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.participants[roomID] {
		if p.UserID == exceptUserID || p.Status != domain.ParticipantStatusActive {
			continue
		}
		p.UnreadCount++
	}
	return nil
}

func (r *fakeRoomRepo) ResetUnread(_ context.Context, roomID, userID uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[roomID][userID]
	if !ok {
		return apperrors.ErrNotFound
	}
	p.UnreadCount = 0
	p.LastSeenAt = &at
	return nil
}

type reactionKey struct {
	messageID uuid.UUID
	userID    uuid.UUID
	emoji     string
}

type readKey struct {
	messageID uuid.UUID
	userID    uuid.UUID
}

type fakeMessageRepo struct {
	mu        sync.Mutex
	messages  map[uuid.UUID]*domain.ChatMessage
	reactions map[reactionKey]*domain.MessageReaction
	reads     map[readKey]time.Time
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{
		messages:  make(map[uuid.UUID]*domain.ChatMessage),
		reactions: make(map[reactionKey]*domain.MessageReaction),
		reads:     make(map[readKey]time.Time),
	}
}

func (r *fakeMessageRepo) Create(_ context.Context, message *domain.ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *message
	r.messages[message.ID] = &copied
	return nil
}

func (r *fakeMessageRepo) GetByID(_ context.Context, messageID uuid.UUID) (*domain.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	message, ok := r.messages[messageID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	copied := *message
	return &copied, nil
}

func (r *fakeMessageRepo) GetMessages(_ context.Context, roomID uuid.UUID, limit, offset int) ([]*domain.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var messages []*domain.ChatMessage
	for _, m := range r.messages {
		if m.RoomID != roomID {
			continue
		}
		copied := *m
		messages = append(messages, &copied)
	}
	return messages, nil
}

func (r *fakeMessageRepo) GetPinned(_ context.Context, roomID uuid.UUID) ([]*domain.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var pinned []*domain.ChatMessage
	for _, m := range r.messages {
		if m.RoomID != roomID || !m.IsPinned || m.IsDeleted {
			continue
		}
		copied := *m
		pinned = append(pinned, &copied)
	}
	return pinned, nil
}

func (r *fakeMessageRepo) UpdateContent(_ context.Context, message *domain.ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.messages[message.ID]
	if !ok || stored.IsDeleted {
		return apperrors.ErrNotFound
	}
	now := time.Now()
	stored.Content = message.Content
	stored.IsEdited = true
	stored.EditedAt = &now
	message.IsEdited = true
	message.EditedAt = &now
	return nil
}

func (r *fakeMessageRepo) Tombstone(_ context.Context, messageID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	message, ok := r.messages[messageID]
	if !ok {
		return apperrors.ErrNotFound
	}
	message.IsDeleted = true
	message.IsPinned = false
	return nil
}

func (r *fakeMessageRepo) SetPinned(_ context.Context, messageID uuid.UUID, pinned bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	message, ok := r.messages[messageID]
	if !ok {
		return apperrors.ErrNotFound
	}
	message.IsPinned = pinned
	return nil
}

func (r *fakeMessageRepo) Search(_ context.Context, roomID uuid.UUID, term string, limit int) ([]*domain.ChatMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []*domain.ChatMessage
	for _, m := range r.messages {
		if m.RoomID != roomID || m.IsDeleted {
			continue
		}
		if !containsFold(m.Content, term) {
			continue
		}
		copied := *m
		matched = append(matched, &copied)
	}
	return matched, nil
}

func (r *fakeMessageRepo) AddReaction(_ context.Context, reaction *domain.MessageReaction) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := reactionKey{reaction.MessageID, reaction.UserID, reaction.Emoji}
	if _, ok := r.reactions[key]; ok {
		return false, nil
	}
	copied := *reaction
	r.reactions[key] = &copied
	return true, nil
}

func (r *fakeMessageRepo) RemoveReaction(_ context.Context, messageID, userID uuid.UUID, emoji string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := reactionKey{messageID, userID, emoji}
	if _, ok := r.reactions[key]; !ok {
		return false, nil
	}
	delete(r.reactions, key)
	return true, nil
}

func (r *fakeMessageRepo) GetReactions(_ context.Context, messageID uuid.UUID) ([]*domain.MessageReaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var reactions []*domain.MessageReaction
	for key, reaction := range r.reactions {
		if key.messageID != messageID {
			continue
		}
		copied := *reaction
		reactions = append(reactions, &copied)
	}
	return reactions, nil
}

func (r *fakeMessageRepo) MarkRead(_ context.Context, messageID, userID uuid.UUID, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := readKey{messageID, userID}
	if _, ok := r.reads[key]; ok {
		return false, nil
	}
	r.reads[key] = at
	if message, ok := r.messages[messageID]; ok {
		message.ReadCount++
	}
	return true, nil
}

func containsFold(haystack, needle string) bool {
	h := []rune(haystack)
	n := []rune(needle)
	if len(n) == 0 {
		return true
	}
	for i := 0; i+len(n) <= len(h); i++ {
		match := true
		for j := range n {
			a, b := h[i+j], n[j]
			if 'A' <= a && a <= 'Z' {
				a += 'a' - 'A'
			}
			if 'A' <= b && b <= 'Z' {
				b += 'a' - 'A'
			}
			if a != b {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

type fakeNotificationRepo struct {
	enqueued chan *repository.Notification
}

func newFakeNotificationRepo() *fakeNotificationRepo {
	return &fakeNotificationRepo{enqueued: make(chan *repository.Notification, 16)}
}

func (r *fakeNotificationRepo) Enqueue(_ context.Context, notification *repository.Notification) error {
	r.enqueued <- notification
	return nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []*domain.RoomEvent
}

func (p *fakePublisher) Publish(event *domain.RoomEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *fakePublisher) eventsOfType(eventType string) []*domain.RoomEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var matched []*domain.RoomEvent
	for _, e := range p.events {
		if e.Type == eventType {
			matched = append(matched, e)
		}
	}
	return matched
}

type fakePresence struct {
	mu     sync.Mutex
	online map[uuid.UUID]map[uuid.UUID]bool
}

func newFakePresence() *fakePresence {
	return &fakePresence{online: make(map[uuid.UUID]map[uuid.UUID]bool)}
}

func (p *fakePresence) setOnline(roomID, userID uuid.UUID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.online[roomID] == nil {
		p.online[roomID] = make(map[uuid.UUID]bool)
	}
	p.online[roomID][userID] = true
}

func (p *fakePresence) IsOnline(roomID, userID uuid.UUID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.online[roomID][userID]
}

func testConfig() *config.Config {
	return &config.Config{
		Chat: config.ChatConfig{
			MaxMessageLength:  4000,
			HistoryPageSize:   50,
			DefaultMaxMembers: 100,
			SendBufferSize:    256,
		},
	}
}

type testEnv struct {
	roomRepo      *fakeRoomRepo
	messageRepo   *fakeMessageRepo
	notifications *fakeNotificationRepo
	publisher     *fakePublisher
	presence      *fakePresence
	rooms         RoomService
	chat          ChatService
	receipts      ReceiptService
}

func newTestEnv() *testEnv {
	roomRepo := newFakeRoomRepo()
	messageRepo := newFakeMessageRepo()
	notifications := newFakeNotificationRepo()
	publisher := &fakePublisher{}
	presence := newFakePresence()
	cfg := testConfig()
	log := logger.New("error")

	return &testEnv{
		roomRepo:      roomRepo,
		messageRepo:   messageRepo,
		notifications: notifications,
		publisher:     publisher,
		presence:      presence,
		rooms:         NewRoomService(roomRepo, publisher, cfg, log),
		chat:          NewChatService(messageRepo, roomRepo, notifications, publisher, presence, cfg, log),
		receipts:      NewReceiptService(messageRepo, roomRepo, publisher, log),
	}
}

// seedRoom создает групповую комнату с owner и дополнительными участниками-member
func (env *testEnv) seedRoom(t *testing.T, owner uuid.UUID, members ...uuid.UUID) *domain.ChatRoom {
	t.Helper()
	room, err := env.rooms.CreateRoom(context.Background(), CreateRoomInput{
		Name:       "general",
		RoomType:   domain.RoomTypeGroup,
		InviteeIDs: members,
	}, owner)
	if err != nil {
		t.Fatalf("failed to seed room: %v", err)
	}
	return room
}
