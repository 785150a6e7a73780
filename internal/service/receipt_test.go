package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"chat_service/internal/domain"
	apperrors "chat_service/pkg/errors"
)

func TestMarkRoomAsRead(t *testing.T) {
	env := newTestEnv()
	owner := uuid.New()
	member := uuid.New()
	room := env.seedRoom(t, owner, member)

	sendText(t, env, room.ID, owner, "one")
	sendText(t, env, room.ID, owner, "two")

	p, _ := env.rooms.GetActiveParticipant(context.Background(), room.ID, member)
	if p.UnreadCount != 2 {
		t.Fatalf("expected unread count 2 before read, got %d", p.UnreadCount)
	}

	if err := env.receipts.MarkRoomAsRead(context.Background(), room.ID, member); err != nil {
		t.Fatalf("failed to mark room as read: %v", err)
	}

	p, _ = env.rooms.GetActiveParticipant(context.Background(), room.ID, member)
	if p.UnreadCount != 0 {
		t.Fatalf("unread count must drop to 0, got %d", p.UnreadCount)
	}
	if p.LastSeenAt == nil {
		t.Fatal("last seen timestamp must be set")
	}

	events := env.publisher.eventsOfType(domain.EventReadUpdated)
	if len(events) != 1 {
		t.Fatalf("expected one read.updated event, got %d", len(events))
	}
	payload, ok := events[0].Payload.(*domain.ReadUpdatedPayload)
	if !ok {
		t.Fatal("read.updated payload has unexpected type")
	}
	if payload.UserID != member || payload.MessageID != nil {
		t.Fatal("room-level read receipt must carry the reader and no message id")
	}
}

func TestMarkRoomAsReadNonMember(t *testing.T) {
	env := newTestEnv()
	owner := uuid.New()
	room := env.seedRoom(t, owner)

	if err := env.receipts.MarkRoomAsRead(context.Background(), room.ID, uuid.New()); !errors.Is(err, apperrors.ErrNotAMember) {
		t.Fatalf("expected not-a-member error, got %v", err)
	}
}

func TestMarkMessageAsReadIdempotent(t *testing.T) {
	env := newTestEnv()
	owner := uuid.New()
	member := uuid.New()
	room := env.seedRoom(t, owner, member)
	message := sendText(t, env, room.ID, owner, "read me")

	if err := env.receipts.MarkMessageAsRead(context.Background(), message.ID, member); err != nil {
		t.Fatalf("failed to mark message as read: %v", err)
	}
	// Повторная отметка тем же читателем не меняет счетчик и не рассылает событие
	if err := env.receipts.MarkMessageAsRead(context.Background(), message.ID, member); err != nil {
		t.Fatalf("repeated mark must be a no-op: %v", err)
	}

	stored, err := env.messageRepo.GetByID(context.Background(), message.ID)
	if err != nil {
		t.Fatalf("message lookup failed: %v", err)
	}
	if stored.ReadCount != 1 {
		t.Fatalf("expected read count 1, got %d", stored.ReadCount)
	}

	events := env.publisher.eventsOfType(domain.EventReadUpdated)
	if len(events) != 1 {
		t.Fatalf("expected one read.updated event, got %d", len(events))
	}
	payload := events[0].Payload.(*domain.ReadUpdatedPayload)
	if payload.MessageID == nil || *payload.MessageID != message.ID {
		t.Fatal("message-level read receipt must carry the message id")
	}
}

func TestMarkMessageAsReadDistinctReaders(t *testing.T) {
	env := newTestEnv()
	owner := uuid.New()
	memberA := uuid.New()
	memberB := uuid.New()
	room := env.seedRoom(t, owner, memberA, memberB)
	message := sendText(t, env, room.ID, owner, "broadcast")

	if err := env.receipts.MarkMessageAsRead(context.Background(), message.ID, memberA); err != nil {
		t.Fatalf("reader A failed: %v", err)
	}
	if err := env.receipts.MarkMessageAsRead(context.Background(), message.ID, memberB); err != nil {
		t.Fatalf("reader B failed: %v", err)
	}

	stored, _ := env.messageRepo.GetByID(context.Background(), message.ID)
	if stored.ReadCount != 2 {
		t.Fatalf("expected read count 2 for distinct readers, got %d", stored.ReadCount)
	}
}

func TestMarkMessageAsReadNonMember(t *testing.T) {
	env := newTestEnv()
	owner := uuid.New()
	room := env.seedRoom(t, owner)
	message := sendText(t, env, room.ID, owner, "private")

	if err := env.receipts.MarkMessageAsRead(context.Background(), message.ID, uuid.New()); !errors.Is(err, apperrors.ErrNotAMember) {
		t.Fatalf("expected not-a-member error, got %v", err)
	}
}
