package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"chat_service/internal/domain"
	apperrors "chat_service/pkg/errors"
)

func sendText(t *testing.T, env *testEnv, roomID, senderID uuid.UUID, content string) *domain.ChatMessage {
	t.Helper()
	message, err := env.chat.SendMessage(context.Background(), SendMessageInput{
		RoomID:      roomID,
		MessageType: domain.MessageTypeText,
		Content:     content,
	}, senderID)
	if err != nil {
		t.Fatalf("failed to send message: %v", err)
	}
	return message
}

func TestSendMessageBroadcastsAndCounts(t *testing.T) {
	env := newTestEnv()
	owner := uuid.New()
	member := uuid.New()
	room := env.seedRoom(t, owner, member)

	message := sendText(t, env, room.ID, owner, "hello there")

	created := env.publisher.eventsOfType(domain.EventMessageCreated)
	if len(created) != 1 {
		t.Fatalf("expected one message.created event, got %d", len(created))
	}
	if created[0].RoomID != room.ID {
		t.Fatalf("event published for wrong room: %s", created[0].RoomID)
	}

	// Счетчик непрочитанного растет у всех, кроме отправителя
	p, _ := env.rooms.GetActiveParticipant(context.Background(), room.ID, member)
	if p.UnreadCount != 1 {
		t.Fatalf("expected unread count 1 for recipient, got %d", p.UnreadCount)
	}
	p, _ = env.rooms.GetActiveParticipant(context.Background(), room.ID, owner)
	if p.UnreadCount != 0 {
		t.Fatalf("sender unread count must stay 0, got %d", p.UnreadCount)
	}

	stored, err := env.roomRepo.GetByID(context.Background(), room.ID)
	if err != nil {
		t.Fatalf("room lookup failed: %v", err)
	}
	if stored.TotalMessages != 1 {
		t.Fatalf("expected total_messages 1, got %d", stored.TotalMessages)
	}
	if stored.LastMessagePreview == nil || *stored.LastMessagePreview != message.Content {
		t.Fatal("last message preview was not updated")
	}
}

func TestSendMessageRejectsNonMember(t *testing.T) {
	env := newTestEnv()
	owner := uuid.New()
	room := env.seedRoom(t, owner)

	_, err := env.chat.SendMessage(context.Background(), SendMessageInput{
		RoomID:      room.ID,
		MessageType: domain.MessageTypeText,
		Content:     "sneaky",
	}, uuid.New())
	if !errors.Is(err, apperrors.ErrNotAMember) {
		t.Fatalf("expected not-a-member error, got %v", err)
	}
	if len(env.publisher.eventsOfType(domain.EventMessageCreated)) != 0 {
		t.Fatal("rejected message must not be broadcast")
	}
}

func TestSendMessageValidation(t *testing.T) {
	env := newTestEnv()
	owner := uuid.New()
	room := env.seedRoom(t, owner)

	_, err := env.chat.SendMessage(context.Background(), SendMessageInput{
		RoomID:      room.ID,
		MessageType: domain.MessageTypeText,
		Content:     "   \t  ",
	}, owner)
	if !errors.Is(err, apperrors.ErrValidation) {
		t.Fatalf("blank text message must be rejected, got %v", err)
	}

	_, err = env.chat.SendMessage(context.Background(), SendMessageInput{
		RoomID:      room.ID,
		MessageType: "smoke-signal",
		Content:     "hi",
	}, owner)
	if !errors.Is(err, apperrors.ErrValidation) {
		t.Fatalf("unknown message type must be rejected, got %v", err)
	}

	_, err = env.chat.SendMessage(context.Background(), SendMessageInput{
		RoomID:      room.ID,
		MessageType: domain.MessageTypeText,
		Content:     strings.Repeat("a", 4001),
	}, owner)
	if !errors.Is(err, apperrors.ErrValidation) {
		t.Fatalf("oversized message must be rejected, got %v", err)
	}
}

func TestMessageLengthCountedInRunes(t *testing.T) {
	env := newTestEnv()
	owner := uuid.New()
	room := env.seedRoom(t, owner)

	// 4000 кириллических символов = 8000 байт; лимит считается в символах
	if _, err := env.chat.SendMessage(context.Background(), SendMessageInput{
		RoomID:      room.ID,
		MessageType: domain.MessageTypeText,
		Content:     strings.Repeat("я", 4000),
	}, owner); err != nil {
		t.Fatalf("multibyte message at the cap must be accepted: %v", err)
	}

	if _, err := env.chat.SendMessage(context.Background(), SendMessageInput{
		RoomID:      room.ID,
		MessageType: domain.MessageTypeText,
		Content:     strings.Repeat("я", 4001),
	}, owner); !errors.Is(err, apperrors.ErrValidation) {
		t.Fatalf("multibyte message over the cap must be rejected, got %v", err)
	}

	message := sendText(t, env, room.ID, owner, "short")
	if _, err := env.chat.EditMessage(context.Background(), message.ID, owner, strings.Repeat("я", 4000)); err != nil {
		t.Fatalf("multibyte edit at the cap must be accepted: %v", err)
	}
	if _, err := env.chat.EditMessage(context.Background(), message.ID, owner, strings.Repeat("я", 4001)); !errors.Is(err, apperrors.ErrValidation) {
		t.Fatalf("multibyte edit over the cap must be rejected, got %v", err)
	}
}

func TestEditMessageSenderOnly(t *testing.T) {
	env := newTestEnv()
	owner := uuid.New()
	member := uuid.New()
	room := env.seedRoom(t, owner, member)
	message := sendText(t, env, room.ID, member, "typo here")

	_, err := env.chat.EditMessage(context.Background(), message.ID, owner, "fixed")
	if !errors.Is(err, apperrors.ErrPermissionDenied) {
		t.Fatalf("only the sender may edit, got %v", err)
	}

	edited, err := env.chat.EditMessage(context.Background(), message.ID, member, "fixed")
	if err != nil {
		t.Fatalf("sender failed to edit: %v", err)
	}
	if !edited.IsEdited || edited.EditedAt == nil {
		t.Fatal("edit must set the edited flag and timestamp")
	}
	if len(env.publisher.eventsOfType(domain.EventMessageUpdated)) != 1 {
		t.Fatal("edit must broadcast message.updated")
	}
}

func TestDeleteMessageTombstone(t *testing.T) {
	env := newTestEnv()
	owner := uuid.New()
	member := uuid.New()
	room := env.seedRoom(t, owner, member)
	message := sendText(t, env, room.ID, member, "to be removed")

	if err := env.chat.DeleteMessage(context.Background(), message.ID, member); err != nil {
		t.Fatalf("sender failed to delete own message: %v", err)
	}

	stored, err := env.messageRepo.GetByID(context.Background(), message.ID)
	if err != nil {
		t.Fatalf("tombstoned message should remain readable: %v", err)
	}
	if !stored.IsDeleted {
		t.Fatal("delete must tombstone, not drop the row")
	}

	// Повторное удаление - no-op без нового события
	if err := env.chat.DeleteMessage(context.Background(), message.ID, member); err != nil {
		t.Fatalf("repeated delete must be a no-op: %v", err)
	}
	if got := len(env.publisher.eventsOfType(domain.EventMessageDeleted)); got != 1 {
		t.Fatalf("expected one message.deleted event, got %d", got)
	}

	// Удаленное сообщение нельзя редактировать
	if _, err := env.chat.EditMessage(context.Background(), message.ID, member, "resurrect"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("editing a deleted message must fail with not-found, got %v", err)
	}
}

func TestDeleteMessageModeratorOverride(t *testing.T) {
	env := newTestEnv()
	owner := uuid.New()
	member := uuid.New()
	other := uuid.New()
	room := env.seedRoom(t, owner, member, other)
	message := sendText(t, env, room.ID, member, "spam")

	if err := env.chat.DeleteMessage(context.Background(), message.ID, other); !errors.Is(err, apperrors.ErrPermissionDenied) {
		t.Fatalf("plain member must not delete others' messages, got %v", err)
	}

	if err := env.chat.DeleteMessage(context.Background(), message.ID, owner); err != nil {
		t.Fatalf("owner should delete any message: %v", err)
	}
}

func TestPinRequiresModerator(t *testing.T) {
	env := newTestEnv()
	owner := uuid.New()
	member := uuid.New()
	room := env.seedRoom(t, owner, member)
	message := sendText(t, env, room.ID, member, "important")

	if err := env.chat.PinMessage(context.Background(), message.ID, member); !errors.Is(err, apperrors.ErrPermissionDenied) {
		t.Fatalf("member must not pin, got %v", err)
	}

	if err := env.chat.PinMessage(context.Background(), message.ID, owner); err != nil {
		t.Fatalf("owner failed to pin: %v", err)
	}

	pinned, err := env.chat.GetPinnedMessages(context.Background(), room.ID, member)
	if err != nil {
		t.Fatalf("pinned listing failed: %v", err)
	}
	if len(pinned) != 1 || pinned[0].ID != message.ID {
		t.Fatal("pinned listing should contain the pinned message")
	}

	if err := env.chat.UnpinMessage(context.Background(), message.ID, owner); err != nil {
		t.Fatalf("owner failed to unpin: %v", err)
	}
	pinned, _ = env.chat.GetPinnedMessages(context.Background(), room.ID, member)
	if len(pinned) != 0 {
		t.Fatal("unpinned message should disappear from the pinned listing")
	}
}

func TestReactionIdempotent(t *testing.T) {
	env := newTestEnv()
	owner := uuid.New()
	member := uuid.New()
	room := env.seedRoom(t, owner, member)
	message := sendText(t, env, room.ID, owner, "react to me")

	if err := env.chat.ReactToMessage(context.Background(), message.ID, member, "👍"); err != nil {
		t.Fatalf("failed to react: %v", err)
	}
	// Повтор той же реакции не создает дубликат и не рассылает событие
	if err := env.chat.ReactToMessage(context.Background(), message.ID, member, "👍"); err != nil {
		t.Fatalf("repeated reaction must be a no-op: %v", err)
	}

	reactions, err := env.chat.GetReactions(context.Background(), message.ID, owner)
	if err != nil {
		t.Fatalf("failed to list reactions: %v", err)
	}
	if len(reactions) != 1 {
		t.Fatalf("expected exactly one reaction, got %d", len(reactions))
	}
	if got := len(env.publisher.eventsOfType(domain.EventReactionChanged)); got != 1 {
		t.Fatalf("expected one reaction.changed event, got %d", got)
	}

	if err := env.chat.RemoveReaction(context.Background(), message.ID, member, "👍"); err != nil {
		t.Fatalf("failed to remove reaction: %v", err)
	}
	if err := env.chat.RemoveReaction(context.Background(), message.ID, member, "👍"); err != nil {
		t.Fatalf("removing an absent reaction must be a no-op: %v", err)
	}
	if got := len(env.publisher.eventsOfType(domain.EventReactionChanged)); got != 2 {
		t.Fatalf("expected two reaction.changed events, got %d", got)
	}
}

func TestReactionOnDeletedMessage(t *testing.T) {
	env := newTestEnv()
	owner := uuid.New()
	room := env.seedRoom(t, owner)
	message := sendText(t, env, room.ID, owner, "gone soon")

	if err := env.chat.DeleteMessage(context.Background(), message.ID, owner); err != nil {
		t.Fatalf("failed to delete: %v", err)
	}
	if err := env.chat.ReactToMessage(context.Background(), message.ID, owner, "👍"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("reacting to a deleted message must fail with not-found, got %v", err)
	}
}

func TestSearchMessages(t *testing.T) {
	env := newTestEnv()
	owner := uuid.New()
	room := env.seedRoom(t, owner)
	sendText(t, env, room.ID, owner, "deploy scheduled for Friday")
	sendText(t, env, room.ID, owner, "lunch anyone?")
	removed := sendText(t, env, room.ID, owner, "deploy cancelled")
	if err := env.chat.DeleteMessage(context.Background(), removed.ID, owner); err != nil {
		t.Fatalf("failed to delete: %v", err)
	}

	found, err := env.chat.SearchMessages(context.Background(), room.ID, owner, "deploy", 50)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(found) != 1 {
		t.Fatalf("expected 1 match excluding the tombstoned message, got %d", len(found))
	}

	if _, err := env.chat.SearchMessages(context.Background(), room.ID, owner, "  ", 50); !errors.Is(err, apperrors.ErrValidation) {
		t.Fatalf("blank search term must be rejected, got %v", err)
	}
	if _, err := env.chat.SearchMessages(context.Background(), room.ID, uuid.New(), "deploy", 50); !errors.Is(err, apperrors.ErrNotAMember) {
		t.Fatalf("non-member search must be rejected, got %v", err)
	}
}

func TestTypingIndicatorMembersOnly(t *testing.T) {
	env := newTestEnv()
	owner := uuid.New()
	room := env.seedRoom(t, owner)

	if err := env.chat.SendTypingIndicator(context.Background(), room.ID, owner, true); err != nil {
		t.Fatalf("member typing indicator failed: %v", err)
	}
	if err := env.chat.SendTypingIndicator(context.Background(), room.ID, uuid.New(), true); !errors.Is(err, apperrors.ErrNotAMember) {
		t.Fatalf("non-member typing must be rejected, got %v", err)
	}

	events := env.publisher.eventsOfType(domain.EventTyping)
	if len(events) != 1 {
		t.Fatalf("expected one typing event, got %d", len(events))
	}
	payload, ok := events[0].Payload.(*domain.TypingPayload)
	if !ok {
		t.Fatal("typing event payload has unexpected type")
	}
	if payload.UserID != owner || !payload.IsTyping {
		t.Fatal("typing payload must carry the sender and the flag verbatim")
	}
}

func TestOfflineNotificationQueued(t *testing.T) {
	env := newTestEnv()
	owner := uuid.New()
	online := uuid.New()
	offline := uuid.New()
	muted := uuid.New()
	room := env.seedRoom(t, owner, online, offline, muted)

	env.presence.setOnline(room.ID, online)
	isMuted := true
	if err := env.rooms.UpdateParticipantSettings(context.Background(), room.ID, muted, &isMuted, nil, nil); err != nil {
		t.Fatalf("failed to mute participant: %v", err)
	}

	message := sendText(t, env, room.ID, owner, "anyone around?")

	select {
	case n := <-env.notifications.enqueued:
		if n.UserID != offline {
			t.Fatalf("notification targeted wrong user: %s", n.UserID)
		}
		if n.MessageID != message.ID || n.RoomID != room.ID {
			t.Fatal("notification references wrong message or room")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected a notification for the offline participant")
	}

	// Отправитель, онлайн-участник и замьюченный не получают уведомлений
	select {
	case n := <-env.notifications.enqueued:
		t.Fatalf("unexpected extra notification for %s", n.UserID)
	case <-time.After(100 * time.Millisecond):
	}
}
