package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"chat_service/internal/domain"
	"chat_service/internal/service"
	"chat_service/pkg/logger"
)

type ChatHandler struct {
	chatService    service.ChatService
	receiptService service.ReceiptService
	log            logger.Logger
}

func NewChatHandler(chatService service.ChatService, receiptService service.ReceiptService, log logger.Logger) *ChatHandler {
	return &ChatHandler{
		chatService:    chatService,
		receiptService: receiptService,
		log:            log,
	}
}

func (h *ChatHandler) GetMessages(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	roomID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	messages, err := h.chatService.GetMessages(c.Request.Context(), roomID, userID, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, messages)
}

type SendMessageRequest struct {
	MessageType     string                 `json:"message_type"`
	Content         string                 `json:"content"`
	FileURL         *string                `json:"file_url,omitempty"`
	FileName        *string                `json:"file_name,omitempty"`
	FileSize        *int64                 `json:"file_size,omitempty"`
	FileType        *string                `json:"file_type,omitempty"`
	ThumbnailURL    *string                `json:"thumbnail_url,omitempty"`
	Duration        *int                   `json:"duration,omitempty"`
	ParentMessageID *uuid.UUID             `json:"parent_message_id,omitempty"`
	IsForwarded     bool                   `json:"is_forwarded"`
	MentionedUsers  []uuid.UUID            `json:"mentioned_user_ids,omitempty"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
}

func (h *ChatHandler) SendMessage(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	roomID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.MessageType == "" {
		req.MessageType = domain.MessageTypeText
	}

	message, err := h.chatService.SendMessage(c.Request.Context(), service.SendMessageInput{
		RoomID:           roomID,
		MessageType:      req.MessageType,
		Content:          req.Content,
		FileURL:          req.FileURL,
		FileName:         req.FileName,
		FileSize:         req.FileSize,
		FileType:         req.FileType,
		ThumbnailURL:     req.ThumbnailURL,
		Duration:         req.Duration,
		ParentMessageID:  req.ParentMessageID,
		IsForwarded:      req.IsForwarded,
		MentionedUserIDs: req.MentionedUsers,
		Metadata:         req.Metadata,
	}, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, message)
}

type EditMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

func (h *ChatHandler) EditMessage(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	messageID, ok := pathUUID(c, "messageId")
	if !ok {
		return
	}

	var req EditMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	message, err := h.chatService.EditMessage(c.Request.Context(), messageID, userID, req.Content)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, message)
}

func (h *ChatHandler) DeleteMessage(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	messageID, ok := pathUUID(c, "messageId")
	if !ok {
		return
	}

	if err := h.chatService.DeleteMessage(c.Request.Context(), messageID, userID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Message deleted"})
}

func (h *ChatHandler) PinMessage(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	messageID, ok := pathUUID(c, "messageId")
	if !ok {
		return
	}

	if err := h.chatService.PinMessage(c.Request.Context(), messageID, userID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Message pinned"})
}

func (h *ChatHandler) UnpinMessage(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	messageID, ok := pathUUID(c, "messageId")
	if !ok {
		return
	}

	if err := h.chatService.UnpinMessage(c.Request.Context(), messageID, userID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Message unpinned"})
}

func (h *ChatHandler) GetPinnedMessages(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	roomID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	messages, err := h.chatService.GetPinnedMessages(c.Request.Context(), roomID, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, messages)
}

type ReactionRequest struct {
	Emoji string `json:"emoji" binding:"required"`
}

func (h *ChatHandler) AddReaction(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	messageID, ok := pathUUID(c, "messageId")
	if !ok {
		return
	}

	var req ReactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.chatService.ReactToMessage(c.Request.Context(), messageID, userID, req.Emoji); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Reaction added"})
}

func (h *ChatHandler) RemoveReaction(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	messageID, ok := pathUUID(c, "messageId")
	if !ok {
		return
	}

	var req ReactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.chatService.RemoveReaction(c.Request.Context(), messageID, userID, req.Emoji); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Reaction removed"})
}

func (h *ChatHandler) GetReactions(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	messageID, ok := pathUUID(c, "messageId")
	if !ok {
		return
	}

	reactions, err := h.chatService.GetReactions(c.Request.Context(), messageID, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, reactions)
}

func (h *ChatHandler) SearchMessages(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	roomID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	term := c.Query("q")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	messages, err := h.chatService.SearchMessages(c.Request.Context(), roomID, userID, term, limit)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, messages)
}

func (h *ChatHandler) MarkRoomAsRead(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	roomID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	if err := h.receiptService.MarkRoomAsRead(c.Request.Context(), roomID, userID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Room marked as read"})
}

func (h *ChatHandler) MarkMessageAsRead(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	messageID, ok := pathUUID(c, "messageId")
	if !ok {
		return
	}

	if err := h.receiptService.MarkMessageAsRead(c.Request.Context(), messageID, userID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Message marked as read"})
}
