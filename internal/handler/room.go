package handler

import (
	"net/http"
	"strconv"

	"chat_service/internal/service"
	"chat_service/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type RoomHandler struct {
	roomService service.RoomService
	log         logger.Logger
}

func NewRoomHandler(roomService service.RoomService, log logger.Logger) *RoomHandler {
	return &RoomHandler{
		roomService: roomService,
		log:         log,
	}
}

type CreateRoomRequest struct {
	Name        string      `json:"name"`
	Description *string     `json:"description,omitempty"`
	RoomType    string      `json:"room_type" binding:"required"`
	AvatarURL   *string     `json:"avatar_url,omitempty"`
	MaxMembers  int         `json:"max_members"`
	IsPrivate   bool        `json:"is_private"`
	RoomCode    *string     `json:"room_code,omitempty"`
	InviteeIDs  []uuid.UUID `json:"invitee_ids"`
}

func (h *RoomHandler) Create(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	room, err := h.roomService.CreateRoom(c.Request.Context(), service.CreateRoomInput{
		Name:        req.Name,
		Description: req.Description,
		RoomType:    req.RoomType,
		AvatarURL:   req.AvatarURL,
		MaxMembers:  req.MaxMembers,
		IsPrivate:   req.IsPrivate,
		RoomCode:    req.RoomCode,
		InviteeIDs:  req.InviteeIDs,
	}, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	h.log.Info("Room created", "room_id", room.ID, "room_type", room.RoomType, "user_id", userID)
	c.JSON(http.StatusCreated, room)
}

type DirectRoomRequest struct {
	UserID uuid.UUID `json:"user_id" binding:"required"`
}

func (h *RoomHandler) GetOrCreateDirect(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req DirectRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	room, err := h.roomService.GetOrCreateDirectRoom(c.Request.Context(), userID, req.UserID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, room)
}

func (h *RoomHandler) List(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	rooms, err := h.roomService.ListRooms(c.Request.Context(), userID, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, rooms)
}

func (h *RoomHandler) GetByID(c *gin.Context) {
	roomID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	room, err := h.roomService.GetByID(c.Request.Context(), roomID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, room)
}

func (h *RoomHandler) GetParticipants(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	roomID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	participants, err := h.roomService.GetParticipants(c.Request.Context(), roomID, userID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, participants)
}

type AddParticipantRequest struct {
	UserID uuid.UUID `json:"user_id" binding:"required"`
}

func (h *RoomHandler) AddParticipant(c *gin.Context) {
	actorID, ok := currentUserID(c)
	if !ok {
		return
	}
	roomID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req AddParticipantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	participant, err := h.roomService.AddParticipant(c.Request.Context(), roomID, req.UserID, actorID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, participant)
}

func (h *RoomHandler) RemoveParticipant(c *gin.Context) {
	actorID, ok := currentUserID(c)
	if !ok {
		return
	}
	roomID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	targetID, ok := pathUUID(c, "userId")
	if !ok {
		return
	}

	if err := h.roomService.RemoveParticipant(c.Request.Context(), roomID, targetID, actorID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Participant removed"})
}

type UpdateRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

func (h *RoomHandler) UpdateRole(c *gin.Context) {
	actorID, ok := currentUserID(c)
	if !ok {
		return
	}
	roomID, ok := pathUUID(c, "id")
	if !ok {
		return
	}
	targetID, ok := pathUUID(c, "userId")
	if !ok {
		return
	}

	var req UpdateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.roomService.UpdateRole(c.Request.Context(), roomID, targetID, req.Role, actorID); err != nil {
		respondError(c, err)
		return
	}

	h.log.Info("Participant role updated", "room_id", roomID, "user_id", targetID, "role", req.Role, "actor_id", actorID)
	c.JSON(http.StatusOK, gin.H{"message": "Role updated"})
}

func (h *RoomHandler) Leave(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	roomID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	if err := h.roomService.LeaveRoom(c.Request.Context(), roomID, userID); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Left room"})
}

func (h *RoomHandler) Delete(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	roomID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	if err := h.roomService.DeleteRoom(c.Request.Context(), roomID, userID); err != nil {
		respondError(c, err)
		return
	}

	h.log.Info("Room deleted", "room_id", roomID, "user_id", userID)
	c.JSON(http.StatusOK, gin.H{"message": "Room deleted"})
}

type ParticipantSettingsRequest struct {
	IsMuted        *bool   `json:"is_muted,omitempty"`
	IsPinned       *bool   `json:"is_pinned,omitempty"`
	CustomNickname *string `json:"custom_nickname,omitempty"`
}

func (h *RoomHandler) UpdateSettings(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	roomID, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req ParticipantSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.roomService.UpdateParticipantSettings(c.Request.Context(), roomID, userID, req.IsMuted, req.IsPinned, req.CustomNickname); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Settings updated"})
}
