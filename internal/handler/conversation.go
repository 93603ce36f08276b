package handler

import (
	"github.com/gin-gonic/gin"

	apperrors "convivo.im.messaging/internal/errors"
	"convivo.im.messaging/internal/middleware"
	"convivo.im.messaging/internal/service"
	"convivo.im.messaging/pkg/response"
)

// ConversationHandler exposes conversation endpoints.
type ConversationHandler struct {
	conversations *service.ConversationService
}

func NewConversationHandler(conversations *service.ConversationService) *ConversationHandler {
	return &ConversationHandler{conversations: conversations}
}

type createConversationRequest struct {
	Title          string  `json:"title"`
	ParticipantIDs []int64 `json:"participant_ids" binding:"required"`
	IsGroup        bool    `json:"is_group"`
}

type markReadRequest struct {
	MessageID int64 `json:"message_id" binding:"required"`
}

// List returns the caller's conversations with unread annotations.
// GET /api/v1/conversations
func (h *ConversationHandler) List(c *gin.Context) {
	userID := middleware.GetUserID(c)

	summaries, err := h.conversations.ListForUser(c.Request.Context(), userID)
	if err != nil {
		response.ErrorFromAppError(c, err)
		return
	}

	response.Success(c, gin.H{"list": summaries})
}

// Create starts a conversation; the caller is added automatically.
// POST /api/v1/conversations
func (h *ConversationHandler) Create(c *gin.Context) {
	userID := middleware.GetUserID(c)

	var req createConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithMsg(c, apperrors.CodeInvalidParams, err.Error())
		return
	}

	// the creator is always a participant
	participantIDs := append([]int64{userID}, req.ParticipantIDs...)

	conv, err := h.conversations.Create(c.Request.Context(), req.Title, participantIDs, req.IsGroup)
	if err != nil {
		response.ErrorFromAppError(c, err)
		return
	}

	response.Success(c, conv)
}

// Get returns one conversation with its participants.
// GET /api/v1/conversations/:id
func (h *ConversationHandler) Get(c *gin.Context) {
	userID := middleware.GetUserID(c)

	conversationID, ok := pathID(c, "id")
	if !ok {
		return
	}
	if !h.requireParticipant(c, conversationID, userID) {
		return
	}

	detail, err := h.conversations.FetchOne(c.Request.Context(), conversationID)
	if err != nil {
		response.ErrorFromAppError(c, err)
		return
	}
	if detail == nil {
		response.Error(c, apperrors.CodeConversationNotFound)
		return
	}

	response.Success(c, detail)
}

// MarkRead advances the caller's read pointer.
// POST /api/v1/conversations/:id/read
func (h *ConversationHandler) MarkRead(c *gin.Context) {
	userID := middleware.GetUserID(c)

	conversationID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req markReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithMsg(c, apperrors.CodeInvalidParams, err.Error())
		return
	}

	if err := h.conversations.MarkRead(c.Request.Context(), conversationID, userID, req.MessageID); err != nil {
		response.ErrorFromAppError(c, err)
		return
	}

	response.Success(c, nil)
}

// Leave deactivates the caller's membership.
// POST /api/v1/conversations/:id/leave
func (h *ConversationHandler) Leave(c *gin.Context) {
	userID := middleware.GetUserID(c)

	conversationID, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.conversations.Leave(c.Request.Context(), conversationID, userID); err != nil {
		response.ErrorFromAppError(c, err)
		return
	}

	response.Success(c, nil)
}

// TotalUnread returns the cross-conversation unread badge value.
// GET /api/v1/unread
func (h *ConversationHandler) TotalUnread(c *gin.Context) {
	userID := middleware.GetUserID(c)

	total, err := h.conversations.TotalUnread(c.Request.Context(), userID)
	if err != nil {
		response.ErrorFromAppError(c, err)
		return
	}

	response.Success(c, gin.H{"total": total})
}

func (h *ConversationHandler) requireParticipant(c *gin.Context, conversationID, userID int64) bool {
	ok, err := h.conversations.IsActiveParticipant(c.Request.Context(), conversationID, userID)
	if err != nil {
		response.ErrorFromAppError(c, err)
		return false
	}
	if !ok {
		response.Error(c, apperrors.CodeNotParticipant)
		return false
	}
	return true
}
