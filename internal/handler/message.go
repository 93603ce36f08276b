package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "convivo.im.messaging/internal/errors"
	"convivo.im.messaging/internal/middleware"
	"convivo.im.messaging/internal/service"
	"convivo.im.messaging/pkg/response"
	"convivo.im.messaging/pkg/wire"
)

// MessageHandler exposes message endpoints.
type MessageHandler struct {
	messages      *service.MessageService
	conversations *service.ConversationService
}

func NewMessageHandler(messages *service.MessageService, conversations *service.ConversationService) *MessageHandler {
	return &MessageHandler{
		messages:      messages,
		conversations: conversations,
	}
}

type sendMessageRequest struct {
	Content     string                  `json:"content"`
	Attachments []wire.AttachmentUpload `json:"attachments"`
}

type reactionRequest struct {
	Emoji string `json:"emoji" binding:"required"`
}

// Page returns one ascending page of a conversation's messages.
// GET /api/v1/conversations/:id/messages?limit=&offset=
func (h *MessageHandler) Page(c *gin.Context) {
	userID := middleware.GetUserID(c)

	conversationID, ok := pathID(c, "id")
	if !ok {
		return
	}
	if !h.requireParticipant(c, conversationID, userID) {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	messages, err := h.messages.FetchPage(c.Request.Context(), conversationID, limit, offset)
	if err != nil {
		response.ErrorFromAppError(c, err)
		return
	}

	response.Success(c, gin.H{"list": messages})
}

// Send appends a message, uploading any attachments first.
// POST /api/v1/conversations/:id/messages
func (h *MessageHandler) Send(c *gin.Context) {
	userID := middleware.GetUserID(c)

	conversationID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithMsg(c, apperrors.CodeInvalidParams, err.Error())
		return
	}

	msg, err := h.messages.Send(c.Request.Context(), conversationID, userID, req.Content, req.Attachments)
	if err != nil {
		response.ErrorFromAppError(c, err)
		return
	}

	response.Success(c, msg)
}

// Delete removes the caller's own message.
// DELETE /api/v1/messages/:id
func (h *MessageHandler) Delete(c *gin.Context) {
	userID := middleware.GetUserID(c)

	messageID, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.messages.Delete(c.Request.Context(), messageID, userID); err != nil {
		response.ErrorFromAppError(c, err)
		return
	}

	response.Success(c, nil)
}

// MarkRead upserts a per-message read receipt.
// POST /api/v1/messages/:id/read
func (h *MessageHandler) MarkRead(c *gin.Context) {
	userID := middleware.GetUserID(c)

	messageID, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := h.messages.MarkRead(c.Request.Context(), messageID, userID); err != nil {
		response.ErrorFromAppError(c, err)
		return
	}

	response.Success(c, nil)
}

// AddReaction attaches an emoji reaction; repeats are no-ops.
// POST /api/v1/messages/:id/reactions
func (h *MessageHandler) AddReaction(c *gin.Context) {
	userID := middleware.GetUserID(c)

	messageID, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req reactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithMsg(c, apperrors.CodeInvalidParams, err.Error())
		return
	}

	if err := h.messages.AddReaction(c.Request.Context(), messageID, userID, req.Emoji); err != nil {
		response.ErrorFromAppError(c, err)
		return
	}

	response.Success(c, nil)
}

// RemoveReaction detaches the caller's reaction.
// DELETE /api/v1/messages/:id/reactions/:emoji
func (h *MessageHandler) RemoveReaction(c *gin.Context) {
	userID := middleware.GetUserID(c)

	messageID, ok := pathID(c, "id")
	if !ok {
		return
	}

	emoji := c.Param("emoji")
	if emoji == "" {
		response.Error(c, apperrors.CodeInvalidParams)
		return
	}

	if err := h.messages.RemoveReaction(c.Request.Context(), messageID, userID, emoji); err != nil {
		response.ErrorFromAppError(c, err)
		return
	}

	response.Success(c, nil)
}

func (h *MessageHandler) requireParticipant(c *gin.Context, conversationID, userID int64) bool {
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

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, apperrors.CodeInvalidParams)
		return 0, false
	}
	return id, true
}
