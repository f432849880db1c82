package handler

import (
	"net/http"

	"wedhabesha-chat/internal/services"
	"wedhabesha-chat/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

type MessageHandler struct {
	service *services.MessageService
}

func NewMessageHandler(service *services.MessageService) *MessageHandler {
	return &MessageHandler{service: service}
}

func (h *MessageHandler) Send(c *gin.Context) {
	var req httpdto.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	id, ok := services.IdentityFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	threadID, err := parseUUID(req.ThreadID)
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid thread_id", "INVALID_REQUEST"))
		return
	}

	attachments := make([]services.AttachmentInput, 0, len(req.Attachments))
	for _, a := range req.Attachments {
		attachments = append(attachments, services.AttachmentInput{
			FileName:   a.FileName,
			FileType:   a.FileType,
			SizeBytes:  a.SizeBytes,
			StorageKey: a.StorageKey,
		})
	}

	view, err := h.service.SendMessage(c.Request.Context(), services.SendMessageInput{
		ThreadID:    threadID,
		SenderID:    id.UserID,
		SenderType:  id.UserType,
		Content:     req.Content,
		MessageType: req.MessageType,
		Priority:    req.Priority,
		Attachments: attachments,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(view))
}

func (h *MessageHandler) List(c *gin.Context) {
	id, ok := services.IdentityFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	threadID, err := parseUUID(c.Param("threadId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid thread id", "INVALID_REQUEST"))
		return
	}

	page, err := h.service.GetMessages(c.Request.Context(), threadID, id.UserID, id.UserType,
		queryInt(c, "limit", 0), queryInt(c, "offset", 0))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(page))
}

func (h *MessageHandler) MarkRead(c *gin.Context) {
	id, ok := services.IdentityFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	messageID, err := parseUUID(c.Param("messageId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid message id", "INVALID_REQUEST"))
		return
	}

	result, err := h.service.MarkAsRead(c.Request.Context(), messageID, id.UserID, id.UserType)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(result))
}

func (h *MessageHandler) Delete(c *gin.Context) {
	id, ok := services.IdentityFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	messageID, err := parseUUID(c.Param("messageId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid message id", "INVALID_REQUEST"))
		return
	}

	result, err := h.service.DeleteMessage(c.Request.Context(), messageID, id.UserID, id.UserType)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(result))
}

func (h *MessageHandler) Search(c *gin.Context) {
	id, ok := services.IdentityFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	threadID, err := parseUUID(c.Param("threadId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid thread id", "INVALID_REQUEST"))
		return
	}

	result, err := h.service.SearchMessages(c.Request.Context(), threadID, id.UserID, id.UserType,
		c.Query("q"), queryInt(c, "limit", 0))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(result))
}

func (h *MessageHandler) RotateKey(c *gin.Context) {
	id, ok := services.IdentityFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	threadID, err := parseUUID(c.Param("threadId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid thread id", "INVALID_REQUEST"))
		return
	}

	result, err := h.service.RotateThreadKey(c.Request.Context(), threadID, id.UserID, id.UserType)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(result))
}

func (h *MessageHandler) Stats(c *gin.Context) {
	id, ok := services.IdentityFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	threadID, err := parseUUID(c.Param("threadId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid thread id", "INVALID_REQUEST"))
		return
	}

	stats, err := h.service.GetThreadStats(c.Request.Context(), threadID, id.UserID, id.UserType)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(stats))
}
