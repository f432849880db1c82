package handler

import (
	"net/http"

	"wedhabesha-chat/internal/services"
	"wedhabesha-chat/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

type UploadHandler struct {
	service *services.AttachmentService
}

func NewUploadHandler(service *services.AttachmentService) *UploadHandler {
	return &UploadHandler{service: service}
}

func (h *UploadHandler) Prepare(c *gin.Context) {
	id, ok := services.IdentityFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	var req httpdto.PrepareUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	threadID, err := parseUUID(req.ThreadID)
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid thread_id", "INVALID_REQUEST"))
		return
	}

	ticket, err := h.service.PrepareUpload(c.Request.Context(), threadID, id.UserID, id.UserType,
		req.FileName, req.ContentType, req.SizeBytes)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(ticket))
}

func (h *UploadHandler) Download(c *gin.Context) {
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

	key := c.Query("key")
	if key == "" {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("key is required", "INVALID_REQUEST"))
		return
	}

	url, err := h.service.DownloadURL(c.Request.Context(), threadID, id.UserID, id.UserType, key)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"url": url}))
}
