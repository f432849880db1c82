package handler

import (
	"net/http"

	"wedhabesha-chat/internal/services"
	"wedhabesha-chat/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

type ThreadHandler struct {
	service *services.ThreadService
}

func NewThreadHandler(service *services.ThreadService) *ThreadHandler {
	return &ThreadHandler{service: service}
}

func (h *ThreadHandler) Create(c *gin.Context) {
	var req httpdto.CreateThreadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	result, err := h.service.CreateThread(c.Request.Context(), req.CoupleID, req.VendorID, &services.ThreadMetadata{
		LeadID:      req.LeadID,
		ServiceType: req.ServiceType,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	status := http.StatusCreated
	if result.AlreadyExists {
		status = http.StatusOK
	}
	c.JSON(status, httpdto.NewSuccessResponse(result))
}

func (h *ThreadHandler) Get(c *gin.Context) {
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

	view, err := h.service.GetThread(c.Request.Context(), threadID, id.UserID, id.UserType)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(view))
}

func (h *ThreadHandler) List(c *gin.Context) {
	id, ok := services.IdentityFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	includeInactive := c.Query("include_inactive") == "true"
	page, err := h.service.GetThreadsForUser(c.Request.Context(), id.UserID, id.UserType,
		queryInt(c, "limit", 0), queryInt(c, "offset", 0), includeInactive)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(page))
}

func (h *ThreadHandler) Archive(c *gin.Context) {
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

	result, err := h.service.ArchiveThread(c.Request.Context(), threadID, id.UserID, id.UserType)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(result))
}

func (h *ThreadHandler) Reactivate(c *gin.Context) {
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

	result, err := h.service.ReactivateThread(c.Request.Context(), threadID, id.UserID, id.UserType)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(result))
}

func (h *ThreadHandler) Stats(c *gin.Context) {
	id, ok := services.IdentityFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	stats, err := h.service.GetThreadStats(c.Request.Context(), id.UserID, id.UserType)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(stats))
}
