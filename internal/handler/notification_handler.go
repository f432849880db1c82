package handler

import (
	"net/http"

	"wedhabesha-chat/internal/services"
	"wedhabesha-chat/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

type NotificationHandler struct {
	service *services.NotificationService
}

func NewNotificationHandler(service *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{service: service}
}

func (h *NotificationHandler) List(c *gin.Context) {
	id, ok := services.IdentityFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	page, err := h.service.GetUserNotifications(c.Request.Context(), id.UserID,
		queryInt(c, "limit", 0), queryInt(c, "offset", 0))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(page))
}

func (h *NotificationHandler) MarkRead(c *gin.Context) {
	id, ok := services.IdentityFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	notificationID, err := parseUUID(c.Param("notificationId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid notification id", "INVALID_REQUEST"))
		return
	}

	if err := h.service.MarkNotificationRead(c.Request.Context(), notificationID, id.UserID); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"marked": true}))
}

func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	id, ok := services.IdentityFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	count, err := h.service.GetUnreadCount(c.Request.Context(), id.UserID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"unread": count}))
}

func (h *NotificationHandler) GetPreferences(c *gin.Context) {
	id, ok := services.IdentityFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	prefs, err := h.service.GetUserNotificationPreferences(c.Request.Context(), id.UserID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(prefs))
}

func (h *NotificationHandler) UpdatePreferences(c *gin.Context) {
	id, ok := services.IdentityFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	var req httpdto.UpdatePreferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	prefs, err := h.service.GetUserNotificationPreferences(c.Request.Context(), id.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	prefs.UserID = id.UserID
	if req.EmailNotifications != nil {
		prefs.EmailNotifications = *req.EmailNotifications
	}
	if req.PushNotifications != nil {
		prefs.PushNotifications = *req.PushNotifications
	}
	if req.SMSNotifications != nil {
		prefs.SMSNotifications = *req.SMSNotifications
	}
	prefs.QuietHoursStart = req.QuietHoursStart
	prefs.QuietHoursEnd = req.QuietHoursEnd

	if err := h.service.UpdateNotificationPreferences(c.Request.Context(), prefs); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(prefs))
}
