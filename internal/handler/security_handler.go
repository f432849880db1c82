package handler

import (
	"net/http"

	"wedhabesha-chat/internal/proxy"
	"wedhabesha-chat/internal/services"
	"wedhabesha-chat/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

// SecurityHandler exposes the audit trail and derived security signals for
// the authenticated user.
type SecurityHandler struct {
	access *proxy.AccessControl
}

func NewSecurityHandler(access *proxy.AccessControl) *SecurityHandler {
	return &SecurityHandler{access: access}
}

func (h *SecurityHandler) AccessLogs(c *gin.Context) {
	id, ok := services.IdentityFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	logs, err := h.access.GetAccessLogs(c.Request.Context(), id.UserID,
		queryInt(c, "limit", 50), c.Query("result"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(logs))
}

func (h *SecurityHandler) Stats(c *gin.Context) {
	id, ok := services.IdentityFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	stats, err := h.access.GetSecurityStats(c.Request.Context(), id.UserID, queryInt(c, "days", 0))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(stats))
}

func (h *SecurityHandler) Suspicious(c *gin.Context) {
	id, ok := services.IdentityFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse("unauthorized", "UNAUTHORIZED"))
		return
	}

	result, err := h.access.CheckSuspiciousActivity(c.Request.Context(), id.UserID,
		queryInt(c, "threshold", 0), queryInt(c, "window_minutes", 0))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(result))
}
