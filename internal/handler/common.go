package handler

import (
	"errors"
	"net/http"
	"strconv"

	"wedhabesha-chat/internal/transport/httpdto"
	chat_errors "wedhabesha-chat/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func parseUUID(value string) (uuid.UUID, error) {
	return uuid.Parse(value)
}

func queryInt(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

// writeError maps service errors onto HTTP statuses through the sentinel
// taxonomy.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, chat_errors.ErrInvalidInput), errors.Is(err, chat_errors.ErrInvalidFormat):
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse(err.Error(), "INVALID_REQUEST"))
	case errors.Is(err, chat_errors.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, httpdto.NewErrorResponse(err.Error(), "UNAUTHORIZED"))
	case errors.Is(err, chat_errors.ErrForbidden):
		c.JSON(http.StatusForbidden, httpdto.NewErrorResponse(err.Error(), "FORBIDDEN"))
	case errors.Is(err, chat_errors.ErrNotFound):
		c.JSON(http.StatusNotFound, httpdto.NewErrorResponse(err.Error(), "NOT_FOUND"))
	case errors.Is(err, chat_errors.ErrAlreadyExists), errors.Is(err, chat_errors.ErrConflict):
		c.JSON(http.StatusConflict, httpdto.NewErrorResponse(err.Error(), "CONFLICT"))
	case errors.Is(err, chat_errors.ErrServiceUnavailable):
		c.JSON(http.StatusServiceUnavailable, httpdto.NewErrorResponse(err.Error(), "SERVICE_UNAVAILABLE"))
	default:
		c.JSON(http.StatusInternalServerError, httpdto.NewErrorResponse("internal error", "INTERNAL_ERROR"))
	}
}
