package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	db "github.com/trialbridge/trialbridge/internal/storage"
)

// errorBody is the envelope every error response uses.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func respondError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, errorBody{Error: errorDetail{Code: code, Message: message}})
}

func respondErrorDetails(c *gin.Context, status int, code, message string, details any) {
	c.AbortWithStatusJSON(status, errorBody{Error: errorDetail{Code: code, Message: message, Details: details}})
}

// respondStorageError maps storage sentinel errors onto API responses and
// logs anything unexpected as a 500.
func (s *Server) respondStorageError(c *gin.Context, err error, notFoundMsg, duplicateMsg string) {
	switch {
	case errors.Is(err, db.ErrNotFound):
		respondError(c, http.StatusNotFound, "not_found", notFoundMsg)
	case errors.Is(err, db.ErrDuplicate):
		respondError(c, http.StatusConflict, "conflict", duplicateMsg)
	case errors.Is(err, db.ErrEventFull):
		respondError(c, http.StatusConflict, "event_full", "event is at capacity")
	default:
		s.logger.Error().Err(err).Str("path", c.FullPath()).Msg("storage error")
		respondError(c, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func badRequest(c *gin.Context, message string) {
	respondError(c, http.StatusBadRequest, "validation_error", message)
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondErrorDetails(c, http.StatusBadRequest, "validation_error", "invalid request body", err.Error())
		return false
	}

	return true
}
