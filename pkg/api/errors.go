package api

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tarsiersync/forgecode/pkg/apperrors"
)

// writeError maps a handler error to an HTTP status and JSON body, mirroring
// the teacher's mapServiceError shape but over apperrors' taxonomy instead
// of the ent-backed services package.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperrors.ErrUserCancellation):
		c.JSON(http.StatusConflict, gin.H{"error": "turn was cancelled"})
	case errors.Is(err, apperrors.ErrToolNotFound):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, sql.ErrNoRows):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	default:
		var llmErr *apperrors.LLMClientError
		if errors.As(err, &llmErr) {
			c.JSON(http.StatusBadGateway, gin.H{"error": llmErr.UIMessage()})
			return
		}
		slog.Error("unexpected request error", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
