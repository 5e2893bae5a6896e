package errors

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// WriteHTTP converts a service error into an HTTP response. Keeps the
// handler layer clean by centralizing status mapping.
func WriteHTTP(c *gin.Context, err error) {
	if err == nil {
		return
	}

	var ve *ValidationError
	if errors.As(err, &ve) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "details": ve.Messages})
		return
	}

	var ae *AuthorizationError
	if errors.As(err, &ae) {
		c.JSON(http.StatusForbidden, gin.H{"error": ae.Msg, "reason": string(ae.Reason)})
		return
	}

	var ne *NotFoundError
	if errors.As(err, &ne) {
		c.JSON(http.StatusNotFound, gin.H{"error": ne.Msg})
		return
	}

	var ce *ConflictError
	if errors.As(err, &ce) {
		c.JSON(http.StatusConflict, gin.H{"error": ce.Msg})
		return
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "record not found"})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "request timed out"})
	case errors.Is(err, context.Canceled):
		c.JSON(499, gin.H{"error": "request was canceled"})
	default:
		// TransientStoreError and anything unclassified: retryable 500.
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
