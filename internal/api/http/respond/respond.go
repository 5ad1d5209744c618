package respond

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Zenkai92/Modelify/internal/logging"
	"github.com/Zenkai92/Modelify/internal/projects/domain"
	"github.com/Zenkai92/Modelify/internal/projects/service"
	"github.com/Zenkai92/Modelify/internal/upstream"
	"github.com/Zenkai92/Modelify/internal/users"
)

// Error writes the HTTP rendering of a service error. Unknown errors are
// logged and hidden behind a generic 500.
func Error(c *gin.Context, err error) {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error(), "field": verr.Field})
		return
	}

	// A failure of a service we front is the client's cue to retry, not a bug
	// of ours to hide.
	var uerr *upstream.Error
	if errors.As(err, &uerr) {
		logging.FromContext(c.Request.Context()).Error("http_respond", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": uerr.Error(), "retryable": true})
		return
	}

	switch {
	case errors.Is(err, domain.ErrProjectNotFound), errors.Is(err, users.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrNotOwner), errors.Is(err, domain.ErrRoleForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrPaymentPending):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrConfirmationExpired):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		logging.FromContext(c.Request.Context()).Error("http_respond", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
