package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/stagesync/internal/orchestrator"
	"github.com/mrlokans/stagesync/internal/registry"
	"github.com/mrlokans/stagesync/internal/transport"
)

// respondError maps domain errors to HTTP status codes with a uniform
// JSON shape. Validation rejections carry the per-item reasons so the
// caller can surface them.
func respondError(c *gin.Context, err error) {
	var capErr *orchestrator.CapabilityError
	var validationErr *transport.ValidationError
	var transportErr *transport.TransportError

	switch {
	case errors.Is(err, registry.ErrUnknownPlatform):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &capErr):
		c.JSON(http.StatusConflict, gin.H{
			"error":     capErr.Error(),
			"platform":  capErr.PlatformID,
			"operation": capErr.Operation,
		})
	case errors.Is(err, orchestrator.ErrNotConnected):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, transport.ErrAuthRequired):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case errors.As(err, &validationErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{
			"error":    validationErr.Error(),
			"rejected": validationErr.Rejected,
		})
	case errors.As(err, &transportErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": transportErr.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
