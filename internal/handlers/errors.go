package handlers

import (
	"errors"
	"net/http"
	"time"

	apperrors "github.com/getmentor/getmentor-sessions/pkg/errors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// entityID returns the :id path param. Slots, sessions and reviews are keyed
// by UUID, so anything else is answered with 404 before it reaches the store.
func entityID(c *gin.Context, resource string) (string, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		respondError(c, http.StatusNotFound, "Not found", apperrors.NotFoundError(resource))
		return "", false
	}
	return id, true
}

// attachError attaches err to the gin context so the observability middleware
// can include the reason in the request log. c.Error() returns *gin.Error (not
// the error interface), so we suppress errcheck here intentionally.
func attachError(c *gin.Context, err error) {
	if err != nil {
		_ = c.Error(err) //nolint:errcheck
	}
}

// respondError sends an error JSON response and attaches the error to the gin context
// so the observability middleware can include the reason in the request log.
func respondError(c *gin.Context, status int, message string, err error) {
	attachError(c, err)
	c.JSON(status, gin.H{"error": message})
}

// respondErrorWithDetails sends an error response with an additional details field.
func respondErrorWithDetails(c *gin.Context, status int, message string, details any, err error) {
	attachError(c, err)
	c.JSON(status, gin.H{"error": message, "details": details})
}

// respondServiceError maps a service error to a status code. Validation, overlap
// and transition errors carry enough detail for the caller to correct the request.
func respondServiceError(c *gin.Context, err error, fallbackMessage string) {
	var validationErr *apperrors.ValidationError
	var overlapErr *apperrors.OverlapError
	var transitionErr *apperrors.InvalidTransitionError

	switch {
	case errors.As(err, &validationErr):
		respondErrorWithDetails(c, http.StatusBadRequest, "Validation failed", []ValidationError{{
			Field:   validationErr.Field,
			Message: validationErr.Reason,
		}}, err)
	case errors.As(err, &overlapErr):
		respondErrorWithDetails(c, http.StatusConflict, "Time window overlaps an existing "+overlapErr.Kind, gin.H{
			"kind":       overlapErr.Kind,
			"conflictId": overlapErr.ConflictID,
			"start":      overlapErr.Start.UTC().Format(time.RFC3339),
			"end":        overlapErr.End.UTC().Format(time.RFC3339),
		}, err)
	case errors.As(err, &transitionErr):
		respondErrorWithDetails(c, http.StatusConflict, "Invalid status transition", gin.H{
			"currentStatus": transitionErr.From,
			"event":         transitionErr.Event,
			"targetStatus":  transitionErr.To,
			"reason":        transitionErr.Reason,
		}, err)
	case errors.Is(err, apperrors.ErrConflict):
		respondError(c, http.StatusConflict, err.Error(), err)
	case errors.Is(err, apperrors.ErrNotFound):
		respondError(c, http.StatusNotFound, "Not found", err)
	case errors.Is(err, apperrors.ErrAccessDenied):
		respondError(c, http.StatusForbidden, "Access denied", err)
	case errors.Is(err, apperrors.ErrUnauthorized):
		respondError(c, http.StatusUnauthorized, "Unauthorized", err)
	default:
		respondError(c, http.StatusInternalServerError, fallbackMessage, err)
	}
}
