package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/getmentor/getmentor-sessions/internal/middleware"
	"github.com/getmentor/getmentor-sessions/internal/models"
	"github.com/getmentor/getmentor-sessions/internal/services"
	"github.com/gin-gonic/gin"
)

// SessionHandler handles session booking and lifecycle endpoints
type SessionHandler struct {
	service services.SessionServiceInterface
}

// NewSessionHandler creates a new SessionHandler
func NewSessionHandler(service services.SessionServiceInterface) *SessionHandler {
	return &SessionHandler{service: service}
}

// Book handles POST /api/v1/sessions. The caller books as the mentee.
func (h *SessionHandler) Book(c *gin.Context) {
	user, err := middleware.GetUserSession(c)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "Unauthorized", err)
		return
	}

	var req models.BookSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErrorWithDetails(c, http.StatusBadRequest, "Validation failed", ParseValidationErrors(err), err)
		return
	}

	session, err := h.service.Book(c.Request.Context(), user.UserID, &req)
	if err != nil {
		respondServiceError(c, err, "Failed to book session")
		return
	}

	c.JSON(http.StatusCreated, session)
}

// GetSession handles GET /api/v1/sessions/:id
func (h *SessionHandler) GetSession(c *gin.Context) {
	user, err := middleware.GetUserSession(c)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "Unauthorized", err)
		return
	}

	sessionID, ok := entityID(c, "session")
	if !ok {
		return
	}

	details, err := h.service.GetSession(c.Request.Context(), user.UserID, sessionID)
	if err != nil {
		respondServiceError(c, err, "Failed to fetch session")
		return
	}

	c.JSON(http.StatusOK, details)
}

// ListSessions handles GET /api/v1/sessions?role=&status=&page=&pageSize=
func (h *SessionHandler) ListSessions(c *gin.Context) {
	user, err := middleware.GetUserSession(c)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "Unauthorized", err)
		return
	}

	var query models.ListSessionsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondErrorWithDetails(c, http.StatusBadRequest, "Validation failed", ParseValidationErrors(err), err)
		return
	}

	response, err := h.service.ListSessions(c.Request.Context(), user.UserID, &query)
	if err != nil {
		respondServiceError(c, err, "Failed to fetch sessions")
		return
	}

	c.JSON(http.StatusOK, response)
}

// Cancel handles POST /api/v1/sessions/:id/cancel. The body is optional.
func (h *SessionHandler) Cancel(c *gin.Context) {
	user, err := middleware.GetUserSession(c)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "Unauthorized", err)
		return
	}

	sessionID, ok := entityID(c, "session")
	if !ok {
		return
	}

	var req models.CancelSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		respondErrorWithDetails(c, http.StatusBadRequest, "Validation failed", ParseValidationErrors(err), err)
		return
	}

	session, err := h.service.Cancel(c.Request.Context(), user.UserID, sessionID, req.Reason)
	if err != nil {
		respondServiceError(c, err, "Failed to cancel session")
		return
	}

	c.JSON(http.StatusOK, session)
}

// Start handles POST /api/v1/sessions/:id/start
func (h *SessionHandler) Start(c *gin.Context) {
	h.transition(c, h.service.Start, "Failed to start session")
}

// Complete handles POST /api/v1/sessions/:id/complete
func (h *SessionHandler) Complete(c *gin.Context) {
	h.transition(c, h.service.Complete, "Failed to complete session")
}

func (h *SessionHandler) transition(
	c *gin.Context,
	apply func(ctx context.Context, userID, sessionID string) (*models.Session, error),
	failure string,
) {
	user, err := middleware.GetUserSession(c)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "Unauthorized", err)
		return
	}

	sessionID, ok := entityID(c, "session")
	if !ok {
		return
	}

	session, err := apply(c.Request.Context(), user.UserID, sessionID)
	if err != nil {
		respondServiceError(c, err, failure)
		return
	}

	c.JSON(http.StatusOK, session)
}

// UpdateNotes handles PUT /api/v1/sessions/:id/notes
func (h *SessionHandler) UpdateNotes(c *gin.Context) {
	user, err := middleware.GetUserSession(c)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "Unauthorized", err)
		return
	}

	sessionID, ok := entityID(c, "session")
	if !ok {
		return
	}

	var req models.UpdateNotesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErrorWithDetails(c, http.StatusBadRequest, "Validation failed", ParseValidationErrors(err), err)
		return
	}

	session, err := h.service.UpdateNotes(c.Request.Context(), user.UserID, sessionID, req.Notes)
	if err != nil {
		respondServiceError(c, err, "Failed to update notes")
		return
	}

	c.JSON(http.StatusOK, session)
}

// ListReminders handles GET /api/v1/sessions/:id/reminders
func (h *SessionHandler) ListReminders(c *gin.Context) {
	user, err := middleware.GetUserSession(c)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "Unauthorized", err)
		return
	}

	sessionID, ok := entityID(c, "session")
	if !ok {
		return
	}

	reminders, err := h.service.ListReminders(c.Request.Context(), user.UserID, sessionID)
	if err != nil {
		respondServiceError(c, err, "Failed to fetch reminders")
		return
	}

	c.JSON(http.StatusOK, gin.H{"sessionId": sessionID, "reminders": reminders})
}
