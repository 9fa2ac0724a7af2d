package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/getmentor/getmentor-sessions/internal/models"
	apperrors "github.com/getmentor/getmentor-sessions/pkg/errors"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func sessionTestRouter(svc *MockSessionService, userID string) *gin.Engine {
	h := NewSessionHandler(svc)
	router := gin.New()
	g := router.Group("/sessions", withUser(userID, "mentee"))
	g.POST("", h.Book)
	g.GET("", h.ListSessions)
	g.GET("/:id", h.GetSession)
	g.POST("/:id/cancel", h.Cancel)
	g.POST("/:id/start", h.Start)
	g.POST("/:id/complete", h.Complete)
	g.PUT("/:id/notes", h.UpdateNotes)
	g.GET("/:id/reminders", h.ListReminders)
	return router
}

func doJSON(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body) //nolint:errcheck
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestSessionHandler_Book(t *testing.T) {
	at := time.Date(2030, 3, 4, 10, 0, 0, 0, time.UTC)

	t.Run("created", func(t *testing.T) {
		svc := new(MockSessionService)
		svc.On("Book", mock.Anything, "mentee-1", mock.MatchedBy(func(r *models.BookSessionRequest) bool {
			return r.MentorID == "mentor-1" && r.DurationMinutes == 60 && r.ScheduledAt.Equal(at)
		})).Return(&models.Session{ID: "5b0c6f2e-1d3a-4e8b-9c7f-2a4d6e8f0a11", Status: models.SessionScheduled}, nil)

		w := doJSON(sessionTestRouter(svc, "mentee-1"), "POST", "/sessions", gin.H{
			"mentorId": "mentor-1", "scheduledAt": at.Format(time.RFC3339), "durationMinutes": 60,
		})

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.Contains(t, w.Body.String(), `"status":"SCHEDULED"`)
		svc.AssertExpectations(t)
	})

	t.Run("binding failure never reaches the service", func(t *testing.T) {
		svc := new(MockSessionService)
		w := doJSON(sessionTestRouter(svc, "mentee-1"), "POST", "/sessions", gin.H{"mentorId": "mentor-1"})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "Validation failed")
		svc.AssertNotCalled(t, "Book", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("overlap is a conflict naming the interval", func(t *testing.T) {
		svc := new(MockSessionService)
		svc.On("Book", mock.Anything, "mentee-1", mock.Anything).Return(nil, &apperrors.OverlapError{
			Kind: "session", ConflictID: "s-0", Start: at, End: at.Add(time.Hour),
		})

		w := doJSON(sessionTestRouter(svc, "mentee-1"), "POST", "/sessions", gin.H{
			"mentorId": "mentor-1", "scheduledAt": at.Format(time.RFC3339), "durationMinutes": 30,
		})

		require.Equal(t, http.StatusConflict, w.Code)
		var body struct {
			Details map[string]string `json:"details"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "s-0", body.Details["conflictId"])
		assert.Equal(t, "2030-03-04T10:00:00Z", body.Details["start"])
		assert.Equal(t, "2030-03-04T11:00:00Z", body.Details["end"])
	})

	t.Run("validation error from service", func(t *testing.T) {
		svc := new(MockSessionService)
		svc.On("Book", mock.Anything, "mentee-1", mock.Anything).
			Return(nil, apperrors.InvalidInputError("mentorId", "cannot book a session with yourself"))

		w := doJSON(sessionTestRouter(svc, "mentee-1"), "POST", "/sessions", gin.H{
			"mentorId": "mentee-1", "scheduledAt": at.Format(time.RFC3339), "durationMinutes": 30,
		})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "cannot book a session with yourself")
	})
}

func TestSessionHandler_Transitions(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		method     string
		err        error
		wantStatus int
	}{
		{"start ok", "/sessions/5b0c6f2e-1d3a-4e8b-9c7f-2a4d6e8f0a11/start", "Start", nil, http.StatusOK},
		{"complete ok", "/sessions/5b0c6f2e-1d3a-4e8b-9c7f-2a4d6e8f0a11/complete", "Complete", nil, http.StatusOK},
		{
			"invalid transition", "/sessions/5b0c6f2e-1d3a-4e8b-9c7f-2a4d6e8f0a11/start", "Start",
			&apperrors.InvalidTransitionError{From: "CANCELLED", Event: "start"}, http.StatusConflict,
		},
		{"not participant", "/sessions/5b0c6f2e-1d3a-4e8b-9c7f-2a4d6e8f0a11/complete", "Complete", apperrors.AccessDeniedError("nope"), http.StatusForbidden},
		{"not found", "/sessions/5b0c6f2e-1d3a-4e8b-9c7f-2a4d6e8f0a11/start", "Start", apperrors.NotFoundError("session"), http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockSessionService)
			if tt.err != nil {
				svc.On(tt.method, mock.Anything, "user-1", "5b0c6f2e-1d3a-4e8b-9c7f-2a4d6e8f0a11").Return(nil, tt.err)
			} else {
				svc.On(tt.method, mock.Anything, "user-1", "5b0c6f2e-1d3a-4e8b-9c7f-2a4d6e8f0a11").Return(&models.Session{ID: "5b0c6f2e-1d3a-4e8b-9c7f-2a4d6e8f0a11"}, nil)
			}

			w := doJSON(sessionTestRouter(svc, "user-1"), "POST", tt.path, nil)

			assert.Equal(t, tt.wantStatus, w.Code)
			svc.AssertExpectations(t)
		})
	}
}

func TestSessionHandler_InvalidTransitionDetails(t *testing.T) {
	svc := new(MockSessionService)
	svc.On("Cancel", mock.Anything, "user-1", "5b0c6f2e-1d3a-4e8b-9c7f-2a4d6e8f0a11", "").Return(nil, &apperrors.InvalidTransitionError{
		From: "COMPLETED", Event: "cancel",
	})

	w := doJSON(sessionTestRouter(svc, "user-1"), "POST", "/sessions/5b0c6f2e-1d3a-4e8b-9c7f-2a4d6e8f0a11/cancel", nil)

	require.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), `"currentStatus":"COMPLETED"`)
	assert.Contains(t, w.Body.String(), `"event":"cancel"`)
}

func TestSessionHandler_CancelWithReason(t *testing.T) {
	svc := new(MockSessionService)
	svc.On("Cancel", mock.Anything, "user-1", "5b0c6f2e-1d3a-4e8b-9c7f-2a4d6e8f0a11", "sick").
		Return(&models.Session{ID: "5b0c6f2e-1d3a-4e8b-9c7f-2a4d6e8f0a11", Status: models.SessionCancelled}, nil)

	w := doJSON(sessionTestRouter(svc, "user-1"), "POST", "/sessions/5b0c6f2e-1d3a-4e8b-9c7f-2a4d6e8f0a11/cancel", gin.H{"reason": "sick"})

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestSessionHandler_ListSessions(t *testing.T) {
	svc := new(MockSessionService)
	svc.On("ListSessions", mock.Anything, "user-1", &models.ListSessionsQuery{
		Role: "mentor", Status: "SCHEDULED", Page: 2, PageSize: 10,
	}).Return(&models.SessionListResponse{Sessions: []*models.Session{}, Total: 11, Page: 2, PageSize: 10}, nil)

	router := sessionTestRouter(svc, "user-1")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/sessions?role=mentor&status=SCHEDULED&page=2&pageSize=10", http.NoBody))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":11`)
	svc.AssertExpectations(t)
}

func TestSessionHandler_ListSessionsRejectsBadRole(t *testing.T) {
	svc := new(MockSessionService)
	router := sessionTestRouter(svc, "user-1")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/sessions?role=admin", http.NoBody))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNotCalled(t, "ListSessions", mock.Anything, mock.Anything, mock.Anything)
}

func TestSessionHandler_Unauthenticated(t *testing.T) {
	svc := new(MockSessionService)
	h := NewSessionHandler(svc)
	router := gin.New()
	router.GET("/sessions/:id", h.GetSession)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/sessions/5b0c6f2e-1d3a-4e8b-9c7f-2a4d6e8f0a11", http.NoBody))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSessionHandler_MalformedIDIsNotFound(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
	}{
		{"get", "GET", "/sessions/abc"},
		{"cancel", "POST", "/sessions/abc/cancel"},
		{"start", "POST", "/sessions/not-a-uuid/start"},
		{"reminders", "GET", "/sessions/123/reminders"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockSessionService)
			w := doJSON(sessionTestRouter(svc, "user-1"), tt.method, tt.path, nil)

			assert.Equal(t, http.StatusNotFound, w.Code)
			assert.Contains(t, w.Body.String(), "Not found")
			svc.AssertExpectations(t)
			assert.Empty(t, svc.Calls)
		})
	}
}
