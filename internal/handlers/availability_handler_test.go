package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/getmentor/getmentor-sessions/internal/models"
	apperrors "github.com/getmentor/getmentor-sessions/pkg/errors"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func availabilityTestRouter(svc *MockAvailabilityService) *gin.Engine {
	h := NewAvailabilityHandler(svc)
	router := gin.New()
	slots := router.Group("/availability/slots", withUser("mentor-1", "mentor"))
	slots.POST("", h.AddSlot)
	slots.PUT("/:id", h.UpdateSlot)
	slots.POST("/:id/deactivate", h.DeactivateSlot)
	router.GET("/mentors/:mentorId/availability", h.ListSlots)
	return router
}

func TestAvailabilityHandler_AddSlot(t *testing.T) {
	tests := []struct {
		name       string
		body       gin.H
		err        error
		wantStatus int
		wantBody   string
	}{
		{
			name:       "created",
			body:       gin.H{"dayOfWeek": "monday", "startTime": "09:00", "endTime": "12:00"},
			wantStatus: http.StatusCreated,
			wantBody:   `"startTime":"09:00"`,
		},
		{
			name:       "unknown day rejected by binding",
			body:       gin.H{"dayOfWeek": "someday", "startTime": "09:00", "endTime": "12:00"},
			wantStatus: http.StatusBadRequest,
			wantBody:   "dayOfWeek",
		},
		{
			name:       "inverted window",
			body:       gin.H{"dayOfWeek": "monday", "startTime": "12:00", "endTime": "09:00"},
			err:        apperrors.InvalidInputError("endTime", "must be after startTime"),
			wantStatus: http.StatusBadRequest,
			wantBody:   "must be after startTime",
		},
		{
			name: "overlapping slot",
			body: gin.H{"dayOfWeek": "monday", "startTime": "10:00", "endTime": "13:00"},
			err: &apperrors.OverlapError{
				Kind:       "slot",
				ConflictID: "slot-0",
				Start:      time.Date(2023, 1, 2, 9, 0, 0, 0, time.UTC),
				End:        time.Date(2023, 1, 2, 12, 0, 0, 0, time.UTC),
			},
			wantStatus: http.StatusConflict,
			wantBody:   `"conflictId":"slot-0"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockAvailabilityService)
			if tt.wantStatus != http.StatusBadRequest || tt.err != nil {
				if tt.err != nil {
					svc.On("AddSlot", mock.Anything, "mentor-1", mock.Anything).Return(nil, tt.err)
				} else {
					svc.On("AddSlot", mock.Anything, "mentor-1", mock.Anything).Return(&models.AvailabilitySlot{
						ID: "7d2e4f60-3b5c-4a7d-8e9f-1b3c5d7e9f22", MentorID: "mentor-1", DayOfWeek: models.DayOfWeek(time.Monday),
						StartTime: 9 * 60, EndTime: 12 * 60, Active: true,
					}, nil)
				}
			}

			w := doJSON(availabilityTestRouter(svc), "POST", "/availability/slots", tt.body)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
			svc.AssertExpectations(t)
		})
	}
}

func TestAvailabilityHandler_UpdateAndDeactivate(t *testing.T) {
	svc := new(MockAvailabilityService)
	svc.On("UpdateSlot", mock.Anything, "mentor-1", "7d2e4f60-3b5c-4a7d-8e9f-1b3c5d7e9f22", &models.UpdateSlotRequest{StartTime: "10:00", EndTime: "11:00"}).
		Return(&models.AvailabilitySlot{ID: "7d2e4f60-3b5c-4a7d-8e9f-1b3c5d7e9f22", StartTime: 600, EndTime: 660, Active: true}, nil)
	svc.On("DeactivateSlot", mock.Anything, "mentor-1", "8e3f5a71-4c6d-4b8e-9fa0-2c4d6e8fa033").
		Return(nil, apperrors.AccessDeniedError("slot belongs to another mentor"))
	router := availabilityTestRouter(svc)

	w := doJSON(router, "PUT", "/availability/slots/7d2e4f60-3b5c-4a7d-8e9f-1b3c5d7e9f22", gin.H{"startTime": "10:00", "endTime": "11:00"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"endTime":"11:00"`)

	w = doJSON(router, "POST", "/availability/slots/8e3f5a71-4c6d-4b8e-9fa0-2c4d6e8fa033/deactivate", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	svc.AssertExpectations(t)
}

func TestAvailabilityHandler_ListSlots(t *testing.T) {
	svc := new(MockAvailabilityService)
	svc.On("ListActiveSlots", mock.Anything, "mentor-9").Return([]*models.AvailabilitySlot{
		{ID: "7d2e4f60-3b5c-4a7d-8e9f-1b3c5d7e9f22", MentorID: "mentor-9", DayOfWeek: models.DayOfWeek(time.Friday), StartTime: 480, EndTime: 540, Active: true},
	}, nil)

	w := httptest.NewRecorder()
	availabilityTestRouter(svc).ServeHTTP(w, httptest.NewRequest("GET", "/mentors/mentor-9/availability", http.NoBody))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"mentorId":"mentor-9"`)
	assert.Contains(t, w.Body.String(), `"dayOfWeek":"friday"`)
	assert.Contains(t, w.Body.String(), `"startTime":"08:00"`)
}
