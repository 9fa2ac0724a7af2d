package handlers

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/getmentor/getmentor-sessions/internal/models"
	"github.com/getmentor/getmentor-sessions/internal/services"
	apperrors "github.com/getmentor/getmentor-sessions/pkg/errors"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func reviewTestRouter(svc *MockReviewService) *gin.Engine {
	h := NewReviewHandler(svc)
	router := gin.New()
	router.POST("/reviews", withUser("mentee-1", "mentee"), h.SubmitReview)
	router.GET("/users/:userId/reviews", h.ListReviews)
	router.GET("/users/:userId/rating", h.GetRating)
	router.POST("/internal/reviews/:id/moderation", h.Moderate)
	return router
}

func TestReviewHandler_SubmitReview(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		svc := new(MockReviewService)
		svc.On("SubmitReview", mock.Anything, "mentee-1", mock.MatchedBy(func(r *models.SubmitReviewRequest) bool {
			return r.RevieweeID == "mentor-1" && r.Rating == 5
		})).Return(&models.SubmitReviewResponse{Success: true, ReviewID: "9f4a6b82-5d7e-4c9f-a0b1-3d5e7f9ab144"}, nil)

		w := doJSON(reviewTestRouter(svc), "POST", "/reviews", gin.H{"revieweeId": "mentor-1", "rating": 5})

		assert.Equal(t, http.StatusCreated, w.Code)
		assert.JSONEq(t, `{"success":true,"reviewId":"9f4a6b82-5d7e-4c9f-a0b1-3d5e7f9ab144"}`, w.Body.String())
	})

	t.Run("rating out of range", func(t *testing.T) {
		svc := new(MockReviewService)
		w := doJSON(reviewTestRouter(svc), "POST", "/reviews", gin.H{"revieweeId": "mentor-1", "rating": 9})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		svc.AssertNotCalled(t, "SubmitReview", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("duplicate", func(t *testing.T) {
		svc := new(MockReviewService)
		dup := fmt.Errorf("%w: %w", services.ErrReviewDuplicate, apperrors.ErrConflict)
		svc.On("SubmitReview", mock.Anything, "mentee-1", mock.Anything).
			Return(&models.SubmitReviewResponse{Success: false, Error: "Review already submitted"}, dup)

		w := doJSON(reviewTestRouter(svc), "POST", "/reviews", gin.H{"revieweeId": "mentor-1", "rating": 4})

		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Contains(t, w.Body.String(), "Review already submitted")
	})

	t.Run("self review", func(t *testing.T) {
		svc := new(MockReviewService)
		svc.On("SubmitReview", mock.Anything, "mentee-1", mock.Anything).
			Return(&models.SubmitReviewResponse{Success: false}, apperrors.InvalidInputError("revieweeId", "cannot review yourself"))

		w := doJSON(reviewTestRouter(svc), "POST", "/reviews", gin.H{"revieweeId": "mentee-1", "rating": 4})

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "cannot review yourself")
	})
}

func TestReviewHandler_Rating(t *testing.T) {
	svc := new(MockReviewService)
	svc.On("GetRatingSummary", mock.Anything, "mentor-1").Return(&models.RatingSummary{
		RevieweeID: "mentor-1", Count: 2, Average: 4.5, Distribution: [5]int{0, 0, 0, 1, 1},
	}, nil)

	w := httptest.NewRecorder()
	reviewTestRouter(svc).ServeHTTP(w, httptest.NewRequest("GET", "/users/mentor-1/rating", http.NoBody))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"revieweeId":"mentor-1","count":2,"average":4.5,"distribution":[0,0,0,1,1]}`, w.Body.String())
}

func TestReviewHandler_Moderate(t *testing.T) {
	svc := new(MockReviewService)
	svc.On("Moderate", mock.Anything, "9f4a6b82-5d7e-4c9f-a0b1-3d5e7f9ab144", &models.ModerateReviewRequest{Approved: true}).
		Return(&models.Review{ID: "9f4a6b82-5d7e-4c9f-a0b1-3d5e7f9ab144", Approved: true}, nil)
	svc.On("Moderate", mock.Anything, "0a5b7c93-6e8f-4da0-b1c2-4e6f8a0bc255", mock.Anything).Return(nil, apperrors.NotFoundError("review"))
	router := reviewTestRouter(svc)

	w := doJSON(router, "POST", "/internal/reviews/9f4a6b82-5d7e-4c9f-a0b1-3d5e7f9ab144/moderation", gin.H{"approved": true})
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(router, "POST", "/internal/reviews/0a5b7c93-6e8f-4da0-b1c2-4e6f8a0bc255/moderation", gin.H{"approved": false, "flagged": true})
	assert.Equal(t, http.StatusNotFound, w.Code)

	svc.AssertExpectations(t)
}
