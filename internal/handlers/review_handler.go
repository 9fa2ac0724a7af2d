package handlers

import (
	"errors"
	"net/http"

	"github.com/getmentor/getmentor-sessions/internal/middleware"
	"github.com/getmentor/getmentor-sessions/internal/models"
	"github.com/getmentor/getmentor-sessions/internal/services"
	"github.com/gin-gonic/gin"
)

// ReviewHandler handles review-related HTTP requests
type ReviewHandler struct {
	service services.ReviewServiceInterface
}

// NewReviewHandler creates a new review handler
func NewReviewHandler(service services.ReviewServiceInterface) *ReviewHandler {
	return &ReviewHandler{service: service}
}

// SubmitReview handles POST /api/v1/reviews
func (h *ReviewHandler) SubmitReview(c *gin.Context) {
	user, err := middleware.GetUserSession(c)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "Unauthorized", err)
		return
	}

	var req models.SubmitReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErrorWithDetails(c, http.StatusBadRequest, "Validation failed", ParseValidationErrors(err), err)
		return
	}

	resp, err := h.service.SubmitReview(c.Request.Context(), user.UserID, &req)
	if err != nil {
		if errors.Is(err, services.ErrReviewDuplicate) && resp != nil {
			attachError(c, err)
			c.JSON(http.StatusConflict, resp)
			return
		}
		respondServiceError(c, err, "Failed to submit review")
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// ListReviews handles GET /api/v1/users/:userId/reviews
func (h *ReviewHandler) ListReviews(c *gin.Context) {
	resp, err := h.service.ListReviews(c.Request.Context(), c.Param("userId"))
	if err != nil {
		respondServiceError(c, err, "Failed to fetch reviews")
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetRating handles GET /api/v1/users/:userId/rating
func (h *ReviewHandler) GetRating(c *gin.Context) {
	summary, err := h.service.GetRatingSummary(c.Request.Context(), c.Param("userId"))
	if err != nil {
		respondServiceError(c, err, "Failed to fetch rating")
		return
	}
	c.JSON(http.StatusOK, summary)
}

// Moderate handles POST /api/internal/reviews/:id/moderation
func (h *ReviewHandler) Moderate(c *gin.Context) {
	reviewID, ok := entityID(c, "review")
	if !ok {
		return
	}

	var req models.ModerateReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErrorWithDetails(c, http.StatusBadRequest, "Validation failed", ParseValidationErrors(err), err)
		return
	}

	review, err := h.service.Moderate(c.Request.Context(), reviewID, &req)
	if err != nil {
		respondServiceError(c, err, "Failed to moderate review")
		return
	}
	c.JSON(http.StatusOK, review)
}
