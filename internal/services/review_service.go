package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/getmentor/getmentor-sessions/config"
	"github.com/getmentor/getmentor-sessions/internal/cache"
	"github.com/getmentor/getmentor-sessions/internal/models"
	"github.com/getmentor/getmentor-sessions/internal/repository"
	"github.com/getmentor/getmentor-sessions/pkg/clock"
	apperrors "github.com/getmentor/getmentor-sessions/pkg/errors"
	"github.com/getmentor/getmentor-sessions/pkg/httpclient"
	"github.com/getmentor/getmentor-sessions/pkg/logger"
	"github.com/getmentor/getmentor-sessions/pkg/metrics"
	"github.com/getmentor/getmentor-sessions/pkg/trigger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrSelfReview      = errors.New("cannot review yourself")
	ErrReviewDuplicate = errors.New("review already submitted for this session")
)

// ReviewService ingests reviews and serves rating aggregates
type ReviewService struct {
	store      repository.Store
	profiles   ProfileServiceInterface
	cache      *cache.Manager
	config     *config.Config
	httpClient httpclient.Client
	clock      clock.Clock
}

// NewReviewService creates a new ReviewService
func NewReviewService(
	store repository.Store,
	profiles ProfileServiceInterface,
	cacheManager *cache.Manager,
	cfg *config.Config,
	httpClient httpclient.Client,
	clk clock.Clock,
) *ReviewService {
	return &ReviewService{
		store:      store,
		profiles:   profiles,
		cache:      cacheManager,
		config:     cfg,
		httpClient: httpClient,
		clock:      clk,
	}
}

// SubmitReview stores a review from reviewerID. Self reviews and duplicates per
// (reviewer, session) are rejected before anything is written. Reviews without
// a comment have nothing to moderate and are approved right away.
func (s *ReviewService) SubmitReview(ctx context.Context, reviewerID string, req *models.SubmitReviewRequest) (*models.SubmitReviewResponse, error) {
	start := time.Now()

	if reviewerID == req.RevieweeID {
		metrics.ReviewSubmissions.WithLabelValues("invalid").Inc()
		return &models.SubmitReviewResponse{Error: ErrSelfReview.Error()},
			&apperrors.ValidationError{Field: "revieweeId", Reason: ErrSelfReview.Error()}
	}
	if req.Rating < 1 || req.Rating > 5 {
		metrics.ReviewSubmissions.WithLabelValues("invalid").Inc()
		return &models.SubmitReviewResponse{Error: "rating must be between 1 and 5"},
			apperrors.InvalidInputError("rating", "must be between 1 and 5")
	}

	if req.SessionID != nil {
		if err := s.checkSessionParticipants(ctx, *req.SessionID, reviewerID, req.RevieweeID); err != nil {
			metrics.ReviewSubmissions.WithLabelValues(outcome(err)).Inc()
			return &models.SubmitReviewResponse{Error: err.Error()}, err
		}
	} else if !s.profiles.Exists(ctx, req.RevieweeID) {
		metrics.ReviewSubmissions.WithLabelValues("invalid").Inc()
		return &models.SubmitReviewResponse{Error: "unknown user"},
			apperrors.InvalidInputError("revieweeId", "unknown user")
	}

	var comment *string
	if req.Comment != nil {
		if trimmed := strings.TrimSpace(*req.Comment); trimmed != "" {
			comment = &trimmed
		}
	}

	review := &models.Review{
		ID:         uuid.New().String(),
		ReviewerID: reviewerID,
		RevieweeID: req.RevieweeID,
		SessionID:  req.SessionID,
		Rating:     req.Rating,
		Comment:    comment,
		Approved:   comment == nil,
		CreatedAt:  s.clock.Now(),
	}

	if err := s.store.Reviews().Create(ctx, review); err != nil {
		if apperrors.Is(err, apperrors.ErrConflict) {
			metrics.ReviewSubmissions.WithLabelValues("already_exists").Inc()
			return &models.SubmitReviewResponse{Error: ErrReviewDuplicate.Error()},
				fmt.Errorf("%w: %w", ErrReviewDuplicate, apperrors.ErrConflict)
		}
		metrics.ReviewSubmissions.WithLabelValues("db_error").Inc()
		logger.Error("Failed to create review",
			zap.String("reviewer_id", reviewerID),
			zap.String("reviewee_id", req.RevieweeID),
			zap.Error(err))
		return &models.SubmitReviewResponse{Error: "Failed to save review"},
			fmt.Errorf("failed to create review: %w", err)
	}

	s.invalidate(review.RevieweeID)
	trigger.CallAsync(trigger.EventReviewCreated, s.config.EventTriggers.ReviewCreatedTriggerURL, review.ID, s.httpClient)

	metrics.ReviewSubmissions.WithLabelValues("success").Inc()
	logger.Info("Review submitted successfully",
		zap.String("review_id", review.ID),
		zap.String("reviewee_id", review.RevieweeID),
		zap.Bool("approved", review.Approved),
		zap.Duration("duration", time.Since(start)))

	return &models.SubmitReviewResponse{
		Success:  true,
		ReviewID: review.ID,
	}, nil
}

// checkSessionParticipants requires the reviewer and reviewee to be the two
// participants of the referenced session
func (s *ReviewService) checkSessionParticipants(ctx context.Context, sessionID, reviewerID, revieweeID string) error {
	session, err := s.store.Sessions().GetByID(ctx, sessionID)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			return apperrors.InvalidInputError("sessionId", "session not found")
		}
		return fmt.Errorf("failed to load session: %w", err)
	}
	if session.RoleOf(reviewerID) == "" || session.RoleOf(revieweeID) == "" {
		return apperrors.InvalidInputError("sessionId", "reviewer and reviewee must be the session participants")
	}
	return nil
}

// ListReviews returns approved, unflagged reviews of revieweeID, newest first
func (s *ReviewService) ListReviews(ctx context.Context, revieweeID string) (*models.ReviewsResponse, error) {
	return cache.Fetch(ctx, s.cache, cache.RegionReviews, cache.ReviewsKey(revieweeID),
		func(ctx context.Context) (*models.ReviewsResponse, error) {
			reviews, err := s.store.Reviews().ListByReviewee(ctx, revieweeID, true)
			if err != nil {
				return nil, fmt.Errorf("failed to list reviews: %w", err)
			}
			return &models.ReviewsResponse{RevieweeID: revieweeID, Reviews: reviews}, nil
		})
}

// GetRatingSummary returns the rating aggregate of revieweeID
func (s *ReviewService) GetRatingSummary(ctx context.Context, revieweeID string) (*models.RatingSummary, error) {
	return cache.Fetch(ctx, s.cache, cache.RegionReviews, cache.RatingKey(revieweeID),
		func(ctx context.Context) (*models.RatingSummary, error) {
			reviews, err := s.store.Reviews().ListByReviewee(ctx, revieweeID, true)
			if err != nil {
				return nil, fmt.Errorf("failed to load reviews: %w", err)
			}
			return models.Summarize(revieweeID, reviews), nil
		})
}

// Moderate sets the approval and flag state of a review
func (s *ReviewService) Moderate(ctx context.Context, reviewID string, req *models.ModerateReviewRequest) (*models.Review, error) {
	review, err := s.store.Reviews().GetByID(ctx, reviewID)
	if err != nil {
		return nil, err
	}

	if err := s.store.Reviews().SetModeration(ctx, reviewID, req.Approved, req.Flagged); err != nil {
		logger.Error("Failed to moderate review",
			zap.String("review_id", reviewID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to moderate review: %w", err)
	}

	review.Approved = req.Approved
	review.Flagged = req.Flagged
	s.invalidate(review.RevieweeID)

	logger.Info("Review moderated",
		zap.String("review_id", reviewID),
		zap.Bool("approved", req.Approved),
		zap.Bool("flagged", req.Flagged))

	return review, nil
}

func (s *ReviewService) invalidate(revieweeID string) {
	s.cache.Invalidate(cache.RegionReviews, cache.ReviewsKey(revieweeID))
	s.cache.Invalidate(cache.RegionReviews, cache.RatingKey(revieweeID))
}
