package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/getmentor/getmentor-sessions/internal/models"
	apperrors "github.com/getmentor/getmentor-sessions/pkg/errors"
)

// ReviewRepository stores reviews
type ReviewRepository struct {
	c *Client
}

// Create inserts a review. The partial unique index on (reviewer_id, session_id)
// rejects a second review of the same session by the same reviewer.
func (r *ReviewRepository) Create(ctx context.Context, review *models.Review) (err error) {
	start := time.Now()
	defer func() { r.c.observe("createReview", start, err) }()

	_, err = r.c.q(ctx).Exec(ctx, `
		INSERT INTO reviews (id, reviewer_id, reviewee_id, session_id, rating, comment, approved, flagged, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		review.ID, review.ReviewerID, review.RevieweeID, review.SessionID, review.Rating,
		review.Comment, review.Approved, review.Flagged, review.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("review already exists for this session: %w", apperrors.ErrConflict)
		}
		return fmt.Errorf("failed to create review: %w", err)
	}
	return nil
}

// GetByID fetches a review
func (r *ReviewRepository) GetByID(ctx context.Context, reviewID string) (review *models.Review, err error) {
	start := time.Now()
	defer func() { r.c.observe("getReview", start, err) }()

	row := r.c.q(ctx).QueryRow(ctx,
		"SELECT "+models.ReviewColumns+" FROM reviews WHERE id = $1", reviewID)
	review, err = models.ScanReview(row)
	if err != nil {
		return nil, notFound(err, "review")
	}
	return review, nil
}

// ListByReviewee returns reviews about a user, newest first
func (r *ReviewRepository) ListByReviewee(ctx context.Context, revieweeID string, visibleOnly bool) (reviews []*models.Review, err error) {
	start := time.Now()
	defer func() { r.c.observe("listReviews", start, err) }()

	query := "SELECT " + models.ReviewColumns + " FROM reviews WHERE reviewee_id = $1"
	if visibleOnly {
		query += " AND approved AND NOT flagged"
	}
	query += " ORDER BY created_at DESC, id"

	rows, err := r.c.q(ctx).Query(ctx, query, revieweeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	return models.ScanReviews(rows)
}

// SetModeration stores the moderation decision
func (r *ReviewRepository) SetModeration(ctx context.Context, reviewID string, approved, flagged bool) (err error) {
	start := time.Now()
	defer func() { r.c.observe("moderateReview", start, err) }()

	tag, err := r.c.q(ctx).Exec(ctx,
		"UPDATE reviews SET approved = $2, flagged = $3 WHERE id = $1",
		reviewID, approved, flagged)
	if err != nil {
		return fmt.Errorf("failed to moderate review: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFoundError("review")
	}
	return nil
}
