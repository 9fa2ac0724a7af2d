package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/getmentor/getmentor-sessions/internal/models"
	apperrors "github.com/getmentor/getmentor-sessions/pkg/errors"
)

type reviewRepository struct {
	s *Store
}

func cloneReview(r *models.Review) *models.Review {
	c := *r
	if r.SessionID != nil {
		id := *r.SessionID
		c.SessionID = &id
	}
	if r.Comment != nil {
		comment := *r.Comment
		c.Comment = &comment
	}
	return &c
}

func (r *reviewRepository) Create(ctx context.Context, review *models.Review) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var key string
	if review.SessionID != nil {
		key = review.ReviewerID + "|" + *review.SessionID
		if _, exists := r.s.reviewKeys[key]; exists {
			return fmt.Errorf("review already exists for this session: %w", apperrors.ErrConflict)
		}
		r.s.reviewKeys[key] = review.ID
	}
	r.s.reviews[review.ID] = cloneReview(review)
	onRollback(ctx, func() {
		delete(r.s.reviews, review.ID)
		if key != "" {
			delete(r.s.reviewKeys, key)
		}
	})
	return nil
}

func (r *reviewRepository) GetByID(_ context.Context, reviewID string) (*models.Review, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	stored, ok := r.s.reviews[reviewID]
	if !ok {
		return nil, apperrors.NotFoundError("review")
	}
	return cloneReview(stored), nil
}

func (r *reviewRepository) ListByReviewee(_ context.Context, revieweeID string, visibleOnly bool) ([]*models.Review, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []*models.Review{}
	for _, review := range r.s.reviews {
		if review.RevieweeID != revieweeID || (visibleOnly && !review.Visible()) {
			continue
		}
		out = append(out, cloneReview(review))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *reviewRepository) SetModeration(ctx context.Context, reviewID string, approved, flagged bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.reviews[reviewID]
	if !ok {
		return apperrors.NotFoundError("review")
	}
	prev := cloneReview(stored)
	stored.Approved = approved
	stored.Flagged = flagged
	onRollback(ctx, func() { r.s.reviews[reviewID] = prev })
	return nil
}
