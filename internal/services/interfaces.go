package services

import (
	"context"
	"time"

	"github.com/getmentor/getmentor-sessions/internal/cache"
	"github.com/getmentor/getmentor-sessions/internal/models"
	"github.com/getmentor/getmentor-sessions/pkg/fallback"
)

// ProfileServiceInterface resolves participant profiles through the identity service
type ProfileServiceInterface interface {
	GetProfile(ctx context.Context, userID string) fallback.Result[*models.UserProfile]
	Exists(ctx context.Context, userID string) bool
}

// AvailabilityServiceInterface defines the interface for availability slot operations
type AvailabilityServiceInterface interface {
	AddSlot(ctx context.Context, mentorID string, req *models.CreateSlotRequest) (*models.AvailabilitySlot, error)
	UpdateSlot(ctx context.Context, mentorID, slotID string, req *models.UpdateSlotRequest) (*models.AvailabilitySlot, error)
	DeactivateSlot(ctx context.Context, mentorID, slotID string) (*models.AvailabilitySlot, error)
	ListActiveSlots(ctx context.Context, mentorID string) ([]*models.AvailabilitySlot, error)
	IsWithinAvailability(ctx context.Context, mentorID string, at time.Time) (bool, error)
}

// SessionServiceInterface defines the interface for session lifecycle operations
type SessionServiceInterface interface {
	Book(ctx context.Context, menteeID string, req *models.BookSessionRequest) (*models.Session, error)
	GetSession(ctx context.Context, userID, sessionID string) (*models.SessionDetails, error)
	ListSessions(ctx context.Context, userID string, query *models.ListSessionsQuery) (*models.SessionListResponse, error)
	Cancel(ctx context.Context, userID, sessionID, reason string) (*models.Session, error)
	Start(ctx context.Context, userID, sessionID string) (*models.Session, error)
	Complete(ctx context.Context, userID, sessionID string) (*models.Session, error)
	UpdateNotes(ctx context.Context, userID, sessionID, notes string) (*models.Session, error)
	ListReminders(ctx context.Context, userID, sessionID string) ([]*models.Reminder, error)
}

// ReviewServiceInterface defines the interface for review operations
type ReviewServiceInterface interface {
	SubmitReview(ctx context.Context, reviewerID string, req *models.SubmitReviewRequest) (*models.SubmitReviewResponse, error)
	ListReviews(ctx context.Context, revieweeID string) (*models.ReviewsResponse, error)
	GetRatingSummary(ctx context.Context, revieweeID string) (*models.RatingSummary, error)
	Moderate(ctx context.Context, reviewID string, req *models.ModerateReviewRequest) (*models.Review, error)
}

// CacheStatsProvider exposes per-region cache counters
type CacheStatsProvider interface {
	Stats() []cache.Stats
}

var (
	_ ProfileServiceInterface      = (*ProfileService)(nil)
	_ AvailabilityServiceInterface = (*AvailabilityService)(nil)
	_ SessionServiceInterface      = (*SessionService)(nil)
	_ ReviewServiceInterface       = (*ReviewService)(nil)
	_ CacheStatsProvider           = (*cache.Manager)(nil)
)
