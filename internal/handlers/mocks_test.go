package handlers

import (
	"context"
	"time"

	"github.com/getmentor/getmentor-sessions/internal/cache"
	"github.com/getmentor/getmentor-sessions/internal/middleware"
	"github.com/getmentor/getmentor-sessions/internal/models"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
)

type MockAvailabilityService struct {
	mock.Mock
}

func (m *MockAvailabilityService) AddSlot(ctx context.Context, mentorID string, req *models.CreateSlotRequest) (*models.AvailabilitySlot, error) {
	args := m.Called(ctx, mentorID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AvailabilitySlot), args.Error(1)
}

func (m *MockAvailabilityService) UpdateSlot(ctx context.Context, mentorID, slotID string, req *models.UpdateSlotRequest) (*models.AvailabilitySlot, error) {
	args := m.Called(ctx, mentorID, slotID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AvailabilitySlot), args.Error(1)
}

func (m *MockAvailabilityService) DeactivateSlot(ctx context.Context, mentorID, slotID string) (*models.AvailabilitySlot, error) {
	args := m.Called(ctx, mentorID, slotID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.AvailabilitySlot), args.Error(1)
}

func (m *MockAvailabilityService) ListActiveSlots(ctx context.Context, mentorID string) ([]*models.AvailabilitySlot, error) {
	args := m.Called(ctx, mentorID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.AvailabilitySlot), args.Error(1)
}

func (m *MockAvailabilityService) IsWithinAvailability(ctx context.Context, mentorID string, at time.Time) (bool, error) {
	args := m.Called(ctx, mentorID, at)
	return args.Bool(0), args.Error(1)
}

type MockSessionService struct {
	mock.Mock
}

func (m *MockSessionService) Book(ctx context.Context, menteeID string, req *models.BookSessionRequest) (*models.Session, error) {
	args := m.Called(ctx, menteeID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Session), args.Error(1)
}

func (m *MockSessionService) GetSession(ctx context.Context, userID, sessionID string) (*models.SessionDetails, error) {
	args := m.Called(ctx, userID, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SessionDetails), args.Error(1)
}

func (m *MockSessionService) ListSessions(ctx context.Context, userID string, query *models.ListSessionsQuery) (*models.SessionListResponse, error) {
	args := m.Called(ctx, userID, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SessionListResponse), args.Error(1)
}

func (m *MockSessionService) Cancel(ctx context.Context, userID, sessionID, reason string) (*models.Session, error) {
	args := m.Called(ctx, userID, sessionID, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Session), args.Error(1)
}

func (m *MockSessionService) Start(ctx context.Context, userID, sessionID string) (*models.Session, error) {
	args := m.Called(ctx, userID, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Session), args.Error(1)
}

func (m *MockSessionService) Complete(ctx context.Context, userID, sessionID string) (*models.Session, error) {
	args := m.Called(ctx, userID, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Session), args.Error(1)
}

func (m *MockSessionService) UpdateNotes(ctx context.Context, userID, sessionID, notes string) (*models.Session, error) {
	args := m.Called(ctx, userID, sessionID, notes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Session), args.Error(1)
}

func (m *MockSessionService) ListReminders(ctx context.Context, userID, sessionID string) ([]*models.Reminder, error) {
	args := m.Called(ctx, userID, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Reminder), args.Error(1)
}

type MockReviewService struct {
	mock.Mock
}

func (m *MockReviewService) SubmitReview(ctx context.Context, reviewerID string, req *models.SubmitReviewRequest) (*models.SubmitReviewResponse, error) {
	args := m.Called(ctx, reviewerID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SubmitReviewResponse), args.Error(1)
}

func (m *MockReviewService) ListReviews(ctx context.Context, revieweeID string) (*models.ReviewsResponse, error) {
	args := m.Called(ctx, revieweeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ReviewsResponse), args.Error(1)
}

func (m *MockReviewService) GetRatingSummary(ctx context.Context, revieweeID string) (*models.RatingSummary, error) {
	args := m.Called(ctx, revieweeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.RatingSummary), args.Error(1)
}

func (m *MockReviewService) Moderate(ctx context.Context, reviewID string, req *models.ModerateReviewRequest) (*models.Review, error) {
	args := m.Called(ctx, reviewID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Review), args.Error(1)
}

type stubStats []cache.Stats

func (s stubStats) Stats() []cache.Stats { return s }

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

// withUser injects an authenticated user the way UserSessionMiddleware does
func withUser(userID, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.UserSessionContextKey, &models.UserSession{UserID: userID, Role: role})
		c.Next()
	}
}
