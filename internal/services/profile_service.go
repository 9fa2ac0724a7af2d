package services

import (
	"context"
	"time"

	"github.com/getmentor/getmentor-sessions/internal/cache"
	"github.com/getmentor/getmentor-sessions/internal/models"
	"github.com/getmentor/getmentor-sessions/pkg/circuitbreaker"
	apperrors "github.com/getmentor/getmentor-sessions/pkg/errors"
	"github.com/getmentor/getmentor-sessions/pkg/fallback"
	"github.com/getmentor/getmentor-sessions/pkg/identity"
	"github.com/getmentor/getmentor-sessions/pkg/logger"
	"github.com/getmentor/getmentor-sessions/pkg/retry"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// IdentityLookup fetches users from the identity service
type IdentityLookup interface {
	GetUser(ctx context.Context, userID string) (*identity.Profile, error)
}

// ProfileService resolves user profiles. Fresh profiles live in the profiles
// cache region; the last profile seen for each user is kept longer and served
// when the identity service is unavailable, before falling back to a placeholder.
type ProfileService struct {
	lookup    IdentityLookup
	guard     fallback.Guard
	cache     *cache.Manager
	lastKnown *gocache.Cache
}

// NewProfileService creates a new ProfileService. A nil lookup means no identity
// service is configured and every lookup is degraded.
func NewProfileService(lookup IdentityLookup, cacheManager *cache.Manager, lastKnownTTL time.Duration) *ProfileService {
	retryCfg := retry.IdentityConfig()
	return &ProfileService{
		lookup: lookup,
		guard: fallback.Guard{
			Service:   "identity",
			Operation: "get_user",
			Breaker:   circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultConfig("identity")),
			Retry:     &retryCfg,
		},
		cache:     cacheManager,
		lastKnown: gocache.New(lastKnownTTL, lastKnownTTL*2),
	}
}

// GetProfile returns the user's profile. Transient identity failures degrade to
// the last known profile or a placeholder. An unknown user is a failed result.
func (s *ProfileService) GetProfile(ctx context.Context, userID string) fallback.Result[*models.UserProfile] {
	key := cache.ProfileKey(userID)
	if profile, ok := cache.Lookup[*models.UserProfile](s.cache, cache.RegionProfiles, key); ok {
		return fallback.Result[*models.UserProfile]{Value: profile}
	}

	if s.lookup == nil {
		return fallback.Result[*models.UserProfile]{
			Value:    s.degraded(userID),
			Degraded: true,
			Err:      apperrors.UpstreamError("identity", apperrors.InternalError("identity service not configured")),
		}
	}

	gen := s.cache.Generation(cache.RegionProfiles)

	result := fallback.Call(ctx, s.guard,
		func(ctx context.Context) (*models.UserProfile, error) {
			p, err := s.lookup.GetUser(ctx, userID)
			if err != nil {
				return nil, err
			}
			return &models.UserProfile{ID: p.ID, Role: p.Role, DisplayName: p.DisplayName}, nil
		},
		func(error) *models.UserProfile {
			return s.degraded(userID)
		})

	if result.Err == nil {
		s.cache.PutIfGeneration(cache.RegionProfiles, key, result.Value, gen)
		s.lastKnown.Set(userID, result.Value, gocache.DefaultExpiration)
	}

	return result
}

// Exists reports whether the identity service knows userID. Degraded lookups
// count as existing so an outage never blocks a booking.
func (s *ProfileService) Exists(ctx context.Context, userID string) bool {
	result := s.GetProfile(ctx, userID)
	if result.Failed() && apperrors.Is(result.Err, apperrors.ErrNotFound) {
		return false
	}
	return true
}

func (s *ProfileService) degraded(userID string) *models.UserProfile {
	if cached, found := s.lastKnown.Get(userID); found {
		if profile, ok := cached.(*models.UserProfile); ok {
			logger.Debug("Serving last known profile", zap.String("user_id", userID))
			return profile
		}
	}
	return models.PlaceholderProfile(userID)
}
