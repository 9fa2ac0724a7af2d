package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/getmentor/getmentor-sessions/internal/cache"
	"github.com/getmentor/getmentor-sessions/internal/models"
	"github.com/getmentor/getmentor-sessions/internal/services"
	"github.com/getmentor/getmentor-sessions/pkg/clock"
	apperrors "github.com/getmentor/getmentor-sessions/pkg/errors"
	"github.com/getmentor/getmentor-sessions/pkg/fallback"
	"github.com/getmentor/getmentor-sessions/pkg/identity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeIdentity answers from users; when down every lookup fails transiently
type fakeIdentity struct {
	mu    sync.Mutex
	users map[string]*identity.Profile
	down  bool
	calls int
}

func (f *fakeIdentity) GetUser(_ context.Context, userID string) (*identity.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.down {
		return nil, apperrors.UpstreamError("identity", errSendFailed)
	}
	p, ok := f.users[userID]
	if !ok {
		return nil, fallback.Permanent(apperrors.NotFoundError("user"))
	}
	return p, nil
}

func (f *fakeIdentity) setDown(down bool) {
	f.mu.Lock()
	f.down = down
	f.mu.Unlock()
}

func newProfileFixture(t *testing.T, lookup services.IdentityLookup) (*services.ProfileService, *cache.Manager, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(monday0900)
	cacheManager, err := cache.NewManager(clk,
		cache.RegionConfig{Name: cache.RegionProfiles, TTL: time.Minute, MaxEntries: 10})
	require.NoError(t, err)
	return services.NewProfileService(lookup, cacheManager, time.Hour), cacheManager, clk
}

func TestProfileService_GetProfile(t *testing.T) {
	lookup := &fakeIdentity{users: map[string]*identity.Profile{
		"mentor-1": {ID: "mentor-1", Role: "mentor", DisplayName: "Ada"},
	}}
	profiles, _, _ := newProfileFixture(t, lookup)
	ctx := context.Background()

	result := profiles.GetProfile(ctx, "mentor-1")
	require.NoError(t, result.Err)
	assert.False(t, result.Degraded)
	assert.Equal(t, "Ada", result.Value.DisplayName)

	result = profiles.GetProfile(ctx, "mentor-1")
	require.NoError(t, result.Err)
	assert.Equal(t, 1, lookup.calls, "second read is served from the cache")

	assert.True(t, profiles.Exists(ctx, "mentor-1"))
	assert.False(t, profiles.Exists(ctx, "ghost"))
}

func TestProfileService_DegradesToLastKnownProfile(t *testing.T) {
	lookup := &fakeIdentity{users: map[string]*identity.Profile{
		"mentor-1": {ID: "mentor-1", Role: "mentor", DisplayName: "Ada"},
	}}
	profiles, _, clk := newProfileFixture(t, lookup)
	ctx := context.Background()

	require.NoError(t, profiles.GetProfile(ctx, "mentor-1").Err)

	lookup.setDown(true)
	clk.Advance(2 * time.Minute)

	result := profiles.GetProfile(ctx, "mentor-1")
	assert.True(t, result.Degraded)
	assert.False(t, result.Failed())
	assert.Equal(t, "Ada", result.Value.DisplayName)

	result = profiles.GetProfile(ctx, "mentee-9")
	assert.True(t, result.Degraded)
	assert.Equal(t, models.PlaceholderProfile("mentee-9"), result.Value)

	assert.True(t, profiles.Exists(ctx, "mentee-9"), "an outage never blocks callers")
}

func TestProfileService_WithoutIdentityService(t *testing.T) {
	profiles, _, _ := newProfileFixture(t, nil)

	result := profiles.GetProfile(context.Background(), "mentor-1")

	assert.True(t, result.Degraded)
	assert.True(t, result.Value.Placeholder)
	assert.True(t, profiles.Exists(context.Background(), "mentor-1"))
}
