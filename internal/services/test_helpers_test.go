package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/getmentor/getmentor-sessions/config"
	"github.com/getmentor/getmentor-sessions/internal/cache"
	"github.com/getmentor/getmentor-sessions/internal/models"
	"github.com/getmentor/getmentor-sessions/internal/repository/memory"
	"github.com/getmentor/getmentor-sessions/internal/services"
	"github.com/getmentor/getmentor-sessions/pkg/clock"
	"github.com/getmentor/getmentor-sessions/pkg/fallback"
	"github.com/getmentor/getmentor-sessions/pkg/httpclient"
	"github.com/getmentor/getmentor-sessions/pkg/logger"
	"github.com/getmentor/getmentor-sessions/pkg/notifier"
	"github.com/stretchr/testify/require"
)

func init() {
	// Initialize logger for tests
	if err := logger.Initialize(logger.Config{
		Level:       "debug",
		Environment: "development",
	}); err != nil {
		panic(err)
	}
}

// monday0900 is a Monday; fixtures add a Monday 09:00-17:00 slot
var monday0900 = time.Date(2030, time.March, 4, 9, 0, 0, 0, time.UTC)

// knownProfiles is a ProfileServiceInterface backed by a fixed set of users
type knownProfiles map[string]bool

func (k knownProfiles) GetProfile(_ context.Context, userID string) fallback.Result[*models.UserProfile] {
	if !k[userID] {
		return fallback.Result[*models.UserProfile]{Err: fallback.Permanent(errNoSuchUser)}
	}
	return fallback.Result[*models.UserProfile]{Value: &models.UserProfile{ID: userID, DisplayName: "User " + userID}}
}

func (k knownProfiles) Exists(_ context.Context, userID string) bool {
	return k[userID]
}

// recordingSender records every message and fails the recipients listed in failFor
type recordingSender struct {
	mu      sync.Mutex
	sent    []notifier.Message
	failFor map[string]bool
}

func (s *recordingSender) Send(_ context.Context, msg notifier.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failFor[msg.RecipientID] {
		return errSendFailed
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *recordingSender) setFailing(recipients ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failFor = make(map[string]bool, len(recipients))
	for _, r := range recipients {
		s.failFor[r] = true
	}
}

func (s *recordingSender) messages() []notifier.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]notifier.Message(nil), s.sent...)
}

type testError string

func (e testError) Error() string { return string(e) }

const (
	errNoSuchUser = testError("no such user")
	errSendFailed = testError("notification service unavailable")
)

type fixture struct {
	store        *memory.Store
	clock        *clock.Fake
	cache        *cache.Manager
	config       *config.Config
	availability *services.AvailabilityService
	reminders    *services.ReminderService
	sessions     *services.SessionService
	reviews      *services.ReviewService
	dispatch     *services.DispatchService
	sender       *recordingSender
}

type fixtureOption func(*fixtureOptions)

type fixtureOptions struct {
	policy services.RetryPolicy
}

func withRetryPolicy(p services.RetryPolicy) fixtureOption {
	return func(o *fixtureOptions) { o.policy = p }
}

// newFixture wires the services on the in-memory store. Users mentor-1,
// mentor-2, mentee-1 and mentee-2 exist; mentor-1 has a Monday 09:00-17:00 slot.
// The clock starts one week before monday0900.
func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()

	o := fixtureOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	clk := clock.NewFake(monday0900.AddDate(0, 0, -7))
	cacheManager, err := cache.NewManager(clk,
		cache.RegionConfig{Name: cache.RegionProfiles, TTL: time.Hour, MaxEntries: 100},
		cache.RegionConfig{Name: cache.RegionSessions, TTL: time.Minute, MaxEntries: 100},
		cache.RegionConfig{Name: cache.RegionAvailability, TTL: time.Minute, MaxEntries: 100},
		cache.RegionConfig{Name: cache.RegionReviews, TTL: time.Minute, MaxEntries: 100},
	)
	require.NoError(t, err)

	cfg := &config.Config{
		Sessions: config.SessionsConfig{
			NoShowThresholdMinutes: 30,
			MaxDurationMinutes:     480,
		},
	}

	offsets, err := models.ParseOffsets(models.DefaultOffsets)
	require.NoError(t, err)

	store := memory.NewStore()
	profiles := knownProfiles{"mentor-1": true, "mentor-2": true, "mentee-1": true, "mentee-2": true}
	httpClient := httpclient.NewStandardClient()
	sender := &recordingSender{}

	availability := services.NewAvailabilityService(store, cacheManager, clk)
	reminders := services.NewReminderService(store, offsets, o.policy, clk)
	f := &fixture{
		store:        store,
		clock:        clk,
		cache:        cacheManager,
		config:       cfg,
		availability: availability,
		reminders:    reminders,
		sessions:     services.NewSessionService(store, availability, reminders, profiles, cacheManager, cfg, httpClient, clk),
		reviews:      services.NewReviewService(store, profiles, cacheManager, cfg, httpClient, clk),
		dispatch: services.NewDispatchService(reminders, sender, cacheManager, clk, services.DispatchOptions{
			Channel:   "email",
			BatchSize: 100,
			Workers:   4,
			Guard:     &fallback.Guard{Service: "notifications", Operation: "send"},
		}),
		sender: sender,
	}

	_, err = availability.AddSlot(context.Background(), "mentor-1", &models.CreateSlotRequest{
		DayOfWeek: "monday", StartTime: "09:00", EndTime: "17:00",
	})
	require.NoError(t, err)

	return f
}

func (f *fixture) book(t *testing.T, menteeID string, at time.Time, minutes int) *models.Session {
	t.Helper()
	session, err := f.sessions.Book(context.Background(), menteeID, &models.BookSessionRequest{
		MentorID:        "mentor-1",
		ScheduledAt:     at,
		DurationMinutes: minutes,
	})
	require.NoError(t, err)
	return session
}
