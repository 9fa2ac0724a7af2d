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
	"github.com/getmentor/getmentor-sessions/pkg/interval"
	"github.com/getmentor/getmentor-sessions/pkg/logger"
	"github.com/getmentor/getmentor-sessions/pkg/metrics"
	"github.com/getmentor/getmentor-sessions/pkg/tracing"
	"github.com/getmentor/getmentor-sessions/pkg/trigger"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// SessionService books sessions and drives them through their lifecycle
type SessionService struct {
	store        repository.Store
	availability *AvailabilityService
	reminders    *ReminderService
	profiles     ProfileServiceInterface
	cache        *cache.Manager
	config       *config.Config
	httpClient   httpclient.Client
	clock        clock.Clock
	policy       models.LifecyclePolicy
}

// NewSessionService creates a new SessionService
func NewSessionService(
	store repository.Store,
	availability *AvailabilityService,
	reminders *ReminderService,
	profiles ProfileServiceInterface,
	cacheManager *cache.Manager,
	cfg *config.Config,
	httpClient httpclient.Client,
	clk clock.Clock,
) *SessionService {
	return &SessionService{
		store:        store,
		availability: availability,
		reminders:    reminders,
		profiles:     profiles,
		cache:        cacheManager,
		config:       cfg,
		httpClient:   httpClient,
		clock:        clk,
		policy:       models.LifecyclePolicy{NoShowThreshold: cfg.Sessions.NoShowThreshold()},
	}
}

// Book creates a SCHEDULED session for menteeID with the requested mentor.
// The window must lie inside one active slot and must not overlap another open
// session of the mentor. The session and its reminders are stored atomically.
func (s *SessionService) Book(ctx context.Context, menteeID string, req *models.BookSessionRequest) (session *models.Session, err error) {
	start := time.Now()
	ctx, span := tracing.StartServiceSpan(ctx, "sessions", "book",
		attribute.String("mentor_id", req.MentorID),
		attribute.String("mentee_id", menteeID))
	defer func() { tracing.EndSpan(span, err) }()

	now := s.clock.Now()
	if err := s.validateBooking(menteeID, req, now); err != nil {
		metrics.SessionBookings.WithLabelValues("invalid").Inc()
		return nil, err
	}
	if !s.profiles.Exists(ctx, req.MentorID) {
		metrics.SessionBookings.WithLabelValues("invalid").Inc()
		return nil, apperrors.InvalidInputError("mentorId", "unknown user")
	}
	if !s.profiles.Exists(ctx, menteeID) {
		metrics.SessionBookings.WithLabelValues("invalid").Inc()
		return nil, apperrors.InvalidInputError("menteeId", "unknown user")
	}

	session = &models.Session{
		ID:              uuid.New().String(),
		MentorID:        req.MentorID,
		MenteeID:        menteeID,
		ScheduledAt:     req.ScheduledAt.UTC(),
		DurationMinutes: req.DurationMinutes,
		Topic:           strings.TrimSpace(req.Topic),
		Status:          models.SessionScheduled,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	reminderCount := 0
	err = s.store.WithMentorLock(ctx, session.MentorID, func(ctx context.Context) error {
		slot, err := s.availability.coveringSlot(ctx, session.MentorID, session.ScheduledAt, session.EndsAt())
		if err != nil {
			return err
		}
		if slot == nil {
			return apperrors.InvalidInputError("scheduledAt", "outside the mentor's availability")
		}

		if err := s.checkSessionOverlap(ctx, session); err != nil {
			return err
		}

		if err := s.store.Sessions().Create(ctx, session); err != nil {
			return fmt.Errorf("failed to create session: %w", err)
		}

		reminderCount, err = s.reminders.ScheduleAll(ctx, session)
		return err
	})
	if err != nil {
		metrics.SessionBookings.WithLabelValues(outcome(err)).Inc()
		if outcome(err) == "error" {
			logger.Error("Failed to book session",
				zap.String("mentor_id", req.MentorID),
				zap.String("mentee_id", menteeID),
				zap.Error(err))
		}
		return nil, err
	}

	s.invalidateParticipants(session)
	trigger.CallAsync(trigger.EventSessionBooked, s.config.EventTriggers.SessionBookedTriggerURL, session.ID, s.httpClient)

	metrics.SessionBookingDuration.Observe(metrics.MeasureDuration(start))
	metrics.SessionBookings.WithLabelValues("success").Inc()
	logger.Info("Session booked",
		zap.String("session_id", session.ID),
		zap.String("mentor_id", session.MentorID),
		zap.String("mentee_id", session.MenteeID),
		zap.Time("scheduled_at", session.ScheduledAt),
		zap.Int("duration_minutes", session.DurationMinutes),
		zap.Int("reminders", reminderCount),
		zap.Duration("duration", time.Since(start)))

	return session, nil
}

func (s *SessionService) validateBooking(menteeID string, req *models.BookSessionRequest, now time.Time) error {
	if req.MentorID == "" {
		return apperrors.InvalidInputError("mentorId", "is required")
	}
	if req.MentorID == menteeID {
		return apperrors.InvalidInputError("mentorId", "cannot book a session with yourself")
	}
	if req.DurationMinutes <= 0 {
		return apperrors.InvalidInputError("durationMinutes", "must be positive")
	}
	if maxDuration := s.config.Sessions.MaxDurationMinutes; maxDuration > 0 && req.DurationMinutes > maxDuration {
		return apperrors.InvalidInputError("durationMinutes", fmt.Sprintf("must not exceed %d", maxDuration))
	}
	earliest := now.Add(time.Duration(s.config.Sessions.MinLeadMinutes) * time.Minute)
	if !req.ScheduledAt.After(earliest) {
		return apperrors.InvalidInputError("scheduledAt", "must be in the future")
	}
	return nil
}

func (s *SessionService) checkSessionOverlap(ctx context.Context, session *models.Session) error {
	open, err := s.store.Sessions().ListOpenForMentor(ctx, session.MentorID, session.ScheduledAt, session.EndsAt())
	if err != nil {
		return fmt.Errorf("failed to load sessions: %w", err)
	}

	items := make([]interval.Interval, 0, len(open))
	for _, other := range open {
		items = append(items, other.Interval())
	}

	conflict, found := interval.NewList(items...).FirstOverlap(session.Interval(), session.ID)
	if !found {
		return nil
	}
	return &apperrors.OverlapError{
		Kind:       "session",
		ConflictID: conflict.ID,
		Start:      time.Unix(conflict.Start, 0).UTC(),
		End:        time.Unix(conflict.End, 0).UTC(),
	}
}

// GetSession returns a session with participant profiles. Only participants may read it.
func (s *SessionService) GetSession(ctx context.Context, userID, sessionID string) (*models.SessionDetails, error) {
	session, err := s.cachedSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.RoleOf(userID) == "" {
		return nil, apperrors.AccessDeniedError("not a participant of this session")
	}

	return &models.SessionDetails{
		Session: session,
		Mentor:  s.profileOrPlaceholder(ctx, session.MentorID),
		Mentee:  s.profileOrPlaceholder(ctx, session.MenteeID),
	}, nil
}

func (s *SessionService) profileOrPlaceholder(ctx context.Context, userID string) *models.UserProfile {
	result := s.profiles.GetProfile(ctx, userID)
	if result.Value == nil {
		return models.PlaceholderProfile(userID)
	}
	return result.Value
}

func (s *SessionService) cachedSession(ctx context.Context, sessionID string) (*models.Session, error) {
	session, err := cache.Fetch(ctx, s.cache, cache.RegionSessions, cache.SessionKey(sessionID),
		func(ctx context.Context) (*models.Session, error) {
			return s.store.Sessions().GetByID(ctx, sessionID)
		})
	if err != nil {
		return nil, err
	}
	return session.Clone(), nil
}

// ListSessions returns one page of the user's sessions, newest first.
// Without a role filter both mentor and mentee sessions are listed.
func (s *SessionService) ListSessions(ctx context.Context, userID string, query *models.ListSessionsQuery) (*models.SessionListResponse, error) {
	statuses, err := parseStatuses(query.Status)
	if err != nil {
		return nil, err
	}

	filter := models.SessionFilter{
		UserID:   userID,
		Role:     models.RecipientRole(query.Role),
		Statuses: statuses,
		Page:     query.Page,
		PageSize: query.PageSize,
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = defaultPageSize
	}
	if filter.PageSize > maxPageSize {
		filter.PageSize = maxPageSize
	}

	statusNames := make([]string, 0, len(statuses))
	for _, st := range statuses {
		statusNames = append(statusNames, string(st))
	}
	key := cache.UserSessionsKey(userID, query.Role, statusNames, filter.Page, filter.PageSize)

	return cache.Fetch(ctx, s.cache, cache.RegionSessions, key,
		func(ctx context.Context) (*models.SessionListResponse, error) {
			sessions, total, err := s.store.Sessions().List(ctx, filter)
			if err != nil {
				logger.Error("Failed to list sessions",
					zap.String("user_id", userID),
					zap.Error(err))
				return nil, fmt.Errorf("failed to list sessions: %w", err)
			}
			return &models.SessionListResponse{
				Sessions: sessions,
				Total:    total,
				Page:     filter.Page,
				PageSize: filter.PageSize,
			}, nil
		})
}

func parseStatuses(raw string) ([]models.SessionStatus, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var statuses []models.SessionStatus
	for _, part := range strings.Split(raw, ",") {
		status := models.SessionStatus(strings.ToUpper(strings.TrimSpace(part)))
		if status == "" {
			continue
		}
		if !status.Valid() {
			return nil, apperrors.InvalidInputError("status", fmt.Sprintf("unknown status %q", part))
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

// Cancel moves a SCHEDULED session to CANCELLED and voids its pending reminders.
// Reminders already delivered are not recalled.
func (s *SessionService) Cancel(ctx context.Context, userID, sessionID, reason string) (*models.Session, error) {
	return s.transition(ctx, userID, sessionID, models.EventCancel, strings.TrimSpace(reason))
}

// Start moves a SCHEDULED session to IN_PROGRESS
func (s *SessionService) Start(ctx context.Context, userID, sessionID string) (*models.Session, error) {
	return s.transition(ctx, userID, sessionID, models.EventStart, "")
}

// Complete moves an IN_PROGRESS (or started SCHEDULED) session to COMPLETED
func (s *SessionService) Complete(ctx context.Context, userID, sessionID string) (*models.Session, error) {
	return s.transition(ctx, userID, sessionID, models.EventComplete, "")
}

// MarkNoShow moves a SCHEDULED session that was never started to NO_SHOW.
// It is driven by the sweep, not by participants.
func (s *SessionService) MarkNoShow(ctx context.Context, sessionID string) (*models.Session, error) {
	return s.transition(ctx, "", sessionID, models.EventNoShow, "")
}

// DetectNoShows marks up to limit stale sessions as NO_SHOW and returns how many changed
func (s *SessionService) DetectNoShows(ctx context.Context, limit int) (int, error) {
	cutoff := s.clock.Now().Add(-s.policy.NoShowThreshold)
	stale, err := s.store.Sessions().ListStale(ctx, cutoff, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to list stale sessions: %w", err)
	}

	marked := 0
	for _, session := range stale {
		if ctx.Err() != nil {
			return marked, ctx.Err()
		}
		if _, err := s.MarkNoShow(ctx, session.ID); err != nil {
			// a participant may have started the session since it was listed
			if !apperrors.Is(err, apperrors.ErrInvalidTransition) {
				logger.Error("Failed to mark session as no-show",
					zap.String("session_id", session.ID),
					zap.Error(err))
			}
			continue
		}
		marked++
	}
	return marked, nil
}

// transition applies event to the session. An empty userID is the system actor;
// otherwise the user must be a participant.
func (s *SessionService) transition(ctx context.Context, userID, sessionID string, event models.SessionEvent, reason string) (session *models.Session, err error) {
	ctx, span := tracing.StartServiceSpan(ctx, "sessions", string(event), attribute.String("session_id", sessionID))
	defer func() { tracing.EndSpan(span, err) }()

	session, err = s.store.Sessions().GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if userID != "" && session.RoleOf(userID) == "" {
		metrics.SessionTransitions.WithLabelValues(string(event), "forbidden").Inc()
		return nil, apperrors.AccessDeniedError("not a participant of this session")
	}

	now := s.clock.Now()
	next, err := models.NextStatus(session, event, now, s.policy)
	if err != nil {
		metrics.SessionTransitions.WithLabelValues(string(event), "rejected").Inc()
		return nil, err
	}

	update := repository.StatusUpdate{
		SessionID: sessionID,
		Expected:  session.Status,
		Next:      next,
		At:        now,
	}
	if event == models.EventCancel {
		update.CancelledBy = userID
		update.CancelReason = reason
	}

	voided := 0
	err = s.store.InTx(ctx, func(ctx context.Context) error {
		if err := s.store.Sessions().UpdateStatus(ctx, update); err != nil {
			return err
		}
		if next == models.SessionCancelled {
			var err error
			voided, err = s.reminders.VoidPending(ctx, sessionID)
			return err
		}
		return nil
	})
	if errors.Is(err, repository.ErrStatusChanged) {
		metrics.SessionTransitions.WithLabelValues(string(event), "rejected").Inc()
		current := session.Status
		if latest, getErr := s.store.Sessions().GetByID(ctx, sessionID); getErr == nil {
			current = latest.Status
		}
		s.invalidateSession(session)
		return nil, &apperrors.InvalidTransitionError{
			From:   string(current),
			Event:  string(event),
			To:     string(next),
			Reason: "session status changed concurrently",
		}
	}
	if err != nil {
		metrics.SessionTransitions.WithLabelValues(string(event), "error").Inc()
		logger.Error("Failed to update session status",
			zap.String("session_id", sessionID),
			zap.String("event", string(event)),
			zap.Error(err))
		return nil, fmt.Errorf("failed to update session: %w", err)
	}

	previous := session.Status
	session.Status = next
	session.UpdatedAt = now
	if event == models.EventCancel {
		session.CancelledBy = update.CancelledBy
		session.CancelReason = update.CancelReason
	}

	s.invalidateSession(session)
	if next == models.SessionCancelled {
		trigger.CallAsync(trigger.EventSessionCancelled, s.config.EventTriggers.SessionCancelledTriggerURL, session.ID, s.httpClient)
	}

	metrics.SessionTransitions.WithLabelValues(string(event), "success").Inc()
	logger.Info("Session status changed",
		zap.String("session_id", sessionID),
		zap.String("event", string(event)),
		zap.String("from", string(previous)),
		zap.String("to", string(next)),
		zap.String("actor", actorName(userID)),
		zap.Int("voided_reminders", voided))

	return session, nil
}

func actorName(userID string) string {
	if userID == "" {
		return "system"
	}
	return userID
}

// UpdateNotes replaces the caller's notes on the session. Mentors edit the mentor
// notes and mentees the mentee notes; allowed in any state.
func (s *SessionService) UpdateNotes(ctx context.Context, userID, sessionID, notes string) (*models.Session, error) {
	session, err := s.store.Sessions().GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	role := session.RoleOf(userID)
	if role == "" {
		return nil, apperrors.AccessDeniedError("not a participant of this session")
	}

	notes = strings.TrimSpace(notes)
	now := s.clock.Now()
	if err := s.store.Sessions().UpdateNotes(ctx, sessionID, role, notes, now); err != nil {
		logger.Error("Failed to update session notes",
			zap.String("session_id", sessionID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to update notes: %w", err)
	}

	if role == models.RoleMentor {
		session.MentorNotes = notes
	} else {
		session.MenteeNotes = notes
	}
	session.UpdatedAt = now
	s.invalidateSession(session)

	return session, nil
}

// ListReminders returns the reminders of a session to one of its participants
func (s *SessionService) ListReminders(ctx context.Context, userID, sessionID string) ([]*models.Reminder, error) {
	session, err := s.cachedSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.RoleOf(userID) == "" {
		return nil, apperrors.AccessDeniedError("not a participant of this session")
	}

	return cache.Fetch(ctx, s.cache, cache.RegionSessions, cache.SessionRemindersKey(sessionID),
		func(ctx context.Context) ([]*models.Reminder, error) {
			return s.reminders.ListBySession(ctx, sessionID)
		})
}

// invalidateSession drops every cached view of the session
func (s *SessionService) invalidateSession(session *models.Session) {
	s.cache.Invalidate(cache.RegionSessions, cache.SessionKey(session.ID))
	s.cache.Invalidate(cache.RegionSessions, cache.SessionRemindersKey(session.ID))
	s.invalidateParticipants(session)
}

func (s *SessionService) invalidateParticipants(session *models.Session) {
	s.cache.InvalidatePrefix(cache.RegionSessions, cache.UserSessionsPrefix(session.MentorID))
	s.cache.InvalidatePrefix(cache.RegionSessions, cache.UserSessionsPrefix(session.MenteeID))
}
