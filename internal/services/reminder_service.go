package services

import (
	"context"
	"fmt"
	"time"

	"github.com/getmentor/getmentor-sessions/internal/models"
	"github.com/getmentor/getmentor-sessions/internal/repository"
	"github.com/getmentor/getmentor-sessions/pkg/clock"
	"github.com/getmentor/getmentor-sessions/pkg/logger"
	"github.com/getmentor/getmentor-sessions/pkg/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RetryPolicy bounds re-delivery of reminders that failed to send
type RetryPolicy struct {
	// MaxAttempts stops retrying after this many failed runs; 0 retries forever
	MaxAttempts int
	// Backoff is the wait after the first failure, doubled for every further one; 0 retries every sweep
	Backoff time.Duration
}

// ReminderService pre-computes reminders for sessions and tracks their delivery
type ReminderService struct {
	store   repository.Store
	offsets []models.OffsetKind
	policy  RetryPolicy
	clock   clock.Clock
}

// NewReminderService creates a new ReminderService. offsets must be non-empty.
func NewReminderService(store repository.Store, offsets []models.OffsetKind, policy RetryPolicy, clk clock.Clock) *ReminderService {
	return &ReminderService{
		store:   store,
		offsets: offsets,
		policy:  policy,
		clock:   clk,
	}
}

// Offsets returns the configured offset kinds, longest lead first
func (s *ReminderService) Offsets() []models.OffsetKind {
	return s.offsets
}

// Policy returns the retry policy
func (s *ReminderService) Policy() RetryPolicy {
	return s.policy
}

// ScheduleAll creates one reminder per offset kind for session. Calling it again
// creates nothing new. Offsets that already lapsed are still created and become
// due at once; a session whose start has passed gets no reminders.
// It returns the number of reminders created.
func (s *ReminderService) ScheduleAll(ctx context.Context, session *models.Session) (int, error) {
	now := s.clock.Now()
	if !session.ScheduledAt.After(now) {
		logger.Debug("Session already started, no reminders scheduled",
			zap.String("session_id", session.ID))
		return 0, nil
	}

	created := 0
	for _, offset := range s.offsets {
		reminder := &models.Reminder{
			ID:            uuid.New().String(),
			SessionID:     session.ID,
			OffsetKind:    offset.Name,
			ScheduledTime: session.ScheduledAt.Add(-offset.Lead),
			CreatedAt:     now,
		}

		inserted, err := s.store.Reminders().CreateIfAbsent(ctx, reminder)
		if err != nil {
			return created, fmt.Errorf("failed to schedule %s reminder: %w", offset.Name, err)
		}
		if inserted {
			created++
			metrics.RemindersScheduled.WithLabelValues(offset.Name).Inc()
		}
	}

	return created, nil
}

// FindDue returns due reminders that still need delivery, oldest first.
// Reminders of cancelled sessions and voided reminders are never returned.
func (s *ReminderService) FindDue(ctx context.Context, now time.Time, limit int) ([]*models.DueReminder, error) {
	due, err := s.store.Reminders().FindDue(ctx, repository.DueQuery{
		Now:          now,
		Limit:        limit,
		MaxAttempts:  s.policy.MaxAttempts,
		RetryBackoff: s.policy.Backoff,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to find due reminders: %w", err)
	}
	return due, nil
}

// MarkDelivered records delivery to one recipient. It reports false when that
// recipient had already been marked.
func (s *ReminderService) MarkDelivered(ctx context.Context, reminderID string, role models.RecipientRole) (bool, error) {
	return s.store.Reminders().MarkDelivered(ctx, reminderID, role, s.clock.Now())
}

// RecordFailure counts a failed delivery run and reports whether the reminder
// has now used up its attempts
func (s *ReminderService) RecordFailure(ctx context.Context, reminderID string) (attempts int, exhausted bool, err error) {
	attempts, err = s.store.Reminders().RecordFailure(ctx, reminderID, s.clock.Now())
	if err != nil {
		return 0, false, err
	}
	return attempts, s.policy.MaxAttempts > 0 && attempts >= s.policy.MaxAttempts, nil
}

// VoidPending voids every reminder of the session not yet delivered to both participants
func (s *ReminderService) VoidPending(ctx context.Context, sessionID string) (int, error) {
	voided, err := s.store.Reminders().VoidPending(ctx, sessionID)
	if err != nil {
		return 0, fmt.Errorf("failed to void reminders: %w", err)
	}
	return voided, nil
}

// ListBySession returns the session's reminders ordered by scheduled time
func (s *ReminderService) ListBySession(ctx context.Context, sessionID string) ([]*models.Reminder, error) {
	return s.store.Reminders().ListBySession(ctx, sessionID)
}
