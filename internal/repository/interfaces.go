package repository

import (
	"context"
	"errors"
	"time"

	"github.com/getmentor/getmentor-sessions/internal/models"
)

// ErrStatusChanged is returned by compare-and-set status updates when the stored
// status no longer matches the expected one
var ErrStatusChanged = errors.New("session status changed concurrently")

// Store is the authoritative storage for slots, sessions, reminders and reviews.
// It is implemented by the PostgreSQL client and by the in-memory store.
type Store interface {
	Slots() SlotRepository
	Sessions() SessionRepository
	Reminders() ReminderRepository
	Reviews() ReviewRepository

	// WithMentorLock runs fn while holding the mentor's exclusive write lock.
	// Every repository call made with the ctx passed to fn belongs to one transaction.
	WithMentorLock(ctx context.Context, mentorID string, fn func(ctx context.Context) error) error

	// InTx runs fn in a transaction without taking a mentor lock
	InTx(ctx context.Context, fn func(ctx context.Context) error) error

	Ping(ctx context.Context) error
}

// SlotRepository persists availability slots
type SlotRepository interface {
	Create(ctx context.Context, slot *models.AvailabilitySlot) error
	// UpdateTimes changes the start and end of a slot
	UpdateTimes(ctx context.Context, slot *models.AvailabilitySlot) error
	// SetActive returns false when the slot already had the requested state
	SetActive(ctx context.Context, slotID string, active bool, at time.Time) (bool, error)
	GetByID(ctx context.Context, slotID string) (*models.AvailabilitySlot, error)
	ListActive(ctx context.Context, mentorID string) ([]*models.AvailabilitySlot, error)
	ListActiveByDay(ctx context.Context, mentorID string, day models.DayOfWeek) ([]*models.AvailabilitySlot, error)
}

// SessionRepository persists sessions
type SessionRepository interface {
	Create(ctx context.Context, session *models.Session) error
	GetByID(ctx context.Context, sessionID string) (*models.Session, error)
	// List returns one page of sessions matching filter and the total match count
	List(ctx context.Context, filter models.SessionFilter) ([]*models.Session, int, error)
	// ListOpenForMentor returns non-terminal sessions of the mentor intersecting [from, to)
	ListOpenForMentor(ctx context.Context, mentorID string, from, to time.Time) ([]*models.Session, error)
	// UpdateStatus is a compare-and-set on status. It returns ErrStatusChanged when
	// the stored status differs from expected.
	UpdateStatus(ctx context.Context, update StatusUpdate) error
	UpdateNotes(ctx context.Context, sessionID string, role models.RecipientRole, notes string, at time.Time) error
	// ListStale returns SCHEDULED sessions that started before startedBefore
	ListStale(ctx context.Context, startedBefore time.Time, limit int) ([]*models.Session, error)
}

// StatusUpdate describes a guarded session status change
type StatusUpdate struct {
	SessionID    string
	Expected     models.SessionStatus
	Next         models.SessionStatus
	CancelledBy  string
	CancelReason string
	At           time.Time
}

// DueQuery selects reminders for a dispatch run
type DueQuery struct {
	Now   time.Time
	Limit int
	// MaxAttempts skips reminders that already failed this many times; 0 disables the cap
	MaxAttempts int
	// RetryBackoff is the base delay after a failure, doubled for every further failure; 0 disables it
	RetryBackoff time.Duration
}

// ReminderRepository persists reminders and their per-recipient delivery flags
type ReminderRepository interface {
	// CreateIfAbsent inserts r unless a reminder for (SessionID, OffsetKind) exists.
	// Returns true when a row was inserted.
	CreateIfAbsent(ctx context.Context, r *models.Reminder) (bool, error)
	ListBySession(ctx context.Context, sessionID string) ([]*models.Reminder, error)
	// FindDue returns due, undelivered, non-void reminders of non-cancelled sessions ordered by scheduled time
	FindDue(ctx context.Context, q DueQuery) ([]*models.DueReminder, error)
	// MarkDelivered atomically sets one recipient flag and stamps delivered_at once both are set.
	// Returns false when the flag was already set.
	MarkDelivered(ctx context.Context, reminderID string, role models.RecipientRole, at time.Time) (bool, error)
	// RecordFailure increments attempts and returns the new count
	RecordFailure(ctx context.Context, reminderID string, at time.Time) (int, error)
	// VoidPending marks every not fully delivered reminder of the session as void
	VoidPending(ctx context.Context, sessionID string) (int, error)
}

// ReviewRepository persists reviews
type ReviewRepository interface {
	// Create returns an error wrapping ErrConflict when (reviewer, session) already has a review
	Create(ctx context.Context, review *models.Review) error
	GetByID(ctx context.Context, reviewID string) (*models.Review, error)
	ListByReviewee(ctx context.Context, revieweeID string, visibleOnly bool) ([]*models.Review, error)
	SetModeration(ctx context.Context, reviewID string, approved, flagged bool) error
}
