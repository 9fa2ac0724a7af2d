package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/getmentor/getmentor-sessions/internal/models"
	"github.com/getmentor/getmentor-sessions/internal/repository"
	apperrors "github.com/getmentor/getmentor-sessions/pkg/errors"
	"github.com/jackc/pgx/v5"
)

// ReminderRepository stores reminders
type ReminderRepository struct {
	c *Client
}

// CreateIfAbsent inserts r unless (session_id, offset_kind) already exists
func (r *ReminderRepository) CreateIfAbsent(ctx context.Context, rem *models.Reminder) (created bool, err error) {
	start := time.Now()
	defer func() { r.c.observe("createReminder", start, err) }()

	tag, err := r.c.q(ctx).Exec(ctx, `
		INSERT INTO reminders (id, session_id, offset_kind, scheduled_time, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (session_id, offset_kind) DO NOTHING`,
		rem.ID, rem.SessionID, rem.OffsetKind, rem.ScheduledTime, rem.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("failed to create reminder: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListBySession returns the session's reminders ordered by scheduled time
func (r *ReminderRepository) ListBySession(ctx context.Context, sessionID string) (reminders []*models.Reminder, err error) {
	start := time.Now()
	defer func() { r.c.observe("listReminders", start, err) }()

	rows, err := r.c.q(ctx).Query(ctx, `
		SELECT `+models.ReminderColumns+`
		FROM reminders
		WHERE session_id = $1
		ORDER BY scheduled_time, offset_kind`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reminders: %w", err)
	}
	return models.ScanReminders(rows)
}

// FindDue returns due reminders joined with their sessions
func (r *ReminderRepository) FindDue(ctx context.Context, q repository.DueQuery) (due []*models.DueReminder, err error) {
	start := time.Now()
	defer func() { r.c.observe("findDueReminders", start, err) }()

	rows, err := r.c.q(ctx).Query(ctx, `
		SELECT `+qualify("r", models.ReminderColumns)+`
		FROM reminders r
		JOIN sessions s ON s.id = r.session_id
		WHERE r.scheduled_time <= $1
		  AND NOT r.voided
		  AND NOT (r.delivered_to_mentor AND r.delivered_to_mentee)
		  AND s.status <> $3
		  AND ($4::int = 0 OR r.attempts < $4::int)
		  AND ($5::float8 = 0 OR r.last_attempt_at IS NULL
		       OR r.last_attempt_at + make_interval(secs => $5::float8 * power(2, LEAST(GREATEST(r.attempts - 1, 0), 20))) <= $1)
		ORDER BY r.scheduled_time, r.id
		LIMIT $2`,
		q.Now, q.Limit, string(models.SessionCancelled), q.MaxAttempts, q.RetryBackoff.Seconds())
	if err != nil {
		return nil, fmt.Errorf("failed to find due reminders: %w", err)
	}
	reminders, err := models.ScanReminders(rows)
	if err != nil {
		return nil, err
	}
	if len(reminders) == 0 {
		return []*models.DueReminder{}, nil
	}

	ids := make([]string, 0, len(reminders))
	for _, rem := range reminders {
		ids = append(ids, rem.SessionID)
	}
	sessionRows, err := r.c.q(ctx).Query(ctx,
		"SELECT "+models.SessionColumns+" FROM sessions WHERE id = ANY($1)", ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load reminder sessions: %w", err)
	}
	sessions, err := models.ScanSessions(sessionRows)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*models.Session, len(sessions))
	for _, s := range sessions {
		byID[s.ID] = s
	}

	due = make([]*models.DueReminder, 0, len(reminders))
	for _, rem := range reminders {
		if s, ok := byID[rem.SessionID]; ok {
			due = append(due, &models.DueReminder{Reminder: rem, Session: s})
		}
	}
	return due, nil
}

// MarkDelivered sets one recipient flag in a single statement
func (r *ReminderRepository) MarkDelivered(ctx context.Context, reminderID string, role models.RecipientRole, at time.Time) (changed bool, err error) {
	start := time.Now()
	defer func() { r.c.observe("markReminderDelivered", start, err) }()

	var flag, other string
	switch role {
	case models.RoleMentor:
		flag, other = "delivered_to_mentor", "delivered_to_mentee"
	case models.RoleMentee:
		flag, other = "delivered_to_mentee", "delivered_to_mentor"
	default:
		return false, fmt.Errorf("unknown recipient role %q", role)
	}

	// Right-hand side references see the pre-update row, so "other" is the untouched flag.
	tag, err := r.c.q(ctx).Exec(ctx, `
		UPDATE reminders
		SET `+flag+` = TRUE,
		    delivered_at = CASE WHEN `+other+` AND delivered_at IS NULL THEN $2 ELSE delivered_at END
		WHERE id = $1 AND NOT `+flag,
		reminderID, at)
	if err != nil {
		return false, fmt.Errorf("failed to mark reminder delivered: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}

	var exists bool
	if err = r.c.q(ctx).QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM reminders WHERE id = $1)", reminderID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check reminder: %w", err)
	}
	if !exists {
		return false, apperrors.NotFoundError("reminder")
	}
	return false, nil
}

// RecordFailure bumps the attempt counter
func (r *ReminderRepository) RecordFailure(ctx context.Context, reminderID string, at time.Time) (attempts int, err error) {
	start := time.Now()
	defer func() { r.c.observe("recordReminderFailure", start, err) }()

	err = r.c.q(ctx).QueryRow(ctx, `
		UPDATE reminders
		SET attempts = attempts + 1, last_attempt_at = $2
		WHERE id = $1
		RETURNING attempts`, reminderID, at).Scan(&attempts)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, apperrors.NotFoundError("reminder")
		}
		return 0, fmt.Errorf("failed to record reminder failure: %w", err)
	}
	return attempts, nil
}

// VoidPending voids every not fully delivered reminder of the session
func (r *ReminderRepository) VoidPending(ctx context.Context, sessionID string) (voided int, err error) {
	start := time.Now()
	defer func() { r.c.observe("voidReminders", start, err) }()

	tag, err := r.c.q(ctx).Exec(ctx, `
		UPDATE reminders
		SET voided = TRUE
		WHERE session_id = $1
		  AND NOT voided
		  AND NOT (delivered_to_mentor AND delivered_to_mentee)`, sessionID)
	if err != nil {
		return 0, fmt.Errorf("failed to void reminders: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
