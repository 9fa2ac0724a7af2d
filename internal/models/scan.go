package models

import (
	"time"

	"github.com/jackc/pgx/v5"
)

// Column lists shared by the repositories and the Scan helpers below
const (
	SlotColumns     = "id, mentor_id, day_of_week, start_minute, end_minute, active, created_at, updated_at"
	SessionColumns  = "id, mentor_id, mentee_id, scheduled_at, duration_minutes, topic, status, mentor_notes, mentee_notes, cancelled_by, cancel_reason, created_at, updated_at"
	ReminderColumns = "id, session_id, offset_kind, scheduled_time, delivered_to_mentor, delivered_to_mentee, delivered_at, voided, attempts, last_attempt_at, created_at"
	ReviewColumns   = "id, reviewer_id, reviewee_id, session_id, rating, comment, approved, flagged, created_at"
)

// ScanSlot scans a single row selected with SlotColumns
func ScanSlot(row pgx.Row) (*AvailabilitySlot, error) {
	var s AvailabilitySlot
	var day, start, end int

	if err := row.Scan(&s.ID, &s.MentorID, &day, &start, &end, &s.Active, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}

	s.DayOfWeek = DayOfWeek(day)
	s.StartTime = TimeOfDay(start)
	s.EndTime = TimeOfDay(end)
	s.CreatedAt = s.CreatedAt.UTC()
	s.UpdatedAt = s.UpdatedAt.UTC()
	return &s, nil
}

// ScanSlots scans all rows and closes them
func ScanSlots(rows pgx.Rows) ([]*AvailabilitySlot, error) {
	return scanAll(rows, ScanSlot)
}

// ScanSession scans a single row selected with SessionColumns
func ScanSession(row pgx.Row) (*Session, error) {
	var s Session
	var mentorNotes, menteeNotes, cancelledBy, cancelReason *string // nullable

	err := row.Scan(
		&s.ID,
		&s.MentorID,
		&s.MenteeID,
		&s.ScheduledAt,
		&s.DurationMinutes,
		&s.Topic,
		&s.Status,
		&mentorNotes,
		&menteeNotes,
		&cancelledBy,
		&cancelReason,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.MentorNotes = deref(mentorNotes)
	s.MenteeNotes = deref(menteeNotes)
	s.CancelledBy = deref(cancelledBy)
	s.CancelReason = deref(cancelReason)
	s.ScheduledAt = s.ScheduledAt.UTC()
	s.CreatedAt = s.CreatedAt.UTC()
	s.UpdatedAt = s.UpdatedAt.UTC()
	return &s, nil
}

// ScanSessions scans all rows and closes them
func ScanSessions(rows pgx.Rows) ([]*Session, error) {
	return scanAll(rows, ScanSession)
}

// ScanReminder scans a single row selected with ReminderColumns
func ScanReminder(row pgx.Row) (*Reminder, error) {
	var r Reminder
	err := row.Scan(
		&r.ID,
		&r.SessionID,
		&r.OffsetKind,
		&r.ScheduledTime,
		&r.DeliveredToMentor,
		&r.DeliveredToMentee,
		&r.DeliveredAt,
		&r.Voided,
		&r.Attempts,
		&r.LastAttemptAt,
		&r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.ScheduledTime = r.ScheduledTime.UTC()
	r.DeliveredAt = UTCPtr(r.DeliveredAt)
	r.LastAttemptAt = UTCPtr(r.LastAttemptAt)
	return &r, nil
}

// ScanReminders scans all rows and closes them
func ScanReminders(rows pgx.Rows) ([]*Reminder, error) {
	return scanAll(rows, ScanReminder)
}

// ScanReview scans a single row selected with ReviewColumns
func ScanReview(row pgx.Row) (*Review, error) {
	var r Review
	err := row.Scan(
		&r.ID,
		&r.ReviewerID,
		&r.RevieweeID,
		&r.SessionID,
		&r.Rating,
		&r.Comment,
		&r.Approved,
		&r.Flagged,
		&r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ScanReviews scans all rows and closes them
func ScanReviews(rows pgx.Rows) ([]*Review, error) {
	return scanAll(rows, ScanReview)
}

func scanAll[T any](rows pgx.Rows, scan func(pgx.Row) (*T, error)) ([]*T, error) {
	defer rows.Close()

	items := []*T{}
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// NullIfEmpty converts "" to a NULL parameter
func NullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// UTCPtr normalizes an optional timestamp
func UTCPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
