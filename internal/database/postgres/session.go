package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/getmentor/getmentor-sessions/internal/models"
	"github.com/getmentor/getmentor-sessions/internal/repository"
	apperrors "github.com/getmentor/getmentor-sessions/pkg/errors"
	"github.com/jackc/pgx/v5"
)

// SessionRepository stores sessions
type SessionRepository struct {
	c *Client
}

// Create inserts a new session
func (r *SessionRepository) Create(ctx context.Context, s *models.Session) (err error) {
	start := time.Now()
	defer func() { r.c.observe("createSession", start, err) }()

	_, err = r.c.q(ctx).Exec(ctx, `
		INSERT INTO sessions (id, mentor_id, mentee_id, scheduled_at, duration_minutes, topic, status,
			mentor_notes, mentee_notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		s.ID, s.MentorID, s.MenteeID, s.ScheduledAt, s.DurationMinutes, s.Topic, string(s.Status),
		models.NullIfEmpty(s.MentorNotes), models.NullIfEmpty(s.MenteeNotes), s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// GetByID fetches a session
func (r *SessionRepository) GetByID(ctx context.Context, sessionID string) (s *models.Session, err error) {
	start := time.Now()
	defer func() { r.c.observe("getSession", start, err) }()

	row := r.c.q(ctx).QueryRow(ctx,
		"SELECT "+models.SessionColumns+" FROM sessions WHERE id = $1", sessionID)
	s, err = models.ScanSession(row)
	if err != nil {
		return nil, notFound(err, "session")
	}
	return s, nil
}

// List returns a page of the user's sessions, newest first
func (r *SessionRepository) List(ctx context.Context, filter models.SessionFilter) (sessions []*models.Session, total int, err error) {
	start := time.Now()
	defer func() { r.c.observe("listSessions", start, err) }()

	where, args := sessionFilterClause(filter)

	if err = r.c.q(ctx).QueryRow(ctx, "SELECT COUNT(*) FROM sessions WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count sessions: %w", err)
	}

	args = append(args, filter.PageSize, filter.Offset())
	query := fmt.Sprintf(`
		SELECT %s FROM sessions
		WHERE %s
		ORDER BY scheduled_at DESC, id
		LIMIT $%d OFFSET $%d`, models.SessionColumns, where, len(args)-1, len(args))

	rows, err := r.c.q(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list sessions: %w", err)
	}
	sessions, err = models.ScanSessions(rows)
	if err != nil {
		return nil, 0, err
	}
	return sessions, total, nil
}

func sessionFilterClause(filter models.SessionFilter) (string, []any) {
	args := []any{filter.UserID}
	var where string
	switch filter.Role {
	case models.RoleMentor:
		where = "mentor_id = $1"
	case models.RoleMentee:
		where = "mentee_id = $1"
	default:
		where = "(mentor_id = $1 OR mentee_id = $1)"
	}

	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			statuses = append(statuses, string(s))
		}
		args = append(args, statuses)
		where += fmt.Sprintf(" AND status = ANY($%d)", len(args))
	}
	return where, args
}

// ListOpenForMentor returns the mentor's non-terminal sessions intersecting [from, to)
func (r *SessionRepository) ListOpenForMentor(ctx context.Context, mentorID string, from, to time.Time) (sessions []*models.Session, err error) {
	start := time.Now()
	defer func() { r.c.observe("listOpenSessions", start, err) }()

	rows, err := r.c.q(ctx).Query(ctx, `
		SELECT `+models.SessionColumns+`
		FROM sessions
		WHERE mentor_id = $1
		  AND status = ANY($2)
		  AND scheduled_at < $4
		  AND scheduled_at + make_interval(mins => duration_minutes) > $3
		ORDER BY scheduled_at`,
		mentorID, openStatuses(), from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list open sessions: %w", err)
	}
	return models.ScanSessions(rows)
}

func openStatuses() []string {
	out := make([]string, 0, len(models.OpenSessionStatuses))
	for _, s := range models.OpenSessionStatuses {
		out = append(out, string(s))
	}
	return out
}

// UpdateStatus changes status only if it still equals update.Expected
func (r *SessionRepository) UpdateStatus(ctx context.Context, update repository.StatusUpdate) (err error) {
	start := time.Now()
	defer func() { r.c.observe("updateSessionStatus", start, err) }()

	tag, err := r.c.q(ctx).Exec(ctx, `
		UPDATE sessions
		SET status = $3,
		    cancelled_by = COALESCE($4, cancelled_by),
		    cancel_reason = COALESCE($5, cancel_reason),
		    updated_at = $6
		WHERE id = $1 AND status = $2`,
		update.SessionID, string(update.Expected), string(update.Next),
		models.NullIfEmpty(update.CancelledBy), models.NullIfEmpty(update.CancelReason), update.At)
	if err != nil {
		return fmt.Errorf("failed to update session status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err = r.c.q(ctx).QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM sessions WHERE id = $1)", update.SessionID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check session: %w", err)
		}
		if !exists {
			return apperrors.NotFoundError("session")
		}
		return repository.ErrStatusChanged
	}
	return nil
}

// UpdateNotes stores the notes of one participant
func (r *SessionRepository) UpdateNotes(ctx context.Context, sessionID string, role models.RecipientRole, notes string, at time.Time) (err error) {
	start := time.Now()
	defer func() { r.c.observe("updateSessionNotes", start, err) }()

	var column string
	switch role {
	case models.RoleMentor:
		column = "mentor_notes"
	case models.RoleMentee:
		column = "mentee_notes"
	default:
		return fmt.Errorf("unknown participant role %q", role)
	}

	tag, err := r.c.q(ctx).Exec(ctx,
		"UPDATE sessions SET "+column+" = $2, updated_at = $3 WHERE id = $1",
		sessionID, models.NullIfEmpty(strings.TrimSpace(notes)), at)
	if err != nil {
		return fmt.Errorf("failed to update session notes: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFoundError("session")
	}
	return nil
}

// ListStale returns SCHEDULED sessions that should have started before startedBefore
func (r *SessionRepository) ListStale(ctx context.Context, startedBefore time.Time, limit int) (sessions []*models.Session, err error) {
	start := time.Now()
	defer func() { r.c.observe("listStaleSessions", start, err) }()

	rows, err := r.c.q(ctx).Query(ctx, `
		SELECT `+models.SessionColumns+`
		FROM sessions
		WHERE status = $1 AND scheduled_at <= $2
		ORDER BY scheduled_at
		LIMIT $3`,
		string(models.SessionScheduled), startedBefore, limit)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return []*models.Session{}, nil
		}
		return nil, fmt.Errorf("failed to list stale sessions: %w", err)
	}
	return models.ScanSessions(rows)
}
