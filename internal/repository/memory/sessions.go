package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/getmentor/getmentor-sessions/internal/models"
	"github.com/getmentor/getmentor-sessions/internal/repository"
	apperrors "github.com/getmentor/getmentor-sessions/pkg/errors"
)

type sessionRepository struct {
	s *Store
}

func (r *sessionRepository) Create(ctx context.Context, session *models.Session) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.sessions[session.ID]; exists {
		return apperrors.ErrConflict
	}
	r.s.sessions[session.ID] = session.Clone()
	onRollback(ctx, func() { delete(r.s.sessions, session.ID) })
	return nil
}

func (r *sessionRepository) GetByID(_ context.Context, sessionID string) (*models.Session, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	stored, ok := r.s.sessions[sessionID]
	if !ok {
		return nil, apperrors.NotFoundError("session")
	}
	return stored.Clone(), nil
}

func (r *sessionRepository) List(_ context.Context, filter models.SessionFilter) ([]*models.Session, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	statuses := make(map[models.SessionStatus]bool, len(filter.Statuses))
	for _, st := range filter.Statuses {
		statuses[st] = true
	}

	matched := []*models.Session{}
	for _, s := range r.s.sessions {
		switch filter.Role {
		case models.RoleMentor:
			if s.MentorID != filter.UserID {
				continue
			}
		case models.RoleMentee:
			if s.MenteeID != filter.UserID {
				continue
			}
		default:
			if s.MentorID != filter.UserID && s.MenteeID != filter.UserID {
				continue
			}
		}
		if len(statuses) > 0 && !statuses[s.Status] {
			continue
		}
		matched = append(matched, s)
	}

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].ScheduledAt.Equal(matched[j].ScheduledAt) {
			return matched[i].ScheduledAt.After(matched[j].ScheduledAt)
		}
		return matched[i].ID < matched[j].ID
	})

	total := len(matched)
	from := filter.Offset()
	if from > total {
		from = total
	}
	to := total
	if filter.PageSize > 0 && from+filter.PageSize < total {
		to = from + filter.PageSize
	}

	page := make([]*models.Session, 0, to-from)
	for _, s := range matched[from:to] {
		page = append(page, s.Clone())
	}
	return page, total, nil
}

func (r *sessionRepository) ListOpenForMentor(_ context.Context, mentorID string, from, to time.Time) ([]*models.Session, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []*models.Session{}
	for _, s := range r.s.sessions {
		if s.MentorID != mentorID || s.Status.IsTerminal() {
			continue
		}
		if s.ScheduledAt.Before(to) && s.EndsAt().After(from) {
			out = append(out, s.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	return out, nil
}

func (r *sessionRepository) UpdateStatus(ctx context.Context, update repository.StatusUpdate) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.sessions[update.SessionID]
	if !ok {
		return apperrors.NotFoundError("session")
	}
	if stored.Status != update.Expected {
		return repository.ErrStatusChanged
	}

	prev := stored.Clone()
	stored.Status = update.Next
	if update.CancelledBy != "" {
		stored.CancelledBy = update.CancelledBy
	}
	if update.CancelReason != "" {
		stored.CancelReason = update.CancelReason
	}
	stored.UpdatedAt = update.At
	onRollback(ctx, func() { r.s.sessions[update.SessionID] = prev })
	return nil
}

func (r *sessionRepository) UpdateNotes(ctx context.Context, sessionID string, role models.RecipientRole, notes string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.sessions[sessionID]
	if !ok {
		return apperrors.NotFoundError("session")
	}

	prev := stored.Clone()
	notes = strings.TrimSpace(notes)
	switch role {
	case models.RoleMentor:
		stored.MentorNotes = notes
	case models.RoleMentee:
		stored.MenteeNotes = notes
	default:
		return fmt.Errorf("unknown participant role %q", role)
	}
	stored.UpdatedAt = at
	onRollback(ctx, func() { r.s.sessions[sessionID] = prev })
	return nil
}

func (r *sessionRepository) ListStale(_ context.Context, startedBefore time.Time, limit int) ([]*models.Session, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []*models.Session{}
	for _, s := range r.s.sessions {
		if s.Status == models.SessionScheduled && !s.ScheduledAt.After(startedBefore) {
			out = append(out, s.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
