package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/getmentor/getmentor-sessions/internal/models"
	"github.com/getmentor/getmentor-sessions/internal/repository"
	apperrors "github.com/getmentor/getmentor-sessions/pkg/errors"
	"github.com/getmentor/getmentor-sessions/pkg/retry"
)

type reminderRepository struct {
	s *Store
}

func reminderKey(sessionID, offset string) string {
	return sessionID + "|" + offset
}

func (r *reminderRepository) CreateIfAbsent(ctx context.Context, rem *models.Reminder) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := reminderKey(rem.SessionID, rem.OffsetKind)
	if _, exists := r.s.reminderKeys[key]; exists {
		return false, nil
	}
	if _, ok := r.s.sessions[rem.SessionID]; !ok {
		return false, fmt.Errorf("reminder references unknown session %s", rem.SessionID)
	}

	r.s.reminders[rem.ID] = rem.Clone()
	r.s.reminderKeys[key] = rem.ID
	onRollback(ctx, func() {
		delete(r.s.reminders, rem.ID)
		delete(r.s.reminderKeys, key)
	})
	return true, nil
}

func (r *reminderRepository) ListBySession(_ context.Context, sessionID string) ([]*models.Reminder, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []*models.Reminder{}
	for _, rem := range r.s.reminders {
		if rem.SessionID == sessionID {
			out = append(out, rem.Clone())
		}
	}
	sortReminders(out)
	return out, nil
}

func sortReminders(list []*models.Reminder) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].ScheduledTime.Equal(list[j].ScheduledTime) {
			return list[i].ScheduledTime.Before(list[j].ScheduledTime)
		}
		return list[i].ID < list[j].ID
	})
}

func (r *reminderRepository) FindDue(_ context.Context, q repository.DueQuery) ([]*models.DueReminder, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	candidates := []*models.Reminder{}
	for _, rem := range r.s.reminders {
		if rem.ScheduledTime.After(q.Now) || rem.Voided || rem.FullyDelivered() {
			continue
		}
		session, ok := r.s.sessions[rem.SessionID]
		if !ok || session.Status == models.SessionCancelled {
			continue
		}
		if q.MaxAttempts > 0 && rem.Attempts >= q.MaxAttempts {
			continue
		}
		if q.RetryBackoff > 0 && rem.Attempts > 0 && rem.LastAttemptAt != nil {
			wait := retry.Backoff(min(rem.Attempts, 21), q.RetryBackoff, 0)
			if rem.LastAttemptAt.Add(wait).After(q.Now) {
				continue
			}
		}
		candidates = append(candidates, rem)
	}
	sortReminders(candidates)
	if q.Limit > 0 && len(candidates) > q.Limit {
		candidates = candidates[:q.Limit]
	}

	due := make([]*models.DueReminder, 0, len(candidates))
	for _, rem := range candidates {
		due = append(due, &models.DueReminder{
			Reminder: rem.Clone(),
			Session:  r.s.sessions[rem.SessionID].Clone(),
		})
	}
	return due, nil
}

func (r *reminderRepository) MarkDelivered(ctx context.Context, reminderID string, role models.RecipientRole, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.reminders[reminderID]
	if !ok {
		return false, apperrors.NotFoundError("reminder")
	}
	prev := stored.Clone()
	if !stored.MarkDelivered(role, at) {
		return false, nil
	}
	onRollback(ctx, func() { r.s.reminders[reminderID] = prev })
	return true, nil
}

func (r *reminderRepository) RecordFailure(ctx context.Context, reminderID string, at time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.reminders[reminderID]
	if !ok {
		return 0, apperrors.NotFoundError("reminder")
	}
	prev := stored.Clone()
	stored.Attempts++
	t := at
	stored.LastAttemptAt = &t
	onRollback(ctx, func() { r.s.reminders[reminderID] = prev })
	return stored.Attempts, nil
}

func (r *reminderRepository) VoidPending(ctx context.Context, sessionID string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	voided := 0
	for id, rem := range r.s.reminders {
		if rem.SessionID != sessionID || rem.Voided || rem.FullyDelivered() {
			continue
		}
		prev := rem.Clone()
		rem.Voided = true
		voided++
		reminderID := id
		onRollback(ctx, func() { r.s.reminders[reminderID] = prev })
	}
	return voided, nil
}
