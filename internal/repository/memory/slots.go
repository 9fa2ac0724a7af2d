package memory

import (
	"context"
	"sort"
	"time"

	"github.com/getmentor/getmentor-sessions/internal/models"
	apperrors "github.com/getmentor/getmentor-sessions/pkg/errors"
)

type slotRepository struct {
	s *Store
}

func cloneSlot(slot *models.AvailabilitySlot) *models.AvailabilitySlot {
	c := *slot
	return &c
}

func (r *slotRepository) Create(ctx context.Context, slot *models.AvailabilitySlot) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.slots[slot.ID]; exists {
		return apperrors.ErrConflict
	}
	r.s.slots[slot.ID] = cloneSlot(slot)
	onRollback(ctx, func() { delete(r.s.slots, slot.ID) })
	return nil
}

func (r *slotRepository) UpdateTimes(ctx context.Context, slot *models.AvailabilitySlot) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.slots[slot.ID]
	if !ok {
		return apperrors.NotFoundError("slot")
	}
	prev := cloneSlot(stored)
	stored.StartTime = slot.StartTime
	stored.EndTime = slot.EndTime
	stored.UpdatedAt = slot.UpdatedAt
	onRollback(ctx, func() { r.s.slots[slot.ID] = prev })
	return nil
}

func (r *slotRepository) SetActive(ctx context.Context, slotID string, active bool, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	stored, ok := r.s.slots[slotID]
	if !ok || stored.Active == active {
		return false, nil
	}
	prev := cloneSlot(stored)
	stored.Active = active
	stored.UpdatedAt = at
	onRollback(ctx, func() { r.s.slots[slotID] = prev })
	return true, nil
}

func (r *slotRepository) GetByID(_ context.Context, slotID string) (*models.AvailabilitySlot, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	stored, ok := r.s.slots[slotID]
	if !ok {
		return nil, apperrors.NotFoundError("slot")
	}
	return cloneSlot(stored), nil
}

func (r *slotRepository) ListActive(_ context.Context, mentorID string) ([]*models.AvailabilitySlot, error) {
	return r.list(func(s *models.AvailabilitySlot) bool {
		return s.MentorID == mentorID && s.Active
	}), nil
}

func (r *slotRepository) ListActiveByDay(_ context.Context, mentorID string, day models.DayOfWeek) ([]*models.AvailabilitySlot, error) {
	return r.list(func(s *models.AvailabilitySlot) bool {
		return s.MentorID == mentorID && s.Active && s.DayOfWeek == day
	}), nil
}

func (r *slotRepository) list(match func(*models.AvailabilitySlot) bool) []*models.AvailabilitySlot {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []*models.AvailabilitySlot{}
	for _, slot := range r.s.slots {
		if match(slot) {
			out = append(out, cloneSlot(slot))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DayOfWeek != out[j].DayOfWeek {
			return out[i].DayOfWeek < out[j].DayOfWeek
		}
		return out[i].StartTime < out[j].StartTime
	})
	return out
}
