package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/getmentor/getmentor-sessions/internal/models"
	apperrors "github.com/getmentor/getmentor-sessions/pkg/errors"
)

// SlotRepository stores availability slots in availability_slots
type SlotRepository struct {
	c *Client
}

// Create inserts a new slot
func (r *SlotRepository) Create(ctx context.Context, slot *models.AvailabilitySlot) (err error) {
	start := time.Now()
	defer func() { r.c.observe("createSlot", start, err) }()

	_, err = r.c.q(ctx).Exec(ctx, `
		INSERT INTO availability_slots (id, mentor_id, day_of_week, start_minute, end_minute, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		slot.ID, slot.MentorID, int(slot.DayOfWeek), int(slot.StartTime), int(slot.EndTime),
		slot.Active, slot.CreatedAt, slot.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create slot: %w", err)
	}
	return nil
}

// UpdateTimes changes the window of a slot
func (r *SlotRepository) UpdateTimes(ctx context.Context, slot *models.AvailabilitySlot) (err error) {
	start := time.Now()
	defer func() { r.c.observe("updateSlot", start, err) }()

	tag, err := r.c.q(ctx).Exec(ctx, `
		UPDATE availability_slots
		SET start_minute = $2, end_minute = $3, updated_at = $4
		WHERE id = $1`,
		slot.ID, int(slot.StartTime), int(slot.EndTime), slot.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update slot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.NotFoundError("slot")
	}
	return nil
}

// SetActive toggles the active flag
func (r *SlotRepository) SetActive(ctx context.Context, slotID string, active bool, at time.Time) (changed bool, err error) {
	start := time.Now()
	defer func() { r.c.observe("setSlotActive", start, err) }()

	tag, err := r.c.q(ctx).Exec(ctx, `
		UPDATE availability_slots
		SET active = $2, updated_at = $3
		WHERE id = $1 AND active <> $2`,
		slotID, active, at)
	if err != nil {
		return false, fmt.Errorf("failed to update slot: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// GetByID fetches a slot regardless of its active flag
func (r *SlotRepository) GetByID(ctx context.Context, slotID string) (slot *models.AvailabilitySlot, err error) {
	start := time.Now()
	defer func() { r.c.observe("getSlot", start, err) }()

	row := r.c.q(ctx).QueryRow(ctx,
		"SELECT "+models.SlotColumns+" FROM availability_slots WHERE id = $1", slotID)
	slot, err = models.ScanSlot(row)
	if err != nil {
		return nil, notFound(err, "slot")
	}
	return slot, nil
}

// ListActive returns the mentor's active slots ordered by day and start
func (r *SlotRepository) ListActive(ctx context.Context, mentorID string) (slots []*models.AvailabilitySlot, err error) {
	start := time.Now()
	defer func() { r.c.observe("listActiveSlots", start, err) }()

	rows, err := r.c.q(ctx).Query(ctx, `
		SELECT `+models.SlotColumns+`
		FROM availability_slots
		WHERE mentor_id = $1 AND active
		ORDER BY day_of_week, start_minute`, mentorID)
	if err != nil {
		return nil, fmt.Errorf("failed to list slots: %w", err)
	}
	return models.ScanSlots(rows)
}

// ListActiveByDay returns the mentor's active slots for one weekday
func (r *SlotRepository) ListActiveByDay(ctx context.Context, mentorID string, day models.DayOfWeek) (slots []*models.AvailabilitySlot, err error) {
	start := time.Now()
	defer func() { r.c.observe("listActiveSlotsByDay", start, err) }()

	rows, err := r.c.q(ctx).Query(ctx, `
		SELECT `+models.SlotColumns+`
		FROM availability_slots
		WHERE mentor_id = $1 AND day_of_week = $2 AND active
		ORDER BY start_minute`, mentorID, int(day))
	if err != nil {
		return nil, fmt.Errorf("failed to list slots: %w", err)
	}
	return models.ScanSlots(rows)
}
