package services

import (
	"context"
	"fmt"
	"time"

	"github.com/getmentor/getmentor-sessions/internal/cache"
	"github.com/getmentor/getmentor-sessions/internal/models"
	"github.com/getmentor/getmentor-sessions/internal/repository"
	"github.com/getmentor/getmentor-sessions/pkg/clock"
	apperrors "github.com/getmentor/getmentor-sessions/pkg/errors"
	"github.com/getmentor/getmentor-sessions/pkg/interval"
	"github.com/getmentor/getmentor-sessions/pkg/logger"
	"github.com/getmentor/getmentor-sessions/pkg/metrics"
	"github.com/getmentor/getmentor-sessions/pkg/tracing"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// AvailabilityService manages mentors' recurring weekly slots
type AvailabilityService struct {
	store repository.Store
	cache *cache.Manager
	clock clock.Clock
}

// NewAvailabilityService creates a new AvailabilityService
func NewAvailabilityService(store repository.Store, cacheManager *cache.Manager, clk clock.Clock) *AvailabilityService {
	return &AvailabilityService{
		store: store,
		cache: cacheManager,
		clock: clk,
	}
}

// AddSlot creates an active slot. The overlap check and the insert run under the
// mentor's lock against the store, never the cache.
func (s *AvailabilityService) AddSlot(ctx context.Context, mentorID string, req *models.CreateSlotRequest) (slot *models.AvailabilitySlot, err error) {
	ctx, span := tracing.StartServiceSpan(ctx, "availability", "add_slot", attribute.String("mentor_id", mentorID))
	defer func() { tracing.EndSpan(span, err) }()

	day, err := models.ParseDayOfWeek(req.DayOfWeek)
	if err != nil {
		return nil, apperrors.InvalidInputError("dayOfWeek", err.Error())
	}
	start, end, err := parseSlotWindow(req.StartTime, req.EndTime)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	slot = &models.AvailabilitySlot{
		ID:        uuid.New().String(),
		MentorID:  mentorID,
		DayOfWeek: day,
		StartTime: start,
		EndTime:   end,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.store.WithMentorLock(ctx, mentorID, func(ctx context.Context) error {
		if err := s.checkSlotOverlap(ctx, slot); err != nil {
			return err
		}
		return s.store.Slots().Create(ctx, slot)
	})
	if err != nil {
		metrics.SlotMutations.WithLabelValues("add", outcome(err)).Inc()
		return nil, err
	}

	s.invalidate(mentorID)
	metrics.SlotMutations.WithLabelValues("add", "success").Inc()
	logger.Info("Availability slot added",
		zap.String("mentor_id", mentorID),
		zap.String("slot_id", slot.ID),
		zap.String("day", day.String()),
		zap.String("start", start.String()),
		zap.String("end", end.String()))

	return slot, nil
}

// UpdateSlot moves an existing slot within its day
func (s *AvailabilityService) UpdateSlot(ctx context.Context, mentorID, slotID string, req *models.UpdateSlotRequest) (slot *models.AvailabilitySlot, err error) {
	ctx, span := tracing.StartServiceSpan(ctx, "availability", "update_slot", attribute.String("slot_id", slotID))
	defer func() { tracing.EndSpan(span, err) }()

	start, end, err := parseSlotWindow(req.StartTime, req.EndTime)
	if err != nil {
		return nil, err
	}

	err = s.store.WithMentorLock(ctx, mentorID, func(ctx context.Context) error {
		stored, err := s.ownedSlot(ctx, mentorID, slotID)
		if err != nil {
			return err
		}

		stored.StartTime = start
		stored.EndTime = end
		stored.UpdatedAt = s.clock.Now()

		if stored.Active {
			if err := s.checkSlotOverlap(ctx, stored); err != nil {
				return err
			}
		}
		if err := s.store.Slots().UpdateTimes(ctx, stored); err != nil {
			return err
		}
		slot = stored
		return nil
	})
	if err != nil {
		metrics.SlotMutations.WithLabelValues("update", outcome(err)).Inc()
		return nil, err
	}

	s.invalidate(mentorID)
	metrics.SlotMutations.WithLabelValues("update", "success").Inc()
	logger.Info("Availability slot updated",
		zap.String("mentor_id", mentorID),
		zap.String("slot_id", slotID),
		zap.String("start", start.String()),
		zap.String("end", end.String()))

	return slot, nil
}

// DeactivateSlot disables a slot. Deactivating an inactive slot is a no-op.
// Sessions already booked inside the slot are not touched.
func (s *AvailabilityService) DeactivateSlot(ctx context.Context, mentorID, slotID string) (slot *models.AvailabilitySlot, err error) {
	ctx, span := tracing.StartServiceSpan(ctx, "availability", "deactivate_slot", attribute.String("slot_id", slotID))
	defer func() { tracing.EndSpan(span, err) }()

	changed := false
	err = s.store.WithMentorLock(ctx, mentorID, func(ctx context.Context) error {
		stored, err := s.ownedSlot(ctx, mentorID, slotID)
		if err != nil {
			return err
		}

		now := s.clock.Now()
		changed, err = s.store.Slots().SetActive(ctx, slotID, false, now)
		if err != nil {
			return err
		}
		if changed {
			stored.UpdatedAt = now
		}
		stored.Active = false
		slot = stored
		return nil
	})
	if err != nil {
		metrics.SlotMutations.WithLabelValues("deactivate", outcome(err)).Inc()
		return nil, err
	}

	if changed {
		s.invalidate(mentorID)
		logger.Info("Availability slot deactivated",
			zap.String("mentor_id", mentorID),
			zap.String("slot_id", slotID))
	}
	metrics.SlotMutations.WithLabelValues("deactivate", "success").Inc()

	return slot, nil
}

// ListActiveSlots returns the mentor's active slots ordered by day and start time
func (s *AvailabilityService) ListActiveSlots(ctx context.Context, mentorID string) ([]*models.AvailabilitySlot, error) {
	return cache.Fetch(ctx, s.cache, cache.RegionAvailability, cache.AvailabilityKey(mentorID),
		func(ctx context.Context) ([]*models.AvailabilitySlot, error) {
			slots, err := s.store.Slots().ListActive(ctx, mentorID)
			if err != nil {
				logger.Error("Failed to list availability slots",
					zap.String("mentor_id", mentorID),
					zap.Error(err))
				return nil, fmt.Errorf("failed to list slots: %w", err)
			}
			return slots, nil
		})
}

// IsWithinAvailability reports whether at falls inside an active slot of the mentor.
// It always reads the store.
func (s *AvailabilityService) IsWithinAvailability(ctx context.Context, mentorID string, at time.Time) (bool, error) {
	slots, err := s.store.Slots().ListActiveByDay(ctx, mentorID, models.DayOf(at))
	if err != nil {
		return false, fmt.Errorf("failed to load slots: %w", err)
	}
	_, ok := models.SlotIntervals(slots).Containing(int64(models.TimeOfDayOf(at)))
	return ok, nil
}

// coveringSlot returns the active slot that contains all of [start, end).
// Slots never cross midnight, so neither can a bookable session.
func (s *AvailabilityService) coveringSlot(ctx context.Context, mentorID string, start, end time.Time) (*models.AvailabilitySlot, error) {
	start, end = start.UTC(), end.UTC()
	midnight := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	window := interval.Interval{
		Start: int64(start.Sub(midnight) / time.Second),
		End:   int64(end.Sub(midnight) / time.Second),
	}

	slots, err := s.store.Slots().ListActiveByDay(ctx, mentorID, models.DayOf(start))
	if err != nil {
		return nil, fmt.Errorf("failed to load slots: %w", err)
	}
	for _, slot := range slots {
		bounds := interval.Interval{Start: int64(slot.StartTime) * 60, End: int64(slot.EndTime) * 60}
		if bounds.Covers(window) {
			return slot, nil
		}
	}
	return nil, nil
}

func (s *AvailabilityService) ownedSlot(ctx context.Context, mentorID, slotID string) (*models.AvailabilitySlot, error) {
	slot, err := s.store.Slots().GetByID(ctx, slotID)
	if err != nil {
		return nil, err
	}
	if slot.MentorID != mentorID {
		return nil, apperrors.AccessDeniedError("slot belongs to another mentor")
	}
	return slot, nil
}

func (s *AvailabilityService) checkSlotOverlap(ctx context.Context, slot *models.AvailabilitySlot) error {
	existing, err := s.store.Slots().ListActiveByDay(ctx, slot.MentorID, slot.DayOfWeek)
	if err != nil {
		return fmt.Errorf("failed to load slots: %w", err)
	}

	conflict, found := models.SlotIntervals(existing).FirstOverlap(slot.Interval(), slot.ID)
	if !found {
		return nil
	}
	return &apperrors.OverlapError{
		Kind:       "slot",
		ConflictID: conflict.ID,
		Start:      weekTime(slot.DayOfWeek, models.TimeOfDay(conflict.Start)),
		End:        weekTime(slot.DayOfWeek, models.TimeOfDay(conflict.End)),
	}
}

func (s *AvailabilityService) invalidate(mentorID string) {
	s.cache.Invalidate(cache.RegionAvailability, cache.AvailabilityKey(mentorID))
}

func parseSlotWindow(startRaw, endRaw string) (models.TimeOfDay, models.TimeOfDay, error) {
	start, err := models.ParseTimeOfDay(startRaw)
	if err != nil {
		return 0, 0, apperrors.InvalidInputError("startTime", err.Error())
	}
	if start >= models.MinutesPerDay {
		return 0, 0, apperrors.InvalidInputError("startTime", "must be before 24:00")
	}
	end, err := models.ParseTimeOfDay(endRaw)
	if err != nil {
		return 0, 0, apperrors.InvalidInputError("endTime", err.Error())
	}
	if start >= end {
		return 0, 0, apperrors.InvalidInputError("endTime", "must be after startTime")
	}
	return start, end, nil
}

// weekReference is a Sunday; recurring slot times are reported relative to that week
var weekReference = time.Date(2023, time.January, 1, 0, 0, 0, 0, time.UTC)

func weekTime(day models.DayOfWeek, t models.TimeOfDay) time.Time {
	return weekReference.AddDate(0, 0, int(day)).Add(time.Duration(t) * time.Minute)
}

// outcome maps an error to a metrics status label
func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case apperrors.Is(err, apperrors.ErrInvalidInput):
		return "invalid"
	case apperrors.Is(err, apperrors.ErrConflict):
		return "conflict"
	case apperrors.Is(err, apperrors.ErrInvalidTransition):
		return "rejected"
	case apperrors.Is(err, apperrors.ErrAccessDenied):
		return "forbidden"
	case apperrors.Is(err, apperrors.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
