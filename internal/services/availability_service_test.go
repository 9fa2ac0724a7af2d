package services_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/getmentor/getmentor-sessions/internal/models"
	apperrors "github.com/getmentor/getmentor-sessions/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAvailabilityService_AddSlot(t *testing.T) {
	tests := []struct {
		name      string
		req       models.CreateSlotRequest
		wantErr   error
		wantField string
	}{
		{name: "other day", req: models.CreateSlotRequest{DayOfWeek: "tuesday", StartTime: "09:00", EndTime: "17:00"}},
		{name: "adjacent before", req: models.CreateSlotRequest{DayOfWeek: "monday", StartTime: "07:00", EndTime: "09:00"}},
		{name: "adjacent after", req: models.CreateSlotRequest{DayOfWeek: "monday", StartTime: "17:00", EndTime: "24:00"}},
		{
			name:    "overlaps the start",
			req:     models.CreateSlotRequest{DayOfWeek: "monday", StartTime: "08:00", EndTime: "09:30"},
			wantErr: apperrors.ErrConflict,
		},
		{
			name:    "inside",
			req:     models.CreateSlotRequest{DayOfWeek: "Monday", StartTime: "10:00", EndTime: "11:00"},
			wantErr: apperrors.ErrConflict,
		},
		{
			name:      "inverted",
			req:       models.CreateSlotRequest{DayOfWeek: "friday", StartTime: "11:00", EndTime: "10:00"},
			wantErr:   apperrors.ErrInvalidInput,
			wantField: "endTime",
		},
		{
			name:      "empty window",
			req:       models.CreateSlotRequest{DayOfWeek: "friday", StartTime: "10:00", EndTime: "10:00"},
			wantErr:   apperrors.ErrInvalidInput,
			wantField: "endTime",
		},
		{
			name:      "start at end of day",
			req:       models.CreateSlotRequest{DayOfWeek: "friday", StartTime: "24:00", EndTime: "24:00"},
			wantErr:   apperrors.ErrInvalidInput,
			wantField: "startTime",
		},
		{
			name:      "bad time",
			req:       models.CreateSlotRequest{DayOfWeek: "friday", StartTime: "9am", EndTime: "10:00"},
			wantErr:   apperrors.ErrInvalidInput,
			wantField: "startTime",
		},
		{
			name:      "bad day",
			req:       models.CreateSlotRequest{DayOfWeek: "funday", StartTime: "09:00", EndTime: "10:00"},
			wantErr:   apperrors.ErrInvalidInput,
			wantField: "dayOfWeek",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			slot, err := f.availability.AddSlot(context.Background(), "mentor-1", &tt.req)

			if tt.wantErr == nil {
				require.NoError(t, err)
				assert.True(t, slot.Active)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			if tt.wantField != "" {
				var validation *apperrors.ValidationError
				require.ErrorAs(t, err, &validation)
				assert.Equal(t, tt.wantField, validation.Field)
			}
		})
	}
}

func TestAvailabilityService_OverlapNamesTheConflictingSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	slots, err := f.availability.ListActiveSlots(ctx, "mentor-1")
	require.NoError(t, err)
	require.Len(t, slots, 1)

	_, err = f.availability.AddSlot(ctx, "mentor-1", &models.CreateSlotRequest{
		DayOfWeek: "monday", StartTime: "16:00", EndTime: "18:00",
	})

	var overlap *apperrors.OverlapError
	require.ErrorAs(t, err, &overlap)
	assert.Equal(t, "slot", overlap.Kind)
	assert.Equal(t, slots[0].ID, overlap.ConflictID)
	assert.Equal(t, time.Monday, overlap.Start.Weekday())
	assert.Equal(t, "09:00", overlap.Start.Format("15:04"))
	assert.Equal(t, "17:00", overlap.End.Format("15:04"))
}

func TestAvailabilityService_UpdateSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	slots, err := f.availability.ListActiveSlots(ctx, "mentor-1")
	require.NoError(t, err)
	morning := slots[0]

	afternoon, err := f.availability.AddSlot(ctx, "mentor-1", &models.CreateSlotRequest{
		DayOfWeek: "monday", StartTime: "18:00", EndTime: "20:00",
	})
	require.NoError(t, err)

	updated, err := f.availability.UpdateSlot(ctx, "mentor-1", morning.ID, &models.UpdateSlotRequest{StartTime: "08:00", EndTime: "12:00"})
	require.NoError(t, err)
	assert.Equal(t, "08:00", updated.StartTime.String())

	_, err = f.availability.UpdateSlot(ctx, "mentor-1", afternoon.ID, &models.UpdateSlotRequest{StartTime: "11:00", EndTime: "13:00"})
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	_, err = f.availability.UpdateSlot(ctx, "mentor-2", morning.ID, &models.UpdateSlotRequest{StartTime: "08:00", EndTime: "10:00"})
	assert.ErrorIs(t, err, apperrors.ErrAccessDenied)

	_, err = f.availability.UpdateSlot(ctx, "mentor-1", "missing", &models.UpdateSlotRequest{StartTime: "08:00", EndTime: "10:00"})
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	slots, err = f.availability.ListActiveSlots(ctx, "mentor-1")
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, "08:00", slots[0].StartTime.String(), "cache was invalidated by the update")
}

func TestAvailabilityService_DeactivateSlot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	session := f.book(t, "mentee-1", monday0900, 60)

	slots, err := f.availability.ListActiveSlots(ctx, "mentor-1")
	require.NoError(t, err)
	slotID := slots[0].ID

	_, err = f.availability.DeactivateSlot(ctx, "mentor-2", slotID)
	assert.ErrorIs(t, err, apperrors.ErrAccessDenied)

	slot, err := f.availability.DeactivateSlot(ctx, "mentor-1", slotID)
	require.NoError(t, err)
	assert.False(t, slot.Active)

	_, err = f.availability.DeactivateSlot(ctx, "mentor-1", slotID)
	require.NoError(t, err, "deactivating twice is a no-op")

	slots, err = f.availability.ListActiveSlots(ctx, "mentor-1")
	require.NoError(t, err)
	assert.Empty(t, slots)

	within, err := f.availability.IsWithinAvailability(ctx, "mentor-1", monday0900.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, within)

	details, err := f.sessions.GetSession(ctx, "mentor-1", session.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionScheduled, details.Status, "booked sessions survive deactivation")

	_, err = f.sessions.Book(ctx, "mentee-2", &models.BookSessionRequest{
		MentorID: "mentor-1", ScheduledAt: monday0900.Add(2 * time.Hour), DurationMinutes: 30,
	})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	// an inactive slot no longer blocks a new one in the same window
	_, err = f.availability.AddSlot(ctx, "mentor-1", &models.CreateSlotRequest{
		DayOfWeek: "monday", StartTime: "10:00", EndTime: "12:00",
	})
	require.NoError(t, err)
}

func TestAvailabilityService_IsWithinAvailability(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		at   time.Time
		want bool
	}{
		{monday0900, true},
		{monday0900.Add(-time.Minute), false},
		{monday0900.Add(8*time.Hour - time.Minute), true},
		{monday0900.Add(8 * time.Hour), false},
		{monday0900.AddDate(0, 0, 7).Add(time.Hour), true},
		{monday0900.AddDate(0, 0, 1), false},
	}

	for _, tt := range tests {
		got, err := f.availability.IsWithinAvailability(ctx, "mentor-1", tt.at)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.at.String())
	}
}

func TestAvailabilityService_AddSlot_ConcurrentOverlapsAllowOnlyOne(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const workers = 50
	var (
		wg        sync.WaitGroup
		created   atomic.Int32
		conflicts atomic.Int32
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.availability.AddSlot(ctx, "mentor-1", &models.CreateSlotRequest{
				DayOfWeek: "tuesday", StartTime: "10:00", EndTime: "11:00",
			})
			switch {
			case err == nil:
				created.Add(1)
			case errors.Is(err, apperrors.ErrConflict):
				conflicts.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), created.Load())
	assert.Equal(t, int32(workers-1), conflicts.Load())

	slots, err := f.availability.ListActiveSlots(ctx, "mentor-1")
	require.NoError(t, err)
	tuesday := 0
	for _, slot := range slots {
		if slot.DayOfWeek == models.DayOfWeek(time.Tuesday) {
			tuesday++
		}
	}
	assert.Equal(t, 1, tuesday)
}
