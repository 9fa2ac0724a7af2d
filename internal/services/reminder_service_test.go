package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/getmentor/getmentor-sessions/internal/models"
	"github.com/getmentor/getmentor-sessions/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dueOffsets(due []*models.DueReminder) []string {
	names := make([]string, 0, len(due))
	for _, d := range due {
		names = append(names, d.Reminder.OffsetKind)
	}
	return names
}

func TestReminderService_ScheduleAll_IsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	session := f.book(t, "mentee-1", monday0900, 60)

	created, err := f.reminders.ScheduleAll(ctx, session)
	require.NoError(t, err)
	assert.Zero(t, created)

	reminders, err := f.reminders.ListBySession(ctx, session.ID)
	require.NoError(t, err)
	assert.Len(t, reminders, 3)
}

func TestReminderService_ScheduleAll_LapsedOffsets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// booked 30 minutes ahead: the 24h and 1h stages already lapsed
	f.clock.Set(monday0900.Add(-30 * time.Minute))
	session := f.book(t, "mentee-1", monday0900, 60)

	due, err := f.reminders.FindDue(ctx, f.clock.Now(), 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"24h", "1h"}, dueOffsets(due))

	f.clock.Set(monday0900.Add(time.Minute))
	created, err := f.reminders.ScheduleAll(ctx, &models.Session{ID: "other", ScheduledAt: monday0900})
	require.NoError(t, err)
	assert.Zero(t, created, "no reminders once the session has started")

	reminders, err := f.reminders.ListBySession(ctx, session.ID)
	require.NoError(t, err)
	assert.Len(t, reminders, 3)
}

func TestReminderService_FindDue_OnlyTheCurrentStage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	session := f.book(t, "mentee-1", monday0900, 60)

	f.clock.Set(monday0900.Add(-24 * time.Hour))
	due, err := f.reminders.FindDue(ctx, f.clock.Now(), 10)
	require.NoError(t, err)
	require.Equal(t, []string{"24h"}, dueOffsets(due))
	for _, role := range models.Recipients {
		_, err := f.reminders.MarkDelivered(ctx, due[0].Reminder.ID, role)
		require.NoError(t, err)
	}

	f.clock.Set(monday0900.Add(-time.Hour + time.Minute))
	due, err = f.reminders.FindDue(ctx, f.clock.Now(), 10)
	require.NoError(t, err)
	require.Equal(t, []string{"1h"}, dueOffsets(due))
	assert.Equal(t, session.ID, due[0].Session.ID)
}

func TestReminderService_MarkDelivered_IsMonotonic(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	session := f.book(t, "mentee-1", monday0900, 60)

	reminders, err := f.reminders.ListBySession(ctx, session.ID)
	require.NoError(t, err)
	id := reminders[0].ID

	marked, err := f.reminders.MarkDelivered(ctx, id, models.RoleMentor)
	require.NoError(t, err)
	assert.True(t, marked)

	marked, err = f.reminders.MarkDelivered(ctx, id, models.RoleMentor)
	require.NoError(t, err)
	assert.False(t, marked)

	reminders, err = f.reminders.ListBySession(ctx, session.ID)
	require.NoError(t, err)
	assert.True(t, reminders[0].DeliveredToMentor)
	assert.False(t, reminders[0].DeliveredToMentee)
	assert.Nil(t, reminders[0].DeliveredAt)
}

func TestReminderService_RecordFailure(t *testing.T) {
	f := newFixture(t, withRetryPolicy(services.RetryPolicy{MaxAttempts: 2, Backoff: 10 * time.Minute}))
	ctx := context.Background()
	f.book(t, "mentee-1", monday0900, 60)

	f.clock.Set(monday0900.Add(-24 * time.Hour))
	due, err := f.reminders.FindDue(ctx, f.clock.Now(), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	id := due[0].Reminder.ID

	attempts, exhausted, err := f.reminders.RecordFailure(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
	assert.False(t, exhausted)

	due, err = f.reminders.FindDue(ctx, f.clock.Now().Add(5*time.Minute), 10)
	require.NoError(t, err)
	assert.Empty(t, due, "still backing off")

	f.clock.Advance(10 * time.Minute)
	due, err = f.reminders.FindDue(ctx, f.clock.Now(), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)

	attempts, exhausted, err = f.reminders.RecordFailure(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.True(t, exhausted)

	f.clock.Advance(time.Hour)
	due, err = f.reminders.FindDue(ctx, f.clock.Now(), 10)
	require.NoError(t, err)
	assert.Empty(t, due, "abandoned after max attempts")
}
