package services

import (
	"context"
	"sync"
	"time"

	"github.com/getmentor/getmentor-sessions/internal/cache"
	"github.com/getmentor/getmentor-sessions/internal/models"
	"github.com/getmentor/getmentor-sessions/pkg/circuitbreaker"
	"github.com/getmentor/getmentor-sessions/pkg/clock"
	"github.com/getmentor/getmentor-sessions/pkg/fallback"
	"github.com/getmentor/getmentor-sessions/pkg/logger"
	"github.com/getmentor/getmentor-sessions/pkg/metrics"
	"github.com/getmentor/getmentor-sessions/pkg/notifier"
	"github.com/getmentor/getmentor-sessions/pkg/retry"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ReminderTemplatePrefix is prepended to the offset name to build the template id
const ReminderTemplatePrefix = "session_reminder_"

// DispatchOptions tunes a dispatch run
type DispatchOptions struct {
	Channel     string
	BatchSize   int
	Workers     int
	SendTimeout time.Duration
	// Guard overrides the default breaker and retry around each send
	Guard *fallback.Guard
}

// DispatchReport summarizes one dispatch run
type DispatchReport struct {
	Due       int // reminders picked up
	Delivered int // recipient deliveries recorded
	Failed    int // reminders with at least one failed recipient
	Abandoned int // reminders that used up their attempts in this run
}

// DispatchService pushes due reminders to the notification service
type DispatchService struct {
	reminders *ReminderService
	sender    notifier.Sender
	guard     fallback.Guard
	cache     *cache.Manager
	clock     clock.Clock
	opts      DispatchOptions
}

// NewDispatchService creates a new DispatchService
func NewDispatchService(reminders *ReminderService, sender notifier.Sender, cacheManager *cache.Manager, clk clock.Clock, opts DispatchOptions) *DispatchService {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.BatchSize < 1 {
		opts.BatchSize = 100
	}
	var guard fallback.Guard
	if opts.Guard != nil {
		guard = *opts.Guard
	} else {
		retryCfg := retry.NotifierConfig()
		guard = fallback.Guard{
			Service:   "notifications",
			Operation: "send",
			Breaker:   circuitbreaker.NewCircuitBreaker(circuitbreaker.DefaultConfig("notifications")),
			Retry:     &retryCfg,
		}
	}
	return &DispatchService{
		reminders: reminders,
		sender:    sender,
		guard:     guard,
		cache:     cacheManager,
		clock:     clk,
		opts:      opts,
	}
}

// DispatchDue delivers one batch of due reminders with bounded parallelism.
// Failed recipients stay pending and are picked up by a later run.
func (d *DispatchService) DispatchDue(ctx context.Context) (DispatchReport, error) {
	var report DispatchReport

	due, err := d.reminders.FindDue(ctx, d.clock.Now(), d.opts.BatchSize)
	if err != nil {
		return report, err
	}
	report.Due = len(due)
	if len(due) == 0 {
		return report, nil
	}

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(d.opts.Workers)

	for _, item := range due {
		g.Go(func() error {
			delivered, failed, abandoned := d.dispatchOne(ctx, item)

			mu.Lock()
			report.Delivered += delivered
			if failed {
				report.Failed++
			}
			if abandoned {
				report.Abandoned++
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // workers never return errors

	return report, ctx.Err()
}

// dispatchOne sends the reminder to every recipient not yet notified
func (d *DispatchService) dispatchOne(ctx context.Context, item *models.DueReminder) (delivered int, failed, abandoned bool) {
	reminder, session := item.Reminder, item.Session

	for _, role := range reminder.PendingRecipients() {
		if ctx.Err() != nil {
			return delivered, true, false
		}

		if err := d.send(ctx, reminder, session, role); err != nil {
			failed = true
			metrics.ReminderDeliveries.WithLabelValues(reminder.OffsetKind, string(role), "failed").Inc()
			logger.Warn("Reminder delivery failed",
				zap.String("reminder_id", reminder.ID),
				zap.String("session_id", session.ID),
				zap.String("offset", reminder.OffsetKind),
				zap.String("recipient", string(role)),
				zap.Error(err))
			continue
		}

		marked, err := d.reminders.MarkDelivered(ctx, reminder.ID, role)
		if err != nil {
			// the notification went out; the next run re-sends it
			failed = true
			logger.Error("Failed to record reminder delivery",
				zap.String("reminder_id", reminder.ID),
				zap.String("recipient", string(role)),
				zap.Error(err))
			continue
		}
		reminder.MarkDelivered(role, d.clock.Now())
		if marked {
			delivered++
			metrics.ReminderDeliveries.WithLabelValues(reminder.OffsetKind, string(role), "delivered").Inc()
			metrics.ReminderDeliveryLag.Observe(d.clock.Now().Sub(reminder.ScheduledTime).Seconds())
		}
	}

	// both deliveries and recorded attempts change the cached reminder list
	defer func() {
		if delivered > 0 || failed {
			d.cache.Invalidate(cache.RegionSessions, cache.SessionRemindersKey(session.ID))
		}
	}()

	if failed {
		attempts, exhausted, err := d.reminders.RecordFailure(ctx, reminder.ID)
		if err != nil {
			logger.Error("Failed to record reminder failure",
				zap.String("reminder_id", reminder.ID),
				zap.Error(err))
			return delivered, true, false
		}
		if exhausted {
			abandoned = true
			for _, role := range reminder.PendingRecipients() {
				metrics.ReminderDeliveries.WithLabelValues(reminder.OffsetKind, string(role), "abandoned").Inc()
			}
			logger.Warn("Reminder abandoned after max attempts",
				zap.String("reminder_id", reminder.ID),
				zap.String("session_id", session.ID),
				zap.String("offset", reminder.OffsetKind),
				zap.Int("attempts", attempts))
		}
	}

	return delivered, failed, abandoned
}

func (d *DispatchService) send(ctx context.Context, reminder *models.Reminder, session *models.Session, role models.RecipientRole) error {
	recipientID := session.MentorID
	counterpartID := session.MenteeID
	if role == models.RoleMentee {
		recipientID, counterpartID = session.MenteeID, session.MentorID
	}

	msg := notifier.Message{
		RecipientID: recipientID,
		Channel:     d.opts.Channel,
		TemplateID:  ReminderTemplatePrefix + reminder.OffsetKind,
		Payload: map[string]any{
			"sessionId":       session.ID,
			"scheduledAt":     session.ScheduledAt.Format(time.RFC3339),
			"durationMinutes": session.DurationMinutes,
			"topic":           session.Topic,
			"offset":          reminder.OffsetKind,
			"role":            string(role),
			"counterpartId":   counterpartID,
		},
	}

	sendCtx := ctx
	if d.opts.SendTimeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, d.opts.SendTimeout)
		defer cancel()
	}

	result := fallback.Call(sendCtx, d.guard,
		func(ctx context.Context) (struct{}, error) {
			return struct{}{}, d.sender.Send(ctx, msg)
		},
		func(error) struct{} { return struct{}{} })
	return result.Err
}
