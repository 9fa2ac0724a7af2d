package models

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// RecipientRole identifies which participant a reminder delivery targets
type RecipientRole string

const (
	RoleMentor RecipientRole = "mentor"
	RoleMentee RecipientRole = "mentee"
)

// Recipients lists both roles in delivery order
var Recipients = []RecipientRole{RoleMentor, RoleMentee}

// OffsetKind is a named lead time before a session start
type OffsetKind struct {
	Name string        `json:"name"`
	Lead time.Duration `json:"lead"`
}

// DefaultOffsets are the reminder lead times used when none are configured
const DefaultOffsets = "24h,1h,15m"

// ParseOffsets parses a comma-separated list of durations ("24h,1h,15m").
// The name of each offset is its canonical spelling. Result is sorted longest lead first.
func ParseOffsets(spec string) ([]OffsetKind, error) {
	seen := make(map[time.Duration]bool)
	offsets := make([]OffsetKind, 0, 3)

	for _, raw := range strings.Split(spec, ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		lead, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid reminder offset %q: %w", raw, err)
		}
		if lead <= 0 {
			return nil, fmt.Errorf("reminder offset %q must be positive", raw)
		}
		if seen[lead] {
			continue
		}
		seen[lead] = true
		offsets = append(offsets, OffsetKind{Name: offsetName(lead), Lead: lead})
	}

	if len(offsets) == 0 {
		return nil, fmt.Errorf("at least one reminder offset is required")
	}

	sort.Slice(offsets, func(i, j int) bool { return offsets[i].Lead > offsets[j].Lead })
	return offsets, nil
}

// offsetName renders 24h0m0s as "24h", 15m0s as "15m", 1h30m0s as "1h30m"
func offsetName(d time.Duration) string {
	s := d.String()
	if strings.HasSuffix(s, "m0s") {
		s = strings.TrimSuffix(s, "0s")
	}
	if strings.HasSuffix(s, "h0m") {
		s = strings.TrimSuffix(s, "0m")
	}
	return s
}

// Reminder is one scheduled notification stage for a session
type Reminder struct {
	ID                string     `json:"id"`
	SessionID         string     `json:"sessionId"`
	OffsetKind        string     `json:"offsetKind"`
	ScheduledTime     time.Time  `json:"scheduledTime"`
	DeliveredToMentor bool       `json:"deliveredToMentor"`
	DeliveredToMentee bool       `json:"deliveredToMentee"`
	DeliveredAt       *time.Time `json:"deliveredAt,omitempty"`
	Voided            bool       `json:"voided"`
	Attempts          int        `json:"attempts"`
	LastAttemptAt     *time.Time `json:"lastAttemptAt,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
}

// DeliveredTo reports whether role has been notified
func (r *Reminder) DeliveredTo(role RecipientRole) bool {
	switch role {
	case RoleMentor:
		return r.DeliveredToMentor
	case RoleMentee:
		return r.DeliveredToMentee
	default:
		return false
	}
}

// FullyDelivered reports whether both participants have been notified
func (r *Reminder) FullyDelivered() bool {
	return r.DeliveredToMentor && r.DeliveredToMentee
}

// PendingRecipients returns the roles not yet notified
func (r *Reminder) PendingRecipients() []RecipientRole {
	pending := make([]RecipientRole, 0, 2)
	for _, role := range Recipients {
		if !r.DeliveredTo(role) {
			pending = append(pending, role)
		}
	}
	return pending
}

// MarkDelivered sets the flag for role and stamps DeliveredAt once both are set.
// Returns false when role was already delivered.
func (r *Reminder) MarkDelivered(role RecipientRole, at time.Time) bool {
	if r.DeliveredTo(role) {
		return false
	}
	switch role {
	case RoleMentor:
		r.DeliveredToMentor = true
	case RoleMentee:
		r.DeliveredToMentee = true
	default:
		return false
	}
	if r.FullyDelivered() && r.DeliveredAt == nil {
		t := at
		r.DeliveredAt = &t
	}
	return true
}

// Clone returns a copy safe to mutate
func (r *Reminder) Clone() *Reminder {
	c := *r
	if r.DeliveredAt != nil {
		t := *r.DeliveredAt
		c.DeliveredAt = &t
	}
	if r.LastAttemptAt != nil {
		t := *r.LastAttemptAt
		c.LastAttemptAt = &t
	}
	return &c
}

// DueReminder is a due reminder joined with its parent session
type DueReminder struct {
	Reminder *Reminder
	Session  *Session
}
