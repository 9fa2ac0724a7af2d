package models

import (
	"time"

	apperrors "github.com/getmentor/getmentor-sessions/pkg/errors"
	"github.com/getmentor/getmentor-sessions/pkg/interval"
)

// SessionStatus is a state of the session lifecycle
type SessionStatus string

const (
	SessionScheduled  SessionStatus = "SCHEDULED"
	SessionInProgress SessionStatus = "IN_PROGRESS"
	SessionCompleted  SessionStatus = "COMPLETED"
	SessionCancelled  SessionStatus = "CANCELLED"
	SessionNoShow     SessionStatus = "NO_SHOW"
)

// AllSessionStatuses lists every lifecycle state
var AllSessionStatuses = []SessionStatus{
	SessionScheduled, SessionInProgress, SessionCompleted, SessionCancelled, SessionNoShow,
}

// OpenSessionStatuses are the non-terminal states that occupy a mentor's timeline
var OpenSessionStatuses = []SessionStatus{SessionScheduled, SessionInProgress}

// IsTerminal returns true if no further transitions are allowed
func (s SessionStatus) IsTerminal() bool {
	return s == SessionCompleted || s == SessionCancelled || s == SessionNoShow
}

// Valid reports whether s is a known status
func (s SessionStatus) Valid() bool {
	for _, known := range AllSessionStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// SessionEvent is a lifecycle trigger
type SessionEvent string

const (
	EventCancel   SessionEvent = "cancel"
	EventStart    SessionEvent = "start"
	EventComplete SessionEvent = "complete"
	EventNoShow   SessionEvent = "no_show"
)

// AllSessionEvents lists every lifecycle event
var AllSessionEvents = []SessionEvent{EventCancel, EventStart, EventComplete, EventNoShow}

// LifecyclePolicy holds the time thresholds used by transition guards
type LifecyclePolicy struct {
	// NoShowThreshold is how long after the scheduled start a session that was never
	// started may be marked NO_SHOW
	NoShowThreshold time.Duration
}

type transitionKey struct {
	from  SessionStatus
	event SessionEvent
}

type transitionRule struct {
	to SessionStatus
	// guard returns a non-empty reason when the transition is not yet (or no longer) allowed
	guard func(s *Session, now time.Time, p LifecyclePolicy) string
}

// transitions is the complete lifecycle table; any (state, event) pair not listed is rejected
var transitions = map[transitionKey][]transitionRule{
	{SessionScheduled, EventCancel}: {{
		to: SessionCancelled,
		guard: func(s *Session, now time.Time, _ LifecyclePolicy) string {
			if !now.Before(s.ScheduledAt) {
				return "session has already started"
			}
			return ""
		},
	}},

	{SessionScheduled, EventStart}: {{to: SessionInProgress}},

	{SessionInProgress, EventComplete}: {{to: SessionCompleted}},

	{SessionScheduled, EventComplete}: {{
		to: SessionCompleted,
		guard: func(s *Session, now time.Time, _ LifecyclePolicy) string {
			if now.Before(s.ScheduledAt) {
				return "session has not started yet"
			}
			return ""
		},
	}},

	{SessionScheduled, EventNoShow}: {{
		to: SessionNoShow,
		guard: func(s *Session, now time.Time, p LifecyclePolicy) string {
			if now.Before(s.ScheduledAt.Add(p.NoShowThreshold)) {
				return "no-show threshold has not elapsed"
			}
			return ""
		},
	}},
}

// NextStatus resolves the target state for event, or an InvalidTransitionError
func NextStatus(s *Session, event SessionEvent, now time.Time, p LifecyclePolicy) (SessionStatus, error) {
	rules, ok := transitions[transitionKey{from: s.Status, event: event}]
	if !ok {
		return "", &apperrors.InvalidTransitionError{
			From:  string(s.Status),
			Event: string(event),
		}
	}

	var reason string
	for _, rule := range rules {
		if rule.guard == nil {
			return rule.to, nil
		}
		if reason = rule.guard(s, now, p); reason == "" {
			return rule.to, nil
		}
	}

	return "", &apperrors.InvalidTransitionError{
		From:   string(s.Status),
		Event:  string(event),
		To:     string(rules[0].to),
		Reason: reason,
	}
}

// Session is a scheduled meeting between a mentor and a mentee
type Session struct {
	ID              string        `json:"id"`
	MentorID        string        `json:"mentorId"`
	MenteeID        string        `json:"menteeId"`
	ScheduledAt     time.Time     `json:"scheduledAt"`
	DurationMinutes int           `json:"durationMinutes"`
	Topic           string        `json:"topic"`
	Status          SessionStatus `json:"status"`
	MentorNotes     string        `json:"mentorNotes,omitempty"`
	MenteeNotes     string        `json:"menteeNotes,omitempty"`
	CancelledBy     string        `json:"cancelledBy,omitempty"`
	CancelReason    string        `json:"cancelReason,omitempty"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
}

// EndsAt returns the exclusive end of the session
func (s *Session) EndsAt() time.Time {
	return s.ScheduledAt.Add(time.Duration(s.DurationMinutes) * time.Minute)
}

// Interval returns [ScheduledAt, EndsAt) in unix seconds
func (s *Session) Interval() interval.Interval {
	return interval.Interval{ID: s.ID, Start: s.ScheduledAt.Unix(), End: s.EndsAt().Unix()}
}

// RoleOf returns the participant role of userID, or "" when userID is not a participant
func (s *Session) RoleOf(userID string) RecipientRole {
	switch userID {
	case s.MentorID:
		return RoleMentor
	case s.MenteeID:
		return RoleMentee
	default:
		return ""
	}
}

// Clone returns a copy safe to mutate
func (s *Session) Clone() *Session {
	c := *s
	return &c
}

// SessionFilter selects sessions for list queries
type SessionFilter struct {
	UserID   string
	Role     RecipientRole
	Statuses []SessionStatus
	Page     int
	PageSize int
}

// Offset returns the zero-based row offset for the page
func (f SessionFilter) Offset() int {
	if f.Page <= 1 {
		return 0
	}
	return (f.Page - 1) * f.PageSize
}

// SessionDetails is a session enriched with participant display data
type SessionDetails struct {
	*Session
	Mentor *UserProfile `json:"mentor"`
	Mentee *UserProfile `json:"mentee"`
}

// SessionListResponse is the response for listing sessions
type SessionListResponse struct {
	Sessions []*Session `json:"sessions"`
	Total    int        `json:"total"`
	Page     int        `json:"page"`
	PageSize int        `json:"pageSize"`
}
