package models

import "time"

// CreateSlotRequest is the payload for adding an availability slot
type CreateSlotRequest struct {
	DayOfWeek string `json:"dayOfWeek" binding:"required,oneof=monday tuesday wednesday thursday friday saturday sunday"`
	StartTime string `json:"startTime" binding:"required,len=5"`
	EndTime   string `json:"endTime" binding:"required,len=5"`
}

// UpdateSlotRequest is the payload for moving an existing slot within its day
type UpdateSlotRequest struct {
	StartTime string `json:"startTime" binding:"required,len=5"`
	EndTime   string `json:"endTime" binding:"required,len=5"`
}

// BookSessionRequest is the payload for booking a session. The mentee is the caller.
type BookSessionRequest struct {
	MentorID        string    `json:"mentorId" binding:"required,max=64"`
	ScheduledAt     time.Time `json:"scheduledAt" binding:"required"`
	DurationMinutes int       `json:"durationMinutes" binding:"required,min=1"`
	Topic           string    `json:"topic" binding:"max=500"`
}

// CancelSessionRequest is the optional payload for cancelling a session
type CancelSessionRequest struct {
	Reason string `json:"reason" binding:"max=1000"`
}

// UpdateNotesRequest is the payload for editing the caller's session notes
type UpdateNotesRequest struct {
	Notes string `json:"notes" binding:"max=10000"`
}

// ListSessionsQuery is bound from the query string of the session list endpoint
type ListSessionsQuery struct {
	Role     string `form:"role" binding:"omitempty,oneof=mentor mentee"`
	Status   string `form:"status" binding:"omitempty,max=100"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"pageSize" binding:"omitempty,min=1,max=100"`
}

// SuccessResponse is a generic acknowledgement
type SuccessResponse struct {
	Success bool `json:"success"`
}
