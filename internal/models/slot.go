package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/getmentor/getmentor-sessions/pkg/interval"
)

// MinutesPerDay is the exclusive upper bound of a TimeOfDay; "24:00" is allowed as an end time
const MinutesPerDay = 24 * 60

// TimeOfDay is a wall-clock time in minutes since midnight (UTC)
type TimeOfDay int

// ParseTimeOfDay parses "HH:MM". "24:00" is accepted to express end of day.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 || len(parts[0]) == 0 || len(parts[1]) != 2 {
		return 0, fmt.Errorf("invalid time of day %q: expected HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	if h < 0 || h > 24 || m < 0 || m > 59 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("time of day %q out of range", s)
	}
	return TimeOfDay(h*60 + m), nil
}

// TimeOfDayOf returns the UTC wall-clock time of t
func TimeOfDayOf(t time.Time) TimeOfDay {
	t = t.UTC()
	return TimeOfDay(t.Hour()*60 + t.Minute())
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// Valid reports whether t is within [00:00, 24:00]
func (t TimeOfDay) Valid() bool {
	return t >= 0 && t <= MinutesPerDay
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// DayOfWeek mirrors time.Weekday with lowercase JSON names
type DayOfWeek time.Weekday

var dayNames = map[string]DayOfWeek{
	"sunday":    DayOfWeek(time.Sunday),
	"monday":    DayOfWeek(time.Monday),
	"tuesday":   DayOfWeek(time.Tuesday),
	"wednesday": DayOfWeek(time.Wednesday),
	"thursday":  DayOfWeek(time.Thursday),
	"friday":    DayOfWeek(time.Friday),
	"saturday":  DayOfWeek(time.Saturday),
}

// ParseDayOfWeek accepts an English day name in any case
func ParseDayOfWeek(s string) (DayOfWeek, error) {
	d, ok := dayNames[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("invalid day of week %q", s)
	}
	return d, nil
}

// DayOf returns the UTC weekday of t
func DayOf(t time.Time) DayOfWeek {
	return DayOfWeek(t.UTC().Weekday())
}

func (d DayOfWeek) String() string {
	return strings.ToLower(time.Weekday(d).String())
}

// Valid reports whether d is Sunday..Saturday
func (d DayOfWeek) Valid() bool {
	return d >= 0 && d <= 6
}

func (d DayOfWeek) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *DayOfWeek) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseDayOfWeek(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// AvailabilitySlot is a recurring weekly window in which a mentor accepts bookings
type AvailabilitySlot struct {
	ID        string    `json:"id"`
	MentorID  string    `json:"mentorId"`
	DayOfWeek DayOfWeek `json:"dayOfWeek"`
	StartTime TimeOfDay `json:"startTime"`
	EndTime   TimeOfDay `json:"endTime"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Interval returns the slot window in minutes since midnight
func (s *AvailabilitySlot) Interval() interval.Interval {
	return interval.Interval{ID: s.ID, Start: int64(s.StartTime), End: int64(s.EndTime)}
}

// SlotIntervals builds a sorted interval list from slots
func SlotIntervals(slots []*AvailabilitySlot) *interval.List {
	items := make([]interval.Interval, 0, len(slots))
	for _, s := range slots {
		items = append(items, s.Interval())
	}
	return interval.NewList(items...)
}

// SlotsResponse is the response for listing availability
type SlotsResponse struct {
	MentorID string              `json:"mentorId"`
	Slots    []*AvailabilitySlot `json:"slots"`
}
