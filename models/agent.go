package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// AttendanceMode decides how an agent admits appointments.
type AttendanceMode string

const (
	// ModeScheduled admits only free, fixed slots.
	ModeScheduled AttendanceMode = "scheduled"
	// ModeFreeForm admits by capacity; there are no fixed slots.
	ModeFreeForm AttendanceMode = "free_form"
	// ModeMixed checks slots but books anyway on conflict.
	ModeMixed AttendanceMode = "mixed"
)

// Valid reports whether m is a known attendance mode.
func (m AttendanceMode) Valid() bool {
	switch m {
	case ModeScheduled, ModeFreeForm, ModeMixed:
		return true
	}
	return false
}

// AvailabilityWindow is a recurring weekly open-hours range.
type AvailabilityWindow struct {
	DayOfWeek int    `bson:"dayOfWeek" json:"dayOfWeek"` // 0 = Sunday
	Start     string `bson:"start" json:"start"`         // "HH:MM"
	End       string `bson:"end" json:"end"`             // "HH:MM", "24:00" allowed
	Active    bool   `bson:"active" json:"active"`
}

// Validate checks the day range, the clock format and end > start.
func (w AvailabilityWindow) Validate() error {
	if w.DayOfWeek < 0 || w.DayOfWeek > 6 {
		return fmt.Errorf("dayOfWeek must be between 0 and 6, got %d", w.DayOfWeek)
	}
	start, err := ParseClock(w.Start)
	if err != nil {
		return fmt.Errorf("invalid window start: %w", err)
	}
	end, err := ParseClock(w.End)
	if err != nil {
		return fmt.Errorf("invalid window end: %w", err)
	}
	if end <= start {
		return fmt.Errorf("window end %s must be after start %s", w.End, w.Start)
	}
	return nil
}

// Agent is a bookable service provider of a tenant.
type Agent struct {
	ID                   string               `bson:"id" json:"id"`
	TenantID             string               `bson:"tenantId" json:"tenantId"`
	FirstName            string               `bson:"firstName" json:"firstName"`
	LastName             string               `bson:"lastName" json:"lastName"`
	Specialty            string               `bson:"specialty,omitempty" json:"specialty,omitempty"`
	Email                string               `bson:"email,omitempty" json:"email,omitempty"`
	Phone                string               `bson:"phone,omitempty" json:"phone,omitempty"`
	Mode                 AttendanceMode       `bson:"mode" json:"mode"`
	DefaultDuration      int                  `bson:"defaultDuration" json:"defaultDuration"` // minutes
	Buffer               int                  `bson:"buffer" json:"buffer"`                   // minutes between slots
	SimultaneousCapacity int                  `bson:"simultaneousCapacity,omitempty" json:"simultaneousCapacity,omitempty"`
	MaxPerDay            int                  `bson:"maxPerDay,omitempty" json:"maxPerDay,omitempty"`
	Active               bool                 `bson:"active" json:"active"`
	Availability         []AvailabilityWindow `bson:"availability" json:"availability"`
	CreatedAt            time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt            time.Time            `bson:"updatedAt" json:"updatedAt"`
}

// FullName joins first and last name.
func (a Agent) FullName() string {
	return strings.TrimSpace(a.FirstName + " " + a.LastName)
}

// WindowsFor returns the active windows for a weekday.
func (a Agent) WindowsFor(day time.Weekday) []AvailabilityWindow {
	var out []AvailabilityWindow
	for _, w := range a.Availability {
		if w.Active && w.DayOfWeek == int(day) {
			out = append(out, w)
		}
	}
	return out
}

// ParseClock parses "HH:MM" into minutes after midnight. "24:00" is accepted
// as the end of the day.
func ParseClock(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 || len(parts[1]) != 2 || len(parts[0]) == 0 || len(parts[0]) > 2 {
		return 0, fmt.Errorf("expected HH:MM, got %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("expected HH:MM, got %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("expected HH:MM, got %q", s)
	}
	if h == 24 && m == 0 {
		return 24 * 60, nil
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("clock out of range: %q", s)
	}
	return h*60 + m, nil
}

// AtClock returns the instant minutes after midnight of day's calendar date in loc.
func AtClock(day time.Time, minutes int, loc *time.Location) time.Time {
	d := day.In(loc)
	return time.Date(d.Year(), d.Month(), d.Day(), minutes/60, minutes%60, 0, 0, loc)
}

// StartOfDay truncates t to midnight in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	return AtClock(t, 0, loc)
}
