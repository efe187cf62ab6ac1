package notification

import (
	"sort"
	"strings"
	"time"

	"turnero/models"
)

const (
	defaultHoursBefore = 24
	defaultDayBeforeAt = "20:00"
	defaultSameDayAt   = "08:00"
)

// Schedule turns a tenant's notification rules into records for an
// appointment starting at start. Records that would fire at or before now
// are dropped.
func Schedule(rules []models.NotificationRule, start, now time.Time, loc *time.Location) []models.NotificationRecord {
	records := make([]models.NotificationRecord, 0, len(rules))
	for _, rule := range rules {
		if !rule.Active {
			continue
		}
		at, ok := fireTime(rule, start, loc)
		if !ok || !at.After(now) || !at.Before(start) {
			continue
		}
		kind := rule.Type
		if kind == "" {
			kind = models.NotificationReminder
		}
		records = append(records, models.NotificationRecord{
			Type:         kind,
			ScheduledFor: at,
			Template:     rule.Template,
		})
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].ScheduledFor.Before(records[j].ScheduledFor)
	})
	return records
}

func fireTime(rule models.NotificationRule, start time.Time, loc *time.Location) (time.Time, bool) {
	switch rule.Moment {
	case models.MomentHoursBefore:
		hours := rule.HoursBefore
		if hours <= 0 {
			hours = defaultHoursBefore
		}
		return start.Add(-time.Duration(hours) * time.Hour), true

	case models.MomentDayBefore:
		days := rule.DaysBefore
		if days <= 0 {
			days = 1
		}
		return clockOn(start.In(loc).AddDate(0, 0, -days), rule.SendAt, defaultDayBeforeAt, loc)

	case models.MomentSameDay:
		return clockOn(start, rule.SendAt, defaultSameDayAt, loc)
	}
	return time.Time{}, false
}

func clockOn(day time.Time, clock, fallback string, loc *time.Location) (time.Time, bool) {
	if strings.TrimSpace(clock) == "" {
		clock = fallback
	}
	m, err := models.ParseClock(clock)
	if err != nil {
		return time.Time{}, false
	}
	return models.AtClock(day, m, loc), true
}
