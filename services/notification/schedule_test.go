package notification

import (
	"testing"
	"time"

	"turnero/models"
)

func TestSchedule(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("ART", -3*3600)
	// Wednesday 2030-01-09 15:00 local.
	start := time.Date(2030, 1, 9, 15, 0, 0, 0, loc)
	created := time.Date(2030, 1, 6, 10, 0, 0, 0, loc)

	tests := []struct {
		name  string
		rule  models.NotificationRule
		want  time.Time
		empty bool
	}{
		{
			name: "hours before",
			rule: models.NotificationRule{Active: true, Moment: models.MomentHoursBefore, HoursBefore: 2},
			want: time.Date(2030, 1, 9, 13, 0, 0, 0, loc),
		},
		{
			name: "hours before defaults to a day",
			rule: models.NotificationRule{Active: true, Moment: models.MomentHoursBefore},
			want: time.Date(2030, 1, 8, 15, 0, 0, 0, loc),
		},
		{
			name: "day before at clock",
			rule: models.NotificationRule{Active: true, Moment: models.MomentDayBefore, SendAt: "19:30"},
			want: time.Date(2030, 1, 8, 19, 30, 0, 0, loc),
		},
		{
			name: "two days before default clock",
			rule: models.NotificationRule{Active: true, Moment: models.MomentDayBefore, DaysBefore: 2},
			want: time.Date(2030, 1, 7, 20, 0, 0, 0, loc),
		},
		{
			name: "same day",
			rule: models.NotificationRule{Active: true, Moment: models.MomentSameDay, SendAt: "07:00"},
			want: time.Date(2030, 1, 9, 7, 0, 0, 0, loc),
		},
		{
			name:  "same day after start",
			rule:  models.NotificationRule{Active: true, Moment: models.MomentSameDay, SendAt: "16:00"},
			empty: true,
		},
		{
			name:  "already past",
			rule:  models.NotificationRule{Active: true, Moment: models.MomentHoursBefore, HoursBefore: 24 * 7},
			empty: true,
		},
		{
			name:  "inactive",
			rule:  models.NotificationRule{Moment: models.MomentHoursBefore, HoursBefore: 2},
			empty: true,
		},
		{
			name:  "bad clock",
			rule:  models.NotificationRule{Active: true, Moment: models.MomentSameDay, SendAt: "7pm"},
			empty: true,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Schedule([]models.NotificationRule{tt.rule}, start, created, loc)
			if tt.empty {
				if len(got) != 0 {
					t.Fatalf("got %d records, want none", len(got))
				}
				return
			}
			if len(got) != 1 || !got[0].ScheduledFor.Equal(tt.want) {
				t.Fatalf("got %+v, want one record at %v", got, tt.want)
			}
			if got[0].Type != models.NotificationReminder || got[0].Sent {
				t.Fatalf("record = %+v", got[0])
			}
		})
	}
}

func TestScheduleSortsRecords(t *testing.T) {
	t.Parallel()

	start := time.Date(2030, 1, 9, 15, 0, 0, 0, time.UTC)
	rules := []models.NotificationRule{
		{Active: true, Type: models.NotificationReminder, Moment: models.MomentHoursBefore, HoursBefore: 1},
		{Active: true, Type: models.NotificationConfirmation, Moment: models.MomentDayBefore},
	}
	got := Schedule(rules, start, start.AddDate(0, 0, -5), time.UTC)
	if len(got) != 2 || got[0].Type != models.NotificationConfirmation || !got[0].ScheduledFor.Before(got[1].ScheduledFor) {
		t.Fatalf("records = %+v", got)
	}
}
