package availability

import (
	"sort"
	"time"

	"turnero/models"
)

// BuildSlots walks every active window of the agent on day's weekday in steps
// of duration+buffer and tags each candidate. A candidate is unavailable when
// it overlaps an active appointment or a schedule block.
func BuildSlots(agent models.Agent, day time.Time, duration int, appts []models.Appointment, blocks []models.ScheduleBlock, loc *time.Location) []models.Slot {
	if duration <= 0 {
		return nil
	}
	day = models.StartOfDay(day, loc)
	length := time.Duration(duration) * time.Minute
	step := time.Duration(duration+agent.Buffer) * time.Minute

	var slots []models.Slot
	for _, w := range agent.WindowsFor(day.Weekday()) {
		startMin, err := models.ParseClock(w.Start)
		if err != nil {
			continue
		}
		endMin, err := models.ParseClock(w.End)
		if err != nil || endMin <= startMin {
			continue
		}
		windowEnd := models.AtClock(day, endMin, loc)

		for t := models.AtClock(day, startMin, loc); !t.Add(length).After(windowEnd); t = t.Add(step) {
			end := t.Add(length)
			slots = append(slots, models.Slot{
				Start:     t,
				End:       end,
				Available: free(t, end, appts, blocks),
			})
		}
	}

	sort.SliceStable(slots, func(i, j int) bool { return slots[i].Start.Before(slots[j].Start) })
	return slots
}

// AvailableOnly keeps the free candidates.
func AvailableOnly(slots []models.Slot) []models.Slot {
	out := make([]models.Slot, 0, len(slots))
	for _, s := range slots {
		if s.Available {
			out = append(out, s)
		}
	}
	return out
}

func free(start, end time.Time, appts []models.Appointment, blocks []models.ScheduleBlock) bool {
	for _, a := range appts {
		if a.Status.IsActive() && models.Overlaps(a.Start, a.End, start, end) {
			return false
		}
	}
	for _, b := range blocks {
		if b.Overlaps(start, end) {
			return false
		}
	}
	return true
}
