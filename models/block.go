package models

import "time"

// ScheduleBlock is a one-off range in which an agent cannot be booked.
type ScheduleBlock struct {
	ID        string    `bson:"id" json:"id"`
	TenantID  string    `bson:"tenantId" json:"tenantId"`
	AgentID   string    `bson:"agentId" json:"agentId"`
	Start     time.Time `bson:"start" json:"start"`
	End       time.Time `bson:"end" json:"end"`
	WholeDay  bool      `bson:"wholeDay" json:"wholeDay"`
	Reason    string    `bson:"reason,omitempty" json:"reason,omitempty"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}

// Overlaps applies the half-open interval test against [start, end).
func (b ScheduleBlock) Overlaps(start, end time.Time) bool {
	return Overlaps(b.Start, b.End, start, end)
}

// Overlaps reports whether [aStart, aEnd) and [bStart, bEnd) intersect.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}
