package models

import "time"

// Slot is a candidate start time produced by the availability engine.
type Slot struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Available bool      `json:"available"`
}

// AvailabilityResult answers an availability check.
type AvailabilityResult struct {
	Available bool   `json:"available"`
	Reason    string `json:"reason,omitempty"`
}

// NotificationPayload identifies one notification record to deliver.
type NotificationPayload struct {
	TenantID      string `json:"tenantId"`
	AppointmentID string `json:"appointmentId"`
	Index         int    `json:"index"`
}
