package models

import (
	"strings"
	"time"
)

// Client is the person an appointment is booked for.
type Client struct {
	ID        string    `bson:"id" json:"id"`
	TenantID  string    `bson:"tenantId" json:"tenantId"`
	FirstName string    `bson:"firstName" json:"firstName"`
	LastName  string    `bson:"lastName" json:"lastName"`
	Phone     string    `bson:"phone" json:"phone"` // digits only
	Email     string    `bson:"email,omitempty" json:"email,omitempty"`
	Source    string    `bson:"source" json:"source"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}

// FullName joins first and last name.
func (c Client) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}
