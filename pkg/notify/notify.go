// Package notify defines the outbound notification surface the Escalation
// Engine dispatches through: a provider-agnostic Channel, an SMS
// implementation backed by Twilio's REST API, and a Slack mirror channel.
package notify

import (
	"context"

	"github.com/google/uuid"
)

// Notification is one outbound message for a single recipient.
type Notification struct {
	DeliveryID uuid.UUID
	AlertID    uuid.UUID
	Phone      string // E.164, required for the SMS channel
	Body       string
}

// Result carries what the provider handed back for delivery tracking.
type Result struct {
	ProviderMessageID string
}

// Channel is the interface every outbound notification provider implements,
// generalized from the teacher's phone/SMS Caller interface to a single
// Send method since the Escalation Engine only ever sends text (spec §6
// Outbound SMS); a future voice channel would add its own method the way
// the teacher's Caller separates Call from SendSMS.
type Channel interface {
	Name() string
	Send(ctx context.Context, n Notification) (Result, error)
}
