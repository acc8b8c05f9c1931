package models

import "time"

// Canonical message type tags emitted by the inbound normalizer.
const (
	MessageTypeText     = "text"
	MessageTypeImage    = "image"
	MessageTypeVideo    = "video"
	MessageTypeAudio    = "audio"
	MessageTypeDocument = "document"
	MessageTypeLocation = "location"
	MessageTypeContacts = "contacts"
)

// Canonical delivery status tags.
const (
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusRead      = "read"
	StatusFailed    = "failed"
)

// WebhookEvent is the queue envelope for one raw webhook delivery. The
// payload is carried untouched; normalization happens after dequeue.
type WebhookEvent struct {
	PhoneNumber string         `json:"phone_number"`
	ReceivedAt  time.Time      `json:"received_at"`
	Payload     map[string]any `json:"payload"`
}
