// Package push delivers notification payloads to devices. Delivery is
// fire-and-forget from the engine's point of view: failures are logged and
// counted, never retried inside the invocation that produced them.
package push

import (
	"context"

	"chainrelay/pkg/domain"
)

// Message is one queued push. The payload fields are already formatted and
// redacted by the notification layer; this package only moves bytes.
type Message struct {
	RecipientToken string                `json:"recipient_token"`
	NotificationID domain.NotificationID `json:"notification_id"`
	Type           string                `json:"type"`
	Title          string                `json:"title"`
	Body           string                `json:"body"`
}

// Sender performs one physical batched send. Implementations accept at most
// the provider ceiling (500) per call; the batch writer enforces that bound.
type Sender interface {
	Send(ctx context.Context, msgs []Message) error
}
