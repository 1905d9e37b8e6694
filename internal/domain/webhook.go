package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// WebhookEventStatus is the processing state of a stored webhook delivery
type WebhookEventStatus string

const (
	WebhookQueued    WebhookEventStatus = "queued"
	WebhookProcessed WebhookEventStatus = "processed"
	WebhookFailed    WebhookEventStatus = "failed"
)

// WebhookEvent is a durably stored gateway callback
type WebhookEvent struct {
	ID              int64
	Provider        string
	ProviderEventID string
	IdempotencyKey  string
	EventType       string
	Payload         json.RawMessage
	Status          WebhookEventStatus
	Attempts        int
	LastError       *string
	ProcessedAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// WebhookIdempotencyKey builds the unique key provider:providerEventId
func WebhookIdempotencyKey(provider, providerEventID string) string {
	return fmt.Sprintf("%s:%s", provider, providerEventID)
}

// GatewayEventKind is the normalized meaning of a gateway callback
type GatewayEventKind string

const (
	GatewayEventCaptured GatewayEventKind = "captured"
	GatewayEventFailed   GatewayEventKind = "failed"
	GatewayEventPending  GatewayEventKind = "pending"
	GatewayEventIgnored  GatewayEventKind = "ignored"
)

// GatewayEvent is a provider event normalized for reconciliation
type GatewayEvent struct {
	Provider         string
	Method           PaymentMethod
	EventID          string
	EventType        string
	Kind             GatewayEventKind
	GatewayReference string
	// PaymentID taken from the charge metadata, 0 when absent
	PaymentID     int64
	FailureReason string
	Raw           json.RawMessage
}
