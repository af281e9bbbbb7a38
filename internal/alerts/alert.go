package alerts

import (
	"context"
	"time"
)

// Priority selects the delivery route for one alert.
type Priority uint8

const (
	// PriorityLow is durable-store-only delivery.
	PriorityLow Priority = iota
	// PriorityNormal is webhook-only delivery.
	PriorityNormal
	// PriorityHigh is webhook with durable-store fallback.
	PriorityHigh
	// PriorityCritical fans out to every channel concurrently.
	PriorityCritical
)

// String returns the canonical priority name.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "LOW"
	case PriorityNormal:
		return "NORMAL"
	case PriorityHigh:
		return "HIGH"
	case PriorityCritical:
		return "CRITICAL"
	}
	return "UNKNOWN"
}

// ChannelKind classifies a delivery channel for routing.
type ChannelKind uint8

const (
	// KindWebhook is merchant-backend HTTP delivery.
	KindWebhook ChannelKind = iota
	// KindRealtime is push delivery to a live merchant connection.
	KindRealtime
	// KindDurable persists the alert for later retrieval.
	KindDurable
)

// Alert is the wire-neutral alert record handed to channels. Field types are
// deliberately plain so channels can serialize without importing the engine.
type Alert struct {
	ID             string    `json:"id"`
	MerchantID     string    `json:"merchant_id"`
	Identity       string    `json:"identity,omitempty"`
	Severity       string    `json:"severity"`
	Indicators     []string  `json:"indicators,omitempty"`
	RequiresAction bool      `json:"requires_action"`
	Message        string    `json:"message,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Channel delivers alerts over one transport.
type Channel interface {
	Name() string
	Kind() ChannelKind
	Deliver(ctx context.Context, alert Alert) error
}
