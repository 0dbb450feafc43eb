package provider

import (
	"context"
	"encoding/json"
	"time"
)

// Outcome is the normalized result of a gateway payment status.
// Every raw gateway status maps to exactly one outcome.
type Outcome string

const (
	OutcomeApproved Outcome = "approved"
	OutcomeDeclined Outcome = "declined"
	OutcomePending  Outcome = "pending"
	OutcomeUnknown  Outcome = "unknown"
)

// LinkRequest describes a payment link to create on a gateway.
// Amount is always in major currency units (whole pesos for COP);
// each gateway converts to its own unit at the wire boundary.
type LinkRequest struct {
	Reference     string
	Amount        int64
	Currency      string
	Description   string
	CustomerEmail string
	PaymentMethod string // gateway-specific method type, used by Wompi
	RedirectURL   string
	ExpiresAt     time.Time
}

// PaymentLink is a payment link created on or fetched from a gateway.
type PaymentLink struct {
	LinkID    string
	URL       string
	RawStatus string
	Outcome   Outcome
}

// Event is a single normalized payment notification.
// A gateway webhook body may carry one or many of these.
type Event struct {
	EventID       string
	Type          string // raw gateway event type or status
	Outcome       Outcome
	Reference     string
	TransactionID string
	Amount        int64 // major units, 0 when the gateway omits it
	Currency      string
	PaymentMethod string
	Raw           json.RawMessage
}

// Gateway defines the interface for payment gateways.
type Gateway interface {
	// Name returns the gateway name.
	Name() string

	// CreateLink creates a payment link for the given request.
	CreateLink(ctx context.Context, req *LinkRequest) (*PaymentLink, error)

	// GetLink fetches the current state of a payment link.
	GetLink(ctx context.Context, linkID string) (*PaymentLink, error)

	// SignatureHeader returns the HTTP header carrying the webhook signature.
	SignatureHeader() string

	// VerifySignature verifies a webhook payload against its signature.
	VerifySignature(payload []byte, signature string) error

	// ParseEvents parses a webhook payload into normalized events.
	ParseEvents(payload []byte) ([]*Event, error)
}
