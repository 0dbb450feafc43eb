package payment

import (
	"time"

	"github.com/google/uuid"
)

// CreatePaymentLinkRequest represents a request to create a payment link.
// Amount is in major currency units (whole pesos for COP). UserID is
// taken from the authenticated session, never from the request body.
type CreatePaymentLinkRequest struct {
	UserID        uuid.UUID      `json:"-"`
	Gateway       string         `json:"gateway" binding:"required,oneof=bold wompi"`
	Amount        int64          `json:"amount" binding:"required,gt=0"`
	Currency      string         `json:"currency"`
	Description   string         `json:"description"`
	CustomerEmail string         `json:"customer_email" binding:"required,email"`
	PaymentMethod string         `json:"payment_method,omitempty"` // Wompi method type (NEQUI, CARD, PSE)
	RedirectURL   string         `json:"redirect_url,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// PaymentLinkResponse represents a created payment link.
type PaymentLinkResponse struct {
	Reference  string    `json:"reference"`
	Gateway    string    `json:"gateway"`
	PaymentURL string    `json:"payment_url"`
	LinkID     string    `json:"link_id"`
	Amount     int64     `json:"amount"`
	Currency   string    `json:"currency"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// PaymentStatusResponse represents the current state of a payment
// looked up by its order reference.
type PaymentStatusResponse struct {
	Reference     string     `json:"reference"`
	Gateway       string     `json:"gateway"`
	Status        string     `json:"status"` // settled, pending, declined
	Amount        int64      `json:"amount"`
	Currency      string     `json:"currency"`
	TransactionID string     `json:"transaction_id,omitempty"`
	PaymentMethod string     `json:"payment_method,omitempty"`
	SettledAt     *time.Time `json:"settled_at,omitempty"`
}

// Payment verification statuses.
const (
	VerifyStatusSettled  = "settled"
	VerifyStatusPending  = "pending"
	VerifyStatusDeclined = "declined"
)

// BoldHashRequest represents a request for a Bold checkout integrity hash.
type BoldHashRequest struct {
	OrderID  string `json:"order_id" binding:"required"`
	Amount   int64  `json:"amount" binding:"required,gt=0"`
	Currency string `json:"currency"`
}

// BoldHashResponse carries the computed integrity hash.
type BoldHashResponse struct {
	Hash string `json:"hash"`
}

// WebhookEventResult is the per-event outcome of webhook processing.
type WebhookEventResult struct {
	Reference string `json:"reference,omitempty"`
	Outcome   string `json:"outcome"`
}

// WebhookResult summarizes a processed webhook delivery.
type WebhookResult struct {
	Events []WebhookEventResult `json:"events"`
}
