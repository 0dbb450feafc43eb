package provider

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/veralix/server/internal/utils/metrics"
	"go.uber.org/zap"
)

// BoldConfig holds Bold.co gateway configuration.
type BoldConfig struct {
	APIBaseURL     string
	APIKey         string        // Identity key, sent on every API call
	SecretKey      string        // Signs checkout integrity hashes
	WebhookSecret  string        // Signs webhook payloads
	PaymentMethods []string      // Methods enabled on created links
	LinkExpiry     time.Duration // Created links expire after this
	Timeout        time.Duration
}

// BoldGateway implements Gateway for Bold.co.
// Bold amounts are in major units (whole pesos) on both directions.
type BoldGateway struct {
	config *BoldConfig
	http   *httpClient
	logger *zap.Logger
}

// NewBoldGateway creates a new Bold.co gateway.
func NewBoldGateway(config *BoldConfig, m *metrics.Metrics, logger *zap.Logger) *BoldGateway {
	if config.LinkExpiry == 0 {
		config.LinkExpiry = 24 * time.Hour
	}
	if config.WebhookSecret == "" {
		logger.Warn("bold webhook secret not configured, signature verification disabled")
	}
	return &BoldGateway{
		config: config,
		http:   newHTTPClient("bold", config.APIBaseURL, config.Timeout, m),
		logger: logger,
	}
}

// Name returns the gateway name.
func (g *BoldGateway) Name() string {
	return "bold"
}

// --- Wire types ---

type boldAmount struct {
	Currency    string `json:"currency"`
	TotalAmount int64  `json:"total_amount"`
	TipAmount   int64  `json:"tip_amount"`
	Taxes       []any  `json:"taxes"`
}

type boldLinkRequest struct {
	AmountType     string     `json:"amount_type"`
	Amount         boldAmount `json:"amount"`
	Reference      string     `json:"reference"`
	Description    string     `json:"description,omitempty"`
	ExpirationDate int64      `json:"expiration_date"`
	CallbackURL    string     `json:"callback_url,omitempty"`
	PaymentMethods []string   `json:"payment_methods,omitempty"`
}

type boldLinkResponse struct {
	Payload struct {
		PaymentLink string `json:"payment_link"`
		URL         string `json:"url"`
	} `json:"payload"`
	Errors []any `json:"errors"`
}

type boldLinkStatusResponse struct {
	Payload struct {
		Status string `json:"status"`
		URL    string `json:"url"`
		Total  int64  `json:"total"`
	} `json:"payload"`
	Errors []any `json:"errors"`
}

type boldWebhookPayload struct {
	Notifications []boldNotification `json:"notifications"`
}

type boldNotification struct {
	Type    string `json:"type"`
	Subject string `json:"subject"`
	Data    struct {
		PaymentID string `json:"payment_id"`
		Amount    struct {
			Total    int64  `json:"total"`
			Currency string `json:"currency"`
		} `json:"amount"`
		PaymentMethod string `json:"payment_method"`
		Metadata      struct {
			Reference string `json:"reference"`
		} `json:"metadata"`
	} `json:"data"`
}

// --- Gateway ---

// CreateLink creates a closed-amount payment link.
func (g *BoldGateway) CreateLink(ctx context.Context, req *LinkRequest) (*PaymentLink, error) {
	expiresAt := req.ExpiresAt
	if expiresAt.IsZero() {
		expiresAt = time.Now().Add(g.config.LinkExpiry)
	}

	body := boldLinkRequest{
		AmountType: "CLOSE",
		Amount: boldAmount{
			Currency:    req.Currency,
			TotalAmount: req.Amount,
			TipAmount:   0,
			Taxes:       []any{},
		},
		Reference:      req.Reference,
		Description:    req.Description,
		ExpirationDate: expiresAt.UnixNano(),
		CallbackURL:    req.RedirectURL,
		PaymentMethods: g.config.PaymentMethods,
	}

	result, err := g.http.do(ctx, "create_link", http.MethodPost, "/online/link/v1", g.authHeaders(), body)
	if err != nil {
		return nil, fmt.Errorf("bold create link: %w", err)
	}

	var resp boldLinkResponse
	if err := json.Unmarshal(result.body, &resp); err != nil {
		return nil, fmt.Errorf("bold create link: decode response: %w", err)
	}
	if len(resp.Errors) > 0 {
		return nil, fmt.Errorf("bold create link: gateway errors: %v", resp.Errors)
	}
	if resp.Payload.PaymentLink == "" {
		return nil, fmt.Errorf("bold create link: empty payment link in response")
	}

	return &PaymentLink{
		LinkID:    resp.Payload.PaymentLink,
		URL:       resp.Payload.URL,
		RawStatus: "ACTIVE",
		Outcome:   OutcomePending,
	}, nil
}

// GetLink fetches the current state of a payment link.
func (g *BoldGateway) GetLink(ctx context.Context, linkID string) (*PaymentLink, error) {
	result, err := g.http.do(ctx, "get_link", http.MethodGet, "/online/link/v1/"+linkID, g.authHeaders(), nil)
	if err != nil {
		return nil, fmt.Errorf("bold get link: %w", err)
	}

	var resp boldLinkStatusResponse
	if err := json.Unmarshal(result.body, &resp); err != nil {
		return nil, fmt.Errorf("bold get link: decode response: %w", err)
	}

	return &PaymentLink{
		LinkID:    linkID,
		URL:       resp.Payload.URL,
		RawStatus: resp.Payload.Status,
		Outcome:   boldStatusOutcome(resp.Payload.Status),
	}, nil
}

// SignatureHeader returns the webhook signature header name.
func (g *BoldGateway) SignatureHeader() string {
	return "X-Bold-Signature"
}

// VerifySignature checks the hex SHA-256 digest of payload||secret.
// Verification is skipped when no webhook secret is configured.
func (g *BoldGateway) VerifySignature(payload []byte, signature string) error {
	if g.config.WebhookSecret == "" {
		return nil
	}
	sum := sha256.Sum256(append(payload, []byte(g.config.WebhookSecret)...))
	expected := hex.EncodeToString(sum[:])
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return fmt.Errorf("bold signature mismatch")
	}
	return nil
}

// ParseEvents parses a Bold webhook batch into normalized events.
// Notifications with unrecognized types map to OutcomeUnknown; the
// caller decides whether to drop or record them.
func (g *BoldGateway) ParseEvents(payload []byte) ([]*Event, error) {
	var body boldWebhookPayload
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, fmt.Errorf("bold webhook: decode payload: %w", err)
	}

	events := make([]*Event, 0, len(body.Notifications))
	for _, n := range body.Notifications {
		raw, _ := json.Marshal(n)
		events = append(events, &Event{
			EventID:       n.Data.PaymentID,
			Type:          n.Type,
			Outcome:       boldEventOutcome(n.Type),
			Reference:     n.Data.Metadata.Reference,
			TransactionID: n.Data.PaymentID,
			Amount:        n.Data.Amount.Total,
			Currency:      n.Data.Amount.Currency,
			PaymentMethod: n.Data.PaymentMethod,
			Raw:           raw,
		})
	}
	return events, nil
}

// IntegrityHash computes the checkout integrity signature:
// hex SHA-256 of the concatenation orderID + amount + currency + secret key.
func (g *BoldGateway) IntegrityHash(orderID string, amount int64, currency string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s%d%s%s", orderID, amount, currency, g.config.SecretKey)))
	return hex.EncodeToString(sum[:])
}

func (g *BoldGateway) authHeaders() map[string]string {
	return map[string]string{
		"Authorization": "x-api-key " + g.config.APIKey,
	}
}

func boldEventOutcome(eventType string) Outcome {
	switch eventType {
	case "SALE_APPROVED", "PAYMENT_APPROVED":
		return OutcomeApproved
	case "SALE_REJECTED", "PAYMENT_REJECTED":
		return OutcomeDeclined
	case "SALE_PENDING", "PAYMENT_PENDING":
		return OutcomePending
	default:
		return OutcomeUnknown
	}
}

func boldStatusOutcome(status string) Outcome {
	switch status {
	case "PAID":
		return OutcomeApproved
	case "REJECTED", "CANCELLED", "EXPIRED":
		return OutcomeDeclined
	case "ACTIVE", "PROCESSING":
		return OutcomePending
	default:
		return OutcomeUnknown
	}
}
