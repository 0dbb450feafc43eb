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

// WompiConfig holds Wompi gateway configuration.
type WompiConfig struct {
	APIBaseURL   string
	PublicKey    string // Fetches merchant acceptance tokens
	PrivateKey   string // Authorizes transaction creation
	EventsSecret string // Signs webhook payloads
	Timeout      time.Duration
}

// WompiGateway implements Gateway for Wompi.
// Wompi bills in minor units (cents); conversion happens here and
// nowhere else.
type WompiGateway struct {
	config *WompiConfig
	http   *httpClient
	logger *zap.Logger
}

// NewWompiGateway creates a new Wompi gateway.
func NewWompiGateway(config *WompiConfig, m *metrics.Metrics, logger *zap.Logger) *WompiGateway {
	if config.EventsSecret == "" {
		logger.Warn("wompi events secret not configured, signature verification disabled")
	}
	return &WompiGateway{
		config: config,
		http:   newHTTPClient("wompi", config.APIBaseURL, config.Timeout, m),
		logger: logger,
	}
}

// Name returns the gateway name.
func (g *WompiGateway) Name() string {
	return "wompi"
}

// --- Wire types ---

type wompiMerchantResponse struct {
	Data struct {
		PresignedAcceptance struct {
			AcceptanceToken string `json:"acceptance_token"`
		} `json:"presigned_acceptance"`
	} `json:"data"`
}

type wompiPaymentMethod struct {
	Type               string `json:"type"`
	UserType           int    `json:"user_type"`
	PaymentDescription string `json:"payment_description,omitempty"`
}

type wompiTransactionRequest struct {
	AcceptanceToken string             `json:"acceptance_token"`
	AmountInCents   int64              `json:"amount_in_cents"`
	Currency        string             `json:"currency"`
	CustomerEmail   string             `json:"customer_email"`
	PaymentMethod   wompiPaymentMethod `json:"payment_method"`
	Reference       string             `json:"reference"`
	RedirectURL     string             `json:"redirect_url,omitempty"`
}

type wompiTransaction struct {
	ID                string `json:"id"`
	Status            string `json:"status"`
	Reference         string `json:"reference"`
	AmountInCents     int64  `json:"amount_in_cents"`
	Currency          string `json:"currency"`
	PaymentMethodType string `json:"payment_method_type"`
	PaymentLinkURL    string `json:"payment_link_url"`
	PaymentMethod     struct {
		Type  string `json:"type"`
		Extra struct {
			AsyncPaymentURL string `json:"async_payment_url"`
		} `json:"extra"`
	} `json:"payment_method"`
}

type wompiTransactionResponse struct {
	Data wompiTransaction `json:"data"`
}

type wompiWebhookEvent struct {
	Event string `json:"event"`
	Data  struct {
		Transaction wompiTransaction `json:"transaction"`
	} `json:"data"`
	SentAt string `json:"sent_at"`
}

// --- Gateway ---

// CreateLink creates a transaction and returns its payment URL.
// Wompi requires the merchant acceptance token on every transaction,
// so each link creation performs two gateway calls.
func (g *WompiGateway) CreateLink(ctx context.Context, req *LinkRequest) (*PaymentLink, error) {
	token, err := g.acceptanceToken(ctx)
	if err != nil {
		return nil, err
	}

	method := req.PaymentMethod
	if method == "" {
		method = "NEQUI"
	}

	body := wompiTransactionRequest{
		AcceptanceToken: token,
		AmountInCents:   MajorToMinor(req.Amount),
		Currency:        req.Currency,
		CustomerEmail:   req.CustomerEmail,
		PaymentMethod: wompiPaymentMethod{
			Type:               method,
			UserType:           0,
			PaymentDescription: req.Description,
		},
		Reference:   req.Reference,
		RedirectURL: req.RedirectURL,
	}

	result, err := g.http.do(ctx, "create_transaction", http.MethodPost, "/transactions", g.authHeaders(), body)
	if err != nil {
		return nil, fmt.Errorf("wompi create transaction: %w", err)
	}

	var resp wompiTransactionResponse
	if err := json.Unmarshal(result.body, &resp); err != nil {
		return nil, fmt.Errorf("wompi create transaction: decode response: %w", err)
	}
	if resp.Data.ID == "" {
		return nil, fmt.Errorf("wompi create transaction: empty transaction id in response")
	}

	url := resp.Data.PaymentLinkURL
	if url == "" {
		url = resp.Data.PaymentMethod.Extra.AsyncPaymentURL
	}
	if url == "" {
		return nil, fmt.Errorf("wompi create transaction: no payment url in response")
	}

	return &PaymentLink{
		LinkID:    resp.Data.ID,
		URL:       url,
		RawStatus: resp.Data.Status,
		Outcome:   wompiStatusOutcome(resp.Data.Status),
	}, nil
}

// GetLink fetches the current state of a transaction.
func (g *WompiGateway) GetLink(ctx context.Context, linkID string) (*PaymentLink, error) {
	result, err := g.http.do(ctx, "get_transaction", http.MethodGet, "/transactions/"+linkID, g.authHeaders(), nil)
	if err != nil {
		return nil, fmt.Errorf("wompi get transaction: %w", err)
	}

	var resp wompiTransactionResponse
	if err := json.Unmarshal(result.body, &resp); err != nil {
		return nil, fmt.Errorf("wompi get transaction: decode response: %w", err)
	}

	return &PaymentLink{
		LinkID:    linkID,
		URL:       resp.Data.PaymentLinkURL,
		RawStatus: resp.Data.Status,
		Outcome:   wompiStatusOutcome(resp.Data.Status),
	}, nil
}

// SignatureHeader returns the webhook signature header name.
func (g *WompiGateway) SignatureHeader() string {
	return "X-Event-Checksum"
}

// VerifySignature checks the hex SHA-256 digest of payload||events secret.
// Verification is skipped when no events secret is configured.
func (g *WompiGateway) VerifySignature(payload []byte, signature string) error {
	if g.config.EventsSecret == "" {
		return nil
	}
	sum := sha256.Sum256(append(payload, []byte(g.config.EventsSecret)...))
	expected := hex.EncodeToString(sum[:])
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return fmt.Errorf("wompi signature mismatch")
	}
	return nil
}

// ParseEvents parses a Wompi webhook body into a single normalized event.
func (g *WompiGateway) ParseEvents(payload []byte) ([]*Event, error) {
	var body wompiWebhookEvent
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, fmt.Errorf("wompi webhook: decode payload: %w", err)
	}

	tx := body.Data.Transaction
	if tx.ID == "" {
		return nil, fmt.Errorf("wompi webhook: missing transaction")
	}

	raw, _ := json.Marshal(body)
	return []*Event{{
		EventID:       tx.ID,
		Type:          tx.Status,
		Outcome:       wompiStatusOutcome(tx.Status),
		Reference:     tx.Reference,
		TransactionID: tx.ID,
		Amount:        MinorToMajor(tx.AmountInCents),
		Currency:      tx.Currency,
		PaymentMethod: tx.PaymentMethodType,
		Raw:           raw,
	}}, nil
}

// acceptanceToken fetches the merchant's presigned acceptance token.
func (g *WompiGateway) acceptanceToken(ctx context.Context) (string, error) {
	result, err := g.http.do(ctx, "acceptance_token", http.MethodGet, "/merchants/"+g.config.PublicKey, nil, nil)
	if err != nil {
		return "", fmt.Errorf("wompi acceptance token: %w", err)
	}

	var resp wompiMerchantResponse
	if err := json.Unmarshal(result.body, &resp); err != nil {
		return "", fmt.Errorf("wompi acceptance token: decode response: %w", err)
	}
	token := resp.Data.PresignedAcceptance.AcceptanceToken
	if token == "" {
		return "", fmt.Errorf("wompi acceptance token: empty token in response")
	}
	return token, nil
}

func (g *WompiGateway) authHeaders() map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + g.config.PrivateKey,
	}
}

func wompiStatusOutcome(status string) Outcome {
	switch status {
	case "APPROVED":
		return OutcomeApproved
	case "DECLINED", "VOIDED", "ERROR":
		return OutcomeDeclined
	case "PENDING":
		return OutcomePending
	default:
		return OutcomeUnknown
	}
}
