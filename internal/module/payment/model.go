package payment

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// JSONMap is a jsonb-backed map column.
type JSONMap map[string]any

// Value implements driver.Valuer.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner.
func (m *JSONMap) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported jsonb source type %T", value)
	}
	return json.Unmarshal(data, m)
}

// GetString returns a string value from the map, or "" when absent.
func (m JSONMap) GetString(key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// PendingPayment is an order awaiting gateway confirmation. The unique
// index on OrderReference makes the reference the correlation key for
// incoming webhooks.
type PendingPayment struct {
	ID             uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OrderReference string         `json:"order_reference" gorm:"uniqueIndex;not null"`
	UserID         uuid.UUID      `json:"user_id" gorm:"type:uuid;index"`
	Gateway        string         `json:"gateway" gorm:"not null;index"`
	LinkID         string         `json:"link_id" gorm:"index"`
	PaymentURL     string         `json:"payment_url"`
	Amount         int64          `json:"amount"` // Major currency units
	Currency       string         `json:"currency" gorm:"default:COP"`
	Description    string         `json:"description"`
	CustomerEmail  string         `json:"customer_email"`
	PaymentMethods pq.StringArray `json:"payment_methods" gorm:"type:text[]"`
	Status         string         `json:"status" gorm:"not null;default:pending;index"`
	Metadata       JSONMap        `json:"metadata,omitempty" gorm:"type:jsonb"`
	ExpiresAt      time.Time      `json:"expires_at"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// Pending payment statuses.
const (
	PendingStatusPending  = "pending"
	PendingStatusDeclined = "declined"
)

// TableName returns the database table name.
func (PendingPayment) TableName() string {
	return "pending_payments"
}

// Expired reports whether the payment link has passed its expiration.
func (p *PendingPayment) Expired(now time.Time) bool {
	return !p.ExpiresAt.IsZero() && now.After(p.ExpiresAt)
}

// WebhookLog is an append-only record of every received webhook
// delivery, persisted before any processing happens.
type WebhookLog struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Gateway        string    `gorm:"not null;index"`
	EventID        string    `gorm:"index"`
	EventType      string
	Reference      string `gorm:"index"`
	Amount         int64
	Currency       string
	Payload        string `gorm:"type:jsonb"`
	SignatureValid bool   `gorm:"default:false"`
	Processed      bool   `gorm:"default:false"`
	ProcessedAt    *time.Time
	Error          *string
	CreatedAt      time.Time
}

// TableName returns the database table name.
func (WebhookLog) TableName() string {
	return "webhook_logs"
}

// SettledPurchase is a confirmed payment. The unique indexes on
// OrderReference and TransactionID are the authoritative guard against
// double settlement: redelivered or replayed webhooks hit one of them.
type SettledPurchase struct {
	ID             uuid.UUID `json:"id" gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OrderReference string    `json:"order_reference" gorm:"uniqueIndex;not null"`
	TransactionID  string    `json:"transaction_id" gorm:"uniqueIndex;not null"`
	UserID         uuid.UUID `json:"user_id" gorm:"type:uuid;index"`
	Gateway        string    `json:"gateway" gorm:"not null;index"`
	Amount         int64     `json:"amount"` // Major currency units
	Currency       string    `json:"currency" gorm:"default:COP"`
	PaymentMethod  string    `json:"payment_method"`
	Description    string    `json:"description"`
	CustomerEmail  string    `json:"customer_email"`
	Metadata       JSONMap   `json:"metadata,omitempty" gorm:"type:jsonb"`
	SettledAt      time.Time `json:"settled_at"`
	CreatedAt      time.Time `json:"created_at"`
}

// TableName returns the database table name.
func (SettledPurchase) TableName() string {
	return "settled_purchases"
}
