package payment

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// WebhookHandler handles gateway webhook deliveries.
//
// Processing outcomes always answer 200: gateways interpret anything
// else as a delivery failure and redeliver, and settlement idempotence
// lives in the database, not in the response code. The only non-200
// answers are 400 for an unreadable body, 401 for a bad signature, and
// 500 when the audit row cannot be written and a redelivery is the
// recovery path.
type WebhookHandler struct {
	service *Service
	logger  *zap.Logger
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(service *Service, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{
		service: service,
		logger:  logger,
	}
}

// RegisterRoutes registers the webhook routes.
func (h *WebhookHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.POST("/bold", h.HandleBoldWebhook)
	r.POST("/wompi", h.HandleWompiWebhook)
}

// HandleBoldWebhook handles Bold.co webhook notification batches.
func (h *WebhookHandler) HandleBoldWebhook(c *gin.Context) {
	h.handle(c, "bold", c.GetHeader("X-Bold-Signature"))
}

// HandleWompiWebhook handles Wompi transaction events.
func (h *WebhookHandler) HandleWompiWebhook(c *gin.Context) {
	h.handle(c, "wompi", c.GetHeader("X-Event-Checksum"))
}

func (h *WebhookHandler) handle(c *gin.Context, gateway, signature string) {
	// Raw body is needed for signature verification and the audit log.
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.logger.Error("failed to read webhook body",
			zap.String("gateway", gateway),
			zap.Error(err),
		)
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
		return
	}

	result, err := h.service.ProcessWebhook(c.Request.Context(), gateway, payload, signature)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidSignature):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid signature"})
		case errors.Is(err, ErrGatewayNotFound):
			// No gateway is configured under this name, so the delivery
			// leaves no database row; this server log line is its only
			// trace. Still 200: redelivering cannot fix a configuration
			// problem.
			h.logger.Error("webhook for unconfigured gateway",
				zap.String("gateway", gateway),
				zap.Error(err),
			)
			c.JSON(http.StatusOK, gin.H{"received": true})
		default:
			// The audit row could not be written. A non-200 makes the
			// gateway redeliver once logging works again.
			h.logger.Error("webhook processing error",
				zap.String("gateway", gateway),
				zap.Error(err),
			)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to record webhook"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true, "events": result.Events})
}
