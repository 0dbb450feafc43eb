package payment

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/veralix/server/internal/shared/response"
	"github.com/veralix/server/internal/utils/middleware"
)

// Handler handles HTTP requests for payments.
type Handler struct {
	service *Service
}

// NewHandler creates a new payment handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the payment routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	payments := r.Group("/payments")
	{
		payments.POST("", h.CreatePaymentLink)
		payments.GET("/:reference", h.VerifyPayment)
		payments.POST("/bold/hash", h.BoldIntegrityHash)
	}
}

// CreatePaymentLink creates a payment link on a gateway.
func (h *Handler) CreatePaymentLink(c *gin.Context) {
	var req CreatePaymentLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	req.UserID = middleware.GetUserID(c)

	resp, err := h.service.CreatePaymentLink(c.Request.Context(), &req)
	if err != nil {
		handlePaymentError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// VerifyPayment returns the current state of a payment by reference.
func (h *Handler) VerifyPayment(c *gin.Context) {
	reference := c.Param("reference")
	if reference == "" {
		response.BadRequest(c, "reference is required")
		return
	}

	resp, err := h.service.VerifyPayment(c.Request.Context(), reference)
	if err != nil {
		handlePaymentError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// BoldIntegrityHash computes the integrity hash for an embedded Bold checkout.
func (h *Handler) BoldIntegrityHash(c *gin.Context) {
	var req BoldHashRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	hash, err := h.service.BoldIntegrityHash(req.OrderID, req.Amount, req.Currency)
	if err != nil {
		handlePaymentError(c, err)
		return
	}

	c.JSON(http.StatusOK, BoldHashResponse{Hash: hash})
}

// --- Helpers ---

var paymentErrorMappings = []response.ErrorMapping{
	{Err: ErrPendingPaymentNotFound, Status: http.StatusNotFound, Code: "PAYMENT_NOT_FOUND", Message: "payment not found"},
	{Err: ErrSettledPurchaseNotFound, Status: http.StatusNotFound, Code: "PAYMENT_NOT_FOUND", Message: "payment not found"},
	{Err: ErrUnknownReference, Status: http.StatusNotFound, Code: "UNKNOWN_REFERENCE", Message: "unknown order reference"},
	{Err: ErrGatewayNotFound, Status: http.StatusBadRequest, Code: "GATEWAY_NOT_AVAILABLE", Message: "payment gateway not available"},
}

func handlePaymentError(c *gin.Context, err error) {
	if response.HandleError(c, err, paymentErrorMappings) {
		return
	}
	if errors.Is(err, ErrInvalidSignature) {
		response.Unauthorized(c, "invalid signature")
		return
	}
	response.InternalError(c, "")
}
