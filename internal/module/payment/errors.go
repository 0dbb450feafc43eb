package payment

import "errors"

// Module errors.
var (
	ErrPendingPaymentNotFound  = errors.New("pending payment not found")
	ErrSettledPurchaseNotFound = errors.New("settled purchase not found")
	ErrAlreadySettled          = errors.New("purchase already settled")
	ErrInvalidSignature        = errors.New("invalid webhook signature")
	ErrUnknownReference        = errors.New("unknown order reference")
	ErrGatewayNotFound         = errors.New("payment gateway not found")
)
