package status

import "errors"

var (
	ErrTicketUnavailable   = errors.New("ticket: not available for purchase")
	ErrSelfPurchase        = errors.New("ticket: sellers cannot buy their own listing")
	ErrInvalidTransition   = errors.New("ticket: invalid status transition")
	ErrTicketNotFound      = errors.New("ticket: not found")
	ErrTransactionNotFound = errors.New("transaction: not found")
	ErrPaymentNotFound     = errors.New("payment: not found")
	ErrUnsupportedMethod   = errors.New("payment: unsupported payment method")
	ErrInvalidSignature    = errors.New("gateway: callback signature mismatch")
	ErrGatewayUnavailable  = errors.New("gateway: payment gateway unavailable")
	ErrEarningRecordFailed = errors.New("earning: recording failed, manual reconciliation required")
)
