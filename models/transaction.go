package models

import (
	"time"
)

type TransactionStatus string

const (
	TransactionPending TransactionStatus = "pending"
	TransactionSuccess TransactionStatus = "success"
	TransactionFailed  TransactionStatus = "failed"
)

// Terminal reports whether the status can no longer change.
func (s TransactionStatus) Terminal() bool {
	return s == TransactionSuccess || s == TransactionFailed
}

// Transaction records one purchase attempt. SellerID is denormalized from the
// ticket at creation time and never follows later ownership changes.
type Transaction struct {
	ID               string            `json:"id"`
	TicketID         string            `json:"ticket_id"`
	BuyerID          string            `json:"buyer_id"`
	SellerID         string            `json:"seller_id"`
	Amount           float64           `json:"amount"`
	PaymentMethod    PaymentMethod     `json:"payment_method"`
	Status           TransactionStatus `json:"status"`
	GatewayReference string            `json:"gateway_reference,omitempty"`
	SettledAt        *time.Time        `json:"settled_at,omitempty"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}
