package models

import (
	"time"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentSuccess   PaymentStatus = "success"
	PaymentFailed    PaymentStatus = "failed"
	PaymentCancelled PaymentStatus = "cancelled"
)

func (s PaymentStatus) Terminal() bool {
	return s != PaymentPending
}

// Payment is 1:1 with a Transaction for a purchase flow. Its terminal status
// must agree with the transaction's.
type Payment struct {
	ID               string        `json:"id"`
	Method           PaymentMethod `json:"method"`
	Status           PaymentStatus `json:"status"`
	Amount           float64       `json:"amount"`
	PayerID          string        `json:"payer_id"`
	Title            string        `json:"title"`
	TransactionID    string        `json:"transaction_id"`
	PaidAt           *time.Time    `json:"paid_at,omitempty"`
	GatewayReference string        `json:"gateway_reference,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
}
