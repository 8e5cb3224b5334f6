package models

import (
	"time"
)

// Earning is the seller's net proceeds from one completed sale. Rows are
// insert-only; the unique transaction reference makes duplicates impossible.
type Earning struct {
	ID            string    `json:"id"`
	SellerID      string    `json:"seller_id"`
	Amount        float64   `json:"amount"`
	TransactionID string    `json:"transaction_id"`
	EarnedAt      time.Time `json:"earned_at"`
}
