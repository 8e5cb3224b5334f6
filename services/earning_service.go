package services

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"ticket-market/internal/status"
	"ticket-market/models"
)

// DefaultCommissionRate is the platform's cut of each sale.
const DefaultCommissionRate = 0.05

// EarningBreakdown is the commission math for one sale. The same breakdown
// backs both the pre-purchase preview and the authoritative post-sale
// computation, so quotes cannot drift from what the seller is credited.
type EarningBreakdown struct {
	TransactionAmount float64 `json:"transaction_amount"`
	CommissionRate    float64 `json:"commission_rate"`
	CommissionAmount  float64 `json:"commission_amount"`
	SellerEarnings    float64 `json:"seller_earnings"`
	NetPercentage     float64 `json:"net_percentage"`
}

// EarningStore is the persistence slice the calculator needs.
type EarningStore interface {
	Insert(ctx context.Context, e *models.Earning) (*models.Earning, error)
	ListForSeller(ctx context.Context, sellerID string, limit, offset int) ([]*models.Earning, error)
	TotalForSeller(ctx context.Context, sellerID string) (float64, error)
}

// EarningService computes and records seller proceeds. It is the sole writer
// of earning rows.
type EarningService struct {
	store EarningStore
	rate  decimal.Decimal
}

func NewEarningService(store EarningStore, commissionRate float64) *EarningService {
	if commissionRate <= 0 || commissionRate >= 1 {
		commissionRate = DefaultCommissionRate
	}
	return &EarningService{
		store: store,
		rate:  decimal.NewFromFloat(commissionRate),
	}
}

// Calculate is pure: commission = amount * rate, seller = amount - commission.
func (s *EarningService) Calculate(amount float64) *EarningBreakdown {
	amt := decimal.NewFromFloat(amount)
	commission := amt.Mul(s.rate)
	seller := amt.Sub(commission)

	net := decimal.Zero
	if !amt.IsZero() {
		net = seller.Div(amt).Mul(decimal.NewFromInt(100))
	}

	return &EarningBreakdown{
		TransactionAmount: amount,
		CommissionRate:    s.rate.InexactFloat64(),
		CommissionAmount:  commission.InexactFloat64(),
		SellerEarnings:    seller.InexactFloat64(),
		NetPercentage:     net.InexactFloat64(),
	}
}

// Record persists one immutable earning row for a completed sale. Failures
// surface as ErrEarningRecordFailed and are never retried here; the sale is
// already settled and must not be reversed.
func (s *EarningService) Record(ctx context.Context, sellerID string, amount float64, transactionID string) (*models.Earning, error) {
	breakdown := s.Calculate(amount)

	earning, err := s.store.Insert(ctx, &models.Earning{
		SellerID:      sellerID,
		Amount:        breakdown.SellerEarnings,
		TransactionID: transactionID,
		EarnedAt:      time.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: seller=%s transaction=%s: %v",
			status.ErrEarningRecordFailed, sellerID, transactionID, err)
	}

	return earning, nil
}

// Summary returns the seller's lifetime total plus recent earning rows.
type EarningSummary struct {
	SellerID string            `json:"seller_id"`
	Total    float64           `json:"total"`
	Recent   []*models.Earning `json:"recent"`
}

func (s *EarningService) Summary(ctx context.Context, sellerID string) (*EarningSummary, error) {
	total, err := s.store.TotalForSeller(ctx, sellerID)
	if err != nil {
		return nil, err
	}

	recent, err := s.store.ListForSeller(ctx, sellerID, 10, 0)
	if err != nil {
		return nil, err
	}

	return &EarningSummary{
		SellerID: sellerID,
		Total:    total,
		Recent:   recent,
	}, nil
}
