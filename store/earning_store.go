package store

import (
	"context"
	"fmt"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"

	"ticket-market/models"
)

// EarningStore appends earning rows. The unique index on the transaction
// reference rejects a second row for the same sale at the schema level.
type EarningStore struct {
	app core.App
}

func NewEarningStore(app core.App) *EarningStore {
	return &EarningStore{app: app}
}

func (s *EarningStore) Insert(ctx context.Context, e *models.Earning) (*models.Earning, error) {
	collection, err := s.app.FindCollectionByNameOrId("earnings")
	if err != nil {
		return nil, err
	}

	record := core.NewRecord(collection)
	record.Set("seller", e.SellerID)
	record.Set("amount", e.Amount)
	record.Set("transaction", e.TransactionID)
	record.Set("earned_at", e.EarnedAt)

	if err := s.app.SaveWithContext(ctx, record); err != nil {
		return nil, fmt.Errorf("insert earning: %w", err)
	}

	return earningFromRecord(record), nil
}

func (s *EarningStore) GetByTransactionID(ctx context.Context, transactionID string) (*models.Earning, error) {
	record, err := s.app.FindFirstRecordByFilter(
		"earnings",
		"transaction = {:tx}",
		dbx.Params{"tx": transactionID},
	)
	if err != nil {
		return nil, err
	}
	return earningFromRecord(record), nil
}

func (s *EarningStore) ListForSeller(ctx context.Context, sellerID string, limit, offset int) ([]*models.Earning, error) {
	records, err := s.app.FindRecordsByFilter(
		"earnings",
		"seller = {:seller}",
		"-earned_at",
		limit,
		offset,
		dbx.Params{"seller": sellerID},
	)
	if err != nil {
		return nil, err
	}

	earnings := make([]*models.Earning, 0, len(records))
	for _, r := range records {
		earnings = append(earnings, earningFromRecord(r))
	}
	return earnings, nil
}

func (s *EarningStore) TotalForSeller(ctx context.Context, sellerID string) (float64, error) {
	var total struct {
		Total float64 `db:"total"`
	}

	err := s.app.DB().NewQuery(
		"SELECT COALESCE(SUM(amount), 0) AS total FROM earnings WHERE seller = {:seller}",
	).Bind(dbx.Params{"seller": sellerID}).WithContext(ctx).One(&total)
	if err != nil {
		return 0, err
	}

	return total.Total, nil
}

func earningFromRecord(r *core.Record) *models.Earning {
	return &models.Earning{
		ID:            r.Id,
		SellerID:      r.GetString("seller"),
		Amount:        r.GetFloat("amount"),
		TransactionID: r.GetString("transaction"),
		EarnedAt:      r.GetDateTime("earned_at").Time(),
	}
}
