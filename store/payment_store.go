package store

import (
	"context"
	"fmt"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"

	"ticket-market/internal/status"
	"ticket-market/models"
)

// PaymentStore owns payment rows, 1:1 with purchase transactions. Terminal
// transitions are conditional on the current pending status so duplicate
// callbacks cannot rewrite a settled payment.
type PaymentStore struct {
	app core.App
}

func NewPaymentStore(app core.App) *PaymentStore {
	return &PaymentStore{app: app}
}

func (s *PaymentStore) Create(ctx context.Context, p *models.Payment) (*models.Payment, error) {
	collection, err := s.app.FindCollectionByNameOrId("payments")
	if err != nil {
		return nil, err
	}

	record := core.NewRecord(collection)
	record.Set("method", string(p.Method))
	record.Set("status", string(models.PaymentPending))
	record.Set("amount", p.Amount)
	record.Set("payer", p.PayerID)
	record.Set("title", p.Title)
	record.Set("transaction", p.TransactionID)

	if err := s.app.SaveWithContext(ctx, record); err != nil {
		return nil, fmt.Errorf("create payment: %w", err)
	}

	return paymentFromRecord(record), nil
}

func (s *PaymentStore) GetByID(ctx context.Context, id string) (*models.Payment, error) {
	record, err := s.app.FindRecordById("payments", id)
	if err != nil {
		return nil, status.ErrPaymentNotFound
	}
	return paymentFromRecord(record), nil
}

func (s *PaymentStore) GetByTransactionID(ctx context.Context, transactionID string) (*models.Payment, error) {
	record, err := s.app.FindFirstRecordByFilter(
		"payments",
		"transaction = {:tx}",
		dbx.Params{"tx": transactionID},
	)
	if err != nil {
		return nil, status.ErrPaymentNotFound
	}
	return paymentFromRecord(record), nil
}

// MarkSucceeded flips pending -> success and stamps paid_at. Reports whether
// this call performed the transition.
func (s *PaymentStore) MarkSucceeded(ctx context.Context, id, gatewayRef string) (bool, error) {
	query := "UPDATE payments SET status = 'success', paid_at = " + touchExpr +
		", updated = " + touchExpr
	params := dbx.Params{"id": id}
	if gatewayRef != "" {
		query += ", gateway_reference = {:ref}"
		params["ref"] = gatewayRef
	}
	query += " WHERE id = {:id} AND status = 'pending'"

	result, err := s.app.DB().NewQuery(query).Bind(params).WithContext(ctx).Execute()
	if err != nil {
		return false, fmt.Errorf("mark payment succeeded: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// SetGatewayReference records the gateway order id on a still-pending
// payment so its status can be queried later.
func (s *PaymentStore) SetGatewayReference(ctx context.Context, id, gatewayRef string) error {
	_, err := s.app.DB().NewQuery(
		"UPDATE payments SET gateway_reference = {:ref}, updated = "+touchExpr+
			" WHERE id = {:id} AND status = 'pending'",
	).Bind(dbx.Params{"id": id, "ref": gatewayRef}).WithContext(ctx).Execute()
	if err != nil {
		return fmt.Errorf("set payment gateway reference: %w", err)
	}
	return nil
}

// MarkFailed flips pending -> failed.
func (s *PaymentStore) MarkFailed(ctx context.Context, id string) (bool, error) {
	result, err := s.app.DB().NewQuery(
		"UPDATE payments SET status = 'failed', updated = "+touchExpr+
			" WHERE id = {:id} AND status = 'pending'",
	).Bind(dbx.Params{"id": id}).WithContext(ctx).Execute()
	if err != nil {
		return false, fmt.Errorf("mark payment failed: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *PaymentStore) ListForPayer(ctx context.Context, payerID string, limit, offset int) ([]*models.Payment, error) {
	records, err := s.app.FindRecordsByFilter(
		"payments",
		"payer = {:payer}",
		"-created",
		limit,
		offset,
		dbx.Params{"payer": payerID},
	)
	if err != nil {
		return nil, err
	}

	payments := make([]*models.Payment, 0, len(records))
	for _, r := range records {
		payments = append(payments, paymentFromRecord(r))
	}
	return payments, nil
}

func paymentFromRecord(r *core.Record) *models.Payment {
	p := &models.Payment{
		ID:               r.Id,
		Method:           models.PaymentMethod(r.GetString("method")),
		Status:           models.PaymentStatus(r.GetString("status")),
		Amount:           r.GetFloat("amount"),
		PayerID:          r.GetString("payer"),
		Title:            r.GetString("title"),
		TransactionID:    r.GetString("transaction"),
		GatewayReference: r.GetString("gateway_reference"),
		CreatedAt:        r.GetDateTime("created").Time(),
		UpdatedAt:        r.GetDateTime("updated").Time(),
	}

	if paidAt := r.GetDateTime("paid_at"); !paidAt.IsZero() {
		t := paidAt.Time()
		p.PaidAt = &t
	}

	return p
}
