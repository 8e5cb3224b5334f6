package store

import (
	"context"
	"fmt"
	"time"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"

	"ticket-market/internal/status"
	"ticket-market/models"
)

// TransactionStore owns transaction rows. Terminal transitions go through
// MarkSettled's conditional update; nothing else writes the status column.
type TransactionStore struct {
	app core.App
}

func NewTransactionStore(app core.App) *TransactionStore {
	return &TransactionStore{app: app}
}

func (s *TransactionStore) Create(ctx context.Context, tx *models.Transaction) (*models.Transaction, error) {
	collection, err := s.app.FindCollectionByNameOrId("transactions")
	if err != nil {
		return nil, err
	}

	record := core.NewRecord(collection)
	record.Set("ticket", tx.TicketID)
	record.Set("buyer", tx.BuyerID)
	record.Set("seller", tx.SellerID)
	record.Set("amount", tx.Amount)
	record.Set("payment_method", string(tx.PaymentMethod))
	record.Set("status", string(models.TransactionPending))
	record.Set("gateway_reference", tx.GatewayReference)

	if err := s.app.SaveWithContext(ctx, record); err != nil {
		return nil, fmt.Errorf("create transaction: %w", err)
	}

	return transactionFromRecord(record), nil
}

func (s *TransactionStore) GetByID(ctx context.Context, id string) (*models.Transaction, error) {
	record, err := s.app.FindRecordById("transactions", id)
	if err != nil {
		return nil, status.ErrTransactionNotFound
	}
	return transactionFromRecord(record), nil
}

// MarkSettled attempts the pending -> outcome transition as one conditional
// statement. It reports whether this call won the transition; a false return
// with no error means the transaction was already terminal.
func (s *TransactionStore) MarkSettled(ctx context.Context, id string, outcome models.TransactionStatus, gatewayRef string) (bool, error) {
	if !outcome.Terminal() {
		return false, status.ErrInvalidTransition
	}

	query := "UPDATE transactions SET status = {:to}, settled_at = " + touchExpr +
		", updated = " + touchExpr
	params := dbx.Params{
		"id": id,
		"to": string(outcome),
	}
	if gatewayRef != "" {
		query += ", gateway_reference = {:ref}"
		params["ref"] = gatewayRef
	}
	query += " WHERE id = {:id} AND status = 'pending'"

	result, err := s.app.DB().NewQuery(query).Bind(params).WithContext(ctx).Execute()
	if err != nil {
		return false, fmt.Errorf("settle transaction: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ListStalePending returns pending transactions created before the cutoff.
// The reservation sweeper fails these out through the normal settlement path.
func (s *TransactionStore) ListStalePending(ctx context.Context, cutoff time.Time) ([]*models.Transaction, error) {
	records, err := s.app.FindRecordsByFilter(
		"transactions",
		"status = 'pending' && created < {:cutoff}",
		"created",
		200,
		0,
		dbx.Params{"cutoff": cutoff.UTC().Format("2006-01-02 15:04:05.000Z")},
	)
	if err != nil {
		return nil, err
	}

	txs := make([]*models.Transaction, 0, len(records))
	for _, r := range records {
		txs = append(txs, transactionFromRecord(r))
	}
	return txs, nil
}

func (s *TransactionStore) ListForUser(ctx context.Context, userID string, limit, offset int) ([]*models.Transaction, error) {
	records, err := s.app.FindRecordsByFilter(
		"transactions",
		"buyer = {:user} || seller = {:user}",
		"-created",
		limit,
		offset,
		dbx.Params{"user": userID},
	)
	if err != nil {
		return nil, err
	}

	txs := make([]*models.Transaction, 0, len(records))
	for _, r := range records {
		txs = append(txs, transactionFromRecord(r))
	}
	return txs, nil
}

func transactionFromRecord(r *core.Record) *models.Transaction {
	tx := &models.Transaction{
		ID:               r.Id,
		TicketID:         r.GetString("ticket"),
		BuyerID:          r.GetString("buyer"),
		SellerID:         r.GetString("seller"),
		Amount:           r.GetFloat("amount"),
		PaymentMethod:    models.PaymentMethod(r.GetString("payment_method")),
		Status:           models.TransactionStatus(r.GetString("status")),
		GatewayReference: r.GetString("gateway_reference"),
		CreatedAt:        r.GetDateTime("created").Time(),
		UpdatedAt:        r.GetDateTime("updated").Time(),
	}

	if settled := r.GetDateTime("settled_at"); !settled.IsZero() {
		t := settled.Time()
		tx.SettledAt = &t
	}

	return tx
}
