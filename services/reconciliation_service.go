package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/google/uuid"

	"ticket-market/internal/services/gateway"
	"ticket-market/internal/services/gateway/momo"
	"ticket-market/models"
	"ticket-market/monitoring"
)

// CallbackVerifier authenticates an inbound gateway notification before any
// state is touched.
type CallbackVerifier interface {
	VerifyIPN(p *momo.IPNPayload) error
}

// Settler is the slice of the purchase engine the reconciler drives.
type Settler interface {
	Settle(ctx context.Context, transactionID string, outcome gateway.Outcome, gatewayRef string) (*models.Transaction, error)
}

// GatewayQuerier polls the gateway-side status of an order.
type GatewayQuerier interface {
	QueryTransaction(ctx context.Context, orderID, requestID string) (*momo.QueryResponse, error)
}

// ReconciliationService turns authenticated gateway callbacks into
// settlements. It never trusts the payload beyond the verified signature:
// the payment is always re-read from our own records.
type ReconciliationService struct {
	verifier CallbackVerifier
	querier  GatewayQuerier
	payments PaymentStore
	engine   Settler
}

func NewReconciliationService(verifier CallbackVerifier, querier GatewayQuerier, payments PaymentStore, engine Settler) *ReconciliationService {
	return &ReconciliationService{
		verifier: verifier,
		querier:  querier,
		payments: payments,
		engine:   engine,
	}
}

// Reconcile verifies the callback signature, resolves the referenced payment
// and settles its transaction. Signature failures are returned to the caller
// so the handler can reject them; settlement replays come back as the stored
// transaction with no effect.
func (s *ReconciliationService) Reconcile(ctx context.Context, payload *momo.IPNPayload) error {
	if err := s.verifier.VerifyIPN(payload); err != nil {
		monitoring.RecordCallback("rejected")
		slog.Warn("rejected gateway callback", "order_id", payload.OrderID, "error", err)
		return err
	}

	payment, err := s.payments.GetByID(ctx, payload.ExtraData)
	if err != nil {
		monitoring.RecordCallback("unknown_payment")
		return fmt.Errorf("callback for unknown payment %q: %w", payload.ExtraData, err)
	}

	outcome := gateway.OutcomeFromResultCode(payload.ResultCode)
	if outcome == gateway.OutcomePending {
		// Informational result codes carry no terminal state; ack and wait.
		monitoring.RecordCallback("pending")
		return nil
	}

	reference := payload.OrderID
	if payload.TransID != 0 {
		reference = strconv.FormatInt(payload.TransID, 10)
	}

	if _, err := s.engine.Settle(ctx, payment.TransactionID, outcome, reference); err != nil {
		monitoring.RecordCallback("settle_error")
		return err
	}

	monitoring.RecordCallback("settled")
	return nil
}

// CheckStatus polls the gateway for an in-flight wallet payment and settles
// the transaction when the gateway already knows a terminal result. It covers
// the window where the IPN is delayed or lost; a concurrent callback is
// harmless since settlement is first-outcome-wins.
func (s *ReconciliationService) CheckStatus(ctx context.Context, tx *models.Transaction) (*models.Transaction, error) {
	if tx.Status.Terminal() {
		return tx, nil
	}

	payment, err := s.payments.GetByTransactionID(ctx, tx.ID)
	if err != nil {
		return nil, err
	}
	if payment.GatewayReference == "" {
		// Synchronous methods and wallet payments that never reached the
		// gateway have nothing to query.
		return tx, nil
	}

	resp, err := s.querier.QueryTransaction(ctx, payment.GatewayReference, uuid.NewString())
	if err != nil {
		return nil, err
	}

	outcome := gateway.OutcomeFromResultCode(resp.ResultCode)
	if outcome == gateway.OutcomePending {
		return tx, nil
	}

	reference := payment.GatewayReference
	if resp.TransID != 0 {
		reference = strconv.FormatInt(resp.TransID, 10)
	}

	slog.Info("settling from gateway status query",
		"transaction", tx.ID, "outcome", outcome, "result_code", resp.ResultCode)

	return s.engine.Settle(ctx, tx.ID, outcome, reference)
}
