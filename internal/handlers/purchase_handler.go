package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"ticket-market/internal/status"
	"ticket-market/models"
	"ticket-market/services"
	"ticket-market/store"
)

type PurchaseHandler struct {
	app            *pocketbase.PocketBase
	purchases      *services.PurchaseService
	reconciliation *services.ReconciliationService
	transactions   *store.TransactionStore
	payments       *store.PaymentStore
}

func NewPurchaseHandler(
	app *pocketbase.PocketBase,
	purchases *services.PurchaseService,
	reconciliation *services.ReconciliationService,
	transactions *store.TransactionStore,
	payments *store.PaymentStore,
) *PurchaseHandler {
	return &PurchaseHandler{
		app:            app,
		purchases:      purchases,
		reconciliation: reconciliation,
		transactions:   transactions,
		payments:       payments,
	}
}

type purchaseRequest struct {
	TicketID      string `json:"ticket_id"`
	PaymentMethod string `json:"payment_method"`
}

// InitiatePurchase starts a purchase for the authenticated buyer.
func (h *PurchaseHandler) InitiatePurchase(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	var req purchaseRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request body", err)
	}
	if req.TicketID == "" {
		return apis.NewBadRequestError("ticket_id is required", nil)
	}

	method, err := models.ParsePaymentMethod(req.PaymentMethod)
	if err != nil {
		return apis.NewBadRequestError("Unsupported payment method", nil)
	}

	ctx := e.Request.Context()

	result, err := h.purchases.InitiatePurchase(ctx, req.TicketID, e.Auth.Id, method)
	if err != nil {
		switch {
		case errors.Is(err, status.ErrTicketNotFound):
			return apis.NewNotFoundError("Ticket not found", nil)
		case errors.Is(err, status.ErrSelfPurchase):
			return apis.NewBadRequestError("You cannot purchase your own ticket", nil)
		case errors.Is(err, status.ErrTicketUnavailable):
			return e.JSON(http.StatusConflict, map[string]any{
				"error": "Ticket is no longer available",
			})
		case errors.Is(err, status.ErrGatewayUnavailable):
			slog.Error("purchase blocked by gateway outage", "ticket", req.TicketID, "error", err)
			return e.JSON(http.StatusServiceUnavailable, map[string]any{
				"error": "Payment gateway is temporarily unavailable, please retry",
			})
		default:
			slog.Error("purchase failed", "ticket", req.TicketID, "buyer", e.Auth.Id, "error", err)
			return apis.NewInternalServerError("Failed to process purchase", nil)
		}
	}

	return e.JSON(http.StatusOK, result)
}

// GetPurchase returns one transaction visible to the authenticated user.
func (h *PurchaseHandler) GetPurchase(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	transactionID := e.Request.PathValue("transactionId")
	ctx := e.Request.Context()

	tx, err := h.transactions.GetByID(ctx, transactionID)
	if err != nil {
		return apis.NewNotFoundError("Transaction not found", nil)
	}

	if tx.BuyerID != e.Auth.Id && tx.SellerID != e.Auth.Id {
		return apis.NewForbiddenError("Access denied", nil)
	}

	payment, err := h.payments.GetByTransactionID(ctx, tx.ID)
	if err != nil {
		return e.JSON(http.StatusOK, map[string]any{"transaction": tx})
	}

	return e.JSON(http.StatusOK, map[string]any{
		"transaction": tx,
		"payment":     payment,
	})
}

// CheckPurchaseStatus returns the current transaction status. For pending
// wallet payments it first polls the gateway, settling immediately if the
// gateway already knows a terminal result.
func (h *PurchaseHandler) CheckPurchaseStatus(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	transactionID := e.Request.PathValue("transactionId")
	ctx := e.Request.Context()

	tx, err := h.transactions.GetByID(ctx, transactionID)
	if err != nil {
		return apis.NewNotFoundError("Transaction not found", nil)
	}

	if tx.BuyerID != e.Auth.Id && tx.SellerID != e.Auth.Id {
		return apis.NewForbiddenError("Access denied", nil)
	}

	if !tx.Status.Terminal() {
		updated, err := h.reconciliation.CheckStatus(ctx, tx)
		if err != nil {
			slog.Warn("gateway status check failed", "transaction", tx.ID, "error", err)
		} else {
			tx = updated
		}
	}

	return e.JSON(http.StatusOK, map[string]any{
		"transaction_id": tx.ID,
		"status":         tx.Status,
	})
}

// ListPayments returns the authenticated user's payment history.
func (h *PurchaseHandler) ListPayments(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	limit := queryInt(e, "limit", 20)
	offset := queryInt(e, "offset", 0)
	ctx := e.Request.Context()

	payments, err := h.payments.ListForPayer(ctx, e.Auth.Id, limit, offset)
	if err != nil {
		slog.Error("failed to list payments", "user", e.Auth.Id, "error", err)
		return apis.NewInternalServerError("Failed to list payments", nil)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"payments": payments,
		"limit":    limit,
		"offset":   offset,
	})
}

// ListPurchases returns the authenticated user's transactions, newest first.
func (h *PurchaseHandler) ListPurchases(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	limit := queryInt(e, "limit", 20)
	offset := queryInt(e, "offset", 0)
	ctx := e.Request.Context()

	txs, err := h.transactions.ListForUser(ctx, e.Auth.Id, limit, offset)
	if err != nil {
		slog.Error("failed to list transactions", "user", e.Auth.Id, "error", err)
		return apis.NewInternalServerError("Failed to list purchases", nil)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"transactions": txs,
		"limit":        limit,
		"offset":       offset,
	})
}

// PreviewPurchase shows what a sale of this ticket would pay out.
func (h *PurchaseHandler) PreviewPurchase(e *core.RequestEvent) error {
	ticketID := e.Request.PathValue("ticketId")
	ctx := e.Request.Context()

	ticket, breakdown, err := h.purchases.Preview(ctx, ticketID)
	if err != nil {
		if errors.Is(err, status.ErrTicketNotFound) {
			return apis.NewNotFoundError("Ticket not found", nil)
		}
		return apis.NewInternalServerError("Failed to preview purchase", nil)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"ticket":    ticket,
		"breakdown": breakdown,
	})
}

func queryInt(e *core.RequestEvent, name string, fallback int) int {
	raw := e.Request.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
