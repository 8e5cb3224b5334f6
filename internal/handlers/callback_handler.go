package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"ticket-market/internal/services/gateway/momo"
	"ticket-market/internal/status"
	"ticket-market/services"
)

type CallbackHandler struct {
	app            *pocketbase.PocketBase
	reconciliation *services.ReconciliationService
}

func NewCallbackHandler(app *pocketbase.PocketBase, reconciliation *services.ReconciliationService) *CallbackHandler {
	return &CallbackHandler{
		app:            app,
		reconciliation: reconciliation,
	}
}

// HandleIPN receives the gateway's server-to-server notification. The gateway
// expects 204 on receipt; anything else triggers redelivery. Signature
// failures are the one hard rejection, everything after a valid signature is
// acked so the gateway stops retrying while we investigate.
func (h *CallbackHandler) HandleIPN(e *core.RequestEvent) error {
	var payload momo.IPNPayload
	if err := e.BindBody(&payload); err != nil {
		return apis.NewBadRequestError("Invalid callback body", nil)
	}

	ctx := e.Request.Context()

	if err := h.reconciliation.Reconcile(ctx, &payload); err != nil {
		if errors.Is(err, status.ErrInvalidSignature) {
			return apis.NewForbiddenError("Invalid signature", nil)
		}
		slog.Error("callback reconciliation failed", "order_id", payload.OrderID, "error", err)
	}

	return e.NoContent(http.StatusNoContent)
}

// HandleReturn receives the buyer's browser redirect after checkout. It
// carries the same signed fields as the IPN, so it doubles as a settlement
// path when the IPN is delayed.
func (h *CallbackHandler) HandleReturn(e *core.RequestEvent) error {
	payload := momo.ParseReturnQuery(e.Request.URL.Query())

	ctx := e.Request.Context()

	if err := h.reconciliation.Reconcile(ctx, payload); err != nil {
		if errors.Is(err, status.ErrInvalidSignature) {
			return apis.NewForbiddenError("Invalid signature", nil)
		}
		slog.Error("return reconciliation failed", "order_id", payload.OrderID, "error", err)
	}

	if payload.Succeeded() {
		return e.JSON(http.StatusOK, map[string]any{
			"status":  "success",
			"message": "Payment completed",
		})
	}
	return e.JSON(http.StatusOK, map[string]any{
		"status":  "failed",
		"message": payload.Message,
	})
}
