package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"ticket-market/services"
	"ticket-market/store"
)

type EarningHandler struct {
	app      *pocketbase.PocketBase
	earnings *services.EarningService
	store    *store.EarningStore
}

func NewEarningHandler(app *pocketbase.PocketBase, earnings *services.EarningService, earningStore *store.EarningStore) *EarningHandler {
	return &EarningHandler{
		app:      app,
		earnings: earnings,
		store:    earningStore,
	}
}

// GetSummary returns the authenticated seller's lifetime total and recent
// earning rows.
func (h *EarningHandler) GetSummary(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	ctx := e.Request.Context()

	summary, err := h.earnings.Summary(ctx, e.Auth.Id)
	if err != nil {
		slog.Error("failed to load earning summary", "seller", e.Auth.Id, "error", err)
		return apis.NewInternalServerError("Failed to load earnings", nil)
	}

	return e.JSON(http.StatusOK, summary)
}

// ListEarnings pages through the authenticated seller's earning rows.
func (h *EarningHandler) ListEarnings(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	limit := queryInt(e, "limit", 20)
	offset := queryInt(e, "offset", 0)
	ctx := e.Request.Context()

	earnings, err := h.store.ListForSeller(ctx, e.Auth.Id, limit, offset)
	if err != nil {
		slog.Error("failed to list earnings", "seller", e.Auth.Id, "error", err)
		return apis.NewInternalServerError("Failed to list earnings", nil)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"earnings": earnings,
		"limit":    limit,
		"offset":   offset,
	})
}

// PreviewEarnings shows the commission breakdown for an arbitrary amount, so
// sellers can price a listing around their net proceeds.
func (h *EarningHandler) PreviewEarnings(e *core.RequestEvent) error {
	raw := e.Request.URL.Query().Get("amount")
	amount, err := strconv.ParseFloat(raw, 64)
	if err != nil || amount < 0 {
		return apis.NewBadRequestError("amount must be a non-negative number", nil)
	}

	return e.JSON(http.StatusOK, h.earnings.Calculate(amount))
}
