package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"ticket-market/internal/status"
	"ticket-market/models"
	"ticket-market/store"
)

type TicketHandler struct {
	app     *pocketbase.PocketBase
	tickets *store.TicketStore
}

func NewTicketHandler(app *pocketbase.PocketBase, tickets *store.TicketStore) *TicketHandler {
	return &TicketHandler{
		app:     app,
		tickets: tickets,
	}
}

type listTicketRequest struct {
	EventName string    `json:"event_name"`
	EventDate time.Time `json:"event_date"`
	Price     float64   `json:"price"`
}

// CreateListing puts a ticket up for sale, owned by the authenticated user.
func (h *TicketHandler) CreateListing(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	var req listTicketRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request body", err)
	}
	if req.EventName == "" {
		return apis.NewBadRequestError("event_name is required", nil)
	}
	if req.Price <= 0 {
		return apis.NewBadRequestError("price must be positive", nil)
	}

	ctx := e.Request.Context()

	ticket, err := h.tickets.Create(ctx, &models.Ticket{
		EventName: req.EventName,
		EventDate: req.EventDate,
		Price:     req.Price,
		OwnerID:   e.Auth.Id,
	})
	if err != nil {
		slog.Error("failed to create ticket listing", "owner", e.Auth.Id, "error", err)
		return apis.NewInternalServerError("Failed to create listing", nil)
	}

	return e.JSON(http.StatusCreated, ticket)
}

// GetTicket returns one ticket by id.
func (h *TicketHandler) GetTicket(e *core.RequestEvent) error {
	ticketID := e.Request.PathValue("ticketId")
	ctx := e.Request.Context()

	ticket, err := h.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, status.ErrTicketNotFound) {
			return apis.NewNotFoundError("Ticket not found", nil)
		}
		return apis.NewInternalServerError("Failed to load ticket", nil)
	}

	return e.JSON(http.StatusOK, ticket)
}

// ListAvailable pages through tickets open for purchase.
func (h *TicketHandler) ListAvailable(e *core.RequestEvent) error {
	limit := queryInt(e, "limit", 20)
	offset := queryInt(e, "offset", 0)
	ctx := e.Request.Context()

	tickets, err := h.tickets.ListAvailable(ctx, limit, offset)
	if err != nil {
		slog.Error("failed to list tickets", "error", err)
		return apis.NewInternalServerError("Failed to list tickets", nil)
	}

	return e.JSON(http.StatusOK, map[string]any{
		"tickets": tickets,
		"limit":   limit,
		"offset":  offset,
	})
}
