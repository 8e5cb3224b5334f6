package store

import (
	"context"
	"fmt"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"

	"ticket-market/internal/status"
	"ticket-market/models"
)

// touchExpr keeps the PocketBase "updated" autodate in sync when rows are
// mutated through raw conditional statements instead of record saves.
const touchExpr = "strftime('%Y-%m-%d %H:%M:%fZ')"

// TicketStore owns ticket rows and their lifecycle status. Status transitions
// happen only through the conditional updates below, never through record
// saves from request handlers.
type TicketStore struct {
	app core.App
}

func NewTicketStore(app core.App) *TicketStore {
	return &TicketStore{app: app}
}

func (s *TicketStore) GetByID(ctx context.Context, id string) (*models.Ticket, error) {
	record, err := s.app.FindRecordById("tickets", id)
	if err != nil {
		return nil, status.ErrTicketNotFound
	}
	return ticketFromRecord(record), nil
}

func (s *TicketStore) Create(ctx context.Context, t *models.Ticket) (*models.Ticket, error) {
	collection, err := s.app.FindCollectionByNameOrId("tickets")
	if err != nil {
		return nil, err
	}

	record := core.NewRecord(collection)
	record.Set("event_name", t.EventName)
	record.Set("event_date", t.EventDate)
	record.Set("price", t.Price)
	record.Set("owner", t.OwnerID)
	record.Set("status", string(models.TicketAvailable))

	if err := s.app.SaveWithContext(ctx, record); err != nil {
		return nil, fmt.Errorf("create ticket: %w", err)
	}

	return ticketFromRecord(record), nil
}

func (s *TicketStore) ListAvailable(ctx context.Context, limit, offset int) ([]*models.Ticket, error) {
	records, err := s.app.FindRecordsByFilter(
		"tickets",
		"status = {:status}",
		"-created",
		limit,
		offset,
		dbx.Params{"status": string(models.TicketAvailable)},
	)
	if err != nil {
		return nil, err
	}

	tickets := make([]*models.Ticket, 0, len(records))
	for _, r := range records {
		tickets = append(tickets, ticketFromRecord(r))
	}
	return tickets, nil
}

// Reserve flips available -> reserved in a single conditional statement so
// that under concurrent purchases of the same ticket exactly one caller
// observes success. Everyone else gets ErrTicketUnavailable.
func (s *TicketStore) Reserve(ctx context.Context, ticketID string) error {
	n, err := s.transition(ctx, ticketID, models.TicketAvailable, models.TicketReserved)
	if err != nil {
		return err
	}
	if n == 0 {
		return status.ErrTicketUnavailable
	}
	return nil
}

// Commit flips reserved -> sold. A zero-row result means the ticket was not
// reserved anymore, which defends against success callbacks replayed after a
// prior rollback already released the ticket.
func (s *TicketStore) Commit(ctx context.Context, ticketID string) error {
	n, err := s.transition(ctx, ticketID, models.TicketReserved, models.TicketSold)
	if err != nil {
		return err
	}
	if n == 0 {
		return status.ErrInvalidTransition
	}
	return nil
}

// Release flips reserved -> available. Releasing an already-available ticket
// is a no-op, which keeps failure-path retries idempotent.
func (s *TicketStore) Release(ctx context.Context, ticketID string) error {
	n, err := s.transition(ctx, ticketID, models.TicketReserved, models.TicketAvailable)
	if err != nil {
		return err
	}
	if n == 1 {
		return nil
	}

	ticket, err := s.GetByID(ctx, ticketID)
	if err != nil {
		return err
	}
	if ticket.Status == models.TicketAvailable {
		return nil
	}
	return status.ErrInvalidTransition
}

func (s *TicketStore) transition(ctx context.Context, ticketID string, from, to models.TicketStatus) (int64, error) {
	result, err := s.app.DB().NewQuery(
		"UPDATE tickets SET status = {:to}, updated = "+touchExpr+" WHERE id = {:id} AND status = {:from}",
	).Bind(dbx.Params{
		"id":   ticketID,
		"from": string(from),
		"to":   string(to),
	}).WithContext(ctx).Execute()
	if err != nil {
		return 0, fmt.Errorf("ticket %s -> %s: %w", from, to, err)
	}

	return result.RowsAffected()
}

func ticketFromRecord(r *core.Record) *models.Ticket {
	return &models.Ticket{
		ID:        r.Id,
		EventName: r.GetString("event_name"),
		EventDate: r.GetDateTime("event_date").Time(),
		Price:     r.GetFloat("price"),
		OwnerID:   r.GetString("owner"),
		Status:    models.TicketStatus(r.GetString("status")),
		CreatedAt: r.GetDateTime("created").Time(),
		UpdatedAt: r.GetDateTime("updated").Time(),
	}
}
