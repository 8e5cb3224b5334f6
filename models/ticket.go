package models

import (
	"time"
)

type TicketStatus string

const (
	TicketAvailable TicketStatus = "available"
	TicketReserved  TicketStatus = "reserved"
	TicketSold      TicketStatus = "sold"
	TicketCancelled TicketStatus = "cancelled"
)

type Ticket struct {
	ID        string       `json:"id"`
	EventName string       `json:"event_name"`
	EventDate time.Time    `json:"event_date"`
	Price     float64      `json:"price"`
	OwnerID   string       `json:"owner_id"`
	Status    TicketStatus `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// Purchasable reports whether a buyer may start a purchase for this ticket.
func (t *Ticket) Purchasable() bool {
	return t.Status == TicketAvailable
}
