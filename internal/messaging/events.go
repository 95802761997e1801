package messaging

import "time"

// Subjects relative to the configured prefix.
const (
	SubjectTicketsPurchased = "tickets.purchased"
	SubjectTicketValidated  = "tickets.validated"
)

// TicketsPurchasedEvent is emitted once per successful purchase batch.
type TicketsPurchasedEvent struct {
	Login       string    `json:"login"`
	Issued      int       `json:"issued"`
	BonusIssued bool      `json:"bonus_issued"`
	PurchasedAt time.Time `json:"purchased_at"`
}

// TicketValidatedEvent is emitted when a bus claims a ticket.
type TicketValidatedEvent struct {
	TicketID      string    `json:"ticket_id"`
	Login         string    `json:"login"`
	BusMacAddress string    `json:"bus_mac_address"`
	ValidatedAt   time.Time `json:"validated_at"`
}
