package ticket

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/crsacramento/BusTicketsServer/internal/account"
	"github.com/crsacramento/BusTicketsServer/internal/messaging"

	"github.com/google/uuid"
)

var (
	ErrInvalidRequest     = errors.New("invalid ticket request")
	ErrNoTicketsRequested = errors.New("no tickets requested")
	ErrTicketNotFound     = errors.New("ticket not found")
	ErrAlreadyValidated   = errors.New("ticket already validated")
	ErrInvalidBusAddress  = errors.New("invalid bus address")
)

// EventPublisher is satisfied by messaging.Producer. A nil publisher disables
// events entirely.
type EventPublisher interface {
	Publish(subject string, value interface{}) error
}

type Service interface {
	Purchase(ctx context.Context, login string, counts TierCounts) (*PurchaseResult, error)
	Validate(ctx context.Context, login, ticketID, busMac string) (*Ticket, error)
	ListUnvalidated(ctx context.Context, login string) ([]Ticket, error)
}

type service struct {
	repo   Repository
	users  account.Repository
	events EventPublisher
}

func NewService(repo Repository, users account.Repository, events EventPublisher) Service {
	return &service{
		repo:   repo,
		users:  users,
		events: events,
	}
}

// Purchase issues counts.Total() tickets in tier order 15, 30, 60, plus one
// bonus ticket when the batch reaches BonusThreshold. The bonus tier is the
// first tier in issuing order with a nonzero count, not the numerically
// smallest tier purchased. The whole batch is persisted atomically, and the
// returned set is the user's complete unvalidated collection.
func (s *service) Purchase(ctx context.Context, login string, counts TierCounts) (*PurchaseResult, error) {
	if counts.Tier15 < 0 || counts.Tier30 < 0 || counts.Tier60 < 0 {
		return nil, ErrInvalidRequest
	}

	total := counts.Total()
	if total == 0 {
		return nil, ErrNoTicketsRequested
	}

	user, err := s.users.GetByLogin(ctx, login)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	batch := make([]*Ticket, 0, total+1)
	for _, tier := range tierOrder {
		for i := 0; i < counts.forTier(tier); i++ {
			batch = append(batch, newTicket(user.ID, tier, now))
		}
	}

	if total >= BonusThreshold {
		batch = append(batch, newTicket(user.ID, bonusTier(counts), now))
	}

	if err := s.repo.CreateBatch(ctx, batch); err != nil {
		return nil, fmt.Errorf("failed to persist ticket batch: %w", err)
	}

	unvalidated, err := s.repo.ListUnvalidatedByUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}

	extra := len(batch) > total
	s.publish(messaging.SubjectTicketsPurchased, messaging.TicketsPurchasedEvent{
		Login:       login,
		Issued:      len(batch),
		BonusIssued: extra,
		PurchasedAt: now,
	})

	return &PurchaseResult{Tickets: unvalidated, Extra: extra}, nil
}

// bonusTier picks the first tier in issuing order with a nonzero count.
// Callers guarantee at least one count is positive.
func bonusTier(counts TierCounts) int {
	for _, tier := range tierOrder {
		if counts.forTier(tier) > 0 {
			return tier
		}
	}
	return Tier15
}

func newTicket(userID, tier int, createdAt time.Time) *Ticket {
	return &Ticket{
		ID:           uuid.NewString(),
		UserID:       userID,
		ValidityTime: tier,
		CreatedAt:    createdAt,
	}
}

// Validate transitions a ticket from unused to validated exactly once.
// Precondition failures are reported in a fixed order: unknown ticket, then
// already-validated, then malformed bus address. The write itself is a
// conditional update, so two concurrent attempts yield one winner and one
// ErrAlreadyValidated.
func (s *service) Validate(ctx context.Context, login, ticketID, busMac string) (*Ticket, error) {
	user, err := s.users.GetByLogin(ctx, login)
	if err != nil {
		return nil, err
	}

	ticket, err := s.repo.GetByIDForUser(ctx, ticketID, user.ID)
	if err != nil {
		return nil, err
	}

	if ticket.Validated() {
		return nil, ErrAlreadyValidated
	}

	normalized, err := NormalizeBusMac(busMac)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	won, err := s.repo.MarkValidated(ctx, ticket.ID, normalized, now)
	if err != nil {
		return nil, fmt.Errorf("failed to validate ticket: %w", err)
	}
	if !won {
		// Lost the race against a concurrent validator
		return nil, ErrAlreadyValidated
	}

	ticket.BusMacAddress = &normalized
	ticket.ValidatedAt = &now

	s.publish(messaging.SubjectTicketValidated, messaging.TicketValidatedEvent{
		TicketID:      ticket.ID,
		Login:         login,
		BusMacAddress: normalized,
		ValidatedAt:   now,
	})

	return ticket, nil
}

func (s *service) ListUnvalidated(ctx context.Context, login string) ([]Ticket, error) {
	user, err := s.users.GetByLogin(ctx, login)
	if err != nil {
		return nil, err
	}
	return s.repo.ListUnvalidatedByUser(ctx, user.ID)
}

// Event delivery is best effort; failures are already logged by the producer.
func (s *service) publish(subject string, value interface{}) {
	if s.events == nil {
		return
	}
	_ = s.events.Publish(subject, value)
}
