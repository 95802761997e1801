package bus

import (
	"context"
	"time"

	"github.com/crsacramento/BusTicketsServer/internal/ticket"
)

type Service interface {
	// ListValidated returns the tickets a bus validated inside the trailing
	// window ending now. A non-positive window falls back to the configured
	// default.
	ListValidated(ctx context.Context, busMac string, window time.Duration) ([]ticket.Ticket, error)
}

type service struct {
	tickets       ticket.Repository
	defaultWindow time.Duration
}

func NewService(tickets ticket.Repository, defaultWindow time.Duration) Service {
	return &service{
		tickets:       tickets,
		defaultWindow: defaultWindow,
	}
}

func (s *service) ListValidated(ctx context.Context, busMac string, window time.Duration) ([]ticket.Ticket, error) {
	normalized, err := ticket.NormalizeBusMac(busMac)
	if err != nil {
		return nil, err
	}

	if window <= 0 {
		window = s.defaultWindow
	}

	now := time.Now().UTC()
	return s.tickets.ListValidatedByBus(ctx, normalized, now.Add(-window), now)
}
