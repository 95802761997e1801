package metrics

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type Metrics struct {
	ticketsPurchased   metric.Int64Counter
	bonusTicketsIssued metric.Int64Counter
	ticketsValidated   metric.Int64Counter
	validationRejected metric.Int64Counter
	busListQueries     metric.Int64Counter
	usersRegistered    metric.Int64Counter

	Database *DatabaseMetrics
}

func New(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}

	var err error

	m.ticketsPurchased, err = meter.Int64Counter(
		"bustickets.tickets.purchased",
		metric.WithDescription("Total number of tickets issued through purchases"),
		metric.WithUnit("{ticket}"),
	)
	if err != nil {
		return nil, err
	}

	m.bonusTicketsIssued, err = meter.Int64Counter(
		"bustickets.tickets.bonus_issued",
		metric.WithDescription("Total number of loyalty bonus tickets issued"),
		metric.WithUnit("{ticket}"),
	)
	if err != nil {
		return nil, err
	}

	m.ticketsValidated, err = meter.Int64Counter(
		"bustickets.tickets.validated",
		metric.WithDescription("Total number of successful ticket validations"),
		metric.WithUnit("{ticket}"),
	)
	if err != nil {
		return nil, err
	}

	m.validationRejected, err = meter.Int64Counter(
		"bustickets.tickets.validation_rejected",
		metric.WithDescription("Total number of rejected validation attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, err
	}

	m.busListQueries, err = meter.Int64Counter(
		"bustickets.bus.list_queries",
		metric.WithDescription("Total number of per-bus validation window queries"),
		metric.WithUnit("{query}"),
	)
	if err != nil {
		return nil, err
	}

	m.usersRegistered, err = meter.Int64Counter(
		"bustickets.users.registered",
		metric.WithDescription("Total number of registered users"),
		metric.WithUnit("{user}"),
	)
	if err != nil {
		return nil, err
	}

	m.Database, err = NewDatabaseMetrics(meter)
	if err != nil {
		return nil, err
	}

	return m, nil
}

func (m *Metrics) RecordTicketsPurchased(ctx context.Context, count int, tier int) {
	if m == nil {
		return
	}
	m.ticketsPurchased.Add(ctx, int64(count),
		metric.WithAttributes(attribute.Int("validity_minutes", tier)))
}

func (m *Metrics) RecordBonusTicketIssued(ctx context.Context, tier int) {
	if m == nil {
		return
	}
	m.bonusTicketsIssued.Add(ctx, 1,
		metric.WithAttributes(attribute.Int("validity_minutes", tier)))
}

func (m *Metrics) RecordTicketValidated(ctx context.Context) {
	if m == nil {
		return
	}
	m.ticketsValidated.Add(ctx, 1)
}

func (m *Metrics) RecordValidationRejected(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	m.validationRejected.Add(ctx, 1,
		metric.WithAttributes(attribute.String("reason", reason)))
}

func (m *Metrics) RecordBusListQuery(ctx context.Context) {
	if m == nil {
		return
	}
	m.busListQueries.Add(ctx, 1)
}

func (m *Metrics) RecordUserRegistered(ctx context.Context) {
	if m == nil {
		return
	}
	m.usersRegistered.Add(ctx, 1)
}
