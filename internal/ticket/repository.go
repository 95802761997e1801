package ticket

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/crsacramento/BusTicketsServer/internal/metrics"

	"github.com/uptrace/bun"
)

type Repository interface {
	// CreateBatch persists every ticket or none of them.
	CreateBatch(ctx context.Context, tickets []*Ticket) error
	GetByIDForUser(ctx context.Context, id string, userID int) (*Ticket, error)
	// MarkValidated performs the unused-to-validated transition as a single
	// conditional update. It reports false when another caller already
	// claimed the ticket.
	MarkValidated(ctx context.Context, id string, busMac string, validatedAt time.Time) (bool, error)
	ListUnvalidatedByUser(ctx context.Context, userID int) ([]Ticket, error)
	ListValidatedByBus(ctx context.Context, busMac string, from, to time.Time) ([]Ticket, error)
}

type repository struct {
	db      *bun.DB
	metrics *metrics.DatabaseMetrics
}

func NewRepository(db *bun.DB, m *metrics.DatabaseMetrics) Repository {
	return &repository{
		db:      db,
		metrics: m,
	}
}

// EnsureIndexes backs the two hot queries: the per-bus validation window and
// a user's unvalidated set.
func EnsureIndexes(ctx context.Context, db *bun.DB) error {
	statements := []string{
		"CREATE INDEX IF NOT EXISTS tickets_bus_validated_idx ON tickets (bus_mac_address, validated_at)",
		"CREATE INDEX IF NOT EXISTS tickets_user_unvalidated_idx ON tickets (user_id) WHERE validated_at IS NULL",
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (r *repository) CreateBatch(ctx context.Context, tickets []*Ticket) error {
	if len(tickets) == 0 {
		return nil
	}

	start := time.Now()
	err := r.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().Model(&tickets).Exec(ctx)
		return err
	})

	r.metrics.RecordQuery(ctx, "insert", "tickets", time.Since(start), err)

	return err
}

func (r *repository) GetByIDForUser(ctx context.Context, id string, userID int) (*Ticket, error) {
	start := time.Now()
	ticket := new(Ticket)
	err := r.db.NewSelect().
		Model(ticket).
		Where("id = ?", id).
		Where("user_id = ?", userID).
		Scan(ctx)

	r.metrics.RecordQuery(ctx, "select", "tickets", time.Since(start), err)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTicketNotFound
		}
		return nil, err
	}
	return ticket, nil
}

func (r *repository) MarkValidated(ctx context.Context, id string, busMac string, validatedAt time.Time) (bool, error) {
	start := time.Now()
	result, err := r.db.NewUpdate().
		Model((*Ticket)(nil)).
		Set("bus_mac_address = ?", busMac).
		Set("validated_at = ?", validatedAt).
		Where("id = ?", id).
		Where("validated_at IS NULL").
		Exec(ctx)

	r.metrics.RecordQuery(ctx, "update", "tickets", time.Since(start), err)

	if err != nil {
		return false, err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rowsAffected == 1, nil
}

func (r *repository) ListUnvalidatedByUser(ctx context.Context, userID int) ([]Ticket, error) {
	start := time.Now()
	tickets := make([]Ticket, 0)
	err := r.db.NewSelect().
		Model(&tickets).
		Where("user_id = ?", userID).
		Where("validated_at IS NULL").
		Order("created_at ASC", "id ASC").
		Scan(ctx)

	r.metrics.RecordQuery(ctx, "select", "tickets", time.Since(start), err)

	return tickets, err
}

func (r *repository) ListValidatedByBus(ctx context.Context, busMac string, from, to time.Time) ([]Ticket, error) {
	start := time.Now()
	tickets := make([]Ticket, 0)
	err := r.db.NewSelect().
		Model(&tickets).
		Where("bus_mac_address = ?", busMac).
		Where("validated_at >= ?", from).
		Where("validated_at <= ?", to).
		Order("validated_at ASC").
		Scan(ctx)

	r.metrics.RecordQuery(ctx, "select", "tickets", time.Since(start), err)

	return tickets, err
}
