package account

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/crsacramento/BusTicketsServer/internal/metrics"

	"github.com/uptrace/bun"
)

type Repository interface {
	Create(ctx context.Context, user *User) (*User, error)
	GetByLogin(ctx context.Context, login string) (*User, error)
	ExistsByCardNumber(ctx context.Context, cardNumber string) (bool, error)
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

func (r *repository) Create(ctx context.Context, user *User) (*User, error) {
	start := time.Now()
	_, err := r.db.NewInsert().Model(user).Returning("*").Exec(ctx)

	r.metrics.RecordQuery(ctx, "insert", "users", time.Since(start), err)

	if err != nil {
		return nil, err
	}
	return user, nil
}

func (r *repository) GetByLogin(ctx context.Context, login string) (*User, error) {
	start := time.Now()
	user := new(User)
	err := r.db.NewSelect().Model(user).Where("login = ?", login).Scan(ctx)

	r.metrics.RecordQuery(ctx, "select", "users", time.Since(start), err)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return user, nil
}

func (r *repository) ExistsByCardNumber(ctx context.Context, cardNumber string) (bool, error) {
	start := time.Now()
	exists, err := r.db.NewSelect().
		Model((*User)(nil)).
		Where("credit_card_num = ?", cardNumber).
		Exists(ctx)

	r.metrics.RecordQuery(ctx, "select", "users", time.Since(start), err)

	return exists, err
}
