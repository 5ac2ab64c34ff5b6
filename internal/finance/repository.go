package finance

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) sumBetween(ctx context.Context, query string, from, to time.Time) (decimal.Decimal, error) {
	var raw string
	if err := r.pool.QueryRow(ctx, query, from, to).Scan(&raw); err != nil {
		return decimal.Zero, fmt.Errorf("finance sum: %w", err)
	}
	sum, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("finance sum parse: %w", err)
	}
	return sum, nil
}

func (r *Repository) SumSales(ctx context.Context, from, to time.Time) (decimal.Decimal, error) {
	return r.sumBetween(ctx, `
		SELECT COALESCE(SUM(total), 0)::text
		FROM sales
		WHERE sale_date >= $1 AND sale_date < $2`, from, to)
}

func (r *Repository) SumIncomes(ctx context.Context, from, to time.Time) (decimal.Decimal, error) {
	return r.sumBetween(ctx, `
		SELECT COALESCE(SUM(amount), 0)::text
		FROM incomes
		WHERE entry_date >= $1 AND entry_date < $2`, from, to)
}

func (r *Repository) SumExpenses(ctx context.Context, from, to time.Time) (decimal.Decimal, error) {
	return r.sumBetween(ctx, `
		SELECT COALESCE(SUM(amount), 0)::text
		FROM expenses
		WHERE entry_date >= $1 AND entry_date < $2`, from, to)
}

func (r *Repository) SumPurchases(ctx context.Context, from, to time.Time) (decimal.Decimal, error) {
	return r.sumBetween(ctx, `
		SELECT COALESCE(SUM(total_amount), 0)::text
		FROM purchases
		WHERE purchase_date >= $1 AND purchase_date < $2`, from, to)
}
