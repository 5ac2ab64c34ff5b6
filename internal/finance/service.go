package finance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/ledgerhouse/ledgerhouse/internal/invoices"
)

// SummaryStore provides the monthly aggregation legs.
type SummaryStore interface {
	SumSales(ctx context.Context, from, to time.Time) (decimal.Decimal, error)
	SumIncomes(ctx context.Context, from, to time.Time) (decimal.Decimal, error)
	SumExpenses(ctx context.Context, from, to time.Time) (decimal.Decimal, error)
	SumPurchases(ctx context.Context, from, to time.Time) (decimal.Decimal, error)
}

// ReceivableSource lists invoices that still carry an unpaid balance.
type ReceivableSource interface {
	OutstandingAsOf(ctx context.Context, now time.Time) ([]invoices.Invoice, error)
}

type Service struct {
	logger      *slog.Logger
	store       SummaryStore
	receivables ReceivableSource
	cache       *Cache

	// Clock is injectable for tests; defaults to time.Now.
	Clock func() time.Time
}

func NewService(logger *slog.Logger, store SummaryStore, receivables ReceivableSource, cache *Cache) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		logger:      logger,
		store:       store,
		receivables: receivables,
		cache:       cache,
		Clock:       time.Now,
	}
}

// MonthlySummary aggregates revenue and expenses for one calendar month.
// Revenue is incomes plus sales; expenses are direct expenses plus
// purchases. The four sums run concurrently.
func (s *Service) MonthlySummary(ctx context.Context, year, month int) (*MonthlySummary, error) {
	if year < 2000 || year > 2200 || month < 1 || month > 12 {
		return nil, ErrInvalidMonth
	}

	key, err := s.cacheKey(ctx, "monthly", fmt.Sprintf("%04d-%02d", year, month))
	if err != nil {
		s.logger.Warn("finance cache key", "error", err)
	}

	var summary MonthlySummary
	loader := func(ctx context.Context) (any, error) {
		return s.buildMonthlySummary(ctx, year, month)
	}
	if err := s.cache.FetchJSON(ctx, key, &summary, loader); err != nil {
		return nil, err
	}
	return &summary, nil
}

func (s *Service) buildMonthlySummary(ctx context.Context, year, month int) (*MonthlySummary, error) {
	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	var sales, incomes, expenses, purchases decimal.Decimal
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		sales, err = s.store.SumSales(ctx, from, to)
		return err
	})
	g.Go(func() (err error) {
		incomes, err = s.store.SumIncomes(ctx, from, to)
		return err
	})
	g.Go(func() (err error) {
		expenses, err = s.store.SumExpenses(ctx, from, to)
		return err
	})
	g.Go(func() (err error) {
		purchases, err = s.store.SumPurchases(ctx, from, to)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	revenue := incomes.Add(sales)
	cost := expenses.Add(purchases)
	profit := revenue.Sub(cost)

	margin := decimal.Zero
	if !revenue.IsZero() {
		margin = profit.Div(revenue).Mul(decimal.NewFromInt(100))
	}

	return &MonthlySummary{
		Year:         year,
		Month:        month,
		Revenue:      revenue.InexactFloat64(),
		SalesTotal:   sales.InexactFloat64(),
		IncomesTotal: incomes.InexactFloat64(),
		Expenses:     cost.InexactFloat64(),
		ExpenseTotal: expenses.InexactFloat64(),
		PurchTotal:   purchases.InexactFloat64(),
		Profit:       profit.InexactFloat64(),
		ProfitMargin: margin.Round(2).InexactFloat64(),
	}, nil
}

// ReceivableAging buckets open invoice balances by age. Each invoice is
// aged from its due date, falling back to the issue date, so the report
// answers "how long has this money been owed".
func (s *Service) ReceivableAging(ctx context.Context) (*AgingReport, error) {
	now := s.Clock()

	key, err := s.cacheKey(ctx, "aging", now.Format(time.DateOnly))
	if err != nil {
		s.logger.Warn("finance cache key", "error", err)
	}

	var report AgingReport
	loader := func(ctx context.Context) (any, error) {
		return s.buildAging(ctx, now)
	}
	if err := s.cache.FetchJSON(ctx, key, &report, loader); err != nil {
		return nil, err
	}
	return &report, nil
}

func (s *Service) buildAging(ctx context.Context, now time.Time) (*AgingReport, error) {
	open, err := s.receivables.OutstandingAsOf(ctx, now)
	if err != nil {
		return nil, err
	}

	report := &AgingReport{AsOf: now}
	total := decimal.Zero
	buckets := map[string]decimal.Decimal{}
	for _, inv := range open {
		outstanding := decimal.NewFromFloat(inv.Outstanding())
		if !outstanding.IsPositive() {
			continue
		}
		ref := inv.DueDate
		if ref.IsZero() {
			ref = inv.IssueDate
		}
		days := daysSince(ref, now)
		bucket := BucketFor(days)
		buckets[bucket] = buckets[bucket].Add(outstanding)
		total = total.Add(outstanding)
		report.InvoiceCount++
	}

	report.Current = buckets["current"].InexactFloat64()
	report.Days30to60 = buckets["days_30_to_60"].InexactFloat64()
	report.Days61to90 = buckets["days_61_to_90"].InexactFloat64()
	report.Over90Days = buckets["over_90_days"].InexactFloat64()
	report.Total = total.InexactFloat64()
	return report, nil
}

func (s *Service) cacheKey(ctx context.Context, parts ...string) (string, error) {
	if s.cache == nil {
		return "", nil
	}
	return s.cache.BuildKey(ctx, parts...)
}

func daysSince(ref, now time.Time) int {
	if now.Before(ref) {
		return 0
	}
	return int(now.Sub(ref).Hours() / 24)
}
