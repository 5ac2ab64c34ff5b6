package quotes

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerhouse/ledgerhouse/internal/platform/db"
)

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Repository persists quotes in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
	q    querier
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, q: pool}
}

const quoteColumns = `id, number, customer_name, customer_email, customer_address, quote_date, valid_until,
	subtotal, tax_rate, tax_amount, discount_amount, total, status, notes, terms,
	created_by, invoice_id, rejected_reason, created_at, updated_at`

// WithTx runs fn against a transactional view of the repository.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, RepositoryPort) error) error {
	if r.pool == nil {
		return fn(ctx, r)
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &Repository{q: tx})
	})
}

// Create inserts the quote header and returns the new id.
func (r *Repository) Create(ctx context.Context, quote Quote) (int64, error) {
	var id int64
	err := r.q.QueryRow(ctx, `
		INSERT INTO quotes (number, customer_name, customer_email, customer_address, quote_date, valid_until,
			subtotal, tax_rate, tax_amount, discount_amount, total, status, notes, terms, created_by)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6, $7, $8, $9, $10, $11, $12, NULLIF($13, ''), NULLIF($14, ''), $15)
		RETURNING id`,
		quote.Number, quote.CustomerName, quote.CustomerEmail, quote.CustomerAddress,
		quote.QuoteDate, quote.ValidUntil, quote.Subtotal, quote.TaxRate, quote.TaxAmount,
		quote.DiscountAmount, quote.Total, quote.Status, quote.Notes, quote.Terms, quote.CreatedBy,
	).Scan(&id)
	return id, err
}

// InsertItem inserts a single quote line.
func (r *Repository) InsertItem(ctx context.Context, item QuoteItem) (int64, error) {
	var id int64
	err := r.q.QueryRow(ctx, `
		INSERT INTO quote_items (quote_id, product_id, description, quantity, unit_price, subtotal)
		VALUES ($1, NULLIF($2, 0), $3, $4, $5, $6)
		RETURNING id`,
		item.QuoteID, item.ProductID, item.Description, item.Quantity, item.UnitPrice, item.Subtotal,
	).Scan(&id)
	return id, err
}

// DeleteItems removes every line of a quote.
func (r *Repository) DeleteItems(ctx context.Context, quoteID int64) error {
	_, err := r.q.Exec(ctx, `DELETE FROM quote_items WHERE quote_id = $1`, quoteID)
	return err
}

// Get loads one quote with its items.
func (r *Repository) Get(ctx context.Context, id int64) (*Quote, error) {
	row := r.q.QueryRow(ctx, `SELECT `+quoteColumns+` FROM quotes WHERE id = $1`, id)
	quote, err := scanQuote(row)
	if err != nil {
		return nil, err
	}

	rows, err := r.q.Query(ctx, `
		SELECT id, quote_id, COALESCE(product_id, 0), description, quantity, unit_price, subtotal
		FROM quote_items WHERE quote_id = $1 ORDER BY id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var item QuoteItem
		if err := rows.Scan(&item.ID, &item.QuoteID, &item.ProductID, &item.Description, &item.Quantity, &item.UnitPrice, &item.Subtotal); err != nil {
			return nil, err
		}
		quote.Items = append(quote.Items, item)
	}
	return quote, rows.Err()
}

// List returns a page of quotes plus the matching total. Items are not
// loaded for listings.
func (r *Repository) List(ctx context.Context, req ListRequest) ([]Quote, int, error) {
	query := `SELECT ` + quoteColumns + ` FROM quotes WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM quotes WHERE 1=1`
	args := []any{}
	countArgs := []any{}
	argCount := 0

	if req.Status != "" {
		argCount++
		cond := ` AND status = $` + strconv.Itoa(argCount)
		query += cond
		countQuery += cond
		args = append(args, req.Status)
		countArgs = append(countArgs, req.Status)
	}
	if req.Search != "" {
		argCount++
		cond := ` AND (customer_name ILIKE $` + strconv.Itoa(argCount) + ` OR number ILIKE $` + strconv.Itoa(argCount) + `)`
		query += cond
		countQuery += cond
		args = append(args, "%"+req.Search+"%")
		countArgs = append(countArgs, "%"+req.Search+"%")
	}

	var total int
	if err := r.q.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	perPage := req.PerPage
	if perPage <= 0 {
		perPage = 50
	}
	page := req.Page
	if page <= 0 {
		page = 1
	}
	argCount++
	query += ` ORDER BY quote_date DESC, id DESC LIMIT $` + strconv.Itoa(argCount)
	args = append(args, perPage)
	argCount++
	query += ` OFFSET $` + strconv.Itoa(argCount)
	args = append(args, (page-1)*perPage)

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	quotes := []Quote{}
	for rows.Next() {
		quote, err := scanQuote(rows)
		if err != nil {
			return nil, 0, err
		}
		quotes = append(quotes, *quote)
	}
	return quotes, total, rows.Err()
}

// UpdateHeader rewrites the editable fields of a quote.
func (r *Repository) UpdateHeader(ctx context.Context, quote Quote) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE quotes SET customer_name = $2, customer_email = NULLIF($3, ''), customer_address = NULLIF($4, ''),
			quote_date = $5, valid_until = $6, subtotal = $7, tax_rate = $8, tax_amount = $9,
			discount_amount = $10, total = $11, notes = NULLIF($12, ''), terms = NULLIF($13, ''), updated_at = NOW()
		WHERE id = $1`,
		quote.ID, quote.CustomerName, quote.CustomerEmail, quote.CustomerAddress,
		quote.QuoteDate, quote.ValidUntil, quote.Subtotal, quote.TaxRate, quote.TaxAmount,
		quote.DiscountAmount, quote.Total, quote.Notes, quote.Terms,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrQuoteNotFound
	}
	return nil
}

// UpdateStatus moves a quote to the given status, recording the rejection
// reason or the invoice link where applicable.
func (r *Repository) UpdateStatus(ctx context.Context, id int64, status Status, reason string, invoiceID *int64) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE quotes SET status = $2, rejected_reason = NULLIF($3, ''), invoice_id = COALESCE($4, invoice_id), updated_at = NOW()
		WHERE id = $1`,
		id, status, reason, invoiceID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrQuoteNotFound
	}
	return nil
}

// ExpireDue marks every non-terminal quote past its validity window as
// expired and reports how many rows changed.
func (r *Repository) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.q.Exec(ctx, `
		UPDATE quotes SET status = $1, updated_at = NOW()
		WHERE status IN ($2, $3, $4) AND valid_until < $5`,
		StatusExpired, StatusDraft, StatusSent, StatusAccepted, now,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// GenerateNumber produces the next sequential quote number for the month,
// e.g. QT-2026-09-0042.
func (r *Repository) GenerateNumber(ctx context.Context, date time.Time) (string, error) {
	prefix := fmt.Sprintf("QT-%s-", date.Format("2006-01"))
	var seq int
	err := r.q.QueryRow(ctx, `
		SELECT COALESCE(MAX(CAST(SUBSTRING(number FROM $1) AS INTEGER)), 0) + 1
		FROM quotes WHERE number LIKE $2`,
		len(prefix)+1, prefix+"%",
	).Scan(&seq)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%04d", prefix, seq), nil
}

func scanQuote(row pgx.Row) (*Quote, error) {
	var quote Quote
	var email, address, notes, terms, rejectedReason *string
	err := row.Scan(
		&quote.ID, &quote.Number, &quote.CustomerName, &email, &address,
		&quote.QuoteDate, &quote.ValidUntil, &quote.Subtotal, &quote.TaxRate,
		&quote.TaxAmount, &quote.DiscountAmount, &quote.Total, &quote.Status,
		&notes, &terms, &quote.CreatedBy, &quote.InvoiceID, &rejectedReason,
		&quote.CreatedAt, &quote.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrQuoteNotFound
		}
		return nil, err
	}
	quote.CustomerEmail = deref(email)
	quote.CustomerAddress = deref(address)
	quote.Notes = deref(notes)
	quote.Terms = deref(terms)
	quote.RejectedReason = deref(rejectedReason)
	return &quote, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
