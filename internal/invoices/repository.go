package invoices

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

// Repository persists invoices in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
	q    querier
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool, q: pool}
}

const invoiceColumns = `id, number, customer_name, customer_email, customer_address, issue_date, due_date,
	subtotal, tax_rate, tax_amount, discount_amount, total, paid_amount, status, notes,
	quote_id, created_by, created_at, updated_at`

// WithTx runs fn against a transactional view of the repository.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, RepositoryPort) error) error {
	if r.pool == nil {
		return fn(ctx, r)
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &Repository{q: tx})
	})
}

// Create inserts the invoice header and returns the new id.
func (r *Repository) Create(ctx context.Context, invoice Invoice) (int64, error) {
	var id int64
	err := r.q.QueryRow(ctx, `
		INSERT INTO invoices (number, customer_name, customer_email, customer_address, issue_date, due_date,
			subtotal, tax_rate, tax_amount, discount_amount, total, paid_amount, status, notes, quote_id, created_by)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6, $7, $8, $9, $10, $11, $12, $13, NULLIF($14, ''), $15, $16)
		RETURNING id`,
		invoice.Number, invoice.CustomerName, invoice.CustomerEmail, invoice.CustomerAddress,
		invoice.IssueDate, invoice.DueDate, invoice.Subtotal, invoice.TaxRate, invoice.TaxAmount,
		invoice.DiscountAmount, invoice.Total, invoice.PaidAmount, invoice.Status, invoice.Notes,
		invoice.QuoteID, invoice.CreatedBy,
	).Scan(&id)
	return id, err
}

// InsertItem inserts a single invoice line.
func (r *Repository) InsertItem(ctx context.Context, item InvoiceItem) (int64, error) {
	var id int64
	err := r.q.QueryRow(ctx, `
		INSERT INTO invoice_items (invoice_id, product_id, description, quantity, unit_price, subtotal)
		VALUES ($1, NULLIF($2, 0), $3, $4, $5, $6)
		RETURNING id`,
		item.InvoiceID, item.ProductID, item.Description, item.Quantity, item.UnitPrice, item.Subtotal,
	).Scan(&id)
	return id, err
}

// Get loads one invoice with its lines.
func (r *Repository) Get(ctx context.Context, id int64) (*Invoice, error) {
	row := r.q.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id)
	invoice, err := scanInvoice(row)
	if err != nil {
		return nil, err
	}
	if err := r.loadItems(ctx, invoice); err != nil {
		return nil, err
	}
	return invoice, nil
}

// GetForUpdate loads the invoice header with a row lock, serializing
// concurrent payment recording.
func (r *Repository) GetForUpdate(ctx context.Context, id int64) (*Invoice, error) {
	row := r.q.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1 FOR UPDATE`, id)
	return scanInvoice(row)
}

// List returns a page of invoices plus the matching total. Lines are not
// loaded for listings.
func (r *Repository) List(ctx context.Context, req ListRequest) ([]Invoice, int, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM invoices WHERE 1=1`
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
	query += ` ORDER BY issue_date DESC, id DESC LIMIT $` + strconv.Itoa(argCount)
	args = append(args, perPage)
	argCount++
	query += ` OFFSET $` + strconv.Itoa(argCount)
	args = append(args, (page-1)*perPage)

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	invoices := []Invoice{}
	for rows.Next() {
		invoice, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, err
		}
		invoices = append(invoices, *invoice)
	}
	return invoices, total, rows.Err()
}

// InsertPayment records a payment row.
func (r *Repository) InsertPayment(ctx context.Context, payment Payment) (int64, error) {
	var id int64
	err := r.q.QueryRow(ctx, `
		INSERT INTO invoice_payments (invoice_id, amount, method, reference, paid_at, actor_id)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, NULLIF($6, 0))
		RETURNING id`,
		payment.InvoiceID, payment.Amount, payment.Method, payment.Reference, payment.PaidAt, payment.ActorID,
	).Scan(&id)
	return id, err
}

// ListPayments returns an invoice's payments, newest first.
func (r *Repository) ListPayments(ctx context.Context, invoiceID int64) ([]Payment, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, invoice_id, amount, method, COALESCE(reference, ''), paid_at, COALESCE(actor_id, 0), created_at
		FROM invoice_payments WHERE invoice_id = $1 ORDER BY paid_at DESC, id DESC`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := []Payment{}
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.InvoiceID, &p.Amount, &p.Method, &p.Reference, &p.PaidAt, &p.ActorID, &p.CreatedAt); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// SetPaidAmount updates the running paid total and derived status.
func (r *Repository) SetPaidAmount(ctx context.Context, id int64, paid float64, status Status) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE invoices SET paid_amount = $2, status = $3, updated_at = NOW() WHERE id = $1`,
		id, paid, status,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvoiceNotFound
	}
	return nil
}

// SetStatus moves an invoice to the given status.
func (r *Repository) SetStatus(ctx context.Context, id int64, status Status) error {
	tag, err := r.q.Exec(ctx, `UPDATE invoices SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrInvoiceNotFound
	}
	return nil
}

// OutstandingAsOf returns every invoice carrying an unpaid balance, with
// its due date, for receivable aging.
func (r *Repository) OutstandingAsOf(ctx context.Context, now time.Time) ([]Invoice, error) {
	rows, err := r.q.Query(ctx, `
		SELECT `+invoiceColumns+` FROM invoices
		WHERE status NOT IN ($1, $2) AND total - paid_amount > 0 AND issue_date <= $3
		ORDER BY due_date ASC`,
		StatusPaid, StatusVoid, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	invoices := []Invoice{}
	for rows.Next() {
		invoice, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, *invoice)
	}
	return invoices, rows.Err()
}

// GenerateNumber produces the next sequential invoice number for the
// month, e.g. INV-2026-09-0042.
func (r *Repository) GenerateNumber(ctx context.Context, date time.Time) (string, error) {
	prefix := fmt.Sprintf("INV-%s-", date.Format("2006-01"))
	var seq int
	err := r.q.QueryRow(ctx, `
		SELECT COALESCE(MAX(CAST(SUBSTRING(number FROM $1) AS INTEGER)), 0) + 1
		FROM invoices WHERE number LIKE $2`,
		len(prefix)+1, prefix+"%",
	).Scan(&seq)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%04d", prefix, seq), nil
}

func (r *Repository) loadItems(ctx context.Context, invoice *Invoice) error {
	rows, err := r.q.Query(ctx, `
		SELECT id, invoice_id, COALESCE(product_id, 0), description, quantity, unit_price, subtotal
		FROM invoice_items WHERE invoice_id = $1 ORDER BY id`, invoice.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var item InvoiceItem
		if err := rows.Scan(&item.ID, &item.InvoiceID, &item.ProductID, &item.Description, &item.Quantity, &item.UnitPrice, &item.Subtotal); err != nil {
			return err
		}
		invoice.Items = append(invoice.Items, item)
	}
	return rows.Err()
}

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var invoice Invoice
	var email, address, notes *string
	err := row.Scan(
		&invoice.ID, &invoice.Number, &invoice.CustomerName, &email, &address,
		&invoice.IssueDate, &invoice.DueDate, &invoice.Subtotal, &invoice.TaxRate,
		&invoice.TaxAmount, &invoice.DiscountAmount, &invoice.Total, &invoice.PaidAmount,
		&invoice.Status, &notes, &invoice.QuoteID, &invoice.CreatedBy,
		&invoice.CreatedAt, &invoice.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvoiceNotFound
		}
		return nil, err
	}
	invoice.CustomerEmail = derefString(email)
	invoice.CustomerAddress = derefString(address)
	invoice.Notes = derefString(notes)
	return &invoice, nil
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
