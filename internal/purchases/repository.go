package purchases

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists purchases in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const purchaseColumns = `id, number, purchase_date, supplier_id, supplier_name, total_amount, notes, item_id, quantity, created_by, created_at`

// Create inserts a purchase row and returns the new id.
func (r *Repository) Create(ctx context.Context, purchase Purchase) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO purchases (number, purchase_date, supplier_id, supplier_name, total_amount, notes, item_id, quantity, created_by)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9)
		RETURNING id`,
		purchase.Number, purchase.PurchaseDate, purchase.SupplierID, purchase.SupplierName,
		purchase.TotalAmount, purchase.Notes, purchase.ItemID, purchase.Quantity, purchase.CreatedBy,
	).Scan(&id)
	return id, err
}

// Delete removes a purchase row. Used to roll back a purchase whose stock
// write failed.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM purchases WHERE id = $1`, id)
	return err
}

// Get fetches a single purchase by id.
func (r *Repository) Get(ctx context.Context, id int64) (*Purchase, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+purchaseColumns+` FROM purchases WHERE id = $1`, id)
	return scanPurchase(row)
}

// List returns a page of purchases plus the matching total.
func (r *Repository) List(ctx context.Context, req ListRequest) ([]Purchase, int, error) {
	query := `SELECT ` + purchaseColumns + ` FROM purchases WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM purchases WHERE 1=1`
	args := []any{}
	countArgs := []any{}
	argCount := 0

	addCond := func(cond string, value any) {
		argCount++
		c := cond + strconv.Itoa(argCount)
		query += c
		countQuery += c
		args = append(args, value)
		countArgs = append(countArgs, value)
	}
	if !req.From.IsZero() {
		addCond(` AND purchase_date >= $`, req.From)
	}
	if !req.To.IsZero() {
		addCond(` AND purchase_date <= $`, req.To)
	}
	if req.Search != "" {
		argCount++
		c := ` AND (supplier_name ILIKE $` + strconv.Itoa(argCount) + ` OR number ILIKE $` + strconv.Itoa(argCount) + `)`
		query += c
		countQuery += c
		args = append(args, "%"+req.Search+"%")
		countArgs = append(countArgs, "%"+req.Search+"%")
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
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
	query += ` ORDER BY purchase_date DESC, id DESC LIMIT $` + strconv.Itoa(argCount)
	args = append(args, perPage)
	argCount++
	query += ` OFFSET $` + strconv.Itoa(argCount)
	args = append(args, (page-1)*perPage)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	purchases := []Purchase{}
	for rows.Next() {
		purchase, err := scanPurchase(rows)
		if err != nil {
			return nil, 0, err
		}
		purchases = append(purchases, *purchase)
	}
	return purchases, total, rows.Err()
}

// GenerateNumber produces the next sequential purchase number for the month.
func (r *Repository) GenerateNumber(ctx context.Context, date time.Time) (string, error) {
	prefix := fmt.Sprintf("PO-%s-", date.Format("2006-01"))
	var seq int
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(MAX(CAST(SUBSTRING(number FROM $1) AS INTEGER)), 0) + 1
		FROM purchases WHERE number LIKE $2`,
		len(prefix)+1, prefix+"%",
	).Scan(&seq)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%04d", prefix, seq), nil
}

func scanPurchase(row pgx.Row) (*Purchase, error) {
	var purchase Purchase
	var notes *string
	err := row.Scan(&purchase.ID, &purchase.Number, &purchase.PurchaseDate, &purchase.SupplierID,
		&purchase.SupplierName, &purchase.TotalAmount, &notes, &purchase.ItemID, &purchase.Quantity,
		&purchase.CreatedBy, &purchase.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPurchaseNotFound
		}
		return nil, err
	}
	if notes != nil {
		purchase.Notes = *notes
	}
	return &purchase, nil
}
