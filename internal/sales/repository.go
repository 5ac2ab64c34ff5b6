package sales

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists sales in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const saleColumns = `id, number, sale_date, customer_name, total, notes, item_id, quantity, created_by, created_at`

// Create inserts a sale row and returns the new id.
func (r *Repository) Create(ctx context.Context, sale Sale) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO sales (number, sale_date, customer_name, total, notes, item_id, quantity, created_by)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8)
		RETURNING id`,
		sale.Number, sale.SaleDate, sale.CustomerName, sale.Total, sale.Notes, sale.ItemID, sale.Quantity, sale.CreatedBy,
	).Scan(&id)
	return id, err
}

// Delete removes a sale row. Used to roll back a sale whose stock draw-down
// failed.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM sales WHERE id = $1`, id)
	return err
}

// Get fetches a single sale by id.
func (r *Repository) Get(ctx context.Context, id int64) (*Sale, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = $1`, id)
	return scanSale(row)
}

// List returns a page of sales plus the matching total.
func (r *Repository) List(ctx context.Context, req ListRequest) ([]Sale, int, error) {
	query := `SELECT ` + saleColumns + ` FROM sales WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM sales WHERE 1=1`
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
		addCond(` AND sale_date >= $`, req.From)
	}
	if !req.To.IsZero() {
		addCond(` AND sale_date <= $`, req.To)
	}
	if req.Search != "" {
		argCount++
		c := ` AND (customer_name ILIKE $` + strconv.Itoa(argCount) + ` OR number ILIKE $` + strconv.Itoa(argCount) + `)`
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
	query += ` ORDER BY sale_date DESC, id DESC LIMIT $` + strconv.Itoa(argCount)
	args = append(args, perPage)
	argCount++
	query += ` OFFSET $` + strconv.Itoa(argCount)
	args = append(args, (page-1)*perPage)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	sales := []Sale{}
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, 0, err
		}
		sales = append(sales, *sale)
	}
	return sales, total, rows.Err()
}

// GenerateNumber produces the next sequential sale number for the month.
func (r *Repository) GenerateNumber(ctx context.Context, date time.Time) (string, error) {
	prefix := fmt.Sprintf("SL-%s-", date.Format("2006-01"))
	var seq int
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(MAX(CAST(SUBSTRING(number FROM $1) AS INTEGER)), 0) + 1
		FROM sales WHERE number LIKE $2`,
		len(prefix)+1, prefix+"%",
	).Scan(&seq)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%04d", prefix, seq), nil
}

func scanSale(row pgx.Row) (*Sale, error) {
	var sale Sale
	var notes *string
	err := row.Scan(&sale.ID, &sale.Number, &sale.SaleDate, &sale.CustomerName, &sale.Total,
		&notes, &sale.ItemID, &sale.Quantity, &sale.CreatedBy, &sale.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSaleNotFound
		}
		return nil, err
	}
	if notes != nil {
		sale.Notes = *notes
	}
	return &sale, nil
}
