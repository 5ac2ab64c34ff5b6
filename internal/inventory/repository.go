package inventory

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerhouse/ledgerhouse/internal/platform/db"
)

// Repository persists inventory data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const itemColumns = `id, name, unit, purchase_price, sale_price, initial_stock, current_stock, reorder_point, created_at, updated_at`

// WithTx executes the callback inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

// GetItem fetches a single item by id.
func (r *Repository) GetItem(ctx context.Context, id int64) (Item, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM inventory_items WHERE id = $1`, id)
	return scanItem(row)
}

// ListItems returns a page of items plus the matching total.
func (r *Repository) ListItems(ctx context.Context, filter ListFilter) ([]Item, int, error) {
	query := `SELECT ` + itemColumns + ` FROM inventory_items WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM inventory_items WHERE 1=1`
	args := []interface{}{}
	countArgs := []interface{}{}
	argCount := 0

	if filter.Search != "" {
		argCount++
		query += ` AND name ILIKE $` + strconv.Itoa(argCount)
		countQuery += ` AND name ILIKE $1`
		args = append(args, "%"+filter.Search+"%")
		countArgs = append(countArgs, "%"+filter.Search+"%")
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += ` ORDER BY name ASC`
	perPage := filter.PerPage
	if perPage <= 0 {
		perPage = 50
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	argCount++
	query += ` LIMIT $` + strconv.Itoa(argCount)
	args = append(args, perPage)
	argCount++
	query += ` OFFSET $` + strconv.Itoa(argCount)
	args = append(args, (page-1)*perPage)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, item)
	}
	return items, total, rows.Err()
}

// CreateItem registers a new item; current stock starts at the initial baseline.
func (r *Repository) CreateItem(ctx context.Context, input ItemInput) (Item, error) {
	const query = `
		INSERT INTO inventory_items (name, unit, purchase_price, sale_price, initial_stock, current_stock, reorder_point, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5, $6, NOW(), NOW())
		RETURNING ` + itemColumns
	row := r.pool.QueryRow(ctx, query, input.Name, input.Unit, input.PurchasePrice, input.SalePrice, input.InitialStock, input.ReorderPoint)
	return scanItem(row)
}

// UpdateItem changes descriptive and pricing fields, never stock.
func (r *Repository) UpdateItem(ctx context.Context, id int64, input ItemInput) (Item, error) {
	const query = `
		UPDATE inventory_items
		SET name = $2, unit = $3, purchase_price = $4, sale_price = $5, reorder_point = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + itemColumns
	row := r.pool.QueryRow(ctx, query, id, input.Name, input.Unit, input.PurchasePrice, input.SalePrice, input.ReorderPoint)
	return scanItem(row)
}

// ListMovements returns all ledger entries for an item, newest first.
func (r *Repository) ListMovements(ctx context.Context, itemID int64) ([]Movement, error) {
	const query = `
		SELECT id, item_id, movement_type, quantity, previous_stock, new_stock, reason, COALESCE(reference, ''), clamped, actor_id, created_at
		FROM stock_movements
		WHERE item_id = $1
		ORDER BY created_at DESC, id DESC`
	rows, err := r.pool.Query(ctx, query, itemID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var movements []Movement
	for rows.Next() {
		var m Movement
		var typ string
		if err := rows.Scan(&m.ID, &m.ItemID, &typ, &m.Quantity, &m.PreviousStock, &m.NewStock, &m.Reason, &m.Reference, &m.Clamped, &m.ActorID, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.Type = MovementType(typ)
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

// ListBelowReorder returns items whose stock is at or below the reorder point.
func (r *Repository) ListBelowReorder(ctx context.Context) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+itemColumns+` FROM inventory_items WHERE current_stock <= reorder_point ORDER BY current_stock ASC, name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

type txRepo struct {
	tx pgx.Tx
}

// GetItemForUpdate locks and returns the item row.
func (r *txRepo) GetItemForUpdate(ctx context.Context, id int64) (Item, error) {
	row := r.tx.QueryRow(ctx, `SELECT `+itemColumns+` FROM inventory_items WHERE id = $1 FOR UPDATE`, id)
	return scanItem(row)
}

// UpdateItemStock writes the new stock value inside the transaction.
func (r *txRepo) UpdateItemStock(ctx context.Context, id int64, newStock float64) error {
	tag, err := r.tx.Exec(ctx, `UPDATE inventory_items SET current_stock = $2, updated_at = $3 WHERE id = $1`, id, newStock, time.Now().UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

// InsertMovement appends one ledger entry.
func (r *txRepo) InsertMovement(ctx context.Context, m Movement) (int64, error) {
	const query = `
		INSERT INTO stock_movements (item_id, movement_type, quantity, previous_stock, new_stock, reason, reference, clamped, actor_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9, $10)
		RETURNING id`
	var id int64
	err := r.tx.QueryRow(ctx, query, m.ItemID, string(m.Type), m.Quantity, m.PreviousStock, m.NewStock, m.Reason, m.Reference, m.Clamped, m.ActorID, m.CreatedAt).Scan(&id)
	return id, err
}

func scanItem(row pgx.Row) (Item, error) {
	var item Item
	err := row.Scan(&item.ID, &item.Name, &item.Unit, &item.PurchasePrice, &item.SalePrice, &item.InitialStock, &item.CurrentStock, &item.ReorderPoint, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, ErrItemNotFound
		}
		return Item{}, err
	}
	return item, nil
}
