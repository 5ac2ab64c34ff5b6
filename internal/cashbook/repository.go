package cashbook

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists cashbook entries in PostgreSQL, expenses and incomes
// in their own tables.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func tableFor(kind Kind) string {
	if kind == KindIncome {
		return "incomes"
	}
	return "expenses"
}

// Create inserts an entry row and returns the new id.
func (r *Repository) Create(ctx context.Context, entry Entry) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO `+tableFor(entry.Kind)+` (entry_date, category, description, amount, created_by)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5)
		RETURNING id`,
		entry.EntryDate, entry.Category, entry.Description, entry.Amount, entry.CreatedBy,
	).Scan(&id)
	return id, err
}

// Get fetches a single entry by id.
func (r *Repository) Get(ctx context.Context, kind Kind, id int64) (*Entry, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, entry_date, category, COALESCE(description, ''), amount, created_by, created_at
		FROM `+tableFor(kind)+` WHERE id = $1`, id)
	return scanEntry(row, kind)
}

// List returns a page of entries plus the matching total.
func (r *Repository) List(ctx context.Context, kind Kind, req ListRequest) ([]Entry, int, error) {
	table := tableFor(kind)
	query := `SELECT id, entry_date, category, COALESCE(description, ''), amount, created_by, created_at FROM ` + table + ` WHERE 1=1`
	countQuery := `SELECT COUNT(*) FROM ` + table + ` WHERE 1=1`
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
		addCond(` AND entry_date >= $`, req.From)
	}
	if !req.To.IsZero() {
		addCond(` AND entry_date <= $`, req.To)
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
	query += ` ORDER BY entry_date DESC, id DESC LIMIT $` + strconv.Itoa(argCount)
	args = append(args, perPage)
	argCount++
	query += ` OFFSET $` + strconv.Itoa(argCount)
	args = append(args, (page-1)*perPage)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		entry, err := scanEntry(rows, kind)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, *entry)
	}
	return entries, total, rows.Err()
}

func scanEntry(row pgx.Row, kind Kind) (*Entry, error) {
	var entry Entry
	err := row.Scan(&entry.ID, &entry.EntryDate, &entry.Category, &entry.Description, &entry.Amount, &entry.CreatedBy, &entry.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, err
	}
	entry.Kind = kind
	return &entry, nil
}
