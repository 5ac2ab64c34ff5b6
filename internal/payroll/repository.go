package payroll

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists payroll data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateEmployee inserts an employee row and returns the new id.
func (r *Repository) CreateEmployee(ctx context.Context, employee Employee) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO employees (name, position, base_salary, active)
		VALUES ($1, NULLIF($2, ''), $3, $4)
		RETURNING id`,
		employee.Name, employee.Position, employee.BaseSalary, employee.Active,
	).Scan(&id)
	return id, err
}

// UpdateEmployee rewrites an employee row.
func (r *Repository) UpdateEmployee(ctx context.Context, employee Employee) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE employees SET name = $2, position = NULLIF($3, ''), base_salary = $4, active = $5, updated_at = NOW()
		WHERE id = $1`,
		employee.ID, employee.Name, employee.Position, employee.BaseSalary, employee.Active,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrEmployeeNotFound
	}
	return nil
}

// GetEmployee fetches a single employee by id.
func (r *Repository) GetEmployee(ctx context.Context, id int64) (Employee, error) {
	var e Employee
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, COALESCE(position, ''), base_salary, active, created_at, updated_at
		FROM employees WHERE id = $1`, id,
	).Scan(&e.ID, &e.Name, &e.Position, &e.BaseSalary, &e.Active, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Employee{}, ErrEmployeeNotFound
	}
	return e, err
}

// ListEmployees returns employees ordered by name.
func (r *Repository) ListEmployees(ctx context.Context, activeOnly bool) ([]Employee, error) {
	query := `SELECT id, name, COALESCE(position, ''), base_salary, active, created_at, updated_at FROM employees`
	if activeOnly {
		query += ` WHERE active`
	}
	query += ` ORDER BY name ASC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	employees := []Employee{}
	for rows.Next() {
		var e Employee
		if err := rows.Scan(&e.ID, &e.Name, &e.Position, &e.BaseSalary, &e.Active, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		employees = append(employees, e)
	}
	return employees, rows.Err()
}

// CreateRun inserts a payroll run. The unique (employee_id, period) index
// turns duplicates into ErrDuplicateRun.
func (r *Repository) CreateRun(ctx context.Context, run PayrollRun) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `
		INSERT INTO payroll_runs (employee_id, period, base_salary, allowances, deductions, gross, net, notes, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9)
		RETURNING id`,
		run.EmployeeID, run.Period, run.BaseSalary, run.Allowances, run.Deductions, run.Gross, run.Net, run.Notes, run.CreatedBy,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, ErrDuplicateRun
		}
		return 0, err
	}
	return id, nil
}

const runColumns = `id, employee_id, period, base_salary, allowances, deductions, gross, net, COALESCE(notes, ''), created_by, created_at`

// GetRun fetches a single run by id.
func (r *Repository) GetRun(ctx context.Context, id int64) (PayrollRun, error) {
	var run PayrollRun
	err := r.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM payroll_runs WHERE id = $1`, id).
		Scan(&run.ID, &run.EmployeeID, &run.Period, &run.BaseSalary, &run.Allowances, &run.Deductions,
			&run.Gross, &run.Net, &run.Notes, &run.CreatedBy, &run.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return PayrollRun{}, ErrRunNotFound
	}
	return run, err
}

// ListRuns returns runs newest period first, optionally filtered.
func (r *Repository) ListRuns(ctx context.Context, period string, employeeID int64) ([]PayrollRun, error) {
	query := `SELECT ` + runColumns + ` FROM payroll_runs WHERE 1=1`
	args := []any{}
	argCount := 0

	if period != "" {
		argCount++
		query += ` AND period = $` + strconv.Itoa(argCount)
		args = append(args, period)
	}
	if employeeID > 0 {
		argCount++
		query += ` AND employee_id = $` + strconv.Itoa(argCount)
		args = append(args, employeeID)
	}
	query += ` ORDER BY period DESC, employee_id ASC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []PayrollRun{}
	for rows.Next() {
		var run PayrollRun
		if err := rows.Scan(&run.ID, &run.EmployeeID, &run.Period, &run.BaseSalary, &run.Allowances,
			&run.Deductions, &run.Gross, &run.Net, &run.Notes, &run.CreatedBy, &run.CreatedAt); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
