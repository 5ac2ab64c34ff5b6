package payroll

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ledgerhouse/ledgerhouse/internal/shared"
)

// RepositoryPort defines data access methods for payroll.
type RepositoryPort interface {
	CreateEmployee(ctx context.Context, employee Employee) (int64, error)
	UpdateEmployee(ctx context.Context, employee Employee) error
	GetEmployee(ctx context.Context, id int64) (Employee, error)
	ListEmployees(ctx context.Context, activeOnly bool) ([]Employee, error)
	CreateRun(ctx context.Context, run PayrollRun) (int64, error)
	GetRun(ctx context.Context, id int64) (PayrollRun, error)
	ListRuns(ctx context.Context, period string, employeeID int64) ([]PayrollRun, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service handles payroll business logic.
type Service struct {
	repo   RepositoryPort
	audit  AuditPort
	logger *slog.Logger
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger}
}

// RegisterEmployee validates and stores a new employee.
func (s *Service) RegisterEmployee(ctx context.Context, input EmployeeInput) (Employee, error) {
	if err := validateEmployee(input); err != nil {
		return Employee{}, err
	}
	employee := Employee{
		Name:       input.Name,
		Position:   input.Position,
		BaseSalary: input.BaseSalary,
		Active:     true,
	}
	id, err := s.repo.CreateEmployee(ctx, employee)
	if err != nil {
		return Employee{}, fmt.Errorf("create employee: %w", err)
	}
	return s.repo.GetEmployee(ctx, id)
}

// UpdateEmployee rewrites an employee's fields.
func (s *Service) UpdateEmployee(ctx context.Context, id int64, input EmployeeInput) (Employee, error) {
	if err := validateEmployee(input); err != nil {
		return Employee{}, err
	}
	existing, err := s.repo.GetEmployee(ctx, id)
	if err != nil {
		return Employee{}, err
	}
	existing.Name = input.Name
	existing.Position = input.Position
	existing.BaseSalary = input.BaseSalary
	existing.Active = input.Active
	if err := s.repo.UpdateEmployee(ctx, existing); err != nil {
		return Employee{}, fmt.Errorf("update employee: %w", err)
	}
	return s.repo.GetEmployee(ctx, id)
}

// GetEmployee returns one employee.
func (s *Service) GetEmployee(ctx context.Context, id int64) (Employee, error) {
	return s.repo.GetEmployee(ctx, id)
}

// ListEmployees returns employees, optionally active only.
func (s *Service) ListEmployees(ctx context.Context, activeOnly bool) ([]Employee, error) {
	return s.repo.ListEmployees(ctx, activeOnly)
}

// RecordRun stores one employee's pay for a period. The base salary is
// snapshotted from the employee record at recording time.
func (s *Service) RecordRun(ctx context.Context, input RunInput) (PayrollRun, error) {
	if !ValidPeriod(input.Period) {
		return PayrollRun{}, fmt.Errorf("%w: period must be YYYY-MM", ErrInvalidInput)
	}
	if input.Allowances < 0 || input.Deductions < 0 {
		return PayrollRun{}, fmt.Errorf("%w: allowances and deductions must not be negative", ErrInvalidInput)
	}

	employee, err := s.repo.GetEmployee(ctx, input.EmployeeID)
	if err != nil {
		return PayrollRun{}, err
	}
	if !employee.Active {
		return PayrollRun{}, ErrEmployeeInactive
	}

	gross, net := Compute(employee.BaseSalary, input.Allowances, input.Deductions)
	if net < 0 {
		return PayrollRun{}, fmt.Errorf("%w: deductions exceed gross pay", ErrInvalidInput)
	}

	run := PayrollRun{
		EmployeeID: employee.ID,
		Period:     input.Period,
		BaseSalary: employee.BaseSalary,
		Allowances: input.Allowances,
		Deductions: input.Deductions,
		Gross:      gross,
		Net:        net,
		Notes:      input.Notes,
		CreatedBy:  input.ActorID,
	}
	id, err := s.repo.CreateRun(ctx, run)
	if err != nil {
		return PayrollRun{}, err
	}

	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  input.ActorID,
			Action:   "payroll:run",
			Entity:   "payroll_run",
			EntityID: fmt.Sprintf("%d", id),
			Meta:     map[string]any{"employee_id": employee.ID, "period": input.Period, "net": net},
		})
	}
	return s.repo.GetRun(ctx, id)
}

// ListRuns returns runs filtered by period and/or employee.
func (s *Service) ListRuns(ctx context.Context, period string, employeeID int64) ([]PayrollRun, error) {
	if period != "" && !ValidPeriod(period) {
		return nil, fmt.Errorf("%w: period must be YYYY-MM", ErrInvalidInput)
	}
	return s.repo.ListRuns(ctx, period, employeeID)
}

func validateEmployee(input EmployeeInput) error {
	if strings.TrimSpace(input.Name) == "" {
		return fmt.Errorf("%w: employee name is required", ErrInvalidInput)
	}
	if input.BaseSalary < 0 {
		return fmt.Errorf("%w: base salary must not be negative", ErrInvalidInput)
	}
	return nil
}
