package payroll

import (
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

type memoryPayrollRepo struct {
	employees map[int64]Employee
	runs      map[int64]PayrollRun
	runKeys   map[string]bool
	nextID    int64
}

func newMemoryPayrollRepo() *memoryPayrollRepo {
	return &memoryPayrollRepo{
		employees: map[int64]Employee{},
		runs:      map[int64]PayrollRun{},
		runKeys:   map[string]bool{},
		nextID:    1,
	}
}

func (m *memoryPayrollRepo) CreateEmployee(_ context.Context, employee Employee) (int64, error) {
	employee.ID = m.nextID
	m.nextID++
	m.employees[employee.ID] = employee
	return employee.ID, nil
}

func (m *memoryPayrollRepo) UpdateEmployee(_ context.Context, employee Employee) error {
	if _, ok := m.employees[employee.ID]; !ok {
		return ErrEmployeeNotFound
	}
	m.employees[employee.ID] = employee
	return nil
}

func (m *memoryPayrollRepo) GetEmployee(_ context.Context, id int64) (Employee, error) {
	employee, ok := m.employees[id]
	if !ok {
		return Employee{}, ErrEmployeeNotFound
	}
	return employee, nil
}

func (m *memoryPayrollRepo) ListEmployees(_ context.Context, activeOnly bool) ([]Employee, error) {
	out := []Employee{}
	for _, e := range m.employees {
		if activeOnly && !e.Active {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (m *memoryPayrollRepo) CreateRun(_ context.Context, run PayrollRun) (int64, error) {
	key := fmt.Sprintf("%s/%d", run.Period, run.EmployeeID)
	if m.runKeys[key] {
		return 0, ErrDuplicateRun
	}
	m.runKeys[key] = true
	run.ID = m.nextID
	m.nextID++
	m.runs[run.ID] = run
	return run.ID, nil
}

func (m *memoryPayrollRepo) GetRun(_ context.Context, id int64) (PayrollRun, error) {
	run, ok := m.runs[id]
	if !ok {
		return PayrollRun{}, ErrRunNotFound
	}
	return run, nil
}

func (m *memoryPayrollRepo) ListRuns(_ context.Context, period string, employeeID int64) ([]PayrollRun, error) {
	out := []PayrollRun{}
	for _, run := range m.runs {
		if period != "" && run.Period != period {
			continue
		}
		if employeeID > 0 && run.EmployeeID != employeeID {
			continue
		}
		out = append(out, run)
	}
	return out, nil
}

func TestRecordRunComputesPay(t *testing.T) {
	repo := newMemoryPayrollRepo()
	svc := NewService(repo, nil, slog.Default())

	employee, err := svc.RegisterEmployee(context.Background(), EmployeeInput{Name: "Dana", Position: "Clerk", BaseSalary: 3000})
	require.NoError(t, err)

	run, err := svc.RecordRun(context.Background(), RunInput{
		EmployeeID: employee.ID,
		Period:     "2026-08",
		Allowances: 500,
		Deductions: 350,
		ActorID:    1,
	})
	require.NoError(t, err)
	require.InDelta(t, 3500.0, run.Gross, 0.001)
	require.InDelta(t, 3150.0, run.Net, 0.001)
	require.InDelta(t, 3000.0, run.BaseSalary, 0.001)
}

func TestRecordRunDuplicatePeriodConflicts(t *testing.T) {
	repo := newMemoryPayrollRepo()
	svc := NewService(repo, nil, slog.Default())

	employee, err := svc.RegisterEmployee(context.Background(), EmployeeInput{Name: "Dana", BaseSalary: 3000})
	require.NoError(t, err)

	input := RunInput{EmployeeID: employee.ID, Period: "2026-08"}
	_, err = svc.RecordRun(context.Background(), input)
	require.NoError(t, err)

	_, err = svc.RecordRun(context.Background(), input)
	require.ErrorIs(t, err, ErrDuplicateRun)
}

func TestRecordRunGuards(t *testing.T) {
	repo := newMemoryPayrollRepo()
	svc := NewService(repo, nil, slog.Default())

	employee, err := svc.RegisterEmployee(context.Background(), EmployeeInput{Name: "Dana", BaseSalary: 1000})
	require.NoError(t, err)

	_, err = svc.RecordRun(context.Background(), RunInput{EmployeeID: employee.ID, Period: "08-2026"})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.RecordRun(context.Background(), RunInput{EmployeeID: employee.ID, Period: "2026-08", Deductions: 5000})
	require.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.RecordRun(context.Background(), RunInput{EmployeeID: 99, Period: "2026-08"})
	require.ErrorIs(t, err, ErrEmployeeNotFound)

	_, err = svc.UpdateEmployee(context.Background(), employee.ID, EmployeeInput{Name: "Dana", BaseSalary: 1000, Active: false})
	require.NoError(t, err)
	_, err = svc.RecordRun(context.Background(), RunInput{EmployeeID: employee.ID, Period: "2026-09"})
	require.ErrorIs(t, err, ErrEmployeeInactive)
}

func TestValidPeriod(t *testing.T) {
	require.True(t, ValidPeriod("2026-01"))
	require.True(t, ValidPeriod("2026-12"))
	require.False(t, ValidPeriod("2026-13"))
	require.False(t, ValidPeriod("2026-00"))
	require.False(t, ValidPeriod("26-01"))
	require.False(t, ValidPeriod("2026/01"))
}
