package payroll

import (
	"errors"
	"regexp"
	"time"
)

// Employee is a payroll subject. Inactive employees keep their history but
// are excluded from new runs.
type Employee struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Position   string    `json:"position"`
	BaseSalary float64   `json:"base_salary"`
	Active     bool      `json:"active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// PayrollRun is one employee's pay for one period. Period is "YYYY-MM";
// one run per employee per period.
type PayrollRun struct {
	ID         int64     `json:"id"`
	EmployeeID int64     `json:"employee_id"`
	Period     string    `json:"period"`
	BaseSalary float64   `json:"base_salary"`
	Allowances float64   `json:"allowances"`
	Deductions float64   `json:"deductions"`
	Gross      float64   `json:"gross"`
	Net        float64   `json:"net"`
	Notes      string    `json:"notes,omitempty"`
	CreatedBy  int64     `json:"created_by"`
	CreatedAt  time.Time `json:"created_at"`
}

// EmployeeInput carries employee creation and update fields.
type EmployeeInput struct {
	Name       string
	Position   string
	BaseSalary float64
	Active     bool
}

// RunInput carries a payroll run to record. The base salary is read from
// the employee record, not the request.
type RunInput struct {
	EmployeeID int64
	Period     string
	Allowances float64
	Deductions float64
	Notes      string
	ActorID    int64
}

var periodPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// ValidPeriod reports whether p is a YYYY-MM period string.
func ValidPeriod(p string) bool {
	return periodPattern.MatchString(p)
}

// Compute derives the gross and net amounts for a run.
func Compute(baseSalary, allowances, deductions float64) (gross, net float64) {
	gross = baseSalary + allowances
	net = gross - deductions
	return gross, net
}

// ErrEmployeeNotFound indicates a missing employee.
var ErrEmployeeNotFound = errors.New("payroll: employee not found")

// ErrEmployeeInactive indicates a run against a deactivated employee.
var ErrEmployeeInactive = errors.New("payroll: employee is inactive")

// ErrDuplicateRun indicates a second run for the same employee and period.
var ErrDuplicateRun = errors.New("payroll: run already recorded for this period")

// ErrRunNotFound indicates a missing payroll run.
var ErrRunNotFound = errors.New("payroll: run not found")

// ErrInvalidInput indicates a payroll field failed validation.
var ErrInvalidInput = errors.New("payroll: invalid input")
