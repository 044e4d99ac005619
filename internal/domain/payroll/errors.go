package payroll

import (
	"errors"
	"fmt"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/ratetable"
)

var (
	ErrRunNotFound          = errors.New("payroll run not found")
	ErrRunAlreadyExists     = errors.New("payroll run already exists for this period")
	ErrInvalidRunTransition = errors.New("invalid payroll run status transition")
	ErrRunImmutable         = errors.New("payroll run can no longer be modified")
	ErrAlreadyCalculating   = errors.New("payroll run is already being calculated")
	ErrNotCalculating       = errors.New("payroll run is not being calculated")
	ErrCalculationCancelled = errors.New("payroll calculation cancelled")
	ErrCalculationAborted   = errors.New("payroll calculation aborted")
	ErrHasUnresolvedErrors  = errors.New("payroll run has unresolved employee errors")
	ErrRunNotExportable     = errors.New("payroll run must be approved before export")
	ErrPayslipNotFound      = errors.New("payslip not found")
	ErrPayslipImmutable     = errors.New("payslip belongs to an approved run")
	ErrNoEntries            = errors.New("no approved time entries for period")
	ErrMissingContractTerm  = errors.New("missing contract term")
	ErrEmployeeNotInRun     = errors.New("employee is not eligible for this payroll period")
	ErrInvalidPeriod        = errors.New("invalid payroll period")
	ErrAccountingUnbalanced = errors.New("payslip does not balance")
)

// Codes stored with CalculationError
const (
	CodeMissingContractTerm = "MISSING_CONTRACT_TERM"
	CodeRateUnavailable     = "RATE_UNAVAILABLE"
	CodeCalculationFailed   = "CALCULATION_FAILED"
)

// MissingContractTermError names the employee field that blocks a calculation.
type MissingContractTermError struct {
	Field string
}

func (e *MissingContractTermError) Error() string {
	return fmt.Sprintf("missing contract term: %s", e.Field)
}

func (e *MissingContractTermError) Unwrap() error {
	return ErrMissingContractTerm
}

// EmployeeError scopes a calculation failure to one employee.
type EmployeeError struct {
	EmployeeID     string
	EmployeeNumber string
	Err            error
}

func (e *EmployeeError) Error() string {
	return fmt.Sprintf("employee %s: %v", e.EmployeeNumber, e.Err)
}

func (e *EmployeeError) Unwrap() error {
	return e.Err
}

// Record converts the error into the form stored on the run.
func (e *EmployeeError) Record() CalculationError {
	rec := CalculationError{
		EmployeeID:     e.EmployeeID,
		EmployeeNumber: e.EmployeeNumber,
		Code:           CodeCalculationFailed,
		Message:        e.Err.Error(),
	}

	var missing *MissingContractTermError
	var rateErr *ratetable.RateError
	switch {
	case errors.As(e.Err, &missing):
		rec.Code = CodeMissingContractTerm
		rec.Field = missing.Field
	case errors.As(e.Err, &rateErr):
		rec.Code = CodeRateUnavailable
		rec.Field = string(rateErr.Kind)
	case errors.Is(e.Err, ratetable.ErrNoRateForDate), errors.Is(e.Err, ratetable.ErrUnknownTariff):
		rec.Code = CodeRateUnavailable
	}
	return rec
}

// AbortedError is returned when an abort-on-error run hit employee errors.
type AbortedError struct {
	Errors []CalculationError
}

func (e *AbortedError) Error() string {
	return fmt.Sprintf("%v: %d employee error(s)", ErrCalculationAborted, len(e.Errors))
}

func (e *AbortedError) Unwrap() error {
	return ErrCalculationAborted
}
