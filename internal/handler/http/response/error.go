package response

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/employee"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/ratetable"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/timeentry"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/user"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/storage"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/validator"
)

// HandleError maps domain errors to HTTP responses
func HandleError(w http.ResponseWriter, err error) {
	// Check if it's a validation error
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		ValidationError(w, validationErrs.ToMap())
		return
	}

	var aborted *payroll.AbortedError
	if errors.As(err, &aborted) {
		ConflictWithDetails(w, "CALCULATION_ABORTED", err.Error(), calculationErrorDetails(aborted.Errors))
		return
	}

	switch {
	// Identity and permissions
	case errors.Is(err, user.ErrMissingIdentity):
		Unauthorized(w, err.Error())
	case errors.Is(err, user.ErrAdminAccessRequired),
		errors.Is(err, user.ErrManagerAccessRequired),
		errors.Is(err, user.ErrInsufficientPermissions),
		errors.Is(err, user.ErrNotOwnEmployeeRecord):
		Forbidden(w, err.Error())

	// Not found
	case errors.Is(err, employee.ErrEmployeeNotFound):
		NotFound(w, "Employee not found")
	case errors.Is(err, timeentry.ErrTimeEntryNotFound):
		NotFound(w, "Time entry not found")
	case errors.Is(err, payroll.ErrRunNotFound):
		NotFound(w, "Payroll run not found")
	case errors.Is(err, payroll.ErrPayslipNotFound):
		NotFound(w, "Payslip not found")
	case errors.Is(err, storage.ErrNotFound):
		NotFound(w, "Export artifact not found")

	// Time entry domain errors
	case errors.Is(err, timeentry.ErrNegativeHours),
		errors.Is(err, timeentry.ErrNegativeBreak),
		errors.Is(err, timeentry.ErrInvalidEntryType):
		BadRequest(w, err.Error(), nil)
	case errors.Is(err, timeentry.ErrDuplicateEntry),
		errors.Is(err, timeentry.ErrInvalidTransition),
		errors.Is(err, timeentry.ErrEntryImmutable),
		errors.Is(err, timeentry.ErrExceedsWeeklyCap):
		Conflict(w, err.Error())

	// Payroll domain errors
	case errors.Is(err, payroll.ErrAlreadyCalculating):
		w.Header().Set("Retry-After", "5")
		Conflict(w, err.Error())
	case errors.Is(err, payroll.ErrInvalidPeriod),
		errors.Is(err, payroll.ErrEmployeeNotInRun):
		BadRequest(w, err.Error(), nil)
	case errors.Is(err, payroll.ErrRunAlreadyExists),
		errors.Is(err, payroll.ErrInvalidRunTransition),
		errors.Is(err, payroll.ErrRunImmutable),
		errors.Is(err, payroll.ErrNotCalculating),
		errors.Is(err, payroll.ErrCalculationCancelled),
		errors.Is(err, payroll.ErrHasUnresolvedErrors),
		errors.Is(err, payroll.ErrRunNotExportable),
		errors.Is(err, payroll.ErrPayslipImmutable):
		Conflict(w, err.Error())

	// Rate table errors
	case errors.Is(err, ratetable.ErrUnknownRateKind),
		errors.Is(err, ratetable.ErrInvalidRow):
		BadRequest(w, err.Error(), nil)
	case errors.Is(err, ratetable.ErrRetroactiveRate),
		errors.Is(err, ratetable.ErrNoRepository):
		Conflict(w, err.Error())

	// Default
	default:
		slog.Error("unhandled error", "error", err)
		InternalServerError(w, "An unexpected error occurred")
	}
}

func calculationErrorDetails(errs []payroll.CalculationError) map[string]string {
	details := make(map[string]string, len(errs))
	for _, e := range errs {
		details[e.EmployeeNumber] = e.Code + ": " + e.Message
	}
	return details
}
