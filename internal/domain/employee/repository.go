package employee

import (
	"context"
	"time"
)

type EmployeeRepository interface {
	GetByID(ctx context.Context, id string) (Employee, error)
	// ListEligible returns employees whose employment window overlaps [from, to],
	// ordered by employee number.
	ListEligible(ctx context.Context, from, to time.Time) ([]Employee, error)
}
