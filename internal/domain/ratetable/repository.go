package ratetable

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Resolver is the read contract used by the deduction calculator.
// Implementations must be safe for concurrent use.
type Resolver interface {
	Rate(kind Kind, on time.Time) (Rate, error)
	Withholding(code string, monthlyGross decimal.Decimal, on time.Time) (decimal.Decimal, error)
}

// Source feeds rows into a table on load and reload.
type Source interface {
	Name() string
	Load(ctx context.Context) (Rows, error)
}

// RateTableRepository persists rows append-only.
type RateTableRepository interface {
	ListRates(ctx context.Context) ([]Row, error)
	ListWithholding(ctx context.Context) ([]WithholdingBracket, error)
	AppendRate(ctx context.Context, row Row) error
}
