package ratetable

import (
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/pkg/validator"
	"github.com/shopspring/decimal"
)

type AppendRateRequest struct {
	Kind          string           `json:"kind"`
	EffectiveFrom string           `json:"effective_from"`
	Percent       decimal.Decimal  `json:"percent"`
	Ceiling       *decimal.Decimal `json:"ceiling,omitempty"`
}

func (r *AppendRateRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.Kind) {
		errs.Add("kind", "is required")
	}
	if _, ok := validator.IsValidDate(r.EffectiveFrom); !ok {
		errs.Add("effective_from", "must be a date in YYYY-MM-DD format")
	}
	if r.Percent.IsNegative() {
		errs.Add("percent", "must not be negative")
	}
	if r.Ceiling != nil && r.Ceiling.IsNegative() {
		errs.Add("ceiling", "must not be negative")
	}

	return errs.OrNil()
}

// ToRow assumes Validate passed.
func (r *AppendRateRequest) ToRow() Row {
	from, _ := time.Parse(time.DateOnly, r.EffectiveFrom)
	return Row{
		Kind:          Kind(r.Kind),
		EffectiveFrom: from,
		Percent:       r.Percent,
		Ceiling:       r.Ceiling,
		Source:        "api",
	}
}

type RateRowResponse struct {
	Kind          string           `json:"kind"`
	EffectiveFrom string           `json:"effective_from"`
	EffectiveTo   *string          `json:"effective_to,omitempty"`
	Percent       decimal.Decimal  `json:"percent"`
	Ceiling       *decimal.Decimal `json:"ceiling,omitempty"`
	Source        string           `json:"source"`
}

type WithholdingBracketResponse struct {
	Tariff        string          `json:"tariff"`
	EffectiveFrom string          `json:"effective_from"`
	EffectiveTo   *string         `json:"effective_to,omitempty"`
	MinGross      decimal.Decimal `json:"min_gross"`
	Percent       decimal.Decimal `json:"percent"`
	Source        string          `json:"source"`
}

type TableResponse struct {
	LoadedAt    time.Time                    `json:"loaded_at"`
	Rates       []RateRowResponse            `json:"rates"`
	Withholding []WithholdingBracketResponse `json:"withholding"`
}
