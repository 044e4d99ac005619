package ratetable

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/ratetable"
	"github.com/shopspring/decimal"
)

// Table is an immutable snapshot of all rate rows. It never changes after
// NewTable returns, so any number of goroutines may read it.
type Table struct {
	rates       map[ratetable.Kind][]ratetable.Row
	withholding map[string][]ratetable.WithholdingBracket
	loadedAt    time.Time
}

var _ ratetable.Resolver = (*Table)(nil)

// NewTable validates and indexes rows. Rows of one kind may not share an
// effective date.
func NewTable(rows ratetable.Rows, loadedAt time.Time) (*Table, error) {
	t := &Table{
		rates:       make(map[ratetable.Kind][]ratetable.Row),
		withholding: make(map[string][]ratetable.WithholdingBracket),
		loadedAt:    loadedAt,
	}

	for _, r := range rows.Rates {
		if r.Kind == "" || r.Percent.IsNegative() || (r.Ceiling != nil && r.Ceiling.IsNegative()) {
			return nil, fmt.Errorf("%w: %s from %s", ratetable.ErrInvalidRow, r.Kind, r.EffectiveFrom.Format(time.DateOnly))
		}
		if r.EffectiveTo != nil && r.EffectiveTo.Before(r.EffectiveFrom) {
			return nil, fmt.Errorf("%w: %s ends before it starts", ratetable.ErrInvalidRow, r.Kind)
		}
		t.rates[r.Kind] = append(t.rates[r.Kind], r)
	}
	for kind, list := range t.rates {
		sort.SliceStable(list, func(i, j int) bool { return list[i].EffectiveFrom.Before(list[j].EffectiveFrom) })
		for i := 1; i < len(list); i++ {
			if list[i].EffectiveFrom.Equal(list[i-1].EffectiveFrom) {
				return nil, fmt.Errorf("%w: duplicate %s row from %s", ratetable.ErrInvalidRow, kind, list[i].EffectiveFrom.Format(time.DateOnly))
			}
		}
	}

	for _, b := range rows.Withholding {
		tariff := strings.ToUpper(strings.TrimSpace(b.Tariff))
		if tariff == "" || b.Percent.IsNegative() || b.MinGross.IsNegative() {
			return nil, fmt.Errorf("%w: withholding bracket %q", ratetable.ErrInvalidRow, b.Tariff)
		}
		b.Tariff = tariff
		t.withholding[tariff] = append(t.withholding[tariff], b)
	}
	for _, list := range t.withholding {
		sort.SliceStable(list, func(i, j int) bool {
			if !list[i].EffectiveFrom.Equal(list[j].EffectiveFrom) {
				return list[i].EffectiveFrom.Before(list[j].EffectiveFrom)
			}
			return list[i].MinGross.LessThan(list[j].MinGross)
		})
	}

	return t, nil
}

// Rate returns the row of kind in force on the given date.
func (t *Table) Rate(kind ratetable.Kind, on time.Time) (ratetable.Rate, error) {
	list, ok := t.rates[kind]
	if !ok {
		return ratetable.Rate{}, &ratetable.RateError{Kind: kind, Date: on, Err: ratetable.ErrUnknownRateKind}
	}

	// The last row starting on or before the date supersedes all earlier ones.
	idx := sort.Search(len(list), func(i int) bool { return list[i].EffectiveFrom.After(on) }) - 1
	if idx < 0 || !list[idx].Covers(on) {
		return ratetable.Rate{}, &ratetable.RateError{Kind: kind, Date: on, Err: ratetable.ErrNoRateForDate}
	}

	row := list[idx]
	return ratetable.Rate{Percent: row.Percent, Ceiling: row.Ceiling}, nil
}

// Withholding looks up the Quellensteuer percent for a tariff code and monthly gross.
// The tariff is the first letter of the code ("B1" uses tariff B).
func (t *Table) Withholding(code string, monthlyGross decimal.Decimal, on time.Time) (decimal.Decimal, error) {
	tariff := tariffOf(code)
	list, ok := t.withholding[tariff]
	if !ok {
		list, ok = t.withholding[ratetable.FallbackTariff]
	}
	if !ok {
		return decimal.Zero, fmt.Errorf("tariff %q: %w", code, ratetable.ErrUnknownTariff)
	}

	// Brackets of the latest version in force on the date.
	var version *time.Time
	for i := range list {
		if list[i].Covers(on) {
			from := list[i].EffectiveFrom
			version = &from
		}
	}
	if version == nil {
		return decimal.Zero, fmt.Errorf("tariff %q on %s: %w", code, on.Format(time.DateOnly), ratetable.ErrNoRateForDate)
	}

	percent := decimal.Zero
	for _, b := range list {
		if !b.EffectiveFrom.Equal(*version) || !b.Covers(on) {
			continue
		}
		if b.MinGross.LessThanOrEqual(monthlyGross) {
			percent = b.Percent
		}
	}
	return percent, nil
}

// LatestFrom returns the effective date of the newest row of a kind.
func (t *Table) LatestFrom(kind ratetable.Kind) (time.Time, bool) {
	list := t.rates[kind]
	if len(list) == 0 {
		return time.Time{}, false
	}
	return list[len(list)-1].EffectiveFrom, true
}

func (t *Table) LoadedAt() time.Time {
	return t.loadedAt
}

// Rows returns a copy of the indexed rows, ordered by kind then date.
func (t *Table) Rows() ratetable.Rows {
	var out ratetable.Rows
	kinds := make([]string, 0, len(t.rates))
	for k := range t.rates {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		out.Rates = append(out.Rates, t.rates[ratetable.Kind(k)]...)
	}

	tariffs := make([]string, 0, len(t.withholding))
	for k := range t.withholding {
		tariffs = append(tariffs, k)
	}
	sort.Strings(tariffs)
	for _, k := range tariffs {
		out.Withholding = append(out.Withholding, t.withholding[k]...)
	}
	return out
}

func tariffOf(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return ratetable.FallbackTariff
	}
	return code[:1]
}
