package ratetable

import (
	"time"

	"github.com/shopspring/decimal"
)

// Kind identifies a statutory contribution rate. Kinds ending in _ER are the
// employer side of a contribution.
type Kind string

const (
	KindAHV             Kind = "AHV"
	KindAHVEmployer     Kind = "AHV_ER"
	KindALV             Kind = "ALV"
	KindALVEmployer     Kind = "ALV_ER"
	KindALV2            Kind = "ALV2"
	KindALV2Employer    Kind = "ALV2_ER"
	KindUVGNBU          Kind = "UVG_NBU"
	KindKTG             Kind = "KTG"
	KindUVGEmployer     Kind = "UVG_ER"
	KindFAKEmployer     Kind = "FAK_ER"
	KindAdminEmployer   Kind = "ADMIN_ER"
	KindBVGCoordination Kind = "BVG_COORDINATION"
)

// FallbackTariff holds withholding brackets used when a code has no tariff of its own.
const FallbackTariff = "*"

// Row is one versioned rate. Its range ends at EffectiveTo when set, otherwise
// the day before the next row of the same kind starts.
type Row struct {
	Kind          Kind
	EffectiveFrom time.Time
	EffectiveTo   *time.Time
	Percent       decimal.Decimal
	Ceiling       *decimal.Decimal
	Source        string
}

// Rate is what the resolver hands to calculators.
type Rate struct {
	Percent decimal.Decimal
	Ceiling *decimal.Decimal
}

// CeilingOrZero is a convenience for kinds that use the ceiling as an amount.
func (r Rate) CeilingOrZero() decimal.Decimal {
	if r.Ceiling == nil {
		return decimal.Zero
	}
	return *r.Ceiling
}

// WithholdingBracket is one Quellensteuer bracket: monthly gross at or above
// MinGross is withheld at Percent.
type WithholdingBracket struct {
	Tariff        string
	EffectiveFrom time.Time
	EffectiveTo   *time.Time
	MinGross      decimal.Decimal
	Percent       decimal.Decimal
	Source        string
}

// Rows groups everything a source can contribute to a table.
type Rows struct {
	Rates       []Row
	Withholding []WithholdingBracket
}

// Covers reports whether the row is in force on the given date.
func (r Row) Covers(on time.Time) bool {
	return covers(r.EffectiveFrom, r.EffectiveTo, on)
}

func (b WithholdingBracket) Covers(on time.Time) bool {
	return covers(b.EffectiveFrom, b.EffectiveTo, on)
}

func covers(from time.Time, to *time.Time, on time.Time) bool {
	if on.Before(from) {
		return false
	}
	return to == nil || !on.After(*to)
}
