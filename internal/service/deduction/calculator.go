package deduction

import (
	"fmt"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/employee"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/domain/ratetable"
	"github.com/shopspring/decimal"
)

var (
	// DefaultRemoteMultiplier applies when the contract carries no remote rate.
	DefaultRemoteMultiplier = decimal.RequireFromString("0.80")
	OvertimeMultiplier      = decimal.RequireFromString("1.25")

	monthsPerYear = decimal.NewFromInt(12)
	two           = decimal.NewFromInt(2)
)

const moneyPlaces = 2

// Calculator turns hours and contract terms into a payslip breakdown.
// It holds no state besides the resolver and is safe for concurrent use.
type Calculator struct {
	rates ratetable.Resolver
}

func NewCalculator(rates ratetable.Resolver) *Calculator {
	return &Calculator{rates: rates}
}

// GrossPay prices hours by entry type. Each component is rounded to the
// cent and Total is the sum of the rounded components, so a printed slip
// always adds up.
func (c *Calculator) GrossPay(hours payroll.Hours, emp employee.Employee) (payroll.GrossPay, error) {
	if emp.HourlyRate == nil || !emp.HourlyRate.IsPositive() {
		return payroll.GrossPay{}, &payroll.MissingContractTermError{Field: "hourly_rate"}
	}
	rate := *emp.HourlyRate

	remoteMultiplier := DefaultRemoteMultiplier
	if emp.RemoteRateMultiplier != nil {
		remoteMultiplier = *emp.RemoteRateMultiplier
	}

	g := payroll.GrossPay{
		Regular:       money(hours.Regular.Mul(rate)),
		Remote:        money(hours.Remote.Mul(rate).Mul(remoteMultiplier)),
		Holiday:       money(hours.Holiday.Mul(rate)),
		Sick:          money(hours.Sick.Mul(rate)),
		PublicHoliday: money(hours.PublicHoliday.Mul(rate)),
		Overtime:      money(hours.Overtime.Mul(rate).Mul(OvertimeMultiplier)),
		Training:      money(hours.Training.Mul(rate)),
	}
	g.Total = decimal.Sum(g.Regular, g.Remote, g.Holiday, g.Sick, g.PublicHoliday, g.Overtime, g.Training)
	return g, nil
}

// Compute applies statutory deductions and employer contributions to gross.
// ytdGross is the employee's gross earlier in the same calendar year and
// drives the ALV ceiling split.
func (c *Calculator) Compute(gross payroll.GrossPay, emp employee.Employee, ytdGross decimal.Decimal, asOf time.Time, adj payroll.Adjustments) (payroll.Breakdown, error) {
	if err := checkContract(emp); err != nil {
		return payroll.Breakdown{}, err
	}

	rates, err := c.lookup(asOf,
		ratetable.KindAHV, ratetable.KindAHVEmployer,
		ratetable.KindALV, ratetable.KindALVEmployer,
		ratetable.KindALV2, ratetable.KindALV2Employer,
		ratetable.KindUVGNBU, ratetable.KindKTG,
		ratetable.KindUVGEmployer, ratetable.KindFAKEmployer, ratetable.KindAdminEmployer,
	)
	if err != nil {
		return payroll.Breakdown{}, err
	}

	g := gross.Total
	below, above := splitAtCeiling(g, ytdGross, rates[ratetable.KindALV].Ceiling)

	var d payroll.Deductions
	d.AHV = money(g.Mul(rates[ratetable.KindAHV].Percent))
	d.ALV = money(below.Mul(rates[ratetable.KindALV].Percent))
	d.ALV2 = money(above.Mul(rates[ratetable.KindALV2].Percent))
	d.UVGNBU = money(g.Mul(rates[ratetable.KindUVGNBU].Percent))
	d.KTG = money(g.Mul(rates[ratetable.KindKTG].Percent))
	d.Other = money(adj.OtherDeductions)

	var er payroll.EmployerCosts
	if emp.BVGInsured {
		coordination, err := c.rates.Rate(ratetable.KindBVGCoordination, asOf)
		if err != nil {
			return payroll.Breakdown{}, err
		}
		monthlyDeduction := coordination.CeilingOrZero().Div(monthsPerYear)
		coordinated := decimal.Max(decimal.Zero, g.Sub(monthlyDeduction))
		share := money(coordinated.Mul(*emp.BVGContributionRate).Div(two))
		d.BVG = share
		er.BVG = share
	}

	if emp.IsQuellensteuer {
		percent, err := c.rates.Withholding(*emp.QuellensteuerCode, g, asOf)
		if err != nil {
			return payroll.Breakdown{}, fmt.Errorf("quellensteuer %s: %w", *emp.QuellensteuerCode, err)
		}
		d.Quellensteuer = money(g.Mul(percent))
	}

	d.Total = decimal.Sum(d.AHV, d.ALV, d.ALV2, d.BVG, d.UVGNBU, d.KTG, d.Quellensteuer, d.Other)

	er.AHV = money(g.Mul(rates[ratetable.KindAHVEmployer].Percent))
	er.ALV = money(below.Mul(rates[ratetable.KindALVEmployer].Percent).Add(above.Mul(rates[ratetable.KindALV2Employer].Percent)))
	er.UVG = money(g.Mul(rates[ratetable.KindUVGEmployer].Percent))
	er.FAK = money(g.Mul(rates[ratetable.KindFAKEmployer].Percent))
	er.Admin = money(g.Mul(rates[ratetable.KindAdminEmployer].Percent))

	add := payroll.Additions{
		KBBonus:              money(adj.KBBonus),
		ExpenseReimbursement: money(adj.ExpenseReimbursement),
		Other:                money(adj.OtherAdditions),
	}

	reported := roundGross(gross)
	er.Total = decimal.Sum(reported.Total, er.AHV, er.ALV, er.BVG, er.UVG, er.FAK, er.Admin)

	return payroll.Breakdown{
		Gross:      reported,
		Deductions: d,
		Additions:  add,
		Employer:   er,
		NetSalary:  reported.Total.Sub(d.Total).Add(add.Total()),
	}, nil
}

func checkContract(emp employee.Employee) error {
	if emp.HourlyRate == nil || !emp.HourlyRate.IsPositive() {
		return &payroll.MissingContractTermError{Field: "hourly_rate"}
	}
	if emp.BVGInsured && emp.BVGContributionRate == nil {
		return &payroll.MissingContractTermError{Field: "bvg_contribution_rate"}
	}
	if emp.IsQuellensteuer && (emp.QuellensteuerCode == nil || *emp.QuellensteuerCode == "") {
		return &payroll.MissingContractTermError{Field: "quellensteuer_code"}
	}
	return nil
}

func (c *Calculator) lookup(asOf time.Time, kinds ...ratetable.Kind) (map[ratetable.Kind]ratetable.Rate, error) {
	out := make(map[ratetable.Kind]ratetable.Rate, len(kinds))
	for _, k := range kinds {
		r, err := c.rates.Rate(k, asOf)
		if err != nil {
			return nil, err
		}
		out[k] = r
	}
	return out, nil
}

// splitAtCeiling divides gross into the part still under the annual ceiling
// and the part above it. A nil ceiling puts everything below.
func splitAtCeiling(gross, ytd decimal.Decimal, ceiling *decimal.Decimal) (below, above decimal.Decimal) {
	if ceiling == nil {
		return gross, decimal.Zero
	}
	remaining := decimal.Max(decimal.Zero, ceiling.Sub(ytd))
	below = decimal.Min(gross, remaining)
	return below, gross.Sub(below)
}

func roundGross(g payroll.GrossPay) payroll.GrossPay {
	return payroll.GrossPay{
		Regular:       money(g.Regular),
		Remote:        money(g.Remote),
		Holiday:       money(g.Holiday),
		Sick:          money(g.Sick),
		PublicHoliday: money(g.PublicHoliday),
		Overtime:      money(g.Overtime),
		Training:      money(g.Training),
		Total:         money(g.Total),
	}
}

// money rounds half away from zero, which is half-up for the non-negative
// amounts a payslip carries.
func money(d decimal.Decimal) decimal.Decimal {
	return d.Round(moneyPlaces)
}
