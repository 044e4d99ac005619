package ratetable

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/ratetable"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Swiss statutory values for 2024/2025, Canton Luzern.
var defaultsFrom = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

func pct(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func amount(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

// DefaultSource returns the compiled-in table.
type DefaultSource struct{}

func (DefaultSource) Name() string { return "defaults" }

func (DefaultSource) Load(_ context.Context) (ratetable.Rows, error) {
	rate := func(kind ratetable.Kind, percent string, ceiling *decimal.Decimal) ratetable.Row {
		return ratetable.Row{Kind: kind, EffectiveFrom: defaultsFrom, Percent: pct(percent), Ceiling: ceiling, Source: "defaults"}
	}
	bracket := func(tariff, percent string) ratetable.WithholdingBracket {
		return ratetable.WithholdingBracket{Tariff: tariff, EffectiveFrom: defaultsFrom, MinGross: decimal.Zero, Percent: pct(percent), Source: "defaults"}
	}

	return ratetable.Rows{
		Rates: []ratetable.Row{
			rate(ratetable.KindAHV, "0.053", nil),
			rate(ratetable.KindAHVEmployer, "0.053", nil),
			rate(ratetable.KindALV, "0.011", amount("148200")),
			rate(ratetable.KindALVEmployer, "0.011", amount("148200")),
			rate(ratetable.KindALV2, "0.005", nil),
			rate(ratetable.KindALV2Employer, "0", nil),
			rate(ratetable.KindUVGNBU, "0", nil),
			rate(ratetable.KindKTG, "0", nil),
			rate(ratetable.KindUVGEmployer, "0.015", nil),
			rate(ratetable.KindFAKEmployer, "0.012", nil),
			rate(ratetable.KindAdminEmployer, "0.002", nil),
			rate(ratetable.KindBVGCoordination, "0", amount("26460")),
		},
		Withholding: []ratetable.WithholdingBracket{
			bracket("A", "0.10"),
			bracket("B", "0.15"),
			bracket("C", "0.20"),
			bracket(ratetable.FallbackTariff, "0.12"),
		},
	}, nil
}

type fileDocument struct {
	Rates []struct {
		Kind          string  `yaml:"kind"`
		EffectiveFrom string  `yaml:"effective_from"`
		EffectiveTo   *string `yaml:"effective_to"`
		Percent       string  `yaml:"percent"`
		Ceiling       *string `yaml:"ceiling"`
	} `yaml:"rates"`
	Withholding []struct {
		Tariff        string  `yaml:"tariff"`
		EffectiveFrom string  `yaml:"effective_from"`
		EffectiveTo   *string `yaml:"effective_to"`
		MinGross      string  `yaml:"min_gross"`
		Percent       string  `yaml:"percent"`
	} `yaml:"withholding"`
}

// FileSource reads rows from a YAML document:
//
//	rates:
//	  - kind: AHV
//	    effective_from: 2025-01-01
//	    percent: "0.053"
//	withholding:
//	  - tariff: A
//	    effective_from: 2025-01-01
//	    min_gross: "0"
//	    percent: "0.10"
type FileSource struct {
	Path string
}

func (s FileSource) Name() string { return "file:" + s.Path }

func (s FileSource) Load(_ context.Context) (ratetable.Rows, error) {
	raw, err := os.ReadFile(s.Path)
	if err != nil {
		return ratetable.Rows{}, fmt.Errorf("failed to read rate table file: %w", err)
	}
	return ParseYAML(raw, s.Name())
}

// ParseYAML decodes a rate table document.
func ParseYAML(raw []byte, source string) (ratetable.Rows, error) {
	var doc fileDocument
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return ratetable.Rows{}, fmt.Errorf("failed to parse rate table: %w", err)
	}

	var rows ratetable.Rows
	for i, r := range doc.Rates {
		from, to, err := parseRange(r.EffectiveFrom, r.EffectiveTo)
		if err != nil {
			return ratetable.Rows{}, fmt.Errorf("rates[%d]: %w", i, err)
		}
		percent, err := decimal.NewFromString(r.Percent)
		if err != nil {
			return ratetable.Rows{}, fmt.Errorf("rates[%d].percent: %w", i, err)
		}
		row := ratetable.Row{Kind: ratetable.Kind(r.Kind), EffectiveFrom: from, EffectiveTo: to, Percent: percent, Source: source}
		if r.Ceiling != nil {
			c, err := decimal.NewFromString(*r.Ceiling)
			if err != nil {
				return ratetable.Rows{}, fmt.Errorf("rates[%d].ceiling: %w", i, err)
			}
			row.Ceiling = &c
		}
		rows.Rates = append(rows.Rates, row)
	}

	for i, b := range doc.Withholding {
		from, to, err := parseRange(b.EffectiveFrom, b.EffectiveTo)
		if err != nil {
			return ratetable.Rows{}, fmt.Errorf("withholding[%d]: %w", i, err)
		}
		minGross := decimal.Zero
		if b.MinGross != "" {
			if minGross, err = decimal.NewFromString(b.MinGross); err != nil {
				return ratetable.Rows{}, fmt.Errorf("withholding[%d].min_gross: %w", i, err)
			}
		}
		percent, err := decimal.NewFromString(b.Percent)
		if err != nil {
			return ratetable.Rows{}, fmt.Errorf("withholding[%d].percent: %w", i, err)
		}
		rows.Withholding = append(rows.Withholding, ratetable.WithholdingBracket{
			Tariff:        b.Tariff,
			EffectiveFrom: from,
			EffectiveTo:   to,
			MinGross:      minGross,
			Percent:       percent,
			Source:        source,
		})
	}

	return rows, nil
}

func parseRange(fromStr string, toStr *string) (time.Time, *time.Time, error) {
	from, err := time.Parse(time.DateOnly, fromStr)
	if err != nil {
		return time.Time{}, nil, fmt.Errorf("effective_from: %w", err)
	}
	if toStr == nil {
		return from, nil, nil
	}
	to, err := time.Parse(time.DateOnly, *toStr)
	if err != nil {
		return time.Time{}, nil, fmt.Errorf("effective_to: %w", err)
	}
	return from, &to, nil
}

// RepositorySource loads rows persisted through the API.
type RepositorySource struct {
	Repo ratetable.RateTableRepository
}

func (s RepositorySource) Name() string { return "database" }

func (s RepositorySource) Load(ctx context.Context) (ratetable.Rows, error) {
	rates, err := s.Repo.ListRates(ctx)
	if err != nil {
		return ratetable.Rows{}, err
	}
	brackets, err := s.Repo.ListWithholding(ctx)
	if err != nil {
		return ratetable.Rows{}, err
	}
	return ratetable.Rows{Rates: rates, Withholding: brackets}, nil
}
