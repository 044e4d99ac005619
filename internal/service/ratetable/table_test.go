package ratetable

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/ratetable"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func defaultTable(t *testing.T) *Table {
	t.Helper()
	rows, err := DefaultSource{}.Load(context.Background())
	require.NoError(t, err)
	table, err := NewTable(rows, time.Now())
	require.NoError(t, err)
	return table
}

func TestTable_Rate_Defaults(t *testing.T) {
	table := defaultTable(t)

	ahv, err := table.Rate(ratetable.KindAHV, date(2025, 3, 31))
	require.NoError(t, err)
	assert.True(t, ahv.Percent.Equal(decimal.RequireFromString("0.053")))
	assert.Nil(t, ahv.Ceiling)

	alv, err := table.Rate(ratetable.KindALV, date(2025, 3, 31))
	require.NoError(t, err)
	require.NotNil(t, alv.Ceiling)
	assert.True(t, alv.Ceiling.Equal(decimal.NewFromInt(148200)))
}

func TestTable_Rate_Errors(t *testing.T) {
	table := defaultTable(t)

	_, err := table.Rate(ratetable.Kind("CHURCH_TAX"), date(2025, 1, 1))
	assert.ErrorIs(t, err, ratetable.ErrUnknownRateKind)

	_, err = table.Rate(ratetable.KindAHV, date(2023, 12, 31))
	assert.ErrorIs(t, err, ratetable.ErrNoRateForDate)

	var rateErr *ratetable.RateError
	require.True(t, errors.As(err, &rateErr))
	assert.Equal(t, ratetable.KindAHV, rateErr.Kind)
}

func TestTable_Rate_Versioned(t *testing.T) {
	end := date(2026, 6, 30)
	table, err := NewTable(ratetable.Rows{Rates: []ratetable.Row{
		{Kind: ratetable.KindAHV, EffectiveFrom: date(2025, 1, 1), Percent: decimal.RequireFromString("0.053")},
		{Kind: ratetable.KindAHV, EffectiveFrom: date(2026, 1, 1), EffectiveTo: &end, Percent: decimal.RequireFromString("0.0535")},
	}}, time.Now())
	require.NoError(t, err)

	cases := []struct {
		on      time.Time
		want    string
		wantErr error
	}{
		{date(2025, 12, 31), "0.053", nil},
		{date(2026, 1, 1), "0.0535", nil},
		{date(2026, 6, 30), "0.0535", nil},
		{date(2026, 7, 1), "", ratetable.ErrNoRateForDate},
		{date(2024, 12, 31), "", ratetable.ErrNoRateForDate},
	}
	for _, c := range cases {
		got, err := table.Rate(ratetable.KindAHV, c.on)
		if c.wantErr != nil {
			assert.ErrorIs(t, err, c.wantErr, c.on)
			continue
		}
		require.NoError(t, err, c.on)
		assert.True(t, got.Percent.Equal(decimal.RequireFromString(c.want)), "on %s got %s", c.on, got.Percent)
	}
}

func TestNewTable_RejectsDuplicateEffectiveDate(t *testing.T) {
	_, err := NewTable(ratetable.Rows{Rates: []ratetable.Row{
		{Kind: ratetable.KindAHV, EffectiveFrom: date(2025, 1, 1), Percent: decimal.RequireFromString("0.053")},
		{Kind: ratetable.KindAHV, EffectiveFrom: date(2025, 1, 1), Percent: decimal.RequireFromString("0.054")},
	}}, time.Now())
	assert.ErrorIs(t, err, ratetable.ErrInvalidRow)
}

func TestTable_Withholding(t *testing.T) {
	table, err := NewTable(ratetable.Rows{Withholding: []ratetable.WithholdingBracket{
		{Tariff: "A", EffectiveFrom: date(2025, 1, 1), MinGross: decimal.Zero, Percent: decimal.RequireFromString("0.05")},
		{Tariff: "A", EffectiveFrom: date(2025, 1, 1), MinGross: decimal.NewFromInt(4000), Percent: decimal.RequireFromString("0.10")},
		{Tariff: "A", EffectiveFrom: date(2025, 1, 1), MinGross: decimal.NewFromInt(8000), Percent: decimal.RequireFromString("0.14")},
		{Tariff: "*", EffectiveFrom: date(2025, 1, 1), MinGross: decimal.Zero, Percent: decimal.RequireFromString("0.12")},
	}}, time.Now())
	require.NoError(t, err)

	on := date(2025, 5, 31)
	cases := []struct {
		code  string
		gross int64
		want  string
	}{
		{"A0", 3000, "0.05"},
		{"a1", 4000, "0.10"},
		{"A0", 9000, "0.14"},
		{"B1", 9000, "0.12"},
		{"", 100, "0.12"},
	}
	for _, c := range cases {
		got, err := table.Withholding(c.code, decimal.NewFromInt(c.gross), on)
		require.NoError(t, err)
		assert.True(t, got.Equal(decimal.RequireFromString(c.want)), "%s/%d got %s", c.code, c.gross, got)
	}

	_, err = table.Withholding("A0", decimal.NewFromInt(1000), date(2024, 1, 1))
	assert.ErrorIs(t, err, ratetable.ErrNoRateForDate)
}

func TestTable_Withholding_UnknownTariff(t *testing.T) {
	table, err := NewTable(ratetable.Rows{Withholding: []ratetable.WithholdingBracket{
		{Tariff: "A", EffectiveFrom: date(2025, 1, 1), Percent: decimal.RequireFromString("0.10")},
	}}, time.Now())
	require.NoError(t, err)

	_, err = table.Withholding("C2", decimal.NewFromInt(5000), date(2025, 2, 1))
	assert.ErrorIs(t, err, ratetable.ErrUnknownTariff)
}

func TestParseYAML(t *testing.T) {
	doc := []byte(`
rates:
  - kind: AHV
    effective_from: 2026-01-01
    percent: "0.0535"
  - kind: ALV
    effective_from: "2026-01-01"
    percent: "0.011"
    ceiling: "150000"
withholding:
  - tariff: B
    effective_from: 2026-01-01
    min_gross: "0"
    percent: "0.16"
`)
	rows, err := ParseYAML(doc, "test")
	require.NoError(t, err)
	require.Len(t, rows.Rates, 2)
	require.Len(t, rows.Withholding, 1)

	assert.Equal(t, ratetable.KindALV, rows.Rates[1].Kind)
	require.NotNil(t, rows.Rates[1].Ceiling)
	assert.True(t, rows.Rates[1].Ceiling.Equal(decimal.NewFromInt(150000)))
	assert.Equal(t, date(2026, 1, 1), rows.Rates[0].EffectiveFrom)
	assert.Equal(t, "test", rows.Withholding[0].Source)

	_, err = ParseYAML([]byte("rates:\n  - kind: AHV\n    effective_from: soon\n    percent: \"1\"\n"), "bad")
	assert.Error(t, err)
}

type staticSource struct {
	name string
	rows ratetable.Rows
	err  error
}

func (s staticSource) Name() string { return s.name }

func (s staticSource) Load(context.Context) (ratetable.Rows, error) { return s.rows, s.err }

type fakeRateRepo struct {
	rows []ratetable.Row
}

func (f *fakeRateRepo) ListRates(context.Context) ([]ratetable.Row, error) { return f.rows, nil }

func (f *fakeRateRepo) ListWithholding(context.Context) ([]ratetable.WithholdingBracket, error) {
	return nil, nil
}

func (f *fakeRateRepo) AppendRate(_ context.Context, row ratetable.Row) error {
	f.rows = append(f.rows, row)
	return nil
}

func TestRateTableService_SourcePriority(t *testing.T) {
	override := staticSource{name: "override", rows: ratetable.Rows{Rates: []ratetable.Row{
		{Kind: ratetable.KindAHV, EffectiveFrom: defaultsFrom, Percent: decimal.RequireFromString("0.06")},
	}}}
	svc := NewRateTableService(nil, override, DefaultSource{})
	require.NoError(t, svc.Reload(context.Background()))

	ahv, err := svc.Rate(ratetable.KindAHV, date(2025, 1, 31))
	require.NoError(t, err)
	assert.True(t, ahv.Percent.Equal(decimal.RequireFromString("0.06")))

	// Other kinds still come from the defaults.
	fak, err := svc.Rate(ratetable.KindFAKEmployer, date(2025, 1, 31))
	require.NoError(t, err)
	assert.True(t, fak.Percent.Equal(decimal.RequireFromString("0.012")))
}

func TestRateTableService_ReloadFailureKeepsSnapshot(t *testing.T) {
	failing := &staticSource{name: "flaky"}
	svc := NewRateTableService(nil, failing, DefaultSource{})
	require.NoError(t, svc.Reload(context.Background()))
	before := svc.Table()

	failing.err = errors.New("connection refused")
	assert.Error(t, svc.Reload(context.Background()))
	assert.Same(t, before, svc.Table())
}

func TestRateTableService_AppendRate(t *testing.T) {
	repo := &fakeRateRepo{}
	svc := NewRateTableService(repo, RepositorySource{Repo: repo}, DefaultSource{})
	require.NoError(t, svc.Reload(context.Background()))
	ctx := context.Background()

	err := svc.AppendRate(ctx, ratetable.AppendRateRequest{Kind: "AHV", EffectiveFrom: "2023-06-01", Percent: decimal.RequireFromString("0.05")})
	assert.ErrorIs(t, err, ratetable.ErrRetroactiveRate)
	assert.Empty(t, repo.rows)

	err = svc.AppendRate(ctx, ratetable.AppendRateRequest{Kind: "AHV", EffectiveFrom: "2026-01-01", Percent: decimal.RequireFromString("0.0535")})
	require.NoError(t, err)
	require.Len(t, repo.rows, 1)

	old, err := svc.Rate(ratetable.KindAHV, date(2025, 12, 31))
	require.NoError(t, err)
	assert.True(t, old.Percent.Equal(decimal.RequireFromString("0.053")))

	next, err := svc.Rate(ratetable.KindAHV, date(2026, 1, 31))
	require.NoError(t, err)
	assert.True(t, next.Percent.Equal(decimal.RequireFromString("0.0535")))

	err = svc.AppendRate(ctx, ratetable.AppendRateRequest{Kind: "AHV", EffectiveFrom: "2026-13-01"})
	assert.Error(t, err)
}
