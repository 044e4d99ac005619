package ratetable

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/ratetable"
	"github.com/shopspring/decimal"
)

// RateTableServiceImpl holds the current Table and swaps it atomically on
// reload. Readers keep whatever snapshot they grabbed.
type RateTableServiceImpl struct {
	repo    ratetable.RateTableRepository
	sources []ratetable.Source
	current atomic.Pointer[Table]
	mu      sync.Mutex
	now     func() time.Time
}

var (
	_ ratetable.Resolver         = (*RateTableServiceImpl)(nil)
	_ ratetable.RateTableService = (*RateTableServiceImpl)(nil)
)

// NewRateTableService takes sources in priority order: a row from an earlier
// source shadows a row with the same key from a later one. repo may be nil.
func NewRateTableService(repo ratetable.RateTableRepository, sources ...ratetable.Source) *RateTableServiceImpl {
	return &RateTableServiceImpl{
		repo:    repo,
		sources: sources,
		now:     time.Now,
	}
}

// Reload rebuilds the table from all sources. On failure the previous table
// stays in place.
func (s *RateTableServiceImpl) Reload(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var merged ratetable.Rows
	seenRates := make(map[string]bool)
	seenBrackets := make(map[string]bool)

	for _, src := range s.sources {
		rows, err := src.Load(ctx)
		if err != nil {
			return fmt.Errorf("failed to load rate source %s: %w", src.Name(), err)
		}
		for _, r := range rows.Rates {
			key := string(r.Kind) + "|" + r.EffectiveFrom.Format(time.DateOnly)
			if seenRates[key] {
				continue
			}
			seenRates[key] = true
			merged.Rates = append(merged.Rates, r)
		}
		for _, b := range rows.Withholding {
			key := b.Tariff + "|" + b.EffectiveFrom.Format(time.DateOnly) + "|" + b.MinGross.String()
			if seenBrackets[key] {
				continue
			}
			seenBrackets[key] = true
			merged.Withholding = append(merged.Withholding, b)
		}
	}

	table, err := NewTable(merged, s.now())
	if err != nil {
		return err
	}
	s.current.Store(table)

	slog.Info("rate table loaded", "rates", len(merged.Rates), "withholding_brackets", len(merged.Withholding), "sources", len(s.sources))
	return nil
}

// Table returns the current snapshot. Callers that need reproducible results
// over many lookups should hold on to it instead of calling Rate repeatedly.
func (s *RateTableServiceImpl) Table() *Table {
	return s.current.Load()
}

func (s *RateTableServiceImpl) Rate(kind ratetable.Kind, on time.Time) (ratetable.Rate, error) {
	t := s.Table()
	if t == nil {
		return ratetable.Rate{}, &ratetable.RateError{Kind: kind, Date: on, Err: ratetable.ErrNoRateForDate}
	}
	return t.Rate(kind, on)
}

func (s *RateTableServiceImpl) Withholding(code string, monthlyGross decimal.Decimal, on time.Time) (decimal.Decimal, error) {
	t := s.Table()
	if t == nil {
		return decimal.Zero, ratetable.ErrNoRateForDate
	}
	return t.Withholding(code, monthlyGross, on)
}

// AppendRate persists a new row and reloads. Rows never change once written,
// so the new row has to start after every existing row of its kind.
func (s *RateTableServiceImpl) AppendRate(ctx context.Context, req ratetable.AppendRateRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	if s.repo == nil {
		return ratetable.ErrNoRepository
	}

	row := req.ToRow()
	if t := s.Table(); t != nil {
		if latest, ok := t.LatestFrom(row.Kind); ok && !row.EffectiveFrom.After(latest) {
			return fmt.Errorf("%w: %s already has a row from %s", ratetable.ErrRetroactiveRate, row.Kind, latest.Format(time.DateOnly))
		}
	}

	if err := s.repo.AppendRate(ctx, row); err != nil {
		return fmt.Errorf("failed to append rate: %w", err)
	}
	slog.Info("rate table row appended", "kind", row.Kind, "effective_from", row.EffectiveFrom.Format(time.DateOnly))

	return s.Reload(ctx)
}

// Current renders the snapshot for the API.
func (s *RateTableServiceImpl) Current() ratetable.TableResponse {
	t := s.Table()
	if t == nil {
		return ratetable.TableResponse{}
	}

	rows := t.Rows()
	resp := ratetable.TableResponse{
		LoadedAt:    t.LoadedAt(),
		Rates:       make([]ratetable.RateRowResponse, 0, len(rows.Rates)),
		Withholding: make([]ratetable.WithholdingBracketResponse, 0, len(rows.Withholding)),
	}
	for _, r := range rows.Rates {
		resp.Rates = append(resp.Rates, ratetable.RateRowResponse{
			Kind:          string(r.Kind),
			EffectiveFrom: r.EffectiveFrom.Format(time.DateOnly),
			EffectiveTo:   formatDate(r.EffectiveTo),
			Percent:       r.Percent,
			Ceiling:       r.Ceiling,
			Source:        r.Source,
		})
	}
	for _, b := range rows.Withholding {
		resp.Withholding = append(resp.Withholding, ratetable.WithholdingBracketResponse{
			Tariff:        b.Tariff,
			EffectiveFrom: b.EffectiveFrom.Format(time.DateOnly),
			EffectiveTo:   formatDate(b.EffectiveTo),
			MinGross:      b.MinGross,
			Percent:       b.Percent,
			Source:        b.Source,
		})
	}
	return resp
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.DateOnly)
	return &s
}
