package memory

import (
	"context"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/ratetable"
)

type rateTableRepository struct {
	s *Store
}

func NewRateTableRepository(s *Store) ratetable.RateTableRepository {
	return &rateTableRepository{s: s}
}

func (r *rateTableRepository) ListRates(_ context.Context) ([]ratetable.Row, error) {
	var out []ratetable.Row
	r.s.read(func() { out = append(out, r.s.rates...) })
	return out, nil
}

func (r *rateTableRepository) ListWithholding(_ context.Context) ([]ratetable.WithholdingBracket, error) {
	var out []ratetable.WithholdingBracket
	r.s.read(func() { out = append(out, r.s.withholding...) })
	return out, nil
}

func (r *rateTableRepository) AppendRate(ctx context.Context, row ratetable.Row) error {
	return r.s.write(ctx, "rate_table.append", func() error {
		r.s.rates = append(r.s.rates, row)
		return nil
	})
}

// PutWithholding seeds withholding brackets.
func (s *Store) PutWithholding(brackets ...ratetable.WithholdingBracket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.withholding = append(s.withholding, brackets...)
}
