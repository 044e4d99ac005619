package postgresql

import (
	"context"
	"fmt"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/ratetable"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/database"
)

type rateTableRepositoryImpl struct {
	db *database.DB
}

func NewRateTableRepository(db *database.DB) ratetable.RateTableRepository {
	return &rateTableRepositoryImpl{db: db}
}

// ListRates implements ratetable.RateTableRepository.
func (r *rateTableRepositoryImpl) ListRates(ctx context.Context) ([]ratetable.Row, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT kind, effective_from, effective_to, percent, ceiling, source
		FROM rate_table_rows
		ORDER BY kind, effective_from, id
	`

	rows, err := q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list rate table rows: %w", err)
	}
	defer rows.Close()

	var out []ratetable.Row
	for rows.Next() {
		var row ratetable.Row
		if err := rows.Scan(&row.Kind, &row.EffectiveFrom, &row.EffectiveTo, &row.Percent, &row.Ceiling, &row.Source); err != nil {
			return nil, fmt.Errorf("failed to scan rate table row: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// ListWithholding implements ratetable.RateTableRepository.
func (r *rateTableRepositoryImpl) ListWithholding(ctx context.Context) ([]ratetable.WithholdingBracket, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		SELECT tariff, effective_from, effective_to, min_gross, percent, source
		FROM withholding_brackets
		ORDER BY tariff, effective_from, min_gross
	`

	rows, err := q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list withholding brackets: %w", err)
	}
	defer rows.Close()

	var out []ratetable.WithholdingBracket
	for rows.Next() {
		var b ratetable.WithholdingBracket
		if err := rows.Scan(&b.Tariff, &b.EffectiveFrom, &b.EffectiveTo, &b.MinGross, &b.Percent, &b.Source); err != nil {
			return nil, fmt.Errorf("failed to scan withholding bracket: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// AppendRate implements ratetable.RateTableRepository. Rows are never
// updated; a correction is a new row with a later effective date.
func (r *rateTableRepositoryImpl) AppendRate(ctx context.Context, row ratetable.Row) error {
	q := GetQuerier(ctx, r.db)

	source := row.Source
	if source == "" {
		source = "database"
	}

	query := `
		INSERT INTO rate_table_rows (kind, effective_from, effective_to, percent, ceiling, source)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	if _, err := q.Exec(ctx, query, row.Kind, row.EffectiveFrom, row.EffectiveTo, row.Percent, row.Ceiling, source); err != nil {
		return fmt.Errorf("failed to append rate row %s: %w", row.Kind, err)
	}
	return nil
}
