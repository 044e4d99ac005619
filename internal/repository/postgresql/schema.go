package postgresql

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/cmlabs-hris/payroll-engine/internal/pkg/database"
)

//go:embed schema.sql
var schemaSQL string

// EnsureSchema creates the payroll tables when missing. The employees table
// belongs to the HR system and is only created for local setups.
func EnsureSchema(ctx context.Context, db *database.DB) error {
	if _, err := db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
