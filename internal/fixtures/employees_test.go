package fixtures

import (
	"testing"
	"time"

	"github.com/cmlabs-hris/payroll-engine/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDemoEmployees_PayableContracts(t *testing.T) {
	march := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	numbers := map[string]bool{}

	for _, e := range DemoEmployees() {
		t.Run(e.EmployeeNumber, func(t *testing.T) {
			assert.False(t, numbers[e.EmployeeNumber], "employee numbers are unique")
			numbers[e.EmployeeNumber] = true

			require.NotNil(t, e.HourlyRate)
			assert.True(t, e.HourlyRate.IsPositive())
			assert.True(t, e.HoursPerWeek.IsPositive())
			assert.True(t, e.EmployedDuring(march, march.AddDate(0, 1, -1)))
			if e.BVGInsured {
				require.NotNil(t, e.BVGContributionRate)
			}
			if e.IsQuellensteuer {
				require.NotNil(t, e.QuellensteuerCode)
			}
		})
	}
}

func TestSeedEmployees(t *testing.T) {
	store := memory.NewStore()
	seeded := SeedEmployees(store)
	require.Len(t, seeded, len(DemoEmployees()))

	repo := memory.NewEmployeeRepository(store)
	got, err := repo.GetByID(t.Context(), seeded[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "E-001", got.EmployeeNumber)
	assert.False(t, got.CreatedAt.IsZero())
}
