package funding

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// SETTINGS - Explicit configuration snapshot
// =============================================================================

// Settings is passed explicitly into the calculator, validator, and
// transition processor. There is no hidden global configuration; callers
// build one snapshot at startup and inject it.
type Settings struct {
	// DaysPerMonth is the standardized month length for payroll pro-ration.
	// Every calendar month is treated as exactly this many days.
	DaysPerMonth decimal.Decimal

	// FTETolerance is the allowed deviation (in percentage points) of an
	// allocation set's total from 100.
	FTETolerance decimal.Decimal

	// MoneyPlaces is the currency rounding precision.
	MoneyPlaces int32

	// DefaultProbationMonths is used to derive a missing probation-end date
	// from the start date at employment creation.
	DefaultProbationMonths int
}

func DefaultSettings() Settings {
	return Settings{
		DaysPerMonth:           decimal.NewFromInt(30),
		FTETolerance:           decimal.NewFromFloat(0.01),
		MoneyPlaces:            2,
		DefaultProbationMonths: 3,
	}
}
