package ratetable

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrUnknownRateKind = errors.New("unknown rate kind")
	ErrNoRateForDate   = errors.New("no rate for date")
	ErrUnknownTariff   = errors.New("unknown withholding tariff")
	ErrRetroactiveRate = errors.New("rate must start after the latest existing row of its kind")
	ErrInvalidRow      = errors.New("invalid rate table row")
	ErrNoRepository    = errors.New("rate table has no writable repository")
)

// RateError carries the kind and date of a failed lookup.
type RateError struct {
	Kind Kind
	Date time.Time
	Err  error
}

func (e *RateError) Error() string {
	return fmt.Sprintf("rate %s on %s: %v", e.Kind, e.Date.Format(time.DateOnly), e.Err)
}

func (e *RateError) Unwrap() error {
	return e.Err
}
