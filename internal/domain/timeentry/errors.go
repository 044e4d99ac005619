package timeentry

import "errors"

var (
	ErrTimeEntryNotFound = errors.New("time entry not found")
	ErrInvalidTransition = errors.New("invalid time entry status transition")
	ErrNegativeHours     = errors.New("hours must not be negative")
	ErrNegativeBreak     = errors.New("break minutes must not be negative")
	ErrExceedsWeeklyCap  = errors.New("remote hours exceed the weekly remote cap")
	ErrDuplicateEntry    = errors.New("time entry already exists for this employee, date and type")
	ErrEntryImmutable    = errors.New("paid time entry cannot be modified")
	ErrInvalidEntryType  = errors.New("invalid time entry type")
)
