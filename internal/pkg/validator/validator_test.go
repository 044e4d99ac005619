package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsEmpty(t *testing.T) {
	cases := []struct {
		input string
		want  bool
	}{
		{"", true},
		{"   ", true},
		{"abc", false},
		{" abc ", false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, IsEmpty(c.input), "IsEmpty(%q)", c.input)
	}
}

func TestIsValidUUID(t *testing.T) {
	valid := []string{
		"0188d0f2-7b8c-7b4a-8a2b-6b8b8b8b8b8b",
		"0188D0F2-7B8C-7B4A-8A2B-6B8B8B8B8B8B",
	}
	invalid := []string{
		"123e4567-e89b-12d3-a456-426614174000", // v1
		"0188d0f27b8c7b4a8a2b6b8b8b8b8b8b",
		"g188d0f2-7b8c-7b4a-8a2b-6b8b8b8b8b8b",
		"",
	}
	for _, id := range valid {
		assert.True(t, IsValidUUID(id), id)
	}
	for _, id := range invalid {
		assert.False(t, IsValidUUID(id), id)
	}
}

func TestIsValidDate(t *testing.T) {
	d, ok := IsValidDate("2025-02-28")
	assert.True(t, ok)
	assert.Equal(t, 28, d.Day())

	_, ok = IsValidDate("2025-02-30")
	assert.False(t, ok)
	_, ok = IsValidDate("28.02.2025")
	assert.False(t, ok)
}

func TestIsValidClockTime(t *testing.T) {
	for _, s := range []string{"00:00", "08:30", "23:59"} {
		assert.True(t, IsValidClockTime(s), s)
	}
	for _, s := range []string{"24:00", "8:30", "12:60", "", "noon"} {
		assert.False(t, IsValidClockTime(s), s)
	}
}

func TestValidationErrors(t *testing.T) {
	var errs ValidationErrors
	assert.NoError(t, errs.OrNil())

	errs.Add("hours", "must not be negative")
	errs.Add("entry_date", "is required")

	err := errs.OrNil()
	assert.Error(t, err)
	assert.Equal(t, "hours: must not be negative; entry_date: is required", err.Error())
	assert.Equal(t, map[string]string{
		"hours":      "must not be negative",
		"entry_date": "is required",
	}, errs.ToMap())
}

func TestIsValidMonthAndYear(t *testing.T) {
	assert.True(t, IsValidMonth(1))
	assert.True(t, IsValidMonth(12))
	assert.False(t, IsValidMonth(0))
	assert.False(t, IsValidMonth(13))
	assert.True(t, IsValidPayrollYear(2025))
	assert.False(t, IsValidPayrollYear(1999))
}
