package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidDate(t *testing.T) {
	assert.True(t, IsValidDate("2026-02-28"))
	assert.False(t, IsValidDate("2026-02-30"))
	assert.False(t, IsValidDate("2026-2-8"))
	assert.False(t, IsValidDate("not-a-date"))
	assert.False(t, IsValidDate(""))
}

func TestDaysInMonth(t *testing.T) {
	assert.Equal(t, 31, DaysInMonth(2026, 1))
	assert.Equal(t, 28, DaysInMonth(2026, 2))
	assert.Equal(t, 29, DaysInMonth(2028, 2)) // leap year
	assert.Equal(t, 30, DaysInMonth(2026, 4))
}

func TestAddDays(t *testing.T) {
	assert.Equal(t, "2026-03-01", AddDays("2026-02-28", 1))
	assert.Equal(t, "2025-12-31", AddDays("2026-01-01", -1))
	assert.Equal(t, "2026-02-28", AddDays("2026-02-28", 0))
}
