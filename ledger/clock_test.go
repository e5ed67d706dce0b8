package ledger_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/courtside/club-engine/ledger"
)

func TestDayKeyOf_TimezoneBoundary(t *testing.T) {
	// GIVEN: 23:30 local in Mexico City is already the next day in UTC
	loc, err := time.LoadLocation("America/Mexico_City")
	require.NoError(t, err)

	local := time.Date(2026, 3, 14, 23, 30, 0, 0, loc)

	// THEN: the facility day follows the facility clock, not UTC
	assert.Equal(t, ledger.DayKey("2026-03-14"), ledger.DayKeyOf(local, loc))
	assert.Equal(t, ledger.DayKey("2026-03-15"), ledger.DayKeyOf(local, time.UTC))
}

func TestDayKeyOf_NilLocationMeansUTC(t *testing.T) {
	at := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, ledger.DayKey("2026-01-02"), ledger.DayKeyOf(at, nil))
}

func TestParseDayKey(t *testing.T) {
	day, err := ledger.ParseDayKey("2026-02-28")
	require.NoError(t, err)
	assert.Equal(t, ledger.DayKey("2026-02-28"), day)

	_, err = ledger.ParseDayKey("28/02/2026")
	assert.Error(t, err)

	_, err = ledger.ParseDayKey("2026-02-30")
	assert.Error(t, err)

	_, err = ledger.ParseDayKey("")
	assert.Error(t, err)
}

func TestDayKey_InMonth(t *testing.T) {
	day := ledger.MustDayKey("2026-07-15")
	assert.True(t, day.InMonth(2026, time.July))
	assert.False(t, day.InMonth(2026, time.June))
	assert.False(t, day.InMonth(2025, time.July))
}

func TestMonthRange(t *testing.T) {
	from, to := ledger.MonthRange(2026, time.February)
	assert.Equal(t, ledger.DayKey("2026-02-01"), from)
	assert.Equal(t, ledger.DayKey("2026-02-28"), to)

	// Leap year
	from, to = ledger.MonthRange(2024, time.February)
	assert.Equal(t, ledger.DayKey("2024-02-01"), from)
	assert.Equal(t, ledger.DayKey("2024-02-29"), to)

	// December must not spill into January
	from, to = ledger.MonthRange(2026, time.December)
	assert.Equal(t, ledger.DayKey("2026-12-01"), from)
	assert.Equal(t, ledger.DayKey("2026-12-31"), to)
}
