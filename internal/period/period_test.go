package period

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNamedPeriods(t *testing.T) {
	loc := time.FixedZone("PKT", 5*3600)
	now := time.Date(2026, time.March, 15, 18, 30, 0, 0, loc)
	at := func(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, loc) }

	cases := []struct {
		name     string
		from, to time.Time
	}{
		{Today, at(2026, 3, 15), at(2026, 3, 16)},
		{Yesterday, at(2026, 3, 14), at(2026, 3, 15)},
		{Last7Days, at(2026, 3, 9), at(2026, 3, 16)},
		{ThisMonth, at(2026, 3, 1), at(2026, 4, 1)},
		{LastMonth, at(2026, 2, 1), at(2026, 3, 1)},
		{ThisYear, at(2026, 1, 1), at(2027, 1, 1)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r, err := Named(tc.name, now)
			require.NoError(t, err)
			require.NotNil(t, r.From)
			require.NotNil(t, r.To)
			assert.True(t, r.From.Equal(tc.from), "from %s", r.From)
			assert.True(t, r.To.Equal(tc.to), "to %s", r.To)
		})
	}
}

func TestLastMonthInJanuary(t *testing.T) {
	now := time.Date(2026, time.January, 3, 8, 0, 0, 0, time.UTC)
	r, err := Named(LastMonth, now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, time.December, 1, 0, 0, 0, 0, time.UTC), *r.From)
	assert.Equal(t, time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC), *r.To)
}

func TestAllTimeIsUnbounded(t *testing.T) {
	r, err := Named(AllTime, time.Now())
	require.NoError(t, err)
	assert.Nil(t, r.From)
	assert.Nil(t, r.To)
	assert.True(t, r.Contains(time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC)))

	_, err = Named("fortnight", time.Now())
	assert.Error(t, err)
}

func TestBetweenIsInclusiveOfLastDay(t *testing.T) {
	r, err := Between("2026-02-01", "2026-02-28", time.UTC)
	require.NoError(t, err)
	assert.True(t, r.Contains(time.Date(2026, 2, 28, 23, 59, 0, 0, time.UTC)))
	assert.False(t, r.Contains(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)))
	assert.False(t, r.Contains(time.Date(2026, 1, 31, 23, 59, 0, 0, time.UTC)))

	_, err = Between("2026-02-10", "2026-02-01", time.UTC)
	assert.Error(t, err)
	_, err = Between("02/10/2026", "2026-02-11", time.UTC)
	assert.Error(t, err)
}

func TestResolvePrefersExplicitDates(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	r, err := Resolve(Today, "2026-05-01", "2026-05-02", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 5, 3, 0, 0, 0, 0, time.UTC), *r.To)
}

func TestSameDayUsesLocation(t *testing.T) {
	loc := time.FixedZone("PKT", 5*3600)
	// 20:00 UTC on the 1st is 01:00 on the 2nd in PKT.
	a := time.Date(2026, 4, 1, 20, 0, 0, 0, time.UTC)
	b := time.Date(2026, 4, 2, 9, 0, 0, 0, loc)
	assert.True(t, SameDay(a, b, loc))
	assert.False(t, SameDay(a, b, time.UTC))
}
