package decile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func TestFromDate_Boundaries(t *testing.T) {
	tests := []struct {
		name string
		in   time.Time
		want int
	}{
		{"jan 1", date(2025, time.January, 1), 1},
		{"jan 10", date(2025, time.January, 10), 1},
		{"jan 11", date(2025, time.January, 11), 2},
		{"jan 20", date(2025, time.January, 20), 2},
		{"jan 21", date(2025, time.January, 21), 3},
		{"jan 31", date(2025, time.January, 31), 3},
		{"feb 29 leap", date(2024, time.February, 29), 6},
		{"oct 15", date(2025, time.October, 15), 29},
		{"dec 21", date(2025, time.December, 21), 36},
		{"dec 31", date(2025, time.December, 31), 36},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FromDate(tt.in))
		})
	}
}

func TestFromDate_AlwaysInRange(t *testing.T) {
	day := date(2024, time.January, 1)
	for i := 0; i < 366; i++ {
		d := FromDate(day)
		assert.True(t, Valid(d), "decile %d out of range for %s", d, day.Format("2006-01-02"))
		day = day.AddDate(0, 0, 1)
	}
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "Jan/Início", Label(1))
	assert.Equal(t, "Jan/Meio", Label(2))
	assert.Equal(t, "Mar/Fim", Label(9))
	assert.Equal(t, "Dez/Fim", Label(36))
	assert.Empty(t, Label(0))
	assert.Empty(t, Label(37))
}

func TestStart_RoundTrips(t *testing.T) {
	for d := Min; d <= Max; d++ {
		s := Start(2025, d, nil)
		assert.Equal(t, d, FromDate(s), "start of decile %d", d)
	}
	assert.Equal(t, date(2025, time.April, 21).Truncate(24*time.Hour), Start(2025, 12, time.UTC))
}
