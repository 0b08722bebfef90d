// Package decile maps calendar dates onto the 36 ten-day planting windows
// (decêndios) used by the ZARC-style risk table.
package decile

import "time"

const (
	// Min is the first decile of the year (January 1-10).
	Min = 1
	// Max is the last decile of the year (December 21-31).
	Max = 36
)

var monthAbbrev = [12]string{
	"Jan", "Fev", "Mar", "Abr", "Mai", "Jun",
	"Jul", "Ago", "Set", "Out", "Nov", "Dez",
}

var partSuffix = [3]string{"Início", "Meio", "Fim"}

// FromDate returns the decile in [1,36] that contains t.
// Days 1-10 are the first part of the month, 11-20 the second, the rest the third.
func FromDate(t time.Time) int {
	part := 3
	switch day := t.Day(); {
	case day <= 10:
		part = 1
	case day <= 20:
		part = 2
	}
	return (int(t.Month())-1)*3 + part
}

// Valid reports whether d is a decile number.
func Valid(d int) bool {
	return d >= Min && d <= Max
}

// Label returns a human-readable name such as "Jan/Início" or "Dez/Fim".
// It returns "" for out-of-range values.
func Label(d int) string {
	if !Valid(d) {
		return ""
	}
	return monthAbbrev[(d-1)/3] + "/" + partSuffix[(d-1)%3]
}

// Start returns the first day of decile d in the given year, in loc.
func Start(year, d int, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	month := time.Month((d-1)/3 + 1)
	day := ((d-1)%3)*10 + 1
	return time.Date(year, month, day, 0, 0, 0, 0, loc)
}
