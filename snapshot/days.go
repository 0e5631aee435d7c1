package snapshot

import (
	"strings"
	"time"
)

// FarFuture is what DaysUntil reports for a missing date, so that every
// "within N days" rule skips it.
const FarFuture = 99999

// DaysUntil returns the number of calendar days from now's date to target's
// date. Each date is read in its own location, which keeps date-only values
// on the day they were written. Negative results are in the past.
func DaysUntil(target, now time.Time) int {
	if target.IsZero() {
		return FarFuture
	}
	ty, tm, td := target.Date()
	ny, nm, nd := now.Date()
	return civilDays(ty, tm, td) - civilDays(ny, nm, nd)
}

// DaysSince returns how many calendar days ago target was. A missing date
// counts as today (0).
func DaysSince(target, now time.Time) int {
	if target.IsZero() {
		return 0
	}
	return -DaysUntil(target, now)
}

// civilDays counts days since 1970-01-01 in the proleptic Gregorian calendar.
// It avoids time.Duration, which overflows for far-off years.
func civilDays(year int, month time.Month, day int) int {
	y := year
	m := int(month)
	if m <= 2 {
		y--
	}
	era := y / 400
	if y < 0 && y%400 != 0 {
		era--
	}
	yoe := y - era*400
	mp := (m + 9) % 12
	doy := (153*mp+2)/5 + day - 1
	doe := yoe*365 + yoe/4 - yoe/100 + doy
	return era*146097 + doe - 719468
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
}

// ParseDate reads a date from the shapes records arrive in. Anything it
// cannot read becomes the zero time, which rules treat as "no date".
func ParseDate(v any) time.Time {
	switch d := v.(type) {
	case time.Time:
		return d
	case *time.Time:
		if d == nil {
			return time.Time{}
		}
		return *d
	case []byte:
		return parseDateString(string(d))
	case string:
		return parseDateString(d)
	default:
		return time.Time{}
	}
}

func parseDateString(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
