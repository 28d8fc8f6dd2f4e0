package listing

import (
	"strconv"
	"time"
)

// shortDateLayout is the family of ambiguous dd/mm/yy-ish dates a
// directory listing dialect may use, disambiguated per spec.md 4.7:
// dd-mm-yyyy, yyyy-mm-dd, mm/dd/yy; yy<50 => 2000s else 1900s.
func parseShortDate(a, b, c int, now time.Time) (time.Time, bool) {
	switch {
	case a > 31 && a > 999: // yyyy-mm-dd
		return buildDate(a, b, c)
	case c > 31 && c > 999: // dd-mm-yyyy
		return buildDate(c, b, a)
	default: // mm/dd/yy
		year := c
		if year < 50 {
			year += 2000
		} else if year < 100 {
			year += 1900
		}
		return buildDate(year, a, b)
	}
}

func buildDate(year, month, day int) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), true
}

// resolveYearlessDate picks, for a Unix-style "Mon  2 15:04" listing
// with no year, the most recent year that keeps the result within about
// one year of now, per spec.md section 4.7.
func resolveYearlessDate(month, day int, clock string, now time.Time) time.Time {
	hh, mm := 0, 0
	if clock != "" {
		if t, err := time.Parse("15:04", clock); err == nil {
			hh, mm = t.Hour(), t.Minute()
		}
	}
	candidate := time.Date(now.Year(), time.Month(month), day, hh, mm, 0, 0, time.UTC)
	if candidate.After(now.AddDate(0, 0, 1)) {
		candidate = candidate.AddDate(-1, 0, 0)
	}
	return candidate
}

func atoi(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	return n, err == nil
}
