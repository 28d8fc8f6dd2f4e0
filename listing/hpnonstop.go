package listing

import (
	"strconv"
	"strings"
	"time"
)

// parseHPNonStop handles HP NonStop (Guardian/OSS) FILEINFO-style
// listings:
//
//	MYFILE          1  2048   4JUN2023  7:23 MYOWNER
//
// Columns: name, code(unused), size, date (DMonYYYY), time, owner.
func parseHPNonStop(lines []string, i int, now time.Time, tz time.Duration) (Entry, int, bool) {
	fields := strings.Fields(lines[i])
	if len(fields) < 6 {
		return Entry{}, 0, false
	}
	size, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return Entry{}, 0, false
	}
	day, month, year, ok := splitDMonYYYY(fields[3])
	if !ok {
		return Entry{}, 0, false
	}
	hh, mm := 0, 0
	if hms := strings.Split(fields[4], ":"); len(hms) == 2 {
		hh, _ = atoi(hms[0])
		mm, _ = atoi(hms[1])
	} else {
		return Entry{}, 0, false
	}

	return Entry{
		Name:      fields[0],
		Kind:      KindFile,
		Size:      size,
		ModTime:   time.Date(year, time.Month(month), day, hh, mm, 0, 0, time.UTC),
		Precision: PrecisionMinute,
		Owner:     fields[5],
	}, 1, true
}

// splitDMonYYYY parses a run-together "4JUN2023" style date token.
func splitDMonYYYY(tok string) (day, month, year int, ok bool) {
	idx := 0
	for idx < len(tok) && tok[idx] >= '0' && tok[idx] <= '9' {
		idx++
	}
	if idx == 0 || idx > 2 {
		return 0, 0, 0, false
	}
	day, _ = atoi(tok[:idx])
	rest := tok[idx:]
	if len(rest) < 7 {
		return 0, 0, 0, false
	}
	month = MonthByName(rest[:3])
	if month == 0 {
		return 0, 0, 0, false
	}
	year, okYear := atoi(rest[3:])
	if !okYear {
		return 0, 0, 0, false
	}
	return day, month, year, true
}
