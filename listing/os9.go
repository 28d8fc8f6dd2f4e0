package listing

import (
	"strconv"
	"strings"
	"time"
)

// parseOS9 handles Microware OS-9 "dir e" extended listings:
//
//	STARTUP     d-rwr-wr-w  0.0    1234  02/06/23  07:23
//
// Columns: name, attributes (a leading 'd' marks a directory), owner
// (uid.gid), size, date (mm/dd/yy), time.
func parseOS9(lines []string, i int, now time.Time, tz time.Duration) (Entry, int, bool) {
	fields := strings.Fields(lines[i])
	if len(fields) < 5 {
		return Entry{}, 0, false
	}
	attrs := fields[1]
	if len(attrs) < 8 || !strings.Contains(fields[2], ".") {
		return Entry{}, 0, false
	}
	size, err := strconv.ParseInt(fields[3], 10, 64)
	if err != nil {
		return Entry{}, 0, false
	}
	dateParts := strings.Split(fields[4], "/")
	if len(dateParts) != 3 {
		return Entry{}, 0, false
	}
	mm, ok1 := atoi(dateParts[0])
	dd, ok2 := atoi(dateParts[1])
	yy, ok3 := atoi(dateParts[2])
	if !ok1 || !ok2 || !ok3 {
		return Entry{}, 0, false
	}
	if yy < 50 {
		yy += 2000
	} else {
		yy += 1900
	}

	e := Entry{Name: fields[0], Size: size, Owner: fields[2]}
	if attrs[0] == 'd' {
		e.Kind = KindDir
	} else {
		e.Kind = KindFile
	}
	if len(fields) >= 6 {
		if hms := strings.Split(fields[5], ":"); len(hms) == 2 {
			hh, _ := atoi(hms[0])
			mi, _ := atoi(hms[1])
			e.ModTime = time.Date(yy, time.Month(mm), dd, hh, mi, 0, 0, time.UTC)
			e.Precision = PrecisionMinute
			return e, 1, true
		}
	}
	e.ModTime = time.Date(yy, time.Month(mm), dd, 0, 0, 0, 0, time.UTC)
	e.Precision = PrecisionDay
	return e, 1, true
}
