package listing

import (
	"strconv"
	"strings"
	"time"
)

// parseZVM handles VM/CMS minidisk listings:
//
//	MYFILE   TEXT     A1   F       80      142       2  6/02/23 07:23:45
//
// Columns: filename, filetype, filemode, format, lrecl, records, blocks,
// date (m/d/yy), time. The CMS "filename filetype" pair becomes the
// reported name joined with a space, matching how FileZilla-style
// clients display it.
func parseZVM(lines []string, i int, now time.Time, tz time.Duration) (Entry, int, bool) {
	fields := strings.Fields(lines[i])
	if len(fields) < 9 {
		return Entry{}, 0, false
	}
	if len(fields[2]) != 2 || (fields[2][1] < '0' || fields[2][1] > '9') {
		return Entry{}, 0, false
	}
	records, err := strconv.ParseInt(fields[5], 10, 64)
	if err != nil {
		return Entry{}, 0, false
	}
	dateParts := strings.Split(fields[7], "/")
	if len(dateParts) != 3 {
		return Entry{}, 0, false
	}
	month, ok1 := atoi(dateParts[0])
	day, ok2 := atoi(dateParts[1])
	yy, ok3 := atoi(dateParts[2])
	if !ok1 || !ok2 || !ok3 {
		return Entry{}, 0, false
	}
	if yy < 50 {
		yy += 2000
	} else {
		yy += 1900
	}

	hh, mm, ss := 0, 0, 0
	if hms := strings.Split(fields[8], ":"); len(hms) == 3 {
		hh, _ = atoi(hms[0])
		mm, _ = atoi(hms[1])
		ss, _ = atoi(hms[2])
	}

	return Entry{
		Name:      fields[0] + " " + fields[1],
		Kind:      KindFile,
		Size:      records,
		ModTime:   time.Date(yy, time.Month(month), day, hh, mm, ss, 0, time.UTC),
		Precision: PrecisionSecond,
	}, 1, true
}
