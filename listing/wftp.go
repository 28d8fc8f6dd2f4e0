package listing

import (
	"strconv"
	"strings"
	"time"
)

// parseWFTP handles the War FTP Daemon listing style, a DOS-like format
// that differs from parseDOS by using a 4-digit year and 24-hour clock
// with no AM/PM marker:
//
//	01-02-2023  15:04       <DIR>          name
//	01-02-2023  15:04             1234     name
func parseWFTP(lines []string, i int, now time.Time, tz time.Duration) (Entry, int, bool) {
	fields := strings.Fields(lines[i])
	if len(fields) < 4 {
		return Entry{}, 0, false
	}
	dateParts := strings.Split(fields[0], "-")
	if len(dateParts) != 3 || len(dateParts[2]) != 4 {
		return Entry{}, 0, false
	}
	mm, ok1 := atoi(dateParts[0])
	dd, ok2 := atoi(dateParts[1])
	yyyy, ok3 := atoi(dateParts[2])
	if !ok1 || !ok2 || !ok3 || mm < 1 || mm > 12 || dd < 1 || dd > 31 {
		return Entry{}, 0, false
	}

	hm := strings.SplitN(fields[1], ":", 2)
	if len(hm) != 2 {
		return Entry{}, 0, false
	}
	hh, okh := atoi(hm[0])
	min, okm := atoi(hm[1])
	if !okh || !okm || hh > 23 {
		return Entry{}, 0, false
	}

	rest := fields[2:]
	e := Entry{ModTime: time.Date(yyyy, time.Month(mm), dd, hh, min, 0, 0, time.UTC), Precision: PrecisionMinute}
	if strings.EqualFold(rest[0], "<DIR>") {
		e.Kind = KindDir
		e.Size = -1
		e.Unsure |= UnsureSize
		e.Name = strings.Join(rest[1:], " ")
	} else {
		n, err := strconv.ParseInt(rest[0], 10, 64)
		if err != nil {
			return Entry{}, 0, false
		}
		e.Kind = KindFile
		e.Size = n
		e.Name = strings.Join(rest[1:], " ")
	}
	if e.Name == "" {
		return Entry{}, 0, false
	}
	return e, 1, true
}
