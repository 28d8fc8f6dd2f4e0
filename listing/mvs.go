package listing

import (
	"strconv"
	"strings"
	"time"
)

// parseMVS handles z/OS partitioned-dataset member listings. The header
// row is skipped; member rows look like:
//
//	MEMBER1  01.01 2023/01/02 2023/06/02 07:23    15    15     0 USERID
//
// (name, version.modification, created, changed-date, changed-time,
// size-in-lines, init-size, mod-count, userid). Members have no
// directory/file distinction in MVS, so every entry is a file.
func parseMVS(lines []string, i int, now time.Time, tz time.Duration) (Entry, int, bool) {
	fields := strings.Fields(lines[i])
	if len(fields) < 8 {
		return Entry{}, 0, false
	}
	if strings.EqualFold(fields[0], "Name") || strings.EqualFold(fields[0], "Volume") {
		return Entry{}, 1, true
	}
	if !strings.Contains(fields[1], ".") {
		return Entry{}, 0, false
	}

	changedDate := strings.Split(fields[3], "/")
	if len(changedDate) != 3 {
		return Entry{}, 0, false
	}
	year, ok1 := atoi(changedDate[0])
	month, ok2 := atoi(changedDate[1])
	day, ok3 := atoi(changedDate[2])
	if !ok1 || !ok2 || !ok3 {
		return Entry{}, 0, false
	}

	e := Entry{Name: fields[0], Kind: KindFile}
	hh, mm := 0, 0
	if hm := strings.SplitN(fields[4], ":", 2); len(hm) == 2 {
		hh, _ = atoi(hm[0])
		mm, _ = atoi(hm[1])
		e.Precision = PrecisionMinute
	} else {
		e.Precision = PrecisionDay
	}
	e.ModTime = time.Date(year, time.Month(month), day, hh, mm, 0, 0, time.UTC)

	if n, err := strconv.ParseInt(fields[5], 10, 64); err == nil {
		e.Size = n
	} else {
		e.Size = -1
		e.Unsure |= UnsureSize
	}
	e.Owner = fields[len(fields)-1]
	return e, 1, true
}
