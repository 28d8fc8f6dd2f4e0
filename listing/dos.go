package listing

import (
	"strconv"
	"strings"
	"time"
)

// parseDOS handles the MS-DOS / IIS FTP service listing style:
//
//	01-02-23  03:04PM       <DIR>          name
//	01-02-23  03:04PM             1234     name
func parseDOS(lines []string, i int, now time.Time, tz time.Duration) (Entry, int, bool) {
	fields := strings.Fields(lines[i])
	if len(fields) < 4 {
		return Entry{}, 0, false
	}
	dateParts := strings.Split(fields[0], "-")
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
	} else if yy < 100 {
		yy += 1900
	}
	if mm < 1 || mm > 12 || dd < 1 || dd > 31 {
		return Entry{}, 0, false
	}

	clock := fields[1]
	ampm := ""
	if len(clock) > 2 {
		suffix := strings.ToUpper(clock[len(clock)-2:])
		if suffix == "AM" || suffix == "PM" {
			ampm = suffix
			clock = clock[:len(clock)-2]
		}
	}
	hm := strings.SplitN(clock, ":", 2)
	if len(hm) != 2 {
		return Entry{}, 0, false
	}
	hh, okh := atoi(hm[0])
	min, okm := atoi(hm[1])
	if !okh || !okm {
		return Entry{}, 0, false
	}
	if ampm == "PM" && hh < 12 {
		hh += 12
	} else if ampm == "AM" && hh == 12 {
		hh = 0
	}

	rest := fields[2:]
	e := Entry{ModTime: time.Date(yy, time.Month(mm), dd, hh, min, 0, 0, time.UTC), Precision: PrecisionMinute}
	if strings.EqualFold(rest[0], "<DIR>") {
		e.Kind = KindDir
		e.Size = -1
		e.Unsure |= UnsureSize
		e.Name = strings.Join(rest[1:], " ")
	} else {
		n, err := strconv.ParseInt(strings.ReplaceAll(rest[0], ",", ""), 10, 64)
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
