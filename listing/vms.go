package listing

import (
	"strconv"
	"strings"
	"time"
)

// parseVMS handles OpenVMS FTP listings:
//
//	README.TXT;3        5/9           2-JUN-2023 07:23:04.00  [OWNER,GROUP]  (RWED,RWED,RE,)
//	SUBDIR.DIR;1         1/9           1-JAN-2023 00:00:00.00  [OWNER,GROUP]  (RWED,RWED,RE,)
//
// A long filename pushes the remaining fields onto a continuation line
// indented with whitespace; this is reassembled before parsing.
func parseVMS(lines []string, i int, now time.Time, tz time.Duration) (Entry, int, bool) {
	line := strings.TrimRight(lines[i], " \t")
	if line == "" {
		return Entry{}, 0, false
	}
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Entry{}, 0, false
	}
	name := fields[0]
	if !strings.Contains(name, ";") {
		return Entry{}, 0, false
	}

	consumed := 1
	rest := fields[1:]
	if len(rest) == 0 && i+1 < len(lines) {
		rest = strings.Fields(lines[i+1])
		consumed = 2
	}
	if len(rest) < 3 {
		return Entry{}, 0, false
	}

	var size int64 = -1
	unsure := Unsure(0)
	if slash := strings.IndexByte(rest[0], '/'); slash > 0 {
		if used, err := strconv.ParseInt(rest[0][:slash], 10, 64); err == nil {
			size = used * 512 // VMS reports size in 512-byte blocks
		} else {
			unsure |= UnsureSize
		}
	} else {
		unsure |= UnsureSize
	}

	e := Entry{Name: name, Size: size, Unsure: unsure}
	if t, ok := parseVMSTimestamp(rest[1], rest[2]); ok {
		e.ModTime = t
		e.Precision = PrecisionSecond
	} else {
		e.Unsure |= UnsureModTime
	}

	if strings.HasSuffix(strings.ToUpper(beforeSemicolon(name)), ".DIR") {
		e.Kind = KindDir
	} else {
		e.Kind = KindFile
	}
	return e, consumed, true
}

func beforeSemicolon(name string) string {
	if idx := strings.IndexByte(name, ';'); idx >= 0 {
		return name[:idx]
	}
	return name
}

func parseVMSTimestamp(dateTok, clockTok string) (time.Time, bool) {
	parts := strings.SplitN(dateTok, "-", 3)
	if len(parts) != 3 {
		return time.Time{}, false
	}
	day, ok1 := atoi(parts[0])
	month := MonthByName(parts[1])
	year, ok2 := atoi(parts[2])
	if !ok1 || !ok2 || month == 0 {
		return time.Time{}, false
	}
	hh, mm, ss := 0, 0, 0
	clock := strings.SplitN(clockTok, ".", 2)[0]
	hms := strings.Split(clock, ":")
	if len(hms) >= 1 {
		hh, _ = atoi(hms[0])
	}
	if len(hms) >= 2 {
		mm, _ = atoi(hms[1])
	}
	if len(hms) >= 3 {
		ss, _ = atoi(hms[2])
	}
	return time.Date(year, time.Month(month), day, hh, mm, ss, 0, time.UTC), true
}
