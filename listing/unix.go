package listing

import (
	"strconv"
	"strings"
	"time"
)

// parseUnixLongListing handles the classic "ls -l" style line produced
// by the overwhelming majority of FTP servers:
//
//	drwxr-xr-x  2 user group      4096 Jan  2 15:04 name
//	-rw-r--r--  1 user group    123456 Jan  2  2023 name
//	lrwxrwxrwx  1 user group         7 Jan  2  2023 name -> target
//
// A leading "total NNN" line is consumed (matched, zero entries).
func parseUnixLongListing(lines []string, i int, now time.Time, tz time.Duration) (Entry, int, bool) {
	line := lines[i]
	if strings.HasPrefix(line, "total ") {
		return Entry{}, 1, true
	}
	if len(line) < 10 {
		return Entry{}, 0, false
	}
	perms := line[:10]
	if !isPermissionString(perms) {
		return Entry{}, 0, false
	}

	fields := strings.Fields(line[10:])
	// links, owner, group, size, month, day, year-or-clock, ... name
	if len(fields) < 6 {
		return Entry{}, 0, false
	}

	idx := 1 // skip link count
	owner, group := "", ""
	if idx < len(fields) {
		if _, err := strconv.ParseInt(fields[idx], 10, 64); err != nil {
			owner = fields[idx]
			idx++
		}
	}
	if idx < len(fields) {
		if _, err := strconv.ParseInt(fields[idx], 10, 64); err != nil {
			group = fields[idx]
			idx++
		}
	}

	if idx >= len(fields) {
		return Entry{}, 0, false
	}
	size, sizeErr := strconv.ParseInt(fields[idx], 10, 64)
	idx++

	if idx+2 >= len(fields) {
		return Entry{}, 0, false
	}
	month := MonthByName(fields[idx])
	if month == 0 {
		return Entry{}, 0, false
	}
	day, dayOK := atoi(fields[idx+1])
	if !dayOK {
		return Entry{}, 0, false
	}
	yearOrClock := fields[idx+2]
	idx += 3

	if idx >= len(fields) {
		return Entry{}, 0, false
	}
	name := strings.Join(fields[idx:], " ")

	e := Entry{Name: name, Permissions: perms, Owner: owner, Group: group}
	if sizeErr == nil {
		e.Size = size
	} else {
		e.Size = -1
		e.Unsure |= UnsureSize
	}

	if strings.Contains(yearOrClock, ":") {
		e.ModTime = resolveYearlessDate(month, day, yearOrClock, now)
		e.Precision = PrecisionMinute
	} else if year, ok := atoi(yearOrClock); ok {
		e.ModTime = time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
		e.Precision = PrecisionDay
	} else {
		e.Unsure |= UnsureModTime
	}

	switch perms[0] {
	case 'd':
		e.Kind = KindDir
	case 'l':
		e.Kind = KindLink
		if arrow := strings.Index(e.Name, " -> "); arrow >= 0 {
			e.LinkTarget = e.Name[arrow+4:]
			e.Name = e.Name[:arrow]
		}
	default:
		e.Kind = KindFile
	}
	return e, 1, true
}

func isPermissionString(s string) bool {
	if len(s) != 10 {
		return false
	}
	switch s[0] {
	case '-', 'd', 'l', 'b', 'c', 'p', 's':
	default:
		return false
	}
	for _, r := range s[1:] {
		switch r {
		case 'r', 'w', 'x', '-', 's', 'S', 't', 'T':
		default:
			return false
		}
	}
	return true
}
