package listing

import (
	"strconv"
	"strings"
	"time"
)

// parseEPLF handles the "Easily Parsed List Format" djb defined for
// publicfile/ucspi-tcp servers:
//
//	+i8388621.29609,m824255902,/,	dev
//	+i8388621.44468,m841947445,r,s10376,	RFCEPLF
//
// Fields between the leading '+' and trailing tab are comma-separated,
// each starting with a one-letter tag; the name follows the tab.
func parseEPLF(lines []string, i int, now time.Time, tz time.Duration) (Entry, int, bool) {
	line := lines[i]
	if len(line) == 0 || line[0] != '+' {
		return Entry{}, 0, false
	}
	tab := strings.IndexByte(line, '\t')
	if tab < 0 {
		return Entry{}, 0, false
	}
	fields := line[1:tab]
	name := line[tab+1:]
	if name == "" {
		return Entry{}, 0, false
	}

	e := Entry{Name: name, Size: -1, Kind: KindFile, Unsure: UnsureSize | UnsureModTime | UnsurePermissions | UnsureOwner}
	recognized := false
	for _, f := range strings.Split(fields, ",") {
		if f == "" {
			continue
		}
		tag, val := f[0], f[1:]
		switch tag {
		case '/':
			e.Kind = KindDir
			e.Unsure &^= UnsureKind
			recognized = true
		case 'r':
			e.Kind = KindFile
			e.Unsure &^= UnsureKind
			recognized = true
		case 's':
			if n, err := strconv.ParseInt(val, 10, 64); err == nil {
				e.Size = n
				e.Unsure &^= UnsureSize
			}
		case 'm':
			if n, err := strconv.ParseInt(val, 10, 64); err == nil {
				e.ModTime = time.Unix(n, 0).UTC()
				e.Precision = PrecisionSecond
				e.Unsure &^= UnsureModTime
			}
		case 'i':
			recognized = true
		}
	}
	if !recognized {
		return Entry{}, 0, false
	}
	return e, 1, true
}
