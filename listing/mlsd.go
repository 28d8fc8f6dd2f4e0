package listing

import (
	"strconv"
	"strings"
	"time"
)

// parseMLSD handles RFC 3659 MLSD facts lines:
//
//	type=file;size=1234;modify=20230102030405; name.txt
//
// Facts are UTC per the RFC, so callers must not apply the server
// timezone offset to the result (parser.go special-cases this dialect).
func parseMLSD(lines []string, i int, now time.Time, tz time.Duration) (Entry, int, bool) {
	line := lines[i]
	sp := strings.IndexByte(line, ' ')
	if sp < 0 || !strings.Contains(line[:sp], "=") {
		return Entry{}, 0, false
	}
	facts := line[:sp]
	name := line[sp+1:]
	if name == "" {
		return Entry{}, 0, false
	}

	e := Entry{Name: name, Size: -1, Unsure: UnsureSize | UnsureModTime | UnsurePermissions | UnsureOwner}
	found := false
	for _, part := range strings.Split(facts, ";") {
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		key, val := strings.ToLower(kv[0]), kv[1]
		found = true
		switch key {
		case "type":
			switch strings.ToLower(val) {
			case "dir", "cdir", "pdir":
				e.Kind = KindDir
				e.Unsure &^= UnsureKind
			case "file":
				e.Kind = KindFile
				e.Unsure &^= UnsureKind
			case "os.unix=symlink":
				e.Kind = KindLink
				e.Unsure &^= UnsureKind
			}
		case "size":
			if n, err := strconv.ParseInt(val, 10, 64); err == nil {
				e.Size = n
				e.Unsure &^= UnsureSize
			}
		case "modify":
			if t, ok := parseMLSDTimestamp(val); ok {
				e.ModTime = t
				e.Precision = PrecisionSecond
				e.Unsure &^= UnsureModTime
			}
		case "perm":
			e.Permissions = val
			e.Unsure &^= UnsurePermissions
		case "unix.owner", "unix.uid":
			e.Owner = val
			e.Unsure &^= UnsureOwner
		case "unix.group", "unix.gid":
			e.Group = val
		case "unix.mode":
			e.Permissions = val
			e.Unsure &^= UnsurePermissions
		}
	}
	if !found {
		return Entry{}, 0, false
	}
	return e, 1, true
}

func parseMLSDTimestamp(val string) (time.Time, bool) {
	layouts := []string{"20060102150405.000", "20060102150405"}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, val); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}
