package listing

import (
	"strings"
	"time"
)

// parseRawFilename is the last-resort dialect: when nothing else
// recognizes a line, the whole trimmed line is treated as a filename
// with every other attribute marked unsure, per spec.md section 4.7's
// "raw fallback" dialect. It always matches, so it must stay last in
// the dispatch order.
func parseRawFilename(lines []string, i int, now time.Time, tz time.Duration) (Entry, int, bool) {
	name := strings.TrimSpace(lines[i])
	if name == "" {
		return Entry{}, 0, false
	}
	return Entry{
		Name:   name,
		Size:   -1,
		Kind:   KindFile,
		Unsure: UnsureSize | UnsureModTime | UnsurePermissions | UnsureOwner | UnsureKind,
	}, 1, true
}
