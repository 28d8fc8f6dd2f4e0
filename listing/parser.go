package listing

import (
	"strings"
	"time"
)

// EncodingHint tells the parser what charset the raw bytes are already
// known (or suspected) to be in, per spec.md section 4.7.
type EncodingHint int

const (
	EncodingUnknown EncodingHint = iota
	EncodingEBCDIC
	EncodingUTF8
)

// ServerTypeHint narrows which dialect attempts are tried first/at all,
// mirroring the Server.Type hint in spec.md section 3.
type ServerTypeHint int

const (
	HintAuto ServerTypeHint = iota
	HintUnix
	HintVMS
	HintMVS
	HintDOS
)

// dialect is a pure function attempting to parse one line's worth (or,
// for VMS, a reassembled multi-line record) into an Entry. Returning
// ok=false means "this dialect does not recognize this line"; the
// dispatcher tries the next one. This mirrors the design note in
// spec.md section 9: "a set of pure functions returning Option<Entry>".
type dialect struct {
	name  string
	parse func(lines []string, i int, now time.Time, tz time.Duration) (entry Entry, consumed int, ok bool)
}

// orderFor returns the dialects to try, in order, for a given type hint.
// Auto tries all of them; a hint reorders to put the likely dialect
// first without excluding the others (servers lie about their type).
func orderFor(hint ServerTypeHint) []dialect {
	all := []dialect{
		{"MLSD", parseMLSD},
		{"EPLF", parseEPLF},
		{"unix", parseUnixLongListing},
		{"dos", parseDOS},
		{"vms", parseVMS},
		{"mvs", parseMVS},
		{"zvm", parseZVM},
		{"hpnonstop", parseHPNonStop},
		{"wftp", parseWFTP},
		{"os9", parseOS9},
		{"raw", parseRawFilename},
	}
	preferred := map[ServerTypeHint]string{
		HintVMS: "vms",
		HintMVS: "mvs",
		HintDOS: "dos",
		HintUnix: "unix",
	}
	name, ok := preferred[hint]
	if !ok {
		return all
	}
	reordered := make([]dialect, 0, len(all))
	for _, d := range all {
		if d.name == name {
			reordered = append([]dialect{d}, reordered...)
		} else {
			reordered = append(reordered, d)
		}
	}
	return reordered
}

// Parse converts a raw listing buffer into a Listing. path is the
// directory the listing was fetched for. tz is the per-server timezone
// offset to apply to parsed mtimes (ignored for MLSD/MLST, which
// guarantee UTC, per spec.md section 4.7).
func Parse(path string, raw []byte, hint EncodingHint, typeHint ServerTypeHint, now time.Time, tz time.Duration) Listing {
	buf := raw
	if hint == EncodingUnknown && looksLikeEBCDIC(raw) {
		buf = NormalizeEncoding(raw)
	} else if hint == EncodingEBCDIC {
		buf = NormalizeEncoding(raw)
	}

	text := strings.ReplaceAll(string(buf), "\r\n", "\n")
	lines := strings.Split(text, "\n")
	// drop a single trailing blank line produced by the trailing newline
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	dialects := orderFor(typeHint)
	listing := Listing{Path: path}
	for i := 0; i < len(lines); {
		line := lines[i]
		if strings.TrimSpace(line) == "" {
			i++
			continue
		}
		matched := false
		for _, d := range dialects {
			entry, consumed, ok := d.parse(lines, i, now, tz)
			if !ok || consumed == 0 {
				continue
			}
			if d.name != "MLSD" {
				entry.ModTime = entry.ModTime.Add(-tz)
			}
			if typeHint == HintVMS {
				entry.Name = stripVMSVersion(entry.Name)
			}
			if entry.Name != "" {
				listing.Entries = append(listing.Entries, entry)
			}
			i += consumed
			matched = true
			break
		}
		if !matched {
			i++
		}
	}
	return listing
}

// stripVMSVersion removes the trailing ";N" version suffix VMS servers
// append to every filename, per spec.md section 4.7.
func stripVMSVersion(name string) string {
	if idx := strings.LastIndexByte(name, ';'); idx > 0 {
		allDigits := true
		for _, r := range name[idx+1:] {
			if r < '0' || r > '9' {
				allDigits = false
				break
			}
		}
		if allDigits && idx+1 < len(name) {
			return name[:idx]
		}
	}
	return name
}
