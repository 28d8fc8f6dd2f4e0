// Package serverpath implements typed remote paths whose segment
// separator and root syntax depend on the server's path type, as
// described in spec.md section 3 ("ServerPath").
package serverpath

import "strings"

// Type identifies the native path syntax of a server, driving how
// segments are split/joined and how an absolute path is recognized.
type Type int

const (
	Unix Type = iota
	VMS
	MVS
	DOS
)

// Path is a typed path in a server's native syntax. The zero value is
// the empty Unix path and is considered Empty.
type Path struct {
	typ      Type
	segments []string
	absolute bool
}

// New builds a Path by splitting raw on the separator appropriate to typ.
func New(typ Type, raw string) Path {
	p := Path{typ: typ}
	if raw == "" {
		return p
	}
	sep := separator(typ)
	if strings.HasPrefix(raw, sep) || (typ == DOS && len(raw) >= 2 && raw[1] == ':') {
		p.absolute = true
	}
	for _, seg := range strings.Split(raw, sep) {
		if seg != "" {
			p.segments = append(p.segments, seg)
		}
	}
	return p
}

func separator(typ Type) string {
	switch typ {
	case DOS:
		return "\\"
	default:
		return "/"
	}
}

// Empty reports whether the path carries no segments and is not an
// absolute root (i.e. it is the zero value / unset).
func (p Path) Empty() bool {
	return len(p.segments) == 0 && !p.absolute
}

// String formats the path back into its native syntax.
func (p Path) String() string {
	sep := separator(p.typ)
	joined := strings.Join(p.segments, sep)
	if p.absolute {
		return sep + joined
	}
	return joined
}

// FormatFilename renders path/name in native syntax, used when building
// wire commands (spec.md "format-filename").
func (p Path) FormatFilename(name string) string {
	child := p.AddSegment(name)
	return child.String()
}

// Parent returns the path with its last segment removed.
func (p Path) Parent() Path {
	if len(p.segments) == 0 {
		return p
	}
	np := Path{typ: p.typ, absolute: p.absolute}
	np.segments = append(np.segments, p.segments[:len(p.segments)-1]...)
	return np
}

// LastSegment returns the final path component, or "" if the path has
// no segments (e.g. root).
func (p Path) LastSegment() string {
	if len(p.segments) == 0 {
		return ""
	}
	return p.segments[len(p.segments)-1]
}

// AddSegment appends name and returns the new path.
func (p Path) AddSegment(name string) Path {
	np := Path{typ: p.typ, absolute: p.absolute}
	np.segments = append(np.segments, p.segments...)
	np.segments = append(np.segments, name)
	return np
}

// ChangeTo resolves dir against p: an absolute dir (per native syntax)
// replaces p outright, a relative one is appended segment by segment,
// with ".." popping a segment the way a Unix shell would.
func (p Path) ChangeTo(dir string) Path {
	np := New(p.typ, dir)
	if np.absolute {
		return np
	}
	result := Path{typ: p.typ, absolute: p.absolute}
	result.segments = append(result.segments, p.segments...)
	for _, seg := range np.segments {
		switch seg {
		case ".":
			// no-op
		case "..":
			if len(result.segments) > 0 {
				result.segments = result.segments[:len(result.segments)-1]
			}
		default:
			result.segments = append(result.segments, seg)
		}
	}
	return result
}

// IsSubdirectoryOf reports whether p is equal to or nested under other.
func (p Path) IsSubdirectoryOf(other Path) bool {
	if p.typ != other.typ || len(other.segments) > len(p.segments) {
		return false
	}
	for i, seg := range other.segments {
		if p.segments[i] != seg {
			return false
		}
	}
	return true
}

// Type returns the path's native syntax.
func (p Path) Type() Type { return p.typ }

// Equal reports structural equality.
func (p Path) Equal(other Path) bool {
	if p.typ != other.typ || p.absolute != other.absolute || len(p.segments) != len(other.segments) {
		return false
	}
	for i := range p.segments {
		if p.segments[i] != other.segments[i] {
			return false
		}
	}
	return true
}
