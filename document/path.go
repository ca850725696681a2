package document

import (
	"strconv"
	"strings"
)

// Segment is one step from a mapping into a child. Indexes holds any
// sequence positions addressed below that key, rendered as `key[0][1]`.
type Segment struct {
	Key     string
	Indexes []int
}

func (s Segment) String() string {
	if len(s.Indexes) == 0 {
		return s.Key
	}
	var b strings.Builder
	b.WriteString(s.Key)
	for _, idx := range s.Indexes {
		b.WriteByte('[')
		b.WriteString(strconv.Itoa(idx))
		b.WriteByte(']')
	}
	return b.String()
}

// Path addresses a node from the document root. Values are never mutated
// in place; Child and Index return fresh copies.
type Path []Segment

// String renders the dotted form used in signatures and messages.
func (p Path) String() string {
	parts := make([]string, len(p))
	for i, seg := range p {
		parts[i] = seg.String()
	}
	return strings.Join(parts, ".")
}

// Child returns p extended with a mapping key.
func (p Path) Child(key string) Path {
	out := p.clone(1)
	return append(out, Segment{Key: key})
}

// Index returns p with idx appended to the last segment. An empty path
// gains an unnamed segment so root sequences stay addressable.
func (p Path) Index(idx int) Path {
	if len(p) == 0 {
		return Path{{Indexes: []int{idx}}}
	}
	out := p.clone(0)
	last := out[len(out)-1]
	indexes := make([]int, len(last.Indexes), len(last.Indexes)+1)
	copy(indexes, last.Indexes)
	last.Indexes = append(indexes, idx)
	out[len(out)-1] = last
	return out
}

// Equal reports whether both paths address the same node.
func (p Path) Equal(other Path) bool {
	if len(p) != len(other) {
		return false
	}
	for i := range p {
		if p[i].Key != other[i].Key || len(p[i].Indexes) != len(other[i].Indexes) {
			return false
		}
		for j := range p[i].Indexes {
			if p[i].Indexes[j] != other[i].Indexes[j] {
				return false
			}
		}
	}
	return true
}

// Covers reports whether other is p or a node beneath it.
func (p Path) Covers(other Path) bool {
	if len(p) == 0 || len(p) > len(other) {
		return false
	}
	last := len(p) - 1
	if !p[:last].Equal(other[:last]) {
		return false
	}
	seg, target := p[last], other[last]
	if seg.Key != target.Key || len(seg.Indexes) > len(target.Indexes) {
		return false
	}
	for j, idx := range seg.Indexes {
		if target.Indexes[j] != idx {
			return false
		}
	}
	return true
}

func (p Path) clone(extra int) Path {
	out := make(Path, len(p), len(p)+extra)
	copy(out, p)
	return out
}

// ParsePath splits a dotted reference such as `Tags[0].Value`. Segments
// whose bracket suffix is not a list of integers are kept as plain keys.
func ParsePath(dotted string) Path {
	if dotted == "" {
		return nil
	}
	parts := strings.Split(dotted, ".")
	out := make(Path, 0, len(parts))
	for _, part := range parts {
		out = append(out, parseSegment(part))
	}
	return out
}

// FromParts builds a path from already split segments such as the Path of a
// parsed reference. Bracket suffixes are honoured.
func FromParts(parts []string) Path {
	out := make(Path, 0, len(parts))
	for _, part := range parts {
		out = append(out, parseSegment(part))
	}
	return out
}

func parseSegment(part string) Segment {
	open := strings.IndexByte(part, '[')
	if open < 0 || !strings.HasSuffix(part, "]") {
		return Segment{Key: part}
	}
	key := part[:open]
	var indexes []int
	rest := part[open:]
	for rest != "" {
		if rest[0] != '[' {
			return Segment{Key: part}
		}
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			return Segment{Key: part}
		}
		idx, err := strconv.Atoi(rest[1:end])
		if err != nil || idx < 0 {
			return Segment{Key: part}
		}
		indexes = append(indexes, idx)
		rest = rest[end+1:]
	}
	return Segment{Key: key, Indexes: indexes}
}
