package document

import (
	"fmt"
	"sort"

	"github.com/goliatone/go-slsconfig/token"
)

// Status classifies what a lookup found at a path.
type Status int

const (
	// Missing means some segment of the path does not exist.
	Missing Status = iota
	// Pending means a node on the way still holds a token.
	Pending
	// Resolved means the path reached a concrete value.
	Resolved
)

func (s Status) String() string {
	switch s {
	case Pending:
		return "pending"
	case Resolved:
		return "resolved"
	default:
		return "missing"
	}
}

// Lookup is the outcome of reading a path while tokens may still be present.
type Lookup struct {
	Status Status
	Value  any
	// PendingAt addresses the templated node that blocked the lookup.
	PendingAt Path
}

// Document is the tree owned by one resolution run. Nodes are
// map[string]any, []any or scalars.
type Document struct {
	root any
}

// New wraps root. Callers hand over ownership; the tree is mutated in place.
func New(root any) *Document {
	return &Document{root: root}
}

// Root returns the current tree.
func (d *Document) Root() any {
	if d == nil {
		return nil
	}
	return d.root
}

// Discover lists every templated scalar currently in the tree.
func (d *Document) Discover() []*TokenRef {
	return Discover(d.Root())
}

// Get returns the value at p.
func (d *Document) Get(p Path) (any, bool) {
	return Get(d.Root(), p)
}

// Lookup reads p and reports whether it is resolved, pending or missing.
func (d *Document) Lookup(p Path) Lookup {
	return LookupPath(d.Root(), p)
}

// Set replaces the value at p, creating intermediate mappings as needed.
func (d *Document) Set(p Path, value any) error {
	root, err := setAt(d.root, p, value)
	if err != nil {
		return fmt.Errorf("document: set %q: %w", p.String(), err)
	}
	d.root = root
	return nil
}

// Get walks root along p.
func Get(root any, p Path) (any, bool) {
	current := root
	for _, seg := range p {
		next, ok := stepKey(current, seg.Key)
		if !ok {
			return nil, false
		}
		for _, idx := range seg.Indexes {
			next, ok = stepIndex(next, idx)
			if !ok {
				return nil, false
			}
		}
		current = next
	}
	return current, true
}

// LookupPath walks root along p and stops at the first node that still
// contains a token. A mapping or sequence target counts as pending while any
// scalar beneath it is templated.
func LookupPath(root any, p Path) Lookup {
	current := root
	at := make(Path, 0, len(p))
	for _, seg := range p {
		next, ok := stepKey(current, seg.Key)
		if !ok {
			return Lookup{Status: Missing}
		}
		at = at.Child(seg.Key)
		if isTemplated(next) {
			return Lookup{Status: Pending, PendingAt: at}
		}
		for _, idx := range seg.Indexes {
			next, ok = stepIndex(next, idx)
			if !ok {
				return Lookup{Status: Missing}
			}
			at = at.Index(idx)
			if isTemplated(next) {
				return Lookup{Status: Pending, PendingAt: at}
			}
		}
		current = next
	}
	if pendingAt, ok := firstTemplated(current, at); ok {
		return Lookup{Status: Pending, PendingAt: pendingAt}
	}
	return Lookup{Status: Resolved, Value: current}
}

// firstTemplated returns the first scalar below node, in discovery order,
// that still holds a token.
func firstTemplated(node any, at Path) (Path, bool) {
	switch v := node.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			if found, ok := firstTemplated(v[key], at.Child(key)); ok {
				return found, true
			}
		}
	case []any:
		for i, item := range v {
			if found, ok := firstTemplated(item, at.Index(i)); ok {
				return found, true
			}
		}
	case string:
		return at, token.Contains(v)
	}
	return nil, false
}

func isTemplated(node any) bool {
	s, ok := node.(string)
	return ok && token.Contains(s)
}

func stepKey(node any, key string) (any, bool) {
	switch v := node.(type) {
	case map[string]any:
		child, ok := v[key]
		return child, ok
	case []any:
		// root sequences carry an unnamed leading segment
		return v, key == ""
	}
	return nil, false
}

func stepIndex(node any, idx int) (any, bool) {
	items, ok := node.([]any)
	if !ok || idx < 0 || idx >= len(items) {
		return nil, false
	}
	return items[idx], true
}

func setAt(node any, p Path, value any) (any, error) {
	if len(p) == 0 {
		return value, nil
	}
	seg, rest := p[0], p[1:]

	if items, ok := node.([]any); ok && seg.Key == "" {
		return setIndexes(items, seg.Indexes, rest, value)
	}

	m, ok := node.(map[string]any)
	if !ok {
		if node != nil {
			return nil, fmt.Errorf("%q is not a mapping", seg.Key)
		}
		m = map[string]any{}
	}
	child, err := setIndexes(m[seg.Key], seg.Indexes, rest, value)
	if err != nil {
		return nil, err
	}
	m[seg.Key] = child
	return m, nil
}

func setIndexes(node any, indexes []int, rest Path, value any) (any, error) {
	if len(indexes) == 0 {
		return setAt(node, rest, value)
	}
	items, ok := node.([]any)
	if !ok || indexes[0] < 0 || indexes[0] >= len(items) {
		return nil, fmt.Errorf("index %d out of range", indexes[0])
	}
	child, err := setIndexes(items[indexes[0]], indexes[1:], rest, value)
	if err != nil {
		return nil, err
	}
	items[indexes[0]] = child
	return items, nil
}
