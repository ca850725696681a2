package document

import (
	"sort"

	"github.com/goliatone/go-slsconfig/token"
)

// TokenRef is one templated scalar found in the tree.
type TokenRef struct {
	Path  Path
	Raw   string
	Token token.Token
	Ref   token.Reference

	value    any
	resolved bool
}

// DotPath renders Path for logs and signatures.
func (r *TokenRef) DotPath() string {
	return r.Path.String()
}

// Value returns the cached resolution, if any.
func (r *TokenRef) Value() (any, bool) {
	return r.value, r.resolved
}

// SetValue caches the resolved value for the rest of the pass.
func (r *TokenRef) SetValue(value any) {
	r.value = value
	r.resolved = true
}

// Discover walks root and returns every string that holds a token, in
// traversal order. Mapping keys are visited sorted so the order is stable.
func Discover(root any) []*TokenRef {
	var refs []*TokenRef
	walk(root, nil, func(at Path, raw string) {
		tok, ref, ok := token.Scan(raw)
		if !ok {
			return
		}
		refs = append(refs, &TokenRef{
			Path:  at,
			Raw:   raw,
			Token: tok,
			Ref:   ref,
		})
	})
	return refs
}

func walk(node any, at Path, visit func(Path, string)) {
	switch v := node.(type) {
	case string:
		visit(at, v)
	case map[string]any:
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			walk(v[key], at.Child(key), visit)
		}
	case []any:
		for i, item := range v {
			walk(item, at.Index(i), visit)
		}
	}
}
