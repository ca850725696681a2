package token

import (
	"regexp"
	"strings"
)

// tokenPattern matches the first `${...}` span that does not contain a nested
// `$` or `{` before its closing brace.
var tokenPattern = regexp.MustCompile(`\$\{([^${]*?)\}`)

// Token is a single templated span located inside a scalar string.
type Token struct {
	Raw   string // full span, e.g. "${opt:stage, 'dev'}"
	Expr  string // inner expression, e.g. "opt:stage, 'dev'"
	Start int
	End   int
}

// Find returns the first non-nested token in s.
func Find(s string) (Token, bool) {
	if !strings.Contains(s, "${") {
		return Token{}, false
	}
	loc := tokenPattern.FindStringSubmatchIndex(s)
	if loc == nil {
		return Token{}, false
	}
	return Token{
		Raw:   s[loc[0]:loc[1]],
		Expr:  s[loc[2]:loc[3]],
		Start: loc[0],
		End:   loc[1],
	}, true
}

// Contains reports whether s holds at least one token.
func Contains(s string) bool {
	_, ok := Find(s)
	return ok
}

// Scan finds the first token in s and parses its expression.
func Scan(s string) (Token, Reference, bool) {
	tok, ok := Find(s)
	if !ok {
		return Token{}, nil, false
	}
	return tok, Parse(tok.Expr), true
}

// Whole reports whether the token spans all of s.
func (t Token) Whole(s string) bool {
	return t.Start == 0 && t.End == len(s)
}

// Splice replaces the token span in s with value. It expects s to be the
// string the token was found in.
func (t Token) Splice(s, value string) string {
	if t.Start < 0 || t.End > len(s) || t.Start > t.End || s[t.Start:t.End] != t.Raw {
		return strings.Replace(s, t.Raw, value, 1)
	}
	return s[:t.Start] + value + s[t.End:]
}
