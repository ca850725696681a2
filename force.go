package slsconfig

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-slsconfig/document"
)

// ParseForce turns `provider.profile=ci;custom.stage='prod'` into a nested
// override tree. Values keep everything after the first `=`, minus one layer
// of surrounding quotes.
func ParseForce(expr string) (map[string]any, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, nil
	}

	out := document.New(map[string]any{})
	for _, assignment := range strings.Split(expr, ";") {
		if strings.TrimSpace(assignment) == "" {
			continue
		}
		key, value, ok := strings.Cut(assignment, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("slsconfig: invalid force expression %q, expected key=value", assignment)
		}
		if err := out.Set(document.ParsePath(key), trimQuotes(value)); err != nil {
			return nil, fmt.Errorf("slsconfig: invalid force expression %q: %w", assignment, err)
		}
	}
	root, _ := out.Root().(map[string]any)
	return root, nil
}

func trimQuotes(value string) string {
	if value != "" && (value[0] == '\'' || value[0] == '"') {
		value = value[1:]
	}
	if n := len(value); n > 0 && (value[n-1] == '\'' || value[n-1] == '"') {
		value = value[:n-1]
	}
	return value
}
