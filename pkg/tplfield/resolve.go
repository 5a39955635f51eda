// Package tplfield implements a minimal template language:
// "{{ dotted.path.into.context }}" as the entire string value of a config
// field. No operators, no filters, no escape syntax; non-matching strings
// pass through unchanged; nested templates are explicitly a non-goal, so
// a resolved value is never re-scanned for another template.
package tplfield

import (
	"regexp"
	"strings"
)

// pattern matches a string whose *entire* value (after trimming
// surrounding whitespace inside the braces) is a single "{{ expr }}"
// template: `^\s*{{\s*(.+?)\s*}}\s*$`.
var pattern = regexp.MustCompile(`^\s*\{\{\s*(.+?)\s*\}\}\s*$`)

// HasTemplate reports whether s is (in its entirety) a template
// expression, as opposed to a literal string.
func HasTemplate(s string) bool {
	return pattern.MatchString(s)
}

// Resolve walks cfg recursively (maps and slices), replacing every string
// value that is, in its entirety, a "{{ dotted.path }}" template with the
// result of looking up that dotted path in ctx. A lookup that fails at
// any step resolves to nil, never an error: the resolved value is simply
// null. Strings that don't match the full-value template shape are left
// untouched.
func Resolve(cfg any, ctx map[string]any) any {
	switch v := cfg.(type) {
	case string:
		m := pattern.FindStringSubmatch(v)
		if m == nil {
			return v
		}
		return lookupPath(ctx, m[1])
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			out[k] = Resolve(val, ctx)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, val := range v {
			out[i] = Resolve(val, ctx)
		}
		return out
	default:
		return v
	}
}

// lookupPath walks path's dot-separated segments against root, map-key
// lookup at each step (single level only — no operators, no nested
// template re-evaluation). Returns nil if any step fails.
func lookupPath(root map[string]any, path string) any {
	segments := strings.Split(path, ".")
	var current any = root
	for _, seg := range segments {
		m, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		next, present := m[seg]
		if !present {
			return nil
		}
		current = next
	}
	return current
}
