package tplfield_test

import (
	"testing"

	"github.com/fluxgraph/fluxgraph/pkg/tplfield"
	"github.com/stretchr/testify/assert"
)

func TestHasTemplate(t *testing.T) {
	assert.True(t, tplfield.HasTemplate("{{ parent_result.email }}"))
	assert.True(t, tplfield.HasTemplate("  {{x}}  "))
	assert.False(t, tplfield.HasTemplate("literal"))
	assert.False(t, tplfield.HasTemplate("prefix {{x}}"))
}

func TestResolve_TemplateRoundTrip(t *testing.T) {
	ctx := map[string]any{
		"parent_result": map[string]any{"email": "x@y"},
	}

	t.Run("Should resolve a full-value template to its dotted path value", func(t *testing.T) {
		got := tplfield.Resolve("{{ parent_result.email }}", ctx)
		assert.Equal(t, "x@y", got)
	})

	t.Run("Should pass through a non-matching literal string", func(t *testing.T) {
		got := tplfield.Resolve("literal", ctx)
		assert.Equal(t, "literal", got)
	})

	t.Run("Should resolve to nil when the path does not exist", func(t *testing.T) {
		got := tplfield.Resolve("{{ parent_result.missing.deeper }}", ctx)
		assert.Nil(t, got)
	})

	t.Run("Should recurse into maps and slices", func(t *testing.T) {
		cfg := map[string]any{
			"to":   "{{ parent_result.email }}",
			"flag": "literal",
			"list": []any{"{{ parent_result.email }}", "keep"},
		}
		got := tplfield.Resolve(cfg, ctx).(map[string]any)
		assert.Equal(t, "x@y", got["to"])
		assert.Equal(t, "literal", got["flag"])
		assert.Equal(t, []any{"x@y", "keep"}, got["list"])
	})
}

func TestResolve_S4Scenario(t *testing.T) {
	ctx := map[string]any{"parent_result": map[string]any{"email": "x@y"}}
	cfg := map[string]any{"to": "{{ parent_result.email }}", "flag": "literal"}
	got := tplfield.Resolve(cfg, ctx)
	assert.Equal(t, map[string]any{"to": "x@y", "flag": "literal"}, got)
}
