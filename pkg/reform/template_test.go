package reform

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseValue_JSONObject(t *testing.T) {
	v := ParseValue(`{"a": 1, "b": ["x"]}`)
	require.Equal(t, map[string]any{"a": float64(1), "b": []any{"x"}}, v)
}

func TestParseValue_JSONArray(t *testing.T) {
	v := ParseValue(`[1, 2, 3]`)
	require.Equal(t, []any{float64(1), float64(2), float64(3)}, v)
}

func TestParseValue_InvalidJSONStaysLiteral(t *testing.T) {
	v := ParseValue(`{not json at all`)
	require.Equal(t, `{not json at all`, v)
}

func TestParseValue_PlainString(t *testing.T) {
	v := ParseValue("hello ${tag}")
	require.Equal(t, "hello ${tag}", v)
}

func TestNormalizeTemplate_TopLevelOnly(t *testing.T) {
	out := normalizeTemplate(map[string]any{
		"obj":    `{"k": "v"}`,
		"plain":  "text",
		"number": 7,
		"nested": map[string]any{"inner": `{"x": 1}`},
	})
	require.Equal(t, map[string]any{"k": "v"}, out["obj"])
	require.Equal(t, "text", out["plain"])
	require.Equal(t, 7, out["number"])
	// Nested strings are left alone; only declared top-level values are
	// parsed opportunistically.
	require.Equal(t, map[string]any{"inner": `{"x": 1}`}, out["nested"])
}
