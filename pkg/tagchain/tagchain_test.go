package tagchain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecompose(t *testing.T) {
	c := Decompose("app.web.access")
	require.Equal(t, []string{"app", "web", "access"}, c.Parts)
	require.Equal(t, []string{"app", "app.web", "app.web.access"}, c.Prefix)
	require.Equal(t, []string{"app.web.access", "web.access", "access"}, c.Suffix)
}

func TestDecompose_ChainProperties(t *testing.T) {
	for _, tag := range []string{"a", "a.b", "a.b.c", "one.two.three.four"} {
		c := Decompose(tag)
		n := len(c.Parts)
		require.Len(t, c.Prefix, n, tag)
		require.Len(t, c.Suffix, n, tag)
		require.Equal(t, tag, c.Prefix[n-1], tag)
		require.Equal(t, tag, c.Suffix[0], tag)
	}
}

func TestDecompose_Empty(t *testing.T) {
	c := Decompose("")
	require.Empty(t, c.Parts)
	require.Empty(t, c.Prefix)
	require.Empty(t, c.Suffix)
}

func TestSplit_DropsEmptySegments(t *testing.T) {
	require.Equal(t, []string{"a", "b"}, Split("a..b."))
}
