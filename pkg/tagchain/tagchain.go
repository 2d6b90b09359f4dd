package tagchain

import "strings"

// Chains holds the dot-joined prefix and suffix chains of a routing tag.
// For tag "a.b.c": Parts = [a b c], Prefix = [a a.b a.b.c],
// Suffix = [a.b.c b.c c].
type Chains struct {
	Parts  []string
	Prefix []string
	Suffix []string
}

// Split splits a dotted tag into its non-empty segments.
func Split(tag string) []string {
	raw := strings.Split(tag, ".")
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Decompose computes the prefix and suffix chains for a tag. Both chains
// have the same length as the segment list; Prefix[i] joins segments
// [0..i], Suffix[i] joins segments [i..end].
func Decompose(tag string) Chains {
	parts := Split(tag)
	n := len(parts)

	prefix := make([]string, n)
	suffix := make([]string, n)
	for i := 0; i < n; i++ {
		prefix[i] = strings.Join(parts[:i+1], ".")
		suffix[i] = strings.Join(parts[i:], ".")
	}

	return Chains{Parts: parts, Prefix: prefix, Suffix: suffix}
}
