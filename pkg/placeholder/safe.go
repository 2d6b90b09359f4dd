package placeholder

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

var (
	placeholderRe = regexp.MustCompile(`\$\{[^}]+\}|__[A-Z_]+__`)
	singleTokenRe = regexp.MustCompile(`^(?:\$\{[^}]+\}|__[A-Z_]+__)$`)
)

// SafeStrategy substitutes placeholder tokens textually from a flat
// token->value table built per event. It never evaluates code. Unknown
// tokens resolve to an empty value with a diagnostic; expansion always
// completes.
type SafeStrategy struct {
	AutoTypecast bool
}

var _ Strategy = (*SafeStrategy)(nil)

// Preprocess is the identity for the safe strategy: templates are expanded
// lazily at reform time.
func (s *SafeStrategy) Preprocess(tpl any) (any, error) {
	return tpl, nil
}

func (s *SafeStrategy) RenderTime(t time.Time) any {
	return t.Local().Format("2006-01-02 15:04:05 -0700")
}

func (s *SafeStrategy) Expand(pre any, ctx *Context, forceString bool) (any, error) {
	table := buildTable(ctx)
	return s.expandValue(pre, table, forceString), nil
}

func (s *SafeStrategy) expandValue(v any, table map[string]any, forceString bool) any {
	switch vv := v.(type) {
	case string:
		return s.expandString(vv, table, forceString)
	case map[string]any:
		out := make(map[string]any, len(vv))
		for k, val := range vv {
			nk := stringify(s.expandString(k, table, true))
			out[nk] = s.expandValue(val, table, false)
		}
		return out
	case []any:
		out := make([]any, len(vv))
		for i, val := range vv {
			out[i] = s.expandValue(val, table, false)
		}
		return out
	default:
		return v
	}
}

func (s *SafeStrategy) expandString(str string, table map[string]any, forceString bool) any {
	if s.AutoTypecast && !forceString && singleTokenRe.MatchString(str) {
		v, ok := table[str]
		if !ok {
			warnUnknownPlaceholder(str)
			return nil
		}
		return v
	}
	return placeholderRe.ReplaceAllStringFunc(str, func(token string) string {
		v, ok := table[token]
		if !ok {
			warnUnknownPlaceholder(token)
			return ""
		}
		return stringify(v)
	})
}

// buildTable flattens the context into placeholder tokens. Sequence entries
// are reachable by both their zero-based and from-end indexes; record fields
// get a bare ${field} shortcut unless the name would shadow a reserved
// context key.
func buildTable(ctx *Context) map[string]any {
	table := map[string]any{}

	storeScalar(table, "tag", ctx.Tag)
	storeScalar(table, "hostname", ctx.Hostname)
	storeScalar(table, "time", ctx.Time)
	storeChain(table, "tag_parts", ctx.TagParts)
	storeChain(table, "tag_prefix", ctx.TagPrefix)
	storeChain(table, "tag_suffix", ctx.TagSuffix)

	for k, v := range ctx.Record {
		table[fmt.Sprintf("${record[%q]}", k)] = v
		if _, reserved := reservedNames[k]; !reserved {
			table["${"+k+"}"] = v
		}
	}

	return table
}

func storeScalar(table map[string]any, key string, v any) {
	table["${"+key+"}"] = v
	// Legacy token form.
	table["__"+strings.ToUpper(key)+"__"] = v
}

func storeChain(table map[string]any, key string, vals []string) {
	n := len(vals)
	for i, v := range vals {
		table[fmt.Sprintf("${%s[%d]}", key, i)] = v
		table[fmt.Sprintf("${%s[%d]}", key, i-n)] = v
	}
}

func warnUnknownPlaceholder(token string) {
	log.Warn().Str("placeholder", token).Msg("unknown placeholder found")
}
