package placeholder

import (
	"encoding/json"
	"fmt"
	"time"
)

// Strategy is one of the two template expansion engines. Implementations are
// built once at configuration time, hold no per-call mutable state, and must
// be safe for concurrent use across event-processing goroutines.
type Strategy interface {
	// Preprocess normalizes a raw template tree once at configuration time
	// into the form consumed by Expand.
	Preprocess(tpl any) (any, error)

	// RenderTime converts an event timestamp into the value exposed to
	// templates as "time". The two strategies render time differently.
	RenderTime(t time.Time) any

	// Expand renders a preprocessed template tree against ctx. forceString
	// disables the type-preserving single-placeholder shortcut; map keys are
	// always expanded with forceString set since they must stay field names.
	Expand(pre any, ctx *Context, forceString bool) (any, error)
}

// reservedNames are the top-level context bindings. Record fields with these
// names never shadow them.
var reservedNames = map[string]struct{}{
	"tag":        {},
	"tag_parts":  {},
	"tag_prefix": {},
	"tag_suffix": {},
	"hostname":   {},
	"time":       {},
	"record":     {},
}

func stringify(v any) string {
	switch vv := v.(type) {
	case nil:
		return ""
	case string:
		return vv
	case map[string]any, []any:
		b, err := json.Marshal(vv)
		if err != nil {
			return fmt.Sprintf("%v", vv)
		}
		return string(b)
	default:
		return fmt.Sprintf("%v", vv)
	}
}

func copyValue(v any) any {
	switch vv := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(vv))
		for k, val := range vv {
			out[k] = copyValue(val)
		}
		return out
	case []any:
		out := make([]any, len(vv))
		for i, val := range vv {
			out[i] = copyValue(val)
		}
		return out
	default:
		return v
	}
}

func copyStrings(xs []string) []string {
	out := make([]string, len(xs))
	copy(out, xs)
	return out
}
