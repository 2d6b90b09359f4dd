package reform

import (
	"encoding/json"
	"strings"

	"github.com/rs/zerolog/log"
)

// ParseValue opportunistically decodes JSON-looking template values. A
// string starting with '{' or '[' that fails to parse stays a literal
// string; this is never a hard failure.
func ParseValue(s string) any {
	if !strings.HasPrefix(s, "{") && !strings.HasPrefix(s, "[") {
		return s
	}
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		log.Warn().Err(err).Str("value", s).
			Msg("failed to parse template value as json, assuming string")
		return s
	}
	return v
}

// normalizeTemplate applies ParseValue to the top-level declared template
// values, mirroring how the record declaration is read from configuration.
func normalizeTemplate(record map[string]any) map[string]any {
	out := make(map[string]any, len(record))
	for k, v := range record {
		if s, ok := v.(string); ok {
			out[k] = ParseValue(s)
			continue
		}
		out[k] = v
	}
	return out
}
