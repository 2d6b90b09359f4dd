package reform

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Config holds the flat transform options. Key lists arrive comma-separated
// in configuration files; use SplitKeys to parse them.
type Config struct {
	// RemoveKeys are deleted from the output record after the template merge.
	RemoveKeys []string
	// KeepKeys are copied from the input record before the template merge.
	// Only legal when RenewRecord is set.
	KeepKeys []string
	// RenewRecord starts the output from an empty record instead of a copy
	// of the input.
	RenewRecord bool
	// RenewTimeKey names a record field whose value overrides the event's
	// output timestamp.
	RenewTimeKey string
	// EnableRuby selects the sandboxed expression strategy instead of the
	// safe string-substitution strategy. The name is historical; the
	// expression language is a restricted script sandbox.
	EnableRuby bool
	// AutoTypecast enables the type-preserving shortcut for template fields
	// that are exactly one placeholder.
	AutoTypecast bool
	// EvalTimeout optionally bounds a single sandboxed expression
	// evaluation.
	EvalTimeout time.Duration
}

func (c Config) validate() error {
	if len(c.KeepKeys) > 0 && !c.RenewRecord {
		return errors.New("keep_keys requires renew_record to be enabled")
	}
	return nil
}

// SplitKeys parses a comma-separated key list option value.
func SplitKeys(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
