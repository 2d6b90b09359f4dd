package placeholder

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/dop251/goja"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

var ErrEvalTimeout = errors.New("placeholder: expression evaluation timeout")

var identRe = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// Expr is a template string leaf compiled once at configuration time.
type Expr struct {
	src  string
	prog *goja.Program
}

// mapEntry keeps expanded objects deterministic; key is a plain string or a
// compiled *Expr when the declared key contains placeholders.
type mapEntry struct {
	key any
	val any
}

type objectNode []mapEntry

type arrayNode []any

// SandboxStrategy evaluates template expressions inside a fresh, minimal
// goja runtime built per reform call. The runtime exposes exactly the seven
// context bindings (deep-copied, so expressions cannot mutate engine state)
// plus bare-word globals for non-reserved record fields. Nothing else is
// reachable from expression text: no I/O, no process or environment access,
// no host objects.
type SandboxStrategy struct {
	AutoTypecast bool
	// EvalTimeout bounds a single expression evaluation via the runtime's
	// interrupt mechanism. Zero disables the timer.
	EvalTimeout time.Duration
}

var _ Strategy = (*SandboxStrategy)(nil)

// Preprocess rewrites every template string leaf into a compiled expression.
// A string that is exactly one ${...} placeholder keeps its inner expression
// verbatim when auto-typecast is on, so the evaluated result's native type
// becomes the field value. Any other string with placeholders becomes a
// template literal, embedding the sub-expressions in the surrounding text.
func (s *SandboxStrategy) Preprocess(tpl any) (any, error) {
	switch v := tpl.(type) {
	case string:
		return s.compileString(v, false)
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		out := make(objectNode, 0, len(v))
		for _, k := range keys {
			key, err := s.compileString(k, true)
			if err != nil {
				return nil, err
			}
			val, err := s.Preprocess(v[k])
			if err != nil {
				return nil, err
			}
			out = append(out, mapEntry{key: key, val: val})
		}
		return out, nil
	case []any:
		out := make(arrayNode, len(v))
		for i, it := range v {
			p, err := s.Preprocess(it)
			if err != nil {
				return nil, err
			}
			out[i] = p
		}
		return out, nil
	default:
		return tpl, nil
	}
}

// RenderTime keeps the native temporal value; it becomes a JS Date inside
// the evaluation scope.
func (s *SandboxStrategy) RenderTime(t time.Time) any {
	return t
}

func (s *SandboxStrategy) compileString(str string, forceString bool) (any, error) {
	if !strings.Contains(str, "${") {
		return str, nil
	}

	var body string
	if s.AutoTypecast && !forceString && isSinglePlaceholder(str) {
		body = str[2 : len(str)-1]
	} else {
		body = "`" + escapeTemplateLiteral(str) + "`"
	}

	prog, err := goja.Compile("template", "("+body+")", true)
	if err != nil {
		return nil, errors.Wrapf(err, "compile template expression %q", str)
	}
	return &Expr{src: str, prog: prog}, nil
}

func isSinglePlaceholder(s string) bool {
	return strings.Count(s, "${") == 1 &&
		strings.HasPrefix(s, "${") &&
		strings.HasSuffix(s, "}")
}

func escapeTemplateLiteral(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "`", "\\`")
	return s
}

func (s *SandboxStrategy) Expand(pre any, ctx *Context, forceString bool) (any, error) {
	vm, err := s.newScope(ctx)
	if err != nil {
		return nil, err
	}
	return s.expandValue(vm, pre, forceString), nil
}

func (s *SandboxStrategy) expandValue(vm *goja.Runtime, v any, forceString bool) any {
	switch vv := v.(type) {
	case *Expr:
		out := s.eval(vm, vv)
		if forceString {
			return stringify(out)
		}
		return out
	case objectNode:
		out := make(map[string]any, len(vv))
		for _, e := range vv {
			k := stringify(s.expandValue(vm, e.key, true))
			out[k] = s.expandValue(vm, e.val, false)
		}
		return out
	case arrayNode:
		out := make([]any, len(vv))
		for i, it := range vv {
			out[i] = s.expandValue(vm, it, false)
		}
		return out
	default:
		return v
	}
}

// eval runs one compiled expression. A failure is contained to the field:
// the value becomes nil and a diagnostic is emitted.
func (s *SandboxStrategy) eval(vm *goja.Runtime, e *Expr) any {
	if s.EvalTimeout > 0 {
		timer := time.AfterFunc(s.EvalTimeout, func() {
			vm.Interrupt(ErrEvalTimeout)
		})
		defer timer.Stop()
		defer vm.ClearInterrupt()
	}

	v, err := vm.RunProgram(e.prog)
	if err != nil {
		log.Warn().Err(err).Str("template", e.src).Msg("failed to expand template expression")
		return nil
	}
	return v.Export()
}

// newScope builds the restricted evaluation scope for one reform call. Bare
// record field names are bound first so the seven reserved bindings always
// win on collision.
func (s *SandboxStrategy) newScope(ctx *Context) (*goja.Runtime, error) {
	vm := goja.New()

	record, _ := copyValue(ctx.Record).(map[string]any)
	if record == nil {
		record = map[string]any{}
	}

	for k, v := range record {
		if _, reserved := reservedNames[k]; reserved {
			continue
		}
		if !identRe.MatchString(k) {
			continue
		}
		if err := vm.Set(k, v); err != nil {
			return nil, errors.Wrapf(err, "bind record field %q", k)
		}
	}

	bindings := map[string]any{
		"tag":        ctx.Tag,
		"tag_parts":  copyStrings(ctx.TagParts),
		"tag_prefix": copyStrings(ctx.TagPrefix),
		"tag_suffix": copyStrings(ctx.TagSuffix),
		"hostname":   ctx.Hostname,
		"record":     record,
	}
	for name, v := range bindings {
		if err := vm.Set(name, v); err != nil {
			return nil, errors.Wrapf(err, "bind %s", name)
		}
	}

	var timeVal goja.Value
	if t, ok := ctx.Time.(time.Time); ok {
		timeVal = newDate(vm, t)
	} else {
		timeVal = vm.ToValue(ctx.Time)
	}
	if err := vm.Set("time", timeVal); err != nil {
		return nil, errors.Wrap(err, "bind time")
	}

	return vm, nil
}

func newDate(vm *goja.Runtime, t time.Time) goja.Value {
	ctor := vm.Get("Date")
	o, err := vm.New(ctor, vm.ToValue(t.UnixMilli()))
	if err != nil {
		return goja.Undefined()
	}
	return o
}
