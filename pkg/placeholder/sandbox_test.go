package placeholder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func sandboxContext(s *SandboxStrategy, record map[string]any) *Context {
	return &Context{
		Tag:       "app.web.access",
		TagParts:  []string{"app", "web", "access"},
		TagPrefix: []string{"app", "app.web", "app.web.access"},
		TagSuffix: []string{"app.web.access", "web.access", "access"},
		Hostname:  "web1.example.com",
		Time:      s.RenderTime(time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)),
		Record:    record,
	}
}

func expandSandbox(t *testing.T, s *SandboxStrategy, tpl any, record map[string]any) any {
	t.Helper()
	pre, err := s.Preprocess(tpl)
	require.NoError(t, err)
	out, err := s.Expand(pre, sandboxContext(s, record), false)
	require.NoError(t, err)
	return out
}

func TestSandbox_ArithmeticPreservesType(t *testing.T) {
	s := &SandboxStrategy{AutoTypecast: true}
	out := expandSandbox(t, s,
		map[string]any{"doubled": "${record['n'] * 2}"},
		map[string]any{"n": 5})
	require.Equal(t, map[string]any{"doubled": int64(10)}, out)
}

func TestSandbox_WithoutTypecastStringifies(t *testing.T) {
	s := &SandboxStrategy{}
	out := expandSandbox(t, s,
		map[string]any{"doubled": "${record['n'] * 2}"},
		map[string]any{"n": 5})
	require.Equal(t, map[string]any{"doubled": "10"}, out)
}

func TestSandbox_MixedLiteral(t *testing.T) {
	s := &SandboxStrategy{AutoTypecast: true}
	out := expandSandbox(t, s, "host-${hostname}", map[string]any{})
	require.Equal(t, "host-web1.example.com", out)
}

func TestSandbox_LiteralPassthrough(t *testing.T) {
	s := &SandboxStrategy{}
	out := expandSandbox(t, s, map[string]any{
		"msg":   "plain text",
		"count": 7,
	}, map[string]any{})
	require.Equal(t, map[string]any{"msg": "plain text", "count": 7}, out)
}

func TestSandbox_BareWordResolvesRecordField(t *testing.T) {
	s := &SandboxStrategy{AutoTypecast: true}
	out := expandSandbox(t, s,
		map[string]any{"doubled": "${n * 2}"},
		map[string]any{"n": 5})
	require.Equal(t, map[string]any{"doubled": int64(10)}, out)
}

func TestSandbox_UndefinedReferenceIsIsolated(t *testing.T) {
	s := &SandboxStrategy{AutoTypecast: true}
	out := expandSandbox(t, s, map[string]any{
		"bad":  "${nosuch * 2}",
		"good": "${tag}",
	}, map[string]any{})
	require.Equal(t, map[string]any{
		"bad":  nil,
		"good": "app.web.access",
	}, out)
}

func TestSandbox_NoAmbientCapabilities(t *testing.T) {
	s := &SandboxStrategy{AutoTypecast: true}
	for _, expr := range []string{
		"${process.env}",
		"${require('fs')}",
		"${globalThis.process.exit(1)}",
	} {
		out := expandSandbox(t, s, map[string]any{"x": expr}, map[string]any{})
		require.Equal(t, map[string]any{"x": nil}, out, expr)
	}
}

func TestSandbox_RecordBindingIsACopy(t *testing.T) {
	s := &SandboxStrategy{AutoTypecast: true}
	record := map[string]any{"x": 1}

	out := expandSandbox(t, s,
		map[string]any{"mutated": "${record.x = 99}"},
		record)
	require.Equal(t, map[string]any{"mutated": int64(99)}, out)
	require.Equal(t, 1, record["x"])
}

func TestSandbox_ReservedBindingsWinOverRecordFields(t *testing.T) {
	s := &SandboxStrategy{AutoTypecast: true}
	out := expandSandbox(t, s, map[string]any{
		"tag":     "${tag}",
		"rec_tag": "${record['tag']}",
	}, map[string]any{"tag": "record-tag"})
	require.Equal(t, map[string]any{
		"tag":     "app.web.access",
		"rec_tag": "record-tag",
	}, out)
}

func TestSandbox_TimeIsNativeDate(t *testing.T) {
	s := &SandboxStrategy{AutoTypecast: true}
	out := expandSandbox(t, s,
		map[string]any{"year": "${time.getUTCFullYear()}"},
		map[string]any{})
	require.Equal(t, map[string]any{"year": int64(2020)}, out)
}

func TestSandbox_TagChains(t *testing.T) {
	s := &SandboxStrategy{AutoTypecast: true}
	out := expandSandbox(t, s, map[string]any{
		"first":  "${tag_parts[0]}",
		"last":   "${tag_suffix[tag_suffix.length - 1]}",
		"prefix": "${tag_prefix[1]}",
	}, map[string]any{})
	require.Equal(t, map[string]any{
		"first":  "app",
		"last":   "access",
		"prefix": "app.web",
	}, out)
}

func TestSandbox_KeyExpansionForcesString(t *testing.T) {
	s := &SandboxStrategy{AutoTypecast: true}
	out := expandSandbox(t, s,
		map[string]any{"${record['n']}": "x"},
		map[string]any{"n": 5})
	require.Equal(t, map[string]any{"5": "x"}, out)
}

func TestSandbox_EvalTimeout(t *testing.T) {
	s := &SandboxStrategy{AutoTypecast: true, EvalTimeout: 10 * time.Millisecond}
	out := expandSandbox(t, s,
		map[string]any{"spin": "${(function(){ while(true){} })()}"},
		map[string]any{})
	require.Equal(t, map[string]any{"spin": nil}, out)
}
