package shader

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessIncludes(t *testing.T) {
	pp := NewPreProcessor()
	out, err := pp.Process("//@oxy:include fullscreen_output\nfn f() {}\n", nil)
	require.NoError(t, err)
	assert.Contains(t, out, "struct FullscreenOutput")
	assert.Contains(t, out, "fn f() {}")
	assert.NotContains(t, out, "@oxy:")

	require.Len(t, pp.Declarations(), 1)
	assert.Equal(t, AnnotationTypeInclude, pp.Declarations()[0].Type)
	assert.Equal(t, 1, pp.Declarations()[0].Line)
}

func TestProcessUnknownInclude(t *testing.T) {
	_, err := NewPreProcessor().Process("//@oxy:include nope\n", nil)
	assert.ErrorContains(t, err, "unknown @oxy:include")
}

func TestProcessRegisterInclude(t *testing.T) {
	pp := NewPreProcessor()
	pp.RegisterInclude("tonemap", "fn tonemap(c: vec3<f32>) -> vec3<f32> { return c; }")
	out, err := pp.Process("//@oxy:include tonemap", nil)
	require.NoError(t, err)
	assert.Contains(t, out, "fn tonemap")
}

func TestProcessDefines(t *testing.T) {
	src := strings.Join([]string{
		"//@oxy:define KERNEL 64",
		"//@oxy:define RADIUS",
		"var<private> k: array<vec4<f32>, KERNEL>;",
		"const r = RADIUS;",
		"const KERNEL_HALF = 1;",
	}, "\n")

	pp := NewPreProcessor()
	out, err := pp.Process(src, []Define{{Name: "RADIUS", Value: "0.5"}, {Name: "UNUSED", Value: "1"}})
	require.NoError(t, err)

	assert.Contains(t, out, "array<vec4<f32>, 64>")
	assert.Contains(t, out, "const r = 0.5;")
	assert.Contains(t, out, "const KERNEL_HALF = 1;", "identifiers containing a define name are left alone")
	assert.Equal(t, []Define{{"KERNEL", "64"}, {"RADIUS", "0.5"}}, pp.Resolved())
}

func TestProcessSuppliedOverridesDefault(t *testing.T) {
	pp := NewPreProcessor()
	out, err := pp.Process("//@oxy:define N 4\nconst n = N;", []Define{{Name: "N", Value: "16"}})
	require.NoError(t, err)
	assert.Contains(t, out, "const n = 16;")
}

func TestProcessDefineErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"missing value", "//@oxy:define N\n", "no value and no default"},
		{"duplicate", "//@oxy:define N 1\n//@oxy:define N 2\n", "declared twice"},
		{"bad name", "//@oxy:define 9N 1\n", "invalid define name"},
		{"too many args", "//@oxy:define N 1 2\n", "optional default"},
		{"unknown type", "//@oxy:pragma x\n", "unknown annotation type"},
		{"empty", "//@oxy:\n", "empty @oxy annotation"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPreProcessor().Process(tt.src, nil)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestProcessIgnoresNonCommentAnnotations(t *testing.T) {
	src := `const s = "@oxy:define X";`
	out, err := NewPreProcessor().Process(src, nil)
	require.NoError(t, err)
	assert.Equal(t, src, out)
}
