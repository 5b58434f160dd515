package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/oxy-post/engine/camera"
	"github.com/Carmen-Shannon/oxy-post/engine/post"
	"github.com/Carmen-Shannon/oxy-post/engine/renderer/attachment"
	"github.com/Carmen-Shannon/oxy-post/engine/renderer/gpu/gputest"
	"github.com/Carmen-Shannon/oxy-post/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chainFile = `
[window]
width = 640
height = 360

[render]
format = "rgba8unorm"
present = "final"
strict = true
workers = 2

[[input]]
name = "scene"
path = "scene.png"

[[input]]
name = "position"
path = "gbuffer/position.png"

[[input]]
name = "normals"
path = "gbuffer/normals.png"

[[filter]]
kind = "ssao"
input = "scene"
seed = 42
kernel_size = 16
radius = 0.75

[[filter]]
kind = "fxaa"
input = "ssao"
span_max = 4.0

[[filter]]
kind = "vignette"
input = "fxaa"
output = "final"
vignette = { inner = 0.3, outer = 0.8, opacity = 0.5 }
`

func TestParse(t *testing.T) {
	c, err := Parse([]byte(chainFile))
	require.NoError(t, err)

	assert.Equal(t, "oxy-post", c.Window.Title, "defaults survive decoding")
	assert.Equal(t, 640, c.Window.Width)
	assert.Equal(t, wgpu.TextureFormatRGBA8Unorm, c.Format())
	assert.True(t, c.Render.Strict)
	assert.Nil(t, c.Compiler())
	assert.Len(t, c.ChainOptions(), 2)

	require.Len(t, c.Filters, 3)
	assert.Equal(t, float32(4), *c.Filters[1].SpanMax)
	assert.Equal(t, post.VignetteParams{Inner: 0.3, Outer: 0.8, Opacity: 0.5}, *c.Filters[2].Vignette)
	assert.Equal(t, uint64(42), *c.Filters[0].Seed)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{name: "unknown key", doc: "[render]\nfromat = \"rgba8unorm\"\n[[filter]]\nkind = \"grey\"\ninput = \"x\""},
		{name: "unknown kind", doc: "[[input]]\nname = \"scene\"\npath = \"a.png\"\n[[filter]]\nkind = \"bloom\""},
		{name: "unknown format", doc: "[render]\nformat = \"r8\"\n[[input]]\nname = \"scene\"\npath = \"a.png\"\n[[filter]]\nkind = \"grey\""},
		{name: "no filters", doc: "[window]\nwidth = 10\nheight = 10"},
		{name: "bad window", doc: "[window]\nwidth = 0\n[[filter]]\nkind = \"grey\""},
		{name: "unpublished input", doc: "[render]\npresent = \"\"\n[[filter]]\nkind = \"grey\""},
		{name: "consumer before producer", doc: `
[render]
present = "sepia"
[[input]]
name = "scene"
path = "a.png"
[[filter]]
kind = "sepia"
input = "grey"
[[filter]]
kind = "grey"
`},
		{name: "duplicate filter", doc: `
[render]
present = ""
[[input]]
name = "scene"
path = "a.png"
[[filter]]
kind = "grey"
[[filter]]
kind = "grey"
`},
		{name: "ssao without gbuffer", doc: `
[render]
present = "ssao"
[[input]]
name = "resolved"
path = "a.png"
[[filter]]
kind = "ssao"
`},
		{name: "present never published", doc: "[[input]]\nname = \"scene\"\npath = \"a.png\"\n[[filter]]\nkind = \"grey\""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestParse_MalformedToml(t *testing.T) {
	_, err := Parse([]byte("[[filter]\nkind = "))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidConfig)
}

func TestLoad_ResolvesInputPaths(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chain.toml")
	require.NoError(t, os.WriteFile(path, []byte(chainFile), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	sources := c.Sources()
	require.Len(t, sources, 3)
	assert.Equal(t, "scene", sources[0].Name)
	assert.Equal(t, filepath.Join(dir, "scene.png"), sources[0].Path)
	assert.Equal(t, filepath.Join(dir, "gbuffer", "normals.png"), sources[2].Path)

	_, err = Load(filepath.Join(dir, "missing.toml"))
	assert.Error(t, err)
}

func TestFactories_BuildChain(t *testing.T) {
	c, err := Parse([]byte(chainFile))
	require.NoError(t, err)

	dev := gputest.NewDevice()
	chain, err := post.NewChain(post.FilterContext{Device: dev, Format: c.Format()}, c.Factories(), c.ChainOptions()...)
	require.NoError(t, err)
	defer chain.Release()

	filters := chain.Filters()
	require.Len(t, filters, 3)
	assert.Equal(t, []string{"scene", "position", "normals"}, filters[0].Inputs())
	assert.Equal(t, []string{"final"}, filters[2].Outputs())

	ssao := filters[0].(post.Ssao)
	assert.Len(t, ssao.Kernel(), 16)
	assert.Equal(t, float32(0.75), ssao.Radius())
	assert.Equal(t, float32(4), filters[1].(post.Fxaa).SpanMax())

	// same seed, same kernel
	again, err := post.NewChain(post.FilterContext{Device: dev, Format: c.Format()}, c.Factories())
	require.NoError(t, err)
	defer again.Release()
	assert.Equal(t, ssao.Kernel(), again.Filters()[0].(post.Ssao).Kernel())

	reg := attachment.NewRegistry()
	for _, name := range []string{"scene", "position", "normals"} {
		tex, err := dev.CreateRenderTarget(name, 8, 8, c.Format())
		require.NoError(t, err)
		reg.SetPersistent(name, attachment.FromTexture(name, tex))
	}
	reg.Reset(1)
	rec := gputest.NewRecorder()
	frame := &post.Frame{
		Index:    1,
		Registry: reg,
		Recorder: rec,
		Targets:  attachment.NewPool(dev, 8, 8, attachment.WithFormat(c.Format())),
		Camera:   camera.NewCamera(),
	}
	report, err := chain.RenderFrame(frame)
	require.NoError(t, err)
	assert.Equal(t, []string{"ssao", "fxaa", "vignette"}, report.Drawn)
	assert.Equal(t, 1, reg.Publications("final"))
}

func TestCompiler(t *testing.T) {
	c := Default()
	assert.Nil(t, c.Compiler())
	c.Render.Validate = true
	assert.Equal(t, shader.NagaCompiler{}, c.Compiler())
}

func TestLoad_Examples(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("..", "..", "..", "examples", "*.toml"))
	require.NoError(t, err)
	require.NotEmpty(t, paths)
	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			c, err := Load(path)
			require.NoError(t, err)
			assert.NotEmpty(t, c.Factories())
		})
	}
}
