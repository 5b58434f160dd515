package gpu

import (
	"os"
	"testing"

	"github.com/Carmen-Shannon/oxy-post/common"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResourceTableNeverReusesHandles(t *testing.T) {
	table := newResourceTable()
	a := table.insert("a")
	b := table.insert(42)
	assert.True(t, a.Valid())
	assert.NotEqual(t, a, b)

	s, ok := lookup[string](table, a)
	require.True(t, ok)
	assert.Equal(t, "a", s)

	_, ok = lookup[string](table, b)
	assert.False(t, ok, "wrong type must not resolve")

	_, ok = table.remove(a)
	require.True(t, ok)
	c := table.insert("c")
	assert.NotEqual(t, a, c)
	_, ok = table.get(a)
	assert.False(t, ok)
	assert.Equal(t, 2, table.len())
}

func TestTextureHandles(t *testing.T) {
	tex := Texture{Texture: 3, View: 4}
	assert.ElementsMatch(t, []Handle{3, 4}, tex.Handles())
	assert.False(t, InvalidHandle.Valid())
}

func TestWGPUDeviceHeadless(t *testing.T) {
	if os.Getenv("OXY_GPU_TESTS") == "" {
		t.Skip("Need software GPU on CI")
	}
	dev, err := NewWGPUDevice(WithForceSoftwareRenderer(os.Getenv("OXY_GPU_FALLBACK") != ""))
	require.NoError(t, err)
	defer dev.Destroy()

	target, err := dev.CreateRenderTarget("target", 4, 4, wgpu.TextureFormatRGBA8Unorm)
	require.NoError(t, err)

	noise, err := dev.CreateTexture("noise", common.TextureStagingData{
		Pixels:        make([]byte, 4*4*16),
		Width:         4,
		Height:        4,
		Format:        wgpu.TextureFormatRGBA32Float,
		BytesPerPixel: 16,
	})
	require.NoError(t, err)

	buf, err := dev.CreateBuffer("uniform", 16, wgpu.BufferUsageUniform|wgpu.BufferUsageCopyDst)
	require.NoError(t, err)
	dev.WriteBuffers([]BufferWrite{{Buffer: buf, Offset: 0, Data: common.Float32sToBytes(1, 2, 3, 4)}})

	rec, err := dev.BeginFrame()
	require.NoError(t, err)
	assert.False(t, rec.SurfaceView().Valid())
	require.NoError(t, rec.BeginRenderPass("clear", target.View))
	rec.EndRenderPass()
	require.NoError(t, dev.EndFrame(rec))

	dev.Release(append(target.Handles(), append(noise.Handles(), buf)...)...)
	assert.Equal(t, 0, dev.Live())
}
