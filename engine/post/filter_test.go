package post

import (
	"errors"
	"image/png"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/oxy-post/common"
	"github.com/Carmen-Shannon/oxy-post/engine/camera"
	"github.com/Carmen-Shannon/oxy-post/engine/renderer/attachment"
	"github.com/Carmen-Shannon/oxy-post/engine/renderer/binding_set"
	"github.com/Carmen-Shannon/oxy-post/engine/renderer/gpu/gputest"
	"github.com/Carmen-Shannon/oxy-post/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	dev  *gputest.Device
	rec  *gputest.Recorder
	reg  attachment.Registry
	pool attachment.Pool
	ctx  FilterContext
}

func newFixture(t *testing.T, persistent ...string) *fixture {
	t.Helper()
	dev := gputest.NewDevice()
	fx := &fixture{
		dev:  dev,
		rec:  gputest.NewRecorder(),
		reg:  attachment.NewRegistry(),
		pool: attachment.NewPool(dev, 64, 64),
		ctx:  FilterContext{Device: dev, Format: wgpu.TextureFormatRGBA8Unorm},
	}
	for _, name := range persistent {
		tex, err := dev.CreateTexture(name, common.TextureStagingData{Pixels: make([]byte, 4*4*4), Width: 4, Height: 4})
		require.NoError(t, err)
		fx.reg.SetPersistent(name, attachment.FromTexture(name, tex))
	}
	return fx
}

func (fx *fixture) frame(index uint64, cam camera.Camera) *Frame {
	fx.reg.Reset(index)
	return &Frame{Index: index, Registry: fx.reg, Recorder: fx.rec, Targets: fx.pool, Camera: cam}
}

func TestNewFilter_Kinds(t *testing.T) {
	for _, kind := range Kinds() {
		t.Run(kind, func(t *testing.T) {
			fx := newFixture(t)
			f, err := NewFilter(kind, fx.ctx)
			require.NoError(t, err)
			defer f.Release()

			assert.Equal(t, kind, f.Name())
			assert.Equal(t, kind, f.Kind())
			assert.Equal(t, []string{kind}, f.Outputs())
			assert.NotEmpty(t, f.Inputs())
			assert.True(t, f.Pipeline().Handle().Valid())
			assert.Equal(t, wgpu.TextureFormatRGBA8Unorm, f.Pipeline().TargetFormat())
		})
	}
}

func TestNewFilter_UnknownKind(t *testing.T) {
	fx := newFixture(t)
	_, err := NewFilter("bloom", fx.ctx)
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestNewFilter_NilDevice(t *testing.T) {
	_, err := NewSepia(FilterContext{})
	assert.Error(t, err)
}

func TestNewFilter_ShaderCompileFailure(t *testing.T) {
	fx := newFixture(t)
	fx.ctx.Loader = shader.NewFSLoader(os.DirFS(t.TempDir()))
	_, err := NewSepia(fx.ctx)
	assert.ErrorIs(t, err, shader.ErrShaderCompile)
	assert.Zero(t, fx.dev.Live(""))
}

func TestFilter_ReleaseFreesEverything(t *testing.T) {
	fx := newFixture(t)
	f, err := NewSsao(fx.ctx, WithRand(rand.New(rand.NewPCG(1, 2))))
	require.NoError(t, err)
	require.NotZero(t, fx.dev.Live(""))
	f.Release()
	assert.Zero(t, fx.dev.Live(""))
}

func TestSepia_RenderPublishesOutput(t *testing.T) {
	fx := newFixture(t, "source")
	f, err := NewSepia(fx.ctx, WithInput("source"), WithOutput("final"))
	require.NoError(t, err)

	require.NoError(t, f.Render(fx.frame(1, nil)))

	assert.Equal(t, []string{"BeginRenderPass", "SetPipeline", "SetBindGroup", "Draw", "EndRenderPass"}, fx.rec.Ops())
	assert.Empty(t, fx.rec.Errors())
	assert.Equal(t, [3]uint32{3, 1, 0}, fx.rec.Filter("Draw")[0].Counts)

	a, err := fx.reg.Resolve("final")
	require.NoError(t, err)
	assert.Equal(t, fx.rec.Filter("BeginRenderPass")[0].Handle, a.Image)
	assert.Equal(t, 1, fx.reg.Publications("final"))
}

func TestFilter_MissingInputSkipsDraw(t *testing.T) {
	fx := newFixture(t)
	f, err := NewSepia(fx.ctx)
	require.NoError(t, err)

	err = f.Render(fx.frame(1, nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, binding_set.ErrBindingSetIncomplete)
	assert.ErrorIs(t, err, attachment.ErrUnknownAttachment)
	assert.Empty(t, fx.rec.Commands)
	assert.Zero(t, fx.reg.Publications("sepia"))
}

func TestFilter_IncompleteFrame(t *testing.T) {
	fx := newFixture(t, "scene")
	f, err := NewGrey(fx.ctx)
	require.NoError(t, err)
	assert.Error(t, f.Render(nil))
	assert.Error(t, f.Render(&Frame{Registry: fx.reg}))
}

func TestFilter_RenderTwiceIsIdempotent(t *testing.T) {
	fx := newFixture(t, "scene")
	f, err := NewFxaa(fx.ctx)
	require.NoError(t, err)
	block := f.(*fxaaFilter).params

	frame := fx.frame(1, nil)
	require.NoError(t, f.Render(frame))
	entries, group, params := f.BindingSet().Entries(), f.BindingSet().BindGroup(), block.Bytes()

	require.NoError(t, f.Render(frame))
	assert.Equal(t, entries, f.BindingSet().Entries())
	assert.Equal(t, group, f.BindingSet().BindGroup())
	assert.Equal(t, params, block.Bytes())
	assert.False(t, block.Dirty())
	assert.Equal(t, 1, fx.dev.Count("CreateBindGroup"))
}

func TestFxaa_SpanMax(t *testing.T) {
	fx := newFixture(t, "scene")
	f, err := NewFxaa(fx.ctx, WithSpanMax(4))
	require.NoError(t, err)
	assert.Equal(t, float32(4), f.SpanMax())

	require.NoError(t, f.SetSpanMax(16))
	assert.Equal(t, float32(16), f.SpanMax())
	field, err := f.(*fxaaFilter).params.Field("spanMax")
	require.NoError(t, err)
	assert.Equal(t, common.Float32sToBytes(16), field)

	assert.ErrorIs(t, f.SetSpanMax(0), ErrInvalidSpan)
	assert.Equal(t, float32(16), f.SpanMax())

	_, err = NewFxaa(fx.ctx, WithSpanMax(-1))
	assert.ErrorIs(t, err, ErrInvalidSpan)
}

func TestVignette_Params(t *testing.T) {
	fx := newFixture(t, "scene")
	f, err := NewVignette(fx.ctx)
	require.NoError(t, err)
	assert.Equal(t, DefaultVignette, f.Params())

	p := VignetteParams{Inner: 0.2, Outer: 0.9, Opacity: 1}
	require.NoError(t, f.SetParams(p))
	assert.Equal(t, p, f.Params())
	field, err := f.(*vignetteFilter).block.Field("outerRadius")
	require.NoError(t, err)
	assert.Equal(t, common.Float32sToBytes(0.9), field)

	tests := []VignetteParams{
		{Inner: 0.5, Outer: 0.5, Opacity: 0.5},
		{Inner: -0.1, Outer: 0.5, Opacity: 0.5},
		{Inner: 0.1, Outer: 0.5, Opacity: 1.5},
	}
	for _, tt := range tests {
		assert.ErrorIs(t, f.SetParams(tt), ErrInvalidVignette)
	}
	assert.Equal(t, p, f.Params())

	_, err = NewVignette(fx.ctx, WithVignette(tests[0]))
	assert.ErrorIs(t, err, ErrInvalidVignette)
}

func TestGenerateKernel_Bounds(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	kernel := GenerateKernel(rng, DefaultKernelSize)
	require.Len(t, kernel, DefaultKernelSize)

	prev := float32(0)
	for i, s := range kernel {
		scale := KernelScale(i, DefaultKernelSize)
		assert.GreaterOrEqual(t, scale, float32(0.1))
		assert.GreaterOrEqual(t, scale, prev, "scale must not decrease at %d", i)
		prev = scale

		assert.LessOrEqual(t, s.Vec3().Len(), scale+1e-6, "sample %d", i)
		assert.LessOrEqual(t, s.Vec3().Len(), float32(1))
		assert.GreaterOrEqual(t, s.Z(), float32(0))
		assert.Zero(t, s.W())
	}
	assert.Equal(t, float32(0.1), KernelScale(0, DefaultKernelSize))
}

func TestGenerateNoise_UnitXY(t *testing.T) {
	noise := GenerateNoise(rand.New(rand.NewPCG(3, 5)), NoiseDim)
	require.Len(t, noise, NoiseDim*NoiseDim)
	for _, v := range noise {
		assert.InDelta(t, 1, v.Len(), 1e-5)
		assert.Zero(t, v.Z())
	}
}

func TestSsao_Construction(t *testing.T) {
	fx := newFixture(t)
	dump := filepath.Join(t.TempDir(), "noise.png")
	f, err := NewSsao(fx.ctx,
		WithRand(rand.New(rand.NewPCG(1, 2))),
		WithKernelSize(16),
		WithRadius(1),
		WithNoiseDump(dump))
	require.NoError(t, err)

	assert.Len(t, f.Kernel(), 16)
	assert.Equal(t, float32(1), f.Radius())
	assert.Equal(t, []string{"resolved", "position", "normals"}, f.Inputs())
	assert.Equal(t, []shader.Define{
		{Name: "RANGE_CHECK", Value: "1"},
		{Name: "SSAO_KERNEL_SIZE", Value: "16"},
		{Name: "SSAO_RADIUS", Value: "1.0"},
	}, f.Pipeline().Defines())

	noise, ok := fx.dev.Object(f.NoiseTexture().Texture)
	require.True(t, ok)
	assert.Equal(t, wgpu.TextureFormatRGBA32Float, noise.Texture.Format)
	require.Len(t, noise.Pixels, NoiseDim*NoiseDim*16)
	texels := common.BytesToFloat32s(noise.Pixels)
	for i, v := range f.Noise() {
		assert.Equal(t, []float32{v[0], v[1], v[2], 1}, texels[i*4:i*4+4])
	}

	b, ok := f.Pipeline().Binding("samplerNoise")
	require.True(t, ok)
	assert.Equal(t, wgpu.TextureSampleTypeUnfilterableFloat, f.Pipeline().LayoutEntries()[b.Slot].Texture.SampleType)

	file, err := os.Open(dump)
	require.NoError(t, err)
	defer file.Close()
	img, err := png.Decode(file)
	require.NoError(t, err)
	assert.Equal(t, NoiseDim, img.Bounds().Dx())
}

func TestSsao_InvalidKernel(t *testing.T) {
	fx := newFixture(t)
	_, err := NewSsao(fx.ctx, WithKernelSize(0))
	assert.ErrorIs(t, err, ErrInvalidKernel)
	_, err = NewSsao(fx.ctx, WithRadius(0))
	assert.ErrorIs(t, err, ErrInvalidKernel)
}

func TestSsao_Render(t *testing.T) {
	fx := newFixture(t, "resolved", "position", "normals")
	f, err := NewSsao(fx.ctx, WithRand(rand.New(rand.NewPCG(1, 2))))
	require.NoError(t, err)

	err = f.Render(fx.frame(1, nil))
	assert.ErrorIs(t, err, ErrNoCamera)
	assert.Empty(t, fx.rec.Commands)

	cam := camera.NewCamera(camera.WithPosition(mgl32.Vec3{1, 2, 3}))
	require.NoError(t, f.Render(fx.frame(2, cam)))
	assert.Equal(t, 1, fx.rec.Count("Draw"))
	assert.Equal(t, 1, fx.reg.Publications("ssao"))

	scene := f.(*ssaoFilter).scene
	view, err := scene.Field("view")
	require.NoError(t, err)
	assert.Equal(t, common.Mat4ToBytes(cam.ViewMatrix()), view)
	pos, err := scene.Field("cameraPosition")
	require.NoError(t, err)
	assert.Equal(t, common.Float32sToBytes(1, 2, 3), pos)
	assert.Equal(t, scene.Bytes(), fx.dev.BufferContents(scene.Buffer())[:scene.Size()])

	// nothing changed, so the next frame uploads nothing
	writes := len(fx.dev.Writes())
	require.NoError(t, f.Render(fx.frame(3, cam)))
	assert.Len(t, fx.dev.Writes(), writes)

	cam.SetPosition(mgl32.Vec3{0, 0, 5})
	require.NoError(t, f.Render(fx.frame(4, cam)))
	assert.Greater(t, len(fx.dev.Writes()), writes)
}

func TestSsao_MissingGBuffer(t *testing.T) {
	fx := newFixture(t, "resolved")
	f, err := NewSsao(fx.ctx, WithGBuffer("gpos", "gnorm"))
	require.NoError(t, err)

	err = f.Render(fx.frame(1, camera.NewCamera()))
	require.Error(t, err)
	assert.ErrorIs(t, err, binding_set.ErrBindingSetIncomplete)
	assert.True(t, errors.Is(err, attachment.ErrUnknownAttachment))
	assert.Zero(t, fx.rec.Count("Draw"))
}
