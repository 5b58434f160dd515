package binding_set

import (
	"errors"
	"testing"

	"github.com/Carmen-Shannon/oxy-post/common"
	"github.com/Carmen-Shannon/oxy-post/engine/renderer/attachment"
	"github.com/Carmen-Shannon/oxy-post/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-post/engine/renderer/gpu/gputest"
	"github.com/Carmen-Shannon/oxy-post/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-post/engine/renderer/uniform"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tintFragment = `//@oxy:include fullscreen_output

struct TintParams {
    colour: vec4<f32>,
};

@group(0) @binding(0) var<uniform> params: TintParams;
@group(0) @binding(1) var samplerColour: texture_2d<f32>;
@group(0) @binding(2) var colourSampler: sampler;

@fragment
fn fs_main(in: FullscreenOutput) -> @location(0) vec4<f32> {
    return textureSample(samplerColour, colourSampler, in.uv) * params.colour;
}
`

type fixture struct {
	dev     *gputest.Device
	reg     attachment.Registry
	set     BindingSet
	block   uniform.Block
	sampler gpu.Handle
	scene   gpu.Texture
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dev := gputest.NewDevice()
	p, err := pipeline.NewPipeline(dev, "tint", pipeline.PipelineTypeRender, pipeline.WithFragmentShaderSource(tintFragment))
	require.NoError(t, err)

	block, err := uniform.NewBlock(dev, "tint", []uniform.FieldSpec{{Name: "colour", Size: 16}})
	require.NoError(t, err)
	sampler, err := dev.CreateSampler("linear", common.ClampedSampler)
	require.NoError(t, err)
	scene, err := dev.CreateRenderTarget("scene", 4, 4, wgpu.TextureFormatRGBA8Unorm)
	require.NoError(t, err)

	reg := attachment.NewRegistry()
	reg.Reset(1)
	reg.Publish("scene", attachment.FromTexture("scene", scene))

	return &fixture{dev: dev, reg: reg, set: NewBindingSet(dev, p), block: block, sampler: sampler, scene: scene}
}

func (f *fixture) stageAll(t *testing.T) {
	t.Helper()
	require.NoError(t, f.set.BindUniform(0, f.block))
	require.NoError(t, f.set.BindAttachment(1, f.reg, "scene"))
	require.NoError(t, f.set.BindSampler(2, f.sampler))
}

func TestUpdateComplete(t *testing.T) {
	f := newFixture(t)
	f.stageAll(t)

	require.True(t, f.set.Update(), "%v", f.set.Err())
	assert.NoError(t, f.set.Err())
	assert.True(t, f.set.BindGroup().Valid())

	entries := f.set.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, f.block.Buffer(), entries[0].Buffer)
	assert.Equal(t, uint64(16), entries[0].Size)
	assert.Equal(t, f.scene.View, entries[1].TextureView)
	assert.Equal(t, f.sampler, entries[2].Sampler)

	obj, ok := f.dev.Object(f.set.BindGroup())
	require.True(t, ok)
	assert.Equal(t, entries, obj.Entries)
}

func TestUpdateFailsWhenAnySlotIsMissing(t *testing.T) {
	stages := map[string]func(f *fixture) error{
		"uniform":    func(f *fixture) error { return f.set.BindUniform(0, f.block) },
		"attachment": func(f *fixture) error { return f.set.BindAttachment(1, f.reg, "scene") },
		"sampler":    func(f *fixture) error { return f.set.BindSampler(2, f.sampler) },
	}
	for omit := range stages {
		t.Run(omit, func(t *testing.T) {
			f := newFixture(t)
			for name, stage := range stages {
				if name != omit {
					require.NoError(t, stage(f))
				}
			}
			assert.False(t, f.set.Update())
			assert.ErrorIs(t, f.set.Err(), ErrBindingSetIncomplete)
			assert.False(t, f.set.BindGroup().Valid())
			assert.Zero(t, f.dev.Count("CreateBindGroup"))
		})
	}
}

func TestUpdateUnknownAttachment(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.set.BindUniform(0, f.block))
	require.NoError(t, f.set.BindAttachment(1, f.reg, "missing"))
	require.NoError(t, f.set.BindSampler(2, f.sampler))

	assert.False(t, f.set.Update())
	assert.ErrorIs(t, f.set.Err(), ErrBindingSetIncomplete)
	assert.ErrorIs(t, f.set.Err(), attachment.ErrUnknownAttachment)
}

func TestUpdateKeepsCommittedStateOnFailure(t *testing.T) {
	f := newFixture(t)
	f.stageAll(t)
	require.True(t, f.set.Update())
	committed := f.set.BindGroup()

	f.reg.Reset(2)
	require.NoError(t, f.set.BindAttachment(1, f.reg, "scene"))
	assert.False(t, f.set.Update())
	assert.Equal(t, committed, f.set.BindGroup())
	assert.Len(t, f.set.Entries(), 3)
}

func TestUpdateRejectsStaleAttachment(t *testing.T) {
	f := newFixture(t)
	f.stageAll(t)
	require.True(t, f.set.Update())

	f.reg.Reset(2)
	assert.False(t, f.set.Update())
	assert.ErrorContains(t, f.set.Err(), "staged in frame 1")

	f.reg.Publish("scene", attachment.FromTexture("scene", f.scene))
	require.NoError(t, f.set.BindAttachment(1, f.reg, "scene"))
	assert.True(t, f.set.Update())
}

func TestUpdateReusesBindGroup(t *testing.T) {
	f := newFixture(t)
	f.stageAll(t)
	require.True(t, f.set.Update())
	first := f.set.BindGroup()

	for frame := uint64(2); frame < 5; frame++ {
		f.reg.Reset(frame)
		f.reg.Publish("scene", attachment.FromTexture("scene", f.scene))
		require.NoError(t, f.set.BindAttachment(1, f.reg, "scene"))
		require.True(t, f.set.Update())
	}
	assert.Equal(t, first, f.set.BindGroup())
	assert.Equal(t, 1, f.dev.Count("CreateBindGroup"))

	other, err := f.dev.CreateRenderTarget("other", 4, 4, wgpu.TextureFormatRGBA8Unorm)
	require.NoError(t, err)
	f.reg.Publish("scene", attachment.FromTexture("scene", other))
	require.NoError(t, f.set.BindAttachment(1, f.reg, "scene"))
	require.True(t, f.set.Update())

	assert.NotEqual(t, first, f.set.BindGroup())
	assert.Equal(t, 2, f.dev.Count("CreateBindGroup"))
	_, ok := f.dev.Object(first)
	assert.False(t, ok, "replaced bind group is released")
}

func TestUpdateFlushesDirtyBlocks(t *testing.T) {
	f := newFixture(t)
	f.stageAll(t)
	require.NoError(t, f.block.PushVec4("colour", mgl32.Vec4{1, 0.5, 0.25, 1}))
	require.True(t, f.block.Dirty())

	require.True(t, f.set.Update())
	assert.False(t, f.block.Dirty())
	assert.Equal(t, f.block.Bytes(), f.dev.BufferContents(f.block.Buffer()))

	writes := len(f.dev.Writes())
	require.True(t, f.set.Update())
	assert.Len(t, f.dev.Writes(), writes, "clean blocks are not uploaded again")
}

func TestUpdateDoesNotFlushOnFailure(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.set.BindUniform(0, f.block))
	require.NoError(t, f.block.PushVec4("colour", mgl32.Vec4{1, 1, 1, 1}))

	assert.False(t, f.set.Update())
	assert.True(t, f.block.Dirty())
	assert.Empty(t, f.dev.Writes())
}

func TestUpdateDeviceFailure(t *testing.T) {
	f := newFixture(t)
	f.stageAll(t)
	f.dev.FailOn("CreateBindGroup", errors.New("device lost"))

	assert.False(t, f.set.Update())
	assert.ErrorIs(t, f.set.Err(), ErrBindingSetIncomplete)
	assert.ErrorContains(t, f.set.Err(), "device lost")
	assert.False(t, f.set.BindGroup().Valid())
}

func TestStagingErrors(t *testing.T) {
	f := newFixture(t)

	assert.ErrorIs(t, f.set.BindSampler(0, f.sampler), pipeline.ErrBindingLayoutMismatch)
	assert.ErrorIs(t, f.set.BindUniform(2, f.block), pipeline.ErrBindingLayoutMismatch)
	assert.ErrorIs(t, f.set.BindTexture(9, f.scene), pipeline.ErrBindingLayoutMismatch)
	assert.ErrorIs(t, f.set.BindAttachment(2, f.reg, "scene"), pipeline.ErrBindingLayoutMismatch)

	wide := `//@oxy:include fullscreen_output
struct Wide { a: vec4<f32>, b: vec4<f32>, };
@group(0) @binding(0) var<uniform> params: Wide;
@fragment fn fs_main(in: FullscreenOutput) -> @location(0) vec4<f32> { return params.a + params.b; }
`
	p, err := pipeline.NewPipeline(f.dev, "wide", pipeline.PipelineTypeRender, pipeline.WithFragmentShaderSource(wide))
	require.NoError(t, err)
	wideSet := NewBindingSet(f.dev, p, WithLabel("wide-set"))
	assert.Equal(t, "wide-set", wideSet.Label())
	assert.ErrorIs(t, wideSet.BindUniform(0, f.block), pipeline.ErrBindingLayoutMismatch)
}

func TestSlot(t *testing.T) {
	f := newFixture(t)
	slot, err := f.set.Slot("colourSampler")
	require.NoError(t, err)
	assert.Equal(t, uint32(2), slot)

	_, err = f.set.Slot("samplerDepth")
	assert.ErrorIs(t, err, pipeline.ErrBindingLayoutMismatch)
}

func TestBindAndRelease(t *testing.T) {
	f := newFixture(t)
	rec := gputest.NewRecorder()

	f.set.Bind(rec)
	assert.Zero(t, rec.Count("SetBindGroup"), "nothing committed yet")

	f.stageAll(t)
	require.True(t, f.set.Update())
	require.NoError(t, rec.BeginRenderPass("tint", f.scene.View))
	f.set.Bind(rec)
	rec.EndRenderPass()

	binds := rec.Filter("SetBindGroup")
	require.Len(t, binds, 1)
	assert.Equal(t, uint32(0), binds[0].Group)
	assert.Equal(t, f.set.BindGroup(), binds[0].Handle)

	f.set.Release()
	assert.Zero(t, f.dev.Live(gputest.KindBindGroup))
	assert.False(t, f.set.BindGroup().Valid())
}
