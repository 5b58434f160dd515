package pipeline

import (
	"errors"
	"testing"
	"testing/fstest"

	"github.com/Carmen-Shannon/oxy-post/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-post/engine/renderer/gpu/gputest"
	"github.com/Carmen-Shannon/oxy-post/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const blurFragment = `//@oxy:include fullscreen_output
//@oxy:define TAPS 4

struct BlurParams {
    direction: vec2<f32>,
    radius: f32,
    padding: f32,
};

@group(0) @binding(0) var<uniform> params: BlurParams;
@group(0) @binding(1) var samplerColour: texture_2d<f32>;
@group(0) @binding(2) var colourSampler: sampler;
@group(0) @binding(3) var samplerNoise: texture_2d<f32>;

@fragment
fn fs_main(in: FullscreenOutput) -> @location(0) vec4<f32> {
    var c = vec4<f32>(0.0);
    for (var i = 0; i < TAPS; i++) {
        c += textureSample(samplerColour, colourSampler, in.uv + params.direction * f32(i));
    }
    let n = textureLoad(samplerNoise, vec2<i32>(0, 0), 0);
    return c / f32(TAPS) + n * 0.0;
}
`

func TestNewRenderPipeline(t *testing.T) {
	dev := gputest.NewDevice()
	p, err := NewPipeline(dev, "blur", PipelineTypeRender,
		WithFragmentShaderSource(blurFragment),
		WithDefines(shader.Define{Name: "TAPS", Value: "8"}),
		WithTargetFormat(wgpu.TextureFormatBGRA8Unorm),
		WithUnfilterableTextures("samplerNoise"),
	)
	require.NoError(t, err)

	assert.Equal(t, PipelineTypeRender, p.Type())
	assert.Equal(t, "vs_main", p.Shader(shader.ShaderTypeVertex).EntryPoint())
	assert.Contains(t, p.Shader(shader.ShaderTypeFragment).Source(), "i < 8")
	assert.Equal(t, []shader.Define{{Name: "TAPS", Value: "8"}}, p.Defines())

	bindings := p.BindingLayout()
	require.Len(t, bindings, 4)
	assert.Equal(t, Binding{Slot: 0, Name: "params", Stages: wgpu.ShaderStageFragment, Kind: BindingKindUniform, MinSize: 16}, bindings[0])
	assert.Equal(t, BindingKindSampledTexture, bindings[1].Kind)
	assert.Equal(t, BindingKindSampler, bindings[2].Kind)

	b, ok := p.Binding("colourSampler")
	require.True(t, ok)
	assert.Equal(t, uint32(2), b.Slot)
	_, ok = p.Binding("missing")
	assert.False(t, ok)

	assert.Equal(t, wgpu.TextureSampleTypeFloat, p.LayoutEntries()[1].Texture.SampleType)
	assert.Equal(t, wgpu.TextureSampleTypeUnfilterableFloat, p.LayoutEntries()[3].Texture.SampleType)

	obj, ok := dev.Object(p.Handle())
	require.True(t, ok)
	assert.Equal(t, gputest.KindRenderPipeline, obj.Kind)
	assert.Equal(t, wgpu.TextureFormatBGRA8Unorm, obj.Render.TargetFormat)
	assert.Equal(t, "fs_main", obj.Render.FragmentEntryPoint)
	assert.Nil(t, obj.Render.Blend)
	assert.Equal(t, []gpu.Handle{p.Layout()}, obj.Render.BindGroupLayouts)

	assert.Equal(t, 2, dev.Live(gputest.KindShaderModule))
	p.Release()
	assert.Zero(t, dev.Live(gputest.KindShaderModule))
	assert.Zero(t, dev.Live(gputest.KindRenderPipeline))
	assert.Zero(t, dev.Live(gputest.KindBindGroupLayout))
}

func TestNewComputePipeline(t *testing.T) {
	dev := gputest.NewDevice()
	loader := shader.NewFSLoader(fstest.MapFS{
		"clear.wgsl": &fstest.MapFile{Data: []byte("@compute @workgroup_size(8, 8) fn main() {}")},
	})
	p, err := NewPipeline(dev, "clear", PipelineTypeCompute, WithLoader(loader), WithComputeShaderPath("clear.wgsl"))
	require.NoError(t, err)
	assert.Equal(t, [3]uint32{8, 8, 1}, p.Shader(shader.ShaderTypeCompute).WorkgroupSize())

	rec := gputest.NewRecorder()
	require.NoError(t, rec.BeginComputePass("clear"))
	p.Bind(rec)
	p.Dispatch(rec, 4, 2, 1)
	rec.EndComputePass()

	assert.Equal(t, []string{"BeginComputePass", "SetPipeline", "Dispatch", "EndComputePass"}, rec.Ops())
	assert.Equal(t, [3]uint32{4, 2, 1}, rec.Filter("Dispatch")[0].Counts)
	assert.Empty(t, rec.Errors())
}

func TestPipelineDraw(t *testing.T) {
	dev := gputest.NewDevice()
	p, err := NewPipeline(dev, "blur", PipelineTypeRender, WithFragmentShaderSource(blurFragment), WithBlendEnabled(true))
	require.NoError(t, err)

	obj, _ := dev.Object(p.Handle())
	assert.NotNil(t, obj.Render.Blend)

	rec := gputest.NewRecorder()
	require.NoError(t, rec.BeginRenderPass("blur", 1))
	p.Bind(rec)
	p.Draw(rec, FullscreenVertexCount)
	rec.EndRenderPass()

	draws := rec.Filter("Draw")
	require.Len(t, draws, 1)
	assert.Equal(t, [3]uint32{3, 1, 0}, draws[0].Counts)
	assert.Equal(t, p.Handle(), rec.Filter("SetPipeline")[0].Handle)
}

func TestPipelineMergesStages(t *testing.T) {
	vertex := `//@oxy:include fullscreen_output
struct Params { scale: f32, };
@group(0) @binding(0) var<uniform> params: Params;
@vertex fn vs_main(@builtin(vertex_index) i: u32) -> FullscreenOutput {
    var out: FullscreenOutput;
    out.position = vec4<f32>(params.scale);
    return out;
}
`
	fragment := `//@oxy:include fullscreen_output
struct Params { scale: f32, };
@group(0) @binding(0) var<uniform> params: Params;
@fragment fn fs_main(in: FullscreenOutput) -> @location(0) vec4<f32> { return vec4<f32>(params.scale); }
`
	vs, err := shader.NewShader("v", shader.ShaderTypeVertex, "", shader.WithSource(vertex))
	require.NoError(t, err)

	p, err := NewPipeline(gputest.NewDevice(), "merge", PipelineTypeRender,
		WithVertexShader(vs),
		WithFragmentShaderSource(fragment),
	)
	require.NoError(t, err)
	require.Len(t, p.BindingLayout(), 1)
	assert.Equal(t, wgpu.ShaderStageVertex|wgpu.ShaderStageFragment, p.BindingLayout()[0].Stages)
}

func TestPipelineErrors(t *testing.T) {
	otherGroup := `//@oxy:include fullscreen_output
@group(1) @binding(0) var s: sampler;
@fragment fn fs_main(in: FullscreenOutput) -> @location(0) vec4<f32> { return vec4<f32>(1.0); }
`
	conflicting := `//@oxy:include fullscreen_output
@group(0) @binding(0) var s: texture_2d<f32>;
@fragment fn fs_main(in: FullscreenOutput) -> @location(0) vec4<f32> { return vec4<f32>(1.0); }
`
	conflictingVertex := `//@oxy:include fullscreen_output
@group(0) @binding(0) var s: sampler;
@vertex fn vs_main() -> FullscreenOutput { var out: FullscreenOutput; return out; }
`
	storage := `@group(0) @binding(0) var<storage, read_write> data: array<f32>;
@compute @workgroup_size(1) fn main() {}
`

	tests := []struct {
		name    string
		typ     PipelineType
		opts    []PipelineBuilderOption
		wantErr error
	}{
		{"no fragment", PipelineTypeRender, nil, shader.ErrShaderCompile},
		{"no compute", PipelineTypeCompute, nil, shader.ErrShaderCompile},
		{"undeclared define", PipelineTypeRender, []PipelineBuilderOption{
			WithFragmentShaderSource(blurFragment), WithDefines(shader.Define{Name: "NOPE", Value: "1"}),
		}, shader.ErrShaderCompile},
		{"bad source", PipelineTypeRender, []PipelineBuilderOption{WithFragmentShaderSource("fn nothing() {}")}, shader.ErrShaderCompile},
		{"group 1", PipelineTypeRender, []PipelineBuilderOption{WithFragmentShaderSource(otherGroup)}, ErrBindingLayoutMismatch},
		{"conflicting stages", PipelineTypeRender, []PipelineBuilderOption{
			WithVertexShader(mustShader(t, shader.ShaderTypeVertex, conflictingVertex)), WithFragmentShaderSource(conflicting),
		}, ErrBindingLayoutMismatch},
		{"wrong prebuilt stage", PipelineTypeRender, []PipelineBuilderOption{
			WithVertexShader(mustShader(t, shader.ShaderTypeFragment, conflicting)), WithFragmentShaderSource(conflicting),
		}, shader.ErrShaderCompile},
		{"unknown unfilterable", PipelineTypeRender, []PipelineBuilderOption{
			WithFragmentShaderSource(blurFragment), WithUnfilterableTextures("samplerDepth"),
		}, ErrBindingLayoutMismatch},
		{"storage buffer", PipelineTypeCompute, []PipelineBuilderOption{WithComputeShaderSource(storage)}, ErrBindingLayoutMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := gputest.NewDevice()
			_, err := NewPipeline(dev, "bad", tt.typ, tt.opts...)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Zero(t, dev.Live(gputest.KindShaderModule))
		})
	}
}

func TestPipelineDeviceFailureReleases(t *testing.T) {
	dev := gputest.NewDevice()
	dev.FailOn("CreateRenderPipeline", errors.New("out of memory"))

	_, err := NewPipeline(dev, "blur", PipelineTypeRender, WithFragmentShaderSource(blurFragment))
	assert.ErrorContains(t, err, "out of memory")
	assert.Zero(t, dev.Live(gputest.KindShaderModule))
	assert.Zero(t, dev.Live(gputest.KindBindGroupLayout))

	dev = gputest.NewDevice()
	dev.FailOn("CreateShaderModule", errors.New("invalid wgsl"))
	_, err = NewPipeline(dev, "blur", PipelineTypeRender, WithFragmentShaderSource(blurFragment))
	assert.ErrorIs(t, err, shader.ErrShaderCompile)
}

func mustShader(t *testing.T, typ shader.ShaderType, src string) shader.Shader {
	t.Helper()
	s, err := shader.NewShader("prebuilt", typ, "", shader.WithSource(src))
	require.NoError(t, err)
	return s
}
