package shader

import (
	"testing"

	"github.com/cogentcore/webgpu/wgpu"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ssaoLikeSource = `
struct FullscreenOutput {
    @builtin(position) position: vec4<f32>,
    @location(0) uv: vec2<f32>,
};

struct Scene {
    kernel: array<vec4<f32>, 64>,
    projection: mat4x4<f32>,
    view: mat4x4<f32>,
    cameraPosition: vec3<f32>,
    padding: f32,
};

@group(0) @binding(0) var<uniform> scene: Scene;
@group(0) @binding(1) var samplerColour: texture_2d<f32>;
@group(0) @binding(4) var samplerNoise: texture_2d<f32>;
@group(0) @binding(5) var linearSampler: sampler;
/* @group(0) @binding(6) var commented: sampler; */

@fragment
fn fs_main(in: FullscreenOutput) -> @location(0) vec4<f32> {
    return textureSample(samplerColour, linearSampler, in.uv);
}
`

func TestReflectFragment(t *testing.T) {
	r, err := reflectSource(ssaoLikeSource, ShaderTypeFragment)
	require.NoError(t, err)

	assert.Equal(t, "fs_main", r.EntryPoint)
	assert.Equal(t, [3]uint32{}, r.WorkgroupSize)
	require.Contains(t, r.Layouts, 0)

	entries := r.Layouts[0].Entries
	require.Len(t, entries, 4)
	assert.Equal(t, []uint32{0, 1, 4, 5}, []uint32{entries[0].Binding, entries[1].Binding, entries[2].Binding, entries[3].Binding})

	assert.Equal(t, wgpu.BufferBindingTypeUniform, entries[0].Buffer.Type)
	assert.Equal(t, uint64(64*16+64+64+16), entries[0].Buffer.MinBindingSize)
	assert.Equal(t, wgpu.TextureSampleTypeFloat, entries[1].Texture.SampleType)
	assert.Equal(t, wgpu.TextureViewDimension2D, entries[1].Texture.ViewDimension)
	assert.Equal(t, wgpu.SamplerBindingTypeFiltering, entries[3].Sampler.Type)
	for _, e := range entries {
		assert.Equal(t, wgpu.ShaderStageFragment, e.Visibility)
	}

	assert.Equal(t, map[int]string{0: "scene", 1: "samplerColour", 4: "samplerNoise", 5: "linearSampler"}, r.VarNames[0])
}

func TestReflectCompute(t *testing.T) {
	src := `
@group(1) @binding(0) var<storage, read_write> data: array<f32>;
@group(1) @binding(1) var out: texture_storage_2d<rgba8unorm, write>;
@compute @workgroup_size(8, 8)
fn main() {}
`
	r, err := reflectSource(src, ShaderTypeCompute)
	require.NoError(t, err)
	assert.Equal(t, "main", r.EntryPoint)
	assert.Equal(t, [3]uint32{8, 8, 1}, r.WorkgroupSize)

	entries := r.Layouts[1].Entries
	require.Len(t, entries, 2)
	assert.Equal(t, wgpu.BufferBindingTypeStorage, entries[0].Buffer.Type)
	assert.Equal(t, uint64(4), entries[0].Buffer.MinBindingSize)
	assert.Equal(t, wgpu.TextureFormatRGBA8Unorm, entries[1].StorageTexture.Format)
	assert.Equal(t, wgpu.StorageTextureAccessWriteOnly, entries[1].StorageTexture.Access)
}

func TestReflectErrors(t *testing.T) {
	_, err := reflectSource("fn helper() {}", ShaderTypeFragment)
	assert.ErrorContains(t, err, "no fragment entry point")

	dup := `
@group(0) @binding(0) var a: sampler;
@group(0) @binding(0) var b: sampler;
@vertex fn vs_main() -> @builtin(position) vec4<f32> { return vec4<f32>(); }
`
	_, err = reflectSource(dup, ShaderTypeVertex)
	assert.ErrorContains(t, err, "declared twice")

	bad := `
@group(0) @binding(0) var a: texture_2d<f64>;
@vertex fn vs_main() -> @builtin(position) vec4<f32> { return vec4<f32>(); }
`
	_, err = reflectSource(bad, ShaderTypeVertex)
	assert.ErrorContains(t, err, "unsupported resource type")
}

func TestResolveTypeLayout(t *testing.T) {
	known := map[string]typeLayout{"Light": {32, 16}}
	tests := []struct {
		typeName string
		want     typeLayout
		ok       bool
	}{
		{"f32", typeLayout{4, 4}, true},
		{"vec3<f32>", typeLayout{12, 16}, true},
		{"array<vec3<f32>, 4>", typeLayout{64, 16}, true},
		{"array< f32 , 3 >", typeLayout{12, 4}, true},
		{"array<Light, 2>", typeLayout{64, 16}, true},
		{"array<Light>", typeLayout{32, 16}, true},
		{"Unknown", typeLayout{}, false},
		{"array<f32, N>", typeLayout{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.typeName, func(t *testing.T) {
			got, ok := resolveTypeLayout(tt.typeName, known)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestComputeStructLayoutsNested(t *testing.T) {
	src := `
struct Outer { inner: Inner, scale: f32, };
struct Inner { a: vec3<f32>, };
`
	layouts := computeStructLayouts(parseStructBlocks(stripComments(src)))
	assert.Equal(t, typeLayout{16, 16}, layouts["Inner"])
	assert.Equal(t, typeLayout{32, 16}, layouts["Outer"])
}

func TestStripComments(t *testing.T) {
	src := "a // line\nb /* block /* nested */ still */ c"
	assert.Equal(t, "a \nb  c", stripComments(src))
}
