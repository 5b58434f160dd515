// Package gpu is the narrow device boundary of the post-processing stack.
//
// Every GPU object created through a Device is owned by the device and addressed by a Handle. Filters, pipelines and
// binding sets only ever hold handles, which keeps them testable against the recording fake in gputest and lets the
// WebGPU backend be swapped without touching the chain.
package gpu

import (
	"errors"

	"github.com/Carmen-Shannon/oxy-post/common"
	"github.com/cogentcore/webgpu/wgpu"
)

// Handle addresses a GPU object owned by a Device. The zero Handle never refers to a live object.
type Handle uint32

// InvalidHandle is the zero Handle.
const InvalidHandle Handle = 0

// Valid reports whether h is non-zero.
func (h Handle) Valid() bool {
	return h != InvalidHandle
}

// ErrUnknownHandle is returned when a handle does not refer to a live object of the expected kind.
var ErrUnknownHandle = errors.New("gpu: unknown handle")

// ErrNoActivePass is returned when a command that needs an open pass is recorded outside of one.
var ErrNoActivePass = errors.New("gpu: no active pass")

// Texture groups the handles of a texture and its default view together with its dimensions.
type Texture struct {
	Texture Handle
	View    Handle
	Width   uint32
	Height  uint32
	Format  wgpu.TextureFormat
}

// Handles returns the texture and view handles for release.
func (t Texture) Handles() []Handle {
	return []Handle{t.View, t.Texture}
}

// BufferWrite describes a partial upload into a GPU buffer.
type BufferWrite struct {
	Buffer Handle
	Offset uint64
	Data   []byte
}

// BindGroupEntry is a single resource bound at a binding index. Exactly one of Buffer, TextureView and Sampler is set.
type BindGroupEntry struct {
	Binding     uint32
	Buffer      Handle
	Size        uint64
	TextureView Handle
	Sampler     Handle
}

// RenderPipelineDescriptor describes a render pipeline with a single color target and no vertex buffers.
type RenderPipelineDescriptor struct {
	Label              string
	BindGroupLayouts   []Handle
	VertexModule       Handle
	VertexEntryPoint   string
	FragmentModule     Handle
	FragmentEntryPoint string
	TargetFormat       wgpu.TextureFormat
	Topology           wgpu.PrimitiveTopology
	FrontFace          wgpu.FrontFace
	CullMode           wgpu.CullMode
	WriteMask          wgpu.ColorWriteMask
	Blend              *wgpu.BlendState
}

// ComputePipelineDescriptor describes a compute pipeline.
type ComputePipelineDescriptor struct {
	Label            string
	BindGroupLayouts []Handle
	Module           Handle
	EntryPoint       string
}

// Device creates and owns GPU objects. Implementations must be safe for concurrent use so that pipelines can be
// built in parallel.
type Device interface {
	// CreateShaderModule compiles WGSL source into a shader module.
	//
	// Parameters:
	//   - label: debug label for the module
	//   - wgsl: the fully pre-processed WGSL source
	//
	// Returns:
	//   - Handle: the shader module handle
	//   - error: an error if the device rejected the source
	CreateShaderModule(label, wgsl string) (Handle, error)

	// CreateBindGroupLayout creates a bind group layout from reflected layout entries.
	//
	// Parameters:
	//   - label: debug label for the layout
	//   - entries: the layout entries, one per binding
	//
	// Returns:
	//   - Handle: the bind group layout handle
	//   - error: an error if the layout could not be created
	CreateBindGroupLayout(label string, entries []wgpu.BindGroupLayoutEntry) (Handle, error)

	// CreateRenderPipeline creates a render pipeline and its pipeline layout.
	//
	// Parameters:
	//   - desc: the render pipeline description
	//
	// Returns:
	//   - Handle: the render pipeline handle
	//   - error: an error if the pipeline could not be created
	CreateRenderPipeline(desc RenderPipelineDescriptor) (Handle, error)

	// CreateComputePipeline creates a compute pipeline and its pipeline layout.
	//
	// Parameters:
	//   - desc: the compute pipeline description
	//
	// Returns:
	//   - Handle: the compute pipeline handle
	//   - error: an error if the pipeline could not be created
	CreateComputePipeline(desc ComputePipelineDescriptor) (Handle, error)

	// CreateBuffer allocates a GPU buffer.
	//
	// Parameters:
	//   - label: debug label for the buffer
	//   - size: size of the buffer in bytes
	//   - usage: the buffer usage flags
	//
	// Returns:
	//   - Handle: the buffer handle
	//   - error: an error if the buffer could not be created
	CreateBuffer(label string, size uint64, usage wgpu.BufferUsage) (Handle, error)

	// WriteBuffers queues partial uploads into buffers. Writes to unknown handles are skipped.
	//
	// Parameters:
	//   - writes: the writes to queue, applied in order
	WriteBuffers(writes []BufferWrite)

	// CreateTexture creates a sampled texture initialised from CPU pixel data, plus its default view.
	//
	// Parameters:
	//   - label: debug label for the texture
	//   - data: the pixels, dimensions and format of the texture
	//
	// Returns:
	//   - Texture: the texture and view handles
	//   - error: an error if the texture could not be created
	CreateTexture(label string, data common.TextureStagingData) (Texture, error)

	// CreateSampler creates a sampler. Zero-valued fields fall back to linear filtering with repeat addressing.
	//
	// Parameters:
	//   - label: debug label for the sampler
	//   - desc: the sampler configuration
	//
	// Returns:
	//   - Handle: the sampler handle
	//   - error: an error if the sampler could not be created
	CreateSampler(label string, desc common.SamplerStagingData) (Handle, error)

	// CreateRenderTarget creates a texture that can be rendered into and sampled by a later pass.
	//
	// Parameters:
	//   - label: debug label for the target
	//   - width: width in pixels
	//   - height: height in pixels
	//   - format: the color format of the target
	//
	// Returns:
	//   - Texture: the texture and view handles
	//   - error: an error if the target could not be created
	CreateRenderTarget(label string, width, height uint32, format wgpu.TextureFormat) (Texture, error)

	// CreateBindGroup creates a bind group against a layout.
	//
	// Parameters:
	//   - label: debug label for the bind group
	//   - layout: the bind group layout handle
	//   - entries: the bound resources
	//
	// Returns:
	//   - Handle: the bind group handle
	//   - error: an error if a handle is unknown or the device rejected the group
	CreateBindGroup(label string, layout Handle, entries []BindGroupEntry) (Handle, error)

	// Release destroys the objects behind the given handles. Unknown and invalid handles are ignored.
	//
	// Parameters:
	//   - handles: the handles to release
	Release(handles ...Handle)
}

// CommandRecorder records GPU commands for one frame in program order. It is used from a single goroutine.
type CommandRecorder interface {
	// BeginRenderPass opens a render pass that clears and stores into the target view.
	BeginRenderPass(label string, target Handle) error

	// EndRenderPass closes the open render pass.
	EndRenderPass()

	// BeginComputePass opens a compute pass.
	BeginComputePass(label string) error

	// EndComputePass closes the open compute pass.
	EndComputePass()

	// SetPipeline sets the render or compute pipeline for the open pass.
	SetPipeline(pipeline Handle)

	// SetBindGroup sets the bind group at the given group index for the open pass.
	SetBindGroup(group uint32, bindGroup Handle)

	// Draw issues a non-indexed draw with no vertex buffers bound.
	Draw(vertexCount, instanceCount uint32)

	// Dispatch issues a compute dispatch.
	Dispatch(x, y, z uint32)
}
