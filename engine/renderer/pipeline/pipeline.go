package pipeline

import (
	_ "embed"
	"fmt"
	"sort"

	"github.com/Carmen-Shannon/oxy-post/engine/logger"
	"github.com/Carmen-Shannon/oxy-post/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-post/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"go.uber.org/zap"
)

// FullscreenVertexSource is the default vertex stage of render pipelines: one triangle covering the viewport,
// emitting FullscreenOutput with uv (0, 0) at the top left.
//
//go:embed assets/fullscreen_vertex.wgsl
var FullscreenVertexSource string

// FullscreenVertexCount is the vertex count of a full-screen draw with the default vertex stage.
const FullscreenVertexCount = 3

// PipelineType identifies whether a pipeline is a compute pipeline or a render pipeline.
type PipelineType int

const (
	// PipelineTypeCompute indicates a compute pipeline with a single compute shader entry point.
	PipelineTypeCompute PipelineType = iota

	// PipelineTypeRender indicates a render pipeline with vertex and fragment shader entry points.
	PipelineTypeRender
)

// stageSource is where a stage's shader comes from: a prebuilt shader, inline source, or a loader path.
type stageSource struct {
	shader shader.Shader
	source string
	path   string
}

func (s stageSource) empty() bool {
	return s.shader == nil && s.source == "" && s.path == ""
}

// pipeline is the implementation of the Pipeline interface.
// It holds the device handles of a compiled render or compute pipeline and its reflected group 0 layout.
type pipeline struct {
	device gpu.Device
	logger *zap.Logger

	// pipelineType indicates the type of pipeline this is; compute or render
	pipelineType PipelineType
	// pipelineKey is the unique identifier for this pipeline, used for labels and lookups
	pipelineKey string

	vertex, fragment, compute stageSource

	loader       shader.Loader
	defines      []shader.Define
	compiler     shader.Compiler
	unfilterable map[string]bool

	vertexShader, fragmentShader, computeShader shader.Shader

	// The following properties configure render pipelines and can be set with the builder options.
	// Compute pipelines keep the defaults but do not use them.

	targetFormat wgpu.TextureFormat
	blendEnabled bool
	cullMode     wgpu.CullMode
	topology     wgpu.PrimitiveTopology
	frontFace    wgpu.FrontFace
	writeMask    wgpu.ColorWriteMask
	blendState   *wgpu.BlendState

	layoutEntries []wgpu.BindGroupLayoutEntry
	bindings      []Binding
	resolved      []shader.Define

	modules []gpu.Handle
	layout  gpu.Handle
	handle  gpu.Handle
}

// Pipeline defines the interface for a compiled GPU pipeline, encapsulating either a render pipeline
// (vertex + fragment shaders) or a compute pipeline (compute shader) together with the group 0 binding
// layout reflected from its stages.
type Pipeline interface {
	// Type returns the type of the pipeline
	//
	// Returns:
	//   - PipelineType: the type of the pipeline (render or compute)
	Type() PipelineType

	// PipelineKey returns the unique key associated with this pipeline, used for labels and lookups.
	//
	// Returns:
	//   - string: the unique key for this pipeline
	PipelineKey() string

	// Shader retrieves the shader associated with the specified type if it exists, nil otherwise.
	//
	// Parameters:
	//   - shaderType: the type of shader to retrieve (vertex, fragment, or compute)
	//
	// Returns:
	//   - shader.Shader: the shader associated with the specified type, or nil if not set
	Shader(shaderType shader.ShaderType) shader.Shader

	// Handle returns the device handle of the render or compute pipeline.
	//
	// Returns:
	//   - gpu.Handle: the pipeline handle
	Handle() gpu.Handle

	// Layout returns the device handle of the group 0 bind group layout.
	//
	// Returns:
	//   - gpu.Handle: the bind group layout handle
	Layout() gpu.Handle

	// BindingLayout returns the reflected group 0 bindings sorted by slot.
	//
	// Returns:
	//   - []Binding: the bindings of the pipeline
	BindingLayout() []Binding

	// LayoutEntries returns the merged layout entries the bind group layout was created from.
	//
	// Returns:
	//   - []wgpu.BindGroupLayoutEntry: the layout entries sorted by binding
	LayoutEntries() []wgpu.BindGroupLayoutEntry

	// Binding looks up a binding by its WGSL variable name.
	//
	// Parameters:
	//   - name: the variable name
	//
	// Returns:
	//   - Binding: the binding
	//   - bool: false if no stage declares name
	Binding(name string) (Binding, bool)

	// Defines returns the define values baked into the stages, sorted by name.
	//
	// Returns:
	//   - []shader.Define: the effective define values
	Defines() []shader.Define

	// TargetFormat returns the color target format of a render pipeline.
	//
	// Returns:
	//   - wgpu.TextureFormat: the color target format
	TargetFormat() wgpu.TextureFormat

	// BlendEnabled returns whether blending is enabled for this pipeline.
	//
	// Returns:
	//   - bool: true if blending is enabled, false otherwise
	BlendEnabled() bool

	// CullMode returns the cull mode configured for this pipeline.
	//
	// Returns:
	//   - wgpu.CullMode: the cull mode for this pipeline
	CullMode() wgpu.CullMode

	// Topology returns the primitive topology configured for this pipeline.
	//
	// Returns:
	//   - wgpu.PrimitiveTopology: the primitive topology for this pipeline
	Topology() wgpu.PrimitiveTopology

	// FrontFace returns the front face winding order configured for this pipeline.
	//
	// Returns:
	//   - wgpu.FrontFace: the front face winding order for this pipeline
	FrontFace() wgpu.FrontFace

	// WriteMask returns the color write mask configured for this pipeline.
	//
	// Returns:
	//   - wgpu.ColorWriteMask: the color write mask for this pipeline
	WriteMask() wgpu.ColorWriteMask

	// BlendState returns the blend state configured for this pipeline.
	//
	// Returns:
	//   - *wgpu.BlendState: the blend state for this pipeline, used only when blending is enabled
	BlendState() *wgpu.BlendState

	// Bind sets the pipeline on the open pass of rec.
	//
	// Parameters:
	//   - rec: the command recorder
	Bind(rec gpu.CommandRecorder)

	// Draw issues a non-indexed draw of vertexCount vertices with no vertex buffers.
	//
	// Parameters:
	//   - rec: the command recorder
	//   - vertexCount: the number of vertices, FullscreenVertexCount for a full-screen pass
	Draw(rec gpu.CommandRecorder, vertexCount uint32)

	// Dispatch issues a compute dispatch.
	//
	// Parameters:
	//   - rec: the command recorder
	//   - x, y, z: the workgroup counts
	Dispatch(rec gpu.CommandRecorder, x, y, z uint32)

	// Release releases the pipeline, its layout and its shader modules.
	Release()
}

var _ Pipeline = &pipeline{}

// NewPipeline builds the stages of a pipeline, merges their binding layouts and creates the device objects.
// Render pipelines without a vertex stage use FullscreenVertexSource.
//
// Parameters:
//   - device: the device that owns the pipeline objects
//   - pipelineKey: the unique key for this pipeline
//   - pipelineType: the type of pipeline to create (render or compute)
//   - opts: a variadic list of PipelineBuilderOption functions to configure the pipeline
//
// Returns:
//   - Pipeline: the compiled pipeline
//   - error: an error wrapping shader.ErrShaderCompile or ErrBindingLayoutMismatch, or a device error
func NewPipeline(device gpu.Device, pipelineKey string, pipelineType PipelineType, opts ...PipelineBuilderOption) (Pipeline, error) {
	p := &pipeline{
		device:       device,
		logger:       logger.Log,
		pipelineKey:  pipelineKey,
		pipelineType: pipelineType,
		targetFormat: wgpu.TextureFormatRGBA8Unorm,
		blendEnabled: false,
		cullMode:     wgpu.CullModeNone,
		topology:     wgpu.PrimitiveTopologyTriangleList,
		frontFace:    wgpu.FrontFaceCCW,
		writeMask:    wgpu.ColorWriteMaskAll,
		blendState: &wgpu.BlendState{
			Color: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorSrcAlpha,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				Operation: wgpu.BlendOperationAdd,
			},
			Alpha: wgpu.BlendComponent{
				SrcFactor: wgpu.BlendFactorOne,
				DstFactor: wgpu.BlendFactorOneMinusSrcAlpha,
				Operation: wgpu.BlendOperationAdd,
			},
		},
	}
	for _, opt := range opts {
		opt(p)
	}

	if err := p.buildShaders(); err != nil {
		return nil, err
	}

	var err error
	p.layoutEntries, p.bindings, err = mergeLayouts(p.unfilterable, p.stages()...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.pipelineKey, err)
	}

	if err := p.create(); err != nil {
		p.Release()
		return nil, err
	}

	p.logger.Debug("pipeline created",
		zap.String("key", p.pipelineKey),
		zap.Int("bindings", len(p.bindings)),
		zap.Int("defines", len(p.resolved)),
	)
	return p, nil
}

// stages returns the built shaders in stage order.
func (p *pipeline) stages() []shader.Shader {
	if p.pipelineType == PipelineTypeCompute {
		return []shader.Shader{p.computeShader}
	}
	return []shader.Shader{p.vertexShader, p.fragmentShader}
}

// buildShaders builds every stage and checks that each supplied define is declared by some stage.
func (p *pipeline) buildShaders() error {
	var err error
	switch p.pipelineType {
	case PipelineTypeRender:
		if p.fragment.empty() {
			return fmt.Errorf("%w: %s: render pipeline has no fragment shader", shader.ErrShaderCompile, p.pipelineKey)
		}
		if p.vertex.empty() {
			p.vertex.source = FullscreenVertexSource
		}
		if p.vertexShader, err = p.buildStage(p.vertex, shader.ShaderTypeVertex); err != nil {
			return err
		}
		if p.fragmentShader, err = p.buildStage(p.fragment, shader.ShaderTypeFragment); err != nil {
			return err
		}
	case PipelineTypeCompute:
		if p.compute.empty() {
			return fmt.Errorf("%w: %s: compute pipeline has no compute shader", shader.ErrShaderCompile, p.pipelineKey)
		}
		if p.computeShader, err = p.buildStage(p.compute, shader.ShaderTypeCompute); err != nil {
			return err
		}
	default:
		return fmt.Errorf("pipeline: %s: unknown pipeline type %d", p.pipelineKey, p.pipelineType)
	}

	declared := make(map[string]string)
	for _, s := range p.stages() {
		for _, d := range s.Defines() {
			declared[d.Name] = d.Value
		}
	}
	for _, d := range p.defines {
		if _, ok := declared[d.Name]; !ok {
			return fmt.Errorf("%w: %s: define %q is not declared by any stage", shader.ErrShaderCompile, p.pipelineKey, d.Name)
		}
	}
	for name, value := range declared {
		p.resolved = append(p.resolved, shader.Define{Name: name, Value: value})
	}
	sort.Slice(p.resolved, func(i, j int) bool { return p.resolved[i].Name < p.resolved[j].Name })
	return nil
}

// buildStage returns the prebuilt shader of a stage or builds it from inline source or a loader path.
func (p *pipeline) buildStage(src stageSource, shaderType shader.ShaderType) (shader.Shader, error) {
	if src.shader != nil {
		if src.shader.ShaderType() != shaderType {
			return nil, fmt.Errorf("%w: %s: %s is a %s shader, want %s", shader.ErrShaderCompile, p.pipelineKey, src.shader.Key(), src.shader.ShaderType(), shaderType)
		}
		return src.shader, nil
	}

	opts := []shader.ShaderBuilderOption{shader.WithDefines(p.defines...)}
	if src.source != "" {
		opts = append(opts, shader.WithSource(src.source))
	}
	if p.loader != nil {
		opts = append(opts, shader.WithLoader(p.loader))
	}
	if p.compiler != nil {
		opts = append(opts, shader.WithCompiler(p.compiler))
	}
	return shader.NewShader(p.pipelineKey+"/"+shaderType.String(), shaderType, src.path, opts...)
}

// create creates the shader modules, the bind group layout and the pipeline on the device.
func (p *pipeline) create() error {
	for _, s := range p.stages() {
		module, err := p.device.CreateShaderModule(s.Key(), s.Source())
		if err != nil {
			return fmt.Errorf("%w: %s: device rejected %s: %w", shader.ErrShaderCompile, p.pipelineKey, s.Key(), err)
		}
		p.modules = append(p.modules, module)
	}

	var err error
	p.layout, err = p.device.CreateBindGroupLayout(p.pipelineKey, p.layoutEntries)
	if err != nil {
		return fmt.Errorf("pipeline: %s: failed to create bind group layout: %w", p.pipelineKey, err)
	}

	switch p.pipelineType {
	case PipelineTypeRender:
		desc := gpu.RenderPipelineDescriptor{
			Label:              p.pipelineKey,
			BindGroupLayouts:   []gpu.Handle{p.layout},
			VertexModule:       p.modules[0],
			VertexEntryPoint:   p.vertexShader.EntryPoint(),
			FragmentModule:     p.modules[1],
			FragmentEntryPoint: p.fragmentShader.EntryPoint(),
			TargetFormat:       p.targetFormat,
			Topology:           p.topology,
			FrontFace:          p.frontFace,
			CullMode:           p.cullMode,
			WriteMask:          p.writeMask,
		}
		if p.blendEnabled {
			desc.Blend = p.blendState
		}
		p.handle, err = p.device.CreateRenderPipeline(desc)
	case PipelineTypeCompute:
		p.handle, err = p.device.CreateComputePipeline(gpu.ComputePipelineDescriptor{
			Label:            p.pipelineKey,
			BindGroupLayouts: []gpu.Handle{p.layout},
			Module:           p.modules[0],
			EntryPoint:       p.computeShader.EntryPoint(),
		})
	}
	if err != nil {
		return fmt.Errorf("pipeline: %s: failed to create pipeline: %w", p.pipelineKey, err)
	}
	return nil
}

func (p *pipeline) Type() PipelineType {
	return p.pipelineType
}

func (p *pipeline) PipelineKey() string {
	return p.pipelineKey
}

func (p *pipeline) Shader(shaderType shader.ShaderType) shader.Shader {
	switch shaderType {
	case shader.ShaderTypeVertex:
		return p.vertexShader
	case shader.ShaderTypeFragment:
		return p.fragmentShader
	case shader.ShaderTypeCompute:
		return p.computeShader
	default:
		return nil
	}
}

func (p *pipeline) Handle() gpu.Handle {
	return p.handle
}

func (p *pipeline) Layout() gpu.Handle {
	return p.layout
}

func (p *pipeline) BindingLayout() []Binding {
	return p.bindings
}

func (p *pipeline) LayoutEntries() []wgpu.BindGroupLayoutEntry {
	return p.layoutEntries
}

func (p *pipeline) Binding(name string) (Binding, bool) {
	for _, b := range p.bindings {
		if b.Name == name {
			return b, true
		}
	}
	return Binding{}, false
}

func (p *pipeline) Defines() []shader.Define {
	return p.resolved
}

func (p *pipeline) TargetFormat() wgpu.TextureFormat {
	return p.targetFormat
}

func (p *pipeline) BlendEnabled() bool {
	return p.blendEnabled
}

func (p *pipeline) CullMode() wgpu.CullMode {
	return p.cullMode
}

func (p *pipeline) Topology() wgpu.PrimitiveTopology {
	return p.topology
}

func (p *pipeline) FrontFace() wgpu.FrontFace {
	return p.frontFace
}

func (p *pipeline) WriteMask() wgpu.ColorWriteMask {
	return p.writeMask
}

func (p *pipeline) BlendState() *wgpu.BlendState {
	return p.blendState
}

func (p *pipeline) Bind(rec gpu.CommandRecorder) {
	rec.SetPipeline(p.handle)
}

func (p *pipeline) Draw(rec gpu.CommandRecorder, vertexCount uint32) {
	rec.Draw(vertexCount, 1)
}

func (p *pipeline) Dispatch(rec gpu.CommandRecorder, x, y, z uint32) {
	rec.Dispatch(x, y, z)
}

func (p *pipeline) Release() {
	handles := append([]gpu.Handle{p.handle, p.layout}, p.modules...)
	p.device.Release(handles...)
	p.handle, p.layout, p.modules = gpu.InvalidHandle, gpu.InvalidHandle, nil
}
