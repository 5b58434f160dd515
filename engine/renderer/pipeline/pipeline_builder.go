package pipeline

import (
	"github.com/Carmen-Shannon/oxy-post/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"go.uber.org/zap"
)

// PipelineBuilderOption is a functional option used to configure a Pipeline during construction.
type PipelineBuilderOption func(*pipeline)

// WithVertexShader sets a prebuilt vertex shader for this pipeline.
//
// Parameters:
//   - s: the vertex shader to use for this pipeline
//
// Returns:
//   - PipelineBuilderOption: a function that sets the vertex shader for this pipeline
func WithVertexShader(s shader.Shader) PipelineBuilderOption {
	return func(p *pipeline) {
		p.vertex = stageSource{shader: s}
	}
}

// WithFragmentShader sets a prebuilt fragment shader for this pipeline.
//
// Parameters:
//   - s: the fragment shader to use for this pipeline
//
// Returns:
//   - PipelineBuilderOption: a function that sets the fragment shader for this pipeline
func WithFragmentShader(s shader.Shader) PipelineBuilderOption {
	return func(p *pipeline) {
		p.fragment = stageSource{shader: s}
	}
}

// WithComputeShader sets a prebuilt compute shader for this pipeline.
//
// Parameters:
//   - s: the compute shader to use for this pipeline
//
// Returns:
//   - PipelineBuilderOption: a function that sets the compute shader for this pipeline
func WithComputeShader(s shader.Shader) PipelineBuilderOption {
	return func(p *pipeline) {
		p.compute = stageSource{shader: s}
	}
}

// WithVertexShaderPath sets the loader path of the vertex shader, built with the pipeline's defines.
//
// Parameters:
//   - path: the loader-relative WGSL path
//
// Returns:
//   - PipelineBuilderOption: a function that sets the vertex shader path for this pipeline
func WithVertexShaderPath(path string) PipelineBuilderOption {
	return func(p *pipeline) {
		p.vertex = stageSource{path: path}
	}
}

// WithFragmentShaderPath sets the loader path of the fragment shader, built with the pipeline's defines.
//
// Parameters:
//   - path: the loader-relative WGSL path
//
// Returns:
//   - PipelineBuilderOption: a function that sets the fragment shader path for this pipeline
func WithFragmentShaderPath(path string) PipelineBuilderOption {
	return func(p *pipeline) {
		p.fragment = stageSource{path: path}
	}
}

// WithComputeShaderPath sets the loader path of the compute shader, built with the pipeline's defines.
//
// Parameters:
//   - path: the loader-relative WGSL path
//
// Returns:
//   - PipelineBuilderOption: a function that sets the compute shader path for this pipeline
func WithComputeShaderPath(path string) PipelineBuilderOption {
	return func(p *pipeline) {
		p.compute = stageSource{path: path}
	}
}

// WithFragmentShaderSource sets inline WGSL source for the fragment shader.
//
// Parameters:
//   - source: the raw WGSL source, annotations included
//
// Returns:
//   - PipelineBuilderOption: a function that sets the fragment shader source for this pipeline
func WithFragmentShaderSource(source string) PipelineBuilderOption {
	return func(p *pipeline) {
		p.fragment = stageSource{source: source}
	}
}

// WithComputeShaderSource sets inline WGSL source for the compute shader.
//
// Parameters:
//   - source: the raw WGSL source, annotations included
//
// Returns:
//   - PipelineBuilderOption: a function that sets the compute shader source for this pipeline
func WithComputeShaderSource(source string) PipelineBuilderOption {
	return func(p *pipeline) {
		p.compute = stageSource{source: source}
	}
}

// WithLoader sets the loader that shader paths are read with.
//
// Parameters:
//   - loader: the shader source loader
//
// Returns:
//   - PipelineBuilderOption: a function that sets the loader for this pipeline
func WithLoader(loader shader.Loader) PipelineBuilderOption {
	return func(p *pipeline) {
		p.loader = loader
	}
}

// WithDefines sets the define values baked into every stage. Each define must be declared by at least one stage.
//
// Parameters:
//   - defines: the define values
//
// Returns:
//   - PipelineBuilderOption: a function that sets the defines for this pipeline
func WithDefines(defines ...shader.Define) PipelineBuilderOption {
	return func(p *pipeline) {
		p.defines = append(p.defines, defines...)
	}
}

// WithCompiler compiles every stage built from a path or inline source with the given compiler.
//
// Parameters:
//   - compiler: the WGSL compiler
//
// Returns:
//   - PipelineBuilderOption: a function that sets the compiler for this pipeline
func WithCompiler(compiler shader.Compiler) PipelineBuilderOption {
	return func(p *pipeline) {
		p.compiler = compiler
	}
}

// WithUnfilterableTextures marks float textures that are read with textureLoad, such as RGBA32Float noise,
// as unfilterable in the layout.
//
// Parameters:
//   - names: the WGSL variable names of the textures
//
// Returns:
//   - PipelineBuilderOption: a function that marks the textures for this pipeline
func WithUnfilterableTextures(names ...string) PipelineBuilderOption {
	return func(p *pipeline) {
		if p.unfilterable == nil {
			p.unfilterable = make(map[string]bool, len(names))
		}
		for _, name := range names {
			p.unfilterable[name] = true
		}
	}
}

// WithTargetFormat sets the color target format of a render pipeline.
//
// Parameters:
//   - format: the format of the render targets the pipeline draws into
//
// Returns:
//   - PipelineBuilderOption: a function that sets the target format for this pipeline
func WithTargetFormat(format wgpu.TextureFormat) PipelineBuilderOption {
	return func(p *pipeline) {
		p.targetFormat = format
	}
}

// WithBlendEnabled sets whether blending is enabled for this pipeline.
//
// Parameters:
//   - enabled: a boolean indicating whether blending should be enabled
//
// Returns:
//   - PipelineBuilderOption: a function that sets the blend enabled state for this pipeline
func WithBlendEnabled(enabled bool) PipelineBuilderOption {
	return func(p *pipeline) {
		p.blendEnabled = enabled
	}
}

// WithCullMode sets the cull mode for this pipeline.
//
// Parameters:
//   - mode: the cull mode to use for this pipeline (e.g., wgpu.CullModeNone, wgpu.CullModeFront, wgpu.CullModeBack)
//
// Returns:
//   - PipelineBuilderOption: a function that sets the cull mode for this pipeline
func WithCullMode(mode wgpu.CullMode) PipelineBuilderOption {
	return func(p *pipeline) {
		p.cullMode = mode
	}
}

// WithTopology sets the primitive topology for this pipeline.
//
// Parameters:
//   - topology: the primitive topology to use for this pipeline (e.g., wgpu.PrimitiveTopologyTriangleList)
//
// Returns:
//   - PipelineBuilderOption: a function that sets the primitive topology for this pipeline
func WithTopology(topology wgpu.PrimitiveTopology) PipelineBuilderOption {
	return func(p *pipeline) {
		p.topology = topology
	}
}

// WithFrontFace sets the front face winding order for this pipeline.
//
// Parameters:
//   - frontFace: the front face winding order to use for this pipeline (e.g., wgpu.FrontFaceCCW, wgpu.FrontFaceCW)
//
// Returns:
//   - PipelineBuilderOption: a function that sets the front face winding order for this pipeline
func WithFrontFace(frontFace wgpu.FrontFace) PipelineBuilderOption {
	return func(p *pipeline) {
		p.frontFace = frontFace
	}
}

// WithWriteMask sets the color write mask for this pipeline.
//
// Parameters:
//   - writeMask: the color write mask to use for this pipeline (e.g., wgpu.ColorWriteMaskAll)
//
// Returns:
//   - PipelineBuilderOption: a function that sets the color write mask for this pipeline
func WithWriteMask(writeMask wgpu.ColorWriteMask) PipelineBuilderOption {
	return func(p *pipeline) {
		p.writeMask = writeMask
	}
}

// WithBlendState sets the blend state for this pipeline and enables blending.
//
// Parameters:
//   - blendState: the blend state to use for this pipeline
//
// Returns:
//   - PipelineBuilderOption: a function that sets the blend state for this pipeline
func WithBlendState(blendState *wgpu.BlendState) PipelineBuilderOption {
	return func(p *pipeline) {
		p.blendState = blendState
		p.blendEnabled = blendState != nil
	}
}

// WithLogger sets the logger used for pipeline diagnostics. Defaults to logger.Log.
//
// Parameters:
//   - l: the logger
//
// Returns:
//   - PipelineBuilderOption: a function that sets the logger for this pipeline
func WithLogger(l *zap.Logger) PipelineBuilderOption {
	return func(p *pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}
