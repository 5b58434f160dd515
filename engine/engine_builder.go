package engine

import (
	"github.com/Carmen-Shannon/oxy-post/engine/camera"
	"github.com/Carmen-Shannon/oxy-post/engine/profiler"
	"github.com/Carmen-Shannon/oxy-post/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"go.uber.org/zap"
)

// EngineBuilderOption is a functional option for configuring an Engine.
// Use the With* functions to create options that are applied directly to the engine instance.
type EngineBuilderOption func(*engine)

// WithSize sets the initial size of the render targets.
//
// Parameters:
//   - width: width in pixels
//   - height: height in pixels
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithSize(width, height int) EngineBuilderOption {
	return func(e *engine) {
		if width > 0 && height > 0 {
			e.width, e.height = uint32(width), uint32(height)
		}
	}
}

// WithFormat sets the format of the render targets and filter pipelines. It must match the surface format when
// the chain renders to the swapchain.
//
// Parameters:
//   - format: the color format
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithFormat(format wgpu.TextureFormat) EngineBuilderOption {
	return func(e *engine) {
		e.format = format
	}
}

// WithPresentName sets the attachment rendered into the swapchain. Pass "" for headless chains.
//
// Parameters:
//   - name: the attachment name (default "final")
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithPresentName(name string) EngineBuilderOption {
	return func(e *engine) {
		e.presentName = name
	}
}

// WithCamera sets the camera handed to every frame.
//
// Parameters:
//   - c: the camera
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithCamera(c camera.Camera) EngineBuilderOption {
	return func(e *engine) {
		e.camera = c
	}
}

// WithStrict makes filter failures fail the frame.
//
// Parameters:
//   - strict: whether the chain is strict
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithStrict(strict bool) EngineBuilderOption {
	return func(e *engine) {
		e.strict = strict
	}
}

// WithWorkers sets the number of goroutines the chain is constructed on.
//
// Parameters:
//   - n: the worker count, 0 for the default
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithWorkers(n int) EngineBuilderOption {
	return func(e *engine) {
		e.workers = n
	}
}

// WithCompiler compiles every filter shader at construction.
//
// Parameters:
//   - c: the compiler, nil to skip compilation
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithCompiler(c shader.Compiler) EngineBuilderOption {
	return func(e *engine) {
		e.compiler = c
	}
}

// WithLoader replaces the built-in filter shaders.
//
// Parameters:
//   - l: the shader loader
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithLoader(l shader.Loader) EngineBuilderOption {
	return func(e *engine) {
		e.loader = l
	}
}

// WithProfiling enables or disables periodic frame statistics.
//
// Parameters:
//   - enabled: if true, enables performance profiling
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfiling(enabled bool) EngineBuilderOption {
	return func(e *engine) {
		e.profilingEnabled = enabled
	}
}

// WithProfiler sets the profiler frame statistics are fed to and enables profiling.
//
// Parameters:
//   - p: the profiler
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithProfiler(p *profiler.Profiler) EngineBuilderOption {
	return func(e *engine) {
		e.profiler = p
		e.profilingEnabled = p != nil
	}
}

// WithLogger sets the logger of the engine and everything it builds.
//
// Parameters:
//   - l: the logger
//
// Returns:
//   - EngineBuilderOption: option function to apply
func WithLogger(l *zap.Logger) EngineBuilderOption {
	return func(e *engine) {
		e.log = l
	}
}
