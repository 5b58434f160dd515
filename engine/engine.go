// Package engine drives a post-processing chain frame by frame: it owns the attachment registry, the render target
// pool and the persistent image inputs, and runs the begin, record, submit and present cycle of every frame.
package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/Carmen-Shannon/oxy-post/common"
	"github.com/Carmen-Shannon/oxy-post/engine/camera"
	"github.com/Carmen-Shannon/oxy-post/engine/logger"
	"github.com/Carmen-Shannon/oxy-post/engine/post"
	"github.com/Carmen-Shannon/oxy-post/engine/profiler"
	"github.com/Carmen-Shannon/oxy-post/engine/renderer/attachment"
	"github.com/Carmen-Shannon/oxy-post/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-post/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"go.uber.org/zap"
)

// FrameDevice is a device that records and presents whole frames. gpu.WGPUDevice implements it.
type FrameDevice interface {
	gpu.Device

	// BeginFrame acquires the swapchain view and starts recording.
	BeginFrame() (gpu.FrameRecorder, error)

	// EndFrame submits the recorded commands.
	EndFrame(rec gpu.FrameRecorder) error

	// Present displays the submitted frame.
	Present()
}

// surfaceConfigurer is implemented by devices with a resizable presentation surface.
type surfaceConfigurer interface {
	ConfigureSurface(width, height int)
}

// engine implements the Engine interface.
type engine struct {
	device   FrameDevice
	registry attachment.Registry
	targets  attachment.Pool
	chain    post.Chain
	camera   camera.Camera
	frame    uint64

	width, height uint32
	format        wgpu.TextureFormat
	presentName   string

	strict   bool
	workers  int
	compiler shader.Compiler
	loader   shader.Loader

	inputs map[string]gpu.Texture

	profiler         *profiler.Profiler
	profilingEnabled bool

	renderFrameLimit time.Duration // minimum frame duration; 0 = uncapped
	lastFrame        time.Time
	sleep            func(time.Duration)

	log *zap.Logger
}

// Engine runs a chain against a frame device.
// RenderFrame, SetInput and Resize must be called from the recording goroutine.
type Engine interface {
	// Chain returns the chain.
	Chain() post.Chain

	// Registry returns the attachment registry.
	Registry() attachment.Registry

	// Targets returns the render target pool.
	Targets() attachment.Pool

	// Camera returns the camera handed to every frame.
	Camera() camera.Camera

	// Frame returns the index of the last frame started.
	Frame() uint64

	// SetInput decodes an image, uploads it and publishes it as a persistent attachment under img.Name,
	// replacing any earlier input of that name.
	//
	// Parameters:
	//   - img: the source image
	//
	// Returns:
	//   - error: a decode or upload error
	SetInput(img common.SourceImage) error

	// RemoveInput releases a persistent input.
	//
	// Parameters:
	//   - name: the attachment name
	RemoveInput(name string)

	// Resize reconfigures the surface, reallocates the targets and updates the camera aspect.
	//
	// Parameters:
	//   - width: the new width in pixels
	//   - height: the new height in pixels
	Resize(width, height int)

	// SetRenderFrameLimit sets an optional frame rate cap. Pass 0 to uncap (default).
	//
	// Parameters:
	//   - fps: maximum frames per second
	SetRenderFrameLimit(fps float64)

	// RenderFrame runs one frame: it resets the registry, points the presentation name at the swapchain view,
	// renders the chain, submits and presents. Filter failures are reported in the FrameReport and do not stop
	// the frame unless the chain is strict.
	//
	// Returns:
	//   - post.FrameReport: the chain report of the frame
	//   - error: a device error, or the first filter failure of a strict chain
	RenderFrame() (post.FrameReport, error)

	// Release releases the chain, the targets and the inputs. The device is left to the caller.
	Release()
}

// NewEngine builds the chain on dev and prepares the frame state.
//
// Parameters:
//   - dev: the frame device
//   - factories: the chain's filter factories in order
//   - options: functional options for engine configuration
//
// Returns:
//   - Engine: the engine
//   - error: a chain construction error
func NewEngine(dev FrameDevice, factories []post.FilterFactory, options ...EngineBuilderOption) (Engine, error) {
	if dev == nil {
		return nil, errors.New("engine: nil device")
	}
	e := &engine{
		device:      dev,
		registry:    attachment.NewRegistry(),
		width:       1280,
		height:      720,
		format:      wgpu.TextureFormatBGRA8Unorm,
		presentName: "final",
		inputs:      make(map[string]gpu.Texture),
		sleep:       time.Sleep,
		log:         logger.Log,
	}
	for _, opt := range options {
		opt(e)
	}
	if e.camera == nil {
		e.camera = camera.NewCamera(camera.WithAspect(float32(e.width) / float32(e.height)))
	}
	if e.profilingEnabled && e.profiler == nil {
		e.profiler = profiler.NewProfiler(profiler.WithLogger(e.log))
	}

	poolOpts := []attachment.PoolBuilderOption{attachment.WithFormat(e.format), attachment.WithLogger(e.log)}
	if e.presentName != "" {
		poolOpts = append(poolOpts, attachment.WithPresentName(e.presentName))
	}
	e.targets = attachment.NewPool(dev, e.width, e.height, poolOpts...)

	chainOpts := []post.ChainBuilderOption{post.WithStrict(e.strict), post.WithLogger(e.log)}
	if e.workers > 0 {
		chainOpts = append(chainOpts, post.WithWorkers(e.workers))
	}
	if e.profilingEnabled {
		chainOpts = append(chainOpts, post.WithProfiler(e.profiler))
	}
	ctx := post.FilterContext{
		Device:   dev,
		Format:   e.format,
		Loader:   e.loader,
		Compiler: e.compiler,
		Logger:   e.log,
	}
	chain, err := post.NewChain(ctx, factories, chainOpts...)
	if err != nil {
		e.targets.Release()
		return nil, fmt.Errorf("engine: %w", err)
	}
	e.chain = chain

	e.log.Info("engine ready",
		zap.Int("filters", len(chain.Filters())),
		zap.Uint32("width", e.width),
		zap.Uint32("height", e.height),
		zap.String("present", e.presentName))
	return e, nil
}

func (e *engine) Chain() post.Chain {
	return e.chain
}

func (e *engine) Registry() attachment.Registry {
	return e.registry
}

func (e *engine) Targets() attachment.Pool {
	return e.targets
}

func (e *engine) Camera() camera.Camera {
	return e.camera
}

func (e *engine) Frame() uint64 {
	return e.frame
}

func (e *engine) SetInput(img common.SourceImage) error {
	if img.Name == "" {
		return errors.New("engine: input has no name")
	}
	data, err := img.Decode()
	if err != nil {
		return fmt.Errorf("engine: input %q: %w", img.Name, err)
	}
	tex, err := e.device.CreateTexture(img.Name+" Input", data)
	if err != nil {
		return fmt.Errorf("engine: input %q: %w", img.Name, err)
	}
	e.RemoveInput(img.Name)
	e.inputs[img.Name] = tex
	e.registry.SetPersistent(img.Name, attachment.FromTexture(img.Name, tex))
	e.log.Debug("input loaded", zap.String("name", img.Name), zap.Int("width", img.Width), zap.Int("height", img.Height))
	return nil
}

func (e *engine) RemoveInput(name string) {
	tex, ok := e.inputs[name]
	if !ok {
		return
	}
	e.registry.RemovePersistent(name)
	e.device.Release(tex.Handles()...)
	delete(e.inputs, name)
}

func (e *engine) Resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	if sc, ok := e.device.(surfaceConfigurer); ok {
		sc.ConfigureSurface(width, height)
	}
	e.width, e.height = uint32(width), uint32(height)
	e.targets.Resize(e.width, e.height)
	e.camera.SetAspect(float32(width) / float32(height))
}

func (e *engine) SetRenderFrameLimit(fps float64) {
	if fps <= 0 {
		e.renderFrameLimit = 0
		return
	}
	e.renderFrameLimit = time.Duration(float64(time.Second) / fps)
}

func (e *engine) RenderFrame() (post.FrameReport, error) {
	rec, err := e.device.BeginFrame()
	if err != nil {
		return post.FrameReport{}, fmt.Errorf("engine: failed to begin frame: %w", err)
	}

	e.frame++
	e.registry.Reset(e.frame)
	e.targets.SetPresentTarget(rec.SurfaceView())

	report, chainErr := e.chain.RenderFrame(&post.Frame{
		Index:    e.frame,
		Registry: e.registry,
		Recorder: rec,
		Targets:  e.targets,
		Camera:   e.camera,
	})

	endErr := e.device.EndFrame(rec)
	e.targets.SetPresentTarget(gpu.InvalidHandle)
	if endErr != nil {
		return report, fmt.Errorf("engine: failed to submit frame %d: %w", e.frame, endErr)
	}
	e.device.Present()

	if e.renderFrameLimit > 0 {
		if elapsed := time.Since(e.lastFrame); elapsed < e.renderFrameLimit {
			e.sleep(e.renderFrameLimit - elapsed)
		}
		e.lastFrame = time.Now()
	}
	return report, chainErr
}

func (e *engine) Release() {
	if e.chain != nil {
		e.chain.Release()
	}
	for name := range e.inputs {
		e.RemoveInput(name)
	}
	e.targets.Release()
}
