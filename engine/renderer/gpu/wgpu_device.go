package gpu

import (
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/Carmen-Shannon/oxy-post/common"
	"github.com/Carmen-Shannon/oxy-post/engine/logger"
	"github.com/cogentcore/webgpu/wgpu"
	"go.uber.org/zap"
)

// WGPUDevice is the WebGPU implementation of Device. Besides resource creation it owns the optional presentation
// surface and hands out one FrameRecorder per frame.
type WGPUDevice interface {
	Device

	// ConfigureSurface (re)configures the presentation surface. It must be called before the first frame and whenever
	// the window is resized. It is a no-op on a headless device.
	//
	// Parameters:
	//   - width: the new width of the surface in pixels
	//   - height: the new height of the surface in pixels
	ConfigureSurface(width, height int)

	// SurfaceFormat returns the color format of the presentation surface, or RGBA8Unorm on a headless device.
	SurfaceFormat() wgpu.TextureFormat

	// BeginFrame acquires the next swapchain texture (when a surface is configured) and creates the command encoder
	// for the frame. Must be paired with EndFrame.
	//
	// Returns:
	//   - FrameRecorder: the recorder for this frame
	//   - error: an error if the swapchain texture or encoder could not be acquired
	BeginFrame() (FrameRecorder, error)

	// EndFrame finishes the frame's command encoder and submits it to the GPU queue.
	// Does not present the surface, call Present after EndFrame to display the frame.
	//
	// Parameters:
	//   - rec: the recorder returned by BeginFrame
	//
	// Returns:
	//   - error: the first recording error of the frame, or an error from finishing the encoder
	EndFrame(rec FrameRecorder) error

	// Present presents the surface to the display and releases the swapchain texture.
	Present()

	// Live returns the number of live objects owned by the device.
	Live() int

	// Destroy releases every live object and the underlying device, adapter, surface and instance.
	Destroy()
}

// FrameRecorder is a CommandRecorder bound to one frame of a WGPUDevice.
type FrameRecorder interface {
	CommandRecorder

	// SurfaceView returns the handle of the swapchain view for this frame, or InvalidHandle on a headless device.
	SurfaceView() Handle
}

type wgpuDeviceImpl struct {
	mu *sync.Mutex

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	surface  *wgpu.Surface

	surfaceDescriptor    *wgpu.SurfaceDescriptor
	surfaceFormat        wgpu.TextureFormat
	presentMode          wgpu.PresentMode
	forceFallbackAdapter bool
	clearColor           wgpu.Color

	objects *resourceTable

	frameSurface *wgpu.Texture
	frameView    Handle

	log *zap.Logger
}

var _ WGPUDevice = &wgpuDeviceImpl{}

type wgpuPipeline struct {
	render  *wgpu.RenderPipeline
	compute *wgpu.ComputePipeline
	layout  *wgpu.PipelineLayout
}

// NewWGPUDevice creates a WebGPU instance, adapter and device.
//
// Parameters:
//   - options: variadic list of WGPUDeviceBuilderOption functions to configure the device
//
// Returns:
//   - WGPUDevice: the created device
//   - error: an error if no adapter or device could be acquired
func NewWGPUDevice(options ...WGPUDeviceBuilderOption) (WGPUDevice, error) {
	runtime.LockOSThread()
	d := &wgpuDeviceImpl{
		mu:            &sync.Mutex{},
		presentMode:   wgpu.PresentModeImmediate,
		surfaceFormat: wgpu.TextureFormatRGBA8Unorm,
		clearColor:    wgpu.Color{R: 0, G: 0, B: 0, A: 1},
		objects:       newResourceTable(),
		log:           logger.Log,
	}
	for _, opt := range options {
		opt(d)
	}

	d.instance = wgpu.CreateInstance(nil)
	if d.surfaceDescriptor != nil {
		d.surface = d.instance.CreateSurface(d.surfaceDescriptor)
	}

	a, err := d.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: d.forceFallbackAdapter,
		CompatibleSurface:    d.surface,
	})
	if err != nil {
		d.Destroy()
		return nil, fmt.Errorf("gpu: failed to request adapter: %w", err)
	}
	d.adapter = a

	dev, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Post Device",
	})
	if err != nil {
		d.Destroy()
		return nil, fmt.Errorf("gpu: failed to request device: %w", err)
	}
	d.device = dev
	d.queue = dev.GetQueue()

	d.log.Info("webgpu device created",
		zap.Bool("surface", d.surface != nil),
		zap.Bool("fallbackAdapter", d.forceFallbackAdapter))

	return d, nil
}

func (d *wgpuDeviceImpl) ConfigureSurface(width, height int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.surface == nil || width <= 0 || height <= 0 {
		return
	}

	capabilities := d.surface.GetCapabilities(d.adapter)
	d.surfaceFormat = capabilities.Formats[0]

	d.surface.Configure(d.adapter, d.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      d.surfaceFormat,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: d.presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})
}

func (d *wgpuDeviceImpl) SurfaceFormat() wgpu.TextureFormat {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.surfaceFormat
}

func (d *wgpuDeviceImpl) CreateShaderModule(label, wgsl string) (Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	module, err := d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: label,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: wgsl,
		},
	})
	if err != nil {
		return InvalidHandle, err
	}
	return d.objects.insert(module), nil
}

func (d *wgpuDeviceImpl) CreateBindGroupLayout(label string, entries []wgpu.BindGroupLayoutEntry) (Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	layout, err := d.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   label,
		Entries: entries,
	})
	if err != nil {
		return InvalidHandle, err
	}
	return d.objects.insert(layout), nil
}

// pipelineLayout builds a pipeline layout from bind group layout handles. Callers hold mu.
func (d *wgpuDeviceImpl) pipelineLayout(label string, handles []Handle) (*wgpu.PipelineLayout, error) {
	layouts := make([]*wgpu.BindGroupLayout, 0, len(handles))
	for _, h := range handles {
		l, ok := lookup[*wgpu.BindGroupLayout](d.objects, h)
		if !ok {
			return nil, fmt.Errorf("%w: bind group layout %d", ErrUnknownHandle, h)
		}
		layouts = append(layouts, l)
	}
	return d.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            label,
		BindGroupLayouts: layouts,
	})
}

func (d *wgpuDeviceImpl) CreateRenderPipeline(desc RenderPipelineDescriptor) (Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	vs, ok := lookup[*wgpu.ShaderModule](d.objects, desc.VertexModule)
	if !ok {
		return InvalidHandle, fmt.Errorf("%w: vertex module %d", ErrUnknownHandle, desc.VertexModule)
	}
	fs, ok := lookup[*wgpu.ShaderModule](d.objects, desc.FragmentModule)
	if !ok {
		return InvalidHandle, fmt.Errorf("%w: fragment module %d", ErrUnknownHandle, desc.FragmentModule)
	}

	layout, err := d.pipelineLayout(desc.Label, desc.BindGroupLayouts)
	if err != nil {
		return InvalidHandle, err
	}

	target := wgpu.ColorTargetState{
		Format:    desc.TargetFormat,
		WriteMask: desc.WriteMask,
		Blend:     desc.Blend,
	}

	created, err := d.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  desc.Label + " Render Pipeline",
		Layout: layout,
		Vertex: wgpu.VertexState{
			Module:     vs,
			EntryPoint: desc.VertexEntryPoint,
		},
		Fragment: &wgpu.FragmentState{
			Module:     fs,
			EntryPoint: desc.FragmentEntryPoint,
			Targets:    []wgpu.ColorTargetState{target},
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  desc.Topology,
			FrontFace: desc.FrontFace,
			CullMode:  desc.CullMode,
		},
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		layout.Release()
		return InvalidHandle, err
	}
	return d.objects.insert(&wgpuPipeline{render: created, layout: layout}), nil
}

func (d *wgpuDeviceImpl) CreateComputePipeline(desc ComputePipelineDescriptor) (Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	module, ok := lookup[*wgpu.ShaderModule](d.objects, desc.Module)
	if !ok {
		return InvalidHandle, fmt.Errorf("%w: compute module %d", ErrUnknownHandle, desc.Module)
	}

	layout, err := d.pipelineLayout(desc.Label, desc.BindGroupLayouts)
	if err != nil {
		return InvalidHandle, err
	}

	created, err := d.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  desc.Label + " Compute Pipeline",
		Layout: layout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     module,
			EntryPoint: desc.EntryPoint,
		},
	})
	if err != nil {
		layout.Release()
		return InvalidHandle, err
	}
	return d.objects.insert(&wgpuPipeline{compute: created, layout: layout}), nil
}

func (d *wgpuDeviceImpl) CreateBuffer(label string, size uint64, usage wgpu.BufferUsage) (Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	buf, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            label,
		Size:             size,
		Usage:            usage,
		MappedAtCreation: false,
	})
	if err != nil {
		return InvalidHandle, err
	}
	return d.objects.insert(buf), nil
}

func (d *wgpuDeviceImpl) WriteBuffers(writes []BufferWrite) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, w := range writes {
		buf, ok := lookup[*wgpu.Buffer](d.objects, w.Buffer)
		if !ok {
			continue
		}
		d.queue.WriteBuffer(buf, w.Offset, w.Data)
	}
}

func (d *wgpuDeviceImpl) CreateTexture(label string, data common.TextureStagingData) (Texture, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	format := common.Coalesce(data.Format, wgpu.TextureFormatRGBA8UnormSrgb)
	if uint64(len(data.Pixels)) < uint64(data.RowPitch())*uint64(data.Height) {
		return Texture{}, fmt.Errorf("gpu: texture %q has %d bytes of pixel data, need %d",
			label, len(data.Pixels), data.RowPitch()*data.Height)
	}

	tex, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:     label,
		Usage:     wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
		Dimension: wgpu.TextureDimension2D,
		Size: wgpu.Extent3D{
			Width:              data.Width,
			Height:             data.Height,
			DepthOrArrayLayers: 1,
		},
		Format:        format,
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return Texture{}, err
	}

	d.queue.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture:  tex,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{},
			Aspect:   wgpu.TextureAspectAll,
		},
		data.Pixels,
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  data.RowPitch(),
			RowsPerImage: data.Height,
		},
		&wgpu.Extent3D{
			Width:              data.Width,
			Height:             data.Height,
			DepthOrArrayLayers: 1,
		},
	)

	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return Texture{}, err
	}

	return Texture{
		Texture: d.objects.insert(tex),
		View:    d.objects.insert(view),
		Width:   data.Width,
		Height:  data.Height,
		Format:  format,
	}, nil
}

func (d *wgpuDeviceImpl) CreateSampler(label string, desc common.SamplerStagingData) (Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	samp, err := d.device.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         label,
		AddressModeU:  common.Coalesce(desc.AddressModeU, wgpu.AddressModeRepeat),
		AddressModeV:  common.Coalesce(desc.AddressModeV, wgpu.AddressModeRepeat),
		AddressModeW:  common.Coalesce(desc.AddressModeW, wgpu.AddressModeRepeat),
		MagFilter:     common.Coalesce(desc.MagFilter, wgpu.FilterModeLinear),
		MinFilter:     common.Coalesce(desc.MinFilter, wgpu.FilterModeLinear),
		MipmapFilter:  common.Coalesce(desc.MipmapFilter, wgpu.MipmapFilterModeLinear),
		LodMinClamp:   common.Coalesce(desc.LodMinClamp, 0.0),
		LodMaxClamp:   common.Coalesce(desc.LodMaxClamp, 32.0),
		MaxAnisotropy: common.Coalesce(desc.MaxAnisotropy, 1),
		Compare:       desc.Compare,
	})
	if err != nil {
		return InvalidHandle, err
	}
	return d.objects.insert(samp), nil
}

func (d *wgpuDeviceImpl) CreateRenderTarget(label string, width, height uint32, format wgpu.TextureFormat) (Texture, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	tex, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: label,
		Size: wgpu.Extent3D{
			Width:              width,
			Height:             height,
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        format,
		Usage:         wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopySrc,
	})
	if err != nil {
		return Texture{}, err
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return Texture{}, err
	}

	return Texture{
		Texture: d.objects.insert(tex),
		View:    d.objects.insert(view),
		Width:   width,
		Height:  height,
		Format:  format,
	}, nil
}

func (d *wgpuDeviceImpl) CreateBindGroup(label string, layout Handle, entries []BindGroupEntry) (Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	l, ok := lookup[*wgpu.BindGroupLayout](d.objects, layout)
	if !ok {
		return InvalidHandle, fmt.Errorf("%w: bind group layout %d", ErrUnknownHandle, layout)
	}

	bindGroupEntries := make([]wgpu.BindGroupEntry, len(entries))
	for i, e := range entries {
		entry := wgpu.BindGroupEntry{Binding: e.Binding}
		switch {
		case e.Buffer.Valid():
			buf, ok := lookup[*wgpu.Buffer](d.objects, e.Buffer)
			if !ok {
				return InvalidHandle, fmt.Errorf("%w: buffer %d at binding %d", ErrUnknownHandle, e.Buffer, e.Binding)
			}
			entry.Buffer = buf
			entry.Offset = 0
			entry.Size = common.Coalesce(e.Size, wgpu.WholeSize)
		case e.TextureView.Valid():
			view, ok := lookup[*wgpu.TextureView](d.objects, e.TextureView)
			if !ok {
				return InvalidHandle, fmt.Errorf("%w: texture view %d at binding %d", ErrUnknownHandle, e.TextureView, e.Binding)
			}
			entry.TextureView = view
		case e.Sampler.Valid():
			samp, ok := lookup[*wgpu.Sampler](d.objects, e.Sampler)
			if !ok {
				return InvalidHandle, fmt.Errorf("%w: sampler %d at binding %d", ErrUnknownHandle, e.Sampler, e.Binding)
			}
			entry.Sampler = samp
		default:
			return InvalidHandle, fmt.Errorf("gpu: binding %d has no resource", e.Binding)
		}
		bindGroupEntries[i] = entry
	}

	bindGroup, err := d.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   label,
		Layout:  l,
		Entries: bindGroupEntries,
	})
	if err != nil {
		return InvalidHandle, err
	}
	return d.objects.insert(bindGroup), nil
}

func (d *wgpuDeviceImpl) Release(handles ...Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, h := range handles {
		obj, ok := d.objects.remove(h)
		if !ok {
			continue
		}
		releaseObject(obj)
	}
}

func releaseObject(obj any) {
	switch o := obj.(type) {
	case *wgpu.ShaderModule:
		o.Release()
	case *wgpu.BindGroupLayout:
		o.Release()
	case *wgpuPipeline:
		if o.render != nil {
			o.render.Release()
		}
		if o.compute != nil {
			o.compute.Release()
		}
		o.layout.Release()
	case *wgpu.Buffer:
		o.Release()
	case *wgpu.Texture:
		o.Release()
	case *wgpu.TextureView:
		o.Release()
	case *wgpu.Sampler:
		o.Release()
	case *wgpu.BindGroup:
		o.Release()
	}
}

func (d *wgpuDeviceImpl) BeginFrame() (FrameRecorder, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	// A held surface texture means the previous frame was never presented.
	if d.frameSurface != nil {
		return nil, errors.New("gpu: previous frame surface not yet presented")
	}

	rec := &wgpuRecorder{device: d}
	if d.surface != nil {
		surfaceTexture, err := d.surface.GetCurrentTexture()
		if err != nil {
			return nil, err
		}
		view, err := surfaceTexture.CreateView(nil)
		if err != nil {
			surfaceTexture.Release()
			return nil, err
		}
		d.frameSurface = surfaceTexture
		d.frameView = d.objects.insert(view)
		rec.surfaceView = d.frameView
	}

	encoder, err := d.device.CreateCommandEncoder(nil)
	if err != nil {
		d.releaseFrameSurface()
		return nil, err
	}
	rec.encoder = encoder

	return rec, nil
}

func (d *wgpuDeviceImpl) EndFrame(rec FrameRecorder) error {
	r, ok := rec.(*wgpuRecorder)
	if !ok || r.device != d {
		return errors.New("gpu: recorder does not belong to this device")
	}
	if r.encoder == nil {
		return errors.New("gpu: frame already ended")
	}
	r.closePasses()

	d.mu.Lock()
	defer d.mu.Unlock()

	commandBuffer, err := r.encoder.Finish(nil)
	r.encoder.Release()
	r.encoder = nil
	if err != nil {
		return err
	}

	d.queue.Submit(commandBuffer)
	commandBuffer.Release()

	return r.err
}

func (d *wgpuDeviceImpl) Present() {
	d.mu.Lock()
	defer d.mu.Unlock()

	// If no frame surface is held, nothing to present.
	if d.frameSurface == nil {
		return
	}
	d.surface.Present()
	d.releaseFrameSurface()
}

// releaseFrameSurface drops the swapchain view and texture of the current frame. Callers hold mu.
func (d *wgpuDeviceImpl) releaseFrameSurface() {
	if obj, ok := d.objects.remove(d.frameView); ok {
		releaseObject(obj)
	}
	d.frameView = InvalidHandle
	if d.frameSurface != nil {
		d.frameSurface.Release()
		d.frameSurface = nil
	}
}

func (d *wgpuDeviceImpl) Live() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.objects.len()
}

func (d *wgpuDeviceImpl) Destroy() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.releaseFrameSurface()
	for h := range d.objects.objects {
		obj, _ := d.objects.remove(h)
		releaseObject(obj)
	}
	if d.queue != nil {
		d.queue.Release()
		d.queue = nil
	}
	if d.device != nil {
		d.device.Release()
		d.device = nil
	}
	if d.adapter != nil {
		d.adapter.Release()
		d.adapter = nil
	}
	if d.surface != nil {
		d.surface.Release()
		d.surface = nil
	}
	if d.instance != nil {
		d.instance.Release()
		d.instance = nil
	}
}
