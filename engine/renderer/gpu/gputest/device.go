// Package gputest provides an in-memory gpu.Device and gpu.CommandRecorder that record every call, so the
// post-processing stack can be tested without a GPU.
package gputest

import (
	"fmt"
	"sort"
	"sync"

	"github.com/Carmen-Shannon/oxy-post/common"
	"github.com/Carmen-Shannon/oxy-post/engine/renderer/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

// Object kinds tracked by Device.
const (
	KindShaderModule    = "shader_module"
	KindBindGroupLayout = "bind_group_layout"
	KindRenderPipeline  = "render_pipeline"
	KindComputePipeline = "compute_pipeline"
	KindBuffer          = "buffer"
	KindTexture         = "texture"
	KindTextureView     = "texture_view"
	KindSampler         = "sampler"
	KindBindGroup       = "bind_group"
)

// Object is the fake's record of a created GPU object.
type Object struct {
	Kind    string
	Label   string
	Source  string
	Size    uint64
	Usage   wgpu.BufferUsage
	Layout  []wgpu.BindGroupLayoutEntry
	Entries []gpu.BindGroupEntry
	Render  gpu.RenderPipelineDescriptor
	Compute gpu.ComputePipelineDescriptor
	Texture gpu.Texture
	Pixels  []byte
	Sampler common.SamplerStagingData
}

// Device is a concurrency-safe fake gpu.Device.
type Device struct {
	mu      sync.Mutex
	next    gpu.Handle
	objects map[gpu.Handle]*Object
	buffers map[gpu.Handle][]byte
	ops     []string
	writes  []gpu.BufferWrite
	fail    map[string]error
}

var _ gpu.Device = &Device{}

// NewDevice returns an empty fake device.
func NewDevice() *Device {
	return &Device{
		objects: make(map[gpu.Handle]*Object),
		buffers: make(map[gpu.Handle][]byte),
		fail:    make(map[string]error),
	}
}

// FailOn makes every subsequent call to the named Device method return err. A nil err clears the failure.
func (d *Device) FailOn(op string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		delete(d.fail, op)
		return
	}
	d.fail[op] = err
}

// Count returns how many times the named Device method was called.
func (d *Device) Count(op string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, o := range d.ops {
		if o == op {
			n++
		}
	}
	return n
}

// Live returns the number of live objects of the given kind, or of every kind when kind is empty.
func (d *Device) Live(kind string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, o := range d.objects {
		if kind == "" || o.Kind == kind {
			n++
		}
	}
	return n
}

// Object returns a copy of the record behind h.
func (d *Device) Object(h gpu.Handle) (Object, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	o, ok := d.objects[h]
	if !ok {
		return Object{}, false
	}
	return *o, true
}

// Objects returns the live handles of the given kind in creation order.
func (d *Device) Objects(kind string) []gpu.Handle {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []gpu.Handle
	for h, o := range d.objects {
		if o.Kind == kind {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// BufferContents returns a copy of the current contents of a buffer.
func (d *Device) BufferContents(h gpu.Handle) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]byte(nil), d.buffers[h]...)
}

// Writes returns every buffer write received so far.
func (d *Device) Writes() []gpu.BufferWrite {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]gpu.BufferWrite(nil), d.writes...)
}

func (d *Device) begin(op string) error {
	d.ops = append(d.ops, op)
	return d.fail[op]
}

func (d *Device) insert(o *Object) gpu.Handle {
	d.next++
	d.objects[d.next] = o
	return d.next
}

func (d *Device) has(h gpu.Handle, kind string) bool {
	o, ok := d.objects[h]
	return ok && o.Kind == kind
}

func (d *Device) CreateShaderModule(label, wgsl string) (gpu.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin("CreateShaderModule"); err != nil {
		return gpu.InvalidHandle, err
	}
	return d.insert(&Object{Kind: KindShaderModule, Label: label, Source: wgsl}), nil
}

func (d *Device) CreateBindGroupLayout(label string, entries []wgpu.BindGroupLayoutEntry) (gpu.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin("CreateBindGroupLayout"); err != nil {
		return gpu.InvalidHandle, err
	}
	return d.insert(&Object{Kind: KindBindGroupLayout, Label: label, Layout: append([]wgpu.BindGroupLayoutEntry(nil), entries...)}), nil
}

func (d *Device) CreateRenderPipeline(desc gpu.RenderPipelineDescriptor) (gpu.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin("CreateRenderPipeline"); err != nil {
		return gpu.InvalidHandle, err
	}
	if !d.has(desc.VertexModule, KindShaderModule) || !d.has(desc.FragmentModule, KindShaderModule) {
		return gpu.InvalidHandle, fmt.Errorf("%w: shader module", gpu.ErrUnknownHandle)
	}
	for _, l := range desc.BindGroupLayouts {
		if !d.has(l, KindBindGroupLayout) {
			return gpu.InvalidHandle, fmt.Errorf("%w: bind group layout %d", gpu.ErrUnknownHandle, l)
		}
	}
	return d.insert(&Object{Kind: KindRenderPipeline, Label: desc.Label, Render: desc}), nil
}

func (d *Device) CreateComputePipeline(desc gpu.ComputePipelineDescriptor) (gpu.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin("CreateComputePipeline"); err != nil {
		return gpu.InvalidHandle, err
	}
	if !d.has(desc.Module, KindShaderModule) {
		return gpu.InvalidHandle, fmt.Errorf("%w: shader module", gpu.ErrUnknownHandle)
	}
	return d.insert(&Object{Kind: KindComputePipeline, Label: desc.Label, Compute: desc}), nil
}

func (d *Device) CreateBuffer(label string, size uint64, usage wgpu.BufferUsage) (gpu.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin("CreateBuffer"); err != nil {
		return gpu.InvalidHandle, err
	}
	h := d.insert(&Object{Kind: KindBuffer, Label: label, Size: size, Usage: usage})
	d.buffers[h] = make([]byte, size)
	return h, nil
}

func (d *Device) WriteBuffers(writes []gpu.BufferWrite) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ops = append(d.ops, "WriteBuffers")
	for _, w := range writes {
		buf, ok := d.buffers[w.Buffer]
		if !ok || w.Offset > uint64(len(buf)) {
			continue
		}
		d.writes = append(d.writes, gpu.BufferWrite{Buffer: w.Buffer, Offset: w.Offset, Data: append([]byte(nil), w.Data...)})
		copy(buf[w.Offset:], w.Data)
	}
}

func (d *Device) CreateTexture(label string, data common.TextureStagingData) (gpu.Texture, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin("CreateTexture"); err != nil {
		return gpu.Texture{}, err
	}
	if uint64(len(data.Pixels)) < uint64(data.RowPitch())*uint64(data.Height) {
		return gpu.Texture{}, fmt.Errorf("gputest: texture %q is short of pixel data", label)
	}
	tex := gpu.Texture{
		Width:  data.Width,
		Height: data.Height,
		Format: common.Coalesce(data.Format, wgpu.TextureFormatRGBA8UnormSrgb),
	}
	tex.Texture = d.insert(&Object{Kind: KindTexture, Label: label, Pixels: append([]byte(nil), data.Pixels...)})
	tex.View = d.insert(&Object{Kind: KindTextureView, Label: label})
	d.objects[tex.Texture].Texture = tex
	d.objects[tex.View].Texture = tex
	return tex, nil
}

func (d *Device) CreateSampler(label string, desc common.SamplerStagingData) (gpu.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin("CreateSampler"); err != nil {
		return gpu.InvalidHandle, err
	}
	return d.insert(&Object{Kind: KindSampler, Label: label, Sampler: desc}), nil
}

func (d *Device) CreateRenderTarget(label string, width, height uint32, format wgpu.TextureFormat) (gpu.Texture, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin("CreateRenderTarget"); err != nil {
		return gpu.Texture{}, err
	}
	tex := gpu.Texture{Width: width, Height: height, Format: format}
	tex.Texture = d.insert(&Object{Kind: KindTexture, Label: label})
	tex.View = d.insert(&Object{Kind: KindTextureView, Label: label})
	d.objects[tex.Texture].Texture = tex
	d.objects[tex.View].Texture = tex
	return tex, nil
}

func (d *Device) CreateBindGroup(label string, layout gpu.Handle, entries []gpu.BindGroupEntry) (gpu.Handle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.begin("CreateBindGroup"); err != nil {
		return gpu.InvalidHandle, err
	}
	if !d.has(layout, KindBindGroupLayout) {
		return gpu.InvalidHandle, fmt.Errorf("%w: bind group layout %d", gpu.ErrUnknownHandle, layout)
	}
	for _, e := range entries {
		switch {
		case e.Buffer.Valid():
			if !d.has(e.Buffer, KindBuffer) {
				return gpu.InvalidHandle, fmt.Errorf("%w: buffer %d", gpu.ErrUnknownHandle, e.Buffer)
			}
		case e.TextureView.Valid():
			if !d.has(e.TextureView, KindTextureView) {
				return gpu.InvalidHandle, fmt.Errorf("%w: texture view %d", gpu.ErrUnknownHandle, e.TextureView)
			}
		case e.Sampler.Valid():
			if !d.has(e.Sampler, KindSampler) {
				return gpu.InvalidHandle, fmt.Errorf("%w: sampler %d", gpu.ErrUnknownHandle, e.Sampler)
			}
		default:
			return gpu.InvalidHandle, fmt.Errorf("gputest: binding %d has no resource", e.Binding)
		}
	}
	return d.insert(&Object{Kind: KindBindGroup, Label: label, Entries: append([]gpu.BindGroupEntry(nil), entries...)}), nil
}

func (d *Device) Release(handles ...gpu.Handle) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ops = append(d.ops, "Release")
	for _, h := range handles {
		delete(d.objects, h)
		delete(d.buffers, h)
	}
}
