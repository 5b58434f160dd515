package gpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// wgpuRecorder encodes a frame's passes into one command encoder. Recording errors are kept and reported by EndFrame
// so that a single bad handle never aborts the rest of the frame.
type wgpuRecorder struct {
	device      *wgpuDeviceImpl
	encoder     *wgpu.CommandEncoder
	renderPass  *wgpu.RenderPassEncoder
	computePass *wgpu.ComputePassEncoder
	surfaceView Handle
	err         error
}

var _ FrameRecorder = &wgpuRecorder{}

func (r *wgpuRecorder) SurfaceView() Handle {
	return r.surfaceView
}

func (r *wgpuRecorder) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *wgpuRecorder) closePasses() {
	if r.renderPass != nil {
		r.renderPass.End()
		r.renderPass.Release()
		r.renderPass = nil
	}
	if r.computePass != nil {
		r.computePass.End()
		r.computePass.Release()
		r.computePass = nil
	}
}

func (r *wgpuRecorder) BeginRenderPass(label string, target Handle) error {
	if r.encoder == nil {
		return ErrNoActivePass
	}
	r.closePasses()

	r.device.mu.Lock()
	view, ok := lookup[*wgpu.TextureView](r.device.objects, target)
	clearColor := r.device.clearColor
	r.device.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: render target view %d", ErrUnknownHandle, target)
	}

	r.renderPass = r.encoder.BeginRenderPass(&wgpu.RenderPassDescriptor{
		Label: label,
		ColorAttachments: []wgpu.RenderPassColorAttachment{
			{
				View:       view,
				LoadOp:     wgpu.LoadOpClear,
				StoreOp:    wgpu.StoreOpStore,
				ClearValue: clearColor,
			},
		},
	})
	return nil
}

func (r *wgpuRecorder) EndRenderPass() {
	if r.renderPass == nil {
		r.fail(fmt.Errorf("%w: end render pass", ErrNoActivePass))
		return
	}
	r.renderPass.End()
	r.renderPass.Release()
	r.renderPass = nil
}

func (r *wgpuRecorder) BeginComputePass(label string) error {
	if r.encoder == nil {
		return ErrNoActivePass
	}
	r.closePasses()
	r.computePass = r.encoder.BeginComputePass(&wgpu.ComputePassDescriptor{Label: label})
	return nil
}

func (r *wgpuRecorder) EndComputePass() {
	if r.computePass == nil {
		r.fail(fmt.Errorf("%w: end compute pass", ErrNoActivePass))
		return
	}
	r.computePass.End()
	r.computePass.Release()
	r.computePass = nil
}

func (r *wgpuRecorder) SetPipeline(pipeline Handle) {
	r.device.mu.Lock()
	p, ok := lookup[*wgpuPipeline](r.device.objects, pipeline)
	r.device.mu.Unlock()
	if !ok {
		r.fail(fmt.Errorf("%w: pipeline %d", ErrUnknownHandle, pipeline))
		return
	}

	switch {
	case r.renderPass != nil && p.render != nil:
		r.renderPass.SetPipeline(p.render)
	case r.computePass != nil && p.compute != nil:
		r.computePass.SetPipeline(p.compute)
	default:
		r.fail(fmt.Errorf("%w: pipeline %d does not match the open pass", ErrNoActivePass, pipeline))
	}
}

func (r *wgpuRecorder) SetBindGroup(group uint32, bindGroup Handle) {
	r.device.mu.Lock()
	bg, ok := lookup[*wgpu.BindGroup](r.device.objects, bindGroup)
	r.device.mu.Unlock()
	if !ok {
		r.fail(fmt.Errorf("%w: bind group %d", ErrUnknownHandle, bindGroup))
		return
	}

	switch {
	case r.renderPass != nil:
		r.renderPass.SetBindGroup(group, bg, nil)
	case r.computePass != nil:
		r.computePass.SetBindGroup(group, bg, nil)
	default:
		r.fail(fmt.Errorf("%w: set bind group", ErrNoActivePass))
	}
}

func (r *wgpuRecorder) Draw(vertexCount, instanceCount uint32) {
	if r.renderPass == nil {
		r.fail(fmt.Errorf("%w: draw", ErrNoActivePass))
		return
	}
	r.renderPass.Draw(vertexCount, instanceCount, 0, 0)
}

func (r *wgpuRecorder) Dispatch(x, y, z uint32) {
	if r.computePass == nil {
		r.fail(fmt.Errorf("%w: dispatch", ErrNoActivePass))
		return
	}
	r.computePass.DispatchWorkgroups(x, y, z)
}
