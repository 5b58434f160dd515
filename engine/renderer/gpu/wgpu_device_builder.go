package gpu

import (
	"github.com/cogentcore/webgpu/wgpu"
	"go.uber.org/zap"
)

// PresentMode controls how rendered frames are presented to the display surface.
type PresentMode int

const (
	// PresentModeVSync waits for the next vertical blank before presenting, capping frame rate
	// to the monitor's refresh rate. Eliminates tearing.
	PresentModeVSync PresentMode = iota
	// PresentModeUncapped presents frames immediately without waiting for vertical blank.
	// May cause screen tearing but provides the lowest latency.
	PresentModeUncapped
)

// WGPUDeviceBuilderOption is a functional option applied to a WebGPU device during construction via NewWGPUDevice.
type WGPUDeviceBuilderOption func(*wgpuDeviceImpl)

// WithSurface makes the device present into the surface described by desc. Without a surface the device is headless
// and render passes can only target render targets.
//
// Parameters:
//   - desc: the platform surface descriptor, usually obtained from the window
//
// Returns:
//   - WGPUDeviceBuilderOption: a function that applies the surface option to a device
func WithSurface(desc *wgpu.SurfaceDescriptor) WGPUDeviceBuilderOption {
	return func(d *wgpuDeviceImpl) {
		d.surfaceDescriptor = desc
	}
}

// WithPresentMode sets the surface present mode which controls how frames are delivered to the display.
//
// Parameters:
//   - mode: the PresentMode to use (VSync or Uncapped)
//
// Returns:
//   - WGPUDeviceBuilderOption: a function that applies the present mode option to a device
func WithPresentMode(mode PresentMode) WGPUDeviceBuilderOption {
	return func(d *wgpuDeviceImpl) {
		switch mode {
		case PresentModeVSync:
			d.presentMode = wgpu.PresentModeFifo
		default:
			d.presentMode = wgpu.PresentModeImmediate
		}
	}
}

// WithForceSoftwareRenderer forces WGPU to use a CPU/software fallback adapter instead of
// hardware GPU acceleration. This requires a software Vulkan ICD to be installed on the system
// (e.g. SwiftShader or lavapipe).
//
// Parameters:
//   - force: true to force the software fallback adapter, false to use hardware (default)
//
// Returns:
//   - WGPUDeviceBuilderOption: a function that applies the force software renderer option to a device
func WithForceSoftwareRenderer(force bool) WGPUDeviceBuilderOption {
	return func(d *wgpuDeviceImpl) {
		d.forceFallbackAdapter = force
	}
}

// WithClearColor sets the color every render pass clears its target to before drawing.
//
// Parameters:
//   - c: the clear color
//
// Returns:
//   - WGPUDeviceBuilderOption: a function that applies the clear color option to a device
func WithClearColor(c wgpu.Color) WGPUDeviceBuilderOption {
	return func(d *wgpuDeviceImpl) {
		d.clearColor = c
	}
}

// WithLogger sets the logger used for device lifecycle messages.
//
// Parameters:
//   - l: the logger
//
// Returns:
//   - WGPUDeviceBuilderOption: a function that applies the logger option to a device
func WithLogger(l *zap.Logger) WGPUDeviceBuilderOption {
	return func(d *wgpuDeviceImpl) {
		d.log = l
	}
}
