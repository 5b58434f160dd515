// Package window hosts the WebGPU surface the demo driver presents post-processed frames to.
package window

import (
	"fmt"
	"runtime"

	"github.com/Carmen-Shannon/oxy-post/engine/logger"
	"github.com/cogentcore/webgpu/wgpu"
	"go.uber.org/zap"
)

// Window is a desktop window with a WebGPU-compatible surface.
// Every method must be called from the goroutine that created the window.
type Window interface {
	// SetFrameCallback sets the function called once per loop iteration. Run stops when it returns an error.
	//
	// Parameters:
	//   - callback: function to call (or nil to disable)
	SetFrameCallback(callback func() error)

	// SetResizeCallback sets the function called when the framebuffer is resized.
	//
	// Parameters:
	//   - callback: function receiving new width and height in pixels
	SetResizeCallback(callback func(width, height int))

	// SetKeyCallback sets the function called on key presses. Escape always closes the window.
	//
	// Parameters:
	//   - callback: function receiving the GLFW key code, which is the ASCII code for letters and digits
	SetKeyCallback(callback func(key int))

	// SurfaceDescriptor returns a wgpu.SurfaceDescriptor suitable for creating a WebGPU surface.
	// The descriptor is created by the wgpuglfw bridge from the underlying GLFW window.
	//
	// Returns:
	//   - *wgpu.SurfaceDescriptor: the platform-specific surface descriptor, or nil if window is not initialized
	SurfaceDescriptor() *wgpu.SurfaceDescriptor

	// IsRunning reports whether the window is still open.
	IsRunning() bool

	// Run polls events and invokes the frame callback until the window closes or the callback fails.
	//
	// Returns:
	//   - error: the frame callback's error, or nil when the window was closed
	Run() error

	// Close destroys the window and releases platform resources.
	//
	// Returns:
	//   - error: error if the window was never created
	Close() error

	// Size returns the framebuffer size in pixels.
	Size() (int, int)
}

// engineWindow is the implementation of the Window interface.
type engineWindow struct {
	title     string
	width     int
	height    int
	resizable bool
	log       *zap.Logger

	// internalWindow holds the platform-specific window data (glfwWindow).
	internalWindow any

	onFrame  func() error
	onResize func(width, height int)
	onKey    func(key int)
}

var _ Window = &engineWindow{}

// NewWindow creates and shows a window. The calling goroutine is locked to its OS thread.
//
// Parameters:
//   - options: functional options to configure the window
//
// Returns:
//   - Window: the window
//   - error: an error if the platform window could not be created
func NewWindow(options ...WindowBuilderOption) (Window, error) {
	w := &engineWindow{
		title:  "oxy-post",
		width:  1280,
		height: 720,
		log:    logger.Log,
	}
	for _, opt := range options {
		opt(w)
	}
	if err := newPlatformWindow(w); err != nil {
		return nil, fmt.Errorf("window: failed to create platform window: %w", err)
	}
	w.log.Debug("window created", zap.String("title", w.title), zap.Int("width", w.width), zap.Int("height", w.height))
	return w, nil
}

func (w *engineWindow) SetFrameCallback(callback func() error) {
	w.onFrame = callback
}

func (w *engineWindow) SetResizeCallback(callback func(width, height int)) {
	w.onResize = callback
}

func (w *engineWindow) SetKeyCallback(callback func(key int)) {
	w.onKey = callback
}

func (w *engineWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor {
	return platformGetSurfaceDescriptor(w)
}

func (w *engineWindow) IsRunning() bool {
	return platformIsRunningCheck(w)
}

func (w *engineWindow) Run() error {
	for w.IsRunning() {
		if !platformProcessMessages(w) {
			break
		}
		if w.onFrame != nil {
			if err := w.onFrame(); err != nil {
				return err
			}
		}
		runtime.Gosched()
	}
	return nil
}

func (w *engineWindow) Close() error {
	return platformCloseWindow(w)
}

func (w *engineWindow) Size() (int, int) {
	return w.width, w.height
}
