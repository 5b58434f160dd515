package attachment

import (
	"errors"
	"fmt"
	"sort"

	"github.com/Carmen-Shannon/oxy-post/engine/logger"
	"github.com/Carmen-Shannon/oxy-post/engine/renderer/gpu"
	"github.com/cogentcore/webgpu/wgpu"
	"go.uber.org/zap"
)

// ErrNoPresentTarget is returned when the presentation name is acquired before SetPresentTarget was called for the frame.
var ErrNoPresentTarget = errors.New("attachment: no present target for this frame")

// Pool hands out render targets for output attachments. Each name is double buffered so that a pass never renders
// into the image it samples under the same name.
type Pool interface {
	// Acquire returns a render target for name whose view differs from the attachment currently resolvable under name.
	// Targets are allocated lazily.
	//
	// Parameters:
	//   - name: the output attachment name
	//   - reg: the registry of the active frame
	//
	// Returns:
	//   - gpu.Texture: the target to render into
	//   - error: an error if allocation failed or the present target is missing
	Acquire(name string, reg Registry) (gpu.Texture, error)

	// SetPresentTarget sets the swapchain view used for the presentation name in the current frame.
	// Pass gpu.InvalidHandle to clear it once the frame is submitted.
	//
	// Parameters:
	//   - view: the swapchain texture view handle
	SetPresentTarget(view gpu.Handle)

	// Resize releases every allocated target and records the new dimensions. Targets are reallocated on demand.
	//
	// Parameters:
	//   - width: the new width in pixels
	//   - height: the new height in pixels
	Resize(width, height uint32)

	// Size returns the dimensions of the pool's targets.
	Size() (uint32, uint32)

	// Format returns the color format of the pool's targets.
	Format() wgpu.TextureFormat

	// PresentName returns the presentation name, or "" when none is configured.
	PresentName() string

	// Allocated returns the number of targets currently allocated.
	Allocated() int

	// Release releases every allocated target.
	Release()
}

type pool struct {
	device      gpu.Device
	width       uint32
	height      uint32
	format      wgpu.TextureFormat
	presentName string
	presentView gpu.Handle
	targets     map[string][]gpu.Texture
	log         *zap.Logger
}

var _ Pool = &pool{}

// NewPool creates a target pool that allocates through dev.
//
// Parameters:
//   - dev: the device targets are allocated on
//   - width: the width of every target in pixels
//   - height: the height of every target in pixels
//   - options: variadic list of PoolBuilderOption functions to configure the pool
//
// Returns:
//   - Pool: the created pool
func NewPool(dev gpu.Device, width, height uint32, options ...PoolBuilderOption) Pool {
	p := &pool{
		device:  dev,
		width:   width,
		height:  height,
		format:  wgpu.TextureFormatRGBA8Unorm,
		targets: make(map[string][]gpu.Texture),
		log:     logger.Log,
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

func (p *pool) Acquire(name string, reg Registry) (gpu.Texture, error) {
	if p.presentName != "" && name == p.presentName {
		if !p.presentView.Valid() {
			return gpu.Texture{}, fmt.Errorf("%w: %q", ErrNoPresentTarget, name)
		}
		return gpu.Texture{View: p.presentView, Width: p.width, Height: p.height, Format: p.format}, nil
	}

	var current gpu.Handle
	if reg != nil {
		if a, err := reg.Resolve(name); err == nil {
			current = a.Image
		}
	}

	slots := p.targets[name]
	for _, t := range slots {
		if t.View != current {
			return t, nil
		}
	}
	t, err := p.device.CreateRenderTarget(fmt.Sprintf("%s target %d", name, len(slots)), p.width, p.height, p.format)
	if err != nil {
		return gpu.Texture{}, fmt.Errorf("attachment: failed to allocate target for %q: %w", name, err)
	}
	p.targets[name] = append(slots, t)
	p.log.Debug("allocated render target",
		zap.String("name", name),
		zap.Int("slot", len(slots)),
		zap.Uint32("width", p.width),
		zap.Uint32("height", p.height))
	return t, nil
}

func (p *pool) SetPresentTarget(view gpu.Handle) {
	p.presentView = view
}

func (p *pool) Resize(width, height uint32) {
	if width == p.width && height == p.height {
		return
	}
	p.Release()
	p.width = width
	p.height = height
}

func (p *pool) Size() (uint32, uint32) {
	return p.width, p.height
}

func (p *pool) Format() wgpu.TextureFormat {
	return p.format
}

func (p *pool) PresentName() string {
	return p.presentName
}

func (p *pool) Allocated() int {
	n := 0
	for _, slots := range p.targets {
		n += len(slots)
	}
	return n
}

func (p *pool) Release() {
	names := make([]string, 0, len(p.targets))
	for name := range p.targets {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		for _, t := range p.targets[name] {
			p.device.Release(t.Handles()...)
		}
	}
	clear(p.targets)
}
