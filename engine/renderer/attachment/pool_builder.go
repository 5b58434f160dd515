package attachment

import (
	"github.com/cogentcore/webgpu/wgpu"
	"go.uber.org/zap"
)

// PoolBuilderOption is a functional option applied to a target pool during construction via NewPool.
type PoolBuilderOption func(*pool)

// WithFormat sets the color format of every target allocated by the pool.
//
// Parameters:
//   - format: the texture format
//
// Returns:
//   - PoolBuilderOption: a function that applies the format option to a pool
func WithFormat(format wgpu.TextureFormat) PoolBuilderOption {
	return func(p *pool) {
		p.format = format
	}
}

// WithPresentName maps an attachment name onto the swapchain view handed to SetPresentTarget each frame.
// A pass writing to that name renders straight into the surface.
//
// Parameters:
//   - name: the attachment name of the presentation target
//
// Returns:
//   - PoolBuilderOption: a function that applies the present name option to a pool
func WithPresentName(name string) PoolBuilderOption {
	return func(p *pool) {
		p.presentName = name
	}
}

// WithLogger sets the logger used for allocation messages.
//
// Parameters:
//   - l: the logger
//
// Returns:
//   - PoolBuilderOption: a function that applies the logger option to a pool
func WithLogger(l *zap.Logger) PoolBuilderOption {
	return func(p *pool) {
		p.log = l
	}
}
