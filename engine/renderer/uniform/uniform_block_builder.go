package uniform

import "github.com/cogentcore/webgpu/wgpu"

// BlockBuilderOption is a functional option applied to a block during construction via NewBlock.
type BlockBuilderOption func(*block)

// WithBufferUsage adds usage flags to the block's GPU buffer on top of Uniform | CopyDst.
//
// Parameters:
//   - usage: the additional buffer usage flags
//
// Returns:
//   - BlockBuilderOption: a function that applies the buffer usage option to a block
func WithBufferUsage(usage wgpu.BufferUsage) BlockBuilderOption {
	return func(b *block) {
		b.usage |= usage
	}
}
