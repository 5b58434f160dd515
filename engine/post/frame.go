package post

import (
	"github.com/Carmen-Shannon/oxy-post/engine/camera"
	"github.com/Carmen-Shannon/oxy-post/engine/renderer/attachment"
	"github.com/Carmen-Shannon/oxy-post/engine/renderer/gpu"
)

// Frame is the per-frame context handed to every filter of a chain.
type Frame struct {
	// Index is the frame counter; the registry has been reset to it.
	Index uint64

	// Registry resolves attachments published earlier in this frame and persistent inputs.
	Registry attachment.Registry

	// Recorder receives the frame's commands.
	Recorder gpu.CommandRecorder

	// Targets hands out output render targets.
	Targets attachment.Pool

	// Camera provides the matrices of screen-space filters. May be nil for chains without such filters.
	Camera camera.Camera
}
