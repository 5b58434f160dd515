// Package attachment publishes named render targets between post-processing passes.
package attachment

import (
	"errors"
	"fmt"
	"sort"

	"github.com/Carmen-Shannon/oxy-post/engine/renderer/gpu"
	"github.com/cogentcore/webgpu/wgpu"
)

// ErrUnknownAttachment is returned when a name has not been published in the active frame and is no persistent input.
var ErrUnknownAttachment = errors.New("attachment: unknown attachment")

// Attachment is a borrowed reference to a named render target. The frame driver owns the underlying texture.
type Attachment struct {
	// Name is the name the attachment was published under.
	Name string
	// Format is the color format of the image.
	Format wgpu.TextureFormat
	// Image is the texture view that passes sample from.
	Image gpu.Handle
	// Texture is the texture behind Image.
	Texture gpu.Handle
	// Width and Height are the dimensions of the image in pixels.
	Width, Height uint32
	// Usage describes how the texture may be used.
	Usage wgpu.TextureUsage
}

// FromTexture describes a gpu.Texture as an attachment.
//
// Parameters:
//   - name: the attachment name
//   - tex: the texture to reference
//
// Returns:
//   - Attachment: the attachment referencing tex's default view
func FromTexture(name string, tex gpu.Texture) Attachment {
	return Attachment{
		Name:    name,
		Format:  tex.Format,
		Image:   tex.View,
		Texture: tex.Texture,
		Width:   tex.Width,
		Height:  tex.Height,
		Usage:   wgpu.TextureUsageTextureBinding | wgpu.TextureUsageRenderAttachment,
	}
}

// Registry maps attachment names onto the images published in the active frame.
// It is a frame-scoped object used from the recording goroutine only.
type Registry interface {
	// Publish records a under name for the active frame, overwriting any earlier publication of the same name.
	//
	// Parameters:
	//   - name: the attachment name
	//   - a: the attachment; its Name is set to name
	Publish(name string, a Attachment)

	// Resolve returns the latest publication of name in the active frame, falling back to the persistent input
	// registered under name.
	//
	// Parameters:
	//   - name: the attachment name
	//
	// Returns:
	//   - Attachment: the resolved attachment
	//   - error: ErrUnknownAttachment when name is neither published nor persistent
	Resolve(name string) (Attachment, error)

	// SetPersistent registers an input that survives Reset, such as a G-buffer produced outside the chain.
	//
	// Parameters:
	//   - name: the attachment name
	//   - a: the attachment; its Name is set to name
	SetPersistent(name string, a Attachment)

	// RemovePersistent drops a persistent input.
	//
	// Parameters:
	//   - name: the attachment name
	RemovePersistent(name string)

	// Reset clears every per-frame publication and starts the given frame.
	//
	// Parameters:
	//   - frame: the index of the frame being started
	Reset(frame uint64)

	// Frame returns the index of the active frame.
	Frame() uint64

	// Publications returns how many times name was published in the active frame.
	Publications(name string) int

	// Names returns the names resolvable in the active frame, sorted.
	Names() []string
}

type registry struct {
	frame        uint64
	published    map[string]Attachment
	publications map[string]int
	persistent   map[string]Attachment
}

var _ Registry = &registry{}

// NewRegistry creates an empty registry at frame 0.
//
// Returns:
//   - Registry: the created registry
func NewRegistry() Registry {
	return &registry{
		published:    make(map[string]Attachment),
		publications: make(map[string]int),
		persistent:   make(map[string]Attachment),
	}
}

func (r *registry) Publish(name string, a Attachment) {
	a.Name = name
	r.published[name] = a
	r.publications[name]++
}

func (r *registry) Resolve(name string) (Attachment, error) {
	if a, ok := r.published[name]; ok {
		return a, nil
	}
	if a, ok := r.persistent[name]; ok {
		return a, nil
	}
	return Attachment{}, fmt.Errorf("%w: %q in frame %d", ErrUnknownAttachment, name, r.frame)
}

func (r *registry) SetPersistent(name string, a Attachment) {
	a.Name = name
	r.persistent[name] = a
}

func (r *registry) RemovePersistent(name string) {
	delete(r.persistent, name)
}

func (r *registry) Reset(frame uint64) {
	r.frame = frame
	clear(r.published)
	clear(r.publications)
}

func (r *registry) Frame() uint64 {
	return r.frame
}

func (r *registry) Publications(name string) int {
	return r.publications[name]
}

func (r *registry) Names() []string {
	seen := make(map[string]struct{}, len(r.published)+len(r.persistent))
	for n := range r.published {
		seen[n] = struct{}{}
	}
	for n := range r.persistent {
		seen[n] = struct{}{}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
