package pipeline

import (
	"errors"
	"fmt"
	"sort"

	"github.com/Carmen-Shannon/oxy-post/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
)

// ErrBindingLayoutMismatch is returned when reflected bindings cannot form a single group 0 layout, or when a
// resource does not fit the slot it is staged into.
var ErrBindingLayoutMismatch = errors.New("pipeline: binding layout mismatch")

// BindingKind is the kind of resource a binding slot accepts.
type BindingKind int

const (
	// BindingKindUniform is a uniform buffer, var<uniform>.
	BindingKindUniform BindingKind = iota

	// BindingKindSampledTexture is a sampled texture view, texture_2d<f32> and friends.
	BindingKindSampledTexture

	// BindingKindSampler is a sampler.
	BindingKindSampler
)

func (k BindingKind) String() string {
	switch k {
	case BindingKindUniform:
		return "uniform"
	case BindingKindSampledTexture:
		return "sampled texture"
	case BindingKindSampler:
		return "sampler"
	default:
		return fmt.Sprintf("BindingKind(%d)", int(k))
	}
}

// Binding is one reflected slot of a pipeline's group 0 layout.
type Binding struct {
	// Slot is the @binding index.
	Slot uint32

	// Name is the WGSL variable name.
	Name string

	// Stages are the shader stages that reference the binding.
	Stages wgpu.ShaderStage

	// Kind is the resource kind the slot accepts.
	Kind BindingKind

	// MinSize is the minimum buffer size of a uniform slot, 0 for other kinds.
	MinSize uint64
}

// mergeLayouts merges the group 0 layouts of the given stages into one sorted entry list. A binding declared by
// several stages must agree on name and resource type; its visibility is the union of the stages.
//
// Parameters:
//   - unfilterable: texture variable names whose sample type is overridden to unfilterable float
//   - stages: the shaders of the pipeline
//
// Returns:
//   - []wgpu.BindGroupLayoutEntry: the merged layout entries sorted by binding
//   - []Binding: the matching reflected bindings
//   - error: an error wrapping ErrBindingLayoutMismatch
func mergeLayouts(unfilterable map[string]bool, stages ...shader.Shader) ([]wgpu.BindGroupLayoutEntry, []Binding, error) {
	entries := make(map[uint32]wgpu.BindGroupLayoutEntry)
	names := make(map[uint32]string)

	for _, s := range stages {
		for group, desc := range s.BindGroupLayoutDescriptors() {
			if group != 0 {
				return nil, nil, fmt.Errorf("%w: %s declares bindings in @group(%d), only group 0 is supported", ErrBindingLayoutMismatch, s.Key(), group)
			}
			for _, e := range desc.Entries {
				name := s.BindGroupVarName(group, int(e.Binding))
				existing, seen := entries[e.Binding]
				if !seen {
					entries[e.Binding] = e
					names[e.Binding] = name
					continue
				}
				if names[e.Binding] != name || !sameResource(existing, e) {
					return nil, nil, fmt.Errorf("%w: @binding(%d) is declared as %q and %q by different stages", ErrBindingLayoutMismatch, e.Binding, names[e.Binding], name)
				}
				existing.Visibility |= e.Visibility
				existing.Buffer.MinBindingSize = max(existing.Buffer.MinBindingSize, e.Buffer.MinBindingSize)
				entries[e.Binding] = existing
			}
		}
	}

	for name := range unfilterable {
		found := false
		for slot, e := range entries {
			if names[slot] != name {
				continue
			}
			if e.Texture.SampleType != wgpu.TextureSampleTypeFloat {
				return nil, nil, fmt.Errorf("%w: %q is not a float texture", ErrBindingLayoutMismatch, name)
			}
			e.Texture.SampleType = wgpu.TextureSampleTypeUnfilterableFloat
			entries[slot] = e
			found = true
		}
		if !found {
			return nil, nil, fmt.Errorf("%w: unfilterable texture %q is not declared", ErrBindingLayoutMismatch, name)
		}
	}

	slots := make([]uint32, 0, len(entries))
	for slot := range entries {
		slots = append(slots, slot)
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i] < slots[j] })

	layout := make([]wgpu.BindGroupLayoutEntry, 0, len(slots))
	bindings := make([]Binding, 0, len(slots))
	for _, slot := range slots {
		e := entries[slot]
		kind, err := bindingKind(e)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %q: %w", ErrBindingLayoutMismatch, names[slot], err)
		}
		layout = append(layout, e)
		bindings = append(bindings, Binding{
			Slot:    slot,
			Name:    names[slot],
			Stages:  e.Visibility,
			Kind:    kind,
			MinSize: e.Buffer.MinBindingSize,
		})
	}
	return layout, bindings, nil
}

// bindingKind classifies a layout entry. Storage buffers and storage textures are not bindable through a
// binding set.
func bindingKind(e wgpu.BindGroupLayoutEntry) (BindingKind, error) {
	switch {
	case e.Buffer.Type == wgpu.BufferBindingTypeUniform:
		return BindingKindUniform, nil
	case e.Buffer.Type != wgpu.BufferBindingTypeUndefined:
		return 0, errors.New("storage buffers are not supported")
	case e.Texture.SampleType != wgpu.TextureSampleTypeUndefined:
		return BindingKindSampledTexture, nil
	case e.Sampler.Type != wgpu.SamplerBindingTypeUndefined:
		return BindingKindSampler, nil
	default:
		return 0, errors.New("storage textures are not supported")
	}
}

// sameResource reports whether two stages declare the same resource type at a binding.
func sameResource(a, b wgpu.BindGroupLayoutEntry) bool {
	return a.Buffer.Type == b.Buffer.Type &&
		a.Texture.SampleType == b.Texture.SampleType &&
		a.Texture.ViewDimension == b.Texture.ViewDimension &&
		a.Texture.Multisampled == b.Texture.Multisampled &&
		a.Sampler.Type == b.Sampler.Type &&
		a.StorageTexture.Format == b.StorageTexture.Format &&
		a.StorageTexture.Access == b.StorageTexture.Access
}
