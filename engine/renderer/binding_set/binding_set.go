// Package binding_set stages the resources of one pipeline's group 0 slots and commits them to a GPU bind group.
package binding_set

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/Carmen-Shannon/oxy-post/engine/logger"
	"github.com/Carmen-Shannon/oxy-post/engine/renderer/attachment"
	"github.com/Carmen-Shannon/oxy-post/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-post/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-post/engine/renderer/uniform"
	"go.uber.org/zap"
)

// ErrBindingSetIncomplete is reported by Err when Update found a slot missing, stale or unresolvable.
var ErrBindingSetIncomplete = errors.New("binding_set: binding set incomplete")

// stagedResource is the resource staged into one slot.
type stagedResource struct {
	entry gpu.BindGroupEntry

	// block is set for uniform slots and flushed on commit.
	block uniform.Block

	// attachment, registry and frame are set for attachment slots. An attachment staged in an older registry
	// frame is stale.
	attachment string
	registry   attachment.Registry
	frame      uint64

	// err is the resolve failure of an attachment slot.
	err error
}

// bindingSet is the implementation of the BindingSet interface.
type bindingSet struct {
	label    string
	device   gpu.Device
	pipeline pipeline.Pipeline
	log      *zap.Logger

	slots  map[uint32]pipeline.Binding
	staged map[uint32]stagedResource

	// committed and bindGroup are replaced together only by a successful Update.
	committed []gpu.BindGroupEntry
	bindGroup gpu.Handle

	err error
}

// BindingSet maps the binding slots of one pipeline onto uniform blocks, textures, samplers and named attachments.
// Resources are staged into a scratch map and committed all-or-nothing by Update. It is used from the recording
// goroutine only.
//
// Usage pattern:
//  1. Filter stages its constant resources once (uniform blocks, samplers, precomputed textures)
//  2. Every frame the filter stages its attachments with BindAttachment
//  3. Update validates every slot and commits; a new bind group is created only when resources changed
//  4. Bind sets the committed bind group at group 0 for the draw
type BindingSet interface {
	// Label returns the debug label of the set.
	Label() string

	// Pipeline returns the pipeline whose layout the set is built against.
	Pipeline() pipeline.Pipeline

	// Slot resolves the slot of a WGSL variable name.
	//
	// Parameters:
	//   - name: the variable name
	//
	// Returns:
	//   - uint32: the binding slot
	//   - error: an error wrapping pipeline.ErrBindingLayoutMismatch if no stage declares name
	Slot(name string) (uint32, error)

	// BindUniform stages a uniform block.
	//
	// Parameters:
	//   - slot: the binding slot
	//   - block: the block; its buffer must be at least the slot's minimum size
	//
	// Returns:
	//   - error: an error wrapping pipeline.ErrBindingLayoutMismatch on an unknown slot, a kind mismatch or an
	//     undersized block
	BindUniform(slot uint32, block uniform.Block) error

	// BindTexture stages a constant texture.
	//
	// Parameters:
	//   - slot: the binding slot
	//   - tex: the texture whose default view is bound
	//
	// Returns:
	//   - error: an error wrapping pipeline.ErrBindingLayoutMismatch on an unknown slot or a kind mismatch
	BindTexture(slot uint32, tex gpu.Texture) error

	// BindSampler stages a sampler.
	//
	// Parameters:
	//   - slot: the binding slot
	//   - sampler: the sampler handle
	//
	// Returns:
	//   - error: an error wrapping pipeline.ErrBindingLayoutMismatch on an unknown slot or a kind mismatch
	BindSampler(slot uint32, sampler gpu.Handle) error

	// BindAttachment resolves name in reg and stages its image for the registry's active frame. A resolve failure is
	// not returned; it is kept in the slot and reported by the next Update.
	//
	// Parameters:
	//   - slot: the binding slot
	//   - reg: the registry of the active frame
	//   - name: the attachment name
	//
	// Returns:
	//   - error: an error wrapping pipeline.ErrBindingLayoutMismatch on an unknown slot or a kind mismatch
	BindAttachment(slot uint32, reg attachment.Registry, name string) error

	// Update validates that every slot holds a current resource and commits the staged resources. Dirty uniform
	// blocks are flushed on success. A new bind group is created only when the resources differ from the committed
	// ones. On failure the committed state is left untouched.
	//
	// Returns:
	//   - bool: true if the set is complete and committed
	Update() bool

	// Err returns the failure of the last Update, nil after a successful one.
	//
	// Returns:
	//   - error: an error wrapping ErrBindingSetIncomplete, and attachment.ErrUnknownAttachment when a name did not resolve
	Err() error

	// BindGroup returns the committed bind group, gpu.InvalidHandle before the first successful Update.
	BindGroup() gpu.Handle

	// Entries returns a copy of the committed bind group entries sorted by binding.
	Entries() []gpu.BindGroupEntry

	// Bind sets the committed bind group at group 0.
	//
	// Parameters:
	//   - rec: the command recorder with an open pass
	Bind(rec gpu.CommandRecorder)

	// Release releases the committed bind group. Staged resources are borrowed and left alone.
	Release()
}

var _ BindingSet = &bindingSet{}

// NewBindingSet creates an empty binding set for the group 0 layout of p.
//
// Parameters:
//   - dev: the device bind groups are created on
//   - p: the pipeline whose layout the set follows
//   - options: variadic list of BindingSetBuilderOption functions to configure the set
//
// Returns:
//   - BindingSet: the created set
func NewBindingSet(dev gpu.Device, p pipeline.Pipeline, options ...BindingSetBuilderOption) BindingSet {
	s := &bindingSet{
		label:    p.PipelineKey(),
		device:   dev,
		pipeline: p,
		log:      logger.Log,
		slots:    make(map[uint32]pipeline.Binding),
		staged:   make(map[uint32]stagedResource),
	}
	for _, b := range p.BindingLayout() {
		s.slots[b.Slot] = b
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

func (s *bindingSet) Label() string {
	return s.label
}

func (s *bindingSet) Pipeline() pipeline.Pipeline {
	return s.pipeline
}

func (s *bindingSet) Slot(name string) (uint32, error) {
	b, ok := s.pipeline.Binding(name)
	if !ok {
		return 0, fmt.Errorf("%w: %s: no binding named %q", pipeline.ErrBindingLayoutMismatch, s.label, name)
	}
	return b.Slot, nil
}

// binding looks up slot and checks that it accepts kind.
func (s *bindingSet) binding(slot uint32, kind pipeline.BindingKind) (pipeline.Binding, error) {
	b, ok := s.slots[slot]
	if !ok {
		return b, fmt.Errorf("%w: %s: no binding at slot %d", pipeline.ErrBindingLayoutMismatch, s.label, slot)
	}
	if b.Kind != kind {
		return b, fmt.Errorf("%w: %s: slot %d (%s) takes a %s, not a %s", pipeline.ErrBindingLayoutMismatch, s.label, slot, b.Name, b.Kind, kind)
	}
	return b, nil
}

func (s *bindingSet) BindUniform(slot uint32, block uniform.Block) error {
	b, err := s.binding(slot, pipeline.BindingKindUniform)
	if err != nil {
		return err
	}
	if block.BufferSize() < b.MinSize {
		return fmt.Errorf("%w: %s: block %q is %d bytes, slot %d (%s) needs %d", pipeline.ErrBindingLayoutMismatch, s.label, block.Label(), block.BufferSize(), slot, b.Name, b.MinSize)
	}
	s.staged[slot] = stagedResource{
		entry: gpu.BindGroupEntry{Binding: slot, Buffer: block.Buffer(), Size: block.BufferSize()},
		block: block,
	}
	return nil
}

func (s *bindingSet) BindTexture(slot uint32, tex gpu.Texture) error {
	if _, err := s.binding(slot, pipeline.BindingKindSampledTexture); err != nil {
		return err
	}
	s.staged[slot] = stagedResource{entry: gpu.BindGroupEntry{Binding: slot, TextureView: tex.View}}
	return nil
}

func (s *bindingSet) BindSampler(slot uint32, sampler gpu.Handle) error {
	if _, err := s.binding(slot, pipeline.BindingKindSampler); err != nil {
		return err
	}
	s.staged[slot] = stagedResource{entry: gpu.BindGroupEntry{Binding: slot, Sampler: sampler}}
	return nil
}

func (s *bindingSet) BindAttachment(slot uint32, reg attachment.Registry, name string) error {
	if _, err := s.binding(slot, pipeline.BindingKindSampledTexture); err != nil {
		return err
	}
	st := stagedResource{
		entry:      gpu.BindGroupEntry{Binding: slot},
		attachment: name,
		registry:   reg,
		frame:      reg.Frame(),
	}
	a, err := reg.Resolve(name)
	if err != nil {
		st.err = err
	} else {
		st.entry.TextureView = a.Image
	}
	s.staged[slot] = st
	return nil
}

func (s *bindingSet) Update() bool {
	var causes []error
	for _, b := range s.pipeline.BindingLayout() {
		st, ok := s.staged[b.Slot]
		switch {
		case !ok:
			causes = append(causes, fmt.Errorf("slot %d (%s) is not staged", b.Slot, b.Name))
		case st.err != nil:
			causes = append(causes, fmt.Errorf("slot %d (%s): %w", b.Slot, b.Name, st.err))
		case st.registry != nil && st.registry.Frame() != st.frame:
			causes = append(causes, fmt.Errorf("slot %d (%s): attachment %q was staged in frame %d, active frame is %d", b.Slot, b.Name, st.attachment, st.frame, st.registry.Frame()))
		case !st.entry.Buffer.Valid() && !st.entry.TextureView.Valid() && !st.entry.Sampler.Valid():
			causes = append(causes, fmt.Errorf("slot %d (%s) holds no resource", b.Slot, b.Name))
		}
	}
	if len(causes) > 0 {
		s.err = fmt.Errorf("%w: %s: %w", ErrBindingSetIncomplete, s.label, errors.Join(causes...))
		return false
	}

	entries := make([]gpu.BindGroupEntry, 0, len(s.slots))
	for _, b := range s.pipeline.BindingLayout() {
		entries = append(entries, s.staged[b.Slot].entry)
	}

	if !s.bindGroup.Valid() || !slices.Equal(entries, s.committed) {
		bg, err := s.device.CreateBindGroup(s.label, s.pipeline.Layout(), entries)
		if err != nil {
			s.err = fmt.Errorf("%w: %s: failed to create bind group: %w", ErrBindingSetIncomplete, s.label, err)
			return false
		}
		s.device.Release(s.bindGroup)
		s.bindGroup = bg
		s.committed = entries
		s.log.Debug("bind group committed", zap.String("set", s.label), zap.String("slots", describe(entries)))
	}

	for _, st := range s.staged {
		if st.block != nil && st.block.Dirty() {
			st.block.Flush(s.device)
		}
	}
	s.err = nil
	return true
}

func (s *bindingSet) Err() error {
	return s.err
}

func (s *bindingSet) BindGroup() gpu.Handle {
	return s.bindGroup
}

func (s *bindingSet) Entries() []gpu.BindGroupEntry {
	return slices.Clone(s.committed)
}

func (s *bindingSet) Bind(rec gpu.CommandRecorder) {
	if s.bindGroup.Valid() {
		rec.SetBindGroup(0, s.bindGroup)
	}
}

func (s *bindingSet) Release() {
	s.device.Release(s.bindGroup)
	s.bindGroup = gpu.InvalidHandle
	s.committed = nil
}

// describe renders entries as "0:buf 1:tex 2:smp" for debug logs.
func describe(entries []gpu.BindGroupEntry) string {
	parts := make([]string, len(entries))
	for i, e := range entries {
		kind := "smp"
		switch {
		case e.Buffer.Valid():
			kind = "buf"
		case e.TextureView.Valid():
			kind = "tex"
		}
		parts[i] = fmt.Sprintf("%d:%s", e.Binding, kind)
	}
	return strings.Join(parts, " ")
}
