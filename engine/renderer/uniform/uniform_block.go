// Package uniform implements uniform blocks: named, offset-addressed CPU scratch buffers mirrored to a GPU uniform
// buffer with partial updates.
package uniform

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"github.com/Carmen-Shannon/oxy-post/common"
	"github.com/Carmen-Shannon/oxy-post/engine/renderer/gpu"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
)

var (
	// ErrUnknownField is returned when a push or read names a field that is not part of the block.
	ErrUnknownField = errors.New("uniform: unknown field")
	// ErrFieldSizeMismatch is returned when pushed data is not exactly the declared size of the field.
	ErrFieldSizeMismatch = errors.New("uniform: field size mismatch")
)

// bufferAlign is the size granularity of uniform buffers.
const bufferAlign = 16

// writeAlign is the offset and size granularity of queue buffer writes.
const writeAlign = 4

// FieldSpec declares one field of a block. Fields are laid out in declaration order with no implicit padding, so
// callers insert explicit padding fields where WGSL alignment requires them.
type FieldSpec struct {
	Name string
	Size uint64
}

// Field is a laid-out field of a block.
type Field struct {
	Name   string
	Offset uint64
	Size   uint64
}

// Block is a uniform block owned by a single filter. It is not safe for concurrent use.
type Block interface {
	// Label returns the debug label of the block.
	Label() string

	// Size returns the total size of the declared fields in bytes.
	Size() uint64

	// BufferSize returns the size of the GPU buffer, Size rounded up to 16 bytes.
	BufferSize() uint64

	// Buffer returns the GPU buffer handle.
	Buffer() gpu.Handle

	// Fields returns the laid-out fields in declaration order.
	Fields() []Field

	// Push copies data into the named field.
	//
	// Parameters:
	//   - name: the field name
	//   - data: exactly the declared number of bytes of the field
	//
	// Returns:
	//   - error: ErrUnknownField or ErrFieldSizeMismatch
	Push(name string, data []byte) error

	// PushFloat32 pushes a single f32.
	PushFloat32(name string, v float32) error

	// PushVec3 pushes a vec3<f32> (12 bytes).
	PushVec3(name string, v mgl32.Vec3) error

	// PushVec4 pushes a vec4<f32>.
	PushVec4(name string, v mgl32.Vec4) error

	// PushVec4s pushes an array<vec4<f32>, N>.
	PushVec4s(name string, v []mgl32.Vec4) error

	// PushMat4 pushes a column-major mat4x4<f32>.
	PushMat4(name string, m mgl32.Mat4) error

	// Bytes returns a copy of the declared layout.
	Bytes() []byte

	// Field returns a copy of the named field's bytes.
	//
	// Parameters:
	//   - name: the field name
	//
	// Returns:
	//   - []byte: the field's current bytes
	//   - error: ErrUnknownField if the field does not exist
	Field(name string) ([]byte, error)

	// Dirty reports whether pushes changed the block since the last flush.
	Dirty() bool

	// Writes returns the coalesced dirty ranges as buffer writes, without clearing them.
	Writes() []gpu.BufferWrite

	// Flush uploads the dirty ranges through dev and clears the dirty state.
	//
	// Parameters:
	//   - dev: the device owning the block's buffer
	Flush(dev gpu.Device)

	// Release releases the GPU buffer.
	Release()
}

type dirtyRange struct {
	start, end uint64
}

type block struct {
	label  string
	device gpu.Device
	buffer gpu.Handle
	fields []Field
	lookup map[string]int
	size   uint64
	mirror []byte
	dirty  []dirtyRange
	usage  wgpu.BufferUsage
}

var _ Block = &block{}

// NewBlock lays out fields and creates the backing GPU buffer.
//
// Parameters:
//   - dev: the device the buffer is created on
//   - label: debug label for the block and its buffer
//   - fields: the ordered field declarations
//   - options: variadic list of BlockBuilderOption functions to configure the block
//
// Returns:
//   - Block: the created block
//   - error: an error if a field is empty or duplicated, or the buffer could not be created
func NewBlock(dev gpu.Device, label string, fields []FieldSpec, options ...BlockBuilderOption) (Block, error) {
	b := &block{
		label:  label,
		device: dev,
		lookup: make(map[string]int, len(fields)),
		usage:  wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
	}
	for _, opt := range options {
		opt(b)
	}

	if len(fields) == 0 {
		return nil, fmt.Errorf("uniform: block %q has no fields", label)
	}
	for _, f := range fields {
		if f.Size == 0 {
			return nil, fmt.Errorf("uniform: field %q of block %q has zero size", f.Name, label)
		}
		if _, ok := b.lookup[f.Name]; ok {
			return nil, fmt.Errorf("uniform: duplicate field %q in block %q", f.Name, label)
		}
		b.lookup[f.Name] = len(b.fields)
		b.fields = append(b.fields, Field{Name: f.Name, Offset: b.size, Size: f.Size})
		b.size += f.Size
	}
	b.mirror = make([]byte, common.RoundUp(b.size, bufferAlign))

	buf, err := dev.CreateBuffer(label+" Uniform Buffer", uint64(len(b.mirror)), b.usage)
	if err != nil {
		return nil, fmt.Errorf("uniform: failed to create buffer for %q: %w", label, err)
	}
	b.buffer = buf

	return b, nil
}

func (b *block) Label() string {
	return b.label
}

func (b *block) Size() uint64 {
	return b.size
}

func (b *block) BufferSize() uint64 {
	return uint64(len(b.mirror))
}

func (b *block) Buffer() gpu.Handle {
	return b.buffer
}

func (b *block) Fields() []Field {
	return append([]Field(nil), b.fields...)
}

func (b *block) field(name string) (Field, error) {
	i, ok := b.lookup[name]
	if !ok {
		return Field{}, fmt.Errorf("%w: %q in block %q", ErrUnknownField, name, b.label)
	}
	return b.fields[i], nil
}

func (b *block) Push(name string, data []byte) error {
	f, err := b.field(name)
	if err != nil {
		return err
	}
	if uint64(len(data)) != f.Size {
		return fmt.Errorf("%w: %q in block %q is %d bytes, got %d", ErrFieldSizeMismatch, name, b.label, f.Size, len(data))
	}

	dst := b.mirror[f.Offset : f.Offset+f.Size]
	if bytes.Equal(dst, data) {
		return nil
	}
	copy(dst, data)
	b.dirty = append(b.dirty, dirtyRange{start: f.Offset, end: f.Offset + f.Size})
	return nil
}

func (b *block) PushFloat32(name string, v float32) error {
	return b.Push(name, common.Float32sToBytes(v))
}

func (b *block) PushVec3(name string, v mgl32.Vec3) error {
	return b.Push(name, common.Float32sToBytes(v[0], v[1], v[2]))
}

func (b *block) PushVec4(name string, v mgl32.Vec4) error {
	return b.Push(name, common.Float32sToBytes(v[0], v[1], v[2], v[3]))
}

func (b *block) PushVec4s(name string, v []mgl32.Vec4) error {
	return b.Push(name, common.Vec4sToBytes(v))
}

func (b *block) PushMat4(name string, m mgl32.Mat4) error {
	return b.Push(name, common.Mat4ToBytes(m))
}

func (b *block) Bytes() []byte {
	return append([]byte(nil), b.mirror[:b.size]...)
}

func (b *block) Field(name string) ([]byte, error) {
	f, err := b.field(name)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), b.mirror[f.Offset:f.Offset+f.Size]...), nil
}

func (b *block) Dirty() bool {
	return len(b.dirty) > 0
}

func (b *block) Writes() []gpu.BufferWrite {
	if len(b.dirty) == 0 {
		return nil
	}

	ranges := make([]dirtyRange, len(b.dirty))
	for i, r := range b.dirty {
		ranges[i] = dirtyRange{
			start: r.start / writeAlign * writeAlign,
			end:   common.RoundUp(r.end, writeAlign),
		}
	}
	sort.Slice(ranges, func(i, j int) bool { return ranges[i].start < ranges[j].start })

	merged := ranges[:1]
	for _, r := range ranges[1:] {
		last := &merged[len(merged)-1]
		if r.start <= last.end {
			last.end = max(last.end, r.end)
			continue
		}
		merged = append(merged, r)
	}

	writes := make([]gpu.BufferWrite, len(merged))
	for i, r := range merged {
		writes[i] = gpu.BufferWrite{
			Buffer: b.buffer,
			Offset: r.start,
			Data:   append([]byte(nil), b.mirror[r.start:r.end]...),
		}
	}
	return writes
}

func (b *block) Flush(dev gpu.Device) {
	writes := b.Writes()
	if len(writes) == 0 {
		return
	}
	dev.WriteBuffers(writes)
	b.dirty = b.dirty[:0]
}

func (b *block) Release() {
	if b.buffer.Valid() {
		b.device.Release(b.buffer)
		b.buffer = gpu.InvalidHandle
	}
}
