package common

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Lerp linearly interpolates between a and b.
//
// Parameters:
//   - a: the value at t = 0
//   - b: the value at t = 1
//   - t: the interpolation factor
//
// Returns:
//   - float32: a + (b - a) * t
func Lerp(a, b, t float32) float32 {
	return a + (b-a)*t
}

// RoundUp rounds v up to the next multiple of align. An align of zero returns v unchanged.
//
// Parameters:
//   - v: the value to round
//   - align: the alignment, in the same unit as v
//
// Returns:
//   - uint64: the smallest multiple of align that is >= v
func RoundUp(v, align uint64) uint64 {
	if align == 0 {
		return v
	}
	return (v + align - 1) / align * align
}

// Float32sToBytes encodes float32 values as little-endian bytes, the layout WGSL expects in uniform buffers.
//
// Parameters:
//   - values: the values to encode
//
// Returns:
//   - []byte: a newly allocated slice of len(values)*4 bytes
func Float32sToBytes(values ...float32) []byte {
	buf := make([]byte, len(values)*4)
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// BytesToFloat32s decodes little-endian bytes into float32 values. Trailing bytes that do not form a whole value are ignored.
//
// Parameters:
//   - data: the bytes to decode
//
// Returns:
//   - []float32: the decoded values
func BytesToFloat32s(data []byte) []float32 {
	out := make([]float32, len(data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out
}

// Vec4sToBytes encodes a slice of vectors as consecutive little-endian float32 quadruples.
//
// Parameters:
//   - values: the vectors to encode
//
// Returns:
//   - []byte: a newly allocated slice of len(values)*16 bytes
func Vec4sToBytes(values []mgl32.Vec4) []byte {
	buf := make([]byte, 0, len(values)*16)
	for _, v := range values {
		buf = append(buf, Float32sToBytes(v[0], v[1], v[2], v[3])...)
	}
	return buf
}

// Mat4ToBytes encodes a 4x4 matrix in column-major order as little-endian float32 values.
//
// Parameters:
//   - m: the matrix to encode
//
// Returns:
//   - []byte: a newly allocated slice of 64 bytes
func Mat4ToBytes(m mgl32.Mat4) []byte {
	return Float32sToBytes(m[:]...)
}
