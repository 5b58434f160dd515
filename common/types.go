// package common contains common types that are used throughout the post-processing stack. They are not interface-wrapped structs, just plain
// structs that express commonly used data-types.
package common

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/cogentcore/webgpu/wgpu"
)

// TextureStagingData holds pixel data for a texture pending GPU upload.
// Filters use it for precomputed textures such as the SSAO noise, and the frame driver uses it for persistent image inputs.
type TextureStagingData struct {
	// Pixels is the raw pixel data in row-major order, tightly packed at BytesPerPixel bytes per texel.
	Pixels []byte
	// Width is the width of the texture in pixels.
	Width uint32
	// Height is the height of the texture in pixels.
	Height uint32
	// Format is the GPU texture format of Pixels. Zero means RGBA8UnormSrgb.
	Format wgpu.TextureFormat
	// BytesPerPixel is the size of one texel in Pixels. Zero means 4.
	BytesPerPixel uint32
}

// RowPitch returns the number of bytes in one row of the staged pixel data.
//
// Returns:
//   - uint32: Width multiplied by the effective bytes per pixel
func (t TextureStagingData) RowPitch() uint32 {
	return t.Width * Coalesce(t.BytesPerPixel, 4)
}

// SamplerStagingData holds the configuration for a sampler pending GPU creation.
// Zero-valued fields fall back to linear filtering with repeat addressing.
type SamplerStagingData struct {
	// AddressModeU, AddressModeV, AddressModeW specify the addressing mode for texture coordinates outside the [0, 1] range in each dimension (U, V, W).
	AddressModeU, AddressModeV, AddressModeW wgpu.AddressMode
	// MagFilter and MinFilter specify the filtering mode for magnification and minification.
	MagFilter, MinFilter wgpu.FilterMode
	// MipmapFilter specifies the filtering mode for mipmap level selection.
	MipmapFilter wgpu.MipmapFilterMode
	// LodMinClamp and LodMaxClamp specify the minimum and maximum level of detail (LOD) for mipmapping.
	LodMinClamp, LodMaxClamp float32
	// Compare specifies the comparison function for comparison samplers.
	Compare wgpu.CompareFunction
	// MaxAnisotropy specifies the maximum anisotropy level for anisotropic filtering.
	MaxAnisotropy uint16
}

// ClampedSampler is the sampler configuration used by full-screen passes: linear filtering with edge clamping so
// neighbourhood taps at the screen border never wrap to the opposite edge.
var ClampedSampler = SamplerStagingData{
	AddressModeU: wgpu.AddressModeClampToEdge,
	AddressModeV: wgpu.AddressModeClampToEdge,
	AddressModeW: wgpu.AddressModeClampToEdge,
}

// SourceImage describes an image that seeds a persistent attachment, either from a file on disk or from encoded bytes.
type SourceImage struct {
	// Name is the attachment name the decoded image is published under.
	Name string

	// Path is the file path of the image (ignored when Data is set).
	Path string

	// Data contains encoded image bytes (PNG/JPEG).
	Data []byte

	// Width is the image width in pixels (populated after Decode).
	Width int

	// Height is the image height in pixels (populated after Decode).
	Height int
}

// Decode decodes the image to RGBA8 staging data.
// Uses either the encoded Data bytes or loads from Path on disk.
// Supports PNG and JPEG formats.
//
// Returns:
//   - TextureStagingData: RGBA pixel data (4 bytes per pixel, row-major order) with its dimensions
//   - error: error if decoding fails
func (s *SourceImage) Decode() (TextureStagingData, error) {
	if s == nil {
		return TextureStagingData{}, fmt.Errorf("source image is nil")
	}

	var img image.Image
	var err error

	if len(s.Data) > 0 {
		img, _, err = image.Decode(bytes.NewReader(s.Data))
		if err != nil {
			return TextureStagingData{}, fmt.Errorf("failed to decode embedded image: %w", err)
		}
	} else if s.Path != "" {
		file, fileErr := os.Open(s.Path)
		if fileErr != nil {
			return TextureStagingData{}, fmt.Errorf("failed to open image file %s: %w", s.Path, fileErr)
		}
		defer file.Close()

		img, _, err = image.Decode(file)
		if err != nil {
			return TextureStagingData{}, fmt.Errorf("failed to decode image file %s: %w", s.Path, err)
		}
	} else {
		return TextureStagingData{}, fmt.Errorf("source image has neither data nor path")
	}

	bounds := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)

	s.Width = bounds.Dx()
	s.Height = bounds.Dy()

	return TextureStagingData{
		Pixels:        rgba.Pix,
		Width:         uint32(s.Width),
		Height:        uint32(s.Height),
		Format:        wgpu.TextureFormatRGBA8UnormSrgb,
		BytesPerPixel: 4,
	}, nil
}
