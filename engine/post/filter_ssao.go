package post

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math/rand/v2"
	"os"
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/oxy-post/common"
	"github.com/Carmen-Shannon/oxy-post/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-post/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-post/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-post/engine/renderer/uniform"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"
)

// SSAO defaults.
const (
	DefaultKernelSize         = 64
	DefaultRadius     float32 = 0.5

	// NoiseDim is the edge length of the square noise texture tiled over the screen.
	NoiseDim = 4

	// minKernelScale is the scale of the first kernel sample.
	minKernelScale float32 = 0.1
)

var (
	// ErrNoCamera is returned when an SSAO filter renders a frame without a camera.
	ErrNoCamera = errors.New("post: ssao needs a camera")
	// ErrInvalidKernel is returned for a non-positive kernel size or radius.
	ErrInvalidKernel = errors.New("post: invalid ssao kernel")
)

// Ssao is a screen-space ambient occlusion filter. It darkens its colour input by the fraction of hemisphere
// samples around each fragment that are occluded by the position G-buffer.
type Ssao interface {
	Filter

	// Kernel returns a copy of the hemisphere sample kernel, generated once at construction.
	Kernel() []mgl32.Vec4

	// Noise returns a copy of the NoiseDim x NoiseDim rotation vectors, row-major.
	Noise() []mgl32.Vec3

	// NoiseTexture returns the GPU texture holding Noise.
	NoiseTexture() gpu.Texture

	// Radius returns the sampling radius compiled into the shader.
	Radius() float32
}

type ssaoFilter struct {
	*postFilter
	scene  uniform.Block
	kernel []mgl32.Vec4
	noise  []mgl32.Vec3
	tex    gpu.Texture
	radius float32
}

var _ Ssao = &ssaoFilter{}

// NewSsao creates an SSAO filter. The kernel and noise are generated here and never change.
//
// Parameters:
//   - ctx: the construction context
//   - opts: builder options; WithName, WithInput, WithOutput, WithGBuffer, WithKernelSize, WithRadius,
//     WithRangeCheck, WithRand and WithNoiseDump apply
//
// Returns:
//   - Ssao: the filter
//   - error: an error if the kernel configuration is invalid or the pipeline or its resources could not be created
func NewSsao(ctx FilterContext, opts ...FilterBuilderOption) (Ssao, error) {
	cfg := newFilterConfig(KindSsao, opts)
	if cfg.kernelSize <= 0 || cfg.radius <= 0 {
		return nil, fmt.Errorf("%w: kernel size %d, radius %v", ErrInvalidKernel, cfg.kernelSize, cfg.radius)
	}
	rng := cfg.rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	rangeCheck := "0"
	if cfg.rangeCheck {
		rangeCheck = "1"
	}
	base, err := newPostFilter(ctx, KindSsao, ShaderSsao, cfg,
		pipeline.WithDefines(
			shader.Define{Name: "SSAO_KERNEL_SIZE", Value: strconv.Itoa(cfg.kernelSize)},
			shader.Define{Name: "SSAO_RADIUS", Value: floatLiteral(cfg.radius)},
			shader.Define{Name: "RANGE_CHECK", Value: rangeCheck},
		),
		pipeline.WithUnfilterableTextures("samplerNoise"),
	)
	if err != nil {
		return nil, err
	}

	f := &ssaoFilter{
		postFilter: base,
		kernel:     GenerateKernel(rng, cfg.kernelSize),
		noise:      GenerateNoise(rng, NoiseDim),
		radius:     cfg.radius,
	}
	if err := f.init(cfg); err != nil {
		f.Release()
		return nil, err
	}
	return f, nil
}

func (f *ssaoFilter) init(cfg *filterConfig) error {
	var err error
	f.scene, err = f.bindUniform("scene", []uniform.FieldSpec{
		{Name: "kernel", Size: uint64(len(f.kernel)) * 16},
		{Name: "projection", Size: 64},
		{Name: "view", Size: 64},
		{Name: "cameraPosition", Size: 12},
		{Name: "padding", Size: 4},
	})
	if err != nil {
		return err
	}
	if err := f.bindInput("samplerColour", cfg.input); err != nil {
		return err
	}
	if err := f.bindInput("samplerPosition", cfg.position); err != nil {
		return err
	}
	if err := f.bindInput("samplerNormal", cfg.normals); err != nil {
		return err
	}
	if f.tex, err = f.bindTexture("samplerNoise", noiseStagingData(f.noise, NoiseDim)); err != nil {
		return err
	}
	if err := f.bindSampler("linearSampler"); err != nil {
		return err
	}
	if err := f.scene.PushVec4s("kernel", f.kernel); err != nil {
		return err
	}

	if cfg.noiseDump != "" {
		if err := writeNoisePNG(cfg.noiseDump, f.noise, NoiseDim); err != nil {
			return fmt.Errorf("post: %s: %w", f.name, err)
		}
		f.log.Debug("wrote ssao noise", zap.String("filter", f.name), zap.String("path", cfg.noiseDump))
	}
	return nil
}

// Render pushes the kernel and the camera state of the frame, then draws.
func (f *ssaoFilter) Render(frame *Frame) error {
	if frame == nil || frame.Camera == nil {
		return fmt.Errorf("post: %s: %w", f.name, ErrNoCamera)
	}
	cam := frame.Camera
	if err := f.scene.PushVec4s("kernel", f.kernel); err != nil {
		return err
	}
	if err := f.scene.PushMat4("projection", cam.ProjectionMatrix()); err != nil {
		return err
	}
	if err := f.scene.PushMat4("view", cam.ViewMatrix()); err != nil {
		return err
	}
	if err := f.scene.PushVec3("cameraPosition", cam.Position()); err != nil {
		return err
	}
	return f.draw(frame)
}

func (f *ssaoFilter) Kernel() []mgl32.Vec4 {
	return append([]mgl32.Vec4(nil), f.kernel...)
}

func (f *ssaoFilter) Noise() []mgl32.Vec3 {
	return append([]mgl32.Vec3(nil), f.noise...)
}

func (f *ssaoFilter) NoiseTexture() gpu.Texture {
	return f.tex
}

func (f *ssaoFilter) Radius() float32 {
	return f.radius
}

// GenerateKernel returns size hemisphere samples around +Z. Each sample is a random direction with z in [0, 1],
// normalized, scaled by a random factor in [0, 1] and then by lerp(0.1, 1, t*t) with t = i/size, so samples
// cluster near the origin.
//
// Parameters:
//   - rng: the random source
//   - size: the number of samples
//
// Returns:
//   - []mgl32.Vec4: the samples, w = 0
func GenerateKernel(rng *rand.Rand, size int) []mgl32.Vec4 {
	kernel := make([]mgl32.Vec4, size)
	for i := range kernel {
		sample := mgl32.Vec3{
			rng.Float32()*2 - 1,
			rng.Float32()*2 - 1,
			rng.Float32(),
		}
		if sample.Len() == 0 {
			sample = mgl32.Vec3{0, 0, 1}
		}
		sample = sample.Normalize().Mul(rng.Float32())
		sample = sample.Mul(KernelScale(i, size))
		kernel[i] = sample.Vec4(0)
	}
	return kernel
}

// KernelScale returns the scale applied to sample i of size, lerp(0.1, 1, (i/size)^2).
//
// Parameters:
//   - i: the sample index
//   - size: the number of samples
//
// Returns:
//   - float32: the scale in [0.1, 1)
func KernelScale(i, size int) float32 {
	t := float32(i) / float32(size)
	return common.Lerp(minKernelScale, 1, t*t)
}

// GenerateNoise returns dim*dim random unit vectors in the XY plane, used to rotate the kernel per pixel.
//
// Parameters:
//   - rng: the random source
//   - dim: the edge length of the noise tile
//
// Returns:
//   - []mgl32.Vec3: the vectors, row-major, z = 0
func GenerateNoise(rng *rand.Rand, dim int) []mgl32.Vec3 {
	noise := make([]mgl32.Vec3, dim*dim)
	for i := range noise {
		v := mgl32.Vec3{rng.Float32()*2 - 1, rng.Float32()*2 - 1, 0}
		for v.Len() == 0 {
			v = mgl32.Vec3{rng.Float32()*2 - 1, rng.Float32()*2 - 1, 0}
		}
		noise[i] = v.Normalize()
	}
	return noise
}

// noiseStagingData packs the noise vectors as RGBA32Float texels with alpha 1.
func noiseStagingData(noise []mgl32.Vec3, dim int) common.TextureStagingData {
	texels := make([]mgl32.Vec4, len(noise))
	for i, v := range noise {
		texels[i] = v.Vec4(1)
	}
	return common.TextureStagingData{
		Pixels:        common.Vec4sToBytes(texels),
		Width:         uint32(dim),
		Height:        uint32(dim),
		Format:        wgpu.TextureFormatRGBA32Float,
		BytesPerPixel: 16,
	}
}

// writeNoisePNG writes the noise tile remapped from [-1, 1] to [0, 255].
func writeNoisePNG(path string, noise []mgl32.Vec3, dim int) error {
	img := image.NewNRGBA(image.Rect(0, 0, dim, dim))
	channel := func(v float32) uint8 {
		return uint8(mgl32.Clamp((v*0.5+0.5)*255, 0, 255))
	}
	for i, v := range noise {
		img.SetNRGBA(i%dim, i/dim, color.NRGBA{R: channel(v[0]), G: channel(v[1]), B: channel(v[2]), A: 255})
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create noise dump %s: %w", path, err)
	}
	if err := png.Encode(file, img); err != nil {
		file.Close()
		return fmt.Errorf("failed to encode noise dump %s: %w", path, err)
	}
	return file.Close()
}

// floatLiteral formats v as a WGSL float literal.
func floatLiteral(v float32) string {
	s := strconv.FormatFloat(float64(v), 'f', -1, 32)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}
