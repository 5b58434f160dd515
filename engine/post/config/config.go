// Package config loads a declarative post-processing chain from TOML.
//
// A chain file describes the window, the render targets, the persistent image inputs and an ordered list of
// filters:
//
//	[window]
//	width = 1280
//	height = 720
//
//	[render]
//	format = "bgra8unorm"
//	present = "final"
//
//	[[input]]
//	name = "scene"
//	path = "scene.png"
//
//	[[filter]]
//	kind = "sepia"
//	input = "scene"
//	output = "final"
package config

import (
	"bytes"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"slices"

	"github.com/Carmen-Shannon/oxy-post/common"
	"github.com/Carmen-Shannon/oxy-post/engine/post"
	"github.com/Carmen-Shannon/oxy-post/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/pelletier/go-toml/v2"
)

// ErrInvalidConfig is returned for a chain description that cannot be built.
var ErrInvalidConfig = errors.New("config: invalid chain")

// Config is a chain description.
type Config struct {
	Window  Window   `toml:"window"`
	Render  Render   `toml:"render"`
	Inputs  []Input  `toml:"input"`
	Filters []Filter `toml:"filter"`

	// dir resolves relative input paths of a loaded file.
	dir string
}

// Window is the demo window.
type Window struct {
	Title  string `toml:"title"`
	Width  int    `toml:"width"`
	Height int    `toml:"height"`
}

// Render configures the targets and the chain.
type Render struct {
	// Format is the target format, see Formats.
	Format string `toml:"format"`
	// Present is the attachment rendered to the swapchain.
	Present string `toml:"present"`
	// Strict makes per-frame filter failures fatal.
	Strict bool `toml:"strict"`
	// Validate compiles every shader with naga at construction.
	Validate bool `toml:"validate"`
	// LogLevel is a zap level name.
	LogLevel string `toml:"log_level"`
	// Workers is the number of construction goroutines, 0 for the default.
	Workers int `toml:"workers"`
}

// Input is a persistent image attachment.
type Input struct {
	Name string `toml:"name"`
	Path string `toml:"path"`
}

// Filter is one entry of the chain. Parameters not used by a kind are ignored.
type Filter struct {
	Kind   string `toml:"kind"`
	Name   string `toml:"name"`
	Input  string `toml:"input"`
	Output string `toml:"output"`

	SpanMax  *float32             `toml:"span_max"`
	Vignette *post.VignetteParams `toml:"vignette"`

	Position   string   `toml:"position"`
	Normals    string   `toml:"normals"`
	KernelSize *int     `toml:"kernel_size"`
	Radius     *float32 `toml:"radius"`
	RangeCheck *bool    `toml:"range_check"`
	Seed       *uint64  `toml:"seed"`
	NoiseDump  string   `toml:"noise_dump"`
}

var formats = map[string]wgpu.TextureFormat{
	"rgba8unorm":      wgpu.TextureFormatRGBA8Unorm,
	"rgba8unorm-srgb": wgpu.TextureFormatRGBA8UnormSrgb,
	"bgra8unorm":      wgpu.TextureFormatBGRA8Unorm,
	"bgra8unorm-srgb": wgpu.TextureFormatBGRA8UnormSrgb,
	"rgba16float":     wgpu.TextureFormatRGBA16Float,
}

// Default returns the configuration every file is decoded over.
//
// Returns:
//   - Config: the defaults
func Default() Config {
	return Config{
		Window: Window{Title: "oxy-post", Width: 1280, Height: 720},
		Render: Render{Format: "bgra8unorm", Present: "final", LogLevel: "info"},
	}
}

// Load reads and validates a chain file. Relative input paths resolve against the file's directory.
//
// Parameters:
//   - path: the TOML file
//
// Returns:
//   - Config: the configuration
//   - error: a read, decode or validation error
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: failed to read %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", path, err)
	}
	c.dir = filepath.Dir(path)
	return c, nil
}

// Parse decodes and validates a chain description. Unknown keys are rejected.
//
// Parameters:
//   - data: the TOML document
//
// Returns:
//   - Config: the configuration
//   - error: a decode or validation error
func Parse(data []byte) (Config, error) {
	c := Default()
	dec := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields()
	if err := dec.Decode(&c); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return Config{}, fmt.Errorf("%w: %s", ErrInvalidConfig, strict.String())
		}
		return Config{}, fmt.Errorf("config: failed to decode: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks the description: known kinds and formats, unique filter names, and every filter input produced
// by a persistent input or an earlier filter.
//
// Returns:
//   - error: an error wrapping ErrInvalidConfig
func (c Config) Validate() error {
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return fmt.Errorf("%w: window size %dx%d", ErrInvalidConfig, c.Window.Width, c.Window.Height)
	}
	if _, ok := formats[c.Render.Format]; !ok {
		return fmt.Errorf("%w: unknown format %q", ErrInvalidConfig, c.Render.Format)
	}
	if len(c.Filters) == 0 {
		return fmt.Errorf("%w: no filters", ErrInvalidConfig)
	}

	available := make(map[string]bool)
	for _, in := range c.Inputs {
		if in.Name == "" || in.Path == "" {
			return fmt.Errorf("%w: input needs a name and a path", ErrInvalidConfig)
		}
		if available[in.Name] {
			return fmt.Errorf("%w: input %q declared twice", ErrInvalidConfig, in.Name)
		}
		available[in.Name] = true
	}

	names := make(map[string]bool)
	for i, f := range c.Filters {
		if !isKind(f.Kind) {
			return fmt.Errorf("%w: filter %d: %w: %q", ErrInvalidConfig, i, post.ErrUnknownKind, f.Kind)
		}
		name := common.Coalesce(f.Name, f.Kind)
		if names[name] {
			return fmt.Errorf("%w: filter %q declared twice", ErrInvalidConfig, name)
		}
		names[name] = true

		for _, in := range f.inputs() {
			if !available[in] {
				return fmt.Errorf("%w: filter %q reads %q before anything publishes it", ErrInvalidConfig, name, in)
			}
		}
		available[f.output()] = true
	}

	if c.Render.Present != "" && !available[c.Render.Present] {
		return fmt.Errorf("%w: present attachment %q is never published", ErrInvalidConfig, c.Render.Present)
	}
	return nil
}

// Format returns the target format.
//
// Returns:
//   - wgpu.TextureFormat: the format; undefined if the name is unknown
func (c Config) Format() wgpu.TextureFormat {
	return formats[c.Render.Format]
}

// Sources returns the persistent inputs as source images.
//
// Returns:
//   - []common.SourceImage: one image per input
func (c Config) Sources() []common.SourceImage {
	out := make([]common.SourceImage, len(c.Inputs))
	for i, in := range c.Inputs {
		path := in.Path
		if c.dir != "" && !filepath.IsAbs(path) {
			path = filepath.Join(c.dir, path)
		}
		out[i] = common.SourceImage{Name: in.Name, Path: path}
	}
	return out
}

// Factories returns one filter factory per entry, in chain order.
//
// Returns:
//   - []post.FilterFactory: the factories
func (c Config) Factories() []post.FilterFactory {
	out := make([]post.FilterFactory, len(c.Filters))
	for i, f := range c.Filters {
		out[i] = post.Factory(f.Kind, f.Options()...)
	}
	return out
}

// ChainOptions returns the chain options of the render section.
//
// Returns:
//   - []post.ChainBuilderOption: the options
func (c Config) ChainOptions() []post.ChainBuilderOption {
	opts := []post.ChainBuilderOption{post.WithStrict(c.Render.Strict)}
	if c.Render.Workers > 0 {
		opts = append(opts, post.WithWorkers(c.Render.Workers))
	}
	return opts
}

// Compiler returns the shader compiler filters are built with, nil unless validation is enabled.
//
// Returns:
//   - shader.Compiler: the compiler
func (c Config) Compiler() shader.Compiler {
	if !c.Render.Validate {
		return nil
	}
	return shader.NagaCompiler{}
}

// Options converts the entry into filter builder options.
//
// Returns:
//   - []post.FilterBuilderOption: the options
func (f Filter) Options() []post.FilterBuilderOption {
	var opts []post.FilterBuilderOption
	if f.Name != "" {
		opts = append(opts, post.WithName(f.Name))
	}
	if f.Input != "" {
		opts = append(opts, post.WithInput(f.Input))
	}
	if f.Output != "" {
		opts = append(opts, post.WithOutput(f.Output))
	}
	if f.SpanMax != nil {
		opts = append(opts, post.WithSpanMax(*f.SpanMax))
	}
	if f.Vignette != nil {
		opts = append(opts, post.WithVignette(*f.Vignette))
	}
	if f.Position != "" || f.Normals != "" {
		opts = append(opts, post.WithGBuffer(common.Coalesce(f.Position, "position"), common.Coalesce(f.Normals, "normals")))
	}
	if f.KernelSize != nil {
		opts = append(opts, post.WithKernelSize(*f.KernelSize))
	}
	if f.Radius != nil {
		opts = append(opts, post.WithRadius(*f.Radius))
	}
	if f.RangeCheck != nil {
		opts = append(opts, post.WithRangeCheck(*f.RangeCheck))
	}
	if f.Seed != nil {
		opts = append(opts, post.WithRand(rand.New(rand.NewPCG(*f.Seed, *f.Seed))))
	}
	if f.NoiseDump != "" {
		opts = append(opts, post.WithNoiseDump(f.NoiseDump))
	}
	return opts
}

// inputs returns the attachments the entry reads, with the defaults of its kind.
func (f Filter) inputs() []string {
	if f.Kind == post.KindSsao {
		return []string{
			common.Coalesce(f.Input, "resolved"),
			common.Coalesce(f.Position, "position"),
			common.Coalesce(f.Normals, "normals"),
		}
	}
	return []string{common.Coalesce(f.Input, "scene")}
}

func (f Filter) output() string {
	return common.Coalesce(f.Output, f.Kind)
}

func isKind(kind string) bool {
	return slices.Contains(post.Kinds(), kind)
}
