package post

import (
	"math/rand/v2"

	"github.com/Carmen-Shannon/oxy-post/engine/renderer/pipeline"
)

// filterConfig is the configuration shared by every filter kind. Kinds read the fields they use.
type filterConfig struct {
	name   string
	input  string
	output string

	// ssao
	position   string
	normals    string
	kernelSize int
	radius     float32
	rangeCheck bool
	rand       *rand.Rand
	noiseDump  string

	// fxaa
	spanMax float32

	// vignette
	vignette VignetteParams

	pipelineOpts []pipeline.PipelineBuilderOption
}

func newFilterConfig(kind string, opts []FilterBuilderOption) *filterConfig {
	c := &filterConfig{
		name:       kind,
		input:      "scene",
		output:     kind,
		position:   "position",
		normals:    "normals",
		kernelSize: DefaultKernelSize,
		radius:     DefaultRadius,
		rangeCheck: true,
		spanMax:    DefaultSpanMax,
		vignette:   DefaultVignette,
	}
	if kind == KindSsao {
		c.input = "resolved"
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FilterBuilderOption is a functional option for configuring a filter.
type FilterBuilderOption func(*filterConfig)

// WithName sets the name of the filter, used for labels and chain lookups. Defaults to the filter kind.
//
// Parameters:
//   - name: the filter name
//
// Returns:
//   - FilterBuilderOption: a function that applies the name option
func WithName(name string) FilterBuilderOption {
	return func(c *filterConfig) {
		c.name = name
	}
}

// WithInput sets the attachment the filter reads its colour from. Defaults to "scene", "resolved" for SSAO.
//
// Parameters:
//   - name: the attachment name
//
// Returns:
//   - FilterBuilderOption: a function that applies the input option
func WithInput(name string) FilterBuilderOption {
	return func(c *filterConfig) {
		c.input = name
	}
}

// WithOutput sets the attachment the filter publishes. Defaults to the filter kind.
//
// Parameters:
//   - name: the attachment name
//
// Returns:
//   - FilterBuilderOption: a function that applies the output option
func WithOutput(name string) FilterBuilderOption {
	return func(c *filterConfig) {
		c.output = name
	}
}

// WithGBuffer sets the attachments SSAO reads world-space positions and normals from. Defaults to "position" and
// "normals".
//
// Parameters:
//   - position: the position attachment name
//   - normals: the normal attachment name
//
// Returns:
//   - FilterBuilderOption: a function that applies the G-buffer option
func WithGBuffer(position, normals string) FilterBuilderOption {
	return func(c *filterConfig) {
		c.position = position
		c.normals = normals
	}
}

// WithKernelSize sets the number of SSAO hemisphere samples. Defaults to DefaultKernelSize.
//
// Parameters:
//   - n: the sample count
//
// Returns:
//   - FilterBuilderOption: a function that applies the kernel size option
func WithKernelSize(n int) FilterBuilderOption {
	return func(c *filterConfig) {
		c.kernelSize = n
	}
}

// WithRadius sets the SSAO sampling radius in view-space units. Defaults to DefaultRadius.
//
// Parameters:
//   - r: the radius
//
// Returns:
//   - FilterBuilderOption: a function that applies the radius option
func WithRadius(r float32) FilterBuilderOption {
	return func(c *filterConfig) {
		c.radius = r
	}
}

// WithRangeCheck toggles the SSAO range check that fades occluders farther than the radius. Enabled by default.
//
// Parameters:
//   - enabled: whether the range check is compiled in
//
// Returns:
//   - FilterBuilderOption: a function that applies the range check option
func WithRangeCheck(enabled bool) FilterBuilderOption {
	return func(c *filterConfig) {
		c.rangeCheck = enabled
	}
}

// WithRand sets the random source of the SSAO kernel and noise, for reproducible output.
//
// Parameters:
//   - r: the random source
//
// Returns:
//   - FilterBuilderOption: a function that applies the random source option
func WithRand(r *rand.Rand) FilterBuilderOption {
	return func(c *filterConfig) {
		c.rand = r
	}
}

// WithNoiseDump writes the SSAO noise texture to a PNG at construction.
//
// Parameters:
//   - path: the output file path
//
// Returns:
//   - FilterBuilderOption: a function that applies the noise dump option
func WithNoiseDump(path string) FilterBuilderOption {
	return func(c *filterConfig) {
		c.noiseDump = path
	}
}

// WithSpanMax sets the initial FXAA search span in texels. Defaults to DefaultSpanMax.
//
// Parameters:
//   - span: the maximum span
//
// Returns:
//   - FilterBuilderOption: a function that applies the span option
func WithSpanMax(span float32) FilterBuilderOption {
	return func(c *filterConfig) {
		c.spanMax = span
	}
}

// WithVignette sets the initial vignette parameters. Defaults to DefaultVignette.
//
// Parameters:
//   - params: the vignette parameters
//
// Returns:
//   - FilterBuilderOption: a function that applies the vignette option
func WithVignette(params VignetteParams) FilterBuilderOption {
	return func(c *filterConfig) {
		c.vignette = params
	}
}

// WithPipelineOptions appends options to the filter's pipeline, such as a blend state.
//
// Parameters:
//   - opts: the pipeline builder options
//
// Returns:
//   - FilterBuilderOption: a function that applies the pipeline options
func WithPipelineOptions(opts ...pipeline.PipelineBuilderOption) FilterBuilderOption {
	return func(c *filterConfig) {
		c.pipelineOpts = append(c.pipelineOpts, opts...)
	}
}
