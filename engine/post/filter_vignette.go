package post

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-post/engine/renderer/uniform"
)

// ErrInvalidVignette is returned for vignette parameters outside their range.
var ErrInvalidVignette = errors.New("post: invalid vignette parameters")

// VignetteParams shape the darkening towards the screen edges. Radii are distances from the screen centre in uv
// units.
type VignetteParams struct {
	// Inner is the radius where darkening starts.
	Inner float32 `toml:"inner"`
	// Outer is the radius where darkening reaches Opacity. Must exceed Inner.
	Outer float32 `toml:"outer"`
	// Opacity is the darkening at Outer in [0, 1].
	Opacity float32 `toml:"opacity"`
}

// DefaultVignette is the vignette applied when none is configured.
var DefaultVignette = VignetteParams{Inner: 0.35, Outer: 0.75, Opacity: 0.6}

// Validate checks the parameter ranges.
//
// Returns:
//   - error: ErrInvalidVignette
func (p VignetteParams) Validate() error {
	if p.Inner < 0 || p.Outer <= p.Inner || p.Opacity < 0 || p.Opacity > 1 {
		return fmt.Errorf("%w: inner %v, outer %v, opacity %v", ErrInvalidVignette, p.Inner, p.Outer, p.Opacity)
	}
	return nil
}

// Vignette is a filter darkening the edges of its input.
type Vignette interface {
	Filter

	// Params returns the current parameters.
	Params() VignetteParams

	// SetParams sets the parameters. The new values are uploaded by the next Render.
	//
	// Parameters:
	//   - params: the vignette parameters
	//
	// Returns:
	//   - error: ErrInvalidVignette
	SetParams(params VignetteParams) error
}

type vignetteFilter struct {
	*postFilter
	block  uniform.Block
	params VignetteParams
}

var _ Vignette = &vignetteFilter{}

var vignetteFields = []uniform.FieldSpec{
	{Name: "innerRadius", Size: 4},
	{Name: "outerRadius", Size: 4},
	{Name: "opacity", Size: 4},
	{Name: "padding", Size: 4},
}

// NewVignette creates a vignette filter.
//
// Parameters:
//   - ctx: the construction context
//   - opts: builder options; WithName, WithInput, WithOutput and WithVignette apply
//
// Returns:
//   - Vignette: the filter
//   - error: an error if the parameters are invalid or the pipeline could not be created
func NewVignette(ctx FilterContext, opts ...FilterBuilderOption) (Vignette, error) {
	cfg := newFilterConfig(KindVignette, opts)
	if err := cfg.vignette.Validate(); err != nil {
		return nil, err
	}
	base, err := newPostFilter(ctx, KindVignette, ShaderVignette, cfg)
	if err != nil {
		return nil, err
	}
	f := &vignetteFilter{postFilter: base}
	if err := f.init(cfg); err != nil {
		f.Release()
		return nil, err
	}
	return f, nil
}

func (f *vignetteFilter) init(cfg *filterConfig) error {
	var err error
	if f.block, err = f.bindUniform("params", vignetteFields); err != nil {
		return err
	}
	if err := f.bindColour(cfg.input); err != nil {
		return err
	}
	return f.SetParams(cfg.vignette)
}

func (f *vignetteFilter) Params() VignetteParams {
	return f.params
}

func (f *vignetteFilter) SetParams(params VignetteParams) error {
	if err := params.Validate(); err != nil {
		return err
	}
	for _, field := range []struct {
		name string
		v    float32
	}{
		{"innerRadius", params.Inner},
		{"outerRadius", params.Outer},
		{"opacity", params.Opacity},
	} {
		if err := f.block.PushFloat32(field.name, field.v); err != nil {
			return err
		}
	}
	f.params = params
	return nil
}
