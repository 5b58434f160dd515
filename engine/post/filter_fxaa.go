package post

import (
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-post/engine/renderer/uniform"
)

// FXAA defaults.
const (
	DefaultSpanMax   float32 = 8
	DefaultReduceMin float32 = 1.0 / 128.0
	DefaultReduceMul float32 = 1.0 / 8.0
)

// ErrInvalidSpan is returned when an FXAA span is not positive.
var ErrInvalidSpan = errors.New("post: fxaa span must be positive")

// Fxaa is a fast approximate anti-aliasing filter.
type Fxaa interface {
	Filter

	// SpanMax returns the maximum edge search span in texels.
	SpanMax() float32

	// SetSpanMax sets the maximum edge search span. The new value is uploaded by the next Render.
	//
	// Parameters:
	//   - span: the span in texels, > 0
	//
	// Returns:
	//   - error: ErrInvalidSpan
	SetSpanMax(span float32) error
}

type fxaaFilter struct {
	*postFilter
	params  uniform.Block
	spanMax float32
}

var _ Fxaa = &fxaaFilter{}

var fxaaFields = []uniform.FieldSpec{
	{Name: "spanMax", Size: 4},
	{Name: "reduceMin", Size: 4},
	{Name: "reduceMul", Size: 4},
	{Name: "padding", Size: 4},
}

// NewFxaa creates an FXAA filter.
//
// Parameters:
//   - ctx: the construction context
//   - opts: builder options; WithName, WithInput, WithOutput and WithSpanMax apply
//
// Returns:
//   - Fxaa: the filter
//   - error: an error if the pipeline or its resources could not be created
func NewFxaa(ctx FilterContext, opts ...FilterBuilderOption) (Fxaa, error) {
	cfg := newFilterConfig(KindFxaa, opts)
	if cfg.spanMax <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSpan, cfg.spanMax)
	}
	base, err := newPostFilter(ctx, KindFxaa, ShaderFxaa, cfg)
	if err != nil {
		return nil, err
	}
	f := &fxaaFilter{postFilter: base}
	if err := f.init(cfg); err != nil {
		f.Release()
		return nil, err
	}
	return f, nil
}

func (f *fxaaFilter) init(cfg *filterConfig) error {
	var err error
	if f.params, err = f.bindUniform("params", fxaaFields); err != nil {
		return err
	}
	if err := f.bindColour(cfg.input); err != nil {
		return err
	}
	if err := f.params.PushFloat32("reduceMin", DefaultReduceMin); err != nil {
		return err
	}
	if err := f.params.PushFloat32("reduceMul", DefaultReduceMul); err != nil {
		return err
	}
	return f.SetSpanMax(cfg.spanMax)
}

func (f *fxaaFilter) SpanMax() float32 {
	return f.spanMax
}

func (f *fxaaFilter) SetSpanMax(span float32) error {
	if span <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidSpan, span)
	}
	if err := f.params.PushFloat32("spanMax", span); err != nil {
		return err
	}
	f.spanMax = span
	return nil
}
