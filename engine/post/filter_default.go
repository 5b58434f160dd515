package post

// NewDefault creates a filter that copies its input unchanged. It is used to move an attachment under a new name,
// for example onto the presentation target.
//
// Parameters:
//   - ctx: the construction context
//   - opts: builder options; WithName, WithInput and WithOutput apply
//
// Returns:
//   - Filter: the filter
//   - error: an error if the pipeline or its resources could not be created
func NewDefault(ctx FilterContext, opts ...FilterBuilderOption) (Filter, error) {
	return newColourFilter(ctx, KindDefault, ShaderDefault, opts)
}

// newColourFilter builds a filter whose shader samples a single colour input with the clamped sampler.
func newColourFilter(ctx FilterContext, kind, path string, opts []FilterBuilderOption) (Filter, error) {
	cfg := newFilterConfig(kind, opts)
	f, err := newPostFilter(ctx, kind, path, cfg)
	if err != nil {
		return nil, err
	}
	if err := f.bindColour(cfg.input); err != nil {
		f.Release()
		return nil, err
	}
	return f, nil
}

// bindColour binds the samplerColour input and the colourSampler shared by the colour filters.
func (f *postFilter) bindColour(input string) error {
	if err := f.bindInput("samplerColour", input); err != nil {
		return err
	}
	return f.bindSampler("colourSampler")
}
