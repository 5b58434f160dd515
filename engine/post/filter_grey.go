package post

// NewGrey creates a filter that converts its input to greyscale by luma.
//
// Parameters:
//   - ctx: the construction context
//   - opts: builder options; WithName, WithInput and WithOutput apply
//
// Returns:
//   - Filter: the filter
//   - error: an error if the pipeline or its resources could not be created
func NewGrey(ctx FilterContext, opts ...FilterBuilderOption) (Filter, error) {
	return newColourFilter(ctx, KindGrey, ShaderGrey, opts)
}
