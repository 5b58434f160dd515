package post

// NewSepia creates a filter that tones its input sepia.
//
// Parameters:
//   - ctx: the construction context
//   - opts: builder options; WithName, WithInput and WithOutput apply
//
// Returns:
//   - Filter: the filter
//   - error: an error if the pipeline or its resources could not be created
func NewSepia(ctx FilterContext, opts ...FilterBuilderOption) (Filter, error) {
	return newColourFilter(ctx, KindSepia, ShaderSepia, opts)
}
