package post

// NewNegative creates a filter that inverts the colour channels of its input.
//
// Parameters:
//   - ctx: the construction context
//   - opts: builder options; WithName, WithInput and WithOutput apply
//
// Returns:
//   - Filter: the filter
//   - error: an error if the pipeline or its resources could not be created
func NewNegative(ctx FilterContext, opts ...FilterBuilderOption) (Filter, error) {
	return newColourFilter(ctx, KindNegative, ShaderNegative, opts)
}
