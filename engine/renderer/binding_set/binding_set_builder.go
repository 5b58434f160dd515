package binding_set

import "go.uber.org/zap"

// BindingSetBuilderOption is a functional option for configuring a BindingSet.
type BindingSetBuilderOption func(*bindingSet)

// WithLabel sets the debug label of the set and its bind groups. Defaults to the pipeline key.
//
// Parameters:
//   - label: the debug label
//
// Returns:
//   - BindingSetBuilderOption: a function that applies the label option to a bindingSet
func WithLabel(label string) BindingSetBuilderOption {
	return func(s *bindingSet) {
		s.label = label
	}
}

// WithLogger sets the logger used for commit diagnostics. Defaults to logger.Log.
//
// Parameters:
//   - l: the logger
//
// Returns:
//   - BindingSetBuilderOption: a function that applies the logger option to a bindingSet
func WithLogger(l *zap.Logger) BindingSetBuilderOption {
	return func(s *bindingSet) {
		if l != nil {
			s.log = l
		}
	}
}
