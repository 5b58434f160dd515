// Package post implements the post-processing filter chain: full-screen passes that read named attachments
// published by earlier passes and publish their own output for the next one.
package post

import (
	"errors"
	"fmt"
	"sort"

	"github.com/Carmen-Shannon/oxy-post/engine/renderer/binding_set"
	"github.com/Carmen-Shannon/oxy-post/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-post/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-post/engine/renderer/shader"
	"github.com/cogentcore/webgpu/wgpu"
	"go.uber.org/zap"
)

// ErrUnknownKind is returned when a filter kind is not registered.
var ErrUnknownKind = errors.New("post: unknown filter kind")

// Built-in filter kinds.
const (
	KindDefault  = "default"
	KindSepia    = "sepia"
	KindGrey     = "grey"
	KindNegative = "negative"
	KindFxaa     = "fxaa"
	KindVignette = "vignette"
	KindSsao     = "ssao"
)

// Filter is one full-screen pass of a chain: a pipeline, a binding set and the CPU state that feeds them.
type Filter interface {
	// Name returns the unique name of the filter within its chain.
	Name() string

	// Kind returns the filter kind, e.g. KindSepia.
	Kind() string

	// Render stages the filter's per-frame resources and, when every binding is complete, records one full-screen
	// draw into a target for the first output and publishes it under every output name. When staging fails nothing
	// is recorded and the returned error wraps the cause.
	//
	// Parameters:
	//   - frame: the active frame
	//
	// Returns:
	//   - error: an error wrapping binding_set.ErrBindingSetIncomplete, attachment.ErrUnknownAttachment or a
	//     target acquisition failure
	Render(frame *Frame) error

	// Inputs returns the attachment names the filter reads, in binding order.
	Inputs() []string

	// Outputs returns the attachment names the filter publishes.
	Outputs() []string

	// Pipeline returns the filter's pipeline.
	Pipeline() pipeline.Pipeline

	// BindingSet returns the filter's binding set.
	BindingSet() binding_set.BindingSet

	// Release releases every GPU object the filter owns.
	Release()
}

// FilterContext carries the shared dependencies filters are constructed with.
type FilterContext struct {
	// Device creates the filter's GPU objects. It must be safe for concurrent use.
	Device gpu.Device

	// Format is the color format of the targets filters render into.
	Format wgpu.TextureFormat

	// Loader reads filter shaders. Nil means the built-in shaders.
	Loader shader.Loader

	// Compiler, when set, compiles every stage at construction.
	Compiler shader.Compiler

	// Logger receives filter diagnostics. Nil means logger.Log.
	Logger *zap.Logger
}

// FilterFactory constructs a filter. Factories of one chain run concurrently.
type FilterFactory func(ctx FilterContext) (Filter, error)

// constructor builds a filter of one kind.
type constructor func(ctx FilterContext, opts ...FilterBuilderOption) (Filter, error)

var kinds = map[string]constructor{
	KindDefault:  NewDefault,
	KindSepia:    NewSepia,
	KindGrey:     NewGrey,
	KindNegative: NewNegative,
	KindFxaa: func(ctx FilterContext, opts ...FilterBuilderOption) (Filter, error) {
		return NewFxaa(ctx, opts...)
	},
	KindVignette: func(ctx FilterContext, opts ...FilterBuilderOption) (Filter, error) {
		return NewVignette(ctx, opts...)
	},
	KindSsao: func(ctx FilterContext, opts ...FilterBuilderOption) (Filter, error) {
		return NewSsao(ctx, opts...)
	},
}

// Kinds returns the registered filter kinds, sorted.
//
// Returns:
//   - []string: the filter kinds
func Kinds() []string {
	out := make([]string, 0, len(kinds))
	for k := range kinds {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// NewFilter constructs a filter of the given kind.
//
// Parameters:
//   - kind: the filter kind, one of Kinds()
//   - ctx: the construction context
//   - opts: builder options
//
// Returns:
//   - Filter: the filter
//   - error: ErrUnknownKind or a construction error
func NewFilter(kind string, ctx FilterContext, opts ...FilterBuilderOption) (Filter, error) {
	ctor, ok := kinds[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
	return ctor(ctx, opts...)
}

// Factory returns a FilterFactory constructing a filter of the given kind.
//
// Parameters:
//   - kind: the filter kind, one of Kinds()
//   - opts: builder options
//
// Returns:
//   - FilterFactory: the factory
func Factory(kind string, opts ...FilterBuilderOption) FilterFactory {
	return func(ctx FilterContext) (Filter, error) {
		return NewFilter(kind, ctx, opts...)
	}
}
