package post

import (
	"github.com/Carmen-Shannon/oxy-post/engine/profiler"
	"go.uber.org/zap"
)

// ChainBuilderOption is a functional option for configuring a Chain.
type ChainBuilderOption func(*chain)

// WithStrict makes RenderFrame return the first filter failure of a frame. Failures are skipped and logged
// otherwise.
//
// Parameters:
//   - strict: whether the chain is strict
//
// Returns:
//   - ChainBuilderOption: a function that applies the strict option
func WithStrict(strict bool) ChainBuilderOption {
	return func(c *chain) {
		c.strict = strict
	}
}

// WithWorkers sets the number of goroutines filters are constructed on. Defaults to NumCPU-1.
//
// Parameters:
//   - n: the worker count, at least 1
//
// Returns:
//   - ChainBuilderOption: a function that applies the worker option
func WithWorkers(n int) ChainBuilderOption {
	return func(c *chain) {
		c.workers = max(n, 1)
	}
}

// WithLogger sets the chain logger. Filters built without a context logger use it too.
//
// Parameters:
//   - l: the logger
//
// Returns:
//   - ChainBuilderOption: a function that applies the logger option
func WithLogger(l *zap.Logger) ChainBuilderOption {
	return func(c *chain) {
		c.log = l
	}
}

// WithProfiler feeds the pass counts of every frame to p.
//
// Parameters:
//   - p: the profiler
//
// Returns:
//   - ChainBuilderOption: a function that applies the profiler option
func WithProfiler(p *profiler.Profiler) ChainBuilderOption {
	return func(c *chain) {
		c.profiler = p
	}
}
