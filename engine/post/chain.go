package post

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-post/common"
	"github.com/Carmen-Shannon/oxy-post/engine/logger"
	"github.com/Carmen-Shannon/oxy-post/engine/profiler"
	"go.uber.org/zap"
)

// ErrDuplicateFilter is returned when two filters of a chain share a name.
var ErrDuplicateFilter = errors.New("post: duplicate filter name")

// FilterError is a filter's per-frame failure.
type FilterError struct {
	Filter string
	Err    error
}

func (e FilterError) Error() string {
	return e.Filter + ": " + e.Err.Error()
}

func (e FilterError) Unwrap() error {
	return e.Err
}

// FrameReport summarizes one RenderFrame call.
type FrameReport struct {
	// Index is the frame index.
	Index uint64
	// Drawn lists the filters that drew, in chain order.
	Drawn []string
	// Skipped lists the filters whose draw was skipped, in chain order.
	Skipped []FilterError
}

// Chain runs an ordered list of filters once per frame. Filters are constructed concurrently and rendered
// sequentially in declaration order.
type Chain interface {
	// RenderFrame renders every filter in order. A filter failure skips only that filter's draw; the rest of the
	// chain still runs. In strict mode the first failure is also returned, after the whole chain ran.
	//
	// Parameters:
	//   - frame: the active frame, with its registry already reset
	//
	// Returns:
	//   - FrameReport: the filters drawn and skipped
	//   - error: nil unless the chain is strict and a filter failed
	RenderFrame(frame *Frame) (FrameReport, error)

	// Filters returns the filters in chain order.
	Filters() []Filter

	// Filter returns the filter with the given name.
	//
	// Parameters:
	//   - name: the filter name
	//
	// Returns:
	//   - Filter: the filter
	//   - bool: whether the chain has a filter of that name
	Filter(name string) (Filter, bool)

	// Release releases every filter.
	Release()
}

type chain struct {
	filters  []Filter
	byName   map[string]Filter
	strict   bool
	workers  int
	log      *zap.Logger
	profiler *profiler.Profiler
}

var _ Chain = &chain{}

// NewChain constructs every filter of a chain. Factories run concurrently on a worker pool; the resulting chain
// keeps the order of factories. If any factory fails, every filter already built is released and the first error
// in declaration order is returned.
//
// Parameters:
//   - ctx: the construction context shared by all filters
//   - factories: the filter factories in chain order
//   - options: variadic list of ChainBuilderOption functions to configure the chain
//
// Returns:
//   - Chain: the chain
//   - error: the first construction error, or ErrDuplicateFilter
func NewChain(ctx FilterContext, factories []FilterFactory, options ...ChainBuilderOption) (Chain, error) {
	c := &chain{
		byName:  make(map[string]Filter, len(factories)),
		workers: max(runtime.NumCPU()-1, 1),
		log:     common.Coalesce(ctx.Logger, logger.Log),
	}
	for _, opt := range options {
		opt(c)
	}
	if ctx.Logger == nil {
		ctx.Logger = c.log
	}

	filters := make([]Filter, len(factories))
	errs := make([]error, len(factories))

	pool := worker.NewDynamicWorkerPool(min(c.workers, max(len(factories), 1)), 256, 1*time.Second)
	var wg sync.WaitGroup
	for i, factory := range factories {
		wg.Add(1)
		idx := i
		pool.SubmitTask(worker.Task{
			ID: idx,
			Do: func() (any, error) {
				defer wg.Done()
				filters[idx], errs[idx] = factory(ctx)
				return nil, errs[idx]
			},
		})
	}
	wg.Wait()

	release := func() {
		for _, f := range filters {
			if f != nil {
				f.Release()
			}
		}
	}
	for i, err := range errs {
		if err != nil {
			release()
			return nil, fmt.Errorf("post: filter %d: %w", i, err)
		}
	}
	for _, f := range filters {
		if _, ok := c.byName[f.Name()]; ok {
			release()
			return nil, fmt.Errorf("%w: %q", ErrDuplicateFilter, f.Name())
		}
		c.byName[f.Name()] = f
	}
	c.filters = filters

	c.log.Debug("chain created", zap.Int("filters", len(filters)), zap.Bool("strict", c.strict))
	return c, nil
}

func (c *chain) RenderFrame(frame *Frame) (FrameReport, error) {
	report := FrameReport{}
	if frame != nil {
		report.Index = frame.Index
	}

	for _, f := range c.filters {
		if err := f.Render(frame); err != nil {
			report.Skipped = append(report.Skipped, FilterError{Filter: f.Name(), Err: err})
			c.log.Debug("filter skipped", zap.String("filter", f.Name()), zap.Uint64("frame", report.Index), zap.Error(err))
			continue
		}
		report.Drawn = append(report.Drawn, f.Name())
	}

	if c.profiler != nil {
		c.profiler.Tick(len(report.Drawn), len(report.Skipped))
	}
	if c.strict && len(report.Skipped) > 0 {
		return report, report.Skipped[0]
	}
	return report, nil
}

func (c *chain) Filters() []Filter {
	return append([]Filter(nil), c.filters...)
}

func (c *chain) Filter(name string) (Filter, bool) {
	f, ok := c.byName[name]
	return f, ok
}

func (c *chain) Release() {
	for _, f := range c.filters {
		f.Release()
	}
	c.filters = nil
	clear(c.byName)
}
