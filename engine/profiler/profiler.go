// Package profiler aggregates per-frame chain statistics and process memory statistics and logs them at an interval.
package profiler

import (
	"runtime"
	"time"

	"github.com/Carmen-Shannon/oxy-post/engine/logger"
	"go.uber.org/zap"
)

// Stats is one reporting interval.
type Stats struct {
	// Frames is the number of frames ticked in the interval.
	Frames int
	// FPS is Frames divided by the interval length.
	FPS float64
	// Drawn and Skipped are the filter passes drawn and skipped in the interval.
	Drawn, Skipped int
	// HeapMB is the live heap at the end of the interval.
	HeapMB float64
	// AllocRateMB is the heap allocation rate over the interval in MB/s.
	AllocRateMB float64
	// GCCount is the total number of completed GC cycles.
	GCCount uint32
	// LastPauseUs and MaxPauseUs are the latest and the largest GC pause of the interval.
	LastPauseUs, MaxPauseUs uint64
	// SysMB is the memory obtained from the OS.
	SysMB float64
}

// Profiler tracks frame rate, filter pass counts and memory statistics. It is not safe for concurrent use.
type Profiler struct {
	frameCount     int
	drawn, skipped int
	lastTime       time.Time
	updateInterval time.Duration
	now            func() time.Time
	log            *zap.Logger
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64
	last           Stats
}

// NewProfiler creates a new Profiler. The update interval defaults to 1 second.
//
// Parameters:
//   - options: variadic list of ProfilerBuilderOption functions to configure the profiler
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(options ...ProfilerBuilderOption) *Profiler {
	p := &Profiler{
		updateInterval: time.Second,
		now:            time.Now,
		log:            logger.Log,
	}
	for _, opt := range options {
		opt(p)
	}
	p.lastTime = p.now()
	return p
}

// Tick should be called once per frame with the frame's pass counts.
// Logs the interval statistics at Info when the update interval has elapsed.
//
// Parameters:
//   - drawn: the number of filters that drew this frame
//   - skipped: the number of filters that skipped their draw this frame
//
// Returns:
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick(drawn, skipped int) bool {
	p.frameCount++
	p.drawn += drawn
	p.skipped += skipped

	currentTime := p.now()
	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return false
	}

	runtime.ReadMemStats(&p.memStats)
	s := Stats{
		Frames:      p.frameCount,
		FPS:         float64(p.frameCount) / elapsed.Seconds(),
		Drawn:       p.drawn,
		Skipped:     p.skipped,
		HeapMB:      float64(p.memStats.Alloc) / 1024 / 1024,
		AllocRateMB: float64(p.memStats.TotalAlloc-p.lastTotalAlloc) / 1024 / 1024 / elapsed.Seconds(),
		GCCount:     p.memStats.NumGC,
		SysMB:       float64(p.memStats.Sys) / 1024 / 1024,
	}

	// PauseNs is a circular buffer of the last 256 pauses
	if gcCount := p.memStats.NumGC; gcCount > 0 {
		s.LastPauseUs = p.memStats.PauseNs[(gcCount-1)%256] / 1000
		startIdx := p.lastGCCount
		if gcCount-startIdx > 256 {
			startIdx = gcCount - 256
		}
		for i := startIdx; i < gcCount; i++ {
			s.MaxPauseUs = max(s.MaxPauseUs, p.memStats.PauseNs[i%256]/1000)
		}
	}

	p.log.Info("frame stats",
		zap.Int("frames", s.Frames),
		zap.Float64("fps", s.FPS),
		zap.Int("drawn", s.Drawn),
		zap.Int("skipped", s.Skipped),
		zap.Float64("heap_mb", s.HeapMB),
		zap.Float64("alloc_rate_mb", s.AllocRateMB),
		zap.Uint32("gc", s.GCCount),
		zap.Uint64("gc_last_us", s.LastPauseUs),
		zap.Uint64("gc_max_us", s.MaxPauseUs),
		zap.Float64("sys_mb", s.SysMB))

	p.last = s
	p.frameCount, p.drawn, p.skipped = 0, 0, 0
	p.lastTime = currentTime
	p.lastGCCount = s.GCCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	return true
}

// Last returns the statistics of the most recently completed interval.
func (p *Profiler) Last() Stats {
	return p.last
}
