// Command oxy-post renders a post-processing chain described in a TOML file into a window.
//
// Keys: F toggles the FXAA span between 4 and 8 texels, V cycles the vignette opacity, Escape quits.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/Carmen-Shannon/oxy-post/engine"
	"github.com/Carmen-Shannon/oxy-post/engine/logger"
	"github.com/Carmen-Shannon/oxy-post/engine/post"
	"github.com/Carmen-Shannon/oxy-post/engine/post/config"
	"github.com/Carmen-Shannon/oxy-post/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-post/engine/window"
	"go.uber.org/zap"
)

func main() {
	path := flag.String("config", "examples/chain.toml", "chain description")
	fps := flag.Float64("fps", 0, "frame rate cap, 0 for uncapped")
	profile := flag.Bool("profile", false, "log frame statistics every second")
	flag.Parse()

	if err := run(*path, *fps, *profile); err != nil {
		fmt.Fprintln(os.Stderr, "oxy-post:", err)
		os.Exit(1)
	}
}

func run(path string, fps float64, profile bool) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if err := logger.Init(cfg.Render.LogLevel); err != nil {
		return err
	}
	defer logger.Log.Sync()

	win, err := window.NewWindow(
		window.WithTitle(cfg.Window.Title),
		window.WithSize(cfg.Window.Width, cfg.Window.Height),
		window.WithResizable(true),
		window.WithLogger(logger.Log),
	)
	if err != nil {
		return err
	}
	defer win.Close()

	dev, err := gpu.NewWGPUDevice(gpu.WithSurface(win.SurfaceDescriptor()), gpu.WithLogger(logger.Log))
	if err != nil {
		return err
	}
	defer dev.Destroy()

	width, height := win.Size()
	dev.ConfigureSurface(width, height)
	if dev.SurfaceFormat() != cfg.Format() {
		logger.Log.Info("using the surface format",
			zap.String("configured", cfg.Render.Format),
			zap.String("surface", dev.SurfaceFormat().String()))
	}

	eng, err := engine.NewEngine(dev, cfg.Factories(),
		engine.WithSize(width, height),
		engine.WithFormat(dev.SurfaceFormat()),
		engine.WithPresentName(cfg.Render.Present),
		engine.WithStrict(cfg.Render.Strict),
		engine.WithWorkers(cfg.Render.Workers),
		engine.WithCompiler(cfg.Compiler()),
		engine.WithProfiling(profile),
		engine.WithLogger(logger.Log),
	)
	if err != nil {
		return err
	}
	defer eng.Release()
	eng.SetRenderFrameLimit(fps)

	for _, src := range cfg.Sources() {
		if err := eng.SetInput(src); err != nil {
			return err
		}
	}

	win.SetResizeCallback(eng.Resize)
	win.SetKeyCallback(func(key int) { onKey(eng.Chain(), key) })
	win.SetFrameCallback(func() error {
		_, err := eng.RenderFrame()
		return err
	})
	return win.Run()
}

// vignetteSteps are the opacities V cycles through.
var vignetteSteps = []float32{0, 0.3, 0.6, 0.9}

func onKey(chain post.Chain, key int) {
	for _, f := range chain.Filters() {
		switch f := f.(type) {
		case post.Fxaa:
			if key != 'F' {
				continue
			}
			span := float32(8)
			if f.SpanMax() == 8 {
				span = 4
			}
			if err := f.SetSpanMax(span); err == nil {
				logger.Log.Info("fxaa span", zap.String("filter", f.Name()), zap.Float32("span", span))
			}
		case post.Vignette:
			if key != 'V' {
				continue
			}
			p := f.Params()
			p.Opacity = nextStep(p.Opacity)
			if err := f.SetParams(p); err == nil {
				logger.Log.Info("vignette opacity", zap.String("filter", f.Name()), zap.Float32("opacity", p.Opacity))
			}
		}
	}
}

func nextStep(current float32) float32 {
	for _, s := range vignetteSteps {
		if s > current {
			return s
		}
	}
	return vignetteSteps[0]
}
