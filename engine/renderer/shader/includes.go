package shader

import (
	_ "embed"
)

// FullscreenOutputSource is the WGSL definition of the varyings passed from the full-screen vertex stage to
// post-processing fragment stages. Injected by //@oxy:include fullscreen_output.
//
//go:embed assets/fullscreen_output.wgsl
var FullscreenOutputSource string

// LumaSource is the WGSL luma(colour) helper using Rec. 601 weights. Injected by //@oxy:include luma.
//
//go:embed assets/luma.wgsl
var LumaSource string
