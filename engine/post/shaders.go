package post

import (
	"embed"
	"io/fs"

	"github.com/Carmen-Shannon/oxy-post/engine/renderer/shader"
)

//go:embed shaders/*.wgsl
var shaderFiles embed.FS

// Paths of the built-in fragment shaders, relative to ShaderLoader.
const (
	ShaderDefault  = "default.wgsl"
	ShaderSepia    = "sepia.wgsl"
	ShaderGrey     = "grey.wgsl"
	ShaderNegative = "negative.wgsl"
	ShaderFxaa     = "fxaa.wgsl"
	ShaderVignette = "vignette.wgsl"
	ShaderSsao     = "ssao.wgsl"
)

// ShaderLoader returns a loader over the built-in filter shaders.
//
// Returns:
//   - shader.Loader: the loader
func ShaderLoader() shader.Loader {
	sub, err := fs.Sub(shaderFiles, "shaders")
	if err != nil {
		panic(err)
	}
	return shader.NewFSLoader(sub)
}
