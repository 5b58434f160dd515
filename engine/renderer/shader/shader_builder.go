package shader

// ShaderBuilderOption is a functional option for configuring a shader.
type ShaderBuilderOption func(*shader)

// WithLoader sets the loader the source path is read with. Defaults to a loader over the working directory.
//
// Parameters:
//   - loader: the source loader
//
// Returns:
//   - ShaderBuilderOption: a function that applies the loader option to a shader
func WithLoader(loader Loader) ShaderBuilderOption {
	return func(s *shader) {
		s.loader = loader
	}
}

// WithSource sets the raw WGSL source directly, skipping the loader.
//
// Parameters:
//   - source: the raw WGSL source, annotations included
//
// Returns:
//   - ShaderBuilderOption: a function that applies the source option to a shader
func WithSource(source string) ShaderBuilderOption {
	return func(s *shader) {
		s.source = source
	}
}

// WithDefines sets the values of the defines the source declares.
//
// Parameters:
//   - defines: the define values; defines the source does not declare are ignored
//
// Returns:
//   - ShaderBuilderOption: a function that applies the defines option to a shader
func WithDefines(defines ...Define) ShaderBuilderOption {
	return func(s *shader) {
		s.defines = append(s.defines, defines...)
	}
}

// WithPreProcessor replaces the default pre-processor, e.g. one with extra includes registered.
//
// Parameters:
//   - pp: the pre-processor
//
// Returns:
//   - ShaderBuilderOption: a function that applies the pre-processor option to a shader
func WithPreProcessor(pp PreProcessor) ShaderBuilderOption {
	return func(s *shader) {
		s.pp = pp
	}
}

// WithCompiler compiles the processed source at construction.
//
// Parameters:
//   - compiler: the WGSL compiler, e.g. NagaCompiler{}
//
// Returns:
//   - ShaderBuilderOption: a function that applies the compiler option to a shader
func WithCompiler(compiler Compiler) ShaderBuilderOption {
	return func(s *shader) {
		s.compiler = compiler
	}
}
