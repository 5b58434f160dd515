package shader

import (
	"errors"
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

// ErrShaderCompile is returned when a shader cannot be loaded, pre-processed, reflected or compiled.
var ErrShaderCompile = errors.New("shader: compile failed")

// ShaderType identifies whether a shader is a render shader or a compute shader.
type ShaderType int

const (
	// ShaderTypeCompute indicates a shader containing a @compute entry point.
	ShaderTypeCompute ShaderType = iota

	// ShaderTypeVertex is the vertex shader type, used for vertex processing in render pipelines.
	ShaderTypeVertex

	// ShaderTypeFragment is the fragment shader type, used for fragment processing in pair with a vertex shader.
	ShaderTypeFragment
)

func (t ShaderType) String() string {
	switch t {
	case ShaderTypeCompute:
		return "compute"
	case ShaderTypeVertex:
		return "vertex"
	case ShaderTypeFragment:
		return "fragment"
	default:
		return fmt.Sprintf("ShaderType(%d)", int(t))
	}
}

// shader is the implementation of the Shader interface.
// It holds all of the persistent shader data required for pipeline creation and resource binding.
type shader struct {
	key        string
	path       string
	source     string
	shaderType ShaderType
	reflection Reflection
	bytecode   []uint32

	loader   Loader
	defines  []Define
	compiler Compiler
	pp       PreProcessor
}

// Shader defines the interface for a loaded, pre-processed and reflected WGSL shader stage. It exposes the
// shader's unique key, processed source, entry point, bind group layout descriptors, workgroup size and the
// define values baked into it.
type Shader interface {
	// Key retrieves the unique identifier for this shader, used for labels and lookups.
	//
	// Returns:
	//   - string: the shader's unique key
	Key() string

	// Source retrieves the pre-processed WGSL shader source code.
	//
	// Returns:
	//   - string: the WGSL source code of the shader
	Source() string

	// ShaderType returns the stage of the shader.
	//
	// Returns:
	//   - ShaderType: ShaderTypeVertex, ShaderTypeFragment, or ShaderTypeCompute
	ShaderType() ShaderType

	// EntryPoint returns the entry point name for this shader.
	//
	// Returns:
	//   - string: the entry point name (e.g. "fs_main")
	EntryPoint() string

	// WorkgroupSize returns the workgroup size dimensions for compute shaders.
	// Returns [0, 0, 0] for non-compute shaders and [1, 1, 1] as the default when
	// @workgroup_size is not specified.
	//
	// Returns:
	//   - [3]uint32: the workgroup size as [x, y, z]
	WorkgroupSize() [3]uint32

	// BindGroupLayoutDescriptors retrieves all reflected bind group layout descriptors keyed by group index.
	//
	// Returns:
	//   - map[int]wgpu.BindGroupLayoutDescriptor: descriptors keyed by group index
	BindGroupLayoutDescriptors() map[int]wgpu.BindGroupLayoutDescriptor

	// BindGroupVarName retrieves the variable name for a given group and binding index.
	//
	// Parameters:
	//   - group: the bind group index
	//   - binding: the binding index within the group
	//
	// Returns:
	//   - string: the variable name associated with the group and binding, or an empty string if not found
	BindGroupVarName(group, binding int) string

	// BindGroupFromVarName retrieves the binding index for a given group and variable name.
	//
	// Parameters:
	//   - group: the bind group index
	//   - varName: the variable name within the group
	//
	// Returns:
	//   - int: the binding index associated with the variable name, or -1 if not found
	//   - bool: true if the variable name was found, false otherwise
	BindGroupFromVarName(group int, varName string) (int, bool)

	// BindGroupVarNames retrieves all variable names for all bind groups.
	//
	// Returns:
	//   - map[int]map[int]string: variable names keyed by group and binding index
	BindGroupVarNames() map[int]map[int]string

	// Bytecode returns the SPIR-V produced by the configured compiler, nil when the shader was built without one.
	//
	// Returns:
	//   - []uint32: the SPIR-V words
	Bytecode() []uint32

	// Declarations returns the annotations parsed from the raw source, in source order.
	//
	// Returns:
	//   - []Annotation: the include and define annotations of the shader
	Declarations() []Annotation

	// Defines returns the define values baked into the source, sorted by name.
	//
	// Returns:
	//   - []Define: the declared defines with their effective values
	Defines() []Define
}

var _ Shader = &shader{}

// NewShader loads the source at sourcePath, pre-processes it with the supplied defines, reflects its entry point
// and bindings and, if a compiler is configured, compiles it.
//
// Parameters:
//   - key: a unique identifier for the shader, used for labels and lookups
//   - shaderType: the stage of the shader (vertex, fragment or compute)
//   - sourcePath: the loader-relative path to read WGSL source from
//   - opts: builder options
//
// Returns:
//   - Shader: the shader
//   - error: an error wrapping ErrShaderCompile if any step fails
func NewShader(key string, shaderType ShaderType, sourcePath string, opts ...ShaderBuilderOption) (Shader, error) {
	s := &shader{
		key:        key,
		path:       sourcePath,
		shaderType: shaderType,
		pp:         NewPreProcessor(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.source == "" {
		if sourcePath == "" {
			return nil, fmt.Errorf("%w: %s has no source", ErrShaderCompile, key)
		}
		if s.loader == nil {
			s.loader = NewDirLoader(".")
		}
		data, err := s.loader.Load(sourcePath)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrShaderCompile, key, err)
		}
		s.source = string(data)
	}

	if err := s.build(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *shader) Key() string {
	return s.key
}

func (s *shader) Source() string {
	return s.source
}

func (s *shader) ShaderType() ShaderType {
	return s.shaderType
}

func (s *shader) EntryPoint() string {
	return s.reflection.EntryPoint
}

func (s *shader) WorkgroupSize() [3]uint32 {
	return s.reflection.WorkgroupSize
}

func (s *shader) BindGroupLayoutDescriptors() map[int]wgpu.BindGroupLayoutDescriptor {
	return s.reflection.Layouts
}

func (s *shader) BindGroupVarName(group, binding int) string {
	return s.reflection.VarNames[group][binding]
}

func (s *shader) BindGroupFromVarName(group int, varName string) (int, bool) {
	for binding, name := range s.reflection.VarNames[group] {
		if name == varName {
			return binding, true
		}
	}
	return -1, false
}

func (s *shader) BindGroupVarNames() map[int]map[int]string {
	return s.reflection.VarNames
}

func (s *shader) Bytecode() []uint32 {
	return s.bytecode
}

func (s *shader) Declarations() []Annotation {
	return s.pp.Declarations()
}

func (s *shader) Defines() []Define {
	return s.pp.Resolved()
}

// build pre-processes the raw source in place, reflects it and runs the compiler.
func (s *shader) build() error {
	processed, err := s.pp.Process(s.source, s.defines)
	if err != nil {
		return fmt.Errorf("%w: %s: failed to pre-process %q: %w", ErrShaderCompile, s.key, s.path, err)
	}
	s.source = processed

	s.reflection, err = reflectSource(s.source, s.shaderType)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrShaderCompile, s.key, err)
	}

	if s.compiler != nil {
		s.bytecode, err = s.compiler.Compile(s.key, s.source)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrShaderCompile, err)
		}
	}
	return nil
}
