package shader

import (
	"encoding/binary"
	"fmt"

	"github.com/gogpu/naga"
)

// spirvMagic is the first word of every SPIR-V module.
const spirvMagic = 0x07230203

// Compiler translates pre-processed WGSL into SPIR-V words. A shader built with a compiler
// is validated at construction and exposes the result through Shader.Bytecode.
type Compiler interface {
	// Compile translates WGSL source to SPIR-V.
	//
	// Parameters:
	//   - label: the shader key, used in error messages
	//   - wgsl: the pre-processed WGSL source
	//
	// Returns:
	//   - []uint32: the SPIR-V module as little-endian words
	//   - error: an error if the source does not compile
	Compile(label, wgsl string) ([]uint32, error)
}

// NagaCompiler compiles WGSL with the pure Go naga compiler.
type NagaCompiler struct{}

var _ Compiler = NagaCompiler{}

func (NagaCompiler) Compile(label, wgsl string) ([]uint32, error) {
	spirvBytes, err := naga.Compile(wgsl)
	if err != nil {
		return nil, fmt.Errorf("naga: %s: %w", label, err)
	}
	if len(spirvBytes) < 4 || len(spirvBytes)%4 != 0 {
		return nil, fmt.Errorf("naga: %s: malformed SPIR-V output of %d bytes", label, len(spirvBytes))
	}

	words := make([]uint32, len(spirvBytes)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(spirvBytes[i*4:])
	}
	if words[0] != spirvMagic {
		return nil, fmt.Errorf("naga: %s: invalid SPIR-V magic 0x%08X", label, words[0])
	}
	return words, nil
}
