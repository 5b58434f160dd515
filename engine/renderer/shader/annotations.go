// annotations.go defines the annotation types and parser for the Oxy WGSL shader pre-processor. Annotations are
// single-line WGSL comments prefixed with @oxy: that drive source injection and compile-time defines. They are
// consumed entirely during pre-processing and never reach the GPU.
package shader

import (
	"fmt"
	"regexp"
	"strings"
)

// annotationPrefix is the marker that identifies an Oxy annotation within a WGSL comment line.
// Every annotation must appear on a line beginning with "//" followed by this prefix.
const annotationPrefix = "@oxy:"

// AnnotationType identifies the kind of annotation parsed from a WGSL comment line.
type AnnotationType string

const (
	// AnnotationTypeInclude injects a registered WGSL snippet at the annotation site.
	//
	// Syntax: //@oxy:include <key>
	//
	// Example: //@oxy:include fullscreen_output
	AnnotationTypeInclude AnnotationType = "include"

	// AnnotationTypeDefine declares a compile-time constant. Every whole-word occurrence of the name in the shader is
	// replaced with the value supplied by the pipeline, or with the default when none is supplied. A define
	// without a default must be supplied.
	//
	// Syntax: //@oxy:define <NAME> [default]
	//
	// Example: //@oxy:define SSAO_KERNEL_SIZE 64
	AnnotationTypeDefine AnnotationType = "define"
)

// Annotation is a parsed @oxy: annotation.
type Annotation struct {
	// Type is the kind of annotation.
	Type AnnotationType

	// Args holds the whitespace-separated arguments after the annotation type.
	Args []AnnotationArg

	// Line is the 1-based source line of the annotation.
	Line int
}

// AnnotationArg is a single annotation argument.
type AnnotationArg string

const (
	// AnnotationArgFullscreenOutput includes the FullscreenOutput varyings struct.
	AnnotationArgFullscreenOutput AnnotationArg = "fullscreen_output"

	// AnnotationArgLuma includes the luma(colour) helper function.
	AnnotationArgLuma AnnotationArg = "luma"
)

// defineNameRegex restricts define names to WGSL identifiers.
var defineNameRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// parseAnnotation parses one source line. Lines without the annotation prefix return nil with no error.
//
// Parameters:
//   - line: the source line
//   - lineNum: the 1-based line number for error messages
//
// Returns:
//   - *Annotation: the parsed annotation, or nil if the line is not an annotation
//   - error: an error if the annotation is malformed
func parseAnnotation(line string, lineNum int) (*Annotation, error) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "//") {
		return nil, nil
	}
	_, after, ok := strings.Cut(trimmed, annotationPrefix)
	if !ok {
		return nil, nil
	}

	args := strings.Fields(after)
	if len(args) == 0 {
		return nil, fmt.Errorf("line %d: empty @oxy annotation", lineNum)
	}

	switch AnnotationType(args[0]) {
	case AnnotationTypeInclude:
		if len(args) != 2 {
			return nil, fmt.Errorf("line %d: @oxy include annotation requires exactly one argument", lineNum)
		}
		return &Annotation{
			Type: AnnotationTypeInclude,
			Args: []AnnotationArg{AnnotationArg(args[1])},
			Line: lineNum,
		}, nil
	case AnnotationTypeDefine:
		if len(args) < 2 || len(args) > 3 {
			return nil, fmt.Errorf("line %d: @oxy define annotation requires a name and an optional default", lineNum)
		}
		if !defineNameRegex.MatchString(args[1]) {
			return nil, fmt.Errorf("line %d: invalid define name %q", lineNum, args[1])
		}
		a := &Annotation{
			Type: AnnotationTypeDefine,
			Args: []AnnotationArg{AnnotationArg(args[1])},
			Line: lineNum,
		}
		if len(args) == 3 {
			a.Args = append(a.Args, AnnotationArg(args[2]))
		}
		return a, nil
	default:
		return nil, fmt.Errorf("line %d: unknown annotation type %q", lineNum, args[0])
	}
}
