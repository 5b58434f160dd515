// pre_processor.go implements the Oxy WGSL shader pre-processor. It scans shader source code for @oxy: annotations,
// replaces includes with their registered WGSL snippets, strips define declarations and substitutes every whole-word
// use of a define with its value.
package shader

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Define is a compile-time constant baked into shader source by the pre-processor.
type Define struct {
	// Name is the identifier replaced in the source.
	Name string

	// Value is the WGSL text substituted for Name.
	Value string
}

// preProcessor is the implementation of the PreProcessor interface.
type preProcessor struct {
	// includeRegistry maps include keys to the WGSL snippet injected by @oxy:include.
	includeRegistry map[AnnotationArg]string

	// declarations accumulates the annotations seen during a Process call. Reset at the start of each Process invocation.
	declarations []Annotation

	// resolved holds the define values applied during the last Process call.
	resolved []Define
}

// PreProcessor processes raw WGSL shader source code containing @oxy: annotations.
type PreProcessor interface {
	// Process pre-processes source. @oxy:include annotations are replaced with the registered snippet, @oxy:define
	// annotations are removed and every whole-word occurrence of a declared name in the remaining source, included
	// snippets too, is replaced with its value. Supplied defines that the source never declares are ignored so that
	// one define list can serve every stage of a pipeline.
	//
	// Parameters:
	//   - source: the raw WGSL shader source code containing annotations to be processed
	//   - defines: the values for declared defines, overriding declared defaults
	//
	// Returns:
	//   - string: the processed WGSL shader source code
	//   - error: an error if any annotation is malformed, an include is unknown, or a define has no value
	Process(source string, defines []Define) (string, error)

	// RegisterInclude adds or replaces an include snippet.
	//
	// Parameters:
	//   - key: the include key used in //@oxy:include <key>
	//   - source: the WGSL snippet
	RegisterInclude(key AnnotationArg, source string)

	// Declarations returns the annotations collected during the most recent call to Process, in source order.
	//
	// Returns:
	//   - []Annotation: the annotations collected during the last Process call
	Declarations() []Annotation

	// Resolved returns the define values applied during the most recent call to Process, sorted by name.
	//
	// Returns:
	//   - []Define: the declared defines with their effective values
	Resolved() []Define
}

var _ PreProcessor = &preProcessor{}

// NewPreProcessor creates a new PreProcessor with the built-in include snippets registered.
//
// Returns:
//   - PreProcessor: a ready-to-use pre-processor instance
func NewPreProcessor() PreProcessor {
	return &preProcessor{
		includeRegistry: map[AnnotationArg]string{
			AnnotationArgFullscreenOutput: FullscreenOutputSource,
			AnnotationArgLuma:             LumaSource,
		},
	}
}

func (p *preProcessor) RegisterInclude(key AnnotationArg, source string) {
	p.includeRegistry[key] = source
}

func (p *preProcessor) Process(source string, defines []Define) (string, error) {
	p.declarations = p.declarations[:0]
	p.resolved = p.resolved[:0]

	supplied := make(map[string]string, len(defines))
	for _, d := range defines {
		supplied[d.Name] = d.Value
	}

	lines := strings.Split(source, "\n")
	out := make([]string, 0, len(lines))
	declared := make(map[string]string)

	// first pass: expand includes and collect define declarations, which apply to the whole source
	for i, line := range lines {
		a, err := parseAnnotation(line, i+1)
		if err != nil {
			return "", err
		}
		if a == nil {
			out = append(out, line)
			continue
		}
		p.declarations = append(p.declarations, *a)

		switch a.Type {
		case AnnotationTypeInclude:
			snippet, ok := p.includeRegistry[a.Args[0]]
			if !ok {
				return "", fmt.Errorf("line %d: unknown @oxy:include argument %q", i+1, a.Args[0])
			}
			out = append(out, strings.TrimRight(snippet, "\n"))
		case AnnotationTypeDefine:
			name := string(a.Args[0])
			if _, dup := declared[name]; dup {
				return "", fmt.Errorf("line %d: define %q declared twice", i+1, name)
			}
			value, ok := supplied[name]
			if !ok {
				if len(a.Args) < 2 {
					return "", fmt.Errorf("line %d: define %q has no value and no default", i+1, name)
				}
				value = string(a.Args[1])
			}
			declared[name] = value
		}
	}

	processed := strings.Join(out, "\n")
	if len(declared) == 0 {
		return processed, nil
	}

	names := make([]string, 0, len(declared))
	for name := range declared {
		names = append(names, name)
	}
	sort.Strings(names)

	// second pass: whole-word substitution, identifiers that merely contain a name are left alone
	for _, name := range names {
		re := regexp.MustCompile(`\b` + regexp.QuoteMeta(name) + `\b`)
		processed = re.ReplaceAllLiteralString(processed, declared[name])
		p.resolved = append(p.resolved, Define{Name: name, Value: declared[name]})
	}
	return processed, nil
}

func (p *preProcessor) Declarations() []Annotation {
	return p.declarations
}

func (p *preProcessor) Resolved() []Define {
	return p.resolved
}
