package shader

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/oxy-post/common"
	"github.com/cogentcore/webgpu/wgpu"
)

var (
	// structBlockRegex matches struct declarations and captures the name and body
	structBlockRegex = regexp.MustCompile(`struct\s+(\w+)\s*\{([^}]*)\}`)

	// builtinRegex matches @builtin(...) attributes
	builtinRegex = regexp.MustCompile(`@builtin\(\w+\)`)

	// fieldRegex matches a struct member: optional attributes, name, colon, type.
	fieldRegex = regexp.MustCompile(`(?:@\w+\([^)]*\)\s*)*(\w+)\s*:\s*(.+)`)

	// entryPointRegexes match stage attributes and capture the entry point name
	entryPointRegexes = map[ShaderType]*regexp.Regexp{
		ShaderTypeVertex:   regexp.MustCompile(`(?s)@vertex\b.*?\bfn\s+(\w+)`),
		ShaderTypeFragment: regexp.MustCompile(`(?s)@fragment\b.*?\bfn\s+(\w+)`),
		ShaderTypeCompute:  regexp.MustCompile(`(?s)@compute\b.*?\bfn\s+(\w+)`),
	}

	// workgroupSizeRegex captures 1-3 integer dimensions from @workgroup_size(x[, y[, z]])
	workgroupSizeRegex = regexp.MustCompile(`@workgroup_size\(\s*(\d+)\s*(?:,\s*(\d+)\s*(?:,\s*(\d+)\s*)?)?\)`)

	// bindingDeclRegex captures group, binding, optional address space, variable name, and type
	// from declarations like: @group(0) @binding(0) var<uniform> scene: SsaoScene;
	// or handle types: @group(0) @binding(1) var samplerColour: texture_2d<f32>;
	bindingDeclRegex = regexp.MustCompile(`@group\((\d+)\)\s*@binding\((\d+)\)\s*var(?:<([^>]*)>)?\s+(\w+)\s*:\s*([^;]+?)\s*;`)
)

// Reflection is the interface of a shader stage recovered from its pre-processed WGSL source.
type Reflection struct {
	// EntryPoint is the name of the stage's entry point function.
	EntryPoint string

	// WorkgroupSize is the @workgroup_size of a compute entry point, [0, 0, 0] for render stages.
	WorkgroupSize [3]uint32

	// Layouts holds one bind group layout descriptor per declared group, entries sorted by binding.
	Layouts map[int]wgpu.BindGroupLayoutDescriptor

	// VarNames maps group and binding indices onto the declared variable names.
	VarNames map[int]map[int]string
}

// reflectSource reflects the entry point, workgroup size and resource bindings of a stage.
//
// Parameters:
//   - source: pre-processed WGSL source
//   - shaderType: the stage to reflect, which also sets the visibility of every binding
//
// Returns:
//   - Reflection: the reflected interface
//   - error: an error if the entry point is missing, a binding is declared twice, or a resource type is not recognised
func reflectSource(source string, shaderType ShaderType) (Reflection, error) {
	cleaned := stripComments(source)

	r := Reflection{
		Layouts:  make(map[int]wgpu.BindGroupLayoutDescriptor),
		VarNames: make(map[int]map[int]string),
	}

	re, ok := entryPointRegexes[shaderType]
	if !ok {
		return r, fmt.Errorf("unknown shader type %d", shaderType)
	}
	match := re.FindStringSubmatch(cleaned)
	if match == nil {
		return r, fmt.Errorf("no %s entry point found", shaderType)
	}
	r.EntryPoint = match[1]

	if shaderType == ShaderTypeCompute {
		r.WorkgroupSize = parseWorkgroupSize(cleaned)
	}

	var visibility wgpu.ShaderStage
	switch shaderType {
	case ShaderTypeVertex:
		visibility = wgpu.ShaderStageVertex
	case ShaderTypeFragment:
		visibility = wgpu.ShaderStageFragment
	case ShaderTypeCompute:
		visibility = wgpu.ShaderStageCompute
	}

	layouts := computeStructLayouts(parseStructBlocks(cleaned))
	groups := make(map[int][]wgpu.BindGroupLayoutEntry)

	for _, m := range bindingDeclRegex.FindAllStringSubmatch(cleaned, -1) {
		group, _ := strconv.Atoi(m[1])
		binding, _ := strconv.Atoi(m[2])
		addressSpace := strings.TrimSpace(m[3])
		varName := strings.TrimSpace(m[4])
		typeName := strings.TrimSpace(m[5])

		if existing, dup := r.VarNames[group][binding]; dup {
			return r, fmt.Errorf("@group(%d) @binding(%d) declared twice (%s, %s)", group, binding, existing, varName)
		}

		entry, ok := classifyResource(uint32(binding), visibility, addressSpace, typeName)
		if !ok {
			return r, fmt.Errorf("unsupported resource type %q for %s", typeName, varName)
		}
		if entry.Buffer.Type != wgpu.BufferBindingTypeUndefined {
			if l, ok := resolveTypeLayout(typeName, layouts); ok {
				entry.Buffer.MinBindingSize = l.size
			}
		}

		groups[group] = append(groups[group], entry)
		if r.VarNames[group] == nil {
			r.VarNames[group] = make(map[int]string)
		}
		r.VarNames[group][binding] = varName
	}

	for g, entries := range groups {
		sort.Slice(entries, func(i, j int) bool {
			return entries[i].Binding < entries[j].Binding
		})
		r.Layouts[g] = wgpu.BindGroupLayoutDescriptor{Entries: entries}
	}

	return r, nil
}

// parseWorkgroupSize extracts the @workgroup_size(x, y, z) dimensions. Omitted dimensions default to 1.
//
// Parameters:
//   - source: WGSL source with comments stripped
//
// Returns:
//   - [3]uint32: the workgroup size as [x, y, z]
func parseWorkgroupSize(source string) [3]uint32 {
	result := [3]uint32{1, 1, 1}
	match := workgroupSizeRegex.FindStringSubmatch(source)
	if match == nil {
		return result
	}
	for i := 0; i < 3; i++ {
		if match[i+1] == "" {
			continue
		}
		if v, err := strconv.ParseUint(match[i+1], 10, 32); err == nil {
			result[i] = uint32(v)
		}
	}
	return result
}

// parseStructBlocks finds every struct block and parses its members.
//
// Parameters:
//   - source: WGSL source with comments stripped
//
// Returns:
//   - []structDecl: the structs in source order
func parseStructBlocks(source string) []structDecl {
	matches := structBlockRegex.FindAllStringSubmatch(source, -1)
	structs := make([]structDecl, 0, len(matches))

	for _, m := range matches {
		decl := structDecl{name: m[1]}
		for _, member := range splitAtTopLevelCommas(m[2]) {
			member = strings.TrimSpace(member)
			if member == "" {
				continue
			}
			fm := fieldRegex.FindStringSubmatch(member)
			if fm == nil {
				continue
			}
			decl.fields = append(decl.fields, structField{
				name:      fm[1],
				typeName:  strings.TrimSpace(fm[2]),
				isBuiltin: builtinRegex.MatchString(member),
			})
		}
		structs = append(structs, decl)
	}

	return structs
}

// resolveTypeLayout resolves a type to its size and alignment from primitives, known structs and fixed-size arrays.
// A runtime-sized array resolves to one element stride.
//
// Parameters:
//   - typeName: the WGSL type, e.g. "f32", "SsaoScene", "array<vec4<f32>, 64>"
//   - known: already resolved struct layouts
//
// Returns:
//   - typeLayout: the resolved layout
//   - bool: false if the type or its element type is unknown
func resolveTypeLayout(typeName string, known map[string]typeLayout) (typeLayout, bool) {
	typeName = strings.Join(strings.Fields(typeName), "")
	if l, ok := wgslPrimitiveLayouts[typeName]; ok {
		return l, true
	}
	if l, ok := known[typeName]; ok {
		return l, true
	}

	inner, ok := strings.CutPrefix(typeName, "array<")
	if !ok || !strings.HasSuffix(inner, ">") {
		return typeLayout{}, false
	}
	inner = inner[:len(inner)-1]

	elemType, countStr := inner, ""
	if i := strings.LastIndex(inner, ","); i >= 0 && !strings.Contains(inner[i:], ">") {
		elemType, countStr = inner[:i], inner[i+1:]
	}

	elem, ok := resolveTypeLayout(elemType, known)
	if !ok {
		return typeLayout{}, false
	}
	stride := common.RoundUp(elem.size, elem.align)
	if countStr == "" {
		return typeLayout{stride, elem.align}, true
	}
	count, err := strconv.ParseUint(countStr, 10, 64)
	if err != nil {
		return typeLayout{}, false
	}
	return typeLayout{count * stride, elem.align}, true
}

// computeStructLayouts resolves the layout of every struct, iterating until structs that reference other structs
// are resolved. Builtin members are skipped.
//
// Parameters:
//   - structs: the parsed structs
//
// Returns:
//   - map[string]typeLayout: layouts keyed by struct name; unresolvable structs are absent
func computeStructLayouts(structs []structDecl) map[string]typeLayout {
	resolved := make(map[string]typeLayout, len(structs))
	remaining := append([]structDecl(nil), structs...)

	for len(remaining) > 0 {
		next := remaining[:0]
		for _, s := range remaining {
			if l, ok := structLayout(s, resolved); ok {
				resolved[s.name] = l
			} else {
				next = append(next, s)
			}
		}
		if len(next) == len(remaining) {
			break
		}
		remaining = next
	}

	return resolved
}

// structLayout places each member at its next aligned offset and rounds the size up to the largest member alignment.
func structLayout(s structDecl, known map[string]typeLayout) (typeLayout, bool) {
	offset := uint64(0)
	maxAlign := uint64(1)

	for _, f := range s.fields {
		if f.isBuiltin {
			continue
		}
		l, ok := resolveTypeLayout(f.typeName, known)
		if !ok {
			return typeLayout{}, false
		}
		offset = common.RoundUp(offset, l.align) + l.size
		maxAlign = max(maxAlign, l.align)
	}

	return typeLayout{common.RoundUp(offset, maxAlign), maxAlign}, true
}

// classifyResource builds the layout entry for a declared resource from its address space and type.
//
// Parameters:
//   - binding: the binding index from @binding(N)
//   - visibility: the shader stage visibility flag
//   - addressSpace: the address space qualifier, empty for handle types
//   - typeName: the WGSL type string
//
// Returns:
//   - wgpu.BindGroupLayoutEntry: the populated layout entry
//   - bool: false if the resource type is not recognised
func classifyResource(binding uint32, visibility wgpu.ShaderStage, addressSpace, typeName string) (wgpu.BindGroupLayoutEntry, bool) {
	entry := wgpu.BindGroupLayoutEntry{
		Binding:    binding,
		Visibility: visibility,
	}

	if addressSpace != "" {
		switch {
		case addressSpace == "uniform":
			entry.Buffer.Type = wgpu.BufferBindingTypeUniform
		case strings.HasPrefix(addressSpace, "storage"):
			if strings.Contains(addressSpace, "read_write") {
				entry.Buffer.Type = wgpu.BufferBindingTypeStorage
			} else {
				entry.Buffer.Type = wgpu.BufferBindingTypeReadOnlyStorage
			}
		default:
			return entry, false
		}
		return entry, true
	}

	base, params := splitTypeParams(typeName)
	switch {
	case typeName == "sampler":
		entry.Sampler.Type = wgpu.SamplerBindingTypeFiltering
	case typeName == "sampler_comparison":
		entry.Sampler.Type = wgpu.SamplerBindingTypeComparison
	case strings.HasPrefix(base, "texture_storage_"):
		dim, ok := wgslStorageTextureDims[base]
		if !ok {
			return entry, false
		}
		entry.StorageTexture.ViewDimension = dim
		parts := strings.SplitN(params, ",", 2)
		entry.StorageTexture.Format = wgslTexelFormats[strings.TrimSpace(parts[0])]
		if len(parts) == 2 {
			entry.StorageTexture.Access = wgslStorageAccess[strings.TrimSpace(parts[1])]
		}
	case strings.HasPrefix(base, "texture_depth_"):
		info, ok := wgslSampledTextures[base]
		if !ok {
			return entry, false
		}
		entry.Texture.SampleType = wgpu.TextureSampleTypeDepth
		entry.Texture.ViewDimension = info.viewDimension
		entry.Texture.Multisampled = info.multisampled
	case strings.HasPrefix(base, "texture_"):
		info, ok := wgslSampledTextures[base]
		if !ok {
			return entry, false
		}
		sampleType, ok := wgslSampleTypes[params]
		if !ok {
			return entry, false
		}
		entry.Texture.SampleType = sampleType
		entry.Texture.ViewDimension = info.viewDimension
		entry.Texture.Multisampled = info.multisampled
	default:
		return entry, false
	}

	return entry, true
}

// splitTypeParams splits "texture_2d<f32>" into ("texture_2d", "f32"); unparameterised types return an empty params.
func splitTypeParams(typeName string) (base string, params string) {
	before, after, ok := strings.Cut(typeName, "<")
	if !ok {
		return typeName, ""
	}
	return before, strings.TrimSpace(strings.TrimSuffix(after, ">"))
}

// splitAtTopLevelCommas splits at commas outside angle brackets, so array<T, N> stays one member.
func splitAtTopLevelCommas(s string) []string {
	var parts []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<':
			depth++
		case '>':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}

// stripComments removes line comments and nestable block comments.
func stripComments(source string) string {
	var sb strings.Builder
	sb.Grow(len(source))
	depth := 0
	for i := 0; i < len(source); i++ {
		if i+1 < len(source) {
			switch {
			case source[i] == '/' && source[i+1] == '*':
				depth++
				i++
				continue
			case source[i] == '*' && source[i+1] == '/' && depth > 0:
				depth--
				i++
				continue
			case depth == 0 && source[i] == '/' && source[i+1] == '/':
				for i < len(source) && source[i] != '\n' {
					i++
				}
				if i < len(source) {
					sb.WriteByte('\n')
				}
				continue
			}
		}
		if depth == 0 {
			sb.WriteByte(source[i])
		}
	}
	return sb.String()
}
