package post

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-post/common"
	"github.com/Carmen-Shannon/oxy-post/engine/logger"
	"github.com/Carmen-Shannon/oxy-post/engine/renderer/attachment"
	"github.com/Carmen-Shannon/oxy-post/engine/renderer/binding_set"
	"github.com/Carmen-Shannon/oxy-post/engine/renderer/gpu"
	"github.com/Carmen-Shannon/oxy-post/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-post/engine/renderer/uniform"
	"go.uber.org/zap"
)

// filterInput maps a texture binding onto the attachment it samples.
type filterInput struct {
	slot       uint32
	varName    string
	attachment string
}

// postFilter holds the state every filter kind shares: a full-screen render pipeline, its binding set and the GPU
// objects the filter owns. Kinds embed it and stage their own constant resources after construction.
type postFilter struct {
	kind   string
	name   string
	device gpu.Device
	log    *zap.Logger

	pipeline pipeline.Pipeline
	set      binding_set.BindingSet

	inputs  []filterInput
	outputs []string

	sampler  gpu.Handle
	blocks   []uniform.Block
	textures []gpu.Texture
}

var _ Filter = &postFilter{}

// newPostFilter builds the pipeline and binding set of a filter from a built-in fragment shader.
// On failure every object created so far is released.
func newPostFilter(ctx FilterContext, kind, fragmentPath string, cfg *filterConfig, opts ...pipeline.PipelineBuilderOption) (*postFilter, error) {
	if ctx.Device == nil {
		return nil, fmt.Errorf("post: %s: nil device", cfg.name)
	}
	log := common.Coalesce(ctx.Logger, logger.Log)
	loader := ctx.Loader
	if loader == nil {
		loader = ShaderLoader()
	}

	pipelineOpts := []pipeline.PipelineBuilderOption{
		pipeline.WithLoader(loader),
		pipeline.WithFragmentShaderPath(fragmentPath),
		pipeline.WithTargetFormat(ctx.Format),
		pipeline.WithLogger(log),
	}
	if ctx.Compiler != nil {
		pipelineOpts = append(pipelineOpts, pipeline.WithCompiler(ctx.Compiler))
	}
	pipelineOpts = append(pipelineOpts, opts...)
	pipelineOpts = append(pipelineOpts, cfg.pipelineOpts...)

	p, err := pipeline.NewPipeline(ctx.Device, cfg.name, pipeline.PipelineTypeRender, pipelineOpts...)
	if err != nil {
		return nil, fmt.Errorf("post: %s: %w", cfg.name, err)
	}

	return &postFilter{
		kind:     kind,
		name:     cfg.name,
		device:   ctx.Device,
		log:      log,
		pipeline: p,
		set:      binding_set.NewBindingSet(ctx.Device, p, binding_set.WithLabel(cfg.name), binding_set.WithLogger(log)),
		outputs:  []string{cfg.output},
	}, nil
}

func (f *postFilter) Name() string {
	return f.name
}

func (f *postFilter) Kind() string {
	return f.kind
}

func (f *postFilter) Inputs() []string {
	out := make([]string, len(f.inputs))
	for i, in := range f.inputs {
		out[i] = in.attachment
	}
	return out
}

func (f *postFilter) Outputs() []string {
	return append([]string(nil), f.outputs...)
}

func (f *postFilter) Pipeline() pipeline.Pipeline {
	return f.pipeline
}

func (f *postFilter) BindingSet() binding_set.BindingSet {
	return f.set
}

func (f *postFilter) Render(frame *Frame) error {
	return f.draw(frame)
}

// bindInput declares that the texture variable varName samples the named attachment every frame.
func (f *postFilter) bindInput(varName, attachmentName string) error {
	slot, err := f.set.Slot(varName)
	if err != nil {
		return fmt.Errorf("post: %s: %w", f.name, err)
	}
	f.inputs = append(f.inputs, filterInput{slot: slot, varName: varName, attachment: attachmentName})
	return nil
}

// bindSampler stages the filter's clamped linear sampler into varName, creating it on first use.
func (f *postFilter) bindSampler(varName string) error {
	slot, err := f.set.Slot(varName)
	if err != nil {
		return fmt.Errorf("post: %s: %w", f.name, err)
	}
	if !f.sampler.Valid() {
		f.sampler, err = f.device.CreateSampler(f.name+" Sampler", common.ClampedSampler)
		if err != nil {
			return fmt.Errorf("post: %s: failed to create sampler: %w", f.name, err)
		}
	}
	return f.set.BindSampler(slot, f.sampler)
}

// bindUniform creates a uniform block with the given fields and stages it into varName. The block is owned by the
// filter.
func (f *postFilter) bindUniform(varName string, fields []uniform.FieldSpec) (uniform.Block, error) {
	slot, err := f.set.Slot(varName)
	if err != nil {
		return nil, fmt.Errorf("post: %s: %w", f.name, err)
	}
	block, err := uniform.NewBlock(f.device, f.name+" "+varName, fields)
	if err != nil {
		return nil, fmt.Errorf("post: %s: %w", f.name, err)
	}
	f.blocks = append(f.blocks, block)
	if err := f.set.BindUniform(slot, block); err != nil {
		return nil, fmt.Errorf("post: %s: %w", f.name, err)
	}
	return block, nil
}

// bindTexture uploads a precomputed texture and stages it into varName. The texture is owned by the filter.
func (f *postFilter) bindTexture(varName string, data common.TextureStagingData) (gpu.Texture, error) {
	slot, err := f.set.Slot(varName)
	if err != nil {
		return gpu.Texture{}, fmt.Errorf("post: %s: %w", f.name, err)
	}
	tex, err := f.device.CreateTexture(f.name+" "+varName, data)
	if err != nil {
		return gpu.Texture{}, fmt.Errorf("post: %s: failed to create texture: %w", f.name, err)
	}
	f.textures = append(f.textures, tex)
	if err := f.set.BindTexture(slot, tex); err != nil {
		return gpu.Texture{}, fmt.Errorf("post: %s: %w", f.name, err)
	}
	return tex, nil
}

// draw stages the filter's inputs from the frame registry, then records the full-screen pass into a target for
// the first output and publishes the target under every output. Nothing is recorded or published when staging
// fails.
func (f *postFilter) draw(frame *Frame) error {
	if frame == nil || frame.Registry == nil || frame.Recorder == nil || frame.Targets == nil {
		return fmt.Errorf("post: %s: incomplete frame", f.name)
	}

	for _, in := range f.inputs {
		if err := f.set.BindAttachment(in.slot, frame.Registry, in.attachment); err != nil {
			return fmt.Errorf("post: %s: %w", f.name, err)
		}
	}
	if !f.set.Update() {
		return fmt.Errorf("post: %s: %w", f.name, f.set.Err())
	}

	target, err := frame.Targets.Acquire(f.outputs[0], frame.Registry)
	if err != nil {
		return fmt.Errorf("post: %s: %w", f.name, err)
	}

	rec := frame.Recorder
	if err := rec.BeginRenderPass(f.name, target.View); err != nil {
		return fmt.Errorf("post: %s: %w", f.name, err)
	}
	f.pipeline.Bind(rec)
	f.set.Bind(rec)
	f.pipeline.Draw(rec, pipeline.FullscreenVertexCount)
	rec.EndRenderPass()

	for _, out := range f.outputs {
		frame.Registry.Publish(out, attachment.FromTexture(out, target))
	}
	return nil
}

func (f *postFilter) Release() {
	for _, b := range f.blocks {
		b.Release()
	}
	f.blocks = nil
	for _, t := range f.textures {
		f.device.Release(t.Handles()...)
	}
	f.textures = nil
	if f.sampler.Valid() {
		f.device.Release(f.sampler)
		f.sampler = gpu.InvalidHandle
	}
	if f.set != nil {
		f.set.Release()
	}
	if f.pipeline != nil {
		f.pipeline.Release()
	}
}
