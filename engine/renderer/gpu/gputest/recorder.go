package gputest

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-post/engine/renderer/gpu"
)

// Command is one recorded call on a Recorder.
type Command struct {
	Op     string
	Label  string
	Handle gpu.Handle
	Group  uint32
	Counts [3]uint32
}

// Recorder is a fake gpu.CommandRecorder that keeps every command in order.
type Recorder struct {
	Commands []Command

	inRender  bool
	inCompute bool
	errs      []error
}

var _ gpu.CommandRecorder = &Recorder{}

// NewRecorder returns an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Ops returns the recorded operation names in order.
func (r *Recorder) Ops() []string {
	out := make([]string, len(r.Commands))
	for i, c := range r.Commands {
		out[i] = c.Op
	}
	return out
}

// Count returns how many commands with the given operation name were recorded.
func (r *Recorder) Count(op string) int {
	n := 0
	for _, c := range r.Commands {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Filter returns the commands with the given operation name in order.
func (r *Recorder) Filter(op string) []Command {
	var out []Command
	for _, c := range r.Commands {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Errors returns the misuse errors observed while recording, such as a draw outside a pass.
func (r *Recorder) Errors() []error {
	return r.errs
}

// Reset clears every recorded command and error.
func (r *Recorder) Reset() {
	r.Commands = nil
	r.errs = nil
	r.inRender = false
	r.inCompute = false
}

func (r *Recorder) misuse(op string) {
	r.errs = append(r.errs, fmt.Errorf("%w: %s", gpu.ErrNoActivePass, op))
}

func (r *Recorder) BeginRenderPass(label string, target gpu.Handle) error {
	if !target.Valid() {
		return fmt.Errorf("%w: render target", gpu.ErrUnknownHandle)
	}
	if r.inRender || r.inCompute {
		r.misuse("nested pass")
	}
	r.inRender = true
	r.Commands = append(r.Commands, Command{Op: "BeginRenderPass", Label: label, Handle: target})
	return nil
}

func (r *Recorder) EndRenderPass() {
	if !r.inRender {
		r.misuse("end render pass")
	}
	r.inRender = false
	r.Commands = append(r.Commands, Command{Op: "EndRenderPass"})
}

func (r *Recorder) BeginComputePass(label string) error {
	if r.inRender || r.inCompute {
		r.misuse("nested pass")
	}
	r.inCompute = true
	r.Commands = append(r.Commands, Command{Op: "BeginComputePass", Label: label})
	return nil
}

func (r *Recorder) EndComputePass() {
	if !r.inCompute {
		r.misuse("end compute pass")
	}
	r.inCompute = false
	r.Commands = append(r.Commands, Command{Op: "EndComputePass"})
}

func (r *Recorder) SetPipeline(pipeline gpu.Handle) {
	if !r.inRender && !r.inCompute {
		r.misuse("set pipeline")
	}
	r.Commands = append(r.Commands, Command{Op: "SetPipeline", Handle: pipeline})
}

func (r *Recorder) SetBindGroup(group uint32, bindGroup gpu.Handle) {
	if !r.inRender && !r.inCompute {
		r.misuse("set bind group")
	}
	r.Commands = append(r.Commands, Command{Op: "SetBindGroup", Handle: bindGroup, Group: group})
}

func (r *Recorder) Draw(vertexCount, instanceCount uint32) {
	if !r.inRender {
		r.misuse("draw")
	}
	r.Commands = append(r.Commands, Command{Op: "Draw", Counts: [3]uint32{vertexCount, instanceCount, 0}})
}

func (r *Recorder) Dispatch(x, y, z uint32) {
	if !r.inCompute {
		r.misuse("dispatch")
	}
	r.Commands = append(r.Commands, Command{Op: "Dispatch", Counts: [3]uint32{x, y, z}})
}
