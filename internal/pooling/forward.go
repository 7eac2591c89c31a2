package pooling

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/kiln-ml/kiln/internal/backend"
	"github.com/kiln-ml/kiln/internal/tensor"
)

// ForwardExecutor wraps a compiled forward pooling plan. It is immutable
// after construction and safe to reuse for any number of calls whose
// buffers match the signature it was resolved for; it must stay confined to
// the goroutine owning its OpContext.
type ForwardExecutor struct {
	id            uuid.UUID
	engine        backend.Engine
	plan          backend.Plan
	withWorkspace bool
}

func newForwardExecutor(engine backend.Engine, params Params, training, withWorkspace bool,
	src, dst tensor.Descriptor) (*ForwardExecutor, error) {

	desc, err := buildDescriptor(params, training, src, dst)
	if err != nil {
		return nil, err
	}

	plan, err := engine.CompilePoolingForward(desc)
	if err != nil {
		return nil, errors.Wrap(err, "compiling forward pooling plan")
	}

	return &ForwardExecutor{
		id:            uuid.New(),
		engine:        engine,
		plan:          plan,
		withWorkspace: withWorkspace,
	}, nil
}

// RequiresWorkspace reports whether Execute must be given a workspace
// buffer.
func (e *ForwardExecutor) RequiresWorkspace() bool {
	return e.withWorkspace
}

// WorkspaceDescriptor describes the workspace buffer the caller must
// allocate when RequiresWorkspace is true.
func (e *ForwardExecutor) WorkspaceDescriptor() (tensor.Descriptor, bool) {
	return e.plan.WorkspaceDescriptor()
}

// Execute runs the compiled plan: reads input, writes output under the
// given write policy, and fills workspace when the plan requires one.
//
// Non-canonical input views are materialized into canonical layout first;
// the plan was compiled against the canonical arrangement. The output and
// workspace buffers are borrowed and must already be canonical.
func (e *ForwardExecutor) Execute(input *tensor.RawTensor, mode WriteMode,
	output, workspace *tensor.RawTensor) error {

	if mode == WriteSkip {
		return nil
	}
	if e.plan == nil {
		return errors.Wrap(ErrInternal, "forward executor has no compiled plan")
	}
	if e.withWorkspace && workspace == nil {
		return errors.Wrap(ErrMissingWorkspace, "training-mode max pooling forward")
	}

	src := input
	if !src.IsCanonical() {
		var err error
		if src, err = input.Canonicalize(); err != nil {
			return errors.Wrap(err, "reordering pooling input to canonical layout")
		}
	}

	switch mode {
	case WriteTo:
		return e.engine.Run(e.plan, backend.Args{Src: src, Dst: output, Workspace: workspace})
	case WriteAccumulate:
		scratch, err := tensor.NewRaw(output.Shape(), output.DType(), output.Device())
		if err != nil {
			return errors.Wrap(err, "allocating accumulation scratch")
		}
		if err := e.engine.Run(e.plan, backend.Args{Src: src, Dst: scratch, Workspace: workspace}); err != nil {
			return err
		}
		return accumulate(output, scratch)
	default:
		return configErrorf("unknown write mode %d", mode)
	}
}
