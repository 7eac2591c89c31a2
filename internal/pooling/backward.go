package pooling

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/kiln-ml/kiln/internal/backend"
	"github.com/kiln-ml/kiln/internal/tensor"
)

// BackwardExecutor wraps a compiled backward pooling plan. Construction
// recompiles the matching forward descriptor and hands the resulting plan to
// the engine as a hint, so the backward plan inherits the forward plan's
// shape and format decisions.
type BackwardExecutor struct {
	id            uuid.UUID
	engine        backend.Engine
	plan          backend.Plan
	withWorkspace bool
}

func newBackwardExecutor(engine backend.Engine, params Params, withWorkspace bool,
	data, diffSrc, diffDst tensor.Descriptor) (*BackwardExecutor, error) {

	// The backward pass always derives its geometry from a training-mode
	// forward descriptor, mirroring how the forward executor was built.
	fwdDesc, err := buildDescriptor(params, true, data, diffDst)
	if err != nil {
		return nil, err
	}
	fwdPlan, err := engine.CompilePoolingForward(fwdDesc)
	if err != nil {
		return nil, errors.Wrap(err, "compiling forward hint for backward pooling plan")
	}

	bwdDesc := fwdDesc
	bwdDesc.Src = canonicalized(diffSrc)
	bwdDesc.Dst = canonicalized(diffDst)

	plan, err := engine.CompilePoolingBackward(bwdDesc, fwdPlan)
	if err != nil {
		return nil, errors.Wrap(err, "compiling backward pooling plan")
	}

	return &BackwardExecutor{
		id:            uuid.New(),
		engine:        engine,
		plan:          plan,
		withWorkspace: withWorkspace,
	}, nil
}

// RequiresWorkspace reports whether Execute must be given the workspace
// produced by the matching forward call.
func (e *BackwardExecutor) RequiresWorkspace() bool {
	return e.withWorkspace
}

// Execute runs the compiled backward plan: reads the output gradient,
// writes the input gradient under the given write policy, and consumes the
// forward pass's workspace when the pooling type requires one.
//
// inputData is the forward input tensor; it is not read, but its layout
// decides whether the output gradient must be reordered: a canonical
// forward input with a non-canonical output gradient means the gradient
// arrived in a layout the plan was not compiled for.
func (e *BackwardExecutor) Execute(outputGrad, inputData, workspace *tensor.RawTensor,
	mode WriteMode, inputGrad *tensor.RawTensor) error {

	if mode == WriteSkip {
		return nil
	}
	if e.plan == nil {
		return errors.Wrap(ErrInternal, "backward executor has no compiled plan")
	}
	if e.withWorkspace && workspace == nil {
		return errors.Wrap(ErrMissingWorkspace, "max pooling backward")
	}

	diffDst := outputGrad
	if inputData.IsCanonical() && !outputGrad.IsCanonical() {
		var err error
		if diffDst, err = outputGrad.Canonicalize(); err != nil {
			return errors.Wrap(err, "reordering output gradient to canonical layout")
		}
	}

	switch mode {
	case WriteTo:
		return e.engine.Run(e.plan, backend.Args{DiffSrc: inputGrad, DiffDst: diffDst, Workspace: workspace})
	case WriteAccumulate:
		scratch, err := tensor.NewRaw(inputGrad.Shape(), inputGrad.DType(), inputGrad.Device())
		if err != nil {
			return errors.Wrap(err, "allocating accumulation scratch")
		}
		if err := e.engine.Run(e.plan, backend.Args{DiffSrc: scratch, DiffDst: diffDst, Workspace: workspace}); err != nil {
			return err
		}
		return accumulate(inputGrad, scratch)
	default:
		return configErrorf("unknown write mode %d", mode)
	}
}
