package pooling

import (
	"github.com/pkg/errors"

	"github.com/kiln-ml/kiln/internal/backend"
	"github.com/kiln-ml/kiln/internal/tensor"
)

// OpContext carries everything a pooling invocation needs from its caller:
// the compute engine, the training flag, and the executor cache.
//
// An OpContext (and the Cache it owns) is confined to a single goroutine.
// Callers that dispatch graph nodes across worker goroutines give each
// worker its own OpContext; that trades duplicate compilation across
// workers for lock-free resolution, and it is the explicit policy here
// rather than hidden thread-local state.
type OpContext struct {
	Engine   backend.Engine
	Training bool
	Cache    *Cache
}

// NewOpContext builds an OpContext with a cache of DefaultCacheCapacity.
func NewOpContext(engine backend.Engine, training bool) *OpContext {
	return &OpContext{
		Engine:   engine,
		Training: training,
		Cache:    NewCache(DefaultCacheCapacity),
	}
}

// RequiresWorkspace reports whether a forward call with these parameters in
// the given training mode must supply a workspace buffer. Only max pooling
// records per-output state for its backward pass; averaging needs none.
func RequiresWorkspace(params Params, training bool) bool {
	return training && params.Type == Max
}

// ResolveForward returns the compiled forward executor for the given
// request, reusing a cached one when the structural signature matches.
func (ctx *OpContext) ResolveForward(params Params, input, output *tensor.RawTensor) (*ForwardExecutor, error) {
	if err := ctx.check(); err != nil {
		return nil, err
	}
	return ctx.Cache.resolveForward(ctx.Engine, params, ctx.Training,
		tensor.Describe(input), tensor.Describe(output))
}

// ResolveBackward returns the compiled backward executor for the given
// request, reusing a cached one when the structural signature matches.
func (ctx *OpContext) ResolveBackward(params Params, outputGrad, inputData, inputGrad *tensor.RawTensor) (*BackwardExecutor, error) {
	if err := ctx.check(); err != nil {
		return nil, err
	}
	return ctx.Cache.resolveBackward(ctx.Engine, params,
		tensor.Describe(inputData), tensor.Describe(inputGrad), tensor.Describe(outputGrad))
}

func (ctx *OpContext) check() error {
	if ctx.Engine == nil {
		return errors.Wrap(ErrInternal, "op context has no engine")
	}
	if ctx.Cache == nil {
		return errors.Wrap(ErrInternal, "op context has no cache")
	}
	return nil
}

// Forward is the graph-facing forward pooling entry point: it resolves (or
// compiles) the executor for this request and runs it.
//
// workspace may be nil unless RequiresWorkspace(params, ctx.Training); when
// required it is written by the call and must be handed unchanged to the
// matching Backward.
func Forward(ctx *OpContext, params Params, input *tensor.RawTensor, mode WriteMode,
	output, workspace *tensor.RawTensor) error {

	exec, err := ctx.ResolveForward(params, input, output)
	if err != nil {
		return err
	}
	return exec.Execute(input, mode, output, workspace)
}

// Backward is the graph-facing backward pooling entry point. A WriteSkip
// mode short-circuits before any resolution or compilation happens.
func Backward(ctx *OpContext, params Params, outputGrad, inputData, workspace *tensor.RawTensor,
	mode WriteMode, inputGrad *tensor.RawTensor) error {

	if mode == WriteSkip {
		return nil
	}

	exec, err := ctx.ResolveBackward(params, outputGrad, inputData, inputGrad)
	if err != nil {
		return err
	}
	return exec.Execute(outputGrad, inputData, workspace, mode, inputGrad)
}
