// Package native provides the pure Go reference engine for pooling plans.
//
// Compilation precomputes the clamped window bounds for every output
// position, so the execute loops carry no convention or padding logic at
// all. The same precomputed geometry serves forward and backward plans,
// which keeps the two passes consistent by construction.
package native

import (
	"github.com/pkg/errors"

	"github.com/kiln-ml/kiln/internal/backend"
	"github.com/kiln-ml/kiln/internal/tensor"
)

// Engine is the pure Go CPU engine.
type Engine struct{}

// New creates a new native engine.
func New() *Engine {
	return &Engine{}
}

// Compile-time check that Engine implements backend.Engine.
var _ backend.Engine = (*Engine)(nil)

// Name returns the engine name.
func (e *Engine) Name() string {
	return "native"
}

// Device returns the device this engine computes on.
func (e *Engine) Device() tensor.Device {
	return tensor.CPU
}

// CompilePoolingForward builds a forward plan with precomputed window spans.
func (e *Engine) CompilePoolingForward(desc backend.PoolingDescriptor) (backend.Plan, error) {
	if err := validateDescriptor(desc); err != nil {
		return nil, err
	}
	rows, cols := computeSpans(desc)
	return &forwardPlan{
		desc: desc,
		rows: rows,
		cols: cols,
		// Only training-mode max pooling tracks argmax positions.
		withWorkspace: desc.Alg == backend.AlgMax && desc.Kind == backend.Training,
	}, nil
}

// CompilePoolingBackward builds a backward plan. When a forward plan compiled
// by this engine is given as a hint, its precomputed spans are reused so the
// two passes cannot diverge; otherwise the spans are derived again from the
// descriptor.
func (e *Engine) CompilePoolingBackward(desc backend.PoolingDescriptor, fwd backend.Plan) (backend.Plan, error) {
	if err := validateDescriptor(desc); err != nil {
		return nil, err
	}

	var rows, cols []span
	if fp, ok := fwd.(*forwardPlan); ok && fp.desc.Kernel == desc.Kernel &&
		fp.desc.Stride == desc.Stride && fp.desc.PadLow == desc.PadLow && fp.desc.PadHigh == desc.PadHigh {
		rows, cols = fp.rows, fp.cols
	} else {
		rows, cols = computeSpans(desc)
	}

	return &backwardPlan{
		desc:          desc,
		rows:          rows,
		cols:          cols,
		withWorkspace: desc.Alg == backend.AlgMax,
	}, nil
}

// Run executes a compiled plan synchronously.
func (e *Engine) Run(plan backend.Plan, args backend.Args) error {
	switch p := plan.(type) {
	case *forwardPlan:
		return e.runForward(p, args)
	case *backwardPlan:
		return e.runBackward(p, args)
	default:
		return errors.Errorf("native: unknown plan type %T", plan)
	}
}

func (e *Engine) runForward(p *forwardPlan, args backend.Args) error {
	if args.Src == nil || args.Dst == nil {
		return errors.New("native: forward plan requires src and dst buffers")
	}
	if err := checkBuffer(args.Src, p.desc.Src, "src"); err != nil {
		return err
	}
	if err := checkBuffer(args.Dst, p.desc.Dst, "dst"); err != nil {
		return err
	}

	var ws []int32
	if p.withWorkspace {
		if args.Workspace == nil {
			return errors.New("native: forward plan compiled with workspace but none supplied")
		}
		wsDesc, _ := p.WorkspaceDescriptor()
		if err := checkBuffer(args.Workspace, wsDesc, "workspace"); err != nil {
			return err
		}
		ws = args.Workspace.AsInt32()
	}

	d := geometryOf(p.desc)
	switch p.desc.Src.DType {
	case tensor.Float32:
		if p.desc.Alg == backend.AlgMax {
			maxForwardFloat32(args.Dst.AsFloat32(), args.Src.AsFloat32(), ws, d, p.rows, p.cols)
		} else {
			avgForwardFloat32(args.Dst.AsFloat32(), args.Src.AsFloat32(), d, p.rows, p.cols,
				p.desc.Alg == backend.AlgAvgIncludePadding, p.desc.Kernel[0]*p.desc.Kernel[1])
		}
	case tensor.Float64:
		if p.desc.Alg == backend.AlgMax {
			maxForwardFloat64(args.Dst.AsFloat64(), args.Src.AsFloat64(), ws, d, p.rows, p.cols)
		} else {
			avgForwardFloat64(args.Dst.AsFloat64(), args.Src.AsFloat64(), d, p.rows, p.cols,
				p.desc.Alg == backend.AlgAvgIncludePadding, p.desc.Kernel[0]*p.desc.Kernel[1])
		}
	case tensor.Float16:
		return e.runForwardFloat16(p, args, ws, d)
	default:
		return errors.Errorf("native: unsupported dtype %s", p.desc.Src.DType)
	}
	return nil
}

func (e *Engine) runBackward(p *backwardPlan, args backend.Args) error {
	if args.DiffDst == nil || args.DiffSrc == nil {
		return errors.New("native: backward plan requires diff-dst and diff-src buffers")
	}
	if err := checkBuffer(args.DiffDst, p.desc.Dst, "diff-dst"); err != nil {
		return err
	}
	if err := checkBuffer(args.DiffSrc, p.desc.Src, "diff-src"); err != nil {
		return err
	}

	var ws []int32
	if p.withWorkspace {
		if args.Workspace == nil {
			return errors.New("native: backward plan compiled with workspace but none supplied")
		}
		wsDesc, _ := p.WorkspaceDescriptor()
		if err := checkBuffer(args.Workspace, wsDesc, "workspace"); err != nil {
			return err
		}
		ws = args.Workspace.AsInt32()
	}

	d := geometryOf(p.desc)
	switch p.desc.Src.DType {
	case tensor.Float32:
		if p.desc.Alg == backend.AlgMax {
			maxBackwardFloat32(args.DiffSrc.AsFloat32(), args.DiffDst.AsFloat32(), ws, d)
		} else {
			avgBackwardFloat32(args.DiffSrc.AsFloat32(), args.DiffDst.AsFloat32(), d, p.rows, p.cols,
				p.desc.Alg == backend.AlgAvgIncludePadding, p.desc.Kernel[0]*p.desc.Kernel[1])
		}
	case tensor.Float64:
		if p.desc.Alg == backend.AlgMax {
			maxBackwardFloat64(args.DiffSrc.AsFloat64(), args.DiffDst.AsFloat64(), ws, d)
		} else {
			avgBackwardFloat64(args.DiffSrc.AsFloat64(), args.DiffDst.AsFloat64(), d, p.rows, p.cols,
				p.desc.Alg == backend.AlgAvgIncludePadding, p.desc.Kernel[0]*p.desc.Kernel[1])
		}
	case tensor.Float16:
		return e.runBackwardFloat16(p, args, ws, d)
	default:
		return errors.Errorf("native: unsupported dtype %s", p.desc.Src.DType)
	}
	return nil
}

// checkBuffer verifies a borrowed buffer matches the descriptor the plan was
// compiled against. Plans only run on canonical memory; reordering views is
// the caller's job.
func checkBuffer(t *tensor.RawTensor, want tensor.Descriptor, name string) error {
	got := tensor.Describe(t)
	if got != want {
		return errors.Errorf("native: %s buffer %s does not match compiled descriptor %s", name, got, want)
	}
	if !t.IsCanonical() {
		return errors.Errorf("native: %s buffer must be canonical, got a view", name)
	}
	return nil
}
