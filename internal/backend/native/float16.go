package native

import (
	"github.com/kiln-ml/kiln/internal/backend"
	"github.com/kiln-ml/kiln/internal/tensor"
)

// Float16 tensors are executed by widening to float32, running the float32
// kernel, and narrowing the result. The workspace keeps its int32 layout, so
// forward and backward stay compatible across precisions.

func (e *Engine) runForwardFloat16(p *forwardPlan, args backend.Args, ws []int32, g geometry) error {
	src := widenFloat16(args.Src.AsFloat16Bits())
	dst := make([]float32, args.Dst.NumElements())

	if p.desc.Alg == backend.AlgMax {
		maxForwardFloat32(dst, src, ws, g, p.rows, p.cols)
	} else {
		avgForwardFloat32(dst, src, g, p.rows, p.cols,
			p.desc.Alg == backend.AlgAvgIncludePadding, p.desc.Kernel[0]*p.desc.Kernel[1])
	}

	narrowFloat16(args.Dst.AsFloat16Bits(), dst)
	return nil
}

func (e *Engine) runBackwardFloat16(p *backwardPlan, args backend.Args, ws []int32, g geometry) error {
	diffDst := widenFloat16(args.DiffDst.AsFloat16Bits())
	diffSrc := make([]float32, args.DiffSrc.NumElements())

	if p.desc.Alg == backend.AlgMax {
		maxBackwardFloat32(diffSrc, diffDst, ws, g)
	} else {
		avgBackwardFloat32(diffSrc, diffDst, g, p.rows, p.cols,
			p.desc.Alg == backend.AlgAvgIncludePadding, p.desc.Kernel[0]*p.desc.Kernel[1])
	}

	narrowFloat16(args.DiffSrc.AsFloat16Bits(), diffSrc)
	return nil
}

func widenFloat16(bits []uint16) []float32 {
	out := make([]float32, len(bits))
	for i, b := range bits {
		out[i] = tensor.Float16ToFloat32(b)
	}
	return out
}

func narrowFloat16(bits []uint16, values []float32) {
	for i, v := range values {
		bits[i] = tensor.Float16FromFloat32(v)
	}
}
