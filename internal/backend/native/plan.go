package native

import (
	"github.com/pkg/errors"

	"github.com/kiln-ml/kiln/internal/backend"
	"github.com/kiln-ml/kiln/internal/tensor"
)

// span is a precomputed pooling window extent along one spatial axis,
// already clamped to the real input. Padded positions never appear in a
// span, so the execute loops only ever touch real elements.
type span struct {
	start, end int
}

func (s span) size() int {
	return s.end - s.start
}

// geometry is the flattened loop bounds shared by all execute kernels.
type geometry struct {
	n, c, h, w int
	outH, outW int
}

func geometryOf(desc backend.PoolingDescriptor) geometry {
	return geometry{
		n:    desc.Src.Dims[0],
		c:    desc.Src.Dims[1],
		h:    desc.Src.Dims[2],
		w:    desc.Src.Dims[3],
		outH: desc.Dst.Dims[2],
		outW: desc.Dst.Dims[3],
	}
}

// forwardPlan is a compiled forward pooling plan.
type forwardPlan struct {
	desc          backend.PoolingDescriptor
	rows, cols    []span
	withWorkspace bool
}

// Descriptor returns the descriptor this plan was compiled from.
func (p *forwardPlan) Descriptor() backend.PoolingDescriptor {
	return p.desc
}

// WorkspaceDescriptor describes the argmax workspace: one int32 per output
// element, holding the flat input index that produced it.
func (p *forwardPlan) WorkspaceDescriptor() (tensor.Descriptor, bool) {
	if !p.withWorkspace {
		return tensor.Descriptor{}, false
	}
	return workspaceDescriptor(p.desc), true
}

// backwardPlan is a compiled backward pooling plan.
type backwardPlan struct {
	desc          backend.PoolingDescriptor
	rows, cols    []span
	withWorkspace bool
}

// Descriptor returns the descriptor this plan was compiled from.
func (p *backwardPlan) Descriptor() backend.PoolingDescriptor {
	return p.desc
}

// WorkspaceDescriptor describes the workspace the backward plan consumes.
func (p *backwardPlan) WorkspaceDescriptor() (tensor.Descriptor, bool) {
	if !p.withWorkspace {
		return tensor.Descriptor{}, false
	}
	return workspaceDescriptor(p.desc), true
}

func workspaceDescriptor(desc backend.PoolingDescriptor) tensor.Descriptor {
	ws := desc.Dst
	ws.DType = tensor.Int32
	ws.Layout = tensor.LayoutCanonical
	return ws
}

// computeSpans precomputes the clamped window bounds for every output row
// and column.
func computeSpans(desc backend.PoolingDescriptor) (rows, cols []span) {
	rows = axisSpans(desc.Dst.Dims[2], desc.Src.Dims[2], desc.Kernel[0], desc.Stride[0], desc.PadLow[0])
	cols = axisSpans(desc.Dst.Dims[3], desc.Src.Dims[3], desc.Kernel[1], desc.Stride[1], desc.PadLow[1])
	return rows, cols
}

func axisSpans(outExtent, inExtent, kernel, stride, padLow int) []span {
	spans := make([]span, outExtent)
	for o := 0; o < outExtent; o++ {
		start := o*stride - padLow
		end := start + kernel
		if start < 0 {
			start = 0
		}
		if end > inExtent {
			end = inExtent
		}
		spans[o] = span{start: start, end: end}
	}
	return spans
}

// validateDescriptor checks the invariants compilation relies on. The
// operator core has already validated user-facing configuration; these are
// engine-side consistency checks between geometry and tensor descriptors.
func validateDescriptor(desc backend.PoolingDescriptor) error {
	if desc.Src.Rank != 4 || desc.Dst.Rank != 4 {
		return errors.Errorf("native: pooling requires 4D tensors, got src rank %d, dst rank %d",
			desc.Src.Rank, desc.Dst.Rank)
	}
	if desc.Src.DType != desc.Dst.DType {
		return errors.Errorf("native: src dtype %s != dst dtype %s", desc.Src.DType, desc.Dst.DType)
	}
	if desc.Src.Layout != tensor.LayoutCanonical || desc.Dst.Layout != tensor.LayoutCanonical {
		return errors.Errorf("native: plans compile for canonical layout only, got src %s, dst %s",
			desc.Src.Layout, desc.Dst.Layout)
	}
	if desc.Src.Dims[0] != desc.Dst.Dims[0] || desc.Src.Dims[1] != desc.Dst.Dims[1] {
		return errors.Errorf("native: batch/channel mismatch between src %s and dst %s", desc.Src, desc.Dst)
	}

	for axis := 0; axis < 2; axis++ {
		in := desc.Src.Dims[2+axis]
		out := desc.Dst.Dims[2+axis]
		want := (in+desc.PadLow[axis]+desc.PadHigh[axis]-desc.Kernel[axis])/desc.Stride[axis] + 1
		if out != want {
			return errors.Errorf("native: dst extent %d on axis %d inconsistent with geometry (want %d)",
				out, axis, want)
		}
	}
	return nil
}
