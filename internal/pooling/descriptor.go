package pooling

import (
	"k8s.io/klog/v2"

	"github.com/kiln-ml/kiln/internal/backend"
	"github.com/kiln-ml/kiln/internal/tensor"
)

// effectiveGeometry is the derived (kernel, stride, padding) triple a plan
// is compiled with, after convention and global-pooling handling.
type effectiveGeometry struct {
	kernel  [2]int
	stride  [2]int
	padLow  [2]int
	padHigh [2]int
}

// deriveGeometry turns user-facing Params into effective geometry for the
// given input spatial extents.
//
// This is the single place geometry is derived: forward compilation,
// backward compilation and OutputShape all call it, so the three can never
// silently disagree.
func deriveGeometry(params Params, inH, inW int) (effectiveGeometry, error) {
	var geo effectiveGeometry

	if params.GlobalPool {
		// Global pooling reduces each channel's full spatial extent to one
		// value, regardless of the configured kernel, stride and padding.
		geo.kernel = [2]int{inH, inW}
		geo.stride = [2]int{1, 1}
	} else {
		geo.kernel = params.Kernel
		geo.stride = params.Stride
		geo.padLow = params.Pad
		geo.padHigh = params.Pad
	}

	if geo.kernel[0] <= 0 || geo.kernel[1] <= 0 {
		return geo, configErrorf("filter dimensions cannot be zero: kernel %v", geo.kernel)
	}
	if geo.stride[0] <= 0 || geo.stride[1] <= 0 {
		return geo, configErrorf("stride must be positive: stride %v", geo.stride)
	}

	if !params.GlobalPool && params.Convention == Full {
		geo.padHigh[0] = FullConventionPad(inH, geo.padLow[0], geo.padHigh[0], geo.kernel[0], geo.stride[0])
		geo.padHigh[1] = FullConventionPad(inW, geo.padLow[1], geo.padHigh[1], geo.kernel[1], geo.stride[1])
	}

	if geo.padLow != [2]int{} || geo.padHigh != [2]int{} {
		if params.Type != Max && params.Type != Avg {
			return geo, configErrorf("padding implemented only for max and average pooling, got %s", params.Type)
		}
		// A window lying entirely in padding would contain no real input.
		for axis := 0; axis < 2; axis++ {
			if geo.padLow[axis] >= geo.kernel[axis] {
				return geo, configErrorf("padding %d must be smaller than kernel extent %d on axis %d",
					geo.padLow[axis], geo.kernel[axis], axis)
			}
		}
	}

	return geo, nil
}

// algorithmFor maps the pooling type to the engine algorithm.
func algorithmFor(params Params) (backend.Algorithm, error) {
	switch params.Type {
	case Max:
		return backend.AlgMax, nil
	case Avg:
		if params.CountIncludePad {
			return backend.AlgAvgIncludePadding, nil
		}
		return backend.AlgAvgExcludePadding, nil
	default:
		return 0, configErrorf("unknown pooling algorithm %d", params.Type)
	}
}

// buildDescriptor derives the complete engine-facing pooling descriptor for
// a request. Both forward and backward resolution go through it.
//
// The descriptor's tensor layouts are normalized to canonical: the engine
// negotiates physical layout at compile time, and every in-tree engine
// negotiates canonical memory. Executors reorder non-canonical buffers
// before running. Cache signatures are built from the caller's original
// descriptors, so layout-distinct tensors still compile distinct plans.
func buildDescriptor(params Params, training bool, src, dst tensor.Descriptor) (backend.PoolingDescriptor, error) {
	var desc backend.PoolingDescriptor

	if src.Rank != 4 || dst.Rank != 4 {
		return desc, configErrorf("not implemented: pooling supports exactly 2 spatial dims (4D NCHW), got src rank %d, dst rank %d",
			src.Rank, dst.Rank)
	}

	geo, err := deriveGeometry(params, src.Dims[2], src.Dims[3])
	if err != nil {
		return desc, err
	}

	alg, err := algorithmFor(params)
	if err != nil {
		return desc, err
	}

	kind := backend.Inference
	if training && !alg.IsAverage() {
		kind = backend.Training
	}
	if training && kind == backend.Inference {
		// Average pooling needs no mask or index state for its backward
		// pass, so the cheaper inference plan serves training too.
		klog.Infof("pooling: training requested for %s, compiling with %s propagation kind", alg, kind)
	}

	desc = backend.PoolingDescriptor{
		Alg:     alg,
		Kind:    kind,
		Kernel:  geo.kernel,
		Stride:  geo.stride,
		PadLow:  geo.padLow,
		PadHigh: geo.padHigh,
		Src:     canonicalized(src),
		Dst:     canonicalized(dst),
	}
	return desc, nil
}

func canonicalized(d tensor.Descriptor) tensor.Descriptor {
	d.Layout = tensor.LayoutCanonical
	return d
}
