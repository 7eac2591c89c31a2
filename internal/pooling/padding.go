package pooling

import "github.com/kiln-ml/kiln/internal/tensor"

// FullConventionPad computes the trailing padding for one spatial axis under
// the full pooling convention: the smallest padr' >= padr such that the last
// window, stepping at the given stride, reaches (or exceeds) the end of the
// padded input. This guarantees every input element participates in at least
// one window.
//
// x is the input extent, padl/padr the base leading/trailing padding, k the
// kernel extent and s the stride. The result satisfies
// (x + padl + padr' - k) mod s == 0.
func FullConventionPad(x, padl, padr, k, s int) int {
	if (x+padl+padr-k)%s != 0 {
		return padr + s - ((x + padl + padr - k) % s)
	}
	return padr
}

// OutputShape derives the NCHW output shape a pooling operation produces for
// the given input shape. It runs the same geometry derivation the executors
// compile with, so shape inference can never disagree with execution.
func OutputShape(params Params, input tensor.Shape) (tensor.Shape, error) {
	if len(input) != 4 {
		return nil, configErrorf("pooling requires a 4D NCHW input, got %dD", len(input))
	}

	geo, err := deriveGeometry(params, input[2], input[3])
	if err != nil {
		return nil, err
	}

	out := input.Clone()
	for axis := 0; axis < 2; axis++ {
		in := input[2+axis]
		out[2+axis] = (in+geo.padLow[axis]+geo.padHigh[axis]-geo.kernel[axis])/geo.stride[axis] + 1
	}
	return out, nil
}
