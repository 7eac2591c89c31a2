package pooling

import (
	"github.com/pkg/errors"

	"github.com/kiln-ml/kiln/internal/tensor"
)

// accumulate adds src into dst element-wise, implementing the
// WriteAccumulate commit step. Both tensors must agree on shape and dtype.
func accumulate(dst, src *tensor.RawTensor) error {
	if !dst.Shape().Equal(src.Shape()) || dst.DType() != src.DType() {
		return errors.Wrapf(ErrInternal, "accumulate mismatch: dst %s, src %s", dst, src)
	}

	switch dst.DType() {
	case tensor.Float32:
		d, s := dst.AsFloat32(), src.AsFloat32()
		for i := range d {
			d[i] += s[i]
		}
	case tensor.Float64:
		d, s := dst.AsFloat64(), src.AsFloat64()
		for i := range d {
			d[i] += s[i]
		}
	case tensor.Float16:
		d, s := dst.AsFloat16Bits(), src.AsFloat16Bits()
		for i := range d {
			sum := tensor.Float16ToFloat32(d[i]) + tensor.Float16ToFloat32(s[i])
			d[i] = tensor.Float16FromFloat32(sum)
		}
	default:
		return errors.Wrapf(ErrInternal, "accumulate unsupported for dtype %s", dst.DType())
	}
	return nil
}
