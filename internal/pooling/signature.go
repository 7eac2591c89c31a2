package pooling

import (
	"fmt"

	"github.com/kiln-ml/kiln/internal/tensor"
)

// Signature is the structural fingerprint a compiled forward executor is
// cached under: parameters, mode flags and the full input/output tensor
// descriptors (shape, dtype, physical layout).
//
// Signatures are plain comparable values; equality is exact, with no
// tolerance of any kind, because equal signatures must always resolve to
// semantically identical compiled plans.
type Signature struct {
	Params        Params
	Training      bool
	WithWorkspace bool
	Src           tensor.Descriptor
	Dst           tensor.Descriptor
}

// String returns a compact human-readable form for log messages.
func (s Signature) String() string {
	return fmt.Sprintf("%s k%v s%v p%v %s->%s train=%t ws=%t",
		s.Params.Type, s.Params.Kernel, s.Params.Stride, s.Params.Pad,
		s.Src, s.Dst, s.Training, s.WithWorkspace)
}

// backwardSignature keys compiled backward executors: parameters plus the
// forward-data, input-gradient and output-gradient descriptors.
type backwardSignature struct {
	Params        Params
	WithWorkspace bool
	Data          tensor.Descriptor
	DiffSrc       tensor.Descriptor
	DiffDst       tensor.Descriptor
}

// String returns a compact human-readable form for log messages.
func (s backwardSignature) String() string {
	return fmt.Sprintf("%s k%v s%v p%v grad %s->%s ws=%t",
		s.Params.Type, s.Params.Kernel, s.Params.Stride, s.Params.Pad,
		s.DiffDst, s.DiffSrc, s.WithWorkspace)
}
