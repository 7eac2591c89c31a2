// Package pooling implements 2-D spatial pooling (max / average) over
// compiled, cached execution plans.
//
// The package derives effective pooling geometry under the valid and full
// conventions (plus the global-pooling special case), compiles plans through
// a backend.Engine exactly once per structural signature, and executes them
// against borrowed tensor buffers with overwrite, accumulate, or skip write
// semantics. Training-mode max pooling additionally produces a workspace
// buffer that the matching backward call must be given back.
package pooling

// PoolType selects the pooling reduction.
type PoolType int

// Supported pooling reductions.
const (
	Max PoolType = iota
	Avg
)

// String returns a human-readable pool type name.
func (t PoolType) String() string {
	switch t {
	case Max:
		return "max"
	case Avg:
		return "avg"
	default:
		return "unknown"
	}
}

// Convention selects how trailing input elements that do not fill a whole
// window are treated.
type Convention int

const (
	// Valid truncates trailing elements that do not fill a full window.
	Valid Convention = iota
	// Full pads the trailing edge so every input element is covered by at
	// least one window (ceil-mode coverage).
	Full
)

// String returns a human-readable convention name.
func (c Convention) String() string {
	switch c {
	case Valid:
		return "valid"
	case Full:
		return "full"
	default:
		return "unknown"
	}
}

// Params is the user-facing pooling configuration, fixed at graph
// construction time and never mutated afterwards. Exactly two spatial
// dimensions are supported; geometry arrays are ordered {height, width}.
//
// Pad is the symmetric per-axis base padding; under the full convention the
// trailing padding may grow beyond it (see FullConventionPad).
type Params struct {
	Kernel [2]int
	Stride [2]int
	Pad    [2]int
	Type   PoolType

	Convention Convention

	// GlobalPool collapses each channel's entire spatial extent to a single
	// value. When set, Kernel, Stride and Pad are ignored.
	GlobalPool bool

	// CountIncludePad controls the averaging divisor: when true, padded
	// positions count as zeros over the full kernel area; when false only
	// real input elements are counted. Ignored for max pooling.
	CountIncludePad bool
}

// NewParams builds Params with the averaging default (padded positions
// included in the divisor, matching the common framework default).
func NewParams(poolType PoolType, kernel, stride, pad [2]int) Params {
	return Params{
		Kernel:          kernel,
		Stride:          stride,
		Pad:             pad,
		Type:            poolType,
		Convention:      Valid,
		CountIncludePad: true,
	}
}

// WriteMode is the caller's write policy for an executor's destination
// buffer.
type WriteMode int

const (
	// WriteSkip requests no computation; the operation returns immediately
	// with no side effects.
	WriteSkip WriteMode = iota
	// WriteTo overwrites the destination buffer.
	WriteTo
	// WriteAccumulate adds the result to the destination's current
	// contents.
	WriteAccumulate
)

// String returns a human-readable write mode name.
func (m WriteMode) String() string {
	switch m {
	case WriteSkip:
		return "skip"
	case WriteTo:
		return "write"
	case WriteAccumulate:
		return "accumulate"
	default:
		return "unknown"
	}
}
