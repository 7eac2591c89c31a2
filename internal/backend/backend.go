// Package backend defines the contract between operator cores and the
// compute engines that compile and execute their plans.
//
// An Engine turns a fully-derived operation descriptor into an opaque
// compiled Plan once, and then runs that plan any number of times against
// borrowed tensor buffers. Compilation is the expensive step; callers are
// expected to cache plans keyed by a structural signature and reuse them.
package backend

import (
	"github.com/kiln-ml/kiln/internal/tensor"
)

// Algorithm selects the pooling reduction an engine compiles for.
type Algorithm int

const (
	// AlgMax takes the maximum over each window.
	AlgMax Algorithm = iota
	// AlgAvgIncludePadding averages over the full kernel area, counting
	// padded positions as zeros.
	AlgAvgIncludePadding
	// AlgAvgExcludePadding averages over only the real input elements
	// covered by the window.
	AlgAvgExcludePadding
)

// String returns a human-readable algorithm name.
func (a Algorithm) String() string {
	switch a {
	case AlgMax:
		return "max"
	case AlgAvgIncludePadding:
		return "avg_include_padding"
	case AlgAvgExcludePadding:
		return "avg_exclude_padding"
	default:
		return "unknown"
	}
}

// IsAverage reports whether the algorithm is one of the averaging kinds.
func (a Algorithm) IsAverage() bool {
	return a == AlgAvgIncludePadding || a == AlgAvgExcludePadding
}

// PropKind selects what the compiled plan must support.
//
// Training-capable max-pooling plans produce a workspace recording which
// input position fed each output, so the backward plan can route gradients.
// Inference plans skip that bookkeeping.
type PropKind int

const (
	// Inference compiles a forward-only plan.
	Inference PropKind = iota
	// Training compiles a plan whose results can feed a backward pass.
	Training
)

// String returns a human-readable propagation-kind name.
func (k PropKind) String() string {
	switch k {
	case Inference:
		return "inference"
	case Training:
		return "training"
	default:
		return "unknown"
	}
}

// PoolingDescriptor is the fully-derived description of a 2-D pooling
// operation handed to an engine for compilation. All convention handling
// (global pooling, full-convention trailing padding) happens before a
// descriptor is built; engines see only effective geometry.
//
// Geometry arrays are ordered {height, width}. PadLow is the leading
// (top/left) padding, PadHigh the trailing (bottom/right) padding; the two
// may differ under the full convention.
type PoolingDescriptor struct {
	Alg     Algorithm
	Kind    PropKind
	Kernel  [2]int
	Stride  [2]int
	PadLow  [2]int
	PadHigh [2]int
	Src     tensor.Descriptor
	Dst     tensor.Descriptor
}

// Plan is a compiled, reusable execution artifact produced by an Engine.
// Plans are immutable after compilation and must only be run on the engine
// that compiled them.
type Plan interface {
	// Descriptor returns the descriptor this plan was compiled from.
	Descriptor() PoolingDescriptor

	// WorkspaceDescriptor describes the auxiliary buffer the plan produces
	// (forward) or consumes (backward), and whether one is required at all.
	WorkspaceDescriptor() (tensor.Descriptor, bool)
}

// Args carries the borrowed buffers a plan runs against. Which fields must
// be set depends on the plan: forward plans read Src and write Dst (plus
// Workspace when required); backward plans read DiffDst and write DiffSrc
// (consuming Workspace when required).
type Args struct {
	Src       *tensor.RawTensor
	Dst       *tensor.RawTensor
	DiffSrc   *tensor.RawTensor
	DiffDst   *tensor.RawTensor
	Workspace *tensor.RawTensor
}

// Engine compiles pooling descriptors into plans and executes them.
//
// Engines are stateless from the caller's point of view apart from whatever
// compilation caches they keep internally; Run is synchronous and returns
// only after Dst (or DiffSrc) has been fully written.
type Engine interface {
	// Name returns the short engine name, e.g. "native".
	Name() string

	// Device returns the device this engine computes on.
	Device() tensor.Device

	// CompilePoolingForward builds a forward execution plan.
	CompilePoolingForward(desc PoolingDescriptor) (Plan, error)

	// CompilePoolingBackward builds a backward execution plan. The forward
	// plan is passed as a construction hint: an engine may reuse its shape
	// and format decisions to guarantee the two plans stay compatible.
	CompilePoolingBackward(desc PoolingDescriptor, fwd Plan) (Plan, error)

	// Run executes a compiled plan against the given argument set.
	Run(plan Plan, args Args) error
}
