package tensor

import "fmt"

// MaxRank is the highest tensor rank a Descriptor can represent.
const MaxRank = 8

// Descriptor is a comparable structural summary of a tensor: shape, dtype,
// physical layout and device. It carries everything a compiled plan's
// identity depends on, and nothing about the tensor's contents.
//
// Descriptors are plain values usable as map keys. Two tensors with equal
// shape and dtype but different layout tags produce different descriptors,
// since a plan compiled for one physical layout cannot run on the other.
type Descriptor struct {
	Rank   int
	Dims   [MaxRank]int
	DType  DataType
	Layout Layout
	Device Device
}

// Describe builds the Descriptor for a tensor.
// Panics if the tensor's rank exceeds MaxRank.
func Describe(r *RawTensor) Descriptor {
	shape := r.Shape()
	if len(shape) > MaxRank {
		panic(fmt.Sprintf("tensor rank %d exceeds the maximum descriptor rank %d", len(shape), MaxRank))
	}

	d := Descriptor{
		Rank:   len(shape),
		DType:  r.DType(),
		Layout: r.Layout(),
		Device: r.Device(),
	}
	copy(d.Dims[:], shape)
	return d
}

// Shape reconstructs the logical shape described by this descriptor.
func (d Descriptor) Shape() Shape {
	return Shape(d.Dims[:d.Rank]).Clone()
}

// NumElements returns the number of elements in the described tensor.
func (d Descriptor) NumElements() int {
	return Shape(d.Dims[:d.Rank]).NumElements()
}

// String returns a human-readable summary, e.g. "float32[1 3 4 4] canonical".
func (d Descriptor) String() string {
	return fmt.Sprintf("%s%v %s", d.DType, d.Dims[:d.Rank], d.Layout)
}
