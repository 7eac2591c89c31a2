package tensor

import (
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"
)

// Device represents the compute device for tensor operations.
type Device int

// Supported compute devices.
const (
	CPU Device = iota
	WebGPU
)

// String returns a human-readable device name.
func (d Device) String() string {
	switch d {
	case CPU:
		return "CPU"
	case WebGPU:
		return "WebGPU"
	default:
		return "Unknown"
	}
}

// tensorBuffer is a reference-counted shared buffer.
// This enables cheap views and cloning without copying memory.
type tensorBuffer struct {
	data     []byte
	refCount atomic.Int32
	mu       sync.Mutex // For safe deallocation
}

// newTensorBuffer creates a new reference-counted buffer with refCount = 1.
func newTensorBuffer(size int) *tensorBuffer {
	buf := &tensorBuffer{
		data: make([]byte, size),
	}
	buf.refCount.Store(1)
	return buf
}

// addRef increments the reference count (for Clone and View operations).
func (tb *tensorBuffer) addRef() {
	tb.refCount.Add(1)
}

// release decrements the reference count and deallocates if it reaches 0.
func (tb *tensorBuffer) release() {
	if tb.refCount.Add(-1) == 0 {
		tb.mu.Lock()
		defer tb.mu.Unlock()
		tb.data = nil
	}
}

// RawTensor is the low-level tensor representation.
//
// Executors borrow RawTensors for the duration of a synchronous call;
// ownership and lifetime stay with the caller.
type RawTensor struct {
	buffer *tensorBuffer // Shared reference-counted buffer
	shape  Shape         // Logical tensor dimensions
	stride []int         // Memory strides in elements (row-major)
	dtype  DataType      // Runtime type information
	device Device        // Compute device
	layout Layout        // Physical memory arrangement
	offset int           // Element offset for views
}

// NewRaw creates a new RawTensor with the given shape and type, in canonical
// layout. Memory is allocated and zero-initialized.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}

	numElements := shape.NumElements()
	byteSize := numElements * dtype.Size()

	return &RawTensor{
		buffer: newTensorBuffer(byteSize),
		shape:  shape.Clone(),
		stride: shape.ComputeStrides(),
		dtype:  dtype,
		device: device,
		layout: LayoutCanonical,
		offset: 0,
	}, nil
}

// Shape returns the tensor's logical shape.
func (r *RawTensor) Shape() Shape {
	return r.shape
}

// Strides returns the tensor's memory strides in elements.
func (r *RawTensor) Strides() []int {
	return r.stride
}

// DType returns the tensor's data type.
func (r *RawTensor) DType() DataType {
	return r.dtype
}

// Device returns the tensor's compute device.
func (r *RawTensor) Device() Device {
	return r.device
}

// Layout returns the tensor's physical memory layout tag.
func (r *RawTensor) Layout() Layout {
	return r.layout
}

// NumElements returns the total number of elements.
func (r *RawTensor) NumElements() int {
	return r.shape.NumElements()
}

// ByteSize returns the total memory size in bytes.
func (r *RawTensor) ByteSize() int {
	return r.NumElements() * r.dtype.Size()
}

// Data returns the raw byte slice backing this tensor, starting at its view
// offset.
// WARNING: Direct access to underlying memory. Use with caution.
func (r *RawTensor) Data() []byte {
	return r.buffer.data[r.offset*r.dtype.Size():]
}

// AsFloat32 interprets the data as []float32.
// Panics if the tensor's dtype is not Float32.
func (r *RawTensor) AsFloat32() []float32 {
	if r.dtype != Float32 {
		panic(fmt.Sprintf("tensor dtype is %s, not float32", r.dtype))
	}
	data := r.Data()
	//nolint:gosec // unsafe.Slice for zero-copy access, bounds checked by NumElements()
	return unsafe.Slice((*float32)(unsafe.Pointer(&data[0])), r.NumElements())
}

// AsFloat64 interprets the data as []float64.
// Panics if the tensor's dtype is not Float64.
func (r *RawTensor) AsFloat64() []float64 {
	if r.dtype != Float64 {
		panic(fmt.Sprintf("tensor dtype is %s, not float64", r.dtype))
	}
	data := r.Data()
	//nolint:gosec // unsafe.Slice for zero-copy access, bounds checked by NumElements()
	return unsafe.Slice((*float64)(unsafe.Pointer(&data[0])), r.NumElements())
}

// AsFloat16Bits interprets the data as raw half-precision bit patterns.
// Use Float16ToFloat32 / Float16FromFloat32 to convert individual values.
// Panics if the tensor's dtype is not Float16.
func (r *RawTensor) AsFloat16Bits() []uint16 {
	if r.dtype != Float16 {
		panic(fmt.Sprintf("tensor dtype is %s, not float16", r.dtype))
	}
	data := r.Data()
	//nolint:gosec // unsafe.Slice for zero-copy access, bounds checked by NumElements()
	return unsafe.Slice((*uint16)(unsafe.Pointer(&data[0])), r.NumElements())
}

// AsInt32 interprets the data as []int32.
// Panics if the tensor's dtype is not Int32.
func (r *RawTensor) AsInt32() []int32 {
	if r.dtype != Int32 {
		panic(fmt.Sprintf("tensor dtype is %s, not int32", r.dtype))
	}
	data := r.Data()
	//nolint:gosec // unsafe.Slice for zero-copy access, bounds checked by NumElements()
	return unsafe.Slice((*int32)(unsafe.Pointer(&data[0])), r.NumElements())
}

// Clone creates a shallow copy of the RawTensor (shares the buffer with
// reference counting).
func (r *RawTensor) Clone() *RawTensor {
	r.buffer.addRef()
	return &RawTensor{
		buffer: r.buffer,
		shape:  r.shape.Clone(),
		stride: append([]int(nil), r.stride...),
		dtype:  r.dtype,
		device: r.device,
		layout: r.layout,
		offset: r.offset,
	}
}

// Release decrements the reference count and deallocates if it reaches 0.
func (r *RawTensor) Release() {
	r.buffer.release()
}

// Narrow returns a view of a contiguous band [start, start+length) along the
// outermost dimension. The view shares the underlying buffer.
// Only dimension 0 is supported: narrowing inner dimensions would produce a
// non-contiguous view the flat accessors cannot represent.
func (r *RawTensor) Narrow(start, length int) (*RawTensor, error) {
	if len(r.shape) == 0 {
		return nil, fmt.Errorf("cannot narrow a scalar tensor")
	}
	if start < 0 || length <= 0 || start+length > r.shape[0] {
		return nil, fmt.Errorf("narrow range [%d, %d) out of bounds for dimension 0 (size %d)",
			start, start+length, r.shape[0])
	}

	shape := r.shape.Clone()
	shape[0] = length

	r.buffer.addRef()
	return &RawTensor{
		buffer: r.buffer,
		shape:  shape,
		stride: append([]int(nil), r.stride...),
		dtype:  r.dtype,
		device: r.device,
		layout: r.layout,
		offset: r.offset + start*r.stride[0],
	}, nil
}

// IsView reports whether this tensor is a view into a larger buffer.
func (r *RawTensor) IsView() bool {
	return r.offset != 0
}

// IsCanonical reports whether the tensor is in canonical layout and backed by
// its own full buffer, i.e. safe to hand to a plan compiled for canonical
// memory without reordering.
func (r *RawTensor) IsCanonical() bool {
	return r.layout == LayoutCanonical && !r.IsView()
}

// Canonicalize materializes the tensor into canonical layout.
//
// Non-canonical inputs show up in two ways: views into a larger buffer, and
// engine-preferred blocked layouts. Both are copied into a fresh canonical
// tensor; an already-canonical tensor is returned unchanged.
func (r *RawTensor) Canonicalize() (*RawTensor, error) {
	if r.IsCanonical() {
		return r, nil
	}

	switch r.layout {
	case LayoutCanonical:
		// A view: the band is contiguous, so a flat copy suffices.
		out, err := NewRaw(r.shape, r.dtype, r.device)
		if err != nil {
			return nil, err
		}
		copy(out.Data(), r.Data()[:r.ByteSize()])
		return out, nil
	case LayoutBlocked8c:
		return r.unblock()
	default:
		return nil, fmt.Errorf("cannot canonicalize layout %s", r.layout)
	}
}

// ToBlocked8c converts a canonical 4-D NCHW tensor to the nChw8c blocked
// layout. The channel count must be a multiple of the block size.
func (r *RawTensor) ToBlocked8c() (*RawTensor, error) {
	if r.layout != LayoutCanonical {
		return nil, fmt.Errorf("ToBlocked8c requires canonical input, got %s", r.layout)
	}
	if len(r.shape) != 4 {
		return nil, fmt.Errorf("blocked layout requires a 4D tensor, got %dD", len(r.shape))
	}
	if r.shape[1]%channelBlock != 0 {
		return nil, fmt.Errorf("blocked layout requires channels divisible by %d, got %d",
			channelBlock, r.shape[1])
	}
	if r.dtype != Float32 {
		return nil, fmt.Errorf("blocked layout supports float32 only, got %s", r.dtype)
	}

	out, err := NewRaw(r.shape, r.dtype, r.device)
	if err != nil {
		return nil, err
	}
	out.layout = LayoutBlocked8c

	N, C, H, W := r.shape[0], r.shape[1], r.shape[2], r.shape[3]
	src := r.AsFloat32()
	dst := out.AsFloat32()
	plane := C * H * W
	for n := 0; n < N; n++ {
		for c := 0; c < C; c++ {
			for h := 0; h < H; h++ {
				for w := 0; w < W; w++ {
					dst[n*plane+blockedIndex(c, h, w, H, W)] = src[((n*C+c)*H+h)*W+w]
				}
			}
		}
	}
	return out, nil
}

// unblock converts an nChw8c tensor back to canonical NCHW.
func (r *RawTensor) unblock() (*RawTensor, error) {
	if len(r.shape) != 4 {
		return nil, fmt.Errorf("blocked layout requires a 4D tensor, got %dD", len(r.shape))
	}

	out, err := NewRaw(r.shape, r.dtype, r.device)
	if err != nil {
		return nil, err
	}

	N, C, H, W := r.shape[0], r.shape[1], r.shape[2], r.shape[3]
	src := r.AsFloat32()
	dst := out.AsFloat32()
	plane := C * H * W
	for n := 0; n < N; n++ {
		for c := 0; c < C; c++ {
			for h := 0; h < H; h++ {
				for w := 0; w < W; w++ {
					dst[((n*C+c)*H+h)*W+w] = src[n*plane+blockedIndex(c, h, w, H, W)]
				}
			}
		}
	}
	return out, nil
}

// String returns a human-readable representation of the tensor.
func (r *RawTensor) String() string {
	return fmt.Sprintf("RawTensor[%s]%v %s on %s", r.dtype, r.shape, r.layout, r.device)
}
