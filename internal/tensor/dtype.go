// Package tensor provides the raw tensor representation shared by the Kiln
// compute engines and operator cores.
package tensor

import "github.com/x448/float16"

// DataType represents runtime type information for tensors.
type DataType int

// Supported data types for tensors.
const (
	Float32 DataType = iota
	Float64
	Float16
	Int32
)

// Size returns the byte size of the data type.
func (dt DataType) Size() int {
	switch dt {
	case Float32, Int32:
		return 4
	case Float64:
		return 8
	case Float16:
		return 2
	default:
		panic("unknown data type")
	}
}

// String returns a human-readable name for the data type.
func (dt DataType) String() string {
	switch dt {
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Float16:
		return "float16"
	case Int32:
		return "int32"
	default:
		return "unknown"
	}
}

// Float16FromFloat32 converts a float32 value to its IEEE 754 half-precision
// bit pattern, as stored in Float16 tensors.
func Float16FromFloat32(v float32) uint16 {
	return float16.Fromfloat32(v).Bits()
}

// Float16ToFloat32 converts a stored half-precision bit pattern back to float32.
func Float16ToFloat32(bits uint16) float32 {
	return float16.Frombits(bits).Float32()
}
