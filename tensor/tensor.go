// Copyright 2026 Kiln ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the public API for Kiln's tensor representation.
//
// The package re-exports the raw tensor type the operator cores compute on:
//   - RawTensor: reference-counted NCHW tensor buffer
//   - Descriptor: comparable structural summary used as a cache key component
//   - Shape, DataType, Device, Layout: core type definitions
package tensor

import (
	"github.com/kiln-ml/kiln/internal/tensor"
)

// DataType represents the underlying data type of a tensor.
type DataType = tensor.DataType

// Data type constants.
const (
	Float32 DataType = tensor.Float32
	Float64 DataType = tensor.Float64
	Float16 DataType = tensor.Float16
	Int32   DataType = tensor.Int32
)

// Device represents the device where tensor data resides.
type Device = tensor.Device

// Device constants.
const (
	CPU    Device = tensor.CPU
	WebGPU Device = tensor.WebGPU
)

// Layout tags the physical arrangement of tensor memory.
type Layout = tensor.Layout

// Layout constants.
const (
	LayoutCanonical Layout = tensor.LayoutCanonical
	LayoutBlocked8c Layout = tensor.LayoutBlocked8c
)

// Shape represents the dimensions of a tensor.
// Example: Shape{2, 3, 4} represents a 3D tensor with dimensions 2×3×4.
type Shape = tensor.Shape

// RawTensor is the low-level tensor representation operator cores borrow.
type RawTensor = tensor.RawTensor

// Descriptor is a comparable structural summary of a tensor: shape, dtype,
// layout and device, without the data.
type Descriptor = tensor.Descriptor

// MaxRank is the largest tensor rank a Descriptor can represent.
const MaxRank = tensor.MaxRank

// NewRaw creates a zero-initialized tensor in canonical layout.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	return tensor.NewRaw(shape, dtype, device)
}

// Describe summarizes a tensor into its comparable Descriptor.
func Describe(r *RawTensor) Descriptor {
	return tensor.Describe(r)
}
