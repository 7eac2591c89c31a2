// Copyright 2026 Kiln ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package pooling provides the public API for Kiln's 2-D spatial pooling
// operator core.
//
// Pooling runs through compiled plans: an OpContext resolves each request to
// a cached executor (compiling one on first use) and runs it against
// borrowed tensors.
//
// Example:
//
//	eng := native.New()
//	ctx := pooling.NewOpContext(eng, false)
//	params := pooling.NewParams(pooling.Max, [2]int{2, 2}, [2]int{2, 2}, [2]int{0, 0})
//	err := pooling.Forward(ctx, params, input, pooling.WriteTo, output, nil)
package pooling

import (
	"github.com/kiln-ml/kiln/internal/backend"
	"github.com/kiln-ml/kiln/internal/pooling"
	"github.com/kiln-ml/kiln/internal/tensor"
)

// Engine compiles and runs pooling plans. Engines live in the backend
// packages; see backend/native and backend/webgpu.
type Engine = backend.Engine

// Params is the user-facing pooling configuration.
type Params = pooling.Params

// PoolType selects the pooling reduction.
type PoolType = pooling.PoolType

// Supported pooling reductions.
const (
	Max PoolType = pooling.Max
	Avg PoolType = pooling.Avg
)

// Convention selects how trailing input elements that do not fill a whole
// window are treated.
type Convention = pooling.Convention

// Pooling conventions.
const (
	Valid Convention = pooling.Valid
	Full  Convention = pooling.Full
)

// WriteMode is the caller's write policy for a destination buffer.
type WriteMode = pooling.WriteMode

// Write modes.
const (
	WriteSkip       WriteMode = pooling.WriteSkip
	WriteTo         WriteMode = pooling.WriteTo
	WriteAccumulate WriteMode = pooling.WriteAccumulate
)

// OpContext carries the engine, training flag and executor cache for a
// sequence of pooling invocations. It is confined to a single goroutine.
type OpContext = pooling.OpContext

// Cache holds compiled executors keyed by structural signature.
type Cache = pooling.Cache

// ForwardExecutor is a compiled, reusable forward pooling operation.
type ForwardExecutor = pooling.ForwardExecutor

// BackwardExecutor is a compiled, reusable backward pooling operation.
type BackwardExecutor = pooling.BackwardExecutor

// DefaultCacheCapacity is the executor cache bound NewOpContext uses.
const DefaultCacheCapacity = pooling.DefaultCacheCapacity

// Sentinel errors, matchable with errors.Is.
var (
	ErrConfiguration    = pooling.ErrConfiguration
	ErrMissingWorkspace = pooling.ErrMissingWorkspace
	ErrInternal         = pooling.ErrInternal
)

// NewParams builds Params with the averaging default (padded positions
// included in the divisor).
func NewParams(poolType PoolType, kernel, stride, pad [2]int) Params {
	return pooling.NewParams(poolType, kernel, stride, pad)
}

// NewOpContext builds an OpContext with a cache of DefaultCacheCapacity.
func NewOpContext(engine Engine, training bool) *OpContext {
	return pooling.NewOpContext(engine, training)
}

// NewCache builds an executor cache bounded to capacity entries per
// direction. A capacity of 0 disables eviction.
func NewCache(capacity int) *Cache {
	return pooling.NewCache(capacity)
}

// RequiresWorkspace reports whether a forward call with these parameters in
// the given training mode must supply a workspace buffer.
func RequiresWorkspace(params Params, training bool) bool {
	return pooling.RequiresWorkspace(params, training)
}

// OutputShape derives the NCHW output shape for the given input shape.
func OutputShape(params Params, input tensor.Shape) (tensor.Shape, error) {
	return pooling.OutputShape(params, input)
}

// FullConventionPad computes the trailing padding for one spatial axis under
// the full pooling convention.
func FullConventionPad(x, padl, padr, k, s int) int {
	return pooling.FullConventionPad(x, padl, padr, k, s)
}

// Forward resolves and runs the forward pooling operation for this request.
func Forward(ctx *OpContext, params Params, input *tensor.RawTensor, mode WriteMode,
	output, workspace *tensor.RawTensor) error {
	return pooling.Forward(ctx, params, input, mode, output, workspace)
}

// Backward resolves and runs the backward pooling operation for this
// request.
func Backward(ctx *OpContext, params Params, outputGrad, inputData, workspace *tensor.RawTensor,
	mode WriteMode, inputGrad *tensor.RawTensor) error {
	return pooling.Backward(ctx, params, outputGrad, inputData, workspace, mode, inputGrad)
}
