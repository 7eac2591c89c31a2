// Copyright 2026 Kiln ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package backend provides the public API for Kiln's compute engine
// contract. Engines compile pooling descriptors into reusable plans and run
// them; the concrete engines live in backend/native and backend/webgpu.
package backend

import (
	"github.com/kiln-ml/kiln/internal/backend"
)

// Engine compiles pooling descriptors into plans and executes them.
type Engine = backend.Engine

// Plan is a compiled, reusable execution artifact produced by an Engine.
type Plan = backend.Plan

// Args carries the borrowed buffers a plan runs against.
type Args = backend.Args

// Algorithm selects the pooling reduction an engine compiles for.
type Algorithm = backend.Algorithm

// Algorithm constants.
const (
	AlgMax               Algorithm = backend.AlgMax
	AlgAvgIncludePadding Algorithm = backend.AlgAvgIncludePadding
	AlgAvgExcludePadding Algorithm = backend.AlgAvgExcludePadding
)

// PropKind selects what the compiled plan must support.
type PropKind = backend.PropKind

// Propagation kinds.
const (
	Inference PropKind = backend.Inference
	Training  PropKind = backend.Training
)

// PoolingDescriptor is the fully-derived description of a 2-D pooling
// operation handed to an engine for compilation.
type PoolingDescriptor = backend.PoolingDescriptor
