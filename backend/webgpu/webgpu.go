// Copyright 2026 Kiln ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package webgpu provides the GPU pooling engine backed by WebGPU compute
// pipelines. On platforms without the wgpu native runtime New returns an
// error.
package webgpu

import (
	"github.com/kiln-ml/kiln/backend"
	"github.com/kiln-ml/kiln/internal/backend/webgpu"
)

// Engine is the WebGPU engine.
type Engine = webgpu.Engine

// Compile-time check that Engine implements backend.Engine.
var _ backend.Engine = (*Engine)(nil)

// New creates a WebGPU engine, initializing the adapter and device.
func New() (*Engine, error) {
	return webgpu.New()
}
