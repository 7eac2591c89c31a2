//go:build !windows

// Package webgpu implements the pooling engine on GPU via WebGPU compute
// pipelines.
//
// On platforms without the wgpu native runtime this package compiles to a
// stub whose constructor reports that the engine is unavailable.
package webgpu

import (
	"github.com/pkg/errors"

	"github.com/kiln-ml/kiln/internal/backend"
	"github.com/kiln-ml/kiln/internal/tensor"
)

var errUnavailable = errors.New("webgpu: engine requires the wgpu native runtime (windows builds only)")

// Engine is the WebGPU engine stub for platforms without the wgpu runtime.
type Engine struct{}

var _ backend.Engine = (*Engine)(nil)

// New reports that the WebGPU engine is unavailable on this platform.
func New() (*Engine, error) {
	return nil, errUnavailable
}

// Name returns the engine name.
func (e *Engine) Name() string {
	return "webgpu"
}

// Device returns the device this engine computes on.
func (e *Engine) Device() tensor.Device {
	return tensor.WebGPU
}

// Release frees the underlying WebGPU resources.
func (e *Engine) Release() {}

// CompilePoolingForward is unavailable on this platform.
func (e *Engine) CompilePoolingForward(backend.PoolingDescriptor) (backend.Plan, error) {
	return nil, errUnavailable
}

// CompilePoolingBackward is unavailable on this platform.
func (e *Engine) CompilePoolingBackward(backend.PoolingDescriptor, backend.Plan) (backend.Plan, error) {
	return nil, errUnavailable
}

// Run is unavailable on this platform.
func (e *Engine) Run(backend.Plan, backend.Args) error {
	return errUnavailable
}
