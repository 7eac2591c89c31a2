//go:build windows

package webgpu

import (
	"github.com/go-webgpu/webgpu/wgpu"

	"github.com/kiln-ml/kiln/internal/backend"
	"github.com/kiln-ml/kiln/internal/tensor"
)

// forwardPlan binds a forward descriptor to its compiled pipeline and the
// frozen uniform block.
type forwardPlan struct {
	desc          backend.PoolingDescriptor
	pipeline      *wgpu.ComputePipeline
	uniform       []byte
	withWorkspace bool
}

// Descriptor returns the descriptor this plan was compiled from.
func (p *forwardPlan) Descriptor() backend.PoolingDescriptor {
	return p.desc
}

// WorkspaceDescriptor describes the argmax workspace the plan writes, when
// it writes one.
func (p *forwardPlan) WorkspaceDescriptor() (tensor.Descriptor, bool) {
	if !p.withWorkspace {
		return tensor.Descriptor{}, false
	}
	return workspaceDescriptor(p.desc), true
}

// backwardPlan binds a backward descriptor to its compiled pipeline and the
// frozen uniform block.
type backwardPlan struct {
	desc          backend.PoolingDescriptor
	pipeline      *wgpu.ComputePipeline
	uniform       []byte
	withWorkspace bool
}

// Descriptor returns the descriptor this plan was compiled from.
func (p *backwardPlan) Descriptor() backend.PoolingDescriptor {
	return p.desc
}

// WorkspaceDescriptor describes the argmax workspace the plan consumes, when
// it consumes one.
func (p *backwardPlan) WorkspaceDescriptor() (tensor.Descriptor, bool) {
	if !p.withWorkspace {
		return tensor.Descriptor{}, false
	}
	return workspaceDescriptor(p.desc), true
}

// workspaceDescriptor derives the argmax workspace descriptor: one int32 per
// output element, canonical layout.
func workspaceDescriptor(desc backend.PoolingDescriptor) tensor.Descriptor {
	ws := desc.Dst
	ws.DType = tensor.Int32
	ws.Layout = tensor.LayoutCanonical
	return ws
}
