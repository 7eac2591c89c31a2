//go:build windows

// Package webgpu implements the pooling engine on GPU via WebGPU compute
// pipelines. Uses go-webgpu (github.com/go-webgpu/webgpu) for zero-CGO
// WebGPU bindings.
//
// A compiled plan is a cached compute pipeline plus the frozen uniform
// parameters of its geometry; Run uploads the borrowed buffers, dispatches
// the pipeline and reads the result back into host memory.
package webgpu

import (
	"encoding/binary"
	"sync"
	"unsafe"

	"github.com/go-webgpu/webgpu/wgpu"
	"github.com/pkg/errors"

	"github.com/kiln-ml/kiln/internal/backend"
	"github.com/kiln-ml/kiln/internal/tensor"
)

const workgroupSize = 256

// Engine implements pooling on GPU using WebGPU.
type Engine struct {
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue

	// Shader and pipeline cache
	shaders   map[string]*wgpu.ShaderModule
	pipelines map[string]*wgpu.ComputePipeline
	mu        sync.RWMutex
}

// Compile-time check that Engine implements backend.Engine.
var _ backend.Engine = (*Engine)(nil)

// New creates a new WebGPU engine.
// Returns an error if WebGPU is not available or initialization fails.
func New() (engine *Engine, err error) {
	// Recover from panic if the wgpu native library is not found.
	defer func() {
		if r := recover(); r != nil {
			engine = nil
			err = errors.Errorf("webgpu: native library not available: %v", r)
		}
	}()

	instance := wgpu.CreateInstance(nil)
	adapter, adapterErr := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if adapterErr != nil {
		instance.Release()
		return nil, errors.Wrap(adapterErr, "webgpu: failed to request adapter")
	}

	device, deviceErr := adapter.RequestDevice(nil)
	if deviceErr != nil {
		adapter.Release()
		instance.Release()
		return nil, errors.Wrap(deviceErr, "webgpu: failed to request device")
	}

	queue := device.GetQueue()
	if queue == nil {
		device.Release()
		adapter.Release()
		instance.Release()
		return nil, errors.New("webgpu: failed to get device queue")
	}

	return &Engine{
		instance:  instance,
		adapter:   adapter,
		device:    device,
		queue:     queue,
		shaders:   make(map[string]*wgpu.ShaderModule),
		pipelines: make(map[string]*wgpu.ComputePipeline),
	}, nil
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
func (e *Engine) Release() {
	e.queue = nil
	if e.device != nil {
		e.device.Release()
	}
	if e.adapter != nil {
		e.adapter.Release()
	}
	if e.instance != nil {
		e.instance.Release()
	}
}

// CompilePoolingForward builds a forward plan around a cached compute
// pipeline.
func (e *Engine) CompilePoolingForward(desc backend.PoolingDescriptor) (backend.Plan, error) {
	if err := validateDescriptor(desc); err != nil {
		return nil, err
	}

	name, code := "pool_avg_fwd", avgForwardShader
	if desc.Alg == backend.AlgMax {
		name, code = "pool_max_fwd", maxForwardShader
	}
	pipeline := e.getOrCreatePipeline(name, code)

	return &forwardPlan{
		desc:          desc,
		pipeline:      pipeline,
		uniform:       packUniform(desc),
		withWorkspace: desc.Alg == backend.AlgMax && desc.Kind == backend.Training,
	}, nil
}

// CompilePoolingBackward builds a backward plan. The forward hint is not
// needed here: pipelines are keyed by shader and all geometry travels in
// the uniform block, so compatibility with the forward plan is structural.
func (e *Engine) CompilePoolingBackward(desc backend.PoolingDescriptor, fwd backend.Plan) (backend.Plan, error) {
	if err := validateDescriptor(desc); err != nil {
		return nil, err
	}

	name, code := "pool_avg_bwd", avgBackwardShader
	if desc.Alg == backend.AlgMax {
		name, code = "pool_max_bwd", maxBackwardShader
	}
	pipeline := e.getOrCreatePipeline(name, code)

	return &backwardPlan{
		desc:          desc,
		pipeline:      pipeline,
		uniform:       packUniform(desc),
		withWorkspace: desc.Alg == backend.AlgMax,
	}, nil
}

// Run executes a compiled plan synchronously, including host/device
// transfers for every borrowed buffer.
func (e *Engine) Run(plan backend.Plan, args backend.Args) error {
	switch p := plan.(type) {
	case *forwardPlan:
		return e.runForward(p, args)
	case *backwardPlan:
		return e.runBackward(p, args)
	default:
		return errors.Errorf("webgpu: unknown plan type %T", plan)
	}
}

func (e *Engine) runForward(p *forwardPlan, args backend.Args) error {
	if args.Src == nil || args.Dst == nil {
		return errors.New("webgpu: forward plan requires src and dst buffers")
	}
	if p.withWorkspace && args.Workspace == nil {
		return errors.New("webgpu: forward plan compiled with workspace but none supplied")
	}

	numOut := p.desc.Dst.NumElements()

	srcBuf := e.createBuffer(args.Src.Data()[:args.Src.ByteSize()], wgpu.BufferUsageStorage|wgpu.BufferUsageCopySrc)
	defer srcBuf.Release()

	//nolint:gosec // G115: Safe conversion, ByteSize() returns non-negative int
	dstSize := uint64(args.Dst.ByteSize())
	dstBuf := e.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst,
		Size:  dstSize,
	})
	defer dstBuf.Release()

	uniformBuf := e.createUniformBuffer(p.uniform)
	defer uniformBuf.Release()

	entries := []wgpu.BindGroupEntry{
		wgpu.BufferBindingEntry(0, srcBuf, 0, uint64(args.Src.ByteSize())),
		wgpu.BufferBindingEntry(1, dstBuf, 0, dstSize),
	}

	// The max shader always declares the workspace binding; inference-mode
	// plans get a scratch buffer that is simply never read back.
	var wsBuf *wgpu.Buffer
	wsSize := uint64(numOut * 4)
	if p.desc.Alg == backend.AlgMax {
		wsBuf = e.device.CreateBuffer(&wgpu.BufferDescriptor{
			Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst,
			Size:  wsSize,
		})
		defer wsBuf.Release()
		entries = append(entries,
			wgpu.BufferBindingEntry(2, wsBuf, 0, wsSize),
			wgpu.BufferBindingEntry(3, uniformBuf, 0, uniformSize))
	} else {
		entries = append(entries, wgpu.BufferBindingEntry(2, uniformBuf, 0, uniformSize))
	}

	if err := e.dispatch(p.pipeline, entries, numOut); err != nil {
		return err
	}

	dstData, err := e.readBuffer(dstBuf, dstSize)
	if err != nil {
		return err
	}
	copy(args.Dst.Data(), dstData)

	if p.withWorkspace {
		wsData, err := e.readBuffer(wsBuf, wsSize)
		if err != nil {
			return err
		}
		// u32 flat indices and int32 workspace entries share a bit pattern.
		copy(args.Workspace.Data(), wsData)
	}
	return nil
}

func (e *Engine) runBackward(p *backwardPlan, args backend.Args) error {
	if args.DiffDst == nil || args.DiffSrc == nil {
		return errors.New("webgpu: backward plan requires diff-dst and diff-src buffers")
	}
	if p.withWorkspace && args.Workspace == nil {
		return errors.New("webgpu: backward plan compiled with workspace but none supplied")
	}

	numIn := p.desc.Src.NumElements()

	diffDstBuf := e.createBuffer(args.DiffDst.Data()[:args.DiffDst.ByteSize()], wgpu.BufferUsageStorage|wgpu.BufferUsageCopySrc)
	defer diffDstBuf.Release()

	//nolint:gosec // G115: Safe conversion, ByteSize() returns non-negative int
	diffSrcSize := uint64(args.DiffSrc.ByteSize())
	diffSrcBuf := e.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst,
		Size:  diffSrcSize,
	})
	defer diffSrcBuf.Release()

	uniformBuf := e.createUniformBuffer(p.uniform)
	defer uniformBuf.Release()

	entries := []wgpu.BindGroupEntry{
		wgpu.BufferBindingEntry(0, diffDstBuf, 0, uint64(args.DiffDst.ByteSize())),
		wgpu.BufferBindingEntry(1, diffSrcBuf, 0, diffSrcSize),
	}

	if p.withWorkspace {
		wsBuf := e.createBuffer(args.Workspace.Data()[:args.Workspace.ByteSize()], wgpu.BufferUsageStorage|wgpu.BufferUsageCopySrc)
		defer wsBuf.Release()
		entries = append(entries,
			wgpu.BufferBindingEntry(2, wsBuf, 0, uint64(args.Workspace.ByteSize())),
			wgpu.BufferBindingEntry(3, uniformBuf, 0, uniformSize))
	} else {
		entries = append(entries, wgpu.BufferBindingEntry(2, uniformBuf, 0, uniformSize))
	}

	if err := e.dispatch(p.pipeline, entries, numIn); err != nil {
		return err
	}

	diffSrcData, err := e.readBuffer(diffSrcBuf, diffSrcSize)
	if err != nil {
		return err
	}
	copy(args.DiffSrc.Data(), diffSrcData)
	return nil
}

// getOrCreatePipeline returns a cached ComputePipeline or compiles a new
// one from the shader source.
func (e *Engine) getOrCreatePipeline(name, code string) *wgpu.ComputePipeline {
	e.mu.RLock()
	if pipeline, exists := e.pipelines[name]; exists {
		e.mu.RUnlock()
		return pipeline
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()
	if pipeline, exists := e.pipelines[name]; exists {
		return pipeline
	}

	shader, exists := e.shaders[name]
	if !exists {
		shader = e.device.CreateShaderModuleWGSL(code)
		e.shaders[name] = shader
	}

	// Auto layout (nil layout)
	pipeline := e.device.CreateComputePipelineSimple(nil, shader, "main")
	e.pipelines[name] = pipeline
	return pipeline
}

// dispatch runs one compute pass over total invocations.
func (e *Engine) dispatch(pipeline *wgpu.ComputePipeline, entries []wgpu.BindGroupEntry, total int) error {
	bindGroupLayout := pipeline.GetBindGroupLayout(0)
	bindGroup := e.device.CreateBindGroupSimple(bindGroupLayout, entries)
	defer bindGroup.Release()

	encoder := e.device.CreateCommandEncoder(nil)
	computePass := encoder.BeginComputePass(nil)

	computePass.SetPipeline(pipeline)
	computePass.SetBindGroup(0, bindGroup, nil)

	//nolint:gosec // G115: Safe conversion, workgroup count is non-negative
	workgroups := uint32((total + workgroupSize - 1) / workgroupSize)
	computePass.DispatchWorkgroups(workgroups, 1, 1)
	computePass.End()

	cmdBuffer := encoder.Finish(nil)
	e.queue.Submit(cmdBuffer)
	return nil
}

// createBuffer creates a GPU buffer and uploads initial data.
func (e *Engine) createBuffer(data []byte, usage wgpu.BufferUsage) *wgpu.Buffer {
	size := uint64(len(data))

	buffer := e.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            usage,
		Size:             size,
		MappedAtCreation: wgpu.True,
	})

	mappedPtr := buffer.GetMappedRange(0, size)
	//nolint:gosec // unsafe.Slice for zero-copy conversion from unsafe.Pointer
	mappedSlice := unsafe.Slice((*byte)(mappedPtr), size)
	copy(mappedSlice, data)
	buffer.Unmap()

	return buffer
}

// createUniformBuffer creates a uniform buffer with 16-byte alignment.
func (e *Engine) createUniformBuffer(data []byte) *wgpu.Buffer {
	size := uint64(len(data))
	alignedSize := (size + 15) &^ 15

	buffer := e.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
		Size:             alignedSize,
		MappedAtCreation: wgpu.True,
	})

	mappedPtr := buffer.GetMappedRange(0, alignedSize)
	//nolint:gosec // unsafe.Slice for zero-copy conversion from unsafe.Pointer
	mappedSlice := unsafe.Slice((*byte)(mappedPtr), alignedSize)
	copy(mappedSlice, data)
	buffer.Unmap()

	return buffer
}

// readBuffer reads data back from a GPU buffer to CPU memory.
// Uses a staging buffer since storage buffers can't be mapped directly.
func (e *Engine) readBuffer(srcBuffer *wgpu.Buffer, size uint64) ([]byte, error) {
	stagingBuffer := e.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
		Size:  size,
	})
	defer stagingBuffer.Release()

	encoder := e.device.CreateCommandEncoder(nil)
	encoder.CopyBufferToBuffer(srcBuffer, 0, stagingBuffer, 0, size)
	cmdBuffer := encoder.Finish(nil)
	e.queue.Submit(cmdBuffer)

	err := stagingBuffer.MapAsync(e.device, wgpu.MapModeRead, 0, size)
	if err != nil {
		return nil, errors.Wrap(err, "webgpu: failed to map staging buffer")
	}

	mappedPtr := stagingBuffer.GetMappedRange(0, size)
	//nolint:gosec // unsafe.Slice for zero-copy conversion from unsafe.Pointer
	mappedSlice := unsafe.Slice((*byte)(mappedPtr), size)
	result := make([]byte, size)
	copy(result, mappedSlice)

	stagingBuffer.Unmap()
	return result, nil
}

// uniformSize is the padded byte size of the WGSL Params block.
const uniformSize = 64

// packUniform freezes a descriptor's geometry into the uniform block layout
// the shaders declare.
func packUniform(desc backend.PoolingDescriptor) []byte {
	includePad := uint32(0)
	if desc.Alg == backend.AlgAvgIncludePadding {
		includePad = 1
	}

	fields := []uint32{
		uint32(desc.Src.Dims[0]), uint32(desc.Src.Dims[1]),
		uint32(desc.Src.Dims[2]), uint32(desc.Src.Dims[3]),
		uint32(desc.Dst.Dims[2]), uint32(desc.Dst.Dims[3]),
		uint32(desc.Kernel[0]), uint32(desc.Kernel[1]),
		uint32(desc.Stride[0]), uint32(desc.Stride[1]),
		uint32(desc.PadLow[0]), uint32(desc.PadLow[1]),
		includePad,
	}

	buf := make([]byte, uniformSize)
	for i, f := range fields {
		binary.LittleEndian.PutUint32(buf[i*4:], f)
	}
	return buf
}

// validateDescriptor checks what this engine can compile.
func validateDescriptor(desc backend.PoolingDescriptor) error {
	if desc.Src.Rank != 4 || desc.Dst.Rank != 4 {
		return errors.Errorf("webgpu: pooling requires 4D tensors, got src rank %d, dst rank %d",
			desc.Src.Rank, desc.Dst.Rank)
	}
	if desc.Src.DType != tensor.Float32 {
		return errors.Errorf("webgpu: only float32 is supported, got %s", desc.Src.DType)
	}
	if desc.Src.Layout != tensor.LayoutCanonical || desc.Dst.Layout != tensor.LayoutCanonical {
		return errors.Errorf("webgpu: plans compile for canonical layout only, got src %s, dst %s",
			desc.Src.Layout, desc.Dst.Layout)
	}
	return nil
}
