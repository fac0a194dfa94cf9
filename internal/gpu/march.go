//go:build !nogpu

package gpu

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/marcher"
	"github.com/gogpu/wgpu/hal"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"
)

// workgroupSize matches @workgroup_size in the march kernel. The
// dispatch rounds the invocation count up to the next full group and
// the kernel bounds-checks, so partial batches are safe.
const workgroupSize = 64

// Wire sizes of the instruction and result records.
const (
	instructionSize = 24 // 6 * sizeof(f32)
	resultSize      = 16 // 4 * sizeof(f32)
)

// fenceTimeout bounds the blocking wait for a dispatch to finish.
const fenceTimeout = 5 * time.Second

// MarchAccelerator runs the sphere-tracing loop on a compute device
// through wgpu/hal. It implements the marcher.Accelerator interface.
//
// Each MarchBatch call is one synchronous upload -> dispatch -> fence
// wait -> readback round trip; there is no double buffering and no
// overlap between frames. An in-flight dispatch is always waited on to
// completion.
type MarchAccelerator struct {
	mu sync.Mutex

	instance hal.Instance
	device   hal.Device
	queue    hal.Queue

	shader     hal.ShaderModule
	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipeline   hal.ComputePipeline

	gpuReady       bool
	externalDevice bool // true when using a shared device (don't destroy on Close)
}

var _ marcher.Accelerator = (*MarchAccelerator)(nil)

func (a *MarchAccelerator) Name() string { return "wgpu-march" }

// SetLogger accepts the logger propagated from marcher.SetLogger.
func (a *MarchAccelerator) SetLogger(l *slog.Logger) { setLogger(l) }

// Init brings up the device and compute pipeline. A failed GPU init is
// not fatal: the accelerator registers anyway and MarchBatch reports
// ErrFallbackToCPU until a shared device arrives via SetDeviceProvider.
func (a *MarchAccelerator) Init() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.initGPU(); err != nil {
		slogger().Warn("GPU init failed, marching will fall back to CPU", "err", err)
	}
	return nil
}

func (a *MarchAccelerator) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.destroyPipeline()
	if !a.externalDevice {
		if a.device != nil {
			a.device.Destroy()
			a.device = nil
		}
		if a.instance != nil {
			a.instance.Destroy()
			a.instance = nil
		}
	} else {
		// Shared resources are owned by the provider.
		a.device = nil
		a.instance = nil
	}
	a.queue = nil
	a.gpuReady = false
	a.externalDevice = false
}

// SetDeviceProvider switches the accelerator to a shared GPU device
// from an external provider (e.g. a gogpu window). The provider must
// expose HalDevice() any and HalQueue() any returning hal types.
func (a *MarchAccelerator) SetDeviceProvider(provider any) error {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return fmt.Errorf("march: provider does not expose HAL types")
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return fmt.Errorf("march: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return fmt.Errorf("march: provider HalQueue is not hal.Queue")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	// Drop resources we created ourselves.
	a.destroyPipeline()
	if !a.externalDevice && a.device != nil {
		a.device.Destroy()
	}
	if a.instance != nil {
		a.instance.Destroy()
		a.instance = nil
	}

	a.device = device
	a.queue = queue
	a.externalDevice = true

	if err := a.createPipeline(); err != nil {
		a.gpuReady = false
		return fmt.Errorf("march: create pipeline with shared device: %w", err)
	}
	a.gpuReady = true
	slogger().Info("switched to shared GPU device")
	return nil
}

// MarchBatch uploads the instruction buffer, dispatches the march
// kernel and blocks until the results are read back into out.
func (a *MarchAccelerator) MarchBatch(in []marcher.MarchInstruction, out []marcher.MarchResult) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.gpuReady {
		return marcher.ErrFallbackToCPU
	}
	if len(in) != len(out) {
		return fmt.Errorf("march: %d instructions but %d result slots", len(in), len(out))
	}
	if len(in) == 0 {
		return nil
	}
	return a.dispatch(in, out)
}

func (a *MarchAccelerator) dispatch(in []marcher.MarchInstruction, out []marcher.MarchResult) error {
	n := len(in)
	inBytes := encodeInstructions(in)
	outSize := uint64(n * resultSize)

	inBuf, err := a.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "march_instructions", Size: uint64(len(inBytes)),
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create instruction buffer: %w", err)
	}
	defer a.device.DestroyBuffer(inBuf)

	outBuf, err := a.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "march_results", Size: outSize,
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopySrc | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create result buffer: %w", err)
	}
	defer a.device.DestroyBuffer(outBuf)

	stagingBuf, err := a.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "march_staging", Size: outSize,
		Usage: gputypes.BufferUsageMapRead | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create staging buffer: %w", err)
	}
	defer a.device.DestroyBuffer(stagingBuf)

	a.queue.WriteBuffer(inBuf, 0, inBytes)
	a.queue.WriteBuffer(outBuf, 0, make([]byte, outSize))

	bindGroup, err := a.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label: "march_bind", Layout: a.bindLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{Buffer: inBuf.NativeHandle(), Offset: 0, Size: uint64(len(inBytes))}},
			{Binding: 1, Resource: gputypes.BufferBinding{Buffer: outBuf.NativeHandle(), Offset: 0, Size: outSize}},
		},
	})
	if err != nil {
		return fmt.Errorf("create bind group: %w", err)
	}
	defer a.device.DestroyBindGroup(bindGroup)

	encoder, err := a.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "march_encoder"})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("march"); err != nil {
		return fmt.Errorf("begin encoding: %w", err)
	}

	groups := (uint32(n) + workgroupSize - 1) / workgroupSize
	pass := encoder.BeginComputePass(&hal.ComputePassDescriptor{Label: "march_pass"})
	pass.SetPipeline(a.pipeline)
	pass.SetBindGroup(0, bindGroup, nil)
	pass.Dispatch(groups, 1, 1)
	pass.End()

	encoder.CopyBufferToBuffer(outBuf, stagingBuf, []hal.BufferCopy{
		{SrcOffset: 0, DstOffset: 0, Size: outSize},
	})
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("end encoding: %w", err)
	}
	defer a.device.FreeCommandBuffer(cmdBuf)

	fence, err := a.device.CreateFence()
	if err != nil {
		return fmt.Errorf("create fence: %w", err)
	}
	defer a.device.DestroyFence(fence)

	start := time.Now()
	if err := a.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	fenceOK, err := a.device.Wait(fence, 1, fenceTimeout)
	if err != nil || !fenceOK {
		return fmt.Errorf("wait for GPU: ok=%v err=%w", fenceOK, err)
	}

	readback := make([]byte, outSize)
	if err := a.queue.ReadBuffer(stagingBuf, 0, readback); err != nil {
		return fmt.Errorf("readback: %w", err)
	}
	decodeResults(readback, out)

	slogger().Debug("march batch complete",
		"rays", n, "workgroups", groups, "elapsed", time.Since(start))
	return nil
}

func (a *MarchAccelerator) initGPU() error {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return fmt.Errorf("vulkan backend not available")
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return fmt.Errorf("create instance: %w", err)
	}
	a.instance = instance

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		return fmt.Errorf("no GPU adapters found")
	}
	var selected *hal.ExposedAdapter
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
			break
		}
	}
	if selected == nil {
		selected = &adapters[0]
	}

	openDev, err := selected.Adapter.Open(gputypes.Features(0), gputypes.DefaultLimits())
	if err != nil {
		return fmt.Errorf("open device: %w", err)
	}
	a.device = openDev.Device
	a.queue = openDev.Queue

	if err := a.createPipeline(); err != nil {
		a.device.Destroy()
		a.device = nil
		a.queue = nil
		return fmt.Errorf("create pipeline: %w", err)
	}
	a.gpuReady = true
	slogger().Info("march accelerator initialized", "adapter", selected.Info.Name)
	return nil
}

func (a *MarchAccelerator) createPipeline() error {
	spirv, err := compileShader()
	if err != nil {
		return err
	}

	shader, err := a.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "march_kernel",
		Source: hal.ShaderSource{SPIRV: spirv},
	})
	if err != nil {
		return fmt.Errorf("create shader module: %w", err)
	}
	a.shader = shader

	bindLayout, err := a.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "march_bind_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{Binding: 0, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeReadOnlyStorage}},
			{Binding: 1, Visibility: gputypes.ShaderStageCompute, Buffer: &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage}},
		},
	})
	if err != nil {
		return fmt.Errorf("create bind group layout: %w", err)
	}
	a.bindLayout = bindLayout

	pipeLayout, err := a.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label: "march_pipe_layout", BindGroupLayouts: []hal.BindGroupLayout{a.bindLayout},
	})
	if err != nil {
		return fmt.Errorf("create pipeline layout: %w", err)
	}
	a.pipeLayout = pipeLayout

	pipeline, err := a.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label: "march_pipeline", Layout: a.pipeLayout,
		Compute: hal.ComputeState{Module: a.shader, EntryPoint: "main"},
	})
	if err != nil {
		return fmt.Errorf("create compute pipeline: %w", err)
	}
	a.pipeline = pipeline
	return nil
}

func (a *MarchAccelerator) destroyPipeline() {
	if a.device == nil {
		return
	}
	if a.pipeline != nil {
		a.device.DestroyComputePipeline(a.pipeline)
		a.pipeline = nil
	}
	if a.pipeLayout != nil {
		a.device.DestroyPipelineLayout(a.pipeLayout)
		a.pipeLayout = nil
	}
	if a.bindLayout != nil {
		a.device.DestroyBindGroupLayout(a.bindLayout)
		a.bindLayout = nil
	}
	if a.shader != nil {
		a.device.DestroyShaderModule(a.shader)
		a.shader = nil
	}
}

// encodeInstructions serializes instructions for device upload as
// little-endian f32 words, matching the kernel's MarchIn layout.
func encodeInstructions(in []marcher.MarchInstruction) []byte {
	buf := make([]byte, len(in)*instructionSize)
	for i, instr := range in {
		off := i * instructionSize
		for c := range 3 {
			binary.LittleEndian.PutUint32(buf[off+c*4:], math.Float32bits(instr.Origin[c]))
			binary.LittleEndian.PutUint32(buf[off+12+c*4:], math.Float32bits(instr.Direction[c]))
		}
	}
	return buf
}

// decodeResults parses the readback bytes into out, matching the
// kernel's MarchOut layout.
func decodeResults(data []byte, out []marcher.MarchResult) {
	for i := range out {
		off := i * resultSize
		out[i].Distance = math.Float32frombits(binary.LittleEndian.Uint32(data[off:]))
		for c := range 3 {
			out[i].Normal[c] = math.Float32frombits(binary.LittleEndian.Uint32(data[off+4+c*4:]))
		}
	}
}
