package marcher

import (
	"errors"
	"sync"

	"github.com/gogpu/gpucontext"
)

// ErrFallbackToCPU indicates the accelerator cannot march this batch.
// The caller should transparently fall back to CPU marching.
var ErrFallbackToCPU = errors.New("marcher: falling back to CPU marching")

// ErrNoAccelerator is returned by the accelerated render path when no
// accelerator has been registered.
var ErrNoAccelerator = errors.New("marcher: no accelerator registered")

// MarchInstruction is one ray of work for a compute device: origin and
// direction as single-precision triples. The struct is transferred to
// the device as a raw memory copy, so the field order and the absence
// of padding are part of the kernel contract.
type MarchInstruction struct {
	Origin    [3]float32
	Direction [3]float32
}

// MarchResult is the per-ray record read back from the device: the
// final depth the marching loop reached and the field gradient at that
// point. A depth beyond MaxDepth means the ray missed everything.
type MarchResult struct {
	Distance float32
	Normal   [3]float32
}

// Accelerator executes the sphere-tracing loop for a batch of rays on
// a compute device. The host builds one MarchInstruction per pixel,
// the accelerator fills the matching MarchResult slot for each, and
// the host shades from the results.
//
// Implementations are provided by backend packages (internal/gpu has a
// wgpu/Vulkan one) and registered via RegisterAccelerator.
type Accelerator interface {
	// Name returns the accelerator name (e.g. "wgpu-march").
	Name() string

	// Init initializes device resources. Called once during registration.
	Init() error

	// Close releases device resources.
	Close()

	// MarchBatch marches every instruction and writes results by index.
	// len(out) must equal len(in). The call blocks until the device
	// has finished; there is no pipelining between batches.
	// Returns ErrFallbackToCPU when the device is unavailable.
	MarchBatch(in []MarchInstruction, out []MarchResult) error
}

// DeviceHandle is the interface a host application implements to share
// its GPU device with marcher instead of letting marcher create one.
// It is an alias for gpucontext.DeviceProvider so any gogpu-ecosystem
// host works unchanged.
type DeviceHandle = gpucontext.DeviceProvider

// DeviceProviderAware is an optional interface for accelerators that
// can reuse an externally owned GPU device.
type DeviceProviderAware interface {
	SetDeviceProvider(provider any) error
}

var (
	accelMu sync.RWMutex
	accel   Accelerator
)

// RegisterAccelerator registers a march accelerator.
//
// Only one accelerator can be registered; subsequent calls replace the
// previous one, closing it. Init is called during registration and a
// failing Init leaves the previous accelerator in place.
func RegisterAccelerator(a Accelerator) error {
	if a == nil {
		return errors.New("marcher: accelerator must not be nil")
	}
	if err := a.Init(); err != nil {
		return err
	}
	propagateLogger(a, Logger())
	accelMu.Lock()
	old := accel
	accel = a
	accelMu.Unlock()
	if old != nil {
		old.Close()
	}
	return nil
}

// ActiveAccelerator returns the registered accelerator, or nil.
func ActiveAccelerator() Accelerator {
	accelMu.RLock()
	a := accel
	accelMu.RUnlock()
	return a
}

// SetAcceleratorDeviceProvider passes a device provider to the
// registered accelerator, enabling GPU device sharing. A no-op when no
// accelerator is registered or it does not support sharing.
func SetAcceleratorDeviceProvider(provider any) error {
	a := ActiveAccelerator()
	if a == nil {
		return nil
	}
	if dpa, ok := a.(DeviceProviderAware); ok {
		return dpa.SetDeviceProvider(provider)
	}
	return nil
}
