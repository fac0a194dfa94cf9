//go:build !nogpu

package gpu

import (
	"errors"
	"testing"
	"unsafe"

	"github.com/gogpu/marcher"
)

// The kernel reads the instruction and result records as raw memory, so
// the Go structs must match the declared wire sizes with no padding.
func TestWireSizes(t *testing.T) {
	if got := unsafe.Sizeof(marcher.MarchInstruction{}); got != instructionSize {
		t.Errorf("MarchInstruction size = %d, want %d", got, instructionSize)
	}
	if got := unsafe.Sizeof(marcher.MarchResult{}); got != resultSize {
		t.Errorf("MarchResult size = %d, want %d", got, resultSize)
	}
}

func TestEncodeInstructions(t *testing.T) {
	in := []marcher.MarchInstruction{
		{Origin: [3]float32{0, 0, -10}, Direction: [3]float32{0, 0, 1}},
		{Origin: [3]float32{1.5, -2.25, 3}, Direction: [3]float32{-0.5, 0.25, 0.75}},
	}

	buf := encodeInstructions(in)
	if len(buf) != len(in)*instructionSize {
		t.Fatalf("encoded %d bytes, want %d", len(buf), len(in)*instructionSize)
	}

	// The encoded bytes are exactly the struct's little-endian memory
	// image, so a byte compare against the struct memory must pass.
	raw := unsafe.Slice((*byte)(unsafe.Pointer(&in[0])), len(in)*instructionSize)
	for i := range buf {
		if buf[i] != raw[i] {
			t.Fatalf("byte %d: encoded %#x, struct memory %#x", i, buf[i], raw[i])
		}
	}
}

func TestDecodeResults_RoundTrip(t *testing.T) {
	src := []marcher.MarchResult{
		{Distance: 7.0025, Normal: [3]float32{0, 0, -1}},
		{Distance: 20000, Normal: [3]float32{0.5, -0.5, 0.7071}},
	}
	raw := unsafe.Slice((*byte)(unsafe.Pointer(&src[0])), len(src)*resultSize)

	out := make([]marcher.MarchResult, len(src))
	decodeResults(raw, out)

	for i := range src {
		if out[i] != src[i] {
			t.Errorf("result %d: decoded %+v, want %+v", i, out[i], src[i])
		}
	}
}

func TestMarchBatch_NotReadyFallsBack(t *testing.T) {
	// A zero-value accelerator has no device; it must decline the batch
	// rather than crash.
	a := &MarchAccelerator{}
	err := a.MarchBatch(make([]marcher.MarchInstruction, 4), make([]marcher.MarchResult, 4))
	if !errors.Is(err, marcher.ErrFallbackToCPU) {
		t.Errorf("err = %v, want ErrFallbackToCPU", err)
	}
}

func TestName(t *testing.T) {
	a := &MarchAccelerator{}
	if a.Name() != "wgpu-march" {
		t.Errorf("Name() = %q, want wgpu-march", a.Name())
	}
}

func TestSetDeviceProvider_RejectsForeignProvider(t *testing.T) {
	a := &MarchAccelerator{}
	if err := a.SetDeviceProvider(struct{}{}); err == nil {
		t.Error("provider without HAL accessors should be rejected")
	}
}

type nilHalProvider struct{}

func (nilHalProvider) HalDevice() any { return nil }
func (nilHalProvider) HalQueue() any  { return nil }

func TestSetDeviceProvider_RejectsNilDevice(t *testing.T) {
	a := &MarchAccelerator{}
	if err := a.SetDeviceProvider(nilHalProvider{}); err == nil {
		t.Error("provider returning nil device should be rejected")
	}
}
