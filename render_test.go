package marcher

import (
	"errors"
	"testing"
	"time"
)

func TestRenderFrame_DemoScene(t *testing.T) {
	// An odd-sized frame puts one ray exactly on the optical axis. That
	// ray hits the front of the main sphere; the corner rays diverge
	// wide enough to miss everything.
	r := NewRenderer(3, 3)
	r.Workers = 1
	defer r.Close()

	buf := make([]uint32, 9)
	if err := r.RenderFrame(buf); err != nil {
		t.Fatal(err)
	}

	if buf[4] == MissColor {
		t.Error("center pixel should hit the scene")
	}
	for _, i := range []int{0, 2, 6, 8} {
		if buf[i] != MissColor {
			t.Errorf("corner pixel %d = %#08x, want miss", i, buf[i])
		}
	}

	// The demo albedo is red, so a hit pixel carries an opaque alpha,
	// a strong red channel and only ambient in green and blue.
	cr, cg, cb, ca := UnpackColor(buf[4])
	if ca != 255 {
		t.Errorf("hit alpha = %d, want 255", ca)
	}
	if cr <= cg || cr <= cb {
		t.Errorf("hit pixel should be red-dominant, got r=%d g=%d b=%d", cr, cg, cb)
	}
}

func TestRenderFrame_BufferLength(t *testing.T) {
	r := NewRenderer(4, 4)
	r.Workers = 1
	defer r.Close()

	if err := r.RenderFrame(make([]uint32, 15)); err == nil {
		t.Error("short buffer should be rejected")
	}
	if err := r.RenderFrame(make([]uint32, 17)); err == nil {
		t.Error("long buffer should be rejected")
	}
}

func TestRenderFrame_ParallelMatchesSerial(t *testing.T) {
	serial := NewRenderer(16, 12)
	serial.Workers = 1
	defer serial.Close()

	parallelR := NewRenderer(16, 12)
	parallelR.Workers = 4
	defer parallelR.Close()

	a := make([]uint32, 16*12)
	b := make([]uint32, 16*12)
	if err := serial.RenderFrame(a); err != nil {
		t.Fatal(err)
	}
	if err := parallelR.RenderFrame(b); err != nil {
		t.Fatal(err)
	}

	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("pixel %d differs: serial %#08x, parallel %#08x", i, a[i], b[i])
		}
	}
}

func TestBuildInstructions(t *testing.T) {
	r := NewRenderer(3, 3)
	defer r.Close()

	in := make([]MarchInstruction, 9)
	r.BuildInstructions(in)

	// Every ray shares the camera origin.
	for i, ins := range in {
		if ins.Origin != [3]float32{0, 0, -10} {
			t.Errorf("instruction %d origin = %v, want (0,0,-10)", i, ins.Origin)
		}
	}
	// The center instruction is the axis ray.
	if in[4].Direction != [3]float32{0, 0, 1} {
		t.Errorf("center direction = %v, want (0,0,1)", in[4].Direction)
	}
}

// setTestAccelerator swaps in an accelerator without going through
// RegisterAccelerator (no Init call) and restores the previous one when
// the test ends.
func setTestAccelerator(t *testing.T, a Accelerator) {
	t.Helper()
	accelMu.Lock()
	old := accel
	accel = a
	accelMu.Unlock()
	t.Cleanup(func() {
		accelMu.Lock()
		accel = old
		accelMu.Unlock()
	})
}

// cpuAccelerator marches on the host with the same loop the device
// runs, as a stand-in for real hardware in tests.
type cpuAccelerator struct {
	scene   SDF
	batches int
}

func (c *cpuAccelerator) Name() string { return "cpu-test" }
func (c *cpuAccelerator) Init() error  { return nil }
func (c *cpuAccelerator) Close()       {}

func (c *cpuAccelerator) MarchBatch(in []MarchInstruction, out []MarchResult) error {
	c.batches++
	for i, ins := range in {
		ray := Ray{
			Origin:    V3(float64(ins.Origin[0]), float64(ins.Origin[1]), float64(ins.Origin[2])),
			Direction: V3(float64(ins.Direction[0]), float64(ins.Direction[1]), float64(ins.Direction[2])),
		}
		hit, ok := March(c.scene, ray)
		if !ok {
			out[i] = MarchResult{Distance: float32(MaxDepth * 2)}
			continue
		}
		n := EstimateNormal(c.scene, hit.Position)
		out[i] = MarchResult{
			Distance: float32(hit.Depth),
			Normal:   [3]float32{float32(n.X), float32(n.Y), float32(n.Z)},
		}
	}
	return nil
}

func TestRenderFrameAccelerated_NoAccelerator(t *testing.T) {
	setTestAccelerator(t, nil)

	r := NewRenderer(2, 2)
	r.Workers = 1
	defer r.Close()

	err := r.RenderFrameAccelerated(make([]uint32, 4))
	if !errors.Is(err, ErrNoAccelerator) {
		t.Errorf("err = %v, want ErrNoAccelerator", err)
	}
}

func TestRenderFrameAccelerated_MatchesCPUClassification(t *testing.T) {
	setTestAccelerator(t, &cpuAccelerator{scene: DemoScene()})

	r := NewRenderer(8, 6)
	r.Workers = 1
	defer r.Close()

	cpu := make([]uint32, 8*6)
	acc := make([]uint32, 8*6)
	if err := r.RenderFrame(cpu); err != nil {
		t.Fatal(err)
	}
	if err := r.RenderFrameAccelerated(acc); err != nil {
		t.Fatal(err)
	}

	// Single-precision ray setup can nudge shading by a byte, but the
	// hit/miss decision must agree pixel for pixel.
	for i := range cpu {
		if (cpu[i] == MissColor) != (acc[i] == MissColor) {
			t.Errorf("pixel %d classification differs: cpu %#08x, accelerated %#08x",
				i, cpu[i], acc[i])
		}
	}
}

// fallbackAccelerator always declines the batch.
type fallbackAccelerator struct{}

func (fallbackAccelerator) Name() string                                       { return "fallback-test" }
func (fallbackAccelerator) Init() error                                        { return nil }
func (fallbackAccelerator) Close()                                             {}
func (fallbackAccelerator) MarchBatch([]MarchInstruction, []MarchResult) error { return ErrFallbackToCPU }

func TestRenderFrameAccelerated_FallsBackToCPU(t *testing.T) {
	setTestAccelerator(t, fallbackAccelerator{})

	r := NewRenderer(3, 3)
	r.Workers = 1
	defer r.Close()

	cpu := make([]uint32, 9)
	acc := make([]uint32, 9)
	if err := r.RenderFrame(cpu); err != nil {
		t.Fatal(err)
	}
	if err := r.RenderFrameAccelerated(acc); err != nil {
		t.Fatal(err)
	}
	for i := range cpu {
		if cpu[i] != acc[i] {
			t.Fatalf("fallback frame differs from CPU frame at pixel %d", i)
		}
	}
}

// countingSink closes after a fixed number of presents.
type countingSink struct {
	frames int
	limit  int
}

func (s *countingSink) Present(buf []uint32) error {
	s.frames++
	return nil
}

func (s *countingSink) ShouldClose() bool { return s.frames >= s.limit }

func TestRun_StopsWhenSinkCloses(t *testing.T) {
	r := NewRenderer(2, 2)
	r.Workers = 1
	defer r.Close()

	sink := &countingSink{limit: 3}
	if err := r.Run(sink, 0, false); err != nil {
		t.Fatal(err)
	}
	if sink.frames != 3 {
		t.Errorf("presented %d frames, want 3", sink.frames)
	}
}

type errorSink struct{}

func (errorSink) Present([]uint32) error { return errors.New("display gone") }
func (errorSink) ShouldClose() bool      { return false }

func TestRun_PropagatesPresentError(t *testing.T) {
	r := NewRenderer(2, 2)
	r.Workers = 1
	defer r.Close()

	if err := r.Run(errorSink{}, time.Millisecond, false); err == nil {
		t.Error("expected the present error to stop the loop")
	}
}
