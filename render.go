package marcher

import (
	"errors"
	"fmt"
	"time"

	"github.com/gogpu/marcher/internal/parallel"
)

// MissColor is the packed value written for rays that never reach a
// surface: fully transparent black.
const MissColor uint32 = 0x00000000

// Sink is the external presentation collaborator. It receives one
// width*height buffer of packed ARGB pixels per frame and reports when
// the user asked to quit (window closed or escape pressed).
type Sink interface {
	// Present displays the frame. The buffer is owned by the render
	// loop and only valid for the duration of the call.
	Present(buf []uint32) error

	// ShouldClose reports whether the loop must stop issuing frames.
	ShouldClose() bool
}

// Renderer produces frames of a fixed SDF scene. The zero value is not
// usable; construct with NewRenderer and override fields before the
// first frame if needed.
//
// A Renderer is safe for use from one goroutine at a time. The CPU
// path parallelizes internally across pixel rows.
type Renderer struct {
	Camera Camera
	Scene  SDF
	Light  Light

	// Albedo is the surface base color fed to the shader.
	Albedo Vec3

	// Alpha is the alpha byte for every hit pixel.
	Alpha uint8

	// Clamp selects the saturating packer instead of the raw
	// truncating one. Off by default, so overbright values wrap
	// during byte conversion.
	Clamp bool

	// Workers is the CPU parallelism. 1 renders on the calling
	// goroutine; 0 or negative uses GOMAXPROCS.
	Workers int

	pool *parallel.Pool

	// scratch buffers for the accelerated path, reused across frames.
	instructions []MarchInstruction
	results      []MarchResult
}

// NewRenderer returns a renderer for a width x height framebuffer with
// the demo scene, the default light, a 64 degree field of view and a
// red albedo.
func NewRenderer(width, height int) *Renderer {
	return &Renderer{
		Camera: NewCamera(width, height, 64),
		Scene:  DemoScene(),
		Light:  DefaultLight(),
		Albedo: V3(1, 0, 0),
		Alpha:  255,
	}
}

// Close releases the renderer's worker pool. The renderer must not be
// used afterwards.
func (r *Renderer) Close() {
	if r.pool != nil {
		r.pool.Close()
		r.pool = nil
	}
}

func (r *Renderer) pack(c Vec3) uint32 {
	if r.Clamp {
		return PackColorClamped(c, r.Alpha)
	}
	return PackColor(c, r.Alpha)
}

// renderPixel traces one primary ray and returns its packed color.
func (r *Renderer) renderPixel(x, y int) uint32 {
	ray := r.Camera.PrimaryRay(x, y)
	hit, ok := March(r.Scene, ray)
	if !ok {
		return MissColor
	}
	normal := EstimateNormal(r.Scene, hit.Position)
	color := r.Light.Shade(r.Albedo, hit.Position, normal)
	return r.pack(color)
}

// renderRow fills one row of the buffer.
func (r *Renderer) renderRow(buf []uint32, y int) {
	row := buf[y*r.Camera.Width : (y+1)*r.Camera.Width]
	for x := range row {
		row[x] = r.renderPixel(x, y)
	}
}

// RenderFrame renders one frame on the CPU into buf, which must hold
// Width*Height packed pixels in row-major order.
func (r *Renderer) RenderFrame(buf []uint32) error {
	if err := r.checkBuffer(buf); err != nil {
		return err
	}

	if r.Workers == 1 {
		for y := 0; y < r.Camera.Height; y++ {
			r.renderRow(buf, y)
		}
		return nil
	}

	if r.pool == nil {
		r.pool = parallel.NewPool(r.Workers)
	}
	r.pool.For(r.Camera.Height, func(y int) {
		r.renderRow(buf, y)
	})
	return nil
}

// BuildInstructions fills dst with one MarchInstruction per pixel in
// row-major order, truncating ray origins and directions to single
// precision for the device.
func (r *Renderer) BuildInstructions(dst []MarchInstruction) {
	for y := 0; y < r.Camera.Height; y++ {
		for x := 0; x < r.Camera.Width; x++ {
			ray := r.Camera.PrimaryRay(x, y)
			dst[x+y*r.Camera.Width] = MarchInstruction{
				Origin: [3]float32{
					float32(ray.Origin.X),
					float32(ray.Origin.Y),
					float32(ray.Origin.Z),
				},
				Direction: [3]float32{
					float32(ray.Direction.X),
					float32(ray.Direction.Y),
					float32(ray.Direction.Z),
				},
			}
		}
	}
}

// RenderFrameAccelerated renders one frame using the registered march
// accelerator: the marching loop and gradient estimation run on the
// device, shading and packing stay on the host. When the accelerator
// reports ErrFallbackToCPU the frame transparently renders on the CPU
// instead.
//
// Returns ErrNoAccelerator when nothing is registered.
func (r *Renderer) RenderFrameAccelerated(buf []uint32) error {
	if err := r.checkBuffer(buf); err != nil {
		return err
	}
	a := ActiveAccelerator()
	if a == nil {
		return ErrNoAccelerator
	}

	n := r.Camera.Width * r.Camera.Height
	if cap(r.instructions) < n {
		r.instructions = make([]MarchInstruction, n)
		r.results = make([]MarchResult, n)
	}
	in := r.instructions[:n]
	out := r.results[:n]

	r.BuildInstructions(in)
	if err := a.MarchBatch(in, out); err != nil {
		if errors.Is(err, ErrFallbackToCPU) {
			Logger().Warn("march accelerator unavailable, rendering on CPU",
				"accelerator", a.Name())
			return r.RenderFrame(buf)
		}
		return fmt.Errorf("march batch: %w", err)
	}

	for i := range out {
		buf[i] = r.shadeResult(in[i], out[i])
	}
	return nil
}

// shadeResult turns one device record into a packed pixel. The device
// reports the final depth its loop reached: a depth past MaxDepth
// means the ray left the scene and the pixel is a miss.
func (r *Renderer) shadeResult(in MarchInstruction, res MarchResult) uint32 {
	if float64(res.Distance) > MaxDepth {
		return MissColor
	}
	origin := V3(float64(in.Origin[0]), float64(in.Origin[1]), float64(in.Origin[2]))
	dir := V3(float64(in.Direction[0]), float64(in.Direction[1]), float64(in.Direction[2]))
	pos := origin.Add(dir.Mul(float64(res.Distance)))
	normal := V3(float64(res.Normal[0]), float64(res.Normal[1]), float64(res.Normal[2]))

	color := r.Light.Shade(r.Albedo, pos, normal)
	return r.pack(color)
}

func (r *Renderer) checkBuffer(buf []uint32) error {
	want := r.Camera.Width * r.Camera.Height
	if len(buf) != want {
		return fmt.Errorf("marcher: buffer holds %d pixels, frame needs %d", len(buf), want)
	}
	if r.Scene == nil {
		return errors.New("marcher: renderer has no scene")
	}
	return nil
}

// Run drives the frame loop against a presentation sink: render a
// frame, present it, then wait until interval has elapsed before
// rendering the next. The loop returns when the sink reports it should
// close, or with the first Present error.
//
// When useAccelerator is set, frames go through the registered march
// accelerator (with CPU fallback); otherwise they render on the CPU.
func (r *Renderer) Run(sink Sink, interval time.Duration, useAccelerator bool) error {
	buf := make([]uint32, r.Camera.Width*r.Camera.Height)

	for !sink.ShouldClose() {
		start := time.Now()

		var err error
		if useAccelerator {
			err = r.RenderFrameAccelerated(buf)
		} else {
			err = r.RenderFrame(buf)
		}
		if err != nil {
			return err
		}
		if err := sink.Present(buf); err != nil {
			return fmt.Errorf("present frame: %w", err)
		}

		// Fixed-interval pacing: one frame per interval, however long
		// the render took.
		if remaining := interval - time.Since(start); remaining > 0 {
			time.Sleep(remaining)
		}
	}
	return nil
}
