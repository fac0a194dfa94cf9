// Package marcher is a small sphere-tracing renderer for implicit
// surfaces (signed distance fields).
//
// # Overview
//
// marcher renders a 3D scene described as a composable SDF by casting
// one ray per pixel from a pinhole camera and advancing it along the
// field until it reaches a surface or exhausts its step budget. Hits
// are shaded with a single attenuated point light and packed into a
// 32-bit ARGB pixel buffer that an external presentation sink displays.
//
// # Quick Start
//
//	import "github.com/gogpu/marcher"
//
//	r := marcher.NewRenderer(600, 600)
//	buf := make([]uint32, 600*600)
//	r.RenderFrame(buf)
//
// # SDF composition
//
// Scenes are built from primitives and combinators, each an SDF value:
//
//	s := marcher.Difference(
//	    marcher.SmoothUnion(
//	        marcher.Sphere(3),
//	        marcher.Translate(marcher.Sphere(2), marcher.V3(0, 3.5, 0)),
//	        1,
//	    ),
//	    marcher.Translate(marcher.Sphere(2.5), marcher.V3(1.5, 1.5, -1.75)),
//	)
//
// # GPU offload
//
// The per-pixel marching loop can be offloaded to a compute device.
// Register an accelerator (internal/gpu provides a wgpu/Vulkan one) and
// use RenderFrameAccelerated; the host still generates rays and shades
// the returned hit records. The device loop is a different algorithm
// from the CPU tracer and the two are not guaranteed to be
// bit-identical.
//
// # Architecture
//
// The module is organized into:
//   - Public API: Vec3, SDF, Camera, March, Light, Renderer
//   - internal/parallel: worker pool for the parallel CPU path
//   - internal/gpu: wgpu compute offload (build tag !nogpu)
package marcher
