package gpu

import (
	"fmt"

	"github.com/gogpu/naga"
)

// marchShaderWGSL is the compute kernel for the march offload path.
//
// The record layouts mirror marcher.MarchInstruction and
// marcher.MarchResult exactly: scalar f32 fields keep the structs at
// 4-byte alignment so the host can transfer them as a raw memory copy
// with no padding.
//
// The kernel's loop is intentionally not the CPU tracer: instead of
// terminating on a hit it runs the full step budget and skips any
// iteration whose depth has left [0.001, 10000], then reports the
// final depth and the field gradient there. A depth past the upper
// bound is a miss; a converged depth is a hit. The two algorithms are
// not bit-identical and no caller should assume they are.
const marchShaderWGSL = `
struct MarchIn {
    ox: f32, oy: f32, oz: f32,
    dx: f32, dy: f32, dz: f32,
}

struct MarchOut {
    dist: f32,
    nx: f32, ny: f32, nz: f32,
}

@group(0) @binding(0) var<storage, read> instructions: array<MarchIn>;
@group(0) @binding(1) var<storage, read_write> results: array<MarchOut>;

const EPSILON: f32 = 0.001;
const GRAD_EPSILON: f32 = 0.0001;
const MAX_STEPS: i32 = 50;
const MIN_DEPTH: f32 = 0.001;
const MAX_DEPTH: f32 = 10000.0;
const BLEND: f32 = 1.0;

fn sd_sphere(p: vec3<f32>, radius: f32) -> f32 {
    return length(p) - radius;
}

// scene must stay in lockstep with marcher.DemoScene on the host.
fn scene(p: vec3<f32>) -> f32 {
    let a = sd_sphere(p, 3.0);
    let b = sd_sphere(p - vec3<f32>(0.0, 3.5, 0.0), 2.0);
    let h = clamp(0.5 + 0.5 * (b - a) / BLEND, 0.0, 1.0);
    let blended = mix(b, a, h) - BLEND * h * (1.0 - h);
    let cut = sd_sphere(p - vec3<f32>(1.5, 1.5, -1.75), 2.5);
    return max(blended, -cut);
}

fn gradient(pos: vec3<f32>) -> vec3<f32> {
    let e = GRAD_EPSILON;
    return normalize(vec3<f32>(
        scene(pos + vec3<f32>(e, 0.0, 0.0)) - scene(pos - vec3<f32>(e, 0.0, 0.0)),
        scene(pos + vec3<f32>(0.0, e, 0.0)) - scene(pos - vec3<f32>(0.0, e, 0.0)),
        scene(pos + vec3<f32>(0.0, 0.0, e)) - scene(pos - vec3<f32>(0.0, 0.0, e)),
    ));
}

@compute @workgroup_size(64)
fn main(@builtin(global_invocation_id) gid: vec3<u32>) {
    let idx = gid.x;
    if (idx >= arrayLength(&instructions)) {
        return;
    }

    let origin = vec3<f32>(instructions[idx].ox, instructions[idx].oy, instructions[idx].oz);
    let dir = vec3<f32>(instructions[idx].dx, instructions[idx].dy, instructions[idx].dz);

    var depth: f32 = EPSILON;
    for (var i: i32 = 0; i < MAX_STEPS; i = i + 1) {
        if (depth < MIN_DEPTH || depth > MAX_DEPTH) {
            continue;
        }
        let pos = origin + dir * depth;
        depth = depth + scene(pos);
    }

    let p = origin + dir * depth;
    let n = gradient(p);
    results[idx].dist = depth;
    results[idx].nx = n.x;
    results[idx].ny = n.y;
    results[idx].nz = n.z;
}
`

// MarchShaderSource returns the WGSL source of the march kernel.
func MarchShaderSource() string {
	return marchShaderWGSL
}

// compileShader compiles the march kernel to a SPIR-V word slice.
// SPIR-V is little-endian 32-bit words.
func compileShader() ([]uint32, error) {
	spirvBytes, err := naga.Compile(marchShaderWGSL)
	if err != nil {
		return nil, fmt.Errorf("compile march shader: %w", err)
	}

	spirvCode := make([]uint32, len(spirvBytes)/4)
	for i := range spirvCode {
		spirvCode[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}
	return spirvCode, nil
}
