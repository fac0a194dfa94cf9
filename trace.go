package marcher

// Epsilon is the hit threshold for the sphere tracer and the offset
// used for finite-difference normal estimation.
const Epsilon = 0.001

// MaxSteps is the sphere-tracer step budget. A ray that has not come
// within Epsilon of a surface after MaxSteps advances is a miss.
const MaxSteps = 50

// MaxDepth bounds the usable depth range on the compute offload path.
// The CPU tracer has no distance cutoff; it tolerates unbounded depth
// growth up to the step cap.
const MaxDepth = 10000.0

// Hit describes where a ray met a surface.
type Hit struct {
	// Position is the point on (within Epsilon of) the surface.
	Position Vec3

	// Depth is the distance marched along the ray.
	Depth float64
}

// March advances the ray along the field until it comes within Epsilon
// of a surface or the step budget runs out. The reported ok is false
// on a miss.
//
// The depth starts at Epsilon rather than zero so a ray whose origin
// already sits on a surface does not immediately re-detect it.
func March(s SDF, r Ray) (hit Hit, ok bool) {
	depth := Epsilon
	for i := 0; i < MaxSteps; i++ {
		pos := r.Origin.Add(r.Direction.Mul(depth))
		dist := s.Distance(pos)
		if dist < Epsilon {
			return Hit{Position: pos, Depth: depth}, true
		}
		depth += dist
	}
	return Hit{}, false
}

// EstimateNormal returns the unit surface normal at p, computed as the
// normalized central-difference gradient of the field. It costs six
// field evaluations.
//
// p should be at or very near the zero level-set; far from the surface
// the result is meaningless.
func EstimateNormal(s SDF, p Vec3) Vec3 {
	return V3(
		s.Distance(p.Add(V3(Epsilon, 0, 0)))-s.Distance(p.Sub(V3(Epsilon, 0, 0))),
		s.Distance(p.Add(V3(0, Epsilon, 0)))-s.Distance(p.Sub(V3(0, Epsilon, 0))),
		s.Distance(p.Add(V3(0, 0, Epsilon)))-s.Distance(p.Sub(V3(0, 0, Epsilon))),
	).Normalize()
}
