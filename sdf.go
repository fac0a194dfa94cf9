package marcher

import "math"

// SDF is a signed distance field: the distance from a point to the
// nearest surface, negative inside the solid, zero on the boundary and
// positive outside.
//
// Fields compose. Combinators return a new SDF that owns its operands;
// a built field is immutable and safe for concurrent evaluation.
type SDF interface {
	// Distance evaluates the field at p.
	Distance(p Vec3) float64
}

type sphereSDF struct {
	radius float64
}

// Sphere returns the SDF of a sphere of the given radius centered at
// the origin: |p| - radius.
func Sphere(radius float64) SDF {
	return sphereSDF{radius: radius}
}

func (s sphereSDF) Distance(p Vec3) float64 {
	return p.Length() - s.radius
}

type translateSDF struct {
	sdf    SDF
	offset Vec3
}

// Translate returns sdf shifted by offset. The sampling point is
// moved, not the field's shape: distance = sdf(p - offset).
func Translate(sdf SDF, offset Vec3) SDF {
	return translateSDF{sdf: sdf, offset: offset}
}

func (t translateSDF) Distance(p Vec3) float64 {
	return t.sdf.Distance(p.Sub(t.offset))
}

type unionSDF struct {
	a, b SDF
}

// Union returns the union of two solids. The union of SDFs is the
// pointwise minimum of their distances.
func Union(a, b SDF) SDF {
	return unionSDF{a: a, b: b}
}

func (u unionSDF) Distance(p Vec3) float64 {
	return math.Min(u.a.Distance(p), u.b.Distance(p))
}

type intersectSDF struct {
	a, b SDF
}

// Intersect returns the intersection of two solids, the pointwise
// maximum of their distances.
func Intersect(a, b SDF) SDF {
	return intersectSDF{a: a, b: b}
}

func (i intersectSDF) Distance(p Vec3) float64 {
	return math.Max(i.a.Distance(p), i.b.Distance(p))
}

type differenceSDF struct {
	a, b SDF
}

// Difference returns solid a with solid b carved out of it:
// max(a(p), -b(p)).
func Difference(a, b SDF) SDF {
	return differenceSDF{a: a, b: b}
}

func (d differenceSDF) Distance(p Vec3) float64 {
	return math.Max(d.a.Distance(p), -d.b.Distance(p))
}

type smoothUnionSDF struct {
	a, b SDF
	k    float64
}

// SmoothUnion returns the union of two solids with the boundary
// transition blended over a radius of k instead of the hard crease a
// plain Union produces. The blend never raises the field above the
// hard union and lowers it by at most k/4.
func SmoothUnion(a, b SDF, k float64) SDF {
	return smoothUnionSDF{a: a, b: b, k: k}
}

func (s smoothUnionSDF) Distance(p Vec3) float64 {
	a := s.a.Distance(p)
	b := s.b.Distance(p)
	h := clamp(0.5+0.5*(b-a)/s.k, 0, 1)
	return mix(b, a, h) - s.k*h*(1-h)
}

// mix performs linear interpolation: a at m=0, b at m=1.
func mix(a, b, m float64) float64 {
	return a + (b-a)*m
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
