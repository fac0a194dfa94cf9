package marcher

// DemoScene returns the fixed demo composition: a base sphere blended
// into a smaller sphere sitting on top of it, with a third sphere
// carved out of the result.
//
// The returned SDF is immutable; build it once and pass it to the
// renderer rather than relying on any ambient global.
func DemoScene() SDF {
	return Difference(
		SmoothUnion(
			Sphere(3),
			Translate(Sphere(2), V3(0, 3.5, 0)),
			1,
		),
		Translate(Sphere(2.5), V3(1.5, 1.5, -1.75)),
	)
}
