package marcher

import "math"

// Ray is a half-line in world space. Direction is expected to be
// unit-length after generation; nothing enforces this at runtime.
type Ray struct {
	Origin    Vec3
	Direction Vec3
}

// Camera is a pinhole camera with a fixed position looking down +Z.
// Width and Height are the framebuffer dimensions in pixels and FOV is
// the vertical field of view in degrees; the horizontal extent follows
// from the aspect ratio.
type Camera struct {
	Width  int
	Height int
	FOV    float64
	Origin Vec3
}

// NewCamera returns a camera at the default eye position (0, 0, -10).
func NewCamera(width, height int, fov float64) Camera {
	return Camera{
		Width:  width,
		Height: height,
		FOV:    fov,
		Origin: V3(0, 0, -10),
	}
}

// PrimaryRay maps the pixel at (x, y) to a world-space ray through the
// pixel center using the standard NDC mapping. No lens distortion, no
// depth of field.
//
// Valid for Width, Height > 0; a zero Height divides by zero.
func (c Camera) PrimaryRay(x, y int) Ray {
	width := float64(c.Width)
	height := float64(c.Height)
	aspect := width / height
	halfAngle := math.Tan(c.FOV / 2 * math.Pi / 180)

	px := (2*(float64(x)+0.5)/width - 1) * halfAngle * aspect
	py := (1 - 2*(float64(y)+0.5)/height) * halfAngle

	return Ray{
		Origin:    c.Origin,
		Direction: V3(px, py, 1).Normalize(),
	}
}
