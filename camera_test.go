package marcher

import (
	"math"
	"testing"
)

func TestNewCamera_Defaults(t *testing.T) {
	c := NewCamera(600, 600, 64)
	if c.Width != 600 || c.Height != 600 {
		t.Errorf("dimensions = %dx%d, want 600x600", c.Width, c.Height)
	}
	if c.FOV != 64 {
		t.Errorf("FOV = %v, want 64", c.FOV)
	}
	if !c.Origin.Approx(V3(0, 0, -10), 1e-12) {
		t.Errorf("Origin = %v, want (0,0,-10)", c.Origin)
	}
}

func TestPrimaryRay_CenterPixel(t *testing.T) {
	// An odd-sized image has a pixel whose center sits exactly on the
	// optical axis.
	c := NewCamera(3, 3, 64)
	r := c.PrimaryRay(1, 1)

	if !r.Origin.Approx(c.Origin, 1e-12) {
		t.Errorf("ray origin = %v, want camera origin %v", r.Origin, c.Origin)
	}
	if !r.Direction.Approx(V3(0, 0, 1), 1e-12) {
		t.Errorf("center ray direction = %v, want (0,0,1)", r.Direction)
	}
}

func TestPrimaryRay_UnitLength(t *testing.T) {
	c := NewCamera(640, 480, 90)
	for _, px := range [][2]int{{0, 0}, {639, 0}, {0, 479}, {639, 479}, {320, 240}} {
		r := c.PrimaryRay(px[0], px[1])
		if l := r.Direction.Length(); math.Abs(l-1) > 1e-12 {
			t.Errorf("direction length at %v = %v, want 1", px, l)
		}
	}
}

func TestPrimaryRay_Orientation(t *testing.T) {
	c := NewCamera(100, 100, 64)

	top := c.PrimaryRay(50, 0)
	if top.Direction.Y <= 0 {
		t.Errorf("top row should look up, got Y = %v", top.Direction.Y)
	}
	bottom := c.PrimaryRay(50, 99)
	if bottom.Direction.Y >= 0 {
		t.Errorf("bottom row should look down, got Y = %v", bottom.Direction.Y)
	}
	left := c.PrimaryRay(0, 50)
	if left.Direction.X >= 0 {
		t.Errorf("left column should look left, got X = %v", left.Direction.X)
	}
	right := c.PrimaryRay(99, 50)
	if right.Direction.X <= 0 {
		t.Errorf("right column should look right, got X = %v", right.Direction.X)
	}
}

// A wide image spreads rays further horizontally than vertically.
func TestPrimaryRay_AspectRatio(t *testing.T) {
	c := NewCamera(800, 400, 90)
	corner := c.PrimaryRay(0, 0)
	if math.Abs(corner.Direction.X) <= math.Abs(corner.Direction.Y) {
		t.Errorf("wide frame: |X| = %v should exceed |Y| = %v",
			math.Abs(corner.Direction.X), math.Abs(corner.Direction.Y))
	}
}
