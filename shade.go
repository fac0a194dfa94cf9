package marcher

import "math"

// ambient is the flat ambient term added to every lit pixel. It is not
// modulated by the surface albedo.
var ambient = V3(0.04, 0.04, 0.04)

// Light is a point light with inverse-square falloff.
type Light struct {
	Position Vec3
	Strength float64
}

// DefaultLight returns the demo light: position (4, 3, -6) with
// strength 10.
func DefaultLight() Light {
	return Light{Position: V3(4, 3, -6), Strength: 10}
}

// Shade computes the linear color at a surface point using a
// Lambertian model: albedo scaled by the clamped cosine term and the
// attenuated light strength, plus the flat ambient term.
//
// The result is not clamped to [0, 1]; close to the light the color
// can exceed 1 and it is the packer's job to decide how to convert
// that to bytes.
func (l Light) Shade(albedo, pos, normal Vec3) Vec3 {
	toLight := l.Position.Sub(pos)
	lightDir := toLight.Normalize()
	distance := toLight.Length()
	attenuation := 1 / (distance * distance) * l.Strength

	cosTheta := math.Max(0, lightDir.Dot(normal))

	return albedo.Mul(cosTheta * attenuation).Add(ambient)
}
