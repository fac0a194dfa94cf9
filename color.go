package marcher

// Packed pixels are 32-bit words laid out ARGB from most to least
// significant byte: blue | green<<8 | red<<16 | alpha<<24.

// PackColor converts a linear color triple and an explicit alpha byte
// into a packed ARGB word. Each channel is scaled by 255 and truncated
// to a byte with no rounding and no clamping: components outside
// [0, 1] convert with Go's float-to-integer semantics and come out
// wrong rather than saturating. Use PackColorClamped when out-of-range
// shading results are possible.
func PackColor(c Vec3, alpha uint8) uint32 {
	r := uint8(c.X * 255)
	g := uint8(c.Y * 255)
	b := uint8(c.Z * 255)
	return uint32(b) | uint32(g)<<8 | uint32(r)<<16 | uint32(alpha)<<24
}

// PackColorClamped is PackColor with each channel clamped to [0, 1]
// before byte conversion, so overbright highlights saturate to white
// instead of wrapping.
func PackColorClamped(c Vec3, alpha uint8) uint32 {
	return PackColor(c.Map(func(v float64) float64 {
		return clamp(v, 0, 1)
	}), alpha)
}

// UnpackColor splits a packed ARGB word back into channel bytes.
func UnpackColor(word uint32) (r, g, b, a uint8) {
	b = uint8(word & 0xFF)
	g = uint8((word >> 8) & 0xFF)
	r = uint8((word >> 16) & 0xFF)
	a = uint8((word >> 24) & 0xFF)
	return r, g, b, a
}
