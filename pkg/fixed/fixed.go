// Package fixed converts floating-point scene coordinates into the
// fixed-point integer vectors consumed by the PS1 geometry pipeline.
package fixed

import "github.com/taigrr/ps1export/pkg/math3d"

const (
	// PositionScale maps one scene unit to this many fixed-point units.
	PositionScale = 3072
	// NormalScale is the GTE convention where 4096 represents 1.0.
	NormalScale = 4096
)

// SVector is a quantized 3-component vector, rendered as an SVECTOR row.
type SVector struct {
	X, Y, Z int
}

// Transform applies an object's world matrix and the optional axis remap.
type Transform struct {
	// ZUp remaps a Y-up source to the Z-up target: (x, y, z) -> (x, -z, y).
	ZUp bool
}

// Point transforms a local point into target space.
func (t Transform) Point(world math3d.Mat4, p math3d.Vec3) math3d.Vec3 {
	return t.remap(world.MulVec3(p))
}

// Direction transforms a local direction with the linear part of world only
// and returns a unit vector.
func (t Transform) Direction(world math3d.Mat4, d math3d.Vec3) math3d.Vec3 {
	return t.remap(world.MulVec3Dir(d)).Normalize()
}

// Unmap inverts the axis remap. Used to check round trips.
func (t Transform) Unmap(v math3d.Vec3) math3d.Vec3 {
	if !t.ZUp {
		return v
	}
	return math3d.V3(v.X, v.Z, -v.Y)
}

func (t Transform) remap(v math3d.Vec3) math3d.Vec3 {
	if !t.ZUp {
		return v
	}
	return math3d.V3(v.X, -v.Z, v.Y)
}

// Position quantizes a target-space point. Conversion truncates toward zero.
func Position(v math3d.Vec3) SVector {
	return quantize(v, PositionScale)
}

// Normal quantizes a unit direction.
func Normal(v math3d.Vec3) SVector {
	return quantize(v, NormalScale)
}

func quantize(v math3d.Vec3, scale float64) SVector {
	return SVector{
		X: int(v.X * scale),
		Y: int(v.Y * scale),
		Z: int(v.Z * scale),
	}
}
