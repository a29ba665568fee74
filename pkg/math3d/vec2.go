package math3d

// Vec2 represents a 2D vector, used for texture coordinates.
type Vec2 struct {
	X, Y float64
}

// V2 creates a new Vec2.
func V2(x, y float64) Vec2 {
	return Vec2{x, y}
}

// Sub returns the vector difference a - b.
func (a Vec2) Sub(b Vec2) Vec2 {
	return Vec2{a.X - b.X, a.Y - b.Y}
}

// Equal reports whether both components differ by at most eps.
func (a Vec2) Equal(b Vec2, eps float64) bool {
	d := a.Sub(b)
	return d.X <= eps && d.X >= -eps && d.Y <= eps && d.Y >= -eps
}
