package models

import (
	"math"

	"github.com/taigrr/ps1export/pkg/math3d"
)

// DefaultMergeAngle is the largest angle in degrees between two triangle
// normals that MergeQuads still treats as coplanar.
const DefaultMergeAngle = 40.0

// rebuiltPolygon describes a polygon of a rebuilt mesh in terms of its source.
type rebuiltPolygon struct {
	src   int   // Source polygon for material, shading and face-domain data
	loops []int // Source loops in corner order
}

// HasNgons reports whether any polygon has more than four corners.
func (m *Mesh) HasNgons() bool {
	for _, p := range m.Polygons {
		if p.Len() > 4 {
			return true
		}
	}
	return false
}

// ResolveNgons triangulates every polygon with more than four corners, then
// joins triangles of the same source polygon back into quads where MergeQuads
// allows it. Concave polygons are ear-clipped, so no quad it emits is
// non-convex. It returns the input mesh untouched when there is nothing to
// split, together with the number of polygons that were split.
func ResolveNgons(m *Mesh) (*Mesh, int) {
	if !m.HasNgons() {
		return m, 0
	}

	resolved := 0
	polys := make([]rebuiltPolygon, 0, len(m.Polygons))
	groups := make([]int, 0, len(m.Polygons))
	for i, p := range m.Polygons {
		n := p.Len()
		loops := make([]int, n)
		for c := range n {
			loops[c] = p.LoopStart + c
		}
		if n <= 4 {
			polys = append(polys, rebuiltPolygon{src: i, loops: loops})
			groups = append(groups, -1)
			continue
		}

		resolved++
		for _, tri := range m.earClip(i) {
			polys = append(polys, rebuiltPolygon{src: i, loops: []int{loops[tri[0]], loops[tri[1]], loops[tri[2]]}})
			groups = append(groups, i)
		}
	}

	out, _ := mergeQuads(m.rebuild(polys), DefaultMergeAngle, groups)
	return out, resolved
}

// earClip triangulates polygon pi and returns triangles as corner indices,
// keeping the polygon's winding. Ears are searched from the second remaining
// corner, so convex polygons come out as a fan around corner 0. Degenerate
// input that has no ear left is finished as a fan.
func (m *Mesh) earClip(pi int) [][3]int {
	p := m.Polygons[pi]
	n := p.Len()
	pos := make([]math3d.Vec3, n)
	for c, v := range p.Vertices {
		pos[c] = m.Vertices[v].Position
	}
	normal := m.FaceNormal(pi)

	const eps = 1e-12
	area := func(a, b, c int) float64 {
		return pos[b].Sub(pos[a]).Cross(pos[c].Sub(pos[b])).Dot(normal)
	}
	inside := func(q, a, b, c int) bool {
		return area(a, b, q) >= -eps && area(b, c, q) >= -eps && area(c, a, q) >= -eps
	}

	remaining := make([]int, n)
	for c := range remaining {
		remaining[c] = c
	}
	tris := make([][3]int, 0, n-2)

	for len(remaining) > 3 {
		k := len(remaining)
		ear := -1
		for step := range k {
			i := (1 + step) % k
			a, b, c := remaining[(i+k-1)%k], remaining[i], remaining[(i+1)%k]
			if area(a, b, c) <= eps {
				continue
			}
			blocked := false
			for _, q := range remaining {
				if q != a && q != b && q != c && inside(q, a, b, c) {
					blocked = true
					break
				}
			}
			if !blocked {
				ear = i
				break
			}
		}
		if ear < 0 {
			break
		}
		tris = append(tris, [3]int{remaining[(ear+k-1)%k], remaining[ear], remaining[(ear+1)%k]})
		remaining = append(remaining[:ear], remaining[ear+1:]...)
	}

	for c := 1; c+1 < len(remaining); c++ {
		tris = append(tris, [3]int{remaining[0], remaining[c], remaining[c+1]})
	}
	return tris
}

// MergeQuads joins pairs of adjacent triangles into quads. A pair merges when
// the triangles share an edge with opposite winding, use the same material
// and shading, are within maxAngle degrees of coplanar, form a convex quad
// and agree on every loop-indexed attribute along the shared edge. Each
// triangle takes its most coplanar eligible neighbour, in polygon order.
func MergeQuads(m *Mesh, maxAngle float64) (*Mesh, int) {
	return mergeQuads(m, maxAngle, nil)
}

// mergeQuads is MergeQuads restricted by groups: when groups is non-nil,
// only triangles with the same non-negative group merge.
func mergeQuads(m *Mesh, maxAngle float64, groups []int) (*Mesh, int) {
	type edgeRef struct{ poly, corner int }

	group := func(i int) int {
		if groups == nil {
			return 0
		}
		return groups[i]
	}

	edges := make(map[[3]int]edgeRef)
	for i, p := range m.Polygons {
		if p.Len() != 3 || group(i) < 0 {
			continue
		}
		for c := range 3 {
			edges[[3]int{group(i), p.Vertices[c], p.Vertices[(c+1)%3]}] = edgeRef{i, c}
		}
	}

	cosLimit := math.Cos(maxAngle * math.Pi / 180)
	partner := make([]int, len(m.Polygons))
	for i := range partner {
		partner[i] = -1
	}
	quads := make(map[int][]int)

	for i, p := range m.Polygons {
		if p.Len() != 3 || partner[i] >= 0 || group(i) < 0 {
			continue
		}

		best, bestDot := -1, 0.0
		var bestLoops []int
		for c := range 3 {
			u, v := p.Vertices[c], p.Vertices[(c+1)%3]
			ref, ok := edges[[3]int{group(i), v, u}]
			if !ok || ref.poly == i || partner[ref.poly] >= 0 {
				continue
			}
			loops, dot, ok := m.quadFrom(i, c, ref.poly, ref.corner)
			if !ok || dot < cosLimit {
				continue
			}
			if best < 0 || dot > bestDot {
				best, bestDot, bestLoops = ref.poly, dot, loops
			}
		}

		if best >= 0 {
			partner[i], partner[best] = best, i
			quads[i] = bestLoops
		}
	}

	if len(quads) == 0 {
		return m, 0
	}

	polys := make([]rebuiltPolygon, 0, len(m.Polygons)-len(quads))
	for i, p := range m.Polygons {
		if loops, ok := quads[i]; ok {
			polys = append(polys, rebuiltPolygon{src: i, loops: loops})
			continue
		}
		if partner[i] >= 0 {
			continue
		}
		loops := make([]int, p.Len())
		for c := range loops {
			loops[c] = p.LoopStart + c
		}
		polys = append(polys, rebuiltPolygon{src: i, loops: loops})
	}

	return m.rebuild(polys), len(quads)
}

// quadFrom tests whether triangle t2 can be merged into t1 across t1's edge
// starting at corner c1, where c2 is the matching corner of t2. It returns
// the quad's source loops and the cosine between the two face normals.
func (m *Mesh) quadFrom(t1, c1, t2, c2 int) ([]int, float64, bool) {
	p1, p2 := m.Polygons[t1], m.Polygons[t2]
	if p1.Material != p2.Material || p1.Smooth != p2.Smooth {
		return nil, 0, false
	}

	// t1 = (u, v, w1), t2 = (v, u, w2); the quad walks v, w1, u, w2.
	u1, v1, w1 := p1.LoopStart+c1, p1.LoopStart+(c1+1)%3, p1.LoopStart+(c1+2)%3
	v2, u2, w2 := p2.LoopStart+c2, p2.LoopStart+(c2+1)%3, p2.LoopStart+(c2+2)%3
	if p1.Vertices[(c1+2)%3] == p2.Vertices[(c2+2)%3] {
		return nil, 0, false
	}

	if m.HasUVs() {
		const eps = 1e-6
		if !m.LoopUV(u1).Equal(m.LoopUV(u2), eps) || !m.LoopUV(v1).Equal(m.LoopUV(v2), eps) {
			return nil, 0, false
		}
	}
	for _, attr := range m.Colors {
		switch attr.Domain {
		case DomainCorner:
			if sampleAt(attr.Data, u1) != sampleAt(attr.Data, u2) || sampleAt(attr.Data, v1) != sampleAt(attr.Data, v2) {
				return nil, 0, false
			}
		case DomainFace:
			if sampleAt(attr.Data, t1) != sampleAt(attr.Data, t2) {
				return nil, 0, false
			}
		}
	}

	n1, n2 := m.FaceNormal(t1), m.FaceNormal(t2)
	loops := []int{v1, w1, u1, w2}

	pos := func(loop int) math3d.Vec3 {
		if loop >= p2.LoopStart && loop < p2.LoopStart+3 {
			return m.Vertices[p2.Vertices[loop-p2.LoopStart]].Position
		}
		return m.Vertices[p1.Vertices[loop-p1.LoopStart]].Position
	}
	n := n1.Add(n2)
	for k := range 4 {
		a, b, c := pos(loops[k]), pos(loops[(k+1)%4]), pos(loops[(k+2)%4])
		if b.Sub(a).Cross(c.Sub(b)).Dot(n) <= 1e-12 {
			return nil, 0, false
		}
	}

	return loops, n1.Dot(n2), true
}

// rebuild creates a new mesh whose polygons are assembled from source loops.
// Vertices are shared by index; loop-indexed and face-indexed data follow
// the new layout.
func (m *Mesh) rebuild(polys []rebuiltPolygon) *Mesh {
	loopVerts := m.loopVertices()

	out := &Mesh{
		Name:      m.Name,
		Vertices:  append([]Vertex(nil), m.Vertices...),
		Polygons:  make([]Polygon, 0, len(polys)),
		Materials: append([]*Material(nil), m.Materials...),
	}
	if m.HasUVs() {
		out.UVs = make([]math3d.Vec2, 0, m.LoopCount())
	}
	for _, attr := range m.Colors {
		rebuilt := ColorAttribute{Name: attr.Name, Domain: attr.Domain}
		if attr.Domain == DomainVertex {
			rebuilt.Data = append([]Color(nil), attr.Data...)
		}
		out.Colors = append(out.Colors, rebuilt)
	}

	loop := 0
	for _, rp := range polys {
		src := m.Polygons[rp.src]
		verts := make([]int, len(rp.loops))
		for c, l := range rp.loops {
			verts[c] = loopVerts[l]
			if out.UVs != nil {
				out.UVs = append(out.UVs, m.LoopUV(l))
			}
			for a, attr := range m.Colors {
				if attr.Domain == DomainCorner {
					out.Colors[a].Data = append(out.Colors[a].Data, sampleAt(attr.Data, l))
				}
			}
		}
		for a, attr := range m.Colors {
			if attr.Domain == DomainFace {
				out.Colors[a].Data = append(out.Colors[a].Data, sampleAt(attr.Data, rp.src))
			}
		}

		out.Polygons = append(out.Polygons, Polygon{
			Vertices:  verts,
			LoopStart: loop,
			Material:  src.Material,
			Smooth:    src.Smooth,
		})
		loop += len(rp.loops)
	}

	return out
}

// loopVertices maps every loop to its vertex.
func (m *Mesh) loopVertices() []int {
	size := 0
	for _, p := range m.Polygons {
		size = max(size, p.LoopStart+p.Len())
	}
	lv := make([]int, size)
	for _, p := range m.Polygons {
		for c, v := range p.Vertices {
			lv[p.LoopStart+c] = v
		}
	}
	return lv
}

// sampleAt returns data[i], or white when i is out of range.
func sampleAt(data []Color, i int) Color {
	if i < 0 || i >= len(data) {
		return White
	}
	return data[i]
}
