// Package models provides the scene graph the exporter reads: mesh objects,
// polygons with per-corner loops, color attributes and shader-node materials.
// Scenes are loaded from glTF or assembled in memory.
package models

import (
	"github.com/taigrr/ps1export/pkg/math3d"
)

// Domain is the granularity a color attribute is bound at.
type Domain int

const (
	DomainNone   Domain = iota // No color attribute
	DomainCorner               // One sample per loop (polygon corner)
	DomainVertex               // One sample per vertex
	DomainFace                 // One sample per polygon
)

// String returns the host-style domain name.
func (d Domain) String() string {
	switch d {
	case DomainCorner:
		return "CORNER"
	case DomainVertex:
		return "VERTEX"
	case DomainFace:
		return "FACE"
	default:
		return "NONE"
	}
}

// Color is an RGB sample in the 0-1 range.
type Color struct {
	R, G, B float64
}

// White is full white.
var White = Color{1, 1, 1}

// ColorAttribute is one named color layer of a mesh.
type ColorAttribute struct {
	Name   string
	Domain Domain
	Data   []Color
}

// Vertex holds the per-vertex attributes.
type Vertex struct {
	Position math3d.Vec3
	Normal   math3d.Vec3
}

// Polygon is a face with per-corner vertex indices.
// Corner i of the polygon is loop LoopStart+i in loop-indexed data.
type Polygon struct {
	Vertices  []int // Indices into Mesh.Vertices
	LoopStart int
	Material  int // Index into Mesh.Materials (-1 for no material)
	Smooth    bool
}

// Len returns the number of corners.
func (p Polygon) Len() int {
	return len(p.Vertices)
}

// Mesh is a polygonal mesh with loop-indexed UVs and color attributes.
type Mesh struct {
	Name      string
	Vertices  []Vertex
	Polygons  []Polygon
	UVs       []math3d.Vec2 // Per loop; nil when the mesh has no UV layer
	Colors    []ColorAttribute
	Materials []*Material
}

// NewMesh creates an empty mesh.
func NewMesh(name string) *Mesh {
	return &Mesh{
		Name:     name,
		Vertices: make([]Vertex, 0),
		Polygons: make([]Polygon, 0),
	}
}

// AddPolygon appends a polygon whose loops follow the current last loop.
// uvs, when given, must have one entry per corner.
func (m *Mesh) AddPolygon(verts []int, material int, smooth bool, uvs ...math3d.Vec2) {
	start := m.LoopCount()
	m.Polygons = append(m.Polygons, Polygon{
		Vertices:  append([]int(nil), verts...),
		LoopStart: start,
		Material:  material,
		Smooth:    smooth,
	})
	if len(uvs) > 0 {
		m.UVs = append(m.UVs, uvs...)
	}
}

// HasUVs reports whether the mesh carries a UV layer.
func (m *Mesh) HasUVs() bool {
	return m.UVs != nil
}

// LoopCount returns the total number of polygon corners.
func (m *Mesh) LoopCount() int {
	n := 0
	for _, p := range m.Polygons {
		n += p.Len()
	}
	return n
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Vertices)
}

// LoopUV returns the UV of a loop, or zero when it is out of range.
func (m *Mesh) LoopUV(loop int) math3d.Vec2 {
	if loop < 0 || loop >= len(m.UVs) {
		return math3d.Vec2{}
	}
	return m.UVs[loop]
}

// GetMaterial returns the material at slot i.
// Returns nil if the slot is out of bounds or -1.
func (m *Mesh) GetMaterial(i int) *Material {
	if i < 0 || i >= len(m.Materials) {
		return nil
	}
	return m.Materials[i]
}

// FaceNormal returns the geometric normal of polygon i using Newell's method,
// which also handles non-planar quads.
func (m *Mesh) FaceNormal(i int) math3d.Vec3 {
	p := m.Polygons[i]
	var n math3d.Vec3
	for c := range p.Vertices {
		cur := m.Vertices[p.Vertices[c]].Position
		next := m.Vertices[p.Vertices[(c+1)%p.Len()]].Position
		n.X += (cur.Y - next.Y) * (cur.Z + next.Z)
		n.Y += (cur.Z - next.Z) * (cur.X + next.X)
		n.Z += (cur.X - next.X) * (cur.Y + next.Y)
	}
	return n.Normalize()
}

// CalculateSmoothNormals computes area-weighted averaged vertex normals.
func (m *Mesh) CalculateSmoothNormals() {
	// Reset all normals
	for i := range m.Vertices {
		m.Vertices[i].Normal = math3d.Zero3()
	}

	// Accumulate fan triangle normals per vertex
	for _, p := range m.Polygons {
		if p.Len() < 3 {
			continue
		}
		v0 := m.Vertices[p.Vertices[0]].Position
		for c := 1; c+1 < p.Len(); c++ {
			v1 := m.Vertices[p.Vertices[c]].Position
			v2 := m.Vertices[p.Vertices[c+1]].Position
			normal := v1.Sub(v0).Cross(v2.Sub(v0)) // Don't normalize yet

			for _, vi := range []int{p.Vertices[0], p.Vertices[c], p.Vertices[c+1]} {
				m.Vertices[vi].Normal = m.Vertices[vi].Normal.Add(normal)
			}
		}
	}

	// Normalize all accumulated normals
	for i := range m.Vertices {
		m.Vertices[i].Normal = m.Vertices[i].Normal.Normalize()
	}
}

// Object is a mesh placed in the scene by a world transform.
type Object struct {
	Name  string
	World math3d.Mat4
	Mesh  *Mesh
}

// Scene is the set of mesh objects an export reads.
type Scene struct {
	Name    string
	Objects []*Object
	Stage   *Stage // Animation source; nil when the scene has no clips
}
