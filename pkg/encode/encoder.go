// Package encode turns scene objects into the consolidated fixed-point model
// written to PS1 headers: vertex and normal tables, packed faces with texel
// UVs, per-face material descriptors, textures and vertex colors.
package encode

import (
	"sort"

	"go.uber.org/zap"

	"github.com/taigrr/ps1export/pkg/fixed"
	"github.com/taigrr/ps1export/pkg/models"
)

// Model is the encoded scene. Materials[i] and MeshIDs[i] describe Faces[i].
type Model struct {
	Vertices  []fixed.SVector
	Normals   []fixed.SVector
	UVs       []UV
	Faces     []Face
	Materials []Descriptor
	MeshIDs   []int
	MeshNames []string // Object names in encoding order
	Textures  []Texture
	Colors    []RGB
	HasColors bool // At least one mesh resolved a color table
	Dropped   int  // Polygons skipped for having neither 3 nor 4 corners
	Options   Options
}

// TriCount returns the number of triangles.
func (m *Model) TriCount() int {
	n := 0
	for _, f := range m.Faces {
		if f.IsTri() {
			n++
		}
	}
	return n
}

// QuadCount returns the number of quads.
func (m *Model) QuadCount() int {
	return len(m.Faces) - m.TriCount()
}

// RowOrder returns face indices with triangles first, then quads, each in
// encoding order. Per-face header arrays are written in this order.
func (m *Model) RowOrder() []int {
	rows := make([]int, 0, len(m.Faces))
	for i, f := range m.Faces {
		if f.IsTri() {
			rows = append(rows, i)
		}
	}
	for i, f := range m.Faces {
		if !f.IsTri() {
			rows = append(rows, i)
		}
	}
	return rows
}

// Encoder builds a Model from scene objects.
type Encoder struct {
	Transform fixed.Transform
	Options   Options
	Logger    *zap.Logger
}

// NewEncoder creates an encoder. A nil logger disables logging.
func NewEncoder(t fixed.Transform, opts Options, logger *zap.Logger) *Encoder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Encoder{Transform: t, Options: opts, Logger: logger}
}

// SortObjects returns objects ordered by name. Objects without a mesh are
// left out.
func SortObjects(objects []*models.Object) []*models.Object {
	out := make([]*models.Object, 0, len(objects))
	for _, o := range objects {
		if o != nil && o.Mesh != nil {
			out = append(out, o)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})
	return out
}

// Encode encodes objects in name order.
func (e *Encoder) Encode(objects []*models.Object) *Model {
	log := e.logger()
	model := &Model{Options: e.Options}
	textures := NewTextureIndex()
	detector := Detector{Options: e.Options}

	vertexOffset, uvOffset := 0, 0
	for id, obj := range SortObjects(objects) {
		mesh := obj.Mesh
		model.MeshNames = append(model.MeshNames, obj.Name)

		colors := ResolveColors(mesh.Colors)
		if colors.Present() {
			model.HasColors = true
			model.Colors = append(model.Colors, colors.Rows(mesh)...)
		}

		for _, v := range mesh.Vertices {
			model.Vertices = append(model.Vertices, fixed.Position(e.Transform.Point(obj.World, v.Position)))
			model.Normals = append(model.Normals, fixed.Normal(e.Transform.Direction(obj.World, v.Normal)))
		}

		dropped := 0
		for pi, p := range mesh.Polygons {
			desc := detector.Detect(mesh, pi, colors)
			face, texels, ok := PackFace(p, mesh.UVs, vertexOffset, uvOffset, desc.TexWidth, desc.TexHeight)
			if !ok {
				dropped++
				continue
			}
			textures.Add(desc.Texture)
			model.UVs = append(model.UVs, texels...)
			uvOffset += len(texels)
			model.Faces = append(model.Faces, face)
			model.Materials = append(model.Materials, desc)
			model.MeshIDs = append(model.MeshIDs, id)
		}
		if dropped > 0 {
			log.Debug("dropped polygons",
				zap.String("object", obj.Name),
				zap.Int("count", dropped))
		}
		model.Dropped += dropped

		log.Debug("encoded object",
			zap.String("object", obj.Name),
			zap.Int("vertices", mesh.VertexCount()),
			zap.Int("polygons", len(mesh.Polygons)-dropped),
			zap.Stringer("colors", colors.Domain))
		vertexOffset += mesh.VertexCount()
	}

	for i := range model.Materials {
		if tex := model.Materials[i].Texture; tex != nil {
			model.Materials[i].TextureIndex = textures.Index(tex.Name)
		}
	}
	model.Textures = textures.Textures()
	return model
}

func (e *Encoder) logger() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}
