package encode

import (
	"github.com/taigrr/ps1export/pkg/math3d"
	"github.com/taigrr/ps1export/pkg/models"
)

// Corner orders that flip source winding to the runtime's backface
// convention.
var (
	triOrder  = []int{0, 2, 1}
	quadOrder = []int{3, 2, 0, 1}
)

// UV is a texel coordinate in the pixel space of a face's texture.
type UV struct {
	U, V int
}

// Texel maps a normalized UV into a texture of the given size. The V axis
// is flipped since texel rows start at the top.
func Texel(uv math3d.Vec2, texW, texH float64) UV {
	return UV{
		U: int(uv.X * texW),
		V: int(texH - uv.Y*texH),
	}
}

// Face is a packed triangle or quad. Unused slots are zero.
type Face struct {
	Vertices [4]int
	UVs      [4]int
	Corners  int
}

// IsTri reports whether the face is a triangle.
func (f Face) IsTri() bool {
	return f.Corners == 3
}

// PackFace reorders polygon p into target winding. Vertex indices are offset
// by vertexOffset. When uvs holds the mesh's UV layer, one texel per corner
// is returned in packed order and the face's UV indices count up from
// uvOffset; otherwise the UV indices stay zero. Polygons that are not
// triangles or quads are not packed and ok is false.
func PackFace(p models.Polygon, uvs []math3d.Vec2, vertexOffset, uvOffset int, texW, texH float64) (face Face, texels []UV, ok bool) {
	var order []int
	switch p.Len() {
	case 3:
		order = triOrder
	case 4:
		order = quadOrder
	default:
		return Face{}, nil, false
	}

	face.Corners = len(order)
	for i, c := range order {
		face.Vertices[i] = p.Vertices[c] + vertexOffset
	}
	if uvs == nil {
		return face, nil, true
	}

	texels = make([]UV, len(order))
	for i, c := range order {
		var uv math3d.Vec2
		if loop := p.LoopStart + c; loop < len(uvs) {
			uv = uvs[loop]
		}
		texels[i] = Texel(uv, texW, texH)
		face.UVs[i] = uvOffset + i
	}
	return face, texels, true
}
