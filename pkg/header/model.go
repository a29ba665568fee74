package header

import (
	"fmt"
	"io"
	"strings"

	"github.com/taigrr/ps1export/pkg/encode"
	"github.com/taigrr/ps1export/pkg/fixed"
)

var defineReplacer = strings.NewReplacer(" ", "_", "-", "_", ".", "_")

// defineName upper-cases a free-form name into a define suffix.
func defineName(name string) string {
	return defineReplacer.Replace(strings.ToUpper(name))
}

// dim returns the array dimension for a table of n rows. Empty tables are
// written as one dummy row, since C arrays cannot be empty.
func dim(define string, n int) string {
	if n == 0 {
		return "1"
	}
	return define
}

// WriteModel renders m as the header of the model called name.
func WriteModel(out io.Writer, name string, m *encode.Model, opts Options) error {
	w := newWriter(out)
	ident := Sanitize(name)
	up, low := strings.ToUpper(ident), strings.ToLower(ident)

	system := "Y-up (source)"
	if opts.ZUp {
		system = "Z-up (PS1)"
	}
	w.printf("// PlayStation 1 Model Export\n")
	w.printf("// Model: %s\n", name)
	w.printf("// Coordinate System: %s\n\n", system)
	w.printf("#ifndef %s_H\n#define %s_H\n\n", up, up)
	w.printf("%s\n\n", opts.includes())

	triCount, quadCount := m.TriCount(), m.QuadCount()
	w.printf("#define %s_VERTICES_COUNT %d\n", up, len(m.Vertices))
	w.printf("#define %s_UVS_COUNT %d\n", up, len(m.UVs))
	w.printf("#define %s_FACES_COUNT %d\n", up, len(m.Faces))
	w.printf("#define %s_TRI_COUNT %d\n", up, triCount)
	w.printf("#define %s_QUAD_COUNT %d\n", up, quadCount)
	w.printf("#define %s_PS1_SCALE %d\n\n", up, fixed.PositionScale)

	vertDim := dim(up+"_VERTICES_COUNT", len(m.Vertices))
	w.printf("// Vertices (fixed-point, scaled by %d)\n", fixed.PositionScale)
	writeVectors(w, fmt.Sprintf("SVECTOR %s_vertices[%s]", low, vertDim), m.Vertices)
	w.printf("// Normals (fixed-point, %d = 1.0)\n", fixed.NormalScale)
	writeVectors(w, fmt.Sprintf("SVECTOR %s_normals[%s]", low, vertDim), m.Normals)

	writeTextures(w, up, m.Textures)

	w.line("// UV coordinates (texels)")
	w.printf("SVECTOR %s_uvs[%s] = {\n", low, dim(up+"_UVS_COUNT", len(m.UVs)))
	for _, uv := range m.UVs {
		w.printf("    { %d, %d, 0 },\n", uv.U, uv.V)
	}
	if len(m.UVs) == 0 {
		w.line("    { 0, 0, 0 },")
	}
	w.line("};\n")

	writeFaces(w, up, low, m)
	writeFaceTables(w, up, low, m)

	w.line("// Vertex colors")
	if !m.HasColors || len(m.Colors) == 0 {
		w.printf("#define %s_VERTEX_COLORS_COUNT 1\n", up)
		w.printf("CVECTOR %s_vertex_colors[%s_VERTEX_COLORS_COUNT] = {\n", low, up)
		c := encode.PlaceholderRGB
		w.printf("    { %d, %d, %d, 0 },\n", c.R, c.G, c.B)
	} else {
		w.printf("#define %s_VERTEX_COLORS_COUNT %d\n", up, len(m.Colors))
		w.printf("CVECTOR %s_vertex_colors[%s_VERTEX_COLORS_COUNT] = {\n", low, up)
		for _, c := range m.Colors {
			w.printf("    { %d, %d, %d, 0 },\n", c.R, c.G, c.B)
		}
	}
	w.line("};\n")

	w.line("#endif")
	return w.flush()
}

func writeVectors(w *writer, decl string, vs []fixed.SVector) {
	w.printf("%s = {\n", decl)
	for _, v := range vs {
		w.printf("    { %d, %d, %d },\n", v.X, v.Y, v.Z)
	}
	if len(vs) == 0 {
		w.line("    { 0, 0, 0 },")
	}
	w.line("};\n")
}

func writeTextures(w *writer, up string, textures []encode.Texture) {
	w.line("// Texture references")
	w.printf("#define %s_TEXTURE_COUNT %d\n", up, len(textures))
	seen := make(map[string]bool)
	for i, tex := range textures {
		w.printf("#define %s_TEXTURE_%d_NAME %q\n", up, i, tex.Name)
		def := TextureDefine(tex.Name)
		if seen[def] {
			continue
		}
		seen[def] = true
		w.printf("#define %s_TEXTURE_%s %d\n", up, def, i)
	}
	w.line("")
}

func writeFaces(w *writer, up, low string, m *encode.Model) {
	w.line("// Faces (triangles wound 0,2,1; quads 3,2,0,1)")
	for _, kind := range []struct {
		name    string
		define  string
		corners int
	}{
		{"tri", up + "_TRI_COUNT", 3},
		{"quad", up + "_QUAD_COUNT", 4},
	} {
		var faces []encode.Face
		for _, f := range m.Faces {
			if f.Corners == kind.corners {
				faces = append(faces, f)
			}
		}
		d := dim(kind.define, len(faces))

		w.printf("int %s_%s_faces[%s][%d] = {\n", low, kind.name, d, kind.corners)
		for _, f := range faces {
			w.printf("    %s,\n", row(f.Vertices[:kind.corners]))
		}
		if len(faces) == 0 {
			w.printf("    %s,\n", row(make([]int, kind.corners)))
		}
		w.line("};\n")

		w.printf("int %s_%s_uvs[%s][%d] = {\n", low, kind.name, d, kind.corners)
		for _, f := range faces {
			w.printf("    %s,\n", row(f.UVs[:kind.corners]))
		}
		if len(faces) == 0 {
			w.printf("    %s,\n", row(make([]int, kind.corners)))
		}
		w.line("};\n")
	}
}

func row(vals []int) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = fmt.Sprint(v)
	}
	return "{ " + strings.Join(parts, ", ") + " }"
}

// writeFaceTables writes the per-face arrays, triangle rows first.
func writeFaceTables(w *writer, up, low string, m *encode.Model) {
	rows := m.RowOrder()
	d := dim(up+"_FACES_COUNT", len(rows))

	byteTable := func(decl string, value func(i int) string, comment func(i int) string) {
		w.printf("%s[%s] = {\n", decl, d)
		for _, i := range rows {
			if comment != nil {
				w.printf("    %s,  // %s\n", value(i), comment(i))
				continue
			}
			w.printf("    %s,\n", value(i))
		}
		if len(rows) == 0 {
			w.line("    0,")
		}
		w.line("};\n")
	}

	w.line("// Per-face texture index (-1 = no texture)")
	byteTable("signed char "+low+"_face_texture_idx", func(i int) string {
		return fmt.Sprint(m.Materials[i].TextureIndex)
	}, nil)

	w.line("// Material flags")
	w.line("// Bit 0: unlit, 1: textured, 2: smooth, 3: vertex colors,")
	w.line("// 4: semi-transparent, 5: cutout, 6: specular, 7: metallic")
	byteTable("unsigned char "+low+"_material_flags", func(i int) string {
		return fmt.Sprintf("0b%08b", m.Materials[i].Flags())
	}, func(i int) string {
		return m.Materials[i].Describe()
	})

	if m.Options.Specular {
		w.line("// Specular (0-255)")
		byteTable("unsigned char "+low+"_specular", func(i int) string {
			return fmt.Sprint(m.Materials[i].SpecularByte())
		}, nil)
	}
	if m.Options.Metallic {
		w.line("// Metallic (0-255)")
		byteTable("unsigned char "+low+"_metallic", func(i int) string {
			return fmt.Sprint(m.Materials[i].MetallicByte())
		}, nil)
	}

	w.line("// Meshes")
	w.printf("#define %s_MESH_COUNT %d\n", up, len(m.MeshNames))
	for i, name := range m.MeshNames {
		w.printf("#define %s_MESH_%s %d\n", up, defineName(name), i)
	}
	byteTable("unsigned char "+low+"_mesh_ids", func(i int) string {
		return fmt.Sprint(m.MeshIDs[i])
	}, nil)
}
