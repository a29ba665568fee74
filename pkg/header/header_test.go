package header

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/taigrr/ps1export/pkg/anim"
	"github.com/taigrr/ps1export/pkg/encode"
	"github.com/taigrr/ps1export/pkg/fixed"
	"github.com/taigrr/ps1export/pkg/math3d"
	"github.com/taigrr/ps1export/pkg/models"
)

func triangleScene() []*models.Object {
	m := models.NewMesh("tri")
	for _, p := range []math3d.Vec3{math3d.V3(0, 0, 0), math3d.V3(1, 0, 0), math3d.V3(0, 1, 0)} {
		m.Vertices = append(m.Vertices, models.Vertex{Position: p, Normal: math3d.V3(0, 0, 1)})
	}
	m.AddPolygon([]int{0, 1, 2}, -1, true)
	return []*models.Object{{Name: "tri", World: math3d.Identity(), Mesh: m}}
}

// mixedScene has a quad listed before a textured triangle.
func mixedScene() []*models.Object {
	m := models.NewMesh("mixed")
	for _, p := range []math3d.Vec3{
		math3d.V3(0, 0, 0), math3d.V3(1, 0, 0), math3d.V3(1, 1, 0), math3d.V3(0, 1, 0), math3d.V3(2, 0, 0),
	} {
		m.Vertices = append(m.Vertices, models.Vertex{Position: p, Normal: math3d.V3(0, 0, 1)})
	}
	m.Materials = []*models.Material{{
		Name: "tex",
		Nodes: []models.ShaderNode{{
			Kind:  models.NodeImageTexture,
			Image: &models.Image{Name: "My Brick-01.png", Width: 64, Height: 64},
		}},
	}}
	m.AddPolygon([]int{0, 1, 2, 3}, -1, false,
		math3d.V2(0, 0), math3d.V2(1, 0), math3d.V2(1, 1), math3d.V2(0, 1))
	m.AddPolygon([]int{1, 4, 2}, 0, true,
		math3d.V2(0, 0), math3d.V2(1, 0), math3d.V2(0, 1))
	m.Colors = []models.ColorAttribute{{
		Name: "Col", Domain: models.DomainFace,
		Data: []models.Color{{R: 1, G: 1, B: 1}, {R: 1, G: 0, B: 0}},
	}}
	return []*models.Object{{Name: "Cube.001", World: math3d.Identity(), Mesh: m}}
}

func render(t *testing.T, name string, objs []*models.Object, eopts encode.Options, hopts Options) string {
	t.Helper()
	model := encode.NewEncoder(fixed.Transform{ZUp: hopts.ZUp}, eopts, nil).Encode(objs)
	var buf bytes.Buffer
	if err := WriteModel(&buf, name, model, hopts); err != nil {
		t.Fatalf("WriteModel() error = %v", err)
	}
	return buf.String()
}

func TestWriteModelSingleTriangle(t *testing.T) {
	out := render(t, "tri", triangleScene(), encode.DefaultOptions(), Options{Dialect: DialectPSYQ})

	for _, want := range []string{
		"#ifndef TRI_H\n#define TRI_H\n",
		"#include <sys/types.h>\n#include <libgte.h>",
		"#define TRI_VERTICES_COUNT 3\n",
		"#define TRI_UVS_COUNT 0\n",
		"#define TRI_FACES_COUNT 1\n",
		"#define TRI_TRI_COUNT 1\n",
		"#define TRI_QUAD_COUNT 0\n",
		"#define TRI_PS1_SCALE 3072\n",
		"SVECTOR tri_vertices[TRI_VERTICES_COUNT] = {\n    { 0, 0, 0 },\n    { 3072, 0, 0 },\n    { 0, 3072, 0 },\n};",
		"SVECTOR tri_normals[TRI_VERTICES_COUNT] = {\n    { 0, 0, 4096 },",
		"#define TRI_TEXTURE_COUNT 0\n",
		"SVECTOR tri_uvs[1] = {\n    { 0, 0, 0 },\n};",
		"int tri_tri_faces[TRI_TRI_COUNT][3] = {\n    { 0, 2, 1 },\n};",
		"int tri_tri_uvs[TRI_TRI_COUNT][3] = {\n    { 0, 0, 0 },\n};",
		"int tri_quad_faces[1][4] = {\n    { 0, 0, 0, 0 },\n};",
		"int tri_quad_uvs[1][4] = {\n    { 0, 0, 0, 0 },\n};",
		"signed char tri_face_texture_idx[TRI_FACES_COUNT] = {\n    -1,\n};",
		"unsigned char tri_material_flags[TRI_FACES_COUNT] = {\n    0b00000100,  // lit, smooth\n};",
		"#define TRI_MESH_COUNT 1\n#define TRI_MESH_TRI 0\n",
		"unsigned char tri_mesh_ids[TRI_FACES_COUNT] = {\n    0,\n};",
		"#define TRI_VERTEX_COLORS_COUNT 1\nCVECTOR tri_vertex_colors[TRI_VERTEX_COLORS_COUNT] = {\n    { 128, 128, 128, 0 },\n};",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
	for _, unwanted := range []string{"tri_specular", "tri_metallic"} {
		if strings.Contains(out, unwanted) {
			t.Errorf("output has %s without the option", unwanted)
		}
	}
	if !strings.HasSuffix(out, "#endif\n") {
		t.Error("output does not end with #endif")
	}
}

func TestWriteModelFaceTablesTrianglesFirst(t *testing.T) {
	opts := encode.Options{Specular: true, Metallic: true}
	out := render(t, "my-model", mixedScene(), opts, Options{})

	for _, want := range []string{
		"#ifndef MY_MODEL_H",
		"#define MY_MODEL_TEXTURE_COUNT 1\n",
		"#define MY_MODEL_TEXTURE_0_NAME \"My Brick-01.png\"\n",
		"#define MY_MODEL_TEXTURE_MY_BRICK_01 0\n",
		// The triangle comes first in every per-face table.
		"signed char my_model_face_texture_idx[MY_MODEL_FACES_COUNT] = {\n    0,\n    -1,\n};",
		"    0b11001110,  // lit, textured, smooth, vertex-colored\n    0b11000000,  // lit, flat\n",
		"unsigned char my_model_specular[MY_MODEL_FACES_COUNT] = {\n    127,\n    127,\n};",
		"unsigned char my_model_metallic[MY_MODEL_FACES_COUNT] = {\n    0,\n    0,\n};",
		"#define MY_MODEL_MESH_CUBE_001 0\n",
		"int my_model_quad_faces[MY_MODEL_QUAD_COUNT][4] = {\n    { 3, 2, 0, 1 },\n};",
		"int my_model_tri_uvs[MY_MODEL_TRI_COUNT][3] = {\n    { 4, 5, 6 },\n};",
		"int my_model_quad_uvs[MY_MODEL_QUAD_COUNT][4] = {\n    { 0, 1, 2, 3 },\n};",
		"#define MY_MODEL_VERTEX_COLORS_COUNT 2\n",
		"    { 255, 255, 255, 0 },\n    { 255, 0, 0, 0 },\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestWriteModelDeterministic(t *testing.T) {
	first := render(t, "scene", mixedScene(), encode.DefaultOptions(), Options{ZUp: true})
	second := render(t, "scene", mixedScene(), encode.DefaultOptions(), Options{ZUp: true})
	if first != second {
		t.Error("encoding the same scene twice gave different output")
	}
}

func TestWriteModelPSYQo(t *testing.T) {
	out := render(t, "tri", triangleScene(), encode.DefaultOptions(), Options{Dialect: DialectPSYQo, ZUp: true})

	for _, want := range []string{
		"// Coordinate System: Z-up (PS1)",
		"#include <stdint.h>",
		"#ifndef SVECTOR_DEFINED",
		"int16_t vx, vy, vz;",
		"#ifndef CVECTOR_DEFINED",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
	if strings.Contains(out, "libgte.h") {
		t.Error("psyqo header includes libgte.h")
	}
}

func TestWriteAnimation(t *testing.T) {
	frame := []fixed.SVector{{X: 1}, {Y: 2}, {Z: 3}, {X: -4, Y: -5, Z: -6}}
	series := anim.FrameSeries{
		Clip:   anim.Clip{Name: "walk cycle", Start: 1, End: 2},
		Frames: [][]fixed.SVector{frame, frame},
	}

	var buf bytes.Buffer
	if err := WriteAnimation(&buf, "hero-model", series, Options{}); err != nil {
		t.Fatalf("WriteAnimation() error = %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"// Animation: walk cycle\n// Frames: 2\n",
		"#ifndef HERO_MODEL_WALK_CYCLE_H",
		"#define WALK_CYCLE_FRAMES_COUNT 2\n",
		"#define WALK_CYCLE_VERTICES_COUNT 4\n",
		"SVECTOR walk_cycle_anim[WALK_CYCLE_FRAMES_COUNT][WALK_CYCLE_VERTICES_COUNT] = {\n",
		"    { // Frame 1\n        { 1, 0, 0 },\n        { 0, 2, 0 },\n        { 0, 0, 3 },\n        { -4, -5, -6 },\n    },\n    { // Frame 2\n",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestNames(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"sanitize", Sanitize("my model-v2"), "my_model_v2"},
		{"sanitize keeps case", Sanitize("Rika"), "Rika"},
		{"texture define", TextureDefine("rika texture-1.v2.png"), "RIKA_TEXTURE_1_V2"},
		{"texture without extension", TextureDefine("atlas"), "ATLAS"},
		{"model file", ModelFileName("rika"), "rika.h"},
		{"animation file", AnimationFileName("rika", "walk-fast"), "rika-walk_fast.h"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if tc.got != tc.want {
				t.Errorf("got %q, want %q", tc.got, tc.want)
			}
		})
	}
}

func TestParseDialect(t *testing.T) {
	tests := []struct {
		in      string
		want    Dialect
		wantErr bool
	}{
		{"psyq", DialectPSYQ, false},
		{"PSYQO", DialectPSYQo, false},
		{"", DialectPSYQ, false},
		{"gcc", "", true},
	}
	for _, tc := range tests {
		got, err := ParseDialect(tc.in)
		if (err != nil) != tc.wantErr || got != tc.want {
			t.Errorf("ParseDialect(%q) = %q, %v", tc.in, got, err)
		}
	}
}

type failWriter struct{}

var errFull = errors.New("disk full")

func (failWriter) Write([]byte) (int, error) { return 0, errFull }

func TestWriteErrors(t *testing.T) {
	model := encode.NewEncoder(fixed.Transform{}, encode.DefaultOptions(), nil).Encode(triangleScene())
	if err := WriteModel(failWriter{}, "tri", model, Options{}); !errors.Is(err, errFull) {
		t.Errorf("WriteModel() error = %v, want %v", err, errFull)
	}
	series := anim.FrameSeries{Clip: anim.Clip{Name: "a"}, Frames: [][]fixed.SVector{{{}}}}
	if err := WriteAnimation(failWriter{}, "tri", series, Options{}); !errors.Is(err, errFull) {
		t.Errorf("WriteAnimation() error = %v, want %v", err, errFull)
	}
}
