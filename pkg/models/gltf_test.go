package models

import (
	"bytes"
	"image"
	"image/png"
	"math"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/taigrr/ps1export/pkg/anim"
	"github.com/taigrr/ps1export/pkg/math3d"
)

// floorDocument builds a one-node document holding a textured, vertex
// colored floor quad split into two triangles.
func floorDocument(t *testing.T) *gltf.Document {
	t.Helper()
	doc := gltf.NewDocument()

	pos := modeler.WritePosition(doc, [][3]float32{{0, 0, 0}, {1, 0, 0}, {1, 0, -1}, {0, 0, -1}})
	nrm := modeler.WriteNormal(doc, [][3]float32{{0, 1, 0}, {0, 1, 0}, {0, 1, 0}, {0, 1, 0}})
	uv := modeler.WriteTextureCoord(doc, [][2]float32{{0, 0}, {1, 0}, {1, 1}, {0, 1}})
	col := modeler.WriteColor(doc, [][4]uint8{{255, 255, 255, 255}, {255, 0, 0, 255}, {255, 255, 255, 255}, {255, 255, 255, 255}})
	idx := modeler.WriteIndices(doc, []uint16{0, 1, 2, 0, 2, 3})

	var buf bytes.Buffer
	tex := image.NewNRGBA(image.Rect(0, 0, 8, 4))
	for i := 3; i < len(tex.Pix); i += 4 {
		tex.Pix[i] = 255
	}
	if err := png.Encode(&buf, tex); err != nil {
		t.Fatal(err)
	}
	img, err := modeler.WriteImage(doc, "brick.png", "image/png", &buf)
	if err != nil {
		t.Fatalf("write image: %v", err)
	}
	doc.Textures = append(doc.Textures, &gltf.Texture{Source: gltf.Index(img)})

	doc.Materials = append(doc.Materials, &gltf.Material{
		Name:      "Brick",
		AlphaMode: gltf.AlphaBlend,
		PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
			MetallicFactor:   gltf.Float(0.25),
			BaseColorTexture: &gltf.TextureInfo{Index: 0},
		},
		Extensions: gltf.Extensions{extSpecular: map[string]any{"specularFactor": 0.6}},
	})

	doc.Meshes = append(doc.Meshes, &gltf.Mesh{
		Name: "FloorMesh",
		Primitives: []*gltf.Primitive{{
			Attributes: map[string]int{
				gltf.POSITION:   pos,
				gltf.NORMAL:     nrm,
				gltf.TEXCOORD_0: uv,
				gltf.COLOR_0:    col,
			},
			Indices:  gltf.Index(idx),
			Material: gltf.Index(0),
		}},
	})
	doc.Nodes = append(doc.Nodes, &gltf.Node{Name: "Floor", Mesh: gltf.Index(0)})
	doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, 0)
	return doc
}

func TestGLTFLoaderCreation(t *testing.T) {
	loader := NewGLTFLoader()
	if loader == nil {
		t.Fatal("NewGLTFLoader returned nil")
	}
	if !loader.CalculateNormals {
		t.Error("CalculateNormals should default to true")
	}
	if loader.WeldVertices || loader.MergeQuads {
		t.Error("welding and quad merging should default to off")
	}
	if loader.FPS != DefaultFPS {
		t.Errorf("FPS = %v, want %v", loader.FPS, DefaultFPS)
	}
}

func TestLoadInvalidPath(t *testing.T) {
	_, err := NewGLTFLoader().Load("/nonexistent/path.glb")
	if err == nil {
		t.Error("Expected error for nonexistent file")
	}
}

func TestFromDocumentFloor(t *testing.T) {
	scene, err := NewGLTFLoader().FromDocument(floorDocument(t), "")
	if err != nil {
		t.Fatalf("FromDocument: %v", err)
	}
	if len(scene.Objects) != 1 {
		t.Fatalf("objects = %d, want 1", len(scene.Objects))
	}
	if scene.Stage != nil {
		t.Error("scene without animations should have no stage")
	}

	obj := scene.Objects[0]
	if obj.Name != "Floor" {
		t.Fatalf("object name = %q, want Floor", obj.Name)
	}
	if obj.World != math3d.Identity() {
		t.Errorf("World = %v, want identity", obj.World)
	}

	mesh := obj.Mesh
	if mesh.Name != "FloorMesh" || mesh.VertexCount() != 4 {
		t.Errorf("mesh %q has %d vertices, want FloorMesh with 4", mesh.Name, mesh.VertexCount())
	}

	var corners [][]int
	for _, p := range mesh.Polygons {
		corners = append(corners, p.Vertices)
		if p.Smooth {
			t.Errorf("polygon %v with equal normals should be flat", p.Vertices)
		}
		if p.Material != 0 {
			t.Errorf("polygon material slot = %d, want 0", p.Material)
		}
	}
	if want := [][]int{{0, 1, 2}, {0, 2, 3}}; !reflect.DeepEqual(corners, want) {
		t.Errorf("polygons = %v, want %v", corners, want)
	}

	// V is flipped to a bottom-left origin.
	if got := mesh.LoopUV(2); !got.Equal(math3d.V2(1, 0), 1e-6) {
		t.Errorf("loop 2 UV = %v, want (1, 0)", got)
	}

	if len(mesh.Colors) != 1 || mesh.Colors[0].Domain != DomainVertex {
		t.Fatalf("colors = %+v, want one VERTEX attribute", mesh.Colors)
	}
	if got := mesh.Colors[0].Data[1]; got != (Color{1, 0, 0}) {
		t.Errorf("vertex 1 color = %v, want red", got)
	}

	mat := mesh.GetMaterial(0)
	if mat == nil || mat.Name != "Brick" || mat.Blend != BlendBlend {
		t.Fatalf("material = %+v", mat)
	}
	img := mat.FirstNode(NodeImageTexture)
	if img == nil || img.Image.Name != "brick.png" || img.Image.Width != 8 || img.Image.Height != 4 || img.Image.HasAlpha {
		t.Errorf("image node = %+v", img)
	}
	bsdf := mat.FirstNode(NodePrincipled)
	if v, _ := bsdf.Input(InputMetallic); math.Abs(v-0.25) > 1e-6 {
		t.Errorf("Metallic = %v, want 0.25", v)
	}
	if v, ok := bsdf.Input(InputSpecularIORLevel); !ok || math.Abs(v-0.3) > 1e-9 {
		t.Errorf("Specular IOR Level = %v, %v; want 0.3", v, ok)
	}
}

func TestFromDocumentMergeQuads(t *testing.T) {
	loader := NewGLTFLoader()
	loader.MergeQuads = true

	scene, err := loader.FromDocument(floorDocument(t), "")
	if err != nil {
		t.Fatalf("FromDocument: %v", err)
	}
	mesh := scene.Objects[0].Mesh
	if len(mesh.Polygons) != 1 {
		t.Fatalf("polygons = %d, want 1 quad", len(mesh.Polygons))
	}
	if got := mesh.Polygons[0].Vertices; !reflect.DeepEqual(got, []int{0, 1, 2, 3}) {
		t.Errorf("quad = %v, want [0 1 2 3]", got)
	}
	if got := mesh.LoopCount(); len(mesh.UVs) != got {
		t.Errorf("UVs = %d, want one per loop (%d)", len(mesh.UVs), got)
	}
}

func TestFromDocumentWeld(t *testing.T) {
	doc := gltf.NewDocument()
	pos := modeler.WritePosition(doc, [][3]float32{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 0, 0}, {1, 1, 0}, {0, 1, 0}})
	nrm := modeler.WriteNormal(doc, [][3]float32{{0, 0, 1}, {0, 0, 1}, {0, 0, 1}, {0, 0, 1}, {0, 0, 1}, {0, 0, 1}})
	col := modeler.WriteColor(doc, [][4]uint8{
		{255, 255, 255, 255}, {255, 255, 255, 255}, {255, 255, 255, 255},
		{0, 0, 255, 255}, {255, 255, 255, 255}, {255, 255, 255, 255},
	})
	doc.Meshes = append(doc.Meshes, &gltf.Mesh{Primitives: []*gltf.Primitive{{
		Attributes: map[string]int{gltf.POSITION: pos, gltf.NORMAL: nrm, gltf.COLOR_0: col},
	}}})
	doc.Nodes = append(doc.Nodes, &gltf.Node{Mesh: gltf.Index(0)})
	doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, 0)

	loader := NewGLTFLoader()
	loader.WeldVertices = true
	scene, err := loader.FromDocument(doc, "")
	if err != nil {
		t.Fatalf("FromDocument: %v", err)
	}

	obj := scene.Objects[0]
	if obj.Name != "object_0" {
		t.Errorf("unnamed object = %q, want object_0", obj.Name)
	}
	mesh := obj.Mesh
	if mesh.VertexCount() != 4 {
		t.Errorf("vertices = %d, want 4 after welding", mesh.VertexCount())
	}
	if got := mesh.Polygons[1].Vertices; !reflect.DeepEqual(got, []int{0, 2, 3}) {
		t.Errorf("second triangle = %v, want [0 2 3]", got)
	}
	attr := mesh.Colors[0]
	if attr.Domain != DomainCorner || len(attr.Data) != 6 {
		t.Fatalf("welded colors = %v with %d samples, want CORNER with 6", attr.Domain, len(attr.Data))
	}
	if attr.Data[3] != (Color{0, 0, 1}) {
		t.Errorf("corner 3 color = %v, want blue", attr.Data[3])
	}
}

func TestFromDocumentGeneratesNormals(t *testing.T) {
	doc := gltf.NewDocument()
	pos := modeler.WritePosition(doc, [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}})
	doc.Meshes = append(doc.Meshes, &gltf.Mesh{Name: "Tri", Primitives: []*gltf.Primitive{{
		Attributes: map[string]int{gltf.POSITION: pos},
	}}})
	doc.Nodes = append(doc.Nodes, &gltf.Node{Mesh: gltf.Index(0)})
	doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, 0)

	scene, err := NewGLTFLoader().FromDocument(doc, "")
	if err != nil {
		t.Fatalf("FromDocument: %v", err)
	}
	mesh := scene.Objects[0].Mesh
	if scene.Objects[0].Name != "Tri" {
		t.Errorf("object name = %q, want mesh name fallback Tri", scene.Objects[0].Name)
	}
	if mesh.HasUVs() || len(mesh.Colors) != 0 || len(mesh.Materials) != 0 {
		t.Errorf("mesh should have no UVs, colors or materials")
	}
	for i, v := range mesh.Vertices {
		if !v.Normal.Equal(math3d.V3(0, 0, 1), 1e-9) {
			t.Errorf("vertex %d normal = %v, want +Z", i, v.Normal)
		}
	}
	if mesh.Polygons[0].Smooth || mesh.Polygons[0].Material != -1 {
		t.Errorf("polygon = %+v, want flat without material", mesh.Polygons[0])
	}
}

func TestLoadGLB(t *testing.T) {
	path := filepath.Join(t.TempDir(), "room.glb")
	if err := gltf.SaveBinary(floorDocument(t), path); err != nil {
		t.Fatalf("save: %v", err)
	}

	scene, err := NewGLTFLoader().Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if scene.Name != "room" {
		t.Errorf("scene name = %q, want room", scene.Name)
	}
	if len(scene.Objects) != 1 || scene.Objects[0].Mesh.VertexCount() != 4 {
		t.Errorf("unexpected scene contents: %+v", scene.Objects)
	}
}

func TestFromDocumentNodeHierarchy(t *testing.T) {
	doc := floorDocument(t)
	parent := &gltf.Node{Name: "Root", Children: []int{0}}
	parent.Translation[0] = 5
	doc.Nodes = append(doc.Nodes, parent)
	doc.Scenes[0].Nodes = []int{1}

	scene, err := NewGLTFLoader().FromDocument(doc, "")
	if err != nil {
		t.Fatalf("FromDocument: %v", err)
	}
	if got := scene.Objects[0].World.MulVec3(math3d.Zero3()); !got.Equal(math3d.V3(5, 0, 0), 1e-9) {
		t.Errorf("child translation = %v, want (5, 0, 0)", got)
	}
}

// addTranslationClip animates node from the origin to (x, y, z) over one second.
func addTranslationClip(doc *gltf.Document, name string, node int, x, y, z float32) {
	in := modeler.WriteAccessor(doc, gltf.TargetNone, []float32{0, 1})
	out := modeler.WriteAccessor(doc, gltf.TargetNone, [][3]float32{{0, 0, 0}, {x, y, z}})
	doc.Animations = append(doc.Animations, &gltf.Animation{
		Name: name,
		Samplers: []*gltf.AnimationSampler{{
			Input:         in,
			Output:        out,
			Interpolation: gltf.InterpolationLinear,
		}},
		Channels: []*gltf.AnimationChannel{{
			Sampler: 0,
			Target:  gltf.AnimationChannelTarget{Node: gltf.Index(node), Path: gltf.TRSTranslation},
		}},
	})
}

func TestStageObjectAnimation(t *testing.T) {
	doc := floorDocument(t)
	addTranslationClip(doc, "Slide", 0, 2, 0, 0)

	scene, err := NewGLTFLoader().FromDocument(doc, "")
	if err != nil {
		t.Fatalf("FromDocument: %v", err)
	}
	stage := scene.Stage
	if stage == nil {
		t.Fatal("expected a stage")
	}

	if want := []anim.Clip{{Name: "Slide", Start: 0, End: 24}}; !reflect.DeepEqual(stage.Clips(), want) {
		t.Errorf("clips = %v, want %v", stage.Clips(), want)
	}
	ctrls := stage.Controllers()
	if len(ctrls) != 1 || ctrls[0].Name() != "Floor" || ctrls[0].Clip() != "" {
		t.Fatalf("controllers = %v", ctrls)
	}

	// Unbound clips leave the rest pose.
	if err := stage.SetFrame(12); err != nil {
		t.Fatal(err)
	}
	_, world, err := stage.Evaluate("Floor")
	if err != nil {
		t.Fatal(err)
	}
	if world != math3d.Identity() {
		t.Errorf("rest world = %v, want identity", world)
	}

	pose := anim.Acquire(stage)
	if err := pose.Bind("Slide"); err != nil {
		t.Fatal(err)
	}
	if err := pose.Seek(12); err != nil {
		t.Fatal(err)
	}
	positions, world, err := stage.Evaluate("Floor")
	if err != nil {
		t.Fatal(err)
	}
	if got := world.MulVec3(positions[0]); !got.Equal(math3d.V3(1, 0, 0), 1e-6) {
		t.Errorf("vertex 0 at frame 12 = %v, want (1, 0, 0)", got)
	}

	if err := pose.Release(); err != nil {
		t.Fatal(err)
	}
	if stage.Frame() != 12 || ctrls[0].Clip() != "" {
		t.Errorf("pose not restored: frame %d clip %q", stage.Frame(), ctrls[0].Clip())
	}

	if err := ctrls[0].SetClip("Missing"); err == nil {
		t.Error("expected error binding an unknown clip")
	}
	if _, _, err := stage.Evaluate("Nobody"); err == nil {
		t.Error("expected error evaluating an unknown object")
	}
}

func TestStageSkinning(t *testing.T) {
	doc := floorDocument(t)
	prim := doc.Meshes[0].Primitives[0]
	prim.Attributes[gltf.JOINTS_0] = modeler.WriteJoints(doc, [][4]uint8{{0, 0, 0, 0}, {0, 0, 0, 0}, {0, 0, 0, 0}, {0, 0, 0, 0}})
	prim.Attributes[gltf.WEIGHTS_0] = modeler.WriteWeights(doc, [][4]float32{{1, 0, 0, 0}, {1, 0, 0, 0}, {1, 0, 0, 0}, {1, 0, 0, 0}})

	doc.Nodes[0].Translation[0] = 10 // Ignored for skinned meshes
	doc.Nodes[0].Skin = gltf.Index(0)
	doc.Nodes = append(doc.Nodes, &gltf.Node{Name: "Bone"})
	doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, 1)
	doc.Skins = append(doc.Skins, &gltf.Skin{Name: "Armature", Joints: []int{1}})
	addTranslationClip(doc, "Lift", 1, 0, 1, 0)

	scene, err := NewGLTFLoader().FromDocument(doc, "")
	if err != nil {
		t.Fatalf("FromDocument: %v", err)
	}
	if scene.Objects[0].World != math3d.Identity() {
		t.Errorf("skinned object world should be identity")
	}

	stage := scene.Stage
	ctrls := stage.Controllers()
	if len(ctrls) != 1 || ctrls[0].Name() != "Armature" {
		t.Fatalf("controllers = %v, want the Armature skin only", ctrls)
	}

	if err := ctrls[0].SetClip("Lift"); err != nil {
		t.Fatal(err)
	}
	if err := stage.SetFrame(24); err != nil {
		t.Fatal(err)
	}
	positions, world, err := stage.Evaluate("Floor")
	if err != nil {
		t.Fatal(err)
	}
	if world != math3d.Identity() {
		t.Errorf("skinned world = %v, want identity", world)
	}
	if !positions[1].Equal(math3d.V3(1, 1, 0), 1e-6) {
		t.Errorf("skinned vertex 1 = %v, want (1, 1, 0)", positions[1])
	}
}

func TestLinearToSRGB(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{-0.5, 0},
		{0, 0},
		{0.001, 0.01292},
		{0.5, 0.735356983},
		{1, 1},
		{1.5, 1},
	}
	for _, tc := range tests {
		if got := linearToSRGB(tc.in); math.Abs(got-tc.want) > 1e-5 {
			t.Errorf("linearToSRGB(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
	// Full channels must survive byte truncation.
	if b := int(linearToSRGB(1) * 255); b != 255 {
		t.Errorf("full channel byte = %d, want 255", b)
	}
}
