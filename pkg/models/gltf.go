package models

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/qmuntal/gltf"
	"go.uber.org/zap"

	"github.com/taigrr/ps1export/pkg/math3d"
)

// extSpecular carries the "Specular IOR Level" of principled materials.
const extSpecular = "KHR_materials_specular"

// GLTFLoader loads glTF/GLB files into a Scene.
type GLTFLoader struct {
	// Options
	CalculateNormals bool    // Generate smooth normals for primitives without NORMAL
	WeldVertices     bool    // Merge vertices that share position and normal
	MergeQuads       bool    // Join coplanar triangle pairs into quads
	MergeAngle       float64 // Coplanarity limit for MergeQuads, in degrees
	FPS              float64 // Frame rate for animation clips
	Logger           *zap.Logger
}

// NewGLTFLoader creates a new glTF loader with default options.
func NewGLTFLoader() *GLTFLoader {
	return &GLTFLoader{
		CalculateNormals: true,
		MergeAngle:       DefaultMergeAngle,
		FPS:              DefaultFPS,
	}
}

// Load loads a glTF or GLB file and returns its scene.
func (l *GLTFLoader) Load(path string) (*Scene, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open gltf: %w", err)
	}

	scene, err := l.FromDocument(doc, filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	scene.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return scene, nil
}

// FromDocument converts a decoded document. Relative image URIs resolve
// against dir.
func (l *GLTFLoader) FromDocument(doc *gltf.Document, dir string) (*Scene, error) {
	log := l.logger()

	images := l.readImages(doc, dir)
	materials := make([]*Material, len(doc.Materials))
	for i, m := range doc.Materials {
		materials[i] = convertMaterial(doc, m, i, images)
	}

	world := worldMatrices(restPoses(doc), parentIndices(doc))

	scene := &Scene{}
	bindings := make(map[string]*binding)
	names := make(map[string]int)

	// Every node with a mesh becomes an object
	for _, ni := range sceneNodes(doc) {
		node := doc.Nodes[ni]
		if node.Mesh == nil || *node.Mesh < 0 || *node.Mesh >= len(doc.Meshes) {
			continue
		}
		m := doc.Meshes[*node.Mesh]

		mesh, b, err := l.processMesh(doc, m, materials)
		if err != nil {
			return nil, fmt.Errorf("process mesh %q: %w", m.Name, err)
		}
		mesh.Name = nameOr(m.Name, "mesh", *node.Mesh)

		name := node.Name
		if name == "" {
			name = nameOr(m.Name, "object", ni)
		}
		name = uniqueName(names, name)

		b.node = ni
		b.skin = -1
		objWorld := world[ni]
		if node.Skin != nil && *node.Skin >= 0 && *node.Skin < len(doc.Skins) {
			// Skinned vertices live in bind space; the node transform is ignored.
			b.skin = *node.Skin
			objWorld = math3d.Identity()
		}

		scene.Objects = append(scene.Objects, &Object{Name: name, World: objWorld, Mesh: mesh})
		bindings[name] = b

		log.Debug("loaded object",
			zap.String("object", name),
			zap.Int("vertices", mesh.VertexCount()),
			zap.Int("polygons", len(mesh.Polygons)),
			zap.Int("color_layers", len(mesh.Colors)))
	}

	if len(doc.Animations) > 0 {
		stage, err := newStage(doc, l.FPS, bindings)
		if err != nil {
			return nil, fmt.Errorf("build animation stage: %w", err)
		}
		if len(stage.clips) > 0 {
			scene.Stage = stage
		}
	}

	return scene, nil
}

// rawVertex is a primitive vertex before welding.
type rawVertex struct {
	position  math3d.Vec3
	normal    math3d.Vec3
	hasNormal bool
	uv        math3d.Vec2
	colors    []Color
	joints    [4]int
	weights   [4]float64
	deltas    []math3d.Vec3 // Morph target position deltas
}

type rawTriangle struct {
	v        [3]int
	material int
}

type weldKey struct {
	position math3d.Vec3
	normal   math3d.Vec3
	joints   [4]int
	weights  [4]float64
}

// processMesh merges the triangle primitives of a glTF mesh into one Mesh.
func (l *GLTFLoader) processMesh(doc *gltf.Document, m *gltf.Mesh, materials []*Material) (*Mesh, *binding, error) {
	log := l.logger()

	var verts []rawVertex
	var tris []rawTriangle
	slots := make(map[int]int)
	mesh := NewMesh(m.Name)
	hasUV, colorSets, targetCount := false, 0, 0

	for pi, prim := range m.Primitives {
		posIdx, ok := prim.Attributes[gltf.POSITION]
		if !ok {
			continue
		}

		// Get position accessor
		positions, err := readVec3Accessor(doc, posIdx)
		if err != nil {
			return nil, nil, fmt.Errorf("read positions: %w", err)
		}

		var indices []int
		if prim.Indices != nil {
			indices, err = readIndices(doc, *prim.Indices)
			if err != nil {
				return nil, nil, fmt.Errorf("read indices: %w", err)
			}
		} else {
			// No indices, vertices are used in order
			indices = make([]int, len(positions))
			for i := range indices {
				indices[i] = i
			}
		}

		triangles, ok := triangulate(prim.Mode, indices)
		if !ok {
			log.Warn("skipping non-triangle primitive",
				zap.String("mesh", m.Name), zap.Int("primitive", pi), zap.Any("mode", prim.Mode))
			continue
		}

		prims, err := readPrimitive(doc, prim, len(positions))
		if err != nil {
			return nil, nil, fmt.Errorf("primitive %d: %w", pi, err)
		}
		hasUV = hasUV || prims.uvs != nil
		colorSets = max(colorSets, len(prims.colors))
		targetCount = max(targetCount, len(prims.targets))

		// Base vertex index for this primitive
		baseVertex := len(verts)
		for i, p := range positions {
			v := rawVertex{position: p}
			if i < len(prims.normals) {
				v.normal, v.hasNormal = prims.normals[i], true
			}
			if i < len(prims.uvs) {
				// glTF uses top-left origin (V=0 at top), flip V for bottom-left origin
				v.uv = math3d.V2(prims.uvs[i].X, 1.0-prims.uvs[i].Y)
			}
			for _, set := range prims.colors {
				c := White
				if i < len(set) {
					c = set[i]
				}
				v.colors = append(v.colors, c)
			}
			if i < len(prims.joints) && i < len(prims.weights) {
				for k := range 4 {
					v.joints[k] = int(prims.joints[i][k])
				}
				v.weights = prims.weights[i]
			}
			for _, t := range prims.targets {
				var d math3d.Vec3
				if i < len(t) {
					d = t[i]
				}
				v.deltas = append(v.deltas, d)
			}
			verts = append(verts, v)
		}

		slot := -1
		if prim.Material != nil && *prim.Material >= 0 && *prim.Material < len(materials) {
			s, ok := slots[*prim.Material]
			if !ok {
				s = len(mesh.Materials)
				slots[*prim.Material] = s
				mesh.Materials = append(mesh.Materials, materials[*prim.Material])
			}
			slot = s
		}

		// glTF front faces are counter-clockwise like the source convention,
		// so corners keep their order here.
		for _, t := range triangles {
			for _, idx := range t {
				if idx < 0 || idx >= len(positions) {
					return nil, nil, fmt.Errorf("primitive %d: index %d out of range", pi, idx)
				}
			}
			tris = append(tris, rawTriangle{
				v:        [3]int{baseVertex + t[0], baseVertex + t[1], baseVertex + t[2]},
				material: slot,
			})
		}
	}

	// Map raw vertices to mesh vertices
	weld := l.WeldVertices && targetCount == 0
	if l.WeldVertices && !weld {
		log.Debug("not welding mesh with morph targets", zap.String("mesh", m.Name))
	}
	remap := make([]int, len(verts))
	var first []int // Raw vertex behind each mesh vertex
	seen := make(map[weldKey]int)
	for i, v := range verts {
		if weld {
			key := weldKey{v.position, v.normal, v.joints, v.weights}
			if idx, ok := seen[key]; ok {
				remap[i] = idx
				continue
			}
			seen[key] = len(first)
		}
		remap[i] = len(first)
		first = append(first, i)
	}

	hasNormals := true
	for _, ri := range first {
		v := verts[ri]
		mesh.Vertices = append(mesh.Vertices, Vertex{Position: v.position, Normal: v.normal})
		hasNormals = hasNormals && v.hasNormal
	}

	for _, t := range tris {
		a, b, c := verts[t.v[0]], verts[t.v[1]], verts[t.v[2]]
		smooth := a.hasNormal && b.hasNormal && c.hasNormal &&
			!(a.normal.Equal(b.normal, 1e-5) && a.normal.Equal(c.normal, 1e-5))

		corners := []int{remap[t.v[0]], remap[t.v[1]], remap[t.v[2]]}
		if hasUV {
			mesh.AddPolygon(corners, t.material, smooth, a.uv, b.uv, c.uv)
		} else {
			mesh.AddPolygon(corners, t.material, smooth)
		}
	}
	if hasUV && mesh.UVs == nil {
		mesh.UVs = []math3d.Vec2{}
	}

	// Welded vertices can disagree on color, so colors move to corners
	for n := range colorSets {
		attr := ColorAttribute{Name: fmt.Sprintf("COLOR_%d", n), Domain: DomainVertex}
		if weld {
			attr.Domain = DomainCorner
			for _, t := range tris {
				for _, ri := range t.v {
					attr.Data = append(attr.Data, colorAt(verts[ri].colors, n))
				}
			}
		} else {
			for _, ri := range first {
				attr.Data = append(attr.Data, colorAt(verts[ri].colors, n))
			}
		}
		mesh.Colors = append(mesh.Colors, attr)
	}

	// Calculate normals if needed
	if l.CalculateNormals && !hasNormals {
		provided := make(map[int]math3d.Vec3)
		for vi, ri := range first {
			if verts[ri].hasNormal {
				provided[vi] = verts[ri].normal
			}
		}
		mesh.CalculateSmoothNormals()
		for vi, n := range provided {
			mesh.Vertices[vi].Normal = n
		}
	}

	b := &binding{
		rest:         make([]math3d.Vec3, len(first)),
		joints:       make([][4]int, len(first)),
		jointWeights: make([][4]float64, len(first)),
	}
	for vi, ri := range first {
		b.rest[vi] = verts[ri].position
		b.joints[vi] = verts[ri].joints
		b.jointWeights[vi] = verts[ri].weights
	}
	for t := range targetCount {
		deltas := make([]math3d.Vec3, len(first))
		for vi, ri := range first {
			if t < len(verts[ri].deltas) {
				deltas[vi] = verts[ri].deltas[t]
			}
		}
		b.targets = append(b.targets, deltas)
	}

	if l.MergeQuads {
		merged, n := MergeQuads(mesh, l.MergeAngle)
		if n > 0 {
			log.Debug("merged triangles into quads", zap.String("mesh", m.Name), zap.Int("quads", n))
		}
		mesh = merged
	}

	return mesh, b, nil
}

// primitiveData holds the optional attributes of one primitive.
type primitiveData struct {
	normals []math3d.Vec3
	uvs     []math3d.Vec2
	colors  [][]Color
	joints  [][4]float64
	weights [][4]float64
	targets [][]math3d.Vec3
}

func readPrimitive(doc *gltf.Document, prim *gltf.Primitive, count int) (*primitiveData, error) {
	var (
		p   primitiveData
		err error
	)

	// Get normals if available
	if idx, ok := prim.Attributes[gltf.NORMAL]; ok {
		if p.normals, err = readVec3Accessor(doc, idx); err != nil {
			return nil, fmt.Errorf("read normals: %w", err)
		}
	}

	// Get UVs if available
	if idx, ok := prim.Attributes[gltf.TEXCOORD_0]; ok {
		if p.uvs, err = readVec2Accessor(doc, idx); err != nil {
			return nil, fmt.Errorf("read uvs: %w", err)
		}
	}

	for n := 0; ; n++ {
		idx, ok := prim.Attributes[fmt.Sprintf("COLOR_%d", n)]
		if !ok {
			break
		}
		colors, err := readColorAccessor(doc, idx)
		if err != nil {
			return nil, fmt.Errorf("read COLOR_%d: %w", n, err)
		}
		// glTF colors are linear; color tables are authored in sRGB.
		for i, c := range colors {
			colors[i] = Color{linearToSRGB(c.R), linearToSRGB(c.G), linearToSRGB(c.B)}
		}
		p.colors = append(p.colors, colors)
	}

	jIdx, hasJoints := prim.Attributes[gltf.JOINTS_0]
	wIdx, hasWeights := prim.Attributes[gltf.WEIGHTS_0]
	if hasJoints && hasWeights {
		if p.joints, err = readVec4Accessor(doc, jIdx); err != nil {
			return nil, fmt.Errorf("read joints: %w", err)
		}
		if p.weights, err = readVec4Accessor(doc, wIdx); err != nil {
			return nil, fmt.Errorf("read weights: %w", err)
		}
		for i, w := range p.weights {
			if total := w[0] + w[1] + w[2] + w[3]; total > 0 && math.Abs(total-1) > 1e-6 {
				for k := range 4 {
					p.weights[i][k] = w[k] / total
				}
			}
		}
	}

	for t, target := range prim.Targets {
		var deltas []math3d.Vec3
		if idx, ok := target[gltf.POSITION]; ok {
			if deltas, err = readVec3Accessor(doc, idx); err != nil {
				return nil, fmt.Errorf("read morph target %d: %w", t, err)
			}
		} else {
			deltas = make([]math3d.Vec3, count)
		}
		p.targets = append(p.targets, deltas)
	}

	return &p, nil
}

// triangulate turns an index list into triangles for the triangle modes.
// Degenerate triangles are skipped.
func triangulate(mode gltf.PrimitiveMode, indices []int) ([][3]int, bool) {
	var tris [][3]int
	add := func(a, b, c int) {
		if a != b && b != c && a != c {
			tris = append(tris, [3]int{a, b, c})
		}
	}

	switch mode {
	case gltf.PrimitiveTriangles:
		for i := 0; i+2 < len(indices); i += 3 {
			add(indices[i], indices[i+1], indices[i+2])
		}
	case gltf.PrimitiveTriangleStrip:
		for i := 0; i+2 < len(indices); i++ {
			if i%2 == 0 {
				add(indices[i], indices[i+1], indices[i+2])
			} else {
				add(indices[i+1], indices[i], indices[i+2])
			}
		}
	case gltf.PrimitiveTriangleFan:
		for i := 1; i+1 < len(indices); i++ {
			add(indices[0], indices[i], indices[i+1])
		}
	default:
		return nil, false
	}
	return tris, true
}

func linearToSRGB(c float64) float64 {
	switch {
	case c <= 0.0031308:
		return max(c, 0) * 12.92
	case c >= 1:
		return 1
	}
	return min(1.055*math.Pow(c, 1/2.4)-0.055, 1)
}

func colorAt(colors []Color, n int) Color {
	if n < len(colors) {
		return colors[n]
	}
	return White
}

// convertMaterial maps a glTF PBR material onto an image-texture node and
// a principled node.
func convertMaterial(doc *gltf.Document, m *gltf.Material, i int, images []*Image) *Material {
	mat := &Material{Name: nameOr(m.Name, "material", i)}

	switch m.AlphaMode {
	case gltf.AlphaMask:
		mat.Blend = BlendClip
	case gltf.AlphaBlend:
		mat.Blend = BlendBlend
	}

	// glTF defaults metallic to 1 when unspecified.
	bsdf := ShaderNode{Kind: NodePrincipled, Name: "Principled BSDF", Inputs: map[string]float64{InputMetallic: 1}}
	if pbr := m.PBRMetallicRoughness; pbr != nil {
		if pbr.MetallicFactor != nil {
			bsdf.Inputs[InputMetallic] = float64(*pbr.MetallicFactor)
		}
		if tex := pbr.BaseColorTexture; tex != nil {
			if img := textureImage(doc, tex.Index, images); img != nil {
				mat.Nodes = append(mat.Nodes, ShaderNode{Kind: NodeImageTexture, Name: "Image Texture", Image: img})
			}
		}
	}

	// specularFactor 1.0 is the neutral level 0.5.
	if ext, ok := m.Extensions[extSpecular]; ok {
		var spec struct {
			SpecularFactor *float64 `json:"specularFactor"`
		}
		if remarshal(ext, &spec) == nil {
			factor := 1.0
			if spec.SpecularFactor != nil {
				factor = *spec.SpecularFactor
			}
			bsdf.Inputs[InputSpecularIORLevel] = factor / 2
		}
	}

	// Older exporters store the legacy specular input in extras.
	if m.Extras != nil {
		var extras struct {
			Specular *float64 `json:"specular"`
		}
		if remarshal(m.Extras, &extras) == nil && extras.Specular != nil {
			bsdf.Inputs[InputSpecular] = *extras.Specular
		}
	}

	mat.Nodes = append(mat.Nodes, bsdf)
	return mat
}

// remarshal decodes an already-decoded JSON value into dst.
func remarshal(v any, dst any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

func textureImage(doc *gltf.Document, texIdx int, images []*Image) *Image {
	if texIdx < 0 || texIdx >= len(doc.Textures) {
		return nil
	}
	src := doc.Textures[texIdx].Source
	if src == nil || *src < 0 || *src >= len(images) {
		return nil
	}
	return images[*src]
}

// readImages reads the size and alpha presence of every document image.
// Unreadable images fall back to the default size.
func (l *GLTFLoader) readImages(doc *gltf.Document, dir string) []*Image {
	images := make([]*Image, len(doc.Images))
	for i, img := range doc.Images {
		name := imageName(img, i)
		info, err := readGLTFImage(doc, img, dir, name)
		if err != nil {
			l.logger().Warn("unreadable texture, using default size",
				zap.String("image", name), zap.Error(err))
			info = FallbackImage(name)
		}
		images[i] = info
	}
	return images
}

func readGLTFImage(doc *gltf.Document, img *gltf.Image, dir, name string) (*Image, error) {
	switch {
	case img.BufferView != nil:
		if *img.BufferView < 0 || *img.BufferView >= len(doc.BufferViews) {
			return nil, fmt.Errorf("buffer view %d out of range", *img.BufferView)
		}
		bv := doc.BufferViews[*img.BufferView]
		data := doc.Buffers[bv.Buffer].Data
		if bv.ByteOffset+bv.ByteLength > len(data) {
			return nil, fmt.Errorf("buffer view %d exceeds buffer %d", *img.BufferView, bv.Buffer)
		}
		return ReadImageBytes(name, data[bv.ByteOffset:bv.ByteOffset+bv.ByteLength])

	case strings.HasPrefix(img.URI, "data:"):
		_, payload, ok := strings.Cut(img.URI, ",")
		if !ok {
			return nil, errors.New("malformed data uri")
		}
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return nil, fmt.Errorf("decode data uri: %w", err)
		}
		return ReadImageBytes(name, data)

	case img.URI != "":
		info, err := ReadImageFile(filepath.Join(dir, filepath.FromSlash(unescape(img.URI))))
		if err != nil {
			return nil, err
		}
		info.Name = name
		return info, nil
	}
	return nil, errors.New("image has no source")
}

func imageName(img *gltf.Image, i int) string {
	if img.Name != "" {
		return img.Name
	}
	if img.URI != "" && !strings.HasPrefix(img.URI, "data:") {
		return filepath.Base(filepath.FromSlash(unescape(img.URI)))
	}
	return fmt.Sprintf("image_%d", i)
}

func unescape(uri string) string {
	if u, err := url.PathUnescape(uri); err == nil {
		return u
	}
	return uri
}

// sceneNodes lists the nodes of the default scene depth-first, or every
// node when the document has no scenes.
func sceneNodes(doc *gltf.Document) []int {
	var roots []int
	switch {
	case doc.Scene != nil && *doc.Scene >= 0 && *doc.Scene < len(doc.Scenes):
		roots = doc.Scenes[*doc.Scene].Nodes
	case len(doc.Scenes) > 0:
		roots = doc.Scenes[0].Nodes
	default:
		for i := range doc.Nodes {
			roots = append(roots, i)
		}
	}

	order := make([]int, 0, len(doc.Nodes))
	seen := make([]bool, len(doc.Nodes))
	var walk func(i int)
	walk = func(i int) {
		if i < 0 || i >= len(doc.Nodes) || seen[i] {
			return
		}
		seen[i] = true
		order = append(order, i)
		for _, c := range doc.Nodes[i].Children {
			walk(c)
		}
	}
	for _, r := range roots {
		walk(r)
	}
	return order
}

func (l *GLTFLoader) logger() *zap.Logger {
	if l.Logger == nil {
		return zap.NewNop()
	}
	return l.Logger
}
