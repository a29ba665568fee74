package encode

import (
	"math"
	"testing"

	"github.com/taigrr/ps1export/pkg/models"
)

func texturedMaterial(img *models.Image, blend models.BlendMode, inputs map[string]float64) *models.Material {
	return &models.Material{
		Name:  "mat",
		Blend: blend,
		Nodes: []models.ShaderNode{
			{Kind: models.NodeOther, Name: "Output"},
			{Kind: models.NodeImageTexture, Name: "Image Texture", Image: img},
			{Kind: models.NodePrincipled, Name: "Principled BSDF", Inputs: inputs},
		},
	}
}

func TestDetectDefaults(t *testing.T) {
	m := quadMesh()
	d := Detector{Options: DefaultOptions()}.Detect(m, 0, ColorTable{})

	if !d.Lit || d.Textured || d.Smooth || d.VertexColored || d.Alpha {
		t.Errorf("unexpected flags: %+v", d)
	}
	if d.TexWidth != DefaultTextureSize || d.TexHeight != DefaultTextureSize {
		t.Errorf("texture size = %vx%v, want 255x255", d.TexWidth, d.TexHeight)
	}
	if d.Specular != DefaultSpecular || d.Metallic != DefaultMetallic {
		t.Errorf("specular/metallic = %v/%v", d.Specular, d.Metallic)
	}
	if d.TextureIndex != -1 {
		t.Errorf("TextureIndex = %d, want -1", d.TextureIndex)
	}
	if got := d.Flags(); got != 0 {
		t.Errorf("Flags() = %08b, want 0", got)
	}
}

func TestDetectMaterial(t *testing.T) {
	img := &models.Image{Name: "brick.png", Width: 64, Height: 32}
	alphaImg := &models.Image{Name: "leaf.png", Width: 16, Height: 16, HasAlpha: true}

	tests := []struct {
		name     string
		mat      *models.Material
		opts     Options
		textured bool
		alpha    bool
		spec     float64
		metal    float64
		width    float64
		flags    uint8
	}{
		{
			name:     "textured with inset",
			mat:      texturedMaterial(img, models.BlendOpaque, nil),
			opts:     DefaultOptions(),
			textured: true,
			spec:     DefaultSpecular,
			width:    64 - DefaultTexelInset,
			flags:    FlagTextured,
		},
		{
			name:     "exact texel mapping",
			mat:      texturedMaterial(img, models.BlendOpaque, nil),
			opts:     Options{},
			textured: true,
			spec:     DefaultSpecular,
			width:    64,
			flags:    FlagTextured,
		},
		{
			name:     "image alpha sets semi-transparent and cutout",
			mat:      texturedMaterial(alphaImg, models.BlendOpaque, nil),
			opts:     Options{SemiTransparency: true, Cutout: true},
			textured: true,
			alpha:    true,
			spec:     DefaultSpecular,
			width:    16,
			flags:    FlagTextured | FlagSemiTransparent | FlagCutout,
		},
		{
			name:  "blend mode alpha without options",
			mat:   &models.Material{Blend: models.BlendBlend},
			opts:  Options{},
			alpha: true,
			spec:  DefaultSpecular,
			width: DefaultTextureSize,
		},
		{
			name: "specular ranks newer input first",
			mat: texturedMaterial(nil, models.BlendOpaque, map[string]float64{
				models.InputSpecular: 0.9, models.InputSpecularIORLevel: 0.3, models.InputMetallic: 1,
			}),
			opts:  Options{Specular: true, Metallic: true},
			spec:  0.3,
			metal: 1,
			width: DefaultTextureSize,
			flags: FlagSpecular | FlagMetallic,
		},
		{
			name: "legacy specular input",
			mat: texturedMaterial(nil, models.BlendOpaque, map[string]float64{
				models.InputSpecular: 0.9,
			}),
			spec:  0.9,
			width: DefaultTextureSize,
		},
		{
			name: "NaN input keeps default",
			mat: texturedMaterial(nil, models.BlendOpaque, map[string]float64{
				models.InputSpecularIORLevel: math.NaN(), models.InputMetallic: math.NaN(),
			}),
			spec:  DefaultSpecular,
			width: DefaultTextureSize,
		},
		{
			name:  "unlit is an option only",
			mat:   texturedMaterial(nil, models.BlendOpaque, nil),
			opts:  Options{ForceUnlit: true},
			spec:  DefaultSpecular,
			width: DefaultTextureSize,
			flags: FlagUnlit,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m := quadMesh()
			m.Materials = []*models.Material{tc.mat}
			m.Polygons[0].Material = 0

			d := Detector{Options: tc.opts}.Detect(m, 0, ColorTable{})
			if d.Textured != tc.textured {
				t.Errorf("Textured = %v, want %v", d.Textured, tc.textured)
			}
			if d.Alpha != tc.alpha {
				t.Errorf("Alpha = %v, want %v", d.Alpha, tc.alpha)
			}
			if math.Abs(d.Specular-tc.spec) > 1e-9 || math.Abs(d.Metallic-tc.metal) > 1e-9 {
				t.Errorf("specular/metallic = %v/%v, want %v/%v", d.Specular, d.Metallic, tc.spec, tc.metal)
			}
			if math.Abs(d.TexWidth-tc.width) > 1e-9 {
				t.Errorf("TexWidth = %v, want %v", d.TexWidth, tc.width)
			}
			if got := d.Flags(); got != tc.flags {
				t.Errorf("Flags() = %08b, want %08b", got, tc.flags)
			}
		})
	}
}

func TestDetectVertexColorFlag(t *testing.T) {
	m := quadMesh()
	m.AddPolygon([]int{0, 1, 2}, -1, true)
	colors := ColorTable{Domain: models.DomainFace, Data: []models.Color{
		{R: 1, G: 1, B: 1},
		{R: 1, G: 0.5, B: 1},
	}}
	det := Detector{Options: DefaultOptions()}

	if d := det.Detect(m, 0, colors); d.VertexColored || d.Flags()&FlagVertexColored != 0 {
		t.Error("solid white polygon is vertex colored")
	}
	d := det.Detect(m, 1, colors)
	if !d.VertexColored {
		t.Error("tinted polygon is not vertex colored")
	}
	if got, want := d.Flags(), FlagSmooth|FlagVertexColored; got != want {
		t.Errorf("Flags() = %08b, want %08b", got, want)
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		d    Descriptor
		want string
	}{
		{Descriptor{Lit: true}, "lit, flat"},
		{Descriptor{Lit: true, Textured: true, Smooth: true}, "lit, textured, smooth"},
		{Descriptor{Smooth: true, VertexColored: true}, "unlit, smooth, vertex-colored"},
		{Descriptor{Lit: true, Alpha: true, opts: Options{Cutout: true}}, "lit, flat, cutout"},
	}
	for _, tc := range tests {
		if got := tc.d.Describe(); got != tc.want {
			t.Errorf("Describe() = %q, want %q", got, tc.want)
		}
	}
}

func TestFirstInput(t *testing.T) {
	node := &models.ShaderNode{Inputs: map[string]float64{"a": math.NaN(), "b": 0.25, "c": 0.75}}
	if v, ok := FirstInput(node, "missing", "a", "b", "c"); !ok || v != 0.25 {
		t.Errorf("FirstInput() = %v, %v; want 0.25, true", v, ok)
	}
	if _, ok := FirstInput(node, "missing"); ok {
		t.Error("FirstInput() found a missing input")
	}
	if _, ok := FirstInput(nil, "b"); ok {
		t.Error("FirstInput(nil) reported an input")
	}
}
