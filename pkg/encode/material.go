package encode

import (
	"math"
	"strings"

	"github.com/taigrr/ps1export/pkg/models"
)

// Material defaults used when a material does not say otherwise.
const (
	DefaultTextureSize = 255
	DefaultSpecular    = 0.5
	DefaultMetallic    = 0.0
	// DefaultTexelInset is subtracted from real texture sizes so UVs on the
	// far edge stay inside the image.
	DefaultTexelInset = 0.85
)

// SpecularInputs are the principled inputs that carry specular, best first.
var SpecularInputs = []string{models.InputSpecularIORLevel, models.InputSpecular}

// Material flag bits, bit 0 first.
const (
	FlagUnlit uint8 = 1 << iota
	FlagTextured
	FlagSmooth
	FlagVertexColored
	FlagSemiTransparent
	FlagCutout
	FlagSpecular
	FlagMetallic
)

// Options are the export switches that shape per-face descriptors.
type Options struct {
	ForceUnlit       bool
	SemiTransparency bool
	Cutout           bool
	Specular         bool // Export per-face specular
	Metallic         bool // Export per-face metallic
	TexelInset       float64
	WhiteThreshold   float64
}

// DefaultOptions returns the exporter defaults.
func DefaultOptions() Options {
	return Options{
		TexelInset:     DefaultTexelInset,
		WhiteThreshold: DefaultWhiteThreshold,
	}
}

// Descriptor is the material state of one face. Every face gets its own,
// even when faces share a material.
type Descriptor struct {
	Lit           bool
	Textured      bool
	Smooth        bool
	VertexColored bool
	Alpha         bool
	Specular      float64
	Metallic      float64

	Texture      *models.Image
	TextureIndex int     // -1 for none
	TexWidth     float64 // UV scale in texels
	TexHeight    float64

	opts Options
}

// Flags packs the descriptor into the runtime's material byte.
func (d Descriptor) Flags() uint8 {
	var f uint8
	if !d.Lit {
		f |= FlagUnlit
	}
	if d.Textured {
		f |= FlagTextured
	}
	if d.Smooth {
		f |= FlagSmooth
	}
	if d.VertexColored {
		f |= FlagVertexColored
	}
	if d.Alpha && d.opts.SemiTransparency {
		f |= FlagSemiTransparent
	}
	if d.Alpha && d.opts.Cutout {
		f |= FlagCutout
	}
	if d.opts.Specular {
		f |= FlagSpecular
	}
	if d.opts.Metallic {
		f |= FlagMetallic
	}
	return f
}

// Describe lists the set flags for a header comment, e.g.
// "lit, textured, smooth".
func (d Descriptor) Describe() string {
	parts := []string{"lit"}
	if !d.Lit {
		parts[0] = "unlit"
	}
	if d.Textured {
		parts = append(parts, "textured")
	}
	if d.Smooth {
		parts = append(parts, "smooth")
	} else {
		parts = append(parts, "flat")
	}
	if d.VertexColored {
		parts = append(parts, "vertex-colored")
	}
	f := d.Flags()
	if f&FlagSemiTransparent != 0 {
		parts = append(parts, "semi-transparent")
	}
	if f&FlagCutout != 0 {
		parts = append(parts, "cutout")
	}
	return strings.Join(parts, ", ")
}

// SpecularByte returns specular scaled to 0-255.
func (d Descriptor) SpecularByte() uint8 {
	return channel(d.Specular)
}

// MetallicByte returns metallic scaled to 0-255.
func (d Descriptor) MetallicByte() uint8 {
	return channel(d.Metallic)
}

// Detector derives face descriptors from mesh materials.
type Detector struct {
	Options Options
}

// Detect builds the descriptor of polygon pi. colors is the mesh's resolved
// color table. Missing or unreadable material data keeps the defaults.
func (d Detector) Detect(m *models.Mesh, pi int, colors ColorTable) Descriptor {
	p := m.Polygons[pi]
	desc := Descriptor{
		Lit:          !d.Options.ForceUnlit,
		Smooth:       p.Smooth,
		Specular:     DefaultSpecular,
		Metallic:     DefaultMetallic,
		TextureIndex: -1,
		TexWidth:     DefaultTextureSize,
		TexHeight:    DefaultTextureSize,
		opts:         d.Options,
	}

	mat := m.GetMaterial(p.Material)
	if mat != nil {
		desc.Alpha = mat.Blend != models.BlendOpaque
	}
	if tex := mat.FirstNode(models.NodeImageTexture); tex != nil {
		img := tex.Image
		desc.Textured = true
		desc.Texture = img
		desc.Alpha = desc.Alpha || img.HasAlpha
		desc.TexWidth = float64(img.Width) - d.Options.TexelInset
		desc.TexHeight = float64(img.Height) - d.Options.TexelInset
	}
	if bsdf := mat.FirstNode(models.NodePrincipled); bsdf != nil {
		if v, ok := FirstInput(bsdf, SpecularInputs...); ok {
			desc.Specular = v
		}
		if v, ok := FirstInput(bsdf, models.InputMetallic); ok {
			desc.Metallic = v
		}
	}

	desc.VertexColored = colors.Present() && !colors.IsSolidWhite(m, pi, d.threshold())
	return desc
}

func (d Detector) threshold() float64 {
	if d.Options.WhiteThreshold <= 0 {
		return DefaultWhiteThreshold
	}
	return d.Options.WhiteThreshold
}

// FirstInput returns the first readable input of node among names.
func FirstInput(node *models.ShaderNode, names ...string) (float64, bool) {
	if node == nil {
		return 0, false
	}
	name, rank := First(names, func(n string) bool {
		v, ok := node.Input(n)
		return ok && !math.IsNaN(v)
	})
	if rank < 0 {
		return 0, false
	}
	v, _ := node.Input(name)
	return v, true
}
