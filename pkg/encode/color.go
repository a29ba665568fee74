package encode

import (
	"math"

	"github.com/taigrr/ps1export/pkg/models"
)

// DefaultWhiteThreshold is the channel value at or above which a color
// sample counts as white.
const DefaultWhiteThreshold = 0.99

// RGB is an 8-bit color table row.
type RGB struct {
	R, G, B uint8
}

// WhiteRGB substitutes samples that are missing from a color table.
var WhiteRGB = RGB{255, 255, 255}

// PlaceholderRGB is written when no mesh carries colors, so the runtime
// array is never empty.
var PlaceholderRGB = RGB{128, 128, 128}

// ToRGB converts a 0-1 color to bytes, truncating each channel.
func ToRGB(c models.Color) RGB {
	return RGB{channel(c.R), channel(c.G), channel(c.B)}
}

func channel(v float64) uint8 {
	b := int(v * 255)
	if math.IsNaN(v) || b < 0 {
		return 0
	}
	if b > 255 {
		return 255
	}
	return uint8(b)
}

// First returns the first candidate accepted by usable and its rank, or the
// zero value and -1 when none is.
func First[T any](candidates []T, usable func(T) bool) (T, int) {
	for i, c := range candidates {
		if usable(c) {
			return c, i
		}
	}
	var zero T
	return zero, -1
}

// ColorTable is the one color attribute that drives a mesh's vertex colors.
type ColorTable struct {
	Name   string
	Domain models.Domain
	Data   []models.Color
}

// ResolveColors picks the first attribute in candidates that has samples
// and a known domain. No usable attribute gives an empty table.
func ResolveColors(candidates []models.ColorAttribute) ColorTable {
	attr, rank := First(candidates, func(a models.ColorAttribute) bool {
		return len(a.Data) > 0 && a.Domain != models.DomainNone
	})
	if rank < 0 {
		return ColorTable{}
	}
	return ColorTable{Name: attr.Name, Domain: attr.Domain, Data: attr.Data}
}

// Present reports whether the table drives vertex coloring.
func (t ColorTable) Present() bool {
	return t.Domain != models.DomainNone && len(t.Data) > 0
}

// Sample returns sample i, or white when i is out of range.
func (t ColorTable) Sample(i int) models.Color {
	if i < 0 || i >= len(t.Data) {
		return models.White
	}
	return t.Data[i]
}

// PolygonSamples returns the samples bound to polygon pi of m. Indices past
// the end of the table contribute nothing.
func (t ColorTable) PolygonSamples(m *models.Mesh, pi int) []models.Color {
	if !t.Present() || pi < 0 || pi >= len(m.Polygons) {
		return nil
	}
	p := m.Polygons[pi]

	var out []models.Color
	add := func(i int) {
		if i >= 0 && i < len(t.Data) {
			out = append(out, t.Data[i])
		}
	}
	switch t.Domain {
	case models.DomainCorner:
		for c := range p.Len() {
			add(p.LoopStart + c)
		}
	case models.DomainVertex:
		for _, v := range p.Vertices {
			add(v)
		}
	case models.DomainFace:
		add(pi)
	}
	return out
}

// IsSolidWhite reports whether every sample of polygon pi has all channels
// at or above threshold. A polygon without samples is solid white.
func (t ColorTable) IsSolidWhite(m *models.Mesh, pi int, threshold float64) bool {
	for _, c := range t.PolygonSamples(m, pi) {
		if c.R < threshold || c.G < threshold || c.B < threshold {
			return false
		}
	}
	return true
}

// Rows returns the table rows a mesh contributes: one per vertex, loop or
// polygon depending on the domain. Missing samples are white.
func (t ColorTable) Rows(m *models.Mesh) []RGB {
	if !t.Present() {
		return nil
	}
	var n int
	switch t.Domain {
	case models.DomainVertex:
		n = m.VertexCount()
	case models.DomainCorner:
		n = m.LoopCount()
	case models.DomainFace:
		n = len(m.Polygons)
	}
	rows := make([]RGB, n)
	for i := range rows {
		rows[i] = ToRGB(t.Sample(i))
	}
	return rows
}
